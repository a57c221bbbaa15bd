package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/profile-scraper/internal/batch"
)

func newBatchCmd() *cobra.Command {
	var input, output string
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Scrape every profile URL in a CSV sheet",
		Long: `Reads a CSV sheet, scrapes each row's profile URL and writes the first name,
last name and location back into the row. The sheet is saved after every
successful row, in place unless --output is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if input == "" {
				return errors.New("--input is required")
			}
			if err := appInstance.Config().RequireFeed(); err != nil {
				return err
			}
			if output == "" {
				output = input
			}
			table, err := batch.ReadFile(input)
			if err != nil {
				return err
			}
			save := func(t *batch.Table) error { return t.WriteFile(output) }

			summary, runErr := appInstance.Runner().Run(cmd.Context(), table, save)
			if err := save(table); err != nil {
				return fmt.Errorf("save table: %w", err)
			}
			if runErr != nil {
				return fmt.Errorf("batch run: %w", runErr)
			}
			return printJSON(cmd.OutOrStdout(), summary)
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "CSV file with a header row")
	cmd.Flags().StringVar(&output, "output", "", "where to write results (defaults to --input)")
	return cmd
}
