package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/profile-scraper/internal/scrape"
)

func newScrapeCmd() *cobra.Command {
	var direct bool
	cmd := &cobra.Command{
		Use:   "scrape <url>",
		Short: "Scrape one profile URL",
		Long: `Resolves a single profile URL, rotating through validated proxies until an
attempt succeeds or the pool is exhausted. With --direct the page is
fetched once without a proxy.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			var (
				res    scrape.Result
				runErr error
			)
			if direct {
				res, runErr = appInstance.Orchestrator().ScrapeDirect(cmd.Context(), args[0])
			} else {
				if err := appInstance.Config().RequireFeed(); err != nil {
					return err
				}
				res, runErr = appInstance.Orchestrator().ScrapeWithRotation(cmd.Context(), args[0])
			}
			if runErr != nil {
				appInstance.Logger().Error("Scrape failed", zap.String("url", args[0]), zap.Int("attempts", len(res.Attempts)), zap.Error(runErr))
				return fmt.Errorf("scrape %s: %w", args[0], runErr)
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().BoolVar(&direct, "direct", false, "fetch once without a proxy")
	return cmd
}
