package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newProxiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "proxies",
		Short: "Fetch and validate proxies, then print the working set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if err := appInstance.Config().RequireFeed(); err != nil {
				return err
			}
			if err := appInstance.Pool().Initialize(cmd.Context()); err != nil {
				return fmt.Errorf("initialize pool: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), appInstance.Pool().Snapshot())
		},
	}
}
