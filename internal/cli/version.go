package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show webfinger version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "webfinger version %s\n", a.version)
			cf := a.v.ConfigFileUsed()
			if cf == "" {
				cf = "none, using defaults and environment"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration file used: %s\n", cf)
			return nil
		},
	}
}
