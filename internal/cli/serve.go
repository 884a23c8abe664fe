package cli

import (
	"github.com/0dayfall/webfinger/internal/server"
	"github.com/spf13/cobra"
)

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the WebFinger server",
		Long: `Serve answers WebFinger queries from the configured store until interrupted.
Settings come from config.yaml and WEBFINGER_* environment variables.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return server.Start(cmd.Context(), a.cfg, a.version)
		},
	}

	flags := cmd.Flags()
	flags.String("host", "0.0.0.0", "serve with this host name")
	flags.String("port", "8080", "serve with this port")
	flags.String("store", "memory", "record store: memory, file, postgres or redis")
	flags.String("framework", "mux", "router: mux or echo")

	_ = a.v.BindPFlag("server.host", flags.Lookup("host"))
	_ = a.v.BindPFlag("server.port", flags.Lookup("port"))
	_ = a.v.BindPFlag("store.driver", flags.Lookup("store"))
	_ = a.v.BindPFlag("server.framework", flags.Lookup("framework"))

	return cmd
}
