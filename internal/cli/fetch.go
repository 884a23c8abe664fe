package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/0dayfall/webfinger"
	"github.com/0dayfall/webfinger/client"
	"github.com/spf13/cobra"
)

func newFetchCommand(a *app) *cobra.Command {
	var (
		rels   []string
		output string
	)

	cmd := &cobra.Command{
		Use:   "fetch <resource> [host]",
		Short: "Query a WebFinger server for a resource",
		Long: `Fetch sends a WebFinger query for resource and prints the JRD document.
The server is host when given, otherwise the host part of resource.`,
		Example: `  webfinger fetch acct:carol@example.com
  webfinger fetch acct:carol@example.com localhost:8080 --http -r http://webfinger.net/rel/avatar`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			b := webfinger.NewRequestBuilder(args[0]).Rel(rels...)
			if len(args) == 2 {
				b.Host(args[1])
			}
			req, err := b.Build()
			if err != nil {
				return invalidInput(err)
			}

			resp, err := client.New(a.clientOptions()...).Fetch(cmd.Context(), req)
			if err != nil {
				if errors.Is(err, webfinger.ErrValidation) || errors.Is(err, webfinger.ErrMissingHost) {
					return invalidInput(err)
				}
				return discoveryFailed(err)
			}

			doc := resp.String() + "\n"
			if output == "" {
				_, err = fmt.Fprint(cmd.OutOrStdout(), doc)
				return err
			}
			if err := writeFile(output, []byte(doc), 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			a.logger.WithField("file", output).Info("Wrote JRD")
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVarP(&rels, "rel", "r", nil, "link relation type to ask for; may be repeated")
	flags.BoolP("insecure", "k", false, "skip TLS certificate verification")
	flags.Bool("http", false, "use plain http instead of https")
	flags.Duration("timeout", 10*time.Second, "request timeout")
	flags.StringVarP(&output, "output", "o", "", "write the JRD to a file instead of stdout")

	_ = a.v.BindPFlag("client.insecure", flags.Lookup("insecure"))
	_ = a.v.BindPFlag("client.http", flags.Lookup("http"))
	_ = a.v.BindPFlag("client.timeout", flags.Lookup("timeout"))

	return cmd
}

func (a *app) clientOptions() []client.Option {
	cc := a.cfg.Client
	opts := []client.Option{
		client.WithLogger(a.logger),
		client.WithTimeout(cc.Timeout),
	}
	if cc.UserAgent != "" {
		opts = append(opts, client.WithUserAgent(cc.UserAgent))
	}
	if cc.Insecure {
		opts = append(opts, client.WithInsecureSkipVerify())
	}
	if cc.HTTP {
		opts = append(opts, client.WithScheme(webfinger.SchemeHTTP))
	}
	return opts
}
