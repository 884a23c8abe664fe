// Package cli implements the webfinger command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/0dayfall/webfinger/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Exit codes of the webfinger command.
const (
	ExitOK           = 0
	ExitFailure      = 1
	ExitInvalidInput = 2
)

// exitError carries the exit code a failed command should end the process with.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func invalidInput(err error) error {
	return &exitError{code: ExitInvalidInput, err: fmt.Errorf("invalid input: %w", err)}
}

func discoveryFailed(err error) error {
	return &exitError{code: ExitFailure, err: fmt.Errorf("discovery failed: %w", err)}
}

// app is the state shared by the subcommands once the root command has parsed its flags.
type app struct {
	version    string
	v          *viper.Viper
	cfg        *config.Config
	logger     *logrus.Logger
	configFile string
	verbose    int
	quiet      bool
}

// NewRootCommand builds the command tree. Output goes to the command's configured writers.
func NewRootCommand(version string) *cobra.Command {
	a := &app{version: version, v: config.New()}

	root := &cobra.Command{
		Use:   "webfinger",
		Short: "WebFinger (RFC 7033) client and server",
		Long: `webfinger queries WebFinger servers for information about a resource such as
acct:carol@example.com, and can serve JRD documents itself.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd.ErrOrStderr())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (default is ./config.yaml)")
	flags.CountVarP(&a.verbose, "verbose", "v", "log more; repeat for debug and trace output")
	flags.BoolVarP(&a.quiet, "quiet", "q", false, "log errors only")
	root.MarkFlagsMutuallyExclusive("verbose", "quiet")

	root.AddCommand(
		newFetchCommand(a),
		newServeCommand(a),
		newVersionCommand(a),
	)
	return root
}

func (a *app) init(stderr io.Writer) error {
	cfg, err := config.Load(a.v, a.configFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	a.logger = logrus.New()
	a.logger.SetOutput(stderr)
	a.logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	a.logger.SetLevel(a.level())
	return nil
}

func (a *app) level() logrus.Level {
	switch {
	case a.quiet:
		return logrus.ErrorLevel
	case a.verbose == 1:
		return logrus.InfoLevel
	case a.verbose == 2:
		return logrus.DebugLevel
	case a.verbose > 2:
		return logrus.TraceLevel
	default:
		return logrus.WarnLevel
	}
}

// Execute runs the command tree with os.Args and returns the process exit code. An interrupt
// cancels the running command.
func Execute(version string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, NewRootCommand(version), os.Args[1:])
}

func run(ctx context.Context, root *cobra.Command, args []string) int {
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}
	fmt.Fprintln(root.ErrOrStderr(), err)

	var exit *exitError
	if errors.As(err, &exit) {
		return exit.code
	}
	return ExitFailure
}
