package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/dmitrijs2005/offsync/internal/client/config"
	"github.com/dmitrijs2005/offsync/internal/logging"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	flags   *config.Flags
	format  string
	verbose bool
}

// NewRootCommand builds the syncctl command tree. open is called once per
// command invocation that needs local state or the server.
func NewRootCommand(open Opener) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "syncctl",
		Short:         "Offline-first sync client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	opts.flags = config.BindFlags(root.PersistentFlags())
	root.PersistentFlags().StringVar(&opts.format, "format", formatAuto, "output format: auto, table or json")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log debug output to stderr")

	run := func(fn func(ctx context.Context, a *App, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, open, func(ctx context.Context, a *App) error {
				return fn(ctx, a, args)
			})
		}
	}

	root.AddCommand(
		newRegisterCommand(run),
		newEnqueueCommand(run),
		newOutboxCommand(run),
		newFlushCommand(run),
		newSyncCommand(run),
		newWatchCommand(run),
		newStatusCommand(run),
		newQueueCommand(run),
		newConflictsCommand(run),
		newResolveCommand(run),
		newSessionsCommand(run),
	)
	return root
}

type runFunc func(fn func(ctx context.Context, a *App, args []string) error) func(*cobra.Command, []string) error

func newLogger(w io.Writer, verbose bool) logging.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

func (o *rootOptions) withApp(cmd *cobra.Command, open Opener, fn func(ctx context.Context, a *App) error) error {
	cfg, err := o.flags.Load(cmd.Flags())
	if err != nil {
		return err
	}
	out, err := newPrinter(cmd.OutOrStdout(), o.format)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := open(ctx, cfg, newLogger(cmd.ErrOrStderr(), o.verbose))
	if err != nil {
		return err
	}
	defer a.Close()

	a.out = out
	return fn(ctx, a)
}
