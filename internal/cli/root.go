package cli

import (
	"context"
	"encoding/json"
	"io"
	"os/signal"
	"syscall"

	"github.com/orgball2608/insta-downloader-client/internal/app"
	"github.com/orgball2608/insta-downloader-client/pkg/config"
	"github.com/orgball2608/insta-downloader-client/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "instadl",
		Short:         "Preview and download Instagram media through an extraction backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newPreviewCommand(),
		newDownloadCommand(),
		newDiagnoseCommand(),
		newServeCommand(),
		newMigrateCommand(),
		newHistoryCommand(),
	)
	return root
}

// Execute runs the root command until it finishes or the process is signalled.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		log := logger.New(logger.Opts{})
		log.Error("Command failed", "error", err)
		return 1
	}
	return 0
}

// withApp starts the fx graph, fills targets, runs fn and stops the graph.
func withApp(ctx context.Context, fn func(ctx context.Context) error, options []fx.Option, targets ...any) error {
	cfg, err := config.New()
	if err != nil {
		return err
	}
	log := logger.New(logger.Opts{Env: cfg.App.Env, Level: cfg.App.LogLevel})

	opts := append([]fx.Option{
		fx.Logger(log),
		app.Module(cfg),
		fx.Populate(targets...),
	}, options...)
	a := fx.New(opts...)
	if err := a.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(ctx, a.StartTimeout())
	defer cancel()
	if err := a.Start(startCtx); err != nil {
		return err
	}

	runErr := fn(ctx)

	stopCtx, cancel := context.WithTimeout(context.Background(), a.StopTimeout())
	defer cancel()
	if err := a.Stop(stopCtx); err != nil {
		log.Error("Failed to stop application", "error", err)
	}
	return runErr
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
