package cli

import (
	"context"

	"github.com/orgball2608/insta-downloader-client/internal/app"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(ctx context.Context) error {
				<-ctx.Done()
				return nil
			}, []fx.Option{app.ServerModule})
		},
	}
}
