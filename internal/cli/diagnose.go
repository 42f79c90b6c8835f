package cli

import (
	"context"

	"github.com/orgball2608/insta-downloader-client/internal/diagnostics"
	"github.com/spf13/cobra"
)

func newDiagnoseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "diagnose",
		Short: "Probe the backend and media proxy and print a diagnostics snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var svc diagnostics.Service
			return withApp(cmd.Context(), func(ctx context.Context) error {
				if err := svc.Activate(ctx); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), svc.Snapshot(ctx))
			}, nil, &svc)
		},
	}
}
