package cli

import (
	"context"
	"fmt"

	"github.com/orgball2608/insta-downloader-client/internal/archive"
	"github.com/orgball2608/insta-downloader-client/pkg/config"
	"github.com/spf13/cobra"
)

func newHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived downloads, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.New()
			if err != nil {
				return err
			}
			if !cfg.ArchiveEnabled() {
				return fmt.Errorf("history archive is disabled, set POSTGRES_HOST")
			}

			var a *archive.Archiver
			return withApp(cmd.Context(), func(ctx context.Context) error {
				records, err := a.Recent(ctx, limit)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), records)
			}, nil, &a)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of records")
	return cmd
}
