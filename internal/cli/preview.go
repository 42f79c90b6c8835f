package cli

import (
	"context"

	"github.com/orgball2608/insta-downloader-client/internal/domain"
	"github.com/orgball2608/insta-downloader-client/internal/preview"
	"github.com/spf13/cobra"
)

func newPreviewCommand() *cobra.Command {
	var browser string

	cmd := &cobra.Command{
		Use:   "preview <url>",
		Short: "Fetch the media items behind an Instagram link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var svc preview.Service
			return withApp(cmd.Context(), func(ctx context.Context) error {
				result, err := svc.FetchPreview(ctx, args[0], domain.Browser(browser))
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			}, nil, &svc)
		},
	}

	cmd.Flags().StringVarP(&browser, "browser", "b", "", "browser the backend emulates (chrome, firefox, chrome-mobile)")
	return cmd
}
