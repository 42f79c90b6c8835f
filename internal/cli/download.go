package cli

import (
	"context"
	"fmt"

	"github.com/orgball2608/insta-downloader-client/internal/domain"
	"github.com/orgball2608/insta-downloader-client/internal/download"
	"github.com/orgball2608/insta-downloader-client/internal/preview"
	"github.com/orgball2608/insta-downloader-client/pkg/errors"
	"github.com/spf13/cobra"
)

func newDownloadCommand() *cobra.Command {
	var (
		browser string
		index   int
	)

	cmd := &cobra.Command{
		Use:   "download <url>",
		Short: "Preview a link and save its media",
		Long:  "Preview a link and save its media. Without --index every item is downloaded.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				svc     preview.Service
				manager download.Manager
			)
			return withApp(cmd.Context(), func(ctx context.Context) error {
				result, err := svc.FetchPreview(ctx, args[0], domain.Browser(browser))
				if err != nil {
					return err
				}

				if index > 0 {
					if index > len(result.Items) {
						return errors.Validation(fmt.Sprintf("index %d out of range, preview has %d item(s)", index, len(result.Items)))
					}
					rec, err := manager.DownloadOne(ctx, result.Items[index-1])
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), rec)
				}

				batch, err := manager.DownloadAll(ctx, result.Items)
				if err != nil {
					return err
				}
				return reportBatch(cmd, batch.Wait())
			}, nil, &svc, &manager)
		},
	}

	cmd.Flags().StringVarP(&browser, "browser", "b", "", "browser the backend emulates (chrome, firefox, chrome-mobile)")
	cmd.Flags().IntVarP(&index, "index", "i", 0, "1-based item to download; 0 downloads all")
	return cmd
}

type batchLine struct {
	URL    string                 `json:"url"`
	Record *domain.DownloadRecord `json:"record,omitempty"`
	Error  string                 `json:"error,omitempty"`
}

func reportBatch(cmd *cobra.Command, outcomes []download.Outcome) error {
	lines := make([]batchLine, 0, len(outcomes))
	failed := 0
	for _, o := range outcomes {
		line := batchLine{URL: o.Item.URL, Record: o.Record}
		if o.Err != nil {
			failed++
			line.Error = errors.GetMessage(o.Err)
		}
		lines = append(lines, line)
	}

	if err := printJSON(cmd.OutOrStdout(), lines); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d downloads failed", failed, len(outcomes))
	}
	return nil
}
