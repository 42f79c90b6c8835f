package preview

import (
	"context"
	"encoding/json"

	"github.com/orgball2608/insta-downloader-client/internal/domain"
)

// Service owns the preview request lifecycle. Only the most recent request
// may commit its result.
type Service interface {
	// FetchPreview classifies url, requests a preview and returns the committed
	// result. An empty browser selects the configured default.
	FetchPreview(ctx context.Context, url string, browser domain.Browser) (*domain.PreviewResult, error)
	// Reset clears the catalog and invalidates any request in flight.
	Reset()
	Result() domain.PreviewResult
	LastRawResponse() json.RawMessage
	DebugInfo() json.RawMessage
}
