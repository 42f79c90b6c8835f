//go:generate go run go.uber.org/mock/mockgen -source=backend.go -destination=mocks/mock.go

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/orgball2608/insta-downloader-client/internal/domain"
)

const (
	PreviewPath    = "/api/preview"
	MediaPath      = "/api/media"
	MediaProxyPath = "/api/download/media-proxy"
	HealthPath     = "/api/health"
)

type Client interface {
	Preview(ctx context.Context, req PreviewRequest) (*PreviewResponse, error)
	FetchMedia(ctx context.Context, url string, download bool, filename string) (*Media, error)
	FetchProxy(ctx context.Context, url string, thumbnail bool) (*Media, error)
	Health(ctx context.Context) (*HealthResponse, error)
}

type PreviewRequest struct {
	URL     string         `json:"url"`
	Browser domain.Browser `json:"browser"`
}

type RawMediaItem struct {
	URL          string `json:"url"`
	MediaType    string `json:"media_type,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

type PreviewResponse struct {
	Success     bool            `json:"success"`
	MediaItems  []RawMediaItem  `json:"media_items,omitempty"`
	ContentType string          `json:"content_type,omitempty"`
	DebugInfo   json.RawMessage `json:"debug_info,omitempty"`
	Error       ErrorText       `json:"error,omitempty"`

	// Raw is the verbatim response body.
	Raw json.RawMessage `json:"-"`
}

// Media is a proxied media payload.
type Media struct {
	ContentType string
	Data        []byte
	Filename    string
}

type HealthResponse struct {
	BrowserAvailable bool               `json:"browser_available"`
	SystemInfo       *domain.SystemInfo `json:"system_info,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// HTTPError is returned for any non-200 response.
type HTTPError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// ErrorText is an error field that arrives either as a plain string or as an
// object carrying a message.
type ErrorText string

func (t *ErrorText) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		*t = ""
		return nil
	}

	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*t = ErrorText(str)
		return nil
	}

	var obj struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(b, &obj); err == nil {
		if obj.Message != "" {
			*t = ErrorText(obj.Message)
		} else {
			*t = ErrorText(obj.Error)
		}
		return nil
	}

	*t = ErrorText(s)
	return nil
}

func (t ErrorText) String() string {
	return string(t)
}

// DecodeError is returned when a 200 response body could not be decoded.
type DecodeError struct {
	Body []byte
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ResponseBody returns the raw body carried by err, if any.
func ResponseBody(err error) []byte {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Body
	}
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return decodeErr.Body
	}
	return nil
}
