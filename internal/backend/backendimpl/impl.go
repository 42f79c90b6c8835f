package backendimpl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/orgball2608/insta-downloader-client/internal/backend"
	"github.com/orgball2608/insta-downloader-client/pkg/config"
	"github.com/orgball2608/insta-downloader-client/pkg/errors"
	"github.com/orgball2608/insta-downloader-client/pkg/logger"
	"go.uber.org/fx"
)

const defaultTimeout = 30 * time.Second

type Opts struct {
	fx.In

	Config *config.Config
	Logger logger.Logger
}

type Impl struct {
	baseURL    string
	httpClient *http.Client
	logger     logger.Logger
}

var _ backend.Client = (*Impl)(nil)

func New(opts Opts) *Impl {
	return NewWithClient(opts.Config.Backend.BaseURL, &http.Client{Timeout: timeoutOrDefault(opts.Config.Backend.Timeout)}, opts.Logger)
}

func NewWithClient(baseURL string, httpClient *http.Client, log logger.Logger) *Impl {
	return &Impl{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     log.WithComponent("BackendClient"),
	}
}

func (c *Impl) Preview(ctx context.Context, req backend.PreviewRequest) (*backend.PreviewResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode preview request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+backend.PreviewPath, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeValidation, "Invalid preview request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	body, _, err := c.do(httpReq, "preview")
	if err != nil {
		return nil, err
	}

	var resp backend.PreviewResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.WrapWithCode(&backend.DecodeError{Body: body, Err: err}, errors.CodeTransport, "Malformed preview response")
	}
	resp.Raw = body

	c.logger.Debug("Preview response received", "url", req.URL, "success", resp.Success, "items", len(resp.MediaItems))
	return &resp, nil
}

func (c *Impl) FetchMedia(ctx context.Context, mediaURL string, download bool, filename string) (*backend.Media, error) {
	q := url.Values{}
	q.Set("url", mediaURL)
	q.Set("download", strconv.FormatBool(download))
	if filename != "" {
		q.Set("filename", filename)
	}
	return c.fetch(ctx, backend.MediaPath, q, "media")
}

func (c *Impl) FetchProxy(ctx context.Context, mediaURL string, thumbnail bool) (*backend.Media, error) {
	q := url.Values{}
	q.Set("url", mediaURL)
	q.Set("thumbnail", strconv.FormatBool(thumbnail))
	return c.fetch(ctx, backend.MediaProxyPath, q, "media proxy")
}

func (c *Impl) Health(ctx context.Context) (*backend.HealthResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+backend.HealthPath, nil)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeValidation, "Invalid health request")
	}
	httpReq.Header.Set("Accept", "application/json")

	body, _, err := c.do(httpReq, "health")
	if err != nil {
		return nil, err
	}

	var resp backend.HealthResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.WrapWithCode(&backend.DecodeError{Body: body, Err: err}, errors.CodeTransport, "Malformed health response")
	}
	resp.Raw = body
	return &resp, nil
}

func (c *Impl) fetch(ctx context.Context, path string, q url.Values, name string) (*backend.Media, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeValidation, "Invalid "+name+" request")
	}

	body, header, err := c.do(httpReq, name)
	if err != nil {
		return nil, err
	}

	return &backend.Media{
		ContentType: header.Get("Content-Type"),
		Data:        body,
		Filename:    filenameFromDisposition(header.Get("Content-Disposition")),
	}, nil
}

// do executes req and returns the body of a 200 response. Everything else is
// a transport error; non-200 responses carry a *backend.HTTPError.
func (c *Impl) do(req *http.Request, name string) ([]byte, http.Header, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Request failed", "request", name, "error", err, "elapsed", time.Since(start).String())
		return nil, nil, errors.WrapWithCode(err, errors.CodeTransport, networkMessage(req.Context(), err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, errors.WrapWithCode(err, errors.CodeTransport, fmt.Sprintf("Failed to read %s response", name))
	}

	if resp.StatusCode != http.StatusOK {
		httpErr := &backend.HTTPError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.StatusCode, body),
			Body:       body,
		}
		c.logger.Warn("Request returned error status", "request", name, "status", resp.StatusCode, "message", httpErr.Message)
		return nil, nil, errors.WrapWithCode(httpErr, errors.CodeTransport, httpErr.Message)
	}

	return body, resp.Header, nil
}

// errorMessage prefers the message carried by a structured error body and
// falls back to the status code.
func errorMessage(status int, body []byte) string {
	var parsed struct {
		Error   backend.ErrorText `json:"error"`
		Message string            `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Error != "" {
			return parsed.Error.String()
		}
		if parsed.Message != "" {
			return parsed.Message
		}
	}
	return fmt.Sprintf("Request failed with status %d", status)
}

func networkMessage(ctx context.Context, err error) string {
	if ctx.Err() == context.DeadlineExceeded || isTimeout(err) {
		return "Request timed out"
	}
	if ctx.Err() == context.Canceled {
		return "Request cancelled"
	}
	return "Network error"
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

func filenameFromDisposition(v string) string {
	if v == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(v)
	if err != nil {
		return ""
	}
	return params["filename"]
}

func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultTimeout
	}
	return d
}
