package backendimpl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/orgball2608/insta-downloader-client/internal/backend"
	"github.com/orgball2608/insta-downloader-client/internal/domain"
	"github.com/orgball2608/insta-downloader-client/pkg/errors"
	"github.com/orgball2608/insta-downloader-client/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, h http.HandlerFunc) *Impl {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewWithClient(srv.URL+"/", &http.Client{Timeout: time.Second}, logger.Nop())
}

func TestPreviewSendsContractBody(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, backend.PreviewPath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{"url": "https://www.instagram.com/reel/ABC123/", "browser": "chrome"}, body)

		_, _ = w.Write([]byte(`{"success":true,"media_items":[{"url":"https://cdn/x.mp4","media_type":"video"}],"content_type":"reel","debug_info":{"method":"api"}}`))
	})

	resp, err := c.Preview(context.Background(), backend.PreviewRequest{URL: "https://www.instagram.com/reel/ABC123/", Browser: domain.BrowserChrome})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	require.Len(t, resp.MediaItems, 1)
	assert.Equal(t, "video", resp.MediaItems[0].MediaType)
	assert.Equal(t, "reel", resp.ContentType)
	assert.JSONEq(t, `{"method":"api"}`, string(resp.DebugInfo))
	assert.Contains(t, string(resp.Raw), `"content_type":"reel"`)
}

func TestPreviewNon200UsesStructuredMessage(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"Invalid Instagram URL","success":false}`))
	})

	_, err := c.Preview(context.Background(), backend.PreviewRequest{URL: "x", Browser: domain.BrowserChrome})
	require.Error(t, err)
	assert.True(t, errors.IsTransport(err))
	assert.Equal(t, "Invalid Instagram URL", errors.GetMessage(err))

	var httpErr *backend.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusBadRequest, httpErr.StatusCode)
	assert.Contains(t, string(backend.ResponseBody(err)), "Invalid Instagram URL")
}

func TestNon200WithoutBodyFallsBackToStatus(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	})

	_, err := c.Health(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Request failed with status 502", errors.GetMessage(err))
}

func TestPreviewMalformedBodyKeepsRaw(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	})

	_, err := c.Preview(context.Background(), backend.PreviewRequest{URL: "x"})
	require.Error(t, err)
	assert.True(t, errors.IsTransport(err))
	assert.Equal(t, []byte("not json"), backend.ResponseBody(err))
}

func TestFetchMediaQueryAndHeaders(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, backend.MediaPath, r.URL.Path)
		assert.Equal(t, "https://cdn/x.mp4?a=1&b=2", r.URL.Query().Get("url"))
		assert.Equal(t, "true", r.URL.Query().Get("download"))
		assert.Equal(t, "instagram_reel_video_1_1.mp4", r.URL.Query().Get("filename"))

		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Content-Disposition", `attachment; filename="instagram_reel_video_1_1.mp4"`)
		_, _ = w.Write([]byte{0, 1, 2})
	})

	media, err := c.FetchMedia(context.Background(), "https://cdn/x.mp4?a=1&b=2", true, "instagram_reel_video_1_1.mp4")
	require.NoError(t, err)
	assert.Equal(t, "video/mp4", media.ContentType)
	assert.Equal(t, []byte{0, 1, 2}, media.Data)
	assert.Equal(t, "instagram_reel_video_1_1.mp4", media.Filename)
}

func TestFetchProxyThumbnailFlag(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, backend.MediaProxyPath, r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("thumbnail"))
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("img"))
	})

	media, err := c.FetchProxy(context.Background(), "https://cdn/a.jpg", true)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", media.ContentType)
	assert.Empty(t, media.Filename)
}

func TestHealthDecodesSystemInfo(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, backend.HealthPath, r.URL.Path)
		_, _ = w.Write([]byte(`{"browser_available":true,"system_info":{"os":"linux","node_version":"v20","browser_path":"/usr/bin/chromium","memory":{"rss":1024}}}`))
	})

	resp, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.True(t, resp.BrowserAvailable)
	require.NotNil(t, resp.SystemInfo)
	assert.Equal(t, "linux", resp.SystemInfo.OS)
	assert.JSONEq(t, `{"rss":1024}`, string(resp.SystemInfo.Memory))
}

func TestTimeoutIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	t.Cleanup(srv.Close)
	c := NewWithClient(srv.URL, &http.Client{Timeout: 20 * time.Millisecond}, logger.Nop())

	_, err := c.Health(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsTransport(err))
	assert.Equal(t, "Request timed out", errors.GetMessage(err))
}

func TestUnreachableIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c := NewWithClient(addr, &http.Client{Timeout: time.Second}, logger.Nop())
	_, err := c.FetchProxy(context.Background(), "https://cdn/a.jpg", false)
	require.Error(t, err)
	assert.True(t, errors.IsTransport(err))
}
