package previewimpl

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/orgball2608/insta-downloader-client/internal/backend"
	mock_backend "github.com/orgball2608/insta-downloader-client/internal/backend/mocks"
	"github.com/orgball2608/insta-downloader-client/internal/classifier"
	"github.com/orgball2608/insta-downloader-client/internal/domain"
	"github.com/orgball2608/insta-downloader-client/internal/mediaproxy"
	"github.com/orgball2608/insta-downloader-client/internal/schedule"
	"github.com/orgball2608/insta-downloader-client/internal/status"
	"github.com/orgball2608/insta-downloader-client/pkg/config"
	"github.com/orgball2608/insta-downloader-client/pkg/errors"
	"github.com/orgball2608/insta-downloader-client/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const reelURL = "https://www.instagram.com/reel/ABC123/"

var fixedNow = time.UnixMilli(1700000000000)

type fixture struct {
	impl    *Impl
	backend *mock_backend.MockClient
	status  *status.Machine
	tasks   *schedule.Tasks
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	client := mock_backend.NewMockClient(ctrl)

	tasks, err := schedule.New(logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = tasks.Stop() })

	cfg := &config.Config{}
	cfg.Backend.Browser = "chrome"

	machine := status.NewMachine(logger.Nop())
	impl := New(Opts{
		Config:     cfg,
		Logger:     logger.Nop(),
		Backend:    client,
		Classifier: classifier.New(),
		Resolver:   mediaproxy.New(mediaproxy.DefaultOrigin, ""),
		Status:     machine,
		Tasks:      tasks,
	})
	impl.now = func() time.Time { return fixedNow }

	return &fixture{impl: impl, backend: client, status: machine, tasks: tasks}
}

func TestFetchPreviewReelEndToEnd(t *testing.T) {
	f := newFixture(t)
	states, unsubscribe := f.status.Subscribe()
	defer unsubscribe()

	f.backend.EXPECT().
		Preview(gomock.Any(), backend.PreviewRequest{URL: reelURL, Browser: domain.BrowserChrome}).
		Return(&backend.PreviewResponse{
			Success:     true,
			MediaItems:  []backend.RawMediaItem{{URL: "https://cdn/x.mp4", MediaType: "video"}},
			ContentType: "reel",
			Raw:         []byte(`{"success":true}`),
		}, nil)

	res, err := f.impl.FetchPreview(context.Background(), reelURL, domain.BrowserChrome)
	require.NoError(t, err)

	assert.Equal(t, status.FetchingReel, (<-states).Kind)
	assert.Equal(t, status.PreviewReady, (<-states).Kind)
	assert.Equal(t, status.PreviewReady, f.status.Current().Kind)

	require.NotNil(t, res.ContentType)
	assert.Equal(t, domain.ContentTypeReel, *res.ContentType)
	assert.Equal(t, []domain.MediaItem{{
		URL:          "https://cdn/x.mp4",
		MediaType:    domain.MediaTypeVideo,
		ThumbnailURL: "https://cdn/x.mp4",
		Filename:     "instagram_reel_video_1_1700000000000.mp4",
	}}, res.Items)
	assert.Equal(t, res.Items, f.impl.Result().Items)
}

func TestFetchPreviewInvalidURLMakesNoCall(t *testing.T) {
	f := newFixture(t)

	_, err := f.impl.FetchPreview(context.Background(), "not-a-url", domain.BrowserChrome)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	st := f.status.Current()
	assert.Equal(t, status.Failed, st.Kind)
	assert.Contains(t, st.Message, "valid Instagram URL")
}

func TestFetchPreviewRejectsUnknownBrowser(t *testing.T) {
	f := newFixture(t)

	_, err := f.impl.FetchPreview(context.Background(), reelURL, domain.Browser("safari"))
	assert.True(t, errors.IsValidation(err))
	assert.Equal(t, status.Failed, f.status.Current().Kind)
}

func TestFetchPreviewDefaultsBrowser(t *testing.T) {
	f := newFixture(t)
	f.backend.EXPECT().
		Preview(gomock.Any(), backend.PreviewRequest{URL: "https://www.instagram.com/p/XYZ/", Browser: domain.BrowserChrome}).
		Return(&backend.PreviewResponse{Success: true, MediaItems: []backend.RawMediaItem{{URL: "https://cdn/a.jpg"}}}, nil)

	_, err := f.impl.FetchPreview(context.Background(), "https://www.instagram.com/p/XYZ/", "")
	require.NoError(t, err)
}

func TestFetchPreviewUnsuccessfulKeepsRawResponse(t *testing.T) {
	f := newFixture(t)
	raw := []byte(`{"success":false,"error":"Private account","debug_info":{"step":"login"}}`)
	f.backend.EXPECT().Preview(gomock.Any(), gomock.Any()).Return(&backend.PreviewResponse{
		Success:   false,
		Error:     "Private account",
		DebugInfo: []byte(`{"step":"login"}`),
		Raw:       raw,
	}, nil)

	_, err := f.impl.FetchPreview(context.Background(), "https://www.instagram.com/p/XYZ/", domain.BrowserFirefox)
	require.Error(t, err)
	assert.True(t, errors.IsEmptyResult(err))

	st := f.status.Current()
	assert.Equal(t, status.Failed, st.Kind)
	assert.Equal(t, "Private account", st.Message)
	assert.JSONEq(t, string(raw), string(f.impl.LastRawResponse()))
	assert.JSONEq(t, `{"step":"login"}`, string(f.impl.DebugInfo()))
	assert.Empty(t, f.impl.Result().Items)
}

func TestFetchPreviewZeroItems(t *testing.T) {
	f := newFixture(t)
	f.backend.EXPECT().Preview(gomock.Any(), gomock.Any()).Return(&backend.PreviewResponse{Success: true, Raw: []byte(`{"success":true}`)}, nil)

	_, err := f.impl.FetchPreview(context.Background(), "https://www.instagram.com/p/XYZ/", domain.BrowserChrome)
	assert.True(t, errors.IsEmptyResult(err))
	assert.Equal(t, "No media found", f.status.Current().Message)
}

func TestFetchPreviewTransportErrorKeepsBody(t *testing.T) {
	f := newFixture(t)
	body := []byte(`{"error":"Invalid Instagram URL","success":false}`)
	httpErr := &backend.HTTPError{StatusCode: http.StatusBadRequest, Message: "Invalid Instagram URL", Body: body}
	f.backend.EXPECT().Preview(gomock.Any(), gomock.Any()).
		Return(nil, errors.WrapWithCode(httpErr, errors.CodeTransport, httpErr.Message))

	_, err := f.impl.FetchPreview(context.Background(), "https://www.instagram.com/p/XYZ/", domain.BrowserChrome)
	assert.True(t, errors.IsTransport(err))
	assert.Equal(t, "Invalid Instagram URL", f.status.Current().Message)
	assert.JSONEq(t, string(body), string(f.impl.LastRawResponse()))
}

func TestFetchPreviewReelKeepsFirstVideoOnly(t *testing.T) {
	f := newFixture(t)
	f.backend.EXPECT().Preview(gomock.Any(), gomock.Any()).Return(&backend.PreviewResponse{
		Success:     true,
		ContentType: "reel",
		MediaItems: []backend.RawMediaItem{
			{URL: "https://cdn/cover.jpg", MediaType: "image"},
			{URL: "https://cdn/a.mp4", MediaType: "video", ThumbnailURL: "//cdn/a.jpg"},
			{URL: "https://cdn/b.mp4", MediaType: "video"},
		},
	}, nil)

	res, err := f.impl.FetchPreview(context.Background(), reelURL, domain.BrowserChrome)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "https://cdn/a.mp4", res.Items[0].URL)
	assert.Equal(t, "https://cdn/a.jpg", res.Items[0].ThumbnailURL)
	assert.Equal(t, "instagram_reel_video_1_1700000000000.mp4", res.Items[0].Filename)
}

func TestFetchPreviewReelWithoutVideoFails(t *testing.T) {
	f := newFixture(t)
	f.backend.EXPECT().Preview(gomock.Any(), gomock.Any()).Return(&backend.PreviewResponse{
		Success:     true,
		ContentType: "reel",
		MediaItems:  []backend.RawMediaItem{{URL: "https://cdn/cover.jpg"}},
	}, nil)

	_, err := f.impl.FetchPreview(context.Background(), reelURL, domain.BrowserChrome)
	assert.True(t, errors.IsEmptyResult(err))
	assert.Equal(t, status.Failed, f.status.Current().Kind)
}

func TestFetchPreviewNormalizesItems(t *testing.T) {
	f := newFixture(t)
	f.backend.EXPECT().Preview(gomock.Any(), gomock.Any()).Return(&backend.PreviewResponse{
		Success:     true,
		ContentType: "story",
		MediaItems: []backend.RawMediaItem{
			{URL: "/v/a.jpg"},
			{URL: "blob:https://x/1"},
			{URL: "//cdn/b.mp4", MediaType: "VIDEO", ThumbnailURL: "https://cdn/b.jpg"},
		},
	}, nil)

	res, err := f.impl.FetchPreview(context.Background(), "https://www.instagram.com/stories/someone/123/", domain.BrowserChromeMobile)
	require.NoError(t, err)
	require.Len(t, res.Items, 2)

	assert.Equal(t, domain.MediaItem{
		URL:          "https://www.instagram.com/v/a.jpg",
		MediaType:    domain.MediaTypeImage,
		ThumbnailURL: "https://www.instagram.com/v/a.jpg",
		Filename:     "instagram_story_image_1_1700000000000.jpg",
	}, res.Items[0])
	assert.Equal(t, domain.MediaItem{
		URL:          "https://cdn/b.mp4",
		MediaType:    domain.MediaTypeVideo,
		ThumbnailURL: "https://cdn/b.jpg",
		Filename:     "instagram_story_video_2_1700000000000.mp4",
	}, res.Items[1])
}

func TestFetchPreviewServerContentTypeWins(t *testing.T) {
	f := newFixture(t)
	f.backend.EXPECT().Preview(gomock.Any(), gomock.Any()).Return(&backend.PreviewResponse{
		Success:     true,
		ContentType: "post",
		MediaItems:  []backend.RawMediaItem{{URL: "https://cdn/a.jpg"}},
	}, nil)

	res, err := f.impl.FetchPreview(context.Background(), reelURL, domain.BrowserChrome)
	require.NoError(t, err)
	require.NotNil(t, res.ContentType)
	assert.Equal(t, domain.ContentTypePost, *res.ContentType)
}

func TestStaleResponseIsDiscarded(t *testing.T) {
	f := newFixture(t)
	release := make(chan struct{})
	entered := make(chan struct{})

	f.backend.EXPECT().
		Preview(gomock.Any(), backend.PreviewRequest{URL: "https://www.instagram.com/p/OLD/", Browser: domain.BrowserChrome}).
		DoAndReturn(func(ctx context.Context, req backend.PreviewRequest) (*backend.PreviewResponse, error) {
			close(entered)
			<-release
			return &backend.PreviewResponse{Success: true, MediaItems: []backend.RawMediaItem{{URL: "https://cdn/old.jpg"}}}, nil
		})
	f.backend.EXPECT().
		Preview(gomock.Any(), backend.PreviewRequest{URL: "https://www.instagram.com/p/NEW/", Browser: domain.BrowserChrome}).
		Return(&backend.PreviewResponse{Success: true, MediaItems: []backend.RawMediaItem{{URL: "https://cdn/new.jpg"}}}, nil)

	oldErr := make(chan error, 1)
	go func() {
		_, err := f.impl.FetchPreview(context.Background(), "https://www.instagram.com/p/OLD/", domain.BrowserChrome)
		oldErr <- err
	}()
	<-entered

	_, err := f.impl.FetchPreview(context.Background(), "https://www.instagram.com/p/NEW/", domain.BrowserChrome)
	require.NoError(t, err)

	close(release)
	assert.ErrorIs(t, <-oldErr, errors.ErrStale)

	items := f.impl.Result().Items
	require.Len(t, items, 1)
	assert.Equal(t, "https://cdn/new.jpg", items[0].URL)
	assert.Equal(t, status.PreviewReady, f.status.Current().Kind)
}

func TestResetClearsAndCancelsPendingWork(t *testing.T) {
	f := newFixture(t)
	f.backend.EXPECT().Preview(gomock.Any(), gomock.Any()).Return(&backend.PreviewResponse{
		Success: true, MediaItems: []backend.RawMediaItem{{URL: "https://cdn/a.jpg"}}, Raw: []byte(`{}`),
	}, nil)
	_, err := f.impl.FetchPreview(context.Background(), "https://www.instagram.com/p/XYZ/", domain.BrowserChrome)
	require.NoError(t, err)

	f.tasks.After(schedule.PurposeStatusRevert, time.Hour, func() {})
	f.impl.Reset()

	assert.False(t, f.tasks.Pending(schedule.PurposeStatusRevert))
	assert.Equal(t, status.Idle, f.status.Current().Kind)
	res := f.impl.Result()
	assert.Empty(t, res.Items)
	assert.Nil(t, res.ContentType)
	assert.Empty(t, f.impl.LastRawResponse())
}
