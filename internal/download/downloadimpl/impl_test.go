package downloadimpl

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/orgball2608/insta-downloader-client/internal/backend"
	mock_backend "github.com/orgball2608/insta-downloader-client/internal/backend/mocks"
	"github.com/orgball2608/insta-downloader-client/internal/domain"
	"github.com/orgball2608/insta-downloader-client/internal/mediaproxy"
	"github.com/orgball2608/insta-downloader-client/internal/saver"
	"github.com/orgball2608/insta-downloader-client/internal/schedule"
	"github.com/orgball2608/insta-downloader-client/internal/status"
	"github.com/orgball2608/insta-downloader-client/pkg/errors"
	"github.com/orgball2608/insta-downloader-client/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type fixture struct {
	m       *Impl
	backend *mock_backend.MockClient
	status  *status.Machine
	tasks   *schedule.Tasks
	dir     string
}

func newFixture(t *testing.T, settings Settings) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	client := mock_backend.NewMockClient(ctrl)

	tasks, err := schedule.New(logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = tasks.Stop() })

	dir := t.TempDir()
	machine := status.NewMachine(logger.Nop())
	m, err := NewManager(settings, client, mediaproxy.New(mediaproxy.DefaultOrigin, ""), saver.NewFS(dir, logger.Nop()), machine, tasks, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(m.Release)

	return &fixture{m: m, backend: client, status: machine, tasks: tasks, dir: dir}
}

func videoItem(url, name string) domain.MediaItem {
	return domain.MediaItem{URL: url, MediaType: domain.MediaTypeVideo, ThumbnailURL: url + ".jpg", Filename: name}
}

func media(data string) *backend.Media {
	return &backend.Media{ContentType: "video/mp4", Data: []byte(data)}
}

func TestDownloadOneBusyFlagLifecycleOnSuccess(t *testing.T) {
	f := newFixture(t, Settings{StatusRevert: time.Hour})
	item := videoItem("https://cdn/x.mp4", "instagram_reel_video_1_1.mp4")

	entered := make(chan struct{})
	release := make(chan struct{})
	f.backend.EXPECT().
		FetchMedia(gomock.Any(), "https://cdn/x.mp4", true, "instagram_reel_video_1_1.mp4").
		DoAndReturn(func(ctx context.Context, url string, download bool, filename string) (*backend.Media, error) {
			close(entered)
			<-release
			return media("video-bytes"), nil
		})

	done := make(chan *domain.DownloadRecord, 1)
	go func() {
		rec, err := f.m.DownloadOne(context.Background(), item)
		assert.NoError(t, err)
		done <- rec
	}()

	<-entered
	assert.True(t, f.m.IsBusy(item.URL))
	assert.True(t, f.m.AnyBusy())
	assert.Equal(t, status.Downloading, f.status.Current().Kind)

	close(release)
	rec := <-done
	require.NotNil(t, rec)

	assert.False(t, f.m.IsBusy(item.URL))
	assert.False(t, f.m.AnyBusy())
	assert.Empty(t, f.m.BusyFlags(), "settled urls leave the busy map")
	assert.Equal(t, status.DownloadComplete, f.status.Current().Kind)

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, item.URL, rec.URL)
	assert.Equal(t, domain.MediaTypeVideo, rec.Type)
	assert.Equal(t, item.ThumbnailURL, rec.Thumbnail)
	assert.Equal(t, []domain.DownloadRecord{*rec}, f.m.History())

	data, err := os.ReadFile(rec.SavedPath)
	require.NoError(t, err)
	assert.Equal(t, "video-bytes", string(data))
}

func TestDownloadOneBusyFlagClearedOnFailure(t *testing.T) {
	f := newFixture(t, Settings{StatusRevert: time.Hour})
	item := videoItem("https://cdn/x.mp4", "a.mp4")

	f.backend.EXPECT().FetchMedia(gomock.Any(), gomock.Any(), true, gomock.Any()).
		DoAndReturn(func(ctx context.Context, url string, download bool, filename string) (*backend.Media, error) {
			assert.True(t, f.m.IsBusy(item.URL))
			return nil, errors.WrapWithCode(&backend.HTTPError{StatusCode: 502, Message: "upstream down"}, errors.CodeTransport, "upstream down")
		})

	_, err := f.m.DownloadOne(context.Background(), item)
	require.Error(t, err)
	assert.True(t, errors.IsTransport(err))

	assert.False(t, f.m.IsBusy(item.URL))
	assert.Empty(t, f.m.History())
	st := f.status.Current()
	assert.Equal(t, status.DownloadFailed, st.Kind)
	assert.Contains(t, st.Message, "upstream down")
}

func TestDownloadOneValidationNeverMarksBusy(t *testing.T) {
	f := newFixture(t, Settings{StatusRevert: time.Hour})

	for _, url := range []string{"", "blob:https://x/1"} {
		_, err := f.m.DownloadOne(context.Background(), domain.MediaItem{URL: url})
		assert.True(t, errors.IsValidation(err), url)
	}
	assert.Empty(t, f.m.BusyFlags())
	assert.Equal(t, status.DownloadFailed, f.status.Current().Kind)
}

func TestDownloadOneRejectsDuplicate(t *testing.T) {
	f := newFixture(t, Settings{StatusRevert: time.Hour})
	item := videoItem("https://cdn/x.mp4", "a.mp4")

	entered := make(chan struct{})
	release := make(chan struct{})
	f.backend.EXPECT().FetchMedia(gomock.Any(), gomock.Any(), true, gomock.Any()).
		DoAndReturn(func(ctx context.Context, url string, download bool, filename string) (*backend.Media, error) {
			close(entered)
			<-release
			return media("x"), nil
		}).Times(1)

	first := make(chan error, 1)
	go func() {
		_, err := f.m.DownloadOne(context.Background(), item)
		first <- err
	}()
	<-entered

	_, err := f.m.DownloadOne(context.Background(), item)
	assert.ErrorIs(t, err, errors.ErrAlreadyDownloading)

	close(release)
	assert.NoError(t, <-first)
	assert.Len(t, f.m.History(), 1)
}

func TestDownloadAllPartialFailure(t *testing.T) {
	f := newFixture(t, Settings{Stagger: time.Millisecond, StatusRevert: time.Hour, MaxParallel: 3})
	items := []domain.MediaItem{
		videoItem("https://cdn/a.mp4", "a.mp4"),
		videoItem("https://cdn/b.mp4", "b.mp4"),
		videoItem("https://cdn/c.mp4", "c.mp4"),
	}

	f.backend.EXPECT().FetchMedia(gomock.Any(), "https://cdn/a.mp4", true, "a.mp4").Return(media("a"), nil)
	f.backend.EXPECT().FetchMedia(gomock.Any(), "https://cdn/b.mp4", true, "b.mp4").
		Return(nil, errors.WrapWithCode(&backend.HTTPError{StatusCode: 500, Message: "boom"}, errors.CodeTransport, "boom"))
	f.backend.EXPECT().FetchMedia(gomock.Any(), "https://cdn/c.mp4", true, "c.mp4").Return(media("c"), nil)

	batch, err := f.m.DownloadAll(context.Background(), items)
	require.NoError(t, err)
	assert.Equal(t, 3, batch.Len())

	outcomes := batch.Wait()
	require.Len(t, outcomes, 3)
	assert.NoError(t, outcomes[0].Err)
	assert.True(t, errors.IsTransport(outcomes[1].Err))
	assert.NoError(t, outcomes[2].Err)
	assert.Equal(t, items[1], outcomes[1].Item)

	assert.Len(t, f.m.History(), 2)
	assert.False(t, f.m.AnyBusy())
	assert.Empty(t, f.m.BusyFlags())
}

func TestDownloadAllNothingToDownload(t *testing.T) {
	f := newFixture(t, Settings{})

	_, err := f.m.DownloadAll(context.Background(), nil)
	assert.ErrorIs(t, err, errors.ErrNothingToDownload)
}

func TestDownloadAllRejectsWhileInFlight(t *testing.T) {
	f := newFixture(t, Settings{StatusRevert: time.Hour})
	entered := make(chan struct{})
	release := make(chan struct{})
	f.backend.EXPECT().FetchMedia(gomock.Any(), gomock.Any(), true, gomock.Any()).
		DoAndReturn(func(ctx context.Context, url string, download bool, filename string) (*backend.Media, error) {
			close(entered)
			<-release
			return media("x"), nil
		})

	batch, err := f.m.DownloadAll(context.Background(), []domain.MediaItem{videoItem("https://cdn/a.mp4", "a.mp4")})
	require.NoError(t, err)
	<-entered

	_, err = f.m.DownloadAll(context.Background(), []domain.MediaItem{videoItem("https://cdn/b.mp4", "b.mp4")})
	assert.ErrorIs(t, err, errors.ErrBulkInFlight)

	close(release)
	batch.Wait()
	assert.Eventually(t, func() bool {
		f.m.mu.Lock()
		defer f.m.mu.Unlock()
		return !f.m.bulkActive
	}, time.Second, time.Millisecond)
}

func TestCancelledDispatchSettlesRemainingItems(t *testing.T) {
	f := newFixture(t, Settings{Stagger: time.Hour, StatusRevert: time.Hour})
	f.backend.EXPECT().FetchMedia(gomock.Any(), "https://cdn/a.mp4", true, gomock.Any()).Return(media("a"), nil)

	batch, err := f.m.DownloadAll(context.Background(), []domain.MediaItem{
		videoItem("https://cdn/a.mp4", "a.mp4"),
		videoItem("https://cdn/b.mp4", "b.mp4"),
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return len(f.m.History()) == 1 }, time.Second, time.Millisecond)
	assert.True(t, f.tasks.Cancel(schedule.PurposeBulkDownload))

	outcomes := batch.Wait()
	assert.NoError(t, outcomes[0].Err)
	assert.ErrorIs(t, outcomes[1].Err, context.Canceled)
}

func TestStatusRevertsAfterDelay(t *testing.T) {
	f := newFixture(t, Settings{StatusRevert: 10 * time.Millisecond})
	f.backend.EXPECT().FetchMedia(gomock.Any(), gomock.Any(), true, gomock.Any()).Return(media("x"), nil)

	_, err := f.m.DownloadOne(context.Background(), videoItem("https://cdn/x.mp4", "x.mp4"))
	require.NoError(t, err)
	assert.Equal(t, status.DownloadComplete, f.status.Current().Kind)

	assert.Eventually(t, func() bool { return f.status.Current().Kind == status.PreviewReady }, time.Second, 2*time.Millisecond)
}

func TestStatusRevertKeepsNewerState(t *testing.T) {
	f := newFixture(t, Settings{StatusRevert: 10 * time.Millisecond})
	f.backend.EXPECT().FetchMedia(gomock.Any(), gomock.Any(), true, gomock.Any()).Return(media("x"), nil)

	_, err := f.m.DownloadOne(context.Background(), videoItem("https://cdn/x.mp4", "x.mp4"))
	require.NoError(t, err)
	f.status.Transition(status.FetchingPost, "")

	assert.Eventually(t, func() bool { return !f.tasks.Pending(schedule.PurposeStatusRevert) }, time.Second, 2*time.Millisecond)
	assert.Equal(t, status.FetchingPost, f.status.Current().Kind)
}

func TestOnRecordListener(t *testing.T) {
	f := newFixture(t, Settings{StatusRevert: time.Hour})
	f.backend.EXPECT().FetchMedia(gomock.Any(), gomock.Any(), true, gomock.Any()).Return(media("x"), nil)

	var got []domain.DownloadRecord
	f.m.OnRecord(func(rec domain.DownloadRecord) { got = append(got, rec) })

	rec, err := f.m.DownloadOne(context.Background(), domain.MediaItem{URL: "https://cdn/a.jpg"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, *rec, got[0])
	assert.Equal(t, domain.MediaTypeImage, rec.Type)
	assert.Regexp(t, `^instagram_media_image_1_\d+\.jpg$`, rec.Filename)
}
