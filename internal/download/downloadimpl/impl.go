package downloadimpl

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/orgball2608/insta-downloader-client/internal/backend"
	"github.com/orgball2608/insta-downloader-client/internal/domain"
	"github.com/orgball2608/insta-downloader-client/internal/download"
	"github.com/orgball2608/insta-downloader-client/internal/mediaproxy"
	"github.com/orgball2608/insta-downloader-client/internal/ratelimit"
	"github.com/orgball2608/insta-downloader-client/internal/saver"
	"github.com/orgball2608/insta-downloader-client/internal/schedule"
	"github.com/orgball2608/insta-downloader-client/internal/status"
	"github.com/orgball2608/insta-downloader-client/pkg/config"
	"github.com/orgball2608/insta-downloader-client/pkg/errors"
	"github.com/orgball2608/insta-downloader-client/pkg/logger"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/fx"
)

const (
	defaultMaxParallel  = 4
	defaultStatusRevert = 3 * time.Second
)

type Opts struct {
	fx.In

	LC       fx.Lifecycle
	Config   *config.Config
	Logger   logger.Logger
	Backend  backend.Client
	Resolver *mediaproxy.Resolver
	Saver    saver.Saver
	Status   *status.Machine
	Tasks    *schedule.Tasks
}

type Settings struct {
	Stagger      time.Duration
	StatusRevert time.Duration
	MaxParallel  int
}

type Impl struct {
	backend  backend.Client
	resolver *mediaproxy.Resolver
	saver    saver.Saver
	status   *status.Machine
	tasks    *schedule.Tasks
	logger   logger.Logger
	pool     *ants.Pool
	newPacer func() ratelimit.Pacer
	revert   time.Duration
	now      func() time.Time

	mu         sync.Mutex
	busy       map[string]bool
	history    []domain.DownloadRecord
	listeners  []download.RecordListener
	bulkActive bool
}

var _ download.Manager = (*Impl)(nil)

func New(opts Opts) (*Impl, error) {
	m, err := NewManager(Settings{
		Stagger:      opts.Config.Download.Stagger,
		StatusRevert: opts.Config.Download.StatusRevert,
		MaxParallel:  opts.Config.Download.MaxParallel,
	}, opts.Backend, opts.Resolver, opts.Saver, opts.Status, opts.Tasks, opts.Logger)
	if err != nil {
		return nil, err
	}

	opts.LC.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			m.Release()
			return nil
		},
	})
	return m, nil
}

func NewManager(
	settings Settings,
	client backend.Client,
	resolver *mediaproxy.Resolver,
	s saver.Saver,
	machine *status.Machine,
	tasks *schedule.Tasks,
	log logger.Logger,
) (*Impl, error) {
	size := settings.MaxParallel
	if size <= 0 {
		size = defaultMaxParallel
	}
	pool, err := ants.NewPool(size, ants.WithPreAlloc(true))
	if err != nil {
		return nil, fmt.Errorf("failed to create download pool: %w", err)
	}

	revert := settings.StatusRevert
	if revert <= 0 {
		revert = defaultStatusRevert
	}
	stagger := settings.Stagger

	return &Impl{
		backend:  client,
		resolver: resolver,
		saver:    s,
		status:   machine,
		tasks:    tasks,
		logger:   log.WithComponent("Download"),
		pool:     pool,
		newPacer: func() ratelimit.Pacer { return ratelimit.NewPacer(stagger) },
		revert:   revert,
		now:      time.Now,
		busy:     make(map[string]bool),
	}, nil
}

// Release stops the worker pool. Items already submitted finish first.
func (m *Impl) Release() {
	m.pool.Release()
}

func (m *Impl) DownloadOne(ctx context.Context, item domain.MediaItem) (*domain.DownloadRecord, error) {
	res := m.resolver.Resolve(item.URL)
	if strings.TrimSpace(item.URL) == "" || res.Fallback {
		err := errors.Validation("Invalid media URL")
		m.fail(err)
		return nil, err
	}

	m.mu.Lock()
	if m.busy[item.URL] {
		m.mu.Unlock()
		m.logger.Info("Download already in progress", "url", item.URL)
		return nil, errors.ErrAlreadyDownloading
	}
	m.busy[item.URL] = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.busy, item.URL)
		m.mu.Unlock()
	}()

	mediaType := item.MediaType
	if mediaType == "" {
		mediaType = domain.MediaTypeImage
	}
	filename := item.Filename
	if filename == "" {
		filename = fmt.Sprintf("instagram_media_%s_1_%d.%s", mediaType, m.now().UnixMilli(), mediaType.Extension())
	}

	m.status.Transition(status.Downloading, filename)
	m.logger.Info("Downloading media", "url", res.Absolute, "filename", filename)

	media, err := m.backend.FetchMedia(ctx, res.Absolute, true, filename)
	if err != nil {
		m.logger.Warn("Media request failed", "url", res.Absolute, "error", err)
		m.fail(err)
		return nil, err
	}

	blob := domain.Blob{
		MediaType: mediaType,
		MIMEType:  mediaType.MIMEType(),
		Data:      media.Data,
	}
	path, err := m.saver.Save(ctx, filename, blob)
	if err != nil {
		m.logger.Error("Failed to save media", "filename", filename, "error", err)
		m.fail(err)
		return nil, err
	}

	rec := domain.DownloadRecord{
		ID:           uuid.NewString(),
		URL:          item.URL,
		Filename:     filename,
		Type:         mediaType,
		DownloadedAt: m.now(),
		Thumbnail:    item.ThumbnailURL,
		SavedPath:    path,
	}

	m.mu.Lock()
	m.history = append(m.history, rec)
	listeners := append([]download.RecordListener(nil), m.listeners...)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(rec)
	}

	m.status.Transition(status.DownloadComplete, filename)
	m.scheduleRevert()
	m.logger.Info("Download complete", "url", item.URL, "path", path, "bytes", len(media.Data))
	return &rec, nil
}

func (m *Impl) DownloadAll(ctx context.Context, items []domain.MediaItem) (*download.Batch, error) {
	if len(items) == 0 {
		return nil, errors.ErrNothingToDownload
	}

	m.mu.Lock()
	if m.bulkActive || m.anyBusyLocked() {
		m.mu.Unlock()
		return nil, errors.ErrBulkInFlight
	}
	m.bulkActive = true
	m.mu.Unlock()

	items = append([]domain.MediaItem(nil), items...)
	batch := download.NewBatch(items)
	go func() {
		<-batch.Done()
		m.mu.Lock()
		m.bulkActive = false
		m.mu.Unlock()
	}()

	pacer := m.newPacer()
	m.logger.Info("Starting bulk download", "items", len(items))

	started := false
	dispatched := m.tasks.Go(ctx, schedule.PurposeBulkDownload, func(dispatchCtx context.Context) {
		started = true
		for i, item := range items {
			if err := pacer.Wait(dispatchCtx); err != nil {
				m.logger.Info("Bulk download dispatch stopped", "dispatched", i, "total", len(items))
				for j := i; j < len(items); j++ {
					batch.Settle(j, nil, context.Canceled)
				}
				return
			}

			idx, it := i, item
			err := m.pool.Submit(func() {
				rec, err := m.DownloadOne(ctx, it)
				batch.Settle(idx, rec, err)
			})
			if err != nil {
				m.logger.Error("Failed to submit download to pool", "url", it.URL, "error", err)
				batch.Settle(idx, nil, err)
			}
		}
	})
	go func() {
		<-dispatched
		if !started {
			for i := range items {
				batch.Settle(i, nil, context.Canceled)
			}
		}
	}()

	return batch, nil
}

func (m *Impl) IsBusy(url string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.busy[url]
}

func (m *Impl) AnyBusy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.anyBusyLocked()
}

func (m *Impl) BusyFlags() map[string]bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	flags := make(map[string]bool, len(m.busy))
	for k, v := range m.busy {
		flags[k] = v
	}
	return flags
}

func (m *Impl) History() []domain.DownloadRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.DownloadRecord(nil), m.history...)
}

func (m *Impl) OnRecord(fn download.RecordListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// busy only holds in-flight URLs; settled ones are removed.
func (m *Impl) anyBusyLocked() bool {
	return len(m.busy) > 0
}

func (m *Impl) fail(err error) {
	m.status.Transition(status.DownloadFailed, "Download failed: "+errors.GetMessage(err))
	m.scheduleRevert()
}

// scheduleRevert returns a lingering download banner to preview_ready unless
// another operation has taken over the status in the meantime.
func (m *Impl) scheduleRevert() {
	m.tasks.After(schedule.PurposeStatusRevert, m.revert, func() {
		m.status.TransitionIf(status.Kind.IsDownload, status.PreviewReady, "")
	})
}
