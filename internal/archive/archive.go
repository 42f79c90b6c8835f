// Package archive copies every new download record into the history
// repository. The session history of the download manager stays the source of
// truth; archive failures are logged and never surface to callers.
package archive

import (
	"context"
	"sync"
	"time"

	"github.com/orgball2608/insta-downloader-client/internal/domain"
	"github.com/orgball2608/insta-downloader-client/internal/download"
	"github.com/orgball2608/insta-downloader-client/internal/repositories/history"
	"github.com/orgball2608/insta-downloader-client/internal/schedule"
	"github.com/orgball2608/insta-downloader-client/pkg/config"
	"github.com/orgball2608/insta-downloader-client/pkg/errors"
	"github.com/orgball2608/insta-downloader-client/pkg/logger"
	"github.com/orgball2608/insta-downloader-client/pkg/retry"
	"go.uber.org/fx"
)

const (
	writeTimeout   = 10 * time.Second
	cleanupTimeout = 5 * time.Minute
)

type Opts struct {
	fx.In

	LC        fx.Lifecycle
	Config    *config.Config
	Logger    logger.Logger
	Repo      history.Repository
	Downloads download.Manager
	Tasks     *schedule.Tasks
}

type Archiver struct {
	repo     history.Repository
	logger   logger.Logger
	retryCfg retry.Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func New(repo history.Repository, log logger.Logger, cfg retry.Config) *Archiver {
	ctx, cancel := context.WithCancel(context.Background())
	return &Archiver{
		repo:     repo,
		logger:   log.WithComponent("Archive"),
		retryCfg: cfg,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Register subscribes an Archiver to the download manager for the lifetime of
// the fx app and schedules the retention cleanup.
func Register(opts Opts) (*Archiver, error) {
	a := New(opts.Repo, opts.Logger, retry.DefaultConfig())
	opts.Downloads.OnRecord(a.Archive)

	if retention := opts.Config.Archive.Retention; retention > 0 {
		err := opts.Tasks.Every(schedule.PurposeArchiveCleanup, opts.Config.Archive.CleanupInterval, func() {
			a.cleanup(retention)
		})
		if err != nil {
			return nil, err
		}
	}

	opts.LC.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			a.Close(ctx)
			return nil
		},
	})
	return a, nil
}

// Archive writes rec in the background. Records arriving after Close are
// dropped.
func (a *Archiver) Archive(rec domain.DownloadRecord) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		a.logger.Warn("Archive is closed, dropping download record", "id", rec.ID)
		return
	}
	a.wg.Add(1)
	a.mu.Unlock()

	go func() {
		defer a.wg.Done()

		err := retry.Do(a.ctx, a.logger, "archive download record", func() error {
			ctx, cancel := context.WithTimeout(a.ctx, writeTimeout)
			defer cancel()

			err := a.repo.Create(ctx, rec)
			if errors.Is(err, history.ErrAlreadyExists) {
				return nil
			}
			return err
		}, a.retryCfg)
		if err != nil {
			a.logger.Error("Failed to archive download record", "id", rec.ID, "url", rec.URL, "error", err)
			return
		}
		a.logger.Debug("Archived download record", "id", rec.ID)
	}()
}

// Recent returns up to count archived records, newest first.
func (a *Archiver) Recent(ctx context.Context, count int) ([]domain.DownloadRecord, error) {
	return a.repo.List(ctx, count)
}

func (a *Archiver) cleanup(retention time.Duration) {
	if a.ctx.Err() != nil {
		return
	}
	a.logger.Info("Starting archive cleanup", "retention", retention.String())

	ctx, cancel := context.WithTimeout(a.ctx, cleanupTimeout)
	defer cancel()

	deleted, err := a.repo.CleanupOldRecords(ctx, retention)
	if err != nil {
		a.logger.Error("Failed to clean up archived records", "error", err)
		return
	}
	a.logger.Info("Archive cleanup completed", "rows_deleted", deleted)
}

// Flush waits for every pending write.
func (a *Archiver) Flush() {
	a.wg.Wait()
}

// Close waits for pending writes until ctx ends, then abandons the rest.
func (a *Archiver) Close(ctx context.Context) {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		a.logger.Warn("Abandoning pending archive writes")
		a.cancel()
		<-done
	}
	a.cancel()
}
