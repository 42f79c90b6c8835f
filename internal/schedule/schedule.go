// Package schedule keeps the client's background work in one registry keyed
// by purpose. Registering work for a purpose replaces whatever was registered
// before, so superseding events cancel stale callbacks deterministically.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/orgball2608/insta-downloader-client/pkg/logger"
	"go.uber.org/fx"
)

type Purpose string

const (
	PurposeBulkDownload   Purpose = "bulk-download"
	PurposeStatusRevert   Purpose = "status-revert"
	PurposeDiagnostics    Purpose = "diagnostics"
	PurposeArchiveCleanup Purpose = "archive-cleanup"
)

type entry struct {
	id     uint64
	timer  *time.Timer
	cancel context.CancelFunc
	job    bool
}

type Tasks struct {
	mu        sync.Mutex
	entries   map[Purpose]*entry
	nextID    uint64
	scheduler gocron.Scheduler
	logger    logger.Logger
	stopped   bool
}

func New(log logger.Logger) (*Tasks, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	scheduler.Start()

	return &Tasks{
		entries:   make(map[Purpose]*entry),
		scheduler: scheduler,
		logger:    log.WithComponent("Schedule"),
	}, nil
}

// NewFx registers shutdown of every pending task with the fx lifecycle.
func NewFx(lc fx.Lifecycle, log logger.Logger) (*Tasks, error) {
	t, err := New(log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return t.Stop()
		},
	})
	return t, nil
}

// After runs fn once after d unless the purpose is cancelled or replaced first.
func (t *Tasks) After(p Purpose, d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.cancelLocked(p)

	t.nextID++
	id := t.nextID
	e := &entry{id: id}
	e.timer = time.AfterFunc(d, func() {
		if !t.claim(p, id) {
			return
		}
		fn()
	})
	t.entries[p] = e
}

// Go runs fn in a goroutine with a context that is cancelled when the
// purpose is cancelled or replaced. The returned channel closes when fn returns.
func (t *Tasks) Go(parent context.Context, p Purpose, fn func(ctx context.Context)) <-chan struct{} {
	done := make(chan struct{})

	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		close(done)
		return done
	}
	t.cancelLocked(p)

	ctx, cancel := context.WithCancel(parent)
	t.nextID++
	id := t.nextID
	t.entries[p] = &entry{id: id, cancel: cancel}
	t.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			cancel()
			t.claim(p, id)
		}()
		fn(ctx)
	}()
	return done
}

// Every runs fn at a fixed interval on the shared gocron scheduler. Runs of the
// same purpose never overlap.
func (t *Tasks) Every(p Purpose, interval time.Duration, fn func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return fmt.Errorf("schedule is stopped")
	}
	t.cancelLocked(p)

	_, err := t.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(fn),
		gocron.WithTags(string(p)),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", p, err)
	}

	t.nextID++
	t.entries[p] = &entry{id: t.nextID, job: true}
	t.logger.Info("Scheduled recurring task", "purpose", p, "interval", interval.String())
	return nil
}

// Cancel stops whatever is registered for p and reports whether anything was.
func (t *Tasks) Cancel(p Purpose) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelLocked(p)
}

// Pending reports whether work is registered for p.
func (t *Tasks) Pending(p Purpose) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[p]
	return ok
}

func (t *Tasks) Stop() error {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return nil
	}
	t.stopped = true
	for p := range t.entries {
		t.cancelLocked(p)
	}
	t.mu.Unlock()

	if err := t.scheduler.Shutdown(); err != nil {
		t.logger.Error("Failed to shut down scheduler", "error", err)
		return err
	}
	return nil
}

// claim removes the entry for p if it is still the one identified by id.
func (t *Tasks) claim(p Purpose, id uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[p]
	if !ok || e.id != id {
		return false
	}
	delete(t.entries, p)
	return true
}

func (t *Tasks) cancelLocked(p Purpose) bool {
	e, ok := t.entries[p]
	if !ok {
		return false
	}
	delete(t.entries, p)
	if e.timer != nil {
		e.timer.Stop()
	}
	if e.cancel != nil {
		e.cancel()
	}
	if e.job {
		t.scheduler.RemoveByTags(string(p))
	}
	return true
}
