package download

import (
	"context"
	"sync"

	"github.com/orgball2608/insta-downloader-client/internal/domain"
)

type RecordListener func(domain.DownloadRecord)

type Manager interface {
	// DownloadOne retrieves item through the proxy, saves it and appends a
	// history record. A URL already being downloaded is rejected.
	DownloadOne(ctx context.Context, item domain.MediaItem) (*domain.DownloadRecord, error)
	// DownloadAll dispatches one DownloadOne per item at the stagger interval
	// and returns without waiting for them.
	DownloadAll(ctx context.Context, items []domain.MediaItem) (*Batch, error)

	IsBusy(url string) bool
	AnyBusy() bool
	BusyFlags() map[string]bool

	History() []domain.DownloadRecord
	OnRecord(fn RecordListener)
}

// Outcome is the terminal result of one item of a bulk download.
type Outcome struct {
	Item   domain.MediaItem
	Record *domain.DownloadRecord
	Err    error
}

// Batch tracks the items of one bulk download. Every item settles exactly once.
type Batch struct {
	outcomes []Outcome
	wg       sync.WaitGroup
	done     chan struct{}
}

func NewBatch(items []domain.MediaItem) *Batch {
	b := &Batch{
		outcomes: make([]Outcome, len(items)),
		done:     make(chan struct{}),
	}
	for i, item := range items {
		b.outcomes[i].Item = item
	}
	b.wg.Add(len(items))
	go func() {
		b.wg.Wait()
		close(b.done)
	}()
	return b
}

func (b *Batch) Settle(i int, rec *domain.DownloadRecord, err error) {
	b.outcomes[i].Record = rec
	b.outcomes[i].Err = err
	b.wg.Done()
}

func (b *Batch) Len() int {
	return len(b.outcomes)
}

// Done is closed once every item has settled.
func (b *Batch) Done() <-chan struct{} {
	return b.done
}

// Wait blocks until every item has settled and returns the outcomes in input order.
func (b *Batch) Wait() []Outcome {
	<-b.done
	return append([]Outcome(nil), b.outcomes...)
}
