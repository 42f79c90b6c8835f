package status

import (
	"sync"
	"time"

	"github.com/orgball2608/insta-downloader-client/pkg/logger"
)

// Kind names the outermost operation in flight.
type Kind string

const (
	Idle             Kind = "idle"
	FetchingPreview  Kind = "fetching_preview"
	FetchingPost     Kind = "fetching_post"
	FetchingReel     Kind = "fetching_reel"
	FetchingStories  Kind = "fetching_stories"
	PreviewReady     Kind = "preview_ready"
	Downloading      Kind = "downloading"
	DownloadComplete Kind = "download_complete"
	DownloadFailed   Kind = "download_failed"
	Failed           Kind = "failed"
)

func (k Kind) String() string {
	return string(k)
}

// IsFetching returns true for the preview request sub-states.
func (k Kind) IsFetching() bool {
	return k == FetchingPreview || k == FetchingPost || k == FetchingReel || k == FetchingStories
}

// IsDownload returns true for the states owned by the download lifecycle.
func (k Kind) IsDownload() bool {
	return k == Downloading || k == DownloadComplete || k == DownloadFailed
}

// IsTerminal returns true when a preview request has settled.
func (k Kind) IsTerminal() bool {
	return k == PreviewReady || k == Failed
}

// State is the tagged value held by the Machine. Message carries the
// user-facing error for Failed/DownloadFailed and a short note otherwise.
type State struct {
	Kind    Kind      `json:"kind"`
	Message string    `json:"message,omitempty"`
	Since   time.Time `json:"since"`
}

const subscriberBuffer = 16

// Machine holds exactly one State at a time. Observers read it with Current
// or follow it with Subscribe; only orchestration code calls Transition.
type Machine struct {
	mu     sync.Mutex
	state  State
	subs   map[int]chan State
	nextID int
	logger logger.Logger
	now    func() time.Time
}

func NewMachine(log logger.Logger) *Machine {
	m := &Machine{
		subs:   make(map[int]chan State),
		logger: log.WithComponent("StatusMachine"),
		now:    time.Now,
	}
	m.state = State{Kind: Idle, Since: m.now()}
	return m
}

func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) Transition(kind Kind, message string) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setLocked(kind, message)
}

// TransitionIf moves to kind only while allowed(current) holds. It reports
// whether the transition happened.
func (m *Machine) TransitionIf(allowed func(Kind) bool, kind Kind, message string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !allowed(m.state.Kind) {
		return false
	}
	m.setLocked(kind, message)
	return true
}

// Subscribe returns a channel receiving every state set after the call, and a
// func that unsubscribes and closes it. A subscriber that falls behind loses
// intermediate states rather than blocking transitions.
func (m *Machine) Subscribe() (<-chan State, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	ch := make(chan State, subscriberBuffer)
	m.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subs, id)
			close(ch)
		})
	}
}

func (m *Machine) setLocked(kind Kind, message string) State {
	prev := m.state.Kind
	m.state = State{Kind: kind, Message: message, Since: m.now()}

	m.logger.Debug("Status transition", "from", prev, "to", kind, "message", message)

	for id, ch := range m.subs {
		select {
		case ch <- m.state:
		default:
			m.logger.Warn("Status subscriber is slow, dropping state", "subscriber", id, "state", kind)
		}
	}
	return m.state
}
