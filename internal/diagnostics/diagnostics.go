package diagnostics

import (
	"context"
	"encoding/json"
	"time"

	"github.com/orgball2608/insta-downloader-client/internal/domain"
)

// MaxLogEntries caps the diagnostics trail.
const MaxLogEntries = 20

type Target string

const (
	TargetBackend Target = "backend"
	TargetProxy   Target = "proxy"
)

// DebugSource exposes the payloads of the last preview response.
type DebugSource interface {
	DebugInfo() json.RawMessage
	LastRawResponse() json.RawMessage
}

// ProbeResult describes one settled probe. Err holds the failure reason of an
// unreachable target, or a ProxyContentMismatch for a reachable proxy that did
// not return an image.
type ProbeResult struct {
	Target    Target        `json:"target"`
	Reachable bool          `json:"reachable"`
	Latency   time.Duration `json:"latency"`
	Status    string        `json:"status"`
	Err       error         `json:"-"`
}

type Snapshot struct {
	BackendStatus    string             `json:"backend_status"`
	ProxyStatus      string             `json:"proxy_status"`
	BackendLatency   time.Duration      `json:"backend_latency"`
	ProxyLatency     time.Duration      `json:"proxy_latency"`
	BrowserAvailable *bool              `json:"browser_available,omitempty"`
	SystemInfo       *domain.SystemInfo `json:"system_info,omitempty"`
	ProxyImage       *domain.ProbeImage `json:"proxy_image,omitempty"`
	DebugInfo        json.RawMessage    `json:"debug_info,omitempty"`
	RawResponse      json.RawMessage    `json:"raw_response,omitempty"`
	Host             *domain.HostInfo   `json:"host,omitempty"`
	Logs             []string           `json:"logs"`
}

type Service interface {
	// ProbeBackend checks the liveness endpoint. A newer probe of the same
	// target supersedes this one, which then returns ErrSuperseded.
	ProbeBackend(ctx context.Context) (ProbeResult, error)
	// ProbeProxy fetches the configured test URL through the proxy.
	ProbeProxy(ctx context.Context) (ProbeResult, error)
	// Activate runs both probes concurrently.
	Activate(ctx context.Context) error
	// Schedule probes both targets at the configured interval until ctx ends.
	Schedule(ctx context.Context) error

	Logs() []domain.LogEntry
	ClearLogs()
	Snapshot(ctx context.Context) Snapshot
}
