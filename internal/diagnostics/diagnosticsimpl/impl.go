package diagnosticsimpl

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/orgball2608/insta-downloader-client/internal/backend"
	"github.com/orgball2608/insta-downloader-client/internal/diagnostics"
	"github.com/orgball2608/insta-downloader-client/internal/domain"
	"github.com/orgball2608/insta-downloader-client/internal/preview"
	"github.com/orgball2608/insta-downloader-client/internal/schedule"
	"github.com/orgball2608/insta-downloader-client/internal/telegram"
	"github.com/orgball2608/insta-downloader-client/pkg/config"
	"github.com/orgball2608/insta-downloader-client/pkg/errors"
	"github.com/orgball2608/insta-downloader-client/pkg/formatter"
	"github.com/orgball2608/insta-downloader-client/pkg/logger"
	"go.uber.org/fx"
	"golang.org/x/sync/errgroup"
)

const (
	defaultInterval  = 5 * time.Minute
	maxErrorBodyLen  = 200
	statusNotChecked = "Not checked"
)

type Opts struct {
	fx.In

	Config   *config.Config
	Logger   logger.Logger
	Backend  backend.Client
	Tasks    *schedule.Tasks
	Telegram telegram.Client
	Preview  preview.Service
}

type Settings struct {
	ProxyTestURL string
	Interval     time.Duration
}

type probeSlot struct {
	gen    uint64
	cancel context.CancelFunc
}

type Impl struct {
	backend  backend.Client
	tasks    *schedule.Tasks
	alerts   telegram.Client
	debug    diagnostics.DebugSource
	logger   logger.Logger
	settings Settings
	now      func() time.Time
	hostInfo func(ctx context.Context) (*domain.HostInfo, error)

	mu               sync.Mutex
	entries          []domain.LogEntry
	slots            map[diagnostics.Target]*probeSlot
	last             map[diagnostics.Target]diagnostics.ProbeResult
	browserAvailable *bool
	systemInfo       *domain.SystemInfo
	proxyImage       *domain.ProbeImage
}

var _ diagnostics.Service = (*Impl)(nil)

func New(opts Opts) *Impl {
	return NewService(Settings{
		ProxyTestURL: opts.Config.Diagnostics.ProxyTestURL,
		Interval:     opts.Config.Diagnostics.Interval,
	}, opts.Backend, opts.Tasks, opts.Telegram, opts.Preview, opts.Logger)
}

func NewService(
	settings Settings,
	client backend.Client,
	tasks *schedule.Tasks,
	alerts telegram.Client,
	debug diagnostics.DebugSource,
	log logger.Logger,
) *Impl {
	if settings.Interval <= 0 {
		settings.Interval = defaultInterval
	}
	return &Impl{
		backend:  client,
		tasks:    tasks,
		alerts:   alerts,
		debug:    debug,
		logger:   log.WithComponent("Diagnostics"),
		settings: settings,
		now:      time.Now,
		hostInfo: collectHostInfo,
		slots: map[diagnostics.Target]*probeSlot{
			diagnostics.TargetBackend: {},
			diagnostics.TargetProxy:   {},
		},
		last: make(map[diagnostics.Target]diagnostics.ProbeResult),
	}
}

func (d *Impl) ProbeBackend(ctx context.Context) (diagnostics.ProbeResult, error) {
	ctx, gen := d.begin(ctx, diagnostics.TargetBackend)
	start := d.now()
	resp, err := d.backend.Health(ctx)
	elapsed := d.now().Sub(start)

	res := diagnostics.ProbeResult{Target: diagnostics.TargetBackend, Latency: elapsed}
	var line string
	if err != nil {
		res.Err = err
		res.Status = "Error: " + errors.GetMessage(err)
		line = fmt.Sprintf("Backend unreachable after %s: %s", formatter.FormatLatency(elapsed), errors.GetMessage(err))
	} else {
		res.Reachable = true
		res.Status = fmt.Sprintf("Connected (%s)", formatter.FormatLatency(elapsed))
		line = fmt.Sprintf("Backend reachable in %s, browser available: %t", formatter.FormatLatency(elapsed), resp.BrowserAvailable)
	}

	return d.commit(res, gen, func() {
		d.appendLocked(line)
		if resp == nil {
			return
		}
		available := resp.BrowserAvailable
		d.browserAvailable = &available
		if resp.SystemInfo != nil {
			info := *resp.SystemInfo
			d.systemInfo = &info
		}
	})
}

func (d *Impl) ProbeProxy(ctx context.Context) (diagnostics.ProbeResult, error) {
	ctx, gen := d.begin(ctx, diagnostics.TargetProxy)
	start := d.now()
	media, err := d.backend.FetchMedia(ctx, d.settings.ProxyTestURL, false, "")
	elapsed := d.now().Sub(start)

	res := diagnostics.ProbeResult{Target: diagnostics.TargetProxy, Latency: elapsed}
	var lines []string
	var img *domain.ProbeImage

	switch {
	case err != nil:
		res.Err = err
		res.Status = "Error: " + errors.GetMessage(err)
		lines = append(lines, fmt.Sprintf("Proxy test failed after %s: %s", formatter.FormatLatency(elapsed), errors.GetMessage(err)))
		if body := backend.ResponseBody(err); len(body) > 0 {
			lines = append(lines, "Proxy error body: "+formatter.Truncate(string(body), maxErrorBodyLen))
		}
	default:
		res.Reachable = true
		var inspectErr error
		img, inspectErr = inspectImage(media)
		if inspectErr != nil {
			res.Err = inspectErr
			res.Status = fmt.Sprintf("Unexpected content (%s)", formatter.FormatLatency(elapsed))
			lines = append(lines, fmt.Sprintf("Proxy responded in %s with unexpected content: %s", formatter.FormatLatency(elapsed), errors.GetMessage(inspectErr)))
		} else {
			res.Status = fmt.Sprintf("Working (%s)", formatter.FormatLatency(elapsed))
			lines = append(lines, fmt.Sprintf("Proxy returned %s in %s (%s)", img.ContentType, formatter.FormatLatency(elapsed), describeImage(img)))
		}
	}

	return d.commit(res, gen, func() {
		for _, line := range lines {
			d.appendLocked(line)
		}
		if img != nil {
			d.proxyImage = img
		}
	})
}

func (d *Impl) Activate(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error {
		_, err := d.ProbeBackend(ctx)
		return err
	})
	g.Go(func() error {
		_, err := d.ProbeProxy(ctx)
		return err
	})
	return g.Wait()
}

func (d *Impl) Schedule(ctx context.Context) error {
	err := d.tasks.Every(schedule.PurposeDiagnostics, d.settings.Interval, func() {
		if err := d.Activate(ctx); err != nil && !errors.Is(err, errors.ErrSuperseded) {
			d.logger.Warn("Scheduled diagnostics failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		d.tasks.Cancel(schedule.PurposeDiagnostics)
		d.logger.Info("Stopped scheduled diagnostics")
	}()
	return nil
}

func (d *Impl) Logs() []domain.LogEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.LogEntry(nil), d.entries...)
}

func (d *Impl) ClearLogs() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = []domain.LogEntry{{At: d.now(), Message: "Logs cleared"}}
}

func (d *Impl) Snapshot(ctx context.Context) diagnostics.Snapshot {
	d.mu.Lock()
	snap := diagnostics.Snapshot{
		BackendStatus: statusOf(d.last, diagnostics.TargetBackend),
		ProxyStatus:   statusOf(d.last, diagnostics.TargetProxy),
		Logs:          make([]string, 0, len(d.entries)),
	}
	snap.BackendLatency = d.last[diagnostics.TargetBackend].Latency
	snap.ProxyLatency = d.last[diagnostics.TargetProxy].Latency
	if d.browserAvailable != nil {
		v := *d.browserAvailable
		snap.BrowserAvailable = &v
	}
	if d.systemInfo != nil {
		info := *d.systemInfo
		snap.SystemInfo = &info
	}
	if d.proxyImage != nil {
		img := *d.proxyImage
		snap.ProxyImage = &img
	}
	for _, e := range d.entries {
		snap.Logs = append(snap.Logs, e.String())
	}
	d.mu.Unlock()

	if d.debug != nil {
		snap.DebugInfo = d.debug.DebugInfo()
		snap.RawResponse = d.debug.LastRawResponse()
	}
	if d.hostInfo != nil {
		host, err := d.hostInfo(ctx)
		if err != nil {
			d.logger.Debug("Failed to collect host info", "error", err)
		} else {
			snap.Host = host
		}
	}
	return snap
}

// begin supersedes any running probe of target and returns the context and
// generation of the new one.
func (d *Impl) begin(ctx context.Context, target diagnostics.Target) (context.Context, uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	slot := d.slots[target]
	if slot.cancel != nil {
		slot.cancel()
		d.logger.Debug("Superseding running probe", "target", target, "generation", slot.gen)
	}
	slot.gen++
	probeCtx, cancel := context.WithCancel(ctx)
	slot.cancel = cancel
	return probeCtx, slot.gen
}

// commit stores res and runs apply under the lock unless a newer probe of the
// same target has started.
func (d *Impl) commit(res diagnostics.ProbeResult, gen uint64, apply func()) (diagnostics.ProbeResult, error) {
	d.mu.Lock()
	slot := d.slots[res.Target]
	if slot.gen != gen {
		d.mu.Unlock()
		return res, errors.ErrSuperseded
	}
	slot.cancel()
	slot.cancel = nil

	prev, seen := d.last[res.Target]
	d.last[res.Target] = res
	apply()
	d.mu.Unlock()

	if res.Err != nil && !errors.IsProxyContentMismatch(res.Err) {
		d.logger.Warn("Probe failed", "target", res.Target, "status", res.Status, "error", res.Err)
	} else {
		d.logger.Info("Probe settled", "target", res.Target, "status", res.Status)
	}

	if seen && prev.Reachable && !res.Reachable {
		d.alert(res)
	}
	return res, nil
}

func (d *Impl) alert(res diagnostics.ProbeResult) {
	if d.alerts == nil {
		return
	}
	title := fmt.Sprintf("%s unreachable", capitalize(string(res.Target)))
	if err := d.alerts.SendAlert(title, res.Status); err != nil {
		d.logger.Error("Failed to send diagnostics alert", "target", res.Target, "error", err)
	}
}

func (d *Impl) appendLocked(message string) {
	entry := domain.LogEntry{At: d.now(), Message: message}
	d.entries = append([]domain.LogEntry{entry}, d.entries...)
	if len(d.entries) > diagnostics.MaxLogEntries {
		d.entries = d.entries[:diagnostics.MaxLogEntries]
	}
}

func statusOf(last map[diagnostics.Target]diagnostics.ProbeResult, target diagnostics.Target) string {
	if res, ok := last[target]; ok {
		return res.Status
	}
	return statusNotChecked
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
