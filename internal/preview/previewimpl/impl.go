package previewimpl

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/orgball2608/insta-downloader-client/internal/backend"
	"github.com/orgball2608/insta-downloader-client/internal/classifier"
	"github.com/orgball2608/insta-downloader-client/internal/domain"
	"github.com/orgball2608/insta-downloader-client/internal/mediaproxy"
	"github.com/orgball2608/insta-downloader-client/internal/preview"
	"github.com/orgball2608/insta-downloader-client/internal/schedule"
	"github.com/orgball2608/insta-downloader-client/internal/status"
	"github.com/orgball2608/insta-downloader-client/pkg/config"
	"github.com/orgball2608/insta-downloader-client/pkg/errors"
	"github.com/orgball2608/insta-downloader-client/pkg/logger"
	"go.uber.org/fx"
)

const (
	msgInvalidURL     = "Please enter a valid Instagram URL"
	msgNoMedia        = "No media found"
	msgNoVideoInReel  = "No video found in reel"
	msgInvalidBrowser = "Unsupported browser mode"
)

type Opts struct {
	fx.In

	Config     *config.Config
	Logger     logger.Logger
	Backend    backend.Client
	Classifier *classifier.Classifier
	Resolver   *mediaproxy.Resolver
	Status     *status.Machine
	Tasks      *schedule.Tasks
}

type Impl struct {
	backend        backend.Client
	classifier     *classifier.Classifier
	resolver       *mediaproxy.Resolver
	status         *status.Machine
	tasks          *schedule.Tasks
	logger         logger.Logger
	defaultBrowser domain.Browser
	now            func() time.Time

	mu        sync.Mutex
	seq       uint64
	result    domain.PreviewResult
	debugInfo json.RawMessage
}

var _ preview.Service = (*Impl)(nil)

func New(opts Opts) *Impl {
	browser := domain.Browser(opts.Config.Backend.Browser)
	if !browser.Valid() {
		browser = domain.BrowserChrome
	}
	return &Impl{
		backend:        opts.Backend,
		classifier:     opts.Classifier,
		resolver:       opts.Resolver,
		status:         opts.Status,
		tasks:          opts.Tasks,
		logger:         opts.Logger.WithComponent("Preview"),
		defaultBrowser: browser,
		now:            time.Now,
	}
}

func (p *Impl) FetchPreview(ctx context.Context, rawURL string, browser domain.Browser) (*domain.PreviewResult, error) {
	p.cancelPending()

	verdict := p.classifier.Classify(rawURL)

	p.mu.Lock()
	p.seq++
	seq := p.seq
	p.result = domain.PreviewResult{}
	p.debugInfo = nil

	if !verdict.Valid {
		p.status.Transition(status.Failed, msgInvalidURL)
		p.mu.Unlock()
		p.logger.Info("Rejected preview request", "url", rawURL)
		return nil, errors.Validation(msgInvalidURL)
	}

	if browser == "" {
		browser = p.defaultBrowser
	}
	if !browser.Valid() {
		p.status.Transition(status.Failed, msgInvalidBrowser)
		p.mu.Unlock()
		return nil, errors.Validation(fmt.Sprintf("%s: %q", msgInvalidBrowser, browser))
	}

	p.status.Transition(fetchingKind(verdict.Category), "")
	p.mu.Unlock()

	p.logger.Info("Requesting preview", "url", rawURL, "category", verdict.Category, "browser", browser, "seq", seq)
	resp, err := p.backend.Preview(ctx, backend.PreviewRequest{URL: rawURL, Browser: browser})

	p.mu.Lock()
	defer p.mu.Unlock()

	if seq != p.seq {
		p.logger.Debug("Discarding stale preview response", "seq", seq, "latest", p.seq)
		return nil, errors.ErrStale
	}

	if err != nil {
		p.result.RawResponse = rawJSON(backend.ResponseBody(err))
		p.status.Transition(status.Failed, errors.GetMessage(err))
		p.logger.Warn("Preview request failed", "url", rawURL, "error", err)
		return nil, err
	}

	p.result.RawResponse = rawJSON(resp.Raw)
	p.debugInfo = resp.DebugInfo

	if !resp.Success || len(resp.MediaItems) == 0 {
		msg := resp.Error.String()
		if msg == "" {
			msg = msgNoMedia
		}
		p.status.Transition(status.Failed, msg)
		p.logger.Info("Preview returned no media", "url", rawURL, "success", resp.Success, "message", msg)
		return nil, errors.EmptyResult(msg)
	}

	contentType := domain.ParseContentType(resp.ContentType)
	raws := resp.MediaItems
	if contentType != nil && *contentType == domain.ContentTypeReel {
		raws = firstVideo(raws)
		if len(raws) == 0 {
			p.status.Transition(status.Failed, msgNoVideoInReel)
			return nil, errors.EmptyResult(msgNoVideoInReel)
		}
	}

	items := p.normalize(raws, contentType)
	if len(items) == 0 {
		p.status.Transition(status.Failed, msgNoMedia)
		return nil, errors.EmptyResult(msgNoMedia)
	}

	p.result.Items = items
	p.result.ContentType = contentType
	p.status.Transition(status.PreviewReady, fmt.Sprintf("%d item(s) found", len(items)))
	p.logger.Info("Preview ready", "url", rawURL, "items", len(items), "content_type", resp.ContentType)

	res := p.copyResultLocked()
	return &res, nil
}

func (p *Impl) Reset() {
	p.cancelPending()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	p.result = domain.PreviewResult{}
	p.debugInfo = nil
	p.status.Transition(status.Idle, "")
}

func (p *Impl) Result() domain.PreviewResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.copyResultLocked()
}

func (p *Impl) LastRawResponse() json.RawMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append(json.RawMessage(nil), p.result.RawResponse...)
}

func (p *Impl) DebugInfo() json.RawMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append(json.RawMessage(nil), p.debugInfo...)
}

// cancelPending drops work tied to the previous catalog.
func (p *Impl) cancelPending() {
	if p.tasks == nil {
		return
	}
	p.tasks.Cancel(schedule.PurposeBulkDownload)
	p.tasks.Cancel(schedule.PurposeStatusRevert)
}

func (p *Impl) normalize(raws []backend.RawMediaItem, contentType *domain.ContentType) []domain.MediaItem {
	label := "media"
	if contentType != nil {
		label = string(*contentType)
	}
	millis := p.now().UnixMilli()

	items := make([]domain.MediaItem, 0, len(raws))
	for _, raw := range raws {
		res := p.resolver.Resolve(raw.URL)
		if res.Fallback {
			p.logger.Warn("Skipping media item with unusable url", "url", raw.URL)
			continue
		}

		thumb := res.Absolute
		if raw.ThumbnailURL != "" {
			if t := p.resolver.Resolve(raw.ThumbnailURL); !t.Fallback {
				thumb = t.Absolute
			}
		}

		mediaType := domain.ParseMediaType(raw.MediaType)
		items = append(items, domain.MediaItem{
			URL:          res.Absolute,
			MediaType:    mediaType,
			ThumbnailURL: thumb,
			Filename:     fmt.Sprintf("instagram_%s_%s_%d_%d.%s", label, mediaType, len(items)+1, millis, mediaType.Extension()),
		})
	}
	return items
}

func (p *Impl) copyResultLocked() domain.PreviewResult {
	res := domain.PreviewResult{
		RawResponse: append(json.RawMessage(nil), p.result.RawResponse...),
	}
	if p.result.Items != nil {
		res.Items = append([]domain.MediaItem(nil), p.result.Items...)
	}
	if p.result.ContentType != nil {
		ct := *p.result.ContentType
		res.ContentType = &ct
	}
	return res
}

func firstVideo(raws []backend.RawMediaItem) []backend.RawMediaItem {
	for _, raw := range raws {
		if domain.ParseMediaType(raw.MediaType) == domain.MediaTypeVideo {
			return []backend.RawMediaItem{raw}
		}
	}
	return nil
}

func fetchingKind(c classifier.Category) status.Kind {
	switch c {
	case classifier.CategoryStory:
		return status.FetchingStories
	case classifier.CategoryReel:
		return status.FetchingReel
	case classifier.CategoryPost:
		return status.FetchingPost
	default:
		return status.FetchingPreview
	}
}

// rawJSON keeps b verbatim when it is JSON and quotes it otherwise.
func rawJSON(b []byte) json.RawMessage {
	if len(b) == 0 {
		return nil
	}
	if json.Valid(b) {
		return append(json.RawMessage(nil), b...)
	}
	quoted, err := json.Marshal(string(b))
	if err != nil {
		return nil
	}
	return quoted
}
