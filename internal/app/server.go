package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/orgball2608/insta-downloader-client/internal/backend"
	"github.com/orgball2608/insta-downloader-client/internal/diagnostics"
	"github.com/orgball2608/insta-downloader-client/internal/download"
	"github.com/orgball2608/insta-downloader-client/internal/mediaproxy"
	"github.com/orgball2608/insta-downloader-client/internal/preview"
	"github.com/orgball2608/insta-downloader-client/internal/ratelimit"
	"github.com/orgball2608/insta-downloader-client/internal/status"
	"github.com/orgball2608/insta-downloader-client/pkg/config"
	"github.com/orgball2608/insta-downloader-client/pkg/errors"
	"github.com/orgball2608/insta-downloader-client/pkg/logger"
	"go.uber.org/fx"
)

const maxRequestBody = 64 << 10

// ServerModule exposes the client over JSON: preview and download actions, a
// projection of their state with every media reference routed through the
// same-origin relay, and diagnostics running in the background.
var ServerModule = fx.Options(
	fx.Provide(NewServer),
	fx.Invoke(runServer),
	fx.Invoke(logStatusTransitions),
)

type ServerOpts struct {
	fx.In

	Config      *config.Config
	Logger      logger.Logger
	Status      *status.Machine
	Backend     backend.Client
	Preview     preview.Service
	Downloads   download.Manager
	Diagnostics diagnostics.Service
}

type Server struct {
	status      *status.Machine
	backend     backend.Client
	preview     preview.Service
	downloads   download.Manager
	diagnostics diagnostics.Service
	// relay resolves media references to root-relative URLs served by this
	// server, so renderers only ever fetch from its origin.
	relay   *mediaproxy.Resolver
	limiter ratelimit.Limiter
	logger  logger.Logger
	addr    string

	// ctx outlives single requests; bulk dispatches run under it.
	ctx    context.Context
	cancel context.CancelFunc
}

func NewServer(opts ServerOpts) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		status:      opts.Status,
		backend:     opts.Backend,
		preview:     opts.Preview,
		downloads:   opts.Downloads,
		diagnostics: opts.Diagnostics,
		relay:       mediaproxy.New(opts.Config.Media.Origin, ""),
		limiter:     ratelimit.NewInMemoryLimiter(10, time.Second, 20),
		logger:      opts.Logger.WithComponent("HTTPServer"),
		addr:        fmt.Sprintf(":%d", opts.Config.App.Port),
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("GET /status", s.getStatus)
	mux.HandleFunc("GET /preview", s.getPreview)
	mux.HandleFunc("POST /preview", s.fetchPreview)
	mux.HandleFunc("POST /preview/reset", s.resetPreview)
	mux.HandleFunc("GET /downloads", s.getDownloads)
	mux.HandleFunc("POST /downloads", s.downloadOne)
	mux.HandleFunc("POST /downloads/all", s.downloadAll)
	mux.HandleFunc("GET /history", s.getHistory)
	mux.HandleFunc("GET "+mediaproxy.MediaPath, s.relayMedia)
	mux.HandleFunc("GET "+mediaproxy.ThumbnailPath, s.relayThumbnail)
	mux.HandleFunc("GET /diagnostics", s.getDiagnostics)
	mux.HandleFunc("POST /diagnostics/probe", s.probe)
	mux.HandleFunc("POST /diagnostics/clear", s.clearLogs)
	return s.rateLimit(mux)
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if _, err := w.Write([]byte("ok")); err != nil {
		s.logger.Error("Failed to write response", "error", err)
	}
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.status.Current())
}

func (s *Server) getPreview(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.previewView(s.preview.Result()))
}

func (s *Server) getDownloads(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"any_busy": s.downloads.AnyBusy(),
		"busy":     s.downloads.BusyFlags(),
	})
}

func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	history := s.downloads.History()
	views := make([]recordView, 0, len(history))
	for _, rec := range history {
		views = append(views, s.recordView(rec))
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) getDiagnostics(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.diagnostics.Snapshot(r.Context()))
}

func (s *Server) probe(w http.ResponseWriter, r *http.Request) {
	if err := s.diagnostics.Activate(r.Context()); err != nil {
		s.logger.Info("Manual probe did not settle", "error", err)
	}
	s.writeJSON(w, http.StatusOK, s.diagnostics.Snapshot(r.Context()))
}

func (s *Server) clearLogs(w http.ResponseWriter, r *http.Request) {
	s.diagnostics.ClearLogs()
	s.writeJSON(w, http.StatusOK, s.diagnostics.Logs())
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !s.limiter.Allow(host) {
			s.logger.Warn("Rate limit exceeded", "client", host, "path", r.URL.Path)
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeJSON(w, httpStatus(err), map[string]string{"error": errors.GetMessage(err)})
}

func httpStatus(err error) int {
	switch {
	case errors.IsValidation(err), errors.Is(err, errors.ErrNothingToDownload):
		return http.StatusBadRequest
	case errors.Is(err, errors.ErrAlreadyDownloading),
		errors.Is(err, errors.ErrBulkInFlight),
		errors.Is(err, errors.ErrStale):
		return http.StatusConflict
	case errors.IsEmptyResult(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to write response", "error", err)
	}
}

func runServer(lc fx.Lifecycle, s *Server, diag diagnostics.Service, log logger.Logger) {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", s.addr)
			if err != nil {
				cancel()
				return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
			}
			log.Info("Starting server", "addr", s.addr)

			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("Server failed", "error", err)
				}
			}()

			go func() {
				if err := diag.Activate(ctx); err != nil {
					log.Info("Initial diagnostics did not settle", "error", err)
				}
			}()
			return diag.Schedule(ctx)
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			s.cancel()
			return srv.Shutdown(stopCtx)
		},
	})
}

func logStatusTransitions(lc fx.Lifecycle, machine *status.Machine, log logger.Logger) {
	states, unsubscribe := machine.Subscribe()
	log = log.WithComponent("StatusObserver")

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				for st := range states {
					log.Info("Status changed", "status", st.Kind, "message", st.Message)
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			unsubscribe()
			return nil
		},
	})
}
