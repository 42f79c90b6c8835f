package app

import (
	"github.com/orgball2608/insta-downloader-client/internal/archive"
	"github.com/orgball2608/insta-downloader-client/internal/backend"
	"github.com/orgball2608/insta-downloader-client/internal/backend/backendimpl"
	"github.com/orgball2608/insta-downloader-client/internal/classifier"
	"github.com/orgball2608/insta-downloader-client/internal/diagnostics"
	"github.com/orgball2608/insta-downloader-client/internal/diagnostics/diagnosticsimpl"
	"github.com/orgball2608/insta-downloader-client/internal/download"
	"github.com/orgball2608/insta-downloader-client/internal/download/downloadimpl"
	"github.com/orgball2608/insta-downloader-client/internal/mediaproxy"
	"github.com/orgball2608/insta-downloader-client/internal/preview"
	"github.com/orgball2608/insta-downloader-client/internal/preview/previewimpl"
	"github.com/orgball2608/insta-downloader-client/internal/repositories/history"
	"github.com/orgball2608/insta-downloader-client/internal/saver"
	"github.com/orgball2608/insta-downloader-client/internal/schedule"
	"github.com/orgball2608/insta-downloader-client/internal/status"
	"github.com/orgball2608/insta-downloader-client/internal/telegram/telegramimpl"
	"github.com/orgball2608/insta-downloader-client/pkg/config"
	"github.com/orgball2608/insta-downloader-client/pkg/logger"
	"github.com/orgball2608/insta-downloader-client/pkg/pgx"
	"go.uber.org/fx"
)

// Module wires the client core. The Postgres archive is added only when
// configured.
func Module(cfg *config.Config) fx.Option {
	return fx.Options(
		fx.Supply(cfg),
		fx.Provide(
			logger.FxOption,
			classifier.NewFromConfig,
			mediaproxy.NewFromConfig,
			status.NewMachine,
			schedule.NewFx,
			telegramimpl.New,
		),
		fx.Provide(
			fx.Annotate(
				backendimpl.New,
				fx.As(new(backend.Client)),
			),
			fx.Annotate(
				saver.New,
				fx.As(new(saver.Saver)),
			),
			fx.Annotate(
				previewimpl.New,
				fx.As(new(preview.Service)),
			),
			fx.Annotate(
				downloadimpl.New,
				fx.As(new(download.Manager)),
			),
			fx.Annotate(
				diagnosticsimpl.New,
				fx.As(new(diagnostics.Service)),
			),
		),
		archiveModule(cfg),
	)
}

func archiveModule(cfg *config.Config) fx.Option {
	if !cfg.ArchiveEnabled() {
		return fx.Options()
	}
	return fx.Options(
		fx.Provide(pgx.New),
		history.Module,
		fx.Provide(archive.Register),
		fx.Invoke(func(*archive.Archiver) {}),
	)
}
