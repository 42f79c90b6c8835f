package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/orgball2608/insta-downloader-client/internal/backend"
	"github.com/orgball2608/insta-downloader-client/internal/domain"
	"github.com/orgball2608/insta-downloader-client/pkg/errors"
)

type previewRequest struct {
	URL     string         `json:"url"`
	Browser domain.Browser `json:"browser"`
}

// downloadRequest selects one item of the current preview, by 1-based index
// or by its absolute URL.
type downloadRequest struct {
	Index int    `json:"index"`
	URL   string `json:"url"`
}

type mediaView struct {
	Index               int              `json:"index"`
	MediaType           domain.MediaType `json:"media_type"`
	Filename            string           `json:"filename"`
	ProxiedURL          string           `json:"proxied_url"`
	ProxiedThumbnailURL string           `json:"proxied_thumbnail_url"`
}

type previewView struct {
	Items       []mediaView         `json:"items"`
	ContentType *domain.ContentType `json:"content_type"`
}

type recordView struct {
	ID                  string           `json:"id"`
	Filename            string           `json:"filename"`
	Type                domain.MediaType `json:"type"`
	DownloadedAt        time.Time        `json:"downloaded_at"`
	SavedPath           string           `json:"saved_path,omitempty"`
	ProxiedURL          string           `json:"proxied_url"`
	ProxiedThumbnailURL string           `json:"proxied_thumbnail_url"`
}

func (s *Server) previewView(res domain.PreviewResult) previewView {
	view := previewView{Items: make([]mediaView, 0, len(res.Items)), ContentType: res.ContentType}
	for i, item := range res.Items {
		view.Items = append(view.Items, mediaView{
			Index:               i + 1,
			MediaType:           item.MediaType,
			Filename:            item.Filename,
			ProxiedURL:          s.relay.Resolve(item.URL).Proxied,
			ProxiedThumbnailURL: s.relay.ResolveThumbnail(item.ThumbnailURL).Proxied,
		})
	}
	return view
}

func (s *Server) recordView(rec domain.DownloadRecord) recordView {
	return recordView{
		ID:                  rec.ID,
		Filename:            rec.Filename,
		Type:                rec.Type,
		DownloadedAt:        rec.DownloadedAt,
		SavedPath:           rec.SavedPath,
		ProxiedURL:          s.relay.Resolve(rec.URL).Proxied,
		ProxiedThumbnailURL: s.relay.ResolveThumbnail(rec.Thumbnail).Proxied,
	}
}

func (s *Server) fetchPreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	res, err := s.preview.FetchPreview(r.Context(), req.URL, req.Browser)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.previewView(*res))
}

func (s *Server) resetPreview(w http.ResponseWriter, r *http.Request) {
	s.preview.Reset()
	s.writeJSON(w, http.StatusOK, s.status.Current())
}

func (s *Server) downloadOne(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	item, err := selectItem(s.preview.Result().Items, req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	rec, err := s.downloads.DownloadOne(r.Context(), item)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.recordView(*rec))
}

func (s *Server) downloadAll(w http.ResponseWriter, r *http.Request) {
	batch, err := s.downloads.DownloadAll(s.ctx, s.preview.Result().Items)
	if err != nil {
		s.writeError(w, err)
		return
	}

	go func() {
		failed := 0
		for _, o := range batch.Wait() {
			if o.Err != nil {
				failed++
			}
		}
		s.logger.Info("Bulk download settled", "items", batch.Len(), "failed", failed)
	}()
	s.writeJSON(w, http.StatusAccepted, map[string]int{"queued": batch.Len()})
}

func (s *Server) relayMedia(w http.ResponseWriter, r *http.Request) {
	target, err := relayTarget(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	media, err := s.backend.FetchMedia(r.Context(), target, false, "")
	s.writeMedia(w, media, err)
}

func (s *Server) relayThumbnail(w http.ResponseWriter, r *http.Request) {
	target, err := relayTarget(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	media, err := s.backend.FetchProxy(r.Context(), target, r.URL.Query().Get("thumbnail") == "true")
	s.writeMedia(w, media, err)
}

func (s *Server) writeMedia(w http.ResponseWriter, media *backend.Media, err error) {
	if err != nil {
		s.writeError(w, err)
		return
	}

	contentType := media.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(media.Data); err != nil {
		s.logger.Error("Failed to write media", "error", err)
	}
}

func relayTarget(r *http.Request) (string, error) {
	target := strings.TrimSpace(r.URL.Query().Get("url"))
	u, err := url.Parse(target)
	if target == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", errors.Validation("Invalid media URL")
	}
	return target, nil
}

func selectItem(items []domain.MediaItem, req downloadRequest) (domain.MediaItem, error) {
	if len(items) == 0 {
		return domain.MediaItem{}, errors.ErrNothingToDownload
	}
	if req.Index > 0 {
		if req.Index > len(items) {
			return domain.MediaItem{}, errors.Validation(fmt.Sprintf("index %d out of range, preview has %d item(s)", req.Index, len(items)))
		}
		return items[req.Index-1], nil
	}
	for _, item := range items {
		if req.URL != "" && item.URL == req.URL {
			return item, nil
		}
	}
	return domain.MediaItem{}, errors.Validation("Select an item by index or url")
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(v); err != nil {
		return errors.Validation("Invalid request body")
	}
	return nil
}
