// Package mediaproxy turns media references from the backend into absolute
// URLs and same-origin proxy URLs. Nothing here returns an error: unusable
// input yields a placeholder resolution flagged with Fallback.
package mediaproxy

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/orgball2608/insta-downloader-client/pkg/config"
)

const (
	DefaultOrigin = "https://www.instagram.com"

	MediaPath     = "/api/media"
	ThumbnailPath = "/api/download/media-proxy"
)

var schemeRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.\-]*:`)

type Resolution struct {
	Absolute string
	Proxied  string
	// Fallback is set when the input could not be resolved and the
	// placeholder was returned instead.
	Fallback bool
}

type Resolver struct {
	origin    string
	proxyBase string
}

// New builds a resolver. origin is the canonical media host used for relative
// references; proxyBase is the backend origin hosting the proxy endpoints and
// may be empty to produce root-relative proxy URLs.
func New(origin, proxyBase string) *Resolver {
	origin = strings.TrimRight(strings.TrimSpace(origin), "/")
	if u, err := url.Parse(origin); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		origin = DefaultOrigin
	}
	return &Resolver{
		origin:    origin,
		proxyBase: strings.TrimRight(strings.TrimSpace(proxyBase), "/"),
	}
}

func NewFromConfig(cfg *config.Config) *Resolver {
	return New(cfg.Media.Origin, cfg.Backend.BaseURL)
}

// Resolve returns the absolute and full-quality proxied form of raw.
func (r *Resolver) Resolve(raw string) Resolution {
	abs, ok := r.absolute(raw)
	if !ok {
		return r.fallback(false)
	}
	return Resolution{Absolute: abs, Proxied: r.proxy(abs, false)}
}

// ResolveThumbnail is Resolve for gallery contexts: the proxied URL goes
// through the thumbnail endpoint with thumbnail=true.
func (r *Resolver) ResolveThumbnail(raw string) Resolution {
	abs, ok := r.absolute(raw)
	if !ok {
		return r.fallback(true)
	}
	return Resolution{Absolute: abs, Proxied: r.proxy(abs, true)}
}

// Absolute is a shorthand for Resolve(raw).Absolute.
func (r *Resolver) Absolute(raw string) string {
	return r.Resolve(raw).Absolute
}

func (r *Resolver) absolute(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}

	lower := strings.ToLower(s)
	var abs string
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		i := strings.Index(s, ":")
		abs = lower[:i] + s[i:]
	case strings.HasPrefix(s, "//"):
		abs = "https:" + s
	case strings.HasPrefix(s, "/"):
		abs = r.origin + s
	case schemeRe.MatchString(s):
		// blob:, data:, javascript: and friends cannot be proxied.
		return "", false
	default:
		abs = r.origin + "/" + s
	}

	u, err := url.Parse(abs)
	if err != nil || u.Host == "" {
		return "", false
	}
	return abs, true
}

func (r *Resolver) proxy(abs string, thumbnail bool) string {
	path := MediaPath
	if thumbnail {
		path = ThumbnailPath
	}
	q := "?url=" + url.QueryEscape(abs)
	if thumbnail {
		q += "&thumbnail=true"
	}
	return r.proxyBase + path + q
}

func (r *Resolver) fallback(thumbnail bool) Resolution {
	abs := r.origin + "/"
	return Resolution{Absolute: abs, Proxied: r.proxy(abs, thumbnail), Fallback: true}
}
