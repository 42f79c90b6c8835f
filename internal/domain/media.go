package domain

import (
	"encoding/json"
	"strings"
)

// MediaType is the kind of a single media resource.
type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

// ParseMediaType maps an upstream value to a MediaType. Anything that is not
// a video is an image.
func ParseMediaType(s string) MediaType {
	if strings.EqualFold(strings.TrimSpace(s), string(MediaTypeVideo)) {
		return MediaTypeVideo
	}
	return MediaTypeImage
}

// Extension returns the file extension used when saving this media type.
func (t MediaType) Extension() string {
	if t == MediaTypeVideo {
		return "mp4"
	}
	return "jpg"
}

// MIMEType returns the MIME type attached to saved payloads of this type.
func (t MediaType) MIMEType() string {
	if t == MediaTypeVideo {
		return "video/mp4"
	}
	return "image/jpeg"
}

// ContentType is the kind of Instagram content a URL points at.
type ContentType string

const (
	ContentTypePost    ContentType = "post"
	ContentTypeReel    ContentType = "reel"
	ContentTypeStory   ContentType = "story"
	ContentTypeProfile ContentType = "profile"
)

// ParseContentType returns nil for unknown or empty values.
func ParseContentType(s string) *ContentType {
	switch ct := ContentType(strings.ToLower(strings.TrimSpace(s))); ct {
	case ContentTypePost, ContentTypeReel, ContentTypeStory, ContentTypeProfile:
		return &ct
	case "stories":
		story := ContentTypeStory
		return &story
	default:
		return nil
	}
}

// Browser is the extraction mode requested from the backend.
type Browser string

const (
	BrowserChrome       Browser = "chrome"
	BrowserFirefox      Browser = "firefox"
	BrowserChromeMobile Browser = "chrome-mobile"
)

func (b Browser) Valid() bool {
	switch b {
	case BrowserChrome, BrowserFirefox, BrowserChromeMobile:
		return true
	}
	return false
}

// MediaItem is a normalized, immutable media reference. URL and ThumbnailURL
// are always absolute.
type MediaItem struct {
	URL          string    `json:"url"`
	MediaType    MediaType `json:"media_type"`
	ThumbnailURL string    `json:"thumbnail_url"`
	Filename     string    `json:"filename"`
}

// PreviewResult is replaced wholesale on every preview request.
type PreviewResult struct {
	Items       []MediaItem     `json:"items"`
	ContentType *ContentType    `json:"content_type"`
	RawResponse json.RawMessage `json:"raw_response,omitempty"`
}

// Blob is a downloaded payload typed by its declared media type.
type Blob struct {
	MediaType MediaType
	MIMEType  string
	Data      []byte
}
