package diagnosticsimpl

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"mime"
	"strings"

	"github.com/orgball2608/insta-downloader-client/internal/backend"
	"github.com/orgball2608/insta-downloader-client/internal/domain"
	"github.com/orgball2608/insta-downloader-client/pkg/errors"
	"github.com/orgball2608/insta-downloader-client/pkg/formatter"
	_ "golang.org/x/image/webp"
)

// inspectImage materializes an image proxy response. Anything that is not an
// image/* response is a ProxyContentMismatch.
func inspectImage(media *backend.Media) (*domain.ProbeImage, error) {
	contentType := media.ContentType
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	if !strings.HasPrefix(mediaType, "image/") {
		if mediaType == "" {
			mediaType = "none"
		}
		return nil, errors.NewWithCode(errors.CodeProxyContentMismatch, "unexpected content type "+mediaType)
	}

	img := &domain.ProbeImage{ContentType: mediaType, Size: len(media.Data)}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(media.Data))
	if err == nil {
		img.Width = cfg.Width
		img.Height = cfg.Height
		img.Format = format
	}
	return img, nil
}

func describeImage(img *domain.ProbeImage) string {
	size := formatter.FormatBytes(uint64(img.Size))
	if img.Format == "" {
		return size + ", not decodable"
	}
	return fmt.Sprintf("%s, %s %dx%d", size, img.Format, img.Width, img.Height)
}
