package saver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/orgball2608/insta-downloader-client/internal/domain"
	"github.com/orgball2608/insta-downloader-client/pkg/config"
	"github.com/orgball2608/insta-downloader-client/pkg/errors"
	"github.com/orgball2608/insta-downloader-client/pkg/logger"
	"go.uber.org/fx"
)

// Saver performs the save action for a downloaded blob and returns where it
// ended up.
type Saver interface {
	Save(ctx context.Context, filename string, blob domain.Blob) (string, error)
}

type Opts struct {
	fx.In

	Config *config.Config
	Logger logger.Logger
}

// FS writes blobs into a directory. Files appear atomically under their final
// name.
type FS struct {
	dir    string
	logger logger.Logger
}

var _ Saver = (*FS)(nil)

func New(opts Opts) *FS {
	return NewFS(opts.Config.Download.Dir, opts.Logger)
}

func NewFS(dir string, log logger.Logger) *FS {
	return &FS{dir: dir, logger: log.WithComponent("Saver")}
}

func (s *FS) Save(ctx context.Context, filename string, blob domain.Blob) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name, err := cleanFilename(filename)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create download dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+name+".*.part")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op once renamed
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(blob.Data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", name, err)
	}

	dst := filepath.Join(s.dir, name)
	if err := os.Rename(tmpName, dst); err != nil {
		return "", fmt.Errorf("failed to move %s into place: %w", name, err)
	}

	s.logger.Info("Saved media", "path", dst, "type", blob.MediaType, "mime", blob.MIMEType, "bytes", len(blob.Data))
	return dst, nil
}

func cleanFilename(filename string) (string, error) {
	name := strings.TrimSpace(filename)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return "", errors.Validation(fmt.Sprintf("Invalid filename %q", filename))
	}
	return name, nil
}
