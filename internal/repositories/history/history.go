package history

import (
	"context"
	"errors"
	"time"

	"github.com/orgball2608/insta-downloader-client/internal/domain"
)

var ErrAlreadyExists = errors.New("download record already exists")

//go:generate go run go.uber.org/mock/mockgen -source=history.go -destination=mocks/mock.go
type Repository interface {
	// Create archives a download record
	Create(ctx context.Context, rec domain.DownloadRecord) error

	// List returns the newest records first, limited by count
	List(ctx context.Context, count int) ([]domain.DownloadRecord, error)

	// CleanupOldRecords deletes records downloaded before now minus olderThan
	CleanupOldRecords(ctx context.Context, olderThan time.Duration) (int64, error)
}
