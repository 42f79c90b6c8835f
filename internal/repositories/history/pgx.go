package history

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orgball2608/insta-downloader-client/internal/domain"
	"github.com/orgball2608/insta-downloader-client/internal/repositories"
	"github.com/orgball2608/insta-downloader-client/pkg/logger"

	sq "github.com/Masterminds/squirrel"
)

const table = "download_records"

type Pgx struct {
	pg     *pgxpool.Pool
	logger logger.Logger
}

func NewPgx(pg *pgxpool.Pool, logger logger.Logger) *Pgx {
	return &Pgx{
		pg:     pg,
		logger: logger.WithComponent("HistoryRepo"),
	}
}

var _ Repository = (*Pgx)(nil)

func (p *Pgx) Create(ctx context.Context, rec domain.DownloadRecord) error {
	query, args, err := insertQuery(rec)
	if err != nil {
		return repositories.ErrBadQuery
	}

	_, err = p.pg.Exec(ctx, query, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (p *Pgx) List(ctx context.Context, count int) ([]domain.DownloadRecord, error) {
	query, args, err := listQuery(count)
	if err != nil {
		return nil, repositories.ErrBadQuery
	}

	rows, err := p.pg.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.DownloadRecord
	for rows.Next() {
		var rec domain.DownloadRecord
		var mediaType string
		if err := rows.Scan(&rec.ID, &rec.URL, &rec.Filename, &mediaType, &rec.DownloadedAt, &rec.Thumbnail, &rec.SavedPath); err != nil {
			return nil, err
		}
		rec.Type = domain.ParseMediaType(mediaType)
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

func (p *Pgx) CleanupOldRecords(ctx context.Context, olderThan time.Duration) (int64, error) {
	query, args, err := repositories.SqBuilder.
		Delete(table).
		Where(sq.Lt{"downloaded_at": time.Now().Add(-olderThan)}).
		ToSql()
	if err != nil {
		return 0, repositories.ErrBadQuery
	}

	result, err := p.pg.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}

	p.logger.Info("Cleaned up old download records", "deleted", result.RowsAffected())
	return result.RowsAffected(), nil
}

func insertQuery(rec domain.DownloadRecord) (string, []interface{}, error) {
	return repositories.SqBuilder.
		Insert(table).
		Columns("id", "url", "filename", "media_type", "downloaded_at", "thumbnail", "saved_path").
		Values(rec.ID, rec.URL, rec.Filename, string(rec.Type), rec.DownloadedAt, rec.Thumbnail, rec.SavedPath).
		ToSql()
}

func listQuery(count int) (string, []interface{}, error) {
	b := repositories.SqBuilder.
		Select("id", "url", "filename", "media_type", "downloaded_at", "thumbnail", "saved_path").
		From(table).
		OrderBy("downloaded_at DESC")
	if count > 0 {
		b = b.Limit(uint64(count))
	}
	return b.ToSql()
}
