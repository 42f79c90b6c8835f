package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upDownloadRecordsSavedPath, downDownloadRecordsSavedPath)
}

func upDownloadRecordsSavedPath(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		ALTER TABLE download_records ADD COLUMN saved_path TEXT NOT NULL DEFAULT '';
		CREATE INDEX download_records_downloaded_at_idx ON download_records (downloaded_at DESC);
	`)
	if err != nil {
		return err
	}
	return nil
}

func downDownloadRecordsSavedPath(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		DROP INDEX download_records_downloaded_at_idx;
		ALTER TABLE download_records DROP COLUMN saved_path;
	`)
	if err != nil {
		return err
	}
	return nil
}
