package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upDownloadRecords, downDownloadRecords)
}

func upDownloadRecords(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
	CREATE TABLE download_records (
		id            UUID PRIMARY KEY,
		url           TEXT NOT NULL,
		filename      VARCHAR NOT NULL,
		media_type    VARCHAR(16) NOT NULL,
		downloaded_at TIMESTAMP WITH TIME ZONE NOT NULL,
		thumbnail     TEXT NOT NULL DEFAULT ''
	);
	`)
	if err != nil {
		return err
	}
	return nil
}

func downDownloadRecords(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
	DROP TABLE download_records;
	`)
	if err != nil {
		return err
	}
	return nil
}
