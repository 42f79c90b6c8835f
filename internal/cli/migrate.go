package cli

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	_ "github.com/orgball2608/insta-downloader-client/internal/migrations"
	"github.com/orgball2608/insta-downloader-client/pkg/config"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
)

// Migrations are registered in Go, so goose only needs a placeholder directory.
const migrationsDir = "."

var migrateActions = map[string]func(db *sql.DB, dir string, opts ...goose.OptionsFunc) error{
	"up":     goose.Up,
	"down":   goose.Down,
	"status": goose.Status,
	"reset":  goose.Reset,
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status|reset]",
		Short:     "Manage the download history archive schema",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "status", "reset"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.New()
			if err != nil {
				return err
			}
			if !cfg.ArchiveEnabled() {
				return fmt.Errorf("POSTGRES_HOST is not set")
			}

			if err := goose.SetDialect("postgres"); err != nil {
				return fmt.Errorf("failed to set dialect: %w", err)
			}

			db, err := sql.Open("postgres", cfg.GetDSN())
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer db.Close()

			if err := migrateActions[args[0]](db, migrationsDir); err != nil {
				return fmt.Errorf("migrate %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrate %s finished\n", args[0])
			return nil
		},
	}
}
