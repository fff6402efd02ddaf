package database

import (
	"context"
	"database/sql"

	"blocklist/internal/apperror"
	"blocklist/internal/database/migrations"

	"github.com/charmbracelet/log"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// Migrate applies the embedded schema on a dedicated connection that is closed before
// returning, so the pool never sees migration traffic.
func Migrate(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return apperror.Wrap(apperror.KindMigration, err, "open migration connection")
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.Warn("migration connection close failed", "error", cerr)
		}
	}()

	return migrate(ctx, db)
}

func migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(log.Default())

	if err := goose.SetDialect("postgres"); err != nil {
		return apperror.Wrap(apperror.KindMigration, err, "select dialect")
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return apperror.Wrap(apperror.KindMigration, err, "apply migrations")
	}

	version, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return apperror.Wrap(apperror.KindMigration, err, "read schema version")
	}
	log.Info("database migrations applied", "version", version)
	return nil
}
