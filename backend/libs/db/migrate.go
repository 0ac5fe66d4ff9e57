package db

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

type migrationLogger struct {
	logger *zap.SugaredLogger
}

func (l migrationLogger) Printf(format string, v ...any) {
	l.logger.Infof(format, v...)
}

func (l migrationLogger) Verbose() bool {
	return false
}

// Migrate applies every pending up-migration found in dir of fsys. Each service embeds its own
// SQL files and passes a distinct migrationsTable so services can share one database.
func Migrate(sqlDB *sql.DB, fsys fs.FS, dir, migrationsTable string, logger *zap.Logger) error {
	src, err := iofs.New(fsys, dir)
	if err != nil {
		return fmt.Errorf("db: open migrations: %w", err)
	}

	driver, err := pgxmigrate.WithInstance(sqlDB, &pgxmigrate.Config{MigrationsTable: migrationsTable})
	if err != nil {
		return fmt.Errorf("db: migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		return fmt.Errorf("db: migrate instance: %w", err)
	}
	m.Log = migrationLogger{logger: logger.Sugar()}

	started := time.Now()
	err = m.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		logger.Info("no new migrations to apply", zap.String("table", migrationsTable))
		return nil
	case err != nil:
		version, dirty, _ := m.Version()
		logger.Error("migration failed",
			zap.Error(err),
			zap.Uint("version", version),
			zap.Bool("dirty", dirty),
		)
		return fmt.Errorf("db: migrate up: %w", err)
	}

	logger.Info("migrations applied",
		zap.String("table", migrationsTable),
		zap.Duration("elapsed", time.Since(started)),
	)
	return nil
}
