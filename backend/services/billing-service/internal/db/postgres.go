package db

import (
	"embed"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	libdb "careportal/backend/libs/db"
)

const migrationsTable = "billing_schema_migrations"

//go:embed migrations/*.sql
var migrations embed.FS

// NewPostgres returns shared DB connection with the billing schema applied.
func NewPostgres(dsn string, logger *zap.Logger) (*sqlx.DB, error) {
	db, err := libdb.NewPostgresX(dsn)
	if err != nil {
		return nil, err
	}
	if err := libdb.Migrate(db.DB, migrations, "migrations", migrationsTable, logger); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
