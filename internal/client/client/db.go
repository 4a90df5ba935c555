package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/gophledger/internal/client/migrations"
	"github.com/dmitrijs2005/gophledger/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/gophledger/internal/client/repositories/records"
	"github.com/dmitrijs2005/gophledger/internal/filex"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// Repositories bundles the local SQLite database with the repositories
// bound to it.
type Repositories struct {
	DB       *sql.DB
	Metadata metadata.Repository
	Records  *records.SQLiteRepository
}

func (r *Repositories) Close() error {
	return r.DB.Close()
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// InitDatabase opens (or creates) the SQLite database at dsn and migrates it.
func InitDatabase(ctx context.Context, dsn string) (*Repositories, error) {
	if err := filex.EnsureParentDir(dsn); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// SQLite allows one writer; a single connection keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	repos := &Repositories{
		DB:       db,
		Metadata: metadata.NewSQLiteRepository(db),
		Records:  records.NewSQLiteRepository(db),
	}
	return repos, nil
}
