package data

import (
	"context"
	"database/sql"

	"github.com/skilldeck/skilldeck/internal/migrate"
)

// RunMigrations creates the history schema by delegating to the migrate package.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	return migrate.Run(ctx, db)
}
