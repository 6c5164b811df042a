package runlog

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS ingest_runs (
		run_id TEXT PRIMARY KEY,
		account TEXT NOT NULL,
		folder TEXT NOT NULL,
		fetched INTEGER NOT NULL,
		normalized INTEGER NOT NULL,
		indexed INTEGER NOT NULL,
		message_failures TEXT NOT NULL,
		index_failures TEXT NOT NULL,
		error TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ingest_runs_started_at ON ingest_runs(started_at)`,
}

// NewSQLiteStore opens (or creates) a SQLite run log at dbPath
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLStore, error) {
	db, err := sqlx.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// a single connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)

	return newSQLStore(db, sqliteSchema, logger)
}
