package runlog

import (
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS ingest_runs (
		run_id VARCHAR(36) PRIMARY KEY,
		account VARCHAR(255) NOT NULL,
		folder VARCHAR(255) NOT NULL,
		fetched INT NOT NULL,
		normalized INT NOT NULL,
		indexed INT NOT NULL,
		message_failures TEXT NOT NULL,
		index_failures TEXT NOT NULL,
		error TEXT NOT NULL,
		started_at DATETIME(6) NOT NULL,
		finished_at DATETIME(6) NOT NULL,
		INDEX idx_started_at (started_at)
	)`,
}

// NewMySQLStore connects to MySQL and makes sure the run log table exists.
// The DSN must set parseTime=true.
func NewMySQLStore(dsn string, logger *zap.Logger) (*SQLStore, error) {
	db, err := sqlx.Connect("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	return newSQLStore(db, mysqlSchema, logger)
}
