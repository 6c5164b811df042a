package runlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/mikey/mailindex/internal/core"
)

// runRow is the persisted form of a report; failure lists are stored as JSON
type runRow struct {
	RunID           string    `db:"run_id"`
	Account         string    `db:"account"`
	Folder          string    `db:"folder"`
	Fetched         int       `db:"fetched"`
	Normalized      int       `db:"normalized"`
	Indexed         int       `db:"indexed"`
	MessageFailures string    `db:"message_failures"`
	IndexFailures   string    `db:"index_failures"`
	Error           string    `db:"error"`
	StartedAt       time.Time `db:"started_at"`
	FinishedAt      time.Time `db:"finished_at"`
}

const insertRun = `
	INSERT INTO ingest_runs (run_id, account, folder, fetched, normalized, indexed,
		message_failures, index_failures, error, started_at, finished_at)
	VALUES (:run_id, :account, :folder, :fetched, :normalized, :indexed,
		:message_failures, :index_failures, :error, :started_at, :finished_at)
`

const selectRecent = `
	SELECT run_id, account, folder, fetched, normalized, indexed,
		message_failures, index_failures, error, started_at, finished_at
	FROM ingest_runs
	ORDER BY started_at DESC
`

// SQLStore persists run reports in a SQL database through sqlx
type SQLStore struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func newSQLStore(db *sqlx.DB, schema []string, logger *zap.Logger) (*SQLStore, error) {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create run log schema: %w", err)
		}
	}
	return &SQLStore{db: db, logger: logger}, nil
}

// Record inserts a run report
func (s *SQLStore) Record(ctx context.Context, report *core.IngestReport) error {
	row, err := toRow(report)
	if err != nil {
		return err
	}
	if _, err := s.db.NamedExecContext(ctx, insertRun, row); err != nil {
		return fmt.Errorf("failed to insert run %s: %w", report.RunID, err)
	}
	s.logger.Debug("Recorded run", zap.String("run_id", report.RunID))
	return nil
}

// Recent returns up to n runs, newest first. n <= 0 returns every run.
func (s *SQLStore) Recent(ctx context.Context, n int) ([]core.IngestReport, error) {
	query := selectRecent
	var args []interface{}
	if n > 0 {
		query += " LIMIT ?"
		args = append(args, n)
	}

	var rows []runRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query recent runs: %w", err)
	}

	reports := make([]core.IngestReport, 0, len(rows))
	for _, row := range rows {
		report, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func toRow(report *core.IngestReport) (*runRow, error) {
	msgFailures, err := json.Marshal(nonNil(report.MessageFailures))
	if err != nil {
		return nil, fmt.Errorf("failed to encode message failures: %w", err)
	}
	idxFailures, err := json.Marshal(nonNil(report.IndexFailures))
	if err != nil {
		return nil, fmt.Errorf("failed to encode index failures: %w", err)
	}
	return &runRow{
		RunID:           report.RunID,
		Account:         report.Account,
		Folder:          report.Folder,
		Fetched:         report.Fetched,
		Normalized:      report.Normalized,
		Indexed:         report.Indexed,
		MessageFailures: string(msgFailures),
		IndexFailures:   string(idxFailures),
		Error:           report.Error,
		StartedAt:       report.StartedAt.UTC(),
		FinishedAt:      report.FinishedAt.UTC(),
	}, nil
}

func fromRow(row runRow) (core.IngestReport, error) {
	report := core.IngestReport{
		RunID:      row.RunID,
		Account:    row.Account,
		Folder:     row.Folder,
		Fetched:    row.Fetched,
		Normalized: row.Normalized,
		Indexed:    row.Indexed,
		Error:      row.Error,
		StartedAt:  row.StartedAt.UTC(),
		FinishedAt: row.FinishedAt.UTC(),
	}
	if err := decodeList(row.MessageFailures, &report.MessageFailures); err != nil {
		return report, fmt.Errorf("failed to decode message failures of run %s: %w", row.RunID, err)
	}
	if err := decodeList(row.IndexFailures, &report.IndexFailures); err != nil {
		return report, fmt.Errorf("failed to decode index failures of run %s: %w", row.RunID, err)
	}
	return report, nil
}

func decodeList(raw string, v interface{}) error {
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), v)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
