package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/mikey/mailindex/internal/adapters/runlog"
	"github.com/mikey/mailindex/internal/config"
	"github.com/mikey/mailindex/internal/core"
)

// RunLog is a run repository that holds resources until closed
type RunLog interface {
	core.RunRepository
	Close() error
}

// RunLogFactory creates run log repositories based on configuration
type RunLogFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewRunLogFactory creates a new run log factory
func NewRunLogFactory(cfg *config.Config, logger *zap.Logger) *RunLogFactory {
	return &RunLogFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateRunLog creates a run log based on the configuration
func (f *RunLogFactory) CreateRunLog() (RunLog, error) {
	runlogCfg := f.cfg.GetRunLog()

	switch runlogCfg.Type {
	case "memory":
		return runlog.NewMemoryStore(f.logger), nil
	case "sqlite":
		// Ensure directory exists
		if dir := filepath.Dir(runlogCfg.SQLitePath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
			}
		}
		return runlog.NewSQLiteStore(runlogCfg.SQLitePath, f.logger)
	case "mysql":
		return runlog.NewMySQLStore(runlogCfg.MySQLDSN, f.logger)
	default:
		return nil, core.Errorf(core.ErrConfig, "creating run log", "unsupported run log type: %s", runlogCfg.Type)
	}
}
