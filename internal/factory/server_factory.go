package factory

import (
	"go.uber.org/zap"

	"github.com/mikey/mailindex/internal/adapters/httpapi"
	"github.com/mikey/mailindex/internal/config"
	"github.com/mikey/mailindex/internal/core"
	"github.com/mikey/mailindex/internal/ports"
)

// ServerFactory creates the HTTP query API
type ServerFactory struct {
	cfg     *config.Config
	logger  *zap.Logger
	queries *core.QueryService
	runs    core.RunRepository
}

// NewServerFactory creates a new server factory
func NewServerFactory(cfg *config.Config, logger *zap.Logger, queries *core.QueryService, runs core.RunRepository) *ServerFactory {
	return &ServerFactory{
		cfg:     cfg,
		logger:  logger,
		queries: queries,
		runs:    runs,
	}
}

// CreateFrontend creates the HTTP server from the server settings
func (f *ServerFactory) CreateFrontend() (ports.Frontend, error) {
	serverCfg := f.cfg.GetServer()
	if serverCfg.ListenAddress == "" {
		return nil, core.Errorf(core.ErrConfig, "creating server", "server.listen_address is empty")
	}
	return httpapi.NewServer(f.queries, f.runs, f.logger, serverCfg.ListenAddress, serverCfg.CORSOrigins), nil
}
