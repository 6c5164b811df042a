package factory

import (
	"go.uber.org/zap"

	"github.com/mikey/mailindex/internal/adapters/bleve"
	"github.com/mikey/mailindex/internal/adapters/elasticsearch"
	"github.com/mikey/mailindex/internal/config"
	"github.com/mikey/mailindex/internal/core"
)

// Index is a document index that holds resources until closed
type Index interface {
	core.DocumentIndex
	Close() error
}

// IndexFactory creates the search backend selected by configuration
type IndexFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewIndexFactory creates a new index factory
func NewIndexFactory(cfg *config.Config, logger *zap.Logger) *IndexFactory {
	return &IndexFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateIndex creates the document index for search.backend
func (f *IndexFactory) CreateIndex() (Index, error) {
	searchCfg := f.cfg.GetSearch()

	switch searchCfg.Backend {
	case "elasticsearch":
		settings := elasticsearch.Settings{
			URLs:     searchCfg.Elasticsearch.URLs,
			Username: searchCfg.Elasticsearch.Username,
			Password: searchCfg.Elasticsearch.Password,
			Index:    searchCfg.Index,
			Shards:   searchCfg.Elasticsearch.Shards,
			Replicas: searchCfg.Elasticsearch.Replicas,
			Refresh:  searchCfg.Elasticsearch.Refresh,
			Sniff:    searchCfg.Elasticsearch.Sniff,
		}
		client, err := elasticsearch.Connect(settings)
		if err != nil {
			return nil, err
		}
		f.logger.Debug("Using Elasticsearch backend",
			zap.Strings("urls", settings.URLs),
			zap.String("index", settings.Index))
		return elasticsearch.NewIndex(client, settings, f.logger), nil
	case "bleve":
		f.logger.Debug("Using bleve backend", zap.String("path", searchCfg.Bleve.Path))
		return bleve.NewIndex(searchCfg.Bleve.Path, f.logger), nil
	default:
		return nil, core.Errorf(core.ErrConfig, "creating index", "unsupported search backend: %s", searchCfg.Backend)
	}
}
