package di

import (
	"context"
	"errors"
	"io"
	"sync"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/mailindex/internal/adapters/message"
	"github.com/mikey/mailindex/internal/config"
	"github.com/mikey/mailindex/internal/core"
	"github.com/mikey/mailindex/internal/factory"
	"github.com/mikey/mailindex/internal/logging"
	"github.com/mikey/mailindex/internal/ports"
	"github.com/mikey/mailindex/internal/utils"
)

// Options carries the global command line flags into the container
type Options struct {
	ConfigFile string
	Verbose    bool
	JSONLog    bool
}

// Resources collects everything the container opened so it can be closed in
// reverse order when the command finishes
type Resources struct {
	mu      sync.Mutex
	closers []io.Closer
}

func (r *Resources) add(c interface{}) {
	closer, ok := c.(io.Closer)
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closers = append(r.closers, closer)
}

// Close closes every registered resource, newest first
func (r *Resources) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// BuildContainer creates and configures a dependency injection container.
// Providers are lazy, so a command only opens the adapters it resolves.
func BuildContainer(opts Options) (*dig.Container, error) {
	container := dig.New()

	if err := container.Provide(func() *Resources { return &Resources{} }); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func() (*config.Config, error) {
		cfg, err := config.New(opts.ConfigFile)
		if err != nil {
			return nil, core.Wrap(core.ErrConfig, "loading configuration", err)
		}
		if opts.Verbose {
			cfg.Set("logging.level", "debug")
		}
		if opts.JSONLog {
			cfg.Set("logging.format", "json")
		}
		return cfg, nil
	}); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register factories
	for _, constructor := range []interface{}{
		factory.NewIndexFactory,
		factory.NewRunLogFactory,
		factory.NewClassifierFactory,
		factory.NewMailboxFactory,
		factory.NewServerFactory,
	} {
		if err := container.Provide(constructor); err != nil {
			return nil, err
		}
	}

	// Register text processor
	if err := container.Provide(utils.NewTextProcessor); err != nil {
		return nil, err
	}

	// Register document index
	if err := container.Provide(func(f *factory.IndexFactory, res *Resources) (core.DocumentIndex, error) {
		index, err := f.CreateIndex()
		if err != nil {
			return nil, err
		}
		res.add(index)
		return index, nil
	}); err != nil {
		return nil, err
	}

	// Register run log
	if err := container.Provide(func(f *factory.RunLogFactory, res *Resources) (core.RunRepository, error) {
		runs, err := f.CreateRunLog()
		if err != nil {
			return nil, err
		}
		res.add(runs)
		return runs, nil
	}); err != nil {
		return nil, err
	}

	// Register optional spam labeler
	if err := container.Provide(func(f *factory.ClassifierFactory, res *Resources) (*core.SpamLabeler, error) {
		classifier, err := f.CreateClassifier(context.Background())
		if err != nil {
			return nil, err
		}
		res.add(classifier)
		return f.CreateSpamLabeler(classifier), nil
	}); err != nil {
		return nil, err
	}

	// Register mailbox reader and normalizer
	if err := container.Provide(func(f *factory.MailboxFactory) (core.MailboxReader, error) {
		return f.CreateReader(context.Background())
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(text *utils.TextProcessor, logger *zap.Logger) core.Normalizer {
		return message.NewNormalizer(text, logger)
	}); err != nil {
		return nil, err
	}

	// Register query service
	if err := container.Provide(func(index core.DocumentIndex, cfg *config.Config, logger *zap.Logger) *core.QueryService {
		return core.NewQueryService(index, logger, cfg.GetQuery().Limit)
	}); err != nil {
		return nil, err
	}

	// Register ingestion service
	if err := container.Provide(func(
		reader core.MailboxReader,
		normalizer core.Normalizer,
		index core.DocumentIndex,
		labeler *core.SpamLabeler,
		runs core.RunRepository,
		cfg *config.Config,
		logger *zap.Logger,
	) *core.IngestionService {
		ingest := cfg.GetIngest()
		return core.NewIngestionService(reader, normalizer, index, labeler, runs, logger, core.IngestSettings{
			Account:   cfg.GetIMAP().Account,
			Folder:    ingest.Folder,
			BatchSize: ingest.BatchSize,
			Timeout:   ingest.Timeout,
		})
	}); err != nil {
		return nil, err
	}

	// Register HTTP frontend
	if err := container.Provide(func(f *factory.ServerFactory) (ports.Frontend, error) {
		return f.CreateFrontend()
	}); err != nil {
		return nil, err
	}

	return container, nil
}
