package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/mailindex/internal/config"
	"github.com/mikey/mailindex/internal/di"
)

// app holds the global flags shared by every subcommand
type app struct {
	opts di.Options
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "mailindex",
		Short: "Index a mailbox into a search engine and query it",
		Long: `
mailindex fetches a batch of messages over IMAP, normalizes them into
documents and bulk-indexes them into Elasticsearch or an embedded bleve index.

With no subcommand it runs one ingestion followed by the demo queries:

	mailindex --config ./configs/config.yaml
`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDemo(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.opts.ConfigFile, "config", "", "Path to config file")
	root.PersistentFlags().BoolVar(&a.opts.Verbose, "verbose", false, "Enable debug logging")
	root.PersistentFlags().BoolVar(&a.opts.JSONLog, "json-log", false, "Output logs in JSON format")

	root.AddCommand(
		cmdRun(a),
		cmdIngest(a),
		cmdSearch(a),
		cmdFilter(a),
		cmdRuns(a),
		cmdServe(a),
		cmdCredential(a),
	)
	return root
}

// invoke builds the container, validates the configuration and calls fn with
// its dependencies injected. Everything the container opened is closed afterwards.
func (a *app) invoke(requireMailbox bool, fn interface{}) error {
	container, err := di.BuildContainer(a.opts)
	if err != nil {
		return err
	}

	var (
		resources *di.Resources
		logger    *zap.Logger
	)
	if err := container.Invoke(func(cfg *config.Config, res *di.Resources, l *zap.Logger) error {
		resources, logger = res, l
		return cfg.Validate(requireMailbox)
	}); err != nil {
		return dig.RootCause(err)
	}
	defer func() {
		if err := resources.Close(); err != nil {
			logger.Warn("Failed to release resources", zap.Error(err))
		}
		_ = logger.Sync()
	}()

	if err := container.Invoke(fn); err != nil {
		return dig.RootCause(err)
	}
	return nil
}
