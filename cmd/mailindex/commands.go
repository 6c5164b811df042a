package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikey/mailindex/internal/config"
	"github.com/mikey/mailindex/internal/core"
	"github.com/mikey/mailindex/internal/credential"
	"github.com/mikey/mailindex/internal/ports"
)

func cmdRun(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Ingest one batch, then print the demo search and folder listing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDemo(cmd)
		},
	}
}

func (a *app) runDemo(cmd *cobra.Command) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	return a.invoke(true, func(
		cfg *config.Config,
		index core.DocumentIndex,
		ingest *core.IngestionService,
		queries *core.QueryService,
		logger *zap.Logger,
	) error {
		if err := index.EnsureIndex(ctx); err != nil {
			return err
		}

		// A failed run still leaves earlier documents to query
		report, ingestErr := ingest.Run(ctx)
		if ingestErr != nil {
			logger.Error("Ingestion failed, querying existing documents", zap.Error(ingestErr))
			fmt.Fprintf(cmd.ErrOrStderr(), "Ingestion failed: %v\n", ingestErr)
		}

		if err := demoQueries(ctx, out, cfg, queries); err != nil {
			if ingestErr != nil {
				return ingestErr
			}
			return err
		}

		if ingestErr != nil {
			return ingestErr
		}
		return partialFailure(report)
	})
}

// demoQueries prints the configured search and the listing of the ingested folder
func demoQueries(ctx context.Context, out io.Writer, cfg *config.Config, queries *core.QueryService) error {
	queryCfg := cfg.GetQuery()
	hits, err := queries.Search(ctx, queryCfg.DemoQuery, queryCfg.Limit)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Search results for '%s':\n", queryCfg.DemoQuery)
	printHits(out, hits)

	folder, account := cfg.GetIngest().Folder, cfg.GetIMAP().Account
	hits, err = queries.FilterByFolderAccount(ctx, folder, account, queryCfg.Limit)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Filtering emails in %s for %s:\n", folder, account)
	printHits(out, hits)
	return nil
}

func cmdIngest(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Ingest one batch of messages and print the run summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.invoke(true, func(index core.DocumentIndex, ingest *core.IngestionService) error {
				report, err := ingestOnce(ctx, index, ingest)
				if err != nil {
					return err
				}
				printReport(cmd.OutOrStdout(), report)
				return partialFailure(report)
			})
		},
	}
}

func cmdSearch(a *app) *cobra.Command {
	var limit int
	c := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search over subject and content",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			query := strings.Join(args, " ")
			return a.invoke(false, func(queries *core.QueryService) error {
				hits, err := queries.Search(ctx, query, limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Search results for '%s':\n", query)
				printHits(out, hits)
				return nil
			})
		},
	}
	c.Flags().IntVar(&limit, "limit", 0, "Maximum number of hits. Optional, default: query.limit")
	return c
}

func cmdFilter(a *app) *cobra.Command {
	var (
		folder  string
		account string
		limit   int
	)
	c := &cobra.Command{
		Use:   "filter",
		Short: "List documents of one folder and account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.invoke(false, func(cfg *config.Config, queries *core.QueryService) error {
				if folder == "" {
					folder = cfg.GetIngest().Folder
				}
				if account == "" {
					account = cfg.GetIMAP().Account
				}
				if account == "" {
					return core.Errorf(core.ErrConfig, "filter", "no account given and imap.account is empty")
				}

				hits, err := queries.FilterByFolderAccount(ctx, folder, account, limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Filtering emails in %s for %s:\n", folder, account)
				printHits(out, hits)
				return nil
			})
		},
	}
	c.Flags().StringVar(&folder, "folder", "", "Folder name. Optional, default: ingest.folder")
	c.Flags().StringVar(&account, "account", "", "Account. Optional, default: imap.account")
	c.Flags().IntVar(&limit, "limit", 0, "Maximum number of hits. Optional, default: query.limit")
	return c
}

func cmdRuns(a *app) *cobra.Command {
	var limit int
	c := &cobra.Command{
		Use:   "runs",
		Short: "Show recent ingestion runs from the run log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.invoke(false, func(runs core.RunRepository) error {
				reports, err := runs.Recent(ctx, limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(reports) == 0 {
					fmt.Fprintln(out, "No ingestion runs recorded")
					return nil
				}
				for i := range reports {
					printReport(out, &reports[i])
				}
				return nil
			})
		},
	}
	c.Flags().IntVar(&limit, "limit", 10, "Number of runs to show")
	return c
}

func cmdServe(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP query API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.invoke(false, func(frontend ports.Frontend, logger *zap.Logger) error {
				if err := frontend.Start(); err != nil {
					return err
				}

				<-ctx.Done()
				logger.Info("Shutting down...")

				if err := frontend.Stop(); err != nil {
					logger.Error("Failed to stop server", zap.Error(err))
				}
				logger.Info("Shutdown complete")
				return nil
			})
		},
	}
}

func cmdCredential(a *app) *cobra.Command {
	c := &cobra.Command{
		Use:   "credential",
		Short: "Manage secrets in the system keyring",
	}
	c.AddCommand(&cobra.Command{
		Use:   "set <key>",
		Short: "Store a secret read from stdin under key",
		Long: `
Stores the first line of stdin in the keyring. Point imap.password_keyring_key
at the same key to log in with it:

	echo "app-password" | mailindex credential set imap/me@example.com
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && err != io.EOF {
				return fmt.Errorf("reading secret: %w", err)
			}
			secret = strings.TrimRight(secret, "\r\n")
			if secret == "" {
				return core.Errorf(core.ErrConfig, "credential set", "empty secret")
			}

			store, err := credential.Open()
			if err != nil {
				return core.Wrap(core.ErrConfig, "opening keyring", err)
			}
			if err := store.Set(args[0], secret); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored credential %s\n", args[0])
			return nil
		},
	})
	c.AddCommand(&cobra.Command{
		Use:   "delete <key>",
		Short: "Remove a secret from the keyring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := credential.Open()
			if err != nil {
				return core.Wrap(core.ErrConfig, "opening keyring", err)
			}
			return store.Delete(args[0])
		},
	})
	return c
}

// ingestOnce makes sure the index exists and runs one ingestion
func ingestOnce(ctx context.Context, index core.DocumentIndex, ingest *core.IngestionService) (*core.IngestReport, error) {
	if err := index.EnsureIndex(ctx); err != nil {
		return nil, err
	}
	return ingest.Run(ctx)
}

// partialFailure turns a finished run with rejected messages into an ErrPartial
func partialFailure(report *core.IngestReport) error {
	if report.Failed() == 0 {
		return nil
	}
	return core.Errorf(core.ErrPartial, "ingest", "%d of %d messages were not indexed", report.Failed(), report.Fetched)
}

func printHits(out io.Writer, hits []core.DocumentSummary) {
	for _, hit := range hits {
		fmt.Fprintf(out, " %s - %s\n", hit.Subject, hit.Sender)
	}
}

func printReport(out io.Writer, report *core.IngestReport) {
	fmt.Fprintf(out, "Run %s %s/%s at %s: fetched=%d normalized=%d indexed=%d failed=%d took=%s\n",
		report.RunID,
		report.Account,
		report.Folder,
		report.StartedAt.Format(time.RFC3339),
		report.Fetched,
		report.Normalized,
		report.Indexed,
		report.Failed(),
		report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
	for _, f := range report.MessageFailures {
		fmt.Fprintf(out, "  message uid=%d: %s\n", f.UID, f.Reason)
	}
	for _, f := range report.IndexFailures {
		fmt.Fprintf(out, "  document %d (%s): %s\n", f.Position, f.Subject, f.Reason)
	}
	if report.Error != "" {
		fmt.Fprintf(out, "  error: %s\n", report.Error)
	}
}
