package core

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IngestSettings controls a single ingestion run
type IngestSettings struct {
	Account   string
	Folder    string
	BatchSize int
	Timeout   time.Duration
}

// IngestionService fetches a batch of messages, normalizes them and bulk-indexes the result
type IngestionService struct {
	reader     MailboxReader
	normalizer Normalizer
	index      DocumentIndex
	labeler    *SpamLabeler
	runs       RunRepository
	logger     *zap.Logger
	settings   IngestSettings
}

// NewIngestionService creates a new ingestion service. labeler and runs may be nil.
func NewIngestionService(
	reader MailboxReader,
	normalizer Normalizer,
	index DocumentIndex,
	labeler *SpamLabeler,
	runs RunRepository,
	logger *zap.Logger,
	settings IngestSettings,
) *IngestionService {
	return &IngestionService{
		reader:     reader,
		normalizer: normalizer,
		index:      index,
		labeler:    labeler,
		runs:       runs,
		logger:     logger,
		settings:   settings,
	}
}

// Run performs one ingestion run. Per-message failures do not abort the run;
// they are listed in the returned report. The report is returned even on error.
func (s *IngestionService) Run(ctx context.Context) (*IngestReport, error) {
	report := &IngestReport{
		RunID:     uuid.NewString(),
		Account:   s.settings.Account,
		Folder:    s.settings.Folder,
		StartedAt: time.Now().UTC(),
	}

	runCtx := ctx
	if s.settings.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.settings.Timeout)
		defer cancel()
	}

	s.logger.Info("Starting ingestion run",
		zap.String("run_id", report.RunID),
		zap.String("account", report.Account),
		zap.String("folder", report.Folder),
		zap.Int("batch_size", s.settings.BatchSize))

	err := s.run(runCtx, report)
	report.FinishedAt = time.Now().UTC()
	if err != nil {
		report.Error = err.Error()
		s.logger.Error("Ingestion run failed",
			zap.String("run_id", report.RunID),
			zap.Error(err))
	} else {
		s.logger.Info("Ingestion run finished",
			zap.String("run_id", report.RunID),
			zap.Int("fetched", report.Fetched),
			zap.Int("normalized", report.Normalized),
			zap.Int("indexed", report.Indexed),
			zap.Int("failed", report.Failed()),
			zap.Duration("duration", report.FinishedAt.Sub(report.StartedAt)))
	}

	s.record(context.WithoutCancel(ctx), report)
	return report, err
}

func (s *IngestionService) run(ctx context.Context, report *IngestReport) error {
	raws, err := s.reader.FetchBatch(ctx, s.settings.Folder, s.settings.BatchSize)
	if err != nil {
		return err
	}
	report.Fetched = len(raws)

	docs := make([]EmailDocument, 0, len(raws))
	for _, raw := range raws {
		// Cancellation after the fetch counts against the mailbox stage, like during it
		if err := ctx.Err(); err != nil {
			return Wrap(ErrMailbox, "processing batch", err)
		}

		doc, err := s.normalize(raw)
		if err != nil {
			s.logger.Warn("Skipping message that could not be normalized",
				zap.Uint32("uid", raw.UID),
				zap.Error(err))
			report.MessageFailures = append(report.MessageFailures, MessageFailure{
				UID:    raw.UID,
				Reason: err.Error(),
			})
			continue
		}

		if s.labeler != nil {
			if err := s.labeler.Label(ctx, doc); err != nil {
				s.logger.Warn("Indexing message without spam label",
					zap.Uint32("uid", raw.UID),
					zap.Error(err))
			}
		}

		docs = append(docs, *doc)
	}
	report.Normalized = len(docs)

	if len(docs) == 0 {
		return nil
	}

	result, err := s.index.BulkIndex(ctx, docs)
	if err != nil {
		return err
	}
	report.Indexed = result.Indexed
	report.IndexFailures = result.Failed
	return nil
}

// normalize runs the normalizer inside a failure boundary so a panic on one
// message is reported like any other per-message error.
func (s *IngestionService) normalize(raw RawMessage) (doc *EmailDocument, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = Errorf(ErrMalformed, "normalize", "panic while parsing message: %v", r)
		}
	}()

	doc, err = s.normalizer.Normalize(raw)
	if err == nil && doc == nil {
		err = Errorf(ErrMalformed, "normalize", "no document produced")
	}
	return doc, err
}

func (s *IngestionService) record(ctx context.Context, report *IngestReport) {
	if s.runs == nil {
		return
	}
	if err := s.runs.Record(ctx, report); err != nil {
		s.logger.Error("Failed to record ingestion run",
			zap.String("run_id", report.RunID),
			zap.Error(err))
	}
}
