package core

import (
	"context"
)

// MailboxReader pulls a bounded batch of raw messages from a mail server
type MailboxReader interface {
	// FetchBatch returns the first limit messages of folder
	FetchBatch(ctx context.Context, folder string, limit int) ([]RawMessage, error)
}

// Normalizer turns a raw message into an indexable document
type Normalizer interface {
	Normalize(raw RawMessage) (*EmailDocument, error)
}

// DocumentIndex is the search engine holding email documents
type DocumentIndex interface {
	// EnsureIndex creates the index with its field mapping unless it already exists
	EnsureIndex(ctx context.Context) error

	// BulkIndex writes all documents in a single bulk request
	BulkIndex(ctx context.Context, docs []EmailDocument) (*BulkResult, error)

	// Search runs a full-text match over subject and content
	Search(ctx context.Context, query string, limit int) ([]DocumentSummary, error)

	// FilterByFolderAccount returns documents whose folder and account match exactly
	FilterByFolderAccount(ctx context.Context, folder, account string, limit int) ([]DocumentSummary, error)
}

// Classifier labels a document as spam or not
type Classifier interface {
	Classify(ctx context.Context, doc *EmailDocument) (*SpamVerdict, error)
}

// RunRepository keeps the history of ingestion runs
type RunRepository interface {
	// Record stores the report of a finished run
	Record(ctx context.Context, report *IngestReport) error

	// Recent returns up to n reports, newest first
	Recent(ctx context.Context, n int) ([]IngestReport, error)
}
