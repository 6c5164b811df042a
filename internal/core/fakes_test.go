package core

import (
	"context"
	"errors"
	"sync"
)

type fakeReader struct {
	msgs  []RawMessage
	err   error
	calls int
	limit int
}

func (f *fakeReader) FetchBatch(ctx context.Context, folder string, limit int) ([]RawMessage, error) {
	f.calls++
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.msgs, nil
}

// fakeNormalizer reads the subject straight from the payload; "bad" fails and "panic" panics
type fakeNormalizer struct{}

func (fakeNormalizer) Normalize(raw RawMessage) (*EmailDocument, error) {
	switch string(raw.Bytes) {
	case "bad":
		return nil, Errorf(ErrMalformed, "normalize", "unparseable header block")
	case "panic":
		panic("nil map write")
	case "nil":
		return nil, nil
	}
	return &EmailDocument{
		Subject: string(raw.Bytes),
		Sender:  "sender@example.com",
		Folder:  raw.Folder,
		Account: raw.Account,
	}, nil
}

type fakeIndex struct {
	mu       sync.Mutex
	docs     []EmailDocument
	bulkErr  error
	reject   map[int]string
	bulks    int
	hits     []DocumentSummary
	queryErr error
	lastText string
	lastArgs []string
	lastLim  int
}

func (f *fakeIndex) EnsureIndex(ctx context.Context) error { return nil }

func (f *fakeIndex) BulkIndex(ctx context.Context, docs []EmailDocument) (*BulkResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bulks++
	if f.bulkErr != nil {
		return nil, f.bulkErr
	}
	res := &BulkResult{Failed: []ItemFailure{}}
	for i, d := range docs {
		if reason, ok := f.reject[i]; ok {
			res.Failed = append(res.Failed, ItemFailure{Position: i, Subject: d.Subject, Reason: reason})
			continue
		}
		f.docs = append(f.docs, d)
		res.Indexed++
	}
	return res, nil
}

func (f *fakeIndex) Search(ctx context.Context, query string, limit int) ([]DocumentSummary, error) {
	f.lastText = query
	f.lastLim = limit
	return f.hits, f.queryErr
}

func (f *fakeIndex) FilterByFolderAccount(ctx context.Context, folder, account string, limit int) ([]DocumentSummary, error) {
	f.lastArgs = []string{folder, account}
	f.lastLim = limit
	return f.hits, f.queryErr
}

type fakeRuns struct {
	reports []*IngestReport
	err     error
}

func (f *fakeRuns) Record(ctx context.Context, report *IngestReport) error {
	if f.err != nil {
		return f.err
	}
	f.reports = append(f.reports, report)
	return nil
}

func (f *fakeRuns) Recent(ctx context.Context, n int) ([]IngestReport, error) {
	out := []IngestReport{}
	for i := len(f.reports) - 1; i >= 0 && (n <= 0 || len(out) < n); i-- {
		out = append(out, *f.reports[i])
	}
	return out, nil
}

type fakeClassifier struct {
	score float64
	err   error
	calls int
}

func (f *fakeClassifier) Classify(ctx context.Context, doc *EmailDocument) (*SpamVerdict, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &SpamVerdict{Score: f.score, ModelUsed: "fake"}, nil
}

var errBoom = errors.New("boom")
