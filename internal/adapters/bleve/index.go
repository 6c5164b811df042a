package bleve

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mikey/mailindex/internal/core"
)

var errNotOpen = errors.New("index is not open")

// Index implements core.DocumentIndex with an embedded bleve index
type Index struct {
	mu     sync.RWMutex
	path   string
	index  bleve.Index
	logger *zap.Logger
}

// NewIndex creates an index stored at path. An empty path keeps it in memory.
func NewIndex(path string, logger *zap.Logger) *Index {
	return &Index{
		path:   path,
		logger: logger,
	}
}

// EnsureIndex opens the index, creating it with the email mapping when absent
func (i *Index) EnsureIndex(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.index != nil {
		return nil
	}

	if i.path == "" {
		index, err := bleve.NewMemOnly(buildIndexMapping())
		if err != nil {
			return core.Wrap(core.ErrIndex, "creating in-memory index", err)
		}
		i.index = index
		i.logger.Info("Created in-memory index")
		return nil
	}

	index, err := bleve.Open(i.path)
	if err == nil {
		i.index = index
		i.logger.Debug("Opened index", zap.String("path", i.path))
		return nil
	}
	if !errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		return core.Wrap(core.ErrIndex, fmt.Sprintf("opening index %s", i.path), err)
	}

	index, err = bleve.New(i.path, buildIndexMapping())
	if err != nil {
		return core.Wrap(core.ErrIndex, fmt.Sprintf("creating index %s", i.path), err)
	}
	i.index = index
	i.logger.Info("Created index", zap.String("path", i.path))
	return nil
}

// BulkIndex adds all docs in a single batch under generated IDs
func (i *Index) BulkIndex(ctx context.Context, docs []core.EmailDocument) (*core.BulkResult, error) {
	result := &core.BulkResult{Failed: []core.ItemFailure{}}
	if len(docs) == 0 {
		return result, nil
	}

	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.index == nil {
		return nil, core.Wrap(core.ErrIndex, "bulk indexing", errNotOpen)
	}

	batch := i.index.NewBatch()
	for pos, doc := range docs {
		if err := batch.Index(uuid.NewString(), fields(doc)); err != nil {
			result.Failed = append(result.Failed, core.ItemFailure{
				Position: pos,
				Subject:  doc.Subject,
				Reason:   err.Error(),
			})
			i.logger.Warn("Document rejected",
				zap.Int("position", pos),
				zap.String("subject", doc.Subject),
				zap.Error(err))
			continue
		}
		result.Indexed++
	}

	if err := ctx.Err(); err != nil {
		return nil, core.Wrap(core.ErrIndex, "bulk indexing", err)
	}
	if err := i.index.Batch(batch); err != nil {
		return nil, core.Wrap(core.ErrIndex, "bulk indexing", err)
	}

	i.logger.Info("Bulk indexed documents",
		zap.Int("indexed", result.Indexed),
		zap.Int("failed", len(result.Failed)))
	return result, nil
}

// fields flattens a document into the map bleve indexes
func fields(doc core.EmailDocument) map[string]interface{} {
	m := map[string]interface{}{
		"subject": doc.Subject,
		"sender":  doc.Sender,
		"date":    doc.Date,
		"content": doc.Content,
		"folder":  doc.Folder,
		"account": doc.Account,
	}
	if doc.Spam != nil {
		m["spam"] = *doc.Spam
	}
	if doc.SpamScore != nil {
		m["spam_score"] = *doc.SpamScore
	}
	return m
}

// Search matches queryText against subject and content, best matches first
func (i *Index) Search(ctx context.Context, queryText string, limit int) ([]core.DocumentSummary, error) {
	subject := bleve.NewMatchQuery(queryText)
	subject.SetField("subject")
	content := bleve.NewMatchQuery(queryText)
	content.SetField("content")

	return i.search(ctx, "searching", bleve.NewDisjunctionQuery(subject, content), limit)
}

// FilterByFolderAccount returns documents whose folder and account match exactly
func (i *Index) FilterByFolderAccount(ctx context.Context, folder, account string, limit int) ([]core.DocumentSummary, error) {
	folderQuery := bleve.NewTermQuery(folder)
	folderQuery.SetField("folder")
	accountQuery := bleve.NewTermQuery(account)
	accountQuery.SetField("account")

	return i.search(ctx, "filtering", bleve.NewConjunctionQuery(folderQuery, accountQuery), limit)
}

func (i *Index) search(ctx context.Context, op string, q query.Query, limit int) ([]core.DocumentSummary, error) {
	if limit <= 0 {
		limit = core.DefaultQueryLimit
	}

	index, err := i.readable()
	if err != nil {
		return nil, core.Wrap(core.ErrIndex, op, err)
	}

	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	req.Fields = []string{"subject", "sender"}

	res, err := index.SearchInContext(ctx, req)
	if err != nil {
		return nil, core.Wrap(core.ErrIndex, op, err)
	}

	summaries := make([]core.DocumentSummary, 0, len(res.Hits))
	for _, hit := range res.Hits {
		summaries = append(summaries, core.DocumentSummary{
			Subject: stringField(hit.Fields, "subject"),
			Sender:  stringField(hit.Fields, "sender"),
		})
	}
	return summaries, nil
}

// readable returns the open index. A disk index that was never ensured is
// opened as it is; a missing one is an error, not an empty result.
func (i *Index) readable() (bleve.Index, error) {
	i.mu.RLock()
	index := i.index
	i.mu.RUnlock()
	if index != nil {
		return index, nil
	}
	if i.path == "" {
		return nil, errNotOpen
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if i.index == nil {
		index, err := bleve.Open(i.path)
		if err != nil {
			return nil, err
		}
		i.index = index
		i.logger.Debug("Opened index", zap.String("path", i.path))
	}
	return i.index, nil
}

func stringField(fields map[string]interface{}, name string) string {
	if s, ok := fields[name].(string); ok {
		return s
	}
	return ""
}

// Close releases the underlying index
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.index == nil {
		return nil
	}
	err := i.index.Close()
	i.index = nil
	return err
}
