package elasticsearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/olivere/elastic/v7"
	"go.uber.org/zap"

	"github.com/mikey/mailindex/internal/core"
)

const alreadyExists = "resource_already_exists_exception"

// Settings holds the Elasticsearch connection and index parameters
type Settings struct {
	URLs     []string
	Username string
	Password string
	Index    string
	Shards   int
	Replicas int
	Refresh  string
	Sniff    bool
}

// Index implements core.DocumentIndex on top of an Elasticsearch cluster
type Index struct {
	client   *elastic.Client
	settings Settings
	logger   *zap.Logger
}

// Connect creates an Elasticsearch client. No request is sent until the
// client is first used, so an unreachable cluster surfaces from EnsureIndex.
func Connect(settings Settings) (*elastic.Client, error) {
	options := []elastic.ClientOptionFunc{
		elastic.SetURL(settings.URLs...),
		elastic.SetSniff(settings.Sniff),
		elastic.SetHealthcheck(false),
	}
	if settings.Username != "" {
		options = append(options, elastic.SetBasicAuth(settings.Username, settings.Password))
	}

	client, err := elastic.NewClient(options...)
	if err != nil {
		return nil, core.Wrap(core.ErrIndex, "creating Elasticsearch client", err)
	}
	return client, nil
}

// NewIndex creates a new Elasticsearch-backed document index
func NewIndex(client *elastic.Client, settings Settings, logger *zap.Logger) *Index {
	return &Index{
		client:   client,
		settings: settings,
		logger:   logger,
	}
}

// EnsureIndex creates the index with the email mapping unless it already exists
func (i *Index) EnsureIndex(ctx context.Context) error {
	exists, err := i.client.IndexExists(i.settings.Index).Do(ctx)
	if err != nil {
		return core.Wrap(core.ErrIndex, fmt.Sprintf("checking index %s", i.settings.Index), err)
	}
	if exists {
		i.logger.Debug("Index already exists", zap.String("index", i.settings.Index))
		return nil
	}

	_, err = i.client.CreateIndex(i.settings.Index).
		BodyJson(indexBody(i.settings.Shards, i.settings.Replicas)).
		Do(ctx)
	if err != nil {
		var esErr *elastic.Error
		if errors.As(err, &esErr) && esErr.Details != nil && esErr.Details.Type == alreadyExists {
			i.logger.Debug("Index created concurrently", zap.String("index", i.settings.Index))
			return nil
		}
		return core.Wrap(core.ErrIndex, fmt.Sprintf("creating index %s", i.settings.Index), err)
	}

	i.logger.Info("Created index",
		zap.String("index", i.settings.Index),
		zap.Int("shards", i.settings.Shards),
		zap.Int("replicas", i.settings.Replicas))
	return nil
}

// BulkIndex writes docs in a single bulk request and reports per-item rejections
func (i *Index) BulkIndex(ctx context.Context, docs []core.EmailDocument) (*core.BulkResult, error) {
	result := &core.BulkResult{Failed: []core.ItemFailure{}}
	if len(docs) == 0 {
		return result, nil
	}

	bulk := i.client.Bulk().Index(i.settings.Index)
	if i.settings.Refresh != "" {
		bulk = bulk.Refresh(i.settings.Refresh)
	}
	for idx := range docs {
		bulk = bulk.Add(elastic.NewBulkIndexRequest().Doc(docs[idx]))
	}

	resp, err := bulk.Do(ctx)
	if err != nil {
		return nil, core.Wrap(core.ErrIndex, "bulk indexing", err)
	}

	for pos, item := range resp.Items {
		for _, op := range item {
			if op == nil {
				continue
			}
			if op.Error == nil && op.Status < 300 {
				result.Indexed++
				continue
			}
			failure := core.ItemFailure{Position: pos, Reason: itemReason(op)}
			if pos < len(docs) {
				failure.Subject = docs[pos].Subject
			}
			result.Failed = append(result.Failed, failure)
			i.logger.Warn("Document rejected by Elasticsearch",
				zap.Int("position", pos),
				zap.String("subject", failure.Subject),
				zap.String("reason", failure.Reason))
		}
	}

	i.logger.Info("Bulk indexed documents",
		zap.String("index", i.settings.Index),
		zap.Int("indexed", result.Indexed),
		zap.Int("failed", len(result.Failed)))
	return result, nil
}

func itemReason(op *elastic.BulkResponseItem) string {
	if op.Error == nil {
		return fmt.Sprintf("status %d", op.Status)
	}
	if op.Error.Reason == "" {
		return op.Error.Type
	}
	return fmt.Sprintf("%s: %s", op.Error.Type, op.Error.Reason)
}

// Search runs a full-text match over subject and content, best matches first
func (i *Index) Search(ctx context.Context, query string, limit int) ([]core.DocumentSummary, error) {
	q := elastic.NewMultiMatchQuery(query, "subject", "content")
	return i.search(ctx, "searching", q, limit)
}

// FilterByFolderAccount returns documents whose folder and account match exactly
func (i *Index) FilterByFolderAccount(ctx context.Context, folder, account string, limit int) ([]core.DocumentSummary, error) {
	q := elastic.NewBoolQuery().Filter(
		elastic.NewTermQuery("folder", folder),
		elastic.NewTermQuery("account", account),
	)
	return i.search(ctx, "filtering", q, limit)
}

func (i *Index) search(ctx context.Context, op string, q elastic.Query, limit int) ([]core.DocumentSummary, error) {
	res, err := i.client.Search(i.settings.Index).
		Query(q).
		Size(limit).
		Do(ctx)
	if err != nil {
		return nil, core.Wrap(core.ErrIndex, op, err)
	}

	summaries := []core.DocumentSummary{}
	if res.Hits == nil {
		return summaries, nil
	}
	for _, hit := range res.Hits.Hits {
		var summary core.DocumentSummary
		if err := json.Unmarshal(hit.Source, &summary); err != nil {
			return nil, core.Wrap(core.ErrIndex, fmt.Sprintf("decoding hit %s", hit.Id), err)
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// Close stops the underlying client
func (i *Index) Close() error {
	i.client.Stop()
	return nil
}
