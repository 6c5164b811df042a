package core

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// DefaultQueryLimit is the number of hits returned when no limit is given
const DefaultQueryLimit = 5

// QueryService runs read-only queries against the document index
type QueryService struct {
	index        DocumentIndex
	logger       *zap.Logger
	defaultLimit int
}

// NewQueryService creates a new query service
func NewQueryService(index DocumentIndex, logger *zap.Logger, defaultLimit int) *QueryService {
	if defaultLimit <= 0 {
		defaultLimit = DefaultQueryLimit
	}
	return &QueryService{
		index:        index,
		logger:       logger,
		defaultLimit: defaultLimit,
	}
}

// Search returns the documents most relevant to text in subject or content
func (q *QueryService) Search(ctx context.Context, text string, limit int) ([]DocumentSummary, error) {
	if strings.TrimSpace(text) == "" {
		return []DocumentSummary{}, nil
	}

	hits, err := q.index.Search(ctx, text, q.limit(limit))
	if err != nil {
		return nil, err
	}
	q.logger.Debug("Search finished", zap.String("query", text), zap.Int("hits", len(hits)))
	return nonNil(hits), nil
}

// FilterByFolderAccount returns documents from exactly this folder and account
func (q *QueryService) FilterByFolderAccount(ctx context.Context, folder, account string, limit int) ([]DocumentSummary, error) {
	hits, err := q.index.FilterByFolderAccount(ctx, folder, account, q.limit(limit))
	if err != nil {
		return nil, err
	}
	q.logger.Debug("Filter finished",
		zap.String("folder", folder),
		zap.String("account", account),
		zap.Int("hits", len(hits)))
	return nonNil(hits), nil
}

func (q *QueryService) limit(limit int) int {
	if limit <= 0 {
		return q.defaultLimit
	}
	return limit
}

func nonNil(hits []DocumentSummary) []DocumentSummary {
	if hits == nil {
		return []DocumentSummary{}
	}
	return hits
}
