package core

import (
	"time"
)

// EmailDocument is the flat record indexed for every fetched message
type EmailDocument struct {
	Subject   string   `json:"subject"`
	Sender    string   `json:"sender"`
	Date      string   `json:"date"`
	Content   string   `json:"content"`
	Folder    string   `json:"folder"`
	Account   string   `json:"account"`
	Spam      *bool    `json:"spam,omitempty"`
	SpamScore *float64 `json:"spam_score,omitempty"`
}

// RawMessage is the full original payload of one message as fetched from the mailbox
type RawMessage struct {
	UID     uint32
	Folder  string
	Account string
	Bytes   []byte
}

// DocumentSummary is the projection returned by queries
type DocumentSummary struct {
	Subject string `json:"subject"`
	Sender  string `json:"sender"`
}

// ItemFailure describes a document rejected by the search engine during a bulk write
type ItemFailure struct {
	Position int    `json:"position"`
	Subject  string `json:"subject"`
	Reason   string `json:"reason"`
}

// BulkResult is the outcome of a single bulk write
type BulkResult struct {
	Indexed int
	Failed  []ItemFailure
}

// MessageFailure describes a message that could not be turned into a document
type MessageFailure struct {
	UID    uint32 `json:"uid"`
	Reason string `json:"reason"`
}

// SpamVerdict is the result of classifying a document
type SpamVerdict struct {
	IsSpam      bool
	Score       float64
	Confidence  float64
	Explanation string
	AnalyzedAt  time.Time
	ModelUsed   string
}

// IngestReport summarizes one ingestion run
type IngestReport struct {
	RunID           string           `json:"run_id"`
	Account         string           `json:"account"`
	Folder          string           `json:"folder"`
	Fetched         int              `json:"fetched"`
	Normalized      int              `json:"normalized"`
	Indexed         int              `json:"indexed"`
	MessageFailures []MessageFailure `json:"message_failures,omitempty"`
	IndexFailures   []ItemFailure    `json:"index_failures,omitempty"`
	Error           string           `json:"error,omitempty"`
	StartedAt       time.Time        `json:"started_at"`
	FinishedAt      time.Time        `json:"finished_at"`
}

// Failed returns the number of messages that did not end up indexed
func (r *IngestReport) Failed() int {
	return len(r.MessageFailures) + len(r.IndexFailures)
}
