package elasticsearch

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/mailindex/internal/core"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   []byte
}

// fakeCluster is a scripted Elasticsearch REST endpoint
type fakeCluster struct {
	mu       sync.Mutex
	requests []recordedRequest
	handle   func(w http.ResponseWriter, r *http.Request, body []byte)
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Body:   body,
	})
	f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	f.handle(w, r, body)
}

func (f *fakeCluster) recorded() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

func newTestIndex(t *testing.T, handle func(w http.ResponseWriter, r *http.Request, body []byte)) (*Index, *fakeCluster) {
	t.Helper()
	fake := &fakeCluster{handle: handle}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	settings := Settings{
		URLs:     []string{server.URL},
		Index:    "emails",
		Shards:   1,
		Replicas: 0,
		Refresh:  "wait_for",
	}
	client, err := Connect(settings)
	require.NoError(t, err)
	idx := NewIndex(client, settings, zap.NewNop())
	t.Cleanup(func() { _ = idx.Close() })
	return idx, fake
}

func TestEnsureIndex_CreatesMissingIndex(t *testing.T) {
	idx, fake := newTestIndex(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPut:
			_, _ = io.WriteString(w, `{"acknowledged":true,"shards_acknowledged":true,"index":"emails"}`)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})

	require.NoError(t, idx.EnsureIndex(context.Background()))

	reqs := fake.recorded()
	require.Len(t, reqs, 2)
	assert.Equal(t, http.MethodPut, reqs[1].Method)
	assert.Equal(t, "/emails", reqs[1].Path)

	var body struct {
		Settings map[string]int `json:"settings"`
		Mappings struct {
			Properties map[string]map[string]interface{} `json:"properties"`
		} `json:"mappings"`
	}
	require.NoError(t, json.Unmarshal(reqs[1].Body, &body))
	assert.Equal(t, 1, body.Settings["number_of_shards"])
	assert.Equal(t, 0, body.Settings["number_of_replicas"])

	props := body.Mappings.Properties
	assert.Equal(t, "text", props["subject"]["type"])
	assert.Equal(t, "text", props["content"]["type"])
	assert.Equal(t, "keyword", props["sender"]["type"])
	assert.Equal(t, "keyword", props["folder"]["type"])
	assert.Equal(t, "keyword", props["account"]["type"])
	assert.Equal(t, "date", props["date"]["type"])
	assert.Equal(t, true, props["date"]["ignore_malformed"])
}

func TestEnsureIndex_ExistingIndexIsNoop(t *testing.T) {
	idx, fake := newTestIndex(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
	})

	require.NoError(t, idx.EnsureIndex(context.Background()))
	require.NoError(t, idx.EnsureIndex(context.Background()))

	for _, req := range fake.recorded() {
		assert.Equal(t, http.MethodHead, req.Method)
	}
}

func TestEnsureIndex_LostCreationRace(t *testing.T) {
	idx, _ := newTestIndex(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":{"type":"resource_already_exists_exception","reason":"index [emails] already exists"},"status":400}`)
		}
	})

	assert.NoError(t, idx.EnsureIndex(context.Background()))
}

func TestEnsureIndex_MappingRejected(t *testing.T) {
	idx, _ := newTestIndex(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":{"type":"mapper_parsing_exception","reason":"bad mapping"},"status":400}`)
		}
	})

	err := idx.EnsureIndex(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrIndex))
}

func TestEnsureIndex_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	settings := Settings{URLs: []string{url}, Index: "emails"}
	client, err := Connect(settings)
	require.NoError(t, err)
	idx := NewIndex(client, settings, zap.NewNop())

	err = idx.EnsureIndex(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrIndex))
}

func TestBulkIndex_EmptyBatchSendsNothing(t *testing.T) {
	idx, fake := newTestIndex(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	res, err := idx.BulkIndex(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Indexed)
	assert.Empty(t, res.Failed)
	assert.Empty(t, fake.recorded())
}

func ndjsonLines(b []byte) []string {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(b))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func TestBulkIndex_ReportsItemFailures(t *testing.T) {
	idx, fake := newTestIndex(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		_, _ = io.WriteString(w, `{"took":3,"errors":true,"items":[
			{"index":{"_index":"emails","_id":"a1","status":201,"result":"created"}},
			{"index":{"_index":"emails","status":400,"error":{"type":"mapper_parsing_exception","reason":"failed to parse field [date]"}}},
			{"index":{"_index":"emails","_id":"a3","status":201,"result":"created"}}
		]}`)
	})

	docs := []core.EmailDocument{
		{Subject: "first", Sender: "a@x.com", Folder: "INBOX", Account: "a@x.com"},
		{Subject: "second", Sender: "b@x.com", Folder: "INBOX", Account: "a@x.com"},
		{Subject: "third", Sender: "c@x.com", Folder: "INBOX", Account: "a@x.com"},
	}
	res, err := idx.BulkIndex(context.Background(), docs)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Indexed)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, 1, res.Failed[0].Position)
	assert.Equal(t, "second", res.Failed[0].Subject)
	assert.Contains(t, res.Failed[0].Reason, "mapper_parsing_exception")

	reqs := fake.recorded()
	require.Len(t, reqs, 1)
	assert.True(t, strings.HasSuffix(reqs[0].Path, "/_bulk"))
	assert.Contains(t, reqs[0].Query, "refresh=wait_for")

	lines := ndjsonLines(reqs[0].Body)
	require.Len(t, lines, 6)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &doc))
	assert.Equal(t, "first", doc["subject"])
	assert.NotContains(t, doc, "spam")
}

func TestBulkIndex_TransportFailure(t *testing.T) {
	idx, _ := newTestIndex(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":{"type":"internal","reason":"boom"},"status":500}`)
	})

	_, err := idx.BulkIndex(context.Background(), []core.EmailDocument{{Subject: "x"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrIndex))
}

const searchResponse = `{"took":1,"timed_out":false,"hits":{"total":{"value":2,"relation":"eq"},"max_score":2.0,"hits":[
	{"_index":"emails","_id":"1","_score":2.0,"_source":{"subject":"Team meeting","sender":"alice@example.com","content":"agenda"}},
	{"_index":"emails","_id":"2","_score":1.0,"_source":{"subject":"Lunch","sender":"bob@example.com","content":"after the meeting"}}
]}}`

func TestSearch_MultiMatchOverSubjectAndContent(t *testing.T) {
	idx, fake := newTestIndex(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		_, _ = io.WriteString(w, searchResponse)
	})

	hits, err := idx.Search(context.Background(), "meeting", 5)
	require.NoError(t, err)
	assert.Equal(t, []core.DocumentSummary{
		{Subject: "Team meeting", Sender: "alice@example.com"},
		{Subject: "Lunch", Sender: "bob@example.com"},
	}, hits)

	reqs := fake.recorded()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/emails/_search", reqs[0].Path)

	var body struct {
		Size  int `json:"size"`
		Query struct {
			MultiMatch struct {
				Query  string   `json:"query"`
				Fields []string `json:"fields"`
			} `json:"multi_match"`
		} `json:"query"`
	}
	require.NoError(t, json.Unmarshal(reqs[0].Body, &body))
	assert.Equal(t, 5, body.Size)
	assert.Equal(t, "meeting", body.Query.MultiMatch.Query)
	assert.ElementsMatch(t, []string{"subject", "content"}, body.Query.MultiMatch.Fields)
}

func TestFilterByFolderAccount_TermConjunction(t *testing.T) {
	idx, fake := newTestIndex(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		_, _ = io.WriteString(w, `{"hits":{"total":{"value":0,"relation":"eq"},"hits":[]}}`)
	})

	hits, err := idx.FilterByFolderAccount(context.Background(), "INBOX", "a@x.com", 5)
	require.NoError(t, err)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)

	reqs := fake.recorded()
	require.Len(t, reqs, 1)
	var body struct {
		Query struct {
			Bool struct {
				Filter []map[string]map[string]interface{} `json:"filter"`
			} `json:"bool"`
		} `json:"query"`
	}
	require.NoError(t, json.Unmarshal(reqs[0].Body, &body))
	require.Len(t, body.Query.Bool.Filter, 2)
	assert.Equal(t, "INBOX", body.Query.Bool.Filter[0]["term"]["folder"])
	assert.Equal(t, "a@x.com", body.Query.Bool.Filter[1]["term"]["account"])
}

func TestSearch_MissingIndex(t *testing.T) {
	idx, _ := newTestIndex(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"type":"index_not_found_exception","reason":"no such index [emails]"},"status":404}`)
	})

	_, err := idx.Search(context.Background(), "meeting", 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrIndex))
}
