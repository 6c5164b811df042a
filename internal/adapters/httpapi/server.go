package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/mikey/mailindex/internal/core"
)

// Server exposes the query service read-only over HTTP
type Server struct {
	queries     *core.QueryService
	runs        core.RunRepository
	logger      *zap.Logger
	listenAddr  string
	corsOrigins []string
	server      *http.Server
	listener    net.Listener
}

// NewServer creates a new HTTP query API. runs may be nil, which disables /runs.
func NewServer(queries *core.QueryService, runs core.RunRepository, logger *zap.Logger, listenAddr string, corsOrigins []string) *Server {
	return &Server{
		queries:     queries,
		runs:        runs,
		logger:      logger,
		listenAddr:  listenAddr,
		corsOrigins: corsOrigins,
	}
}

// Handler returns the routed handler, wrapped with CORS when origins are configured
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/search", s.handleSearch).Methods(http.MethodGet)
	r.HandleFunc("/filter", s.handleFilter).Methods(http.MethodGet)
	if s.runs != nil {
		r.HandleFunc("/runs", s.handleRuns).Methods(http.MethodGet)
	}

	// No origins configured means same-origin only
	if len(s.corsOrigins) == 0 {
		return r
	}
	c := cors.New(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{http.MethodGet},
	})
	return c.Handler(r)
}

// Start starts listening and serves requests in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.listenAddr, err)
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.logger.Info("HTTP query API starting", zap.String("address", ln.Addr().String()))

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Addr returns the address the server listens on once started
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.listenAddr
	}
	return s.listener.Addr().String()
}

// Stop gracefully shuts the server down
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	hits, err := s.queries.Search(r.Context(), q, limit)
	if err != nil {
		s.fail(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, hits)
}

func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	folder := r.URL.Query().Get("folder")
	account := r.URL.Query().Get("account")
	if folder == "" || account == "" {
		writeError(w, http.StatusBadRequest, "folder and account are required")
		return
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	hits, err := s.queries.FilterByFolderAccount(r.Context(), folder, account, limit)
	if err != nil {
		s.fail(w, "filter", err)
		return
	}
	writeJSON(w, http.StatusOK, hits)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	if limit == 0 {
		limit = 10
	}

	runs, err := s.runs.Recent(r.Context(), limit)
	if err != nil {
		s.fail(w, "runs", err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	s.logger.Error("Request failed", zap.String("op", op), zap.Error(err))
	if errors.Is(err, core.ErrIndex) {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

// parseLimit reads the optional limit parameter; 0 means the service default
func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", raw))
		return 0, false
	}
	return limit, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
