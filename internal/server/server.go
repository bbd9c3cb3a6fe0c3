// Package server exposes test cases, runs and results over HTTP, with a
// WebSocket stream of run events for dashboards.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cgast/promptreg/pkg/events"
	"github.com/cgast/promptreg/pkg/history"
	"github.com/cgast/promptreg/pkg/runner"
	"github.com/cgast/promptreg/pkg/store"
	"github.com/cgast/promptreg/pkg/suite"
	"github.com/cgast/promptreg/pkg/verify"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Server is the HTTP + WebSocket API server.
type Server struct {
	store     store.Gateway
	runner    *runner.Runner
	bus       events.EventBus
	logger    *slog.Logger
	mux       *http.ServeMux
	upgrader  websocket.Upgrader
	startTime time.Time

	wsClients map[*wsClient]bool
	wsMu      sync.Mutex
	events    <-chan events.Event
}

// wsMessage is an encoded event tagged with its sequence number.
type wsMessage struct {
	seq  uint64
	data []byte
}

// wsClient represents a connected WebSocket client.
type wsClient struct {
	send chan wsMessage
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics serves h at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.mux.Handle("GET /metrics", h) }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a server and starts relaying bus events to WebSocket
// clients. Call Close to stop relaying.
func New(st store.Gateway, r *runner.Runner, bus events.EventBus, opts ...Option) *Server {
	s := &Server{
		store:     st,
		runner:    r,
		bus:       bus,
		logger:    slog.Default(),
		mux:       http.NewServeMux(),
		startTime: time.Now(),
		wsClients: make(map[*wsClient]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mux.HandleFunc("GET /ws", s.handleWebSocket)

	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/tests", s.handleListTests)
	s.mux.HandleFunc("POST /api/tests", s.handleSaveTest)
	s.mux.HandleFunc("GET /api/tests/{id}", s.handleGetTest)
	s.mux.HandleFunc("DELETE /api/tests/{id}", s.handleDeleteTest)
	s.mux.HandleFunc("POST /api/tests/{id}/run", s.handleRunTest)
	s.mux.HandleFunc("POST /api/run", s.handleRunBatch)
	s.mux.HandleFunc("POST /api/suites", s.handleImportSuite)
	s.mux.HandleFunc("GET /api/results", s.handleResults)
	s.mux.HandleFunc("GET /api/summary", s.handleSummary)

	s.events = bus.Subscribe()
	go s.broadcastEvents(s.events)
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Close stops relaying bus events.
func (s *Server) Close() {
	s.bus.Unsubscribe(s.events)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve %s: %w", addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) broadcastEvents(ch <-chan events.Event) {
	for ev := range ch {
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}

		s.wsMu.Lock()
		for client := range s.wsClients {
			select {
			case client.send <- wsMessage{seq: ev.Seq, data: data}:
			default:
				// Client is slow, drop the event.
			}
		}
		s.wsMu.Unlock()
	}
}

// handleWebSocket streams bus events, replaying retained history first.
// A reconnecting client passes ?after=<seq> to skip events it already has.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	var after uint64
	if raw := r.URL.Query().Get("after"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid after %q", raw))
			return
		}
		after = n
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	client := &wsClient{send: make(chan wsMessage, 64)}
	s.wsMu.Lock()
	s.wsClients[client] = true
	s.wsMu.Unlock()
	defer func() {
		s.wsMu.Lock()
		delete(s.wsClients, client)
		s.wsMu.Unlock()
	}()

	replayed := after
	for _, ev := range s.bus.After(after) {
		replayed = ev.Seq
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}

	// Reads only detect the peer going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case msg := <-client.send:
			// Already sent during replay.
			if msg.seq <= replayed {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, msg.data); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	runs, errs := 0, 0
	retained := s.bus.History(time.Time{})
	for _, ev := range retained {
		switch ev.Type {
		case events.EventRunEnd:
			runs++
		case events.EventRunError:
			errs++
		}
	}

	cases, err := s.store.ListTestCases()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"uptime": time.Since(s.startTime).Round(time.Second).String(),
		"events": len(retained),
		"tests":  len(cases),
		"runs":   runs,
		"errors": errs,

		"providers":         suite.Providers,
		"expectation_kinds": verify.Kinds,
	})
}

func (s *Server) handleListTests(w http.ResponseWriter, r *http.Request) {
	cases, err := s.store.ListTestCases()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if tag := r.URL.Query().Get("tag"); tag != "" {
		cases = filterByTag(cases, tag)
	}
	writeJSON(w, http.StatusOK, cases)
}

func (s *Server) handleSaveTest(w http.ResponseWriter, r *http.Request) {
	tc := suite.TestCase{Temperature: suite.DefaultTemperature}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&tc); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode test case: %w", err))
		return
	}

	// Replacing a test case keeps its place in the listing.
	if tc.ID != "" && tc.CreatedAt.IsZero() {
		existing, err := s.store.GetTestCase(tc.ID)
		switch {
		case err == nil:
			tc.CreatedAt = existing.CreatedAt
		case !errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	tc.ApplyDefaults(time.Now().UTC())

	if result := suite.Validate(tc); !result.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  result.Error(),
			"fields": result.Errors,
		})
		return
	}
	if err := s.store.SaveTestCase(tc); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.bus.Publish(events.NewEvent(events.EventTestSaved, events.RunInfo{
		TestID: tc.ID, TestName: tc.Name, Provider: tc.Provider, Model: tc.Model,
	}))
	writeJSON(w, http.StatusCreated, tc)
}

func (s *Server) handleGetTest(w http.ResponseWriter, r *http.Request) {
	tc, err := s.store.GetTestCase(r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tc)
}

func (s *Server) handleDeleteTest(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.DeleteTestCase(id); err != nil {
		writeStoreError(w, err)
		return
	}
	s.bus.Publish(events.NewEvent(events.EventTestDeleted, events.RunInfo{TestID: id}))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRunTest(w http.ResponseWriter, r *http.Request) {
	tc, err := s.store.GetTestCase(r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	res := s.runner.Run(r.Context(), tc)
	if err := s.store.AppendResult(res); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleRunBatch runs the listed ids, a tag, or every test case.
func (s *Server) handleRunBatch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IDs []string `json:"ids"`
		Tag string   `json:"tag"`
	}
	if r.ContentLength != 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("decode run request: %w", err))
			return
		}
	}

	var cases []suite.TestCase
	if len(body.IDs) > 0 {
		for _, id := range body.IDs {
			tc, err := s.store.GetTestCase(id)
			if err != nil {
				writeStoreError(w, err)
				return
			}
			cases = append(cases, tc)
		}
	} else {
		all, err := s.store.ListTestCases()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		cases = all
		if body.Tag != "" {
			cases = filterByTag(all, body.Tag)
		}
	}

	results := s.runner.RunBatch(r.Context(), cases, s.store.AppendResult)
	writeJSON(w, http.StatusOK, map[string]any{
		"summary": history.Summarize(results),
		"results": results,
	})
}

// handleImportSuite saves every test case of a YAML suite document posted
// as the request body.
func (s *Server) handleImportSuite(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("read suite: %w", err))
		return
	}
	if err := suite.ValidateSchema(data); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	parsed, err := suite.ParseSuite(data, nil)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if result := suite.ValidateSuite(parsed); !result.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  result.Error(),
			"fields": result.Errors,
		})
		return
	}

	info := events.SuiteInfo{Tests: len(parsed.Cases), IDs: make([]string, 0, len(parsed.Cases))}
	for _, tc := range parsed.Cases {
		if err := s.store.SaveTestCase(tc); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		info.IDs = append(info.IDs, tc.ID)
	}
	s.logger.Info("suite imported", "tests", info.Tests)
	s.bus.Publish(events.NewEvent(events.EventSuiteLoaded, info))
	writeJSON(w, http.StatusCreated, info)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	results, err := s.store.ListResults()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	q := r.URL.Query()
	filter := history.Filter{TestID: q.Get("test_id"), Models: q["model"], TestNames: q["test_name"]}
	for _, raw := range q["status"] {
		v, ok := history.ParseStatus(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Errorf("unknown status %q", raw))
			return
		}
		filter.Statuses = append(filter.Statuses, v)
	}
	writeJSON(w, http.StatusOK, filter.Apply(results))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	results, err := s.store.ListResults()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	prev, curr := history.Snapshots(results)
	writeJSON(w, http.StatusOK, map[string]any{
		"all":     history.Summarize(results),
		"latest":  history.Summarize(curr),
		"changes": history.Compare(prev, curr),
	})
}

func filterByTag(cases []suite.TestCase, tag string) []suite.TestCase {
	out := make([]suite.TestCase, 0, len(cases))
	for _, tc := range cases {
		if tc.HasTag(tag) {
			out = append(out, tc)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeError(w, http.StatusInternalServerError, err)
}
