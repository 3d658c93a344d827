package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/emberprof/ember/internal/hotspot"
	"github.com/emberprof/ember/internal/report"
)

// Server exposes the agent's HTTP endpoint: sample ingest for external
// samplers, the current report, Prometheus metrics and liveness.
type Server struct {
	listen  string
	profile *hotspot.Profile
	metrics *Metrics
	topK    int
	logger  zerolog.Logger

	httpServer *http.Server
	lis        net.Listener
	running    bool
	mu         sync.Mutex
	wg         sync.WaitGroup
}

// sampleKeyPayload is one code unit key on the wire.
type sampleKeyPayload struct {
	Type      string `json:"type"`
	Signature string `json:"signature"`
}

// sampleBatchRequest is the POST /v1/samples request body.
type sampleBatchRequest struct {
	Samples []sampleKeyPayload `json:"samples"`
}

// sampleBatchResponse reports how many samples a batch contributed.
type sampleBatchResponse struct {
	Accepted int `json:"accepted"`
}

// NewServer creates the agent HTTP server. topK is the default entry count
// for /v1/report when the request does not pass one.
func NewServer(listen string, profile *hotspot.Profile, metrics *Metrics, topK int, logger zerolog.Logger) *Server {
	return &Server{
		listen:  listen,
		profile: profile,
		metrics: metrics,
		topK:    topK,
		logger:  logger.With().Str("component", "http_server").Logger(),
	}
}

// Start begins serving. The listener is bound synchronously, so a successful
// return means the port is held.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server already running")
	}

	lis, err := net.Listen("tcp", s.listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.listen, err)
	}
	s.lis = lis

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/samples", s.handleSamples)
	mux.HandleFunc("/v1/report", s.handleReport)
	mux.Handle("/metrics", s.metrics.Handler())
	mux.HandleFunc("/health", s.handleHealth)

	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	s.running = true

	s.logger.Info().
		Str("address", lis.Addr().String()).
		Msg("Agent HTTP server listening")

	return nil
}

// Addr returns the bound listen address, useful when the configured port
// was 0.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis == nil {
		return ""
	}
	return s.lis.Addr().String()
}

// Stop shuts the server down and waits for the serve goroutine to exit.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("HTTP server shutdown error")
	}

	s.wg.Wait()
	s.running = false

	s.logger.Info().Msg("Agent HTTP server stopped")
	return nil
}

// handleSamples ingests a JSON batch of resolved keys. The whole batch is
// validated before any sample is recorded, so a rejected batch contributes
// nothing.
func (s *Server) handleSamples(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(req.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	defer func() { _ = req.Body.Close() }()

	var batch sampleBatchRequest
	if err := json.Unmarshal(body, &batch); err != nil {
		http.Error(w, "Failed to parse sample batch", http.StatusBadRequest)
		return
	}

	keys := make([]hotspot.Key, len(batch.Samples))
	for i, payload := range batch.Samples {
		key, err := hotspot.NewKey(payload.Type, payload.Signature)
		if err != nil {
			http.Error(w, fmt.Sprintf("sample %d: %v", i, err), http.StatusBadRequest)
			return
		}
		keys[i] = key
	}

	for _, key := range keys {
		if _, err := s.profile.AddSample(key); err != nil {
			http.Error(w, "Failed to record sample", http.StatusInternalServerError)
			return
		}
	}
	s.metrics.IngestedSamples.Add(float64(len(keys)))

	respBytes, err := json.Marshal(sampleBatchResponse{Accepted: len(keys)})
	if err != nil {
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(respBytes)
}

// handleReport renders the current ranked table as text.
func (s *Server) handleReport(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	top := s.topK
	if raw := req.URL.Query().Get("top"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "Invalid top parameter", http.StatusBadRequest)
			return
		}
		top = parsed
	}

	snap, err := s.profile.Snapshot(top)
	if err != nil {
		if errors.Is(err, hotspot.ErrInvalidArgument) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "Failed to snapshot profile", http.StatusInternalServerError)
		return
	}

	// Render to a buffer first; a row that fails mid-write cannot be turned
	// into an error status anymore.
	var buf bytes.Buffer
	if err := report.Render(&buf, snap); err != nil {
		http.Error(w, "Failed to render report", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
