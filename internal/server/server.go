// Package server exposes the ingestion HTTP API: one endpoint to submit a
// notification and one to check health.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"sift/internal/notify"
	logx "sift/pkg/logx"
)

// Processor is the decision pipeline as seen by the ingestion side.
type Processor interface {
	Process(ctx context.Context, n *notify.Notification) notify.Outcome
}

// HealthChecker reports collaborator liveness for the health endpoint.
type HealthChecker interface {
	PingStore(ctx context.Context) error
	ProbeJudge(ctx context.Context) bool
}

type Config struct {
	Address string
}

func (c Config) withDefaults() Config {
	if c.Address == "" {
		c.Address = "127.0.0.1:8080"
	}
	return c
}

// Server manages lifecycle for the ingestion HTTP listener.
type Server struct {
	mu   sync.Mutex
	log  logx.Logger
	srv  *http.Server
	ln   net.Listener
	addr string

	proc     Processor
	health   HealthChecker
	contacts notify.Contacts
	cmu      sync.RWMutex
}

func New(proc Processor, health HealthChecker, contacts notify.Contacts, log logx.Logger) *Server {
	return &Server{
		proc:     proc,
		health:   health,
		contacts: contacts,
		log:      log.With(logx.String("comp", "server")),
	}
}

// SetContacts swaps the contacts map on config reload.
func (s *Server) SetContacts(c notify.Contacts) {
	s.cmu.Lock()
	s.contacts = c
	s.cmu.Unlock()
}

// Start begins listening. Returns an error only for bind failures; request
// errors are handled per request.
func (s *Server) Start(cfg Config) error {
	cfg = cfg.withDefaults()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return nil
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /notification", s.handleNotification)
	mux.HandleFunc("GET /health", s.handleHealth)

	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	ln, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return err
	}

	s.srv = srv
	s.ln = ln
	s.addr = ln.Addr().String()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Warn("ingestion server error", logx.String("addr", s.addr), logx.Err(err))
		}
	}()
	s.log.Info("ingestion listening", logx.String("addr", s.addr))
	return nil
}

// Stop gracefully shuts down the listener.
func (s *Server) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv == nil {
		return
	}
	srv := s.srv
	ln := s.ln
	s.srv = nil
	s.ln = nil
	addr := s.addr
	s.addr = ""

	shutdownCtx := ctx
	if shutdownCtx == nil {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
	}

	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Warn("ingestion shutdown error", logx.String("addr", addr), logx.Err(err))
	}
	if ln != nil {
		_ = ln.Close()
	}
}

// Addr reports the actual listen address if running.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

type notificationRequest struct {
	Source    string     `json:"source"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

const maxRequestBody = 1 << 20 // notifications are small; reject anything bigger

func (s *Server) handleNotification(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unreadable body"})
		return
	}

	var req notificationRequest
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.Source) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "source is required"})
		return
	}

	var at time.Time
	if req.Timestamp != nil {
		at = *req.Timestamp
	}
	n := notify.New(req.Source, req.Title, req.Body, at)

	s.cmu.RLock()
	contacts := s.contacts
	s.cmu.RUnlock()
	n.ApplyActionURL(contacts)

	outcome := s.proc.Process(r.Context(), n)
	writeJSON(w, http.StatusOK, outcome)
}

type healthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
	Judge  string `json:"judge"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "healthy", Store: "ok", Judge: "ok"}
	if err := s.health.PingStore(r.Context()); err != nil {
		resp.Status = "degraded"
		resp.Store = "error"
	}
	if !s.health.ProbeJudge(r.Context()) {
		resp.Judge = "unavailable"
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
