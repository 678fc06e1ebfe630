package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/example/nexa-agent/internal/agents"
	"github.com/example/nexa-agent/internal/archive"
	"github.com/example/nexa-agent/internal/models"
	"github.com/example/nexa-agent/internal/orchestrator"
)

const defaultKeepAlive = 15 * time.Second

// Server exposes chat sessions over HTTP.
type Server struct {
	sessions *orchestrator.Manager
	gate     *agents.GuestGate
	logger   *zap.Logger

	// KeepAlive is the interval of SSE comment frames.
	KeepAlive time.Duration
}

func NewServer(sessions *orchestrator.Manager, gate *agents.GuestGate, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{sessions: sessions, gate: gate, logger: logger, KeepAlive: defaultKeepAlive}
}

// Handler returns the routes wrapped in the CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return cors(mux)
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /models", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, models.Models)
	})

	mux.HandleFunc("GET /sessions", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, s.sessions.List())
	})
	mux.HandleFunc("POST /sessions", s.createSession)
	mux.HandleFunc("GET /sessions/search", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, s.sessions.Search(r.URL.Query().Get("q")))
	})
	mux.HandleFunc("GET /sessions/{id}", s.getSession)
	mux.HandleFunc("PATCH /sessions/{id}", s.renameSession)
	mux.HandleFunc("DELETE /sessions/{id}", s.deleteSession)
	mux.HandleFunc("POST /sessions/{id}/messages", s.postMessage)
	mux.HandleFunc("POST /sessions/{id}/stop", s.stop)
	mux.HandleFunc("GET /sessions/{id}/events", s.events)
	mux.HandleFunc("GET /sessions/{id}/files/{messageID}", s.download)
}

// sessionView is a session together with its runner state.
type sessionView struct {
	models.ChatSession
	State models.AgentState `json:"state"`
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	cs, err := s.sessions.Create()
	if err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, sessionView{ChatSession: cs, State: models.StateIdle})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	cs, err := s.sessions.Get(id)
	if err != nil {
		s.fail(w, err)
		return
	}
	state, _ := s.sessions.State(id)
	respondJSON(w, http.StatusOK, sessionView{ChatSession: cs, State: state})
}

func (s *Server) renameSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	cs, err := s.sessions.Rename(r.PathValue("id"), req.Title)
	if err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cs)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := s.sessions.Delete(r.Context(), id)
	if errors.Is(err, orchestrator.ErrNotFound) {
		s.fail(w, err)
		return
	}
	if err != nil {
		s.logger.Warn("Session release failed", zap.String("session", id), zap.Error(err))
	}
	s.gate.Forget(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) postMessage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req struct {
		Text  string `json:"text"`
		Model string `json:"model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := s.sessions.Get(id); err != nil {
		s.fail(w, err)
		return
	}
	if err := s.gate.Check(id, req.Text); err != nil {
		s.fail(w, err)
		return
	}
	if err := s.sessions.Submit(id, req.Text, req.Model); err != nil {
		s.fail(w, err)
		return
	}
	s.gate.Record(id)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) stop(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Stop(r.PathValue("id")); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// events streams session events as server-sent events until the client
// goes away.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.sessions.Get(id); err != nil {
		s.fail(w, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ch, unsubscribe := s.sessions.Hub().Subscribe(id)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	keepAlive := s.KeepAlive
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case b, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", b)
			flusher.Flush()
		}
	}
}

// download serves the artifact carried by a file message. Archives are
// decoded to raw bytes.
func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	msg, err := s.sessions.Message(r.PathValue("id"), r.PathValue("messageID"))
	if err != nil {
		s.fail(w, err)
		return
	}
	if msg.Type != models.MessageFile || msg.FileData == nil {
		http.Error(w, "message has no file", http.StatusNotFound)
		return
	}

	body := []byte(msg.Content)
	contentType := "text/plain; charset=utf-8"
	if msg.IsZip {
		raw, err := archive.Decode(msg.Content)
		if err != nil {
			s.logger.Error("Stored archive cannot be decoded", zap.String("message", msg.ID), zap.Error(err))
			http.Error(w, "corrupt archive", http.StatusInternalServerError)
			return
		}
		body = raw
		contentType = "application/zip"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", msg.FileData.Name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, orchestrator.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, orchestrator.ErrEmptyInput):
		status = http.StatusBadRequest
	case errors.Is(err, orchestrator.ErrBusy):
		status = http.StatusConflict
	case errors.Is(err, agents.ErrLoginRequired):
		status = http.StatusForbidden
	case errors.Is(err, orchestrator.ErrClosed):
		status = http.StatusServiceUnavailable
	default:
		s.logger.Error("Request failed", zap.Error(err))
	}
	respondJSON(w, status, map[string]string{"error": err.Error()})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
