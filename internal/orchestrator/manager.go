package orchestrator

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/nexa-agent/internal/models"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrClosed   = errors.New("manager closed")
)

// Parts are the per-session collaborators produced by a Builder.
type Parts struct {
	Agents Agents
	// Release frees resources owned by the session, such as a remote browser.
	Release func(context.Context) error
}

// Builder assembles the parts for a new session.
type Builder func(sessionID string) Parts

type ManagerConfig struct {
	Runner           Config
	CoalesceInterval time.Duration
	Logger           *zap.Logger
	Now              func() time.Time
}

// Manager is the in-memory registry of chat sessions.
type Manager struct {
	hub    *Hub
	build  Builder
	cfg    ManagerConfig
	logger *zap.Logger

	// ctx carries every submission; Close cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool
}

func NewManager(hub *Hub, build Builder, cfg ManagerConfig) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Runner.Logger == nil {
		cfg.Runner.Logger = cfg.Logger
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		hub:      hub,
		build:    build,
		cfg:      cfg,
		logger:   cfg.Logger,
		ctx:      ctx,
		cancel:   cancel,
		sessions: map[string]*Session{},
	}
}

func (m *Manager) Hub() *Hub { return m.hub }

// Create registers an empty session.
func (m *Manager) Create() (models.ChatSession, error) {
	id := uuid.NewString()
	s := newSession(id, m.hub, m.cfg.CoalesceInterval, m.cfg.Now)
	parts := m.build(id)
	rc := m.cfg.Runner
	rc.Logger = rc.Logger.With(zap.String("session", id))
	s.runner = NewRunner(parts.Agents, s, rc)
	s.release = parts.Release

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		_ = s.close(context.Background())
		return models.ChatSession{}, ErrClosed
	}
	m.sessions[id] = s
	m.mu.Unlock()

	m.logger.Info("Session created", zap.String("session", id))
	return s.Snapshot(), nil
}

func (m *Manager) session(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

func (m *Manager) Get(id string) (models.ChatSession, error) {
	s, err := m.session(id)
	if err != nil {
		return models.ChatSession{}, err
	}
	return s.Snapshot(), nil
}

// State returns the runner state of session id.
func (m *Manager) State(id string) (models.AgentState, error) {
	s, err := m.session(id)
	if err != nil {
		return "", err
	}
	return s.State(), nil
}

// Message returns one message of session id.
func (m *Manager) Message(id, messageID string) (models.Message, error) {
	s, err := m.session(id)
	if err != nil {
		return models.Message{}, err
	}
	msg, ok := s.Message(messageID)
	if !ok {
		return models.Message{}, ErrNotFound
	}
	return msg, nil
}

// List returns every session, most recently updated first.
func (m *Manager) List() []models.ChatSession {
	return m.filter(func(*Session) bool { return true })
}

// Search returns the sessions whose title or messages contain q, ignoring
// case. An empty query lists everything.
func (m *Manager) Search(q string) []models.ChatSession {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return m.List()
	}
	return m.filter(func(s *Session) bool { return s.matches(q) })
}

func (m *Manager) filter(keep func(*Session) bool) []models.ChatSession {
	m.mu.RLock()
	out := make([]models.ChatSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		if keep(s) {
			out = append(out, s.Snapshot())
		}
	}
	m.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

func (m *Manager) Rename(id, title string) (models.ChatSession, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.ChatSession{}, ErrEmptyInput
	}
	s, err := m.session(id)
	if err != nil {
		return models.ChatSession{}, err
	}
	s.rename(title)
	return s.Snapshot(), nil
}

// Delete stops the session's runner, releases its resources and forgets it.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	m.logger.Info("Session deleted", zap.String("session", id))
	return s.close(ctx)
}

// Submit starts a submission in session id. modelID selects the model tag
// stamped on assistant messages.
func (m *Manager) Submit(id, text, modelID string) error {
	s, err := m.session(id)
	if err != nil {
		return err
	}
	return s.submit(m.ctx, Submission{Text: text, ModelTag: models.FindModel(modelID).Tag})
}

// Stop requests cancellation of the running submission of session id.
func (m *Manager) Stop(id string) error {
	s, err := m.session(id)
	if err != nil {
		return err
	}
	s.runner.Stop()
	return nil
}

// Close stops every session and releases their resources.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	sessions := m.sessions
	m.sessions = map[string]*Session{}
	m.mu.Unlock()

	for _, s := range sessions {
		s.runner.Stop()
	}
	m.cancel()

	var errs []error
	for id, s := range sessions {
		if err := s.close(ctx); err != nil {
			m.logger.Warn("Session release failed", zap.String("session", id), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
