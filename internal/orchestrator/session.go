package orchestrator

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/example/nexa-agent/internal/models"
)

const (
	DefaultTitle   = "New Chat"
	titleMaxLength = 50
)

// PlanPayload is the body of a plan_updated event.
type PlanPayload struct {
	MessageID string       `json:"messageId"`
	Plan      *models.Plan `json:"plan"`
}

// StatePayload is the body of a state_changed event.
type StatePayload struct {
	State models.AgentState `json:"state"`
}

// Session is one chat: its transcript, its runner and the resources the
// runner holds. It observes its runner and mirrors every change to the hub.
type Session struct {
	id      string
	hub     *Hub
	updates *Coalescer
	now     func() time.Time

	mu      sync.RWMutex
	data    models.ChatSession
	state   models.AgentState
	renamed bool

	runner  *Runner
	release func(context.Context) error

	// lifeMu orders submissions against close.
	lifeMu sync.Mutex
	closed bool
}

func newSession(id string, hub *Hub, interval time.Duration, now func() time.Time) *Session {
	ts := now()
	return &Session{
		id:      id,
		hub:     hub,
		updates: hub.NewCoalescer(interval),
		now:     now,
		state:   models.StateIdle,
		data: models.ChatSession{
			ID:        id,
			Title:     DefaultTitle,
			Messages:  []models.Message{},
			CreatedAt: ts,
			UpdatedAt: ts,
		},
	}
}

// Snapshot returns a deep copy of the chat.
func (s *Session) Snapshot() models.ChatSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.data
	out.Messages = make([]models.Message, len(s.data.Messages))
	for i, m := range s.data.Messages {
		out.Messages[i] = m.Clone()
	}
	return out
}

func (s *Session) State() models.AgentState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Message returns the message with id.
func (s *Session) Message(id string) (models.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.data.Messages[i].Clone(), true
	}
	return models.Message{}, false
}

func (s *Session) rename(title string) {
	s.mu.Lock()
	s.data.Title = title
	s.data.UpdatedAt = s.now()
	s.renamed = true
	s.mu.Unlock()
}

func (s *Session) matches(q string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if strings.Contains(strings.ToLower(s.data.Title), q) {
		return true
	}
	for _, m := range s.data.Messages {
		if strings.Contains(strings.ToLower(m.Content), q) {
			return true
		}
	}
	return false
}

func (s *Session) MessageAdded(msg models.Message) {
	s.updates.Flush()
	s.mu.Lock()
	s.data.Messages = append(s.data.Messages, msg.Clone())
	if msg.Role == models.RoleUser && !s.renamed && s.data.Title == DefaultTitle {
		s.data.Title = deriveTitle(msg.Content)
	}
	s.data.UpdatedAt = s.now()
	s.mu.Unlock()
	s.hub.Publish(Event{Event: EventMessageAdded, SessionID: s.id, Payload: msg})
}

func (s *Session) MessageUpdated(msg models.Message) {
	s.mu.Lock()
	if i := s.indexOf(msg.ID); i >= 0 {
		s.data.Messages[i] = msg.Clone()
		s.data.UpdatedAt = s.now()
	}
	s.mu.Unlock()
	s.updates.Put(msg.ID, Event{Event: EventMessageUpdated, SessionID: s.id, Payload: msg})
}

func (s *Session) PlanUpdated(messageID string, plan *models.Plan) {
	s.mu.Lock()
	if i := s.indexOf(messageID); i >= 0 {
		s.data.Messages[i].Plan = plan.Clone()
		s.data.UpdatedAt = s.now()
	}
	s.mu.Unlock()
	s.updates.Flush()
	s.hub.Publish(Event{Event: EventPlanUpdated, SessionID: s.id, Payload: PlanPayload{MessageID: messageID, Plan: plan}})
}

func (s *Session) StateChanged(state models.AgentState) {
	s.updates.Flush()
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	s.hub.Publish(Event{Event: EventStateChanged, SessionID: s.id, Payload: StatePayload{State: state}})
}

func (s *Session) indexOf(id string) int {
	for i := len(s.data.Messages) - 1; i >= 0; i-- {
		if s.data.Messages[i].ID == id {
			return i
		}
	}
	return -1
}

// submit starts sub unless the session has been closed.
func (s *Session) submit(ctx context.Context, sub Submission) error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	if s.closed {
		return ErrNotFound
	}
	return s.runner.Start(ctx, sub)
}

// close stops the runner and frees the session's resources. Later
// submissions fail with ErrNotFound.
func (s *Session) close(ctx context.Context) error {
	s.lifeMu.Lock()
	s.closed = true
	s.lifeMu.Unlock()

	s.runner.Stop()
	s.runner.Wait()
	s.updates.Close()
	if s.release != nil {
		return s.release(ctx)
	}
	return nil
}

func deriveTitle(text string) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= titleMaxLength {
		return string(runes)
	}
	return string(runes[:titleMaxLength]) + "..."
}
