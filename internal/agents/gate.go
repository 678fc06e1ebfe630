package agents

import (
	"errors"
	"strings"
	"sync"
)

// ErrLoginRequired is returned when the guest gate vetoes a submission.
var ErrLoginRequired = errors.New("login required")

var privateDataKeywords = []string{"gmail", "email", "calendar", "drive", "my file", "my doc", "spreadsheet", "login", "account"}

// DefaultGuestLimit is the number of guest submissions allowed per key.
const DefaultGuestLimit = 3

// GuestGate vetoes guest submissions that touch private data or exceed the
// interaction limit. A disabled gate allows everything.
type GuestGate struct {
	Enabled bool
	Limit   int

	mu     sync.Mutex
	counts map[string]int
}

func NewGuestGate(enabled bool, limit int) *GuestGate {
	if limit <= 0 {
		limit = DefaultGuestLimit
	}
	return &GuestGate{Enabled: enabled, Limit: limit, counts: map[string]int{}}
}

// Check vetoes text for guest key. It does not count the interaction; call
// Record once the submission has been accepted.
func (g *GuestGate) Check(key, text string) error {
	if g == nil || !g.Enabled {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if containsAny(strings.ToLower(text), privateDataKeywords) || g.counts[key] >= g.limit() {
		return ErrLoginRequired
	}
	return nil
}

// Record counts one accepted interaction for key.
func (g *GuestGate) Record(key string) {
	if g == nil || !g.Enabled {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.counts == nil {
		g.counts = map[string]int{}
	}
	g.counts[key]++
}

func (g *GuestGate) limit() int {
	if g.Limit <= 0 {
		return DefaultGuestLimit
	}
	return g.Limit
}

// Forget drops the interaction count of key.
func (g *GuestGate) Forget(key string) {
	if g == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.counts, key)
}
