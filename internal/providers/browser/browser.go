// Package browser drives a remote browsing session through an event-style
// contract: start, ready event, navigate, navigation-complete event, stop.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/example/nexa-agent/internal/config"
)

var (
	// ErrTimeout is returned when an awaited event does not arrive in time.
	ErrTimeout = errors.New("timed out waiting for browser event")
	// ErrNotStarted is returned when navigating a backend that was never started.
	ErrNotStarted = errors.New("browser session not started")
	// ErrClosed is returned when the backend event stream ends.
	ErrClosed = errors.New("browser event stream closed")
)

type EventKind string

const (
	EventReady     EventKind = "ready"
	EventNavigated EventKind = "navigation_complete"
	EventError     EventKind = "error"
)

type Event struct {
	Kind EventKind
	// RequestURL is the URL passed to Navigate; URL is where the page ended up.
	RequestURL string
	URL        string
	Title      string
	Text       string
	Err        error
}

// Backend is a remote browsing session. Start and Navigate only request work;
// completion is signalled on Events.
type Backend interface {
	Start(ctx context.Context) error
	Navigate(ctx context.Context, url string) error
	Stop(ctx context.Context) error
	Events() <-chan Event
}

// NewBackend returns the backend selected by cfg.Mode, or nil when browsing is off.
func NewBackend(cfg config.Browser, logger *zap.Logger) Backend {
	switch cfg.Mode {
	case config.BrowserRod:
		return NewRodBackend(RodConfig{ControlURL: cfg.ControlURL, Headless: cfg.Headless, NavigationTimeout: cfg.NavigationTimeout.Std()}, logger)
	case config.BrowserHTTP:
		return NewHTTPBackend(HTTPConfig{}, logger)
	default:
		return nil
	}
}

// Page is the outcome of a visit.
type Page struct {
	URL      string
	Title    string
	Text     string
	TimedOut bool
}

type RemoteConfig struct {
	ReadyTimeout      time.Duration
	NavigationTimeout time.Duration
	Logger            *zap.Logger
}

func (c *RemoteConfig) defaults() {
	if c.ReadyTimeout <= 0 {
		c.ReadyTimeout = 15 * time.Second
	}
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = 20 * time.Second
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// Remote owns one lazily opened backend session. Open is idempotent: a second
// Open without an intervening Close does not start the backend again.
type Remote struct {
	backend Backend
	cfg     RemoteConfig
	logger  *zap.Logger

	open  singleflight.Group
	mu    sync.Mutex
	ready bool
	// starts counts backend Start calls.
	starts int

	navMu sync.Mutex
}

func NewRemote(backend Backend, cfg RemoteConfig) *Remote {
	cfg.defaults()
	return &Remote{backend: backend, cfg: cfg, logger: cfg.Logger.Named("browser")}
}

// Open starts the backend if needed and waits for its ready event.
// A ready timeout is logged and tolerated.
func (r *Remote) Open(ctx context.Context) error {
	if r.isReady() {
		return nil
	}
	_, err, _ := r.open.Do("open", func() (any, error) {
		r.mu.Lock()
		if r.ready {
			r.mu.Unlock()
			return nil, nil
		}
		r.starts++
		r.mu.Unlock()

		if err := r.backend.Start(ctx); err != nil {
			return nil, fmt.Errorf("start browser session: %w", err)
		}
		if _, err := r.await(ctx, EventReady, "", r.cfg.ReadyTimeout); err != nil {
			if !errors.Is(err, ErrTimeout) {
				if stopErr := r.backend.Stop(context.WithoutCancel(ctx)); stopErr != nil {
					r.logger.Warn("Browser session not stopped after failed open", zap.Error(stopErr))
				}
				return nil, err
			}
			r.logger.Warn("Browser ready event not received, proceeding", zap.Duration("timeout", r.cfg.ReadyTimeout))
		}

		r.mu.Lock()
		r.ready = true
		r.mu.Unlock()
		return nil, nil
	})
	return err
}

// Visit opens the session if needed, navigates to url and waits for the
// navigation to complete. A navigation timeout yields a Page with TimedOut set.
func (r *Remote) Visit(ctx context.Context, url string) (*Page, error) {
	if err := r.Open(ctx); err != nil {
		return nil, err
	}
	r.navMu.Lock()
	defer r.navMu.Unlock()

	if err := r.backend.Navigate(ctx, url); err != nil {
		return nil, fmt.Errorf("navigate to %s: %w", url, err)
	}
	ev, err := r.await(ctx, EventNavigated, url, r.cfg.NavigationTimeout)
	if errors.Is(err, ErrTimeout) {
		r.logger.Warn("Navigation did not complete in time, proceeding", zap.String("url", url))
		return &Page{URL: url, TimedOut: true}, nil
	}
	if err != nil {
		return nil, err
	}
	return &Page{URL: ev.URL, Title: ev.Title, Text: ev.Text}, nil
}

// Close stops the backend session if it is open.
func (r *Remote) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.ready {
		r.mu.Unlock()
		return nil
	}
	r.ready = false
	r.mu.Unlock()
	return r.backend.Stop(ctx)
}

// Starts returns how many times the backend was started.
func (r *Remote) Starts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.starts
}

func (r *Remote) isReady() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready
}

// await consumes events until one of kind arrives. When url is set only events
// for that navigation request count.
func (r *Remote) await(ctx context.Context, kind EventKind, url string, timeout time.Duration) (Event, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	events := r.backend.Events()
	for {
		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case <-timer.C:
			return Event{}, ErrTimeout
		case ev, ok := <-events:
			if !ok {
				return Event{}, ErrClosed
			}
			if url != "" && ev.RequestURL != url {
				continue
			}
			if ev.Kind == EventError && url != "" {
				return ev, ev.Err
			}
			if ev.Kind == kind {
				return ev, nil
			}
		}
	}
}

// emit sends without blocking; a full buffer drops the event.
func emit(ch chan Event, ev Event, logger *zap.Logger) {
	select {
	case ch <- ev:
	default:
		logger.Warn("Browser event dropped", zap.String("kind", string(ev.Kind)))
	}
}
