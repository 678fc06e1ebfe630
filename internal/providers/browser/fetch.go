package browser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/nexa-agent/internal/extract"
)

type HTTPConfig struct {
	Client      *http.Client
	MaxBytes    int64
	MaxPDFPages int
	MaxText     int
	UserAgent   string
}

func (c *HTTPConfig) defaults() {
	if c.Client == nil {
		c.Client = &http.Client{Timeout: 20 * time.Second}
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 2 << 20
	}
	if c.MaxPDFPages <= 0 {
		c.MaxPDFPages = 10
	}
	if c.MaxText <= 0 {
		c.MaxText = 20000
	}
	if c.UserAgent == "" {
		c.UserAgent = "nexa-agent/1.0"
	}
}

// HTTPBackend is a headless-less session: each navigation is a plain GET whose
// body is reduced to text. Fetches run in the background and report on Events.
type HTTPBackend struct {
	cfg    HTTPConfig
	logger *zap.Logger
	events chan Event

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	bgCtx   context.Context
	wg      sync.WaitGroup
}

func NewHTTPBackend(cfg HTTPConfig, logger *zap.Logger) *HTTPBackend {
	cfg.defaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPBackend{cfg: cfg, logger: logger.Named("http-browser"), events: make(chan Event, 16)}
}

func (b *HTTPBackend) Events() <-chan Event { return b.events }

func (b *HTTPBackend) Start(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started {
		b.bgCtx, b.cancel = context.WithCancel(context.Background())
		b.started = true
	}
	emit(b.events, Event{Kind: EventReady}, b.logger)
	return nil
}

func (b *HTTPBackend) Navigate(_ context.Context, url string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started {
		return ErrNotStarted
	}
	b.wg.Add(1)
	go func(ctx context.Context) {
		defer b.wg.Done()
		ev, err := b.fetch(ctx, url)
		if err != nil {
			emit(b.events, Event{Kind: EventError, RequestURL: url, URL: url, Err: err}, b.logger)
			return
		}
		emit(b.events, ev, b.logger)
	}(b.bgCtx)
	return nil
}

// Stop cancels in-flight fetches and waits for them to exit.
func (b *HTTPBackend) Stop(_ context.Context) error {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return nil
	}
	b.cancel()
	b.started = false
	b.mu.Unlock()
	b.wg.Wait()
	return nil
}

func (b *HTTPBackend) fetch(ctx context.Context, url string) (Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Event{}, err
	}
	req.Header.Set("User-Agent", b.cfg.UserAgent)
	resp, err := b.cfg.Client.Do(req)
	if err != nil {
		return Event{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Event{}, fmt.Errorf("status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, b.cfg.MaxBytes))
	if err != nil {
		return Event{}, err
	}

	ev := Event{Kind: EventNavigated, RequestURL: url, URL: resp.Request.URL.String()}
	ct := resp.Header.Get("Content-Type")
	switch {
	case extract.IsPDF(body, ct):
		text, pages, err := extract.PDFText(body, b.cfg.MaxPDFPages)
		if err != nil {
			return Event{}, fmt.Errorf("read pdf: %w", err)
		}
		b.logger.Debug("PDF fetched", zap.String("url", url), zap.Int("pages", pages))
		ev.Text = text
	case strings.Contains(ct, "html") || ct == "":
		html := string(body)
		text, err := extract.HTMLToText(html)
		if err != nil {
			return Event{}, fmt.Errorf("parse html: %w", err)
		}
		ev.Title = extract.Title(html)
		ev.Text = text
	default:
		ev.Text = string(body)
	}
	ev.Text = extract.Truncate(ev.Text, b.cfg.MaxText)
	return ev, nil
}
