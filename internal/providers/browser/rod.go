package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/example/nexa-agent/internal/extract"
)

type RodConfig struct {
	// ControlURL attaches to a running Chrome; empty launches a local one.
	ControlURL        string
	Headless          bool
	NavigationTimeout time.Duration
	MaxText           int
}

// RodBackend drives a real Chrome over the DevTools protocol.
type RodBackend struct {
	cfg    RodConfig
	logger *zap.Logger
	events chan Event

	mu       sync.Mutex
	launch   *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	bgCtx    context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup
}

func NewRodBackend(cfg RodConfig, logger *zap.Logger) *RodBackend {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 20 * time.Second
	}
	if cfg.MaxText <= 0 {
		cfg.MaxText = 20000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RodBackend{cfg: cfg, logger: logger.Named("rod"), events: make(chan Event, 16)}
}

func (b *RodBackend) Events() <-chan Event { return b.events }

func (b *RodBackend) Start(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser != nil {
		emit(b.events, Event{Kind: EventReady}, b.logger)
		return nil
	}

	controlURL := b.cfg.ControlURL
	if controlURL == "" {
		l := launcher.New().Headless(b.cfg.Headless)
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("launch chrome: %w", err)
		}
		b.launch = l
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		b.killLauncher()
		return fmt.Errorf("connect to chrome: %w", err)
	}
	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = browser.Close()
		b.killLauncher()
		return fmt.Errorf("create page: %w", err)
	}

	b.browser, b.page = browser, page
	// Stop cancels bgCtx to abort in-flight navigations.
	b.bgCtx, b.cancel = context.WithCancel(context.Background())
	b.logger.Info("Chrome session ready", zap.Bool("attached", b.cfg.ControlURL != ""))
	emit(b.events, Event{Kind: EventReady}, b.logger)
	return nil
}

func (b *RodBackend) Navigate(_ context.Context, url string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.page == nil {
		return ErrNotStarted
	}
	page, ctx := b.page, b.bgCtx
	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()
		ev, err := b.load(ctx, page, url)
		if err != nil {
			emit(b.events, Event{Kind: EventError, RequestURL: url, URL: url, Err: err}, b.logger)
			return
		}
		emit(b.events, ev, b.logger)
	}()
	return nil
}

func (b *RodBackend) load(ctx context.Context, page *rod.Page, url string) (Event, error) {
	p := page.Context(ctx).Timeout(b.cfg.NavigationTimeout)
	defer p.CancelTimeout()

	if err := p.Navigate(url); err != nil {
		return Event{}, fmt.Errorf("navigate: %w", err)
	}
	if err := p.WaitLoad(); err != nil {
		return Event{}, fmt.Errorf("wait load: %w", err)
	}
	html, err := p.HTML()
	if err != nil {
		return Event{}, fmt.Errorf("read html: %w", err)
	}
	text, err := extract.HTMLToText(html)
	if err != nil {
		return Event{}, fmt.Errorf("parse html: %w", err)
	}
	ev := Event{Kind: EventNavigated, RequestURL: url, URL: url, Text: extract.Truncate(text, b.cfg.MaxText)}
	if info, err := p.Info(); err == nil {
		ev.URL, ev.Title = info.URL, info.Title
	}
	return ev, nil
}

// Stop aborts pending navigations and releases the page, the browser and any
// locally launched Chrome.
func (b *RodBackend) Stop(_ context.Context) error {
	b.mu.Lock()
	if b.browser == nil {
		b.mu.Unlock()
		return nil
	}
	b.cancel()
	page, browser := b.page, b.browser
	b.page, b.browser = nil, nil
	b.mu.Unlock()

	b.inflight.Wait()
	_ = page.Close()
	err := browser.Close()

	b.mu.Lock()
	b.killLauncher()
	b.mu.Unlock()
	return err
}

func (b *RodBackend) killLauncher() {
	if b.launch == nil {
		return
	}
	b.launch.Kill()
	b.launch.Cleanup()
	b.launch = nil
}
