package main

import (
	"context"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/example/nexa-agent/internal/agents"
	"github.com/example/nexa-agent/internal/config"
	"github.com/example/nexa-agent/internal/orchestrator"
	"github.com/example/nexa-agent/internal/providers/browser"
	"github.com/example/nexa-agent/internal/providers/llm"
	"github.com/example/nexa-agent/internal/providers/search"
	"github.com/example/nexa-agent/internal/tools"
)

// stack holds the process-wide providers shared by every session.
type stack struct {
	cfg    config.Config
	logger *zap.Logger
	llm    llm.Client
	search *search.Tavily
}

func newStack(ctx context.Context, cfg config.Config, logger *zap.Logger) *stack {
	client := llm.NewFromConfig(ctx, cfg.LLM, logger.Named("llm"))
	var searcher *search.Tavily
	if cfg.Search.TavilyKey != "" {
		searcher = &search.Tavily{
			APIKey:     cfg.Search.TavilyKey,
			URL:        cfg.Search.TavilyURL,
			MaxResults: cfg.Search.MaxResults,
			HTTP:       &http.Client{Timeout: cfg.LLM.Timeout.Std()},
		}
	} else {
		logger.Info("No search credentials configured, search steps use model knowledge")
	}
	return &stack{cfg: cfg, logger: logger, llm: client, search: searcher}
}

// parts assembles the agents of one session. Each session gets its own
// browsing session, released with the session.
func (s *stack) parts(sessionID string) orchestrator.Parts {
	logger := s.logger.With(zap.String("session", sessionID))
	knowledge := &tools.KnowledgeTool{Client: s.llm}
	registry := tools.NewRegistry(knowledge)
	if s.search != nil {
		registry.Register(&tools.SearchTool{Searcher: s.search, Answerer: knowledge})
	}

	var release func(context.Context) error
	if backend := browser.NewBackend(s.cfg.Browser, logger.Named("browser")); backend != nil {
		remote := browser.NewRemote(backend, browser.RemoteConfig{
			ReadyTimeout:      s.cfg.Browser.ReadyTimeout.Std(),
			NavigationTimeout: s.cfg.Browser.NavigationTimeout.Std(),
			Logger:            logger,
		})
		registry.Register(&tools.BrowseTool{
			Remote:    remote,
			Answerer:  knowledge,
			Condenser: &tools.Condenser{Client: s.llm},
		})
		release = remote.Close
	}

	return orchestrator.Parts{
		Agents: orchestrator.Agents{
			Classifier: &agents.Classifier{Client: s.llm, Logger: logger.Named("agents.classifier")},
			Planner:    &agents.Planner{Client: s.llm, Steps: s.cfg.Agent.StepCount, Logger: logger.Named("agents.planner")},
			Executor: &agents.StepExecutor{
				Router: agents.NewRouter(agents.RoutingMode(s.cfg.Agent.Routing)),
				Tools:  registry,
				Client: s.llm,
				Logger: logger.Named("agents.executor"),
			},
			Finalizer: &agents.Finalizer{Client: s.llm, Logger: logger.Named("agents.finalizer")},
			Responder: &agents.Responder{Client: s.llm, Logger: logger.Named("agents.responder")},
		},
		Release: release,
	}
}

func (s *stack) runnerConfig() orchestrator.Config {
	return orchestrator.Config{
		LogDelay:  s.cfg.Agent.LogDelay.Std(),
		StepPause: s.cfg.Agent.StepPause.Std(),
		Logger:    s.logger.Named("orchestrator"),
	}
}

func (s *stack) Close() error {
	if c, ok := s.llm.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
