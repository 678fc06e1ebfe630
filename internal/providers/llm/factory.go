package llm

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/nexa-agent/internal/config"
)

const (
	defaultOpenAIModel    = "gpt-4o-mini"
	defaultAnthropicModel = "claude-3-5-sonnet-latest"
	defaultGeminiModel    = "gemini-2.0-flash"
)

// NewFromConfig returns a Client for the configured provider.
// Supported providers: openai | anthropic | gemini | mock. When no provider is
// named the first configured API key wins; if nothing is configured, returns a MockClient.
func NewFromConfig(ctx context.Context, cfg config.LLM, logger *zap.Logger) Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	prov := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch prov {
	case "openai":
		if cfg.OpenAIKey != "" {
			return newOpenAI(cfg)
		}
	case "anthropic":
		if cfg.AnthropicKey != "" {
			return newAnthropic(cfg)
		}
	case "gemini":
		if cfg.GoogleKey != "" {
			if c := newGemini(ctx, cfg, logger); c != nil {
				return c
			}
		}
	case "mock":
		return &MockClient{}
	}
	if prov != "" {
		logger.Warn("LLM provider not usable, auto-detecting", zap.String("provider", prov))
	}

	// Auto-detect by API key presence if provider not specified
	if cfg.GoogleKey != "" {
		if c := newGemini(ctx, cfg, logger); c != nil {
			return c
		}
	}
	if cfg.OpenAIKey != "" {
		return newOpenAI(cfg)
	}
	if cfg.AnthropicKey != "" {
		return newAnthropic(cfg)
	}
	logger.Info("No LLM provider configured, using mock client")
	return &MockClient{}
}

func newOpenAI(cfg config.LLM) Client {
	return &OpenAIClient{APIKey: cfg.OpenAIKey, Model: modelOr(cfg.Model, defaultOpenAIModel), BaseURL: cfg.OpenAIBase, HTTP: httpClient(cfg)}
}

func newAnthropic(cfg config.LLM) Client {
	return &AnthropicClient{APIKey: cfg.AnthropicKey, Model: modelOr(cfg.Model, defaultAnthropicModel), HTTP: httpClient(cfg)}
}

func newGemini(ctx context.Context, cfg config.LLM, logger *zap.Logger) Client {
	c, err := NewGeminiClient(ctx, cfg.GoogleKey, modelOr(cfg.Model, defaultGeminiModel))
	if err != nil {
		logger.Warn("Gemini client unavailable", zap.Error(err))
		return nil
	}
	return c
}

func httpClient(cfg config.LLM) *http.Client {
	timeout := DefaultTimeout
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout)
	}
	return &http.Client{Timeout: timeout}
}

func modelOr(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}
