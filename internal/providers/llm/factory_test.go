package llm_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/nexa-agent/internal/config"
	"github.com/example/nexa-agent/internal/providers/llm"
)

func TestNewFromConfig(t *testing.T) {
	tests := map[string]struct {
		cfg   config.LLM
		check func(t *testing.T, c llm.Client)
	}{
		"Nothing configured should fall back to the mock": {
			check: func(t *testing.T, c llm.Client) {
				assert.IsType(t, &llm.MockClient{}, c)
			},
		},

		"An explicit mock provider should win over keys": {
			cfg: config.LLM{Provider: "Mock", OpenAIKey: "sk"},
			check: func(t *testing.T, c llm.Client) {
				assert.IsType(t, &llm.MockClient{}, c)
			},
		},

		"OpenAI should use the default model when none is set": {
			cfg: config.LLM{Provider: "openai", OpenAIKey: "sk", OpenAIBase: "http://local", Timeout: config.Duration(5 * time.Second)},
			check: func(t *testing.T, c llm.Client) {
				oc, ok := c.(*llm.OpenAIClient)
				require.True(t, ok)
				assert.Equal(t, "gpt-4o-mini", oc.Model)
				assert.Equal(t, "http://local", oc.BaseURL)
				assert.Equal(t, 5*time.Second, oc.HTTP.Timeout)
			},
		},

		"Anthropic should keep the configured model": {
			cfg: config.LLM{Provider: "anthropic", AnthropicKey: "ak", Model: " claude-test "},
			check: func(t *testing.T, c llm.Client) {
				ac, ok := c.(*llm.AnthropicClient)
				require.True(t, ok)
				assert.Equal(t, "claude-test", ac.Model)
				assert.Equal(t, llm.DefaultTimeout, ac.HTTP.Timeout)
			},
		},

		"A named provider without a key should auto-detect another": {
			cfg: config.LLM{Provider: "openai", AnthropicKey: "ak"},
			check: func(t *testing.T, c llm.Client) {
				assert.IsType(t, &llm.AnthropicClient{}, c)
			},
		},

		"Auto-detection should prefer OpenAI over Anthropic": {
			cfg: config.LLM{OpenAIKey: "sk", AnthropicKey: "ak"},
			check: func(t *testing.T, c llm.Client) {
				assert.IsType(t, &llm.OpenAIClient{}, c)
			},
		},

		"Gemini without a key should fall back to the mock": {
			cfg: config.LLM{Provider: "gemini"},
			check: func(t *testing.T, c llm.Client) {
				assert.IsType(t, &llm.MockClient{}, c)
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			test.check(t, llm.NewFromConfig(context.Background(), test.cfg, nil))
		})
	}
}
