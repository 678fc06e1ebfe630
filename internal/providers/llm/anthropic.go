package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

const defaultAnthropicURL = "https://api.anthropic.com/v1/messages"

type AnthropicClient struct {
	APIKey string
	Model  string
	URL    string
	HTTP   *http.Client
}

func (c *AnthropicClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	body := map[string]any{
		"model":      c.Model,
		"max_tokens": 1024,
		"messages": []map[string]any{{
			"role":    "user",
			"content": []map[string]string{{"type": "text", "text": prompt}},
		}},
	}
	var resp struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	headers := map[string]string{
		"x-api-key":         c.APIKey,
		"anthropic-version": "2023-06-01",
	}
	if err := postWithRetry(ctx, c.httpClient(), "anthropic", c.url(), headers, body, &resp); err != nil {
		return "", err
	}
	if len(resp.Content) == 0 {
		return "", errors.New("no content")
	}
	var b strings.Builder
	for _, part := range resp.Content {
		b.WriteString(part.Text)
	}
	return b.String(), nil
}

func (c *AnthropicClient) GenerateJSON(ctx context.Context, prompt string, schema *Schema) (string, error) {
	return c.GenerateText(ctx, prompt+schemaInstruction(schema))
}

func (c *AnthropicClient) GenerateTextStream(ctx context.Context, prompt string, onDelta func(chunk string) error) error {
	// Fallback to non-streaming for now
	txt, err := c.GenerateText(ctx, prompt)
	if err != nil {
		return err
	}
	return onDelta(txt)
}

func (c *AnthropicClient) url() string {
	if c.URL != "" {
		return c.URL
	}
	return defaultAnthropicURL
}

func (c *AnthropicClient) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return &http.Client{Timeout: DefaultTimeout}
}
