// Package fake provides a scriptable llm.Client for tests.
package fake

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/example/nexa-agent/internal/providers/llm"
)

// ErrUnscripted is returned by calls without a matching handler.
var ErrUnscripted = errors.New("fake llm: no handler")

type Call struct {
	Method string
	Prompt string
	Schema *llm.Schema
}

// Client routes each call to the first matching handler. Handlers are picked by
// a case-insensitive substring of the prompt; an empty match catches all.
type Client struct {
	mu    sync.Mutex
	text  []textRule
	json  []jsonRule
	calls []Call

	// Chunks overrides how streamed text is split; by default words are sent.
	Chunks func(text string) []string
}

type textRule struct {
	match string
	fn    func(ctx context.Context, prompt string) (string, error)
}

type jsonRule struct {
	match string
	fn    func(ctx context.Context, prompt string, schema *llm.Schema) (string, error)
}

func New() *Client { return &Client{} }

// OnText registers a handler for GenerateText and GenerateTextStream.
func (c *Client) OnText(match string, fn func(ctx context.Context, prompt string) (string, error)) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = append(c.text, textRule{match: strings.ToLower(match), fn: fn})
	return c
}

// OnJSON registers a handler for GenerateJSON.
func (c *Client) OnJSON(match string, fn func(ctx context.Context, prompt string, schema *llm.Schema) (string, error)) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.json = append(c.json, jsonRule{match: strings.ToLower(match), fn: fn})
	return c
}

// Text is a shortcut for a handler returning a fixed reply.
func (c *Client) Text(match, reply string) *Client {
	return c.OnText(match, func(context.Context, string) (string, error) { return reply, nil })
}

// JSON is a shortcut for a handler returning a fixed JSON document.
func (c *Client) JSON(match, reply string) *Client {
	return c.OnJSON(match, func(context.Context, string, *llm.Schema) (string, error) { return reply, nil })
}

func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	c.record(Call{Method: "text", Prompt: prompt})
	fn := c.textHandler(prompt)
	if fn == nil {
		return "", ErrUnscripted
	}
	return fn(ctx, prompt)
}

func (c *Client) GenerateJSON(ctx context.Context, prompt string, schema *llm.Schema) (string, error) {
	c.record(Call{Method: "json", Prompt: prompt, Schema: schema})
	c.mu.Lock()
	var fn func(context.Context, string, *llm.Schema) (string, error)
	lp := strings.ToLower(prompt)
	for _, r := range c.json {
		if strings.Contains(lp, r.match) {
			fn = r.fn
			break
		}
	}
	c.mu.Unlock()
	if fn == nil {
		return "", ErrUnscripted
	}
	return fn(ctx, prompt, schema)
}

func (c *Client) GenerateTextStream(ctx context.Context, prompt string, onDelta func(chunk string) error) error {
	c.record(Call{Method: "stream", Prompt: prompt})
	fn := c.textHandler(prompt)
	if fn == nil {
		return ErrUnscripted
	}
	txt, err := fn(ctx, prompt)
	if err != nil {
		return err
	}
	split := c.Chunks
	if split == nil {
		split = func(s string) []string { return strings.SplitAfter(s, " ") }
	}
	for _, chunk := range split(txt) {
		if err := onDelta(chunk); err != nil {
			return err
		}
	}
	return nil
}

// Calls returns a copy of every call made so far.
func (c *Client) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Call, len(c.calls))
	copy(out, c.calls)
	return out
}

// CallCount counts calls whose prompt contains match.
func (c *Client) CallCount(match string) int {
	n := 0
	for _, call := range c.Calls() {
		if strings.Contains(strings.ToLower(call.Prompt), strings.ToLower(match)) {
			n++
		}
	}
	return n
}

func (c *Client) record(call Call) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
}

func (c *Client) textHandler(prompt string) func(context.Context, string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	lp := strings.ToLower(prompt)
	for _, r := range c.text {
		if strings.Contains(lp, r.match) {
			return r.fn
		}
	}
	return nil
}

var _ llm.Client = (*Client)(nil)
