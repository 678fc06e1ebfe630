package tools

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/example/nexa-agent/internal/providers/llm"
)

// Condenser shrinks long documents with a map-reduce pass: each chunk is
// summarized with bounded concurrency, then the partial summaries are merged.
type Condenser struct {
	Client      llm.Client
	ChunkSize   int
	Overlap     int
	MaxParallel int
}

func (c *Condenser) defaults() (size, overlap, par int) {
	size, overlap, par = c.ChunkSize, c.Overlap, c.MaxParallel
	if size < 1000 {
		size = MaxEvidenceBytes
	}
	if overlap < 0 || overlap >= size {
		overlap = 400
	}
	if par <= 0 {
		par = 3
	}
	return size, overlap, par
}

// Condense returns text unchanged when it fits in one chunk.
func (c *Condenser) Condense(ctx context.Context, text, focus string) (string, error) {
	size, overlap, par := c.defaults()
	parts := splitChunks(text, size, overlap)
	if len(parts) <= 1 {
		return text, nil
	}

	sums := make([]string, len(parts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(par)
	for i, p := range parts {
		g.Go(func() error {
			prompt := fmt.Sprintf("Summarize this section into 3-5 concise bullets, keeping facts relevant to: %s\n\nSection %d/%d:\n%s", focus, i+1, len(parts), p)
			s, err := c.Client.GenerateText(gctx, prompt)
			if err != nil {
				return fmt.Errorf("summarize section %d: %w", i+1, err)
			}
			sums[i] = strings.TrimSpace(s)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("Combine these section summaries into one clear summary. Avoid repetition and keep critical details.\n\nSummaries:")
	for i, s := range sums {
		fmt.Fprintf(&b, "\n\n[Section %d]\n%s", i+1, s)
	}
	out, err := c.Client.GenerateText(ctx, b.String())
	if err != nil {
		return "", fmt.Errorf("merge summaries: %w", err)
	}
	return strings.TrimSpace(out), nil
}

func splitChunks(s string, size, overlap int) []string {
	if size <= 0 || len(s) <= size {
		return []string{s}
	}
	var out []string
	for start := 0; start < len(s); {
		end := start + size
		if end > len(s) {
			end = len(s)
		}
		out = append(out, s[start:end])
		if end == len(s) {
			break
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}
