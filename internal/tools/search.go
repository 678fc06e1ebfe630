package tools

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/example/nexa-agent/internal/models"
	"github.com/example/nexa-agent/internal/providers/search"
)

// Searcher is the web search backend.
type Searcher interface {
	Search(ctx context.Context, query string) (*search.Response, error)
}

var triggerWords = regexp.MustCompile(`(?i)\b(search|browse|google|research|find|look up|for|the|web|internet)\b`)

// DeriveQuery strips tool-trigger words from a step description.
func DeriveQuery(step string) string {
	return strings.Join(strings.Fields(triggerWords.ReplaceAllString(step, " ")), " ")
}

// FormatEvidence renders search results with numbered citations, prefixed by
// the backend's synthesized answer when present. No results yields "".
func FormatEvidence(resp *search.Response) string {
	if resp == nil || len(resp.Results) == 0 {
		return ""
	}
	parts := make([]string, 0, len(resp.Results))
	for i, r := range resp.Results {
		parts = append(parts, fmt.Sprintf("[%d] %s\n%s\nSource: %s", i+1, r.Title, r.Content, r.URL))
	}
	out := strings.Join(parts, "\n\n")
	if resp.Answer != "" {
		out = "Summary: " + resp.Answer + "\n\n--- Detailed Results ---\n" + out
	}
	return out
}

// SearchTool grounds a step on web search results.
type SearchTool struct {
	Searcher Searcher
	Answerer *KnowledgeTool
}

func (t *SearchTool) Name() models.Capability { return models.CapabilitySearch }

// Execute returns ErrUnavailable (wrapped) for missing credentials, an empty
// query, a failed search or no results.
func (t *SearchTool) Execute(ctx context.Context, in Input) (string, string, error) {
	if t.Searcher == nil || t.Answerer == nil {
		return "", "", ErrUnavailable
	}
	query := DeriveQuery(in.Step)
	if query == "" {
		return "", "", fmt.Errorf("empty search query: %w", ErrUnavailable)
	}
	resp, err := t.Searcher.Search(ctx, query)
	if err != nil {
		return "", "", fmt.Errorf("search %q: %w: %w", query, err, ErrUnavailable)
	}
	evidence := FormatEvidence(resp)
	if evidence == "" {
		return "", "", fmt.Errorf("no results for %q: %w", query, ErrUnavailable)
	}
	out, err := answerStep(ctx, t.Answerer.Client, in, evidence)
	if err != nil {
		return "", "", err
	}
	return out, fmt.Sprintf("searched %q, %d results", query, len(resp.Results)), nil
}
