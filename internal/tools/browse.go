package tools

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/example/nexa-agent/internal/models"
	"github.com/example/nexa-agent/internal/providers/browser"
)

// Visitor loads a page in the remote browse session.
type Visitor interface {
	Visit(ctx context.Context, url string) (*browser.Page, error)
}

var (
	schemeURL = regexp.MustCompile(`(?i)\bhttps?://[^\s"'<>]+`)
	bareHost  = regexp.MustCompile(`(?i)\b(?:www\.)?[a-z0-9](?:[a-z0-9-]*[a-z0-9])?(?:\.[a-z0-9](?:[a-z0-9-]*[a-z0-9])?)*\.(?:com|org|net|io|dev|ai|edu|gov|co|app|info|uk|de)(?:/[^\s"'<>]*)?`)
)

// ResolveURL finds the first URL-like token in text. Bare hosts get an https scheme.
func ResolveURL(text string) (string, bool) {
	if m := schemeURL.FindString(text); m != "" {
		return trimURL(m), true
	}
	if m := bareHost.FindString(text); m != "" {
		return "https://" + trimURL(m), true
	}
	return "", false
}

func trimURL(u string) string {
	return strings.TrimRight(u, ".,;:!?)]}")
}

// BrowseTool visits the URL named by a step and reports on the page.
type BrowseTool struct {
	Remote    Visitor
	Answerer  *KnowledgeTool
	Condenser *Condenser
}

func (t *BrowseTool) Name() models.Capability { return models.CapabilityBrowser }

// Execute degrades navigation failures to a descriptive result instead of an error.
func (t *BrowseTool) Execute(ctx context.Context, in Input) (string, string, error) {
	if t.Remote == nil || t.Answerer == nil {
		return "", "", ErrUnavailable
	}
	url, ok := ResolveURL(in.Step)
	if !ok {
		return "", "", fmt.Errorf("no url in step: %w", ErrUnavailable)
	}

	page, err := t.Remote.Visit(ctx, url)
	if err != nil {
		if ctx.Err() != nil {
			return "", "", ctx.Err()
		}
		return fmt.Sprintf("Could not load %s: %v. Continuing without its content.", url, err), "navigation failed", nil
	}

	var evidence string
	logs := "visited " + page.URL
	switch {
	case page.TimedOut:
		evidence = fmt.Sprintf("Navigation to %s did not finish in time; its content is unavailable.", url)
		logs = "navigation timed out"
	default:
		text := page.Text
		if len(text) > MaxEvidenceBytes && t.Condenser != nil {
			if short, err := t.Condenser.Condense(ctx, text, in.Step); err == nil {
				text = short
			}
		}
		evidence = fmt.Sprintf("Page %s (%s):\n%s", page.URL, page.Title, text)
	}

	out, err := answerStep(ctx, t.Answerer.Client, in, evidence)
	if err != nil {
		return "", "", err
	}
	return out, logs, nil
}
