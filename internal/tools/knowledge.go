package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/example/nexa-agent/internal/models"
	"github.com/example/nexa-agent/internal/providers/llm"
)

// MaxEvidenceBytes caps external material quoted into a step prompt.
const MaxEvidenceBytes = 8000

const stepPrompt = `You are an autonomous agent carrying out one step of a larger task.
Current step: %s
Results of previous steps: %s

%s

Using the material above, and any search or page content in particular, give a concise factual summary (2-3 sentences) of what this step found or achieved.
Quote specific data when you have it, cite sources when available and do not invent facts.`

// KnowledgeTool answers a step from the model's own knowledge. It is also the
// fallback for every other capability.
type KnowledgeTool struct{ Client llm.Client }

func (t *KnowledgeTool) Name() models.Capability { return models.CapabilityKnowledge }

func (t *KnowledgeTool) Execute(ctx context.Context, in Input) (string, string, error) {
	out, err := answerStep(ctx, t.Client, in, "")
	if err != nil {
		return "", "", err
	}
	return out, "answered from model knowledge", nil
}

// answerStep asks the model to report on a step, grounding it on evidence when given.
func answerStep(ctx context.Context, client llm.Client, in Input, evidence string) (string, error) {
	if client == nil {
		return "", ErrUnavailable
	}
	intro := "No external material was gathered; this step relies on internal knowledge."
	if strings.TrimSpace(evidence) != "" {
		intro = "Material gathered for this step:\n\n" + truncate(evidence, MaxEvidenceBytes)
	}
	ctxText := strings.TrimSpace(in.Context)
	if ctxText == "" {
		ctxText = "(none)"
	}
	out, err := client.GenerateText(ctx, fmt.Sprintf(stepPrompt, in.Step, ctxText, intro))
	if err != nil {
		return "", fmt.Errorf("generate step answer: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// truncate cuts s to at most max bytes without splitting a UTF-8 sequence.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut]
}
