// Package agents holds the model-backed components of a task run: intent
// classification, planning, step execution, finalization and chat replies.
package agents

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/example/nexa-agent/internal/models"
	"github.com/example/nexa-agent/internal/providers/llm"
)

const classifyPrompt = `Classify the following user prompt.
"chat": greetings, questions about the assistant itself, casual conversation, or simple one-shot questions that need no research and no multiple steps.
"task": requests that need research, planning, writing documents, coding, analyzing data or carrying out several steps.

User prompt: %q

Return ONLY the string "chat" or "task".`

type Classifier struct {
	Client llm.Client
	Logger *zap.Logger
}

// Classify never fails: any backend error yields IntentChat.
func (c *Classifier) Classify(ctx context.Context, text string) models.Intent {
	if c.Client == nil {
		return models.IntentChat
	}
	out, err := c.Client.GenerateText(ctx, fmt.Sprintf(classifyPrompt, text))
	if err != nil {
		orNop(c.Logger).Warn("Intent classification failed, defaulting to chat", zap.Error(err))
		return models.IntentChat
	}
	if strings.Contains(strings.ToLower(out), string(models.IntentTask)) {
		return models.IntentTask
	}
	return models.IntentChat
}
