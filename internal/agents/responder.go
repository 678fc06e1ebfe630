package agents

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/example/nexa-agent/internal/providers/llm"
)

const (
	ReplyEmptyResult  = "I'm here to help."
	ReplyFailedResult = "I'm having trouble connecting right now."
)

const ackPrompt = `Acknowledge the user's request: %q. Be brief and natural, 1-2 sentences max.`

// Responder produces plain chat replies.
type Responder struct {
	Client llm.Client
	Logger *zap.Logger
}

func (r *Responder) Respond(ctx context.Context, prompt string) string {
	if r.Client == nil {
		return ReplyFailedResult
	}
	out, err := r.Client.GenerateText(ctx, prompt)
	if err != nil {
		orNop(r.Logger).Warn("Chat reply failed", zap.Error(err))
		return ReplyFailedResult
	}
	if out = strings.TrimSpace(out); out == "" {
		return ReplyEmptyResult
	}
	return out
}

// Acknowledge replies to a task request before planning starts.
func (r *Responder) Acknowledge(ctx context.Context, text string) string {
	return r.Respond(ctx, fmt.Sprintf(ackPrompt, text))
}

// Stream generates a reply incrementally, handing sink the accumulated text
// after every chunk. It returns the final text. A failure before any chunk
// arrived is reported to sink as the fallback reply; a failure midway keeps
// the partial text.
func (r *Responder) Stream(ctx context.Context, prompt string, sink func(accumulated string)) string {
	if r.Client == nil {
		sink(ReplyFailedResult)
		return ReplyFailedResult
	}
	var acc strings.Builder
	err := r.Client.GenerateTextStream(ctx, prompt, func(chunk string) error {
		acc.WriteString(chunk)
		sink(acc.String())
		return nil
	})
	out := acc.String()
	switch {
	case err != nil && strings.TrimSpace(out) == "":
		orNop(r.Logger).Warn("Chat stream failed", zap.Error(err))
		sink(ReplyFailedResult)
		return ReplyFailedResult
	case err != nil:
		orNop(r.Logger).Warn("Chat stream interrupted", zap.Error(err), zap.Int("received", len(out)))
		return out
	case strings.TrimSpace(out) == "":
		sink(ReplyEmptyResult)
		return ReplyEmptyResult
	}
	return out
}
