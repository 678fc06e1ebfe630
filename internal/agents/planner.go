package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/nexa-agent/internal/providers/llm"
)

// DefaultStepCount is the number of steps requested from the model.
const DefaultStepCount = 4

// maxPlanSteps bounds plans from models that ignore the requested count.
const maxPlanSteps = 10

var fallbackPlan = []string{"Analyze request", "Gather information", "Process data", "Generate report"}

// FallbackPlan returns the plan used when synthesis fails.
func FallbackPlan() []string {
	out := make([]string, len(fallbackPlan))
	copy(out, fallbackPlan)
	return out
}

const planPrompt = `You are an expert planner for an autonomous AI agent.
Break the following user request into exactly %d distinct, actionable steps the agent would take to complete it.
Return ONLY a JSON array of strings, without markdown formatting.
User request: %q`

// Planner turns a task request into ordered step descriptions.
type Planner struct {
	Client llm.Client
	// Steps is the requested plan length; zero means DefaultStepCount.
	Steps  int
	Logger *zap.Logger
}

// Synthesize always returns a non-empty list.
func (p *Planner) Synthesize(ctx context.Context, text string) []string {
	logger := orNop(p.Logger)
	if p.Client == nil {
		return FallbackPlan()
	}
	n := p.Steps
	if n <= 0 {
		n = DefaultStepCount
	}
	raw, err := p.Client.GenerateJSON(ctx, fmt.Sprintf(planPrompt, n, text), llm.StringArray())
	if err != nil {
		logger.Warn("Plan synthesis failed, using fallback plan", zap.Error(err))
		return FallbackPlan()
	}
	steps := parseSteps(raw)
	if len(steps) == 0 {
		logger.Warn("Plan synthesis returned no usable steps, using fallback plan", zap.String("raw", truncateForLog(raw)))
		return FallbackPlan()
	}
	return steps
}

func parseSteps(raw string) []string {
	text := normalizeJSONText(raw, '[', ']')
	var steps []string
	if err := json.Unmarshal([]byte(text), &steps); err == nil {
		return cleanLines(steps, maxPlanSteps)
	}
	var wrapper struct {
		Steps []string `json:"steps"`
	}
	if err := json.Unmarshal([]byte(normalizeJSONText(raw, '{', '}')), &wrapper); err == nil {
		return cleanLines(wrapper.Steps, maxPlanSteps)
	}
	return nil
}

func truncateForLog(s string) string {
	if len(s) > 200 {
		return s[:200]
	}
	return s
}
