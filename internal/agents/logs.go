package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/nexa-agent/internal/providers/llm"
)

var fallbackLogs = []string{"Processing step...", "Analyzing data..."}

// FallbackLogs returns the progress lines used when log synthesis fails.
func FallbackLogs() []string {
	out := make([]string, len(fallbackLogs))
	copy(out, fallbackLogs)
	return out
}

const logsPrompt = `For the agent task step %q, write 2 or 3 short, realistic system log status updates an AI would report while carrying it out.
Context: %s
Examples: "Searching the web for X...", "Reading documentation...", "Parsing dataset...", "Running python script..."
Keep each under 8 words.
Return ONLY a JSON array of strings.`

// GenerateLogs produces cosmetic progress lines for a step. The result never
// influences the step output.
func (e *StepExecutor) GenerateLogs(ctx context.Context, description, soFar string) []string {
	if e.Client == nil {
		return FallbackLogs()
	}
	raw, err := e.Client.GenerateJSON(ctx, fmt.Sprintf(logsPrompt, description, soFar), llm.StringArray())
	if err != nil {
		orNop(e.Logger).Debug("Log synthesis failed", zap.Error(err))
		return FallbackLogs()
	}
	var lines []string
	if err := json.Unmarshal([]byte(normalizeJSONText(raw, '[', ']')), &lines); err != nil {
		return FallbackLogs()
	}
	if lines = cleanLines(lines, 5); len(lines) == 0 {
		return FallbackLogs()
	}
	return lines
}
