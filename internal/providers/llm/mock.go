package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// MockClient is used when no real provider is configured. It answers
// deterministically so the service stays usable offline.
type MockClient struct{}

var mockTaskWords = []string{"research", "create", "write", "build", "analy", "plan", "report", "generate", "save", "compare", "find", "search"}

func (m *MockClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	p := strings.ToLower(prompt)
	if strings.Contains(p, `"chat" or "task"`) {
		req := p
		if i := strings.Index(p, "user prompt:"); i != -1 {
			req = p[i:]
		}
		for _, w := range mockTaskWords {
			if strings.Contains(req, w) {
				return "task", nil
			}
		}
		return "chat", nil
	}
	if strings.HasPrefix(p, "acknowledge the user's request") {
		return "On it. I'll break this down and work through it step by step.", nil
	}
	return "Done: " + firstLine(prompt), nil
}

func (m *MockClient) GenerateJSON(ctx context.Context, prompt string, schema *Schema) (string, error) {
	if schema != nil && schema.Type == TypeObject {
		b, _ := json.Marshal(map[string]any{"files": []map[string]string{
			{"name": "README.md", "content": "# Generated project\n"},
			{"name": "main.txt", "content": firstLine(prompt) + "\n"},
		}})
		return string(b), nil
	}
	p := strings.ToLower(prompt)
	if strings.Contains(p, "log status updates") {
		return `["Starting step...","Collecting details...","Step finished."]`, nil
	}
	return `["Analyze the request","Gather relevant information","Process the findings","Compile the final output"]`, nil
}

func (m *MockClient) GenerateTextStream(ctx context.Context, prompt string, onDelta func(chunk string) error) error {
	txt, _ := m.GenerateText(ctx, prompt)
	for _, w := range strings.SplitAfter(txt, " ") {
		if err := onDelta(w); err != nil {
			return err
		}
	}
	return nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i != -1 {
		s = s[:i]
	}
	if len(s) > 120 {
		s = s[:120]
	}
	return fmt.Sprint(strings.TrimSpace(s))
}
