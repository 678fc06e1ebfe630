package agents

import (
	"strings"

	"go.uber.org/zap"
)

// normalizeJSONText strips code fences and, when the text does not start with
// open, extracts the first balanced block delimited by open/close.
func normalizeJSONText(s string, open, close byte) string {
	t := strings.TrimSpace(stripFences(s))
	if strings.HasPrefix(t, string(open)) {
		return t
	}
	if block := extractJSONBlock(t, open, close); block != "" {
		return block
	}
	return t
}

// stripFences removes a surrounding ``` fence, including a language hint.
func stripFences(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return s
	}
	t = strings.TrimPrefix(t, "```")
	if idx := strings.IndexByte(t, '\n'); idx != -1 {
		t = t[idx+1:]
	}
	if j := strings.LastIndex(t, "```"); j != -1 {
		t = t[:j]
	}
	return strings.TrimSpace(t)
}

// extractJSONBlock returns the first top-level block opened by open, skipping
// delimiters inside string literals.
func extractJSONBlock(s string, open, close byte) string {
	start := strings.IndexByte(s, open)
	if start == -1 {
		return ""
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func cleanLines(in []string, max int) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}

func orNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
