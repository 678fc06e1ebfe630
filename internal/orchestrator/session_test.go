package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/nexa-agent/internal/models"
)

func TestClosedSessionRejectsSubmissions(t *testing.T) {
	s := newSession("s1", NewHub(), time.Millisecond, time.Now)
	s.runner = NewRunner(Agents{}, s, Config{})
	require.NoError(t, s.close(context.Background()))

	err := s.submit(context.Background(), Submission{Text: "hi"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, models.StateIdle, s.runner.State())
	assert.Empty(t, s.Snapshot().Messages)
}

func TestDeriveTitle(t *testing.T) {
	tests := map[string]struct {
		text     string
		expTitle string
	}{
		"A short message should be used as is": {
			text:     "  hello there ",
			expTitle: "hello there",
		},
		"A long message should be cut at 50 runes": {
			text:     "ééééééééééééééééééééééééééééééééééééééééééééééééééé tail",
			expTitle: "ééééééééééééééééééééééééééééééééééééééééééééééééé" + "é...",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.expTitle, deriveTitle(test.text))
		})
	}
}
