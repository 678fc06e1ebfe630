package orchestrator_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/nexa-agent/internal/orchestrator"
)

func decode(t *testing.T, b []byte) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	return out
}

func TestHubPublishesPerSession(t *testing.T) {
	h := orchestrator.NewHub()
	a, unsubA := h.Subscribe("a")
	b, unsubB := h.Subscribe("b")
	defer unsubB()

	h.Publish(orchestrator.Event{Event: orchestrator.EventStateChanged, SessionID: "a", Payload: map[string]string{"state": "IDLE"}})

	got := decode(t, <-a)
	assert.Equal(t, "state_changed", got["event"])
	assert.Equal(t, "a", got["sessionId"])
	assert.Empty(t, b)

	assert.Equal(t, 1, h.Subscribers("a"))
	unsubA()
	unsubA()
	assert.Zero(t, h.Subscribers("a"))
	_, open := <-a
	assert.False(t, open)
}

func TestHubDropsForSlowSubscribers(t *testing.T) {
	h := orchestrator.NewHub()
	ch, unsub := h.Subscribe("s")
	defer unsub()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			h.Publish(orchestrator.Event{Event: "tick", SessionID: "s"})
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
	assert.Less(t, len(ch), 500)
}

func TestCoalescerKeepsLatestPerKey(t *testing.T) {
	h := orchestrator.NewHub()
	ch, unsub := h.Subscribe("s")
	defer unsub()

	c := h.NewCoalescer(time.Hour)
	c.Put("m1", orchestrator.Event{Event: "message_updated", SessionID: "s", Payload: "H"})
	c.Put("m2", orchestrator.Event{Event: "message_updated", SessionID: "s", Payload: "other"})
	c.Put("m1", orchestrator.Event{Event: "message_updated", SessionID: "s", Payload: "Hello"})
	assert.Empty(t, ch)

	c.Flush()
	require.Len(t, ch, 2)
	assert.Equal(t, "Hello", decode(t, <-ch)["payload"])
	assert.Equal(t, "other", decode(t, <-ch)["payload"])

	c.Put("m1", orchestrator.Event{Event: "message_updated", SessionID: "s", Payload: "Hello world"})
	c.Close()
	c.Close()
	require.Len(t, ch, 1)
	assert.Equal(t, "Hello world", decode(t, <-ch)["payload"])
}

func TestCoalescerFlushesOnCadence(t *testing.T) {
	h := orchestrator.NewHub()
	ch, unsub := h.Subscribe("s")
	defer unsub()

	c := h.NewCoalescer(10 * time.Millisecond)
	defer c.Close()
	c.Put("m1", orchestrator.Event{Event: "message_updated", SessionID: "s", Payload: "tick"})

	select {
	case b := <-ch:
		assert.Equal(t, "tick", decode(t, b)["payload"])
	case <-time.After(5 * time.Second):
		t.Fatal("coalesced update never flushed")
	}
}
