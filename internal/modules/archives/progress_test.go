package archives

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func TestBroadcaster_FanOut(t *testing.T) {
	b := NewBroadcaster(zerolog.Nop())

	first := b.Subscribe()
	second := b.Subscribe()
	defer b.Unsubscribe(first)
	defer b.Unsubscribe(second)

	b.Publish(ProgressEvent{Stage: StageRunning, Description: "run"})

	ev := <-first
	assert.Equal(t, StageRunning, ev.Stage)
	assert.NotEmpty(t, ev.Timestamp)

	ev = <-second
	assert.Equal(t, StageRunning, ev.Stage)
}

func TestBroadcaster_SlowSubscriberDropsEvents(t *testing.T) {
	b := NewBroadcaster(zerolog.Nop())

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Overfill the buffer: the extra events are dropped, never blocking.
	for i := 0; i < 40; i++ {
		b.Publish(ProgressEvent{Stage: StageRunning})
	}

	assert.Equal(t, 16, len(ch))
}

func TestBroadcaster_Websocket(t *testing.T) {
	b := NewBroadcaster(zerolog.Nop())

	srv := httptest.NewServer(b)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+srv.URL[len("http"):], nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	// The server goroutine subscribes after the handshake completes.
	require.Eventually(t, func() bool {
		return b.SubscriberCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	b.Publish(ProgressEvent{Stage: StageComplete, Description: "ws run", Folder: "2025-06-01_103000_ws-run"})

	var ev ProgressEvent
	require.NoError(t, wsjson.Read(ctx, conn, &ev))
	assert.Equal(t, StageComplete, ev.Stage)
	assert.Equal(t, "ws run", ev.Description)
	assert.Equal(t, "2025-06-01_103000_ws-run", ev.Folder)
}
