package archives

import (
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Progress stages reported over the websocket.
const (
	StageRunning   = "running"
	StageArchiving = "archiving"
	StageComplete  = "complete"
	StageFailed    = "failed"
)

// ProgressEvent is one status update for a running automated test.
type ProgressEvent struct {
	Stage       string `json:"stage"`
	Description string `json:"description"`
	Folder      string `json:"folder,omitempty"`
	Error       string `json:"error,omitempty"`
	Timestamp   string `json:"timestamp"`
}

// Broadcaster fans progress events out to websocket subscribers. Slow
// subscribers drop events rather than block the run.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[chan ProgressEvent]struct{}
	log  zerolog.Logger
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster(log zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		subs: make(map[chan ProgressEvent]struct{}),
		log:  log.With().Str("component", "progress_broadcaster").Logger(),
	}
}

// Publish delivers an event to every subscriber without blocking.
func (b *Broadcaster) Publish(ev ProgressEvent) {
	if ev.Timestamp == "" {
		ev.Timestamp = time.Now().Format(time.RFC3339)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe registers a new event channel. The caller must Unsubscribe.
func (b *Broadcaster) Subscribe() chan ProgressEvent {
	ch := make(chan ProgressEvent, 16)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a channel registered with Subscribe.
func (b *Broadcaster) Unsubscribe(ch chan ProgressEvent) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
}

// SubscriberCount returns the number of active subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// ServeHTTP upgrades the request to a websocket and streams progress
// events until the client disconnects.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Browser clients connect from the frontend origin.
		InsecureSkipVerify: true,
	})
	if err != nil {
		b.log.Warn().Err(err).Msg("Websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case ev := <-ch:
			if err := wsjson.Write(ctx, conn, ev); err != nil {
				return
			}
		}
	}
}
