package web

import (
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cjeanneret/FilterCam/internal/logic/booth"
)

const (
	// subscriberBuffer is the number of undelivered events a client may lag behind.
	subscriberBuffer = 64
	// historySize is how many recent events a reconnecting client can catch up on.
	historySize = 32
)

// StatusEvent is one message of the status stream.
// Level is "info", "error", "state" (booth mode or settings changed) or "log".
type StatusEvent struct {
	Seq   uint64 `json:"seq"`
	Time  string `json:"t"`
	Level string `json:"l,omitempty"`
	Msg   string `json:"msg"`
}

// JSON returns the SSE data payload: {"seq":1,"t":"...","l":"info","msg":"..."}
func (e StatusEvent) JSON() []byte {
	data, _ := json.Marshal(e)
	return data
}

// Subscription delivers events to one client in publish order.
type Subscription struct {
	C <-chan StatusEvent

	ch      chan StatusEvent
	b       *StatusBroadcaster
	once    sync.Once
	dropped atomic.Uint64
}

// Dropped returns how many events were skipped because the client lagged.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Close unsubscribes and closes C. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.b.mu.Lock()
		delete(s.b.clients, s)
		s.b.mu.Unlock()
		close(s.ch)
	})
}

// StatusBroadcaster fans booth notifications and log lines out to SSE clients.
// It numbers every event and keeps a short history so a reconnecting browser
// (Last-Event-ID) does not miss a save result.
type StatusBroadcaster struct {
	mu      sync.Mutex
	seq     uint64
	history []StatusEvent
	clients map[*Subscription]struct{}
}

// NewStatusBroadcaster creates a new broadcaster.
func NewStatusBroadcaster() *StatusBroadcaster {
	return &StatusBroadcaster{
		clients: make(map[*Subscription]struct{}),
	}
}

// Subscribe registers a client. Events newer than after that are still in
// the history are queued first; pass 0 for live events only.
// The caller must Close the subscription when the client disconnects.
func (b *StatusBroadcaster) Subscribe(after uint64) *Subscription {
	ch := make(chan StatusEvent, subscriberBuffer)
	s := &Subscription{C: ch, ch: ch, b: b}

	b.mu.Lock()
	defer b.mu.Unlock()
	if after > 0 {
		for _, e := range b.history {
			if e.Seq > after {
				ch <- e
			}
		}
	}
	b.clients[s] = struct{}{}
	return s
}

// Broadcast publishes an event to every subscriber.
// A client whose buffer is full misses the event instead of blocking the booth.
func (b *StatusBroadcaster) Broadcast(level, msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	evt := StatusEvent{
		Seq:   b.seq,
		Time:  time.Now().Format(time.RFC3339),
		Level: level,
		Msg:   msg,
	}
	if len(b.history) == historySize {
		copy(b.history, b.history[1:])
		b.history = b.history[:historySize-1]
	}
	b.history = append(b.history, evt)

	for s := range b.clients {
		select {
		case s.ch <- evt:
		default:
			s.dropped.Add(1)
		}
	}
}

// Notify forwards a booth event; it is used as booth.Options.Notify.
func (b *StatusBroadcaster) Notify(e booth.Event) {
	b.Broadcast(e.Level, e.Msg)
}

// Clients returns the number of subscribed SSE clients.
func (b *StatusBroadcaster) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// BroadcastWriter adapts b to io.Writer so debug output reaches the browser log panel.
func BroadcastWriter(b *StatusBroadcaster) *broadcastWriter {
	return &broadcastWriter{b: b}
}

type broadcastWriter struct {
	b *StatusBroadcaster
}

// Write publishes each non-empty line of p at level "log".
func (w *broadcastWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(string(p), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			w.b.Broadcast("log", line)
		}
	}
	return len(p), nil
}
