package web

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/cjeanneret/FilterCam/internal/logic/booth"
)

func recv(t *testing.T, s *Subscription) StatusEvent {
	t.Helper()
	select {
	case evt := <-s.C:
		return evt
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for broadcast")
	}
	return StatusEvent{}
}

func TestBroadcaster_SubscribeAndReceive(t *testing.T) {
	b := NewStatusBroadcaster()
	sub := b.Subscribe(0)
	defer sub.Close()

	b.Broadcast("info", "hello")

	evt := recv(t, sub)
	if evt.Msg != "hello" || evt.Level != "info" {
		t.Errorf("event = %+v", evt)
	}
	if evt.Seq != 1 {
		t.Errorf("Seq = %d, want 1", evt.Seq)
	}
	if evt.Time == "" {
		t.Error("event should have a timestamp")
	}
}

func TestStatusEvent_JSON(t *testing.T) {
	evt := StatusEvent{Seq: 7, Time: "2026-01-02T03:04:05Z", Level: "error", Msg: booth.MsgSaveFailed}
	var got map[string]any
	if err := json.Unmarshal(evt.JSON(), &got); err != nil {
		t.Fatal(err)
	}
	if got["seq"] != float64(7) || got["l"] != "error" || got["msg"] != booth.MsgSaveFailed {
		t.Errorf("payload = %v", got)
	}
}

func TestBroadcaster_MultipleSubscribers(t *testing.T) {
	b := NewStatusBroadcaster()
	s1 := b.Subscribe(0)
	defer s1.Close()
	s2 := b.Subscribe(0)
	defer s2.Close()

	if b.Clients() != 2 {
		t.Errorf("Clients = %d, want 2", b.Clients())
	}
	b.Broadcast("state", "preview")
	for _, s := range []*Subscription{s1, s2} {
		if evt := recv(t, s); evt.Msg != "preview" {
			t.Errorf("msg = %q, want preview", evt.Msg)
		}
	}
}

func TestSubscription_CloseTwice(t *testing.T) {
	b := NewStatusBroadcaster()
	sub := b.Subscribe(0)
	sub.Close()
	sub.Close()

	if _, ok := <-sub.C; ok {
		t.Error("expected channel to be closed after Close")
	}
	// Broadcasting after unsubscribe must not panic
	b.Broadcast("info", "after close")
	if b.Clients() != 0 {
		t.Errorf("Clients = %d, want 0", b.Clients())
	}
}

func TestBroadcaster_SlowClientDropsEvents(t *testing.T) {
	b := NewStatusBroadcaster()
	sub := b.Subscribe(0)
	defer sub.Close()

	for i := 0; i < subscriberBuffer; i++ {
		b.Broadcast("info", "fill")
	}
	// Must not block
	b.Broadcast("info", "overflow")

	if len(sub.C) != subscriberBuffer {
		t.Errorf("buffered = %d, want %d", len(sub.C), subscriberBuffer)
	}
	if sub.Dropped() != 1 {
		t.Errorf("Dropped = %d, want 1", sub.Dropped())
	}
}

func TestBroadcaster_ReplayAfter(t *testing.T) {
	b := NewStatusBroadcaster()
	for _, msg := range []string{"one", "two", "three"} {
		b.Broadcast("info", msg)
	}

	sub := b.Subscribe(1)
	defer sub.Close()
	if evt := recv(t, sub); evt.Msg != "two" || evt.Seq != 2 {
		t.Errorf("first replayed = %+v, want seq 2", evt)
	}
	if evt := recv(t, sub); evt.Msg != "three" {
		t.Errorf("second replayed = %+v", evt)
	}

	b.Broadcast("info", "four")
	if evt := recv(t, sub); evt.Msg != "four" || evt.Seq != 4 {
		t.Errorf("live event = %+v, want seq 4", evt)
	}
}

func TestBroadcaster_HistoryIsBounded(t *testing.T) {
	b := NewStatusBroadcaster()
	for i := 0; i < historySize+10; i++ {
		b.Broadcast("info", "x")
	}

	sub := b.Subscribe(1)
	defer sub.Close()
	if n := len(sub.C); n != historySize {
		t.Errorf("replayed = %d, want %d", n, historySize)
	}
	if evt := recv(t, sub); evt.Seq != 11 {
		t.Errorf("oldest replayed seq = %d, want 11", evt.Seq)
	}
}

func TestBroadcaster_NotifyForwardsBoothEvents(t *testing.T) {
	b := NewStatusBroadcaster()
	sub := b.Subscribe(0)
	defer sub.Close()

	b.Notify(booth.Event{Level: booth.LevelError, Msg: booth.MsgSaveFailed})

	evt := recv(t, sub)
	if evt.Level != "error" || evt.Msg != booth.MsgSaveFailed {
		t.Errorf("event = %+v", evt)
	}
}

func TestBroadcastWriter_Write(t *testing.T) {
	b := NewStatusBroadcaster()
	sub := b.Subscribe(0)
	defer sub.Close()

	w := BroadcastWriter(b)
	in := "  [FilterCam] Photo captured  \n[FilterCam] Mode live -> preview\n"
	n, err := w.Write([]byte(in))
	if err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if n != len(in) {
		t.Errorf("n = %d, want %d", n, len(in))
	}

	evt := recv(t, sub)
	if evt.Msg != "[FilterCam] Photo captured" {
		t.Errorf("msg = %q", evt.Msg)
	}
	if evt.Level != "log" {
		t.Errorf("level = %q, want log", evt.Level)
	}
	if evt := recv(t, sub); evt.Msg != "[FilterCam] Mode live -> preview" {
		t.Errorf("second line = %q", evt.Msg)
	}
}

func TestBroadcastWriter_EmptyWriteIgnored(t *testing.T) {
	b := NewStatusBroadcaster()
	sub := b.Subscribe(0)
	defer sub.Close()

	BroadcastWriter(b).Write([]byte("   \n"))

	select {
	case <-sub.C:
		t.Error("expected no message for whitespace-only write")
	case <-time.After(50 * time.Millisecond):
	}
}
