package debug

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func capture(t *testing.T, lvl int) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	Init(lvl)
	t.Cleanup(func() {
		Init(LevelOff)
	})
	return &buf
}

func TestInit_OffPrintsNothing(t *testing.T) {
	buf := capture(t, LevelOff)
	Info("hello %d", 1)
	Error(errors.New("boom"))
	if buf.Len() != 0 {
		t.Errorf("expected no output at level off, got %q", buf.String())
	}
}

func TestLevels_Filtering(t *testing.T) {
	buf := capture(t, LevelLive)

	Info("info line")
	Transition("live", "preview")
	Verbose("verbose line")
	Tick(3, "none")

	got := buf.String()
	if !strings.Contains(got, "[INFO] info line") {
		t.Errorf("missing info line in %q", got)
	}
	if !strings.Contains(got, "Mode live -> preview") {
		t.Errorf("missing transition line in %q", got)
	}
	if strings.Contains(got, "verbose line") {
		t.Errorf("verbose line should be filtered at level %d", LevelLive)
	}
	if strings.Contains(got, "[TICK]") {
		t.Errorf("tick line should be filtered at level %d", LevelLive)
	}
}

func TestIsEnabled(t *testing.T) {
	capture(t, LevelVerbose)
	if !IsEnabled(LevelInfo) {
		t.Error("info should be enabled at verbose level")
	}
	if IsEnabled(LevelTrace) {
		t.Error("trace should not be enabled at verbose level")
	}
}

func TestFmt_EmptyWhenOff(t *testing.T) {
	capture(t, LevelOff)
	if s := Fmt("x=%d", 1); s != "" {
		t.Errorf("Fmt = %q, want empty", s)
	}
}
