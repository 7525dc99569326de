package tui

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kartoza/videosnap/internal/interrupt"
	"github.com/kartoza/videosnap/internal/models"
)

func newSizedModel(cfg models.SessionConfig) (*LiveModel, *interrupt.Signal) {
	stop := interrupt.New()
	m := NewLiveModel(cfg, stop)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return m, stop
}

func TestFormatClock(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00:00"},
		{1500 * time.Millisecond, "00:00:01"},
		{75 * time.Second, "00:01:15"},
		{2*time.Hour + 3*time.Minute + 4*time.Second, "02:03:04"},
		{-time.Second, "00:00:00"},
	}
	for _, tt := range tests {
		if got := FormatClock(tt.d); got != tt.want {
			t.Errorf("FormatClock(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestRenderBigNumber(t *testing.T) {
	single := RenderBigNumber(5)
	if len(single) != 7 {
		t.Fatalf("expected 7 lines, got %d", len(single))
	}

	double := RenderBigNumber(12)
	if got, want := utf8.RuneCountInString(double[0]), 2*utf8.RuneCountInString(single[0]); got != want {
		t.Errorf("expected two digits side by side (%d runes), got %d", want, got)
	}

	if RenderBigNumber(-3)[0] != RenderBigNumber(0)[0] {
		t.Error("negative numbers should render as 0")
	}
}

func TestCountdownSeconds(t *testing.T) {
	if got := countdownSeconds(4200 * time.Millisecond); got != 5 {
		t.Errorf("expected 5, got %d", got)
	}
	if got := countdownSeconds(time.Second); got != 1 {
		t.Errorf("expected 1, got %d", got)
	}
	if got := countdownSeconds(-time.Second); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
}

func TestLiveModel_StopKeyRaisesInterruptOnce(t *testing.T) {
	m, stop := newSizedModel(models.SessionConfig{OutputPath: "movie.mov"})
	m.applyEvent(models.Event{State: models.StateRecording, At: time.Now()})

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if !stop.Raised() {
		t.Fatal("expected q to raise the interrupt")
	}
	if !m.stopRequested {
		t.Error("expected stop to be requested")
	}
	if !strings.Contains(m.View(), "Stopping") {
		t.Error("expected stopping message after q")
	}

	// further presses are ignored
	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if stop.Trigger() {
		t.Error("interrupt should already be raised")
	}
}

func TestLiveModel_IgnoresOtherKeys(t *testing.T) {
	m, stop := newSizedModel(models.SessionConfig{OutputPath: "movie.mov"})

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'x'}})
	if stop.Raised() {
		t.Error("x should not raise the interrupt")
	}
}

func TestLiveModel_FollowsRecorderEvents(t *testing.T) {
	cfg := models.SessionConfig{OutputPath: "movie.mov", Duration: 10 * time.Second}
	m, _ := newSizedModel(cfg)

	if !strings.Contains(m.View(), "Preparing camera") {
		t.Error("expected preparing message before any event")
	}

	now := time.Now()
	m.Update(eventMsg(models.Event{State: models.StateDelaying, At: now, Remaining: 3 * time.Second, Device: "FaceTime HD Camera"}))
	if m.state != models.StateDelaying {
		t.Fatalf("expected delaying, got %s", m.state)
	}
	if !strings.Contains(m.View(), "Recording starts soon") {
		t.Error("expected countdown view while delaying")
	}

	m.Update(eventMsg(models.Event{State: models.StateRecording, At: now, Elapsed: 2 * time.Second}))
	if m.elapsed != 2*time.Second {
		t.Errorf("expected elapsed 2s, got %v", m.elapsed)
	}
	view := m.View()
	if !strings.Contains(view, "FaceTime HD Camera") {
		t.Error("expected device in header")
	}
	if !strings.Contains(view, "00:00:02 of 00:00:10") {
		t.Error("expected progress against the requested duration")
	}

	m.Update(eventMsg(models.Event{State: models.StateStopping, At: now}))
	if !strings.Contains(m.View(), "Finalizing") {
		t.Error("expected finalizing message while stopping")
	}
}

func TestLiveModel_DoneQuits(t *testing.T) {
	m, _ := newSizedModel(models.SessionConfig{OutputPath: "movie.mov"})

	result := models.RecordingResult{State: models.StateFinished, OutputPath: "movie.mov", Size: 2048, Elapsed: 3 * time.Second}
	_, cmd := m.Update(doneMsg{result: result})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}

	if !strings.Contains(m.View(), "Saved movie.mov") {
		t.Error("expected saved message")
	}
	got, err := m.Result()
	if err != nil || got.Size != 2048 {
		t.Errorf("unexpected result %+v, %v", got, err)
	}
}

func TestLiveModel_Cancelled(t *testing.T) {
	m, _ := newSizedModel(models.SessionConfig{OutputPath: "movie.mov", Delay: 5 * time.Second})

	m.Update(doneMsg{result: models.RecordingResult{State: models.StateFinished, Cancelled: true}})
	if !strings.Contains(m.View(), "Cancelled") {
		t.Error("expected cancelled message")
	}
}
