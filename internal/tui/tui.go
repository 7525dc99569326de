package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/kartoza/videosnap/internal/interrupt"
	"github.com/kartoza/videosnap/internal/models"
	"github.com/kartoza/videosnap/internal/recorder"
)

// Key bindings
type keyMap struct {
	Stop key.Binding
}

var keys = keyMap{
	Stop: key.NewBinding(
		key.WithKeys("q", "esc", "ctrl+c"),
		key.WithHelp("q/esc", "stop recording"),
	),
}

// Messages
type eventMsg models.Event
type blinkMsg struct{}
type doneMsg struct {
	result models.RecordingResult
	err    error
}

const blinkInterval = 500 * time.Millisecond

func blink() tea.Cmd {
	return tea.Tick(blinkInterval, func(time.Time) tea.Msg {
		return blinkMsg{}
	})
}

// LiveModel shows a recording as it moves through its states
type LiveModel struct {
	width  int
	height int

	cfg  models.SessionConfig
	stop *interrupt.Signal

	state         models.RecordingState
	device        string
	delayDeadline time.Time
	startedAt     time.Time
	elapsed       time.Duration
	stopRequested bool
	blinkOn       bool

	spinner  spinner.Model
	progress progress.Model

	done   bool
	result models.RecordingResult
	err    error
}

// NewLiveModel creates a live view for cfg. Stop keys raise stop.
func NewLiveModel(cfg models.SessionConfig, stop *interrupt.Signal) *LiveModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(ColorOrange)

	return &LiveModel{
		cfg:      cfg,
		stop:     stop,
		state:    models.StateIdle,
		device:   cfg.Device,
		spinner:  s,
		progress: progress.New(progress.WithDefaultGradient()),
	}
}

// Init starts the spinner and the blink ticker
func (m *LiveModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, blink())
}

// Update handles messages for the live view
func (m *LiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = min(msg.Width-20, HeaderWidth)
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Stop) && !m.done {
			// a second press is a no-op while the file is finalized
			if m.stop.Trigger() {
				m.stopRequested = true
			}
		}
		return m, nil

	case eventMsg:
		m.applyEvent(models.Event(msg))
		return m, nil

	case blinkMsg:
		m.blinkOn = !m.blinkOn
		if m.state == models.StateRecording && !m.startedAt.IsZero() {
			m.elapsed = time.Since(m.startedAt)
		}
		return m, blink()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case doneMsg:
		m.done = true
		m.result = msg.result
		m.err = msg.err
		m.state = msg.result.State
		if msg.result.Elapsed > 0 {
			m.elapsed = msg.result.Elapsed
		}
		return m, tea.Quit
	}

	return m, nil
}

func (m *LiveModel) applyEvent(ev models.Event) {
	m.state = ev.State
	if ev.Device != "" {
		m.device = ev.Device
	}

	switch ev.State {
	case models.StateDelaying:
		m.delayDeadline = ev.At.Add(ev.Remaining)
	case models.StateRecording:
		if m.startedAt.IsZero() {
			m.startedAt = ev.At.Add(-ev.Elapsed)
		}
		m.elapsed = ev.Elapsed
	case models.StateStopping, models.StateFinished:
		if ev.Elapsed > 0 {
			m.elapsed = ev.Elapsed
		}
	}
}

// View renders the live view
func (m *LiveModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	header := RenderHeader("Recording", HeaderState{
		IsRecording: m.state == models.StateRecording,
		Device:      m.device,
		Elapsed:     m.elapsed,
		BlinkOn:     m.blinkOn,
	})

	help := "q/esc: stop recording"
	if m.state == models.StateDelaying {
		help = "q/esc: cancel"
	}
	if m.stopRequested || m.done {
		help = ""
	}

	return LayoutWithHeaderFooter(header, m.body(), RenderHelpFooter(help, m.width), m.width, m.height)
}

func (m *LiveModel) body() string {
	switch m.state {
	case models.StateIdle, models.StatePrepared:
		return fmt.Sprintf("%s Preparing camera...", m.spinner.View())

	case models.StateDelaying:
		return renderCountdown(time.Until(m.delayDeadline))

	case models.StateRecording:
		if m.stopRequested {
			return fmt.Sprintf("%s Stopping...", m.spinner.View())
		}
		lines := []string{
			RecordingStyle.Render("● Recording") + "  " + ValueStyle.Render(FormatClock(m.elapsed)),
			LabelStyle.Render("Output: ") + ValueStyle.Render(m.cfg.OutputPath),
		}
		if !m.cfg.Unbounded() {
			pct := float64(m.elapsed) / float64(m.cfg.Duration)
			lines = append(lines, "", m.progress.ViewAs(min(pct, 1)),
				LabelStyle.Render(fmt.Sprintf("%s of %s", FormatClock(m.elapsed), FormatClock(m.cfg.Duration))))
		}
		return lipgloss.JoinVertical(lipgloss.Center, lines...)

	case models.StateStopping:
		return fmt.Sprintf("%s Finalizing movie file...", m.spinner.View())

	case models.StateFinished:
		if m.result.Cancelled {
			return LabelStyle.Render("Cancelled before recording started")
		}
		return SuccessStyle.Render("✓ Saved "+m.cfg.OutputPath) + "  " +
			LabelStyle.Render(humanize.Bytes(uint64(m.result.Size)))

	case models.StateErrored:
		msg := m.result.Error
		if m.err != nil {
			msg = m.err.Error()
		}
		return ErrorStyle.Render("✗ " + msg)
	}
	return ""
}

// Result returns the recorder's outcome once the view has quit
func (m *LiveModel) Result() (models.RecordingResult, error) {
	return m.result, m.err
}

// Run records cfg with rec while showing the live view, and returns the recorder's result.
// The recorder's events drive the view; stop keys raise stop.
func Run(rec *recorder.Recorder, cfg models.SessionConfig, stop *interrupt.Signal) (models.RecordingResult, error) {
	m := NewLiveModel(cfg, stop)
	// signals are handled by the caller through stop
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithoutSignalHandler())

	rec.Subscribe(func(ev models.Event) {
		p.Send(eventMsg(ev))
	})

	recorded := make(chan doneMsg, 1)
	go func() {
		result, err := rec.Record(cfg, stop)
		recorded <- doneMsg{result: result, err: err}
		p.Send(doneMsg{result: result, err: err})
	}()

	if _, err := p.Run(); err != nil {
		stop.Trigger()
		done := <-recorded
		if done.err != nil {
			return done.result, done.err
		}
		return done.result, fmt.Errorf("live view failed: %w", err)
	}

	done := <-recorded
	return done.result, done.err
}
