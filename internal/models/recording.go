package models

import "time"

// RecordingState represents the current phase of a recording session
type RecordingState string

const (
	StateIdle      RecordingState = "idle"
	StatePrepared  RecordingState = "prepared"
	StateDelaying  RecordingState = "delaying"
	StateRecording RecordingState = "recording"
	StateStopping  RecordingState = "stopping"
	StateFinished  RecordingState = "finished"
	StateErrored   RecordingState = "errored"
)

// Terminal reports whether no further transitions are possible from s
func (s RecordingState) Terminal() bool {
	return s == StateFinished || s == StateErrored
}

// StopReason records why a recording left the recording state
type StopReason string

const (
	StopNone      StopReason = ""
	StopDuration  StopReason = "duration"
	StopInterrupt StopReason = "interrupt"
	StopBackend   StopReason = "backend"
	StopCancelled StopReason = "cancelled"
)

// DefaultOutputFile is used when no output path is given
const DefaultOutputFile = "movie.mov"

// SessionConfig holds the validated settings for one recording.
// It is built once by the CLI layer and never mutated afterwards.
type SessionConfig struct {
	OutputPath string `json:"output_path"`
	// Duration of zero means record until interrupted
	Duration     time.Duration `json:"duration,omitempty"`
	Delay        time.Duration `json:"delay,omitempty"`
	Size         string        `json:"size"`
	AudioEnabled bool          `json:"audio_enabled"`
	// Device is a device name; empty or "default" selects the default device
	Device string `json:"device,omitempty"`
}

// Unbounded reports whether the recording only stops on interrupt
func (c SessionConfig) Unbounded() bool {
	return c.Duration <= 0
}

// RecordingResult is the terminal value of a recording
type RecordingResult struct {
	SessionID     string         `json:"session_id"`
	State         RecordingState `json:"state"`
	OutputPath    string         `json:"output_path"`
	Device        string         `json:"device,omitempty"`
	StartedAt     time.Time      `json:"started_at,omitempty"`
	FinishedAt    time.Time      `json:"finished_at,omitempty"`
	Elapsed       time.Duration  `json:"elapsed"`
	StopReason    StopReason     `json:"stop_reason,omitempty"`
	Cancelled     bool           `json:"cancelled"`
	AudioRecorded bool           `json:"audio_recorded"`
	Size          int64          `json:"size,omitempty"`
	// ContainerDuration is read back from the finalized file when the container allows it
	ContainerDuration time.Duration `json:"container_duration,omitempty"`
	Error             string        `json:"error,omitempty"`
}

// Event is emitted by the recorder on every state change and countdown tick
type Event struct {
	State     RecordingState
	At        time.Time
	Remaining time.Duration // delay left while delaying
	Elapsed   time.Duration // recording time so far
	Duration  time.Duration // requested duration, zero when unbounded
	Device    string
	Err       error
}
