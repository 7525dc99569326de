package recorder_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Eyevinn/mp4ff/mp4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kartoza/videosnap/internal/capture/capturetest"
	"github.com/kartoza/videosnap/internal/container"
	"github.com/kartoza/videosnap/internal/interrupt"
	"github.com/kartoza/videosnap/internal/logging"
	"github.com/kartoza/videosnap/internal/models"
	"github.com/kartoza/videosnap/internal/recorder"
)

// timing assertions allow for scheduler jitter on loaded CI machines
const slack = 250 * time.Millisecond

var (
	camera = models.CaptureDevice{ID: "0", Name: "FaceTime HD Camera", HasVideo: true}
	mic    = models.CaptureDevice{ID: "default", Name: "Built-in Microphone", HasAudio: true}
)

func newBackend(b capturetest.Behavior) *capturetest.Backend {
	m := mic
	return &capturetest.Backend{
		Devices:      []models.CaptureDevice{camera},
		DefaultAudio: &m,
		Behavior:     b,
	}
}

func newRecorder(backend *capturetest.Backend) *recorder.Recorder {
	return recorder.New(backend, recorder.Options{
		PollInterval:  10 * time.Millisecond,
		StartTimeout:  2 * time.Second,
		FinishTimeout: 2 * time.Second,
		Logger:        logging.Discard(),
	})
}

func sessionConfig(t *testing.T, name string) models.SessionConfig {
	t.Helper()
	return models.SessionConfig{
		OutputPath:   filepath.Join(t.TempDir(), name),
		Size:         string(models.SizeSD480),
		AudioEnabled: true,
	}
}

func onlyPipeline(t *testing.T, backend *capturetest.Backend) *capturetest.Pipeline {
	t.Helper()
	pipelines := backend.Pipelines()
	require.Len(t, pipelines, 1)
	return pipelines[0]
}

type eventLog struct {
	mu     sync.Mutex
	events []models.Event
}

func (l *eventLog) add(ev models.Event) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

// transitions returns the distinct consecutive states seen
func (l *eventLog) transitions() []models.RecordingState {
	l.mu.Lock()
	defer l.mu.Unlock()

	var states []models.RecordingState
	for _, ev := range l.events {
		if len(states) == 0 || states[len(states)-1] != ev.State {
			states = append(states, ev.State)
		}
	}
	return states
}

func (l *eventLog) count(state models.RecordingState) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, ev := range l.events {
		if ev.State == state {
			n++
		}
	}
	return n
}

func movPayload(t *testing.T) []byte {
	t.Helper()

	ftyp := make([]byte, 8)
	binary.BigEndian.PutUint32(ftyp, 8)
	copy(ftyp[4:], "wide")

	moov := mp4.NewMoovBox()
	moov.AddChild(&mp4.MvhdBox{Timescale: 600, Duration: 600, NextTrackID: 2, Rate: 0x00010000, Volume: 0x0100})

	var buf bytes.Buffer
	buf.Write(ftyp)
	require.NoError(t, moov.Encode(&buf))
	return buf.Bytes()
}

func TestRecord_StopsAfterDuration(t *testing.T) {
	backend := newBackend(capturetest.Behavior{StartDelay: 50 * time.Millisecond})
	rec := newRecorder(backend)

	cfg := sessionConfig(t, "movie.mkv")
	cfg.Duration = 300 * time.Millisecond

	result, err := rec.Record(cfg, interrupt.New())
	require.NoError(t, err)

	assert.Equal(t, models.StateFinished, result.State)
	assert.Equal(t, models.StopDuration, result.StopReason)
	assert.False(t, result.Cancelled)
	assert.True(t, result.AudioRecorded)
	assert.Equal(t, camera.Name, result.Device)
	assert.NotEmpty(t, result.SessionID)
	assert.Positive(t, result.Size)

	p := onlyPipeline(t, backend)
	assert.Equal(t, []string{"preset", "video", "audio", "output", "start", "stop", "close"}, p.Calls())
	assert.Equal(t, models.SizeSD480, p.Preset)
	assert.Equal(t, cfg.OutputPath, p.Output)

	// the duration is measured from the confirmed start, not from the start command
	stopAt, ok := p.CallTime("stop")
	require.True(t, ok)
	assert.GreaterOrEqual(t, stopAt.Sub(result.StartedAt), cfg.Duration)
	assert.InDelta(t, float64(cfg.Duration), float64(result.Elapsed), float64(slack))

	info, err := os.Stat(cfg.OutputPath)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestRecord_HonorsDelay(t *testing.T) {
	backend := newBackend(capturetest.Behavior{})
	rec := newRecorder(backend)

	events := &eventLog{}
	rec.Subscribe(events.add)

	cfg := sessionConfig(t, "movie.mkv")
	cfg.Delay = 1200 * time.Millisecond
	cfg.Duration = 100 * time.Millisecond

	begin := time.Now()
	result, err := rec.Record(cfg, interrupt.New())
	require.NoError(t, err)
	assert.Equal(t, models.StateFinished, result.State)

	p := onlyPipeline(t, backend)
	startAt, ok := p.CallTime("start")
	require.True(t, ok)
	assert.GreaterOrEqual(t, startAt.Sub(begin), cfg.Delay)
	assert.Less(t, startAt.Sub(begin), cfg.Delay+slack)

	assert.Equal(t, []models.RecordingState{
		models.StatePrepared,
		models.StateDelaying,
		models.StateRecording,
		models.StateStopping,
		models.StateFinished,
	}, events.transitions())

	// the entry event plus one countdown tick per whole second left
	assert.Equal(t, 2, events.count(models.StateDelaying))
}

func TestRecord_CancelDuringDelay(t *testing.T) {
	backend := newBackend(capturetest.Behavior{TouchOutput: true})
	rec := newRecorder(backend)

	cfg := sessionConfig(t, "movie.mkv")
	cfg.Delay = 5 * time.Second

	stop := interrupt.New()
	time.AfterFunc(100*time.Millisecond, func() { stop.Trigger() })

	begin := time.Now()
	result, err := rec.Record(cfg, stop)
	require.NoError(t, err)

	assert.Less(t, time.Since(begin), time.Second)
	assert.Equal(t, models.StateFinished, result.State)
	assert.True(t, result.Cancelled)
	assert.Equal(t, models.StopCancelled, result.StopReason)

	p := onlyPipeline(t, backend)
	assert.Zero(t, p.Count("start"))
	assert.Zero(t, p.Count("stop"))
	assert.Equal(t, 1, p.Count("close"))

	_, err = os.Stat(cfg.OutputPath)
	assert.True(t, os.IsNotExist(err), "empty output should be removed")
}

func TestRecord_CancelDuringDelayKeepsExistingFile(t *testing.T) {
	backend := newBackend(capturetest.Behavior{})
	rec := newRecorder(backend)

	cfg := sessionConfig(t, "movie.mkv")
	cfg.Delay = 5 * time.Second
	require.NoError(t, os.WriteFile(cfg.OutputPath, nil, 0644))

	stop := interrupt.New()
	time.AfterFunc(100*time.Millisecond, func() { stop.Trigger() })

	result, err := rec.Record(cfg, stop)
	require.NoError(t, err)
	assert.True(t, result.Cancelled)

	_, err = os.Stat(cfg.OutputPath)
	assert.NoError(t, err, "a file that existed before recording must be left alone")
}

func TestRecord_InterruptBeforePrepare(t *testing.T) {
	backend := newBackend(capturetest.Behavior{})
	rec := newRecorder(backend)

	cfg := sessionConfig(t, "movie.mkv")
	require.NoError(t, os.WriteFile(cfg.OutputPath, nil, 0644))

	stop := interrupt.New()
	stop.Trigger()

	result, err := rec.Record(cfg, stop)
	require.NoError(t, err)
	assert.True(t, result.Cancelled)
	assert.Empty(t, backend.Pipelines())

	_, err = os.Stat(cfg.OutputPath)
	assert.NoError(t, err, "nothing is touched when no session was built")
}

func TestRecord_InterruptStops(t *testing.T) {
	backend := newBackend(capturetest.Behavior{})
	rec := newRecorder(backend)

	cfg := sessionConfig(t, "movie.mkv")
	stop := interrupt.New()
	time.AfterFunc(400*time.Millisecond, func() { stop.Trigger() })

	result, err := rec.Record(cfg, stop)
	require.NoError(t, err)

	assert.Equal(t, models.StateFinished, result.State)
	assert.Equal(t, models.StopInterrupt, result.StopReason)
	assert.False(t, result.Cancelled)
	assert.InDelta(t, float64(400*time.Millisecond), float64(result.Elapsed), float64(slack))
	assert.Equal(t, 1, onlyPipeline(t, backend).Count("stop"))
}

func TestRecord_RepeatedInterruptsStopOnce(t *testing.T) {
	backend := newBackend(capturetest.Behavior{FinishDelay: 200 * time.Millisecond})
	rec := newRecorder(backend)

	stop := interrupt.New()
	rec.Subscribe(func(ev models.Event) {
		if ev.State == models.StateStopping {
			assert.False(t, stop.Trigger())
		}
	})
	time.AfterFunc(200*time.Millisecond, func() {
		stop.Trigger()
		stop.Trigger()
	})

	result, err := rec.Record(sessionConfig(t, "movie.mkv"), stop)
	require.NoError(t, err)
	assert.Equal(t, models.StopInterrupt, result.StopReason)
	assert.Equal(t, 1, onlyPipeline(t, backend).Count("stop"))
}

func TestRecord_InterruptBeforeStartConfirmed(t *testing.T) {
	backend := newBackend(capturetest.Behavior{StartDelay: 300 * time.Millisecond})
	rec := newRecorder(backend)

	stop := interrupt.New()
	time.AfterFunc(50*time.Millisecond, func() { stop.Trigger() })

	result, err := rec.Record(sessionConfig(t, "movie.mkv"), stop)
	require.NoError(t, err)
	assert.Equal(t, models.StopInterrupt, result.StopReason)

	p := onlyPipeline(t, backend)
	stopAt, ok := p.CallTime("stop")
	require.True(t, ok)
	assert.False(t, stopAt.Before(result.StartedAt), "stop issued before start was confirmed")
}

func TestRecord_DeviceNotFound(t *testing.T) {
	backend := newBackend(capturetest.Behavior{})
	rec := newRecorder(backend)

	cfg := sessionConfig(t, "movie.mkv")
	cfg.Device = "Nonexistent Camera"

	result, err := rec.Record(cfg, interrupt.New())
	require.ErrorIs(t, err, models.ErrDeviceNotFound)
	assert.Equal(t, models.StateErrored, result.State)
	assert.Contains(t, result.Error, "Nonexistent Camera")
	assert.Empty(t, backend.Pipelines())
}

func TestRecord_NamedDevice(t *testing.T) {
	backend := newBackend(capturetest.Behavior{})
	usb := models.CaptureDevice{ID: "1", Name: "USB Camera", HasVideo: true}
	backend.Devices = append(backend.Devices, usb)
	rec := newRecorder(backend)

	cfg := sessionConfig(t, "movie.mkv")
	cfg.Device = "USB Camera"
	cfg.Duration = 50 * time.Millisecond

	result, err := rec.Record(cfg, interrupt.New())
	require.NoError(t, err)
	assert.Equal(t, "USB Camera", result.Device)
	assert.Equal(t, usb, onlyPipeline(t, backend).Video)
}

func TestRecord_NoAudioDeviceStillRecords(t *testing.T) {
	backend := newBackend(capturetest.Behavior{})
	backend.DefaultAudio = nil
	rec := newRecorder(backend)

	cfg := sessionConfig(t, "movie.mkv")
	cfg.Duration = 100 * time.Millisecond

	result, err := rec.Record(cfg, interrupt.New())
	require.NoError(t, err)
	assert.Equal(t, models.StateFinished, result.State)
	assert.False(t, result.AudioRecorded)
	assert.Empty(t, onlyPipeline(t, backend).Audio)
}

func TestRecord_OutputNotWritable(t *testing.T) {
	backend := newBackend(capturetest.Behavior{})
	rec := newRecorder(backend)

	cfg := sessionConfig(t, "movie.mkv")
	cfg.OutputPath = t.TempDir()

	result, err := rec.Record(cfg, interrupt.New())
	require.ErrorIs(t, err, models.ErrOutputNotWritable)
	assert.Equal(t, models.StateErrored, result.State)
}

func TestRecord_BackendErrorWhileRecording(t *testing.T) {
	backend := newBackend(capturetest.Behavior{
		RecordErr:      errors.New("device disconnected"),
		RecordErrAfter: 100 * time.Millisecond,
	})
	rec := newRecorder(backend)

	result, err := rec.Record(sessionConfig(t, "movie.mkv"), interrupt.New())
	require.Error(t, err)
	assert.True(t, models.IsBackendError(err))
	assert.Contains(t, err.Error(), "device disconnected")
	assert.Equal(t, models.StateErrored, result.State)

	p := onlyPipeline(t, backend)
	assert.Zero(t, p.Count("stop"))
	assert.Equal(t, 1, p.Count("close"))
}

func TestRecord_StartFailures(t *testing.T) {
	tests := []struct {
		name     string
		behavior capturetest.Behavior
	}{
		{"rejected", capturetest.Behavior{StartErr: errors.New("device busy")}},
		{"reported", capturetest.Behavior{StartFailure: errors.New("permission denied")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newBackend(tt.behavior)
			rec := newRecorder(backend)

			result, err := rec.Record(sessionConfig(t, "movie.mkv"), interrupt.New())
			require.Error(t, err)
			assert.True(t, models.IsBackendError(err))
			assert.Equal(t, models.StateErrored, result.State)
			assert.True(t, result.StartedAt.IsZero())

			p := onlyPipeline(t, backend)
			assert.Zero(t, p.Count("stop"))
			assert.Equal(t, 1, p.Count("close"))
		})
	}
}

func TestRecord_StartTimeout(t *testing.T) {
	backend := newBackend(capturetest.Behavior{NeverStart: true})
	rec := recorder.New(backend, recorder.Options{
		StartTimeout: 200 * time.Millisecond,
		Logger:       logging.Discard(),
	})

	begin := time.Now()
	result, err := rec.Record(sessionConfig(t, "movie.mkv"), interrupt.New())
	require.ErrorIs(t, err, models.ErrStartTimeout)
	assert.Less(t, time.Since(begin), time.Second)
	assert.Equal(t, models.StateErrored, result.State)
	assert.Equal(t, 1, onlyPipeline(t, backend).Count("close"))
}

func TestRecord_FinishTimeout(t *testing.T) {
	backend := newBackend(capturetest.Behavior{HangOnStop: true})
	rec := recorder.New(backend, recorder.Options{
		FinishTimeout: 200 * time.Millisecond,
		Logger:        logging.Discard(),
	})

	cfg := sessionConfig(t, "movie.mkv")
	cfg.Duration = 50 * time.Millisecond

	begin := time.Now()
	result, err := rec.Record(cfg, interrupt.New())
	require.ErrorIs(t, err, models.ErrFinishTimeout)
	assert.Less(t, time.Since(begin), time.Second)
	assert.Equal(t, models.StateErrored, result.State)
	assert.Equal(t, models.StopDuration, result.StopReason)
	assert.Equal(t, 1, onlyPipeline(t, backend).Count("close"))
}

func TestRecord_FinalizeError(t *testing.T) {
	backend := newBackend(capturetest.Behavior{FinishErr: errors.New("disk full")})
	rec := newRecorder(backend)

	cfg := sessionConfig(t, "movie.mkv")
	cfg.Duration = 50 * time.Millisecond

	_, err := rec.Record(cfg, interrupt.New())
	require.Error(t, err)
	assert.True(t, models.IsBackendError(err))
	assert.Contains(t, err.Error(), "disk full")
}

func TestRecord_BackendEndsOnItsOwn(t *testing.T) {
	backend := newBackend(capturetest.Behavior{EndAfter: 150 * time.Millisecond})
	rec := newRecorder(backend)

	result, err := rec.Record(sessionConfig(t, "movie.mkv"), interrupt.New())
	require.NoError(t, err)
	assert.Equal(t, models.StateFinished, result.State)
	assert.Equal(t, models.StopBackend, result.StopReason)
	assert.Zero(t, onlyPipeline(t, backend).Count("stop"))
}

func TestRecord_EmptyOutput(t *testing.T) {
	tests := []struct {
		name     string
		behavior capturetest.Behavior
	}{
		{"missing", capturetest.Behavior{NoOutput: true}},
		{"zero length", capturetest.Behavior{Payload: []byte{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newRecorder(newBackend(tt.behavior))

			cfg := sessionConfig(t, "movie.mkv")
			cfg.Duration = 50 * time.Millisecond

			result, err := rec.Record(cfg, interrupt.New())
			require.ErrorIs(t, err, models.ErrEmptyOutput)
			assert.Equal(t, models.StateErrored, result.State)
		})
	}
}

func TestRecord_QuickTimeOutput(t *testing.T) {
	rec := newRecorder(newBackend(capturetest.Behavior{Payload: movPayload(t)}))

	cfg := sessionConfig(t, "movie.mov")
	cfg.Duration = 50 * time.Millisecond

	result, err := rec.Record(cfg, interrupt.New())
	require.NoError(t, err)
	assert.Equal(t, time.Second, result.ContainerDuration)
}

func TestRecord_QuickTimeOutputNotFinalized(t *testing.T) {
	rec := newRecorder(newBackend(capturetest.Behavior{}))

	cfg := sessionConfig(t, "movie.mov")
	cfg.Duration = 50 * time.Millisecond

	_, err := rec.Record(cfg, interrupt.New())
	assert.ErrorIs(t, err, container.ErrNotFinalized)
}

func TestRecord_Busy(t *testing.T) {
	rec := newRecorder(newBackend(capturetest.Behavior{}))
	stop := interrupt.New()
	cfg := sessionConfig(t, "movie.mkv")

	done := make(chan error, 1)
	go func() {
		_, err := rec.Record(cfg, stop)
		done <- err
	}()

	require.Eventually(t, func() bool {
		return rec.State() == models.StateRecording
	}, 2*time.Second, 10*time.Millisecond)

	_, err := rec.Record(sessionConfig(t, "other.mkv"), interrupt.New())
	assert.ErrorIs(t, err, recorder.ErrBusy)

	stop.Trigger()
	require.NoError(t, <-done)
	assert.Equal(t, models.StateFinished, rec.State())
}

func TestRecord_RecordingProgressEvents(t *testing.T) {
	rec := newRecorder(newBackend(capturetest.Behavior{}))

	events := &eventLog{}
	rec.Subscribe(events.add)

	cfg := sessionConfig(t, "movie.mkv")
	cfg.Duration = 1300 * time.Millisecond

	_, err := rec.Record(cfg, interrupt.New())
	require.NoError(t, err)

	// the transition event plus one progress tick after a second
	assert.Equal(t, 2, events.count(models.StateRecording))
}
