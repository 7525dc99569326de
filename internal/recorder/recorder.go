package recorder

import (
	"errors"
	"fmt"
	"math"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/kartoza/videosnap/internal/capture"
	"github.com/kartoza/videosnap/internal/container"
	"github.com/kartoza/videosnap/internal/device"
	"github.com/kartoza/videosnap/internal/interrupt"
	"github.com/kartoza/videosnap/internal/models"
)

// ErrBusy is returned when Record is called while another recording is in progress
var ErrBusy = errors.New("recording already in progress")

const (
	DefaultPollInterval  = 100 * time.Millisecond
	DefaultFinishTimeout = 10 * time.Second
	progressInterval     = time.Second
)

// Options tune the recorder's timing
type Options struct {
	// PollInterval is how often the start delay re-checks the interrupt
	PollInterval time.Duration
	// StartTimeout bounds the wait for the backend to confirm recording; zero waits forever
	StartTimeout time.Duration
	// FinishTimeout bounds the wait for the output file to be finalized after a stop
	FinishTimeout time.Duration
	Logger        *log.Logger
}

// Recorder drives one capture session at a time through
// idle → prepared → delaying → recording → stopping → finished, or errored.
type Recorder struct {
	backend  capture.Backend
	resolver *device.Resolver
	opts     Options
	log      *log.Logger

	busy  atomic.Bool
	state atomic.Value

	mu        sync.Mutex
	listeners []func(models.Event)
}

// New creates a Recorder on top of backend
func New(backend capture.Backend, opts Options) *Recorder {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.FinishTimeout <= 0 {
		opts.FinishTimeout = DefaultFinishTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	r := &Recorder{
		backend:  backend,
		resolver: device.NewResolver(backend),
		opts:     opts,
		log:      opts.Logger,
	}
	r.state.Store(models.StateIdle)
	return r
}

// Subscribe registers fn to receive every state change and countdown/progress tick.
// fn runs on the recorder's control loop and must not block.
func (r *Recorder) Subscribe(fn func(models.Event)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// State returns the current phase
func (r *Recorder) State() models.RecordingState {
	return r.state.Load().(models.RecordingState)
}

// Resolver exposes the device resolver the recorder uses
func (r *Recorder) Resolver() *device.Resolver {
	return r.resolver
}

// Record runs one recording to completion and returns its result. A nil error means the file
// was finalized, or that stop was raised before recording started (result.Cancelled).
func (r *Recorder) Record(cfg models.SessionConfig, stop *interrupt.Signal) (models.RecordingResult, error) {
	if !r.busy.CompareAndSwap(false, true) {
		return models.RecordingResult{}, ErrBusy
	}
	defer r.busy.Store(false)

	if stop == nil {
		stop = interrupt.New()
	}

	id := uuid.NewString()
	rn := &run{
		r:    r,
		cfg:  cfg,
		stop: stop,
		log:  r.log.With("session", id[:8]),
		result: models.RecordingResult{
			SessionID:  id,
			OutputPath: cfg.OutputPath,
		},
	}

	r.state.Store(models.StateIdle)
	for st := models.StateIdle; !st.Terminal(); {
		next := rn.step(st)
		r.transition(rn, st, next)
		st = next
	}

	rn.teardown()
	return rn.result, rn.err
}

func (r *Recorder) transition(rn *run, from, to models.RecordingState) {
	r.state.Store(to)
	rn.result.State = to
	rn.log.Debug("state change", "from", from, "to", to)

	ev := models.Event{State: to, At: time.Now(), Duration: rn.cfg.Duration, Device: rn.result.Device, Err: rn.err}
	switch to {
	case models.StateDelaying:
		ev.Remaining = rn.cfg.Delay
	case models.StateRecording, models.StateStopping, models.StateFinished:
		if !rn.startedAt.IsZero() {
			ev.Elapsed = time.Since(rn.startedAt)
		}
	}
	r.emit(ev)
}

func (r *Recorder) emit(ev models.Event) {
	r.mu.Lock()
	listeners := slices.Clone(r.listeners)
	r.mu.Unlock()

	for _, fn := range listeners {
		fn(ev)
	}
}

// run holds the state of a single Record call
type run struct {
	r    *Recorder
	cfg  models.SessionConfig
	stop *interrupt.Signal
	log  *log.Logger

	sess      *capture.Session
	startedAt time.Time
	stoppedAt time.Time
	// outputExisted is set when something was already at the output path before prepare
	outputExisted bool
	// interruptPending is set when stop was raised before start was confirmed
	interruptPending bool

	result models.RecordingResult
	err    error
}

func (rn *run) step(st models.RecordingState) models.RecordingState {
	switch st {
	case models.StateIdle:
		return rn.prepare()
	case models.StatePrepared:
		if rn.cfg.Delay > 0 {
			return models.StateDelaying
		}
		return rn.start()
	case models.StateDelaying:
		return rn.delay()
	case models.StateRecording:
		return rn.record()
	case models.StateStopping:
		return rn.finish()
	default:
		return rn.fail(fmt.Errorf("unexpected recorder state %q", st))
	}
}

func (rn *run) prepare() models.RecordingState {
	if rn.stop.Raised() {
		rn.log.Info("interrupted before recording started")
		return rn.cancel()
	}

	dev, err := rn.r.resolver.Resolve(rn.cfg.Device)
	if err != nil {
		return rn.fail(err)
	}
	rn.result.Device = dev.Name

	if _, err := os.Lstat(rn.cfg.OutputPath); err == nil {
		rn.outputExisted = true
	}
	sess, err := capture.Prepare(rn.r.backend, dev, rn.cfg.OutputPath, rn.cfg.Size, rn.cfg.AudioEnabled, rn.log)
	if err != nil {
		return rn.fail(err)
	}
	rn.sess = sess
	rn.result.AudioRecorded = sess.AudioEnabled()

	rn.log.Debug("capture session prepared",
		"device", sess.Device().Name,
		"path", rn.cfg.OutputPath,
		"size", sess.Preset(),
		"audio", sess.AudioEnabled(),
	)
	return models.StatePrepared
}

// delay waits out the pre-roll, re-checking the interrupt every poll interval
func (rn *run) delay() models.RecordingState {
	rn.log.Info("waiting before recording", "delay", rn.cfg.Delay)

	deadline := time.NewTimer(rn.cfg.Delay)
	defer deadline.Stop()
	ticker := time.NewTicker(rn.r.opts.PollInterval)
	defer ticker.Stop()

	end := time.Now().Add(rn.cfg.Delay)
	shown := int(math.Ceil(rn.cfg.Delay.Seconds()))

	for {
		select {
		case <-rn.stop.Done():
			rn.log.Info("interrupted before recording started")
			return rn.cancel()
		case <-deadline.C:
			return rn.start()
		case <-ticker.C:
			if rn.stop.Raised() {
				continue
			}
			remaining := time.Until(end)
			if secs := int(math.Ceil(remaining.Seconds())); secs < shown && secs > 0 {
				shown = secs
				rn.r.emit(models.Event{State: models.StateDelaying, At: time.Now(), Remaining: remaining, Duration: rn.cfg.Duration, Device: rn.result.Device})
			}
		}
	}
}

// start issues the start command and waits for the backend to confirm the file is being written
func (rn *run) start() models.RecordingState {
	if err := rn.sess.Start(); err != nil {
		return rn.fail(&models.BackendError{Op: "start", Err: err})
	}
	rn.log.Debug("start command issued")

	var timeout <-chan time.Time
	if rn.r.opts.StartTimeout > 0 {
		t := time.NewTimer(rn.r.opts.StartTimeout)
		defer t.Stop()
		timeout = t.C
	}

	stopCh := rn.stop.Done()
	for {
		select {
		case ev := <-rn.sess.Events():
			if ev.Kind == capture.EventFinished {
				return rn.fail(backendError("start", ev.Err))
			}
			rn.startedAt = ev.At
			if rn.startedAt.IsZero() {
				rn.startedAt = time.Now()
			}
			rn.result.StartedAt = rn.startedAt
			rn.log.Info("recording started",
				"device", rn.result.Device,
				"path", rn.cfg.OutputPath,
				"duration", durationLabel(rn.cfg.Duration),
			)
			return models.StateRecording
		case <-stopCh:
			// stop may only follow a confirmed start
			rn.interruptPending = true
			stopCh = nil
			rn.log.Info("interrupt received, stopping as soon as recording starts")
		case <-timeout:
			return rn.fail(models.ErrStartTimeout)
		}
	}
}

func (rn *run) record() models.RecordingState {
	if rn.interruptPending {
		return rn.stopWith(models.StopInterrupt)
	}

	var expired <-chan time.Time
	if !rn.cfg.Unbounded() {
		remaining := rn.cfg.Duration - time.Since(rn.startedAt)
		if remaining < 0 {
			remaining = 0
		}
		t := time.NewTimer(remaining)
		defer t.Stop()
		expired = t.C
	}

	progress := time.NewTicker(progressInterval)
	defer progress.Stop()

	for {
		select {
		case <-expired:
			return rn.stopWith(models.StopDuration)
		case <-rn.stop.Done():
			return rn.stopWith(models.StopInterrupt)
		case ev := <-rn.sess.Events():
			if ev.Kind != capture.EventFinished {
				continue
			}
			rn.stoppedAt = ev.At
			if ev.Err != nil {
				return rn.fail(backendError("record", ev.Err))
			}
			rn.result.StopReason = models.StopBackend
			rn.log.Warn("capture ended before it was stopped")
			return rn.finalize()
		case <-progress.C:
			rn.r.emit(models.Event{
				State:    models.StateRecording,
				At:       time.Now(),
				Elapsed:  time.Since(rn.startedAt),
				Duration: rn.cfg.Duration,
				Device:   rn.result.Device,
			})
		}
	}
}

func (rn *run) stopWith(reason models.StopReason) models.RecordingState {
	rn.result.StopReason = reason
	rn.stoppedAt = time.Now()
	rn.log.Info("stopping recording", "reason", reason, "elapsed", rn.stoppedAt.Sub(rn.startedAt).Round(10*time.Millisecond))
	return models.StateStopping
}

// finish issues the stop command and waits, uninterruptibly but bounded, for the finalized file
func (rn *run) finish() models.RecordingState {
	if err := rn.sess.Stop(); err != nil {
		return rn.fail(&models.BackendError{Op: "stop", Err: err})
	}

	timeout := time.NewTimer(rn.r.opts.FinishTimeout)
	defer timeout.Stop()

	for {
		select {
		case ev := <-rn.sess.Events():
			if ev.Kind != capture.EventFinished {
				continue
			}
			if ev.Err != nil {
				return rn.fail(backendError("finalize", ev.Err))
			}
			return rn.finalize()
		case <-timeout.C:
			return rn.fail(fmt.Errorf("%w after %s", models.ErrFinishTimeout, rn.r.opts.FinishTimeout))
		}
	}
}

func (rn *run) finalize() models.RecordingState {
	rn.result.Elapsed = rn.stoppedAt.Sub(rn.startedAt)

	info, err := container.Verify(rn.cfg.OutputPath)
	if err != nil {
		if errors.Is(err, container.ErrNotFinalized) {
			return rn.fail(err)
		}
		return rn.fail(fmt.Errorf("%w: %v", models.ErrEmptyOutput, err))
	}
	rn.result.Size = info.Size
	rn.result.ContainerDuration = info.Duration

	rn.log.Info("recording finished",
		"path", rn.cfg.OutputPath,
		"elapsed", rn.result.Elapsed.Round(10*time.Millisecond),
		"reason", rn.result.StopReason,
	)
	return models.StateFinished
}

func (rn *run) cancel() models.RecordingState {
	rn.result.Cancelled = true
	rn.result.StopReason = models.StopCancelled
	// only clean up what this session's sink may have created
	if rn.sess != nil && !rn.outputExisted {
		discardEmpty(rn.cfg.OutputPath)
	}
	return models.StateFinished
}

func (rn *run) fail(err error) models.RecordingState {
	rn.err = err
	rn.result.Error = err.Error()
	if !rn.startedAt.IsZero() && rn.stoppedAt.IsZero() {
		rn.stoppedAt = time.Now()
	}
	if !rn.startedAt.IsZero() {
		rn.result.Elapsed = rn.stoppedAt.Sub(rn.startedAt)
	}
	rn.log.Error("recording failed", "err", err)
	return models.StateErrored
}

// teardown releases the session in every terminal state
func (rn *run) teardown() {
	rn.result.FinishedAt = time.Now()
	if rn.sess == nil {
		return
	}

	if err := rn.sess.Close(); err != nil {
		err = fmt.Errorf("failed to release capture session: %w", err)
		if rn.err != nil {
			rn.err = multierror.Append(rn.err, err)
			rn.result.Error = rn.err.Error()
		} else {
			rn.log.Warn("capture session teardown", "err", err)
		}
	}
}

func backendError(op string, err error) error {
	if err == nil {
		err = models.ErrStartFailed
	}
	if models.IsBackendError(err) {
		return err
	}
	return &models.BackendError{Op: op, Err: err}
}

// discardEmpty removes a zero-length file left at path
func discardEmpty(path string) {
	if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() && info.Size() == 0 {
		os.Remove(path)
	}
}

func durationLabel(d time.Duration) string {
	if d <= 0 {
		return "until interrupted"
	}
	return d.String()
}
