// Package capturetest provides a scriptable in-memory capture backend for tests.
package capturetest

import (
	"errors"
	"os"
	"sync"
	"time"

	"github.com/kartoza/videosnap/internal/capture"
	"github.com/kartoza/videosnap/internal/models"
)

// Behavior scripts how pipelines created by a Backend respond
type Behavior struct {
	PresetErr error
	VideoErr  error
	// AudioErrs fails AddAudioInput for the given device IDs
	AudioErrs map[string]error

	// StartErr is returned synchronously from Start
	StartErr error
	// StartFailure is reported through Finished without a preceding Started
	StartFailure error
	StartDelay   time.Duration
	NeverStart   bool

	// RecordErr is reported RecordErrAfter into the recording unless stopped first
	RecordErr      error
	RecordErrAfter time.Duration
	// EndAfter makes the backend finish on its own, without error
	EndAfter time.Duration

	FinishDelay time.Duration
	FinishErr   error
	HangOnStop  bool

	// TouchOutput creates an empty output file as soon as the sink is targeted
	TouchOutput bool
	// NoOutput skips creating the output file
	NoOutput bool
	Payload  []byte
}

// Backend is a fake capture.Backend
type Backend struct {
	Devices      []models.CaptureDevice
	DefaultAudio *models.CaptureDevice
	ListErr      error
	Behavior     Behavior

	mu        sync.Mutex
	pipelines []*Pipeline
}

var _ capture.Backend = (*Backend)(nil)

func (b *Backend) VideoDevices() ([]models.CaptureDevice, error) {
	return b.Devices, b.ListErr
}

func (b *Backend) DefaultAudioDevice() (models.CaptureDevice, error) {
	if b.DefaultAudio == nil {
		return models.CaptureDevice{}, models.ErrAudioUnavailable
	}
	return *b.DefaultAudio, nil
}

func (b *Backend) NewPipeline() capture.Pipeline {
	b.mu.Lock()
	defer b.mu.Unlock()

	p := &Pipeline{behavior: b.Behavior, stopCh: make(chan struct{})}
	b.pipelines = append(b.pipelines, p)
	return p
}

// Pipelines returns every pipeline created so far
func (b *Backend) Pipelines() []*Pipeline {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Pipeline(nil), b.pipelines...)
}

// Call is one recorded pipeline command
type Call struct {
	Name string
	At   time.Time
}

// Pipeline is a fake capture.Pipeline recording every command it receives
type Pipeline struct {
	behavior Behavior

	mu     sync.Mutex
	calls  []Call
	Preset models.SizePreset
	Video  models.CaptureDevice
	Audio  []models.CaptureDevice
	Output string

	rep      *capture.Reporter
	stopOnce sync.Once
	stopCh   chan struct{}
}

func (p *Pipeline) record(name string) {
	p.mu.Lock()
	p.calls = append(p.calls, Call{Name: name, At: time.Now()})
	p.mu.Unlock()
}

// Calls returns the names of the commands received, in order
func (p *Pipeline) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	names := make([]string, len(p.calls))
	for i, c := range p.calls {
		names[i] = c.Name
	}
	return names
}

// CallTime returns when the first command with the given name was received
func (p *Pipeline) CallTime(name string) (time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, c := range p.calls {
		if c.Name == name {
			return c.At, true
		}
	}
	return time.Time{}, false
}

// Count returns how many times a command was received
func (p *Pipeline) Count(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, c := range p.calls {
		if c.Name == name {
			n++
		}
	}
	return n
}

func (p *Pipeline) SetPreset(preset models.SizePreset) error {
	p.record("preset")
	if p.behavior.PresetErr != nil {
		return p.behavior.PresetErr
	}
	p.mu.Lock()
	p.Preset = preset
	p.mu.Unlock()
	return nil
}

func (p *Pipeline) AddVideoInput(dev models.CaptureDevice) error {
	p.record("video")
	if p.behavior.VideoErr != nil {
		return p.behavior.VideoErr
	}
	if !dev.HasVideo {
		return errors.New("device has no video")
	}
	p.mu.Lock()
	p.Video = dev
	p.mu.Unlock()
	return nil
}

func (p *Pipeline) AddAudioInput(dev models.CaptureDevice) error {
	p.record("audio")
	if err := p.behavior.AudioErrs[dev.ID]; err != nil {
		return err
	}
	p.mu.Lock()
	p.Audio = append(p.Audio, dev)
	p.mu.Unlock()
	return nil
}

func (p *Pipeline) SetOutput(path string) error {
	p.record("output")
	p.mu.Lock()
	p.Output = path
	p.mu.Unlock()
	if p.behavior.TouchOutput {
		return os.WriteFile(path, nil, 0644)
	}
	return nil
}

func (p *Pipeline) Start(rep *capture.Reporter) error {
	p.record("start")
	b := p.behavior
	if b.StartErr != nil {
		return b.StartErr
	}

	p.mu.Lock()
	p.rep = rep
	p.mu.Unlock()

	go func() {
		if !p.wait(b.StartDelay) {
			return
		}
		if b.StartFailure != nil {
			rep.Finished(b.StartFailure)
			return
		}
		if b.NeverStart {
			return
		}

		if !b.NoOutput {
			payload := b.Payload
			if payload == nil {
				payload = []byte("fake movie data")
			}
			_ = os.WriteFile(p.Output, payload, 0644)
		}
		rep.Started(time.Now())

		switch {
		case b.RecordErr != nil:
			if p.wait(b.RecordErrAfter) {
				rep.Finished(b.RecordErr)
			}
		case b.EndAfter > 0:
			if p.wait(b.EndAfter) {
				rep.Finished(nil)
			}
		}
	}()

	return nil
}

// wait sleeps for d and reports false if Stop arrived first
func (p *Pipeline) wait(d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-time.After(d):
		return true
	case <-p.stopCh:
		return false
	}
}

func (p *Pipeline) Stop() error {
	p.record("stop")
	b := p.behavior

	p.stopOnce.Do(func() {
		close(p.stopCh)
		if b.HangOnStop {
			return
		}
		go func() {
			time.Sleep(b.FinishDelay)
			// the recorder only stops after Started, so Finished(nil) is a clean finalize
			p.finish(b.FinishErr)
		}()
	})
	return nil
}

func (p *Pipeline) Close() error {
	p.record("close")
	return nil
}

func (p *Pipeline) finish(err error) {
	p.mu.Lock()
	rep := p.rep
	p.mu.Unlock()
	if rep != nil {
		rep.Finished(err)
	}
}
