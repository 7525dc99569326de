package capture

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/kartoza/videosnap/internal/models"
)

// Session is a configured pipeline bound to one output file. It is created inert by Prepare
// and owned by a single recorder for its whole life.
type Session struct {
	pipeline   Pipeline
	reporter   *Reporter
	device     models.CaptureDevice
	outputPath string
	preset     models.SizePreset
	audio      bool

	started bool
	stopped bool
	closed  bool
}

// Prepare builds an inert session recording device to outputPath.
//
// An unknown preset falls back to models.DefaultSize and a missing audio input downgrades
// the session to video only; both only log a warning. A video input that cannot be attached
// is fatal.
func Prepare(backend Backend, dev models.CaptureDevice, outputPath, preset string, audioEnabled bool, logger *log.Logger) (*Session, error) {
	if logger == nil {
		logger = log.Default()
	}

	if err := checkWritable(outputPath); err != nil {
		return nil, err
	}

	size, ok := models.ParseSizePreset(preset)
	if !ok {
		logger.Warn("unrecognized size preset, using default", "size", preset, "default", models.DefaultSize)
		size = models.DefaultSize
	}

	p := backend.NewPipeline()
	s := &Session{
		pipeline:   p,
		reporter:   NewReporter(),
		device:     dev,
		outputPath: outputPath,
		preset:     size,
	}

	if err := p.SetPreset(size); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("failed to apply size preset %s: %w", size, err)
	}

	if err := p.AddVideoInput(dev); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("%w: %s: %v", models.ErrVideoUnavailable, dev.Name, err)
	}
	logger.Debug("attached video input", "device", dev.Name, "id", dev.ID)

	if audioEnabled {
		if err := s.attachAudio(backend, logger); err != nil {
			logger.Warn("recording without audio", "err", err)
		} else {
			s.audio = true
		}
	}

	if err := p.SetOutput(outputPath); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("%w: %v", models.ErrOutputNotWritable, err)
	}

	return s, nil
}

// attachAudio prefers the audio channel of the video device itself and falls back to the
// system default input
func (s *Session) attachAudio(backend Backend, logger *log.Logger) error {
	var errs []error

	if s.device.HasAudio && s.device.AudioID != "" {
		bundled := models.CaptureDevice{ID: s.device.AudioID, Name: s.device.Name, HasAudio: true}
		err := s.pipeline.AddAudioInput(bundled)
		if err == nil {
			logger.Debug("attached bundled audio input", "device", s.device.Name)
			return nil
		}
		errs = append(errs, err)
	}

	mic, err := backend.DefaultAudioDevice()
	if err == nil {
		err = s.pipeline.AddAudioInput(mic)
	}
	if err == nil {
		logger.Debug("attached default audio input", "device", mic.Name)
		return nil
	}
	errs = append(errs, err)

	return fmt.Errorf("%w: %v", models.ErrAudioUnavailable, errors.Join(errs...))
}

// Start asks the backend to begin writing the output file
func (s *Session) Start() error {
	if s.closed {
		return errors.New("session closed")
	}
	if s.started {
		return errors.New("session already started")
	}
	s.started = true
	return s.pipeline.Start(s.reporter)
}

// Stop asks the backend to finalize the output file. Only the first call is forwarded.
func (s *Session) Stop() error {
	if !s.started {
		return errors.New("session not started")
	}
	if s.stopped || s.closed {
		return nil
	}
	s.stopped = true
	return s.pipeline.Stop()
}

// Close releases the pipeline and its device inputs
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.pipeline.Close()
}

// Events returns the backend's start/finish notifications
func (s *Session) Events() <-chan Event {
	return s.reporter.Events()
}

func (s *Session) Device() models.CaptureDevice { return s.device }
func (s *Session) OutputPath() string           { return s.outputPath }
func (s *Session) Preset() models.SizePreset    { return s.preset }

// AudioEnabled reports whether an audio input was attached
func (s *Session) AudioEnabled() bool { return s.audio }

// Started reports whether Start has been issued
func (s *Session) Started() bool { return s.started }

func checkWritable(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty output path", models.ErrOutputNotWritable)
	}

	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", models.ErrOutputNotWritable, path)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: %v", models.ErrOutputNotWritable, err)
	}

	probe, err := os.CreateTemp(dir, ".videosnap-probe-*")
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrOutputNotWritable, err)
	}
	name := probe.Name()
	probe.Close()
	os.Remove(name)

	return nil
}
