// Package ffmpeg implements the capture backend on top of an ffmpeg subprocess, using
// avfoundation on macOS, v4l2 and PulseAudio on Linux, and DirectShow on Windows.
package ffmpeg

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"time"

	"github.com/charmbracelet/log"

	"github.com/kartoza/videosnap/internal/capture"
	"github.com/kartoza/videosnap/internal/deps"
	"github.com/kartoza/videosnap/internal/models"
)

const listTimeout = 10 * time.Second

// Options configure the ffmpeg backend
type Options struct {
	// Path is the ffmpeg binary, looked up in PATH when bare
	Path      string
	Framerate int
	// AudioDevice overrides the platform's default audio input
	AudioDevice string
	OS          deps.OS
	Logger      *log.Logger
}

// DefaultOptions returns options for the current platform
func DefaultOptions() Options {
	return Options{
		Path:      "ffmpeg",
		Framerate: 30,
		OS:        deps.DetectOS(),
	}
}

// Backend drives cameras through ffmpeg
type Backend struct {
	opts  Options
	sysfs fs.FS
	// list runs ffmpeg's device listing and returns its combined output
	list func(args ...string) (string, error)
}

var _ capture.Backend = (*Backend)(nil)

// NewBackend creates a Backend
func NewBackend(opts Options) *Backend {
	def := DefaultOptions()
	if opts.Path == "" {
		opts.Path = def.Path
	}
	if opts.Framerate <= 0 {
		opts.Framerate = def.Framerate
	}
	if opts.OS == "" {
		opts.OS = def.OS
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	b := &Backend{
		opts:  opts,
		sysfs: os.DirFS("/sys"),
	}
	b.list = b.runList
	return b
}

// runList runs a device listing. ffmpeg exits non-zero after listing, so output wins over the error.
func (b *Backend) runList(args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), listTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, b.opts.Path, append([]string{"-hide_banner"}, args...)...)
	out, err := cmd.CombinedOutput()
	if len(out) == 0 && err != nil {
		return "", fmt.Errorf("failed to list devices with %s: %w", b.opts.Path, err)
	}
	return string(out), nil
}

func (b *Backend) listDevices() (video, audio []models.CaptureDevice, err error) {
	switch b.opts.OS {
	case deps.OSDarwin:
		out, err := b.list("-f", "avfoundation", "-list_devices", "true", "-i", "")
		if err != nil {
			return nil, nil, err
		}
		video, audio = ParseAVFoundationDevices(out)
	case deps.OSWindows:
		out, err := b.list("-list_devices", "true", "-f", "dshow", "-i", "dummy")
		if err != nil {
			return nil, nil, err
		}
		video, audio = ParseDShowDevices(out)
	default:
		video, err = V4L2Devices(b.sysfs)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read video4linux devices: %w", err)
		}
	}
	b.opts.Logger.Debug("enumerated devices", "video", len(video), "audio", len(audio))
	return video, audio, nil
}

// VideoDevices lists the attached cameras in backend order
func (b *Backend) VideoDevices() ([]models.CaptureDevice, error) {
	video, _, err := b.listDevices()
	return video, err
}

// DefaultAudioDevice returns the configured audio input, or the platform default
func (b *Backend) DefaultAudioDevice() (models.CaptureDevice, error) {
	if b.opts.AudioDevice != "" {
		return models.CaptureDevice{ID: b.opts.AudioDevice, Name: b.opts.AudioDevice, HasAudio: true}, nil
	}

	switch b.opts.OS {
	case deps.OSDarwin:
		_, audio, err := b.listDevices()
		if err != nil {
			return models.CaptureDevice{}, err
		}
		if len(audio) == 0 {
			return models.CaptureDevice{}, models.ErrAudioUnavailable
		}
		return models.CaptureDevice{ID: "default", Name: audio[0].Name, HasAudio: true}, nil
	case deps.OSWindows:
		_, audio, err := b.listDevices()
		if err != nil {
			return models.CaptureDevice{}, err
		}
		if len(audio) == 0 {
			return models.CaptureDevice{}, models.ErrAudioUnavailable
		}
		return audio[0], nil
	default:
		return models.CaptureDevice{ID: "default", Name: "default", HasAudio: true}, nil
	}
}

// NewPipeline returns an unconfigured pipeline; no process is spawned until Start
func (b *Backend) NewPipeline() capture.Pipeline {
	return &Pipeline{
		opts: b.opts,
		done: make(chan struct{}),
	}
}
