// Package capture defines the contract between the recorder and a capture backend,
// the one-shot completion reporter, and the session configurator.
package capture

import (
	"github.com/kartoza/videosnap/internal/device"
	"github.com/kartoza/videosnap/internal/models"
)

// Backend is the native audio/video pipeline provider
type Backend interface {
	device.Enumerator

	// DefaultAudioDevice returns the system's default audio input
	DefaultAudioDevice() (models.CaptureDevice, error)

	// NewPipeline returns an empty, inert pipeline
	NewPipeline() Pipeline
}

// Pipeline is a single capture pipeline: inputs, a file-output sink and its compression preset.
//
// Configuration calls happen before Start. Start and Stop return as soon as the command is
// issued; the outcome arrives asynchronously through the Reporter given to Start, from the
// backend's own goroutines. Close releases every resource and may be called in any state.
type Pipeline interface {
	SetPreset(preset models.SizePreset) error
	AddVideoInput(dev models.CaptureDevice) error
	AddAudioInput(dev models.CaptureDevice) error
	SetOutput(path string) error

	Start(rep *Reporter) error
	Stop() error
	Close() error
}
