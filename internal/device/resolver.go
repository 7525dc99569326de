package device

import (
	"errors"
	"fmt"

	"github.com/kartoza/videosnap/internal/models"
)

// DefaultName selects the default device when passed to Resolve
const DefaultName = "default"

// Enumerator lists the video-capable devices currently attached, in backend order
type Enumerator interface {
	VideoDevices() ([]models.CaptureDevice, error)
}

// Resolver answers device queries against a fresh enumeration on every call
type Resolver struct {
	enum Enumerator
}

// NewResolver creates a Resolver over enum
func NewResolver(enum Enumerator) *Resolver {
	return &Resolver{enum: enum}
}

// List returns all devices that expose video, including muxed audio/video devices
func (r *Resolver) List() ([]models.CaptureDevice, error) {
	all, err := r.enum.VideoDevices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	devices := make([]models.CaptureDevice, 0, len(all))
	for _, d := range all {
		if d.HasVideo {
			devices = append(devices, d)
		}
	}
	return devices, nil
}

// Default returns the first enumerated device
func (r *Resolver) Default() (models.CaptureDevice, error) {
	devices, err := r.List()
	if err != nil {
		return models.CaptureDevice{}, err
	}
	if len(devices) == 0 {
		return models.CaptureDevice{}, fmt.Errorf("no default device: %w", models.ErrDeviceNotFound)
	}
	return devices[0], nil
}

// Named returns the device whose name matches exactly
func (r *Resolver) Named(name string) (models.CaptureDevice, error) {
	devices, err := r.List()
	if err != nil {
		return models.CaptureDevice{}, err
	}
	for _, d := range devices {
		if d.Name == name {
			return d, nil
		}
	}
	return models.CaptureDevice{}, fmt.Errorf("%q: %w", name, models.ErrDeviceNotFound)
}

// Resolve maps an empty name to Default and anything else to Named. "default" selects
// the default device unless a device is literally named that way.
func (r *Resolver) Resolve(name string) (models.CaptureDevice, error) {
	if name == "" {
		return r.Default()
	}
	dev, err := r.Named(name)
	if name == DefaultName && errors.Is(err, models.ErrDeviceNotFound) {
		return r.Default()
	}
	return dev, err
}
