package models

// CaptureDevice is a snapshot of an attached capture device as reported by the backend
type CaptureDevice struct {
	// ID is the backend address of the device (avfoundation index, /dev node, dshow name)
	ID       string `json:"id"`
	Name     string `json:"name"`
	HasVideo bool   `json:"has_video"`
	HasAudio bool   `json:"has_audio"`
	// AudioID addresses the audio channel bundled with the same physical device
	AudioID string `json:"audio_id,omitempty"`
}

// Muxed reports whether the device carries both audio and video
func (d CaptureDevice) Muxed() bool {
	return d.HasVideo && d.HasAudio
}

func (d CaptureDevice) String() string {
	return d.Name
}
