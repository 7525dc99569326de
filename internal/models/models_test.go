package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSizePreset(t *testing.T) {
	tests := []struct {
		in   string
		want SizePreset
		ok   bool
	}{
		{"120", Size120, true},
		{"low", Size120, true},
		{"medium", Size240, true},
		{"SD", SizeSD480, true},
		{"sd480", SizeSD480, true},
		{" HD720 ", SizeHD720, true},
		{"hd", SizeHD720, true},
		{"4k", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseSizePreset(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSizePresetNames(t *testing.T) {
	assert.Equal(t, []string{"120", "240", "SD480", "HD720"}, SizePresetNames())
}

func TestRecordingState_Terminal(t *testing.T) {
	assert.True(t, StateFinished.Terminal())
	assert.True(t, StateErrored.Terminal())
	assert.False(t, StateRecording.Terminal())
	assert.False(t, StateStopping.Terminal())
}

func TestBackendError(t *testing.T) {
	cause := errors.New("exit status 1")
	err := error(&BackendError{Op: "record", Detail: "Input/output error", Err: cause})

	assert.Equal(t, "capture backend record: exit status 1: Input/output error", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsBackendError(err))
	assert.False(t, IsBackendError(ErrDeviceNotFound))
}

func TestSessionConfig_Unbounded(t *testing.T) {
	assert.True(t, SessionConfig{}.Unbounded())
	assert.False(t, SessionConfig{Duration: 1}.Unbounded())
}
