package models

import (
	"errors"
	"fmt"
)

var (
	ErrDeviceNotFound    = errors.New("capture device not found")
	ErrVideoUnavailable  = errors.New("video input unavailable")
	ErrAudioUnavailable  = errors.New("audio input unavailable")
	ErrOutputNotWritable = errors.New("output location not writable")
	ErrStartFailed       = errors.New("capture failed to start")
	ErrStartTimeout      = errors.New("timed out waiting for capture to start")
	ErrFinishTimeout     = errors.New("timed out waiting for output file to be finalized")
	ErrEmptyOutput       = errors.New("output file is missing or empty")
)

// BackendError carries an error reported by the capture backend
type BackendError struct {
	Op     string
	Detail string
	Err    error
}

func (e *BackendError) Error() string {
	msg := "capture backend"
	if e.Op != "" {
		msg += " " + e.Op
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// IsBackendError reports whether err originated in the capture backend
func IsBackendError(err error) bool {
	var be *BackendError
	return errors.As(err, &be)
}
