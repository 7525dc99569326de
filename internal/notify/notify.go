package notify

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/kartoza/videosnap/internal/deps"
)

// Urgency levels for notifications
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyNormal   Urgency = "normal"
	UrgencyCritical Urgency = "critical"
)

const appTitle = "videosnap"

// command builds the platform notifier invocation, or nil when there is none
func command(os deps.OS, title, body string, urgency Urgency, icon string) *exec.Cmd {
	switch os {
	case deps.OSDarwin:
		script := fmt.Sprintf("display notification %s with title %s", strconv.Quote(body), strconv.Quote(title))
		return exec.Command("osascript", "-e", script)
	case deps.OSLinux:
		args := []string{title, body, "--app-name=" + appTitle}
		if urgency != "" {
			args = append(args, "--urgency="+string(urgency))
		}
		if icon != "" {
			args = append(args, "--icon="+icon)
		}
		return exec.Command("notify-send", args...)
	default:
		return nil
	}
}

// Send sends a desktop notification using notify-send or osascript
func Send(title, body string, urgency Urgency, icon string) error {
	cmd := command(deps.DetectOS(), title, body, urgency, icon)
	if cmd == nil {
		return nil
	}
	return cmd.Run()
}

// Info sends an informational notification
func Info(title, body string) error {
	return Send(title, body, UrgencyNormal, "camera-video")
}

// Error sends an error notification
func Error(title, body string) error {
	return Send(title, body, UrgencyCritical, "dialog-error")
}

// RecordingStarted notifies that the camera is recording
func RecordingStarted(device string) error {
	return Info("Camera Recording", "Recording from "+device+"...")
}

// RecordingComplete notifies that the movie file is finalized
func RecordingComplete(path string) error {
	return Info("Camera Recording Complete", filepath.Base(path)+" saved!")
}

// RecordingFailed notifies that the recording ended with an error
func RecordingFailed(err error) error {
	return Error("Camera Recording Failed", err.Error())
}
