//go:build !windows

package ffmpeg

import (
	"os/exec"
	"syscall"
)

// setSysProcAttr puts ffmpeg in its own process group so a terminal Ctrl+C reaches only us
func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// interruptProcess asks ffmpeg to finalize the output, as Ctrl+C would
func interruptProcess(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	return cmd.Process.Signal(syscall.SIGINT)
}

// killProcess kills ffmpeg and anything it spawned
func killProcess(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
		return cmd.Process.Kill()
	}
	return nil
}
