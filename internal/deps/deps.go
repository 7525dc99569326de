package deps

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// OS identifies the host platform, which decides the capture framework ffmpeg is driven with
type OS string

const (
	OSLinux   OS = "linux"
	OSDarwin  OS = "darwin"
	OSWindows OS = "windows"
	OSUnknown OS = "unknown"
)

// DetectOS returns the platform the binary is running on
func DetectOS() OS {
	switch runtime.GOOS {
	case "linux":
		return OSLinux
	case "darwin":
		return OSDarwin
	case "windows":
		return OSWindows
	default:
		return OSUnknown
	}
}

// CaptureFramework returns the ffmpeg input device used for cameras on os
func CaptureFramework(os OS) string {
	switch os {
	case OSDarwin:
		return "avfoundation"
	case OSWindows:
		return "dshow"
	default:
		return "v4l2"
	}
}

// Dependency represents a required external dependency
type Dependency struct {
	Name        string // Command name or path (e.g., "ffmpeg")
	Description string // Human-readable description
	Required    bool   // If true, nothing can be recorded without it
}

// CheckResult contains the result of checking a dependency
type CheckResult struct {
	Dependency Dependency
	Available  bool
	Path       string // Path to the executable if found
	Error      error  // Error if check failed
}

// RequiredDeps lists what recording needs on os. ffmpegPath may be a bare name or a path.
func RequiredDeps(os OS, ffmpegPath string) []Dependency {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return []Dependency{
		{
			Name:        ffmpegPath,
			Description: fmt.Sprintf("Camera and microphone capture (%s)", CaptureFramework(os)),
			Required:    true,
		},
	}
}

// OptionalDeps lists optional dependencies that enhance functionality on os
func OptionalDeps(os OS) []Dependency {
	switch os {
	case OSDarwin:
		return []Dependency{
			{Name: "osascript", Description: "Desktop notifications"},
			{Name: "afplay", Description: "Audio playback for countdown beeps"},
		}
	case OSLinux:
		return []Dependency{
			{Name: "notify-send", Description: "Desktop notifications"},
			{Name: "pw-cat", Description: "Audio playback for countdown beeps (PipeWire)"},
			{Name: "paplay", Description: "Alternative audio playback for countdown"},
		}
	default:
		return nil
	}
}

// Check verifies if a single dependency is available
func Check(dep Dependency) CheckResult {
	result := CheckResult{Dependency: dep}

	path, err := exec.LookPath(dep.Name)
	if err != nil {
		result.Available = false
		result.Error = err
	} else {
		result.Available = true
		result.Path = path
	}

	return result
}

// CheckAll verifies all required and optional dependencies
func CheckAll(os OS, ffmpegPath string) (required []CheckResult, optional []CheckResult) {
	for _, dep := range RequiredDeps(os, ffmpegPath) {
		required = append(required, Check(dep))
	}
	for _, dep := range OptionalDeps(os) {
		optional = append(optional, Check(dep))
	}
	return required, optional
}

// MissingRequired returns a list of missing required dependencies
func MissingRequired(os OS, ffmpegPath string) []CheckResult {
	var missing []CheckResult
	for _, dep := range RequiredDeps(os, ffmpegPath) {
		result := Check(dep)
		if !result.Available {
			missing = append(missing, result)
		}
	}
	return missing
}

// FormatMissing returns a formatted string of missing dependencies
func FormatMissing(results []CheckResult) string {
	if len(results) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Missing dependencies:\n\n")

	for _, r := range results {
		status := "MISSING"
		if r.Dependency.Required {
			status = "REQUIRED"
		}
		sb.WriteString(fmt.Sprintf("  • %s (%s)\n", r.Dependency.Name, status))
		sb.WriteString(fmt.Sprintf("    %s\n\n", r.Dependency.Description))
	}

	return sb.String()
}

// FormatAll returns a formatted string of all dependency check results
func FormatAll(required, optional []CheckResult) string {
	var sb strings.Builder

	sb.WriteString("Required dependencies:\n")
	for _, r := range required {
		status := "✓"
		if !r.Available {
			status = "✗"
		}
		sb.WriteString(fmt.Sprintf("  %s %s - %s\n", status, r.Dependency.Name, r.Dependency.Description))
		if r.Available {
			sb.WriteString(fmt.Sprintf("      Path: %s\n", r.Path))
		}
	}

	if len(optional) == 0 {
		return sb.String()
	}

	sb.WriteString("\nOptional dependencies:\n")
	for _, r := range optional {
		status := "✓"
		if !r.Available {
			status = "○"
		}
		sb.WriteString(fmt.Sprintf("  %s %s - %s\n", status, r.Dependency.Name, r.Dependency.Description))
		if r.Available {
			sb.WriteString(fmt.Sprintf("      Path: %s\n", r.Path))
		}
	}

	return sb.String()
}
