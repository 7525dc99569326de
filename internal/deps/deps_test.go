package deps

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectOS(t *testing.T) {
	got := DetectOS()
	switch runtime.GOOS {
	case "linux", "darwin", "windows":
		assert.Equal(t, OS(runtime.GOOS), got)
	default:
		assert.Equal(t, OSUnknown, got)
	}
}

func TestCaptureFramework(t *testing.T) {
	assert.Equal(t, "avfoundation", CaptureFramework(OSDarwin))
	assert.Equal(t, "dshow", CaptureFramework(OSWindows))
	assert.Equal(t, "v4l2", CaptureFramework(OSLinux))
}

func TestRequiredDeps_FFmpegPath(t *testing.T) {
	required := RequiredDeps(OSLinux, "")
	require.Len(t, required, 1)
	assert.Equal(t, "ffmpeg", required[0].Name)
	assert.True(t, required[0].Required)

	required = RequiredDeps(OSDarwin, "/opt/homebrew/bin/ffmpeg")
	assert.Equal(t, "/opt/homebrew/bin/ffmpeg", required[0].Name)
	assert.Contains(t, required[0].Description, "avfoundation")
}

func TestMissingRequired(t *testing.T) {
	missing := MissingRequired(OSLinux, "/nonexistent/videosnap-ffmpeg")
	require.Len(t, missing, 1)
	assert.False(t, missing[0].Available)
	assert.Error(t, missing[0].Error)

	out := FormatMissing(missing)
	assert.Contains(t, out, "/nonexistent/videosnap-ffmpeg")
	assert.Contains(t, out, "REQUIRED")
}

func TestFormatAll(t *testing.T) {
	required := []CheckResult{{Dependency: Dependency{Name: "ffmpeg", Description: "capture", Required: true}, Available: true, Path: "/usr/bin/ffmpeg"}}
	optional := []CheckResult{{Dependency: Dependency{Name: "paplay", Description: "beeps"}}}

	out := FormatAll(required, optional)
	assert.Contains(t, out, "✓ ffmpeg - capture")
	assert.Contains(t, out, "Path: /usr/bin/ffmpeg")
	assert.Contains(t, out, "○ paplay - beeps")

	assert.NotContains(t, FormatAll(required, nil), "Optional")
}
