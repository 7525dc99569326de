package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kartoza/videosnap/internal/container"
	"github.com/kartoza/videosnap/internal/models"
)

var version = "dev"

// SetVersion sets the application version (called from main)
func SetVersion(v string) {
	version = v
}

// Process exit codes
const (
	ExitOK             = 0
	ExitFailure        = 1
	ExitDeviceNotFound = 2
	ExitBackend        = 3
	ExitNotWritable    = 4
)

var (
	listDevices   bool
	jsonOutput    bool
	deviceName    string
	durationSecs  float64
	waitSecs      float64
	sizePreset    string
	noAudio       bool
	verbose       bool
	quiet         bool
	tuiMode       bool
	beepOn        bool
	notifyOn      bool
	ffmpegPath    string
	finishTimeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "videosnap [flags] [output-file]",
	Short: "Record video and audio from a camera to a movie file",
	Long: `videosnap records video, and optionally audio, from an attached camera.

It supports:
  - Recording for a fixed duration or until interrupted (Ctrl+C)
  - A countdown delay before recording starts
  - Size presets: 120, 240, SD480 and HD720
  - Audio from the camera itself or the default microphone

The output file defaults to movie.mov. Interrupting a recording stops it
gracefully; the movie file is always finalized.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRecord,
}

// Execute runs the CLI and exits with a code describing the failure
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}

	var reported reportedError
	if !errors.As(err, &reported) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(ExitCode(err))
}

// reportedError has already been logged to the user
type reportedError struct {
	error
}

func (e reportedError) Unwrap() error {
	return e.error
}

// ExitCode maps an error to the process exit code
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, models.ErrDeviceNotFound):
		return ExitDeviceNotFound
	case errors.Is(err, models.ErrOutputNotWritable):
		return ExitNotWritable
	case models.IsBackendError(err),
		errors.Is(err, models.ErrVideoUnavailable),
		errors.Is(err, models.ErrStartFailed),
		errors.Is(err, models.ErrStartTimeout),
		errors.Is(err, models.ErrFinishTimeout),
		errors.Is(err, models.ErrEmptyOutput),
		errors.Is(err, container.ErrNotFinalized):
		return ExitBackend
	default:
		return ExitFailure
	}
}

func init() {
	flags := rootCmd.Flags()
	flags.BoolVarP(&listDevices, "list-devices", "l", false, "List attached video devices and exit")
	flags.BoolVar(&jsonOutput, "json", false, "Output the device list as JSON")
	flags.StringVarP(&deviceName, "device", "d", "", "Record from the device with this name (default: first device)")
	flags.Float64VarP(&durationSecs, "duration", "t", 0, "Stop after this many seconds (default: until interrupted)")
	flags.Float64VarP(&waitSecs, "wait", "w", 0, "Wait this many seconds before recording")
	flags.StringVarP(&sizePreset, "size", "s", "", "Size preset: 120, 240, SD480 or HD720 (default: SD480)")
	flags.BoolVarP(&noAudio, "no-audio", "n", false, "Record video only")
	flags.BoolVar(&tuiMode, "tui", false, "Show a live countdown and progress view")
	flags.BoolVar(&beepOn, "beep", false, "Beep during the last seconds of the wait")
	flags.BoolVar(&notifyOn, "notify", false, "Send desktop notifications")
	flags.DurationVar(&finishTimeout, "finish-timeout", 0, "How long to wait for the movie file to be finalized (default: 10s)")

	persistent := rootCmd.PersistentFlags()
	persistent.BoolVarP(&verbose, "verbose", "v", false, "Show device and session details")
	persistent.BoolVarP(&quiet, "quiet", "q", false, "Only show errors")
	persistent.StringVar(&ffmpegPath, "ffmpeg", "", "Path to the ffmpeg binary")

	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(depsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "videosnap %s\n", version)
	},
}
