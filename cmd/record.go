package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/kartoza/videosnap/internal/beep"
	"github.com/kartoza/videosnap/internal/config"
	"github.com/kartoza/videosnap/internal/deps"
	"github.com/kartoza/videosnap/internal/device"
	"github.com/kartoza/videosnap/internal/ffmpeg"
	"github.com/kartoza/videosnap/internal/interrupt"
	"github.com/kartoza/videosnap/internal/logging"
	"github.com/kartoza/videosnap/internal/models"
	"github.com/kartoza/videosnap/internal/notify"
	"github.com/kartoza/videosnap/internal/recorder"
	"github.com/kartoza/videosnap/internal/tui"
)

// recordOptions are the per-invocation settings given on the command line
type recordOptions struct {
	Device   string
	Duration float64
	Wait     float64
	Size     string
	NoAudio  bool
}

func currentRecordOptions() recordOptions {
	return recordOptions{
		Device:   deviceName,
		Duration: durationSecs,
		Wait:     waitSecs,
		Size:     sizePreset,
		NoAudio:  noAudio,
	}
}

// loadConfig reads the config file and environment, then applies global flag overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if ffmpegPath != "" {
		cfg.FFmpegPath = ffmpegPath
	}
	if finishTimeout > 0 {
		cfg.FinishTimeoutSeconds = int(math.Ceil(finishTimeout.Seconds()))
	}
	return cfg, nil
}

func newBackend(cfg *config.Config, logger *log.Logger) *ffmpeg.Backend {
	return ffmpeg.NewBackend(ffmpeg.Options{
		Path:        cfg.FFmpegPath,
		Framerate:   cfg.Framerate,
		AudioDevice: cfg.AudioDevice,
		Logger:      logger,
	})
}

func seconds(flag string, v float64) (time.Duration, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, fmt.Errorf("invalid --%s %v: must be a non-negative number of seconds", flag, v)
	}
	return time.Duration(v * float64(time.Second)), nil
}

// buildSessionConfig merges command line options over the config file into one immutable value
func buildSessionConfig(cfg *config.Config, opts recordOptions, args []string) (models.SessionConfig, error) {
	duration, err := seconds("duration", opts.Duration)
	if err != nil {
		return models.SessionConfig{}, err
	}
	delay, err := seconds("wait", opts.Wait)
	if err != nil {
		return models.SessionConfig{}, err
	}

	output := models.DefaultOutputFile
	if len(args) > 0 && args[0] != "" {
		output = args[0]
	}

	dev := cfg.Device
	if opts.Device != "" {
		dev = opts.Device
	}

	size := cfg.Size
	if opts.Size != "" {
		size = opts.Size
	}
	if p, ok := models.ParseSizePreset(size); ok {
		size = string(p)
	}

	return models.SessionConfig{
		OutputPath:   output,
		Duration:     duration,
		Delay:        delay,
		Size:         size,
		AudioEnabled: !(opts.NoAudio || cfg.NoAudio),
		Device:       dev,
	}, nil
}

func runRecord(cmd *cobra.Command, args []string) error {
	logger := logging.New(os.Stderr, verbose, quiet)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	backend := newBackend(cfg, logger)

	if listDevices {
		return printDevices(cmd.OutOrStdout(), device.NewResolver(backend), jsonOutput, verbose)
	}

	if missing := deps.MissingRequired(deps.DetectOS(), cfg.FFmpegPath); len(missing) > 0 {
		return errors.New(deps.FormatMissing(missing))
	}

	session, err := buildSessionConfig(cfg, currentRecordOptions(), args)
	if err != nil {
		return err
	}
	logger.Debug("session",
		"output", session.OutputPath,
		"device", session.Device,
		"duration", session.Duration,
		"wait", session.Delay,
		"size", session.Size,
		"audio", session.AudioEnabled,
	)

	rec := recorder.New(backend, recorder.Options{
		StartTimeout:  cfg.StartTimeout(),
		FinishTimeout: cfg.FinishTimeout(),
		Logger:        logger,
	})

	stop := interrupt.New()
	release := interrupt.NotifyOS(stop, func(sig os.Signal, first bool) {
		if first {
			logger.Info("interrupt received", "signal", sig)
			return
		}
		logger.Info("already stopping, waiting for the movie file to be finalized")
	})
	defer release()

	notifications := notifyOn || cfg.Notify
	attachHooks(rec, cfg, logger, beepOn || cfg.Beep, notifications)

	var result models.RecordingResult
	if tuiMode {
		result, err = recordWithTUI(rec, session, stop, logger)
	} else {
		result, err = rec.Record(session, stop)
	}

	if notifications {
		sendFinalNotification(result, err, logger)
	}
	if err != nil {
		return reportedError{err}
	}

	if !quiet {
		printSummary(cmd.OutOrStdout(), result)
	}
	return nil
}

// recordWithTUI holds log output back while the live view owns the terminal
func recordWithTUI(rec *recorder.Recorder, session models.SessionConfig, stop *interrupt.Signal, logger *log.Logger) (models.RecordingResult, error) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	result, err := tui.Run(rec, session, stop)
	logger.SetOutput(os.Stderr)
	_, _ = os.Stderr.Write(buf.Bytes())
	return result, err
}

// attachHooks wires countdown beeps and the recording-started notification to recorder events
func attachHooks(rec *recorder.Recorder, cfg *config.Config, logger *log.Logger, beeps, notifications bool) {
	if beeps {
		countdown := beep.NewCountdown(beep.NewPlayer(cfg.FFmpegPath).Play)
		rec.Subscribe(func(ev models.Event) {
			if ev.State == models.StateDelaying {
				countdown.Tick(ev.Remaining)
			}
		})
	}

	if notifications {
		started := false
		rec.Subscribe(func(ev models.Event) {
			if ev.State != models.StateRecording || started {
				return
			}
			started = true
			go func() {
				if err := notify.RecordingStarted(ev.Device); err != nil {
					logger.Debug("notification failed", "err", err)
				}
			}()
		})
	}
}

func sendFinalNotification(result models.RecordingResult, err error, logger *log.Logger) {
	var nerr error
	switch {
	case err != nil:
		nerr = notify.RecordingFailed(err)
	case !result.Cancelled:
		nerr = notify.RecordingComplete(result.OutputPath)
	}
	if nerr != nil {
		logger.Debug("notification failed", "err", nerr)
	}
}

func printSummary(w io.Writer, result models.RecordingResult) {
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	gray := lipgloss.NewStyle().Foreground(lipgloss.Color("#9A9EA0"))

	if result.Cancelled {
		fmt.Fprintln(w, gray.Render("Recording cancelled before it started"))
		return
	}

	fmt.Fprintf(w, "%s %s\n", green.Render("Recorded"), result.OutputPath)
	fmt.Fprintf(w, "  %s %s\n", gray.Render("Elapsed:"), formatElapsed(result.Elapsed))
	fmt.Fprintf(w, "  %s %s\n", gray.Render("Size:   "), humanize.Bytes(uint64(result.Size)))
	if result.Device != "" {
		fmt.Fprintf(w, "  %s %s\n", gray.Render("Device: "), result.Device)
	}
	if !result.AudioRecorded {
		fmt.Fprintf(w, "  %s %s\n", gray.Render("Audio:  "), "none")
	}
}

func formatElapsed(d time.Duration) string {
	return fmt.Sprintf("%.2fs", d.Seconds())
}
