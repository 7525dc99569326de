package ffmpeg

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kartoza/videosnap/internal/capture"
	"github.com/kartoza/videosnap/internal/deps"
	"github.com/kartoza/videosnap/internal/models"
)

const closeTimeout = 3 * time.Second

// profile is the encoder setting behind a size preset
type profile struct {
	Height  int
	Bitrate string
}

var profiles = map[models.SizePreset]profile{
	models.Size120:   {Height: 120, Bitrate: "256k"},
	models.Size240:   {Height: 240, Bitrate: "512k"},
	models.SizeSD480: {Height: 480, Bitrate: "1500k"},
	models.SizeHD720: {Height: 720, Bitrate: "4000k"},
}

// Pipeline is one ffmpeg capture process
type Pipeline struct {
	opts Options

	preset models.SizePreset
	video  *models.CaptureDevice
	audio  *models.CaptureDevice
	output string

	mu            sync.Mutex
	cmd           *exec.Cmd
	stdin         io.WriteCloser
	stopRequested bool
	started       bool
	stderr        *tail
	done          chan struct{}
}

var _ capture.Pipeline = (*Pipeline)(nil)

func (p *Pipeline) SetPreset(preset models.SizePreset) error {
	if _, ok := profiles[preset]; !ok {
		return fmt.Errorf("unsupported size preset %q", preset)
	}
	p.preset = preset
	return nil
}

func (p *Pipeline) AddVideoInput(dev models.CaptureDevice) error {
	if !dev.HasVideo {
		return fmt.Errorf("%s has no video", dev.Name)
	}
	if p.video != nil {
		return errors.New("video input already attached")
	}
	p.video = &dev
	return nil
}

func (p *Pipeline) AddAudioInput(dev models.CaptureDevice) error {
	if p.audio != nil {
		return errors.New("audio input already attached")
	}
	if p.video == nil {
		return errors.New("audio input needs a video input")
	}
	p.audio = &dev
	return nil
}

func (p *Pipeline) SetOutput(path string) error {
	if path == "" {
		return errors.New("empty output path")
	}
	p.output = path
	return nil
}

// Args returns the ffmpeg command line for the configured pipeline
func (p *Pipeline) Args() ([]string, error) {
	if p.video == nil {
		return nil, errors.New("no video input")
	}
	if p.output == "" {
		return nil, errors.New("no output")
	}
	preset := p.preset
	if preset == "" {
		preset = models.DefaultSize
	}
	prof := profiles[preset]
	rate := strconv.Itoa(p.opts.Framerate)

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nostats",
		"-progress", "pipe:1",
		"-stats_period", "0.1",
	}
	args = append(args, p.inputArgs(rate)...)
	args = append(args,
		"-map", "0:v:0",
		"-vf", fmt.Sprintf("scale=-2:%d", prof.Height),
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-tune", "zerolatency",
		"-pix_fmt", "yuv420p",
		"-b:v", prof.Bitrate,
		"-g", strconv.Itoa(p.opts.Framerate*2),
	)
	if p.audio != nil {
		audioMap := "0:a:0"
		if p.opts.OS == deps.OSLinux || p.opts.OS == deps.OSUnknown {
			audioMap = "1:a:0"
		}
		args = append(args, "-map", audioMap, "-c:a", "aac", "-b:a", "128k")
	}
	args = append(args, "-y", p.output)
	return args, nil
}

func (p *Pipeline) inputArgs(rate string) []string {
	switch p.opts.OS {
	case deps.OSDarwin:
		audio := "none"
		if p.audio != nil {
			audio = p.audio.ID
		}
		return []string{
			"-f", "avfoundation",
			"-framerate", rate,
			"-i", p.video.ID + ":" + audio,
		}
	case deps.OSWindows:
		input := "video=" + p.video.ID
		if p.audio != nil {
			input += ":audio=" + p.audio.ID
		}
		return []string{
			"-f", "dshow",
			"-framerate", rate,
			"-i", input,
		}
	default:
		args := []string{
			"-f", "v4l2",
			"-thread_queue_size", "512",
			"-framerate", rate,
			"-i", p.video.ID,
		}
		if p.audio != nil {
			args = append(args,
				"-f", "pulse",
				"-thread_queue_size", "512",
				"-i", p.audio.ID,
			)
		}
		return args
	}
}

// Start spawns ffmpeg in its own process group. Started is reported on the first encoded
// frame and Finished when the process exits.
func (p *Pipeline) Start(rep *capture.Reporter) error {
	args, err := p.Args()
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd != nil {
		return errors.New("pipeline already started")
	}

	cmd := exec.Command(p.opts.Path, args...)
	setSysProcAttr(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	p.stderr = newTail(20)
	cmd.Stderr = p.stderr

	p.opts.Logger.Debug("starting ffmpeg", "args", strings.Join(args, " "))
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	p.cmd = cmd
	p.stdin = stdin

	go func() {
		defer close(p.done)
		p.watchProgress(stdout, rep)
		err := cmd.Wait()
		rep.Finished(p.exitError(err))
	}()

	return nil
}

// watchProgress reads -progress key=value lines until ffmpeg closes stdout
func (p *Pipeline) watchProgress(r io.Reader, rep *capture.Reporter) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		frames, ok := parseFrame(scanner.Text())
		if !ok || frames <= 0 {
			continue
		}
		p.mu.Lock()
		first := !p.started
		p.started = true
		p.mu.Unlock()
		if first {
			rep.Started(time.Now())
		}
	}
}

func parseFrame(line string) (int64, bool) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok || key != "frame" {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (p *Pipeline) exitError(err error) error {
	p.mu.Lock()
	stopRequested := p.stopRequested
	started := p.started
	p.mu.Unlock()

	if err == nil {
		if !started {
			return &models.BackendError{Op: "start", Err: models.ErrStartFailed, Detail: p.stderr.String()}
		}
		return nil
	}

	// ffmpeg exits 255 when it finalizes the file after an interrupt signal
	var exitErr *exec.ExitError
	if stopRequested && errors.As(err, &exitErr) && exitErr.ExitCode() == 255 {
		return nil
	}

	op := "record"
	if !started {
		op = "start"
	}
	return &models.BackendError{Op: op, Err: err, Detail: p.stderr.String()}
}

// Stop asks ffmpeg to finish writing by sending "q" on stdin, falling back to an interrupt signal
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd == nil {
		return errors.New("pipeline not started")
	}
	if p.stopRequested {
		return nil
	}
	p.stopRequested = true

	select {
	case <-p.done:
		// already exited; Finished carries the outcome
		return nil
	default:
	}

	if _, err := io.WriteString(p.stdin, "q\n"); err != nil {
		p.opts.Logger.Debug("ffmpeg stdin closed, signalling instead", "err", err)
		return interruptProcess(p.cmd)
	}
	return nil
}

// Close kills ffmpeg if it is still running and waits for it to exit
func (p *Pipeline) Close() error {
	p.mu.Lock()
	cmd := p.cmd
	p.mu.Unlock()

	if cmd == nil {
		return nil
	}

	select {
	case <-p.done:
		return nil
	default:
	}

	if err := killProcess(cmd); err != nil {
		p.opts.Logger.Debug("failed to kill ffmpeg", "err", err)
	}

	select {
	case <-p.done:
		return nil
	case <-time.After(closeTimeout):
		return fmt.Errorf("ffmpeg (pid %d) did not exit", cmd.Process.Pid)
	}
}

// tail keeps the last lines written to it
type tail struct {
	mu      sync.Mutex
	max     int
	lines   []string
	partial string
}

func newTail(max int) *tail {
	return &tail{max: max}
}

func (t *tail) Write(b []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	chunks := strings.Split(t.partial+string(b), "\n")
	t.partial = chunks[len(chunks)-1]
	for _, line := range chunks[:len(chunks)-1] {
		if line = strings.TrimSpace(line); line != "" {
			t.lines = append(t.lines, line)
		}
	}
	if len(t.lines) > t.max {
		t.lines = t.lines[len(t.lines)-t.max:]
	}
	return len(b), nil
}

func (t *tail) String() string {
	if t == nil {
		return ""
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	lines := t.lines
	if p := strings.TrimSpace(t.partial); p != "" {
		lines = append(lines[:len(lines):len(lines)], p)
	}
	return strings.Join(lines, "; ")
}
