package beep

import (
	"fmt"
	"math"
	"os/exec"
	"sync"
	"time"

	"github.com/kartoza/videosnap/internal/deps"
)

// Descending frequencies for countdown beeps (Hz)
// 5=880Hz, 4=784Hz, 3=698Hz, 2=622Hz, 1=554Hz (descending A5 to C#5)
var Frequencies = map[int]int{
	5: 880,
	4: 784,
	3: 698,
	2: 622,
	1: 554,
}

// Player plays countdown tones
type Player struct {
	FFmpegPath string
	OS         deps.OS
}

// NewPlayer returns a Player for the current platform
func NewPlayer(ffmpegPath string) *Player {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Player{FFmpegPath: ffmpegPath, OS: deps.DetectOS()}
}

// Play plays a beep at the specified frequency for the countdown number
func (p *Player) Play(count int) {
	freq, ok := Frequencies[count]
	if !ok {
		return
	}

	switch p.OS {
	case deps.OSDarwin:
		if tryAfplay() {
			return
		}
	case deps.OSLinux:
		// Method 1: generated tone through PipeWire, then ALSA
		if p.tryFFmpegBeep(freq, "pw-cat", "--playback", "-") || p.tryFFmpegBeep(freq, "aplay", "-q", "-") {
			return
		}
		// Method 2: paplay with a system sound (PulseAudio)
		if tryPaplay() {
			return
		}
	}

	// Console beep (may not work on all systems)
	fmt.Print("\a")
}

// tryFFmpegBeep generates a 100ms sine wave with ffmpeg and pipes it to player
func (p *Player) tryFFmpegBeep(freq int, player string, args ...string) bool {
	if _, err := exec.LookPath(player); err != nil {
		return false
	}

	gen := exec.Command(p.FFmpegPath,
		"-hide_banner", "-loglevel", "quiet",
		"-f", "lavfi", "-i", fmt.Sprintf("sine=frequency=%d:duration=0.1", freq),
		"-f", "wav", "-",
	)
	play := exec.Command(player, args...)

	pipe, err := gen.StdoutPipe()
	if err != nil {
		return false
	}
	play.Stdin = pipe

	if err := play.Start(); err != nil {
		return false
	}
	if err := gen.Run(); err != nil {
		_ = play.Process.Kill()
		_ = play.Wait()
		return false
	}
	return play.Wait() == nil
}

// tryAfplay plays a system sound on macOS
func tryAfplay() bool {
	return exec.Command("afplay", "/System/Library/Sounds/Tink.aiff").Run() == nil
}

// tryPaplay plays a system sound using paplay
func tryPaplay() bool {
	// Try common system sound locations
	sounds := []string{
		"/usr/share/sounds/freedesktop/stereo/message.oga",
		"/usr/share/sounds/freedesktop/stereo/bell.oga",
		"/usr/share/sounds/sound-icons/bell.wav",
	}

	for _, sound := range sounds {
		cmd := exec.Command("paplay", sound)
		if err := cmd.Run(); err == nil {
			return true
		}
	}

	return false
}

// Countdown beeps once for each of the last whole seconds of a delay
type Countdown struct {
	mu   sync.Mutex
	last int
	play func(int)
}

// NewCountdown returns a Countdown that calls play, in its own goroutine, once per second
func NewCountdown(play func(int)) *Countdown {
	return &Countdown{last: math.MaxInt, play: play}
}

// Tick is fed the remaining delay; it plays when a new whole second with a tone is reached
func (c *Countdown) Tick(remaining time.Duration) {
	secs := int(math.Ceil(remaining.Seconds()))

	c.mu.Lock()
	if secs >= c.last {
		c.mu.Unlock()
		return
	}
	c.last = secs
	c.mu.Unlock()

	if _, ok := Frequencies[secs]; ok {
		go c.play(secs)
	}
}
