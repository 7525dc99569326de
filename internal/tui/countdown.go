package tui

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Seven-segment layout, one bit per segment
const (
	segTop = 1 << iota
	segUpperRight
	segLowerRight
	segBottom
	segLowerLeft
	segUpperLeft
	segMiddle
)

var digitSegments = [10]int{
	segTop | segUpperRight | segLowerRight | segBottom | segLowerLeft | segUpperLeft,
	segUpperRight | segLowerRight,
	segTop | segUpperRight | segMiddle | segLowerLeft | segBottom,
	segTop | segUpperRight | segMiddle | segLowerRight | segBottom,
	segUpperLeft | segMiddle | segUpperRight | segLowerRight,
	segTop | segUpperLeft | segMiddle | segLowerRight | segBottom,
	segTop | segUpperLeft | segMiddle | segLowerLeft | segLowerRight | segBottom,
	segTop | segUpperRight | segLowerRight,
	segTop | segUpperRight | segLowerRight | segBottom | segLowerLeft | segUpperLeft | segMiddle,
	segTop | segUpperRight | segLowerRight | segBottom | segUpperLeft | segMiddle,
}

// digitHeight is the number of rows in a rendered digit
const digitHeight = 7

const (
	segmentBar  = " ███████ "
	segmentCell = "█"
)

func sides(left, right bool) string {
	l, r := " ", " "
	if left {
		l = segmentCell
	}
	if right {
		r = segmentCell
	}
	return " " + l + "     " + r + " "
}

// renderDigit draws digit d (0-9) as digitHeight rows of equal width
func renderDigit(d int) []string {
	seg := digitSegments[d]
	on := func(mask int) bool { return seg&mask != 0 }

	horizontal := func(mask int, left, right bool) string {
		if on(mask) {
			return segmentBar
		}
		return sides(left, right)
	}

	upper := sides(on(segUpperLeft), on(segUpperRight))
	lower := sides(on(segLowerLeft), on(segLowerRight))
	return []string{
		horizontal(segTop, on(segUpperLeft), on(segUpperRight)),
		upper,
		upper,
		horizontal(segMiddle, on(segUpperLeft) || on(segLowerLeft), on(segUpperRight) || on(segLowerRight)),
		lower,
		lower,
		horizontal(segBottom, on(segLowerLeft), on(segLowerRight)),
	}
}

// RenderBigNumber renders n with the segment digits, side by side
func RenderBigNumber(n int) []string {
	if n < 0 {
		n = 0
	}

	lines := make([]string, digitHeight)
	for _, r := range strconv.Itoa(n) {
		for i, row := range renderDigit(int(r - '0')) {
			lines[i] += row
		}
	}
	return lines
}

// countdownSeconds is the whole number of seconds shown for a remaining delay
func countdownSeconds(remaining time.Duration) int {
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining.Seconds()))
}

// countdownColor shifts from orange to red as recording approaches
func countdownColor(secs int) lipgloss.Color {
	switch {
	case secs <= 1:
		return ColorRed
	case secs <= 3:
		return lipgloss.Color("#FF8C00") // Dark orange
	default:
		return ColorOrange
	}
}

// renderCountdown renders the pre-roll screen body
func renderCountdown(remaining time.Duration) string {
	secs := countdownSeconds(remaining)

	digitStyle := lipgloss.NewStyle().
		Foreground(countdownColor(secs)).
		Bold(true)

	var lines []string
	for _, line := range RenderBigNumber(secs) {
		lines = append(lines, digitStyle.Render(line))
	}

	subtitle := lipgloss.NewStyle().
		Foreground(ColorGray).
		Italic(true).
		Render("Get ready... Recording starts soon!")

	return lipgloss.JoinVertical(
		lipgloss.Center,
		strings.Join(lines, "\n"),
		"",
		subtitle,
	)
}
