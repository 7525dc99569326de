package models

import "strings"

// SizePreset is a named resolution/bitrate tier. The backend maps it to encoder settings.
type SizePreset string

const (
	Size120   SizePreset = "120"
	Size240   SizePreset = "240"
	SizeSD480 SizePreset = "SD480"
	SizeHD720 SizePreset = "HD720"

	DefaultSize = SizeSD480
)

// SizePresets lists the recognized presets from smallest to largest
var SizePresets = []SizePreset{Size120, Size240, SizeSD480, SizeHD720}

var sizeAliases = map[string]SizePreset{
	"120":    Size120,
	"low":    Size120,
	"240":    Size240,
	"medium": Size240,
	"sd480":  SizeSD480,
	"sd":     SizeSD480,
	"480":    SizeSD480,
	"hd720":  SizeHD720,
	"hd":     SizeHD720,
	"720":    SizeHD720,
}

// ParseSizePreset resolves a preset name or alias, case-insensitively
func ParseSizePreset(s string) (SizePreset, bool) {
	p, ok := sizeAliases[strings.ToLower(strings.TrimSpace(s))]
	return p, ok
}

// SizePresetNames returns the canonical preset names
func SizePresetNames() []string {
	names := make([]string, len(SizePresets))
	for i, p := range SizePresets {
		names[i] = string(p)
	}
	return names
}
