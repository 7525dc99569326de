package ffmpeg

import (
	"bufio"
	"errors"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/kartoza/videosnap/internal/models"
)

var (
	avfDeviceRe   = regexp.MustCompile(`\[([0-9]+)\] (.*)`)
	dshowDeviceRe = regexp.MustCompile(`"([^"]+)"(?:\s+\(([a-z, ]+)\))?`)
)

// ParseAVFoundationDevices parses the output of
// `ffmpeg -f avfoundation -list_devices true -i ""`. Screen capture inputs are skipped.
// A camera that also appears in the audio list is reported as muxed.
func ParseAVFoundationDevices(output string) (video, audio []models.CaptureDevice) {
	section := ""
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.Contains(line, "AVFoundation video devices"):
			section = "video"
			continue
		case strings.Contains(line, "AVFoundation audio devices"):
			section = "audio"
			continue
		}

		m := avfDeviceRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[2])

		switch section {
		case "video":
			if strings.HasPrefix(name, "Capture screen") {
				continue
			}
			video = append(video, models.CaptureDevice{ID: m[1], Name: name, HasVideo: true})
		case "audio":
			audio = append(audio, models.CaptureDevice{ID: m[1], Name: name, HasAudio: true})
		}
	}

	bundleAudio(video, audio)
	return video, audio
}

// ParseDShowDevices parses the output of `ffmpeg -list_devices true -f dshow -i dummy`.
// Both the "(video)"-suffixed listing of newer ffmpeg and the sectioned listing of older
// releases are understood.
func ParseDShowDevices(output string) (video, audio []models.CaptureDevice) {
	section := ""
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.Contains(line, "DirectShow video devices"):
			section = "video"
			continue
		case strings.Contains(line, "DirectShow audio devices"):
			section = "audio"
			continue
		case strings.Contains(line, "Alternative name"):
			continue
		}

		m := dshowDeviceRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := m[1]
		kinds := m[2]
		if kinds == "" {
			kinds = section
		}

		if strings.Contains(kinds, "video") {
			video = append(video, models.CaptureDevice{ID: name, Name: name, HasVideo: true})
		}
		if strings.Contains(kinds, "audio") {
			audio = append(audio, models.CaptureDevice{ID: name, Name: name, HasAudio: true})
		}
	}

	bundleAudio(video, audio)
	return video, audio
}

// bundleAudio marks cameras whose name also appears as an audio device
func bundleAudio(video, audio []models.CaptureDevice) {
	byName := make(map[string]string, len(audio))
	for _, a := range audio {
		if _, ok := byName[a.Name]; !ok {
			byName[a.Name] = a.ID
		}
	}
	for i := range video {
		if id, ok := byName[video[i].Name]; ok {
			video[i].HasAudio = true
			video[i].AudioID = id
		}
	}
}

// V4L2Devices lists capture nodes from a sysfs tree (normally os.DirFS("/sys")).
// Only interface index 0 of each camera is kept; the other nodes carry metadata.
// The class directory is absent until videodev loads, which means no cameras.
func V4L2Devices(sysfs fs.FS) ([]models.CaptureDevice, error) {
	const dir = "class/video4linux"

	entries, err := fs.ReadDir(sysfs, dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []models.CaptureDevice{}, nil
	}
	if err != nil {
		return nil, err
	}

	type node struct {
		num int
		dev models.CaptureDevice
	}
	var nodes []node
	for _, e := range entries {
		num, ok := strings.CutPrefix(e.Name(), "video")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(num)
		if err != nil {
			continue
		}

		if idx, err := fs.ReadFile(sysfs, path.Join(dir, e.Name(), "index")); err == nil {
			if strings.TrimSpace(string(idx)) != "0" {
				continue
			}
		}

		name := e.Name()
		if b, err := fs.ReadFile(sysfs, path.Join(dir, e.Name(), "name")); err == nil {
			if s := strings.TrimSpace(string(b)); s != "" {
				name = s
			}
		}

		nodes = append(nodes, node{num: n, dev: models.CaptureDevice{
			ID:       "/dev/" + e.Name(),
			Name:     name,
			HasVideo: true,
		}})
	}

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].num < nodes[j].num })

	devices := make([]models.CaptureDevice, len(nodes))
	for i, n := range nodes {
		devices[i] = n.dev
	}
	return devices, nil
}
