// Package container checks that a recorded movie file was finalized by the backend.
package container

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Eyevinn/mp4ff/mp4"
)

// ErrNotFinalized is returned when an ISO-BMFF/QuickTime file has no moov index
var ErrNotFinalized = errors.New("movie file has no index (moov box), it was not finalized")

// Info describes a finalized output file
type Info struct {
	Size int64
	// Indexed is true when the container was checked for a moov box
	Indexed  bool
	Duration time.Duration
}

var indexedExtensions = map[string]bool{
	".mov": true,
	".mp4": true,
	".m4v": true,
}

// Verify checks that path exists and is non-empty. For QuickTime and MP4 files it also walks
// the top-level boxes and requires a moov box, reading the movie duration from mvhd.
func Verify(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return Info{}, err
	}
	info := Info{Size: st.Size()}
	if info.Size == 0 {
		return info, fmt.Errorf("%s is empty", path)
	}

	if !indexedExtensions[strings.ToLower(filepath.Ext(path))] {
		return info, nil
	}

	info.Indexed = true
	moovPos, moovHdr, err := findBox(f, 0, uint64(info.Size), "moov")
	if err != nil {
		return info, err
	}
	if moovHdr == nil {
		return info, ErrNotFinalized
	}

	// duration is best effort; QuickTime moov boxes may hold atoms mp4ff does not decode
	if d, err := movieDuration(f, moovPos, *moovHdr); err == nil {
		info.Duration = d
	}
	return info, nil
}

// findBox scans the boxes in [start, end) for the first box named name
func findBox(r io.ReadSeeker, start, end uint64, name string) (uint64, *mp4.BoxHeader, error) {
	pos := start
	for pos+8 <= end {
		if _, err := r.Seek(int64(pos), io.SeekStart); err != nil {
			return 0, nil, err
		}
		hdr, err := mp4.DecodeHeader(r)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return 0, nil, nil
			}
			return 0, nil, fmt.Errorf("reading box header at %d: %w", pos, err)
		}

		size := hdr.Size
		if size == 0 {
			// box extends to the end of its parent
			size = end - pos
		}
		if size < uint64(hdr.Hdrlen) {
			return 0, nil, fmt.Errorf("invalid %q box size %d at %d", hdr.Name, hdr.Size, pos)
		}
		if pos+size > end {
			// truncated trailing box, typical of an interrupted writer
			return 0, nil, nil
		}

		if hdr.Name == name {
			hdr.Size = size
			return pos, &hdr, nil
		}
		pos += size
	}
	return 0, nil, nil
}

func movieDuration(r io.ReadSeeker, moovPos uint64, moov mp4.BoxHeader) (time.Duration, error) {
	payload := moovPos + uint64(moov.Hdrlen)
	mvhdPos, mvhdHdr, err := findBox(r, payload, moovPos+moov.Size, "mvhd")
	if err != nil {
		return 0, err
	}
	if mvhdHdr == nil {
		return 0, errors.New("no mvhd box")
	}

	if _, err := r.Seek(int64(mvhdPos), io.SeekStart); err != nil {
		return 0, err
	}
	box, err := mp4.DecodeBox(mvhdPos, r)
	if err != nil {
		return 0, err
	}
	mvhd, ok := box.(*mp4.MvhdBox)
	if !ok || mvhd.Timescale == 0 {
		return 0, errors.New("unusable mvhd box")
	}

	seconds := float64(mvhd.Duration) / float64(mvhd.Timescale)
	return time.Duration(seconds * float64(time.Second)), nil
}
