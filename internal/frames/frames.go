// Package frames assigns the global frame numbering that ties every
// per-frame table of the output together: scan ids, contiguous frame ids
// and the optional per-scan truncation used for preview output.
package frames

import (
	"fmt"

	"github.com/COMCIFS/instrument-geometry-info/internal/instrument"
)

// ScanID formats the identifier of the scan at 0-based position i.
func ScanID(i int) string {
	return fmt.Sprintf("SCAN%02d", i+1)
}

// FrameID formats the identifier of global frame number n (1-based).
func FrameID(n int) string {
	return fmt.Sprintf("frm%d", n)
}

// Range ties one scan to its span of global frame numbers.
type Range struct {
	ScanID     string
	FirstFrame int
	LastFrame  int
	Count      int
}

// Frame is one emitted frame.
type Frame struct {
	ID       int // global frame number
	ScanID   string
	Number   int // 1-based position within the scan
	Exposure float64
}

// Index is the complete frame numbering of a conversion. When a limit
// truncates scans, ranges and global numbers are based on the truncated
// counts so that every downstream table refers to the same ids, and Elided
// records how many frames were dropped in total.
type Index struct {
	Ranges []Range
	Frames []Frame
	Limit  int // applied per-scan limit, 0 when none
	Elided int
}

// BuildIndex numbers all frames of the given scans. A limit above zero
// caps the number of frames per scan.
func BuildIndex(records []instrument.ScanRecord, limit int) Index {
	idx := Index{
		Ranges: make([]Range, 0, len(records)),
		Limit:  limit,
	}

	next := 1
	for i, rec := range records {
		count := rec.NumFrames
		if limit > 0 && count > limit {
			idx.Elided += count - limit
			count = limit
		}

		id := ScanID(i)
		idx.Ranges = append(idx.Ranges, Range{
			ScanID:     id,
			FirstFrame: next,
			LastFrame:  next + count - 1,
			Count:      count,
		})
		for k := 0; k < count; k++ {
			idx.Frames = append(idx.Frames, Frame{
				ID:       next,
				ScanID:   id,
				Number:   k + 1,
				Exposure: rec.ExposureTimes[k],
			})
			next++
		}
	}
	return idx
}
