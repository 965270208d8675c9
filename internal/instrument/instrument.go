// Package instrument models the per-scan instrument state extracted from an
// experiment description: goniometer, detector, beam and scan parameters.
package instrument

import (
	"errors"
	"fmt"

	"github.com/COMCIFS/instrument-geometry-info/internal/geom"
)

// DefaultAxisName names the rotation axis of a single-axis goniometer,
// which carries no axis name of its own.
const DefaultAxisName = "Omega"

var (
	// ErrNoScans reports an experiment description without any scans.
	ErrNoScans = errors.New("experiment contains no scans")
	// ErrAxisSetMismatch reports goniometer axes that change identity or
	// order between scans.
	ErrAxisSetMismatch = errors.New("goniometer axes differ between scans")
	// ErrPanelSetMismatch reports detector panels that change identity
	// between scans.
	ErrPanelSetMismatch = errors.New("detector panels differ between scans")
	// ErrWavelengthMismatch reports scans measured at different wavelengths.
	ErrWavelengthMismatch = errors.New("wavelength differs between scans")
)

// Goniometer is either a MultiAxisGoniometer or a SingleAxisGoniometer.
type Goniometer interface {
	goniometer()
}

// MultiAxisGoniometer is a named chain of rotation axes, one of which is
// scanned. Angles holds this scan's setting for each axis.
type MultiAxisGoniometer struct {
	Names    []string
	Axes     []geom.Vec
	Angles   []float64
	ScanAxis int
}

func (MultiAxisGoniometer) goniometer() {}

// SingleAxisGoniometer is a bare rotation axis without a name.
type SingleAxisGoniometer struct {
	RotationAxis geom.Vec
}

func (SingleAxisGoniometer) goniometer() {}

// Panel is one detector module. Fast and slow are unit direction vectors
// of the pixel grid; Origin locates the first pixel in lab coordinates.
type Panel struct {
	Name      string
	Fast      geom.Vec
	Slow      geom.Vec
	Origin    geom.Vec
	PixelSize [2]float64 // mm, fast then slow
	ImageSize [2]int     // pixels, fast then slow
}

// Detector is an ordered list of panels.
type Detector struct {
	Panels []Panel
}

// Beam holds the incident beam parameters.
type Beam struct {
	Wavelength float64 // angstrom
}

// Scan holds the sweep parameters of one scan. The exposure time list has
// one entry per frame and defines the frame count.
type Scan struct {
	Start         float64 // degrees
	Step          float64 // degrees per frame
	ExposureTimes []float64
}

// Snapshot is the full instrument state during one scan.
type Snapshot struct {
	Goniometer Goniometer
	Detector   Detector
	Beam       Beam
	Scan       Scan
	Template   string // image file path template
}

// ScanRecord is the scan-level summary consumed by frame indexing and
// external-location resolution.
type ScanRecord struct {
	ScanAxis      string
	Start         float64
	Step          float64
	Range         float64 // Step times frame count, to the end of the last step
	NumFrames     int
	ExposureTimes []float64
	Template      string
}

// ScanAxisName returns the name of the scanned axis of g.
func ScanAxisName(g Goniometer) (string, error) {
	switch gon := g.(type) {
	case MultiAxisGoniometer:
		if gon.ScanAxis < 0 || gon.ScanAxis >= len(gon.Names) {
			return "", fmt.Errorf("scan axis index %d out of range (%d axes): %w",
				gon.ScanAxis, len(gon.Names), ErrAxisSetMismatch)
		}
		return gon.Names[gon.ScanAxis], nil
	case SingleAxisGoniometer:
		return DefaultAxisName, nil
	default:
		return "", fmt.Errorf("unknown goniometer type %T", g)
	}
}

// ScanRecords derives the per-scan summaries from a validated snapshot list.
func ScanRecords(snaps []Snapshot) ([]ScanRecord, error) {
	records := make([]ScanRecord, 0, len(snaps))
	for i, s := range snaps {
		axis, err := ScanAxisName(s.Goniometer)
		if err != nil {
			return nil, fmt.Errorf("scan %d: %w", i+1, err)
		}
		n := len(s.Scan.ExposureTimes)
		records = append(records, ScanRecord{
			ScanAxis:      axis,
			Start:         s.Scan.Start,
			Step:          s.Scan.Step,
			Range:         s.Scan.Step * float64(n),
			NumFrames:     n,
			ExposureTimes: s.Scan.ExposureTimes,
			Template:      s.Template,
		})
	}
	return records, nil
}

// Validate checks the cross-scan assumptions the conversion relies on:
// a stable goniometer axis set, a stable panel set and a single wavelength.
func Validate(snaps []Snapshot) error {
	if len(snaps) == 0 {
		return ErrNoScans
	}

	if err := validateGoniometers(snaps); err != nil {
		return err
	}

	first := snaps[0]
	for i, s := range snaps[1:] {
		if len(s.Detector.Panels) != len(first.Detector.Panels) {
			return fmt.Errorf("scan %d has %d panels, scan 1 has %d: %w",
				i+2, len(s.Detector.Panels), len(first.Detector.Panels), ErrPanelSetMismatch)
		}
		for p := range s.Detector.Panels {
			if s.Detector.Panels[p].Name != first.Detector.Panels[p].Name {
				return fmt.Errorf("scan %d panel %d is %q, scan 1 has %q: %w",
					i+2, p+1, s.Detector.Panels[p].Name, first.Detector.Panels[p].Name, ErrPanelSetMismatch)
			}
		}
		if s.Beam.Wavelength != first.Beam.Wavelength {
			return fmt.Errorf("scan %d wavelength %v, scan 1 wavelength %v: %w",
				i+2, s.Beam.Wavelength, first.Beam.Wavelength, ErrWavelengthMismatch)
		}
	}
	return nil
}

func validateGoniometers(snaps []Snapshot) error {
	switch first := snaps[0].Goniometer.(type) {
	case MultiAxisGoniometer:
		for i, s := range snaps[1:] {
			g, ok := s.Goniometer.(MultiAxisGoniometer)
			if !ok {
				return fmt.Errorf("scan %d goniometer is %T, scan 1 is multi-axis: %w",
					i+2, s.Goniometer, ErrAxisSetMismatch)
			}
			if len(g.Names) != len(first.Names) {
				return fmt.Errorf("scan %d has %d goniometer axes, scan 1 has %d: %w",
					i+2, len(g.Names), len(first.Names), ErrAxisSetMismatch)
			}
			for a := range g.Names {
				if g.Names[a] != first.Names[a] {
					return fmt.Errorf("scan %d axis %d is %q, scan 1 has %q: %w",
						i+2, a+1, g.Names[a], first.Names[a], ErrAxisSetMismatch)
				}
			}
		}
	case SingleAxisGoniometer:
		for i, s := range snaps[1:] {
			if _, ok := s.Goniometer.(SingleAxisGoniometer); !ok {
				return fmt.Errorf("scan %d goniometer is %T, scan 1 is single-axis: %w",
					i+2, s.Goniometer, ErrAxisSetMismatch)
			}
		}
	default:
		return fmt.Errorf("scan 1 has unknown goniometer type %T", snaps[0].Goniometer)
	}
	return nil
}
