// Package expt loads DIALS experiment descriptions (.expt files) into
// instrument snapshots.
//
// An .expt file holds a JSON ExperimentList: top-level arrays
// "experiment", "beam", "detector", "goniometer", "scan" and "imageset",
// where each experiment entry carries integer indices into the other
// arrays. One experiment corresponds to one scan of the data set.
package expt

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/COMCIFS/instrument-geometry-info/internal/extdata"
	"github.com/COMCIFS/instrument-geometry-info/internal/geom"
	"github.com/COMCIFS/instrument-geometry-info/internal/instrument"
)

var (
	// ErrParse reports an experiment description that could not be decoded
	// or that is internally inconsistent.
	ErrParse = errors.New("cannot parse experiment description")

	// ErrMissingImages reports image files named by a scan template that do
	// not exist on disk.
	ErrMissingImages = errors.New("image file not found")
)

// Options control loading of an experiment description.
type Options struct {
	// CheckFormat verifies that the first and last image file of every
	// scan exist on disk.
	CheckFormat bool
}

// Load reads the experiment description at path and returns one
// instrument snapshot per experiment, in file order.
func Load(path string, opts Options) ([]instrument.Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading experiment description: %w", err)
	}

	var list experimentList
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("%s: %v: %w", path, err, ErrParse)
	}
	if len(list.Experiments) == 0 {
		return nil, fmt.Errorf("%s: no experiment entries: %w", path, ErrParse)
	}

	snaps := make([]instrument.Snapshot, 0, len(list.Experiments))
	for i, ref := range list.Experiments {
		snap, err := list.snapshot(ref)
		if err != nil {
			return nil, fmt.Errorf("%s: experiment %d: %v: %w", path, i+1, err, ErrParse)
		}
		if opts.CheckFormat {
			if err := list.checkImages(ref); err != nil {
				return nil, fmt.Errorf("experiment %d: %w", i+1, err)
			}
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

type experimentList struct {
	Experiments []experimentRef   `json:"experiment"`
	Beams       []beamModel       `json:"beam"`
	Detectors   []detectorModel   `json:"detector"`
	Goniometers []goniometerModel `json:"goniometer"`
	Scans       []scanModel       `json:"scan"`
	ImageSets   []imageSetModel   `json:"imageset"`
}

// experimentRef ties one experiment to its instrument models by index.
// Pointers distinguish an absent reference from index zero.
type experimentRef struct {
	Beam       *int `json:"beam"`
	Detector   *int `json:"detector"`
	Goniometer *int `json:"goniometer"`
	Scan       *int `json:"scan"`
	ImageSet   *int `json:"imageset"`
}

type beamModel struct {
	Wavelength float64 `json:"wavelength"`
}

type detectorModel struct {
	Panels []panelModel `json:"panels"`
}

type panelModel struct {
	Name      string     `json:"name"`
	FastAxis  geom.Vec   `json:"fast_axis"`
	SlowAxis  geom.Vec   `json:"slow_axis"`
	Origin    geom.Vec   `json:"origin"`
	PixelSize [2]float64 `json:"pixel_size"`
	ImageSize [2]int     `json:"image_size"`
}

type goniometerModel struct {
	Names        []string   `json:"names"`
	Axes         []geom.Vec `json:"axes"`
	Angles       []float64  `json:"angles"`
	ScanAxis     int        `json:"scan_axis"`
	RotationAxis *geom.Vec  `json:"rotation_axis"`
}

type scanModel struct {
	ImageRange   [2]int     `json:"image_range"`
	Oscillation  [2]float64 `json:"oscillation"`
	ExposureTime []float64  `json:"exposure_time"`
}

type imageSetModel struct {
	Template string `json:"template"`
}

func (l *experimentList) snapshot(ref experimentRef) (instrument.Snapshot, error) {
	beam, err := pick("beam", l.Beams, ref.Beam)
	if err != nil {
		return instrument.Snapshot{}, err
	}
	det, err := pick("detector", l.Detectors, ref.Detector)
	if err != nil {
		return instrument.Snapshot{}, err
	}
	gonio, err := pick("goniometer", l.Goniometers, ref.Goniometer)
	if err != nil {
		return instrument.Snapshot{}, err
	}
	scan, err := pick("scan", l.Scans, ref.Scan)
	if err != nil {
		return instrument.Snapshot{}, err
	}
	iset, err := pick("imageset", l.ImageSets, ref.ImageSet)
	if err != nil {
		return instrument.Snapshot{}, err
	}

	if beam.Wavelength <= 0 {
		return instrument.Snapshot{}, fmt.Errorf("beam wavelength %v is not positive", beam.Wavelength)
	}
	if iset.Template == "" {
		return instrument.Snapshot{}, errors.New("imageset has no template")
	}

	g, err := gonio.model()
	if err != nil {
		return instrument.Snapshot{}, err
	}
	d, err := det.model()
	if err != nil {
		return instrument.Snapshot{}, err
	}
	s, err := scan.model()
	if err != nil {
		return instrument.Snapshot{}, err
	}

	return instrument.Snapshot{
		Goniometer: g,
		Detector:   d,
		Beam:       instrument.Beam{Wavelength: beam.Wavelength},
		Scan:       s,
		Template:   iset.Template,
	}, nil
}

// checkImages stats the first and last frame file of a scan, which catches
// a stale template without opening every image. Templates with no number
// run, such as HDF5 master files, are checked verbatim.
func (l *experimentList) checkImages(ref experimentRef) error {
	scan := l.Scans[*ref.Scan]
	template := l.ImageSets[*ref.ImageSet].Template
	for _, frame := range []int{scan.ImageRange[0], scan.ImageRange[1]} {
		name := extdata.EncodeFrame(template, frame)
		if _, err := os.Stat(name); err != nil {
			return fmt.Errorf("%s: %w", name, ErrMissingImages)
		}
	}
	return nil
}

func pick[T any](name string, items []T, ix *int) (T, error) {
	var zero T
	if ix == nil {
		return zero, fmt.Errorf("no %s reference", name)
	}
	if *ix < 0 || *ix >= len(items) {
		return zero, fmt.Errorf("%s index %d out of range (%d entries)", name, *ix, len(items))
	}
	return items[*ix], nil
}

// model distinguishes the multi-axis goniometer layout (names, axes,
// angles, scan_axis) from the single-axis layout (rotation_axis).
func (g goniometerModel) model() (instrument.Goniometer, error) {
	if len(g.Names) > 0 {
		if len(g.Axes) != len(g.Names) || len(g.Angles) != len(g.Names) {
			return nil, fmt.Errorf("goniometer has %d names, %d axes and %d angles",
				len(g.Names), len(g.Axes), len(g.Angles))
		}
		if g.ScanAxis < 0 || g.ScanAxis >= len(g.Names) {
			return nil, fmt.Errorf("goniometer scan axis %d out of range (%d axes)",
				g.ScanAxis, len(g.Names))
		}
		return instrument.MultiAxisGoniometer{
			Names:    g.Names,
			Axes:     g.Axes,
			Angles:   g.Angles,
			ScanAxis: g.ScanAxis,
		}, nil
	}
	if g.RotationAxis == nil {
		return nil, errors.New("goniometer has neither axis names nor a rotation axis")
	}
	return instrument.SingleAxisGoniometer{RotationAxis: *g.RotationAxis}, nil
}

func (d detectorModel) model() (instrument.Detector, error) {
	if len(d.Panels) == 0 {
		return instrument.Detector{}, errors.New("detector has no panels")
	}
	panels := make([]instrument.Panel, 0, len(d.Panels))
	for _, p := range d.Panels {
		panels = append(panels, instrument.Panel{
			Name:      p.Name,
			Fast:      p.FastAxis,
			Slow:      p.SlowAxis,
			Origin:    p.Origin,
			PixelSize: p.PixelSize,
			ImageSize: p.ImageSize,
		})
	}
	return instrument.Detector{Panels: panels}, nil
}

// model expands the exposure time list to one entry per frame. DIALS
// writes one value per frame; a single value is broadcast and an empty
// list yields zeros.
func (s scanModel) model() (instrument.Scan, error) {
	n := s.ImageRange[1] - s.ImageRange[0] + 1
	if n < 1 {
		return instrument.Scan{}, fmt.Errorf("image range %d..%d is empty",
			s.ImageRange[0], s.ImageRange[1])
	}
	exposures := make([]float64, n)
	switch len(s.ExposureTime) {
	case n:
		copy(exposures, s.ExposureTime)
	case 1:
		for i := range exposures {
			exposures[i] = s.ExposureTime[0]
		}
	case 0:
	default:
		return instrument.Scan{}, fmt.Errorf("%d exposure times for %d frames",
			len(s.ExposureTime), n)
	}
	return instrument.Scan{
		Start:         s.Oscillation[0],
		Step:          s.Oscillation[1],
		ExposureTimes: exposures,
	}, nil
}
