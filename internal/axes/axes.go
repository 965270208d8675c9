// Package axes builds the imgCIF axis catalog from instrument snapshots:
// the goniometer chain, the detector positioning axes and the per-panel
// surface axes, all expressed in the canonical laboratory frame where the
// goniometer base axis points along (1,0,0) and the beam along (0,0,-1).
package axes

import (
	"errors"
	"fmt"

	"github.com/COMCIFS/instrument-geometry-info/internal/geom"
	"github.com/COMCIFS/instrument-geometry-info/internal/instrument"
)

// NoAxis is the depends_on value of an axis at the end of its chain.
const NoAxis = "."

// Axis names fixed by the imgCIF convention.
const (
	TwoThetaAxis = "Two_Theta"
	TransAxis    = "Trans"
)

// Equipment states which instrument part an axis moves.
type Equipment string

const (
	EquipmentGoniometer Equipment = "goniometer"
	EquipmentDetector   Equipment = "detector"
)

// Kind is the motion type of an axis.
type Kind string

const (
	KindRotation    Kind = "rotation"
	KindTranslation Kind = "translation"
)

var (
	// ErrPrimaryAxisCount reports a goniometer without exactly one axis at
	// the end of the dependency chain.
	ErrPrimaryAxisCount = errors.New("goniometer must have exactly one primary axis")
	// ErrPrimaryAxisTilt reports a primary axis with an out-of-plane
	// component too large for the canonical frame.
	ErrPrimaryAxisTilt = errors.New("primary axis has an unexpected z component")
	// ErrNoPerpendicularPanel reports a detector with no panel facing the
	// beam at two-theta zero.
	ErrNoPerpendicularPanel = errors.New("no panel is perpendicular to the beam at two-theta zero")
)

// Axis is one row of the imgCIF axis table plus its per-scan settings.
type Axis struct {
	ID        string
	DependsOn string
	Equipment Equipment
	Kind      Kind
	Direction geom.Vec
	Offset    geom.Vec
	Settings  []float64 // one per scan; degrees or mm depending on Kind
}

// PanelAxes holds the two surface axes of one detector panel together with
// the pixel layout they describe.
type PanelAxes struct {
	Fast       Axis
	Slow       Axis
	PixelSize  [2]float64
	Dimensions [2]int
	Element    int // 1-based panel number
}

// Catalog is the complete axis description of the experiment, in emission
// order: goniometer chain, detector axes, panel surface axes.
type Catalog struct {
	Goniometer []Axis
	Detector   []Axis
	Panels     []PanelAxes
}

// Build derives the full axis catalog from validated snapshots. All
// directions are normalized into the canonical frame and two-theta is
// split back out of the panel orientations.
func Build(snaps []instrument.Snapshot) (*Catalog, error) {
	gonio, err := GoniometerAxes(snaps)
	if err != nil {
		return nil, err
	}

	rot, err := FrameRotation(gonio)
	if err != nil {
		return nil, err
	}
	for i := range gonio {
		gonio[i].Direction = rot.Apply(gonio[i].Direction)
	}

	detector, err := DetectorAxes(snaps, rot)
	if err != nil {
		return nil, err
	}

	swing, err := twoTheta(snaps[0].Detector, rot)
	if err != nil {
		return nil, fmt.Errorf("scan 1: %w", err)
	}
	panels, err := PanelSurfaceAxes(snaps[0].Detector, rot, swing)
	if err != nil {
		return nil, err
	}

	return &Catalog{Goniometer: gonio, Detector: detector, Panels: panels}, nil
}
