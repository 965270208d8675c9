package axes

import (
	"fmt"
	"math"

	"github.com/COMCIFS/instrument-geometry-info/internal/geom"
	"github.com/COMCIFS/instrument-geometry-info/internal/instrument"
)

// beamFacing is the distance between a panel normal and the beam direction
// below which the detector is considered to sit at two-theta zero.
const beamFacing = 1e-4

// beamDirection is the canonical direction of travel of the beam.
var beamDirection = geom.Vec{0, 0, -1}

// swing is the detector two-theta state observed in one scan: the rotation
// angle away from the straight-through position and, when the angle is
// non-zero, the axis it swings about.
type swing struct {
	angle   float64
	axis    geom.Vec
	hasAxis bool
}

// DetectorAxes derives the detector positioning axes across all scans: a
// Two_Theta rotation when any scan swings the detector, and the Trans
// translation along the beam carrying the sample-to-detector distance.
func DetectorAxes(snaps []instrument.Snapshot, rot geom.Rotation) ([]Axis, error) {
	swings := make([]swing, len(snaps))
	for i, s := range snaps {
		sw, err := twoTheta(s.Detector, rot)
		if err != nil {
			return nil, fmt.Errorf("scan %d: %w", i+1, err)
		}
		swings[i] = sw
	}

	var axes []Axis
	angles := make([]float64, len(swings))
	hasSwing := false
	for i, sw := range swings {
		angles[i] = sw.angle
		if sw.hasAxis && !hasSwing {
			hasSwing = true
			axes = append(axes, Axis{
				ID:        TwoThetaAxis,
				DependsOn: NoAxis,
				Equipment: EquipmentDetector,
				Kind:      KindRotation,
				Direction: sw.axis,
				Settings:  angles,
			})
		}
	}

	pp, err := perpPanelIndex(snaps[0].Detector, rot)
	if err != nil {
		return nil, fmt.Errorf("scan 1: %w", err)
	}
	dists := make([]float64, len(snaps))
	for i, s := range snaps {
		if pp >= len(s.Detector.Panels) {
			return nil, fmt.Errorf("scan %d has no panel %d: %w",
				i+1, pp+1, instrument.ErrPanelSetMismatch)
		}
		d, err := distance(s.Detector.Panels[pp], rot)
		if err != nil {
			return nil, fmt.Errorf("scan %d: %w", i+1, err)
		}
		dists[i] = d
	}

	transDepends := NoAxis
	if hasSwing {
		transDepends = TwoThetaAxis
	}
	axes = append(axes, Axis{
		ID:        TransAxis,
		DependsOn: transDepends,
		Equipment: EquipmentDetector,
		Kind:      KindTranslation,
		Direction: beamDirection,
		Settings:  dists,
	})
	return axes, nil
}

// twoTheta measures how far the detector is swung away from the beam. The
// panel normal is the fast x slow cross product, flipped to point away from
// the sample; a normal within beamFacing of the beam direction means no
// swing at all.
func twoTheta(det instrument.Detector, rot geom.Rotation) (swing, error) {
	pp, err := perpPanelIndex(det, rot)
	if err != nil {
		return swing{}, err
	}

	normal, err := panelNormal(det.Panels[pp], rot)
	if err != nil {
		return swing{}, err
	}
	if normal[2] > 0 { // pointing towards the sample
		normal = normal.Scale(-1)
	}
	if normal.Sub(beamDirection).Norm() < beamFacing {
		return swing{}, nil
	}

	r, err := geom.Align(normal, beamDirection)
	if err != nil {
		return swing{}, err
	}
	angle, axis, err := r.AngleAxis()
	if err != nil {
		return swing{}, err
	}
	return swing{angle: angle, axis: axis, hasAxis: true}, nil
}

// distance is the perpendicular distance from the sample to the panel
// plane.
func distance(panel instrument.Panel, rot geom.Rotation) (float64, error) {
	normal, err := panelNormal(panel, rot)
	if err != nil {
		return 0, err
	}
	return math.Abs(rot.Apply(panel.Origin).Dot(normal)), nil
}

// perpPanelIndex returns the first panel whose normal has no component
// along the base axis, so it can be brought to face the beam by a rotation
// about (1,0,0) alone.
func perpPanelIndex(det instrument.Detector, rot geom.Rotation) (int, error) {
	for i, p := range det.Panels {
		normal, err := panelNormal(p, rot)
		if err != nil {
			return 0, err
		}
		if math.Abs(normal[0]) <= beamFacing {
			return i, nil
		}
	}
	return 0, ErrNoPerpendicularPanel
}

func panelNormal(panel instrument.Panel, rot geom.Rotation) (geom.Vec, error) {
	n, err := rot.Apply(panel.Fast).Cross(rot.Apply(panel.Slow)).Unit()
	if err != nil {
		return geom.Vec{}, fmt.Errorf("panel %s normal: %w", panel.Name, err)
	}
	return n, nil
}
