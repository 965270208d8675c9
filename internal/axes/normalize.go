package axes

import (
	"fmt"
	"math"

	"github.com/COMCIFS/instrument-geometry-info/internal/geom"
	"github.com/COMCIFS/instrument-geometry-info/internal/instrument"
	"github.com/COMCIFS/instrument-geometry-info/internal/monitoring"
)

// baseAxisTilt is the largest out-of-plane (z) component tolerated on the
// goniometer base axis before alignment is refused.
const baseAxisTilt = 1e-4

// canonicalBase is where the goniometer base axis points after alignment.
var canonicalBase = geom.Vec{1, 0, 0}

// GoniometerAxes extracts the goniometer chain in axis order. Directions
// come from the first scan; settings are collected across all scans. Each
// axis depends on the next one in the list, the last depends on nothing.
// A single unnamed rotation axis becomes the conventional Omega.
func GoniometerAxes(snaps []instrument.Snapshot) ([]Axis, error) {
	switch g := snaps[0].Goniometer.(type) {
	case instrument.MultiAxisGoniometer:
		if len(g.Axes) != len(g.Names) {
			return nil, fmt.Errorf("goniometer has %d axes for %d names: %w",
				len(g.Axes), len(g.Names), instrument.ErrAxisSetMismatch)
		}
		axes := make([]Axis, 0, len(g.Names))
		for i, name := range g.Names {
			settings := make([]float64, len(snaps))
			for j, s := range snaps {
				sg, ok := s.Goniometer.(instrument.MultiAxisGoniometer)
				if !ok || len(sg.Angles) != len(g.Names) {
					return nil, fmt.Errorf("scan %d goniometer settings do not cover %d axes: %w",
						j+1, len(g.Names), instrument.ErrAxisSetMismatch)
				}
				settings[j] = sg.Angles[i]
			}
			next := NoAxis
			if i < len(g.Names)-1 {
				next = g.Names[i+1]
			}
			axes = append(axes, Axis{
				ID:        name,
				DependsOn: next,
				Equipment: EquipmentGoniometer,
				Kind:      KindRotation,
				Direction: g.Axes[i],
				Settings:  settings,
			})
		}
		return axes, nil
	case instrument.SingleAxisGoniometer:
		return []Axis{{
			ID:        instrument.DefaultAxisName,
			DependsOn: NoAxis,
			Equipment: EquipmentGoniometer,
			Kind:      KindRotation,
			Direction: g.RotationAxis,
			Settings:  make([]float64, len(snaps)),
		}}, nil
	default:
		return nil, fmt.Errorf("unknown goniometer type %T", snaps[0].Goniometer)
	}
}

// FrameRotation finds the goniometer base axis and returns the minimal
// rotation that takes it onto the canonical (1,0,0) direction. The base
// axis is the single axis that depends on nothing; it must already lie in
// the horizontal plane.
func FrameRotation(gonio []Axis) (geom.Rotation, error) {
	var primaries []Axis
	for _, ax := range gonio {
		if ax.DependsOn == NoAxis {
			primaries = append(primaries, ax)
		}
	}
	if len(primaries) != 1 {
		return geom.Rotation{}, fmt.Errorf("%d primary goniometer axes: %w",
			len(primaries), ErrPrimaryAxisCount)
	}

	base := primaries[0]
	unit, err := base.Direction.Unit()
	if err != nil {
		return geom.Rotation{}, fmt.Errorf("axis %s: %w", base.ID, err)
	}
	if math.Abs(unit[2]) > baseAxisTilt {
		return geom.Rotation{}, fmt.Errorf("axis %s direction %v: %w",
			base.ID, base.Direction, ErrPrimaryAxisTilt)
	}

	if unit.Sub(canonicalBase).Norm() >= geom.ParallelTolerance {
		monitoring.Logf("aligning base axis %s %v onto %v", base.ID, base.Direction, canonicalBase)
	}
	rot, err := geom.Align(base.Direction, canonicalBase)
	if err != nil {
		return geom.Rotation{}, fmt.Errorf("axis %s: %w", base.ID, err)
	}
	return rot, nil
}
