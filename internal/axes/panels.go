package axes

import (
	"fmt"

	"github.com/COMCIFS/instrument-geometry-info/internal/geom"
	"github.com/COMCIFS/instrument-geometry-info/internal/instrument"
)

// panelRound is the decimal precision of emitted panel vectors.
const panelRound = 3

// PanelSurfaceAxes derives the fast/slow surface axes of every panel at
// two-theta zero. When the detector is swung, panel vectors are rotated
// back by the forward two-theta rotation so the table always describes the
// straight-through geometry. The fast axis carries the panel origin as its
// offset, with the z component dropped because the sample-to-detector
// distance is carried by Trans.
func PanelSurfaceAxes(det instrument.Detector, rot geom.Rotation, sw swing) ([]PanelAxes, error) {
	var unswing geom.Rotation
	if sw.hasAxis {
		var err error
		unswing, err = geom.FromAngleAxis(sw.angle, sw.axis)
		if err != nil {
			return nil, fmt.Errorf("two-theta rotation: %w", err)
		}
	}

	panels := make([]PanelAxes, 0, len(det.Panels))
	for i, p := range det.Panels {
		fast := rot.Apply(p.Fast)
		slow := rot.Apply(p.Slow)
		origin := rot.Apply(p.Origin)
		if sw.hasAxis {
			fast = unswing.Apply(fast)
			slow = unswing.Apply(slow)
			origin = unswing.Apply(origin)
		}
		fast = fast.Round(panelRound)
		slow = slow.Round(panelRound)
		origin = origin.Round(panelRound)
		origin[2] = 0

		n := i + 1
		fastID := fmt.Sprintf("ele%d_x", n)
		panels = append(panels, PanelAxes{
			Fast: Axis{
				ID:        fastID,
				DependsOn: TransAxis,
				Equipment: EquipmentDetector,
				Kind:      KindTranslation,
				Direction: fast,
				Offset:    origin,
			},
			Slow: Axis{
				ID:        fmt.Sprintf("ele%d_y", n),
				DependsOn: fastID,
				Equipment: EquipmentDetector,
				Kind:      KindTranslation,
				Direction: slow,
			},
			PixelSize:  p.PixelSize,
			Dimensions: p.ImageSize,
			Element:    n,
		})
	}
	return panels, nil
}
