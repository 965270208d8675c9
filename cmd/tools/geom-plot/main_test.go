package main

import (
	"testing"

	"github.com/COMCIFS/instrument-geometry-info/internal/axes"
	"github.com/COMCIFS/instrument-geometry-info/internal/geom"
)

func TestOutline(t *testing.T) {
	panel := axes.PanelAxes{
		Fast: axes.Axis{
			Direction: geom.Vec{1, 0, 0},
			Offset:    geom.Vec{-105, 107, 0},
		},
		Slow: axes.Axis{
			Direction: geom.Vec{0, -1, 0},
		},
		PixelSize:  [2]float64{0.1, 0.1},
		Dimensions: [2]int{2100, 2140},
		Element:    1,
	}

	pts := outline(panel)
	if len(pts) != 5 {
		t.Fatalf("expected a closed outline of 5 points, got %d", len(pts))
	}
	if pts[0] != pts[4] {
		t.Error("outline is not closed")
	}

	want := []struct{ x, y float64 }{
		{-105, 107},
		{105, 107},
		{105, -107},
		{-105, -107},
		{-105, 107},
	}
	for i, w := range want {
		if pts[i].X != w.x || pts[i].Y != w.y {
			t.Errorf("corner %d = (%g, %g), want (%g, %g)", i, pts[i].X, pts[i].Y, w.x, w.y)
		}
	}
}
