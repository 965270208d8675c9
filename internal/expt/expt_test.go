package expt

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/COMCIFS/instrument-geometry-info/internal/geom"
	"github.com/COMCIFS/instrument-geometry-info/internal/instrument"
)

const multiAxisJSON = `{
  "__id__": "ExperimentList",
  "experiment": [
    {"__id__": "Experiment", "beam": 0, "detector": 0, "goniometer": 0, "scan": 0, "imageset": 0},
    {"__id__": "Experiment", "beam": 0, "detector": 0, "goniometer": 1, "scan": 1, "imageset": 1}
  ],
  "imageset": [
    {"__id__": "ImageSequence", "template": "/data/ins1/ins1_01_####.cbf"},
    {"__id__": "ImageSequence", "template": "/data/ins1/ins1_02_####.cbf"}
  ],
  "beam": [{"direction": [0.0, 0.0, 1.0], "wavelength": 0.97949}],
  "detector": [{"panels": [{
    "name": "Pilatus6M",
    "type": "SENSOR_PAD",
    "fast_axis": [1.0, 0.0, 0.0],
    "slow_axis": [0.0, -1.0, 0.0],
    "origin": [-211.8, 217.9, -190.1],
    "pixel_size": [0.172, 0.172],
    "image_size": [2463, 2527],
    "trusted_range": [-1.0, 1048500.0]
  }]}],
  "goniometer": [
    {"axes": [[1.0, 0.0, 0.0], [0.0, 0.0, -1.0], [1.0, 0.0, 0.0]],
     "angles": [0.0, 0.0, 0.0],
     "names": ["GON_PHI", "GON_CHI", "GON_OMEGA"],
     "scan_axis": 2},
    {"axes": [[1.0, 0.0, 0.0], [0.0, 0.0, -1.0], [1.0, 0.0, 0.0]],
     "angles": [0.0, 45.0, 0.0],
     "names": ["GON_PHI", "GON_CHI", "GON_OMEGA"],
     "scan_axis": 2}
  ],
  "scan": [
    {"image_range": [1, 3], "oscillation": [-45.0, 1.0], "exposure_time": [0.1, 0.1, 0.1]},
    {"image_range": [1, 2], "oscillation": [0.0, 0.5], "exposure_time": [0.2]}
  ]
}`

const singleAxisJSON = `{
  "__id__": "ExperimentList",
  "experiment": [
    {"__id__": "Experiment", "beam": 0, "detector": 0, "goniometer": 0, "scan": 0, "imageset": 0}
  ],
  "imageset": [{"__id__": "ImageSequence", "template": "/data/xtal/xtal_####.cbf"}],
  "beam": [{"wavelength": 1.54056}],
  "detector": [{"panels": [{
    "name": "ADSC",
    "fast_axis": [1.0, 0.0, 0.0],
    "slow_axis": [0.0, -1.0, 0.0],
    "origin": [-105.0, 107.0, -120.0],
    "pixel_size": [0.105, 0.105],
    "image_size": [2048, 2048]
  }]}],
  "goniometer": [{"rotation_axis": [0.0, 1.0, 0.0], "fixed_rotation": [1, 0, 0, 0, 1, 0, 0, 0, 1]}],
  "scan": [{"image_range": [1, 90], "oscillation": [0.0, 1.0], "exposure_time": []}]
}`

func writeExpt(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "imported.expt")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestLoadMultiAxis(t *testing.T) {
	snaps, err := Load(writeExpt(t, multiAxisJSON), Options{})
	require.NoError(t, err)
	require.Len(t, snaps, 2)

	gon, ok := snaps[0].Goniometer.(instrument.MultiAxisGoniometer)
	require.True(t, ok, "expected a multi-axis goniometer, got %T", snaps[0].Goniometer)
	assert.Equal(t, []string{"GON_PHI", "GON_CHI", "GON_OMEGA"}, gon.Names)
	assert.Equal(t, []geom.Vec{{1, 0, 0}, {0, 0, -1}, {1, 0, 0}}, gon.Axes)
	assert.Equal(t, 2, gon.ScanAxis)

	second, ok := snaps[1].Goniometer.(instrument.MultiAxisGoniometer)
	require.True(t, ok)
	assert.Equal(t, []float64{0, 45, 0}, second.Angles)

	require.Len(t, snaps[0].Detector.Panels, 1)
	panel := snaps[0].Detector.Panels[0]
	assert.Equal(t, "Pilatus6M", panel.Name)
	assert.Equal(t, geom.Vec{1, 0, 0}, panel.Fast)
	assert.Equal(t, geom.Vec{0, -1, 0}, panel.Slow)
	assert.Equal(t, geom.Vec{-211.8, 217.9, -190.1}, panel.Origin)
	assert.Equal(t, [2]float64{0.172, 0.172}, panel.PixelSize)
	assert.Equal(t, [2]int{2463, 2527}, panel.ImageSize)

	assert.Equal(t, 0.97949, snaps[0].Beam.Wavelength)
	assert.Equal(t, -45.0, snaps[0].Scan.Start)
	assert.Equal(t, 1.0, snaps[0].Scan.Step)
	assert.Equal(t, []float64{0.1, 0.1, 0.1}, snaps[0].Scan.ExposureTimes)
	assert.Equal(t, "/data/ins1/ins1_01_####.cbf", snaps[0].Template)

	// A single exposure time is broadcast to every frame.
	assert.Equal(t, []float64{0.2, 0.2}, snaps[1].Scan.ExposureTimes)
	assert.Equal(t, "/data/ins1/ins1_02_####.cbf", snaps[1].Template)
}

func TestLoadSingleAxis(t *testing.T) {
	snaps, err := Load(writeExpt(t, singleAxisJSON), Options{})
	require.NoError(t, err)
	require.Len(t, snaps, 1)

	gon, ok := snaps[0].Goniometer.(instrument.SingleAxisGoniometer)
	require.True(t, ok, "expected a single-axis goniometer, got %T", snaps[0].Goniometer)
	assert.Equal(t, geom.Vec{0, 1, 0}, gon.RotationAxis)

	// An absent exposure time list yields one zero per frame.
	assert.Len(t, snaps[0].Scan.ExposureTimes, 90)
	assert.Equal(t, 0.0, snaps[0].Scan.ExposureTimes[89])
}

func TestLoadErrors(t *testing.T) {
	valid := func() map[string]string {
		return map[string]string{
			"experiment": `[{"beam": 0, "detector": 0, "goniometer": 0, "scan": 0, "imageset": 0}]`,
			"imageset":   `[{"template": "/data/x_###.cbf"}]`,
			"beam":       `[{"wavelength": 1.0}]`,
			"detector":   `[{"panels": [{"name": "P", "fast_axis": [1,0,0], "slow_axis": [0,-1,0], "origin": [-1,1,-2], "pixel_size": [0.1,0.1], "image_size": [10,10]}]}]`,
			"goniometer": `[{"rotation_axis": [0,1,0]}]`,
			"scan":       `[{"image_range": [1,5], "oscillation": [0,1], "exposure_time": [0.1,0.1,0.1,0.1,0.1]}]`,
		}
	}
	render := func(parts map[string]string) string {
		doc := "{"
		for _, key := range []string{"experiment", "imageset", "beam", "detector", "goniometer", "scan"} {
			doc += fmt.Sprintf("%q: %s,", key, parts[key])
		}
		return doc[:len(doc)-1] + "}"
	}

	tests := []struct {
		name    string
		mutate  func(map[string]string)
		message string
	}{
		{
			name:    "beam index out of range",
			mutate:  func(p map[string]string) { p["experiment"] = `[{"beam": 3, "detector": 0, "goniometer": 0, "scan": 0, "imageset": 0}]` },
			message: "beam index 3 out of range",
		},
		{
			name:    "missing scan reference",
			mutate:  func(p map[string]string) { p["experiment"] = `[{"beam": 0, "detector": 0, "goniometer": 0, "imageset": 0}]` },
			message: "no scan reference",
		},
		{
			name:    "no experiments",
			mutate:  func(p map[string]string) { p["experiment"] = `[]` },
			message: "no experiment entries",
		},
		{
			name:    "goniometer without axes",
			mutate:  func(p map[string]string) { p["goniometer"] = `[{}]` },
			message: "neither axis names nor a rotation axis",
		},
		{
			name:    "goniometer length mismatch",
			mutate:  func(p map[string]string) { p["goniometer"] = `[{"names": ["a", "b"], "axes": [[1,0,0]], "angles": [0, 0], "scan_axis": 0}]` },
			message: "2 names, 1 axes and 2 angles",
		},
		{
			name:    "scan axis out of range",
			mutate:  func(p map[string]string) { p["goniometer"] = `[{"names": ["a"], "axes": [[1,0,0]], "angles": [0], "scan_axis": 4}]` },
			message: "scan axis 4 out of range",
		},
		{
			name:    "detector without panels",
			mutate:  func(p map[string]string) { p["detector"] = `[{"panels": []}]` },
			message: "detector has no panels",
		},
		{
			name:    "empty image range",
			mutate:  func(p map[string]string) { p["scan"] = `[{"image_range": [5,1], "oscillation": [0,1], "exposure_time": []}]` },
			message: "image range 5..1 is empty",
		},
		{
			name:    "exposure count mismatch",
			mutate:  func(p map[string]string) { p["scan"] = `[{"image_range": [1,5], "oscillation": [0,1], "exposure_time": [0.1, 0.1]}]` },
			message: "2 exposure times for 5 frames",
		},
		{
			name:    "zero wavelength",
			mutate:  func(p map[string]string) { p["beam"] = `[{"wavelength": 0}]` },
			message: "wavelength 0 is not positive",
		},
		{
			name:    "empty template",
			mutate:  func(p map[string]string) { p["imageset"] = `[{"template": ""}]` },
			message: "imageset has no template",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			parts := valid()
			tc.mutate(parts)
			snaps, err := Load(writeExpt(t, render(parts)), Options{})
			require.ErrorIs(t, err, ErrParse)
			assert.ErrorContains(t, err, tc.message)
			assert.Nil(t, snaps)
		})
	}
}

func TestLoadBadJSON(t *testing.T) {
	_, err := Load(writeExpt(t, `{"experiment": [`), Options{})
	require.ErrorIs(t, err, ErrParse)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.expt"), Options{})
	require.Error(t, err)
	assert.ErrorContains(t, err, "reading experiment description")
}

func TestLoadCheckFormat(t *testing.T) {
	dir := t.TempDir()
	doc := fmt.Sprintf(`{
	  "experiment": [{"beam": 0, "detector": 0, "goniometer": 0, "scan": 0, "imageset": 0}],
	  "imageset": [{"template": %q}],
	  "beam": [{"wavelength": 1.0}],
	  "detector": [{"panels": [{"name": "P", "fast_axis": [1,0,0], "slow_axis": [0,-1,0], "origin": [-1,1,-2], "pixel_size": [0.1,0.1], "image_size": [10,10]}]}],
	  "goniometer": [{"rotation_axis": [0,1,0]}],
	  "scan": [{"image_range": [1,5], "oscillation": [0,1], "exposure_time": []}]
	}`, filepath.Join(dir, "x_###.cbf"))

	for _, name := range []string{"x_001.cbf", "x_005.cbf"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte{0}, 0o644))
	}

	snaps, err := Load(writeExpt(t, doc), Options{CheckFormat: true})
	require.NoError(t, err)
	assert.Len(t, snaps, 1)

	require.NoError(t, os.Remove(filepath.Join(dir, "x_005.cbf")))
	_, err = Load(writeExpt(t, doc), Options{CheckFormat: true})
	require.ErrorIs(t, err, ErrMissingImages)
	assert.ErrorContains(t, err, "x_005.cbf")
}
