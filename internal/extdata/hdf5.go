package extdata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Dataset is one image block reachable from an HDF5 master file: the link
// name under /entry/data, the physical file it lives in (external links
// already resolved against the master's directory) and its frame count.
type Dataset struct {
	Name       string
	FilePath   string
	ObjectPath string
	Frames     int
}

// MasterIndex enumerates the datasets of an HDF5 master file. The
// converter never opens HDF5 containers itself; structure arrives through
// this interface.
type MasterIndex interface {
	Datasets(masterPath string) ([]Dataset, error)
}

// ManifestIndex is the file-based MasterIndex: beamline tooling writes a
// JSON manifest next to the master listing its data blocks.
//
// The manifest layout is
//
//	{"datasets": [
//	  {"name": "data_000001", "file": "run_data_000001.h5",
//	   "path": "/entry/data/data_000001", "frames": 1000}
//	]}
//
// with file paths relative to the master's directory.
type ManifestIndex struct {
	Path string // explicit manifest path; empty means <master>.datasets.json
}

type manifestEntry struct {
	Name   string `json:"name"`
	File   string `json:"file"`
	Path   string `json:"path"`
	Frames int    `json:"frames"`
}

// Datasets reads the manifest for masterPath.
func (m ManifestIndex) Datasets(masterPath string) ([]Dataset, error) {
	manifestPath := m.Path
	if manifestPath == "" {
		manifestPath = masterPath + ".datasets.json"
	}

	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("read dataset manifest: %w", err)
	}
	var manifest struct {
		Datasets []manifestEntry `json:"datasets"`
	}
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return nil, fmt.Errorf("parse dataset manifest %s: %w", manifestPath, err)
	}

	base := filepath.Dir(masterPath)
	out := make([]Dataset, 0, len(manifest.Datasets))
	for _, e := range manifest.Datasets {
		file := e.File
		if file == "" {
			file = filepath.Base(masterPath)
		}
		if !filepath.IsAbs(file) {
			file = filepath.Join(base, file)
		}
		out = append(out, Dataset{
			Name:       e.Name,
			FilePath:   file,
			ObjectPath: e.Path,
			Frames:     e.Frames,
		})
	}
	return out, nil
}
