package extdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/COMCIFS/instrument-geometry-info/internal/instrument"
	"github.com/COMCIFS/instrument-geometry-info/internal/monitoring"
)

type stubIndex struct {
	datasets []Dataset
	err      error
}

func (s stubIndex) Datasets(string) ([]Dataset, error) {
	return s.datasets, s.err
}

func cbfRecord(template string, frames int) instrument.ScanRecord {
	return instrument.ScanRecord{Template: template, NumFrames: frames}
}

func TestResolveBroadcastsSingleLocation(t *testing.T) {
	records := []instrument.ScanRecord{
		cbfRecord("/data/exp/s01_####.cbf", 10),
		cbfRecord("/data/exp/s02_####.cbf", 20),
		cbfRecord("/data/exp/s03_####.cbf", 30),
	}
	groups, err := Resolve(records, []Location{Archive{URL: "https://example.com/all.tgz"}},
		Options{Root: "/data"})
	require.NoError(t, err)
	require.Len(t, groups, 3)

	for i, g := range groups {
		assert.Equal(t, i, g.Scan)
		assert.Equal(t, FormatCBF, g.Format)
		assert.Equal(t, "https://example.com/all.tgz", g.URI)
		assert.Equal(t, ArchiveTGZ, g.ArchiveType)
	}
	assert.Equal(t, "exp/s02_####.cbf", groups[1].ArchivePath)
	assert.Equal(t, 20, groups[1].NumFrames)
}

func TestResolvePositionalLocations(t *testing.T) {
	records := []instrument.ScanRecord{
		cbfRecord("/data/s01_####.cbf", 5),
		cbfRecord("/data/s02_####.cbf", 5),
	}
	locs := []Location{
		Archive{URL: "https://example.com/s01.tbz"},
		Archive{URL: "https://example.com/s02.tbz"},
	}
	groups, err := Resolve(records, locs, Options{Root: "/data"})
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "https://example.com/s01.tbz", groups[0].URI)
	assert.Equal(t, "https://example.com/s02.tbz", groups[1].URI)
	assert.Equal(t, ArchiveTBZ, groups[0].ArchiveType)
}

func TestResolveLocationCountMismatch(t *testing.T) {
	records := []instrument.ScanRecord{
		cbfRecord("/data/s01_####.cbf", 5),
		cbfRecord("/data/s02_####.cbf", 5),
		cbfRecord("/data/s03_####.cbf", 5),
	}
	locs := []Location{
		Archive{URL: "https://example.com/s01.tbz"},
		Archive{URL: "https://example.com/s02.tbz"},
	}
	_, err := Resolve(records, locs, Options{Root: "/data"})
	assert.ErrorIs(t, err, ErrLocationCount)

	_, err = Resolve(records, nil, Options{Root: "/data"})
	assert.ErrorIs(t, err, ErrLocationCount)
}

func TestResolveMixedLocationsRejected(t *testing.T) {
	records := []instrument.ScanRecord{
		cbfRecord("/data/s01_####.cbf", 5),
		cbfRecord("/data/s02_####.cbf", 5),
	}
	locs := []Location{
		Archive{URL: "https://example.com/s01.tbz"},
		Directory{BaseURL: "https://example.com/files"},
	}
	_, err := Resolve(records, locs, Options{Root: "/data"})
	assert.ErrorIs(t, err, ErrMixedLocations)
}

func TestResolveDirectoryMode(t *testing.T) {
	records := []instrument.ScanRecord{cbfRecord("/data/exp/s01_####.cbf", 5)}
	groups, err := Resolve(records, []Location{Directory{BaseURL: "https://example.com/files/"}},
		Options{Root: "/data"})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "https://example.com/files/exp/s01_####.cbf", groups[0].URITemplate)
	assert.Empty(t, groups[0].URI)
	assert.Empty(t, groups[0].ArchivePath)
}

func TestResolvePlaceholderMode(t *testing.T) {
	records := []instrument.ScanRecord{cbfRecord("/data/exp/s01_####.cbf", 5)}
	groups, err := Resolve(records, []Location{Placeholder{}}, Options{})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "?", groups[0].URI)
	assert.Equal(t, FormatCBF, groups[0].Format)
}

func TestResolveArchiveTypeOverride(t *testing.T) {
	records := []instrument.ScanRecord{cbfRecord("/data/s01_####.cbf", 5)}
	groups, err := Resolve(records, []Location{Archive{URL: "https://example.com/data"}},
		Options{Root: "/data", ArchiveType: ArchiveZIP})
	require.NoError(t, err)
	assert.Equal(t, ArchiveZIP, groups[0].ArchiveType)
}

func TestResolveTemplateOutsideRoot(t *testing.T) {
	records := []instrument.ScanRecord{cbfRecord("/elsewhere/s01_####.cbf", 5)}
	_, err := Resolve(records, []Location{Archive{URL: "https://example.com/a.tgz"}},
		Options{Root: "/data"})
	assert.ErrorIs(t, err, ErrTemplateOutsideRoot)

	_, err = Resolve(records, []Location{Archive{URL: "https://example.com/a.tgz"}}, Options{})
	assert.ErrorIs(t, err, ErrTemplateOutsideRoot)
}

func TestResolveHDF5SplitsPerFile(t *testing.T) {
	original := monitoring.Logf
	monitoring.SetLogger(nil)
	defer monitoring.SetLogger(original)

	index := stubIndex{datasets: []Dataset{
		// Deliberately unsorted, with a non-data entry to be filtered.
		{Name: "data_000002", FilePath: "/data/exp/d2.h5", ObjectPath: "/entry/data/data_000002", Frames: 600},
		{Name: "mesh", FilePath: "/data/exp/mesh.h5", ObjectPath: "/entry/data/mesh", Frames: 7},
		{Name: "data_000001", FilePath: "/data/exp/d1.h5", ObjectPath: "/entry/data/data_000001", Frames: 1000},
	}}
	records := []instrument.ScanRecord{cbfRecord("/data/exp/scan_master.h5", 1600)}

	groups, err := Resolve(records, []Location{Directory{BaseURL: "https://example.com/files"}},
		Options{Root: "/data", Index: index})
	require.NoError(t, err)
	require.Len(t, groups, 2)

	assert.Equal(t, "https://example.com/files/exp/d1.h5", groups[0].URITemplate)
	assert.Equal(t, 1000, groups[0].NumFrames)
	assert.Equal(t, "/entry/data/data_000001", groups[0].DatasetPath)
	assert.Equal(t, "https://example.com/files/exp/d2.h5", groups[1].URITemplate)
	assert.Equal(t, 600, groups[1].NumFrames)
}

func TestResolveHDF5FrameCountMismatch(t *testing.T) {
	original := monitoring.Logf
	monitoring.SetLogger(nil)
	defer monitoring.SetLogger(original)

	index := stubIndex{datasets: []Dataset{
		{Name: "data_000001", FilePath: "/data/d1.h5", ObjectPath: "/entry/data/data_000001", Frames: 1000},
		{Name: "data_000002", FilePath: "/data/d2.h5", ObjectPath: "/entry/data/data_000002", Frames: 600},
	}}
	records := []instrument.ScanRecord{cbfRecord("/data/scan_master.h5", 1601)}

	groups, err := Resolve(records, []Location{Placeholder{}}, Options{Index: index})
	assert.ErrorIs(t, err, ErrFrameCountMismatch)
	assert.Nil(t, groups)
}

func TestResolveHDF5NeedsIndex(t *testing.T) {
	records := []instrument.ScanRecord{cbfRecord("/data/scan_master.h5", 100)}
	_, err := Resolve(records, []Location{Placeholder{}}, Options{})
	assert.ErrorIs(t, err, ErrNoMasterIndex)
}
