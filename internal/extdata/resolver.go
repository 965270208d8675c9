package extdata

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/COMCIFS/instrument-geometry-info/internal/instrument"
	"github.com/COMCIFS/instrument-geometry-info/internal/monitoring"
)

var (
	// ErrLocationCount reports a location list that is neither a single
	// broadcast value nor one entry per scan.
	ErrLocationCount = errors.New("need one location, or one per scan")
	// ErrMixedLocations reports location lists mixing retrieval modes.
	ErrMixedLocations = errors.New("external locations must be of uniform type")
	// ErrTemplateOutsideRoot reports an image template that cannot be
	// expressed relative to the configured local root.
	ErrTemplateOutsideRoot = errors.New("image template not under the local root")
	// ErrFrameCountMismatch reports HDF5 data files whose frames do not
	// add up to the scan's declared frame count.
	ErrFrameCountMismatch = errors.New("HDF5 frame total differs from scan frame count")
	// ErrNoMasterIndex reports an HDF5 scan without a configured master
	// index.
	ErrNoMasterIndex = errors.New("no HDF5 master index configured")
)

// Options configures resolution.
type Options struct {
	Format      Format      // explicit image format; empty to guess from the template
	ArchiveType ArchiveType // explicit archive container; empty to guess from the URL
	Root        string      // local directory equivalent of the archive or URL base
	Index       MasterIndex // dataset enumeration for HDF5 masters
}

// Group is one run of external-data rows sharing a source: a whole scan,
// or one data file of an HDF5 scan. Exactly one of URI and URITemplate is
// set outside placeholder mode; placeholders carry the CIF unknown value
// in URI.
type Group struct {
	Scan        int // 0-based scan index
	Format      Format
	NumFrames   int
	URI         string
	URITemplate string
	ArchiveType ArchiveType
	ArchivePath string // frame path template within the archive
	DatasetPath string // HDF5 object path
}

// dataBlockName matches the standard names of image data blocks under
// /entry/data in a master file.
var dataBlockName = regexp.MustCompile(`^data_\d+$`)

// Resolve pairs every scan with its retrieval location and expands HDF5
// scans into per-file groups. A single location is broadcast to all scans;
// otherwise the list is positional and must match the scan count.
func Resolve(records []instrument.ScanRecord, locs []Location, opts Options) ([]Group, error) {
	perScan, err := broadcast(locs, len(records))
	if err != nil {
		return nil, err
	}

	var groups []Group
	for i, rec := range records {
		format := opts.Format
		if format == "" {
			format = GuessFormat(filepath.Base(rec.Template))
		}

		if format == FormatHDF5 {
			fileGroups, err := resolveHDF5(i, rec, perScan[i], format, opts)
			if err != nil {
				return nil, fmt.Errorf("scan %d: %w", i+1, err)
			}
			groups = append(groups, fileGroups...)
			continue
		}

		g := Group{Scan: i, Format: format, NumFrames: rec.NumFrames}
		if err := fillSource(&g, perScan[i], rec.Template, opts); err != nil {
			return nil, fmt.Errorf("scan %d: %w", i+1, err)
		}
		groups = append(groups, g)
	}
	return groups, nil
}

func broadcast(locs []Location, scans int) ([]Location, error) {
	if len(locs) == 0 {
		return nil, fmt.Errorf("no locations given: %w", ErrLocationCount)
	}
	for _, loc := range locs[1:] {
		if locationKind(loc) != locationKind(locs[0]) {
			return nil, ErrMixedLocations
		}
	}
	switch len(locs) {
	case 1:
		out := make([]Location, scans)
		for i := range out {
			out[i] = locs[0]
		}
		return out, nil
	case scans:
		return locs, nil
	default:
		return nil, fmt.Errorf("%d locations for %d scans: %w", len(locs), scans, ErrLocationCount)
	}
}

func locationKind(loc Location) string {
	switch loc.(type) {
	case Archive:
		return "archive"
	case Directory:
		return "directory"
	case Placeholder:
		return "placeholder"
	default:
		return fmt.Sprintf("%T", loc)
	}
}

// fillSource sets the retrieval fields of g from its location. The path
// argument is the local file the group describes: the scan's frame
// template, or one HDF5 data file.
func fillSource(g *Group, loc Location, path string, opts Options) error {
	switch l := loc.(type) {
	case Directory:
		rel, err := relativeToRoot(path, opts.Root)
		if err != nil {
			return err
		}
		g.URITemplate = strings.TrimRight(l.BaseURL, "/") + "/" + rel
	case Archive:
		rel, err := relativeToRoot(path, opts.Root)
		if err != nil {
			return err
		}
		g.URI = l.URL
		g.ArchiveType = opts.ArchiveType
		if g.ArchiveType == "" {
			g.ArchiveType = GuessArchiveType(l.URL)
		}
		g.ArchivePath = rel
	case Placeholder:
		g.URI = "?"
	default:
		return fmt.Errorf("unknown location type %T", loc)
	}
	return nil
}

func resolveHDF5(scan int, rec instrument.ScanRecord, loc Location, format Format, opts Options) ([]Group, error) {
	if opts.Index == nil {
		return nil, fmt.Errorf("template %s: %w", rec.Template, ErrNoMasterIndex)
	}
	dsets, err := opts.Index.Datasets(rec.Template)
	if err != nil {
		return nil, err
	}

	kept := dsets[:0]
	for _, ds := range dsets {
		if dataBlockName.MatchString(ds.Name) {
			kept = append(kept, ds)
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].Name < kept[j].Name })

	groups := make([]Group, 0, len(kept))
	total := 0
	for _, ds := range kept {
		g := Group{Scan: scan, Format: format, NumFrames: ds.Frames, DatasetPath: ds.ObjectPath}
		if err := fillSource(&g, loc, ds.FilePath, opts); err != nil {
			return nil, err
		}
		total += ds.Frames
		groups = append(groups, g)
		monitoring.Logf("%d images in file %s", ds.Frames, ds.FilePath)
	}
	if total != rec.NumFrames {
		return nil, fmt.Errorf("%d frames in data files, scan declares %d: %w",
			total, rec.NumFrames, ErrFrameCountMismatch)
	}
	return groups, nil
}

func relativeToRoot(path, root string) (string, error) {
	if root == "" {
		return "", fmt.Errorf("no local root configured for %s: %w", path, ErrTemplateOutsideRoot)
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s relative to %s: %w", path, root, ErrTemplateOutsideRoot)
	}
	return filepath.ToSlash(rel), nil
}
