// Package convert renders instrument snapshots as an imgCIF data block:
// radiation, the axis table, the detector array layout, per-scan axis
// settings, frame numbering and the links to the external image data.
package convert

import (
	"fmt"
	"io"

	"github.com/COMCIFS/instrument-geometry-info/internal/axes"
	"github.com/COMCIFS/instrument-geometry-info/internal/cif"
	"github.com/COMCIFS/instrument-geometry-info/internal/extdata"
	"github.com/COMCIFS/instrument-geometry-info/internal/frames"
	"github.com/COMCIFS/instrument-geometry-info/internal/instrument"
	"github.com/COMCIFS/instrument-geometry-info/internal/version"
)

// Options configure one conversion.
type Options struct {
	// DataName names the output data block.
	DataName string
	// Locations states where the image files are published: one entry
	// broadcast to all scans, or one entry per scan.
	Locations []extdata.Location
	// Format overrides image file type guessing.
	Format extdata.Format
	// ArchiveType overrides archive type guessing.
	ArchiveType extdata.ArchiveType
	// Root is the local directory the image templates are resolved
	// against when building relative paths.
	Root string
	// OverloadValue, when non-empty, is emitted verbatim as
	// _array_intensities.overload.
	OverloadValue string
	// DOI, when non-empty, is emitted as _database.dataset_doi. When
	// empty it is inferred from download URLs that follow a known
	// repository pattern.
	DOI string
	// FrameLimit caps the per-scan frame count for preview output.
	// Zero means no limit.
	FrameLimit int
	// Index resolves HDF5 master files into their data files.
	Index extdata.MasterIndex
}

// Summary reports what a conversion produced.
type Summary struct {
	DataName string
	DOI      string
	Scans    int
	Frames   int
	Elided   int
}

// Convert writes the imgCIF rendition of snaps to w. Every section is
// derived before the first byte is written, so a failed conversion leaves
// no partial output.
func Convert(w io.Writer, snaps []instrument.Snapshot, opts Options) (Summary, error) {
	if err := instrument.Validate(snaps); err != nil {
		return Summary{}, err
	}
	records, err := instrument.ScanRecords(snaps)
	if err != nil {
		return Summary{}, err
	}
	catalog, err := axes.Build(snaps)
	if err != nil {
		return Summary{}, err
	}
	index := frames.BuildIndex(records, opts.FrameLimit)
	groups, err := extdata.Resolve(records, opts.Locations, extdata.Options{
		Format:      opts.Format,
		ArchiveType: opts.ArchiveType,
		Root:        opts.Root,
		Index:       opts.Index,
	})
	if err != nil {
		return Summary{}, err
	}

	doi := opts.DOI
	if doi == "" {
		doi = extdata.GuessDOI(opts.Locations)
	}

	out := &sectionWriter{w: w}
	out.header(opts.DataName)
	out.radiation(snaps[0].Beam.Wavelength, doi)
	out.axes(catalog)
	out.array(catalog, opts.OverloadValue)
	out.scanSettings(records, catalog)
	out.scans(index)
	out.frames(index)
	out.external(groups, index)
	if out.err != nil {
		return Summary{}, out.err
	}

	return Summary{
		DataName: opts.DataName,
		DOI:      doi,
		Scans:    len(records),
		Frames:   len(index.Frames),
		Elided:   index.Elided,
	}, nil
}

// sectionWriter emits the output sections in order and keeps the first
// write error.
type sectionWriter struct {
	w   io.Writer
	err error
}

func (s *sectionWriter) printf(format string, args ...any) {
	if s.err != nil {
		return
	}
	_, s.err = fmt.Fprintf(s.w, format, args...)
}

func (s *sectionWriter) loop(l *cif.Loop) {
	if s.err != nil {
		return
	}
	_, s.err = l.WriteTo(s.w)
}

func (s *sectionWriter) header(name string) {
	s.printf("#\\#CIF_2.0\n# CIF converted from DIALS .expt file\n# Conversion routine version %s\ndata_%s\n",
		version.Version, name)
}

func (s *sectionWriter) radiation(wavelength float64, doi string) {
	s.printf("\n_diffrn_radiation_wavelength.id    1\n_diffrn_radiation_wavelength.value %s\n_diffrn_radiation.type             xray\n\n",
		cif.Float(wavelength))
	if doi != "" {
		s.printf("_database.dataset_doi              %s\n\n", doi)
	}
}

func (s *sectionWriter) axes(cat *axes.Catalog) {
	loop := cif.NewLoop("_axis",
		"id", "depends_on", "equipment", "type",
		"vector[1]", "vector[2]", "vector[3]", "offset[1]", "offset[2]", "offset[3]")
	for _, ax := range cat.Goniometer {
		addAxisRow(loop, ax)
	}
	for _, ax := range cat.Detector {
		addAxisRow(loop, ax)
	}
	for _, p := range cat.Panels {
		addAxisRow(loop, p.Fast)
		addAxisRow(loop, p.Slow)
	}
	s.loop(loop)
}

func addAxisRow(loop *cif.Loop, ax axes.Axis) {
	dir := ax.Direction.Round(8)
	loop.Add(ax.ID, ax.DependsOn, string(ax.Equipment), string(ax.Kind),
		cif.Float(dir[0]), cif.Float(dir[1]), cif.Float(dir[2]),
		cif.Float(ax.Offset[0]), cif.Float(ax.Offset[1]), cif.Float(ax.Offset[2]))
}

func (s *sectionWriter) array(cat *axes.Catalog, overload string) {
	s.printf("_diffrn_detector.id        DETECTOR\n_diffrn_detector.diffrn_id DIFFRN\n\n")

	elements := cif.NewLoop("_diffrn_detector_element", "id", "detector_id")
	for _, p := range cat.Panels {
		elements.Add(fmt.Sprintf("ELEMENT%d", p.Element), "DETECTOR")
	}
	s.loop(elements)

	detAxes := cif.NewLoop("_diffrn_detector_axis", "detector_id", "axis_id")
	for _, ax := range cat.Detector {
		detAxes.Add("DETECTOR", ax.ID)
	}
	s.loop(detAxes)

	setAxes := cif.NewLoop("_array_structure_list_axis",
		"axis_id", "axis_set_id", "displacement", "displacement_increment")
	structure := cif.NewLoop("_array_structure_list",
		"array_id", "axis_set_id", "direction", "index", "precedence", "dimension")
	set := 1
	for _, p := range cat.Panels {
		for prec, ax := range []axes.Axis{p.Fast, p.Slow} {
			pix := p.PixelSize[prec]
			setAxes.Add(ax.ID, cif.Int(set), cif.Float(pix/2), cif.Float(pix))
			structure.Add("IMAGE", cif.Int(set), "increasing",
				cif.Int(prec+1), cif.Int(prec+1), cif.Int(p.Dimensions[prec]))
			set++
		}
	}
	s.loop(setAxes)
	s.loop(structure)

	if overload != "" {
		s.printf("_array_intensities.overload    %s\n\n", overload)
	}
}

func (s *sectionWriter) scanSettings(records []instrument.ScanRecord, cat *axes.Catalog) {
	loop := cif.NewLoop("_diffrn_scan_axis",
		"scan_id", "axis_id", "displacement_start", "displacement_increment",
		"displacement_range", "angle_start", "angle_increment", "angle_range")

	zero := cif.Float2(0)
	for i, rec := range records {
		id := frames.ScanID(i)
		for _, ax := range cat.Goniometer {
			if ax.ID == rec.ScanAxis {
				loop.Add(id, ax.ID, ".", ".", ".",
					cif.Float2(rec.Start), cif.Float2(rec.Step), cif.Float2(rec.Range))
			} else {
				loop.Add(id, ax.ID, ".", ".", ".",
					cif.Float2(ax.Settings[i]), zero, zero)
			}
		}
		for _, ax := range cat.Detector {
			if ax.Kind == axes.KindTranslation {
				loop.Add(id, ax.ID, cif.Float2(ax.Settings[i]), zero, zero, ".", ".", ".")
			} else {
				loop.Add(id, ax.ID, ".", ".", ".", cif.Float2(ax.Settings[i]), zero, zero)
			}
		}
	}
	s.loop(loop)
}

func (s *sectionWriter) scans(index frames.Index) {
	loop := cif.NewLoop("_diffrn_scan", "id", "frame_id_start", "frame_id_end", "frames")
	for _, r := range index.Ranges {
		loop.Add(r.ScanID, frames.FrameID(r.FirstFrame), frames.FrameID(r.LastFrame), cif.Int(r.Count))
	}
	s.loop(loop)
}

func (s *sectionWriter) frames(index frames.Index) {
	scanFrames := cif.NewLoop("_diffrn_scan_frame",
		"frame_id", "scan_id", "frame_number", "integration_time")
	for _, f := range index.Frames {
		scanFrames.Add(frames.FrameID(f.ID), f.ScanID, cif.Int(f.Number), cif.Float(f.Exposure))
	}
	s.truncated(scanFrames, index)
	s.loop(scanFrames)

	dataFrames := cif.NewLoop("_diffrn_data_frame",
		"id", "detector_element_id", "array_id", "binary_id")
	for _, f := range index.Frames {
		dataFrames.Add(frames.FrameID(f.ID), "ELEMENT1", "IMAGE", cif.Int(f.ID))
	}
	s.truncated(dataFrames, index)
	s.loop(dataFrames)

	arrayData := cif.NewLoop("_array_data", "array_id", "binary_id", "external_data_id")
	for _, f := range index.Frames {
		arrayData.Add("IMAGE", cif.Int(f.ID), cif.Int(f.ID))
	}
	s.truncated(arrayData, index)
	s.loop(arrayData)
}

// external emits one row per frame per image source. Frame numbers restart
// for every source, so they index into the named file or archive member;
// external ids continue the global frame numbering.
func (s *sectionWriter) external(groups []extdata.Group, index frames.Index) {
	fields := []string{"id", "format", "uri"}
	first := groups[0]
	if first.ArchivePath != "" {
		fields = append(fields, "archive_format", "archive_path")
	}
	if first.Format == extdata.FormatHDF5 {
		fields = append(fields, "path", "frame")
	}
	loop := cif.NewLoop("_array_data_external_data", fields...)

	id := 1
	remaining := 0
	scan := -1
	for _, g := range groups {
		if g.Scan != scan {
			scan = g.Scan
			remaining = index.Ranges[scan].Count
		}
		n := g.NumFrames
		if n > remaining {
			n = remaining
		}
		remaining -= n
		for fr := 1; fr <= n; fr++ {
			row := []string{cif.Int(id), string(g.Format)}
			if g.URITemplate != "" {
				row = append(row, extdata.EncodeFrame(g.URITemplate, fr))
			} else {
				row = append(row, g.URI)
			}
			if g.ArchivePath != "" {
				row = append(row, string(g.ArchiveType), extdata.EncodeFrame(g.ArchivePath, fr))
			}
			if g.Format == extdata.FormatHDF5 {
				row = append(row, g.DatasetPath, cif.Int(fr))
			}
			loop.Add(row...)
			id++
		}
	}
	s.truncated(loop, index)
	s.loop(loop)
}

// truncated appends the preview marker to a frame-level loop when the
// frame limit dropped rows.
func (s *sectionWriter) truncated(loop *cif.Loop, index frames.Index) {
	if index.Elided > 0 {
		loop.Comment(fmt.Sprintf("# %d more frames not shown (preview limited to %d per scan)",
			index.Elided, index.Limit))
	}
}
