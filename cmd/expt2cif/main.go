// Command expt2cif converts a DIALS experiment description (.expt file)
// into an imgCIF metadata block: instrument geometry as an axis table,
// scan and frame enumeration, and pointers to the published image data.
package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/COMCIFS/instrument-geometry-info/internal/convert"
	"github.com/COMCIFS/instrument-geometry-info/internal/expt"
	"github.com/COMCIFS/instrument-geometry-info/internal/extdata"
	"github.com/COMCIFS/instrument-geometry-info/internal/monitoring"
	"github.com/COMCIFS/instrument-geometry-info/internal/runlog"
	"github.com/COMCIFS/instrument-geometry-info/internal/version"
)

// urlList collects repeated flag values.
type urlList []string

func (l *urlList) String() string { return strings.Join(*l, ",") }
func (l *urlList) Set(v string) error {
	v = strings.TrimSpace(v)
	if v != "" {
		*l = append(*l, v)
	}
	return nil
}

func main() {
	var archiveURLs, baseURLs urlList

	output := flag.String("o", "exptinfo.cif", "output file (\".cif\" is appended when missing)")
	flag.Var(&archiveURLs, "url", "archive download URL (repeatable: one, or one per scan)")
	flag.Var(&baseURLs, "url-base", "per-file download base URL (repeatable: one, or one per scan)")
	dir := flag.String("dir", "", "local directory matching the unpacked archive or URL base")
	format := flag.String("f", "", "image format override (CBF, SMV, HDF5, TIFF)")
	archiveType := flag.String("z", "", "archive type override (TGZ, TBZ, TXZ, ZIP)")
	overload := flag.String("overload-value", "", "saturation value for _array_intensities.overload")
	frameLimit := flag.Int("frames-limit", 0, "cap frames per scan for preview output (0 = all)")
	doi := flag.String("doi", "", "dataset DOI (overrides repository inference)")
	dataName := flag.String("data-name", "", "CIF data block name (default: output file stem)")
	noCheck := flag.Bool("no-check-format", false, "skip checking that referenced image files exist")
	manifest := flag.String("hdf5-manifest", "", "dataset manifest for HDF5 masters (default: <master>.datasets.json)")
	runlogPath := flag.String("runlog", "", "record this conversion in the given run-catalog database")
	quiet := flag.Bool("quiet", false, "suppress diagnostic output")
	showVersion := flag.Bool("version", false, "print version and exit")

	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: expt2cif [flags] <input.expt>")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("expt2cif %s (commit %s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	if *quiet {
		monitoring.SetLogger(nil)
	}

	input := flag.Arg(0)
	outPath := outputPath(*output)
	name := *dataName
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(outPath), ".cif")
	}

	locations, err := buildLocations(archiveURLs, baseURLs)
	if err != nil {
		log.Fatalf("expt2cif: %v", err)
	}

	opts := convert.Options{
		DataName:      name,
		Locations:     locations,
		Format:        extdata.Format(strings.ToUpper(*format)),
		ArchiveType:   extdata.ArchiveType(strings.ToUpper(*archiveType)),
		Root:          *dir,
		OverloadValue: *overload,
		DOI:           *doi,
		FrameLimit:    *frameLimit,
		Index:         extdata.ManifestIndex{Path: *manifest},
	}

	started := time.Now()
	summary, err := convertFile(input, outPath, expt.Options{CheckFormat: !*noCheck}, opts)
	finished := time.Now()

	if *runlogPath != "" {
		run := &runlog.Run{
			InputPath:  input,
			OutputPath: outPath,
			DataName:   name,
			DOI:        summary.DOI,
			Scans:      summary.Scans,
			Frames:     summary.Frames,
			Status:     runlog.StatusOK,
			StartedAt:  started.UnixNano(),
			FinishedAt: finished.UnixNano(),
		}
		if err != nil {
			run.Status = runlog.StatusError
			run.Detail = err.Error()
		}
		recordRun(*runlogPath, run)
	}

	if err != nil {
		log.Fatalf("expt2cif: %v", err)
	}
	monitoring.Logf("wrote %s: %d scan(s), %d frame(s), %d elided",
		outPath, summary.Scans, summary.Frames, summary.Elided)
}

// outputPath normalizes -o values so the result always carries the .cif
// suffix.
func outputPath(name string) string {
	if !strings.HasSuffix(name, ".cif") {
		name += ".cif"
	}
	return name
}

// buildLocations maps the URL flags onto download locations. With no URL
// flags at all the image URIs become placeholders.
func buildLocations(archives, bases urlList) ([]extdata.Location, error) {
	if len(archives) > 0 && len(bases) > 0 {
		return nil, errors.New("-url and -url-base are mutually exclusive")
	}
	switch {
	case len(archives) > 0:
		locs := make([]extdata.Location, len(archives))
		for i, u := range archives {
			locs[i] = extdata.Archive{URL: u}
		}
		return locs, nil
	case len(bases) > 0:
		locs := make([]extdata.Location, len(bases))
		for i, u := range bases {
			locs[i] = extdata.Directory{BaseURL: u}
		}
		return locs, nil
	default:
		monitoring.Logf("no -url or -url-base given; image URIs will be placeholders")
		return []extdata.Location{extdata.Placeholder{}}, nil
	}
}

// convertFile renders the whole CIF in memory first, so a failed
// conversion never leaves a partial output file behind.
func convertFile(input, output string, loadOpts expt.Options, opts convert.Options) (convert.Summary, error) {
	snaps, err := expt.Load(input, loadOpts)
	if err != nil {
		return convert.Summary{}, err
	}
	var buf bytes.Buffer
	summary, err := convert.Convert(&buf, snaps, opts)
	if err != nil {
		return convert.Summary{}, err
	}
	if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil {
		return convert.Summary{}, fmt.Errorf("write %s: %w", output, err)
	}
	return summary, nil
}

// recordRun appends one row to the run catalog. A broken catalog must not
// fail the conversion, so problems are only logged.
func recordRun(path string, run *runlog.Run) {
	store, err := runlog.Open(path)
	if err != nil {
		monitoring.Logf("run log unavailable: %v", err)
		return
	}
	defer store.Close()
	if err := store.RecordRun(run); err != nil {
		monitoring.Logf("record run: %v", err)
	}
}
