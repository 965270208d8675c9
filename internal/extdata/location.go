// Package extdata resolves where the frame images of each scan live
// (archives, per-file URLs or placeholders) into the row groups emitted
// as _array_data_external_data.
package extdata

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/COMCIFS/instrument-geometry-info/internal/monitoring"
)

// Format is an image file format name from the imgCIF dictionary. Unknown
// formats are emitted as the ??? sentinel.
type Format string

const (
	FormatCBF     Format = "CBF"
	FormatSMV     Format = "SMV"
	FormatHDF5    Format = "HDF5"
	FormatTIFF    Format = "TIFF"
	FormatUnknown Format = "???"
)

// ArchiveType is an archive container name from the imgCIF dictionary.
type ArchiveType string

const (
	ArchiveTGZ     ArchiveType = "TGZ"
	ArchiveTBZ     ArchiveType = "TBZ"
	ArchiveTXZ     ArchiveType = "TXZ"
	ArchiveZIP     ArchiveType = "ZIP"
	ArchiveUnknown ArchiveType = "???"
)

// Location states how the images of a scan can be retrieved. It is one of
// Archive, Directory or Placeholder.
type Location interface {
	location()
}

// Archive points at a single downloadable archive containing the images.
type Archive struct {
	URL string
}

func (Archive) location() {}

// Directory points at a base URL under which images can be fetched one by
// one, mirroring the local directory layout.
type Directory struct {
	BaseURL string
}

func (Directory) location() {}

// Placeholder stands in while no download location is known; the URI
// column is emitted as the CIF unknown value.
type Placeholder struct{}

func (Placeholder) location() {}

// GuessFormat determines the image format from a file name suffix. SMV
// files carry no reliable suffix and need an explicit override. Unknown
// suffixes warn and return FormatUnknown, which is not fatal.
func GuessFormat(name string) Format {
	switch {
	case strings.HasSuffix(name, ".cbf"):
		return FormatCBF
	case strings.HasSuffix(name, ".h5"), strings.HasSuffix(name, ".nxs"):
		return FormatHDF5
	case strings.HasSuffix(name, ".tif"):
		return FormatTIFF
	default:
		monitoring.Warnf("unable to determine type of image file (%s)", name)
		return FormatUnknown
	}
}

// GuessArchiveType determines the archive container from a URL suffix.
// Unknown suffixes warn and return ArchiveUnknown, which is not fatal.
func GuessArchiveType(url string) ArchiveType {
	switch {
	case strings.HasSuffix(url, ".tgz"), strings.HasSuffix(url, ".tar.gz"):
		return ArchiveTGZ
	case strings.HasSuffix(url, ".tbz"), strings.HasSuffix(url, ".tar.bz2"):
		return ArchiveTBZ
	case strings.HasSuffix(url, ".txz"), strings.HasSuffix(url, ".tar.xz"):
		return ArchiveTXZ
	case strings.HasSuffix(url, ".zip"):
		return ArchiveZIP
	default:
		monitoring.Warnf("could not guess archive type from URL (%s)", url)
		return ArchiveUnknown
	}
}

// frameRun matches the zero-padding placeholder: a run of # immediately
// before the extension dot.
var frameRun = regexp.MustCompile(`#+\.`)

// EncodeFrame substitutes the frame number into a file template, replacing
// each run of # characters before a dot with the zero-padded number, e.g.
// 01_#####.cbf becomes 01_00123.cbf for frame 123. Templates without a
// placeholder pass through unchanged.
func EncodeFrame(template string, frame int) string {
	return frameRun.ReplaceAllStringFunc(template, func(m string) string {
		return fmt.Sprintf("%0*d.", len(m)-1, frame)
	})
}

// doiRules maps recognized repository download URLs to their dataset DOI.
var doiRules = []struct {
	pattern *regexp.Regexp
	doi     func(id string) string
}{
	{
		regexp.MustCompile(`^https://zenodo\.org/records/(\d+)`),
		func(id string) string { return "10.5281/zenodo." + id },
	},
	{
		regexp.MustCompile(`^\w+://[\w\-.]+/10\.15785/SBGRID/(\d+)`), // various sbgrid domains
		func(id string) string { return "10.15785/SBGRID/" + id },
	},
	{
		regexp.MustCompile(`^https://xrda\.pdbj\.org/rest/public/entries/download/(\d+)`),
		func(id string) string {
			n, _ := strconv.Atoi(id)
			return fmt.Sprintf("10.51093/xrd-%05d", n)
		},
	},
}

// GuessDOI infers the dataset DOI when every location URL matches the same
// repository pattern with the same record id. Returns "" when nothing can
// be inferred; the DOI is never dereferenced.
func GuessDOI(locs []Location) string {
	var urls []string
	for _, loc := range locs {
		switch l := loc.(type) {
		case Archive:
			urls = append(urls, l.URL)
		case Directory:
			urls = append(urls, l.BaseURL)
		}
	}
	if len(urls) == 0 {
		return ""
	}

	for _, rule := range doiRules {
		id := ""
		matched := true
		for _, u := range urls {
			m := rule.pattern.FindStringSubmatch(u)
			if m == nil || (id != "" && m[1] != id) {
				matched = false
				break
			}
			id = m[1]
		}
		if matched {
			return rule.doi(id)
		}
	}
	return ""
}
