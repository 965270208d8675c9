// Command scan-chart renders a bar chart of an experiment's scans
// (frames per scan and angular range per scan) to a standalone HTML
// file, as a quick check of scan bookkeeping before conversion.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/COMCIFS/instrument-geometry-info/internal/expt"
	"github.com/COMCIFS/instrument-geometry-info/internal/frames"
	"github.com/COMCIFS/instrument-geometry-info/internal/instrument"
)

func main() {
	output := flag.String("o", "scans.html", "output HTML file")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: scan-chart [flags] <input.expt>")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	input := flag.Arg(0)

	snaps, err := expt.Load(input, expt.Options{})
	if err != nil {
		log.Fatalf("scan-chart: %v", err)
	}
	records, err := instrument.ScanRecords(snaps)
	if err != nil {
		log.Fatalf("scan-chart: %v", err)
	}

	ids, frameBars, rangeBars := scanBars(records)

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Scan overview", Width: "900px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Scan overview",
			Subtitle: fmt.Sprintf("%s: %d scan(s)", filepath.Base(input), len(records)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(ids).
		AddSeries("frames", frameBars,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		).
		AddSeries("angular range (deg)", rangeBars)

	page := components.NewPage()
	page.AddCharts(bar)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		log.Fatalf("scan-chart: render: %v", err)
	}
	if err := os.WriteFile(*output, buf.Bytes(), 0o644); err != nil {
		log.Fatalf("scan-chart: %v", err)
	}
	log.Printf("wrote %s: %d scan(s)", *output, len(records))
}

// scanBars turns scan records into chart series keyed by scan id.
func scanBars(records []instrument.ScanRecord) ([]string, []opts.BarData, []opts.BarData) {
	ids := make([]string, len(records))
	frameBars := make([]opts.BarData, len(records))
	rangeBars := make([]opts.BarData, len(records))
	for i, rec := range records {
		ids[i] = frames.ScanID(i)
		frameBars[i] = opts.BarData{Value: rec.NumFrames}
		rangeBars[i] = opts.BarData{Value: rec.Range}
	}
	return ids, frameBars, rangeBars
}
