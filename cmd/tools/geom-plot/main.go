// Command geom-plot draws the normalized detector geometry of an .expt
// file as a PNG: panel outlines at two-theta zero projected on the lab
// XY plane, with the beam position marked at the origin.
package main

import (
	"flag"
	"fmt"
	"image/color"
	"log"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/COMCIFS/instrument-geometry-info/internal/axes"
	"github.com/COMCIFS/instrument-geometry-info/internal/expt"
	"github.com/COMCIFS/instrument-geometry-info/internal/geom"
	"github.com/COMCIFS/instrument-geometry-info/internal/instrument"
)

var palette = []color.Color{
	color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
	color.RGBA{R: 0xff, G: 0x7f, B: 0x0e, A: 0xff},
	color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff},
	color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff},
	color.RGBA{R: 0x94, G: 0x67, B: 0xbd, A: 0xff},
}

func main() {
	output := flag.String("o", "geometry.png", "output PNG file")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: geom-plot [flags] <input.expt>")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	snaps, err := expt.Load(flag.Arg(0), expt.Options{})
	if err != nil {
		log.Fatalf("geom-plot: %v", err)
	}
	if err := instrument.Validate(snaps); err != nil {
		log.Fatalf("geom-plot: %v", err)
	}
	catalog, err := axes.Build(snaps)
	if err != nil {
		log.Fatalf("geom-plot: %v", err)
	}

	p := plot.New()
	p.Title.Text = "Detector layout at two-theta zero"
	p.X.Label.Text = "X (mm)"
	p.Y.Label.Text = "Y (mm)"

	for i, panel := range catalog.Panels {
		line, err := plotter.NewLine(outline(panel))
		if err != nil {
			log.Fatalf("geom-plot: %v", err)
		}
		line.Color = palette[i%len(palette)]
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("ELEMENT%d", panel.Element), line)
	}

	beam, err := plotter.NewScatter(plotter.XYs{{X: 0, Y: 0}})
	if err != nil {
		log.Fatalf("geom-plot: %v", err)
	}
	beam.GlyphStyle.Shape = draw.CrossGlyph{}
	beam.GlyphStyle.Radius = vg.Points(6)
	beam.GlyphStyle.Color = color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}
	p.Add(beam)
	p.Legend.Add("beam", beam)
	p.Legend.Top = true

	if err := p.Save(8*vg.Inch, 8*vg.Inch, *output); err != nil {
		log.Fatalf("geom-plot: save %s: %v", *output, err)
	}
	log.Printf("wrote %s: %d panel(s)", *output, len(catalog.Panels))
}

// outline walks the four corners of a panel projected on the XY plane.
// The panel origin is the fast axis offset; the edges run along the fast
// and slow directions scaled by the pixel layout.
func outline(p axes.PanelAxes) plotter.XYs {
	w := p.PixelSize[0] * float64(p.Dimensions[0])
	h := p.PixelSize[1] * float64(p.Dimensions[1])

	c0 := p.Fast.Offset
	c1 := c0.Add(p.Fast.Direction.Scale(w))
	c2 := c1.Add(p.Slow.Direction.Scale(h))
	c3 := c0.Add(p.Slow.Direction.Scale(h))

	pts := make(plotter.XYs, 0, 5)
	for _, c := range []geom.Vec{c0, c1, c2, c3, c0} {
		pts = append(pts, plotter.XY{X: c[0], Y: c[1]})
	}
	return pts
}
