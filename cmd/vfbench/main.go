// Command vfbench compares the majorized view factor bound against the
// closed-form parallel-square solution and numerical quadrature over a
// range of separations, and optionally plots the sweep.
package main

import (
	"flag"
	"fmt"
	"image/color"
	"log"
	"math"
	"os"
	"text/tabwriter"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/chazu/umbra/pkg/geom"
	"github.com/chazu/umbra/pkg/viewfactor"
)

// row is one separation of the sweep.
type row struct {
	Dist      float64
	Majorized float64
	Parallel  float64
	Numerical float64
}

// squarePair returns two vertical squares of the given side facing each
// other across dist, the receiver shifted sideways by offset.
func squarePair(side, dist, offset float64) (a, b geom.Face) {
	h := side / 2
	a = geom.MustFace(
		geom.Point3{X: 0, Y: -h, Z: 0},
		geom.Point3{X: 0, Y: h, Z: 0},
		geom.Point3{X: 0, Y: h, Z: side},
		geom.Point3{X: 0, Y: -h, Z: side},
	)
	b = geom.MustFace(
		geom.Point3{X: dist, Y: offset + h, Z: 0},
		geom.Point3{X: dist, Y: offset - h, Z: 0},
		geom.Point3{X: dist, Y: offset - h, Z: side},
		geom.Point3{X: dist, Y: offset + h, Z: side},
	)
	return a, b
}

// sweep evaluates the three solvers at every separation.
func sweep(side, offset float64, dists []float64, subdivisions int) []row {
	rows := make([]row, 0, len(dists))
	for _, d := range dists {
		a, b := squarePair(side, d, offset)
		rows = append(rows, row{
			Dist:      d,
			Majorized: viewfactor.MajorizedFaces(a, b),
			Parallel:  viewfactor.ParallelRectangles(side, side, d),
			Numerical: viewfactor.Numerical(a, b, subdivisions),
		})
	}
	return rows
}

// logSpace returns n distances from lo to hi, evenly spaced in log.
func logSpace(lo, hi float64, n int) []float64 {
	if n < 2 {
		return []float64{lo}
	}
	out := make([]float64, n)
	step := math.Log(hi/lo) / float64(n-1)
	for i := range out {
		out[i] = lo * math.Exp(step*float64(i))
	}
	return out
}

func plotSweep(rows []row, path string) error {
	p := plot.New()
	p.Title.Text = "View factor vs separation"
	p.X.Label.Text = "separation (m)"
	p.Y.Label.Text = "F"
	p.X.Scale = plot.LogScale{}
	p.X.Tick.Marker = plot.LogTicks{}
	p.Y.Scale = plot.LogScale{}
	p.Y.Tick.Marker = plot.LogTicks{}
	p.Add(plotter.NewGrid())

	series := []struct {
		name  string
		color color.Color
		value func(row) float64
	}{
		{"majorized", color.RGBA{R: 0xE7, G: 0x4C, B: 0x3C, A: 0xFF}, func(r row) float64 { return r.Majorized }},
		{"parallel", color.RGBA{R: 0x4A, G: 0x90, B: 0xD9, A: 0xFF}, func(r row) float64 { return r.Parallel }},
		{"numerical", color.RGBA{R: 0x2E, G: 0xCC, B: 0x71, A: 0xFF}, func(r row) float64 { return r.Numerical }},
	}
	for _, s := range series {
		xys := make(plotter.XYs, 0, len(rows))
		for _, r := range rows {
			if v := s.value(r); v > 0 {
				xys = append(xys, plotter.XY{X: r.Dist, Y: v})
			}
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
		line.Color = s.color
		p.Add(line)
		p.Legend.Add(s.name, line)
	}

	return p.Save(20*vg.Centimeter, 15*vg.Centimeter, path)
}

func main() {
	var (
		side   = flag.Float64("side", 10, "square side (m)")
		offset = flag.Float64("offset", 0, "lateral receiver offset (m)")
		near   = flag.Float64("near", 1, "smallest separation (m)")
		far    = flag.Float64("far", 2000, "largest separation (m)")
		steps  = flag.Int("steps", 24, "number of separations")
		subdiv = flag.Int("subdiv", 8, "quadrature subdivisions per triangle edge")
		out    = flag.String("plot", "", "write a PNG plot to this file")
	)
	flag.Parse()

	if !(*near > 0 && *far > *near) {
		log.Fatalf("need 0 < near < far, got %g, %g", *near, *far)
	}

	rows := sweep(*side, *offset, logSpace(*near, *far, *steps), *subdiv)

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "dist\tmajorized\tparallel\tnumerical\tbound ok\t")
	violations := 0
	for _, r := range rows {
		ok := r.Numerical <= r.Majorized*1.01+1e-6
		if !ok {
			violations++
		}
		fmt.Fprintf(tw, "%.2f\t%.6g\t%.6g\t%.6g\t%v\t\n", r.Dist, r.Majorized, r.Parallel, r.Numerical, ok)
	}
	tw.Flush()

	if *out != "" {
		if err := plotSweep(rows, *out); err != nil {
			log.Fatalf("plot: %v", err)
		}
		log.Printf("wrote %s", *out)
	}
	if violations > 0 {
		log.Printf("%d separations exceed the bound", violations)
		os.Exit(1)
	}
}
