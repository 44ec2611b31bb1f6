package main

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestLogSpace(t *testing.T) {
	d := logSpace(1, 1000, 4)
	want := []float64{1, 10, 100, 1000}
	for i := range want {
		if math.Abs(d[i]-want[i]) > 1e-9*want[i] {
			t.Errorf("logSpace[%d] = %f, want %f", i, d[i], want[i])
		}
	}
	if got := logSpace(5, 10, 1); len(got) != 1 || got[0] != 5 {
		t.Errorf("logSpace(n=1) = %v", got)
	}
}

func TestSweepCoaxial(t *testing.T) {
	for _, r := range sweep(1, 0, []float64{1, 2, 5}, 12) {
		if math.Abs(r.Majorized-r.Parallel) > 1e-9 {
			t.Errorf("d=%g: majorized %f, parallel %f", r.Dist, r.Majorized, r.Parallel)
		}
		if math.Abs(r.Numerical-r.Parallel) > 0.01 {
			t.Errorf("d=%g: numerical %f, parallel %f", r.Dist, r.Numerical, r.Parallel)
		}
	}
}

func TestSweepOffsetBelowBound(t *testing.T) {
	for _, r := range sweep(1, 1.5, []float64{0.5, 1, 2, 5}, 8) {
		if r.Numerical > r.Majorized*1.01+1e-3 {
			t.Errorf("d=%g: numerical %f exceeds bound %f", r.Dist, r.Numerical, r.Majorized)
		}
	}
}

func TestPlotSweep(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweep.png")
	if err := plotSweep(sweep(1, 0, logSpace(1, 100, 6), 2), path); err != nil {
		t.Fatalf("plotSweep() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("plot not written: %v", err)
	}
	if info.Size() == 0 {
		t.Error("plot is empty")
	}
}
