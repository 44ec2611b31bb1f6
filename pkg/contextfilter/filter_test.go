package contextfilter_test

import (
	"bytes"
	"context"
	"errors"
	"log"
	"slices"
	"testing"

	"github.com/paulmach/orb"

	"github.com/chazu/umbra/pkg/canopy"
	"github.com/chazu/umbra/pkg/config"
	"github.com/chazu/umbra/pkg/contextfilter"
	"github.com/chazu/umbra/pkg/geom"
)

func mustAdd(t *testing.T, c *canopy.Canopy, bs ...*canopy.Building) {
	t.Helper()
	for _, b := range bs {
		if err := c.Add(b); err != nil {
			t.Fatalf("Add(%s) error = %v", b.ID, err)
		}
	}
}

func newFilter(t *testing.T, workers int) *contextfilter.Filter {
	t.Helper()
	cfg := config.Default()
	cfg.Workers = workers
	f, err := contextfilter.New(cfg, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return f
}

// streetCanopy is a target with a tall neighbour across a 5 m street and a
// low building hidden behind the neighbour.
func streetCanopy(t *testing.T) *canopy.Canopy {
	t.Helper()
	target := block("target", 0, 0, 10, 10, 10)
	target.Target = true
	neighbour := canopy.NewBuilding("neighbour", geom.Rectangle(15, 0, 10, 10), -1, 21)
	hidden := block("hidden", 30, 2, 6, 6, 10)

	c := canopy.New()
	mustAdd(t, c, target, neighbour, hidden)
	return c
}

func TestRunStreet(t *testing.T) {
	c := streetCanopy(t)
	f := newFilter(t, 2)

	report, err := f.Run(context.Background(), c)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if f.State() != contextfilter.StateDone {
		t.Errorf("State() = %s, want done", f.State())
	}
	if report.MeshTriangles != 36 {
		t.Errorf("MeshTriangles = %d, want 36", report.MeshTriangles)
	}

	res := report.Result("target")
	if res == nil {
		t.Fatal("no result for target")
	}
	if res.RunID != report.RunID {
		t.Errorf("result run %s, report run %s", res.RunID, report.RunID)
	}
	if !slices.Equal(res.CandidateBuildings, []canopy.BuildingID{"hidden", "neighbour"}) {
		t.Errorf("CandidateBuildings = %v, want [hidden neighbour]", res.CandidateBuildings)
	}
	if got := res.KeptBuildings(); !slices.Equal(got, []canopy.BuildingID{"neighbour"}) {
		t.Errorf("KeptBuildings() = %v, want [neighbour]", got)
	}

	// The neighbour's west wall looks straight at the target.
	surfaces, err := c.Get("neighbour").Surfaces()
	if err != nil {
		t.Fatalf("Surfaces() error = %v", err)
	}
	west := -1
	for i, s := range surfaces {
		if n := s.Geometry().Normal(); n.X < -0.99 {
			west = i
		}
	}
	if !slices.Contains(res.KeptFaces, canopy.FaceRef{Building: "neighbour", Index: west}) {
		t.Errorf("KeptFaces = %v, missing neighbour west wall #%d", res.KeptFaces, west)
	}
}

func TestRunClockwiseFootprints(t *testing.T) {
	cw := func(x, y, w, d float64) orb.Ring {
		r := geom.Rectangle(x, y, w, d)
		r.Reverse()
		return r
	}
	target := canopy.NewBuilding("target", cw(0, 0, 10, 10), 0, 10)
	target.Target = true
	c := canopy.New()
	mustAdd(t, c,
		target,
		canopy.NewBuilding("neighbour", cw(15, 0, 10, 10), -1, 21),
		canopy.NewBuilding("hidden", cw(30, 2, 6, 6), 0, 10),
	)

	report, err := newFilter(t, 1).Run(context.Background(), c)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	res := report.Result("target")
	if !slices.Equal(res.CandidateBuildings, []canopy.BuildingID{"hidden", "neighbour"}) {
		t.Errorf("CandidateBuildings = %v, want [hidden neighbour]", res.CandidateBuildings)
	}
	if got := res.KeptBuildings(); !slices.Equal(got, []canopy.BuildingID{"neighbour"}) {
		t.Errorf("KeptBuildings() = %v, want [neighbour]", got)
	}
}

func TestRunFarContext(t *testing.T) {
	c := canopy.New()
	target := block("target", 0, 0, 10, 10, 10)
	target.Target = true
	mustAdd(t, c, target)
	for i, off := range [][2]float64{
		{2000, 0}, {-2000, 0}, {0, 2000}, {0, -2000},
		{2000, 2000}, {-2000, 2000}, {2000, -2000}, {-2000, -2000},
	} {
		mustAdd(t, c, block(string(rune('a'+i)), off[0], off[1], 10, 10, 10))
	}

	report, err := newFilter(t, 0).Run(context.Background(), c)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	res := report.Result("target")
	if res == nil || !res.IsEmpty() {
		t.Errorf("Result(target) = %+v, want empty selection", res)
	}
}

func TestRunWorkersAgree(t *testing.T) {
	build := func() *canopy.Canopy {
		c := canopy.New()
		for i := range 4 {
			for j := range 4 {
				b := block(string(rune('a'+4*i+j)), float64(i)*20, float64(j)*20, 10, 10, 8+float64((i*j)%4)*4)
				b.Target = (i+j)%2 == 0
				mustAdd(t, c, b)
			}
		}
		return c
	}

	serial, err := newFilter(t, 1).Run(context.Background(), build())
	if err != nil {
		t.Fatalf("Run(workers=1) error = %v", err)
	}
	parallel, err := newFilter(t, 4).Run(context.Background(), build())
	if err != nil {
		t.Fatalf("Run(workers=4) error = %v", err)
	}

	if !slices.Equal(serial.Order, parallel.Order) {
		t.Fatalf("Order differs: %v vs %v", serial.Order, parallel.Order)
	}
	if len(serial.Order) != 8 {
		t.Errorf("len(Order) = %d, want 8", len(serial.Order))
	}
	for _, id := range serial.Order {
		s, p := serial.Result(id), parallel.Result(id)
		if !slices.Equal(s.CandidateBuildings, p.CandidateBuildings) {
			t.Errorf("%s: candidates %v vs %v", id, s.CandidateBuildings, p.CandidateBuildings)
		}
		if !slices.Equal(s.KeptFaces, p.KeptFaces) {
			t.Errorf("%s: kept faces %v vs %v", id, s.KeptFaces, p.KeptFaces)
		}
	}
}

func TestRunNoTargets(t *testing.T) {
	c := canopy.New()
	mustAdd(t, c, block("a", 0, 0, 10, 10, 10), block("b", 20, 0, 10, 10, 10))

	report, err := newFilter(t, 0).Run(context.Background(), c)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(report.Results) != 0 || len(report.Order) != 0 {
		t.Errorf("got %d results, want none", len(report.Results))
	}
}

func TestRunInvalidCanopy(t *testing.T) {
	c := canopy.New()
	flat := block("flat", 0, 0, 10, 10, 0)
	flat.Target = true
	mustAdd(t, c, flat)

	f := newFilter(t, 0)
	_, err := f.Run(context.Background(), c)
	if !errors.Is(err, contextfilter.ErrInvalidCanopy) {
		t.Fatalf("Run() error = %v, want ErrInvalidCanopy", err)
	}
	if f.State() != contextfilter.StateFailed {
		t.Errorf("State() = %s, want failed", f.State())
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := newFilter(t, 2)
	report, err := f.Run(ctx, streetCanopy(t))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if report != nil {
		t.Errorf("Run() returned a partial report")
	}
	if f.State() != contextfilter.StateFailed {
		t.Errorf("State() = %s, want failed", f.State())
	}
}

func TestNewRejectsConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.Config)
	}{
		{"zero min vf", func(c *config.Config) { c.MinVFCriterion = 0 }},
		{"no rays", func(c *config.Config) { c.RayCount = 0 }},
		{"too many rays", func(c *config.Config) { c.RayCount = 10 }},
		{"negative erosion", func(c *config.Config) { c.Erosion = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.modify(&cfg)
			if _, err := contextfilter.New(cfg, nil); !errors.Is(err, config.ErrConfiguration) {
				t.Errorf("New() error = %v, want ErrConfiguration", err)
			}
		})
	}
}

func TestRunLogs(t *testing.T) {
	var buf bytes.Buffer
	f, err := contextfilter.New(config.Default(), log.New(&buf, "", 0))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := f.Run(context.Background(), streetCanopy(t)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("target target:")) {
		t.Errorf("log output missing per-target summary:\n%s", buf.String())
	}
}

func TestFilterTarget(t *testing.T) {
	c := streetCanopy(t)
	f := newFilter(t, 0)

	res, err := f.FilterTarget(context.Background(), c, "target")
	if err != nil {
		t.Fatalf("FilterTarget() error = %v", err)
	}
	if got := res.KeptBuildings(); !slices.Equal(got, []canopy.BuildingID{"neighbour"}) {
		t.Errorf("KeptBuildings() = %v, want [neighbour]", got)
	}

	if _, err := f.FilterTarget(context.Background(), c, "missing"); err == nil {
		t.Error("FilterTarget(missing) succeeded")
	}
}
