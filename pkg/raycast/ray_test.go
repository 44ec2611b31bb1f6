package raycast

import (
	"errors"
	"math"
	"testing"

	"github.com/chazu/umbra/pkg/config"
	"github.com/chazu/umbra/pkg/geom"
)

// facingSquares returns two unit squares in the planes x=0 (normal +X) and
// x=1 (normal -X), facing each other.
func facingSquares() (a, b geom.Face) {
	a = geom.MustFace(
		geom.Point3{X: 0, Y: 0, Z: 0},
		geom.Point3{X: 0, Y: 1, Z: 0},
		geom.Point3{X: 0, Y: 1, Z: 1},
		geom.Point3{X: 0, Y: 0, Z: 1},
	)
	b = geom.MustFace(
		geom.Point3{X: 1, Y: 1, Z: 0},
		geom.Point3{X: 1, Y: 0, Z: 0},
		geom.Point3{X: 1, Y: 0, Z: 1},
		geom.Point3{X: 1, Y: 1, Z: 1},
	)
	return a, b
}

func TestNew(t *testing.T) {
	o := geom.Point3{X: 0}
	p := geom.Point3{X: 1}

	r, err := New(o, p, 0)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if r.Length() != 1 {
		t.Errorf("Length() = %f, want 1", r.Length())
	}

	r, err = New(o, p, 0.05)
	if err != nil {
		t.Fatalf("New() with erosion error = %v", err)
	}
	if math.Abs(r.Origin.X-0.05) > 1e-12 || math.Abs(r.Target.X-0.95) > 1e-12 {
		t.Errorf("eroded ray = %v, want 0.05 → 0.95", r)
	}
}

func TestNewDegenerate(t *testing.T) {
	tests := []struct {
		name    string
		target  geom.Point3
		erosion float64
	}{
		{"coincident", geom.Point3{}, 0},
		{"coincident eroded", geom.Point3{}, 0.05},
		{"too short to erode", geom.Point3{X: 0.1}, 0.05},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(geom.Point3{}, tt.target, tt.erosion)
			if !errors.Is(err, ErrDegenerateRay) {
				t.Errorf("New() error = %v, want ErrDegenerateRay", err)
			}
		})
	}
}

func TestBetweenCanonicalOrder(t *testing.T) {
	a, b := facingSquares()
	opts := DefaultOptions()
	opts.ExcludeSelfIntersection = false

	bundle, err := Between(a, b, opts)
	if err != nil {
		t.Fatalf("Between() error = %v", err)
	}
	if len(bundle.Rays) != 9 || bundle.Skipped != 0 {
		t.Fatalf("got %d rays, %d skipped; want 9, 0", len(bundle.Rays), bundle.Skipped)
	}

	first := bundle.Rays[0]
	if first.Origin != (geom.Point3{X: 0, Y: 0.5, Z: 1}) {
		t.Errorf("first ray origin = %v, want centre of emitter lower edge at top z", first.Origin)
	}
	if first.Target != (geom.Point3{X: 1, Y: 0.5, Z: 1}) {
		t.Errorf("first ray target = %v, want centre of receiver lower edge at top z", first.Target)
	}
	for i, r := range bundle.Rays {
		if r.Origin.X != 0 || r.Target.X != 1 {
			t.Errorf("ray %d does not run emitter→receiver: %v", i, r)
		}
	}
}

func TestBetweenPrefix(t *testing.T) {
	a, b := facingSquares()
	all, err := Between(a, b, DefaultOptions())
	if err != nil {
		t.Fatalf("Between() error = %v", err)
	}
	for n := 1; n <= config.MaxRays; n++ {
		opts := DefaultOptions()
		opts.Count = n
		got, err := Between(a, b, opts)
		if err != nil {
			t.Fatalf("Between(count=%d) error = %v", n, err)
		}
		if len(got.Rays) != n {
			t.Fatalf("count=%d returned %d rays", n, len(got.Rays))
		}
		for i := range got.Rays {
			if got.Rays[i] != all.Rays[i] {
				t.Errorf("count=%d ray %d differs from the 9-ray list", n, i)
			}
		}
	}
}

func TestBetweenZLevels(t *testing.T) {
	tall := geom.MustFace(
		geom.Point3{X: 0, Y: 1, Z: 0},
		geom.Point3{X: 0, Y: 0, Z: 0},
		geom.Point3{X: 0, Y: 0, Z: 20},
		geom.Point3{X: 0, Y: 1, Z: 20},
	)
	_, low := facingSquares()

	bundle, err := Between(tall, low, DefaultOptions())
	if err != nil {
		t.Fatalf("Between() error = %v", err)
	}
	for _, r := range bundle.Rays {
		if math.Abs(r.Origin.Z-1) > 1e-12 || math.Abs(r.Target.Z-1) > 1e-12 {
			t.Errorf("ray %v: emitter z should be min(20, 1) and receiver z 1", r)
		}
	}

	bundle, err = Between(low, tall, DefaultOptions())
	if err != nil {
		t.Fatalf("Between() error = %v", err)
	}
	r := bundle.Rays[0]
	if r.Origin.Z >= r.Target.Z {
		t.Errorf("ray %v should climb from z=1 to z=20", r)
	}
}

func TestBetweenRejectsRayCount(t *testing.T) {
	a, b := facingSquares()
	for _, n := range []int{0, -1, 10} {
		opts := DefaultOptions()
		opts.Count = n
		if _, err := Between(a, b, opts); !errors.Is(err, config.ErrConfiguration) {
			t.Errorf("Between(count=%d) error = %v, want ErrConfiguration", n, err)
		}
	}
}

func TestBetweenAllDegenerate(t *testing.T) {
	a, _ := facingSquares()
	// Only the centre-centre ray is requested and it has zero length.
	opts := DefaultOptions()
	opts.Count = 1
	bundle, err := Between(a, a, opts)
	if !errors.Is(err, ErrDegenerateRay) {
		t.Fatalf("Between(a, a) error = %v, want ErrDegenerateRay", err)
	}
	if len(bundle.Rays) != 0 {
		t.Errorf("got %d rays, want none", len(bundle.Rays))
	}
}

func TestBetweenSkipsSomeDegenerate(t *testing.T) {
	a, _ := facingSquares()
	// Same lower edge as a, opposite orientation: centre-centre and the
	// crossed corner pairs coincide, the rest do not.
	flipped := geom.MustFace(
		geom.Point3{X: 0, Y: 1, Z: 0},
		geom.Point3{X: 0, Y: 0, Z: 0},
		geom.Point3{X: 0, Y: 0, Z: 1},
		geom.Point3{X: 0, Y: 1, Z: 1},
	)
	bundle, err := Between(a, flipped, DefaultOptions())
	if err != nil {
		t.Fatalf("Between() error = %v", err)
	}
	if bundle.Skipped != 3 || len(bundle.Rays) != 6 {
		t.Errorf("got %d rays, %d skipped; want 6, 3", len(bundle.Rays), bundle.Skipped)
	}
	if len(bundle.Rays)+bundle.Skipped != config.MaxRays {
		t.Errorf("rays + skipped = %d, want %d", len(bundle.Rays)+bundle.Skipped, config.MaxRays)
	}
}
