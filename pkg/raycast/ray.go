// Package raycast generates the canonical sight rays between an emitter and
// a receiver surface.
package raycast

import (
	"errors"
	"fmt"

	"github.com/chazu/umbra/pkg/config"
	"github.com/chazu/umbra/pkg/geom"
)

// ErrDegenerateRay is returned when a ray's endpoints coincide, so it has
// no direction. It signals overlapping geometry upstream.
var ErrDegenerateRay = errors.New("degenerate ray")

// Ray is a finite sight line from Origin to Target.
type Ray struct {
	Origin geom.Point3
	Target geom.Point3
}

// Length returns the distance between the endpoints.
func (r Ray) Length() float64 {
	return geom.Distance(r.Origin, r.Target)
}

// New builds the ray origin→target. With erosion > 0 both endpoints are
// moved that far toward each other along the ray; a ray too short to erode
// is degenerate as well.
func New(origin, target geom.Point3, erosion float64) (Ray, error) {
	d := target.Sub(origin)
	l := d.Length()
	if l == 0 {
		return Ray{}, fmt.Errorf("%w: origin and target coincide at %v", ErrDegenerateRay, origin)
	}
	if erosion <= 0 {
		return Ray{Origin: origin, Target: target}, nil
	}
	if l <= 2*erosion {
		return Ray{}, fmt.Errorf("%w: length %g too short to erode by %g", ErrDegenerateRay, l, erosion)
	}
	dir := d.MulScalar(1 / l)
	return Ray{
		Origin: origin.Add(dir.MulScalar(erosion)),
		Target: target.Sub(dir.MulScalar(erosion)),
	}, nil
}

// anchor selects a characteristic point on a face's lower edge.
type anchor int

const (
	center anchor = iota
	left
	right
)

// canonical lists the nine (emitter, receiver) anchor pairs in firing
// order: centre first, then the straight corner pairs, then the crossed
// corners, then centre/corner mixes.
var canonical = [config.MaxRays][2]anchor{
	{center, center},
	{left, left},
	{right, right},
	{left, right},
	{right, left},
	{center, left},
	{center, right},
	{left, center},
	{right, center},
}

// Options controls ray generation.
type Options struct {
	Count                   int     // number of canonical rays, 1..9
	ExcludeSelfIntersection bool    // erode endpoints
	Erosion                 float64 // metres; used when ExcludeSelfIntersection
}

// DefaultOptions fires all nine rays with 5 cm erosion.
func DefaultOptions() Options {
	return Options{
		Count:                   config.MaxRays,
		ExcludeSelfIntersection: true,
		Erosion:                 config.DefaultErosion,
	}
}

// OptionsFrom derives ray options from a run configuration.
func OptionsFrom(c config.Config) Options {
	return Options{
		Count:                   c.RayCount,
		ExcludeSelfIntersection: c.ExcludeSelfIntersection,
		Erosion:                 c.Erosion,
	}
}

// Bundle is the result of one generation: the usable rays in canonical order
// and how many canonical rays were dropped as degenerate.
type Bundle struct {
	Rays    []Ray
	Skipped int
}

// Between returns the first opts.Count canonical rays from emitter to
// receiver. Emitter points sit at min(emitter top, receiver top), receiver
// points at the receiver top. Degenerate rays are skipped; if every
// requested ray is degenerate the error wraps ErrDegenerateRay.
func Between(emitter, receiver geom.Surface, opts Options) (Bundle, error) {
	if err := config.CheckRayCount(opts.Count); err != nil {
		return Bundle{}, err
	}
	e := emitter.Geometry()
	r := receiver.Geometry()

	erosion := 0.0
	if opts.ExcludeSelfIntersection {
		erosion = opts.Erosion
	}

	ez := min(e.MaxZ(), r.MaxZ())
	rz := r.MaxZ()
	ep := anchors(e, ez)
	rp := anchors(r, rz)

	var (
		b    Bundle
		errs []error
	)
	for _, pair := range canonical[:opts.Count] {
		ray, err := New(ep[pair[0]], rp[pair[1]], erosion)
		if err != nil {
			b.Skipped++
			errs = append(errs, err)
			continue
		}
		b.Rays = append(b.Rays, ray)
	}
	if len(b.Rays) == 0 {
		return b, fmt.Errorf("all %d rays degenerate: %w", opts.Count, errors.Join(errs...))
	}
	return b, nil
}

// anchors returns centre, left and right of f's lower edge lifted to z.
func anchors(f geom.Face, z float64) [3]geom.Point3 {
	l, r := f.LowerCorners()
	c := l.Add(r).MulScalar(0.5)
	l.Z, r.Z, c.Z = z, z, z
	var out [3]geom.Point3
	out[center], out[left], out[right] = c, l, r
	return out
}
