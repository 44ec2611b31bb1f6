package geom

import (
	"errors"
	"fmt"
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// ErrInvalidGeometry is returned when a face or footprint cannot describe a
// valid planar polygon.
var ErrInvalidGeometry = errors.New("invalid geometry")

const (
	// pointTolerance is the distance under which two vertices are merged.
	pointTolerance = 1e-9

	// areaTolerance is the smallest accepted polygon area in m².
	areaTolerance = 1e-12

	// verticalTolerance bounds |n.x| and |n.y| for a normal to count as vertical.
	verticalTolerance = 1e-9
)

// Point3 is an immutable (x, y, z) coordinate.
type Point3 = v3.Vec

// Up is the world vertical axis.
var Up = Point3{X: 0, Y: 0, Z: 1}

// Distance returns the euclidean distance between a and b.
func Distance(a, b Point3) float64 {
	return b.Sub(a).Length()
}

// Surface is anything that can present itself as a planar face: a bare
// envelope face or a richer room-model surface.
type Surface interface {
	Geometry() Face
}

// Face is a planar polygon with outward normal given by the right-hand rule
// on its vertex order.
type Face struct {
	points   []Point3
	centroid Point3
	normal   Point3
	area     float64
	bounds   sdf.Box3
}

// NewFace builds a face from an ordered vertex loop. Consecutive duplicates
// and a repeated closing vertex are dropped.
func NewFace(points ...Point3) (Face, error) {
	pts := cleanLoop(points)
	if len(pts) < 3 {
		return Face{}, fmt.Errorf("%w: face has %d distinct vertices, need at least 3", ErrInvalidGeometry, len(pts))
	}

	// Newell's method.
	var n Point3
	for i, p := range pts {
		q := pts[(i+1)%len(pts)]
		n = n.Add(p.Cross(q))
	}
	twiceArea := n.Length()
	if math.IsNaN(twiceArea) || twiceArea/2 <= areaTolerance {
		return Face{}, fmt.Errorf("%w: face area is %g", ErrInvalidGeometry, twiceArea/2)
	}
	normal := n.MulScalar(1 / twiceArea)

	// Area-weighted centroid of the fan around the first vertex. Weights are
	// signed along the normal so concave loops come out right.
	var (
		sum     Point3
		weights float64
	)
	for i := 1; i+1 < len(pts); i++ {
		a, b, c := pts[0], pts[i], pts[i+1]
		w := b.Sub(a).Cross(c.Sub(a)).Dot(normal) / 2
		tc := a.Add(b).Add(c).MulScalar(1.0 / 3.0)
		sum = sum.Add(tc.MulScalar(w))
		weights += w
	}
	if weights <= areaTolerance {
		return Face{}, fmt.Errorf("%w: degenerate vertex loop", ErrInvalidGeometry)
	}

	return Face{
		points:   pts,
		centroid: sum.MulScalar(1 / weights),
		normal:   normal,
		area:     twiceArea / 2,
		bounds:   boundsOf(pts),
	}, nil
}

// MustFace is like NewFace but panics on invalid input. Intended for fixtures.
func MustFace(points ...Point3) Face {
	f, err := NewFace(points...)
	if err != nil {
		panic(fmt.Sprintf("geom.MustFace: %v", err))
	}
	return f
}

func cleanLoop(points []Point3) []Point3 {
	pts := make([]Point3, 0, len(points))
	for _, p := range points {
		if len(pts) > 0 && Distance(pts[len(pts)-1], p) <= pointTolerance {
			continue
		}
		pts = append(pts, p)
	}
	for len(pts) > 1 && Distance(pts[0], pts[len(pts)-1]) <= pointTolerance {
		pts = pts[:len(pts)-1]
	}
	return pts
}

func boundsOf(pts []Point3) sdf.Box3 {
	lo, hi := pts[0], pts[0]
	for _, p := range pts[1:] {
		lo = Point3{X: math.Min(lo.X, p.X), Y: math.Min(lo.Y, p.Y), Z: math.Min(lo.Z, p.Z)}
		hi = Point3{X: math.Max(hi.X, p.X), Y: math.Max(hi.Y, p.Y), Z: math.Max(hi.Z, p.Z)}
	}
	return sdf.Box3{Min: lo, Max: hi}
}

// Geometry implements Surface.
func (f Face) Geometry() Face { return f }

// Points returns a copy of the vertex loop.
func (f Face) Points() []Point3 {
	out := make([]Point3, len(f.points))
	copy(out, f.points)
	return out
}

// NumPoints returns the number of distinct vertices.
func (f Face) NumPoints() int { return len(f.points) }

// Centroid returns the area centroid.
func (f Face) Centroid() Point3 { return f.centroid }

// Normal returns the outward unit normal.
func (f Face) Normal() Point3 { return f.normal }

// Area returns the polygon area.
func (f Face) Area() float64 { return f.area }

// Bounds returns the axis-aligned bounding box.
func (f Face) Bounds() sdf.Box3 { return f.bounds }

// MinZ returns the lowest vertex elevation.
func (f Face) MinZ() float64 { return f.bounds.Min.Z }

// MaxZ returns the highest vertex elevation.
func (f Face) MaxZ() float64 { return f.bounds.Max.Z }

// IsEmpty reports whether f is the zero Face.
func (f Face) IsEmpty() bool { return len(f.points) == 0 }

// HasVerticalNormal reports whether the normal points straight up or down,
// i.e. the face is a roof, floor or ground plane.
func (f Face) HasVerticalNormal() bool {
	return math.Abs(f.normal.X) <= verticalTolerance && math.Abs(f.normal.Y) <= verticalTolerance
}

// referenceAxis is the horizontal direction running from the lower-left to
// the lower-right corner when the face is seen from outside.
func (f Face) referenceAxis() Point3 {
	r := Up.Cross(f.normal)
	if r.Length() <= verticalTolerance {
		// Horizontal face: the first edge is the reference edge.
		r = f.points[1].Sub(f.points[0])
		r.Z = 0
	}
	return r.Normalize()
}

// LowerCorners returns the lower-left and lower-right corners of the face
// along its horizontal reference edge, both at MinZ.
func (f Face) LowerCorners() (left, right Point3) {
	axis := f.referenceAxis()
	minZ := f.MinZ()

	base := f.points[0]
	for _, p := range f.points[1:] {
		if p.Z < base.Z {
			base = p
		}
	}
	s0 := base.Dot(axis)
	lo, hi := s0, s0
	for _, p := range f.points {
		s := p.Dot(axis)
		lo = math.Min(lo, s)
		hi = math.Max(hi, s)
	}

	left = base.Add(axis.MulScalar(lo - s0))
	right = base.Add(axis.MulScalar(hi - s0))
	left.Z, right.Z = minZ, minZ
	return left, right
}

// LowerCenter returns the midpoint of the lower edge.
func (f Face) LowerCenter() Point3 {
	l, r := f.LowerCorners()
	return l.Add(r).MulScalar(0.5)
}
