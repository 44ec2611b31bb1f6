package geom

import (
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Envelope is the derived hull of one building: the extruded footprint used
// by both passes and the coarser oriented bounding box used only by Pass-1.
type Envelope struct {
	Faces         []Face
	BoundingFaces []Face
}

// IsEmpty reports whether the envelope has no faces at all.
func (e Envelope) IsEmpty() bool {
	return len(e.Faces) == 0 && len(e.BoundingFaces) == 0
}

// Extrude builds the envelope of a prism standing on footprint at the given
// elevation. Footprint coordinates are planar metres; orientation is
// normalised so that every face normal points outward.
func Extrude(footprint orb.Ring, elevation, height float64) (Envelope, error) {
	faces, err := ExtrudeRing(footprint, elevation, height)
	if err != nil {
		return Envelope{}, err
	}
	obb, err := OrientedBoundingRect(footprint)
	if err != nil {
		return Envelope{}, err
	}
	bounding, err := ExtrudeRing(obb, elevation, height)
	if err != nil {
		return Envelope{}, fmt.Errorf("bounding box: %w", err)
	}
	return Envelope{Faces: faces, BoundingFaces: bounding}, nil
}

// ExtrudeRing returns walls, roof and floor of the prism over ring, in that
// order. Walls follow the counter-clockwise footprint edge order.
func ExtrudeRing(ring orb.Ring, elevation, height float64) ([]Face, error) {
	if !(height > 0) {
		return nil, fmt.Errorf("%w: height %g must be positive", ErrInvalidGeometry, height)
	}
	pts, err := normalizeRing(ring)
	if err != nil {
		return nil, err
	}

	z0, z1 := elevation, elevation+height
	faces := make([]Face, 0, len(pts)+2)
	for i, p := range pts {
		q := pts[(i+1)%len(pts)]
		wall, err := NewFace(
			Point3{X: p[0], Y: p[1], Z: z0},
			Point3{X: q[0], Y: q[1], Z: z0},
			Point3{X: q[0], Y: q[1], Z: z1},
			Point3{X: p[0], Y: p[1], Z: z1},
		)
		if err != nil {
			return nil, fmt.Errorf("wall %d: %w", i, err)
		}
		faces = append(faces, wall)
	}

	roof := make([]Point3, len(pts))
	floor := make([]Point3, len(pts))
	for i, p := range pts {
		roof[i] = Point3{X: p[0], Y: p[1], Z: z1}
		floor[len(pts)-1-i] = Point3{X: p[0], Y: p[1], Z: z0}
	}
	r, err := NewFace(roof...)
	if err != nil {
		return nil, fmt.Errorf("roof: %w", err)
	}
	f, err := NewFace(floor...)
	if err != nil {
		return nil, fmt.Errorf("floor: %w", err)
	}
	return append(faces, r, f), nil
}

// normalizeRing drops duplicate and closing points and returns the ring in
// counter-clockwise order.
func normalizeRing(ring orb.Ring) ([]orb.Point, error) {
	pts := make([]orb.Point, 0, len(ring))
	for _, p := range ring {
		if len(pts) > 0 && planar.Distance(pts[len(pts)-1], p) <= pointTolerance {
			continue
		}
		pts = append(pts, p)
	}
	for len(pts) > 1 && planar.Distance(pts[0], pts[len(pts)-1]) <= pointTolerance {
		pts = pts[:len(pts)-1]
	}
	if len(pts) < 3 {
		return nil, fmt.Errorf("%w: footprint has %d distinct points, need at least 3", ErrInvalidGeometry, len(pts))
	}

	closed := append(orb.Ring{}, pts...)
	closed = append(closed, pts[0])
	// planar.Area is signed by orientation.
	if a := math.Abs(planar.Area(closed)); a <= areaTolerance {
		return nil, fmt.Errorf("%w: footprint area is %g", ErrInvalidGeometry, a)
	}
	if closed.Orientation() == orb.CW {
		for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
			pts[i], pts[j] = pts[j], pts[i]
		}
	}
	return pts, nil
}

// OrientedBoundingRect returns the minimum-area rectangle enclosing ring,
// found by testing every convex hull edge direction. The result is a closed
// counter-clockwise ring.
func OrientedBoundingRect(ring orb.Ring) (orb.Ring, error) {
	pts, err := normalizeRing(ring)
	if err != nil {
		return nil, err
	}
	hull := convexHull(pts)

	best := math.Inf(1)
	var rect orb.Ring
	for i, p := range hull {
		q := hull[(i+1)%len(hull)]
		dx, dy := q[0]-p[0], q[1]-p[1]
		l := math.Hypot(dx, dy)
		if l <= pointTolerance {
			continue
		}
		ux, uy := dx/l, dy/l // edge direction
		vx, vy := -uy, ux    // left normal

		minU, maxU := math.Inf(1), math.Inf(-1)
		minV, maxV := math.Inf(1), math.Inf(-1)
		for _, h := range hull {
			u := h[0]*ux + h[1]*uy
			v := h[0]*vx + h[1]*vy
			minU, maxU = math.Min(minU, u), math.Max(maxU, u)
			minV, maxV = math.Min(minV, v), math.Max(maxV, v)
		}
		area := (maxU - minU) * (maxV - minV)
		if area < best {
			best = area
			corner := func(u, v float64) orb.Point {
				return orb.Point{u*ux + v*vx, u*uy + v*vy}
			}
			rect = orb.Ring{
				corner(minU, minV),
				corner(maxU, minV),
				corner(maxU, maxV),
				corner(minU, maxV),
				corner(minU, minV),
			}
		}
	}
	if rect == nil {
		return nil, fmt.Errorf("%w: footprint has no extent", ErrInvalidGeometry)
	}
	return rect, nil
}

// convexHull is Andrew's monotone chain; the result is counter-clockwise
// without a closing point.
func convexHull(pts []orb.Point) []orb.Point {
	sorted := append([]orb.Point(nil), pts...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i][0] != sorted[j][0] {
			return sorted[i][0] < sorted[j][0]
		}
		return sorted[i][1] < sorted[j][1]
	})

	cross := func(o, a, b orb.Point) float64 {
		return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
	}

	hull := make([]orb.Point, 0, 2*len(sorted))
	for _, p := range sorted {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(sorted) - 2; i >= 0; i-- {
		p := sorted[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}

// Rectangle returns a closed counter-clockwise axis-aligned footprint with
// its minimum corner at (x, y).
func Rectangle(x, y, width, depth float64) orb.Ring {
	return orb.Ring{
		{x, y},
		{x + width, y},
		{x + width, y + depth},
		{x, y + depth},
		{x, y},
	}
}
