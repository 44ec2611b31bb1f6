// Package occlusion provides the merged occlusion mesh used by Pass-2: every
// building envelope of a canopy, triangulated and indexed in a 3-D R-tree
// for segment intersection queries.
package occlusion

import (
	"math"

	"github.com/deadsy/sdfx/sdf"
	"github.com/dhconnelly/rtreego"

	"github.com/chazu/umbra/pkg/canopy"
	"github.com/chazu/umbra/pkg/geom"
	"github.com/chazu/umbra/pkg/tessellate"
)

const (
	// rectPad keeps R-tree rectangles non-degenerate for axis-aligned
	// triangles and segments.
	rectPad = 1e-6

	// hitEpsilon is the Möller–Trumbore determinant / parameter tolerance.
	hitEpsilon = 1e-9

	treeMinChildren = 8
	treeMaxChildren = 32
)

// triangle is one indexed mesh element.
type triangle struct {
	tri   sdf.Triangle3
	owner canopy.BuildingID
	rect  rtreego.Rect
}

// Bounds implements rtreego.Spatial.
func (t *triangle) Bounds() rtreego.Rect { return t.rect }

// Mesh is an immutable merged occlusion surface. It is safe for concurrent
// queries once built.
type Mesh struct {
	tree      *rtreego.Rtree
	triangles []*triangle
	parts     []*tessellate.Mesh
}

// Hit describes the first intersection along a segment.
type Hit struct {
	Owner canopy.BuildingID // building whose envelope was hit
	T     float64           // fraction of the segment length, in (0, 1]
	Point geom.Point3
}

// Build tessellates every building of c and merges the result.
func Build(c *canopy.Canopy) (*Mesh, error) {
	parts, err := tessellate.Tessellate(c)
	if err != nil {
		return nil, err
	}
	return FromMeshes(parts), nil
}

// FromMeshes merges already tessellated meshes. Each mesh's PartName is
// recorded as the owner of its triangles.
func FromMeshes(parts []*tessellate.Mesh) *Mesh {
	m := &Mesh{parts: parts}
	var objs []rtreego.Spatial
	for _, p := range parts {
		for _, tri := range p.Triangles {
			t := &triangle{
				tri:   tri,
				owner: canopy.BuildingID(p.PartName),
				rect:  rectOf(tri[0], tri[1], tri[2]),
			}
			m.triangles = append(m.triangles, t)
			objs = append(objs, t)
		}
	}
	m.tree = rtreego.NewTree(3, treeMinChildren, treeMaxChildren, objs...)
	return m
}

// Parts returns the per-building meshes the occlusion mesh was merged from.
func (m *Mesh) Parts() []*tessellate.Mesh { return m.parts }

// TriangleCount returns the number of indexed triangles.
func (m *Mesh) TriangleCount() int { return len(m.triangles) }

func rectOf(pts ...geom.Point3) rtreego.Rect {
	lo, hi := pts[0], pts[0]
	for _, p := range pts[1:] {
		lo = geom.Point3{X: math.Min(lo.X, p.X), Y: math.Min(lo.Y, p.Y), Z: math.Min(lo.Z, p.Z)}
		hi = geom.Point3{X: math.Max(hi.X, p.X), Y: math.Max(hi.Y, p.Y), Z: math.Max(hi.Z, p.Z)}
	}
	r, _ := rtreego.NewRect(
		rtreego.Point{lo.X - rectPad, lo.Y - rectPad, lo.Z - rectPad},
		[]float64{hi.X - lo.X + 2*rectPad, hi.Y - lo.Y + 2*rectPad, hi.Z - lo.Z + 2*rectPad},
	)
	return r
}

// candidates returns the triangles whose bounds overlap the segment bounds.
func (m *Mesh) candidates(from, to geom.Point3) []*triangle {
	if m == nil || m.tree == nil || len(m.triangles) == 0 {
		return nil
	}
	found := m.tree.SearchIntersect(rectOf(from, to))
	out := make([]*triangle, len(found))
	for i, s := range found {
		out[i] = s.(*triangle)
	}
	return out
}

// FirstHit returns the intersection closest to from along the segment
// from→to, if any.
func (m *Mesh) FirstHit(from, to geom.Point3) (Hit, bool) {
	dir := to.Sub(from)
	best := Hit{T: math.Inf(1)}
	found := false
	for _, t := range m.candidates(from, to) {
		s, ok := intersectSegment(from, dir, t.tri)
		if ok && s < best.T {
			best = Hit{Owner: t.owner, T: s, Point: from.Add(dir.MulScalar(s))}
			found = true
		}
	}
	return best, found
}

// Blocked reports whether the segment from→to crosses any triangle. It
// stops at the first intersection found.
func (m *Mesh) Blocked(from, to geom.Point3) bool {
	dir := to.Sub(from)
	for _, t := range m.candidates(from, to) {
		if _, ok := intersectSegment(from, dir, t.tri); ok {
			return true
		}
	}
	return false
}

// Intersections counts every triangle crossed by the segment from→to.
func (m *Mesh) Intersections(from, to geom.Point3) int {
	dir := to.Sub(from)
	n := 0
	for _, t := range m.candidates(from, to) {
		if _, ok := intersectSegment(from, dir, t.tri); ok {
			n++
		}
	}
	return n
}

// intersectSegment is Möller–Trumbore restricted to the segment
// origin + s·dir, s ∈ (0, 1]. Rays parallel to the triangle plane miss.
func intersectSegment(origin, dir geom.Point3, tri sdf.Triangle3) (float64, bool) {
	edge1 := tri[1].Sub(tri[0])
	edge2 := tri[2].Sub(tri[0])
	pvec := dir.Cross(edge2)
	det := edge1.Dot(pvec)
	if math.Abs(det) < hitEpsilon {
		return 0, false
	}
	inv := 1 / det

	tvec := origin.Sub(tri[0])
	u := tvec.Dot(pvec) * inv
	if u < -hitEpsilon || u > 1+hitEpsilon {
		return 0, false
	}
	qvec := tvec.Cross(edge1)
	v := dir.Dot(qvec) * inv
	if v < -hitEpsilon || u+v > 1+hitEpsilon {
		return 0, false
	}
	s := edge2.Dot(qvec) * inv
	if s <= hitEpsilon || s > 1 {
		return 0, false
	}
	return s, true
}
