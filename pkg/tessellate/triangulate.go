package tessellate

import (
	"github.com/deadsy/sdfx/sdf"

	"github.com/chazu/umbra/pkg/geom"
)

// Triangulate splits a planar face into triangles by ear clipping in the
// face plane. Triangle winding follows the face normal. Convex faces yield
// len(points)-2 triangles.
func Triangulate(f geom.Face) []sdf.Triangle3 {
	pts := f.Points()
	if len(pts) < 3 {
		return nil
	}
	if len(pts) == 3 {
		return []sdf.Triangle3{{pts[0], pts[1], pts[2]}}
	}

	// Project onto an orthonormal basis (u, v) with u × v = normal so the
	// loop is counter-clockwise in 2-D.
	n := f.Normal()
	u := pts[1].Sub(pts[0]).Normalize()
	v := n.Cross(u)
	xy := make([][2]float64, len(pts))
	for i, p := range pts {
		d := p.Sub(pts[0])
		xy[i] = [2]float64{d.Dot(u), d.Dot(v)}
	}

	idx := make([]int, len(pts))
	for i := range idx {
		idx[i] = i
	}

	tris := make([]sdf.Triangle3, 0, len(pts)-2)
	guard := 0
	for len(idx) > 3 && guard < len(pts)*len(pts) {
		guard++
		clipped := false
		for i := range idx {
			a := idx[(i+len(idx)-1)%len(idx)]
			b := idx[i]
			c := idx[(i+1)%len(idx)]
			if !isEar(xy, idx, a, b, c) {
				continue
			}
			tris = append(tris, sdf.Triangle3{pts[a], pts[b], pts[c]})
			idx = append(idx[:i], idx[i+1:]...)
			clipped = true
			break
		}
		if !clipped {
			break
		}
	}

	// Whatever is left (the last triangle, or a loop the clipper could not
	// resolve) is fanned.
	for i := 1; i+1 < len(idx); i++ {
		tris = append(tris, sdf.Triangle3{pts[idx[0]], pts[idx[i]], pts[idx[i+1]]})
	}
	return tris
}

func cross2(o, a, b [2]float64) float64 {
	return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
}

func isEar(xy [][2]float64, idx []int, a, b, c int) bool {
	if cross2(xy[a], xy[b], xy[c]) <= 1e-12 {
		return false // reflex or collinear
	}
	for _, k := range idx {
		if k == a || k == b || k == c {
			continue
		}
		if inTriangle(xy[k], xy[a], xy[b], xy[c]) {
			return false
		}
	}
	return true
}

func inTriangle(p, a, b, c [2]float64) bool {
	return cross2(a, b, p) >= 0 && cross2(b, c, p) >= 0 && cross2(c, a, p) >= 0
}
