package viewfactor

import (
	"math"

	"github.com/chazu/umbra/pkg/geom"
	"github.com/chazu/umbra/pkg/tessellate"
)

// sample is one quadrature point with its area weight.
type sample struct {
	p geom.Point3
	w float64
}

// Numerical estimates the unobstructed view factor from face a to face b by
// midpoint quadrature of cosθa·cosθb/(π r²) over both surfaces. Each
// triangle of a face is split into subdivisions² congruent sub-triangles.
// Only the front side of each face emits or receives.
func Numerical(a, b geom.Face, subdivisions int) float64 {
	if subdivisions < 1 {
		subdivisions = 1
	}
	sa := samples(a, subdivisions)
	sb := samples(b, subdivisions)
	na, nb := a.Normal(), b.Normal()

	var sum float64
	for _, pa := range sa {
		for _, pb := range sb {
			r := pb.p.Sub(pa.p)
			r2 := r.Dot(r)
			if r2 == 0 {
				continue
			}
			rl := math.Sqrt(r2)
			cosA := na.Dot(r) / rl
			cosB := -nb.Dot(r) / rl
			if cosA <= 0 || cosB <= 0 {
				continue
			}
			sum += cosA * cosB / (math.Pi * r2) * pa.w * pb.w
		}
	}
	return sum / a.Area()
}

func samples(f geom.Face, n int) []sample {
	var out []sample
	for _, tri := range tessellate.Triangulate(f) {
		out = append(out, subdivide(tri[0], tri[1], tri[2], n)...)
	}
	return out
}

// subdivide splits triangle abc into n² sub-triangles on a barycentric grid
// and returns their centroids.
func subdivide(a, b, c geom.Point3, n int) []sample {
	e1 := b.Sub(a).MulScalar(1 / float64(n))
	e2 := c.Sub(a).MulScalar(1 / float64(n))
	area := e1.Cross(e2).Length() / 2

	at := func(i, j int) geom.Point3 {
		return a.Add(e1.MulScalar(float64(i))).Add(e2.MulScalar(float64(j)))
	}
	out := make([]sample, 0, n*n)
	for i := 0; i < n; i++ {
		for j := 0; i+j < n; j++ {
			p0, p1, p2 := at(i, j), at(i+1, j), at(i, j+1)
			out = append(out, sample{p: centroid(p0, p1, p2), w: area})
			if i+j+2 <= n {
				p3 := at(i+1, j+1)
				out = append(out, sample{p: centroid(p1, p3, p2), w: area})
			}
		}
	}
	return out
}

func centroid(a, b, c geom.Point3) geom.Point3 {
	return a.Add(b).Add(c).MulScalar(1.0 / 3.0)
}
