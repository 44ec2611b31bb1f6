// Package viewfactor holds the radiative screening tests of the context
// filter: the facing classifier, the majorized view factor bound, and the
// reference solvers the bound is validated against.
package viewfactor

import (
	"math"

	"github.com/chazu/umbra/pkg/geom"
)

// MinDistance floors the centroid distance fed to Majorized so that
// coincident or overlapping surfaces do not divide by zero.
const MinDistance = 0.01

// Facing reports whether faces a and b can exchange radiation: b's normal
// points toward a and a's normal points toward b. Coplanar, back-to-back and
// centroid-perpendicular configurations are not facing.
func Facing(a, b geom.Face) bool {
	v := a.Centroid().Sub(b.Centroid())
	return b.Normal().Dot(v) > 0 && a.Normal().Dot(v) < 0
}

// Majorized returns an upper bound on the view factor from a surface of
// areaA to a surface of areaB whose centroids are dist apart. It is the view
// factor between two coaxial parallel squares of those areas, the
// configuration that maximises exchange for given areas and distance.
//
// The result may exceed 1 for very close surfaces; it is a screening bound,
// not a physical value.
func Majorized(areaA, areaB, dist float64) float64 {
	d := math.Max(dist, MinDistance)
	w1 := math.Sqrt(areaA) / d
	w2 := math.Sqrt(areaB) / d
	x := w2 - w1
	y := w2 + w1

	p := math.Pow(w1*w1+w2*w2+2, 2)
	q := (x*x + 2) * (y*y + 2)
	u := math.Sqrt(x*x + 4)
	v := math.Sqrt(y*y + 4)
	s := u * (x*math.Atan(x/u) - y*math.Atan(y/u))
	t := v * (x*math.Atan(x/v) - y*math.Atan(y/v))

	return (math.Log(p/q) + s - t) / (math.Pi * w1 * w1)
}

// MajorizedFaces applies Majorized to two faces using their areas and
// centroid distance.
func MajorizedFaces(a, b geom.Face) float64 {
	return Majorized(a.Area(), b.Area(), geom.Distance(a.Centroid(), b.Centroid()))
}

// ParallelRectangles is the closed-form view factor between two identical,
// directly opposed parallel rectangles of sides a and b separated by c.
func ParallelRectangles(a, b, c float64) float64 {
	x := a / c
	y := b / c
	x2, y2 := x*x, y*y
	sx := math.Sqrt(1 + x2)
	sy := math.Sqrt(1 + y2)

	sum := 0.5*math.Log((1+x2)*(1+y2)/(1+x2+y2)) +
		x*sy*math.Atan(x/sy) +
		y*sx*math.Atan(y/sx) -
		x*math.Atan(x) -
		y*math.Atan(y)
	return 2 / (math.Pi * x * y) * sum
}
