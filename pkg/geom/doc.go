// Package geom defines the planar-face and building-envelope primitives used
// by the context filter. Faces are immutable once constructed; all derived
// attributes (centroid, area, unit normal, bounds) are computed up front.
package geom
