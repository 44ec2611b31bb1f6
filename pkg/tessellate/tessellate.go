// Package tessellate triangulates planar faces and walks a canopy producing
// one triangle mesh per building envelope.
package tessellate

import (
	"fmt"

	"github.com/deadsy/sdfx/sdf"

	"github.com/chazu/umbra/pkg/canopy"
	"github.com/chazu/umbra/pkg/geom"
)

// Mesh is a triangle mesh in flat buffer form.
// Vertices has 3 floats per vertex (x,y,z), Normals has 3 floats per vertex,
// Indices has 3 uint32s per triangle.
type Mesh struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`
	PartName string    `json:"partName"` // building the mesh came from

	// Triangles keeps full precision geometry for intersection queries.
	Triangles []sdf.Triangle3 `json:"-"`
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Vertices) == 0
}

// appendFace triangulates f into the mesh.
func (m *Mesh) appendFace(f geom.Face) {
	n := f.Normal()
	for _, tri := range Triangulate(f) {
		base := uint32(m.VertexCount())
		for j := 0; j < 3; j++ {
			v := tri[j]
			m.Vertices = append(m.Vertices, float32(v.X), float32(v.Y), float32(v.Z))
			m.Normals = append(m.Normals, float32(n.X), float32(n.Y), float32(n.Z))
			m.Indices = append(m.Indices, base+uint32(j))
		}
		m.Triangles = append(m.Triangles, tri)
	}
}

// FromFaces builds a named mesh from a list of faces.
func FromFaces(name string, faces []geom.Face) *Mesh {
	m := &Mesh{PartName: name}
	for _, f := range faces {
		m.appendFace(f)
	}
	return m
}

// Tessellate walks the canopy and produces one mesh per building envelope,
// in canopy order. The canopy is never mutated.
func Tessellate(c *canopy.Canopy) ([]*Mesh, error) {
	if c == nil {
		return nil, nil
	}

	meshes := make([]*Mesh, 0, c.Len())
	for _, b := range c.Buildings() {
		env, err := b.Envelope()
		if err != nil {
			return nil, fmt.Errorf("tessellate: %w", err)
		}
		meshes = append(meshes, FromFaces(string(b.ID), env.Faces))
	}
	return meshes, nil
}
