package canopy

import (
	"fmt"
	"sync"

	"github.com/paulmach/orb"

	"github.com/chazu/umbra/pkg/geom"
)

// BuildingID identifies a building within a canopy.
type BuildingID string

// FaceRef names one surface of one building.
type FaceRef struct {
	Building BuildingID `json:"building"`
	Index    int        `json:"index"`
}

func (r FaceRef) String() string {
	return fmt.Sprintf("%s#%d", r.Building, r.Index)
}

// SurfaceKind classifies a detailed room-model surface.
type SurfaceKind int

const (
	SurfaceWall SurfaceKind = iota
	SurfaceRoof
	SurfaceFloor
	SurfaceAperture
	SurfaceShade
)

func (k SurfaceKind) String() string {
	switch k {
	case SurfaceWall:
		return "wall"
	case SurfaceRoof:
		return "roof"
	case SurfaceFloor:
		return "floor"
	case SurfaceAperture:
		return "aperture"
	case SurfaceShade:
		return "shade"
	default:
		return "unknown"
	}
}

// DetailedSurface is one face of a building's room model.
type DetailedSurface struct {
	Name string
	Kind SurfaceKind
	Face geom.Face
}

// Geometry implements geom.Surface.
func (s DetailedSurface) Geometry() geom.Face { return s.Face }

// Building is one entry of the canopy. Its envelope is derived from the
// footprint, elevation and height and cached until one of them changes.
type Building struct {
	ID        BuildingID
	Target    bool // must be filtered, not only used as context
	footprint orb.Ring
	elevation float64
	height    float64
	detailed  []DetailedSurface

	mu       sync.Mutex
	envelope *geom.Envelope
	envErr   error
}

// NewBuilding returns a building standing on footprint.
func NewBuilding(id BuildingID, footprint orb.Ring, elevation, height float64) *Building {
	return &Building{
		ID:        id,
		footprint: footprint.Clone(),
		elevation: elevation,
		height:    height,
	}
}

// Footprint returns a copy of the footprint ring.
func (b *Building) Footprint() orb.Ring { return b.footprint.Clone() }

// Elevation returns the ground elevation of the footprint.
func (b *Building) Elevation() float64 { return b.elevation }

// Height returns the extrusion height.
func (b *Building) Height() float64 { return b.height }

// SetFootprint replaces the footprint and invalidates the envelope.
func (b *Building) SetFootprint(r orb.Ring) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.footprint = r.Clone()
	b.invalidate()
}

// SetHeight replaces the height and invalidates the envelope.
func (b *Building) SetHeight(h float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.height = h
	b.invalidate()
}

// SetElevation replaces the elevation and invalidates the envelope.
func (b *Building) SetElevation(e float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.elevation = e
	b.invalidate()
}

// SetDetailedSurfaces attaches the room-model surfaces used by Pass-2.
func (b *Building) SetDetailedSurfaces(s []DetailedSurface) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.detailed = append([]DetailedSurface(nil), s...)
}

func (b *Building) invalidate() {
	b.envelope = nil
	b.envErr = nil
}

// Envelope returns the cached envelope, computing it on first use.
func (b *Building) Envelope() (geom.Envelope, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.envelope == nil && b.envErr == nil {
		env, err := geom.Extrude(b.footprint, b.elevation, b.height)
		if err != nil {
			b.envErr = fmt.Errorf("building %s: %w", b.ID, err)
		} else {
			b.envelope = &env
		}
	}
	if b.envErr != nil {
		return geom.Envelope{}, b.envErr
	}
	return *b.envelope, nil
}

// Surfaces returns the surfaces Pass-2 tests: the detailed room model when
// one is attached, otherwise the envelope faces.
func (b *Building) Surfaces() ([]geom.Surface, error) {
	b.mu.Lock()
	detailed := b.detailed
	b.mu.Unlock()

	if len(detailed) > 0 {
		out := make([]geom.Surface, len(detailed))
		for i, s := range detailed {
			out[i] = s
		}
		return out, nil
	}

	env, err := b.Envelope()
	if err != nil {
		return nil, err
	}
	out := make([]geom.Surface, len(env.Faces))
	for i, f := range env.Faces {
		out[i] = f
	}
	return out, nil
}
