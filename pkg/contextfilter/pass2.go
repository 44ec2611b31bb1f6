package contextfilter

import (
	"errors"
	"fmt"

	"github.com/chazu/umbra/pkg/canopy"
	"github.com/chazu/umbra/pkg/config"
	"github.com/chazu/umbra/pkg/geom"
	"github.com/chazu/umbra/pkg/occlusion"
	"github.com/chazu/umbra/pkg/raycast"
	"github.com/chazu/umbra/pkg/viewfactor"
)

// Visibility is the Pass-2 verdict for one candidate surface.
type Visibility int

const (
	Obstructed   Visibility = iota // no clear sight line from any facing target face
	Unobstructed                   // at least one clear sight line
	Undetermined                   // nothing clear, and some facing pair had only degenerate rays
)

func (v Visibility) String() string {
	switch v {
	case Obstructed:
		return "obstructed"
	case Unobstructed:
		return "unobstructed"
	case Undetermined:
		return "undetermined"
	default:
		return fmt.Sprintf("Visibility(%d)", int(v))
	}
}

// IsUnobstructed tests candidate against every non-horizontal target face
// facing it. The candidate is unobstructed as soon as one ray toward it
// crosses no mesh triangle. Pairs whose rays are all degenerate make the
// verdict Undetermined unless another pair is clear.
func IsUnobstructed(target geom.Envelope, candidate geom.Surface, mesh *occlusion.Mesh, opts raycast.Options) (Visibility, error) {
	if err := config.CheckRayCount(opts.Count); err != nil {
		return Obstructed, err
	}
	cf := candidate.Geometry()
	undetermined := false
	for _, tf := range sideFaces(target.Faces) {
		if !viewfactor.Facing(tf, cf) {
			continue
		}
		bundle, err := raycast.Between(tf, candidate, opts)
		if err != nil {
			if errors.Is(err, raycast.ErrDegenerateRay) {
				undetermined = true
				continue
			}
			return Obstructed, err
		}
		for _, r := range bundle.Rays {
			if !mesh.Blocked(r.Origin, r.Target) {
				return Unobstructed, nil
			}
		}
	}
	if undetermined {
		return Undetermined, nil
	}
	return Obstructed, nil
}

// SelectNonObstructedSurfaces runs IsUnobstructed over every surface of
// every candidate building and returns the unobstructed and undetermined
// surface references, in candidate then surface order.
func SelectNonObstructedSurfaces(target geom.Envelope, candidates []*canopy.Building, mesh *occlusion.Mesh, opts raycast.Options) (kept, undetermined []canopy.FaceRef, err error) {
	if err := config.CheckRayCount(opts.Count); err != nil {
		return nil, nil, err
	}
	for _, b := range candidates {
		surfaces, err := b.Surfaces()
		if err != nil {
			return nil, nil, err
		}
		for i, s := range surfaces {
			v, err := IsUnobstructed(target, s, mesh, opts)
			if err != nil {
				return nil, nil, fmt.Errorf("building %s surface %d: %w", b.ID, i, err)
			}
			ref := canopy.FaceRef{Building: b.ID, Index: i}
			switch v {
			case Unobstructed:
				kept = append(kept, ref)
			case Undetermined:
				undetermined = append(undetermined, ref)
			}
		}
	}
	return kept, undetermined, nil
}
