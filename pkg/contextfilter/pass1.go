package contextfilter

import (
	"github.com/chazu/umbra/pkg/canopy"
	"github.com/chazu/umbra/pkg/config"
	"github.com/chazu/umbra/pkg/geom"
	"github.com/chazu/umbra/pkg/viewfactor"
)

// SelectCandidateBuildings returns, in input order, the candidates whose
// bounding box has at least one non-horizontal face that faces a
// non-horizontal target face with a majorized view factor above minVF.
// Evaluation of a building stops at its first qualifying pair.
func SelectCandidateBuildings(target geom.Envelope, candidates []*canopy.Building, minVF float64) ([]canopy.BuildingID, error) {
	if err := config.CheckMinVF(minVF); err != nil {
		return nil, err
	}

	targetFaces := sideFaces(target.Faces)
	var kept []canopy.BuildingID
	for _, b := range candidates {
		env, err := b.Envelope()
		if err != nil {
			return nil, err
		}
		if anyPairAbove(targetFaces, sideFaces(env.BoundingFaces), minVF) {
			kept = append(kept, b.ID)
		}
	}
	return kept, nil
}

func anyPairAbove(targetFaces, candidateFaces []geom.Face, minVF float64) bool {
	for _, cf := range candidateFaces {
		for _, tf := range targetFaces {
			if !viewfactor.Facing(tf, cf) {
				continue
			}
			if viewfactor.MajorizedFaces(tf, cf) > minVF {
				return true
			}
		}
	}
	return false
}

// sideFaces drops faces with a vertical normal (roofs, floors).
func sideFaces(faces []geom.Face) []geom.Face {
	out := make([]geom.Face, 0, len(faces))
	for _, f := range faces {
		if !f.HasVerticalNormal() {
			out = append(out, f)
		}
	}
	return out
}
