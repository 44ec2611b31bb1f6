package contextfilter

import (
	"cmp"
	"slices"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/chazu/umbra/pkg/canopy"
	"github.com/chazu/umbra/pkg/config"
)

// SelectionResult is the filtering outcome for one target building. It is
// assembled once and never mutated afterwards.
type SelectionResult struct {
	RunID              uuid.UUID           `json:"run_id"`
	Target             canopy.BuildingID   `json:"target"`
	CandidateBuildings []canopy.BuildingID `json:"candidate_buildings"`
	KeptFaces          []canopy.FaceRef    `json:"kept_faces"`
	Undetermined       []canopy.FaceRef    `json:"undetermined,omitempty"`
}

// newSelectionResult sorts and copies its inputs.
func newSelectionResult(run uuid.UUID, target canopy.BuildingID, candidates []canopy.BuildingID, kept, undetermined []canopy.FaceRef) *SelectionResult {
	ids := lo.Uniq(candidates)
	slices.Sort(ids)
	return &SelectionResult{
		RunID:              run,
		Target:             target,
		CandidateBuildings: ids,
		KeptFaces:          sortRefs(kept),
		Undetermined:       sortRefs(undetermined),
	}
}

func sortRefs(refs []canopy.FaceRef) []canopy.FaceRef {
	out := lo.Uniq(refs)
	slices.SortFunc(out, func(a, b canopy.FaceRef) int {
		if c := cmp.Compare(a.Building, b.Building); c != 0 {
			return c
		}
		return cmp.Compare(a.Index, b.Index)
	})
	return out
}

// IsEmpty reports whether the target has no context at all.
func (r *SelectionResult) IsEmpty() bool {
	return len(r.CandidateBuildings) == 0 && len(r.KeptFaces) == 0
}

// KeptBuildings returns the sorted set of buildings owning a kept face.
func (r *SelectionResult) KeptBuildings() []canopy.BuildingID {
	ids := lo.Uniq(lo.Map(r.KeptFaces, func(f canopy.FaceRef, _ int) canopy.BuildingID { return f.Building }))
	slices.Sort(ids)
	return ids
}

// Report gathers the results of one run.
type Report struct {
	RunID         uuid.UUID                              `json:"run_id"`
	Config        config.Config                          `json:"config"`
	Order         []canopy.BuildingID                    `json:"order"`
	Results       map[canopy.BuildingID]*SelectionResult `json:"results"`
	MeshTriangles int                                    `json:"mesh_triangles"`
}

// Result returns the selection for target, or nil.
func (r *Report) Result(target canopy.BuildingID) *SelectionResult {
	return r.Results[target]
}
