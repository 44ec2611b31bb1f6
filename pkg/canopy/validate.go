package canopy

import (
	"fmt"
	"math"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// ValidationSeverity indicates whether a finding blocks filtering or is
// merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // blocks filtering
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	Building BuildingID // empty for canopy-level findings
	Message  string
	Severity ValidationSeverity
}

func (e ValidationError) Error() string {
	if e.Building == "" {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] building %s: %s", e.Severity, e.Building, e.Message)
}

// Validate checks every building's geometry and flags overlapping
// footprints. It is read-only.
func Validate(c *Canopy) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateEnvelopes(c)...)
	errs = append(errs, validateOverlaps(c)...)
	if len(c.Targets()) == 0 && c.Len() > 0 {
		errs = append(errs, ValidationError{
			Message:  "no building is flagged as target",
			Severity: SeverityWarning,
		})
	}
	return errs
}

// HasErrors reports whether any finding is blocking.
func HasErrors(errs []ValidationError) bool {
	for _, e := range errs {
		if e.Severity == SeverityError {
			return true
		}
	}
	return false
}

func validateEnvelopes(c *Canopy) []ValidationError {
	var errs []ValidationError
	for _, b := range c.Buildings() {
		if b.Height() <= 0 {
			errs = append(errs, ValidationError{
				Building: b.ID,
				Message:  fmt.Sprintf("height is %.4f, must be positive", b.Height()),
				Severity: SeverityError,
			})
			continue
		}
		if _, err := b.Envelope(); err != nil {
			errs = append(errs, ValidationError{
				Building: b.ID,
				Message:  err.Error(),
				Severity: SeverityError,
			})
		}
	}
	return errs
}

// footprintSpatial indexes a building footprint in a 2-D R-tree.
type footprintSpatial struct {
	b     *Building
	bound orb.Bound
}

// Bounds implements rtreego.Spatial.
func (f *footprintSpatial) Bounds() rtreego.Rect {
	return rect2(f.bound)
}

func rect2(b orb.Bound) rtreego.Rect {
	const pad = 1e-6
	r, _ := rtreego.NewRect(
		rtreego.Point{b.Min[0] - pad, b.Min[1] - pad},
		[]float64{b.Max[0] - b.Min[0] + 2*pad, b.Max[1] - b.Min[1] + 2*pad},
	)
	return r
}

// validateOverlaps warns when a footprint vertex or centroid lies strictly
// inside another building's footprint. Overlapping envelopes make rays start
// inside neighbouring geometry.
func validateOverlaps(c *Canopy) []ValidationError {
	var (
		errs    []ValidationError
		entries []*footprintSpatial
	)
	tree := rtreego.NewTree(2, 4, 16)
	for _, b := range c.Buildings() {
		fp := b.Footprint()
		if len(fp) < 3 {
			continue
		}
		e := &footprintSpatial{b: b, bound: fp.Bound()}
		entries = append(entries, e)
		tree.Insert(e)
	}

	seen := make(map[[2]BuildingID]bool)
	for _, e := range entries {
		fp := e.b.Footprint()
		probe := append(orb.Ring{}, fp...)
		if centroid, area := planar.CentroidArea(fp); math.Abs(area) > 0 {
			probe = append(probe, centroid)
		}
		for _, hit := range tree.SearchIntersect(e.Bounds()) {
			other := hit.(*footprintSpatial).b
			if other.ID == e.b.ID {
				continue
			}
			key := [2]BuildingID{e.b.ID, other.ID}
			if other.ID < e.b.ID {
				key = [2]BuildingID{other.ID, e.b.ID}
			}
			if seen[key] {
				continue
			}
			if ringOverlaps(other.Footprint(), probe) {
				seen[key] = true
				errs = append(errs, ValidationError{
					Building: e.b.ID,
					Message:  fmt.Sprintf("footprint overlaps building %s", other.ID),
					Severity: SeverityWarning,
				})
			}
		}
	}
	return errs
}

// ringOverlaps reports whether any probe point lies strictly inside ring.
func ringOverlaps(ring orb.Ring, probe []orb.Point) bool {
	if !ring.Closed() && len(ring) > 0 {
		ring = append(ring, ring[0])
	}
	for _, p := range probe {
		if planar.RingContains(ring, p) && !onBoundary(ring, p) {
			return true
		}
	}
	return false
}

func onBoundary(ring orb.Ring, p orb.Point) bool {
	for i := 0; i+1 < len(ring); i++ {
		if planar.DistanceFromSegment(ring[i], ring[i+1], p) <= 1e-9 {
			return true
		}
	}
	return false
}
