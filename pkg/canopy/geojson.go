package canopy

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// DefaultHeight is used for features that carry no usable height property.
const DefaultHeight = 10.0

// LoadGeoJSON reads a FeatureCollection of building footprints. Coordinates
// must be in a projected, metric CRS. Recognised properties are "id",
// "height", "elevation" and "target". Features that cannot be turned into a
// building are skipped and reported in the returned error, which wraps every
// skip; the canopy of the remaining buildings is still returned.
func LoadGeoJSON(r io.Reader) (*Canopy, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("canopy: read geojson: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("canopy: parse geojson: %w", err)
	}

	c := New()
	var skipped []error
	for i, f := range fc.Features {
		ring, ok := outerRing(f.Geometry)
		if !ok {
			skipped = append(skipped, fmt.Errorf("feature %d: unsupported geometry %T", i, f.Geometry))
			continue
		}

		id := BuildingID(f.Properties.MustString("id", ""))
		if id == "" {
			if s, ok := f.ID.(string); ok && s != "" {
				id = BuildingID(s)
			} else {
				id = BuildingID(fmt.Sprintf("building-%d", i))
			}
		}

		b := NewBuilding(id, ring,
			f.Properties.MustFloat64("elevation", 0),
			f.Properties.MustFloat64("height", DefaultHeight),
		)
		b.Target = f.Properties.MustBool("target", false)
		if err := c.Add(b); err != nil {
			skipped = append(skipped, fmt.Errorf("feature %d: %w", i, err))
		}
	}
	return c, errors.Join(skipped...)
}

// outerRing returns the exterior ring of a polygon, or of the largest polygon
// of a multipolygon. Holes are ignored: courtyards do not change which
// surfaces face outward.
func outerRing(g orb.Geometry) (orb.Ring, bool) {
	switch geo := g.(type) {
	case orb.Polygon:
		if len(geo) == 0 {
			return nil, false
		}
		return geo[0], true
	case orb.MultiPolygon:
		var (
			best     orb.Ring
			bestArea float64
		)
		for _, p := range geo {
			if len(p) == 0 {
				continue
			}
			if a := math.Abs(planar.Area(p[0])); a > bestArea {
				best, bestArea = p[0], a
			}
		}
		return best, best != nil
	default:
		return nil, false
	}
}
