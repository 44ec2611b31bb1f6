package canopy

import (
	"fmt"

	"github.com/samber/lo"
)

// Canopy is an ordered collection of buildings with an ID index.
type Canopy struct {
	order []BuildingID
	byID  map[BuildingID]*Building
}

// New returns an empty canopy.
func New() *Canopy {
	return &Canopy{byID: make(map[BuildingID]*Building)}
}

// Add inserts a building. IDs must be unique.
func (c *Canopy) Add(b *Building) error {
	if b == nil {
		return fmt.Errorf("canopy: nil building")
	}
	if b.ID == "" {
		return fmt.Errorf("canopy: building has empty ID")
	}
	if _, exists := c.byID[b.ID]; exists {
		return fmt.Errorf("canopy: duplicate building ID %q", b.ID)
	}
	c.byID[b.ID] = b
	c.order = append(c.order, b.ID)
	return nil
}

// Get returns the building with the given ID, or nil.
func (c *Canopy) Get(id BuildingID) *Building {
	return c.byID[id]
}

// Len returns the number of buildings.
func (c *Canopy) Len() int { return len(c.order) }

// IDs returns building IDs in insertion order.
func (c *Canopy) IDs() []BuildingID {
	return append([]BuildingID(nil), c.order...)
}

// Buildings returns all buildings in insertion order.
func (c *Canopy) Buildings() []*Building {
	return lo.Map(c.order, func(id BuildingID, _ int) *Building { return c.byID[id] })
}

// Targets returns the buildings flagged for filtering, in insertion order.
func (c *Canopy) Targets() []*Building {
	return lo.Filter(c.Buildings(), func(b *Building, _ int) bool { return b.Target })
}

// Others returns every building except id, in insertion order.
func (c *Canopy) Others(id BuildingID) []*Building {
	return lo.Filter(c.Buildings(), func(b *Building, _ int) bool { return b.ID != id })
}
