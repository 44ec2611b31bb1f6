// Package canopy holds the externally owned collection of buildings that the
// context filter reads. The filter never mutates a Canopy; callers must not
// modify one while a filtering run is in progress.
package canopy
