// Package contextfilter decides, for every target building of a canopy,
// which surfaces of the other buildings can shade it or be shaded by it.
//
// Pass-1 screens whole buildings with the facing test and the majorized view
// factor bound over oriented bounding boxes. Pass-2 fires canonical sight
// rays from the target envelope to every surface of the surviving buildings
// against a merged occlusion mesh and keeps the surfaces at least one ray
// reaches unobstructed.
package contextfilter
