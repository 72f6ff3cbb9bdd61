package ai

import "github.com/gravitas-games/hexnav/internal/hex"

// Cell is one populated grid cell. Identity is its coordinate; Center is the
// world position computed once at creation. Search state never lives on the
// cell, so cells can be shared by concurrent queries.
type Cell struct {
	Coord  hex.Axial
	Center hex.Vec3
}

// NewCell creates the cell at a, caching its world center under layout l.
func NewCell(a hex.Axial, l hex.Layout) *Cell {
	return &Cell{Coord: a, Center: l.ToWorld(a)}
}

// DistBetween returns the planar hex distance between two cells, ignoring
// height.
func DistBetween(a, b *Cell) int {
	return hex.Distance(a.Coord, b.Coord)
}
