package ai

import "github.com/gravitas-games/hexnav/internal/hex"

// Fringes expands outward from center one step at a time. Tier 0 holds only
// center; tier k holds the cells first entered on step k. A cell appears in
// at most one tier. Expansion stops after steps tiers or when a tier comes
// up empty.
func (c *Controller) Fringes(center *Cell, steps int) [][]*Cell {
	visited := map[hex.Axial]bool{center.Coord: true}
	tiers := [][]*Cell{{center}}

	for k := 1; k <= steps; k++ {
		var next []*Cell
		for _, cell := range tiers[k-1] {
			for _, n := range c.ValidNeighbors(cell, c.searchHeight) {
				if visited[n.Coord] {
					continue
				}
				visited[n.Coord] = true
				next = append(next, n)
			}
		}
		if len(next) == 0 {
			break
		}
		tiers = append(tiers, next)
	}
	return tiers
}

// ReachableInSteps returns every cell reachable from center in at most steps
// moves, center included.
func (c *Controller) ReachableInSteps(center *Cell, steps int) map[hex.Axial]*Cell {
	out := make(map[hex.Axial]*Cell)
	for _, tier := range c.Fringes(center, steps) {
		for _, cell := range tier {
			out[cell.Coord] = cell
		}
	}
	return out
}
