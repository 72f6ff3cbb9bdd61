// Package hexgrid stores values on a sparse three-dimensional hex grid
// keyed by axial coordinate and height layer.
package hexgrid

import (
	"sort"
	"sync"

	"github.com/gravitas-games/hexnav/internal/hex"
)

// Unbounded disables the height band filter in Radius.
const Unbounded = -1

// Grid maps axial coordinates to values. Absent coordinates report no value.
// Entries are inserted or overwritten, never removed. It is safe for
// concurrent use.
type Grid[T any] struct {
	mu    sync.RWMutex
	cells map[hex.Axial]T

	// populated layers per planar column, ascending
	columns map[hex.Axial][]int
}

// New creates an empty grid.
func New[T any]() *Grid[T] {
	return &Grid[T]{
		cells:   make(map[hex.Axial]T),
		columns: make(map[hex.Axial][]int),
	}
}

// Get returns the value stored at a, if any.
func (g *Grid[T]) Get(a hex.Axial) (T, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	v, ok := g.cells[a]
	return v, ok
}

// Set inserts or overwrites the value at a.
func (g *Grid[T]) Set(a hex.Axial, v T) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.cells[a]; !ok {
		col := a.Planar()
		layers := g.columns[col]
		i := sort.SearchInts(layers, a.H)
		layers = append(layers, 0)
		copy(layers[i+1:], layers[i:])
		layers[i] = a.H
		g.columns[col] = layers
	}
	g.cells[a] = v
}

// Len returns the number of populated coordinates.
func (g *Grid[T]) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.cells)
}

// Each calls fn for every populated coordinate in unspecified order.
// fn must not modify the grid.
func (g *Grid[T]) Each(fn func(a hex.Axial, v T)) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for a, v := range g.cells {
		fn(a, v)
	}
}

// Radius returns every populated value whose planar distance from center is
// between 1 and ring inclusive and whose layer is within heightBand of
// center's layer. heightBand == Unbounded accepts any layer. Order is
// unspecified.
func (g *Grid[T]) Radius(center hex.Axial, ring, heightBand int) []T {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if ring < 1 || len(g.cells) == 0 {
		return nil
	}

	var out []T
	for k := 1; k <= ring; k++ {
		for _, a := range hex.Ring(center, k) {
			layers := g.columns[a.Planar()]
			if len(layers) == 0 {
				continue
			}
			start, end := 0, len(layers)
			if heightBand >= 0 {
				start = sort.SearchInts(layers, center.H-heightBand)
				end = sort.SearchInts(layers, center.H+heightBand+1)
			}
			for _, h := range layers[start:end] {
				a.H = h
				out = append(out, g.cells[a])
			}
		}
	}
	return out
}
