// Package ai answers movement queries on a hex grid: which adjacent cells can
// be entered, which cells are reachable within a number of steps, and the
// shortest path between two cells.
package ai

import (
	"github.com/gravitas-games/hexnav/internal/collision"
	"github.com/gravitas-games/hexnav/internal/hex"
	"github.com/gravitas-games/hexnav/internal/hexgrid"
)

// DefaultSearchHeight is the number of layers up or down a single step may
// climb.
const DefaultSearchHeight = 1

// Edge probe geometry. The probe sits one unit above the midpoint between
// two cell centers and faces along the edge.
const (
	probeLift          = 1.0
	probeHalfHeight    = 0.5
	probeHalfDepth     = 0.1
	probeLateralFactor = 1.0 / 6.0
)

// Controller owns the grid for one level and answers queries against it.
// Queries keep their scratch state local, so a Controller is safe for
// concurrent use as long as the Prober is.
type Controller struct {
	grid         *hexgrid.Grid[*Cell]
	layout       hex.Layout
	probe        collision.Prober
	searchHeight int
}

// Option configures a Controller.
type Option func(*Controller)

// WithProber sets the collision collaborator used to detect blocked edges.
// Without one every adjacent edge is open.
func WithProber(p collision.Prober) Option {
	return func(c *Controller) { c.probe = p }
}

// WithSearchHeight sets the layer band used by reachability and path search.
func WithSearchHeight(h int) Option {
	return func(c *Controller) { c.searchHeight = h }
}

// WithGrid makes the controller use an existing grid.
func WithGrid(g *hexgrid.Grid[*Cell]) Option {
	return func(c *Controller) { c.grid = g }
}

// NewController creates a controller with an empty grid.
func NewController(layout hex.Layout, opts ...Option) *Controller {
	c := &Controller{
		layout:       layout,
		searchHeight: DefaultSearchHeight,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.grid == nil {
		c.grid = hexgrid.New[*Cell]()
	}
	return c
}

// Layout returns the world layout of the grid.
func (c *Controller) Layout() hex.Layout { return c.layout }

// Grid returns the underlying grid.
func (c *Controller) Grid() *hexgrid.Grid[*Cell] { return c.grid }

// SearchHeight returns the layer band used by reachability and path search.
func (c *Controller) SearchHeight() int { return c.searchHeight }

// Cell returns the cell at a, if populated.
func (c *Controller) Cell(a hex.Axial) (*Cell, bool) {
	return c.grid.Get(a)
}

// SetCell stores cell at a, replacing any previous cell.
func (c *Controller) SetCell(a hex.Axial, cell *Cell) {
	c.grid.Set(a, cell)
}

// Populate creates a cell at a and stores it.
func (c *Controller) Populate(a hex.Axial) *Cell {
	cell := NewCell(a, c.layout)
	c.grid.Set(a, cell)
	return cell
}

// Locate returns the coordinate containing a world point and the cell there,
// if populated.
func (c *Controller) Locate(p hex.Vec3) (hex.Axial, *Cell, bool) {
	a := c.layout.FromWorld(p)
	cell, ok := c.grid.Get(a)
	return a, cell, ok
}

// ValidNeighbors returns the cells adjacent to cell within searchHeight
// layers whose shared edge is not obstructed. A negative searchHeight
// accepts any layer.
func (c *Controller) ValidNeighbors(cell *Cell, searchHeight int) []*Cell {
	candidates := c.grid.Radius(cell.Coord, 1, searchHeight)
	if c.probe == nil {
		return candidates
	}

	half := hex.Vec3{
		X: c.layout.Radius * probeLateralFactor,
		Y: probeHalfHeight,
		Z: probeHalfDepth,
	}
	out := candidates[:0]
	for _, n := range candidates {
		rot := collision.LookRotation(n.Center.Sub(cell.Center), hex.Up)
		if !c.probe.Overlaps(EdgeProbe(cell, n), half, rot) {
			out = append(out, n)
		}
	}
	return out
}

// EdgeProbe returns the probe center used for the edge between two cells.
func EdgeProbe(from, to *Cell) hex.Vec3 {
	mid := to.Center.Sub(from.Center).Scale(0.5)
	return mid.Add(from.Center).Add(hex.Up.Scale(probeLift))
}
