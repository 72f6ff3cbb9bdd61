// Package level populates a movement grid and its collision world from
// configuration. Cell heights come from a simplex height field.
package level

import (
	"fmt"
	"log"
	"math"

	"github.com/dustin/go-humanize"
	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/gravitas-games/hexnav/internal/ai"
	"github.com/gravitas-games/hexnav/internal/collision"
	"github.com/gravitas-games/hexnav/internal/config"
	"github.com/gravitas-games/hexnav/internal/hex"
)

// wallHalfExtent is the half size of the obstacle placed on a walled edge.
// It is small enough to only catch the probe of that one edge.
const wallHalfExtent = 0.05

// Level is a populated grid plus the geometry its edges are probed against.
type Level struct {
	Name       string
	Radius     int
	Controller *ai.Controller
	World      *collision.World
}

// Build creates the level described by cfg.
func Build(lc config.LevelConfig, gc config.GridConfig) (*Level, error) {
	layout := hex.Layout{Radius: gc.CellRadius, LayerHeight: gc.LayerHeight}
	if layout.Radius <= 0 || layout.LayerHeight <= 0 {
		return nil, fmt.Errorf("level %s: grid dimensions must be positive", lc.Name)
	}

	log.Printf("Building level %s with radius %d", lc.Name, lc.Radius)

	world := collision.NewWorld()
	ctrl := ai.NewController(layout,
		ai.WithProber(world),
		ai.WithSearchHeight(gc.SearchHeight),
	)

	lvl := &Level{
		Name:       lc.Name,
		Radius:     lc.Radius,
		Controller: ctrl,
		World:      world,
	}

	lvl.populate(lc)

	for _, c := range lc.Cells {
		ctrl.Populate(hex.Axial{Q: c[0], R: c[1], H: c[2]})
	}

	for _, w := range lc.Walls {
		from, to := axial(w.From), axial(w.To)
		for _, end := range []hex.Axial{from, to} {
			if _, ok := ctrl.Cell(end); !ok {
				return nil, fmt.Errorf("level %s: wall end %+v is not a populated cell", lc.Name, end)
			}
		}
		if err := lvl.AddWall(from, to); err != nil {
			return nil, fmt.Errorf("level %s: %w", lc.Name, err)
		}
	}
	for _, b := range lc.Boxes {
		world.Add(collision.Box{
			Center:      hex.Vec3{X: b.Center[0], Y: b.Center[1], Z: b.Center[2]},
			HalfExtents: hex.Vec3{X: b.HalfExtents[0], Y: b.HalfExtents[1], Z: b.HalfExtents[2]},
		})
	}

	log.Printf("Level %s populated with %s cells and %s obstacles",
		lc.Name, humanize.Comma(int64(ctrl.Grid().Len())), humanize.Comma(int64(world.Len())))
	return lvl, nil
}

// populate fills a hex disk around the origin, one cell per column.
func (l *Level) populate(lc config.LevelConfig) {
	holes := make(map[hex.Axial]bool, len(lc.Holes))
	for _, h := range lc.Holes {
		holes[hex.Axial{Q: h[0], R: h[1]}] = true
	}

	var noise opensimplex.Noise
	if lc.MaxLayer > 0 {
		noise = opensimplex.NewNormalized(lc.Seed)
	}

	for _, a := range hex.Disk(hex.Axial{}, lc.Radius) {
		if holes[a] {
			continue
		}
		if noise != nil {
			a.H = layerAt(noise, a, lc.NoiseFrequency, lc.MaxLayer)
		}
		l.Controller.Populate(a)
	}
}

// layerAt samples the height field at a column and quantises it into
// [0, maxLayer].
func layerAt(noise opensimplex.Noise, a hex.Axial, frequency float64, maxLayer int) int {
	// axial -> cartesian so the field is isotropic on the hex plane
	x := float64(a.Q) + float64(a.R)*0.5
	y := float64(a.R) * math.Sqrt(3.0) / 2.0

	v := noise.Eval2(x*frequency, y*frequency)
	layer := int(v * float64(maxLayer+1))
	if layer > maxLayer {
		layer = maxLayer
	}
	if layer < 0 {
		layer = 0
	}
	return layer
}

// AddWall blocks the edge between two adjacent coordinates in both
// directions.
func (l *Level) AddWall(from, to hex.Axial) error {
	if hex.Distance(from, to) != 1 {
		return fmt.Errorf("wall %+v -> %+v does not join adjacent cells", from, to)
	}
	layout := l.Controller.Layout()
	l.World.Add(collision.Box{
		Center: ai.EdgeProbe(ai.NewCell(from, layout), ai.NewCell(to, layout)),
		HalfExtents: hex.Vec3{
			X: wallHalfExtent,
			Y: wallHalfExtent,
			Z: wallHalfExtent,
		},
	})
	return nil
}

// CellCount returns the number of populated cells.
func (l *Level) CellCount() int {
	return l.Controller.Grid().Len()
}

func axial(v [3]int) hex.Axial {
	return hex.Axial{Q: v[0], R: v[1], H: v[2]}
}
