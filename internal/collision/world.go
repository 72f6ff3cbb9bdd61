package collision

import (
	"math"
	"sync"

	"github.com/gravitas-games/hexnav/internal/hex"
)

// Box is an axis-aligned obstacle.
type Box struct {
	Center      hex.Vec3 `json:"center"`
	HalfExtents hex.Vec3 `json:"half_extents"`
}

// obb is an oriented box used by the separating axis test.
type obb struct {
	center hex.Vec3
	axes   [3]hex.Vec3
	half   [3]float64
}

func (b Box) obb() obb {
	return obb{
		center: b.Center,
		axes:   Identity.Axes(),
		half:   [3]float64{b.HalfExtents.X, b.HalfExtents.Y, b.HalfExtents.Z},
	}
}

// World is a set of static obstacles. It is safe for concurrent use.
type World struct {
	mu    sync.RWMutex
	boxes []Box
}

// NewWorld creates a world holding the given obstacles.
func NewWorld(boxes ...Box) *World {
	return &World{boxes: append([]Box(nil), boxes...)}
}

// Add inserts an obstacle.
func (w *World) Add(b Box) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.boxes = append(w.boxes, b)
}

// Len returns the number of obstacles.
func (w *World) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.boxes)
}

// Overlaps reports whether the oriented box touches any obstacle.
func (w *World) Overlaps(center, halfExtents hex.Vec3, rot Rotation) bool {
	probe := obb{
		center: center,
		axes:   rot.Axes(),
		half:   [3]float64{halfExtents.X, halfExtents.Y, halfExtents.Z},
	}

	w.mu.RLock()
	defer w.mu.RUnlock()

	for _, b := range w.boxes {
		if probe.intersects(b.obb()) {
			return true
		}
	}
	return false
}

// intersects runs the 15-axis separating axis test. Touching boxes overlap.
func (a obb) intersects(b obb) bool {
	d := b.center.Sub(a.center)

	separated := func(l hex.Vec3) bool {
		var ra, rb float64
		for i := 0; i < 3; i++ {
			ra += a.half[i] * math.Abs(a.axes[i].Dot(l))
			rb += b.half[i] * math.Abs(b.axes[i].Dot(l))
		}
		return math.Abs(d.Dot(l)) > ra+rb
	}

	for i := 0; i < 3; i++ {
		if separated(a.axes[i]) || separated(b.axes[i]) {
			return false
		}
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			l := a.axes[i].Cross(b.axes[j])
			// parallel edges give no new axis
			if l.Len() < 1e-9 {
				continue
			}
			if separated(l) {
				return false
			}
		}
	}
	return true
}
