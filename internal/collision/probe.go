// Package collision answers oriented-box overlap queries against level
// geometry.
package collision

import "github.com/gravitas-games/hexnav/internal/hex"

// Prober reports whether an oriented box overlaps any world geometry.
// Implementations must be read-only with respect to the world.
type Prober interface {
	Overlaps(center, halfExtents hex.Vec3, rot Rotation) bool
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(center, halfExtents hex.Vec3, rot Rotation) bool

func (f ProberFunc) Overlaps(center, halfExtents hex.Vec3, rot Rotation) bool {
	return f(center, halfExtents, rot)
}

// Rotation is an orthonormal basis. Half extents of a probe are measured
// along Right, Up and Forward respectively.
type Rotation struct {
	Right   hex.Vec3
	Up      hex.Vec3
	Forward hex.Vec3
}

// Identity is the world-aligned basis.
var Identity = Rotation{
	Right:   hex.Vec3{X: 1},
	Up:      hex.Vec3{Y: 1},
	Forward: hex.Vec3{Z: 1},
}

// LookRotation builds a basis whose forward axis points along forward and
// whose up axis is as close to up as possible. Right = up x forward, which
// keeps the basis left-handed like the world layout. A zero forward, or one
// parallel to up, yields Identity.
func LookRotation(forward, up hex.Vec3) Rotation {
	f := forward.Normalize()
	if f == (hex.Vec3{}) {
		return Identity
	}
	r := up.Cross(f).Normalize()
	if r == (hex.Vec3{}) {
		return Identity
	}
	return Rotation{Right: r, Up: f.Cross(r), Forward: f}
}

// Axes returns the basis as an array.
func (r Rotation) Axes() [3]hex.Vec3 {
	return [3]hex.Vec3{r.Right, r.Up, r.Forward}
}
