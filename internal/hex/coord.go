package hex

import "math"

// Axial represents axial coordinates (q, r) on the hex plane plus a
// discrete height layer h.
type Axial struct {
	Q int `json:"q"`
	R int `json:"r"`
	H int `json:"h"`
}

// Cube represents cube coordinates (x, y, z) with x+y+z=0. H is carried
// alongside unchanged.
type Cube struct {
	X int
	Y int
	Z int
	H int
}

// Directions for planar axial neighbors. H is always zero.
var Directions = []Axial{
	{+1, 0, 0}, {+1, -1, 0}, {0, -1, 0}, {-1, 0, 0}, {-1, +1, 0}, {0, +1, 0},
}

// Add returns a+b in axial space.
func (a Axial) Add(b Axial) Axial { return Axial{a.Q + b.Q, a.R + b.R, a.H + b.H} }

// Mul scales an axial vector by k.
func (a Axial) Mul(k int) Axial { return Axial{a.Q * k, a.R * k, a.H * k} }

// Planar drops the height layer.
func (a Axial) Planar() Axial { return Axial{Q: a.Q, R: a.R} }

// ToCube converts axial to cube.
func (a Axial) ToCube() Cube {
	x := a.Q
	z := a.R
	y := -x - z
	return Cube{X: x, Y: y, Z: z, H: a.H}
}

// ToAxial converts cube to axial.
func (c Cube) ToAxial() Axial { return Axial{Q: c.X, R: c.Z, H: c.H} }

// Distance returns the planar hex distance between two axial coords.
// Height is ignored.
func Distance(a, b Axial) int {
	return DistanceCube(a.ToCube(), b.ToCube())
}

// DistanceCube returns the planar hex distance between two cube coords.
func DistanceCube(a, b Cube) int {
	return (abs(a.X-b.X) + abs(a.Y-b.Y) + abs(a.Z-b.Z)) / 2
}

// CubeRound rounds fractional cube coordinates to the nearest lattice point.
// The axis with the largest rounding error is recomputed from the other two
// so the result always satisfies x+y+z=0. Errors are compared x against y
// first, then y against z, and z is corrected when neither wins strictly.
func CubeRound(x, y, z float64) Cube {
	rx := math.RoundToEven(x)
	ry := math.RoundToEven(y)
	rz := math.RoundToEven(z)

	dx := math.Abs(rx - x)
	dy := math.Abs(ry - y)
	dz := math.Abs(rz - z)

	if dx > dy && dx > dz {
		rx = -ry - rz
	} else if dy > dz {
		ry = -rx - rz
	} else {
		rz = -rx - ry
	}
	return Cube{X: int(rx), Y: int(ry), Z: int(rz)}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
