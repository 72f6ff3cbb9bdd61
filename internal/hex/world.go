package hex

import "math"

// Vec3 is a world-space point or direction. Y is up.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Up is the world up axis.
var Up = Vec3{Y: 1}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

func (v Vec3) Scale(k float64) Vec3 { return Vec3{v.X * k, v.Y * k, v.Z * k} }

func (v Vec3) Dot(o Vec3) float64 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

// Cross returns v x o.
func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		X: v.Y*o.Z - v.Z*o.Y,
		Y: v.Z*o.X - v.X*o.Z,
		Z: v.X*o.Y - v.Y*o.X,
	}
}

func (v Vec3) Len() float64 { return math.Sqrt(v.Dot(v)) }

// Normalize returns v scaled to unit length, or the zero vector when v is
// too short to have a direction.
func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l < 1e-9 {
		return Vec3{}
	}
	return v.Scale(1 / l)
}

// Layout maps the hex lattice to world space. Radius is the cell radius
// (center to corner) and LayerHeight the world height of one layer.
type Layout struct {
	Radius      float64
	LayerHeight float64
}

// DefaultLayout uses unit cells and unit layers.
var DefaultLayout = Layout{Radius: 1, LayerHeight: 1}

// ToWorld returns the world-space center of a cell.
//
//	x = radius*1.5*r
//	y = layerHeight*h
//	z = radius*sqrt(3)*(q + r/2)
func (l Layout) ToWorld(a Axial) Vec3 {
	return Vec3{
		X: l.Radius * 1.5 * float64(a.R),
		Y: l.LayerHeight * float64(a.H),
		Z: l.Radius * math.Sqrt(3) * (float64(a.Q) + float64(a.R)/2.0),
	}
}

// FromWorld returns the cell containing a world-space point.
func (l Layout) FromWorld(p Vec3) Axial {
	q := (p.Z*math.Sqrt(3)/3 - p.X/3) / l.Radius
	r := p.X * (2.0 / 3.0) / l.Radius
	h := p.Y / l.LayerHeight

	c := CubeRound(q, -q-r, r)
	c.H = int(math.RoundToEven(h))
	return c.ToAxial()
}
