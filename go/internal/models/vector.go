package models

import "math"

// Vec3 is a position or velocity in world space
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

// Len returns the euclidean length of v
func (v Vec3) Len() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// DistanceTo returns the distance between v and o
func (v Vec3) DistanceTo(o Vec3) float64 {
	return v.Sub(o).Len()
}

// Lerp moves v toward o by fraction t (0 keeps v, 1 returns o)
func (v Vec3) Lerp(o Vec3, t float64) Vec3 {
	return v.Add(o.Sub(v).Scale(t))
}

// Rotation holds euler angles in radians. Y is yaw, the only axis the
// legacy wire format guarantees.
type Rotation struct {
	X float64 `json:"x,omitempty"`
	Y float64 `json:"y"`
	Z float64 `json:"z,omitempty"`
}

// Transform is the rendered or reported state of a player
type Transform struct {
	Position Vec3     `json:"position"`
	Rotation Rotation `json:"rotation"`
	Velocity Vec3     `json:"velocity"`
}

// AngleDelta returns the shortest signed arc from a to b, in (-pi, pi]
func AngleDelta(a, b float64) float64 {
	d := math.Mod(b-a, 2*math.Pi)
	if d > math.Pi {
		d -= 2 * math.Pi
	} else if d <= -math.Pi {
		d += 2 * math.Pi
	}
	return d
}
