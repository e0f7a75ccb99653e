package geometry

// Represents a 3D coordinate in a projected or geographic reference system
type Coordinate struct {
	X float64
	Y float64
	Z float64
}

// Sub returns the component-wise difference c - o
func (c Coordinate) Sub(o Coordinate) Coordinate {
	return Coordinate{X: c.X - o.X, Y: c.Y - o.Y, Z: c.Z - o.Z}
}

// Dot returns the scalar product of c and o
func (c Coordinate) Dot(o Coordinate) float64 {
	return c.X*o.X + c.Y*o.Y + c.Z*o.Z
}

func (c Coordinate) Array() [3]float64 {
	return [3]float64{c.X, c.Y, c.Z}
}

func FromArray(a [3]float64) Coordinate {
	return Coordinate{X: a[0], Y: a[1], Z: a[2]}
}
