package data

// Contains data of a LiDAR return, namely X,Y,Z coords already scaled to the file CRS,
// 16 bit R,G,B color components when the file carries them, Intensity, Classification
// and return number
type Point struct {
	X              float64
	Y              float64
	Z              float64
	R              uint16
	G              uint16
	B              uint16
	Intensity      uint16
	Classification uint8
	ReturnNumber   uint8
}

// Returns the 8 bit color of the point. LAS colors are 16 bit, but some writers store 8 bit
// values in them; eightBit tells which convention the file follows.
func (p *Point) ByteColor(eightBit bool) [3]uint8 {
	if eightBit {
		return [3]uint8{uint8(p.R), uint8(p.G), uint8(p.B)}
	}
	return [3]uint8{uint8(p.R >> 8), uint8(p.G >> 8), uint8(p.B >> 8)}
}
