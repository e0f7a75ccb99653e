package geometry

import (
	"fmt"

	"github.com/paulmach/orb"
)

// Region is a planar rectangle in projected units delimiting a scene.
type Region struct {
	Left   float64 `yaml:"left" json:"left"`
	Right  float64 `yaml:"right" json:"right"`
	Bottom float64 `yaml:"bottom" json:"bottom"`
	Top    float64 `yaml:"top" json:"top"`
}

func RegionFromBound(b orb.Bound) Region {
	return Region{Left: b.Left(), Right: b.Right(), Bottom: b.Bottom(), Top: b.Top()}
}

// Bound converts the region to an orb bound, e.g. for GeoJSON footprints.
func (r Region) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{r.Left, r.Bottom}, Max: orb.Point{r.Right, r.Top}}
}

func (r Region) Width() float64 {
	return r.Right - r.Left
}

func (r Region) Height() float64 {
	return r.Top - r.Bottom
}

// Validate reports a degenerate or inverted region.
func (r Region) Validate() error {
	if !(r.Right > r.Left) || !(r.Top > r.Bottom) {
		return fmt.Errorf("degenerate region left=%g right=%g bottom=%g top=%g", r.Left, r.Right, r.Bottom, r.Top)
	}
	return nil
}

func (r Region) IsZero() bool {
	return r == Region{}
}
