package sampling

import (
	"fmt"
	"strings"

	"github.com/ecopia-map/geofuse/internal/errs"
)

type Kind string

const (
	// Keeps the first P percent of the points in their current order. This is a truncation, not a
	// statistical sample: on a fused grid it keeps the southern rows only.
	PrefixFraction Kind = "prefix_fraction"

	// Uniform draw without replacement of round(F*N) points, reproducible through the seed.
	RandomFraction Kind = "random_fraction"

	// Keeps the first point falling in every occupied cube of side LeafSize.
	Voxel Kind = "voxel"
)

func (k Kind) String() string {
	return string(k)
}

func ParseKind(value string) Kind {
	normalizedValue := strings.Trim(strings.ToLower(value), " ")
	switch Kind(normalizedValue) {
	case PrefixFraction:
		return PrefixFraction
	case RandomFraction:
		return RandomFraction
	case Voxel:
		return Voxel
	}
	return ""
}

// Policy selects how a point cloud is reduced. Only the fields of the selected kind are read.
type Policy struct {
	Kind     Kind    `yaml:"kind" json:"kind"`
	Percent  float64 `yaml:"percent,omitempty" json:"percent,omitempty"`
	Fraction float64 `yaml:"fraction,omitempty" json:"fraction,omitempty"`
	Seed     uint64  `yaml:"seed,omitempty" json:"seed,omitempty"`
	LeafSize float64 `yaml:"leaf_size,omitempty" json:"leaf_size,omitempty"`
}

func (p Policy) String() string {
	switch p.Kind {
	case PrefixFraction:
		return fmt.Sprintf("%s(percent=%g)", p.Kind, p.Percent)
	case RandomFraction:
		return fmt.Sprintf("%s(fraction=%g, seed=%d)", p.Kind, p.Fraction, p.Seed)
	case Voxel:
		return fmt.Sprintf("%s(leaf_size=%g)", p.Kind, p.LeafSize)
	}
	return "none"
}

// ParsePolicy builds a policy from configuration values. Only the parameters of kind are kept.
func ParsePolicy(kind string, percent, fraction float64, seed uint64, leafSize float64) (Policy, error) {
	p := Policy{Kind: ParseKind(kind)}
	switch p.Kind {
	case PrefixFraction:
		p.Percent = percent
	case RandomFraction:
		p.Fraction = fraction
		p.Seed = seed
	case Voxel:
		p.LeafSize = leafSize
	default:
		return Policy{}, errs.Precondition("sampling: unknown policy kind %q", kind)
	}
	return p, p.Validate()
}

// Validate checks the parameters of the selected kind.
func (p Policy) Validate() error {
	switch p.Kind {
	case PrefixFraction:
		if p.Percent < 0 || p.Percent > 100 {
			return errs.Precondition("sampling: percent %g outside [0,100]", p.Percent)
		}
	case RandomFraction:
		if p.Fraction < 0 || p.Fraction > 1 {
			return errs.Precondition("sampling: fraction %g outside [0,1]", p.Fraction)
		}
	case Voxel:
		if !(p.LeafSize > 0) {
			return errs.Precondition("sampling: voxel leaf size %g must be positive", p.LeafSize)
		}
	default:
		return errs.Precondition("sampling: unknown policy kind %q", p.Kind)
	}
	return nil
}
