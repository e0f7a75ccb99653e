package converters

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ecopia-map/geofuse/internal/errs"
)

// CRS names a reference system either by EPSG code or by a PROJ.4 definition.
type CRS struct {
	Code       int
	Definition string
}

// ParseCRS accepts "EPSG:<code>", a bare code, or a "+proj=" definition.
func ParseCRS(value string) (CRS, error) {
	v := strings.TrimSpace(value)
	if strings.HasPrefix(v, "+") {
		return CRS{Definition: v}, nil
	}
	lower := strings.ToLower(v)
	lower = strings.TrimPrefix(lower, "epsg:")
	code, err := strconv.Atoi(lower)
	if err != nil || code <= 0 {
		return CRS{}, errs.Precondition("converters: cannot parse reference system %q", value)
	}
	return CRS{Code: code}, nil
}

// MustParseCRS is ParseCRS for literals known to be valid.
func MustParseCRS(value string) CRS {
	crs, err := ParseCRS(value)
	if err != nil {
		panic(err)
	}
	return crs
}

func (c CRS) String() string {
	if c.Code > 0 {
		return fmt.Sprintf("EPSG:%d", c.Code)
	}
	return c.Definition
}

// Proj4 returns the PROJ.4 init string of the reference system.
func (c CRS) Proj4() string {
	if c.Code > 0 {
		return fmt.Sprintf("+init=epsg:%d", c.Code)
	}
	return c.Definition
}

func (c CRS) Equal(o CRS) bool {
	return c.Code == o.Code && c.Definition == o.Definition
}

// IsGeographic reports whether coordinates are longitude and latitude degrees.
func (c CRS) IsGeographic() bool {
	switch c.Code {
	case 4326, 4258, 4269, 4979:
		return true
	}
	return strings.Contains(c.Definition, "+proj=longlat") || strings.Contains(c.Definition, "+proj=latlong")
}
