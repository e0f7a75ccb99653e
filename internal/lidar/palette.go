package lidar

import (
	"strings"

	"github.com/golang/glog"

	"github.com/ecopia-map/geofuse/internal/errs"
)

// tab20 qualitative palette
var palette = [][3]uint8{
	{31, 119, 180}, {174, 199, 232}, {255, 127, 14}, {255, 187, 120},
	{44, 160, 44}, {152, 223, 138}, {214, 39, 40}, {255, 152, 150},
	{148, 103, 189}, {197, 176, 213}, {140, 86, 75}, {196, 156, 148},
	{227, 119, 194}, {247, 182, 210}, {127, 127, 127}, {199, 199, 199},
	{188, 189, 34}, {219, 219, 141}, {23, 190, 207}, {158, 218, 229},
}

// shared by every label past the palette under the bucket policy
var extraColor = [3]uint8{80, 80, 80}

func PaletteSize() int {
	return len(palette)
}

type OverflowPolicy string

const (
	// labels past the palette share the extra color
	OverflowBucket OverflowPolicy = "BUCKET"
	// labels past the palette reuse it from the start
	OverflowCycle OverflowPolicy = "CYCLE"
	// more labels than palette colors fail the run
	OverflowError OverflowPolicy = "ERROR"
)

func ParseOverflowPolicy(value string) OverflowPolicy {
	normalizedValue := strings.Trim(strings.ToUpper(value), " ")
	switch OverflowPolicy(normalizedValue) {
	case OverflowBucket:
		return OverflowBucket
	case OverflowCycle:
		return OverflowCycle
	case OverflowError:
		return OverflowError
	}
	return ""
}

// ColorMap assigns a color to every classification label, in first appearance order.
type ColorMap struct {
	Labels []uint8
	Colors map[uint8][3]uint8
}

// BuildColorMap collects the distinct labels in order of first appearance and assigns the palette
// colors by that order.
func BuildColorMap(labels []uint8, overflow OverflowPolicy) (*ColorMap, error) {
	cm := &ColorMap{Colors: make(map[uint8][3]uint8)}
	for _, label := range labels {
		if _, ok := cm.Colors[label]; ok {
			continue
		}
		i := len(cm.Labels)
		cm.Labels = append(cm.Labels, label)
		switch {
		case i < len(palette):
			cm.Colors[label] = palette[i]
		case overflow == OverflowCycle:
			cm.Colors[label] = palette[i%len(palette)]
		case overflow == OverflowError:
			return nil, errs.Precondition("lidar: more than %d classification labels, label %d has no color", len(palette), label)
		default:
			cm.Colors[label] = extraColor
		}
	}
	if extra := len(cm.Labels) - len(palette); extra > 0 && overflow != OverflowCycle {
		glog.Warningf("lidar: %d classification labels exceed the palette and share one color", extra)
	}
	return cm, nil
}
