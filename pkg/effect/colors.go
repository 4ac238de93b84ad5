package effect

import (
	"image/color"
	"sort"

	"github.com/teslashibe/posecam/pkg/segment"
)

// ColorScale assigns a color to every body part id.
type ColorScale [segment.NumParts]color.RGBA

func scale(rgb [segment.NumParts][3]uint8) ColorScale {
	var s ColorScale
	for i, c := range rgb {
		s[i] = color.RGBA{R: c[0], G: c[1], B: c[2], A: 255}
	}
	return s
}

var colorScales = map[string]ColorScale{
	"rainbow": scale([segment.NumParts][3]uint8{
		{110, 64, 170}, {143, 61, 178}, {178, 60, 178}, {210, 62, 167},
		{238, 67, 149}, {255, 78, 125}, {255, 94, 99}, {255, 115, 75},
		{255, 140, 56}, {239, 167, 47}, {217, 194, 49}, {194, 219, 64},
		{175, 240, 91}, {135, 245, 87}, {96, 247, 96}, {64, 243, 115},
		{40, 234, 141}, {28, 219, 169}, {26, 199, 194}, {33, 176, 213},
		{47, 150, 224}, {65, 125, 224}, {84, 101, 214}, {99, 81, 195},
	}),
	"warm": scale([segment.NumParts][3]uint8{
		{110, 64, 170}, {123, 63, 176}, {137, 62, 181}, {150, 61, 184},
		{164, 60, 187}, {178, 60, 188}, {191, 60, 187}, {204, 61, 184},
		{217, 63, 179}, {229, 66, 172}, {239, 69, 164}, {249, 74, 154},
		{255, 80, 143}, {255, 86, 131}, {255, 94, 119}, {255, 102, 107},
		{255, 112, 95}, {255, 122, 84}, {255, 134, 73}, {255, 146, 64},
		{245, 159, 56}, {236, 172, 50}, {226, 186, 46}, {216, 199, 44},
	}),
	"spectral": scale([segment.NumParts][3]uint8{
		{158, 1, 66}, {181, 26, 71}, {202, 50, 74}, {219, 73, 74},
		{232, 94, 73}, {242, 117, 75}, {248, 142, 83}, {251, 167, 96},
		{253, 190, 112}, {254, 210, 129}, {254, 227, 149}, {254, 240, 166},
		{251, 248, 176}, {243, 250, 173}, {228, 244, 162}, {210, 237, 155},
		{187, 228, 160}, {160, 218, 164}, {131, 204, 165}, {104, 187, 170},
		{81, 166, 178}, {66, 142, 185}, {69, 117, 180}, {84, 93, 163},
	}),
}

// LookupColorScale returns the named color scale.
func LookupColorScale(name string) (ColorScale, bool) {
	s, ok := colorScales[name]
	return s, ok
}

// ColorScaleNames lists the available scales in sorted order.
func ColorScaleNames() []string {
	names := make([]string, 0, len(colorScales))
	for name := range colorScales {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
