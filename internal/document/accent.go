package document

import "fmt"

// Sender accent palette, indexed by accent id 1..7.
var accentPalette = [...][3]int{
	1: {0x23, 0x91, 0xd3},
	2: {0x00, 0xc8, 0x00},
	3: {0xfe, 0xbf, 0x02},
	4: {0xff, 0x00, 0x00},
	5: {0xff, 0x89, 0x00},
	6: {0xfe, 0x5e, 0xbd},
	7: {0x9c, 0x00, 0xfe},
}

var defaultAccent = [3]int{0x6b, 0x72, 0x80}

// AccentColor returns the CSS hex colour for an accent id, grey when unknown.
func AccentColor(accent int) string {
	c := accentRGB(accent)
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}

func accentRGB(accent int) [3]int {
	if accent <= 0 || accent >= len(accentPalette) {
		return defaultAccent
	}
	return accentPalette[accent]
}
