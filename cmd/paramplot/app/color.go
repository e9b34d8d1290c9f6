package app

import "image/color"

const (
	DarkTheme  ColorTheme = "dark"
	LightTheme ColorTheme = "light"
)

type ColorTheme string

// Palette holds the colors of one theme. Series colors are assigned to
// parameters in plotting order and cycle when there are more series than
// colors.
type Palette struct {
	Background color.Color
	Grid       color.Color
	Text       color.Color
	Anomaly    color.Color
	Series     []color.Color
}

var themePalettes = map[ColorTheme]Palette{
	DarkTheme: {
		Background: color.RGBA{R: 0x12, G: 0x14, B: 0x18, A: 0xff},
		Grid:       color.RGBA{R: 0x2c, G: 0x31, B: 0x3a, A: 0xff},
		Text:       color.RGBA{R: 0xd8, G: 0xdc, B: 0xe2, A: 0xff},
		Anomaly:    color.RGBA{R: 0xff, G: 0x45, B: 0x45, A: 0xff},
		Series: []color.Color{
			color.RGBA{R: 0x4f, G: 0xc3, B: 0xf7, A: 0xff}, // sky
			color.RGBA{R: 0xff, G: 0xb7, B: 0x4d, A: 0xff}, // amber
			color.RGBA{R: 0x81, G: 0xc7, B: 0x84, A: 0xff}, // green
			color.RGBA{R: 0xba, G: 0x68, B: 0xc8, A: 0xff}, // violet
			color.RGBA{R: 0xff, G: 0xd5, B: 0x4f, A: 0xff}, // yellow
		},
	},
	LightTheme: {
		Background: color.White,
		Grid:       color.RGBA{R: 0xdd, G: 0xdd, B: 0xdd, A: 0xff},
		Text:       color.RGBA{R: 0x20, G: 0x20, B: 0x20, A: 0xff},
		Anomaly:    color.RGBA{R: 0xd0, G: 0x00, B: 0x00, A: 0xff},
		Series: []color.Color{
			color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
			color.RGBA{R: 0xff, G: 0x7f, B: 0x0e, A: 0xff},
			color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff},
			color.RGBA{R: 0x94, G: 0x67, B: 0xbd, A: 0xff},
			color.RGBA{R: 0x8c, G: 0x56, B: 0x4b, A: 0xff},
		},
	},
}

// GetPalette returns the palette for a theme, defaulting to dark.
func GetPalette(theme ColorTheme) Palette {
	if p, ok := themePalettes[theme]; ok {
		return p
	}
	return themePalettes[DarkTheme]
}
