package app

import (
	"fmt"
	"image"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
)

const (
	dpi     float64 = 72
	size    float64 = 14
	spacing float64 = 1.1
)

// Annotator draws the time and value scales and the legend. It needs a
// TTF font supplied at runtime; rendering without an annotator produces
// a bare plot.
type Annotator struct {
	context *freetype.Context
	font    *truetype.Font
	palette Palette
}

func NewAnnotator(fontPath string, theme ColorTheme) (*Annotator, error) {
	fontBytes, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("reading font: %w", err)
	}

	parsedFont, err := freetype.ParseFont(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	palette := GetPalette(theme)

	context := freetype.NewContext()
	context.SetDPI(dpi)
	context.SetFont(parsedFont)
	context.SetFontSize(size)
	context.SetSrc(image.NewUniform(palette.Text))
	context.SetHinting(font.HintingFull)

	return &Annotator{context: context, font: parsedFont, palette: palette}, nil
}

func (a *Annotator) Annotate(img *image.RGBA, data *TraceData) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	ops := []struct {
		msg string
		fn  func(*image.RGBA, *TraceData) error
	}{
		{"drawing time scale", a.drawTimeScale},
		{"drawing value scale", a.drawValueScale},
		{"drawing legend", a.drawLegend},
	}
	for _, op := range ops {
		if err := op.fn(img, data); err != nil {
			return fmt.Errorf("%s: %w", op.msg, err)
		}
	}

	return nil
}

func (a *Annotator) drawTimeScale(img *image.RGBA, data *TraceData) error {
	width := img.Bounds().Dx()
	height := img.Bounds().Dy()

	left, right := marginLeft, width-marginRight-1
	baseline := height - marginBottom + 20

	span := data.Span()
	format := "15:04:05"
	if span < time.Minute {
		format = "15:04:05.000"
	}

	for c := 0; c <= gridColumns; c += 2 {
		x := left + c*(right-left)/gridColumns
		point := data.TimestampStart.Add(span * time.Duration(c) / gridColumns)

		pt := freetype.Pt(x-30, baseline)
		if _, err := a.context.DrawString(point.Format(format), pt); err != nil {
			return err
		}
	}

	// Full date once, under the scale.
	pt := freetype.Pt(left, baseline+int(a.context.PointToFixed(size*spacing)>>6))
	_, err := a.context.DrawString(data.TimestampStart.Format(time.DateTime), pt)
	return err
}

func (a *Annotator) drawValueScale(img *image.RGBA, data *TraceData) error {
	height := img.Bounds().Dy()
	top, bottom := marginTop, height-marginBottom-1

	// The same headroom the renderer applies, so labels line up with
	// the grid.
	vMin, vMax := padRange(data.ValueMin, data.ValueMax)

	for row := 0; row <= gridRows; row++ {
		y := top + row*(bottom-top)/gridRows
		v := vMax - (vMax-vMin)*float64(row)/gridRows

		pt := freetype.Pt(6, y+5)
		if _, err := a.context.DrawString(humanize.CommafWithDigits(v, 1), pt); err != nil {
			return err
		}
	}

	return nil
}

func (a *Annotator) drawLegend(img *image.RGBA, data *TraceData) error {
	x := marginLeft
	baseline := marginTop - 12

	for i, s := range data.Series {
		c := a.palette.Series[i%len(a.palette.Series)]

		// color swatch
		for dx := 0; dx < 18; dx++ {
			for dy := -4; dy <= -2; dy++ {
				img.Set(x+dx, baseline+dy, c)
			}
		}
		x += 24

		label := fmt.Sprintf("%s (%s samples)", s.Parameter, humanize.Comma(int64(len(s.Values))))
		pt := freetype.Pt(x, baseline)
		if _, err := a.context.DrawString(label, pt); err != nil {
			return err
		}
		x += 10*len(label) + 30
	}

	if n := len(data.Anomalies); n > 0 {
		label := fmt.Sprintf("%s anomalies", humanize.Comma(int64(n)))
		a.context.SetSrc(image.NewUniform(a.palette.Anomaly))
		pt := freetype.Pt(x, baseline)
		_, err := a.context.DrawString(label, pt)
		a.context.SetSrc(image.NewUniform(a.palette.Text))
		return err
	}

	return nil
}
