package app

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
)

// Plot area margins, in pixels. The left and bottom margins leave room
// for the value and time scales.
const (
	marginLeft   = 90
	marginRight  = 24
	marginTop    = 36
	marginBottom = 56

	gridColumns = 10
	gridRows    = 8

	markerRadius = 4
)

type RenderConfig struct {
	Width      int
	Height     int
	ColorTheme ColorTheme
}

// TraceRenderer draws parameter series as polylines over a time/value
// grid, with anomaly events marked on top of their series.
type TraceRenderer struct {
	palette Palette
	width   int
	height  int

	// Value range with headroom, fixed per Render call.
	vMin float64
	vMax float64

	data *TraceData
}

func NewTraceRenderer(config RenderConfig) (*TraceRenderer, error) {
	if config.Width <= marginLeft+marginRight || config.Height <= marginTop+marginBottom {
		return nil, fmt.Errorf("image size %dx%d leaves no plot area", config.Width, config.Height)
	}

	return &TraceRenderer{
		palette: GetPalette(config.ColorTheme),
		width:   config.Width,
		height:  config.Height,
	}, nil
}

func (r *TraceRenderer) Render(data *TraceData) (*image.RGBA, error) {
	if data.Empty() {
		return nil, errors.New("no samples to plot")
	}

	r.data = data
	r.vMin, r.vMax = padRange(data.ValueMin, data.ValueMax)

	img := image.NewRGBA(image.Rect(0, 0, r.width, r.height))
	draw.Draw(img, img.Bounds(), image.NewUniform(r.palette.Background), image.Point{}, draw.Src)

	r.drawGrid(img)

	for i, s := range data.Series {
		r.drawSeries(img, s, r.palette.Series[i%len(r.palette.Series)])
	}

	for _, ev := range data.Anomalies {
		r.drawMarker(img, r.xAt(ev.Timestamp.UnixNano()), r.yAt(ev.Value))
	}

	return img, nil
}

// padRange widens the value range by 5% on each side so traces don't
// touch the plot border. A flat signal gets a unit band around it.
func padRange(lo, hi float64) (float64, float64) {
	if hi <= lo {
		return lo - 1, lo + 1
	}
	pad := (hi - lo) * 0.05
	return lo - pad, hi + pad
}

func (r *TraceRenderer) plotWidth() int  { return r.width - marginLeft - marginRight }
func (r *TraceRenderer) plotHeight() int { return r.height - marginTop - marginBottom }

// xAt maps a timestamp (ns) onto a pixel column.
func (r *TraceRenderer) xAt(ns int64) int {
	start := r.data.TimestampStart.UnixNano()
	end := r.data.TimestampEnd.UnixNano()
	if end <= start {
		return marginLeft
	}
	frac := float64(ns-start) / float64(end-start)
	return marginLeft + int(frac*float64(r.plotWidth()-1)+0.5)
}

// yAt maps a value onto a pixel row; larger values sit higher.
func (r *TraceRenderer) yAt(v float64) int {
	frac := (v - r.vMin) / (r.vMax - r.vMin)
	return marginTop + r.plotHeight() - 1 - int(frac*float64(r.plotHeight()-1)+0.5)
}

func (r *TraceRenderer) drawGrid(img *image.RGBA) {
	left, right := marginLeft, r.width-marginRight-1
	top, bottom := marginTop, r.height-marginBottom-1

	for c := 0; c <= gridColumns; c++ {
		x := left + c*(right-left)/gridColumns
		for y := top; y <= bottom; y++ {
			img.Set(x, y, r.palette.Grid)
		}
	}
	for row := 0; row <= gridRows; row++ {
		y := top + row*(bottom-top)/gridRows
		for x := left; x <= right; x++ {
			img.Set(x, y, r.palette.Grid)
		}
	}
}

func (r *TraceRenderer) drawSeries(img *image.RGBA, s *Series, c color.Color) {
	if len(s.Values) == 0 {
		return
	}

	prevX := r.xAt(s.Times[0].UnixNano())
	prevY := r.yAt(s.Values[0])
	img.Set(prevX, prevY, c)

	for i := 1; i < len(s.Values); i++ {
		x := r.xAt(s.Times[i].UnixNano())
		y := r.yAt(s.Values[i])
		drawLine(img, prevX, prevY, x, y, c)
		prevX, prevY = x, y
	}
}

// drawMarker draws a diagonal cross centered on the anomaly sample.
func (r *TraceRenderer) drawMarker(img *image.RGBA, x, y int) {
	for d := -markerRadius; d <= markerRadius; d++ {
		img.Set(x+d, y+d, r.palette.Anomaly)
		img.Set(x+d, y-d, r.palette.Anomaly)
	}
}

// drawLine rasterizes a segment with integer DDA stepping.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.Color) {
	dx, dy := x1-x0, y1-y0
	steps := max(abs(dx), abs(dy))
	if steps == 0 {
		img.Set(x0, y0, c)
		return
	}

	fx, fy := float64(x0), float64(y0)
	sx := float64(dx) / float64(steps)
	sy := float64(dy) / float64(steps)
	for i := 0; i <= steps; i++ {
		img.Set(int(math.Round(fx)), int(math.Round(fy)), c)
		fx += sx
		fy += sy
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
