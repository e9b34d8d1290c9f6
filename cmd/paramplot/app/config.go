package app

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"
)

const (
	ImagePNG  = "png"
	ImageJPEG = "jpeg"
)

type ImageFormat string

type Config struct {
	DBPath       string
	SessionID    int64
	Parameters   []string
	OutputFile   string
	Format       ImageFormat
	FontPath     string
	Theme        ColorTheme
	MinTimestamp *time.Time
	MaxTimestamp *time.Time
	Width        int
	Height       int
	NoAnomalies  bool
}

var validImageFormats = map[ImageFormat]struct{}{
	ImagePNG:  {},
	ImageJPEG: {},
}

func NewConfig() *Config {
	return &Config{
		Format: ImagePNG,
		Theme:  DarkTheme,
		Width:  1600,
		Height: 900,
	}
}

func NewConfigFromCLI() (*Config, error) {
	c := NewConfig()

	var imageFormat, theme, parameters, from, to string
	flag.StringVar(&c.DBPath, "db", "", "Path to the database file")
	flag.Int64Var(&c.SessionID, "s", 1, "Session ID")
	flag.StringVar(&parameters, "p", "", "Comma-separated parameter ids to plot (e.g. altitude,airspeed)")
	flag.StringVar(&c.OutputFile, "o", "", "Path to the output file")
	flag.StringVar(&imageFormat, "f", string(ImagePNG), "Output image format. [png, jpeg]")
	flag.StringVar(&c.FontPath, "font", "", "Path to a TTF font for annotations (annotations are skipped without one)")
	flag.StringVar(&theme, "theme", string(DarkTheme), "Color theme. [dark, light]")
	flag.StringVar(&from, "from", "", "Start of the plotted time range (RFC 3339)")
	flag.StringVar(&to, "to", "", "End of the plotted time range (RFC 3339)")
	flag.IntVar(&c.Width, "width", c.Width, "Output image width in pixels")
	flag.IntVar(&c.Height, "height", c.Height, "Output image height in pixels")
	flag.BoolVar(&c.NoAnomalies, "no-anomalies", false, "Disable anomaly event markers")
	flag.Parse()

	imageFormat = strings.ToLower(imageFormat)

	for _, id := range strings.Split(parameters, ",") {
		if id = strings.TrimSpace(id); id != "" {
			c.Parameters = append(c.Parameters, id)
		}
	}

	var err error
	if c.DBPath == "" {
		err = errors.New("db path is required")
	} else if c.SessionID <= 0 {
		err = errors.New("session id is required")
	} else if len(c.Parameters) == 0 {
		err = errors.New("at least one parameter is required")
	} else if c.OutputFile == "" {
		err = errors.New("output file is required")
	} else if _, ok := validImageFormats[ImageFormat(imageFormat)]; !ok {
		err = fmt.Errorf("invalid image format: %s", imageFormat)
	} else if _, ok := themePalettes[ColorTheme(theme)]; !ok {
		err = fmt.Errorf("invalid color theme: %s", theme)
	} else if c.Width < 320 || c.Height < 240 {
		err = fmt.Errorf("image size %dx%d is too small", c.Width, c.Height)
	}

	if err == nil && from != "" {
		var t time.Time
		if t, err = time.Parse(time.RFC3339, from); err == nil {
			c.MinTimestamp = &t
		}
	}
	if err == nil && to != "" {
		var t time.Time
		if t, err = time.Parse(time.RFC3339, to); err == nil {
			c.MaxTimestamp = &t
		}
	}

	if err != nil {
		flag.Usage()
		return nil, err
	}

	c.Theme = ColorTheme(theme)
	c.Format = ImageFormat(imageFormat)
	c.OutputFile = fmt.Sprintf("%s.%s", c.OutputFile, c.Format)
	return c, nil
}
