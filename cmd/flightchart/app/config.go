package app

import (
	"errors"
	"flag"
	"fmt"
	"slices"
	"strings"

	"github.com/flightwire/drone-telemetry/internal/telemetry"
)

const (
	ImagePNG  = "png"
	ImageJPEG = "jpeg"
)

type ImageFormat string

type Config struct {
	DBPath     string
	FlightID   int64
	OutputFile string
	Format     ImageFormat
	Channels   []string
	Width      int
}

var validImageFormats = map[ImageFormat]struct{}{
	ImagePNG:  {},
	ImageJPEG: {},
}

var defaultChannels = strings.Join([]string{
	telemetry.ChannelAltitude,
	telemetry.ChannelBatteryVoltage,
	telemetry.ChannelTemperature,
	telemetry.ChannelSignalStrength,
}, ",")

func NewConfig() *Config {
	return &Config{
		Format: ImagePNG,
		Width:  1200,
	}
}

func NewConfigFromCLI() (*Config, error) {
	c := NewConfig()

	var imageFormat, channels string
	flag.StringVar(&c.DBPath, "db", "", "Path to the flight log database file")
	flag.Int64Var(&c.FlightID, "flight", 1, "Flight ID")
	flag.StringVar(&c.OutputFile, "o", "", "Path to the output file")
	flag.StringVar(&imageFormat, "f", string(ImagePNG), "Output image format. [png, jpeg]")
	flag.StringVar(&channels, "channels", defaultChannels, "Comma-separated channels to chart")
	flag.IntVar(&c.Width, "w", c.Width, "Chart width in pixels")
	flag.Parse()

	imageFormat = strings.ToLower(imageFormat)

	var err error
	if c.DBPath == "" {
		err = errors.New("db path is required")
	} else if c.FlightID <= 0 {
		err = errors.New("flight id is required")
	} else if c.OutputFile == "" {
		err = errors.New("output file is required")
	} else if _, ok := validImageFormats[ImageFormat(imageFormat)]; !ok {
		err = fmt.Errorf("invalid image format: %s", imageFormat)
	} else if c.Width < 400 {
		err = fmt.Errorf("chart width %d is too small", c.Width)
	}

	if err == nil {
		for _, name := range strings.Split(channels, ",") {
			name = strings.TrimSpace(name)
			if !slices.Contains(telemetry.Channels, name) {
				err = fmt.Errorf("unknown channel: %s", name)
				break
			}
			c.Channels = append(c.Channels, name)
		}
		if err == nil && len(c.Channels) == 0 {
			err = errors.New("at least one channel is required")
		}
	}

	if err != nil {
		flag.Usage()
		return nil, err
	}

	c.Format = ImageFormat(imageFormat)
	c.OutputFile = fmt.Sprintf("%s.%s", c.OutputFile, c.Format)
	return c, nil
}
