package app

import (
	"context"
	"fmt"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"time"

	"github.com/flightwire/drone-telemetry/internal/flightlog"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.DBPath); err != nil {
		return fmt.Errorf("database file '%s' is not accessible: %w", config.DBPath, err)
	}

	flights := flightlog.New(config.DBPath)
	defer flights.Close()

	return renderFlight(ctx, flights, config, logger)
}

func renderFlight(ctx context.Context, flights *flightlog.Store, config *Config, logger *slog.Logger) error {
	flight, err := flights.Flight(ctx, config.FlightID)
	if err != nil {
		return fmt.Errorf("loading flight %d: %w", config.FlightID, err)
	}

	logger.Info("reading flight records",
		slog.Int64("flightID", flight.ID),
		slog.String("source", flight.Source),
		slog.String("startTime", flight.StartTime.Local().Format(time.DateTime)))

	records, err := flights.Records(ctx, config.FlightID)
	if err != nil {
		return fmt.Errorf("reading flight records: %w", err)
	}
	if len(records) == 0 {
		return fmt.Errorf("flight %d has no records", config.FlightID)
	}

	data := &ChartData{
		Channels:       config.Channels,
		Series:         make(map[string][]point, len(config.Channels)),
		TimestampStart: records[0].Time(),
		TimestampEnd:   records[len(records)-1].Time(),
		RecordCount:    len(records),
	}
	for _, rec := range records {
		for _, channel := range config.Channels {
			value, ok := rec.Value(channel)
			if !ok {
				continue
			}
			data.Series[channel] = append(data.Series[channel], point{
				Timestamp: rec.Timestamp,
				Value:     value,
			})
		}
	}

	logger.Info("finished reading flight records",
		slog.Group("stats",
			slog.Int("records", data.RecordCount),
			slog.String("minTimestamp", data.TimestampStart.Local().Format(time.DateTime)),
			slog.String("maxTimestamp", data.TimestampEnd.Local().Format(time.DateTime)),
		))

	renderer, err := NewChartRenderer(RenderConfig{
		Width: config.Width,
	})
	if err != nil {
		return fmt.Errorf("creating chart renderer: %w", err)
	}

	logger.Info("rendering chart",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
			slog.Int("width", config.Width),
			slog.Int("panels", len(config.Channels)),
		))

	img, err := renderer.Render(data)
	if err != nil {
		return fmt.Errorf("rendering chart: %w", err)
	}

	out, err := os.Create(config.OutputFile)
	if err != nil {
		return err
	}
	defer out.Close()

	switch config.Format {
	case ImagePNG:
		err = png.Encode(out, img)

	case ImageJPEG:
		err = jpeg.Encode(out, img, &jpeg.Options{
			Quality: 98,
		})
	}
	return err
}
