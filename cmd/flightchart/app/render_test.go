package app

import (
	"image"
	"testing"
	"time"

	"github.com/flightwire/drone-telemetry/internal/telemetry"
)

func countTracePixels(img *image.RGBA, channel string) int {
	want := channelColors[channel]

	var n int
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.RGBAAt(x, y) == want {
				n++
			}
		}
	}
	return n
}

func TestRender_SinglePointSeries(t *testing.T) {
	r, err := NewChartRenderer(RenderConfig{Width: 400})
	if err != nil {
		t.Fatalf("creating renderer: %v", err)
	}

	start := time.UnixMilli(1000)
	data := &ChartData{
		Channels: []string{telemetry.ChannelAltitude},
		Series: map[string][]point{
			telemetry.ChannelAltitude: {{Timestamp: 1000, Value: 100}},
		},
		TimestampStart: start,
		TimestampEnd:   start,
		RecordCount:    1,
	}

	img, err := r.Render(data)
	if err != nil {
		t.Fatalf("rendering: %v", err)
	}

	if countTracePixels(img, telemetry.ChannelAltitude) == 0 {
		t.Error("a single-point series left no trace on the panel")
	}
}

func TestRender_PolylineSeries(t *testing.T) {
	r, err := NewChartRenderer(RenderConfig{Width: 400})
	if err != nil {
		t.Fatalf("creating renderer: %v", err)
	}

	data := &ChartData{
		Channels: []string{telemetry.ChannelTemperature},
		Series: map[string][]point{
			telemetry.ChannelTemperature: {
				{Timestamp: 0, Value: 22},
				{Timestamp: 500, Value: 28},
				{Timestamp: 1000, Value: 24},
			},
		},
		TimestampStart: time.UnixMilli(0),
		TimestampEnd:   time.UnixMilli(1000),
		RecordCount:    3,
	}

	img, err := r.Render(data)
	if err != nil {
		t.Fatalf("rendering: %v", err)
	}

	// A polyline across a 400px panel covers far more than a marker
	if n := countTracePixels(img, telemetry.ChannelTemperature); n < 100 {
		t.Errorf("trace covers %d pixels, want a full polyline", n)
	}
}

func TestRender_NoChannels(t *testing.T) {
	r, err := NewChartRenderer(RenderConfig{Width: 400})
	if err != nil {
		t.Fatalf("creating renderer: %v", err)
	}

	if _, err = r.Render(&ChartData{}); err == nil {
		t.Error("rendering with no channels succeeded")
	}
}
