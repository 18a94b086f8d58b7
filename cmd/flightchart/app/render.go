package app

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/flightwire/drone-telemetry/internal/telemetry"
)

const (
	dpi            = 120.0
	fontSize       = 12.0
	tickMarkLength = 5
	pixelsPerLabel = 150.0

	panelHeight = 160
	panelGap    = 20

	// Default border sizes in pixels
	defaultTopBorder    = 40
	defaultLeftBorder   = 80
	defaultBottomBorder = 40
	defaultRightBorder  = 40

	defaultTimeFormat     = "15:04:05"
	defaultDatetimeFormat = time.DateTime
)

var channelColors = map[string]color.RGBA{
	telemetry.ChannelRoll:           {R: 0xFF, G: 0x41, B: 0x36, A: 0xFF},
	telemetry.ChannelPitch:          {R: 0x2E, G: 0xCC, B: 0x40, A: 0xFF},
	telemetry.ChannelYaw:            {R: 0x00, G: 0x74, B: 0xD9, A: 0xFF},
	telemetry.ChannelLatitude:       {R: 0x39, G: 0xCC, B: 0xCC, A: 0xFF},
	telemetry.ChannelLongitude:      {R: 0x3D, G: 0x99, B: 0x70, A: 0xFF},
	telemetry.ChannelAltitude:       {R: 0xFF, G: 0x85, B: 0x1B, A: 0xFF},
	telemetry.ChannelBatteryVoltage: {R: 0x85, G: 0x14, B: 0x4B, A: 0xFF},
	telemetry.ChannelBatteryPercent: {R: 0xF0, G: 0x12, B: 0xBE, A: 0xFF},
	telemetry.ChannelTemperature:    {R: 0xB1, G: 0x0D, B: 0xC9, A: 0xFF},
	telemetry.ChannelSignalStrength: {R: 0x7F, G: 0xDB, B: 0xFF, A: 0xFF},
}

var (
	gridColor    = color.RGBA{R: 0xE0, G: 0xE0, B: 0xE0, A: 0xFF}
	panelBorder  = color.RGBA{R: 0x90, G: 0x90, B: 0x90, A: 0xFF}
	defaultTrace = color.RGBA{R: 0x30, G: 0x30, B: 0x30, A: 0xFF}
)

// BorderConfig defines the sizes of white space around the chart panels
type BorderConfig struct {
	Top    int // Space for the chart title
	Left   int // Space for value scales
	Bottom int // Space for time scale and information bar
	Right  int // Right padding
}

// RenderConfig holds all configuration options for chart rendering
type RenderConfig struct {
	TimeFormat     string         // Format string for time axis labels (e.g. "15:04:05")
	DatetimeFormat string         // Format string for date/time display
	Location       *time.Location // Timezone for time display

	FontSize float64 // Font size in points
	Width    int     // Panel width in pixels

	BorderConfig BorderConfig
}

// ChartData is the rendering input: one series per channel, all sharing
// the same time axis.
type ChartData struct {
	Channels []string
	Series   map[string][]point

	TimestampStart time.Time
	TimestampEnd   time.Time
	RecordCount    int
}

type point struct {
	Timestamp int64
	Value     float64
}

// ChartRenderer draws recorded telemetry as a stack of strip charts,
// one panel per channel.
type ChartRenderer struct {
	config RenderConfig
}

// NewChartRenderer creates a new chart renderer with the given configuration
func NewChartRenderer(config RenderConfig) (*ChartRenderer, error) {
	// Set defaults for zero values
	if config.TimeFormat == "" {
		config.TimeFormat = defaultTimeFormat
	}
	if config.DatetimeFormat == "" {
		config.DatetimeFormat = defaultDatetimeFormat
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.FontSize == 0 {
		config.FontSize = fontSize
	}
	if config.Width == 0 {
		config.Width = 1200
	}
	if config.BorderConfig.Top == 0 {
		config.BorderConfig.Top = defaultTopBorder
	}
	if config.BorderConfig.Left == 0 {
		config.BorderConfig.Left = defaultLeftBorder
	}
	if config.BorderConfig.Bottom == 0 {
		config.BorderConfig.Bottom = defaultBottomBorder
	}
	if config.BorderConfig.Right == 0 {
		config.BorderConfig.Right = defaultRightBorder
	}

	return &ChartRenderer{config: config}, nil
}

// Render creates an image with one panel per channel plus axis labels
// and an information bar.
func (r *ChartRenderer) Render(data *ChartData) (*image.RGBA, error) {
	numPanels := len(data.Channels)
	if numPanels == 0 {
		return nil, fmt.Errorf("no channels to render")
	}

	panelsHeight := numPanels*panelHeight + (numPanels-1)*panelGap
	fullWidth := r.config.Width + r.config.BorderConfig.Left + r.config.BorderConfig.Right
	fullHeight := panelsHeight + r.config.BorderConfig.Top + r.config.BorderConfig.Bottom

	img := image.NewRGBA(image.Rect(0, 0, fullWidth, fullHeight))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	ann, err := newAnnotator(annotatorConfig{
		TimeFormat:     r.config.TimeFormat,
		DatetimeFormat: r.config.DatetimeFormat,
		Location:       r.config.Location,
		FontSize:       r.config.FontSize,
		Borders:        r.config.BorderConfig,
	})
	if err != nil {
		return nil, fmt.Errorf("creating annotator: %w", err)
	}
	defer ann.Close()

	ann.context.SetClip(img.Bounds())
	ann.context.SetDst(img)

	for i, channel := range data.Channels {
		area := image.Rect(
			r.config.BorderConfig.Left,
			r.config.BorderConfig.Top+i*(panelHeight+panelGap),
			r.config.BorderConfig.Left+r.config.Width,
			r.config.BorderConfig.Top+i*(panelHeight+panelGap)+panelHeight,
		)

		if err = r.renderPanel(img, ann, area, channel, data); err != nil {
			return nil, fmt.Errorf("rendering %s panel: %w", channel, err)
		}
	}

	lastPanelBottom := r.config.BorderConfig.Top + panelsHeight
	if err = ann.drawTimeScale(img, data, r.config.Width, lastPanelBottom); err != nil {
		return nil, fmt.Errorf("drawing time scale: %w", err)
	}
	if err = ann.drawInfoBar(img, data); err != nil {
		return nil, fmt.Errorf("drawing info bar: %w", err)
	}

	return img, nil
}

// renderPanel draws one channel: frame, value grid and the trace polyline.
func (r *ChartRenderer) renderPanel(img *image.RGBA, ann *annotator, area image.Rectangle, channel string, data *ChartData) error {
	series := data.Series[channel]

	drawRect(img, area, panelBorder)

	if err := ann.drawPanelTitle(img, area, channel); err != nil {
		return err
	}

	if len(series) == 0 {
		return nil
	}

	minVal, maxVal := valueBounds(series)
	if err := ann.drawValueScale(img, area, minVal, maxVal); err != nil {
		return err
	}

	timeMin := data.TimestampStart.UnixMilli()
	timeMax := data.TimestampEnd.UnixMilli()
	timeRange := timeMax - timeMin
	if timeRange == 0 {
		timeRange = 1
	}
	valueRange := maxVal - minVal
	if valueRange == 0 {
		valueRange = 1
	}

	traceColor, ok := channelColors[channel]
	if !ok {
		traceColor = defaultTrace
	}

	var prevX, prevY int
	for i, p := range series {
		xRatio := float64(p.Timestamp-timeMin) / float64(timeRange)
		yRatio := (p.Value - minVal) / valueRange

		x := area.Min.X + int(xRatio*float64(area.Dx()-1))
		y := area.Max.Y - 1 - int(yRatio*float64(area.Dy()-1))

		if i > 0 {
			drawLine(img, prevX, prevY, x, y, traceColor)
		} else if len(series) == 1 {
			drawMarker(img, x, y, traceColor)
		}
		prevX, prevY = x, y
	}

	return nil
}

// valueBounds returns the series value range, padded so a flat series
// still renders mid-panel.
func valueBounds(series []point) (float64, float64) {
	minVal, maxVal := series[0].Value, series[0].Value
	for _, p := range series[1:] {
		minVal = math.Min(minVal, p.Value)
		maxVal = math.Max(maxVal, p.Value)
	}
	if minVal == maxVal {
		minVal -= 1
		maxVal += 1
	}
	return minVal, maxVal
}

// drawRect draws a one-pixel rectangle outline
func drawRect(img *image.RGBA, area image.Rectangle, c color.Color) {
	for x := area.Min.X; x < area.Max.X; x++ {
		img.Set(x, area.Min.Y, c)
		img.Set(x, area.Max.Y-1, c)
	}
	for y := area.Min.Y; y < area.Max.Y; y++ {
		img.Set(area.Min.X, y, c)
		img.Set(area.Max.X-1, y, c)
	}
}

// drawMarker draws a 3x3 dot for a series too short to form a line
func drawMarker(img *image.RGBA, x, y int, c color.Color) {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			img.Set(x+dx, y+dy, c)
		}
	}
}

// drawLine draws a line segment using Bresenham's algorithm
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.Color) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy

	for {
		img.Set(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Internal annotator implementation

type annotatorConfig struct {
	TimeFormat     string
	DatetimeFormat string
	Location       *time.Location
	FontSize       float64
	Borders        BorderConfig
}

type annotator struct {
	context  *freetype.Context
	config   annotatorConfig
	fontFace font.Face
}

func newAnnotator(config annotatorConfig) (*annotator, error) {
	parsedFont, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(config.FontSize)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.Black)

	return &annotator{
		context: ctx,
		config:  config,
		fontFace: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    config.FontSize,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
	}, nil
}

func (a *annotator) Close() error {
	if a.fontFace != nil {
		return a.fontFace.Close()
	}
	return nil
}

func (a *annotator) drawPanelTitle(img *image.RGBA, area image.Rectangle, channel string) error {
	metrics := a.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()

	pt := freetype.Pt(area.Min.X+5, area.Min.Y-fontHeight/2+metrics.Ascent.Round())
	_, err := a.context.DrawString(channelTitle(channel), pt)
	if err != nil {
		return fmt.Errorf("drawing panel title: %w", err)
	}
	return nil
}

func (a *annotator) drawValueScale(img *image.RGBA, area image.Rectangle, minVal, maxVal float64) error {
	metrics := a.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()

	// Labels at min, middle and max; grid line at the middle
	labels := []struct {
		value float64
		y     int
	}{
		{maxVal, area.Min.Y + fontHeight/2},
		{(minVal + maxVal) / 2, area.Min.Y + area.Dy()/2},
		{minVal, area.Max.Y - 1},
	}

	midY := area.Min.Y + area.Dy()/2
	for x := area.Min.X + 1; x < area.Max.X-1; x++ {
		img.Set(x, midY, gridColor)
	}

	for _, l := range labels {
		for x := area.Min.X - tickMarkLength; x < area.Min.X; x++ {
			img.Set(x, l.y, color.Black)
		}

		label := formatValue(l.value)
		width := font.MeasureString(a.fontFace, label)
		textY := l.y + fontHeight/2 - metrics.Descent.Round()
		pt := freetype.Pt(area.Min.X-tickMarkLength-width.Round()-5, textY)
		if _, err := a.context.DrawString(label, pt); err != nil {
			return fmt.Errorf("drawing value label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawTimeScale(img *image.RGBA, data *ChartData, width, panelsBottom int) error {
	duration := data.TimestampEnd.Sub(data.TimestampStart)
	if duration <= 0 {
		return nil
	}
	timeStep := calculateNiceTimeStep(duration, width)

	metrics := a.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()
	textY := panelsBottom + tickMarkLength + fontHeight

	start := data.TimestampStart.In(a.config.Location).Truncate(timeStep)
	if start.Before(data.TimestampStart) {
		start = start.Add(timeStep)
	}

	for t := start; !t.After(data.TimestampEnd); t = t.Add(timeStep) {
		xRatio := float64(t.Sub(data.TimestampStart)) / float64(duration)
		x := a.config.Borders.Left + int(xRatio*float64(width))

		for y := panelsBottom; y < panelsBottom+tickMarkLength; y++ {
			img.Set(x, y, color.Black)
		}

		label := t.In(a.config.Location).Format(a.config.TimeFormat)
		labelWidth := font.MeasureString(a.fontFace, label)
		pt := freetype.Pt(x-labelWidth.Round()/2, textY)
		if _, err := a.context.DrawString(label, pt); err != nil {
			return fmt.Errorf("drawing time label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawInfoBar(img *image.RGBA, data *ChartData) error {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Time: %s - %s",
		data.TimestampStart.In(a.config.Location).Format(a.config.DatetimeFormat),
		data.TimestampEnd.In(a.config.Location).Format(a.config.DatetimeFormat)))
	sb.WriteString("; ")
	sb.WriteString(fmt.Sprintf("%s records", humanize.Comma(int64(data.RecordCount))))
	sb.WriteString("; ")
	sb.WriteString(fmt.Sprintf("Duration: %s",
		humanize.RelTime(data.TimestampStart, data.TimestampEnd, "", "")))

	metrics := a.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()

	// Center text vertically in bottom border
	textY := img.Bounds().Max.Y - (a.config.Borders.Bottom-fontHeight)/2 - metrics.Descent.Round()

	pt := freetype.Pt(a.config.Borders.Left, textY)
	_, err := a.context.DrawString(sb.String(), pt)
	if err != nil {
		return fmt.Errorf("drawing info text: %w", err)
	}
	return nil
}

// Helper functions

func channelTitle(channel string) string {
	switch channel {
	case telemetry.ChannelLatitude:
		return "Latitude"
	case telemetry.ChannelLongitude:
		return "Longitude"
	case telemetry.ChannelBatteryVoltage:
		return "Battery Voltage (V)"
	case telemetry.ChannelBatteryPercent:
		return "Battery (%)"
	case telemetry.ChannelAltitude:
		return "Altitude (m)"
	case telemetry.ChannelTemperature:
		return "Temperature (°C)"
	case telemetry.ChannelSignalStrength:
		return "Signal Strength (%)"
	case telemetry.ChannelRoll:
		return "Roll (°)"
	case telemetry.ChannelPitch:
		return "Pitch (°)"
	case telemetry.ChannelYaw:
		return "Yaw (°)"
	default:
		return channel
	}
}

func formatValue(v float64) string {
	switch {
	case math.Abs(v) >= 1000:
		return fmt.Sprintf("%.0f", v)
	case math.Abs(v) >= 10:
		return fmt.Sprintf("%.1f", v)
	default:
		return fmt.Sprintf("%.3f", v)
	}
}

func calculateNiceTimeStep(duration time.Duration, width int) time.Duration {
	desiredLabels := float64(width) / pixelsPerLabel
	roughStep := duration.Seconds() / desiredLabels

	// Nice time intervals in seconds
	niceIntervals := []float64{
		1,    // 1 second
		5,    // 5 seconds
		10,   // 10 seconds
		30,   // 30 seconds
		60,   // 1 minute
		300,  // 5 minutes
		600,  // 10 minutes
		1800, // 30 minutes
		3600, // 1 hour
	}

	// Find the first interval larger than our rough step
	for _, interval := range niceIntervals {
		if roughStep <= interval {
			return time.Duration(interval) * time.Second
		}
	}

	return time.Hour * 2 // Default for very long recordings
}
