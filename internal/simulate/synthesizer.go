package simulate

import (
	"math"
	"math/rand"
	"time"

	"github.com/flightwire/drone-telemetry/internal/telemetry"
)

const (
	// DefaultInterval is the generation tick length.
	DefaultInterval = 100 * time.Millisecond

	// Flight path origin (San Francisco).
	originLatitude  = 37.7749
	originLongitude = -122.4194

	batteryFull  = 12.0
	batteryEmpty = 8.0
	drainPerTick = 0.001

	// Probability per tick that the radio link re-rolls its quality level.
	linkFlipChance = 0.01

	// phasePeriod is the common period of every waveform below: all of
	// them are functions of phase/k with k dividing 1260, so wrapping the
	// phase here changes no output while keeping the counter bounded.
	phasePeriod = 2 * math.Pi * 1260
)

// Link quality levels and their selection weights, most likely first.
var (
	signalLevels  = []float64{95, 75, 50, 25, 0}
	signalWeights = []float64{0.5, 0.3, 0.1, 0.07, 0.03}
)

// WithSeed makes the synthesizer deterministic for tests and replays.
func WithSeed(seed int64) func(*Synthesizer) {
	return func(s *Synthesizer) {
		s.rng = rand.New(rand.NewSource(seed))
	}
}

// WithInterval sets the tick length used to advance time and phase.
func WithInterval(interval time.Duration) func(*Synthesizer) {
	return func(s *Synthesizer) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithStartTime pins the timestamp of tick zero.
func WithStartTime(t time.Time) func(*Synthesizer) {
	return func(s *Synthesizer) {
		s.start = t
	}
}

// Synthesizer produces temporally coherent fake drone telemetry, one
// record per tick. Every channel stays inside its declared envelope in
// telemetry.Envelopes and moves by at most the envelope's MaxDelta between
// consecutive ticks; only the link quality is step-wise. Not safe for
// concurrent use: give each consumer its own instance.
type Synthesizer struct {
	interval time.Duration
	start    time.Time
	rng      *rand.Rand

	tick    uint64
	phase   float64 // Elapsed seconds, wrapped at phasePeriod
	yaw     float64
	voltage float64
	signal  float64
}

// New creates a synthesizer seeded from the clock unless WithSeed is given.
func New(options ...func(*Synthesizer)) *Synthesizer {
	s := Synthesizer{
		interval: DefaultInterval,
		start:    time.Now(),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		voltage:  batteryFull,
		signal:   signalLevels[0],
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

// Next produces the record for the current tick and advances the internal
// phase. Tick zero already yields a fully populated record. While the link
// is down the synthesizer keeps emitting complete records with
// Connected=false; sensor time never freezes.
func (s *Synthesizer) Next() telemetry.Record {
	p := s.phase

	// Battery: slow monotone drain with small ripple, clamped so the
	// derived percentage can never go negative.
	s.voltage -= drainPerTick
	s.voltage += s.jitter(0.01)
	s.voltage = math.Max(batteryEmpty, math.Min(batteryFull, s.voltage))
	percent := (s.voltage - batteryEmpty) / (batteryFull - batteryEmpty) * 100
	percent = math.Max(0, math.Min(100, percent))

	// Heading rotates slowly with jitter; the wrap at 360 is the only
	// place a raw per-tick difference exceeds the declared delta, which is
	// why the yaw envelope is circular.
	s.yaw = math.Mod(s.yaw+1+s.jitter(0.5), 360)

	if s.rng.Float64() < linkFlipChance {
		s.signal = rollSignalLevel(s.rng.Float64())
	}

	rec := telemetry.Record{
		Timestamp:      s.start.Add(time.Duration(s.tick) * s.interval).UnixMilli(),
		Roll:           15*math.Sin(p/5) + s.jitter(2),
		Pitch:          10*math.Cos(p/7) + s.jitter(2),
		Yaw:            s.yaw,
		Latitude:       originLatitude + 0.001*math.Sin(p/20) + s.jitter(0.00002),
		Longitude:      originLongitude + 0.001*math.Cos(p/20) + s.jitter(0.00002),
		Altitude:       100 + 10*math.Sin(p/15) + s.jitter(1),
		BatteryVoltage: s.voltage,
		BatteryPercent: percent,
		Temperature:    25 + 3*math.Sin(p/9) + s.jitter(0.2),
		Connected:      s.signal > 0,
		SignalStrength: s.signal,
	}

	s.tick++
	s.phase = math.Mod(s.phase+s.interval.Seconds(), phasePeriod)

	return rec
}

// jitter returns a uniform value in [-amplitude, amplitude].
func (s *Synthesizer) jitter(amplitude float64) float64 {
	return (s.rng.Float64()*2 - 1) * amplitude
}

// rollSignalLevel maps a uniform [0,1) draw onto the weighted levels.
func rollSignalLevel(u float64) float64 {
	for i, w := range signalWeights {
		if u < w {
			return signalLevels[i]
		}
		u -= w
	}
	return signalLevels[len(signalLevels)-1]
}
