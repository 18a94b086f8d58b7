package telemetry

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Channel names. These double as the stable wire field names of the
// corresponding Record fields, so they must never be renamed.
const (
	ChannelRoll           = "roll"
	ChannelPitch          = "pitch"
	ChannelYaw            = "yaw"
	ChannelLatitude       = "lat"
	ChannelLongitude      = "lon"
	ChannelAltitude       = "altitude"
	ChannelBatteryVoltage = "battery_voltage"
	ChannelBatteryPercent = "battery_percent"
	ChannelTemperature    = "temperature"
	ChannelSignalStrength = "signal_strength"
)

// Channels lists every scalar channel tracked per record, in display order.
var Channels = []string{
	ChannelRoll,
	ChannelPitch,
	ChannelYaw,
	ChannelLatitude,
	ChannelLongitude,
	ChannelAltitude,
	ChannelBatteryVoltage,
	ChannelBatteryPercent,
	ChannelTemperature,
	ChannelSignalStrength,
}

// ErrMalformedRecord is returned by Validate for records that must not
// reach the store.
var ErrMalformedRecord = errors.New("malformed telemetry record")

// Record is a complete telemetry snapshot at one instant. Field names on
// the wire are flat and stable; the JSON encoding round-trips losslessly
// through the telemetry channel.
type Record struct {
	Timestamp      int64   `json:"timestamp"` // Milliseconds since Unix epoch
	Roll           float64 `json:"roll"`      // Roll angle in degrees
	Pitch          float64 `json:"pitch"`     // Pitch angle in degrees
	Yaw            float64 `json:"yaw"`       // Yaw angle in degrees, [0,360)
	Latitude       float64 `json:"lat"`       // GPS latitude in degrees
	Longitude      float64 `json:"lon"`       // GPS longitude in degrees
	Altitude       float64 `json:"altitude"`  // Barometric altitude in meters
	BatteryVoltage float64 `json:"battery_voltage"`
	BatteryPercent float64 `json:"battery_percent"` // Derived from voltage, [0,100]
	Temperature    float64 `json:"temperature"`     // Degrees Celsius
	Connected      bool    `json:"connected"`
	SignalStrength float64 `json:"signal_strength"` // Radio link quality, [0,100]
}

// Time converts the record timestamp to wall-clock time.
func (r *Record) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// Value projects the record onto a named scalar channel. The second return
// is false for unknown channel names.
func (r *Record) Value(channel string) (float64, bool) {
	switch channel {
	case ChannelRoll:
		return r.Roll, true
	case ChannelPitch:
		return r.Pitch, true
	case ChannelYaw:
		return r.Yaw, true
	case ChannelLatitude:
		return r.Latitude, true
	case ChannelLongitude:
		return r.Longitude, true
	case ChannelAltitude:
		return r.Altitude, true
	case ChannelBatteryVoltage:
		return r.BatteryVoltage, true
	case ChannelBatteryPercent:
		return r.BatteryPercent, true
	case ChannelTemperature:
		return r.Temperature, true
	case ChannelSignalStrength:
		return r.SignalStrength, true
	default:
		return 0, false
	}
}

// Validate rejects records that would corrupt downstream consumers: every
// numeric channel must be finite. It does not enforce envelopes; the
// producer is trusted for ranges, but NaN and Inf never pass.
func (r *Record) Validate() error {
	for _, name := range Channels {
		v, _ := r.Value(name)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: field %q is not finite", ErrMalformedRecord, name)
		}
	}
	return nil
}

// Envelope declares the [Min, Max] range a channel stays within for all
// time, and the largest change the channel may make between two
// consecutive ticks. MaxDelta of zero marks a step-wise channel with no
// continuity bound.
type Envelope struct {
	Min, Max float64
	MaxDelta float64
}

// Contains reports whether v is inside the envelope.
func (e Envelope) Contains(v float64) bool {
	return v >= e.Min && v <= e.Max
}

// Envelopes declares the per-channel bounds the synthesizer guarantees.
// Yaw is circular: its MaxDelta applies to the angular distance, not the
// raw difference across the 360° wrap.
var Envelopes = map[string]Envelope{
	ChannelRoll:           {Min: -17.5, Max: 17.5, MaxDelta: 4.5},
	ChannelPitch:          {Min: -12.5, Max: 12.5, MaxDelta: 4.5},
	ChannelYaw:            {Min: 0, Max: 360, MaxDelta: 1.6},
	ChannelLatitude:       {Min: 37.7729, Max: 37.7769, MaxDelta: 0.0001},
	ChannelLongitude:      {Min: -122.4214, Max: -122.4174, MaxDelta: 0.0001},
	ChannelAltitude:       {Min: 85, Max: 115, MaxDelta: 2.5},
	ChannelBatteryVoltage: {Min: 8, Max: 12, MaxDelta: 0.015},
	ChannelBatteryPercent: {Min: 0, Max: 100, MaxDelta: 0.4},
	ChannelTemperature:    {Min: 21, Max: 29, MaxDelta: 0.5},
	ChannelSignalStrength: {Min: 0, Max: 100}, // step-wise, models outages
}
