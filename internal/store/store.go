package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/flightwire/drone-telemetry/internal/telemetry"
)

// DefaultCapacity is the per-channel history length used when no
// configuration is supplied.
const DefaultCapacity = 100

// Point is one (timestamp, value) pair in a channel history.
type Point struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// Snapshot is a consistent view of the store taken in a single critical
// section: the latest record is never observed without its matching
// history appends, and histories are never torn by a concurrent write.
type Snapshot struct {
	Latest    *telemetry.Record
	Histories map[string][]Point
	Connected bool
	Stale     bool
}

// WithClock injects the time source used for staleness tracking.
func WithClock(now func() time.Time) func(*Store) {
	return func(s *Store) {
		s.now = now
	}
}

// Store holds the latest telemetry record plus a fixed-capacity recent
// history per channel. A single ingest path writes; any number of readers
// may query concurrently. All operations hold the lock only for bounded
// in-memory work, so neither side can stall the other.
type Store struct {
	capacity int
	now      func() time.Time

	mu           sync.RWMutex
	latest       *telemetry.Record
	histories    map[string]*ring
	lastWrite    time.Time
	disconnected bool
}

// New creates an empty store. Capacity is the history window per channel;
// non-positive values are a configuration error and rejected up front,
// never at runtime.
func New(capacity int, options ...func(*Store)) (*Store, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("invalid history capacity %d, must be positive", capacity)
	}

	s := Store{
		capacity:  capacity,
		now:       time.Now,
		histories: make(map[string]*ring, len(telemetry.Channels)),
	}
	for _, name := range telemetry.Channels {
		s.histories[name] = newRing(capacity)
	}

	for _, option := range options {
		option(&s)
	}

	return &s, nil
}

// Capacity returns the per-channel history window.
func (s *Store) Capacity() int {
	return s.capacity
}

// Write publishes a record: the latest pointer and every channel history
// are updated atomically from a reader's point of view. Records are
// appended in arrival order; out-of-order timestamps are accepted as-is,
// the producer is trusted to send monotonically.
func (s *Store) Write(rec telemetry.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.latest = &rec
	for name, history := range s.histories {
		if v, ok := rec.Value(name); ok {
			history.push(Point{Timestamp: rec.Timestamp, Value: v})
		}
	}
	s.lastWrite = s.now()
	s.disconnected = false
}

// Latest returns a copy of the most recent record. The second return is
// false before the first write.
func (s *Store) Latest() (telemetry.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.latest == nil {
		return telemetry.Record{}, false
	}
	return *s.latest, true
}

// History returns the recent history of one channel in arrival order, as a
// stable copy. Unknown channels return nil.
func (s *Store) History(channel string) []Point {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.histories[channel]
	if !ok {
		return nil
	}
	return history.snapshot()
}

// Snapshot takes the render-path view of the store: the latest record,
// the histories of the requested channels (all channels when nil), the
// connection flag and a staleness verdict, all under one read lock.
// An empty store yields a well-defined Snapshot with a nil Latest.
func (s *Store) Snapshot(channels []string, staleAfter time.Duration) Snapshot {
	if channels == nil {
		channels = telemetry.Channels
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Histories: make(map[string][]Point, len(channels)),
		Connected: !s.disconnected && s.latest != nil,
		Stale:     s.staleLocked(staleAfter),
	}
	if s.latest != nil {
		rec := *s.latest
		snap.Latest = &rec
	}
	for _, name := range channels {
		if history, ok := s.histories[name]; ok {
			snap.Histories[name] = history.snapshot()
		}
	}

	return snap
}

// SetConnected records the link state as observed by the ingest path, so
// readers can distinguish "no data yet" from "link lost".
func (s *Store) SetConnected(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnected = !connected
}

// Staleness returns the elapsed time since the last accepted write, or a
// negative duration before the first write.
func (s *Store) Staleness() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.lastWrite.IsZero() {
		return -1
	}
	return s.now().Sub(s.lastWrite)
}

// Stale reports whether no write was accepted within the threshold.
func (s *Store) Stale(threshold time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.staleLocked(threshold)
}

func (s *Store) staleLocked(threshold time.Duration) bool {
	if s.lastWrite.IsZero() {
		return true
	}
	return threshold > 0 && s.now().Sub(s.lastWrite) > threshold
}
