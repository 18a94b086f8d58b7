package store

import (
	"sync"
	"testing"
	"time"

	"github.com/flightwire/drone-telemetry/internal/telemetry"
)

func record(ts int64, voltage float64) telemetry.Record {
	return telemetry.Record{
		Timestamp:      ts,
		Yaw:            float64(ts % 360),
		Latitude:       37.7749,
		Longitude:      -122.4194,
		Altitude:       100,
		BatteryVoltage: voltage,
		BatteryPercent: (voltage - 8) / 4 * 100,
		Temperature:    25,
		Connected:      true,
		SignalStrength: 95,
	}
}

func TestNew_RejectsInvalidCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1, -100} {
		if _, err := New(capacity); err == nil {
			t.Errorf("New(%d) succeeded, want error", capacity)
		}
	}

	s, err := New(5)
	if err != nil {
		t.Fatalf("New(5) failed: %v", err)
	}
	if s.Capacity() != 5 {
		t.Errorf("Capacity() = %d, want 5", s.Capacity())
	}
}

func TestStore_LatestBeforeAndAfterWrite(t *testing.T) {
	s, err := New(10)
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := s.Latest(); ok {
		t.Error("Latest reported data on an empty store")
	}

	s.Write(record(100, 11.9))
	s.Write(record(200, 11.8))

	latest, ok := s.Latest()
	if !ok {
		t.Fatal("Latest reported no data after writes")
	}
	if latest.Timestamp != 200 || latest.BatteryVoltage != 11.8 {
		t.Errorf("Latest = {ts:%d, v:%v}, want {ts:200, v:11.8}", latest.Timestamp, latest.BatteryVoltage)
	}
}

func TestStore_HistoryEvictsOldest(t *testing.T) {
	const capacity = 10
	s, err := New(capacity)
	if err != nil {
		t.Fatal(err)
	}

	// Overfill well past capacity
	for i := 0; i < capacity+25; i++ {
		s.Write(record(int64(i), 12))
	}

	history := s.History(telemetry.ChannelBatteryVoltage)
	if len(history) != capacity {
		t.Fatalf("history length = %d, want %d", len(history), capacity)
	}

	// Oldest capacity points must be gone, survivors in arrival order
	for i, p := range history {
		want := int64(25 + i)
		if p.Timestamp != want {
			t.Errorf("history[%d].Timestamp = %d, want %d", i, p.Timestamp, want)
		}
	}
}

func TestStore_HistoryUnderfilled(t *testing.T) {
	s, err := New(10)
	if err != nil {
		t.Fatal(err)
	}

	if got := s.History(telemetry.ChannelRoll); got != nil {
		t.Errorf("empty store history = %v, want nil", got)
	}

	s.Write(record(1, 12))
	s.Write(record(2, 12))

	history := s.History(telemetry.ChannelRoll)
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if history[0].Timestamp != 1 || history[1].Timestamp != 2 {
		t.Errorf("history out of order: %v", history)
	}
}

func TestStore_HistoryUnknownChannel(t *testing.T) {
	s, err := New(10)
	if err != nil {
		t.Fatal(err)
	}
	s.Write(record(1, 12))

	if got := s.History("bogus"); got != nil {
		t.Errorf("unknown channel history = %v, want nil", got)
	}
}

func TestStore_HistoryCopyIsStable(t *testing.T) {
	s, err := New(10)
	if err != nil {
		t.Fatal(err)
	}
	s.Write(record(1, 12))

	history := s.History(telemetry.ChannelBatteryVoltage)
	s.Write(record(2, 11))

	if len(history) != 1 || history[0].Timestamp != 1 {
		t.Errorf("returned history mutated by later write: %v", history)
	}
}

func TestStore_Snapshot(t *testing.T) {
	s, err := New(10)
	if err != nil {
		t.Fatal(err)
	}

	snap := s.Snapshot(nil, time.Second)
	if snap.Latest != nil {
		t.Error("empty snapshot has a latest record")
	}
	if snap.Connected {
		t.Error("empty snapshot reports connected")
	}
	if !snap.Stale {
		t.Error("empty snapshot is not stale")
	}

	s.Write(record(1, 12))
	s.Write(record(2, 11.9))

	snap = s.Snapshot(nil, time.Second)
	if snap.Latest == nil || snap.Latest.Timestamp != 2 {
		t.Fatalf("snapshot latest = %+v, want timestamp 2", snap.Latest)
	}
	if !snap.Connected {
		t.Error("snapshot reports disconnected after write")
	}
	if snap.Stale {
		t.Error("snapshot is stale immediately after a write")
	}
	if len(snap.Histories) != len(telemetry.Channels) {
		t.Errorf("nil channel filter yielded %d histories, want %d",
			len(snap.Histories), len(telemetry.Channels))
	}
	if got := snap.Histories[telemetry.ChannelBatteryVoltage]; len(got) != 2 {
		t.Errorf("voltage history length = %d, want 2", len(got))
	}

	// Explicit channel selection
	snap = s.Snapshot([]string{telemetry.ChannelAltitude}, time.Second)
	if len(snap.Histories) != 1 {
		t.Errorf("selected 1 channel, got %d histories", len(snap.Histories))
	}

	// Empty non-nil selection skips histories entirely
	snap = s.Snapshot([]string{}, time.Second)
	if len(snap.Histories) != 0 {
		t.Errorf("empty selection yielded %d histories, want 0", len(snap.Histories))
	}
}

func TestStore_SnapshotLatestIsCopy(t *testing.T) {
	s, err := New(10)
	if err != nil {
		t.Fatal(err)
	}
	s.Write(record(1, 12))

	snap := s.Snapshot(nil, 0)
	snap.Latest.Timestamp = 999

	latest, _ := s.Latest()
	if latest.Timestamp != 1 {
		t.Error("mutating a snapshot leaked into the store")
	}
}

func TestStore_Staleness(t *testing.T) {
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s, err := New(10, WithClock(func() time.Time { return clock }))
	if err != nil {
		t.Fatal(err)
	}

	if got := s.Staleness(); got >= 0 {
		t.Errorf("Staleness before first write = %v, want negative", got)
	}
	if !s.Stale(time.Second) {
		t.Error("store with no writes is not stale")
	}

	s.Write(record(1, 12))
	if got := s.Staleness(); got != 0 {
		t.Errorf("Staleness right after write = %v, want 0", got)
	}
	if s.Stale(time.Second) {
		t.Error("store is stale right after a write")
	}

	clock = clock.Add(999 * time.Millisecond)
	if s.Stale(time.Second) {
		t.Error("store went stale before the threshold elapsed")
	}

	clock = clock.Add(2 * time.Millisecond)
	if !s.Stale(time.Second) {
		t.Error("store did not go stale past the threshold")
	}
	if got := s.Staleness(); got != 1001*time.Millisecond {
		t.Errorf("Staleness = %v, want 1.001s", got)
	}

	// Zero threshold disables the verdict once data exists
	if s.Stale(0) {
		t.Error("zero threshold reported stale")
	}
}

func TestStore_SetConnected(t *testing.T) {
	s, err := New(10)
	if err != nil {
		t.Fatal(err)
	}
	s.Write(record(1, 12))

	s.SetConnected(false)
	if snap := s.Snapshot(nil, 0); snap.Connected {
		t.Error("snapshot reports connected after SetConnected(false)")
	}

	// A fresh write marks the link healthy again
	s.Write(record(2, 12))
	if snap := s.Snapshot(nil, 0); !snap.Connected {
		t.Error("snapshot reports disconnected after a new write")
	}
}

func TestStore_ConcurrentReadersAndWriter(t *testing.T) {
	const capacity = 16
	s, err := New(capacity)
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-done:
				return
			default:
				s.Write(record(int64(i), 12))
			}
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}

				snap := s.Snapshot(nil, time.Second)
				for name, history := range snap.Histories {
					if len(history) > capacity {
						t.Errorf("%s history length %d exceeds capacity %d", name, len(history), capacity)
						return
					}
					for i := 1; i < len(history); i++ {
						if history[i].Timestamp < history[i-1].Timestamp {
							t.Errorf("%s history out of order at %d", name, i)
							return
						}
					}
					// Latest must never lag its own history
					if snap.Latest != nil && len(history) > 0 &&
						history[len(history)-1].Timestamp > snap.Latest.Timestamp {
						t.Error("history is ahead of the latest record")
						return
					}
				}
			}
		}()
	}

	time.Sleep(200 * time.Millisecond)
	close(done)
	wg.Wait()
}
