package store

import "testing"

func TestRing_WrapAround(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		pushes   int
		want     []int64
	}{
		{"empty", 3, 0, nil},
		{"underfilled", 3, 2, []int64{0, 1}},
		{"exactly full", 3, 3, []int64{0, 1, 2}},
		{"one past", 3, 4, []int64{1, 2, 3}},
		{"several laps", 3, 11, []int64{8, 9, 10}},
		{"capacity one", 1, 5, []int64{4}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := newRing(tc.capacity)
			for i := 0; i < tc.pushes; i++ {
				r.push(Point{Timestamp: int64(i), Value: float64(i)})
			}

			got := r.snapshot()
			if len(got) != len(tc.want) {
				t.Fatalf("snapshot length = %d, want %d", len(got), len(tc.want))
			}
			for i, ts := range tc.want {
				if got[i].Timestamp != ts {
					t.Errorf("snapshot[%d].Timestamp = %d, want %d", i, got[i].Timestamp, ts)
				}
			}
		})
	}
}

func TestRing_SnapshotIsCopy(t *testing.T) {
	r := newRing(2)
	r.push(Point{Timestamp: 1})

	snap := r.snapshot()
	r.push(Point{Timestamp: 2})
	r.push(Point{Timestamp: 3})

	if len(snap) != 1 || snap[0].Timestamp != 1 {
		t.Errorf("snapshot mutated by later pushes: %v", snap)
	}
}
