package store

// ring is a fixed-capacity FIFO over Points backed by a single array and a
// write cursor: appending at capacity overwrites the oldest entry in O(1).
type ring struct {
	points []Point
	head   int // Next write position
	size   int
}

func newRing(capacity int) *ring {
	return &ring{points: make([]Point, capacity)}
}

func (r *ring) push(p Point) {
	r.points[r.head] = p
	r.head = (r.head + 1) % len(r.points)
	if r.size < len(r.points) {
		r.size++
	}
}

// snapshot copies the buffered points oldest-first.
func (r *ring) snapshot() []Point {
	if r.size == 0 {
		return nil
	}

	out := make([]Point, r.size)
	start := r.head - r.size
	if start < 0 {
		start += len(r.points)
	}
	for i := 0; i < r.size; i++ {
		out[i] = r.points[(start+i)%len(r.points)]
	}
	return out
}
