package history

import "sync"

// Capacity is the number of points kept for charting.
const Capacity = 60

// Point is one charted temperature sample.
type Point struct {
	// Timestamp in milliseconds since the Unix epoch.
	Timestamp int64   `json:"timestamp"`
	CPUTemp   float64 `json:"cpuTemp"`
	GPUTemp   float64 `json:"gpuTemp"`
}

// Buffer is a fixed-capacity FIFO of Points, oldest first.
type Buffer struct {
	mu       sync.RWMutex
	points   []Point
	capacity int
}

// New returns an empty Buffer holding at most Capacity points.
func New() *Buffer {
	return NewWithCapacity(Capacity)
}

// NewWithCapacity returns an empty Buffer holding at most capacity points.
// A non-positive capacity falls back to Capacity.
func NewWithCapacity(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = Capacity
	}
	return &Buffer{
		points:   make([]Point, 0, capacity),
		capacity: capacity,
	}
}

// Push appends p, evicting the oldest points once capacity is exceeded.
func (b *Buffer) Push(p Point) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.points = append(b.points, p)
	if over := len(b.points) - b.capacity; over > 0 {
		// Shift in place so the backing array never grows past capacity.
		n := copy(b.points, b.points[over:])
		b.points = b.points[:n]
	}
}

// Points returns a copy of the buffered points, oldest to newest.
func (b *Buffer) Points() []Point {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Point, len(b.points))
	copy(out, b.points)
	return out
}

// Latest returns the newest point, if any.
func (b *Buffer) Latest() (Point, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.points) == 0 {
		return Point{}, false
	}
	return b.points[len(b.points)-1], true
}

func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.points)
}

func (b *Buffer) Cap() int {
	return b.capacity
}
