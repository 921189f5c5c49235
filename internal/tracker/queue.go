package tracker

import (
	"image"
	"sync"
	"time"
)

// DefaultQueueSize is the capacity of the alignment vector queue.
const DefaultQueueSize = 5

// AlignmentVector is the pixel offset from the stabilized nose tip to the
// focus point, or an explicit no-face marker.
type AlignmentVector struct {
	DX         int
	DY         int
	CapturedAt time.Time
	NoFace     bool
}

// Offset returns the vector as a point.
func (v AlignmentVector) Offset() image.Point {
	return image.Pt(v.DX, v.DY)
}

// VectorQueue is a bounded FIFO that evicts its oldest entry to make room
// for a new one. Producers never block.
type VectorQueue struct {
	mu   sync.Mutex
	buf  []AlignmentVector
	head int
	size int
}

// NewVectorQueue creates a queue holding at most capacity vectors.
func NewVectorQueue(capacity int) *VectorQueue {
	if capacity <= 0 {
		capacity = DefaultQueueSize
	}
	return &VectorQueue{buf: make([]AlignmentVector, capacity)}
}

// Push appends v, evicting the oldest entry when full.
func (q *VectorQueue) Push(v AlignmentVector) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.size == len(q.buf) {
		q.head = (q.head + 1) % len(q.buf)
		q.size--
	}
	q.buf[(q.head+q.size)%len(q.buf)] = v
	q.size++
}

// Newest returns the most recent vector without removing it.
func (q *VectorQueue) Newest() (AlignmentVector, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.size == 0 {
		return AlignmentVector{}, false
	}
	return q.buf[(q.head+q.size-1)%len(q.buf)], true
}

// Pop removes and returns the oldest vector.
func (q *VectorQueue) Pop() (AlignmentVector, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.size == 0 {
		return AlignmentVector{}, false
	}
	v := q.buf[q.head]
	q.head = (q.head + 1) % len(q.buf)
	q.size--
	return v, true
}

// Len returns the number of queued vectors.
func (q *VectorQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Cap returns the queue capacity.
func (q *VectorQueue) Cap() int {
	return len(q.buf)
}

// Snapshot returns the queued vectors, oldest first.
func (q *VectorQueue) Snapshot() []AlignmentVector {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]AlignmentVector, q.size)
	for i := 0; i < q.size; i++ {
		out[i] = q.buf[(q.head+i)%len(q.buf)]
	}
	return out
}

// previewSlot holds one frame; a new frame replaces an unconsumed one.
type previewSlot struct {
	mu    sync.Mutex
	frame image.Image
}

func (s *previewSlot) put(img image.Image) {
	s.mu.Lock()
	s.frame = img
	s.mu.Unlock()
}

func (s *previewSlot) take() (image.Image, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	img := s.frame
	s.frame = nil
	return img, img != nil
}
