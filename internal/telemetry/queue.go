package telemetry

import "sync"

// ingressQueue is the bounded buffer between the telemetry feed and the
// processing loop. It supports exactly one producer and one consumer.
// Push never blocks: a full queue rejects the frame and the caller counts
// the drop.
type ingressQueue struct {
	mu     sync.Mutex
	frames []Frame
	head   int
	size   int
}

func newIngressQueue(capacity int) *ingressQueue {
	return &ingressQueue{frames: make([]Frame, capacity)}
}

// push appends a frame and reports whether it was accepted. O(1).
func (q *ingressQueue) push(f Frame) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.size == len(q.frames) {
		return false
	}

	q.frames[(q.head+q.size)%len(q.frames)] = f
	q.size++
	return true
}

// pop removes the oldest frame. Non-blocking; the second result is false
// when the queue is empty.
func (q *ingressQueue) pop() (Frame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.size == 0 {
		return Frame{}, false
	}

	f := q.frames[q.head]
	q.frames[q.head] = Frame{}
	q.head = (q.head + 1) % len(q.frames)
	q.size--
	return f, true
}

// drain moves up to cap(dst)-len(dst) frames into dst and returns the
// extended slice. A single lock acquisition covers the whole batch.
func (q *ingressQueue) drain(dst []Frame) []Frame {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := cap(dst) - len(dst)
	if n > q.size {
		n = q.size
	}

	for i := 0; i < n; i++ {
		dst = append(dst, q.frames[q.head])
		q.frames[q.head] = Frame{}
		q.head = (q.head + 1) % len(q.frames)
	}
	q.size -= n
	return dst
}

func (q *ingressQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}
