package spu

import "sync/atomic"

// RingBuffer is the lock-free single-producer/single-consumer queue of
// mixed stereo frames: the host's audio thread pulls PCM frames from it,
// filled by the emulation thread's SPU advance. No ring-buffer library
// appears anywhere in the example pack (audio_backend_oto.go's own oto
// backend pre-allocates a plain sample slice and fills it synchronously
// from inside Read(), rather than decoupling producer/consumer with a
// queue), so this is a small hand-rolled SPSC ring over a
// power-of-two-sized slice, built directly on sync/atomic the way
// audio_backend_oto.go's atomic.Pointer chip handoff is - a lock-free hot
// path guarded only by atomics, no third-party queue package. Logged as a
// stdlib justification in DESIGN.md.
type RingBuffer struct {
	mask  uint32
	left  []int16
	right []int16

	writeIdx atomic.Uint32
	readIdx  atomic.Uint32
}

// NewRingBuffer allocates a ring sized to the next power of two >= capacity.
func NewRingBuffer(capacity int) *RingBuffer {
	n := 1
	for n < capacity {
		n <<= 1
	}
	if n == 0 {
		n = 1
	}
	return &RingBuffer{mask: uint32(n - 1), left: make([]int16, n), right: make([]int16, n)}
}

// Push enqueues one stereo frame from the producer (emulation) side. If
// the ring is full, the oldest unread frame is overwritten: the emulation
// thread must never block indefinitely on a full ring, so dropping the
// oldest frame is the representative choice here over stalling the whole
// core waiting for the host to drain it.
func (r *RingBuffer) Push(left, right int16) {
	w := r.writeIdx.Load()
	idx := w & r.mask
	r.left[idx] = left
	r.right[idx] = right
	r.writeIdx.Store(w + 1)

	if w+1-r.readIdx.Load() > r.mask+1 {
		r.readIdx.Store(w + 1 - (r.mask + 1))
	}
}

// Pop dequeues one stereo frame from the consumer (host audio) side.
// Returns ok=false if the ring is empty.
func (r *RingBuffer) Pop() (left, right int16, ok bool) {
	rd := r.readIdx.Load()
	if rd == r.writeIdx.Load() {
		return 0, 0, false
	}
	idx := rd & r.mask
	left, right = r.left[idx], r.right[idx]
	r.readIdx.Store(rd + 1)
	return left, right, true
}

// Len returns the number of frames currently queued.
func (r *RingBuffer) Len() int {
	return int(r.writeIdx.Load() - r.readIdx.Load())
}

// Reset drops all queued frames.
func (r *RingBuffer) Reset() {
	r.writeIdx.Store(0)
	r.readIdx.Store(0)
}
