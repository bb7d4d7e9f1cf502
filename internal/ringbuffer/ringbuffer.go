// Package ringbuffer is a fixed capacity FIFO of values.
package ringbuffer

import "errors"

type RingBuffer[T any] struct {
	buffer []T
	begin  int
	end    int
	full   bool
}

var (
	ErrBufferIsEmpty = errors.New("buffer is empty")
	ErrBufferIsFull  = errors.New("buffer is full")
)

const (
	defaultBufferSz = 256
)

func New[T any](sz int) *RingBuffer[T] {
	if sz <= 0 {
		sz = defaultBufferSz
	}

	return &RingBuffer[T]{
		buffer: make([]T, sz),
	}
}

func (r *RingBuffer[T]) Cap() int {
	return len(r.buffer)
}

func (r *RingBuffer[T]) ReadValue() (v T, err error) {
	if !r.full && r.end == r.begin {
		return v, ErrBufferIsEmpty
	}

	// Get the current value from the buffer
	v = r.buffer[r.begin]

	// Advance the begin iterator to the next value
	r.begin = r.next(r.begin)

	// The buffer would no longer be full
	r.full = false

	return v, nil
}

func (r *RingBuffer[T]) WriteValue(v T) error {
	if r.full {
		return ErrBufferIsFull
	}

	r.buffer[r.end] = v
	r.end = r.next(r.end)

	// Check if the next value is the begin iterator
	if r.end == r.begin {
		r.full = true
	}

	return nil
}

// Put writes v, dropping the oldest value when the buffer is full.
func (r *RingBuffer[T]) Put(v T) {
	if r.full {
		r.begin = r.next(r.begin)
		r.full = false
	}
	_ = r.WriteValue(v)
}

// Snapshot copies the buffered values, oldest first, without consuming them.
func (r *RingBuffer[T]) Snapshot() []T {
	out := make([]T, 0, r.Len())
	if r.Len() == 0 {
		return out
	}

	if r.end > r.begin {
		return append(out, r.buffer[r.begin:r.end]...)
	}

	// Copy to end of buffer first
	out = append(out, r.buffer[r.begin:]...)
	return append(out, r.buffer[:r.end]...)
}

func (r *RingBuffer[T]) Reset() {
	r.begin, r.end, r.full = 0, 0, false
}

func (r *RingBuffer[T]) Len() int {
	if r.full {
		return len(r.buffer)
	} else if r.end >= r.begin {
		return r.end - r.begin
	} else {
		return (len(r.buffer) - r.begin) + r.end
	}
}

func (r *RingBuffer[T]) next(i int) int {
	i++
	if i == len(r.buffer) {
		return 0
	}
	return i
}
