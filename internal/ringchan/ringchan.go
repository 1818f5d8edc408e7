// Package ringchan provides a bounded, overwrite-oldest channel used to fan
// decoded media updates out of the BLE event loop without ever blocking it.
package ringchan

import "sync/atomic"

// Ring is a bounded channel-like buffer with overwrite-oldest semantics.
//
// A Ring has a single producer (the event loop) and any number of consumers.
// The producer never blocks: when the buffer is full the oldest element is
// discarded to make room.
//
//	r := ringchan.New[int](3)
//	for i := 0; i < 10; i++ {
//	    r.Send(i)
//	}
//	// only 7, 8 and 9 remain buffered
type Ring[T any] struct {
	ch chan T

	written     atomic.Int64
	overwritten atomic.Int64
	received    atomic.Int64
}

// Stats is a point-in-time copy of the ring counters.
type Stats struct {
	Written     int64
	Overwritten int64
	Received    int64
}

// New creates a Ring with the given capacity.
func New[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		panic("ringchan: capacity must be > 0")
	}
	return &Ring[T]{ch: make(chan T, capacity)}
}

// Send inserts v, discarding the oldest element when the buffer is full.
// It reports whether an element was discarded.
func (r *Ring[T]) Send(v T) (dropped bool) {
	select {
	case r.ch <- v:
		r.written.Add(1)
		return false
	default:
	}

	select {
	case <-r.ch:
		r.overwritten.Add(1)
		dropped = true
	default:
	}

	select {
	case r.ch <- v:
		r.written.Add(1)
	default:
		// a consumer-free ring refilled between the two selects; v is lost
		r.overwritten.Add(1)
		dropped = true
	}
	return dropped
}

// C returns the receive side. Reads through C are not counted in Stats.
func (r *Ring[T]) C() <-chan T {
	return r.ch
}

// TryReceive returns the oldest buffered element without blocking.
func (r *Ring[T]) TryReceive() (v T, ok bool) {
	select {
	case v = <-r.ch:
		r.received.Add(1)
		return v, true
	default:
		return v, false
	}
}

// Len returns the number of buffered elements.
func (r *Ring[T]) Len() int {
	return len(r.ch)
}

// Stats returns a snapshot of the ring counters.
func (r *Ring[T]) Stats() Stats {
	return Stats{
		Written:     r.written.Load(),
		Overwritten: r.overwritten.Load(),
		Received:    r.received.Load(),
	}
}
