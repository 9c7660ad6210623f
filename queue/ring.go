// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

// Package queue provides the bounded job/result queues and worker
// lifecycle used to run cuckoo solves off the caller's goroutine.
package queue

import "sync/atomic"

// ring is a bounded, lock-free multi-producer multi-consumer queue.
// Each slot carries a "step" stamp instead of storing the value
// directly, the standard fix for the ABA problem on a reused slot: a
// producer may only write a slot whose step equals the slot's own ring
// position (meaning the previous value has already been consumed), and
// a consumer may only read a slot whose step is one past that.
type ring[T any] struct {
	head  uint64
	tail  uint64
	mask  uint64
	bound uint64
	data  []ringSlot[T]
}

type ringSlot[T any] struct {
	step  uint64
	value T
}

// newRing returns a ring buffer holding at most capacity values. The
// slot array is rounded up to the next power of two for cheap index
// masking, but offer enforces the exact requested bound, not the
// rounded slot count.
func newRing[T any](capacity int) *ring[T] {
	n := uint64(1)
	for n < uint64(capacity) {
		n <<= 1
	}

	slots := make([]ringSlot[T], n)
	for i := range slots {
		slots[i].step = uint64(i)
	}

	return &ring[T]{mask: n - 1, bound: uint64(capacity), data: slots}
}

// cap returns the ring's maximum occupancy.
func (r *ring[T]) cap() int { return int(r.bound) }

// offer appends value, returning false if the ring is full. The bound
// check and the tail CAS together keep occupancy at or under cap: a
// successful CAS means tail did not move since the check, and a
// concurrent head advance only lowers occupancy.
func (r *ring[T]) offer(value T) bool {
	for {
		tail := atomic.LoadUint64(&r.tail)
		head := atomic.LoadUint64(&r.head)
		if tail-head >= r.bound {
			return false // ring is full
		}

		slot := &r.data[tail&r.mask]
		step := atomic.LoadUint64(&slot.step)

		if step != tail {
			if step < tail {
				return false // consumer has not yet released this slot
			}
			continue // another producer just claimed this slot
		}

		if atomic.CompareAndSwapUint64(&r.tail, tail, tail+1) {
			slot.value = value
			atomic.StoreUint64(&slot.step, tail+1)
			return true
		}
	}
}

// poll removes and returns the oldest value, or false if empty.
func (r *ring[T]) poll() (value T, ok bool) {
	for {
		head := atomic.LoadUint64(&r.head)
		slot := &r.data[head&r.mask]
		step := atomic.LoadUint64(&slot.step)

		if step != head+1 {
			if step < head+1 {
				return value, false // ring is empty
			}
			continue
		}

		if atomic.CompareAndSwapUint64(&r.head, head, head+1) {
			value = slot.value
			var zero T
			slot.value = zero
			atomic.StoreUint64(&slot.step, head+r.mask+1)
			return value, true
		}
	}
}

// len approximates the current occupancy; exact under quiescence, a
// momentary snapshot otherwise.
func (r *ring[T]) len() int {
	head := atomic.LoadUint64(&r.head)
	tail := atomic.LoadUint64(&r.tail)
	if tail < head {
		return 0
	}
	return int(tail - head)
}
