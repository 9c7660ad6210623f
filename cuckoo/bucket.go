// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package cuckoo

import (
	"fmt"
	"sync/atomic"
)

// errOverflow reports a bucket-overflow or table-exhaustion abort:
// fatal, reported with the bucket indices that triggered it, no
// partial recovery attempted.
type errOverflow struct {
	stage string
	x, y  uint32
}

func (e *errOverflow) Error() string {
	return fmt.Sprintf("cuckoo: %s overflow at bucket (%d,%d)", e.stage, e.x, e.y)
}

// half is one endpoint of a surviving edge: x and y are fixed once the
// edge is first generated and never change; id starts as the Z residue
// and is replaced by a dense per-(x,y)-tile index at each rename round.
// Keeping y explicit alongside x is what lets a rename round look up
// the right tile's reverse table at recovery time without having to
// recompute or carry it separately.
type half struct {
	x, y uint32
	id   uint32
}

// workEdge is a surviving edge mid-pipeline, both endpoints explicit.
type workEdge struct {
	u, v half
}

// tile is one (X,Y)-addressed bucket arena. size is reserved atomically
// by writers via fetch-add; capacity is fixed at construction time so
// overflow is detected rather than silently growing.
type tile struct {
	size atomic.Uint32
	data []workEdge
}

func newTile(cap uint32) *tile {
	return &tile{data: make([]workEdge, cap)}
}

// reserve claims the next free slot in the tile, or reports overflow.
func (t *tile) reserve() (uint32, bool) {
	i := t.size.Add(1) - 1
	if i >= uint32(len(t.data)) {
		return 0, false
	}
	return i, true
}

func (t *tile) put(i uint32, e workEdge) { t.data[i] = e }

func (t *tile) slice() []workEdge { return t.data[:t.size.Load()] }

// bucketMatrix is the 2-D array of tiles B[X][Y].
type bucketMatrix struct {
	nx, ny uint32
	tiles  []*tile
}

func newBucketMatrix(nx, ny, cap uint32) *bucketMatrix {
	m := &bucketMatrix{nx: nx, ny: ny, tiles: make([]*tile, nx*ny)}
	for i := range m.tiles {
		m.tiles[i] = newTile(cap)
	}
	return m
}

func (m *bucketMatrix) at(x, y uint32) *tile { return m.tiles[x*m.ny+y] }

// put reserves a slot in bucket (x,y) and writes e into it, returning an
// overflow error if the tile is full.
func (m *bucketMatrix) put(x, y uint32, e workEdge) error {
	t := m.at(x, y)
	i, ok := t.reserve()
	if !ok {
		return &errOverflow{stage: "trim", x: x, y: y}
	}
	t.put(i, e)
	return nil
}

// degreeBitmap tracks, for each Z slot of one (X,Y) tile, whether a node
// has been seen 0, 1 or ≥2 times: two bits per Z index, a seen/seen-again
// state machine built from two overlapping OR passes. sync/atomic has no
// native OR on uint32/uint64 in this Go toolchain generation, so the OR
// is a CAS retry loop.
type degreeBitmap struct {
	bits []atomic.Uint64 // 2 bits per slot, 32 slots per word
}

func newDegreeBitmap(numSlots uint32) *degreeBitmap {
	words := (numSlots + 31) / 32
	return &degreeBitmap{bits: make([]atomic.Uint64, words)}
}

// mark records one occurrence of slot z, advancing its state from unseen
// to seen-once to seen-at-least-twice.
func (d *degreeBitmap) mark(z uint32) {
	word := z / 32
	shift := uint((z % 32) * 2)
	mask := uint64(0b11) << shift

	for {
		old := d.bits[word].Load()
		state := (old >> shift) & 0b11
		var next uint64
		switch state {
		case 0:
			next = 1
		default:
			next = 2 // saturates at "seen ≥2"
		}
		updated := (old &^ mask) | (next << shift)
		if d.bits[word].CompareAndSwap(old, updated) {
			return
		}
	}
}

// degreeAtLeast2 reports whether slot z has been marked at least twice.
func (d *degreeBitmap) degreeAtLeast2(z uint32) bool {
	word := z / 32
	shift := uint((z % 32) * 2)
	state := (d.bits[word].Load() >> shift) & 0b11
	return state >= 2
}

// deltaLagWindow is the number of values at the top of the representable
// delta range treated as the "lag window" (L = mask>>2, one quarter of
// the range). A decoded delta in the top L values is interpreted as a
// backward (wrap-around) step; see deltaDecode.
func deltaLagWindow(prefixBits uint8) uint32 {
	mask := uint32(1)<<prefixBits - 1
	return mask >> 2
}

// deltaEncode returns nonce-prev reduced modulo 2^prefixBits, the
// compact form stored alongside a bucket record during edge generation.
func deltaEncode(prev, nonce uint32, prefixBits uint8) uint32 {
	mask := uint32(1)<<prefixBits - 1
	return (nonce - prev) & mask
}

// deltaDecode reconstructs nonce from prev and an encoded delta. Deltas
// in the top `lag` slots of the representable range ([2^prefixBits-lag,
// 2^prefixBits)) are interpreted as small backward/wrap-around steps;
// everything below that is a direct forward step. Any strictly-increasing
// stream whose max gap stays under (2^prefixBits - lag) round-trips
// exactly, since such a gap always encodes below the wrap-around
// threshold.
func deltaDecode(prev, delta uint32, prefixBits uint8) uint32 {
	mask := uint32(1)<<prefixBits - 1
	lag := deltaLagWindow(prefixBits)
	threshold := mask + 1 - lag

	if delta >= threshold {
		return prev - (mask + 1 - delta)
	}
	return prev + delta
}
