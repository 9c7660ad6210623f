// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

// Package cuckoo solves and verifies the Cuckoo Cycle memory-hard
// proof-of-work: given a 32-byte header, find a 42-edge simple cycle in
// the SipHash-keyed bipartite graph it induces.
package cuckoo

import "runtime"

// ProofSize is the cycle length a valid proof must have.
const ProofSize = 42

// MinEdgeBits is the smallest edge-bit count NewParams accepts: a
// ProofSize-edge cycle needs at least ProofSize distinct edges, so
// 2^EdgeBits must be at least 64. For EdgeBits below 2 the X/Y/Z bit
// derivation would also underflow.
const MinEdgeBits = 6

// Params holds the bit layout and round schedule for one graph size.
// Every tunable is a runtime field on this struct rather than a
// compile-time constant, so a process can serve solves at more than one
// EdgeBits concurrently.
type Params struct {
	// EdgeBits is E: the graph has 2^E edges and 2*2^E nodes.
	EdgeBits uint8

	// XBits and YBits partition a node's E-bit local index into a
	// bucketing prefix; ZBits is the remaining fine residue.
	XBits, YBits, ZBits uint8

	// NumTrims is the number of scheduled trim rounds run after the
	// initial generation round, always even. Trim runs further
	// rename-free rounds past it until a round removes nothing.
	NumTrims uint32

	// ExpandRound marks the round after which both sides of a
	// surviving edge are addressed purely as graph endpoints. Kept as
	// a parameter for surface compatibility; it gates no structural
	// behavior in this trimmer.
	ExpandRound uint32

	// CompressRound and CompressRound2 are the rounds at which the
	// first- and second-level per-(X,Y)-tile renames run: on one side
	// at that round and on the other side at the round after it.
	CompressRound, CompressRound2 uint32

	// NumThreads bounds the trimmer's worker pool size.
	NumThreads int

	// BucketCap is the per-(X,Y) tile arena capacity.
	BucketCap uint32
}

// NewParams builds a Params for the given edge-bit count, deriving X/Y/Z
// bit widths from a fixed ratio (29 edge bits yields X=Y=7, Z=15),
// generalized to any EdgeBits so small toy graphs used in tests get
// proportionally small buckets. Edge-bit counts below MinEdgeBits are
// clamped up to it, since no smaller graph can hold a ProofSize cycle.
func NewParams(edgeBits uint8) *Params {
	if edgeBits < MinEdgeBits {
		edgeBits = MinEdgeBits
	}

	x := edgeBits / 4
	if x < 1 {
		x = 1
	}
	for 2*x >= edgeBits && x > 1 {
		x--
	}

	p := &Params{
		EdgeBits: edgeBits,
		XBits:    x,
		YBits:    x,
		ZBits:    edgeBits - 2*x,
	}

	n := uint32(edgeBits) + 12
	if n%2 != 0 {
		n++
	}
	if n < 8 {
		n = 8
	}
	p.NumTrims = n
	p.ExpandRound = 1
	p.CompressRound = n * 2 / 3
	if p.CompressRound%2 != 0 {
		p.CompressRound++
	}
	p.CompressRound2 = n - 2

	p.NumThreads = runtime.GOMAXPROCS(0)
	if p.NumThreads < 1 {
		p.NumThreads = 1
	}

	avg := p.numEdges() / p.numBuckets()
	p.BucketCap = avg*5/4 + 256

	return p
}

// NumX is the number of distinct X values, 2^XBits.
func (p *Params) NumX() uint32 { return 1 << p.XBits }

// NumY is the number of distinct Y values, 2^YBits.
func (p *Params) NumY() uint32 { return 1 << p.YBits }

// numBuckets is the total tile count of the bucket matrix.
func (p *Params) numBuckets() uint32 { return p.NumX() * p.NumY() }

// numEdges is 2^EdgeBits, the number of candidate edges to generate.
func (p *Params) numEdges() uint32 { return 1 << p.EdgeBits }

// YZBits is the width of a node's local id before any renaming.
func (p *Params) YZBits() uint8 { return p.YBits + p.ZBits }

// maxPathLen caps how far the cycle finder may walk a forest path
// before declaring the table corrupt: 8 * 2^((E+3)/3), growing with the
// cube root of the node count.
func (p *Params) maxPathLen() int {
	return 8 << ((uint32(p.EdgeBits) + 3) / 3)
}
