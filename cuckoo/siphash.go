// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package cuckoo

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

// keys holds the four 64-bit SipHash state words derived from a header
// (k0..k3).
type keys [4]uint64

// deriveKeys hashes header with BLAKE2b-256 and expands the first 16
// bytes of the digest into the four SipHash-2-4 initialization words.
func deriveKeys(header []byte) keys {
	sum := blake2b.Sum256(header)

	k0 := binary.LittleEndian.Uint64(sum[:8])
	k1 := binary.LittleEndian.Uint64(sum[8:16])

	return keys{
		k0 ^ 0x736f6d6570736575,
		k1 ^ 0x646f72616e646f6d,
		k0 ^ 0x6c7967656e657261,
		k1 ^ 0x7465646279746573,
	}
}

// SipHash24 is the 2+4 round SipHash state machine, as a reusable type
// rather than a package-private function. Uses the canonical key
// assignment throughout.
type SipHash24 struct {
	v [4]uint64
}

// NewSipHash24 returns a SipHash24 state seeded with v.
func NewSipHash24(v [4]uint64) SipHash24 {
	return SipHash24{v: v}
}

func (h *SipHash24) round() {
	h.v[0] += h.v[1]
	h.v[1] = h.v[1]<<13 | h.v[1]>>(64-13)
	h.v[1] ^= h.v[0]
	h.v[0] = h.v[0]<<32 | h.v[0]>>(64-32)

	h.v[2] += h.v[3]
	h.v[3] = h.v[3]<<16 | h.v[3]>>(64-16)
	h.v[3] ^= h.v[2]

	h.v[0] += h.v[3]
	h.v[3] = h.v[3]<<21 | h.v[3]>>(64-21)
	h.v[3] ^= h.v[0]

	h.v[2] += h.v[1]
	h.v[1] = h.v[1]<<17 | h.v[1]>>(64-17)
	h.v[1] ^= h.v[2]
	h.v[2] = h.v[2]<<32 | h.v[2]>>(64-32)
}

// Sum64 hashes nonce under the current state and returns the digest.
// The state is a value receiver copy per call site (see hash below), so
// Sum64 is safe to call repeatedly against the same base keys.
func (h SipHash24) Sum64(nonce uint64) uint64 {
	h.v[3] ^= nonce

	h.round()
	h.round()

	h.v[0] ^= nonce
	h.v[2] ^= 0xff

	h.round()
	h.round()
	h.round()
	h.round()

	return h.v[0] ^ h.v[1] ^ h.v[2] ^ h.v[3]
}

func hash(k keys, nonce uint64) uint64 {
	h := NewSipHash24([4]uint64(k))
	return h.Sum64(nonce)
}

// node is a combined bipartite node id: E bits of local index, low bit
// carrying the side (0 = U, 1 = V).
type node uint32

func (n node) side() uint8 { return uint8(n & 1) }
func (n node) local() uint32 {
	return uint32(n >> 1)
}

func makeNode(local uint32, side uint8) node {
	return node(local<<1) | node(side)
}

// edge computes one endpoint of edge nonce: side 0 is U, side 1 is V.
func edge(k keys, p *Params, nonce uint32, side uint8) node {
	mask := uint64(1)<<p.EdgeBits - 1
	local := uint32(hash(k, 2*uint64(nonce)+uint64(side)) & mask)
	return makeNode(local, side)
}

// split breaks a node's local index into its X, Y and Z fields.
func (p *Params) split(local uint32) (x uint32, y uint32, z uint32) {
	z = local & (1<<p.ZBits - 1)
	y = (local >> p.ZBits) & (1<<p.YBits - 1)
	x = local >> (p.ZBits + p.YBits)
	return
}

// joinYZ packs the Y and Z fields back into one YZ-bit value.
func (p *Params) joinYZ(y, z uint32) uint32 {
	return y<<p.ZBits | z
}

// joinLocal packs X, Y and Z back into a full local index.
func (p *Params) joinLocal(x, y, z uint32) uint32 {
	return x<<(p.YBits+p.ZBits) | p.joinYZ(y, z)
}
