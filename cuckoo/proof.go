// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package cuckoo

import (
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// ErrWrongProofSize is returned when decoding a CompactProof whose byte
// length doesn't match its declared EdgeBits.
var ErrWrongProofSize = errors.New("cuckoo: compact proof has wrong byte length for its edge bits")

// Proof is the solver-boundary form of a solution: EdgeBits plus the
// ProofSize nonces, always kept sorted ascending.
type Proof struct {
	EdgeBits uint8
	Nonces   [ProofSize]uint32
}

// Hash returns the BLAKE2b-256 "cyclehash" of the proof's little-endian
// nonce encoding.
func (p *Proof) Hash() [32]byte {
	return blake2b.Sum256(p.looseBytes())
}

// looseBytes is the fixed 4-bytes-per-nonce little-endian encoding used
// only for hashing, not the wire format (see Compact below).
func (p *Proof) looseBytes() []byte {
	buf := make([]byte, 4*ProofSize)
	for i, n := range p.Nonces {
		binary.LittleEndian.PutUint32(buf[4*i:], n)
	}
	return buf
}

// Compact packs the proof into its EdgeBits-bit-per-nonce wire form.
func (p *Proof) Compact() *CompactProof {
	return &CompactProof{EdgeBits: p.EdgeBits, packed: packNonces(p.Nonces[:], p.EdgeBits)}
}

// CompactProof is the wire form of a Proof: ProofSize*EdgeBits bits,
// packed MSB-first and padded to a whole number of bytes.
type CompactProof struct {
	EdgeBits uint8
	packed   []byte
}

// Bytes returns the packed wire encoding.
func (c *CompactProof) Bytes() []byte { return c.packed }

// ReadCompactProof decodes a CompactProof from its wire bytes.
func ReadCompactProof(edgeBits uint8, data []byte) (*CompactProof, error) {
	want := (int(edgeBits)*ProofSize + 7) / 8
	if len(data) != want {
		return nil, ErrWrongProofSize
	}
	packed := make([]byte, len(data))
	copy(packed, data)
	return &CompactProof{EdgeBits: edgeBits, packed: packed}, nil
}

// Expand unpacks a CompactProof back into a Proof, keeping the nonces in
// the order they were packed; it does not sort them.
func (c *CompactProof) Expand() *Proof {
	p := &Proof{EdgeBits: c.EdgeBits}
	unpackNonces(c.packed, c.EdgeBits, p.Nonces[:])
	return p
}

// packNonces bit-packs nonces MSB-first at edgeBits width each.
func packNonces(nonces []uint32, edgeBits uint8) []byte {
	totalBits := int(edgeBits) * len(nonces)
	out := make([]byte, (totalBits+7)/8)

	bitPos := 0
	for _, n := range nonces {
		for b := int(edgeBits) - 1; b >= 0; b-- {
			if n&(1<<uint(b)) != 0 {
				out[bitPos/8] |= 1 << uint(7-bitPos%8)
			}
			bitPos++
		}
	}
	return out
}

// unpackNonces is packNonces' inverse.
func unpackNonces(packed []byte, edgeBits uint8, dst []uint32) {
	bitPos := 0
	for i := range dst {
		var n uint32
		for b := 0; b < int(edgeBits); b++ {
			bit := (packed[bitPos/8] >> uint(7-bitPos%8)) & 1
			n = n<<1 | uint32(bit)
			bitPos++
		}
		dst[i] = n
	}
}

// VerifyReason explains why VerifyProof rejected a proof, or ReasonOK
// on success.
type VerifyReason int

const (
	ReasonOK VerifyReason = iota
	ReasonOutOfRange
	ReasonNotSorted
	ReasonNotTwoRegular
	ReasonWrongCycleLength
)

func (r VerifyReason) String() string {
	switch r {
	case ReasonOK:
		return "ok"
	case ReasonOutOfRange:
		return "nonce out of range"
	case ReasonNotSorted:
		return "nonces not strictly increasing"
	case ReasonNotTwoRegular:
		return "graph is not 2-regular"
	case ReasonWrongCycleLength:
		return "does not form a single proof-size cycle"
	default:
		return fmt.Sprintf("unknown reason %d", int(r))
	}
}

// VerifyProof checks that proof's nonces hash, under header's derived
// keys, to a single simple cycle of exactly ProofSize edges, reporting
// a typed reason on rejection.
func VerifyProof(header []byte, proof *Proof) (bool, VerifyReason) {
	p := NewParams(proof.EdgeBits)
	k := deriveKeys(header)

	limit := uint32(1) << proof.EdgeBits
	for i, n := range proof.Nonces {
		if n >= limit {
			return false, ReasonOutOfRange
		}
		if i > 0 && n <= proof.Nonces[i-1] {
			return false, ReasonNotSorted
		}
	}

	uvs := make([]node, 2*ProofSize)
	var xor0, xor1 node
	for i, n := range proof.Nonces {
		u := edge(k, p, n, 0)
		v := edge(k, p, n, 1)
		uvs[2*i] = u
		uvs[2*i+1] = v
		xor0 ^= u
		xor1 ^= v
	}
	if xor0 != 0 || xor1 != 0 {
		return false, ReasonNotTwoRegular
	}

	n := 0
	i := 0
	for {
		j, m := i, i
		for {
			m = (m + 2) % (2 * ProofSize)
			if m == i {
				break
			}
			if uvs[m] == uvs[i] {
				if j != i {
					return false, ReasonNotTwoRegular
				}
				j = m
			}
		}
		if j == i {
			return false, ReasonNotTwoRegular
		}
		i = j ^ 1
		n++
		if i == 0 {
			break
		}
		if n > ProofSize {
			return false, ReasonWrongCycleLength
		}
	}

	if n != ProofSize {
		return false, ReasonWrongCycleLength
	}
	return true, ReasonOK
}
