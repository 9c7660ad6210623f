// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package cuckoo

import "testing"

func TestCompactProofRoundTrip(t *testing.T) {
	var p Proof
	p.EdgeBits = 20
	for i := range p.Nonces {
		p.Nonces[i] = uint32(i * 1000)
	}

	compact := p.Compact()
	decoded, err := ReadCompactProof(compact.EdgeBits, compact.Bytes())
	if err != nil {
		t.Fatalf("ReadCompactProof: %v", err)
	}

	expanded := decoded.Expand()
	if expanded.EdgeBits != p.EdgeBits {
		t.Fatalf("EdgeBits mismatch: got %d want %d", expanded.EdgeBits, p.EdgeBits)
	}
	for i := range p.Nonces {
		if expanded.Nonces[i] != p.Nonces[i] {
			t.Fatalf("nonce %d mismatch: got %d want %d", i, expanded.Nonces[i], p.Nonces[i])
		}
	}
}

func TestReadCompactProofWrongSize(t *testing.T) {
	if _, err := ReadCompactProof(20, []byte{1, 2, 3}); err != ErrWrongProofSize {
		t.Fatalf("expected ErrWrongProofSize, got %v", err)
	}
}

func TestVerifyProofRejectsOutOfRange(t *testing.T) {
	var p Proof
	p.EdgeBits = 8 // limit = 256
	for i := range p.Nonces {
		p.Nonces[i] = uint32(i)
	}
	p.Nonces[0] = 1000 // exceeds 2^8

	ok, reason := VerifyProof([]byte("header"), &p)
	if ok || reason != ReasonOutOfRange {
		t.Fatalf("expected ReasonOutOfRange, got ok=%v reason=%v", ok, reason)
	}
}

func TestVerifyProofRejectsUnsorted(t *testing.T) {
	var p Proof
	p.EdgeBits = 16
	for i := range p.Nonces {
		p.Nonces[i] = uint32(i)
	}
	p.Nonces[1], p.Nonces[2] = p.Nonces[2], p.Nonces[1]

	ok, reason := VerifyProof([]byte("header"), &p)
	if ok || reason != ReasonNotSorted {
		t.Fatalf("expected ReasonNotSorted, got ok=%v reason=%v", ok, reason)
	}
}

func TestProofHashDeterministic(t *testing.T) {
	var p Proof
	p.EdgeBits = 16
	for i := range p.Nonces {
		p.Nonces[i] = uint32(i)
	}

	h1 := p.Hash()
	h2 := p.Hash()
	if h1 != h2 {
		t.Fatal("Hash is not deterministic")
	}

	p2 := p
	p2.Nonces[0] = 999
	if p.Hash() == p2.Hash() {
		t.Fatal("different proofs hashed to the same value")
	}
}
