// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package cuckoo

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
)

// Solve runs one full attempt to find a ProofSize-edge cycle in the
// graph header induces at the given edge-bit size: key derivation,
// bucketed trimming, cycle search, and nonce recovery, end to end. It
// returns (nil, false, nil) when no cycle is found; that is the
// expected outcome for the overwhelming majority of headers, not an
// error.
func Solve(header []byte, edgeBits uint8) (*Proof, bool, error) {
	p := NewParams(edgeBits)
	k := deriveKeys(header)

	tr, err := newTrimmer(k, p).Trim()
	if err != nil {
		return nil, false, err
	}

	g := buildGraph(tr.Edges)
	edgeIdx, found, err := findCycle(g, ProofSize, p.maxPathLen())
	if err != nil {
		return nil, false, err
	}
	if !found {
		logrus.Debugf("cuckoo: no %d-cycle in %d surviving edges (edgebits=%d)",
			ProofSize, len(tr.Edges), edgeBits)
		return nil, false, nil
	}

	nonces, err := Recover(k, p, tr, edgeIdx)
	if err != nil {
		return nil, false, err
	}

	proof := &Proof{EdgeBits: edgeBits}
	copy(proof.Nonces[:], nonces)
	sort.Slice(proof.Nonces[:], func(i, j int) bool { return proof.Nonces[i] < proof.Nonces[j] })

	ok, reason := VerifyProof(header, proof)
	if !ok {
		return nil, false, fmt.Errorf("cuckoo: recovered proof fails verification: %s", reason)
	}

	logrus.Infof("cuckoo: found %d-cycle (edgebits=%d)", ProofSize, edgeBits)
	return proof, true, nil
}
