// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package cuckoo

import (
	"fmt"
	"sort"
)

// unrename walks a CompactID back through its side's two-level rename
// ladder to recover the original (X,Y,Z) local index: level 2's dense id
// maps back to the level-1 dense id, which level 1 maps back to the
// packed YZ value.
func unrename(ladder *trimLadder, p *Params, c CompactID) (x, y, z uint32) {
	tile := c.X*p.NumY() + c.Y
	id := c.ID

	if int(tile) < len(ladder.level2) && ladder.level2[tile].reverse != nil {
		// Level-2 reverse entries pack (y, level-1 id) the same way
		// level-1 entries pack (y, z); only the low ZBits carry the
		// level-1 id, since dense ids never exceed the Z range.
		id = ladder.level2[tile].reverse[id] & (1<<p.ZBits - 1)
	}
	if int(tile) < len(ladder.level1) && ladder.level1[tile].reverse != nil {
		yz := ladder.level1[tile].reverse[id]
		y = yz >> p.ZBits
		z = yz & (1<<p.ZBits - 1)
	} else {
		// No rename ever ran on this side (graphs too small to reach a
		// compression round): id is still the raw Z residue, y is
		// already carried verbatim on the CompactID.
		y = c.Y
		z = id
	}

	return c.X, y, z
}

// pairKey is a cycle edge's two endpoints after unwinding both rename
// ladders, used to match a candidate nonce against the specific edge it
// must close rather than against either endpoint in isolation.
type pairKey struct{ u, v node }

// Recover re-derives the original 42 nonces for a closed cycle by
// unwinding both sides' rename ladders back to local node indices, then
// re-enumerating every nonce in [0, 2^EdgeBits) to find which ones hash
// to exactly those (u,v) pairs. No nonce is ever carried through the
// trim pipeline; this full re-enumeration is the only path back to a
// nonce. A surviving node very often has raw degree greater than two in
// the untrimmed graph, so matching is done per edge, both endpoints at
// once: a nonce whose U endpoint lands on a wanted node but whose V
// endpoint doesn't match that same edge's V is not a candidate for it.
func Recover(k keys, p *Params, result *TrimResult, edgeIdx []int) ([]uint32, error) {
	if len(edgeIdx) != ProofSize {
		return nil, fmt.Errorf("cuckoo: recovery needs exactly %d cycle edges, got %d", ProofSize, len(edgeIdx))
	}

	want := make(map[pairKey]int, len(edgeIdx))
	for slot, ei := range edgeIdx {
		e := result.Edges[ei]

		ux, uy, uz := unrename(&result.LadderU, p, e.U)
		vx, vy, vz := unrename(&result.LadderV, p, e.V)

		u := makeNode(p.joinLocal(ux, uy, uz), 0)
		v := makeNode(p.joinLocal(vx, vy, vz), 1)
		want[pairKey{u, v}] = slot
	}

	nonces := make([]uint32, ProofSize)
	filled := make([]bool, ProofSize)
	remaining := len(want)

	numEdges := p.numEdges()
	for nonce := uint32(0); nonce < numEdges && remaining > 0; nonce++ {
		u := edge(k, p, nonce, 0)
		v := edge(k, p, nonce, 1)

		slot, ok := want[pairKey{u, v}]
		if !ok || filled[slot] {
			continue
		}
		nonces[slot] = nonce
		filled[slot] = true
		remaining--
	}

	for slot, ok := range filled {
		if !ok {
			return nil, fmt.Errorf("cuckoo: recovery left cycle edge %d unresolved, rejecting proof", slot)
		}
	}

	sort.Slice(nonces, func(i, j int) bool { return nonces[i] < nonces[j] })
	return nonces, nil
}
