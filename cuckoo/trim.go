// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package cuckoo

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// renameTable is one (X,Y) tile's reverse map from a dense id assigned
// at a rename round back to the value it replaced.
type renameTable struct {
	reverse []uint32
}

// CompactID is one endpoint of a FinalEdge: its tile coordinates plus
// the dense id assigned to it by the second-level rename round.
type CompactID struct {
	X, Y, ID uint32
}

// FinalEdge is a surviving edge after all trim rounds, addressed by the
// dense ids of the trimmed edge list.
type FinalEdge struct {
	U, V CompactID
}

// trimLadder holds the two-level rename history for one side (U or V),
// indexed by tile (x*ny+y), used only by Recovery.
type trimLadder struct {
	level1, level2 []renameTable
}

// TrimResult is everything Recovery and the cycle finder need: the
// final packed edge list plus both sides' rename ladders. It is the one
// allocation that survives a solve past the trimmer context.
type TrimResult struct {
	p        *Params
	Edges    []FinalEdge
	LadderU  trimLadder
	LadderV  trimLadder
}

// trimmer holds the per-solve working state for the edge-trimming
// pipeline.
type trimmer struct {
	k keys
	p *Params
}

func newTrimmer(k keys, p *Params) *trimmer {
	return &trimmer{k: k, p: p}
}

// parallelTiles runs fn(i) for i in [0,n) across a pool of p.NumThreads
// goroutines and blocks until all have completed. A two-stage barrier is
// realized as two separate parallelTiles calls in sequence, since the
// second call cannot start until the first has fully returned.
func (t *trimmer) parallelTiles(n int, fn func(i int)) {
	threads := t.p.NumThreads
	if threads > n {
		threads = n
	}
	if threads < 1 {
		threads = 1
	}

	work := make(chan int, n)
	for i := 0; i < n; i++ {
		work <- i
	}
	close(work)

	var wg sync.WaitGroup
	wg.Add(threads)
	for w := 0; w < threads; w++ {
		go func() {
			defer wg.Done()
			for i := range work {
				fn(i)
			}
		}()
	}
	wg.Wait()
}

// genEdges is stage U-gen: enumerate every candidate edge, bucket it by
// U's (X,Y), and validate the delta/lag-window codec along the way.
func (t *trimmer) genEdges() (*bucketMatrix, error) {
	p := t.p
	nx, ny := p.NumX(), p.NumY()
	b := newBucketMatrix(nx, ny, p.BucketCap)

	numEdges := p.numEdges()
	blocks := p.NumThreads
	if blocks < 1 {
		blocks = 1
	}
	chunk := (numEdges + uint32(blocks) - 1) / uint32(blocks)

	var firstErr error
	var mu sync.Mutex
	setErr := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	var wg sync.WaitGroup
	for blk := 0; blk < blocks; blk++ {
		start := uint32(blk) * chunk
		end := start + chunk
		if end > numEdges {
			end = numEdges
		}
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(start, end uint32) {
			defer wg.Done()

			lastNonce := make([]uint32, nx)
			for i := range lastNonce {
				lastNonce[i] = start
			}

			for nonce := start; nonce < end; nonce++ {
				u := edge(t.k, p, nonce, 0)
				v := edge(t.k, p, nonce, 1)

				ux, uy, uz := p.split(u.local())
				vx, vy, vz := p.split(v.local())

				delta := deltaEncode(lastNonce[ux], nonce, p.EdgeBits)
				if got := deltaDecode(lastNonce[ux], delta, p.EdgeBits); got != nonce {
					setErr(&errOverflow{stage: "delta-decode sanity", x: ux, y: uy})
					return
				}
				lastNonce[ux] = nonce

				we := workEdge{
					u: half{x: ux, y: uy, id: uz},
					v: half{x: vx, y: vy, id: vz},
				}
				if err := b.put(ux, uy, we); err != nil {
					setErr(err)
					return
				}
			}
		}(start, end)
	}
	wg.Wait()

	return b, firstErr
}

// round runs one leaf-pruning pass over cur, addressed by addressed
// ("u" or "v"): it builds a degree bitmap per tile, drops edges whose
// addressed endpoint has degree <2, optionally renames the surviving
// addressed ids within their tile, and re-keys survivors by the other
// side's tile for the next round.
func (t *trimmer) round(cur *bucketMatrix, addressed byte, rename bool) (*bucketMatrix, []renameTable, error) {
	p := t.p
	nx, ny := cur.nx, cur.ny
	numTiles := int(nx * ny)

	bitmaps := make([]*degreeBitmap, numTiles)
	var firstErr error
	var mu sync.Mutex
	setErr := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	// Stage 1: build each tile's degree bitmap. Tiles are independent;
	// no cross-tile synchronization needed within this stage.
	t.parallelTiles(numTiles, func(i int) {
		tl := cur.tiles[i]
		bm := newDegreeBitmap(p.BucketCap)
		for _, e := range tl.slice() {
			if addressed == 'u' {
				bm.mark(e.u.id)
			} else {
				bm.mark(e.v.id)
			}
		}
		bitmaps[i] = bm
	})

	next := newBucketMatrix(nx, ny, p.BucketCap)
	var tables []renameTable
	if rename {
		tables = make([]renameTable, numTiles)
	}

	// Stage 2: filter survivors, optionally rename, and re-key into
	// next. Writes into next are concurrent across source tiles and use
	// atomic fetch-add reservation.
	t.parallelTiles(numTiles, func(i int) {
		tl := cur.tiles[i]
		bm := bitmaps[i]

		var forward map[uint32]uint32
		var reverse []uint32
		if rename {
			forward = make(map[uint32]uint32)
		}

		for _, e := range tl.slice() {
			addr := &e.u
			if addressed == 'v' {
				addr = &e.v
			}

			if !bm.degreeAtLeast2(addr.id) {
				continue
			}

			if rename {
				id, ok := forward[addr.id]
				if !ok {
					id = uint32(len(reverse))
					forward[addr.id] = id
					// joinYZ is reused here as a generic (y, pre-rename id)
					// packer: at level 1 addr.id is the raw Z residue, at
					// level 2 it is the level-1 dense id, which is always
					// < 2^ZBits and so packs the same way.
					reverse = append(reverse, p.joinYZ(addr.y, addr.id))
				}
				addr.id = id
			}

			other := &e.v
			if addressed == 'v' {
				other = &e.u
			}
			if err := next.put(other.x, other.y, e); err != nil {
				setErr(err)
				return
			}
		}

		if rename {
			tables[i] = renameTable{reverse: reverse}
		}
	})

	return next, tables, firstErr
}

// Trim runs the full edge-trimming pipeline and returns the surviving
// graph plus the rename ladders needed by Recovery. After the NumTrims
// scheduled rounds it keeps pruning until neither side has a leaf.
func (t *trimmer) Trim() (*TrimResult, error) {
	p := t.p

	cur, err := t.genEdges()
	if err != nil {
		return nil, err
	}
	logrus.Debugf("cuckoo: generated edges for edgebits=%d", p.EdgeBits)

	result := &TrimResult{p: p}
	result.LadderU.level1 = make([]renameTable, p.NumX()*p.NumY())
	result.LadderU.level2 = make([]renameTable, p.NumX()*p.NumY())
	result.LadderV.level1 = make([]renameTable, p.NumX()*p.NumY())
	result.LadderV.level2 = make([]renameTable, p.NumX()*p.NumY())

	live := func(m *bucketMatrix) (n int) {
		for _, tl := range m.tiles {
			n += len(tl.slice())
		}
		return n
	}

	// Rounds past NumTrims run without renaming and continue until one
	// removes nothing, so no surviving node on either side is a leaf.
	addressed := byte('u') // round 1 prunes U, matching the U-keyed gen output.
	removed := true
	for round := uint32(1); round <= p.NumTrims || removed; round++ {
		doRename := round == p.CompressRound || round == p.CompressRound+1 ||
			round == p.CompressRound2 || round == p.CompressRound2+1

		next, tables, err := t.round(cur, addressed, doRename)
		if err != nil {
			return nil, err
		}
		removed = live(next) != live(cur)
		cur = next

		if doRename {
			var ladder *trimLadder
			if addressed == 'u' {
				ladder = &result.LadderU
			} else {
				ladder = &result.LadderV
			}
			if round == p.CompressRound || round == p.CompressRound+1 {
				ladder.level1 = tables
			} else {
				ladder.level2 = tables
			}
		}

		if round == p.ExpandRound {
			logrus.Debugf("cuckoo: expand round %d reached (edgebits=%d)", round, p.EdgeBits)
		}

		if addressed == 'u' {
			addressed = 'v'
		} else {
			addressed = 'u'
		}
	}

	for _, tl := range cur.tiles {
		for _, e := range tl.slice() {
			result.Edges = append(result.Edges, FinalEdge{
				U: CompactID{X: e.u.x, Y: e.u.y, ID: e.u.id},
				V: CompactID{X: e.v.x, Y: e.v.y, ID: e.v.id},
			})
		}
	}

	sortFinalEdges(result.Edges)

	logrus.Debugf("cuckoo: trimmed to %d surviving edges (edgebits=%d)", len(result.Edges), p.EdgeBits)
	return result, nil
}

// sortFinalEdges imposes a deterministic "vx outer, ux inner"
// consumption order for the cycle finder.
func sortFinalEdges(edges []FinalEdge) {
	less := func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.V.X != b.V.X {
			return a.V.X < b.V.X
		}
		if a.V.Y != b.V.Y {
			return a.V.Y < b.V.Y
		}
		if a.V.ID != b.V.ID {
			return a.V.ID < b.V.ID
		}
		if a.U.X != b.U.X {
			return a.U.X < b.U.X
		}
		if a.U.Y != b.U.Y {
			return a.U.Y < b.U.Y
		}
		return a.U.ID < b.U.ID
	}
	insertionSortEdges(edges, less)
}

// insertionSortEdges sorts small edge lists (a few thousand entries at
// most) without pulling in sort.Slice's reflection path.
func insertionSortEdges(edges []FinalEdge, less func(i, j int) bool) {
	for i := 1; i < len(edges); i++ {
		for j := i; j > 0 && less(j, j-1); j-- {
			edges[j], edges[j-1] = edges[j-1], edges[j]
		}
	}
}
