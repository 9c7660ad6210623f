// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package cuckoo

import "fmt"

// noParent is the all-ones sentinel marking a forest root in
// cuckooTable: an arena-indexed union-find, no heap allocation per node.
const noParent = ^uint32(0)

// errPathTooLong reports a forest path exceeding the hard length cap.
// The cap grows with the cube root of the node count; blowing through
// it means the table is corrupt, not that the graph is unlucky.
type errPathTooLong struct {
	node   uint32
	maxLen int
}

func (e *errPathTooLong) Error() string {
	return fmt.Sprintf("cuckoo: forest path from node %d exceeds %d steps, cuckoo table is corrupt", e.node, e.maxLen)
}

// cuckooGraph is the dense node-id space built from a TrimResult's
// surviving edges: every distinct U endpoint gets an even global id,
// every distinct V endpoint an odd one, so both sides share one
// cuckooTable array.
type cuckooGraph struct {
	edgesU, edgesV []uint32 // per final edge: global U id, global V id
}

type compactKey struct{ x, y, id uint32 }

func keyOf(c CompactID) compactKey { return compactKey{c.X, c.Y, c.ID} }

// buildGraph assigns dense global node ids to every distinct endpoint
// appearing in edges and returns the edge list rewritten in terms of
// those ids.
func buildGraph(edges []FinalEdge) *cuckooGraph {
	uIdx := make(map[compactKey]uint32, len(edges))
	vIdx := make(map[compactKey]uint32, len(edges))

	g := &cuckooGraph{
		edgesU: make([]uint32, len(edges)),
		edgesV: make([]uint32, len(edges)),
	}

	for i, e := range edges {
		uk := keyOf(e.U)
		ui, ok := uIdx[uk]
		if !ok {
			ui = uint32(len(uIdx))
			uIdx[uk] = ui
		}
		vk := keyOf(e.V)
		vi, ok := vIdx[vk]
		if !ok {
			vi = uint32(len(vIdx))
			vIdx[vk] = vi
		}
		g.edgesU[i] = 2 * ui
		g.edgesV[i] = 2*vi + 1
	}

	return g
}

// size returns the array length a cuckooTable needs to address every
// node id this graph produces.
func (g *cuckooGraph) size() uint32 {
	var maxID uint32
	for _, id := range g.edgesU {
		if id > maxID {
			maxID = id
		}
	}
	for _, id := range g.edgesV {
		if id > maxID {
			maxID = id
		}
	}
	return maxID + 1
}

// path walks the forest from u to its root, following table[u], and
// appends every visited node (root last) to buf. It returns the
// extended slice, or an error if the walk exceeds maxLen steps.
func path(table []uint32, u uint32, buf []uint32, maxLen int) ([]uint32, error) {
	start := u
	for {
		if len(buf) >= maxLen {
			return nil, &errPathTooLong{node: start, maxLen: maxLen}
		}
		buf = append(buf, u)
		next := table[u]
		if next == noParent {
			return buf, nil
		}
		u = next
	}
}

// findCycle inserts edges one at a time into a union-find forest and
// returns the edge indices of the first closed cycle of exactly want
// edges (closing edge first, the rest in cycle order), or found=false
// if none closes. Each edge either splices the shorter of its two
// endpoint paths onto the longer one, or, if both endpoints already
// share a root, closes a cycle whose length is measured by walking both
// paths back from the root until they diverge; cycles of any other
// length are skipped.
func findCycle(g *cuckooGraph, want, maxPath int) ([]int, bool, error) {
	n := g.size()
	table := make([]uint32, n)
	for i := range table {
		table[i] = noParent
	}

	var usBuf, vsBuf []uint32
	var err error

	for i := range g.edgesU {
		u0, v0 := g.edgesU[i], g.edgesV[i]

		usBuf, err = path(table, u0, usBuf[:0], maxPath)
		if err != nil {
			return nil, false, err
		}
		vsBuf, err = path(table, v0, vsBuf[:0], maxPath)
		if err != nil {
			return nil, false, err
		}

		uRoot := usBuf[len(usBuf)-1]
		vRoot := vsBuf[len(vsBuf)-1]

		if uRoot == vRoot {
			length := cycleLengthAt(usBuf, vsBuf)
			if length == want {
				edgeIdx, ok := recoverCycleEdges(g, i, want)
				if ok {
					return edgeIdx, true, nil
				}
			}
			continue
		}

		if len(usBuf) < len(vsBuf) {
			spliceIn(table, usBuf, v0)
		} else {
			spliceIn(table, vsBuf, u0)
		}
	}

	return nil, false, nil
}

// cycleLengthAt measures the cycle length implied by two paths that
// share a root: walk both back from the root end until the nodes
// diverge, then the cycle length is the sum of the two remaining
// unshared segments plus the closing edge.
func cycleLengthAt(us, vs []uint32) int {
	i, j := len(us)-1, len(vs)-1
	for i > 0 && j > 0 && us[i-1] == vs[j-1] {
		i--
		j--
	}
	return i + j + 1
}

// spliceIn reverses every pointer along path (path[len-1] is the old
// root), so each node points at its leaf-ward neighbour, then points
// path[0] at newRoot, the new edge's other endpoint, attaching the
// whole shorter path under the new edge.
func spliceIn(table []uint32, path []uint32, newRoot uint32) {
	for k := len(path) - 1; k > 0; k-- {
		table[path[k]] = path[k-1]
	}
	table[path[0]] = newRoot
}

// recoverCycleEdges re-scans edges 0..=closingEdge to find a simple
// path of exactly want-1 other edges connecting closingEdge's two
// endpoints, returning all want edge indices in cycle order. The
// union-find forest guarantees such a path exists among edges already
// inserted when cycleLengthAt reports length == want; this is a direct
// DFS reconstruction of it, run once on the rare edge that actually
// closes a full-length cycle.
func recoverCycleEdges(g *cuckooGraph, closingEdge int, want int) ([]int, bool) {
	adj := make(map[uint32][]int)
	for i := 0; i <= closingEdge; i++ {
		adj[g.edgesU[i]] = append(adj[g.edgesU[i]], i)
		adj[g.edgesV[i]] = append(adj[g.edgesV[i]], i)
	}

	start := g.edgesU[closingEdge]
	target := g.edgesV[closingEdge]
	need := want - 1

	visited := make(map[uint32]bool)
	var cur []int
	var dfs func(node uint32) bool
	dfs = func(node uint32) bool {
		if len(cur) == need {
			return node == target
		}
		visited[node] = true
		defer delete(visited, node)

		for _, ei := range adj[node] {
			if ei == closingEdge {
				continue
			}
			other := g.edgesU[ei]
			if other == node {
				other = g.edgesV[ei]
			}
			if visited[other] {
				continue
			}
			cur = append(cur, ei)
			if dfs(other) {
				return true
			}
			cur = cur[:len(cur)-1]
		}
		return false
	}

	if !dfs(start) {
		return nil, false
	}

	full := append([]int{closingEdge}, cur...)
	return full, true
}
