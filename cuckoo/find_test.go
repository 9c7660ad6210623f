// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package cuckoo

import "testing"

func mkEdge(u, v uint32) FinalEdge {
	return FinalEdge{U: CompactID{ID: u}, V: CompactID{ID: v}}
}

// TestFindCycleClosesKnownCycle reproduces the worked example from the
// Cuckoo Cycle paper's figure 1: the closed path 8-9-4-13-10-5-8.
func TestFindCycleClosesKnownCycle(t *testing.T) {
	edges := []FinalEdge{
		mkEdge(8, 5),
		mkEdge(10, 5),
		mkEdge(4, 9),
		mkEdge(4, 13),
		mkEdge(8, 9),
		mkEdge(10, 13),
	}

	g := buildGraph(edges)
	idx, found, err := findCycle(g, 6, 1000)
	if err != nil {
		t.Fatalf("findCycle: %v", err)
	}
	if !found {
		t.Fatal("expected a 6-cycle to be found")
	}
	if len(idx) != 6 {
		t.Fatalf("cycle should use exactly 6 edges, got %d", len(idx))
	}

	seen := make(map[int]bool)
	for _, i := range idx {
		if seen[i] {
			t.Fatalf("edge %d used twice in reported cycle", i)
		}
		seen[i] = true
	}
}

// TestFindCycleNoClosedPath feeds six edges whose U ids are all distinct
// and whose V ids are all distinct, so no two edges share an endpoint
// and nothing can close.
func TestFindCycleNoClosedPath(t *testing.T) {
	edges := []FinalEdge{
		mkEdge(1, 5),
		mkEdge(5, 4),
		mkEdge(4, 9),
		mkEdge(9, 8),
		mkEdge(8, 11),
		mkEdge(11, 10),
	}

	g := buildGraph(edges)
	_, found, err := findCycle(g, 6, 1000)
	if err != nil {
		t.Fatalf("findCycle: %v", err)
	}
	if found {
		t.Fatal("open path must not report a closed cycle")
	}
}

// TestFindCycleWrongLength checks that a closed 6-cycle doesn't falsely
// satisfy a request for a different cycle length.
func TestFindCycleWrongLength(t *testing.T) {
	edges := []FinalEdge{
		mkEdge(8, 5),
		mkEdge(10, 5),
		mkEdge(4, 9),
		mkEdge(4, 13),
		mkEdge(8, 9),
		mkEdge(10, 13),
	}

	g := buildGraph(edges)
	_, found, err := findCycle(g, 42, 1000)
	if err != nil {
		t.Fatalf("findCycle: %v", err)
	}
	if found {
		t.Fatal("a 6-edge graph cannot contain a 42-cycle")
	}
}

// TestFindCyclePathCapAborts feeds a long chain into a finder whose
// path cap is far too small for it and checks the walk aborts with a
// diagnostic instead of silently continuing.
func TestFindCyclePathCapAborts(t *testing.T) {
	var edges []FinalEdge
	for i := uint32(0); i < 32; i++ {
		edges = append(edges, mkEdge(i, i))
		edges = append(edges, mkEdge(i+1, i))
	}

	g := buildGraph(edges)
	if _, _, err := findCycle(g, 6, 4); err == nil {
		t.Fatal("expected a path-length cap error on a chain longer than the cap")
	}
}

func TestFindCycleEmptyGraph(t *testing.T) {
	g := buildGraph(nil)
	idx, found, err := findCycle(g, 42, 1000)
	if err != nil {
		t.Fatalf("empty graph must not error: %v", err)
	}
	if found || idx != nil {
		t.Fatal("empty graph must yield zero cycles")
	}
}
