package state

import (
	"github.com/hivecore/engine/internal/generics"
)

// articulationSearch holds the working state of the articulation-points
// search over the graph of occupied cells: each occupied cell is a node,
// each pair of adjacent occupied cells an edge.
type articulationSearch struct {
	numVertices    uint8
	isArticulation []bool
	allEdgesTarget []uint8
	edgesPerNode   [][2]uint8 // [node] -> [start, end) indices into allEdgesTarget.
	tIn, tLow      []uint8
}

// RemovablePositions returns the set of occupied positions whose piece
// could be lifted off the board without splitting the hive into more than
// one connected component -- the "One Hive" rule's per-move legality check,
// and also the rules kernel's pin-detection primitive (a piece at a
// non-removable position is pinned: lifting it would break the hive, so it
// has no legal moves regardless of what its piece type could otherwise
// reach).
//
// It runs the standard O(N+M) articulation-points DFS (tIn/tLow time
// stamps); see https://cp-algorithms.com/graph/cutpoints.html.
func (b *Board) RemovablePositions() generics.Set[Pos] {
	if len(b.cells) <= 1 {
		removable := generics.MakeSet[Pos](len(b.cells))
		for pos := range b.cells {
			removable.Insert(pos)
		}
		return removable
	}

	positions := generics.KeysSlice(b.cells)
	posToNode := make(map[Pos]uint8, len(positions))
	for nodeIdx, pos := range positions {
		posToNode[pos] = uint8(nodeIdx)
	}

	search := &articulationSearch{
		numVertices:    uint8(len(positions)),
		allEdgesTarget: make([]uint8, 0, NumNeighbors*len(positions)),
		edgesPerNode:   make([][2]uint8, len(positions)),
	}
	for nodeIdx, pos := range positions {
		search.edgesPerNode[nodeIdx][0] = uint8(len(search.allEdgesTarget))
		for _, neighbour := range b.OccupiedNeighbors(pos) {
			if toNode, found := posToNode[neighbour]; found {
				search.allEdgesTarget = append(search.allEdgesTarget, toNode)
			}
		}
		search.edgesPerNode[nodeIdx][1] = uint8(len(search.allEdgesTarget))
	}
	search.findArticulationPoints(0)

	removable := generics.MakeSet[Pos](len(positions))
	for nodeIdx, isCut := range search.isArticulation {
		if !isCut {
			removable.Insert(positions[nodeIdx])
		}
	}
	return removable
}

// findArticulationPoints runs the DFS from root, populating isArticulation.
func (search *articulationSearch) findArticulationPoints(root uint8) {
	if search.numVertices == 0 {
		return
	}
	if search.numVertices == 1 {
		search.isArticulation = []bool{true}
		return
	}

	search.tIn = make([]uint8, search.numVertices)
	search.tLow = make([]uint8, search.numVertices)
	search.isArticulation = make([]bool, search.numVertices)

	t := uint8(1)
	search.tIn[root] = t
	search.tLow[root] = t
	t++
	dfsChildren := 0
	start, end := search.edgesPerNode[root][0], search.edgesPerNode[root][1]
	for _, neighbour := range search.allEdgesTarget[start:end] {
		if search.tIn[neighbour] != 0 {
			continue
		}
		dfsChildren++
		t = search.dfsVisit(root, neighbour, t)
	}
	// The root is a cut vertex only if the DFS needed more than one child
	// subtree to cover all its neighbors: a single subtree would have
	// reached everything the root can reach anyway.
	search.isArticulation[root] = dfsChildren > 1
}

func (search *articulationSearch) dfsVisit(from, to, t uint8) uint8 {
	search.tIn[to] = t
	search.tLow[to] = t
	t++
	start, end := search.edgesPerNode[to][0], search.edgesPerNode[to][1]
	for _, neighbour := range search.allEdgesTarget[start:end] {
		if neighbour == from {
			continue
		}
		if search.tIn[neighbour] != 0 {
			// Back-edge to an already-visited node.
			if search.tIn[neighbour] < search.tLow[to] {
				search.tLow[to] = search.tIn[neighbour]
			}
			continue
		}
		t = search.dfsVisit(to, neighbour, t)
		if search.tLow[neighbour] < search.tLow[to] {
			search.tLow[to] = search.tLow[neighbour]
		}
		if search.tLow[neighbour] >= search.tIn[to] {
			search.isArticulation[to] = true
		}
	}
	return t
}

// IsConnected reports whether the occupied cells of the board form a single
// connected component, starting the traversal from an arbitrary occupied
// cell. An empty board is trivially connected.
func (b *Board) IsConnected() bool {
	if len(b.cells) == 0 {
		return true
	}
	start := generics.MapAnyKey(b.cells)
	visited := map[Pos]bool{start: true}
	frontier := []Pos{start}
	for len(frontier) > 0 {
		pos := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]
		for _, n := range b.OccupiedNeighbors(pos) {
			if !visited[n] {
				visited[n] = true
				frontier = append(frontier, n)
			}
		}
	}
	return len(visited) == len(b.cells)
}
