package state

// EmptyAndConnectedNeighbours returns the neighbors of srcPos that are empty
// and reachable by a legal slide: the classic Hive "freedom to move" gate.
//
// A slide from srcPos to a neighboring empty cell is legal only if exactly
// one of the two cells flanking that edge (the neighbors immediately to
// either side of the direction of travel) is occupied -- two occupied
// flanks means the piece would have to squeeze through a gap no wider than
// itself, and zero occupied flanks means the piece would momentarily lose
// all contact with the hive mid-slide.
//
// originalPos is the cell the sliding piece started this single-step move
// from (equal to srcPos on the first step, and the original departure point
// on later steps of a multi-step slide such as the Spider's or Ant's): it is
// excluded from the occupancy check because the piece has already vacated
// it. invalid holds positions to skip outright (typically already visited
// in a multi-step search).
func (b *Board) EmptyAndConnectedNeighbours(srcPos, originalPos Pos, invalid map[Pos]bool) []Pos {
	out := make([]Pos, 0, NumNeighbors)
	neighbours := srcPos.Neighbors()

	var occupied [NumNeighbors]bool
	for ii := 0; ii < NumNeighbors; ii++ {
		occupied[ii] = b.HasPiece(neighbours[ii]) && neighbours[ii] != originalPos
	}

	for ii := 0; ii < NumNeighbors; ii++ {
		tgtPos := neighbours[ii]
		if invalid != nil && invalid[tgtPos] {
			continue
		}
		if occupied[ii] {
			continue
		}
		leftOccupied := occupied[(ii+1)%NumNeighbors]
		rightOccupied := occupied[(ii-1+NumNeighbors)%NumNeighbors]
		if leftOccupied && rightOccupied {
			// Squeeze between two pieces: not allowed.
			continue
		}
		if !leftOccupied && !rightOccupied {
			// Would lose all contact with the hive mid-slide.
			continue
		}
		out = append(out, tgtPos)
	}
	return out
}

// queenMoves enumerates the Queen's legal destinations: a single slide step.
func (b *Board) queenMoves(srcPos Pos) []Pos {
	return b.EmptyAndConnectedNeighbours(srcPos, srcPos, nil)
}

// beetleMoves enumerates the Beetle's legal destinations: a single step,
// either sliding on the ground (gated the same as the Queen) or climbing
// onto/off of an occupied neighbor, which is never gated since the Beetle
// leaves the plane of the hive entirely.
func (b *Board) beetleMoves(srcPos Pos) []Pos {
	if _, _, stacked := b.TopOf(srcPos); stacked {
		// Standing on top of the hive: can step to any of the six
		// neighbors, occupied or not.
		all := srcPos.Neighbors()
		return all[:]
	}
	out := b.OccupiedNeighbors(srcPos)
	out = append(out, b.EmptyAndConnectedNeighbours(srcPos, srcPos, nil)...)
	return out
}

// grasshopperMoves enumerates the Grasshopper's legal destinations: for each
// of the six directions with at least one adjacent occupied cell, it jumps
// in a straight line to the first empty cell past the run of pieces.
func (b *Board) grasshopperMoves(srcPos Pos) []Pos {
	var out []Pos
	for direction := 0; direction < NumNeighbors; direction++ {
		steps, tgtPos := b.grasshopperRunEnd(srcPos, direction)
		if steps > 1 {
			out = append(out, tgtPos)
		}
	}
	return out
}

func (b *Board) grasshopperRunEnd(srcPos Pos, direction int) (steps int, tgtPos Pos) {
	d := directions[direction]
	tgtPos = srcPos
	for b.HasPiece(tgtPos) {
		steps++
		tgtPos = Pos{tgtPos[0] + d[0], tgtPos[1] + d[1]}
	}
	return
}

// spiderMoves enumerates the Spider's legal destinations: exactly three
// slide steps along the hive's perimeter, never revisiting a cell along the
// way.
func (b *Board) spiderMoves(srcPos Pos) []Pos {
	visitedPath := map[Pos]bool{srcPos: true}
	ends := map[Pos]bool{}
	b.spiderMovesDFS(srcPos, srcPos, 3, ends, visitedPath)
	out := make([]Pos, 0, len(ends))
	for pos := range ends {
		out = append(out, pos)
	}
	return out
}

func (b *Board) spiderMovesDFS(srcPos, originalPos Pos, depthLeft int, ends, visitedPath map[Pos]bool) {
	depthLeft--
	if depthLeft == 0 {
		for _, pos := range b.EmptyAndConnectedNeighbours(srcPos, originalPos, visitedPath) {
			ends[pos] = true
		}
		return
	}
	for _, pos := range b.EmptyAndConnectedNeighbours(srcPos, originalPos, visitedPath) {
		visitedPath[pos] = true
		b.spiderMovesDFS(pos, originalPos, depthLeft, ends, visitedPath)
		delete(visitedPath, pos)
	}
}

// antMoves enumerates the Ant's legal destinations: a breadth-first search
// over every cell reachable by repeated slide steps without ever breaking
// contact with the hive.
func (b *Board) antMoves(srcPos Pos) []Pos {
	visited := map[Pos]bool{srcPos: true}
	frontier := map[Pos]bool{srcPos: true}
	for len(frontier) > 0 {
		next := map[Pos]bool{}
		for pos := range frontier {
			for _, reachable := range b.EmptyAndConnectedNeighbours(pos, srcPos, visited) {
				visited[reachable] = true
				next[reachable] = true
			}
		}
		frontier = next
	}
	out := make([]Pos, 0, len(visited)-1)
	for pos := range visited {
		if pos != srcPos {
			out = append(out, pos)
		}
	}
	SortPositions(out)
	return out
}

// movesForPiece dispatches to the per-piece-type generator.
func (b *Board) movesForPiece(piece PieceType, srcPos Pos) []Pos {
	switch piece {
	case Queen:
		return b.queenMoves(srcPos)
	case Beetle:
		return b.beetleMoves(srcPos)
	case Grasshopper:
		return b.grasshopperMoves(srcPos)
	case Spider:
		return b.spiderMoves(srcPos)
	case Ant:
		return b.antMoves(srcPos)
	default:
		invariantViolation("movesForPiece called with %s", piece)
		return nil
	}
}
