package state

import (
	"sort"

	"github.com/hivecore/engine/internal/generics"
)

// Derived holds information recomputed after every Act: legal actions,
// connectivity, terminal status, and the handful of cheap positional
// counts the Evaluator and move filter both want without recomputing.
type Derived struct {
	// Repeats counts how many times this exact (translation- and
	// side-to-move-normalized) position has occurred earlier in the match.
	Repeats uint8

	// Bounding box of occupied cells, as returned by UsedLimits.
	MinQ, MaxQ, MinR, MaxR int8

	// Hash is a content hash of the normalized position, folding in the
	// side to move. Not guaranteed collision-free; used for repetition
	// detection together with a full comparison.
	Hash uint64

	normalizedPositions PosStackSlice

	NumPiecesOnBoard    [NumColors]uint8
	NumSurroundingQueen [NumColors]uint8
	PlacementPositions  [NumColors]generics.Set[Pos]
	Wins                [NumColors]bool // both true is a draw.
	QueenPos            [NumColors]Pos  // valid only if HasQueen[color].
	HasQueen            [NumColors]bool
	Singles             [NumColors]uint8 // pieces with exactly one occupied neighbor.

	// RemovablePositions is the set of occupied cells that could be emptied
	// without disconnecting the hive -- the pin-detection primitive. The top
	// piece of a stacked cell leaves the cell occupied, so it may move even
	// from a cell outside this set.
	RemovablePositions generics.Set[Pos]

	ColorActions [NumColors][]Action

	// Actions is a shortcut to ColorActions[NextColor].
	Actions []Action

	// MovesToDraw is how many more moves (one per Act, either color)
	// remain before MaxMoves forces a draw.
	MovesToDraw int
}

// BuildDerived recomputes b.Derived from scratch. Called by Act and by
// NewBoard; not normally called directly outside of tests that construct a
// Board by hand.
func (b *Board) BuildDerived() {
	b.Derived = nil
	d := &Derived{}
	b.Derived = d

	d.MinQ, d.MaxQ, d.MinR, d.MaxR = b.UsedLimits()
	d.normalizedPositions = b.normalizedPosStackSlice()
	d.Hash = b.normalizedHash(d.normalizedPositions)
	d.Repeats = b.findRepeats()

	for c := Color(0); c < NumColors; c++ {
		d.NumPiecesOnBoard[c] = TotalPiecesPerColor - b.reserve[c].Count()
		d.PlacementPositions[c] = b.placementPositions(c)
	}

	d.RemovablePositions = b.RemovablePositions()
	for c := Color(0); c < NumColors; c++ {
		actions := b.ValidActions(c)
		// ValidActions is built from map-range loops over
		// PlacementPositions/cells, so its order is not reproducible
		// across equivalent boards; canonicalize with Action.Less so
		// everything downstream (search, MCTS) sees the same move order
		// for the same position, regardless of map iteration order.
		sort.Slice(actions, func(i, j int) bool { return actions[i].Less(actions[j]) })
		d.ColorActions[c] = actions
	}
	d.Actions = d.ColorActions[b.NextColor]

	d.Wins, d.NumSurroundingQueen, d.QueenPos, d.HasQueen = b.endGame()
	d.Singles = b.listSingles()
	d.MovesToDraw = b.MaxMoves - b.MoveNumber
	if d.MovesToDraw < 0 {
		d.MovesToDraw = 0
	}
}

// UsedLimits returns the bounding box (minQ, maxQ, minR, maxR) of occupied
// cells. An empty board returns all zeros.
func (b *Board) UsedLimits() (minQ, maxQ, minR, maxR int8) {
	first := true
	for pos := range b.cells {
		if first {
			minQ, maxQ, minR, maxR = pos[0], pos[0], pos[1], pos[1]
			first = false
			continue
		}
		if pos[0] < minQ {
			minQ = pos[0]
		}
		if pos[0] > maxQ {
			maxQ = pos[0]
		}
		if pos[1] < minR {
			minR = pos[1]
		}
		if pos[1] > maxR {
			maxR = pos[1]
		}
	}
	return
}

// InitialPos is the only legal placement cell on an empty board.
var InitialPos = Pos{0, 0}

// placementPositions enumerates the empty cells color may legally place a
// piece onto: adjacent to a friendly piece, never adjacent to an enemy
// piece (once the board has more than one piece).
func (b *Board) placementPositions(color Color) generics.Set[Pos] {
	placements := generics.MakeSet[Pos]()
	if len(b.cells) == 0 {
		placements.Insert(InitialPos)
		return placements
	}
	if len(b.cells) == 1 && b.CountAt(InitialPos) == 1 {
		for _, pos := range InitialPos.Neighbors() {
			placements.Insert(pos)
		}
		return placements
	}

	candidates := generics.MakeSet[Pos]()
	for pos, stack := range b.cells {
		posColor, _ := stack.Top()
		if posColor != color {
			continue
		}
		for _, empty := range b.EmptyNeighbors(pos) {
			candidates.Insert(empty)
		}
	}
	for pos := range candidates {
		hasEnemyNeighbor := false
		for _, neighbor := range b.OccupiedNeighbors(pos) {
			neighborColor, _, _ := b.TopOf(neighbor)
			if neighborColor != color {
				hasEnemyNeighbor = true
				break
			}
		}
		if !hasEnemyNeighbor {
			placements.Insert(pos)
		}
	}
	return placements
}

// ValidActions returns the list of legal actions for color. If there are
// none, it returns a single-element slice holding Pass: a color always has
// at least one legal action.
func (b *Board) ValidActions(color Color) []Action {
	actions := make([]Action, 0, 32)
	actions = b.addPlacementActions(color, actions)
	actions = b.addMoveActions(color, actions)
	if len(actions) == 0 {
		actions = append(actions, Pass)
	}
	return actions
}

// addPlacementActions appends color's legal placement actions.
//
// Two placement restrictions beyond "an empty cell adjacent only to
// friendly pieces" apply:
//   - Queen-by-4th-move: once color has placed 3 pieces and still holds
//     its Queen in reserve, the *only* legal placement is the Queen.
//   - Tournament first-move rule: a color may never place its Queen as
//     its very first placement of the match.
func (b *Board) addPlacementActions(color Color, actions []Action) []Action {
	d := b.Derived
	mustPlaceQueen := b.Available(color, Queen) > 0 && d.NumPiecesOnBoard[color] >= 3
	isFirstPlacement := d.NumPiecesOnBoard[color] == 0

	for pos := range d.PlacementPositions[color] {
		if mustPlaceQueen {
			actions = append(actions, Action{Piece: Queen, TargetPos: pos})
			continue
		}
		for _, piece := range Pieces {
			if piece == Queen && isFirstPlacement {
				continue
			}
			if b.Available(color, piece) > 0 {
				actions = append(actions, Action{Piece: piece, TargetPos: pos})
			}
		}
	}
	return actions
}

// addMoveActions appends color's legal movement actions. A color with its
// Queen still unplaced may not move any piece (nothing of its is yet on
// the board that isn't itself awaiting the Queen rule, and moving before
// placing the Queen is illegal under the standard rules).
func (b *Board) addMoveActions(color Color, actions []Action) []Action {
	if b.Available(color, Queen) != 0 {
		return actions
	}
	d := b.Derived
	for srcPos, stack := range b.cells {
		pieceColor, piece := stack.Top()
		if pieceColor != color {
			continue
		}
		if !d.RemovablePositions.Has(srcPos) && !stack.Stacked() {
			// Pinned: lifting it would split the hive. (A piece on top of
			// a stack leaves its cell occupied, so it is never pinned.)
			continue
		}
		for _, tgtPos := range b.movesForPiece(piece, srcPos) {
			actions = append(actions, Action{IsMove: true, Piece: piece, SourcePos: srcPos, TargetPos: tgtPos})
		}
	}
	return actions
}

// Act applies action for b.NextColor and returns the resulting board. It
// does not validate that action is legal for b -- callers that accept
// actions from outside this package (a UI, a network peer) must check
// IsValid first and surface state.IllegalMove themselves; Act assumes a
// legal action so internal callers (search) can skip that check on the hot
// path.
func (b *Board) Act(action Action) *Board {
	newB := b.Clone()
	newB.Previous = b
	if !action.IsPass() {
		if !action.IsMove {
			newB.StackPiece(action.TargetPos, newB.NextColor, action.Piece)
			newB.setAvailable(newB.NextColor, action.Piece, newB.Available(newB.NextColor, action.Piece)-1)
		} else {
			color, piece := newB.PopPiece(action.SourcePos)
			newB.StackPiece(action.TargetPos, color, piece)
		}
	}
	newB.NextColor = newB.NextColor.Opponent()
	newB.MoveNumber++
	newB.BuildDerived()
	if !newB.IsConnected() {
		invariantViolation("hive disconnected after %s", action)
	}
	return newB
}

// Apply is the checked entry point for callers outside this package's
// search code (a UI, a network peer, a fuzzer): it validates action
// against b.Derived.Actions and returns an *IllegalMove error instead of
// applying it if it isn't legal. Search hot paths call the unchecked Act
// directly, since they only ever act on actions they themselves generated.
func (b *Board) Apply(action Action) (*Board, error) {
	if !b.IsValid(action) {
		return nil, illegalMove(action, "not among %d legal action(s) for %s to move", len(b.Derived.Actions), b.NextColor)
	}
	return b.Act(action), nil
}

// TakeAllActions returns, for each of b.Derived.Actions, the board reached
// by taking it, in the same order. The boards are built afresh on every
// call; nothing is cached.
func (b *Board) TakeAllActions() []*Board {
	d := b.Derived
	boards := make([]*Board, len(d.Actions))
	for ii, action := range d.Actions {
		boards[ii] = b.Act(action)
	}
	return boards
}

// IsValid reports whether action is one of b.Derived.Actions for the
// color to move.
func (b *Board) IsValid(action Action) bool {
	for _, valid := range b.Derived.Actions {
		if action == valid {
			return true
		}
	}
	return false
}

// endGame reports, for each color, whether that color's Queen is fully
// surrounded (that color loses -- the other wins, or both simultaneously
// for a draw), along with the surrounding-neighbor count and Queen
// position used by the Evaluator's Queen-danger features.
func (b *Board) endGame() (wins [NumColors]bool, surrounding [NumColors]uint8, queenPos [NumColors]Pos, hasQueen [NumColors]bool) {
	if b.MoveNumber > b.MaxMoves {
		wins = [NumColors]bool{true, true}
		return
	}
	for pos, stack := range b.cells {
		if isQueen, color := stack.HasQueen(); isQueen {
			queenPos[color] = pos
			hasQueen[color] = true
			surrounding[color] = uint8(len(b.OccupiedNeighbors(pos)))
			if surrounding[color] == NumNeighbors {
				wins[color.Opponent()] = true
			}
		}
	}
	return
}

// listSingles counts, per color, pieces that have exactly one occupied
// neighbor -- the hive's "tips", which the Evaluator treats as
// structurally weak (a single tip is trivially pinned or easily isolated).
func (b *Board) listSingles() (singles [NumColors]uint8) {
	for pos, stack := range b.cells {
		if len(b.OccupiedNeighbors(pos)) == 1 {
			color, _ := stack.Top()
			singles[color]++
		}
	}
	return
}

// IsFinished reports whether the match represented by b has ended: a
// repeated position (Repeats reached MaxBoardRepeats, i.e. the position's
// fourth occurrence), a Queen fully surrounded, or the move cap reached.
func (b *Board) IsFinished() bool {
	d := b.Derived
	return d.Repeats >= MaxBoardRepeats || d.Wins[White] || d.Wins[Black] || b.MoveNumber >= b.MaxMoves
}

// Draw reports whether the finished match ended without a winner.
func (b *Board) Draw() bool {
	return b.IsFinished() && b.Derived.Wins[White] == b.Derived.Wins[Black]
}

// Winner returns the winning color, or NoColor if the match is a draw or
// still in progress.
func (b *Board) Winner() Color {
	if !b.IsFinished() || b.Draw() {
		return NoColor
	}
	if b.Derived.Wins[White] {
		return White
	}
	return Black
}

// FinishReason returns a short human-readable explanation of why the
// match ended, for logging/debugging only.
func (b *Board) FinishReason() string {
	if !b.IsFinished() {
		return "match is not finished"
	}
	if winner := b.Winner(); winner != NoColor {
		return winner.String() + " won: opponent's Queen fully surrounded"
	}
	if b.Derived.Repeats >= MaxBoardRepeats {
		return "draw: position repeated"
	}
	if b.MoveNumber >= b.MaxMoves {
		return "draw: move limit reached"
	}
	return "draw: both Queens surrounded simultaneously"
}

// EnumeratePieces calls cb for every piece on the board, top of stack
// first at each cell, used by the evaluator and the CLI renderer.
func (b *Board) EnumeratePieces(cb func(color Color, piece PieceType, pos Pos, covered bool)) {
	for pos, stack := range b.cells {
		covered := false
		for stack != 0 {
			var color Color
			var piece PieceType
			stack, color, piece = stack.Pop()
			cb(color, piece, pos, covered)
			covered = true
		}
	}
}
