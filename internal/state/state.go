// Package state implements the Hive board model and rules kernel: axial hex
// coordinates, piece stacks, legal placement/movement generation, hive
// connectivity, and terminal-condition detection.
//
// A Board is the complete game state: the grid of occupied cells, both
// colors' reserves, the side to move, and the move counter. Board values are
// treated as immutable once built: Act returns a new Board rather than
// mutating the receiver.
package state

import (
	"fmt"
	"sort"
)

// PieceType enumerates the five Hive insects, plus the NoPiece zero value.
type PieceType uint8

const (
	NoPiece PieceType = iota
	Ant
	Beetle
	Grasshopper
	Queen
	Spider

	numPieceTypesPlusOne
)

// NumPieceTypes doesn't include the NoPiece value.
const NumPieceTypes = int(numPieceTypesPlusOne) - 1

// Pieces enumerates all piece kinds, skipping NoPiece.
var Pieces = [NumPieceTypes]PieceType{Ant, Beetle, Grasshopper, Queen, Spider}

var pieceLetters = [numPieceTypesPlusOne]string{"-", "A", "B", "G", "Q", "S"}
var pieceNames = [numPieceTypesPlusOne]string{
	"None", "Ant", "Beetle", "Grasshopper", "Queen", "Spider",
}

// LetterToPiece maps the single-letter UHP-ish notation back to a PieceType.
var LetterToPiece = map[string]PieceType{"A": Ant, "B": Beetle, "G": Grasshopper, "Q": Queen, "S": Spider}

// String implements fmt.Stringer, returning the long piece name.
func (p PieceType) String() string {
	if int(p) >= len(pieceNames) {
		return "PieceType(?)"
	}
	return pieceNames[p]
}

// Letter returns the single-character notation for the piece (A, B, G, Q, S).
func (p PieceType) Letter() string {
	if int(p) >= len(pieceLetters) {
		return "?"
	}
	return pieceLetters[p]
}

// Color is one of the two sides, White or Black, matching spec.md's
// vocabulary. Internally it indexes per-color arrays, the way the teacher's
// PlayerNum does.
type Color uint8

const (
	White Color = iota
	Black

	// NoColor represents an invalid/unset Color.
	NoColor
)

var colorNames = [3]string{"White", "Black", "NoColor"}

// String implements fmt.Stringer.
func (c Color) String() string {
	if int(c) >= len(colorNames) {
		return "Color(?)"
	}
	return colorNames[c]
}

// Opponent returns the other color.
func (c Color) Opponent() Color {
	return 1 - c
}

const (
	// NumColors is fixed at 2: this is a two-player game.
	NumColors = 2

	// NumNeighbors of any cell: the board is hexagonal.
	NumNeighbors = 6

	// DefaultMaxMoves after which an unfinished game is ruled a draw.
	DefaultMaxMoves = 200

	// TotalPiecesPerColor is the sum of InitialReserve.
	TotalPiecesPerColor = 11
)

// Reserve holds the unplaced-piece counts for one color, indexed by
// piece-1 (NoPiece has no slot).
type Reserve [NumPieceTypes]uint8

// InitialReserve at the start of a match: Q:1, A:3, G:3, B:2, S:2.
var InitialReserve = Reserve{3, 2, 3, 1, 2}

// Count returns the total number of pieces still in reserve.
func (r Reserve) Count() (count uint8) {
	for _, v := range r {
		count += v
	}
	return
}

// Pos is an axial hex coordinate (q, r).
type Pos [2]int8

// Q is the axial q coordinate.
func (pos Pos) Q() int8 { return pos[0] }

// R is the axial r coordinate.
func (pos Pos) R() int8 { return pos[1] }

func absInt8(x int8) int8 {
	if x < 0 {
		return -x
	}
	return x
}

// Distance returns the hex distance between two axial positions: the
// cube-coordinate Chebyshev distance max(|dq|, |dr|, |dq+dr|).
//
// The teacher's original Pos.Distance summed |dq|+|dr| (a Manhattan
// distance), which overcounts on a hex grid; this is the corrected formula
// spec.md's Board Model calls for.
func (pos Pos) Distance(other Pos) int {
	dq := pos[0] - other[0]
	dr := pos[1] - other[1]
	d := absInt8(dq)
	if v := absInt8(dr); v > d {
		d = v
	}
	if v := absInt8(dq + dr); v > d {
		d = v
	}
	return int(d)
}

// String implements fmt.Stringer.
func (pos Pos) String() string {
	return fmt.Sprintf("(%d,%d)", pos[0], pos[1])
}

// directions holds the six neighbor deltas in spec.md's canonical order:
// (+1,0), (+1,-1), (0,-1), (-1,0), (-1,+1), (0,+1).
//
// This ordering is load-bearing: slide-gate flank lookups and grasshopper
// jumps index into it directly, and must agree with it.
var directions = [NumNeighbors]Pos{
	{1, 0}, {1, -1}, {0, -1}, {-1, 0}, {-1, 1}, {0, 1},
}

// Neighbors returns the six axial neighbors of pos, in canonical direction
// order.
func (pos Pos) Neighbors() [NumNeighbors]Pos {
	var out [NumNeighbors]Pos
	for ii, d := range directions {
		out[ii] = Pos{pos[0] + d[0], pos[1] + d[1]}
	}
	return out
}

// DirectionTo returns the index (0..5) into directions of the direction from
// pos to a neighboring position. It panics if other is not a neighbor of pos
// -- callers must only use it on positions already known to be adjacent.
func (pos Pos) DirectionTo(other Pos) int {
	dq, dr := other[0]-pos[0], other[1]-pos[1]
	for ii, d := range directions {
		if d[0] == dq && d[1] == dr {
			return ii
		}
	}
	panic(fmt.Sprintf("state: %s is not a neighbor of %s", other, pos))
}

// SortPositions sorts positions by r, then q -- used only to stabilize test
// output and debug printing; it carries no game-semantic meaning.
func SortPositions(positions []Pos) {
	sort.Slice(positions, func(i, j int) bool {
		if positions[i][1] != positions[j][1] {
			return positions[i][1] < positions[j][1]
		}
		return positions[i][0] < positions[j][0]
	})
}

// EncodedStack packs a bottom-first... no: top-first stack of up to 8
// pieces into a uint64: 8 bits per piece (1 bit color + 7 bits PieceType),
// most-recently-stacked (top) piece in the low byte.
type EncodedStack uint64

// PieceAt returns the color and piece at depth d into the stack. Depth 0 is
// the top of the stack.
func (stack EncodedStack) PieceAt(depth uint8) (color Color, piece PieceType) {
	shift := depth << 3
	piece = PieceType((stack >> shift) & 0x7F)
	color = Color((stack >> (shift + 7)) & 1)
	return
}

// Top returns the color and piece on top of the stack.
func (stack EncodedStack) Top() (color Color, piece PieceType) {
	return stack.PieceAt(0)
}

// HasPiece returns whether the stack holds at least one piece.
func (stack EncodedStack) HasPiece() bool {
	return (stack & 0x7F) != 0
}

// HasQueen reports whether a Queen exists anywhere in the stack, and whose.
func (stack EncodedStack) HasQueen() (found bool, color Color) {
	for stack != 0 {
		if PieceType(stack&0x7F) == Queen {
			return true, Color(stack >> 7 & 1)
		}
		stack >>= 8
	}
	return false, NoColor
}

// CountPieces returns how many pieces are stacked at this cell.
func (stack EncodedStack) CountPieces() (count uint8) {
	for stack != 0 {
		count++
		stack >>= 8
	}
	return
}

// Stacked reports whether there is more than one piece here (i.e. whether
// the top piece is sitting on top of another, Beetle-style).
func (stack EncodedStack) Stacked() bool {
	return (stack & 0x7F00) != 0
}

// Push stacks a new piece on top and returns the updated value.
func (stack EncodedStack) Push(color Color, piece PieceType) EncodedStack {
	return (stack << 8) | EncodedStack(piece&0x7F) | EncodedStack((color&1)<<7)
}

// Pop removes the top piece and returns the updated stack along with the
// popped color/piece.
func (stack EncodedStack) Pop() (newStack EncodedStack, color Color, piece PieceType) {
	color, piece = stack.Top()
	newStack = stack >> 8
	return
}

// Board is the complete, immutable game state: cell stacks, both colors'
// reserves, side to move, move counter, and cached Derived information.
//
// Board values are never mutated in place by exported operations; Act
// returns a new Board. (BuildDerived, StackPiece etc. do mutate -- they are
// used only while constructing a Board, before it is published, mirroring
// the teacher's Board.)
type Board struct {
	reserve    [NumColors]Reserve
	cells      map[Pos]EncodedStack
	MoveNumber int
	MaxMoves   int
	NextColor  Color

	// Derived holds information rebuilt after every Act: legal actions,
	// connectivity, end-game status. Nil only transiently during
	// construction.
	Derived *Derived

	// Previous links to the board this one was Act-ed from, within the
	// same match, so repetition can be detected by walking backwards. Nil
	// for the initial board or for boards built standalone (e.g. tests),
	// in which case repetition detection simply finds none.
	Previous *Board
}

// NewBoard returns an empty board with full reserves and White to move.
func NewBoard() *Board {
	b := &Board{
		reserve:   [NumColors]Reserve{InitialReserve, InitialReserve},
		cells:     map[Pos]EncodedStack{},
		MoveNumber: 1,
		MaxMoves:   DefaultMaxMoves,
		NextColor:  White,
	}
	b.BuildDerived()
	return b
}

// Clone makes a deep copy suitable as the basis of the next move; Derived is
// cleared (the caller is expected to call BuildDerived, which Act does).
func (b *Board) Clone() *Board {
	newB := &Board{}
	*newB = *b
	newB.Derived = nil
	newB.cells = make(map[Pos]EncodedStack, len(b.cells))
	for k, v := range b.cells {
		newB.cells[k] = v
	}
	return newB
}

// Opponent returns the color that is not NextColor.
func (b *Board) Opponent() Color {
	return b.NextColor.Opponent()
}

// Available returns how many of the given piece type color still has in
// reserve.
func (b *Board) Available(color Color, piece PieceType) uint8 {
	return b.reserve[color][piece-1]
}

func (b *Board) setAvailable(color Color, piece PieceType, value uint8) {
	b.reserve[color][piece-1] = value
}

// HasPiece reports whether pos holds at least one piece.
func (b *Board) HasPiece(pos Pos) bool {
	stack, ok := b.cells[pos]
	return ok && stack.HasPiece()
}

// TopOf returns the color and piece on top of pos's stack (NoPiece if
// empty), and whether the cell is stacked (a piece lies beneath the top).
func (b *Board) TopOf(pos Pos) (color Color, piece PieceType, stacked bool) {
	stack := b.cells[pos]
	color, piece = stack.Top()
	stacked = stack.Stacked()
	return
}

// StackAt returns the raw EncodedStack at pos (zero value if empty).
func (b *Board) StackAt(pos Pos) EncodedStack {
	return b.cells[pos]
}

// CountAt returns the number of pieces stacked at pos.
func (b *Board) CountAt(pos Pos) uint8 {
	return b.cells[pos].CountPieces()
}

// StackPiece places a piece on top of pos's stack. It does not touch
// reserves or placement-order counters; used internally by Act and by
// tests that build boards directly.
func (b *Board) StackPiece(pos Pos, color Color, piece PieceType) {
	b.cells[pos] = b.cells[pos].Push(color, piece)
}

// PopPiece removes and returns the top piece at pos.
func (b *Board) PopPiece(pos Pos) (color Color, piece PieceType) {
	newStack, c, p := b.cells[pos].Pop()
	if newStack != 0 {
		b.cells[pos] = newStack
	} else {
		delete(b.cells, pos)
	}
	return c, p
}

// NumPiecesOnBoard is the number of occupied cells (not the number of
// stacked pieces: a Beetle stack still counts its cell once here, callers
// that need the piece count use TotalPiecesPerColor - Available(...)).
func (b *Board) NumPiecesOnBoard() int {
	return len(b.cells)
}

// OccupiedPositions returns all currently occupied cells, in unspecified
// order.
func (b *Board) OccupiedPositions() []Pos {
	out := make([]Pos, 0, len(b.cells))
	for pos := range b.cells {
		out = append(out, pos)
	}
	return out
}

// filterPositions keeps only the positions for which keep returns true,
// reusing positions' backing array.
func filterPositions(positions []Pos, keep func(Pos) bool) []Pos {
	out := positions[:0]
	for _, pos := range positions {
		if keep(pos) {
			out = append(out, pos)
		}
	}
	return out
}

// OccupiedNeighbors returns the neighbors of pos that hold a piece.
func (b *Board) OccupiedNeighbors(pos Pos) []Pos {
	all := pos.Neighbors()
	return filterPositions(all[:], func(p Pos) bool { return b.HasPiece(p) })
}

// EmptyNeighbors returns the neighbors of pos that are empty.
func (b *Board) EmptyNeighbors(pos Pos) []Pos {
	all := pos.Neighbors()
	return filterPositions(all[:], func(p Pos) bool { return !b.HasPiece(p) })
}

// NumSurroundingNeighbors is the count of occupied neighbors of pos --
// used directly for Queen-threat counting (6 means surrounded).
func (b *Board) NumSurroundingNeighbors(pos Pos) int {
	count := 0
	for _, n := range pos.Neighbors() {
		if b.HasPiece(n) {
			count++
		}
	}
	return count
}
