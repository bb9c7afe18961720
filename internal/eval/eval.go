// Package eval implements the hand-authored positional/tactical evaluator:
// a weighted sum of named board features, squashed into a bounded score
// the way the teacher's ai.SquashScore composes a linear model's logit.
//
// Unlike the teacher's internal/ai/linear, these weights are not learned --
// there is no training loop in this engine (see Non-goals) -- they are a
// fixed table tuned by hand, the same way a strong classical (pre-neural)
// game engine's evaluation function is built.
package eval

import (
	"context"
	"fmt"

	"github.com/chewxy/math32"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/hivecore/engine/internal/state"
)

// WinScore bounds the squashed score range: a won position scores
// +WinScore, a lost one -WinScore.
const WinScore = float32(1)

// Squash maps an unbounded weighted-feature sum into (-WinScore, WinScore)
// with a tanh S-curve, exactly as the teacher's ai.SquashScore does.
func Squash(x float32) float32 {
	return math32.Tanh(x) * WinScore
}

// Score is the result of evaluating one board from one color's
// perspective.
type Score struct {
	// Tactical is the raw, signed, unbounded weighted feature sum:
	// positive favors Perspective, negative favors its opponent. Used by
	// the tactical minimax searcher, which wants a linear score it can
	// compare against alpha/beta bounds without a saturating nonlinearity
	// flattening small material differences near the edges.
	Tactical float32

	// Positional is Tactical squashed into [0, 1] via (Squash+1)/2: 0.5 is
	// balanced, 1 is a certain win for Perspective, 0 a certain loss. Used
	// by MCTS, which treats it as a win-probability estimate.
	Positional float32

	Perspective state.Color
	Features    Features
}

// Features holds the named, human-inspectable feature values that went
// into a Score, each already oriented so that positive favors
// Perspective. Logged at klog.V(2) when tracing a search decision.
type Features struct {
	QueenThreats      float32 // enemy Queen's occupied-neighbor count.
	QueenDanger       float32 // our Queen's occupied-neighbor count (negated).
	QueenCovered      float32 // -1 if our Queen is pinned under an enemy Beetle.
	MaterialByPhase   float32 // phase-weighted piece-development differential.
	PieceCoordination float32 // contact/isolation differential (Singles-derived).
	CentralControl    float32 // placement-option count differential.
	PieceNetwork      float32 // mobile (non-pinned) piece count differential.
	TacticalPins      float32 // opponent pieces pinned next to their Queen.
	TacticalForks     float32 // empty Queen-adjacent cells reachable by 2+ pieces.
	TempoInitiative   float32 // legal-move-count differential.
	CirclingDefense   float32 // friendly pieces supporting our own Queen.
	EndgameFactor     float32 // move-limit-draw awareness, small weight.
}

// weights assigns each feature its contribution to the tactical sum. Tuned
// by hand; Queen safety dominates, as it must in Hive (there is no other
// way to win or lose).
var weights = Features{
	QueenThreats:      1.60,
	QueenDanger:       1.90,
	QueenCovered:      0.90,
	MaterialByPhase:   0.35,
	PieceCoordination: 0.25,
	CentralControl:    0.20,
	PieceNetwork:      0.30,
	TacticalPins:      0.55,
	TacticalForks:     0.70,
	TempoInitiative:   0.15,
	CirclingDefense:   0.20,
	EndgameFactor:     0.05,
}

// Sum applies weights to f and returns the resulting tactical score.
func (f Features) Sum() float32 {
	return f.QueenThreats*weights.QueenThreats +
		f.QueenDanger*weights.QueenDanger +
		f.QueenCovered*weights.QueenCovered +
		f.MaterialByPhase*weights.MaterialByPhase +
		f.PieceCoordination*weights.PieceCoordination +
		f.CentralControl*weights.CentralControl +
		f.PieceNetwork*weights.PieceNetwork +
		f.TacticalPins*weights.TacticalPins +
		f.TacticalForks*weights.TacticalForks +
		f.TempoInitiative*weights.TempoInitiative +
		f.CirclingDefense*weights.CirclingDefense +
		f.EndgameFactor*weights.EndgameFactor
}

// String pretty-prints the feature breakdown, mirroring the teacher's
// features.PrettyPrint debug helper.
func (f Features) String() string {
	return fmt.Sprintf(
		"queenThreats=%.2f queenDanger=%.2f queenCovered=%.2f material=%.2f "+
			"coordination=%.2f central=%.2f network=%.2f pins=%.2f forks=%.2f "+
			"tempo=%.2f circling=%.2f endgame=%.2f",
		f.QueenThreats, f.QueenDanger, f.QueenCovered, f.MaterialByPhase,
		f.PieceCoordination, f.CentralControl, f.PieceNetwork, f.TacticalPins,
		f.TacticalForks, f.TempoInitiative, f.CirclingDefense, f.EndgameFactor)
}

// pieceValue is the per-type development weight used by MaterialByPhase:
// mobile, hard-to-block pieces (Ant) are worth more on the board early;
// the Queen itself carries no material value (its placement is forced by
// the rules, not a choice worth weighing).
var pieceValue = map[state.PieceType]float32{
	state.Ant:         3,
	state.Beetle:      2,
	state.Grasshopper: 1,
	state.Spider:      1,
	state.Queen:       0,
}

// Evaluate scores board from perspective's point of view. A finished board
// short-circuits the feature weighting entirely: a won position scores
// +Inf/1.0, a lost one -Inf/0.0, and a simultaneous draw 0/0.5, per
// spec.md §4.4 -- the searchers already special-case terminals themselves
// (mcts.terminalValue, alphabeta.leafScore), but this keeps the exposed
// Evaluate/evaluate(...) test API honest about its own contract.
func Evaluate(board *state.Board, perspective state.Color) Score {
	f := computeFeatures(board, perspective)
	if board.IsFinished() {
		switch {
		case board.Draw():
			return Score{Tactical: 0, Positional: 0.5, Perspective: perspective, Features: f}
		case board.Winner() == perspective:
			return Score{Tactical: math32.Inf(1), Positional: 1, Perspective: perspective, Features: f}
		default:
			return Score{Tactical: math32.Inf(-1), Positional: 0, Perspective: perspective, Features: f}
		}
	}

	tactical := f.Sum()
	return Score{
		Tactical:    tactical,
		Positional:  (Squash(tactical) + WinScore) / 2,
		Perspective: perspective,
		Features:    f,
	}
}

// EvaluateBatch scores many boards concurrently, one goroutine per board,
// the way the teacher's BatchBoardScorer batches a slice of boards --
// expressed with errgroup instead of a hand-rolled WaitGroup+semaphore, the
// cleaner idiom from the same ecosystem the teacher already depends on.
func EvaluateBatch(ctx context.Context, boards []*state.Board, perspective state.Color) ([]Score, error) {
	scores := make([]Score, len(boards))
	g, _ := errgroup.WithContext(ctx)
	for ii, board := range boards {
		ii, board := ii, board
		g.Go(func() error {
			scores[ii] = Evaluate(board, perspective)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if klog.V(3).Enabled() {
		for ii, score := range scores {
			klog.V(3).Infof("eval: candidate #%d tactical=%.3f %s", ii, score.Tactical, score.Features)
		}
	}
	return scores, nil
}

func computeFeatures(b *state.Board, self state.Color) Features {
	opp := self.Opponent()
	d := b.Derived

	var f Features

	// --- Queen threats / danger ---
	if d.HasQueen[opp] {
		f.QueenThreats = float32(d.NumSurroundingQueen[opp])
	}
	if d.HasQueen[self] {
		f.QueenDanger = -float32(d.NumSurroundingQueen[self])
		if topColor, _, covered := b.TopOf(d.QueenPos[self]); covered && topColor == opp {
			f.QueenCovered = -1
		}
	}

	// --- Material by phase: development is worth more early. ---
	totalPlaced := d.NumPiecesOnBoard[state.White] + d.NumPiecesOnBoard[state.Black]
	phase := float32(totalPlaced) / float32(2*state.TotalPiecesPerColor)
	phaseWeight := 1 - 0.6*phase // 1.0 early game, 0.4 late game.
	var selfMaterial, oppMaterial float32
	b.EnumeratePieces(func(color state.Color, piece state.PieceType, pos state.Pos, covered bool) {
		if covered {
			return
		}
		v := pieceValue[piece]
		if color == self {
			selfMaterial += v
		} else {
			oppMaterial += v
		}
	})
	f.MaterialByPhase = (selfMaterial - oppMaterial) * phaseWeight

	// --- Coordination: fewer of our own tips (Singles), more of theirs. ---
	f.PieceCoordination = float32(d.Singles[opp]) - float32(d.Singles[self])

	// --- Central control / placement options. ---
	f.CentralControl = float32(len(d.PlacementPositions[self])) - float32(len(d.PlacementPositions[opp]))

	// --- Piece network: mobile (non-pinned) pieces on board. ---
	f.PieceNetwork = countColorIn(b, d.RemovablePositions, self) - countColorIn(b, d.RemovablePositions, opp)

	// --- Tactical pins/forks, around the opponent's Queen. ---
	if d.HasQueen[opp] {
		f.TacticalPins = countPinnedNeighbors(b, d.QueenPos[opp], opp)
		f.TacticalForks = countForkTargets(b, d.QueenPos[opp], self)
	}

	// --- Tempo: raw legal-move-count differential. ---
	f.TempoInitiative = float32(len(b.ValidActions(self))) - float32(len(b.ValidActions(opp)))

	// --- Circling defense: friendly support around our own Queen. ---
	if d.HasQueen[self] {
		f.CirclingDefense = float32(countFriendlyNeighbors(b, d.QueenPos[self], self))
	}

	// --- Endgame: mild awareness of the move-limit draw clock. ---
	f.EndgameFactor = 1 - float32(d.MovesToDraw)/float32(b.MaxMoves)

	return f
}

func countColorIn(b *state.Board, positions map[state.Pos]struct{}, color state.Color) float32 {
	var count float32
	for pos := range positions {
		if c, _, _ := b.TopOf(pos); c == color {
			count++
		}
	}
	return count
}

func countFriendlyNeighbors(b *state.Board, pos state.Pos, color state.Color) int {
	count := 0
	for _, n := range b.OccupiedNeighbors(pos) {
		if c, _, _ := b.TopOf(n); c == color {
			count++
		}
	}
	return count
}

// countPinnedNeighbors counts how many of owner's own pieces adjacent to
// its Queen cannot move (are not in RemovablePositions): pieces pinned
// right next to the Queen can't reinforce or flee, a real tactical
// weakness for owner.
func countPinnedNeighbors(b *state.Board, queenPos state.Pos, owner state.Color) float32 {
	var count float32
	d := b.Derived
	for _, n := range b.OccupiedNeighbors(queenPos) {
		c, _, _ := b.TopOf(n)
		if c != owner {
			continue
		}
		if !d.RemovablePositions.Has(n) {
			count++
		}
	}
	return count
}

// countForkTargets counts empty cells adjacent to the opponent's Queen
// that self can reach in one move from at least two distinct pieces
// simultaneously -- an approximation of a fork: the opponent can only
// block or occupy one of the threatened destinations per turn.
func countForkTargets(b *state.Board, queenPos state.Pos, self state.Color) float32 {
	threatCounts := map[state.Pos]int{}
	for _, n := range queenPos.Neighbors() {
		if !b.HasPiece(n) {
			threatCounts[n] = 0
		}
	}
	if len(threatCounts) == 0 {
		return 0
	}
	for _, action := range b.ValidActions(self) {
		if action.IsPass() {
			continue
		}
		if _, isThreatTarget := threatCounts[action.TargetPos]; isThreatTarget {
			threatCounts[action.TargetPos]++
		}
	}
	var forks float32
	for _, reachers := range threatCounts {
		if reachers >= 2 {
			forks++
		}
	}
	return forks
}
