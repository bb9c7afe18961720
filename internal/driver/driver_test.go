package driver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivecore/engine/internal/eval"
	"github.com/hivecore/engine/internal/state"
)

// pieceOnBoard/buildBoard mirror the pattern used throughout this module's
// tests: place pieces directly via the exported API and rebuild Derived,
// bypassing reserve bookkeeping for scenarios that only need Derived's
// cached fields (Queen danger, pin counts), not real move generation.
// Derived.NumPiecesOnBoard is read off the reserves, so it stays 0 on these
// boards; tests that need piece totals use playPlacements instead.
type pieceOnBoard struct {
	pos   state.Pos
	color state.Color
	piece state.PieceType
}

func buildBoard(layout []pieceOnBoard) *state.Board {
	b := state.NewBoard()
	for _, p := range layout {
		b.StackPiece(p.pos, p.color, p.piece)
	}
	b.BuildDerived()
	return b
}

// playPlacements plays actions through Act from a fresh board, White
// first and colors alternating, so reserves (and with them
// Derived.NumPiecesOnBoard) match what is on the board.
func playPlacements(actions ...state.Action) *state.Board {
	b := state.NewBoard()
	for _, action := range actions {
		b = b.Act(action)
	}
	return b
}

func TestDifficultyString(t *testing.T) {
	assert.Equal(t, "Easy", Easy.String())
	assert.Equal(t, "Medium", Medium.String())
	assert.Equal(t, "Hard", Hard.String())
	assert.Equal(t, "Difficulty(?)", Difficulty(99).String())
}

func TestProfileFromParamsOverridesDefaults(t *testing.T) {
	profile, err := ProfileFromParams(Medium, map[string]string{
		"mcts_iterations":     "500",
		"minimax_depth":       "7",
		"strategy_multiplier": "1.25",
	})
	require.NoError(t, err)
	assert.Equal(t, 500, profile.MCTSIterations)
	assert.Equal(t, 7, profile.MinimaxDepth)
	assert.InDelta(t, float32(1.25), profile.StrategyMultiplier, 1e-6)
	// Untouched fields keep their Medium default.
	assert.Equal(t, DefaultProfiles[Medium].MCTSMaxTime, profile.MCTSMaxTime)
}

func TestProfileFromParamsPropagatesParseError(t *testing.T) {
	_, err := ProfileFromParams(Easy, map[string]string{"minimax_depth": "not-a-number"})
	assert.Error(t, err)
}

func TestDecidePassesWhenNoLegalActions(t *testing.T) {
	board := state.NewBoard()
	board.Derived.Actions = []state.Action{state.Pass}

	decision, err := Decide(context.Background(), board, state.White, Easy, nil)
	require.NoError(t, err)
	assert.Equal(t, state.Pass, decision.Action)
	assert.Equal(t, board, decision.Board)
}

func TestDecideSingleLegalActionShortCircuits(t *testing.T) {
	board := state.NewBoard()
	real := board.Derived.Actions
	require.NotEmpty(t, real)
	only := real[0]
	board.Derived.Actions = []state.Action{only}

	decision, err := Decide(context.Background(), board, state.White, Easy, nil)
	require.NoError(t, err)
	assert.Equal(t, only, decision.Action)
	assert.Equal(t, "only one legal action", decision.Reason)
}

func TestDecideForcedQueenPlacement(t *testing.T) {
	// White has 3 non-Queen pieces down already and still holds its Queen.
	board := playPlacements(
		state.Action{Piece: state.Ant, TargetPos: state.Pos{0, 0}},          // White
		state.Action{Piece: state.Ant, TargetPos: state.Pos{-1, 0}},         // Black
		state.Action{Piece: state.Beetle, TargetPos: state.Pos{1, 0}},       // White
		state.Action{Piece: state.Grasshopper, TargetPos: state.Pos{-2, 0}}, // Black
		state.Action{Piece: state.Spider, TargetPos: state.Pos{1, -1}},      // White
		state.Action{Piece: state.Spider, TargetPos: state.Pos{-3, 0}},      // Black
	)

	decision, err := Decide(context.Background(), board, state.White, Easy, nil)
	require.NoError(t, err)
	assert.Equal(t, "forced queen placement", decision.Reason)
	assert.Equal(t, state.Queen, decision.Action.Piece)
}

func TestDecideHonorsCancelledContextWithoutError(t *testing.T) {
	board := state.NewBoard()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	decision, err := Decide(ctx, board, state.White, Easy, nil)
	require.NoError(t, err)
	found := false
	for _, a := range board.ValidActions(state.White) {
		if a.Equal(decision.Action) {
			found = true
			break
		}
	}
	assert.True(t, found, "cancelled Decide must still return a legal action")
}

func TestDecideEmitsProgressEvents(t *testing.T) {
	board := state.NewBoard()
	board.Derived.Actions = []state.Action{state.Pass}

	var phases []string
	_, err := Decide(context.Background(), board, state.White, Easy, func(e ProgressEvent) {
		phases = append(phases, e.Phase)
	})
	require.NoError(t, err)
	assert.Contains(t, phases, "capture")
}

func TestMustPlaceQueenTrueOnlyWhenQueenHeldAndThreePiecesDown(t *testing.T) {
	// White has 3 pieces down, Black 2; both still hold their Queens.
	board := playPlacements(
		state.Action{Piece: state.Ant, TargetPos: state.Pos{0, 0}},          // White
		state.Action{Piece: state.Ant, TargetPos: state.Pos{-1, 0}},         // Black
		state.Action{Piece: state.Beetle, TargetPos: state.Pos{1, 0}},       // White
		state.Action{Piece: state.Grasshopper, TargetPos: state.Pos{-2, 0}}, // Black
		state.Action{Piece: state.Spider, TargetPos: state.Pos{1, -1}},      // White
	)
	assert.True(t, mustPlaceQueen(board, state.White))
	assert.False(t, mustPlaceQueen(board, state.Black))
}

func TestIsTacticalPositionQueenSurroundedTrigger(t *testing.T) {
	queenPos := state.Pos{0, 0}
	neighbors := queenPos.Neighbors()
	board := buildBoard([]pieceOnBoard{
		{queenPos, state.White, state.Queen},
		{neighbors[0], state.Black, state.Ant},
		{neighbors[1], state.Black, state.Spider},
		{neighbors[2], state.Black, state.Beetle},
	})
	assert.True(t, isTacticalPosition(board, state.White, board.Derived.Actions))
}

func TestIsTacticalPositionQueenProximityTrigger(t *testing.T) {
	whiteQueen := state.Pos{0, 0}
	blackQueen := whiteQueen.Neighbors()[0].Neighbors()[0] // distance 2.
	board := buildBoard([]pieceOnBoard{
		{whiteQueen, state.White, state.Queen},
		{blackQueen, state.Black, state.Queen},
	})
	require.LessOrEqual(t, whiteQueen.Distance(blackQueen), 4)
	assert.True(t, isTacticalPosition(board, state.White, board.Derived.Actions))
}

func TestIsTacticalPositionLowPieceCountTrigger(t *testing.T) {
	board := playPlacements(
		state.Action{Piece: state.Ant, TargetPos: state.Pos{0, 0}},    // White
		state.Action{Piece: state.Spider, TargetPos: state.Pos{1, 0}}, // Black
	)
	// Only 2 pieces on the board total, well under the 8-piece threshold.
	assert.True(t, isTacticalPosition(board, state.White, board.Derived.Actions))
}

func TestIsTacticalPositionFewActionsTrigger(t *testing.T) {
	board := state.NewBoard()
	actions := []state.Action{board.Derived.Actions[0]}
	assert.True(t, isTacticalPosition(board, state.White, actions))
}

func TestCountPinnedCountsOnlyNonRemovablePositions(t *testing.T) {
	a := state.Pos{0, 0}
	b := a.Neighbors()[0]
	c := b.Neighbors()[0]
	board := buildBoard([]pieceOnBoard{
		{a, state.White, state.Ant},
		{b, state.White, state.Beetle},
		{c, state.Black, state.Spider},
	})
	// A 3-piece straight chain: only the middle link is a cut vertex.
	assert.Equal(t, 1, countPinned(board))
}

func TestBeetleWithinDistanceFindsNearbyBeetle(t *testing.T) {
	target := state.Pos{0, 0}
	near := target.Neighbors()[0]
	board := buildBoard([]pieceOnBoard{
		{target, state.White, state.Queen},
		{near, state.Black, state.Beetle},
	})
	assert.True(t, beetleWithinDistance(board, state.Black, target, 2))
	assert.False(t, beetleWithinDistance(board, state.White, target, 2))
}

func TestBeetleWithinDistanceIgnoresCoveredBeetles(t *testing.T) {
	target := state.Pos{0, 0}
	near := target.Neighbors()[0]
	board := buildBoard([]pieceOnBoard{
		{target, state.White, state.Queen},
		{near, state.Black, state.Beetle},
		{near, state.Black, state.Ant}, // stacked on top, covering the Beetle.
	})
	assert.False(t, beetleWithinDistance(board, state.Black, target, 2))
}

func TestBestByEvaluatorPicksHighestPositionalScore(t *testing.T) {
	board := state.NewBoard()
	actions := board.Derived.Actions
	require.NotEmpty(t, actions)

	best := bestByEvaluator(board, actions, state.White)
	found := false
	for _, a := range actions {
		if a.Equal(best.Action) {
			found = true
			break
		}
	}
	assert.True(t, found)
	assert.NotNil(t, best.Next)
	for _, a := range actions {
		assert.LessOrEqual(t, eval.Evaluate(board.Act(a), state.White).Positional, best.Score)
	}
}
