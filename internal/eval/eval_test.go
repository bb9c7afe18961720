package eval_test

import (
	"context"
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivecore/engine/internal/eval"
	"github.com/hivecore/engine/internal/state"
)

// pieceOnBoard places one piece directly onto a freshly-built board,
// bypassing reserve/placement-rule bookkeeping -- good enough for feature
// unit tests that only look at occupancy, never at remaining reserves.
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

func TestSquashBounds(t *testing.T) {
	assert.InDelta(t, 0, eval.Squash(0), 1e-6)
	assert.Greater(t, eval.Squash(5), float32(0.9))
	assert.Less(t, eval.Squash(-5), float32(-0.9))
	assert.LessOrEqual(t, eval.Squash(100), eval.WinScore)
	assert.GreaterOrEqual(t, eval.Squash(-100), -eval.WinScore)
}

func TestEvaluateQueenThreatsFromOpponentSurrounding(t *testing.T) {
	// Black's Queen at the origin has two occupied neighbors (one White,
	// one Black); White's own Queen sits far away, untouched.
	queenPos := state.Pos{0, 0}
	neighbors := queenPos.Neighbors()
	layout := []pieceOnBoard{
		{queenPos, state.Black, state.Queen},
		{neighbors[0], state.White, state.Ant},
		{neighbors[1], state.Black, state.Beetle},
		{state.Pos{10, 10}, state.White, state.Queen},
	}
	board := buildBoard(layout)

	score := eval.Evaluate(board, state.White)
	assert.Equal(t, float32(2), score.Features.QueenThreats)
	assert.Equal(t, float32(0), score.Features.QueenDanger)
	assert.Equal(t, float32(0), score.Features.QueenCovered)
}

func TestEvaluateQueenDangerAndCoveredFromOwnSurrounding(t *testing.T) {
	// White's Queen has three occupied neighbors and is itself covered by
	// a Black Beetle stacked on top of it.
	queenPos := state.Pos{0, 0}
	neighbors := queenPos.Neighbors()
	layout := []pieceOnBoard{
		{queenPos, state.White, state.Queen},
		{queenPos, state.Black, state.Beetle}, // stacks on top: covers the Queen.
		{neighbors[0], state.Black, state.Ant},
		{neighbors[1], state.Black, state.Spider},
		{state.Pos{10, 10}, state.Black, state.Queen},
	}
	board := buildBoard(layout)

	score := eval.Evaluate(board, state.White)
	// NumSurroundingQueen counts occupied neighbor cells, not the stack on
	// the Queen's own cell, so only the two Ant/Spider neighbors count.
	assert.Equal(t, float32(-2), score.Features.QueenDanger)
	assert.Equal(t, float32(-1), score.Features.QueenCovered)
	assert.Less(t, score.Tactical, float32(0))
	assert.Less(t, score.Positional, float32(0.5))
}

func TestEvaluatePieceCoordinationFavorsFewerSingles(t *testing.T) {
	// Three White pieces on a common cell and two of its consecutive
	// neighbors form a closed triangle (consecutive hex neighbors are
	// themselves adjacent, as in TestRemovablePositionsRing): every piece
	// has two occupied neighbors, so White has zero Singles. Black's pair
	// are each other's only neighbor, so both are Singles (degree 1).
	center := state.Pos{0, 0}
	ring := center.Neighbors()
	layout := []pieceOnBoard{
		{center, state.White, state.Ant},
		{ring[0], state.White, state.Beetle},
		{ring[1], state.White, state.Spider},
		{state.Pos{10, 10}, state.Black, state.Ant},
		{state.Pos{10, 10}.Neighbors()[0], state.Black, state.Spider},
	}
	board := buildBoard(layout)

	score := eval.Evaluate(board, state.White)
	assert.Equal(t, float32(2), score.Features.PieceCoordination)
}

func TestEvaluateSymmetricFromBothPerspectives(t *testing.T) {
	queenPos := state.Pos{0, 0}
	neighbors := queenPos.Neighbors()
	layout := []pieceOnBoard{
		{queenPos, state.White, state.Queen},
		{neighbors[0], state.Black, state.Ant},
		{neighbors[1], state.Black, state.Spider},
		{state.Pos{10, 10}, state.Black, state.Queen},
	}
	board := buildBoard(layout)

	white := eval.Evaluate(board, state.White)
	black := eval.Evaluate(board, state.Black)
	// A worse position for White is a better one for Black, roughly
	// mirrored around 0.5 (not exactly, since a couple of features like
	// EndgameFactor are not perspective-antisymmetric).
	assert.Less(t, white.Tactical, float32(0))
	assert.Greater(t, black.Tactical, float32(0))
}

func TestEvaluateBatchIndependence(t *testing.T) {
	queenPos := state.Pos{0, 0}
	danger := buildBoard([]pieceOnBoard{
		{queenPos, state.White, state.Queen},
		{queenPos.Neighbors()[0], state.Black, state.Ant},
		{queenPos.Neighbors()[1], state.Black, state.Spider},
		{state.Pos{10, 10}, state.Black, state.Queen},
	})
	safe := buildBoard([]pieceOnBoard{
		{queenPos, state.White, state.Queen},
		{state.Pos{10, 10}, state.Black, state.Queen},
	})

	scores, err := eval.EvaluateBatch(context.Background(), []*state.Board{danger, safe}, state.White)
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Less(t, scores[0].Tactical, scores[1].Tactical)
}

func TestEvaluateShortCircuitsOnWinnerAndLoser(t *testing.T) {
	// White's Queen fully surrounded: Black wins, White loses.
	queenPos := state.Pos{0, 0}
	neighbors := queenPos.Neighbors()
	layout := []pieceOnBoard{{queenPos, state.White, state.Queen}}
	for ii, n := range neighbors {
		color := state.Black
		if ii == 0 {
			color = state.White // keeps the hive connected through a White piece too.
		}
		layout = append(layout, pieceOnBoard{n, color, state.Ant})
	}
	board := buildBoard(layout)
	require.True(t, board.IsFinished())
	require.Equal(t, state.Black, board.Winner())

	winnerScore := eval.Evaluate(board, state.Black)
	assert.True(t, math32.IsInf(winnerScore.Tactical, 1))
	assert.Equal(t, float32(1), winnerScore.Positional)

	loserScore := eval.Evaluate(board, state.White)
	assert.True(t, math32.IsInf(loserScore.Tactical, -1))
	assert.Equal(t, float32(0), loserScore.Positional)
}

func TestEvaluateShortCircuitsOnDraw(t *testing.T) {
	board := state.NewBoard()
	board.MaxMoves = 1
	board.MoveNumber = 2
	board.BuildDerived()
	require.True(t, board.IsFinished())
	require.True(t, board.Draw())

	score := eval.Evaluate(board, state.White)
	assert.Equal(t, float32(0), score.Tactical)
	assert.Equal(t, float32(0.5), score.Positional)
}

func TestFeaturesStringIncludesAllNames(t *testing.T) {
	f := eval.Features{QueenThreats: 1}
	s := f.String()
	for _, name := range []string{"queenThreats", "queenDanger", "queenCovered", "material",
		"coordination", "central", "network", "pins", "forks", "tempo", "circling", "endgame"} {
		assert.Contains(t, s, name)
	}
}
