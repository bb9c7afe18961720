package mcts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivecore/engine/internal/state"
)

func TestSearchReturnsLegalActionFromFreshBoard(t *testing.T) {
	board := state.NewBoard()
	s := New(150, 0, 42)
	result := s.Search(context.Background(), board, state.White)

	assert.Equal(t, 150, result.Iterations)
	assert.False(t, result.Cancelled)

	found := false
	for _, a := range board.ValidActions(state.White) {
		if a.Equal(result.Action) {
			found = true
			break
		}
	}
	assert.True(t, found, "result action %s must be one of the board's legal actions", result.Action)
}

func TestSearchDeterministicGivenSameSeed(t *testing.T) {
	board := state.NewBoard()
	first := New(100, 0, 7).Search(context.Background(), board, state.White)
	second := New(100, 0, 7).Search(context.Background(), board, state.White)

	assert.Equal(t, first.Action, second.Action)
	assert.Equal(t, first.RootVisits, second.RootVisits)
}

func TestSearchSinglePassShortCircuits(t *testing.T) {
	board := state.NewBoard()
	board.Derived.Actions = []state.Action{state.Pass}

	s := New(100, 0, 1)
	result := s.Search(context.Background(), board, state.White)
	assert.Equal(t, state.Pass, result.Action)
	assert.Equal(t, 0, result.Iterations)
}

func TestSearchHonorsCancelledContext(t *testing.T) {
	board := state.NewBoard()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(1000000, 0, 3)
	result := s.Search(ctx, board, state.White)
	assert.True(t, result.Cancelled)
	assert.Less(t, result.Iterations, 1000000)
}

func TestSearchHonorsTimeBudget(t *testing.T) {
	board := state.NewBoard()
	s := New(1000000, time.Millisecond, 3)
	result := s.Search(context.Background(), board, state.White)
	assert.Less(t, result.Iterations, 1000000)
}

func TestProgressCallbackFires(t *testing.T) {
	board := state.NewBoard()
	s := New(yieldEvery*3, 0, 9)

	var calls int
	var lastTotal int
	s.Progress = func(iteration, total int) {
		calls++
		lastTotal = total
	}
	s.Search(context.Background(), board, state.White)

	assert.GreaterOrEqual(t, calls, 1)
	assert.Equal(t, yieldEvery*3, lastTotal)
}

func TestTerminalValueWinDrawLoss(t *testing.T) {
	board := state.NewBoard()
	board.Derived.Wins = [state.NumColors]bool{true, false}
	assert.Equal(t, float32(1), terminalValue(board, state.White))
	assert.Equal(t, float32(0), terminalValue(board, state.Black))

	board.Derived.Wins = [state.NumColors]bool{true, true}
	assert.Equal(t, float32(0.5), terminalValue(board, state.White))
	assert.Equal(t, float32(0.5), terminalValue(board, state.Black))
}

func TestSelectChildUCB1PrefersUnvisitedAction(t *testing.T) {
	board := state.NewBoard()
	n := newNode(board)
	require.GreaterOrEqual(t, len(n.actions), 2)
	// Give every action but index 1 at least one visit.
	for ii := range n.N {
		if ii != 1 {
			n.N[ii] = 3
			n.sumScores[ii] = 1.5
			n.sumN += 3
		}
	}
	s := New(10, 0, 1)
	assert.Equal(t, 1, s.selectChildUCB1(n))
}

func TestBackpropFlipsValueForOpponentNode(t *testing.T) {
	board := state.NewBoard() // NextColor is White.
	n := newNode(board)
	s := New(10, 0, 1)

	// n.color (White) differs from perspective (Black): the stored
	// exploitation value must be flipped to 1-value.
	s.backprop(n, 0, 0.8, state.Black)
	assert.Equal(t, 1, n.N[0])
	assert.InDelta(t, float32(0.2), n.sumScores[0], 1e-6)

	// Same perspective as n.color: stored as-is.
	s.backprop(n, 0, 0.8, state.White)
	assert.InDelta(t, float32(1.0), n.sumScores[0], 1e-6)
}

func TestSampleWeightedActionSingleActionSkipsRandom(t *testing.T) {
	board := state.NewBoard()
	board.Derived.Actions = []state.Action{{Piece: state.Ant, TargetPos: state.InitialPos}}
	s := New(10, 0, 1)
	action := s.sampleWeightedAction(board)
	assert.Equal(t, board.Derived.Actions[0], action)
}

func TestQueenFocusScoreNilChildIsZero(t *testing.T) {
	assert.Equal(t, float32(0), queenFocusScore(nil, state.White))
}
