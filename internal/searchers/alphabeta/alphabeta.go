// Package alphabeta implements a depth-limited negamax search with
// alpha-beta pruning over internal/eval's tactical score, for sharply
// tactical positions where MCTS's statistical sampling is the wrong tool
// (a single shot 4 plies deep that wins or loses the game needs to be read
// out exactly, not sampled).
//
// Grounded almost directly on the teacher's
// internal/searchers/ab/alpha_beta_pruning.go: the same recursive shape
// and win early-exit, generalized to call this engine's hand-authored
// Evaluator instead of a trained ai.BatchBoardScorer, and to use a
// deterministic score-then-Less move ordering instead of the teacher's
// (training-time) random-noise tie-breaking. The cutoff itself is the
// standard negamax "bestScore >= beta" form, not the teacher's, since
// this package negates scores on the way down through the recursion
// (child alpha/beta are passed as -beta/-bestScore) and the teacher's own
// condition assumes its own non-negated convention.
package alphabeta

import (
	"context"
	"math"
	"sort"
	"time"

	"k8s.io/klog/v2"

	"github.com/hivecore/engine/internal/eval"
	"github.com/hivecore/engine/internal/state"
)

// Stats accumulates counters over one Search call, logged at klog.V(2) the
// way the teacher's TimedAlphaBeta does.
type Stats struct {
	Nodes, Evals, LeafEvals, Prunes int
}

// Result is what Search returns.
type Result struct {
	Action    state.Action
	Board     *state.Board
	Score     float32
	Stats     Stats
	Cancelled bool
}

// TacticalThreshold: a position is considered sharply tactical -- worth
// minimax's exact read-out instead of MCTS's sampling -- once either
// Queen has 3 or more occupied neighbors (two moves from a loss) or the
// Evaluator's raw tactical score already exceeds this magnitude.
const TacticalThreshold = float32(2.0)

// IsTactical reports whether board is "interesting" enough, from color's
// perspective, to warrant an exact tactical search rather than MCTS.
func IsTactical(board *state.Board, color state.Color) bool {
	d := board.Derived
	if d.HasQueen[color] && d.NumSurroundingQueen[color] >= 3 {
		return true
	}
	opp := color.Opponent()
	if d.HasQueen[opp] && d.NumSurroundingQueen[opp] >= 3 {
		return true
	}
	score := eval.Evaluate(board, color)
	return math.Abs(float64(score.Tactical)) >= float64(TacticalThreshold)
}

// Search runs alpha-beta to maxDepth plies from board, for the color to
// move, within an optional time budget, in a single fixed-depth pass (no
// iterative deepening). Context cancellation or an expired budget aborts
// the in-progress recursion; the result is then the best root move among
// those whose subtrees were searched in full before the stop. Stats still
// reflects partial work.
func Search(ctx context.Context, board *state.Board, maxDepth int, maxTime time.Duration) Result {
	deadline := time.Time{}
	if maxTime > 0 {
		deadline = time.Now().Add(maxTime)
	}
	s := &searchState{ctx: ctx, deadline: deadline}

	alpha := float32(-math.MaxFloat32)
	beta := float32(math.MaxFloat32)
	action, resultBoard, score := s.recurse(board, maxDepth, alpha, beta)

	klog.V(2).Infof("alphabeta: depth=%d nodes=%d evals=%d prunes=%d cancelled=%v",
		maxDepth, s.stats.Nodes, s.stats.Evals, s.stats.Prunes, s.cancelled)

	return Result{
		Action:    action,
		Board:     resultBoard,
		Score:     score,
		Stats:     s.stats,
		Cancelled: s.cancelled,
	}
}

type searchState struct {
	ctx       context.Context
	deadline  time.Time
	stats     Stats
	cancelled bool
	checked   int
}

func (s *searchState) shouldStop() bool {
	if s.cancelled {
		return true
	}
	s.checked++
	if s.checked%64 != 0 {
		return false
	}
	select {
	case <-s.ctx.Done():
		s.cancelled = true
		return true
	default:
	}
	if !s.deadline.IsZero() && time.Now().After(s.deadline) {
		s.cancelled = true
		return true
	}
	return false
}

// recurse returns the best action from board's perspective (board.NextColor),
// the resulting board, and that action's score -- always from
// board.NextColor's point of view (negamax convention: a child's score is
// negated before being compared at the parent).
func (s *searchState) recurse(board *state.Board, depthLeft int, alpha, beta float32) (state.Action, *state.Board, float32) {
	s.stats.Nodes++
	if s.shouldStop() {
		return state.Pass, board, 0
	}

	actions := board.Derived.Actions
	color := board.NextColor
	children := make([]*state.Board, len(actions))
	shallow := make([]float32, len(actions))
	for ii, action := range actions {
		children[ii] = board.Act(action)
		shallow[ii] = leafScore(children[ii], color, &s.stats)
	}
	if depthLeft == 1 {
		s.stats.LeafEvals += len(actions)
	}

	if len(actions) == 1 && children[0].IsFinished() {
		return actions[0], children[0], shallow[0]
	}

	order := orderMoves(actions, shallow)

	bestScore := alpha
	var bestAction state.Action
	var bestBoard *state.Board
	for _, idx := range order {
		action, child := actions[idx], children[idx]
		score := shallow[idx]
		if !child.IsFinished() && depthLeft > 1 {
			_, _, childScore := s.recurse(child, depthLeft-1, -beta, -bestScore)
			score = -childScore
			if s.cancelled {
				break
			}
		}

		if bestBoard == nil || score > bestScore {
			bestScore = score
			bestAction = action
			bestBoard = child
		}
		if bestScore >= beta {
			s.stats.Prunes++
			break
		}
		if bestBoard.IsFinished() && bestScore > 0 {
			break
		}
	}
	if bestBoard == nil {
		// Only reachable if s.cancelled fired before the loop produced a
		// single candidate; fall back to the first action.
		return actions[0], children[0], shallow[0]
	}
	return bestAction, bestBoard, bestScore
}

// leafScore scores child, already applied, from mover's perspective: a win
// for mover is +1, a loss -1, a draw 0, and a non-terminal leaf is the
// Evaluator's tactical score negated (the Evaluator is called with
// mover.Opponent() as perspective on purpose: child.NextColor is the
// opponent to move, but we want the score from the player who just
// moved's point of view, i.e. the negation of the mover-to-move
// evaluation).
func leafScore(child *state.Board, mover state.Color, stats *Stats) float32 {
	stats.Evals++
	stats.LeafEvals++
	if child.IsFinished() {
		if child.Draw() {
			return 0
		}
		if child.Winner() == mover {
			return eval.WinScore
		}
		return -eval.WinScore
	}
	return -eval.Evaluate(child, child.NextColor).Tactical
}

// orderMoves returns a permutation of indices into actions, best
// shallow-score first, with a deterministic Action.Less tie-break so that
// two equally-scored moves always search in the same order -- reproducible
// search, no map-iteration or randomized jitter the way the teacher's
// training-time noise injection adds.
func orderMoves(actions []state.Action, scores []float32) []int {
	order := make([]int, len(actions))
	for ii := range actions {
		order[ii] = ii
	}
	sort.SliceStable(order, func(i, j int) bool {
		oi, oj := order[i], order[j]
		if scores[oi] != scores[oj] {
			return scores[oi] > scores[oj]
		}
		return actions[oi].Less(actions[oj])
	})
	return order
}
