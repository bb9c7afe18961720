// Package driver implements the decision orchestrator: given a board and a
// color to move, it runs the tactical-detection step, dispatches to either
// the minimax searcher or MCTS, applies the strategic move-filter's
// override scan, and returns a single chosen Decision.
//
// This is the engine's only exported entry point meant for an embedding
// program (internal/ui/cli, cmd/hive): everything else in internal/ is a
// building block Decide composes.
package driver

import (
	"context"
	"time"

	"github.com/gomlx/exceptions"
	"k8s.io/klog/v2"

	"github.com/hivecore/engine/internal/eval"
	"github.com/hivecore/engine/internal/movefilter"
	"github.com/hivecore/engine/internal/parameters"
	"github.com/hivecore/engine/internal/searchers/alphabeta"
	"github.com/hivecore/engine/internal/searchers/mcts"
	"github.com/hivecore/engine/internal/state"
)

// Difficulty selects the iteration budgets, minimax depth, and time caps a
// Decide call uses (see Profile).
type Difficulty int

const (
	Easy Difficulty = iota
	Medium
	Hard
)

var difficultyNames = [...]string{"Easy", "Medium", "Hard"}

// String implements fmt.Stringer.
func (d Difficulty) String() string {
	if int(d) < 0 || int(d) >= len(difficultyNames) {
		return "Difficulty(?)"
	}
	return difficultyNames[d]
}

// Profile is the resolved set of knobs for one Difficulty: iteration
// budget, minimax depth, time caps, and a strategy multiplier.
// StrategyMultiplier is resolved per difficulty (or from params) and kept
// in the Profile, but Decide does not read it: the evaluator's feature
// weights are the same at every difficulty.
type Profile struct {
	MCTSIterations     int
	MCTSMaxTime        time.Duration
	MinimaxDepth       int
	MinimaxMaxTime     time.Duration
	StrategyMultiplier float32
}

// DefaultProfiles is indexed by Difficulty.
var DefaultProfiles = [...]Profile{
	Easy:   {MCTSIterations: 1000, MCTSMaxTime: 3 * time.Second, MinimaxDepth: 3, MinimaxMaxTime: 2 * time.Second, StrategyMultiplier: 0.6},
	Medium: {MCTSIterations: 2000, MCTSMaxTime: 5 * time.Second, MinimaxDepth: 4, MinimaxMaxTime: 4 * time.Second, StrategyMultiplier: 1.0},
	Hard:   {MCTSIterations: 3000, MCTSMaxTime: 8 * time.Second, MinimaxDepth: 5, MinimaxMaxTime: 6 * time.Second, StrategyMultiplier: 1.4},
}

// ProfileFromParams resolves a Profile starting from DefaultProfiles[difficulty]
// and overriding mcts_iterations, minimax_depth and strategy_multiplier
// when params sets them (the time caps always keep their defaults), the
// way internal/players'
// factory lets a config string ("mcts,c=1.2") tweak one searcher's knobs
// without a source change.
func ProfileFromParams(difficulty Difficulty, params parameters.Params) (Profile, error) {
	p := DefaultProfiles[difficulty]
	var err error
	if p.MCTSIterations, err = parameters.GetParamOr(params, "mcts_iterations", p.MCTSIterations); err != nil {
		return p, err
	}
	if p.MinimaxDepth, err = parameters.GetParamOr(params, "minimax_depth", p.MinimaxDepth); err != nil {
		return p, err
	}
	var multiplier float64
	if multiplier, err = parameters.GetParamOr(params, "strategy_multiplier", float64(p.StrategyMultiplier)); err != nil {
		return p, err
	}
	p.StrategyMultiplier = float32(multiplier)
	return p, nil
}

// ProgressEvent is emitted through a Decide call's progress sink at coarse
// checkpoints (roughly 20 per search), never from inside a state-mutating
// step.
type ProgressEvent struct {
	Phase      string
	Iteration  int
	Total      int
	TreeSize   int
}

// ProgressSink receives ProgressEvents; nil is a valid no-op sink.
type ProgressSink func(ProgressEvent)

// Decision is what Decide returns: the chosen action (Pass is a legal
// Decision, not an error), the board it leads to, and a short
// human-readable reason, useful for logging and for internal/ui/cli.
type Decision struct {
	Action state.Action
	Board  *state.Board
	Reason string
}

// pinSeverityThreshold: an emergency-defense or pin-escape override is only
// honored when its move-filter bonus reaches this magnitude -- spec.md's
// "pin severity >= 10".
const pinSeverityThreshold = float32(10)

// Decide runs the full decision procedure (spec.md §4.8) for aiColor to
// move on board, within difficulty's budgets, and returns the chosen
// Decision. ctx cancellation is checked at every search's yield points;
// a cancelled search still returns its best move so far, never an error.
//
// Internal invariant violations (state.invariantViolation, or one raised
// by a searcher) are caught here and converted into a regular error --
// the only place in this engine exceptions.Panicf is allowed to cross a
// package boundary as anything other than a panic.
func Decide(ctx context.Context, board *state.Board, aiColor state.Color, difficulty Difficulty, progress ProgressSink) (decision Decision, err error) {
	profile := DefaultProfiles[difficulty]
	err = exceptions.TryCatch[error](func() {
		decision = decide(ctx, board, aiColor, profile, progress)
	})
	return decision, err
}

// DecideWithProfile is Decide with an explicitly resolved Profile, for
// callers (cmd/hive) that build one from a config string via
// ProfileFromParams instead of picking a canned Difficulty.
func DecideWithProfile(ctx context.Context, board *state.Board, aiColor state.Color, profile Profile, progress ProgressSink) (decision Decision, err error) {
	err = exceptions.TryCatch[error](func() {
		decision = decide(ctx, board, aiColor, profile, progress)
	})
	return decision, err
}

func emit(sink ProgressSink, phase string, iteration, total, treeSize int) {
	if sink == nil {
		return
	}
	sink(ProgressEvent{Phase: phase, Iteration: iteration, Total: total, TreeSize: treeSize})
}

func decide(ctx context.Context, board *state.Board, aiColor state.Color, profile Profile, progress ProgressSink) Decision {
	// Step 1: capture state -- board is already an immutable value.
	emit(progress, "capture", 0, 1, 1)

	// Step 2: generate legal moves. Decide assumes it is called with
	// aiColor to move, matching spec.md's decide(state, ai_color, ...)
	// contract; board.Derived.Actions is already board.NextColor's list.
	actions := board.Derived.Actions
	if len(actions) == 0 || (len(actions) == 1 && actions[0].IsPass()) {
		return Decision{Action: state.Pass, Board: board, Reason: "no legal actions: pass"}
	}

	// Step 3: forced Queen placement by the color's 4th own-move.
	if mustPlaceQueen(board, aiColor) {
		best := bestByEvaluator(board, actions, aiColor)
		return Decision{Action: best.Action, Board: best.Next, Reason: "forced queen placement"}
	}

	// Step 4: single legal move.
	if len(actions) == 1 {
		return Decision{Action: actions[0], Board: board.Act(actions[0]), Reason: "only one legal action"}
	}

	// Step 5: tactical-position detection.
	if isTacticalPosition(board, aiColor, actions) {
		emit(progress, "minimax", 0, profile.MinimaxDepth, 0)
		result := alphabeta.Search(ctx, board, profile.MinimaxDepth, profile.MinimaxMaxTime)
		emit(progress, "minimax", profile.MinimaxDepth, profile.MinimaxDepth, result.Stats.Nodes)
		if result.Score >= -alphabeta.TacticalThreshold {
			klog.V(1).Infof("driver: tactical position, minimax picked %s (score=%.2f)", result.Action, result.Score)
			return Decision{Action: result.Action, Board: result.Board, Reason: "tactical minimax"}
		}
		klog.V(1).Infof("driver: minimax result %s (score=%.2f) not good enough, falling back to MCTS", result.Action, result.Score)
	}

	// Step 6: MCTS over the (implicitly root-filtered) move set.
	seed := int64(board.MoveNumber)<<1 | int64(aiColor)
	searcher := mcts.New(profile.MCTSIterations, profile.MCTSMaxTime, seed)
	searcher.Progress = func(iteration, total int) {
		emit(progress, "mcts", iteration, total, iteration)
	}
	mctsResult := searcher.Search(ctx, board, aiColor)
	action := mctsResult.Action
	reason := "mcts composite score"
	if mctsResult.Cancelled {
		reason = "mcts cancelled, best-so-far"
	}

	// Step 7/8: strategic override scan, then composite-score fallback
	// (already embedded in mctsResult.Action via mcts's own composite
	// selection, so the override scan is the only remaining step).
	candidates, filterErr := movefilter.Evaluate(ctx, board, aiColor)
	if filterErr == nil && len(candidates) > 0 {
		if mctsResult.Iterations == 0 {
			// No search iterations completed at all: fall back directly
			// to the strategic filter's own top pick.
			action = candidates[0].Action
			reason = "no search iterations, strategic filter top pick"
		}
		top := candidates[0]
		switch {
		case top.Label == movefilter.WinningMove:
			action = top.Action
			reason = "strategic override: winning move"
		case (top.Label == movefilter.EmergencyDefense || top.Label == movefilter.PinEscape) && top.Bonus >= pinSeverityThreshold:
			action = top.Action
			reason = "strategic override: " + top.Label.String()
		}
	}

	resultBoard := board.Act(action)
	return Decision{Action: action, Board: resultBoard, Reason: reason}
}

// mustPlaceQueen mirrors state.addPlacementActions's own rule so the
// driver can recognize the forced-Queen-placement shortcut without
// re-deriving it from the (already-filtered) action list.
func mustPlaceQueen(board *state.Board, color state.Color) bool {
	d := board.Derived
	return board.Available(color, state.Queen) > 0 && d.NumPiecesOnBoard[color] >= 3
}

// isTacticalPosition implements spec.md §4.8 step 5's six-condition OR.
func isTacticalPosition(board *state.Board, color state.Color, actions []state.Action) bool {
	d := board.Derived
	opp := color.Opponent()

	if d.HasQueen[color] && d.NumSurroundingQueen[color] >= 3 {
		return true
	}
	if d.HasQueen[opp] && d.NumSurroundingQueen[opp] >= 3 {
		return true
	}
	if d.HasQueen[color] && d.HasQueen[opp] && d.QueenPos[color].Distance(d.QueenPos[opp]) <= 4 {
		return true
	}
	if countPinned(board) >= 2 {
		return true
	}
	if int(d.NumPiecesOnBoard[state.White])+int(d.NumPiecesOnBoard[state.Black]) <= 8 {
		return true
	}
	if d.HasQueen[color] && beetleWithinDistance(board, opp, d.QueenPos[color], 2) {
		return true
	}
	if len(actions) <= 3 {
		return true
	}
	return false
}

func countPinned(board *state.Board) int {
	count := 0
	for _, pos := range board.OccupiedPositions() {
		if !board.Derived.RemovablePositions.Has(pos) {
			count++
		}
	}
	return count
}

// beetleWithinDistance reports whether any of owner's Beetles sits within
// dist hexes of target -- used to flag a Beetle threatening our Queen's
// immediate surroundings even before it has actually moved adjacent.
func beetleWithinDistance(board *state.Board, owner state.Color, target state.Pos, dist int) bool {
	found := false
	board.EnumeratePieces(func(color state.Color, piece state.PieceType, pos state.Pos, covered bool) {
		if found || covered || color != owner || piece != state.Beetle {
			return
		}
		if pos.Distance(target) <= dist {
			found = true
		}
	})
	return found
}

// candidateScore pairs an action with the board it leads to, used only by
// bestByEvaluator's forced-queen-placement shortcut.
type candidateScore struct {
	Action state.Action
	Next   *state.Board
	Score  float32
}

// bestByEvaluator scores every action with the Evaluator and returns the
// one with the highest Positional score from color's perspective -- used
// for the forced-Queen-placement shortcut, which does not warrant a full
// search (there is no tactical choice, only which cell to plant the
// Queen on).
func bestByEvaluator(board *state.Board, actions []state.Action, color state.Color) candidateScore {
	var best candidateScore
	for ii, action := range actions {
		next := board.Act(action)
		score := eval.Evaluate(next, color).Positional
		if ii == 0 || score > best.Score {
			best = candidateScore{Action: action, Next: next, Score: score}
		}
	}
	return best
}
