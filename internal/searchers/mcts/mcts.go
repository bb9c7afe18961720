// Package mcts implements a classic UCB1 Monte Carlo Tree Search over Hive
// positions: selection by the textbook UCB1 formula (no policy network),
// expansion one node at a time, weighted-random rollout to a depth cap
// scored by internal/eval, and visit-count backpropagation.
//
// The node shape (one struct per visited board, holding per-action
// visit counts and accumulated scores, expanded lazily) and the
// iteration-budget/time-budget loop are grounded on the teacher's
// internal/searchers/mcts/mcts.go, which implements an AlphaZero/PUCT
// variant instead: this engine has no learned value or policy network (see
// Non-goals), so the selection formula and the simulation phase are
// rewritten for classic MCTS, while the surrounding arena/loop/logging
// idiom is kept.
package mcts

import (
	"context"
	"math/rand"
	"time"

	"github.com/chewxy/math32"
	"k8s.io/klog/v2"

	"github.com/hivecore/engine/internal/eval"
	"github.com/hivecore/engine/internal/movefilter"
	"github.com/hivecore/engine/internal/state"
)

// ExplorationC is the classic UCB1 exploration constant, sqrt(2).
var ExplorationC = math32.Sqrt(2)

// yieldEvery caps how many iterations run between two checks of ctx for
// cancellation: often enough that a cancelled search returns promptly,
// rarely enough that the check itself is not the bottleneck.
const yieldEvery = 50

// Searcher runs classic UCB1 MCTS to a fixed iteration budget, a time
// budget, or whichever is hit first.
type Searcher struct {
	MaxIterations int
	MaxTime       time.Duration
	MaxPlayoutDepth int
	Rand          *rand.Rand

	// Progress, if set, is called every MaxIterations/20 iterations (~20
	// checkpoints over a full budget; every yieldEvery iterations when the
	// budget is unbounded) so an embedding UI can pump events between
	// iterations -- never from inside an iteration itself.
	Progress func(iteration, total int)
}

// New returns a Searcher with the given iteration budget and a fresh,
// seeded PRNG -- seeded explicitly (not time-seeded) so that, given the
// same seed, a search is reproducible, per the determinism requirement on
// the random components of this engine.
func New(maxIterations int, maxTime time.Duration, seed int64) *Searcher {
	return &Searcher{
		MaxIterations:   maxIterations,
		MaxTime:         maxTime,
		MaxPlayoutDepth: 50,
		Rand:            rand.New(rand.NewSource(seed)),
	}
}

// node is one tree entry: a board position, its legal actions, and the
// per-action visit/score accounting. Children are created lazily, one per
// Search iteration, the first time their action is tried.
type node struct {
	board   *state.Board
	actions []state.Action
	color   state.Color // board.NextColor, cached.

	children  []*node // parallel to actions; nil until expanded.
	N         []int
	sumN      int
	sumScores []float32 // from the perspective of color (this node's mover).
}

func newNode(b *state.Board) *node {
	return newNodeWithActions(b, b.Derived.Actions)
}

func newNodeWithActions(b *state.Board, actions []state.Action) *node {
	return &node{
		board:     b,
		actions:   actions,
		color:     b.NextColor,
		children:  make([]*node, len(actions)),
		N:         make([]int, len(actions)),
		sumScores: make([]float32, len(actions)),
	}
}

// rootCandidateCap bounds how many of the strategically-filtered root
// candidates get materialized as root actions: a root with a long Ant or
// Spider move list would otherwise spend iterations confirming moves the
// filter already ranks near the bottom. WinningMove and EmergencyDefense
// carry the largest label bonuses and always sort first in
// movefilter.Evaluate's output, so they are never excluded by the cap.
const rootCandidateCap = 16

// newRootNode materializes the root's untried-move set from the
// strategically-filtered candidate list rather than the raw legal-action
// set, per spec.md §4.6: "strategically filtered set when at the root,
// full legal-move set below; this is deliberate: the filter biases
// exploration at the root only." A movefilter error or empty result falls
// back to the unfiltered legal-action set so a root expansion never
// starves on a transient failure.
func newRootNode(ctx context.Context, b *state.Board) *node {
	candidates, err := movefilter.Evaluate(ctx, b, b.NextColor)
	if err != nil || len(candidates) == 0 {
		return newNode(b)
	}
	n := len(candidates)
	if n > rootCandidateCap {
		n = rootCandidateCap
	}
	actions := make([]state.Action, n)
	for ii := 0; ii < n; ii++ {
		actions[ii] = candidates[ii].Action
	}
	return newNodeWithActions(b, actions)
}

// Result is what Search returns: the chosen action, bookkeeping about why,
// and enough of the tree's root statistics for the decision driver's
// composite scoring and for debugging.
type Result struct {
	Action     state.Action
	Iterations int
	RootVisits []int
	BestScore  float32
	Cancelled  bool
}

// Search runs UCB1 MCTS from root for perspective color and returns the
// chosen root action. ctx cancellation returns the best move found so far
// (highest visit count; selectRootAction's fallback if no root action was
// visited), never an error: a cancelled search still owes the caller a
// legal move.
func (s *Searcher) Search(ctx context.Context, root *state.Board, color state.Color) Result {
	if len(root.Derived.Actions) == 1 && root.Derived.Actions[0].IsPass() {
		return Result{Action: state.Pass, Iterations: 0}
	}
	rootNode := newRootNode(ctx, root)

	deadline := time.Time{}
	if s.MaxTime > 0 {
		deadline = time.Now().Add(s.MaxTime)
	}

	iterations := 0
	cancelled := false
	progressEvery := yieldEvery
	if s.MaxIterations > 0 {
		progressEvery = max(1, s.MaxIterations/20)
	}
	for s.MaxIterations <= 0 || iterations < s.MaxIterations {
		atCheckpoint := iterations%progressEvery == 0
		if atCheckpoint || iterations%yieldEvery == 0 {
			select {
			case <-ctx.Done():
				cancelled = true
			default:
			}
			if cancelled {
				break
			}
			if !deadline.IsZero() && time.Now().After(deadline) {
				break
			}
			if s.Progress != nil && atCheckpoint {
				s.Progress(iterations, s.MaxIterations)
			}
		}
		s.simulateOnce(rootNode, color)
		iterations++
	}

	klog.V(1).Infof("mcts: %d iterations, root has %d actions", iterations, len(rootNode.actions))
	action, bestScore := s.selectRootAction(rootNode, color)
	if cancelled {
		// A cancelled search returns the most-visited root action.
		best := -1
		for ii, visits := range rootNode.N {
			if visits > 0 && (best < 0 || visits > rootNode.N[best]) {
				best = ii
			}
		}
		if best >= 0 {
			action = rootNode.actions[best]
			bestScore = rootNode.sumScores[best] / float32(rootNode.N[best])
		}
	}
	return Result{
		Action:     action,
		Iterations: iterations,
		RootVisits: append([]int(nil), rootNode.N...),
		BestScore:  bestScore,
		Cancelled:  cancelled,
	}
}

// simulateOnce runs one selection-expansion-simulation-backpropagation
// cycle starting at n, and returns the value (from perspective color)
// backed up into n.
func (s *Searcher) simulateOnce(n *node, perspective state.Color) float32 {
	if n.board.IsFinished() {
		return terminalValue(n.board, perspective)
	}

	// Selection: find an untried action, if any.
	for ii, visits := range n.N {
		if visits == 0 {
			child := newNode(n.board.Act(n.actions[ii]))
			n.children[ii] = child
			value := s.rollout(child.board, perspective)
			s.backprop(n, ii, value, perspective)
			return value
		}
	}

	// All actions tried at least once: select by UCB1 and recurse.
	best := s.selectChildUCB1(n)
	value := s.simulateOnce(n.children[best], perspective)
	s.backprop(n, best, value, perspective)
	return value
}

// selectChildUCB1 picks the child index maximizing the classic UCB1 bound,
// oriented so the mover at n always maximizes their own win probability
// (flipping the stored value when n's mover differs from perspective is
// handled by always storing sumScores from n.color's perspective and
// exploiting that directly here).
func (s *Searcher) selectChildUCB1(n *node) int {
	best := -1
	var bestValue float32 = -1
	lnN := math32.Log(float32(n.sumN))
	for ii := range n.actions {
		if n.N[ii] == 0 {
			return ii
		}
		exploitation := n.sumScores[ii] / float32(n.N[ii])
		exploration := ExplorationC * math32.Sqrt(lnN/float32(n.N[ii]))
		value := exploitation + exploration
		if value > bestValue {
			bestValue = value
			best = ii
		}
	}
	return best
}

// backprop records one more visit of action ii at node n, with value
// always expressed relative to n.color: if n.color differs from
// perspective (the root searcher's color), the exploitation term stored is
// 1-value, so that UCB1's "maximize my own win rate" logic is correct at
// every node regardless of whose turn it is.
func (s *Searcher) backprop(n *node, ii int, value float32, perspective state.Color) {
	stored := value
	if n.color != perspective {
		stored = 1 - value
	}
	n.N[ii]++
	n.sumN++
	n.sumScores[ii] += stored
}

// rollout plays a weighted-random game from board to a terminal state or
// MaxPlayoutDepth plies, whichever comes first, then scores the result
// with the Evaluator -- classic MCTS's "simulation" phase, using a cheap
// heuristic weighting instead of a learned policy to bias the random walk
// toward plausible moves (so random playouts do not waste most of their
// depth shuffling pieces aimlessly).
func (s *Searcher) rollout(board *state.Board, perspective state.Color) float32 {
	current := board
	for depth := 0; depth < s.MaxPlayoutDepth; depth++ {
		if current.IsFinished() {
			return terminalValue(current, perspective)
		}
		action := s.sampleWeightedAction(current)
		current = current.Act(action)
	}
	return eval.Evaluate(current, perspective).Positional
}

// sampleWeightedAction picks one of current's legal actions at random,
// weighted toward moves that pressure the opponent's Queen or defend our
// own -- the same "weighted-random" idea the teacher's older ai/search
// package expressed via a softmax Sample() over a scored action list,
// reused here without a learned scorer.
func (s *Searcher) sampleWeightedAction(board *state.Board) state.Action {
	actions := board.Derived.Actions
	if len(actions) == 1 {
		return actions[0]
	}
	weights := make([]float32, len(actions))
	var total float32
	color := board.NextColor
	opp := color.Opponent()
	for ii, action := range actions {
		w := float32(1)
		if action.IsMove && action.Piece == state.Queen {
			w += 0.5
		}
		if board.Derived.HasQueen[opp] {
			for _, n := range action.TargetPos.Neighbors() {
				if n == board.Derived.QueenPos[opp] {
					w += 2
					break
				}
			}
		}
		weights[ii] = w
		total += w
	}
	pick := s.Rand.Float32() * total
	var cum float32
	for ii, w := range weights {
		cum += w
		if pick <= cum {
			return actions[ii]
		}
	}
	return actions[len(actions)-1]
}

// terminalValue returns the {0, 0.5, 1} outcome of a finished board from
// perspective's point of view.
func terminalValue(board *state.Board, perspective state.Color) float32 {
	if board.Draw() {
		return 0.5
	}
	if board.Winner() == perspective {
		return 1
	}
	return 0
}

// selectRootAction picks the root's best action using the composite
// formula: visit share is the classic "robust child" signal, win rate is
// the raw value estimate, queen-focus rewards concretely pressuring the
// opponent's Queen, and the strategic bonus folds in the move filter's
// tactical labelling so a recognized tactical shot is never lost purely to
// visit-count noise on a low iteration budget.
func (s *Searcher) selectRootAction(n *node, color state.Color) (state.Action, float32) {
	labelled, err := movefilter.Evaluate(context.Background(), n.board, color)
	bonusByAction := map[state.Action]float32{}
	if err == nil {
		for _, c := range labelled {
			bonusByAction[c.Action] = c.Bonus
		}
	}

	best := -1
	var bestComposite float32 = -1
	var bestScore float32
	for ii, action := range n.actions {
		if n.N[ii] == 0 {
			continue
		}
		visitShare := float32(n.N[ii]) / float32(n.sumN)
		winRate := n.sumScores[ii] / float32(n.N[ii])
		queenFocus := queenFocusScore(n.children[ii], color)
		strategic := bonusByAction[action] / 100
		composite := 0.4*queenFocus + 0.3*winRate + 0.2*visitShare + 0.1*strategic
		if composite > bestComposite {
			bestComposite = composite
			best = ii
			bestScore = winRate
		}
	}
	if best == -1 {
		// No iterations completed (budget exhausted immediately): fall
		// back to the first strategically-labelled move, or the first
		// legal action.
		if len(labelled) > 0 {
			return labelled[0].Action, 0
		}
		return n.actions[0], 0
	}
	return n.actions[best], bestScore
}

// queenFocusScore rewards actions whose resulting position threatens the
// opponent's Queen, normalized to [0,1].
func queenFocusScore(child *node, color state.Color) float32 {
	if child == nil {
		return 0
	}
	opp := color.Opponent()
	d := child.board.Derived
	if !d.HasQueen[opp] {
		return 0
	}
	return float32(d.NumSurroundingQueen[opp]) / float32(state.NumNeighbors)
}
