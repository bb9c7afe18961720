// Package movefilter implements the strategic labelling pass that sits on
// top of the raw legal-action generator: it recognizes a handful of
// tactically-loaded move categories (an immediate win, a Queen emergency,
// building or abandoning a pin) cheaply, from information the rules kernel
// already computes, and can override whatever a search turned up when one
// of those categories fires.
//
// The label set and its priority order are this engine's equivalent of the
// teacher's per-action "policy features" (ai/policy_features.go,
// internal/features/policy_features.go) -- those build a radius-2
// neighbourhood encoding meant to feed a learned policy network; since this
// engine has no learned policy (see Non-goals), the same idea -- "look at
// the local shape around source and target" -- is expressed instead as a
// small set of named, hand-authored tactical labels.
package movefilter

import (
	"context"
	"sort"

	"k8s.io/klog/v2"

	"github.com/hivecore/engine/internal/eval"
	"github.com/hivecore/engine/internal/state"
)

// Label names a tactical category a candidate move can fall into. Several
// may apply; Candidate.Label holds the first one classify finds, in
// classify's check order (WinningMove first), which differs from the order
// listed here.
type Label uint8

const (
	Neutral Label = iota
	WinningMove
	EmergencyDefense
	QueenEscape
	PinEscape
	CriticalPinning
	StrongPinning
	StartPinning
	MaintainPressure
	SupportPinning
	CatchUpDevelopment
	AbandonPressure
	DangerousSelfThreat
)

var labelNames = map[Label]string{
	Neutral:             "neutral",
	WinningMove:         "winning-move",
	EmergencyDefense:     "emergency-defense",
	QueenEscape:          "queen-escape",
	PinEscape:            "pin-escape",
	CriticalPinning:      "critical-pinning",
	StrongPinning:        "strong-pinning",
	StartPinning:         "start-pinning",
	MaintainPressure:     "maintain-pressure",
	SupportPinning:       "support-pinning",
	CatchUpDevelopment:   "catch-up-development",
	AbandonPressure:      "abandon-pressure",
	DangerousSelfThreat:  "dangerous-self-threat",
}

// String implements fmt.Stringer.
func (l Label) String() string {
	if name, ok := labelNames[l]; ok {
		return name
	}
	return "unknown"
}

// bonus is the additive contribution each label makes to a candidate's
// composite ranking score, on top of its raw evaluation. Ordered so that
// an emergency always outranks a merely-nice positional gain, and so that
// abandoning or worsening our own Queen's safety is actively penalized.
var bonus = map[Label]float32{
	Neutral:             0,
	WinningMove:         1000,
	EmergencyDefense:     80,
	QueenEscape:          40,
	PinEscape:            25,
	CriticalPinning:      60,
	StrongPinning:        35,
	StartPinning:         15,
	MaintainPressure:     8,
	SupportPinning:       12,
	CatchUpDevelopment:   6,
	AbandonPressure:      -20,
	DangerousSelfThreat:  -30,
}

// Candidate is one legal action, the board it leads to, its evaluation
// from the mover's perspective, and the strategic label assigned to it.
type Candidate struct {
	Action state.Action
	Next   *state.Board
	Score  eval.Score
	Label  Label
	Bonus  float32

	// Composite is Score.Positional plus the label Bonus, a plain sum;
	// used to rank candidates against each other.
	Composite float32
}

// Evaluate labels and scores every legal action for color on board,
// returning candidates sorted best-first by Composite. It never returns an
// empty slice: a color with no legal action still has the Pass action.
func Evaluate(ctx context.Context, board *state.Board, color state.Color) ([]Candidate, error) {
	actions := board.ValidActions(color)
	// ValidActions ranges over maps internally and is not itself sorted
	// (only Board.Derived.Actions, cached at BuildDerived time, is);
	// canonicalize here too so the candidate order -- and hence which
	// actions survive mcts's root-candidate cap -- is reproducible given
	// a seed, the same requirement BuildDerived enforces for its cache.
	sort.Slice(actions, func(i, j int) bool { return actions[i].Less(actions[j]) })
	nextBoards := make([]*state.Board, len(actions))
	for ii, action := range actions {
		nextBoards[ii] = board.Act(action)
	}

	scores, err := eval.EvaluateBatch(ctx, nextBoards, color)
	if err != nil {
		return nil, err
	}

	opp := color.Opponent()
	beforePinned := pinnedCount(board, opp)
	beforeSelfPinned := pinnedCount(board, color)
	beforeQueenDanger := uint8(0)
	if board.Derived.HasQueen[color] {
		beforeQueenDanger = board.Derived.NumSurroundingQueen[color]
	}
	behindInDevelopment := board.Derived.NumPiecesOnBoard[color] < board.Derived.NumPiecesOnBoard[opp]

	candidates := make([]Candidate, len(actions))
	for ii, action := range actions {
		next := nextBoards[ii]
		label := classify(board, next, action, color, opp, beforePinned, beforeSelfPinned, beforeQueenDanger, behindInDevelopment)
		b := bonus[label]
		candidates[ii] = Candidate{
			Action:    action,
			Next:      next,
			Score:     scores[ii],
			Label:     label,
			Bonus:     b,
			Composite: scores[ii].Positional + b,
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Composite > candidates[j].Composite
	})

	if klog.V(2).Enabled() {
		for _, c := range candidates {
			if c.Label != Neutral {
				klog.V(2).Infof("movefilter: %s labeled %s (bonus=%.1f)", c.Action, c.Label, c.Bonus)
			}
		}
	}
	return candidates, nil
}

// classify assigns a single label to one action, given before/after board
// state. Checked roughly in priority order; the first match that applies
// wins, except WinningMove and EmergencyDefense, which are always checked
// first regardless of other effects.
func classify(before, after *state.Board, action state.Action, color, opp state.Color,
	beforeOppPinned, beforeSelfPinned, beforeQueenDanger uint8, behindInDevelopment bool) Label {

	if after.Derived.Wins[color] && !after.Derived.Wins[opp] {
		return WinningMove
	}

	afterQueenDanger := uint8(0)
	if after.Derived.HasQueen[color] {
		afterQueenDanger = after.Derived.NumSurroundingQueen[color]
	}
	if beforeQueenDanger >= 4 {
		if afterQueenDanger < beforeQueenDanger {
			return EmergencyDefense
		}
		if action.IsMove && action.Piece == state.Queen {
			return QueenEscape
		}
	}
	if afterQueenDanger > beforeQueenDanger {
		return DangerousSelfThreat
	}

	afterSelfPinned := pinnedCount(after, color)
	if afterSelfPinned < beforeSelfPinned {
		return PinEscape
	}

	afterOppPinned := pinnedCount(after, opp)
	afterOppQueenDanger := uint8(0)
	if after.Derived.HasQueen[opp] {
		afterOppQueenDanger = after.Derived.NumSurroundingQueen[opp]
	}
	switch {
	case afterOppQueenDanger == state.NumNeighbors-1:
		return CriticalPinning
	case afterOppPinned >= beforeOppPinned+2:
		return StrongPinning
	case beforeOppPinned == 0 && afterOppPinned == 1:
		return StartPinning
	case afterOppPinned < beforeOppPinned:
		return AbandonPressure
	case afterOppPinned > 0 && afterOppPinned == beforeOppPinned:
		return MaintainPressure
	}

	if after.Derived.HasQueen[opp] && touchesOpponentPinnedNeighbor(after, action, opp) {
		return SupportPinning
	}

	if behindInDevelopment && !action.IsMove {
		return CatchUpDevelopment
	}

	return Neutral
}

// pinnedCount is how many of owner's pieces on board are currently unable
// to move because lifting them would split the hive.
func pinnedCount(b *state.Board, owner state.Color) uint8 {
	count := uint8(0)
	for _, pos := range b.OccupiedPositions() {
		c, _, _ := b.TopOf(pos)
		if c != owner {
			continue
		}
		if !b.Derived.RemovablePositions.Has(pos) {
			count++
		}
	}
	return count
}

// touchesOpponentPinnedNeighbor reports whether action's target cell is
// adjacent to an opponent piece that is currently pinned: reinforcing
// pressure on an already-trapped enemy piece.
func touchesOpponentPinnedNeighbor(b *state.Board, action state.Action, opp state.Color) bool {
	if action.IsPass() {
		return false
	}
	for _, n := range action.TargetPos.Neighbors() {
		if !b.HasPiece(n) {
			continue
		}
		c, _, _ := b.TopOf(n)
		if c != opp {
			continue
		}
		if !b.Derived.RemovablePositions.Has(n) {
			return true
		}
	}
	return false
}
