// Command hive is a terminal harness for exercising internal/driver.Decide:
// human vs AI, AI vs AI (--watch), or human vs human (--hotseat).
//
// This is the outer program spec.md §6 leaves undefined at the core layer;
// it owns the CLI, signal handling, and profiling flags the core itself
// never touches.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/hivecore/engine/internal/driver"
	"github.com/hivecore/engine/internal/parameters"
	"github.com/hivecore/engine/internal/profilers"
	"github.com/hivecore/engine/internal/state"
	"github.com/hivecore/engine/internal/ui/cli"
	"github.com/hivecore/engine/internal/ui/spinning"
)

var (
	flagHotseat  = flag.Bool("hotseat", false, "Hotseat match: human vs human.")
	flagWatch    = flag.Bool("watch", false, "Watch mode: AI vs AI.")
	flagFirst    = flag.String("first", "", "Who plays first: \"human\" or \"ai\". Default is random.")
	flagDifficulty = flag.String("difficulty", "medium", "AI difficulty: easy, medium, or hard.")
	flagParams   = flag.String("params", "", "Comma-separated searcher/scorer overrides on top of --difficulty's "+
		"profile, e.g. \"mcts_iterations=5000,minimax_depth=6\" -- see internal/parameters.")
	flagMaxMoves = flag.Int("max_moves", state.DefaultMaxMoves, "Max moves before the match is ruled a draw.")
	flagQuiet    = flag.Bool("quiet", false, "Only print actions and the final board while watching AI play.")

	// aiColors[c] is true if color c is played by the AI.
	aiColors [state.NumColors]bool

	globalCtx = context.Background()
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if *flagMaxMoves <= 0 {
		klog.Fatalf("invalid --max_moves=%d", *flagMaxMoves)
	}
	difficulty := must.M1(parseDifficulty(*flagDifficulty))
	profile := must.M1(driver.ProfileFromParams(difficulty, parameters.NewFromConfigString(*flagParams)))

	var cancel func()
	globalCtx, cancel = context.WithCancel(context.Background())
	spinning.SafeInterrupt(cancel, 3*time.Second)
	defer cancel()

	profilers.Setup(globalCtx)
	defer profilers.OnQuit()

	assignPlayers()

	board := state.NewBoard()
	board.MaxMoves = *flagMaxMoves
	ui := cli.New(true, false)

	for !board.IsFinished() {
		color := board.NextColor
		if !aiColors[color] {
			newBoard, err := ui.RunNextMove(board)
			if err != nil {
				klog.Exitf("match aborted: %+v", err)
			}
			board = newBoard
			continue
		}

		if *flagWatch && !*flagQuiet {
			ui.Print(board, false)
			fmt.Printf("\t%s AI (%s) deciding: ", color, difficulty)
		} else {
			fmt.Printf("AI (%s, %s) deciding: ", color, difficulty)
		}

		s := spinning.New(globalCtx)
		decision, err := driver.DecideWithProfile(globalCtx, board, color, profile, nil)
		s.Done()
		if err != nil {
			klog.Exitf("decide failed: %+v", err)
		}
		fmt.Printf(" %s (%s)\n", decision.Action, decision.Reason)
		board = decision.Board
		fmt.Println()
	}

	ui.Print(board, false)
	ui.PrintWinner(board)
}

func parseDifficulty(s string) (driver.Difficulty, error) {
	switch strings.ToLower(s) {
	case "easy":
		return driver.Easy, nil
	case "medium", "":
		return driver.Medium, nil
	case "hard":
		return driver.Hard, nil
	}
	return driver.Medium, errors.Errorf("invalid --difficulty=%q, want easy/medium/hard", s)
}

// assignPlayers fills in aiColors based on the --hotseat/--watch/--first flags.
func assignPlayers() {
	if *flagHotseat && *flagWatch {
		klog.Fatalf("--hotseat and --watch cannot be used together")
	}
	if *flagHotseat {
		return
	}
	if *flagWatch {
		aiColors[state.White] = true
		aiColors[state.Black] = true
		return
	}

	var aiColor state.Color
	switch strings.ToLower(*flagFirst) {
	case "human":
		aiColor = state.Black
	case "ai":
		aiColor = state.White
	case "":
		aiColor = state.Color(rand.IntN(2))
	default:
		klog.Fatalf("invalid --first=%q, only \"human\" or \"ai\" are valid", *flagFirst)
	}
	aiColors[aiColor] = true
}
