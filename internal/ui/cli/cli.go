// Package cli implements a terminal UI for driving internal/driver.Decide
// interactively: it renders the board, reads a human's move, and lets an
// AI play the other color (or both, for a hands-off demo).
//
// This is an outer-layer demo/debug harness, not part of the core API
// surface -- spec.md §6 explicitly leaves CLI/filesystem/persistence to the
// embedding program.
package cli

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/hivecore/engine/internal/state"
)

var ansiFilter = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// displayWidth of s removes its color/control sequences and returns the
// length of what is left.
func displayWidth(s string) int {
	return len(ansiFilter.ReplaceAllString(s, ""))
}

func printCentered(block string) {
	lines := strings.Split(block, "\n")
	terminalWidth, _, _ := term.GetSize(int(os.Stdout.Fd()))
	blockWidth := 0
	for _, line := range lines {
		if w := displayWidth(line); w > blockWidth {
			blockWidth = w
		}
	}
	indent := (terminalWidth - blockWidth) / 2
	if indent < 0 {
		indent = 0
	}
	for _, line := range lines {
		if len(line) == 0 {
			fmt.Println()
			continue
		}
		fmt.Printf("%s%s\n", strings.Repeat(" ", indent), line)
	}
}

func centerString(s string, fit int) string {
	if displayWidth(s) >= fit {
		return s
	}
	marginLeft := (fit - displayWidth(s)) / 2
	marginRight := fit - displayWidth(s) - marginLeft
	return strings.Repeat(" ", marginLeft) + s + strings.Repeat(" ", marginRight)
}

// CellWidth is how many characters wide one hex cell's bracket occupies.
const CellWidth = 8

// UI drives one terminal session: printing boards, reading a human's
// commands, and handing the result back to the caller one action at a
// time (the caller owns the Decide/Act loop, and any AI-vs-human pairing).
type UI struct {
	color       bool
	clearScreen bool
	reader      *bufio.Reader
}

var (
	placementParser = regexp.MustCompile(`^\s*(\w)[\s,]+(-?\d+)[\s,]+(-?\d+)[\s,]*$`)
	moveParser      = regexp.MustCompile(`^\s*(-?\d+)[\s,]+(-?\d+)[\s,]+(-?\d+)[\s,]+(-?\d+)[\s,]*$`)
)

// New returns a UI reading commands from stdin.
func New(color bool, clearScreen bool) *UI {
	return &UI{
		color:       color,
		clearScreen: clearScreen,
		reader:      bufio.NewReader(os.Stdin),
	}
}

// ReadCommand blocks for a line of input and parses it into an Action
// legal on b, allowing 3 attempts in all on a malformed or illegal command.
func (ui *UI) ReadCommand(b *state.Board) (action state.Action, err error) {
	for numErrs := 0; numErrs < 3; numErrs++ {
		fmt.Print("    ")
		ui.PrintPlayer(b)
		fmt.Print(" action (piece q r | srcQ srcR tgtQ tgtR) > ")

		var text string
		text, err = ui.reader.ReadString('\n')
		if err != nil {
			return
		}
		text = strings.TrimSpace(text)

		if matches := placementParser.FindStringSubmatch(strings.ToUpper(text)); len(matches) == 4 {
			piece, ok := state.LetterToPiece[matches[1]]
			if !ok {
				fmt.Printf("    * Sorry, insect %q unknown; choose one of 'A', 'B', 'G', 'Q', 'S'\n", matches[1])
				continue
			}
			q, errQ := strconv.ParseInt(matches[2], 10, 8)
			r, errR := strconv.ParseInt(matches[3], 10, 8)
			if errQ != nil || errR != nil {
				fmt.Printf("    * Failed to parse target position in %q\n", text)
				continue
			}
			action = state.Action{Piece: piece, TargetPos: state.Pos{int8(q), int8(r)}}
			if !b.IsValid(action) {
				fmt.Printf("    * Placing %s at %s is not a legal placement.\n", piece, action.TargetPos)
				continue
			}
			return action, nil
		}

		if matches := moveParser.FindStringSubmatch(strings.ToUpper(text)); len(matches) == 5 {
			var coords [4]int64
			failed := false
			for ii := 0; ii < 4; ii++ {
				v, errParse := strconv.ParseInt(matches[1+ii], 10, 8)
				if errParse != nil {
					fmt.Printf("    * Failed to parse position %q in %q\n", matches[1+ii], text)
					failed = true
					break
				}
				coords[ii] = v
			}
			if failed {
				continue
			}
			srcPos := state.Pos{int8(coords[0]), int8(coords[1])}
			tgtPos := state.Pos{int8(coords[2]), int8(coords[3])}
			_, piece, _ := b.TopOf(srcPos)
			action = state.Action{IsMove: true, Piece: piece, SourcePos: srcPos, TargetPos: tgtPos}
			if !b.IsValid(action) {
				fmt.Printf("    * Moving %s from %s to %s is not legal.\n", piece, srcPos, tgtPos)
				if b.Available(b.NextColor, state.Queen) != 0 {
					fmt.Printf("    * One can only start moving pieces once the Queen is on the board.\n")
				}
				continue
			}
			return action, nil
		}

		fmt.Printf("    * Failed to parse input %q, please try again.\n", text)
	}
	return state.Action{}, fmt.Errorf("failed to read command 3 times")
}

// RunNextMove prints board, reads one command, and applies it.
func (ui *UI) RunNextMove(board *state.Board) (*state.Board, error) {
	ui.Print(board, true)
	fmt.Println()
	action, err := ui.ReadCommand(board)
	if err != nil {
		log.Printf("RunNextMove: %s", err)
		return board, err
	}
	return board.Apply(action)
}

// PrintWinner prints the end-of-match banner.
func (ui *UI) PrintWinner(b *state.Board) {
	fmt.Println()
	winner := b.Winner()
	if winner == state.NoColor {
		printCentered(
			lipgloss.NewStyle().
				Background(lipgloss.Color("13")).
				Foreground(lipgloss.Color("0")).
				Padding(1, 2).
				Render(fmt.Sprintf("*** DRAW: %s ***", b.FinishReason())))
	} else {
		printCentered(fmt.Sprintf("%s *** %s WINS!! *** %s",
			ui.colorStart(winner), strings.ToUpper(winner.String()), ui.colorEnd()))
	}
	fmt.Println()
}

// Print renders the full turn view: move number, board, reserves, and
// (optionally) the list of available actions.
func (ui *UI) Print(board *state.Board, includeAvailableActions bool) {
	if board.Derived == nil {
		log.Fatal("cli.Print called on a board without Derived built")
	}
	if ui.clearScreen {
		fmt.Print("\033c")
	}
	fmt.Printf("\nMove #%d\n\n", board.MoveNumber)

	ui.PrintBoard(board)
	fmt.Println()
	ui.PrintAvailablePieces(board)

	if board.IsFinished() {
		return
	}
	if includeAvailableActions {
		fmt.Println()
		ui.PrintPlayer(board)
		fmt.Println(" to play:")
		ui.printActions(board)
	} else {
		fmt.Print("\tTurn to play: ")
		ui.PrintPlayer(board)
		fmt.Println()
	}
}

// PrintPlayer prints "White" or "Black", colored.
func (ui *UI) PrintPlayer(board *state.Board) {
	fmt.Printf("%s%s%s", ui.colorStart(board.NextColor), board.NextColor, ui.colorEnd())
}

// PrintAvailablePieces lists each color's unplaced reserve.
func (ui *UI) PrintAvailablePieces(board *state.Board) {
	for _, color := range []state.Color{state.White, state.Black} {
		var pieces []string
		for _, piece := range state.Pieces {
			if n := board.Available(color, piece); n > 0 {
				pieces = append(pieces, fmt.Sprintf("%s-%d", piece, n))
			}
		}
		sort.Strings(pieces)
		fmt.Printf("%s%s%s off-board: [%s]\n", ui.colorStart(color), color, ui.colorEnd(), strings.Join(pieces, ", "))
	}
}

// PrintBoard renders the occupied cells as a simple sheared hex grid: each
// row (r) is indented in proportion to r, so adjacent rows' cells line up
// diagonally the way a flat-top hex tiling does, without full hex-outline
// box art (this engine's axial Pos already differs from the teacher's
// display-coordinate scheme, so the rendering is new rather than ported).
func (ui *UI) PrintBoard(board *state.Board) {
	minQ, maxQ, minR, maxR := board.UsedLimits()
	minQ--
	maxQ++
	minR--
	maxR++

	var sb strings.Builder
	for r := minR; r <= maxR; r++ {
		shear := int(r-minR) * (CellWidth / 2)
		sb.WriteString(strings.Repeat(" ", shear))
		for q := minQ; q <= maxQ; q++ {
			pos := state.Pos{q, r}
			sb.WriteString(ui.renderCell(board, pos))
		}
		sb.WriteString("\n")
	}
	printCentered(sb.String())
}

func (ui *UI) renderCell(board *state.Board, pos state.Pos) string {
	if !board.HasPiece(pos) {
		return centerString(".", CellWidth)
	}
	color, piece, stacked := board.TopOf(pos)
	label := piece.Letter()
	if stacked {
		label += fmt.Sprintf("(%d)", board.StackAt(pos).CountPieces())
	}
	return ui.colorStartForPiece(color, piece) + centerString(label, CellWidth) + ui.colorEnd()
}

func (ui *UI) colorStartForPiece(color state.Color, piece state.PieceType) string {
	if !ui.color {
		return ""
	}
	if color == state.White {
		if piece == state.Queen {
			return "\033[37;41;1m"
		}
		return "\033[30;41;1m"
	}
	if piece == state.Queen {
		return "\033[37;42;1m"
	}
	return "\033[30;42;1m"
}

func (ui *UI) colorStart(color state.Color) string {
	if !ui.color {
		return ""
	}
	if color == state.White {
		return "\033[30;41;1m"
	}
	return "\033[30;42;1m"
}

func (ui *UI) colorEnd() string {
	if !ui.color {
		return ""
	}
	return "\033[39;49;0m"
}

func (ui *UI) printActions(b *state.Board) {
	fmt.Print("- Available actions:\n")
	ui.printPlacementActions(b)
	ui.printMoveActions(b)
}

func (ui *UI) printPlacementActions(b *state.Board) {
	d := b.Derived
	color := b.NextColor
	if len(d.PlacementPositions[color]) == 0 {
		return
	}

	pieces := map[state.PieceType]bool{}
	positions := map[state.Pos]bool{}
	for _, action := range d.Actions {
		if !action.IsMove {
			pieces[action.Piece] = true
			positions[action.TargetPos] = true
		}
	}
	if len(pieces) == 0 {
		return
	}
	piecesStr := make([]string, 0, len(pieces))
	for p := range pieces {
		piecesStr = append(piecesStr, p.String())
	}
	sort.Strings(piecesStr)

	positionsList := make([]state.Pos, 0, len(positions))
	for pos := range positions {
		positionsList = append(positionsList, pos)
	}
	state.SortPositions(positionsList)

	posStrs := make([]string, len(positionsList))
	for ii, pos := range positionsList {
		posStrs[ii] = pos.String()
	}
	fmt.Printf("  - Place a piece [%s] in one of the positions [%s]\n",
		strings.Join(piecesStr, ", "), strings.Join(posStrs, ", "))
	examplePiece := state.NoPiece
	for _, p := range state.Pieces {
		if pieces[p] {
			examplePiece = p
			break
		}
	}
	fmt.Printf("    Example: '%s %d %d'\n",
		examplePiece.Letter(), positionsList[0].Q(), positionsList[0].R())
}

func (ui *UI) printMoveActions(b *state.Board) {
	d := b.Derived
	color := b.NextColor

	bySource := map[state.Pos][]state.Action{}
	for _, action := range d.Actions {
		if action.IsMove {
			bySource[action.SourcePos] = append(bySource[action.SourcePos], action)
		}
	}
	if len(bySource) == 0 {
		if b.Available(color, state.Queen) > 0 {
			fmt.Println("  - Movement not allowed until the Queen is on the board.")
		} else {
			fmt.Println("  - All pieces are pinned, no movement is possible.")
		}
		return
	}

	srcPositions := make([]state.Pos, 0, len(bySource))
	for srcPos := range bySource {
		srcPositions = append(srcPositions, srcPos)
	}
	state.SortPositions(srcPositions)

	for _, srcPos := range srcPositions {
		actions := bySource[srcPos]
		piece := actions[0].Piece
		targets := make([]state.Pos, len(actions))
		for ii, action := range actions {
			targets[ii] = action.TargetPos
		}
		state.SortPositions(targets)
		targetStrs := make([]string, len(targets))
		for ii, t := range targets {
			targetStrs[ii] = t.String()
		}
		fmt.Printf("  - Move %s at %s to one of [%s]\n", piece, srcPos, strings.Join(targetStrs, ", "))
	}
}
