// Package game holds the pure rules model for two-player rock-paper-scissors
// sessions: move and outcome value types, the resolution rule, and the
// session/round entities. It performs no IO; the server package drives it.
package game

import "fmt"

// Move is one participant's choice in a round. None is the explicit timeout
// move a client submits when its countdown elapses; it is a real, resolvable
// move, not an absence.
type Move int

const (
	Rock Move = iota
	Paper
	Scissors
	None
)

var moveNames = [...]string{"rock", "paper", "scissors", "none"}

func (m Move) String() string {
	if m < Rock || m > None {
		return fmt.Sprintf("Move(%d)", int(m))
	}
	return moveNames[m]
}

// ParseMove maps a wire string to a Move. Anything outside the four valid
// values is a protocol violation.
func ParseMove(s string) (Move, error) {
	for i, name := range moveNames {
		if s == name {
			return Move(i), nil
		}
	}
	return None, fmt.Errorf("invalid move %q", s)
}

// IsReal reports whether m is rock, paper or scissors.
func (m Move) IsReal() bool {
	return m >= Rock && m <= Scissors
}

// Beater returns the real move that beats m. Only defined for real moves;
// the cyclic order rock → paper → scissors → rock is the positive transition
// direction used by the bot strategy tables.
func (m Move) Beater() Move {
	return (m + 1) % 3
}

// LoserTo returns the real move that loses to m.
func (m Move) LoserTo() Move {
	return (m + 2) % 3
}

// Outcome is one participant's result for a resolved round.
type Outcome int

const (
	Tie Outcome = iota
	Win
	Loss
)

var outcomeNames = [...]string{"tie", "win", "loss"}

func (o Outcome) String() string {
	if o < Tie || o > Loss {
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
	return outcomeNames[o]
}

// Resolve returns the outcomes for the two submitted moves, first mover
// first. Identical moves tie (including none vs none); none loses to any
// real move; otherwise rock beats scissors, scissors beats paper, paper
// beats rock. Exactly one of (win,loss), (loss,win), (tie,tie) results.
func Resolve(a, b Move) (Outcome, Outcome) {
	switch {
	case a == b:
		return Tie, Tie
	case a == None:
		return Loss, Win
	case b == None:
		return Win, Loss
	case a == b.Beater():
		return Win, Loss
	default:
		return Loss, Win
	}
}

// Points maps outcomes to score deltas.
type Points struct {
	Win  int
	Loss int
	Tie  int
}

// DefaultPoints is the standard scoring: +3 for a win, -1 for a loss, 0 for
// a tie.
var DefaultPoints = Points{Win: 3, Loss: -1, Tie: 0}

// For returns the delta awarded for outcome o.
func (p Points) For(o Outcome) int {
	switch o {
	case Win:
		return p.Win
	case Loss:
		return p.Loss
	default:
		return p.Tie
	}
}
