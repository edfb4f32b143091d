// Package bot implements the probabilistic move generator used for
// simulated opponents. Each strategy is a fixed transition table assigning a
// dominant probability mass to one target move relative to a reference move
// from the previous round, with the remainder split evenly.
package bot

import (
	"fmt"
	rand "math/rand/v2"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/lox/rpsmatch/internal/game"
)

// DefaultMoveProb is the dominant transition probability from the original
// experiment configuration.
const DefaultMoveProb = 0.9

// Strategy selects which transition table drives move generation, and
// against which reference move it is evaluated.
type Strategy int

const (
	// PrevMovePositive plays the move that beats the bot's own previous move.
	PrevMovePositive Strategy = iota
	// PrevMoveNegative plays the move that loses to the bot's own previous move.
	PrevMoveNegative
	// OppPrevMovePositive plays the move that beats the opponent's previous move.
	OppPrevMovePositive
	// OppPrevMoveNil copies the opponent's previous move.
	OppPrevMoveNil
	// WinStayLoseShift repeats the bot's own previous move after a win and
	// shifts to the move that beats it after a loss or tie.
	WinStayLoseShift
	// UniformRandom draws each move with probability 1/3 regardless of
	// history; the baseline strategy.
	UniformRandom
)

var strategyNames = [...]string{
	"prev_move_positive",
	"prev_move_negative",
	"opp_prev_move_positive",
	"opp_prev_move_nil",
	"win_stay_lose_shift",
	"uniform_random",
}

func (s Strategy) String() string {
	if s < PrevMovePositive || s > UniformRandom {
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
	return strategyNames[s]
}

// ParseStrategy maps a configuration name to a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	for i, n := range strategyNames {
		if strings.EqualFold(name, n) {
			return Strategy(i), nil
		}
	}
	return UniformRandom, fmt.Errorf("unknown bot strategy %q", name)
}

// StrategyNames returns the valid strategy names for help text and config
// validation.
func StrategyNames() []string {
	return append([]string(nil), strategyNames[:]...)
}

// TransitionTable holds, for each real reference move, a probability
// distribution over the three real candidate moves. Tables are built once
// from the configured dominant probability and treated as immutable.
type TransitionTable [3][3]float64

type transitionClass int

const (
	transitionNil transitionClass = iota
	transitionPositive
	transitionNegative
)

func buildTable(class transitionClass, prob float64) TransitionTable {
	var t TransitionTable
	rest := (1 - prob) / 2
	for ref := game.Rock; ref <= game.Scissors; ref++ {
		var target game.Move
		switch class {
		case transitionPositive:
			target = ref.Beater()
		case transitionNegative:
			target = ref.LoserTo()
		default:
			target = ref
		}
		for mv := game.Rock; mv <= game.Scissors; mv++ {
			if mv == target {
				t[ref][mv] = prob
			} else {
				t[ref][mv] = rest
			}
		}
	}
	return t
}

// Tables bundles the three transition tables for one configured dominant
// probability.
type Tables struct {
	Positive TransitionTable
	Negative TransitionTable
	Nil      TransitionTable
}

// NewTables builds the transition tables for the given dominant probability.
func NewTables(prob float64) Tables {
	return Tables{
		Positive: buildTable(transitionPositive, prob),
		Negative: buildTable(transitionNegative, prob),
		Nil:      buildTable(transitionNil, prob),
	}
}

// Engine generates moves for one simulated participant. It remembers only
// the previous round: the bot's own move, the opponent's move, and the bot's
// outcome. It is not safe for concurrent use; each simulated participant
// owns one engine.
type Engine struct {
	strategy Strategy
	tables   Tables
	rng      *rand.Rand
	logger   *log.Logger

	hasHistory  bool
	prevOwn     game.Move
	prevOpp     game.Move
	prevOutcome game.Outcome
}

// NewEngine creates an engine for the given strategy and dominant
// probability.
func NewEngine(strategy Strategy, prob float64, rng *rand.Rand, logger *log.Logger) *Engine {
	return &Engine{
		strategy: strategy,
		tables:   NewTables(prob),
		rng:      rng,
		logger:   logger,
	}
}

// Next draws the bot's move for the upcoming round. The first round of a
// session, and any round following a reference move of none, falls back to
// the uniform baseline since the tables are defined over real moves only.
func (e *Engine) Next() game.Move {
	table, ref, ok := e.selectTable()
	var move game.Move
	if !ok {
		move = game.Move(e.rng.IntN(3))
	} else {
		move = drawMove(table[ref], e.rng.Float64())
	}
	if e.logger != nil {
		e.logger.Debug("drew move", "strategy", e.strategy, "move", move, "tabled", ok)
	}
	return move
}

// Observe records a resolved round so the next draw can condition on it.
func (e *Engine) Observe(own, opp game.Move, outcome game.Outcome) {
	e.prevOwn = own
	e.prevOpp = opp
	e.prevOutcome = outcome
	e.hasHistory = true
}

// Reset clears history between sessions.
func (e *Engine) Reset() {
	e.hasHistory = false
}

func (e *Engine) selectTable() (TransitionTable, game.Move, bool) {
	if !e.hasHistory || e.strategy == UniformRandom {
		return TransitionTable{}, game.None, false
	}
	var table TransitionTable
	var ref game.Move
	switch e.strategy {
	case PrevMovePositive:
		table, ref = e.tables.Positive, e.prevOwn
	case PrevMoveNegative:
		table, ref = e.tables.Negative, e.prevOwn
	case OppPrevMovePositive:
		table, ref = e.tables.Positive, e.prevOpp
	case OppPrevMoveNil:
		table, ref = e.tables.Nil, e.prevOpp
	case WinStayLoseShift:
		ref = e.prevOwn
		if e.prevOutcome == game.Win {
			table = e.tables.Nil
		} else {
			table = e.tables.Positive
		}
	default:
		return TransitionTable{}, game.None, false
	}
	if !ref.IsReal() {
		return TransitionTable{}, game.None, false
	}
	return table, ref, true
}

// drawMove maps a uniform draw in [0,1) into the cumulative distribution of
// one table row.
func drawMove(row [3]float64, draw float64) game.Move {
	cumulative := 0.0
	for mv := game.Rock; mv <= game.Scissors; mv++ {
		cumulative += row[mv]
		if draw < cumulative {
			return mv
		}
	}
	// Floating point slack on the last bucket.
	return game.Scissors
}
