package bot

import (
	"context"
	"fmt"
	rand "math/rand/v2"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lox/rpsmatch/internal/client"
	"github.com/lox/rpsmatch/internal/game"
	"github.com/lox/rpsmatch/protocol"
)

// Runner plays one full session over a client connection, drawing moves
// from an Engine. It pauses briefly before each submission so the recorded
// decision latencies resemble a deliberating participant.
type Runner struct {
	client *client.Client
	engine *Engine
	rng    *rand.Rand
	logger *log.Logger

	mu            sync.Mutex
	participantID string

	finished   chan struct{}
	finishOnce sync.Once
}

// NewRunner creates a runner around an existing, unconnected client.
func NewRunner(c *client.Client, e *Engine, rng *rand.Rand, logger *log.Logger) *Runner {
	return &Runner{
		client:   c,
		engine:   e,
		rng:      rng,
		logger:   logger,
		finished: make(chan struct{}),
	}
}

// Play connects and plays until the session ends, the connection drops, or
// the context is canceled.
func (r *Runner) Play(ctx context.Context, isTest bool) error {
	r.client.AddEventHandler(protocol.MessageTypeConnected, r.onConnected)
	r.client.AddEventHandler(protocol.MessageTypeSessionWaiting, r.onSessionWaiting)
	r.client.AddEventHandler(protocol.MessageTypeRoundBegin, r.onRoundBegin)
	r.client.AddEventHandler(protocol.MessageTypeRoundComplete, r.onRoundComplete)
	r.client.AddEventHandler(protocol.MessageTypeGameOver, r.onGameOver)
	r.client.AddEventHandler(protocol.MessageTypeError, r.onError)

	if err := r.client.Connect(isTest); err != nil {
		return err
	}
	defer func() { _ = r.client.Disconnect() }()

	select {
	case <-r.finished:
		return nil
	case <-r.client.Done():
		return fmt.Errorf("connection closed before game over")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) onConnected(msg *protocol.Message) {
	var data protocol.ConnectedData
	if err := msg.Decode(&data); err != nil {
		r.logger.Error("Malformed connected message", "error", err)
		return
	}
	r.mu.Lock()
	r.participantID = data.ParticipantID
	r.mu.Unlock()
	r.logger.Info("Connected", "participantID", data.ParticipantID)
}

func (r *Runner) onSessionWaiting(msg *protocol.Message) {
	var data protocol.SessionWaitingData
	if err := msg.Decode(&data); err != nil {
		return
	}
	r.logger.Info("Waiting for opponent", "sessionID", data.SessionID)
}

func (r *Runner) onRoundBegin(msg *protocol.Message) {
	var snap protocol.SessionSnapshot
	if err := msg.Decode(&snap); err != nil {
		r.logger.Error("Malformed round_begin", "error", err)
		return
	}

	start := time.Now()
	move := r.engine.Next()
	// Deliberation pause so recorded latencies are plausible.
	time.Sleep(time.Duration(50+r.rng.Int64N(200)) * time.Millisecond)
	latency := time.Since(start).Milliseconds()

	r.logger.Debug("Submitting move", "round", snap.CurrentRoundIndex, "move", move, "latencyMs", latency)
	if err := r.client.SubmitMove(move.String(), latency); err != nil {
		r.logger.Error("Failed to submit move", "error", err)
	}
}

func (r *Runner) onRoundComplete(msg *protocol.Message) {
	var snap protocol.SessionSnapshot
	if err := msg.Decode(&snap); err != nil {
		r.logger.Error("Malformed round_complete", "error", err)
		return
	}
	if snap.CurrentRound == nil {
		return
	}

	r.mu.Lock()
	id := r.participantID
	r.mu.Unlock()

	slot := -1
	for i, ps := range snap.Participants {
		if ps.ID == id {
			slot = i
			break
		}
	}
	if slot == -1 {
		r.logger.Error("Not present in session snapshot", "participantID", id)
		return
	}

	own, err1 := game.ParseMove(snap.CurrentRound.Moves[slot])
	opp, err2 := game.ParseMove(snap.CurrentRound.Moves[1-slot])
	if err1 == nil && err2 == nil {
		outcome := game.Tie
		switch snap.CurrentRound.Outcomes[slot] {
		case game.Win.String():
			outcome = game.Win
		case game.Loss.String():
			outcome = game.Loss
		}
		r.engine.Observe(own, opp, outcome)
	}

	r.logger.Info("Round complete",
		"round", snap.CurrentRound.Index,
		"own", snap.CurrentRound.Moves[slot],
		"opponent", snap.CurrentRound.Moves[1-slot],
		"outcome", snap.CurrentRound.Outcomes[slot],
		"total", snap.Participants[slot].PointsTotal)

	if err := r.client.AdvanceRound(); err != nil {
		r.logger.Error("Failed to advance round", "error", err)
	}
}

func (r *Runner) onGameOver(msg *protocol.Message) {
	var data protocol.GameOverData
	_ = msg.Decode(&data)
	r.logger.Info("Game over", "reason", data.Reason)
	r.finishOnce.Do(func() { close(r.finished) })
}

func (r *Runner) onError(msg *protocol.Message) {
	var data protocol.ErrorData
	_ = msg.Decode(&data)
	r.logger.Warn("Server rejected event", "code", data.Code, "message", data.Message)
}
