package server

import (
	"fmt"
	rand "math/rand/v2"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lox/rpsmatch/internal/bot"
	"github.com/lox/rpsmatch/internal/game"
	"github.com/lox/rpsmatch/internal/randutil"
	"github.com/lox/rpsmatch/protocol"
)

// botOpponent is an in-process participant driven by the strategy engine.
// It occupies a normal session slot with a nil connection and consumes its
// own send channel in place of a write pump, feeding its replies back
// through the same dispatcher real clients use.
type botOpponent struct {
	participant *Participant
	coordinator *Coordinator
	engine      *bot.Engine
	rng         *rand.Rand
	logger      zerolog.Logger
}

// spawnBotOpponent joins a simulated opponent to the given session. If a
// real opponent filled the slot first, the bot is discarded.
func (c *Coordinator) spawnBotOpponent(sessionID string) {
	seq := c.botSeq.Add(1)
	rng := randutil.New(c.cfg.Seed + seq)

	id := fmt.Sprintf("bot-%s-%s", c.cfg.Bot.Strategy, uuid.NewString()[:8])
	p := NewParticipant(c.logger, id, nil)
	b := &botOpponent{
		participant: p,
		coordinator: c,
		engine:      bot.NewEngine(c.cfg.Bot.Strategy, c.cfg.Bot.MoveProb, rng, nil),
		rng:         rng,
		logger:      c.logger.With().Str("component", "bot_opponent").Str("participant_id", id).Logger(),
	}
	go b.run()

	entry, err := c.registry.Join(sessionID, p, false, c.clock.Now())
	if err != nil {
		b.logger.Debug().Err(err).Str("session_id", sessionID).Msg("session no longer joinable, discarding bot")
		p.Close()
		return
	}
	b.logger.Info().
		Str("session_id", sessionID).
		Str("strategy", c.cfg.Bot.Strategy.String()).
		Msg("bot opponent joined")

	entry.mu.Lock()
	c.broadcastLocked(entry, protocol.MessageTypeRoundBegin, snapshotLocked(entry.sess))
	entry.mu.Unlock()
}

func (b *botOpponent) run() {
	defer b.participant.Close()
	for {
		select {
		case msg := <-b.participant.send:
			if done := b.handle(msg); done {
				return
			}
		case <-b.participant.Done():
			return
		}
	}
}

// handle reacts to one server event. Returns true when the session is over.
func (b *botOpponent) handle(msg *protocol.Message) bool {
	switch msg.Type {
	case protocol.MessageTypeRoundBegin:
		b.submitMove()

	case protocol.MessageTypeRoundComplete:
		var snap protocol.SessionSnapshot
		if err := msg.Decode(&snap); err != nil {
			b.logger.Error().Err(err).Msg("malformed round_complete")
			return true
		}
		b.observe(&snap)
		b.advance()

	case protocol.MessageTypeGameOver:
		b.logger.Debug().Msg("session over")
		return true

	case protocol.MessageTypeError:
		var data protocol.ErrorData
		_ = msg.Decode(&data)
		b.logger.Warn().Str("code", data.Code).Str("message", data.Message).Msg("server rejected bot event")
	}
	return false
}

func (b *botOpponent) submitMove() {
	move := b.engine.Next()
	latency := 200 + b.rng.Int64N(700)
	b.dispatch(protocol.MessageTypeSubmitMove, protocol.SubmitMoveData{
		Move:      move.String(),
		LatencyMs: latency,
	})
}

func (b *botOpponent) advance() {
	b.dispatch(protocol.MessageTypeAdvanceRound, protocol.AdvanceRoundData{})
}

// observe feeds the resolved round into the engine, locating the bot's slot
// by its participant id.
func (b *botOpponent) observe(snap *protocol.SessionSnapshot) {
	if snap.CurrentRound == nil {
		return
	}
	slot := -1
	for i, ps := range snap.Participants {
		if ps.ID == b.participant.ID {
			slot = i
			break
		}
	}
	if slot == -1 {
		b.logger.Error().Msg("bot not present in session snapshot")
		return
	}
	own, err1 := game.ParseMove(snap.CurrentRound.Moves[slot])
	opp, err2 := game.ParseMove(snap.CurrentRound.Moves[1-slot])
	if err1 != nil || err2 != nil {
		return
	}
	outcome := game.Tie
	switch snap.CurrentRound.Outcomes[slot] {
	case game.Win.String():
		outcome = game.Win
	case game.Loss.String():
		outcome = game.Loss
	}
	b.engine.Observe(own, opp, outcome)
}

func (b *botOpponent) dispatch(t protocol.MessageType, data any) {
	msg, err := protocol.NewMessage(t, data)
	if err != nil {
		b.logger.Error().Err(err).Msg("encoding bot event")
		return
	}
	b.coordinator.Dispatch(b.participant, msg)
}
