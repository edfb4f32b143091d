package server

import (
	"sync/atomic"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/lox/rpsmatch/internal/game"
	"github.com/lox/rpsmatch/internal/server/results"
	"github.com/lox/rpsmatch/protocol"
)

// RecordSink receives finalized session records for persistence.
type RecordSink interface {
	Enqueue(results.Record)
}

// Coordinator routes participant events through the session state machine.
// All mutations of a session, and all outbound enqueues for it, happen under
// that session's entry lock, so each connection observes messages in the
// order the transitions occurred.
type Coordinator struct {
	cfg      Config
	registry *Registry
	sink     RecordSink
	clock    quartz.Clock
	logger   zerolog.Logger
	botSeq   atomic.Int64
}

// NewCoordinator wires the coordinator to its registry and record sink.
func NewCoordinator(cfg Config, registry *Registry, sink RecordSink, clock quartz.Clock, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		cfg:      cfg,
		registry: registry,
		sink:     sink,
		clock:    clock,
		logger:   logger.With().Str("component", "coordinator").Logger(),
	}
}

// HandleConnect pairs a new participant into a session. The first arrival
// waits; the second begins round 1 for both. When the simulated opponent is
// enabled, every newly created session gets one immediately.
func (c *Coordinator) HandleConnect(p *Participant, isTest bool) {
	entry, joined, err := c.registry.FindOrCreate(p, isTest, c.cfg.Rounds, c.cfg.Points, c.clock.Now())
	if err != nil {
		c.logger.Error().Err(err).Str("participant_id", p.ID).Msg("connect refused")
		c.sendError(p, "internal_error", "could not place participant in a session")
		p.Close()
		return
	}

	if joined {
		entry.mu.Lock()
		c.broadcastLocked(entry, protocol.MessageTypeRoundBegin, snapshotLocked(entry.sess))
		entry.mu.Unlock()
		return
	}

	c.send(p, protocol.MessageTypeSessionWaiting, protocol.SessionWaitingData{SessionID: entry.sess.ID})
	if c.cfg.Bot.Enabled {
		c.spawnBotOpponent(entry.sess.ID)
	}
}

// Dispatch routes one inbound frame. The sender's identity comes from its
// connection; payloads carry no trusted session or participant ids.
func (c *Coordinator) Dispatch(p *Participant, msg *protocol.Message) {
	switch msg.Type {
	case protocol.MessageTypeSubmitMove:
		c.handleMove(p, msg)
	case protocol.MessageTypeAdvanceRound:
		c.handleAdvance(p)
	default:
		c.logger.Warn().
			Str("participant_id", p.ID).
			Str("type", string(msg.Type)).
			Msg("unknown message type")
		c.sendError(p, "unknown_type", "unknown message type")
	}
}

func (c *Coordinator) handleMove(p *Participant, msg *protocol.Message) {
	entry := c.registry.EntryFor(p.ID)
	if entry == nil {
		c.logger.Warn().Str("participant_id", p.ID).Msg("move from participant with no session")
		c.sendError(p, "no_session", "not in a session")
		return
	}

	var data protocol.SubmitMoveData
	if err := msg.Decode(&data); err != nil {
		c.sendError(p, "bad_payload", "malformed submit_move payload")
		return
	}
	move, err := game.ParseMove(data.Move)
	if err != nil {
		// Protocol violation: log and leave the round untouched.
		c.logger.Warn().
			Str("participant_id", p.ID).
			Str("move", data.Move).
			Msg("invalid move rejected")
		c.sendError(p, "invalid_move", err.Error())
		return
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	sess := entry.sess

	slot, ok := sess.SlotOf(p.ID)
	if !ok {
		c.sendError(p, "no_session", "not in a session")
		return
	}
	if err := sess.RecordMove(slot, move, data.LatencyMs); err != nil {
		c.logger.Warn().
			Err(err).
			Str("session_id", sess.ID).
			Str("participant_id", p.ID).
			Msg("move rejected")
		c.sendError(p, "bad_state", err.Error())
		return
	}

	c.logger.Debug().
		Str("session_id", sess.ID).
		Str("participant_id", p.ID).
		Int("round", sess.Current.Index).
		Str("move", move.String()).
		Int64("latency_ms", data.LatencyMs).
		Msg("move submitted")

	if !sess.BothMoved() {
		// The other side owes a move. It learns one is pending, never what
		// it is.
		if opp := entry.participantFor(1 - slot); opp != nil {
			c.send(opp, protocol.MessageTypeOpponentDeciding, protocol.RoundWaitingData{
				Status: "opponent has submitted, round pending",
			})
		}
		return
	}

	if err := sess.ResolveCurrent(); err != nil {
		// Both moves are recorded, so this cannot fail; treat it as a bug.
		c.logger.Error().
			Err(err).
			Str("session_id", sess.ID).
			Int("round", sess.Current.Index).
			Msg("round resolution failed")
		return
	}

	r := sess.Current
	c.logger.Info().
		Str("session_id", sess.ID).
		Int("round", r.Index).
		Str("moves", r.Moves[0].String()+"/"+r.Moves[1].String()).
		Str("outcomes", r.Outcomes[0].String()+"/"+r.Outcomes[1].String()).
		Ints("totals", sess.Totals[:]).
		Msg("round resolved")

	c.broadcastLocked(entry, protocol.MessageTypeRoundComplete, snapshotLocked(sess))
}

func (c *Coordinator) handleAdvance(p *Participant) {
	entry := c.registry.EntryFor(p.ID)
	if entry == nil {
		c.logger.Warn().Str("participant_id", p.ID).Msg("advance from participant with no session")
		c.sendError(p, "no_session", "not in a session")
		return
	}

	entry.mu.Lock()
	sess := entry.sess

	slot, ok := sess.SlotOf(p.ID)
	if !ok {
		entry.mu.Unlock()
		c.sendError(p, "no_session", "not in a session")
		return
	}
	if sess.Current == nil || sess.Current.Phase != game.RoundComplete {
		entry.mu.Unlock()
		c.logger.Warn().
			Str("session_id", sess.ID).
			Str("participant_id", p.ID).
			Msg("advance before round complete")
		c.sendError(p, "bad_state", "current round is not complete")
		return
	}
	status := sess.Participants[slot].Status
	if status == game.StatusWaitingForOpponent || status == game.StatusExited {
		entry.mu.Unlock()
		c.logger.Warn().
			Str("session_id", sess.ID).
			Str("participant_id", p.ID).
			Msg("duplicate advance ignored")
		return
	}

	if sess.OnFinalRound() {
		sess.MarkExited(slot)
		c.send(p, protocol.MessageTypeGameOver, protocol.GameOverData{Reason: "session_complete"})
		if !sess.BothExited() {
			entry.mu.Unlock()
			return
		}
		sess.ArchiveCurrent()
		rec := results.Serialize(sess)
		entry.mu.Unlock()

		c.sink.Enqueue(rec)
		c.registry.Evict(sess.ID)
		c.logger.Info().
			Str("session_id", sess.ID).
			Int("rounds", len(rec.Rounds)).
			Msg("session complete")
		return
	}

	sess.MarkReady(slot)
	if !sess.BothReady() {
		// Barrier holds until the other side acknowledges.
		c.send(p, protocol.MessageTypeWaitingOpponent, protocol.RoundWaitingData{
			Status: "waiting for opponent",
		})
		entry.mu.Unlock()
		return
	}

	if err := sess.AdvanceRound(c.clock.Now()); err != nil {
		entry.mu.Unlock()
		c.logger.Error().Err(err).Str("session_id", sess.ID).Msg("round advance failed")
		return
	}
	c.broadcastLocked(entry, protocol.MessageTypeRoundBegin, snapshotLocked(sess))
	entry.mu.Unlock()
}

// HandleDisconnect tears a session down when a participant's connection
// drops. A participant that already exited through the final round produces
// no notification; anything else ends the session for the survivor
// immediately, archiving whatever the current round holds.
func (c *Coordinator) HandleDisconnect(participantID string) {
	entry := c.registry.EntryFor(participantID)
	if entry == nil {
		c.logger.Debug().Str("participant_id", participantID).Msg("disconnect with no session")
		return
	}

	entry.mu.Lock()
	sess := entry.sess

	slot, ok := sess.SlotOf(participantID)
	if !ok {
		entry.mu.Unlock()
		return
	}
	if sess.Participants[slot].Status == game.StatusExited {
		// Normal teardown after game over; the session finalizes through the
		// continuation path.
		entry.mu.Unlock()
		return
	}

	c.logger.Info().
		Str("session_id", sess.ID).
		Str("participant_id", participantID).
		Int("round", currentRoundIndex(sess)).
		Msg("participant disconnected mid-session")

	sess.MarkExited(slot)
	if opp := entry.participantFor(1 - slot); opp != nil {
		c.send(opp, protocol.MessageTypeGameOver, protocol.GameOverData{Reason: "opponent_disconnected"})
	}
	if sess.Full() {
		sess.MarkExited(1 - slot)
	}
	sess.ArchiveCurrent()
	rec := results.Serialize(sess)
	entry.mu.Unlock()

	c.sink.Enqueue(rec)
	c.registry.Evict(sess.ID)
}

// broadcastLocked enqueues the same payload to both connections. Caller
// holds the entry lock; enqueueing under it is what guarantees both sides
// see transitions in the same order.
func (c *Coordinator) broadcastLocked(entry *sessionEntry, t protocol.MessageType, data any) {
	for _, p := range entry.conns {
		if p != nil {
			c.send(p, t, data)
		}
	}
}

func (c *Coordinator) send(p *Participant, t protocol.MessageType, data any) {
	msg, err := protocol.NewMessage(t, data)
	if err != nil {
		c.logger.Error().Err(err).Str("type", string(t)).Msg("encoding message")
		return
	}
	if err := p.SendMessage(msg); err != nil {
		c.logger.Debug().
			Err(err).
			Str("participant_id", p.ID).
			Str("type", string(t)).
			Msg("send failed")
	}
}

func (c *Coordinator) sendError(p *Participant, code, message string) {
	c.send(p, protocol.MessageTypeError, protocol.ErrorData{Code: code, Message: message})
}

func currentRoundIndex(s *game.Session) int {
	if s.Current == nil {
		return len(s.Completed)
	}
	return s.Current.Index
}
