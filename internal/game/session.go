package game

import (
	"errors"
	"fmt"
	"time"
)

// ParticipantStatus tracks where one session slot is in the round cycle.
type ParticipantStatus int

const (
	// StatusAwaitingOpponent means the participant created a session and no
	// opponent has joined yet.
	StatusAwaitingOpponent ParticipantStatus = iota
	// StatusInRound means the participant is expected to submit a move or is
	// viewing round results.
	StatusInRound
	// StatusWaitingForOpponent means the participant acknowledged the round
	// and is parked at the continuation barrier.
	StatusWaitingForOpponent
	// StatusExited means the participant finished the final round.
	StatusExited
)

var statusNames = [...]string{"awaiting_opponent", "in_round", "waiting_for_opponent", "exited"}

func (s ParticipantStatus) String() string {
	if s < StatusAwaitingOpponent || s > StatusExited {
		return fmt.Sprintf("ParticipantStatus(%d)", int(s))
	}
	return statusNames[s]
}

// Participant occupies one of a session's two slots. Its ID is the opaque
// connection-scoped identifier; it is never reused across connections.
type Participant struct {
	ID     string
	Status ParticipantStatus
}

// RoundPhase tracks move collection for the round in progress.
type RoundPhase int

const (
	RoundAwaitingMoves RoundPhase = iota
	RoundAwaitingOne
	RoundComplete
)

var phaseNames = [...]string{"awaiting_moves", "awaiting_one", "complete"}

func (p RoundPhase) String() string {
	if p < RoundAwaitingMoves || p > RoundComplete {
		return fmt.Sprintf("RoundPhase(%d)", int(p))
	}
	return phaseNames[p]
}

// Round is one decision exchange. Slot arrays line up with the session's
// participant slots. TotalsBefore captures both cumulative totals as of the
// start of the round for auditability. A round is immutable once Phase
// reaches RoundComplete; rounds hold no back-pointer to their session.
type Round struct {
	Index        int
	BeginTS      time.Time
	Submitted    [2]bool
	Moves        [2]Move
	LatenciesMs  [2]int64
	Outcomes     [2]Outcome
	Points       [2]int
	TotalsBefore [2]int
	Phase        RoundPhase
}

var (
	// ErrSessionFull is returned when a third participant tries to join.
	ErrSessionFull = errors.New("session already has two participants")
	// ErrNoCurrentRound is returned for round operations before pairing or
	// after finalization.
	ErrNoCurrentRound = errors.New("no round in progress")
	// ErrRoundComplete rejects mutations of an already-resolved round.
	ErrRoundComplete = errors.New("round already complete")
	// ErrMoveAlreadySubmitted rejects duplicate submissions within a round.
	ErrMoveAlreadySubmitted = errors.New("move already submitted for this round")
	// ErrRoundUnresolved guards resolution with fewer than two moves; outside
	// the disconnect path this is an invariant violation.
	ErrRoundUnresolved = errors.New("round does not have both moves")
)

// Session is one paired match of RoundCount rounds between exactly two
// participants. Slots fill in arrival order and the second slot is never
// reassigned. All mutations go through the methods below; the server
// serializes them per session.
type Session struct {
	ID           string
	IsTest       bool
	RoundCount   int
	CreatedAt    time.Time
	BeganAt      time.Time
	Participants [2]*Participant
	Totals       [2]int
	Completed    []Round
	Current      *Round

	points Points
}

// NewSession creates a session with its first participant parked in the
// waiting slot.
func NewSession(id string, isTest bool, roundCount int, points Points, first *Participant, now time.Time) *Session {
	first.Status = StatusAwaitingOpponent
	return &Session{
		ID:           id,
		IsTest:       isTest,
		RoundCount:   roundCount,
		CreatedAt:    now,
		Participants: [2]*Participant{first, nil},
		points:       points,
	}
}

// Full reports whether both slots are occupied.
func (s *Session) Full() bool {
	return s.Participants[1] != nil
}

// Join fills the second slot and irreversibly moves the session into play,
// beginning round 1. A test participant promotes the whole session to a test
// run; the reverse never happens.
func (s *Session) Join(second *Participant, isTest bool, now time.Time) error {
	if s.Full() {
		return ErrSessionFull
	}
	if isTest {
		s.IsTest = true
	}
	second.Status = StatusInRound
	s.Participants[1] = second
	s.Participants[0].Status = StatusInRound
	s.BeganAt = now
	s.beginRound(now)
	return nil
}

func (s *Session) beginRound(now time.Time) {
	s.Current = &Round{
		Index:        len(s.Completed) + 1,
		BeginTS:      now,
		TotalsBefore: s.Totals,
	}
}

// SlotOf returns the slot index for a participant id.
func (s *Session) SlotOf(participantID string) (int, bool) {
	for i, p := range s.Participants {
		if p != nil && p.ID == participantID {
			return i, true
		}
	}
	return -1, false
}

// Opponent returns the participant in the other slot, which may be nil
// before pairing.
func (s *Session) Opponent(slot int) *Participant {
	return s.Participants[1-slot]
}

// RecordMove stores a move and its decision latency in the given slot.
func (s *Session) RecordMove(slot int, m Move, latencyMs int64) error {
	r := s.Current
	if r == nil {
		return ErrNoCurrentRound
	}
	if r.Phase == RoundComplete {
		return ErrRoundComplete
	}
	if r.Submitted[slot] {
		return ErrMoveAlreadySubmitted
	}
	r.Submitted[slot] = true
	r.Moves[slot] = m
	r.LatenciesMs[slot] = latencyMs
	if r.Submitted[0] && r.Submitted[1] {
		// Resolution is the caller's next step; phase flips there.
		return nil
	}
	r.Phase = RoundAwaitingOne
	return nil
}

// BothMoved reports whether the current round has both moves recorded.
func (s *Session) BothMoved() bool {
	return s.Current != nil && s.Current.Submitted[0] && s.Current.Submitted[1]
}

// ResolveCurrent applies the outcome rule to the current round, awards
// points, updates the cumulative totals, and marks the round complete.
func (s *Session) ResolveCurrent() error {
	r := s.Current
	if r == nil {
		return ErrNoCurrentRound
	}
	if r.Phase == RoundComplete {
		return ErrRoundComplete
	}
	if !r.Submitted[0] || !r.Submitted[1] {
		return ErrRoundUnresolved
	}
	r.Outcomes[0], r.Outcomes[1] = Resolve(r.Moves[0], r.Moves[1])
	for i := range r.Points {
		r.Points[i] = s.points.For(r.Outcomes[i])
		s.Totals[i] += r.Points[i]
	}
	r.Phase = RoundComplete
	return nil
}

// OnFinalRound reports whether the round in progress is the session's last.
func (s *Session) OnFinalRound() bool {
	return s.Current != nil && s.Current.Index == s.RoundCount
}

// MarkReady parks a slot at the continuation barrier.
func (s *Session) MarkReady(slot int) {
	s.Participants[slot].Status = StatusWaitingForOpponent
}

// MarkExited records that a slot finished the final round.
func (s *Session) MarkExited(slot int) {
	s.Participants[slot].Status = StatusExited
}

// BothReady reports whether both slots are parked at the barrier.
func (s *Session) BothReady() bool {
	return s.Full() &&
		s.Participants[0].Status == StatusWaitingForOpponent &&
		s.Participants[1].Status == StatusWaitingForOpponent
}

// BothExited reports whether both slots finished the final round.
func (s *Session) BothExited() bool {
	return s.Full() &&
		s.Participants[0].Status == StatusExited &&
		s.Participants[1].Status == StatusExited
}

// AdvanceRound archives the completed current round and begins the next one.
// Only legal once the barrier released: the current round must be complete.
func (s *Session) AdvanceRound(now time.Time) error {
	r := s.Current
	if r == nil {
		return ErrNoCurrentRound
	}
	if r.Phase != RoundComplete {
		return fmt.Errorf("advancing with round %d in phase %s", r.Index, r.Phase)
	}
	s.Completed = append(s.Completed, *r)
	s.beginRound(now)
	s.Participants[0].Status = StatusInRound
	s.Participants[1].Status = StatusInRound
	return nil
}

// ArchiveCurrent moves the in-progress round into the completed sequence
// as-is, including partial or missing moves. Used at session end, both for
// the normal final-round path and for disconnect teardown.
func (s *Session) ArchiveCurrent() {
	if s.Current == nil {
		return
	}
	s.Completed = append(s.Completed, *s.Current)
	s.Current = nil
}
