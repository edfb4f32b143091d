package server

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lox/rpsmatch/internal/game"
)

// ErrSessionIDCollision means a freshly generated session id already exists.
// With UUIDs this should never happen; the connect is refused rather than
// risking two sessions sharing a record file.
var ErrSessionIDCollision = errors.New("session id collision")

// ErrSessionNotFound is returned when a targeted join misses, e.g. the
// session was evicted or filled in the meantime.
var ErrSessionNotFound = errors.New("session not found")

// sessionEntry pairs a session's state with the connections occupying its
// slots. mu serializes every mutation and every outbound enqueue for the
// session, which is what keeps per-connection message order consistent with
// state transitions.
type sessionEntry struct {
	mu    sync.Mutex
	sess  *game.Session
	conns [2]*Participant
}

// participantFor returns the live connection in the given slot, nil if that
// slot is empty.
func (e *sessionEntry) participantFor(slot int) *Participant {
	return e.conns[slot]
}

// Registry owns the set of active sessions and the pairing rule: a
// connecting participant fills the open slot of the oldest waiting session,
// or opens a new one. Sessions leave the registry only through Evict.
type Registry struct {
	mu            sync.RWMutex
	sessions      map[string]*sessionEntry
	order         []string // session ids in creation order
	byParticipant map[string]string
	logger        zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		sessions:      make(map[string]*sessionEntry),
		byParticipant: make(map[string]string),
		logger:        logger.With().Str("component", "registry").Logger(),
	}
}

// FindOrCreate places p into a session. If a session is waiting for an
// opponent, p joins it and the returned session begins round 1; otherwise a
// new session is created with p parked in the first slot. The whole
// find-and-attach runs under the registry lock so two concurrent connects
// cannot both join the same slot.
func (r *Registry) FindOrCreate(p *Participant, isTest bool, roundCount int, points game.Points, now time.Time) (*sessionEntry, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range r.order {
		entry := r.sessions[id]
		entry.mu.Lock()
		if !entry.sess.Full() {
			if err := entry.sess.Join(&game.Participant{ID: p.ID}, isTest, now); err != nil {
				entry.mu.Unlock()
				return nil, false, err
			}
			entry.conns[1] = p
			entry.mu.Unlock()
			r.byParticipant[p.ID] = id
			r.logger.Info().
				Str("session_id", id).
				Str("participant_id", p.ID).
				Bool("istest", entry.sess.IsTest).
				Msg("participant joined session")
			return entry, true, nil
		}
		entry.mu.Unlock()
	}

	id := uuid.NewString()
	if _, exists := r.sessions[id]; exists {
		r.logger.Error().Str("session_id", id).Msg("session id collision, refusing connect")
		return nil, false, ErrSessionIDCollision
	}

	entry := &sessionEntry{
		sess: game.NewSession(id, isTest, roundCount, points, &game.Participant{ID: p.ID}, now),
	}
	entry.conns[0] = p
	r.sessions[id] = entry
	r.order = append(r.order, id)
	r.byParticipant[p.ID] = id
	r.logger.Info().
		Str("session_id", id).
		Str("participant_id", p.ID).
		Bool("istest", isTest).
		Msg("session created")
	return entry, false, nil
}

// Join attaches p to a specific session's open slot. Used by the in-process
// simulated opponent, which must join the session it was spawned for rather
// than whatever is oldest.
func (r *Registry) Join(sessionID string, p *Participant, isTest bool, now time.Time) (*sessionEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	entry.mu.Lock()
	if err := entry.sess.Join(&game.Participant{ID: p.ID}, isTest, now); err != nil {
		entry.mu.Unlock()
		return nil, err
	}
	entry.conns[1] = p
	entry.mu.Unlock()
	r.byParticipant[p.ID] = sessionID
	return entry, nil
}

// EntryFor returns the session entry a participant belongs to, nil if none.
func (r *Registry) EntryFor(participantID string) *sessionEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byParticipant[participantID]
	if !ok {
		return nil
	}
	return r.sessions[id]
}

// Evict removes a finalized session and its participant index entries.
func (r *Registry) Evict(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	for _, p := range entry.sess.Participants {
		if p != nil {
			delete(r.byParticipant, p.ID)
		}
	}
	delete(r.sessions, sessionID)
	for i, id := range r.order {
		if id == sessionID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.logger.Debug().Str("session_id", sessionID).Msg("session evicted")
}

// Count returns the number of active sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
