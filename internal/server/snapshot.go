package server

import (
	"github.com/lox/rpsmatch/internal/game"
	"github.com/lox/rpsmatch/protocol"
)

// snapshotLocked builds the client-facing view of a session. Caller holds
// the session entry lock. Moves, latencies and outcomes of the round in
// progress stay hidden until the round resolves; completed round history is
// never included.
func snapshotLocked(s *game.Session) *protocol.SessionSnapshot {
	snap := &protocol.SessionSnapshot{
		SessionID:  s.ID,
		IsTest:     s.IsTest,
		RoundCount: s.RoundCount,
	}
	for i, p := range s.Participants {
		if p == nil {
			continue
		}
		snap.Participants[i] = protocol.ParticipantState{
			ID:          p.ID,
			Status:      p.Status.String(),
			PointsTotal: s.Totals[i],
		}
	}
	r := s.Current
	if r == nil {
		return snap
	}
	snap.CurrentRoundIndex = r.Index
	view := &protocol.RoundView{
		Index:        r.Index,
		Phase:        r.Phase.String(),
		TotalsBefore: r.TotalsBefore,
	}
	if r.Phase == game.RoundComplete {
		for i := range r.Moves {
			view.Moves[i] = r.Moves[i].String()
			view.Outcomes[i] = r.Outcomes[i].String()
		}
		view.LatenciesMs = r.LatenciesMs
		view.Points = r.Points
	}
	snap.CurrentRound = view
	return snap
}
