// Package results persists finished sessions as one JSON document per
// session, written off the session lock by a single background writer.
package results

import (
	"time"

	"github.com/lox/rpsmatch/internal/game"
)

// RoundRecord is one round of a persisted session. Move and outcome fields
// are nil when that side never submitted, which only happens in the final
// archived round of a session torn down by a disconnect.
type RoundRecord struct {
	RoundIndex   int     `json:"round_index"`
	RoundBeginTS int64   `json:"round_begin_ts"`
	Player1Move  *string `json:"player1_move"`
	Player2Move  *string `json:"player2_move"`
	Player1RTMs  int64   `json:"player1_rt_ms"`
	Player2RTMs  int64   `json:"player2_rt_ms"`

	Player1Outcome *string `json:"player1_outcome"`
	Player2Outcome *string `json:"player2_outcome"`
	Player1Points  int     `json:"player1_points"`
	Player2Points  int     `json:"player2_points"`

	// Cumulative totals as of the start of the round.
	Player1Total int `json:"player1_total"`
	Player2Total int `json:"player2_total"`
}

// Record is the full persisted document for one session.
type Record struct {
	SessionID   string        `json:"session_id"`
	IsTest      bool          `json:"istest"`
	Player1ID   string        `json:"player1_id"`
	Player2ID   string        `json:"player2_id,omitempty"`
	RoundCount  int           `json:"round_count"`
	GameBeginTS int64         `json:"game_begin_ts"`
	WrittenAt   time.Time     `json:"written_at"`
	Rounds      []RoundRecord `json:"rounds"`
}

// Serialize converts a finished session into its persisted form. It is a
// pure function of the session: it tolerates unpaired sessions and partial
// final rounds, emitting whatever rounds exist (possibly none).
func Serialize(s *game.Session) Record {
	rec := Record{
		SessionID:   s.ID,
		IsTest:      s.IsTest,
		RoundCount:  s.RoundCount,
		GameBeginTS: unixMs(s.BeganAt),
		Rounds:      make([]RoundRecord, 0, len(s.Completed)),
	}
	if s.Participants[0] != nil {
		rec.Player1ID = s.Participants[0].ID
	}
	if s.Participants[1] != nil {
		rec.Player2ID = s.Participants[1].ID
	}
	for _, r := range s.Completed {
		rr := RoundRecord{
			RoundIndex:   r.Index,
			RoundBeginTS: unixMs(r.BeginTS),
			Player1RTMs:  r.LatenciesMs[0],
			Player2RTMs:  r.LatenciesMs[1],
			Player1Total: r.TotalsBefore[0],
			Player2Total: r.TotalsBefore[1],
		}
		if r.Submitted[0] {
			rr.Player1Move = strPtr(r.Moves[0].String())
		}
		if r.Submitted[1] {
			rr.Player2Move = strPtr(r.Moves[1].String())
		}
		if r.Phase == game.RoundComplete {
			rr.Player1Outcome = strPtr(r.Outcomes[0].String())
			rr.Player2Outcome = strPtr(r.Outcomes[1].String())
			rr.Player1Points = r.Points[0]
			rr.Player2Points = r.Points[1]
		}
		rec.Rounds = append(rec.Rounds, rr)
	}
	return rec
}

func unixMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func strPtr(s string) *string {
	return &s
}
