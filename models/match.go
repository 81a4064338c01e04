package models

import "time"

type MatchStatus string

const (
	MatchStatusPending   MatchStatus = "pending"
	MatchStatusLive      MatchStatus = "live"
	MatchStatusCompleted MatchStatus = "completed"
)

// Match is one node of the elimination bracket. UID is deterministic
// ("R2M3" = round 2, third match) and unique within a tournament.
// Team slots are nil until the pairing is known; later rounds start
// empty because winners are not propagated automatically.
type Match struct {
	UID          string      `json:"uid" db:"uid"`
	TournamentID int         `json:"tournament_id" db:"tournament_id"`
	Round        int         `json:"round" db:"round"`
	OrderInRound int         `json:"order_in_round" db:"order_in_round"`
	Team1ID      *int        `json:"team1_id,omitempty" db:"team1_id"`
	Team2ID      *int        `json:"team2_id,omitempty" db:"team2_id"`
	WinnerTeamID *int        `json:"winner_team_id,omitempty" db:"winner_team_id"`
	Score1       *int        `json:"score1,omitempty" db:"score1"`
	Score2       *int        `json:"score2,omitempty" db:"score2"`
	Status       MatchStatus `json:"status" db:"status"`
	CompletedAt  *time.Time  `json:"completed_at,omitempty" db:"completed_at"`
}

// MatchScore is the two-field score submitted with a result.
type MatchScore struct {
	Score1 int `json:"score1"`
	Score2 int `json:"score2"`
}
