package models

import "time"

// TeamStatus is the roster status of a registered team.
type TeamStatus string

const (
	TeamStatusRegistered TeamStatus = "registered"
	TeamStatusConfirmed  TeamStatus = "confirmed"
	TeamStatusEliminated TeamStatus = "eliminated"
	TeamStatusWinner     TeamStatus = "winner"
)

// Team is a single roster entry. In the solo format it carries exactly
// one player id.
type Team struct {
	ID           int        `json:"id" db:"id"`
	TournamentID int        `json:"tournament_id" db:"tournament_id"`
	Name         string     `json:"name" db:"name"`
	Players      []int      `json:"players" db:"players"`
	Status       TeamStatus `json:"status" db:"status"`
	Score        *float64   `json:"score,omitempty" db:"score"`
	Placement    *int       `json:"placement,omitempty" db:"placement"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

// HasPlayer reports whether the given user is a member of the team.
func (t *Team) HasPlayer(userID int) bool {
	for _, p := range t.Players {
		if p == userID {
			return true
		}
	}
	return false
}
