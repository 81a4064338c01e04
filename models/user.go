package models

import (
	"math"
	"time"
)

type UserRole string

const (
	RoleAdmin  UserRole = "admin"
	RolePlayer UserRole = "player"
)

type User struct {
	ID           int      `json:"id" db:"id"`
	Username     string   `json:"username" db:"username"`
	DisplayName  string   `json:"display_name" db:"display_name"`
	Email        string   `json:"email" db:"email"`
	PasswordHash string   `json:"-" db:"password_hash"`
	Role         UserRole `json:"role" db:"role"`
	Region       *string  `json:"region,omitempty" db:"region"`
	AvatarKey    *string  `json:"-" db:"avatar_key"`
	AvatarURL    *string  `json:"avatar_url,omitempty" db:"-"`
	Active       bool     `json:"active" db:"active"`

	TotalWins   int  `json:"total_wins" db:"total_wins"`
	TotalLosses int  `json:"total_losses" db:"total_losses"`
	TotalScore  int  `json:"total_score" db:"total_score"`
	GlobalRank  *int `json:"global_rank,omitempty" db:"global_rank"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// Per-game stats, loaded on demand.
	GameStats []GameStats `json:"game_stats,omitempty" db:"-"`
}

// GameStats is the per-game slice of a user's aggregate stats. Rank is
// the advisory cached value written by the batch re-rank; live rank
// queries never read it.
type GameStats struct {
	UserID     int        `json:"user_id" db:"user_id"`
	Game       string     `json:"game" db:"game"`
	Wins       int        `json:"wins" db:"wins"`
	Losses     int        `json:"losses" db:"losses"`
	Score      int        `json:"score" db:"score"`
	Rank       *int       `json:"rank,omitempty" db:"rank"`
	LastPlayed *time.Time `json:"last_played,omitempty" db:"last_played"`
}

// DisplayNameOrUsername prefers the display name when set.
func (u *User) DisplayNameOrUsername() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

// WinRate returns the win percentage for a win/loss record rounded to
// one decimal, or 0 when no games have been played.
func WinRate(wins, losses int) float64 {
	played := wins + losses
	if played == 0 {
		return 0
	}
	return math.Round(float64(wins)/float64(played)*1000) / 10
}

// WinRate returns the user's aggregate win percentage.
func (u *User) WinRate() float64 {
	return WinRate(u.TotalWins, u.TotalLosses)
}
