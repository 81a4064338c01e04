package models

import "time"

// TournamentStatus mirrors the tournament_status ENUM in the database.
type TournamentStatus string

const (
	StatusDraft        TournamentStatus = "draft"
	StatusRegistration TournamentStatus = "registration"
	StatusUpcoming     TournamentStatus = "upcoming"
	StatusLive         TournamentStatus = "live"
	StatusCompleted    TournamentStatus = "completed"
	StatusCancelled    TournamentStatus = "cancelled"
)

// Tournament is the aggregate record for one competitive event.
type Tournament struct {
	ID          int     `json:"id" db:"id"`
	Name        string  `json:"name" db:"name"`
	Description *string `json:"description,omitempty" db:"description"`
	Game        string  `json:"game" db:"game"`
	Format      string  `json:"format" db:"format"`
	Region      *string `json:"region,omitempty" db:"region"`
	OrganizerID int     `json:"organizer_id" db:"organizer_id"`

	RegistrationOpensAt  time.Time  `json:"registration_opens_at" db:"registration_opens_at"`
	RegistrationClosesAt time.Time  `json:"registration_closes_at" db:"registration_closes_at"`
	StartsAt             time.Time  `json:"starts_at" db:"starts_at"`
	EndsAt               *time.Time `json:"ends_at,omitempty" db:"ends_at"`

	MaxTeams           int `json:"max_teams" db:"max_teams"`
	CurrentTeams       int `json:"current_teams" db:"current_teams"`
	RegistrationsTotal int `json:"registrations_total" db:"registrations_total"`

	Status    TournamentStatus `json:"status" db:"status"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
	BannerKey *string          `json:"-" db:"banner_key"`
	BannerURL *string          `json:"banner_url,omitempty" db:"-"`

	// Related entities, loaded on demand (not mapped directly).
	Organizer *User   `json:"organizer,omitempty" db:"-"`
	Roster    []Team  `json:"roster,omitempty" db:"-"`
	Bracket   []Match `json:"bracket,omitempty" db:"-"`
}

// DeriveStatus computes the lifecycle status from the schedule alone.
// Cancellation is sticky: once a tournament is cancelled, no wall-clock
// movement changes its status.
func (t *Tournament) DeriveStatus(now time.Time) TournamentStatus {
	if t.Status == StatusCancelled {
		return StatusCancelled
	}
	switch {
	case now.Before(t.RegistrationOpensAt):
		return StatusDraft
	case !now.After(t.RegistrationClosesAt):
		return StatusRegistration
	case now.Before(t.StartsAt):
		return StatusUpcoming
	case t.EndsAt == nil || !now.After(*t.EndsAt):
		return StatusLive
	default:
		return StatusCompleted
	}
}
