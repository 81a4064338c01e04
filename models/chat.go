package models

import "time"

// ChatMessage is one entry of a tournament's append-only chat log.
// AuthorID is nil for system messages. The chat log is the system of
// record; the websocket event is a denormalized copy.
type ChatMessage struct {
	ID           string    `json:"id" db:"id"`
	TournamentID int       `json:"tournament_id" db:"tournament_id"`
	AuthorID     *int      `json:"author_id,omitempty" db:"author_id"`
	AuthorName   *string   `json:"author_name,omitempty" db:"-"`
	Text         string    `json:"text" db:"text"`
	System       bool      `json:"system" db:"system"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
