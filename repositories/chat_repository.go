package repositories

import (
	"context"
	"database/sql"

	"github.com/playgrid/arena/models"
)

type ChatRepository interface {
	// Append persists one message to the tournament's chat log. The
	// log is append-only; messages are never updated or deleted.
	Append(ctx context.Context, message *models.ChatMessage) error
	// ListByTournament returns messages most-recent-first.
	ListByTournament(ctx context.Context, tournamentID, limit, offset int) ([]*models.ChatMessage, error)
	CountByTournament(ctx context.Context, tournamentID int) (int, error)
}

type postgresChatRepository struct {
	db *sql.DB
}

func NewPostgresChatRepository(db *sql.DB) ChatRepository {
	return &postgresChatRepository{db: db}
}

func (r *postgresChatRepository) Append(ctx context.Context, message *models.ChatMessage) error {
	query := `
		INSERT INTO chat_messages (id, tournament_id, author_id, text, system)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`
	return r.db.QueryRowContext(ctx, query,
		message.ID, message.TournamentID, message.AuthorID, message.Text, message.System,
	).Scan(&message.CreatedAt)
}

func (r *postgresChatRepository) ListByTournament(ctx context.Context, tournamentID, limit, offset int) ([]*models.ChatMessage, error) {
	query := `
		SELECT m.id, m.tournament_id, m.author_id, u.display_name, m.text, m.system, m.created_at
		FROM chat_messages m
		LEFT JOIN users u ON u.id = m.author_id
		WHERE m.tournament_id = $1
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, tournamentID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]*models.ChatMessage, 0)
	for rows.Next() {
		var m models.ChatMessage
		if scanErr := rows.Scan(&m.ID, &m.TournamentID, &m.AuthorID, &m.AuthorName, &m.Text, &m.System, &m.CreatedAt); scanErr != nil {
			return nil, scanErr
		}
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}

func (r *postgresChatRepository) CountByTournament(ctx context.Context, tournamentID int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chat_messages WHERE tournament_id = $1`, tournamentID).Scan(&count)
	return count, err
}
