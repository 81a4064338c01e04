package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/playgrid/arena/models"
)

var ErrMatchNotFound = errors.New("match not found")

type MatchRepository interface {
	// ReplaceBracket deletes the whole existing bracket of the
	// tournament and inserts the new one. Regeneration is an explicit
	// organizer action; the bracket is never rebuilt implicitly.
	ReplaceBracket(ctx context.Context, exec SQLExecutor, tournamentID int, matches []*models.Match) error
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.Match, error)
	GetByUID(ctx context.Context, tournamentID int, uid string) (*models.Match, error)
	RecordResult(ctx context.Context, exec SQLExecutor, tournamentID int, uid string, winnerTeamID int, score models.MatchScore, completedAt time.Time) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresMatchRepository) ReplaceBracket(ctx context.Context, exec SQLExecutor, tournamentID int, matches []*models.Match) error {
	executor := r.getExecutor(exec)

	if _, err := executor.ExecContext(ctx, `DELETE FROM matches WHERE tournament_id = $1`, tournamentID); err != nil {
		return err
	}

	query := `
		INSERT INTO matches (uid, tournament_id, round, order_in_round, team1_id, team2_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	for _, m := range matches {
		if _, err := executor.ExecContext(ctx, query,
			m.UID, tournamentID, m.Round, m.OrderInRound, m.Team1ID, m.Team2ID, m.Status,
		); err != nil {
			return err
		}
	}
	return nil
}

const matchColumns = `
	uid, tournament_id, round, order_in_round, team1_id, team2_id,
	winner_team_id, score1, score2, status, completed_at`

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Match, error) {
	query := `SELECT` + matchColumns + `
		FROM matches
		WHERE tournament_id = $1
		ORDER BY round, order_in_round`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		var m models.Match
		if scanErr := rows.Scan(
			&m.UID, &m.TournamentID, &m.Round, &m.OrderInRound, &m.Team1ID, &m.Team2ID,
			&m.WinnerTeamID, &m.Score1, &m.Score2, &m.Status, &m.CompletedAt,
		); scanErr != nil {
			return nil, scanErr
		}
		matches = append(matches, &m)
	}
	return matches, rows.Err()
}

func (r *postgresMatchRepository) GetByUID(ctx context.Context, tournamentID int, uid string) (*models.Match, error) {
	query := `SELECT` + matchColumns + ` FROM matches WHERE tournament_id = $1 AND uid = $2`

	var m models.Match
	err := r.db.QueryRowContext(ctx, query, tournamentID, uid).Scan(
		&m.UID, &m.TournamentID, &m.Round, &m.OrderInRound, &m.Team1ID, &m.Team2ID,
		&m.WinnerTeamID, &m.Score1, &m.Score2, &m.Status, &m.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *postgresMatchRepository) RecordResult(ctx context.Context, exec SQLExecutor, tournamentID int, uid string, winnerTeamID int, score models.MatchScore, completedAt time.Time) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE matches
		SET winner_team_id = $1, score1 = $2, score2 = $3, status = $4, completed_at = $5
		WHERE tournament_id = $6 AND uid = $7`
	result, err := executor.ExecContext(ctx, query,
		winnerTeamID, score.Score1, score.Score2, models.MatchStatusCompleted, completedAt,
		tournamentID, uid,
	)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}
