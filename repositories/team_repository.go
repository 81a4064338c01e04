package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/playgrid/arena/models"
)

var (
	ErrTeamNotFound     = errors.New("team not found")
	ErrTeamNameConflict = errors.New("team name already registered in this tournament")
)

type TeamRepository interface {
	Create(ctx context.Context, exec SQLExecutor, team *models.Team) error
	GetByID(ctx context.Context, teamID int) (*models.Team, error)
	// ListByTournament returns roster entries in registration order,
	// optionally filtered by status.
	ListByTournament(ctx context.Context, tournamentID int, status *models.TeamStatus) ([]*models.Team, error)
	// FindByPlayer returns the roster entry containing the player, or
	// ErrTeamNotFound.
	FindByPlayer(ctx context.Context, tournamentID, userID int) (*models.Team, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, teamID int, status models.TeamStatus) error
	Delete(ctx context.Context, exec SQLExecutor, teamID int) error
}

type postgresTeamRepository struct {
	db *sql.DB
}

func NewPostgresTeamRepository(db *sql.DB) TeamRepository {
	return &postgresTeamRepository{db: db}
}

func (r *postgresTeamRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresTeamRepository) Create(ctx context.Context, exec SQLExecutor, team *models.Team) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO teams (tournament_id, name, players, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		team.TournamentID, team.Name, pq.Array(team.Players), team.Status,
	).Scan(&team.ID, &team.CreatedAt)

	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return ErrTeamNameConflict
	}
	return err
}

func (r *postgresTeamRepository) GetByID(ctx context.Context, teamID int) (*models.Team, error) {
	query := `
		SELECT id, tournament_id, name, players, status, score, placement, created_at
		FROM teams
		WHERE id = $1`

	var t models.Team
	var players pq.Int64Array
	err := r.db.QueryRowContext(ctx, query, teamID).
		Scan(&t.ID, &t.TournamentID, &t.Name, &players, &t.Status, &t.Score, &t.Placement, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}
	t.Players = int64sToInts(players)
	return &t, nil
}

func (r *postgresTeamRepository) ListByTournament(ctx context.Context, tournamentID int, status *models.TeamStatus) ([]*models.Team, error) {
	query := `
		SELECT id, tournament_id, name, players, status, score, placement, created_at
		FROM teams
		WHERE tournament_id = $1`
	args := []interface{}{tournamentID}
	if status != nil {
		query += ` AND status = $2`
		args = append(args, *status)
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	teams := make([]*models.Team, 0)
	for rows.Next() {
		var t models.Team
		var players pq.Int64Array
		if scanErr := rows.Scan(&t.ID, &t.TournamentID, &t.Name, &players, &t.Status, &t.Score, &t.Placement, &t.CreatedAt); scanErr != nil {
			return nil, scanErr
		}
		t.Players = int64sToInts(players)
		teams = append(teams, &t)
	}
	return teams, rows.Err()
}

func (r *postgresTeamRepository) FindByPlayer(ctx context.Context, tournamentID, userID int) (*models.Team, error) {
	query := `
		SELECT id, tournament_id, name, players, status, score, placement, created_at
		FROM teams
		WHERE tournament_id = $1 AND players @> $2`

	var t models.Team
	var players pq.Int64Array
	err := r.db.QueryRowContext(ctx, query, tournamentID, pq.Array([]int64{int64(userID)})).
		Scan(&t.ID, &t.TournamentID, &t.Name, &players, &t.Status, &t.Score, &t.Placement, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}
	t.Players = int64sToInts(players)
	return &t, nil
}

func (r *postgresTeamRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, teamID int, status models.TeamStatus) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx, `UPDATE teams SET status = $1 WHERE id = $2`, status, teamID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) Delete(ctx context.Context, exec SQLExecutor, teamID int) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx, `DELETE FROM teams WHERE id = $1`, teamID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func int64sToInts(in pq.Int64Array) []int {
	out := make([]int, len(in))
	for i, v := range in {
		out[i] = int(v)
	}
	return out
}
