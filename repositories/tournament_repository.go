package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/playgrid/arena/models"
)

var (
	ErrTournamentNotFound     = errors.New("tournament not found")
	ErrTournamentNameConflict = errors.New("tournament name conflict for this organizer")
	ErrTournamentFull         = errors.New("tournament has reached its team capacity")
	ErrTournamentInvalidOrg   = errors.New("invalid organizer reference")
)

type ListTournamentsFilter struct {
	Game      *string
	Status    *models.TournamentStatus
	Format    *string
	Region    *string
	Search    *string
	Organizer *int
	Limit     int
	Offset    int
}

type TournamentRepository interface {
	Create(ctx context.Context, tournament *models.Tournament) error
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error)
	Count(ctx context.Context, filter ListTournamentsFilter) (int, error)
	Update(ctx context.Context, tournament *models.Tournament) error
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus) error
	// CompareAndSetStatus persists a derived status transition only when
	// the stored status still matches the snapshot it was derived from.
	// Returns false when another writer got there first, so a concurrent
	// cancel can never be overwritten.
	CompareAndSetStatus(ctx context.Context, exec SQLExecutor, id int, from, to models.TournamentStatus) (bool, error)
	UpdateBannerKey(ctx context.Context, id int, bannerKey *string) error
	// IncrementTeamCount bumps current_teams and the monotonic
	// registrations counter. The capacity invariant is enforced in the
	// UPDATE predicate so two racing registrations can never both push
	// current_teams past max_teams.
	IncrementTeamCount(ctx context.Context, exec SQLExecutor, id int) error
	DecrementTeamCount(ctx context.Context, exec SQLExecutor, id int) error
	// ListDueForStatusSweep returns tournaments whose persisted status
	// no longer matches the wall clock.
	ListDueForStatusSweep(ctx context.Context, now time.Time) ([]*models.Tournament, error)
	Delete(ctx context.Context, id int) error
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const tournamentColumns = `
	id, name, description, game, format, region, organizer_id,
	registration_opens_at, registration_closes_at, starts_at, ends_at,
	max_teams, current_teams, registrations_total, status, created_at, banner_key`

func scanTournament(scanner interface{ Scan(...interface{}) error }, t *models.Tournament) error {
	return scanner.Scan(
		&t.ID, &t.Name, &t.Description, &t.Game, &t.Format, &t.Region, &t.OrganizerID,
		&t.RegistrationOpensAt, &t.RegistrationClosesAt, &t.StartsAt, &t.EndsAt,
		&t.MaxTeams, &t.CurrentTeams, &t.RegistrationsTotal, &t.Status, &t.CreatedAt, &t.BannerKey,
	)
}

func (r *postgresTournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	query := `
		INSERT INTO tournaments (
			name, description, game, format, region, organizer_id,
			registration_opens_at, registration_closes_at, starts_at, ends_at,
			max_teams, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, current_teams, registrations_total, created_at`

	err := r.db.QueryRowContext(ctx, query,
		t.Name, t.Description, t.Game, t.Format, t.Region, t.OrganizerID,
		t.RegistrationOpensAt, t.RegistrationClosesAt, t.StartsAt, t.EndsAt,
		t.MaxTeams, t.Status,
	).Scan(&t.ID, &t.CurrentTeams, &t.RegistrationsTotal, &t.CreatedAt)

	return r.handleTournamentError(err)
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	query := `SELECT` + tournamentColumns + ` FROM tournaments WHERE id = $1`

	t := &models.Tournament{}
	err := scanTournament(r.db.QueryRowContext(ctx, query, id), t)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return t, nil
}

func buildTournamentFilter(filter ListTournamentsFilter) (string, []interface{}) {
	where := " WHERE 1=1"
	args := []interface{}{}
	argID := 1

	if filter.Game != nil {
		where += fmt.Sprintf(" AND game = $%d", argID)
		args = append(args, *filter.Game)
		argID++
	}
	if filter.Status != nil {
		where += fmt.Sprintf(" AND status = $%d", argID)
		args = append(args, *filter.Status)
		argID++
	}
	if filter.Format != nil {
		where += fmt.Sprintf(" AND format = $%d", argID)
		args = append(args, *filter.Format)
		argID++
	}
	if filter.Region != nil {
		where += fmt.Sprintf(" AND region = $%d", argID)
		args = append(args, *filter.Region)
		argID++
	}
	if filter.Organizer != nil {
		where += fmt.Sprintf(" AND organizer_id = $%d", argID)
		args = append(args, *filter.Organizer)
		argID++
	}
	if filter.Search != nil {
		where += fmt.Sprintf(" AND name ILIKE $%d", argID)
		args = append(args, "%"+*filter.Search+"%")
		argID++
	}

	return where, args
}

func (r *postgresTournamentRepository) List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error) {
	where, args := buildTournamentFilter(filter)
	query := `SELECT` + tournamentColumns + ` FROM tournaments` + where
	query += " ORDER BY starts_at DESC, created_at DESC"

	argID := len(args) + 1
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argID)
		args = append(args, filter.Limit)
		argID++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argID)
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tournaments := make([]models.Tournament, 0)
	for rows.Next() {
		var t models.Tournament
		if scanErr := scanTournament(rows, &t); scanErr != nil {
			return nil, scanErr
		}
		tournaments = append(tournaments, t)
	}
	return tournaments, rows.Err()
}

func (r *postgresTournamentRepository) Count(ctx context.Context, filter ListTournamentsFilter) (int, error) {
	where, args := buildTournamentFilter(filter)
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tournaments`+where, args...).Scan(&count)
	return count, err
}

func (r *postgresTournamentRepository) Update(ctx context.Context, t *models.Tournament) error {
	query := `
		UPDATE tournaments SET
			name = $1,
			description = $2,
			game = $3,
			format = $4,
			region = $5,
			registration_opens_at = $6,
			registration_closes_at = $7,
			starts_at = $8,
			ends_at = $9,
			max_teams = $10,
			status = $11
		WHERE id = $12`

	result, err := r.db.ExecContext(ctx, query,
		t.Name, t.Description, t.Game, t.Format, t.Region,
		t.RegistrationOpensAt, t.RegistrationClosesAt, t.StartsAt, t.EndsAt,
		t.MaxTeams, t.Status, t.ID,
	)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus) error {
	executor := r.getExecutor(exec)
	query := `UPDATE tournaments SET status = $1 WHERE id = $2`
	result, err := executor.ExecContext(ctx, query, status, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) CompareAndSetStatus(ctx context.Context, exec SQLExecutor, id int, from, to models.TournamentStatus) (bool, error) {
	executor := r.getExecutor(exec)
	query := `UPDATE tournaments SET status = $1 WHERE id = $2 AND status = $3`
	result, err := executor.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return false, r.handleTournamentError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *postgresTournamentRepository) UpdateBannerKey(ctx context.Context, id int, bannerKey *string) error {
	query := `UPDATE tournaments SET banner_key = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, bannerKey, id)
	if err != nil {
		return fmt.Errorf("failed to update tournament banner key: %w", err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) IncrementTeamCount(ctx context.Context, exec SQLExecutor, id int) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE tournaments
		SET current_teams = current_teams + 1,
		    registrations_total = registrations_total + 1
		WHERE id = $1 AND current_teams < max_teams`
	result, err := executor.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrTournamentFull)
}

func (r *postgresTournamentRepository) DecrementTeamCount(ctx context.Context, exec SQLExecutor, id int) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE tournaments
		SET current_teams = current_teams - 1
		WHERE id = $1 AND current_teams > 0`
	result, err := executor.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) ListDueForStatusSweep(ctx context.Context, now time.Time) ([]*models.Tournament, error) {
	// Cancelled tournaments are never touched; completed ones are
	// already terminal.
	query := `SELECT` + tournamentColumns + `
		FROM tournaments
		WHERE status NOT IN ($1, $2)
		AND (
			(status = $3 AND registration_opens_at <= $4) OR
			(status = $5 AND registration_closes_at < $4) OR
			(status = $6 AND starts_at <= $4) OR
			(status = $7 AND ends_at IS NOT NULL AND ends_at < $4)
		)`
	args := []interface{}{
		models.StatusCompleted,
		models.StatusCancelled,
		models.StatusDraft,
		now,
		models.StatusRegistration,
		models.StatusUpcoming,
		models.StatusLive,
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tournaments for status sweep: %w", err)
	}
	defer rows.Close()

	var tournaments []*models.Tournament
	for rows.Next() {
		var t models.Tournament
		if scanErr := scanTournament(rows, &t); scanErr != nil {
			return nil, fmt.Errorf("failed to scan tournament for status sweep: %w", scanErr)
		}
		tournaments = append(tournaments, &t)
	}
	return tournaments, rows.Err()
}

func (r *postgresTournamentRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tournaments WHERE id = $1`, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) handleTournamentError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505":
			if pqErr.Constraint == "tournaments_organizer_id_name_key" {
				return ErrTournamentNameConflict
			}
		case "23503":
			if pqErr.Constraint == "tournaments_organizer_id_fkey" {
				return ErrTournamentInvalidOrg
			}
		}
	}
	return err
}
