package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/playgrid/arena/models"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrUserEmailConflict    = errors.New("email address is already in use")
	ErrUserUsernameConflict = errors.New("username is already in use")
)

// LeaderboardScope selects which score column ranking queries operate
// on: the global aggregate when Game is empty, the per-game slice
// otherwise. Region further narrows the player set.
type LeaderboardScope struct {
	Game   string
	Region *string
}

// LeaderboardRow is one live-sorted leaderboard entry. Rank is assigned
// by the caller from the row's position, never read from the advisory
// cache.
type LeaderboardRow struct {
	UserID      int     `json:"user_id"`
	Username    string  `json:"username"`
	DisplayName string  `json:"display_name"`
	AvatarKey   *string `json:"-"`
	Score       int     `json:"score"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
}

type ScoreStats struct {
	TotalPlayers int     `json:"total_players"`
	TopScore     int     `json:"top_score"`
	AverageScore float64 `json:"average_score"`
}

type RankEntry struct {
	UserID int
	Game   string // empty for the global scope
	Rank   int
}

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateAvatarKey(ctx context.Context, id int, avatarKey *string) error
	ListGameStats(ctx context.Context, userID int) ([]models.GameStats, error)

	// Ranking queries, all restricted to active users.
	ListLeaderboard(ctx context.Context, scope LeaderboardScope, limit, offset int) ([]*LeaderboardRow, error)
	GetLeaderboardRow(ctx context.Context, scope LeaderboardScope, userID int) (*LeaderboardRow, error)
	CountScoreGreater(ctx context.Context, scope LeaderboardScope, score int) (int, error)
	GetScoreStats(ctx context.Context, scope LeaderboardScope) (*ScoreStats, error)
	SearchActive(ctx context.Context, query string, limit int) ([]*LeaderboardRow, error)

	// Batch re-rank: rewrites the advisory cached rank columns from a
	// full descending sort and returns the written assignments so they
	// can be mirrored into the rank cache.
	RecalculateGlobalRanks(ctx context.Context) ([]RankEntry, error)
	RecalculateGameRanks(ctx context.Context) ([]RankEntry, error)
}

type postgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) UserRepository {
	return &postgresUserRepository{db: db}
}

const userColumns = `
	id, username, display_name, email, password_hash, role, region,
	avatar_key, active, total_wins, total_losses, total_score, global_rank, created_at`

func scanUser(scanner interface{ Scan(...interface{}) error }, u *models.User) error {
	return scanner.Scan(
		&u.ID, &u.Username, &u.DisplayName, &u.Email, &u.PasswordHash, &u.Role, &u.Region,
		&u.AvatarKey, &u.Active, &u.TotalWins, &u.TotalLosses, &u.TotalScore, &u.GlobalRank, &u.CreatedAt,
	)
}

func (r *postgresUserRepository) Create(ctx context.Context, u *models.User) error {
	query := `
		INSERT INTO users (username, display_name, email, password_hash, role, region)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, active, created_at`

	err := r.db.QueryRowContext(ctx, query,
		u.Username, u.DisplayName, u.Email, u.PasswordHash, u.Role, u.Region,
	).Scan(&u.ID, &u.Active, &u.CreatedAt)

	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		switch pqErr.Constraint {
		case "users_email_key":
			return ErrUserEmailConflict
		case "users_username_key":
			return ErrUserUsernameConflict
		}
	}
	return err
}

func (r *postgresUserRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	u := &models.User{}
	err := scanUser(r.db.QueryRowContext(ctx, `SELECT`+userColumns+` FROM users WHERE id = $1`, id), u)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

func (r *postgresUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	u := &models.User{}
	err := scanUser(r.db.QueryRowContext(ctx, `SELECT`+userColumns+` FROM users WHERE email = $1`, email), u)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

func (r *postgresUserRepository) UpdateAvatarKey(ctx context.Context, id int, avatarKey *string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE users SET avatar_key = $1 WHERE id = $2`, avatarKey, id)
	if err != nil {
		return fmt.Errorf("failed to update user avatar key: %w", err)
	}
	return checkAffectedRows(result, ErrUserNotFound)
}

func (r *postgresUserRepository) ListGameStats(ctx context.Context, userID int) ([]models.GameStats, error) {
	query := `
		SELECT user_id, game, wins, losses, score, rank, last_played
		FROM user_game_stats
		WHERE user_id = $1
		ORDER BY game`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make([]models.GameStats, 0)
	for rows.Next() {
		var s models.GameStats
		if scanErr := rows.Scan(&s.UserID, &s.Game, &s.Wins, &s.Losses, &s.Score, &s.Rank, &s.LastPlayed); scanErr != nil {
			return nil, scanErr
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// Tied scores keep the weak ordering documented for leaderboards; the
// trailing id only makes pagination pages stable, it is not a semantic
// tie-break.
func leaderboardQuery(scope LeaderboardScope) (string, []interface{}) {
	args := []interface{}{}
	var query string

	if scope.Game == "" {
		query = `
			SELECT u.id, u.username, u.display_name, u.avatar_key,
			       u.total_score, u.total_wins, u.total_losses
			FROM users u
			WHERE u.active`
	} else {
		args = append(args, scope.Game)
		query = `
			SELECT u.id, u.username, u.display_name, u.avatar_key,
			       s.score, s.wins, s.losses
			FROM users u
			JOIN user_game_stats s ON s.user_id = u.id AND s.game = $1
			WHERE u.active`
	}
	if scope.Region != nil {
		args = append(args, *scope.Region)
		query += fmt.Sprintf(" AND u.region = $%d", len(args))
	}
	return query, args
}

func (r *postgresUserRepository) ListLeaderboard(ctx context.Context, scope LeaderboardScope, limit, offset int) ([]*LeaderboardRow, error) {
	query, args := leaderboardQuery(scope)
	if scope.Game == "" {
		query += " ORDER BY u.total_score DESC, u.id"
	} else {
		query += " ORDER BY s.score DESC, u.id"
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	return r.queryLeaderboardRows(ctx, query, args...)
}

func (r *postgresUserRepository) GetLeaderboardRow(ctx context.Context, scope LeaderboardScope, userID int) (*LeaderboardRow, error) {
	args := []interface{}{userID}
	var query string
	if scope.Game == "" {
		query = `
			SELECT u.id, u.username, u.display_name, u.avatar_key,
			       u.total_score, u.total_wins, u.total_losses
			FROM users u
			WHERE u.active AND u.id = $1`
	} else {
		// LEFT JOIN: a user with no recorded games in this scope ranks
		// with score zero instead of disappearing.
		args = append(args, scope.Game)
		query = `
			SELECT u.id, u.username, u.display_name, u.avatar_key,
			       COALESCE(s.score, 0), COALESCE(s.wins, 0), COALESCE(s.losses, 0)
			FROM users u
			LEFT JOIN user_game_stats s ON s.user_id = u.id AND s.game = $2
			WHERE u.active AND u.id = $1`
	}

	var row LeaderboardRow
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&row.UserID, &row.Username, &row.DisplayName, &row.AvatarKey,
		&row.Score, &row.Wins, &row.Losses,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &row, nil
}

func (r *postgresUserRepository) CountScoreGreater(ctx context.Context, scope LeaderboardScope, score int) (int, error) {
	query, args := leaderboardQuery(scope)
	args = append(args, score)
	if scope.Game == "" {
		query = `SELECT COUNT(*) FROM (` + query + fmt.Sprintf(` AND u.total_score > $%d`, len(args)) + `) c`
	} else {
		query = `SELECT COUNT(*) FROM (` + query + fmt.Sprintf(` AND s.score > $%d`, len(args)) + `) c`
	}

	var count int
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, err
}

func (r *postgresUserRepository) GetScoreStats(ctx context.Context, scope LeaderboardScope) (*ScoreStats, error) {
	args := []interface{}{}
	var query string
	if scope.Game == "" {
		query = `
			SELECT COUNT(*), COALESCE(MAX(u.total_score), 0), COALESCE(AVG(u.total_score), 0)
			FROM users u
			WHERE u.active`
	} else {
		args = append(args, scope.Game)
		query = `
			SELECT COUNT(*), COALESCE(MAX(s.score), 0), COALESCE(AVG(s.score), 0)
			FROM users u
			JOIN user_game_stats s ON s.user_id = u.id AND s.game = $1
			WHERE u.active`
	}
	if scope.Region != nil {
		args = append(args, *scope.Region)
		query += fmt.Sprintf(" AND u.region = $%d", len(args))
	}

	var stats ScoreStats
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&stats.TotalPlayers, &stats.TopScore, &stats.AverageScore); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (r *postgresUserRepository) SearchActive(ctx context.Context, query string, limit int) ([]*LeaderboardRow, error) {
	sqlQuery := `
		SELECT u.id, u.username, u.display_name, u.avatar_key,
		       u.total_score, u.total_wins, u.total_losses
		FROM users u
		WHERE u.active AND (u.username ILIKE $1 OR u.display_name ILIKE $1)
		ORDER BY u.total_score DESC, u.id
		LIMIT $2`
	return r.queryLeaderboardRows(ctx, sqlQuery, "%"+query+"%", limit)
}

func (r *postgresUserRepository) RecalculateGlobalRanks(ctx context.Context) ([]RankEntry, error) {
	query := `
		UPDATE users u
		SET global_rank = ranked.pos
		FROM (
			SELECT id, ROW_NUMBER() OVER (ORDER BY total_score DESC, id) AS pos
			FROM users
			WHERE active
		) ranked
		WHERE u.id = ranked.id
		RETURNING u.id, ranked.pos`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to recalculate global ranks: %w", err)
	}
	defer rows.Close()

	var entries []RankEntry
	for rows.Next() {
		var e RankEntry
		if scanErr := rows.Scan(&e.UserID, &e.Rank); scanErr != nil {
			return nil, scanErr
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	// Inactive users are excluded from rankings entirely.
	if _, err := r.db.ExecContext(ctx, `UPDATE users SET global_rank = NULL WHERE NOT active`); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *postgresUserRepository) RecalculateGameRanks(ctx context.Context) ([]RankEntry, error) {
	query := `
		UPDATE user_game_stats s
		SET rank = ranked.pos
		FROM (
			SELECT s2.user_id, s2.game,
			       ROW_NUMBER() OVER (PARTITION BY s2.game ORDER BY s2.score DESC, s2.user_id) AS pos
			FROM user_game_stats s2
			JOIN users u ON u.id = s2.user_id
			WHERE u.active
		) ranked
		WHERE s.user_id = ranked.user_id AND s.game = ranked.game
		RETURNING s.game, s.user_id, ranked.pos`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to recalculate per-game ranks: %w", err)
	}
	defer rows.Close()

	var entries []RankEntry
	for rows.Next() {
		var e RankEntry
		if scanErr := rows.Scan(&e.Game, &e.UserID, &e.Rank); scanErr != nil {
			return nil, scanErr
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *postgresUserRepository) queryLeaderboardRows(ctx context.Context, query string, args ...interface{}) ([]*LeaderboardRow, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]*LeaderboardRow, 0)
	for rows.Next() {
		var row LeaderboardRow
		if scanErr := rows.Scan(
			&row.UserID, &row.Username, &row.DisplayName, &row.AvatarKey,
			&row.Score, &row.Wins, &row.Losses,
		); scanErr != nil {
			return nil, scanErr
		}
		result = append(result, &row)
	}
	return result, rows.Err()
}
