package services

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/playgrid/arena/models"
	"github.com/playgrid/arena/repositories"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeTxManager struct{}

func (fakeTxManager) WithinTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	return fn(nil)
}

type fakeTournamentRepo struct {
	mu     sync.Mutex
	nextID int
	items  map[int]*models.Tournament
}

func newFakeTournamentRepo() *fakeTournamentRepo {
	return &fakeTournamentRepo{items: map[int]*models.Tournament{}}
}

func (r *fakeTournamentRepo) Create(ctx context.Context, t *models.Tournament) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	t.ID = r.nextID
	t.CreatedAt = time.Now()
	clone := *t
	r.items[t.ID] = &clone
	return nil
}

func (r *fakeTournamentRepo) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	clone := *t
	return &clone, nil
}

func (r *fakeTournamentRepo) List(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Tournament
	for _, t := range r.items {
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.Game != nil && t.Game != *filter.Game {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeTournamentRepo) Count(ctx context.Context, filter repositories.ListTournamentsFilter) (int, error) {
	list, _ := r.List(ctx, filter)
	return len(list), nil
}

func (r *fakeTournamentRepo) Update(ctx context.Context, t *models.Tournament) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[t.ID]; !ok {
		return repositories.ErrTournamentNotFound
	}
	clone := *t
	r.items[t.ID] = &clone
	return nil
}

func (r *fakeTournamentRepo) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id int, status models.TournamentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.Status = status
	return nil
}

func (r *fakeTournamentRepo) CompareAndSetStatus(ctx context.Context, exec repositories.SQLExecutor, id int, from, to models.TournamentStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[id]
	if !ok {
		return false, repositories.ErrTournamentNotFound
	}
	if t.Status != from {
		return false, nil
	}
	t.Status = to
	return true, nil
}

func (r *fakeTournamentRepo) UpdateBannerKey(ctx context.Context, id int, bannerKey *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.BannerKey = bannerKey
	return nil
}

func (r *fakeTournamentRepo) IncrementTeamCount(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	if t.CurrentTeams >= t.MaxTeams {
		return repositories.ErrTournamentFull
	}
	t.CurrentTeams++
	t.RegistrationsTotal++
	return nil
}

func (r *fakeTournamentRepo) DecrementTeamCount(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	if t.CurrentTeams > 0 {
		t.CurrentTeams--
	}
	return nil
}

func (r *fakeTournamentRepo) ListDueForStatusSweep(ctx context.Context, now time.Time) ([]*models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []*models.Tournament
	for _, t := range r.items {
		if t.DeriveStatus(now) != t.Status {
			clone := *t
			due = append(due, &clone)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })
	return due, nil
}

func (r *fakeTournamentRepo) Delete(ctx context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return repositories.ErrTournamentNotFound
	}
	delete(r.items, id)
	return nil
}

type fakeTeamRepo struct {
	mu     sync.Mutex
	nextID int
	items  map[int]*models.Team
}

func newFakeTeamRepo() *fakeTeamRepo {
	return &fakeTeamRepo{items: map[int]*models.Team{}}
}

func (r *fakeTeamRepo) Create(ctx context.Context, exec repositories.SQLExecutor, team *models.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.TournamentID == team.TournamentID && existing.Name == team.Name {
			return repositories.ErrTeamNameConflict
		}
	}
	r.nextID++
	team.ID = r.nextID
	team.CreatedAt = time.Now()
	clone := *team
	r.items[team.ID] = &clone
	return nil
}

func (r *fakeTeamRepo) GetByID(ctx context.Context, teamID int) (*models.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[teamID]
	if !ok {
		return nil, repositories.ErrTeamNotFound
	}
	clone := *t
	return &clone, nil
}

func (r *fakeTeamRepo) ListByTournament(ctx context.Context, tournamentID int, status *models.TeamStatus) ([]*models.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Team
	for _, t := range r.items {
		if t.TournamentID != tournamentID {
			continue
		}
		if status != nil && t.Status != *status {
			continue
		}
		clone := *t
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeTeamRepo) FindByPlayer(ctx context.Context, tournamentID, userID int) (*models.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.items {
		if t.TournamentID == tournamentID && t.HasPlayer(userID) {
			clone := *t
			return &clone, nil
		}
	}
	return nil, repositories.ErrTeamNotFound
}

func (r *fakeTeamRepo) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, teamID int, status models.TeamStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[teamID]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	t.Status = status
	return nil
}

func (r *fakeTeamRepo) Delete(ctx context.Context, exec repositories.SQLExecutor, teamID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[teamID]; !ok {
		return repositories.ErrTeamNotFound
	}
	delete(r.items, teamID)
	return nil
}

type fakeMatchRepo struct {
	mu       sync.Mutex
	brackets map[int][]*models.Match
}

func newFakeMatchRepo() *fakeMatchRepo {
	return &fakeMatchRepo{brackets: map[int][]*models.Match{}}
}

func (r *fakeMatchRepo) ReplaceBracket(ctx context.Context, exec repositories.SQLExecutor, tournamentID int, matches []*models.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := make([]*models.Match, len(matches))
	for i, m := range matches {
		clone := *m
		stored[i] = &clone
	}
	r.brackets[tournamentID] = stored
	return nil
}

func (r *fakeMatchRepo) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := r.brackets[tournamentID]
	out := make([]*models.Match, len(stored))
	for i, m := range stored {
		clone := *m
		out[i] = &clone
	}
	return out, nil
}

func (r *fakeMatchRepo) GetByUID(ctx context.Context, tournamentID int, uid string) (*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.brackets[tournamentID] {
		if m.UID == uid {
			clone := *m
			return &clone, nil
		}
	}
	return nil, repositories.ErrMatchNotFound
}

func (r *fakeMatchRepo) RecordResult(ctx context.Context, exec repositories.SQLExecutor, tournamentID int, uid string, winnerTeamID int, score models.MatchScore, completedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.brackets[tournamentID] {
		if m.UID == uid {
			m.WinnerTeamID = &winnerTeamID
			m.Score1 = &score.Score1
			m.Score2 = &score.Score2
			m.Status = models.MatchStatusCompleted
			m.CompletedAt = &completedAt
			return nil
		}
	}
	return repositories.ErrMatchNotFound
}

type fakeChatRepo struct {
	mu       sync.Mutex
	messages []*models.ChatMessage
}

func newFakeChatRepo() *fakeChatRepo {
	return &fakeChatRepo{}
}

func (r *fakeChatRepo) Append(ctx context.Context, message *models.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	message.CreatedAt = time.Now()
	clone := *message
	r.messages = append(r.messages, &clone)
	return nil
}

func (r *fakeChatRepo) ListByTournament(ctx context.Context, tournamentID, limit, offset int) ([]*models.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*models.ChatMessage
	for _, m := range r.messages {
		if m.TournamentID == tournamentID {
			all = append(all, m)
		}
	}
	// Append order doubles as chronological order here.
	var out []*models.ChatMessage
	for i := len(all) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		clone := *all[i]
		out = append(out, &clone)
	}
	return out, nil
}

func (r *fakeChatRepo) CountByTournament(ctx context.Context, tournamentID int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, m := range r.messages {
		if m.TournamentID == tournamentID {
			count++
		}
	}
	return count, nil
}

type fakeUserRepo struct {
	mu     sync.Mutex
	nextID int
	users  map[int]*models.User
	stats  map[int][]models.GameStats
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[int]*models.User{}, stats: map[int][]models.GameStats{}}
}

func (r *fakeUserRepo) addUser(username string, score, wins, losses int) *models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	u := &models.User{
		ID:          r.nextID,
		Username:    username,
		DisplayName: username,
		Email:       username + "@example.com",
		Role:        models.RolePlayer,
		Active:      true,
		TotalWins:   wins,
		TotalLosses: losses,
		TotalScore:  score,
	}
	r.users[u.ID] = u
	return u
}

func (r *fakeUserRepo) Create(ctx context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return repositories.ErrUserEmailConflict
		}
		if existing.Username == u.Username {
			return repositories.ErrUserUsernameConflict
		}
	}
	r.nextID++
	u.ID = r.nextID
	u.CreatedAt = time.Now()
	clone := *u
	r.users[u.ID] = &clone
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id int) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (r *fakeUserRepo) UpdateAvatarKey(ctx context.Context, id int, avatarKey *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repositories.ErrUserNotFound
	}
	u.AvatarKey = avatarKey
	return nil
}

func (r *fakeUserRepo) ListGameStats(ctx context.Context, userID int) ([]models.GameStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.GameStats(nil), r.stats[userID]...), nil
}

// sortedRows returns active users in leaderboard order for the scope.
func (r *fakeUserRepo) sortedRows(scope repositories.LeaderboardScope) []*repositories.LeaderboardRow {
	var rows []*repositories.LeaderboardRow
	for _, u := range r.users {
		if !u.Active {
			continue
		}
		if scope.Region != nil && (u.Region == nil || *u.Region != *scope.Region) {
			continue
		}
		score, wins, losses := u.TotalScore, u.TotalWins, u.TotalLosses
		if scope.Game != "" {
			score, wins, losses = 0, 0, 0
			for _, gs := range r.stats[u.ID] {
				if gs.Game == scope.Game {
					score, wins, losses = gs.Score, gs.Wins, gs.Losses
				}
			}
		}
		rows = append(rows, &repositories.LeaderboardRow{
			UserID:      u.ID,
			Username:    u.Username,
			DisplayName: u.DisplayName,
			AvatarKey:   u.AvatarKey,
			Score:       score,
			Wins:        wins,
			Losses:      losses,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		return rows[i].UserID < rows[j].UserID
	})
	return rows
}

func (r *fakeUserRepo) ListLeaderboard(ctx context.Context, scope repositories.LeaderboardScope, limit, offset int) ([]*repositories.LeaderboardRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows := r.sortedRows(scope)
	if offset >= len(rows) {
		return nil, nil
	}
	rows = rows[offset:]
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (r *fakeUserRepo) GetLeaderboardRow(ctx context.Context, scope repositories.LeaderboardScope, userID int) (*repositories.LeaderboardRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.sortedRows(scope) {
		if row.UserID == userID {
			return row, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (r *fakeUserRepo) CountScoreGreater(ctx context.Context, scope repositories.LeaderboardScope, score int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, row := range r.sortedRows(scope) {
		if row.Score > score {
			count++
		}
	}
	return count, nil
}

func (r *fakeUserRepo) GetScoreStats(ctx context.Context, scope repositories.LeaderboardScope) (*repositories.ScoreStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows := r.sortedRows(scope)
	stats := &repositories.ScoreStats{TotalPlayers: len(rows)}
	if len(rows) == 0 {
		return stats, nil
	}
	sum := 0
	for _, row := range rows {
		sum += row.Score
	}
	stats.TopScore = rows[0].Score
	stats.AverageScore = float64(sum) / float64(len(rows))
	return stats, nil
}

func (r *fakeUserRepo) SearchActive(ctx context.Context, query string, limit int) ([]*repositories.LeaderboardRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	needle := strings.ToLower(query)
	var out []*repositories.LeaderboardRow
	for _, row := range r.sortedRows(repositories.LeaderboardScope{}) {
		if len(out) >= limit {
			break
		}
		if strings.Contains(strings.ToLower(row.Username), needle) ||
			strings.Contains(strings.ToLower(row.DisplayName), needle) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) RecalculateGlobalRanks(ctx context.Context) ([]repositories.RankEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var entries []repositories.RankEntry
	for i, row := range r.sortedRows(repositories.LeaderboardScope{}) {
		rank := i + 1
		r.users[row.UserID].GlobalRank = &rank
		entries = append(entries, repositories.RankEntry{UserID: row.UserID, Rank: rank})
	}
	return entries, nil
}

func (r *fakeUserRepo) RecalculateGameRanks(ctx context.Context) ([]repositories.RankEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	games := map[string]bool{}
	for _, statList := range r.stats {
		for _, gs := range statList {
			games[gs.Game] = true
		}
	}
	var entries []repositories.RankEntry
	for game := range games {
		for i, row := range r.sortedRows(repositories.LeaderboardScope{Game: game}) {
			entries = append(entries, repositories.RankEntry{UserID: row.UserID, Game: game, Rank: i + 1})
		}
	}
	return entries, nil
}
