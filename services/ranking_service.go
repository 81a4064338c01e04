package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/playgrid/arena/cache"
	"github.com/playgrid/arena/models"
	"github.com/playgrid/arena/repositories"
	"github.com/playgrid/arena/storage"
	"golang.org/x/sync/errgroup"
)

const rankNeighborWindow = 5

// LeaderboardEntry is a leaderboard row with its live-computed rank.
type LeaderboardEntry struct {
	Rank        int     `json:"rank"`
	UserID      int     `json:"user_id"`
	Username    string  `json:"username"`
	DisplayName string  `json:"display_name"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
	Score       int     `json:"score"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
}

type LeaderboardPage struct {
	Entries    []LeaderboardEntry       `json:"entries"`
	Stats      *repositories.ScoreStats `json:"stats"`
	Pagination Pagination               `json:"pagination"`
}

// PodiumEntry is a top-3 row with its win rate as a percentage rounded
// to one decimal.
type PodiumEntry struct {
	LeaderboardEntry
	WinRate float64 `json:"win_rate"`
}

// NearbyPlayer is a leaderboard row inside a user's neighbor window,
// flagged when the row is the user themselves.
type NearbyPlayer struct {
	LeaderboardEntry
	IsCurrentUser bool `json:"is_current_user"`
}

type UserRankResult struct {
	UserRank      int            `json:"user_rank"`
	NearbyPlayers []NearbyPlayer `json:"nearby_players"`
}

type RankingService struct {
	userRepo  repositories.UserRepository
	rankCache *cache.RankCache
	uploader  storage.FileUploader
	logger    *slog.Logger
}

// NewRankingService builds the ranking service. rankCache may be nil;
// ranks are always computed from the primary store and the cache is
// advisory only.
func NewRankingService(userRepo repositories.UserRepository, rankCache *cache.RankCache, uploader storage.FileUploader, logger *slog.Logger) *RankingService {
	return &RankingService{
		userRepo:  userRepo,
		rankCache: rankCache,
		uploader:  uploader,
		logger:    logger,
	}
}

// Leaderboard returns a page of the score ordering, ranks assigned by
// page position.
func (s *RankingService) Leaderboard(ctx context.Context, scope repositories.LeaderboardScope, page, limit int) (*LeaderboardPage, error) {
	page, limit = normalizePage(page, limit, 25, 100)
	offset := (page - 1) * limit

	var (
		rows  []*repositories.LeaderboardRow
		stats *repositories.ScoreStats
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rows, err = s.userRepo.ListLeaderboard(gCtx, scope, limit, offset)
		return err
	})
	g.Go(func() error {
		var err error
		stats, err = s.userRepo.GetScoreStats(gCtx, scope)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, len(rows))
	for i, row := range rows {
		entries[i] = s.toEntry(row, offset+i+1)
	}

	return &LeaderboardPage{
		Entries:    entries,
		Stats:      stats,
		Pagination: newPagination(page, limit, stats.TotalPlayers),
	}, nil
}

// Top3 returns the podium with win rates.
func (s *RankingService) Top3(ctx context.Context, scope repositories.LeaderboardScope) ([]PodiumEntry, error) {
	rows, err := s.userRepo.ListLeaderboard(ctx, scope, 3, 0)
	if err != nil {
		return nil, err
	}

	podium := make([]PodiumEntry, len(rows))
	for i, row := range rows {
		podium[i] = PodiumEntry{
			LeaderboardEntry: s.toEntry(row, i+1),
			WinRate:          models.WinRate(row.Wins, row.Losses),
		}
	}
	return podium, nil
}

// UserRank returns a user's live rank plus up to five neighbors on each
// side. The window is clamped at rank 1, so a top-ranked user sees
// ranks 1 through 11 at most.
func (s *RankingService) UserRank(ctx context.Context, scope repositories.LeaderboardScope, userID int) (*UserRankResult, error) {
	row, err := s.userRepo.GetLeaderboardRow(ctx, scope, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	ahead, err := s.userRepo.CountScoreGreater(ctx, scope, row.Score)
	if err != nil {
		return nil, err
	}
	rank := ahead + 1

	lower := rank - rankNeighborWindow
	if lower < 1 {
		lower = 1
	}
	upper := rank + rankNeighborWindow

	rows, err := s.userRepo.ListLeaderboard(ctx, scope, upper-lower+1, lower-1)
	if err != nil {
		return nil, err
	}

	nearby := make([]NearbyPlayer, 0, len(rows)+1)
	found := false
	for i, r := range rows {
		p := NearbyPlayer{
			LeaderboardEntry: s.toEntry(r, lower+i),
			IsCurrentUser:    r.UserID == userID,
		}
		found = found || p.IsCurrentUser
		nearby = append(nearby, p)
	}
	if !found {
		// Ties can push the user outside the window fetched by score
		// cutoff; fall back to the directly computed rank.
		nearby = append(nearby, NearbyPlayer{
			LeaderboardEntry: s.toEntry(row, rank),
			IsCurrentUser:    true,
		})
	}

	return &UserRankResult{UserRank: rank, NearbyPlayers: nearby}, nil
}

// SearchUsers matches active users by username or display name prefix.
func (s *RankingService) SearchUsers(ctx context.Context, query string, limit int) ([]LeaderboardEntry, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < 2 {
		return nil, ErrSearchQueryTooShort
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	rows, err := s.userRepo.SearchActive(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, len(rows))
	for i, row := range rows {
		entries[i] = s.toEntry(row, 0)
	}
	return entries, nil
}

// RecalculateRanks rewrites the cached rank columns for the global and
// per-game scoreboards, then mirrors them into the advisory cache.
// Reads never depend on either; this only keeps the denormalized view
// fresh.
func (s *RankingService) RecalculateRanks(ctx context.Context) error {
	global, err := s.userRepo.RecalculateGlobalRanks(ctx)
	if err != nil {
		return fmt.Errorf("global rank recalculation failed: %w", err)
	}
	perGame, err := s.userRepo.RecalculateGameRanks(ctx)
	if err != nil {
		return fmt.Errorf("per-game rank recalculation failed: %w", err)
	}

	s.logger.Info("rank recalculation complete",
		slog.Int("global_entries", len(global)),
		slog.Int("game_entries", len(perGame)))

	if s.rankCache == nil {
		return nil
	}
	entries := append(global, perGame...)
	if err := s.rankCache.StoreRanks(ctx, entries); err != nil {
		// Advisory cache; a failed write never fails the batch.
		s.logger.Warn("failed to mirror ranks into cache", slog.Any("error", err))
	}
	return nil
}

func (s *RankingService) toEntry(row *repositories.LeaderboardRow, rank int) LeaderboardEntry {
	return LeaderboardEntry{
		Rank:        rank,
		UserID:      row.UserID,
		Username:    row.Username,
		DisplayName: row.DisplayName,
		AvatarURL:   resolveMediaURL(s.uploader, row.AvatarKey),
		Score:       row.Score,
		Wins:        row.Wins,
		Losses:      row.Losses,
	}
}
