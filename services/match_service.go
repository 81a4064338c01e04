package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/playgrid/arena/brackets"
	"github.com/playgrid/arena/models"
	"github.com/playgrid/arena/repositories"
	"github.com/playgrid/arena/utils"
)

type RecordResultInput struct {
	WinnerTeamID int `json:"winner_team_id"`
	Score1       int `json:"score1"`
	Score2       int `json:"score2"`
}

type MatchService struct {
	tournamentRepo repositories.TournamentRepository
	matchRepo      repositories.MatchRepository
	chat           *ChatService
	hub            *brackets.Hub
	locks          *utils.KeyedMutex
	logger         *slog.Logger
}

func NewMatchService(
	tournamentRepo repositories.TournamentRepository,
	matchRepo repositories.MatchRepository,
	chat *ChatService,
	hub *brackets.Hub,
	locks *utils.KeyedMutex,
	logger *slog.Logger,
) *MatchService {
	return &MatchService{
		tournamentRepo: tournamentRepo,
		matchRepo:      matchRepo,
		chat:           chat,
		hub:            hub,
		locks:          locks,
		logger:         logger,
	}
}

// RecordResult stores the outcome of a match. Organizer only. The
// winner must occupy one of the match's two slots; nothing is
// propagated to later rounds.
func (s *MatchService) RecordResult(ctx context.Context, tournamentID int, matchUID string, callerID int, input RecordResultInput) (*models.Match, error) {
	unlock := s.locks.Lock(tournamentID)
	defer unlock()

	t, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		return nil, mapTournamentRepoError(err)
	}
	if t.OrganizerID != callerID {
		return nil, ErrForbiddenOperation
	}

	match, err := s.matchRepo.GetByUID(ctx, tournamentID, matchUID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}

	if !matchHasTeam(match, input.WinnerTeamID) {
		return nil, ErrInvalidMatchWinner
	}

	completedAt := time.Now()
	score := models.MatchScore{Score1: input.Score1, Score2: input.Score2}
	if err := s.matchRepo.RecordResult(ctx, nil, tournamentID, matchUID, input.WinnerTeamID, score, completedAt); err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}

	match.WinnerTeamID = &input.WinnerTeamID
	match.Score1 = &input.Score1
	match.Score2 = &input.Score2
	match.Status = models.MatchStatusCompleted
	match.CompletedAt = &completedAt

	s.logger.Info("match result recorded",
		slog.Int("tournament_id", tournamentID),
		slog.String("match_uid", matchUID),
		slog.Int("winner_team_id", input.WinnerTeamID))

	s.chat.PostSystemMessage(ctx, tournamentID,
		fmt.Sprintf("Match %s finished %d:%d", matchUID, input.Score1, input.Score2))
	s.hub.BroadcastToRoom(TournamentRoom(tournamentID), brackets.EventTournamentUpdate, map[string]interface{}{
		"tournament_id": tournamentID,
		"action":        "match-completed",
		"match":         match,
	})
	return match, nil
}

func matchHasTeam(m *models.Match, teamID int) bool {
	if m.Team1ID != nil && *m.Team1ID == teamID {
		return true
	}
	if m.Team2ID != nil && *m.Team2ID == teamID {
		return true
	}
	return false
}
