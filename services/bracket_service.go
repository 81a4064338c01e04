package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/playgrid/arena/brackets"
	"github.com/playgrid/arena/models"
	"github.com/playgrid/arena/repositories"
	"github.com/playgrid/arena/utils"
)

type BracketService struct {
	tx             repositories.TxManager
	tournamentRepo repositories.TournamentRepository
	teamRepo       repositories.TeamRepository
	matchRepo      repositories.MatchRepository
	generator      brackets.Generator
	chat           *ChatService
	hub            *brackets.Hub
	locks          *utils.KeyedMutex
	logger         *slog.Logger
}

func NewBracketService(
	tx repositories.TxManager,
	tournamentRepo repositories.TournamentRepository,
	teamRepo repositories.TeamRepository,
	matchRepo repositories.MatchRepository,
	generator brackets.Generator,
	chat *ChatService,
	hub *brackets.Hub,
	locks *utils.KeyedMutex,
	logger *slog.Logger,
) *BracketService {
	return &BracketService{
		tx:             tx,
		tournamentRepo: tournamentRepo,
		teamRepo:       teamRepo,
		matchRepo:      matchRepo,
		generator:      generator,
		chat:           chat,
		hub:            hub,
		locks:          locks,
		logger:         logger,
	}
}

// GenerateBracket builds the match tree from the confirmed roster and
// replaces any previous bracket for the tournament. Organizer only.
func (s *BracketService) GenerateBracket(ctx context.Context, tournamentID, callerID int) ([]*models.Match, error) {
	unlock := s.locks.Lock(tournamentID)
	defer unlock()

	t, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		return nil, mapTournamentRepoError(err)
	}
	if t.OrganizerID != callerID {
		return nil, ErrForbiddenOperation
	}
	if t.Status == models.StatusCancelled {
		return nil, ErrTournamentLocked
	}

	confirmed := models.TeamStatusConfirmed
	teams, err := s.teamRepo.ListByTournament(ctx, tournamentID, &confirmed)
	if err != nil {
		return nil, err
	}
	if len(teams) < 2 {
		return nil, ErrBracketNeedsConfirmedTeams
	}

	matches, err := s.generator.Generate(ctx, brackets.GenerateParams{
		Tournament: t,
		Teams:      teams,
	})
	if err != nil {
		if errors.Is(err, brackets.ErrNotEnoughTeams) || errors.Is(err, brackets.ErrNoTeams) {
			return nil, ErrBracketNeedsConfirmedTeams
		}
		return nil, fmt.Errorf("bracket generation failed: %w", err)
	}

	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		return s.matchRepo.ReplaceBracket(ctx, exec, tournamentID, matches)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store bracket: %w", err)
	}

	s.logger.Info("bracket generated",
		slog.Int("tournament_id", tournamentID),
		slog.String("generator", s.generator.Name()),
		slog.Int("teams", len(teams)),
		slog.Int("matches", len(matches)))

	s.chat.PostSystemMessage(ctx, tournamentID,
		fmt.Sprintf("Bracket generated: %d teams, %d matches", len(teams), len(matches)))
	s.hub.BroadcastToRoom(TournamentRoom(tournamentID), brackets.EventTournamentUpdate, map[string]interface{}{
		"tournament_id": tournamentID,
		"action":        "bracket-generated",
		"matches":       matches,
	})
	return matches, nil
}

// GetBracket returns the stored matches ordered by round, then slot.
func (s *BracketService) GetBracket(ctx context.Context, tournamentID int) ([]*models.Match, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, tournamentID); err != nil {
		return nil, mapTournamentRepoError(err)
	}
	matches, err := s.matchRepo.ListByTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if matches == nil {
		matches = []*models.Match{}
	}
	return matches, nil
}
