package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/playgrid/arena/brackets"
	"github.com/playgrid/arena/models"
	"github.com/playgrid/arena/repositories"
	"github.com/playgrid/arena/utils"
)

type RegisterTeamInput struct {
	TeamName string `json:"team_name"`
	Players  []int  `json:"players"`
}

// RegistrationResult reports the admitted team and the roster fill
// after the registration landed.
type RegistrationResult struct {
	Team         *models.Team `json:"team"`
	CurrentTeams int          `json:"current_teams"`
	MaxTeams     int          `json:"max_teams"`
}

type RegistrationService struct {
	tx             repositories.TxManager
	tournamentRepo repositories.TournamentRepository
	teamRepo       repositories.TeamRepository
	userRepo       repositories.UserRepository
	hub            *brackets.Hub
	locks          *utils.KeyedMutex
	logger         *slog.Logger
}

func NewRegistrationService(
	tx repositories.TxManager,
	tournamentRepo repositories.TournamentRepository,
	teamRepo repositories.TeamRepository,
	userRepo repositories.UserRepository,
	hub *brackets.Hub,
	locks *utils.KeyedMutex,
	logger *slog.Logger,
) *RegistrationService {
	return &RegistrationService{
		tx:             tx,
		tournamentRepo: tournamentRepo,
		teamRepo:       teamRepo,
		userRepo:       userRepo,
		hub:            hub,
		locks:          locks,
		logger:         logger,
	}
}

// Register admits a team into the tournament roster. All mutations for
// one tournament run under its keyed lock, and the capacity check is
// repeated inside the UPDATE predicate so two processes can never admit
// more teams than max_teams between them.
func (s *RegistrationService) Register(ctx context.Context, tournamentID, userID int, input RegisterTeamInput) (*RegistrationResult, error) {
	unlock := s.locks.Lock(tournamentID)
	defer unlock()

	t, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		return nil, mapTournamentRepoError(err)
	}

	now := time.Now()
	switch t.DeriveStatus(now) {
	case models.StatusRegistration:
		// open
	case models.StatusDraft:
		return nil, fmt.Errorf("%w: registration has not opened yet", ErrRegistrationClosed)
	case models.StatusCancelled:
		return nil, ErrTournamentLocked
	default:
		return nil, ErrRegistrationClosed
	}

	if t.CurrentTeams >= t.MaxTeams {
		return nil, ErrTournamentFull
	}

	players := input.Players
	if len(players) == 0 {
		players = []int{userID}
	} else if !containsInt(players, userID) {
		players = append([]int{userID}, players...)
	}

	// No player may appear on two roster teams, so every listed player
	// is checked, not just the caller.
	for _, playerID := range players {
		if _, err := s.teamRepo.FindByPlayer(ctx, tournamentID, playerID); err == nil {
			return nil, fmt.Errorf("%w: player %d is already on a roster team", ErrDuplicateRegistration, playerID)
		} else if !errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, err
		}
	}

	name := strings.TrimSpace(input.TeamName)
	if name == "" {
		user, err := s.userRepo.GetByID(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to load registering user %d: %w", userID, err)
		}
		name = user.Username
	}

	team := &models.Team{
		TournamentID: tournamentID,
		Name:         name,
		Players:      players,
		Status:       models.TeamStatusRegistered,
	}

	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.tournamentRepo.IncrementTeamCount(ctx, exec, tournamentID); err != nil {
			return err
		}
		return s.teamRepo.Create(ctx, exec, team)
	})
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrTournamentFull):
			return nil, ErrTournamentFull
		case errors.Is(err, repositories.ErrTeamNameConflict):
			return nil, fmt.Errorf("%w: team name %q is already taken", ErrDuplicateRegistration, name)
		}
		return nil, mapTournamentRepoError(err)
	}

	s.logger.Info("team registered",
		slog.Int("tournament_id", tournamentID),
		slog.Int("team_id", team.ID),
		slog.Int("user_id", userID))

	currentTeams := t.CurrentTeams + 1
	s.hub.BroadcastToRoom(TournamentRoom(tournamentID), brackets.EventTournamentUpdate, map[string]interface{}{
		"tournament_id": tournamentID,
		"team_id":       team.ID,
		"team_name":     team.Name,
		"current_teams": currentTeams,
		"max_teams":     t.MaxTeams,
		"action":        "registered",
	})
	return &RegistrationResult{
		Team:         team,
		CurrentTeams: currentTeams,
		MaxTeams:     t.MaxTeams,
	}, nil
}

// ConfirmTeam marks a registered team as confirmed, making it eligible
// for bracket seeding. Only the tournament organizer may confirm, and a
// confirmed team stays confirmed.
func (s *RegistrationService) ConfirmTeam(ctx context.Context, tournamentID, teamID, callerID int) (*models.Team, error) {
	unlock := s.locks.Lock(tournamentID)
	defer unlock()

	t, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		return nil, mapTournamentRepoError(err)
	}
	if t.OrganizerID != callerID {
		return nil, ErrForbiddenOperation
	}
	if t.DeriveStatus(time.Now()) == models.StatusCancelled {
		return nil, ErrTournamentLocked
	}

	team, err := s.teamRepo.GetByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}
	if team.TournamentID != tournamentID {
		return nil, ErrTeamNotFound
	}
	if team.Status == models.TeamStatusConfirmed {
		return team, nil
	}

	if err := s.teamRepo.UpdateStatus(ctx, nil, teamID, models.TeamStatusConfirmed); err != nil {
		return nil, err
	}
	team.Status = models.TeamStatusConfirmed

	s.hub.BroadcastToRoom(TournamentRoom(tournamentID), brackets.EventTournamentUpdate, map[string]interface{}{
		"tournament_id": tournamentID,
		"team_id":       team.ID,
		"team_name":     team.Name,
		"action":        "team-confirmed",
	})
	return team, nil
}

// Unregister removes the caller's team and frees its slot. Allowed any
// time before the tournament goes live.
func (s *RegistrationService) Unregister(ctx context.Context, tournamentID, userID int) error {
	unlock := s.locks.Lock(tournamentID)
	defer unlock()

	t, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		return mapTournamentRepoError(err)
	}

	switch t.DeriveStatus(time.Now()) {
	case models.StatusDraft, models.StatusRegistration, models.StatusUpcoming:
		// not yet live
	default:
		return ErrTournamentLocked
	}

	team, err := s.teamRepo.FindByPlayer(ctx, tournamentID, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return ErrNotRegistered
		}
		return err
	}

	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.teamRepo.Delete(ctx, exec, team.ID); err != nil {
			return err
		}
		return s.tournamentRepo.DecrementTeamCount(ctx, exec, tournamentID)
	})
	if err != nil {
		return mapTournamentRepoError(err)
	}

	s.hub.BroadcastToRoom(TournamentRoom(tournamentID), brackets.EventTournamentUpdate, map[string]interface{}{
		"tournament_id": tournamentID,
		"team_id":       team.ID,
		"action":        "unregistered",
	})
	return nil
}

func containsInt(values []int, target int) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
