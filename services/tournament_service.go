package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/playgrid/arena/brackets"
	"github.com/playgrid/arena/models"
	"github.com/playgrid/arena/repositories"
	"github.com/playgrid/arena/storage"
	"github.com/playgrid/arena/utils"
	"golang.org/x/sync/errgroup"
)

type CreateTournamentInput struct {
	Name                 string     `json:"name"`
	Description          *string    `json:"description"`
	Game                 string     `json:"game"`
	Format               string     `json:"format"`
	Region               *string    `json:"region"`
	RegistrationOpensAt  time.Time  `json:"registration_opens_at"`
	RegistrationClosesAt time.Time  `json:"registration_closes_at"`
	StartsAt             time.Time  `json:"starts_at"`
	EndsAt               *time.Time `json:"ends_at"`
	MaxTeams             int        `json:"max_teams"`
}

type ListTournamentsInput struct {
	Game   *string
	Status *models.TournamentStatus
	Format *string
	Region *string
	Search *string
	Page   int
	Limit  int
}

type TournamentService struct {
	tournamentRepo repositories.TournamentRepository
	teamRepo       repositories.TeamRepository
	matchRepo      repositories.MatchRepository
	userRepo       repositories.UserRepository
	uploader       storage.FileUploader
	hub            *brackets.Hub
	locks          *utils.KeyedMutex
	logger         *slog.Logger
}

func NewTournamentService(
	tournamentRepo repositories.TournamentRepository,
	teamRepo repositories.TeamRepository,
	matchRepo repositories.MatchRepository,
	userRepo repositories.UserRepository,
	uploader storage.FileUploader,
	hub *brackets.Hub,
	locks *utils.KeyedMutex,
	logger *slog.Logger,
) *TournamentService {
	return &TournamentService{
		tournamentRepo: tournamentRepo,
		teamRepo:       teamRepo,
		matchRepo:      matchRepo,
		userRepo:       userRepo,
		uploader:       uploader,
		hub:            hub,
		locks:          locks,
		logger:         logger,
	}
}

func (s *TournamentService) CreateTournament(ctx context.Context, organizerID int, input CreateTournamentInput) (*models.Tournament, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, ErrTournamentNameRequired
	}
	if strings.TrimSpace(input.Game) == "" {
		return nil, fmt.Errorf("%w: game is required", ErrValidationFailed)
	}
	if input.MaxTeams <= 0 {
		return nil, ErrTournamentInvalidCapacity
	}
	if err := validateSchedule(input.RegistrationOpensAt, input.RegistrationClosesAt, input.StartsAt, input.EndsAt); err != nil {
		return nil, err
	}

	format := input.Format
	if format == "" {
		format = "solo"
	}

	t := &models.Tournament{
		Name:                 strings.TrimSpace(input.Name),
		Description:          input.Description,
		Game:                 input.Game,
		Format:               format,
		Region:               input.Region,
		OrganizerID:          organizerID,
		RegistrationOpensAt:  input.RegistrationOpensAt,
		RegistrationClosesAt: input.RegistrationClosesAt,
		StartsAt:             input.StartsAt,
		EndsAt:               input.EndsAt,
		MaxTeams:             input.MaxTeams,
	}
	t.Status = t.DeriveStatus(time.Now())

	if err := s.tournamentRepo.Create(ctx, t); err != nil {
		return nil, mapTournamentRepoError(err)
	}

	s.logger.Info("tournament created",
		slog.Int("tournament_id", t.ID),
		slog.Int("organizer_id", organizerID),
		slog.String("game", t.Game))
	return t, nil
}

// GetTournamentByID loads the full aggregate. The lifecycle status is
// re-derived from the wall clock on every read and persisted back when
// it moved (an idempotent write).
func (s *TournamentService) GetTournamentByID(ctx context.Context, id int) (*models.Tournament, error) {
	t, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, mapTournamentRepoError(err)
	}

	if err := s.refreshStatus(ctx, t, time.Now()); err != nil {
		return nil, err
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		teams, err := s.teamRepo.ListByTournament(gCtx, t.ID, nil)
		if err != nil {
			return fmt.Errorf("failed to load roster for tournament %d: %w", t.ID, err)
		}
		t.Roster = make([]models.Team, len(teams))
		for i, team := range teams {
			t.Roster[i] = *team
		}
		return nil
	})
	g.Go(func() error {
		matches, err := s.matchRepo.ListByTournament(gCtx, t.ID)
		if err != nil {
			return fmt.Errorf("failed to load bracket for tournament %d: %w", t.ID, err)
		}
		t.Bracket = make([]models.Match, len(matches))
		for i, m := range matches {
			t.Bracket[i] = *m
		}
		return nil
	})
	g.Go(func() error {
		organizer, err := s.userRepo.GetByID(gCtx, t.OrganizerID)
		if err != nil {
			// Not fatal for the read; the aggregate is still usable.
			s.logger.Warn("failed to load organizer",
				slog.Int("tournament_id", t.ID),
				slog.Int("organizer_id", t.OrganizerID),
				slog.Any("error", err))
			return nil
		}
		organizer.PasswordHash = ""
		organizer.AvatarURL = resolveMediaURL(s.uploader, organizer.AvatarKey)
		t.Organizer = organizer
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	t.BannerURL = resolveMediaURL(s.uploader, t.BannerKey)
	return t, nil
}

type TournamentList struct {
	Tournaments []models.Tournament `json:"tournaments"`
	Pagination  Pagination          `json:"pagination"`
}

func (s *TournamentService) ListTournaments(ctx context.Context, input ListTournamentsInput) (*TournamentList, error) {
	page, limit := normalizePage(input.Page, input.Limit, 20, 100)

	filter := repositories.ListTournamentsFilter{
		Game:   input.Game,
		Status: input.Status,
		Format: input.Format,
		Region: input.Region,
		Search: input.Search,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}

	var (
		tournaments []models.Tournament
		total       int
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tournaments, err = s.tournamentRepo.List(gCtx, filter)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.tournamentRepo.Count(gCtx, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := time.Now()
	for i := range tournaments {
		t := &tournaments[i]
		if err := s.refreshStatus(ctx, t, now); err != nil {
			return nil, err
		}
		t.BannerURL = resolveMediaURL(s.uploader, t.BannerKey)
	}

	return &TournamentList{
		Tournaments: tournaments,
		Pagination:  newPagination(page, limit, total),
	}, nil
}

// CancelTournament marks the tournament cancelled. Cancellation is
// sticky: the wall-clock derivation never overwrites it.
func (s *TournamentService) CancelTournament(ctx context.Context, tournamentID, callerID int) error {
	unlock := s.locks.Lock(tournamentID)
	defer unlock()

	t, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		return mapTournamentRepoError(err)
	}
	if t.OrganizerID != callerID {
		return ErrForbiddenOperation
	}
	if t.Status == models.StatusCancelled {
		return nil
	}

	if err := s.tournamentRepo.UpdateStatus(ctx, nil, tournamentID, models.StatusCancelled); err != nil {
		return mapTournamentRepoError(err)
	}

	s.hub.BroadcastToRoom(TournamentRoom(tournamentID), brackets.EventTournamentUpdate, map[string]interface{}{
		"tournament_id": tournamentID,
		"status":        models.StatusCancelled,
	})
	return nil
}

// UpdateTournament replaces the editable fields of a tournament.
// Organizer only, and only before play begins.
func (s *TournamentService) UpdateTournament(ctx context.Context, tournamentID, callerID int, input CreateTournamentInput) (*models.Tournament, error) {
	unlock := s.locks.Lock(tournamentID)
	defer unlock()

	t, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		return nil, mapTournamentRepoError(err)
	}
	if t.OrganizerID != callerID {
		return nil, ErrForbiddenOperation
	}
	switch t.DeriveStatus(time.Now()) {
	case models.StatusLive, models.StatusCompleted, models.StatusCancelled:
		return nil, ErrTournamentLocked
	}

	if strings.TrimSpace(input.Name) == "" {
		return nil, ErrTournamentNameRequired
	}
	if strings.TrimSpace(input.Game) == "" {
		return nil, fmt.Errorf("%w: game is required", ErrValidationFailed)
	}
	if input.MaxTeams <= 0 {
		return nil, ErrTournamentInvalidCapacity
	}
	if input.MaxTeams < t.CurrentTeams {
		return nil, fmt.Errorf("%w: max_teams cannot drop below the current roster size", ErrValidationFailed)
	}
	if err := validateSchedule(input.RegistrationOpensAt, input.RegistrationClosesAt, input.StartsAt, input.EndsAt); err != nil {
		return nil, err
	}

	t.Name = strings.TrimSpace(input.Name)
	t.Description = input.Description
	t.Game = input.Game
	if input.Format != "" {
		t.Format = input.Format
	}
	t.Region = input.Region
	t.RegistrationOpensAt = input.RegistrationOpensAt
	t.RegistrationClosesAt = input.RegistrationClosesAt
	t.StartsAt = input.StartsAt
	t.EndsAt = input.EndsAt
	t.MaxTeams = input.MaxTeams
	t.Status = t.DeriveStatus(time.Now())

	if err := s.tournamentRepo.Update(ctx, t); err != nil {
		return nil, mapTournamentRepoError(err)
	}

	s.hub.BroadcastToRoom(TournamentRoom(tournamentID), brackets.EventTournamentUpdate, map[string]interface{}{
		"tournament_id": tournamentID,
		"status":        t.Status,
		"action":        "updated",
	})
	return t, nil
}

// DeleteTournament removes a tournament outright. Organizer only, and
// only while it is still a draft; anything players have seen is
// cancelled instead so the record stays auditable.
func (s *TournamentService) DeleteTournament(ctx context.Context, tournamentID, callerID int) error {
	unlock := s.locks.Lock(tournamentID)
	defer unlock()

	t, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		return mapTournamentRepoError(err)
	}
	if t.OrganizerID != callerID {
		return ErrForbiddenOperation
	}
	if t.DeriveStatus(time.Now()) != models.StatusDraft {
		return fmt.Errorf("%w: only draft tournaments can be deleted", ErrTournamentLocked)
	}

	if err := s.tournamentRepo.Delete(ctx, tournamentID); err != nil {
		return mapTournamentRepoError(err)
	}

	s.logger.Info("tournament deleted",
		slog.Int("tournament_id", tournamentID),
		slog.Int("organizer_id", callerID))
	return nil
}

// SweepStatuses persists wall-clock status transitions for tournaments
// nobody is reading. Derive-on-read keeps individual reads correct;
// the sweep keeps list filters and subscribers up to date.
func (s *TournamentService) SweepStatuses(ctx context.Context) error {
	due, err := s.tournamentRepo.ListDueForStatusSweep(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("status sweep query failed: %w", err)
	}

	for _, t := range due {
		unlock := s.locks.Lock(t.ID)
		if err := s.refreshStatus(ctx, t, time.Now()); err != nil {
			unlock()
			s.logger.Error("status sweep failed for tournament",
				slog.Int("tournament_id", t.ID),
				slog.Any("error", err))
			continue
		}
		unlock()
	}

	if len(due) > 0 {
		s.logger.Info("status sweep complete", slog.Int("updated", len(due)))
	}
	return nil
}

// refreshStatus derives the lifecycle status and persists it when it
// changed. The write is a compare-and-set against the snapshot status,
// so a cancel landing between read and write is never overwritten; on a
// lost race the row is re-read and re-derived. Broadcasts the
// transition to the tournament's room.
func (s *TournamentService) refreshStatus(ctx context.Context, t *models.Tournament, now time.Time) error {
	for {
		derived := t.DeriveStatus(now)
		if derived == t.Status {
			return nil
		}

		ok, err := s.tournamentRepo.CompareAndSetStatus(ctx, nil, t.ID, t.Status, derived)
		if err != nil {
			return mapTournamentRepoError(err)
		}
		if ok {
			t.Status = derived
			s.hub.BroadcastToRoom(TournamentRoom(t.ID), brackets.EventTournamentUpdate, map[string]interface{}{
				"tournament_id": t.ID,
				"status":        derived,
			})
			return nil
		}

		// Another writer moved the status between our snapshot and the
		// conditional write. Adopt the fresh row; a concurrent cancel is
		// sticky and terminates the loop.
		fresh, err := s.tournamentRepo.GetByID(ctx, t.ID)
		if err != nil {
			return mapTournamentRepoError(err)
		}
		*t = *fresh
	}
}

// UploadBanner replaces the tournament's banner image. Organizer only.
func (s *TournamentService) UploadBanner(ctx context.Context, tournamentID, callerID int, contentType string, reader io.Reader) (*models.Tournament, error) {
	if s.uploader == nil {
		return nil, fmt.Errorf("%w: media uploads are disabled", ErrValidationFailed)
	}

	t, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		return nil, mapTournamentRepoError(err)
	}
	if t.OrganizerID != callerID {
		return nil, ErrForbiddenOperation
	}

	key := fmt.Sprintf("tournaments/%d/banner-%s", tournamentID, uuid.NewString())
	result, err := s.uploader.Upload(ctx, key, contentType, reader)
	if err != nil {
		return nil, fmt.Errorf("banner upload failed: %w", err)
	}

	oldKey := t.BannerKey
	if err := s.tournamentRepo.UpdateBannerKey(ctx, tournamentID, &result.Key); err != nil {
		return nil, mapTournamentRepoError(err)
	}
	if oldKey != nil {
		if delErr := s.uploader.Delete(ctx, *oldKey); delErr != nil {
			s.logger.Warn("failed to delete previous banner",
				slog.Int("tournament_id", tournamentID),
				slog.String("key", *oldKey),
				slog.Any("error", delErr))
		}
	}

	t.BannerKey = &result.Key
	t.BannerURL = &result.Location
	return t, nil
}

func mapTournamentRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrTournamentNotFound):
		return ErrTournamentNotFound
	default:
		return err
	}
}
