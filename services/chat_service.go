package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/playgrid/arena/brackets"
	"github.com/playgrid/arena/models"
	"github.com/playgrid/arena/repositories"
	"github.com/playgrid/arena/utils"
	"golang.org/x/sync/errgroup"
)

const maxChatMessageLength = 500

type ChatService struct {
	chatRepo       repositories.ChatRepository
	tournamentRepo repositories.TournamentRepository
	teamRepo       repositories.TeamRepository
	userRepo       repositories.UserRepository
	hub            *brackets.Hub
	locks          *utils.KeyedMutex
	logger         *slog.Logger
}

func NewChatService(
	chatRepo repositories.ChatRepository,
	tournamentRepo repositories.TournamentRepository,
	teamRepo repositories.TeamRepository,
	userRepo repositories.UserRepository,
	hub *brackets.Hub,
	locks *utils.KeyedMutex,
	logger *slog.Logger,
) *ChatService {
	return &ChatService{
		chatRepo:       chatRepo,
		tournamentRepo: tournamentRepo,
		teamRepo:       teamRepo,
		userRepo:       userRepo,
		hub:            hub,
		locks:          locks,
		logger:         logger,
	}
}

// PostMessage appends a chat message. Only the organizer or a player on
// the roster may post.
func (s *ChatService) PostMessage(ctx context.Context, tournamentID, userID int, text string) (*models.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrChatMessageEmpty
	}
	if utf8.RuneCountInString(text) > maxChatMessageLength {
		return nil, ErrChatMessageTooLong
	}

	unlock := s.locks.Lock(tournamentID)
	defer unlock()

	t, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		return nil, mapTournamentRepoError(err)
	}

	if t.OrganizerID != userID {
		if _, err := s.teamRepo.FindByPlayer(ctx, tournamentID, userID); err != nil {
			if errors.Is(err, repositories.ErrTeamNotFound) {
				return nil, ErrForbiddenOperation
			}
			return nil, err
		}
	}

	author, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	message := &models.ChatMessage{
		ID:           uuid.NewString(),
		TournamentID: tournamentID,
		AuthorID:     &userID,
		AuthorName:   utils.Ptr(author.DisplayNameOrUsername()),
		Text:         text,
	}
	if err := s.chatRepo.Append(ctx, message); err != nil {
		return nil, err
	}

	s.hub.BroadcastToRoom(TournamentRoom(tournamentID), brackets.EventChatMessage, message)
	return message, nil
}

// PostSystemMessage appends an authorless system message. It takes no
// lock so callers already holding the tournament lock can use it.
func (s *ChatService) PostSystemMessage(ctx context.Context, tournamentID int, text string) {
	message := &models.ChatMessage{
		ID:           uuid.NewString(),
		TournamentID: tournamentID,
		Text:         text,
		System:       true,
	}
	if err := s.chatRepo.Append(ctx, message); err != nil {
		s.logger.Error("failed to persist system chat message",
			slog.Int("tournament_id", tournamentID),
			slog.Any("error", err))
		return
	}
	s.hub.BroadcastToRoom(TournamentRoom(tournamentID), brackets.EventChatMessage, message)
}

type ChatPage struct {
	Messages   []*models.ChatMessage `json:"messages"`
	Pagination Pagination            `json:"pagination"`
}

// ListMessages returns a page of chat history, most recent first.
func (s *ChatService) ListMessages(ctx context.Context, tournamentID, page, limit int) (*ChatPage, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, tournamentID); err != nil {
		return nil, mapTournamentRepoError(err)
	}

	page, limit = normalizePage(page, limit, 50, 200)

	var (
		messages []*models.ChatMessage
		total    int
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		messages, err = s.chatRepo.ListByTournament(gCtx, tournamentID, limit, (page-1)*limit)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.chatRepo.CountByTournament(gCtx, tournamentID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if messages == nil {
		messages = []*models.ChatMessage{}
	}
	return &ChatPage{
		Messages:   messages,
		Pagination: newPagination(page, limit, total),
	}, nil
}
