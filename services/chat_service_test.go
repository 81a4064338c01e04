package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/playgrid/arena/brackets"
	"github.com/playgrid/arena/models"
	"github.com/playgrid/arena/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatFixture struct {
	service        *ChatService
	tournamentRepo *fakeTournamentRepo
	teamRepo       *fakeTeamRepo
	userRepo       *fakeUserRepo
	chatRepo       *fakeChatRepo
	tournament     *models.Tournament
	organizer      *models.User
	player         *models.User
	outsider       *models.User
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	tournamentRepo := newFakeTournamentRepo()
	teamRepo := newFakeTeamRepo()
	userRepo := newFakeUserRepo()
	chatRepo := newFakeChatRepo()
	service := NewChatService(
		chatRepo, tournamentRepo, teamRepo, userRepo,
		brackets.NewHub(), &utils.KeyedMutex{}, testLogger())

	organizer := userRepo.addUser("organizer", 0, 0, 0)
	player := userRepo.addUser("player", 0, 0, 0)
	outsider := userRepo.addUser("outsider", 0, 0, 0)

	now := time.Now()
	tournament := &models.Tournament{
		Name:                 "Chat Cup",
		Game:                 "chess",
		Format:               "solo",
		OrganizerID:          organizer.ID,
		RegistrationOpensAt:  now.Add(-time.Hour),
		RegistrationClosesAt: now.Add(time.Hour),
		StartsAt:             now.Add(2 * time.Hour),
		MaxTeams:             8,
		Status:               models.StatusRegistration,
	}
	require.NoError(t, tournamentRepo.Create(context.Background(), tournament))
	require.NoError(t, teamRepo.Create(context.Background(), nil, &models.Team{
		TournamentID: tournament.ID,
		Name:         "Rooks",
		Players:      []int{player.ID},
		Status:       models.TeamStatusRegistered,
	}))

	return &chatFixture{
		service:        service,
		tournamentRepo: tournamentRepo,
		teamRepo:       teamRepo,
		userRepo:       userRepo,
		chatRepo:       chatRepo,
		tournament:     tournament,
		organizer:      organizer,
		player:         player,
		outsider:       outsider,
	}
}

func TestPostMessageByRosterPlayer(t *testing.T) {
	f := newChatFixture(t)

	message, err := f.service.PostMessage(context.Background(), f.tournament.ID, f.player.ID, "good luck all")
	require.NoError(t, err)
	assert.NotEmpty(t, message.ID)
	assert.Equal(t, "good luck all", message.Text)
	require.NotNil(t, message.AuthorID)
	assert.Equal(t, f.player.ID, *message.AuthorID)
	require.NotNil(t, message.AuthorName)
	assert.Equal(t, "player", *message.AuthorName)
	assert.False(t, message.System)
}

func TestPostMessageByOrganizer(t *testing.T) {
	f := newChatFixture(t)

	_, err := f.service.PostMessage(context.Background(), f.tournament.ID, f.organizer.ID, "welcome")
	assert.NoError(t, err)
}

func TestPostMessageForbiddenForOutsider(t *testing.T) {
	f := newChatFixture(t)

	_, err := f.service.PostMessage(context.Background(), f.tournament.ID, f.outsider.ID, "let me in")
	assert.ErrorIs(t, err, ErrForbiddenOperation)
}

func TestPostMessageValidation(t *testing.T) {
	f := newChatFixture(t)

	_, err := f.service.PostMessage(context.Background(), f.tournament.ID, f.player.ID, "   ")
	assert.ErrorIs(t, err, ErrChatMessageEmpty)

	_, err = f.service.PostMessage(context.Background(), f.tournament.ID, f.player.ID, strings.Repeat("x", maxChatMessageLength+1))
	assert.ErrorIs(t, err, ErrChatMessageTooLong)
}

func TestListMessagesMostRecentFirst(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	for _, text := range []string{"first", "second", "third"} {
		_, err := f.service.PostMessage(ctx, f.tournament.ID, f.player.ID, text)
		require.NoError(t, err)
	}

	page, err := f.service.ListMessages(ctx, f.tournament.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Messages, 3)
	assert.Equal(t, "third", page.Messages[0].Text)
	assert.Equal(t, "first", page.Messages[2].Text)
	assert.Equal(t, 3, page.Pagination.TotalItems)
}

func TestListMessagesPagination(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	for _, text := range []string{"m1", "m2", "m3", "m4", "m5"} {
		_, err := f.service.PostMessage(ctx, f.tournament.ID, f.player.ID, text)
		require.NoError(t, err)
	}

	page, err := f.service.ListMessages(ctx, f.tournament.ID, 2, 2)
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, "m3", page.Messages[0].Text)
	assert.Equal(t, "m2", page.Messages[1].Text)
	assert.Equal(t, 3, page.Pagination.TotalPages)
}

func TestSystemMessagesAppearInHistory(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	f.service.PostSystemMessage(ctx, f.tournament.ID, "Bracket generated: 4 teams, 3 matches")

	page, err := f.service.ListMessages(ctx, f.tournament.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	assert.True(t, page.Messages[0].System)
	assert.Nil(t, page.Messages[0].AuthorID)
}

func TestListMessagesUnknownTournament(t *testing.T) {
	f := newChatFixture(t)

	_, err := f.service.ListMessages(context.Background(), 404, 1, 10)
	assert.ErrorIs(t, err, ErrTournamentNotFound)
}
