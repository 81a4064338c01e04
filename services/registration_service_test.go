package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/playgrid/arena/brackets"
	"github.com/playgrid/arena/models"
	"github.com/playgrid/arena/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type registrationFixture struct {
	service        *RegistrationService
	tournamentRepo *fakeTournamentRepo
	teamRepo       *fakeTeamRepo
	userRepo       *fakeUserRepo
}

func newRegistrationFixture(t *testing.T) *registrationFixture {
	t.Helper()
	tournamentRepo := newFakeTournamentRepo()
	teamRepo := newFakeTeamRepo()
	userRepo := newFakeUserRepo()
	service := NewRegistrationService(
		fakeTxManager{}, tournamentRepo, teamRepo, userRepo,
		brackets.NewHub(), &utils.KeyedMutex{}, testLogger())
	return &registrationFixture{
		service:        service,
		tournamentRepo: tournamentRepo,
		teamRepo:       teamRepo,
		userRepo:       userRepo,
	}
}

// openTournament seeds a tournament whose registration window contains
// the current instant.
func (f *registrationFixture) openTournament(t *testing.T, maxTeams int) *models.Tournament {
	t.Helper()
	now := time.Now()
	tournament := &models.Tournament{
		Name:                 "Autumn Cup",
		Game:                 "chess",
		Format:               "solo",
		OrganizerID:          999,
		RegistrationOpensAt:  now.Add(-time.Hour),
		RegistrationClosesAt: now.Add(time.Hour),
		StartsAt:             now.Add(2 * time.Hour),
		MaxTeams:             maxTeams,
		Status:               models.StatusRegistration,
	}
	require.NoError(t, f.tournamentRepo.Create(context.Background(), tournament))
	return tournament
}

func TestRegisterAdmitsTeam(t *testing.T) {
	f := newRegistrationFixture(t)
	tournament := f.openTournament(t, 8)
	user := f.userRepo.addUser("alice", 0, 0, 0)

	result, err := f.service.Register(context.Background(), tournament.ID, user.ID, RegisterTeamInput{TeamName: "Rooks"})
	require.NoError(t, err)
	assert.Equal(t, "Rooks", result.Team.Name)
	assert.Equal(t, []int{user.ID}, result.Team.Players)
	assert.Equal(t, models.TeamStatusRegistered, result.Team.Status)
	assert.Equal(t, 1, result.CurrentTeams)
	assert.Equal(t, 8, result.MaxTeams)

	stored, err := f.tournamentRepo.GetByID(context.Background(), tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CurrentTeams)
	assert.Equal(t, 1, stored.RegistrationsTotal)
}

func TestRegisterDefaultsTeamNameToUsername(t *testing.T) {
	f := newRegistrationFixture(t)
	tournament := f.openTournament(t, 8)
	user := f.userRepo.addUser("bob", 0, 0, 0)

	result, err := f.service.Register(context.Background(), tournament.ID, user.ID, RegisterTeamInput{})
	require.NoError(t, err)
	assert.Equal(t, "bob", result.Team.Name)
}

func TestRegisterRejectsDuplicatePlayer(t *testing.T) {
	f := newRegistrationFixture(t)
	tournament := f.openTournament(t, 8)
	user := f.userRepo.addUser("alice", 0, 0, 0)

	_, err := f.service.Register(context.Background(), tournament.ID, user.ID, RegisterTeamInput{TeamName: "First"})
	require.NoError(t, err)

	_, err = f.service.Register(context.Background(), tournament.ID, user.ID, RegisterTeamInput{TeamName: "Second"})
	assert.ErrorIs(t, err, ErrDuplicateRegistration)

	stored, err := f.tournamentRepo.GetByID(context.Background(), tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CurrentTeams)
}

func TestRegisterRejectsTeamWithAlreadyRosteredPlayer(t *testing.T) {
	f := newRegistrationFixture(t)
	tournament := f.openTournament(t, 8)
	alice := f.userRepo.addUser("alice", 0, 0, 0)
	bob := f.userRepo.addUser("bob", 0, 0, 0)

	_, err := f.service.Register(context.Background(), tournament.ID, alice.ID, RegisterTeamInput{TeamName: "Solo"})
	require.NoError(t, err)

	// Bob's team lists alice, who is already on a roster team.
	_, err = f.service.Register(context.Background(), tournament.ID, bob.ID,
		RegisterTeamInput{TeamName: "Duo", Players: []int{bob.ID, alice.ID}})
	assert.ErrorIs(t, err, ErrDuplicateRegistration)

	stored, err := f.tournamentRepo.GetByID(context.Background(), tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CurrentTeams)
}

func TestRegisterRejectsWhenFull(t *testing.T) {
	f := newRegistrationFixture(t)
	tournament := f.openTournament(t, 1)
	first := f.userRepo.addUser("alice", 0, 0, 0)
	second := f.userRepo.addUser("bob", 0, 0, 0)

	_, err := f.service.Register(context.Background(), tournament.ID, first.ID, RegisterTeamInput{TeamName: "Alpha"})
	require.NoError(t, err)

	_, err = f.service.Register(context.Background(), tournament.ID, second.ID, RegisterTeamInput{TeamName: "Beta"})
	assert.ErrorIs(t, err, ErrTournamentFull)
}

func TestRegisterRejectsOutsideWindow(t *testing.T) {
	f := newRegistrationFixture(t)
	now := time.Now()

	tests := []struct {
		name    string
		shift   time.Duration
		wantErr error
	}{
		{"before window opens", 24 * time.Hour, ErrRegistrationClosed},
		{"after window closes", -24 * time.Hour, ErrRegistrationClosed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tournament := &models.Tournament{
				Name:                 "Shifted " + tc.name,
				Game:                 "chess",
				Format:               "solo",
				OrganizerID:          999,
				RegistrationOpensAt:  now.Add(tc.shift),
				RegistrationClosesAt: now.Add(tc.shift + time.Hour),
				StartsAt:             now.Add(tc.shift + 2*time.Hour),
				MaxTeams:             8,
			}
			tournament.Status = tournament.DeriveStatus(now)
			require.NoError(t, f.tournamentRepo.Create(context.Background(), tournament))

			user := f.userRepo.addUser("user-"+tc.name, 0, 0, 0)
			_, err := f.service.Register(context.Background(), tournament.ID, user.ID, RegisterTeamInput{TeamName: "X " + tc.name})
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestRegisterRejectsCancelledTournament(t *testing.T) {
	f := newRegistrationFixture(t)
	tournament := f.openTournament(t, 8)
	require.NoError(t, f.tournamentRepo.UpdateStatus(context.Background(), nil, tournament.ID, models.StatusCancelled))

	user := f.userRepo.addUser("alice", 0, 0, 0)
	_, err := f.service.Register(context.Background(), tournament.ID, user.ID, RegisterTeamInput{TeamName: "Late"})
	assert.ErrorIs(t, err, ErrTournamentLocked)
}

func TestRegisterConcurrentAdmitsExactlyCapacity(t *testing.T) {
	f := newRegistrationFixture(t)
	const capacity = 4
	const contenders = 20
	tournament := f.openTournament(t, capacity)

	users := make([]*models.User, contenders)
	for i := range users {
		users[i] = f.userRepo.addUser(fmt.Sprintf("player%02d", i), 0, 0, 0)
	}

	var wg sync.WaitGroup
	errs := make([]error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.service.Register(context.Background(), tournament.ID, users[i].ID,
				RegisterTeamInput{TeamName: users[i].Username})
		}(i)
	}
	wg.Wait()

	admitted := 0
	for _, err := range errs {
		if err == nil {
			admitted++
		} else {
			assert.ErrorIs(t, err, ErrTournamentFull)
		}
	}
	assert.Equal(t, capacity, admitted)

	stored, err := f.tournamentRepo.GetByID(context.Background(), tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, capacity, stored.CurrentTeams)

	teams, err := f.teamRepo.ListByTournament(context.Background(), tournament.ID, nil)
	require.NoError(t, err)
	assert.Len(t, teams, capacity)
}

func TestUnregisterRemovesTeamAndFreesSlot(t *testing.T) {
	f := newRegistrationFixture(t)
	tournament := f.openTournament(t, 2)
	user := f.userRepo.addUser("alice", 0, 0, 0)

	_, err := f.service.Register(context.Background(), tournament.ID, user.ID, RegisterTeamInput{TeamName: "Rooks"})
	require.NoError(t, err)

	require.NoError(t, f.service.Unregister(context.Background(), tournament.ID, user.ID))

	stored, err := f.tournamentRepo.GetByID(context.Background(), tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.CurrentTeams)
	// The monotonic counter keeps the historical registration.
	assert.Equal(t, 1, stored.RegistrationsTotal)
}

func TestUnregisterAllowedWhileUpcoming(t *testing.T) {
	f := newRegistrationFixture(t)
	tournament := f.openTournament(t, 2)
	user := f.userRepo.addUser("alice", 0, 0, 0)

	_, err := f.service.Register(context.Background(), tournament.ID, user.ID, RegisterTeamInput{TeamName: "Rooks"})
	require.NoError(t, err)

	// Close the registration window; the tournament now derives as
	// upcoming but has not started.
	stored, err := f.tournamentRepo.GetByID(context.Background(), tournament.ID)
	require.NoError(t, err)
	stored.RegistrationClosesAt = time.Now().Add(-time.Minute)
	require.NoError(t, f.tournamentRepo.Update(context.Background(), stored))

	require.NoError(t, f.service.Unregister(context.Background(), tournament.ID, user.ID))

	after, err := f.tournamentRepo.GetByID(context.Background(), tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, after.CurrentTeams)
}

func TestUnregisterLockedOnceLive(t *testing.T) {
	f := newRegistrationFixture(t)
	tournament := f.openTournament(t, 2)
	user := f.userRepo.addUser("alice", 0, 0, 0)

	_, err := f.service.Register(context.Background(), tournament.ID, user.ID, RegisterTeamInput{TeamName: "Rooks"})
	require.NoError(t, err)

	now := time.Now()
	stored, err := f.tournamentRepo.GetByID(context.Background(), tournament.ID)
	require.NoError(t, err)
	stored.RegistrationOpensAt = now.Add(-3 * time.Hour)
	stored.RegistrationClosesAt = now.Add(-2 * time.Hour)
	stored.StartsAt = now.Add(-time.Minute)
	require.NoError(t, f.tournamentRepo.Update(context.Background(), stored))

	err = f.service.Unregister(context.Background(), tournament.ID, user.ID)
	assert.ErrorIs(t, err, ErrTournamentLocked)
}

func TestUnregisterNotRegistered(t *testing.T) {
	f := newRegistrationFixture(t)
	tournament := f.openTournament(t, 2)
	user := f.userRepo.addUser("alice", 0, 0, 0)

	err := f.service.Unregister(context.Background(), tournament.ID, user.ID)
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestConfirmTeamByOrganizer(t *testing.T) {
	f := newRegistrationFixture(t)
	tournament := f.openTournament(t, 4)
	user := f.userRepo.addUser("alice", 0, 0, 0)

	result, err := f.service.Register(context.Background(), tournament.ID, user.ID, RegisterTeamInput{TeamName: "Rooks"})
	require.NoError(t, err)
	assert.Equal(t, models.TeamStatusRegistered, result.Team.Status)

	team, err := f.service.ConfirmTeam(context.Background(), tournament.ID, result.Team.ID, tournament.OrganizerID)
	require.NoError(t, err)
	assert.Equal(t, models.TeamStatusConfirmed, team.Status)

	stored, err := f.teamRepo.GetByID(context.Background(), result.Team.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TeamStatusConfirmed, stored.Status)

	// Confirming again is a no-op.
	team, err = f.service.ConfirmTeam(context.Background(), tournament.ID, result.Team.ID, tournament.OrganizerID)
	require.NoError(t, err)
	assert.Equal(t, models.TeamStatusConfirmed, team.Status)
}

func TestConfirmTeamRequiresOrganizer(t *testing.T) {
	f := newRegistrationFixture(t)
	tournament := f.openTournament(t, 4)
	user := f.userRepo.addUser("alice", 0, 0, 0)

	result, err := f.service.Register(context.Background(), tournament.ID, user.ID, RegisterTeamInput{TeamName: "Rooks"})
	require.NoError(t, err)

	_, err = f.service.ConfirmTeam(context.Background(), tournament.ID, result.Team.ID, user.ID)
	assert.ErrorIs(t, err, ErrForbiddenOperation)
}

func TestConfirmTeamFromAnotherTournament(t *testing.T) {
	f := newRegistrationFixture(t)
	first := f.openTournament(t, 4)
	second := f.openTournament(t, 4)
	user := f.userRepo.addUser("alice", 0, 0, 0)

	result, err := f.service.Register(context.Background(), first.ID, user.ID, RegisterTeamInput{TeamName: "Rooks"})
	require.NoError(t, err)

	_, err = f.service.ConfirmTeam(context.Background(), second.ID, result.Team.ID, second.OrganizerID)
	assert.ErrorIs(t, err, ErrTeamNotFound)
}
