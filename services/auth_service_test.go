package services

import (
	"context"
	"testing"

	"github.com/playgrid/arena/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthFixture() (*AuthService, *fakeUserRepo) {
	userRepo := newFakeUserRepo()
	return NewAuthService(userRepo, testLogger()), userRepo
}

func validRegisterInput() RegisterUserInput {
	return RegisterUserInput{
		Username:    "alice",
		DisplayName: "Alice",
		Email:       "Alice@Example.com",
		Password:    "correct horse battery",
	}
}

func TestRegisterNormalizesAndHashes(t *testing.T) {
	service, userRepo := newAuthFixture()

	user, err := service.Register(context.Background(), validRegisterInput())
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, models.RolePlayer, user.Role)
	assert.True(t, user.Active)
	assert.Empty(t, user.PasswordHash)

	stored, err := userRepo.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.PasswordHash)
	assert.NotEqual(t, "correct horse battery", stored.PasswordHash)
}

func TestRegisterValidation(t *testing.T) {
	service, _ := newAuthFixture()

	tests := []struct {
		name    string
		mutate  func(*RegisterUserInput)
		wantErr error
	}{
		{"blank username", func(in *RegisterUserInput) { in.Username = " " }, ErrValidationFailed},
		{"malformed email", func(in *RegisterUserInput) { in.Email = "not-an-email" }, ErrValidationFailed},
		{"short password", func(in *RegisterUserInput) { in.Password = "short" }, ErrPasswordTooShort},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			input := validRegisterInput()
			tc.mutate(&input)
			_, err := service.Register(context.Background(), input)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestRegisterConflicts(t *testing.T) {
	service, _ := newAuthFixture()
	ctx := context.Background()

	_, err := service.Register(ctx, validRegisterInput())
	require.NoError(t, err)

	dup := validRegisterInput()
	_, err = service.Register(ctx, dup)
	assert.ErrorIs(t, err, ErrUserEmailConflict)

	dup.Email = "other@example.com"
	_, err = service.Register(ctx, dup)
	assert.ErrorIs(t, err, ErrUserUsernameConflict)
}

func TestLogin(t *testing.T) {
	service, _ := newAuthFixture()
	ctx := context.Background()

	_, err := service.Register(ctx, validRegisterInput())
	require.NoError(t, err)

	user, err := service.Login(ctx, "alice@example.com", "correct horse battery")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Empty(t, user.PasswordHash)
}

func TestLoginBadCredentialsAreIndistinguishable(t *testing.T) {
	service, _ := newAuthFixture()
	ctx := context.Background()

	_, err := service.Register(ctx, validRegisterInput())
	require.NoError(t, err)

	_, wrongPassword := service.Login(ctx, "alice@example.com", "wrong password here")
	_, unknownEmail := service.Login(ctx, "nobody@example.com", "correct horse battery")

	assert.ErrorIs(t, wrongPassword, ErrAuthInvalidCredentials)
	assert.ErrorIs(t, unknownEmail, ErrAuthInvalidCredentials)
	assert.Equal(t, wrongPassword, unknownEmail)
}
