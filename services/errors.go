package services

import "errors"

// Shared error taxonomy, mapped to HTTP statuses in the handlers
// package. All of these are recoverable at the caller boundary.
var (
	// Absent entities.
	ErrNotFound           = errors.New("requested resource not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrTeamNotFound       = errors.New("team not found")
	ErrMatchNotFound      = errors.New("match not found")

	// Validation and business rules.
	ErrValidationFailed           = errors.New("validation failed")
	ErrPasswordTooShort           = errors.New("password is too short")
	ErrTournamentNameRequired     = errors.New("tournament name is required")
	ErrTournamentInvalidSchedule  = errors.New("tournament schedule instants must be ordered")
	ErrTournamentInvalidCapacity  = errors.New("tournament max teams must be positive")
	ErrChatMessageEmpty           = errors.New("chat message text is required")
	ErrChatMessageTooLong         = errors.New("chat message text is too long")
	ErrSearchQueryTooShort        = errors.New("search query must be at least 2 characters")
	ErrInvalidMatchWinner         = errors.New("winner must be one of the match's teams")
	ErrBracketNeedsConfirmedTeams = errors.New("bracket generation requires at least two confirmed teams")

	// Conflicts.
	ErrTournamentFull        = errors.New("tournament registration is full")
	ErrDuplicateRegistration = errors.New("player is already registered for this tournament")
	ErrUserEmailConflict     = errors.New("email address is already in use")
	ErrUserUsernameConflict  = errors.New("username is already in use")

	// Lifecycle-state violations.
	ErrRegistrationClosed = errors.New("tournament registration is not open")
	ErrTournamentLocked   = errors.New("tournament is live or completed and cannot be modified")
	ErrNotRegistered      = errors.New("player is not registered for this tournament")

	// Authentication and authorization.
	ErrAuthInvalidCredentials = errors.New("invalid email or password")
	ErrForbiddenOperation     = errors.New("operation not allowed for the current user")
)
