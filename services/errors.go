package services

import (
	"errors"
	"fmt"
)

// Общие ошибки, используемые в сервисах, WS-роутере и маппинге HTTP.
var (
	ErrNotFound         = errors.New("requested resource not found")
	ErrInvalidState     = errors.New("operation is not allowed in the current state")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrConflict         = errors.New("conflicts with existing data")
	ErrFull             = errors.New("tournament is full")
	ErrAlreadyCompleted = errors.New("match already completed")
	ErrInternal         = errors.New("internal error")
)

// Ошибки, специфичные для сущностей. Каждая оборачивает категорию выше, чтобы проверять через errors.Is.
var (
	ErrTournamentNotFound  = fmt.Errorf("%w: tournament not found", ErrNotFound)
	ErrMatchNotFound       = fmt.Errorf("%w: match not found", ErrNotFound)
	ErrUserNotFound        = fmt.Errorf("%w: user not found", ErrNotFound)
	ErrPlayerNotRegistered = fmt.Errorf("%w: player is not registered for this tournament", ErrNotFound)

	ErrTournamentNameRequired = fmt.Errorf("%w: tournament name is required", ErrInvalidArgument)
	ErrInvalidPlayerCount     = fmt.Errorf("%w: player count must be 4 or 8", ErrInvalidArgument)
	ErrWinnerNotInMatch       = fmt.Errorf("%w: winner is not a player of this match", ErrInvalidArgument)
	ErrNotMatchParticipant    = fmt.Errorf("%w: client is not a participant of this match", ErrInvalidArgument)

	ErrRegistrationClosed   = fmt.Errorf("%w: tournament registration is closed", ErrInvalidState)
	ErrTournamentNotStarted = fmt.Errorf("%w: tournament is not in progress", ErrInvalidState)
	ErrRosterIncomplete     = fmt.Errorf("%w: tournament roster is not full", ErrInvalidState)

	ErrAlreadyRegistered = fmt.Errorf("%w: user is already registered for this tournament", ErrConflict)
	ErrTournamentFull    = fmt.Errorf("%w: registered count reached player count", ErrFull)

	ErrBracketInvariant = fmt.Errorf("%w: bracket invariant violated", ErrInternal)
)
