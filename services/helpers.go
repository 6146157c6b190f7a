package services

import (
	"errors"
	"fmt"

	"github.com/Dosada05/pong-tournaments/models"
	"github.com/Dosada05/pong-tournaments/repositories"
	"github.com/Dosada05/pong-tournaments/storage"
)

// handleRepositoryError переводит ошибки репозиториев в ошибки сервисного слоя.
func handleRepositoryError(err error, op string) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, repositories.ErrTournamentNotFound):
		return ErrTournamentNotFound
	case errors.Is(err, repositories.ErrMatchNotFound):
		return ErrMatchNotFound
	case errors.Is(err, repositories.ErrUserNotFound),
		errors.Is(err, repositories.ErrTournamentPlayerUserReject),
		errors.Is(err, repositories.ErrMatchPlayerInvalid):
		return ErrUserNotFound
	case errors.Is(err, repositories.ErrTournamentPlayerNotFound):
		return ErrPlayerNotRegistered
	case errors.Is(err, repositories.ErrTournamentPlayerConflict):
		return ErrAlreadyRegistered
	case errors.Is(err, repositories.ErrMatchAlreadyCompleted):
		return ErrAlreadyCompleted
	case errors.Is(err, repositories.ErrTournamentStatusConflict):
		return fmt.Errorf("%w: tournament status changed", ErrInvalidState)
	}
	return fmt.Errorf("%w: %s: %v", ErrInternal, op, err)
}

func avatarURL(key *string, resolver storage.PublicURLResolver) *string {
	if key == nil || *key == "" || resolver == nil {
		return nil
	}
	url := resolver.GetPublicURL(*key)
	if url == "" {
		return nil
	}
	return &url
}

func populatePlayerAvatars(players []*models.TournamentPlayer, resolver storage.PublicURLResolver) {
	for _, p := range players {
		p.AvatarURL = avatarURL(p.AvatarKey, resolver)
	}
}

func populateMatchAvatars(matches []*models.Match, resolver storage.PublicURLResolver) {
	for _, m := range matches {
		for _, p := range m.Players {
			p.AvatarURL = avatarURL(p.AvatarKey, resolver)
		}
	}
}

// publicProfile - профиль соперника в событии tournament_match_starting.
func publicProfile(p *models.MatchPlayer) models.PublicProfile {
	return models.PublicProfile{
		ID:       p.UserID,
		Username: p.Nickname,
		Elo:      p.Rating,
		Avatar:   p.AvatarURL,
	}
}
