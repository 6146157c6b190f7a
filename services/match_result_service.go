package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/pong-tournaments/models"
	"github.com/Dosada05/pong-tournaments/repositories"
)

// Score is the optional final score of a match, in goals.
type Score struct {
	WinnerGoals int `json:"winnerGoals"`
	LoserGoals  int `json:"loserGoals"`
}

func (s *Score) validate() error {
	if s == nil {
		return nil
	}
	if s.WinnerGoals < 0 || s.LoserGoals < 0 {
		return fmt.Errorf("%w: goals cannot be negative", ErrInvalidArgument)
	}
	return nil
}

// ResultOutcome is what a successful result submission changed.
type ResultOutcome struct {
	MatchID         int
	TournamentID    int
	WinnerID        int
	LoserID         int
	WinnerNewElo    int
	LoserNewElo     int
	WinnerEloChange int
	LoserEloChange  int
	Score           *Score
}

type MatchResultService interface {
	SubmitResult(ctx context.Context, matchID, winnerID int, finalScore *Score) (*ResultOutcome, error)
}

type matchResultService struct {
	txManager repositories.TxManager
	matchRepo repositories.MatchRepository
	userRepo  repositories.UserRepository
	rating    RatingFunc
	now       func() time.Time
	logger    *slog.Logger
}

func NewMatchResultService(
	txManager repositories.TxManager,
	matchRepo repositories.MatchRepository,
	userRepo repositories.UserRepository,
	rating RatingFunc,
	logger *slog.Logger,
) MatchResultService {
	if rating == nil {
		rating = EloRating(DefaultTournamentKFactor)
	}
	return &matchResultService{
		txManager: txManager,
		matchRepo: matchRepo,
		userRepo:  userRepo,
		rating:    rating,
		now:       time.Now,
		logger:    logger,
	}
}

// SubmitResult applies the outcome of a tournament match. The match row stays locked for the whole
// transaction, so a concurrent duplicate sees the completed status and gets ErrAlreadyCompleted.
func (s *matchResultService) SubmitResult(ctx context.Context, matchID, winnerID int, finalScore *Score) (*ResultOutcome, error) {
	if err := finalScore.validate(); err != nil {
		return nil, err
	}

	var outcome *ResultOutcome
	err := s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		match, err := s.matchRepo.GetForUpdate(ctx, exec, matchID)
		if err != nil {
			return handleRepositoryError(err, "load match")
		}
		if match.MatchType != models.MatchTypeTournament || match.TournamentID == nil {
			return fmt.Errorf("%w: match %d is not a tournament match", ErrNotFound, matchID)
		}
		if match.IsCompleted() {
			return ErrAlreadyCompleted
		}

		winner, ok := match.Player(winnerID)
		if !ok {
			return ErrWinnerNotInMatch
		}
		loser, ok := match.Opponent(winnerID)
		if !ok {
			return fmt.Errorf("%w: match %d has no opponent for user %d", ErrInternal, matchID, winnerID)
		}

		// Рейтинг игрока может меняться и в другом турнире, поэтому строки блокируются.
		users, err := s.userRepo.LockForUpdate(ctx, exec, winner.UserID, loser.UserID)
		if err != nil {
			return handleRepositoryError(err, "lock players")
		}
		winnerUser, loserUser := users[winner.UserID], users[loser.UserID]

		winnerNew := s.rating(winnerUser.Elo, loserUser.Elo, true)
		loserNew := s.rating(loserUser.Elo, winnerUser.Elo, false)

		rec := repositories.MatchResultRecord{
			MatchID:        matchID,
			WinnerID:       winner.UserID,
			LoserID:        loser.UserID,
			WinnerEloAfter: winnerNew,
			LoserEloAfter:  loserNew,
			CompletedAt:    s.now().UTC(),
		}
		if finalScore != nil {
			rec.WinnerGoals = &finalScore.WinnerGoals
			rec.LoserGoals = &finalScore.LoserGoals
		}
		if err = s.matchRepo.RecordResult(ctx, exec, rec); err != nil {
			return handleRepositoryError(err, "record match result")
		}
		if err = s.userRepo.UpdateElo(ctx, exec, winner.UserID, winnerNew); err != nil {
			return handleRepositoryError(err, "update winner elo")
		}
		if err = s.userRepo.UpdateElo(ctx, exec, loser.UserID, loserNew); err != nil {
			return handleRepositoryError(err, "update loser elo")
		}

		outcome = &ResultOutcome{
			MatchID:         matchID,
			TournamentID:    *match.TournamentID,
			WinnerID:        winner.UserID,
			LoserID:         loser.UserID,
			WinnerNewElo:    winnerNew,
			LoserNewElo:     loserNew,
			WinnerEloChange: winnerNew - winnerUser.Elo,
			LoserEloChange:  loserNew - loserUser.Elo,
			Score:           finalScore,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "match result recorded",
		slog.Int("match_id", outcome.MatchID),
		slog.Int("tournament_id", outcome.TournamentID),
		slog.Int("winner_id", outcome.WinnerID),
		slog.Int("loser_id", outcome.LoserID),
		slog.Int("winner_elo_change", outcome.WinnerEloChange),
	)
	return outcome, nil
}
