package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Dosada05/pong-tournaments/brackets"
	"github.com/Dosada05/pong-tournaments/models"
	"github.com/Dosada05/pong-tournaments/repositories"
	"github.com/Dosada05/pong-tournaments/storage"
	"golang.org/x/sync/errgroup"
)

const (
	defaultListLimit     = 20
	maxListLimit         = 100
	defaultUserListLimit = 10
	maxTournamentNameLen = 100
)

// Registration is the roster state right after a successful registration.
// Filled is true when this registration took the last free slot.
type Registration struct {
	Filled      bool
	PlayerCount int
	Registered  int
}

// JoinResult reports a registration and, when it filled the roster, the started first round.
// Rejoined marks a participant returning to a running tournament; Registration is nil then.
type JoinResult struct {
	Registration *Registration
	Started      bool
	Rejoined     bool
	Matches      []*models.Match
}

// Progression is what Progress did to the bracket.
// At most one of NewMatches and Completed is set; neither means the current round is still running.
type Progression struct {
	TournamentID int
	Round        int
	NewMatches   []*models.Match
	Completed    bool
	ChampionID   int
}

// MatchResultProgress combines a recorded result with the bracket progression it caused.
type MatchResultProgress struct {
	Outcome     *ResultOutcome
	Progression *Progression
}

type TournamentListFilter struct {
	Status *models.TournamentStatus
	Limit  int
	Offset int
}

type TournamentService interface {
	Create(ctx context.Context, name string, playerCount int) (*models.Tournament, error)
	CreateAndRegister(ctx context.Context, name string, playerCount, userID int) (*models.Tournament, *Registration, error)
	RegisterPlayer(ctx context.Context, tournamentID, userID int) (*Registration, error)
	Join(ctx context.Context, tournamentID, userID int) (*JoinResult, error)
	Start(ctx context.Context, tournamentID int) ([]*models.Match, error)
	OnMatchResult(ctx context.Context, matchID, winnerID int, finalScore *Score) (*MatchResultProgress, error)
	Progress(ctx context.Context, tournamentID int) (*Progression, error)
	Complete(ctx context.Context, tournamentID int, winners []int) (int, error)
	RemovePlayer(ctx context.Context, tournamentID, userID int) error

	GetDetails(ctx context.Context, tournamentID int) (*models.TournamentDetails, error)
	GetMatchWithPlayers(ctx context.Context, matchID int) (*models.Match, error)
	ListActive(ctx context.Context) ([]models.Tournament, error)
	ListForUser(ctx context.Context, userID, limit, offset int) ([]models.Tournament, error)
	List(ctx context.Context, filter TournamentListFilter) ([]models.Tournament, error)
}

type tournamentService struct {
	txManager      repositories.TxManager
	tournamentRepo repositories.TournamentRepository
	matchRepo      repositories.MatchRepository
	userRepo       repositories.UserRepository
	results        MatchResultService
	generator      brackets.BracketGenerator
	avatars        storage.PublicURLResolver
	locks          *keyedMutex
	now            func() time.Time
	logger         *slog.Logger
}

func NewTournamentService(
	txManager repositories.TxManager,
	tournamentRepo repositories.TournamentRepository,
	matchRepo repositories.MatchRepository,
	userRepo repositories.UserRepository,
	results MatchResultService,
	generator brackets.BracketGenerator,
	avatars storage.PublicURLResolver,
	logger *slog.Logger,
) TournamentService {
	if generator == nil {
		generator = brackets.NewSingleEliminationGenerator()
	}
	return &tournamentService{
		txManager:      txManager,
		tournamentRepo: tournamentRepo,
		matchRepo:      matchRepo,
		userRepo:       userRepo,
		results:        results,
		generator:      generator,
		avatars:        avatars,
		locks:          newKeyedMutex(),
		now:            time.Now,
		logger:         logger,
	}
}

func newTournament(name string, playerCount int) (*models.Tournament, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrTournamentNameRequired
	}
	if len(name) > maxTournamentNameLen {
		return nil, fmt.Errorf("%w: tournament name is longer than %d characters", ErrInvalidArgument, maxTournamentNameLen)
	}
	if !models.IsValidPlayerCount(playerCount) {
		return nil, ErrInvalidPlayerCount
	}
	return &models.Tournament{
		Name:        name,
		Status:      models.StatusRegistering,
		PlayerCount: playerCount,
	}, nil
}

func (s *tournamentService) Create(ctx context.Context, name string, playerCount int) (*models.Tournament, error) {
	t, err := newTournament(name, playerCount)
	if err != nil {
		return nil, err
	}
	if err := s.tournamentRepo.Create(ctx, nil, t); err != nil {
		return nil, handleRepositoryError(err, "create tournament")
	}

	s.logger.InfoContext(ctx, "tournament created",
		slog.Int("tournament_id", t.ID), slog.String("name", t.Name), slog.Int("player_count", t.PlayerCount))
	return t, nil
}

// CreateAndRegister creates the tournament and registers its creator in one transaction.
// If the registration fails nothing is stored.
func (s *tournamentService) CreateAndRegister(ctx context.Context, name string, playerCount, userID int) (*models.Tournament, *Registration, error) {
	t, err := newTournament(name, playerCount)
	if err != nil {
		return nil, nil, err
	}

	var reg *Registration
	err = s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		// Создатель должен существовать до вставки турнира.
		if _, err := s.userRepo.GetByID(ctx, exec, userID); err != nil {
			return handleRepositoryError(err, "load creator")
		}
		if err := s.tournamentRepo.Create(ctx, exec, t); err != nil {
			return handleRepositoryError(err, "create tournament")
		}
		var txErr error
		reg, txErr = s.registerInTx(ctx, exec, t.ID, userID)
		return txErr
	})
	if err != nil {
		return nil, nil, err
	}

	t.RegisteredCount = reg.Registered
	s.logger.InfoContext(ctx, "tournament created",
		slog.Int("tournament_id", t.ID), slog.String("name", t.Name),
		slog.Int("player_count", t.PlayerCount), slog.Int("creator_id", userID))
	return t, reg, nil
}

func (s *tournamentService) RegisterPlayer(ctx context.Context, tournamentID, userID int) (*Registration, error) {
	unlock := s.locks.Lock(tournamentID)
	defer unlock()
	return s.registerLocked(ctx, tournamentID, userID)
}

// Join registers the user and starts the tournament when that registration filled the roster.
// Both steps run under one acquisition of the tournament lock.
func (s *tournamentService) Join(ctx context.Context, tournamentID, userID int) (*JoinResult, error) {
	unlock := s.locks.Lock(tournamentID)
	defer unlock()

	reg, err := s.registerLocked(ctx, tournamentID, userID)
	if err != nil {
		return nil, err
	}
	result := &JoinResult{Registration: reg}
	if !reg.Filled {
		return result, nil
	}

	matches, err := s.startLocked(ctx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("player %d registered but tournament %d failed to start: %w", userID, tournamentID, err)
	}
	result.Started = true
	result.Matches = matches
	return result, nil
}

func (s *tournamentService) registerLocked(ctx context.Context, tournamentID, userID int) (*Registration, error) {
	var reg *Registration
	err := s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		var txErr error
		reg, txErr = s.registerInTx(ctx, exec, tournamentID, userID)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "player registered",
		slog.Int("tournament_id", tournamentID), slog.Int("user_id", userID),
		slog.Int("registered", reg.Registered), slog.Int("player_count", reg.PlayerCount))
	return reg, nil
}

func (s *tournamentService) registerInTx(ctx context.Context, exec repositories.SQLExecutor, tournamentID, userID int) (*Registration, error) {
	t, err := s.tournamentRepo.GetByID(ctx, exec, tournamentID)
	if err != nil {
		return nil, handleRepositoryError(err, "load tournament")
	}
	if t.Status != models.StatusRegistering {
		return nil, ErrRegistrationClosed
	}

	players, err := s.tournamentRepo.ListPlayers(ctx, exec, tournamentID)
	if err != nil {
		return nil, handleRepositoryError(err, "list players")
	}
	for _, p := range players {
		if p.UserID == userID {
			return nil, ErrAlreadyRegistered
		}
	}
	if len(players) >= t.PlayerCount {
		return nil, ErrTournamentFull
	}

	if err = s.tournamentRepo.AddPlayer(ctx, exec, tournamentID, userID); err != nil {
		return nil, handleRepositoryError(err, "add player")
	}

	registered := len(players) + 1
	return &Registration{
		Filled:      registered == t.PlayerCount,
		PlayerCount: t.PlayerCount,
		Registered:  registered,
	}, nil
}

func (s *tournamentService) Start(ctx context.Context, tournamentID int) ([]*models.Match, error) {
	unlock := s.locks.Lock(tournamentID)
	defer unlock()
	return s.startLocked(ctx, tournamentID)
}

func (s *tournamentService) startLocked(ctx context.Context, tournamentID int) ([]*models.Match, error) {
	var matches []*models.Match
	err := s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		t, err := s.tournamentRepo.GetByID(ctx, exec, tournamentID)
		if err != nil {
			return handleRepositoryError(err, "load tournament")
		}
		if !t.Status.CanTransitionTo(models.StatusInProgress) {
			return fmt.Errorf("%w: cannot start a tournament in status %s", ErrInvalidState, t.Status)
		}

		players, err := s.tournamentRepo.ListPlayers(ctx, exec, tournamentID)
		if err != nil {
			return handleRepositoryError(err, "list players")
		}
		if len(players) != t.PlayerCount {
			return fmt.Errorf("%w (%d/%d)", ErrRosterIncomplete, len(players), t.PlayerCount)
		}

		ids := make([]int, 0, len(players))
		for _, p := range players {
			ids = append(ids, p.UserID)
		}
		pairs, err := s.generator.FirstRound(ids)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInternal, err)
		}

		if matches, err = s.createRound(ctx, exec, tournamentID, 1, pairs); err != nil {
			return err
		}
		if err = s.tournamentRepo.MarkStarted(ctx, exec, tournamentID, s.now().UTC()); err != nil {
			return handleRepositoryError(err, "mark tournament started")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	populateMatchAvatars(matches, s.avatars)
	s.logger.InfoContext(ctx, "tournament started",
		slog.Int("tournament_id", tournamentID), slog.Int("matches", len(matches)), slog.String("bracket", s.generator.GetName()))
	return matches, nil
}

// createRound inserts one pending match per pair, snapshotting each player's current rating as elo_before.
func (s *tournamentService) createRound(ctx context.Context, exec repositories.SQLExecutor, tournamentID, round int, pairs []brackets.Pair) ([]*models.Match, error) {
	matches := make([]*models.Match, 0, len(pairs))
	for _, pair := range pairs {
		match := &models.Match{
			TournamentID: &tournamentID,
			Round:        round,
			MatchType:    models.MatchTypeTournament,
			Status:       models.MatchStatusPending,
			Players:      make([]*models.MatchPlayer, 0, 2),
		}
		for slot, userID := range []int{pair.Player1, pair.Player2} {
			user, err := s.userRepo.GetByID(ctx, exec, userID)
			if err != nil {
				return nil, handleRepositoryError(err, "snapshot player rating")
			}
			match.Players = append(match.Players, &models.MatchPlayer{
				UserID:    userID,
				Slot:      slot + 1,
				EloBefore: user.Elo,
				Nickname:  user.Nickname,
				Rating:    user.Elo,
				AvatarKey: user.AvatarKey,
			})
		}
		if err := s.matchRepo.Create(ctx, exec, match); err != nil {
			return nil, handleRepositoryError(err, "create match")
		}
		matches = append(matches, match)
	}
	return matches, nil
}

// OnMatchResult records the result and advances the bracket under the tournament lock.
// If the result is stored but progression fails, the returned value still carries the outcome.
// A repeated result returns ErrAlreadyCompleted together with any progression it resumed.
func (s *tournamentService) OnMatchResult(ctx context.Context, matchID, winnerID int, finalScore *Score) (*MatchResultProgress, error) {
	match, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		return nil, handleRepositoryError(err, "load match")
	}
	if match.MatchType != models.MatchTypeTournament || match.TournamentID == nil {
		return nil, fmt.Errorf("%w: match %d is not a tournament match", ErrNotFound, matchID)
	}
	tournamentID := *match.TournamentID

	unlock := s.locks.Lock(tournamentID)
	defer unlock()

	outcome, err := s.results.SubmitResult(ctx, matchID, winnerID, finalScore)
	if errors.Is(err, ErrAlreadyCompleted) {
		return s.resumeProgress(ctx, tournamentID, matchID), err
	}
	if err != nil {
		return nil, err
	}

	res := &MatchResultProgress{Outcome: outcome}
	progression, err := s.progressLocked(ctx, tournamentID)
	if err != nil {
		s.logger.ErrorContext(ctx, "bracket progression failed after match result",
			slog.Int("tournament_id", tournamentID), slog.Int("match_id", matchID), slog.Any("error", err))
		return res, err
	}
	res.Progression = progression
	return res, nil
}

// resumeProgress finishes a progression that failed after its result was stored.
// It returns nil when the bracket has nothing new to announce.
func (s *tournamentService) resumeProgress(ctx context.Context, tournamentID, matchID int) *MatchResultProgress {
	progression, err := s.progressLocked(ctx, tournamentID)
	if err != nil {
		if !errors.Is(err, ErrTournamentNotStarted) {
			s.logger.ErrorContext(ctx, "bracket progression retry failed",
				slog.Int("tournament_id", tournamentID), slog.Int("match_id", matchID), slog.Any("error", err))
		}
		return nil
	}
	if !progression.Completed && len(progression.NewMatches) == 0 {
		return nil
	}
	s.logger.WarnContext(ctx, "bracket progression resumed on repeated result",
		slog.Int("tournament_id", tournamentID), slog.Int("match_id", matchID), slog.Int("round", progression.Round))
	return &MatchResultProgress{Progression: progression}
}

func (s *tournamentService) Progress(ctx context.Context, tournamentID int) (*Progression, error) {
	unlock := s.locks.Lock(tournamentID)
	defer unlock()
	return s.progressLocked(ctx, tournamentID)
}

func (s *tournamentService) progressLocked(ctx context.Context, tournamentID int) (*Progression, error) {
	t, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID)
	if err != nil {
		return nil, handleRepositoryError(err, "load tournament")
	}
	if t.Status != models.StatusInProgress {
		return nil, ErrTournamentNotStarted
	}

	matches, err := s.matchRepo.ListByTournament(ctx, nil, tournamentID)
	if err != nil {
		return nil, handleRepositoryError(err, "list matches")
	}

	winners := make([]int, 0, len(matches))
	currentRound := 0
	for _, m := range matches {
		if m.Round > currentRound {
			currentRound = m.Round
		}
		if !m.IsCompleted() {
			continue
		}
		winnerID, ok := m.Winner()
		if !ok {
			return nil, fmt.Errorf("%w: completed match %d has no winner", ErrBracketInvariant, m.ID)
		}
		winners = append(winners, winnerID)
	}

	progression := &Progression{TournamentID: tournamentID, Round: currentRound}

	if len(winners) == brackets.TotalMatches(t.PlayerCount) {
		championID, err := s.completeLocked(ctx, tournamentID, winners)
		if err != nil {
			return nil, err
		}
		progression.Completed = true
		progression.ChampionID = championID
		return progression, nil
	}

	roundWinners := make([]int, 0)
	for _, m := range matches {
		if m.Round != currentRound {
			continue
		}
		if !m.IsCompleted() {
			return progression, nil
		}
		winnerID, _ := m.Winner()
		roundWinners = append(roundWinners, winnerID)
	}

	depth, err := brackets.Rounds(t.PlayerCount)
	if err != nil {
		return nil, fmt.Errorf("%w: tournament %d: %v", ErrBracketInvariant, tournamentID, err)
	}
	if currentRound >= depth {
		return nil, fmt.Errorf("%w: tournament %d has no round after %d", ErrBracketInvariant, tournamentID, currentRound)
	}

	pairs, err := s.generator.NextRound(roundWinners)
	if err != nil {
		if errors.Is(err, brackets.ErrOddWinners) {
			s.logger.ErrorContext(ctx, "bracket round cannot be paired",
				slog.Int("tournament_id", tournamentID), slog.Int("round", currentRound), slog.Any("winners", roundWinners))
		}
		return nil, fmt.Errorf("%w: tournament %d round %d: %v", ErrBracketInvariant, tournamentID, currentRound, err)
	}

	var created []*models.Match
	err = s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		var txErr error
		created, txErr = s.createRound(ctx, exec, tournamentID, currentRound+1, pairs)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	populateMatchAvatars(created, s.avatars)
	progression.Round = currentRound + 1
	progression.NewMatches = created
	s.logger.InfoContext(ctx, "next bracket round created",
		slog.Int("tournament_id", tournamentID), slog.Int("round", progression.Round), slog.Int("matches", len(created)))
	return progression, nil
}

func (s *tournamentService) Complete(ctx context.Context, tournamentID int, winners []int) (int, error) {
	unlock := s.locks.Lock(tournamentID)
	defer unlock()
	return s.completeLocked(ctx, tournamentID, winners)
}

// completeLocked crowns the last winner. Everyone else shares RunnerUpPlacement.
func (s *tournamentService) completeLocked(ctx context.Context, tournamentID int, winners []int) (int, error) {
	if len(winners) == 0 {
		return 0, fmt.Errorf("%w: no winners to pick a champion from", ErrInvalidArgument)
	}
	championID := winners[len(winners)-1]

	err := s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		t, err := s.tournamentRepo.GetByID(ctx, exec, tournamentID)
		if err != nil {
			return handleRepositoryError(err, "load tournament")
		}
		if !t.Status.CanTransitionTo(models.StatusCompleted) {
			return fmt.Errorf("%w: cannot complete a tournament in status %s", ErrInvalidState, t.Status)
		}
		if err = s.tournamentRepo.SetPlacements(ctx, exec, tournamentID, championID); err != nil {
			return handleRepositoryError(err, "set placements")
		}
		if err = s.tournamentRepo.MarkCompleted(ctx, exec, tournamentID, championID, s.now().UTC()); err != nil {
			return handleRepositoryError(err, "mark tournament completed")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.InfoContext(ctx, "tournament completed",
		slog.Int("tournament_id", tournamentID), slog.Int("champion_id", championID))
	return championID, nil
}

func (s *tournamentService) RemovePlayer(ctx context.Context, tournamentID, userID int) error {
	unlock := s.locks.Lock(tournamentID)
	defer unlock()

	return s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		t, err := s.tournamentRepo.GetByID(ctx, exec, tournamentID)
		if err != nil {
			return handleRepositoryError(err, "load tournament")
		}
		if t.Status != models.StatusRegistering {
			return ErrRegistrationClosed
		}
		if err = s.tournamentRepo.RemovePlayer(ctx, exec, tournamentID, userID); err != nil {
			return handleRepositoryError(err, "remove player")
		}
		s.logger.InfoContext(ctx, "player left tournament", slog.Int("tournament_id", tournamentID), slog.Int("user_id", userID))
		return nil
	})
}

// GetDetails загружает турнир, ростер и сетку параллельно.
func (s *tournamentService) GetDetails(ctx context.Context, tournamentID int) (*models.TournamentDetails, error) {
	details := &models.TournamentDetails{}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := s.tournamentRepo.GetByID(gCtx, nil, tournamentID)
		if err != nil {
			return handleRepositoryError(err, "load tournament")
		}
		details.Tournament = t
		return nil
	})
	g.Go(func() error {
		players, err := s.tournamentRepo.ListPlayers(gCtx, nil, tournamentID)
		if err != nil {
			return handleRepositoryError(err, "list players")
		}
		details.Players = players
		return nil
	})
	g.Go(func() error {
		matches, err := s.matchRepo.ListByTournament(gCtx, nil, tournamentID)
		if err != nil {
			return handleRepositoryError(err, "list matches")
		}
		details.Matches = matches
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	populatePlayerAvatars(details.Players, s.avatars)
	populateMatchAvatars(details.Matches, s.avatars)
	return details, nil
}

func (s *tournamentService) GetMatchWithPlayers(ctx context.Context, matchID int) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		return nil, handleRepositoryError(err, "load match")
	}
	populateMatchAvatars([]*models.Match{match}, s.avatars)
	return match, nil
}

func (s *tournamentService) ListActive(ctx context.Context) ([]models.Tournament, error) {
	tournaments, err := s.tournamentRepo.List(ctx, repositories.ListTournamentsFilter{ExcludeCompleted: true})
	if err != nil {
		return nil, handleRepositoryError(err, "list active tournaments")
	}
	return tournaments, nil
}

func (s *tournamentService) ListForUser(ctx context.Context, userID, limit, offset int) ([]models.Tournament, error) {
	if limit <= 0 {
		limit = defaultUserListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		return nil, fmt.Errorf("%w: offset cannot be negative", ErrInvalidArgument)
	}
	tournaments, err := s.tournamentRepo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, handleRepositoryError(err, "list user tournaments")
	}
	return tournaments, nil
}

func (s *tournamentService) List(ctx context.Context, filter TournamentListFilter) ([]models.Tournament, error) {
	if filter.Status != nil {
		switch *filter.Status {
		case models.StatusRegistering, models.StatusInProgress, models.StatusCompleted:
		default:
			return nil, fmt.Errorf("%w: unknown tournament status %q", ErrInvalidArgument, *filter.Status)
		}
	}
	if filter.Offset < 0 {
		return nil, fmt.Errorf("%w: offset cannot be negative", ErrInvalidArgument)
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}

	tournaments, err := s.tournamentRepo.List(ctx, repositories.ListTournamentsFilter{
		Status: filter.Status,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
	if err != nil {
		return nil, handleRepositoryError(err, "list tournaments")
	}
	return tournaments, nil
}
