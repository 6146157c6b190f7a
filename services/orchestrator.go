package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Dosada05/pong-tournaments/models"
)

// Orchestrator is the single entry point for tournament actions. The websocket router and the HTTP
// handlers both call it, so an action behaves the same whichever transport triggered it.
type Orchestrator interface {
	CreateTournament(ctx context.Context, actorID int, name string, playerCount int, autoRegister bool) (*models.Tournament, error)
	JoinTournament(ctx context.Context, actorID, tournamentID int) (*JoinResult, error)
	LeaveTournament(ctx context.Context, actorID, tournamentID int) error
	StartTournament(ctx context.Context, tournamentID int) ([]*models.Match, error)
	AcceptMatch(ctx context.Context, actorID, matchID int) (*AcceptOutcome, error)
	MatchReady(ctx context.Context, matchID int) (*models.Match, error)
	SubmitResult(ctx context.Context, matchID, winnerID int, finalScore *Score) (*MatchResultProgress, error)

	TournamentDetails(ctx context.Context, tournamentID int) (*models.TournamentDetails, error)
	WatchTournament(ctx context.Context, actorID, tournamentID int) (*models.TournamentDetails, error)
	ListActive(ctx context.Context) ([]models.Tournament, error)
	ListForUser(ctx context.Context, userID, limit, offset int) ([]models.Tournament, error)
	ListTournaments(ctx context.Context, filter TournamentListFilter) ([]models.Tournament, error)

	Disconnect(clientID int)
}

type orchestrator struct {
	tournaments TournamentService
	acceptance  *AcceptanceCoordinator
	dispatcher  *Dispatcher
	notifier    Notifier
	logger      *slog.Logger
}

func NewOrchestrator(
	tournaments TournamentService,
	acceptance *AcceptanceCoordinator,
	dispatcher *Dispatcher,
	notifier Notifier,
	logger *slog.Logger,
) Orchestrator {
	return &orchestrator{
		tournaments: tournaments,
		acceptance:  acceptance,
		dispatcher:  dispatcher,
		notifier:    notifier,
		logger:      logger,
	}
}

func (o *orchestrator) CreateTournament(ctx context.Context, actorID int, name string, playerCount int, autoRegister bool) (*models.Tournament, error) {
	var (
		t   *models.Tournament
		err error
	)
	if autoRegister {
		t, _, err = o.tournaments.CreateAndRegister(ctx, name, playerCount, actorID)
	} else {
		t, err = o.tournaments.Create(ctx, name, playerCount)
	}
	if err != nil {
		return nil, err
	}
	o.dispatcher.TournamentCreated(ctx, actorID, t)
	return t, nil
}

// JoinTournament registers the actor. A participant re-joining a running tournament gets a re-sync
// of the bracket and their pending matches instead of an error.
func (o *orchestrator) JoinTournament(ctx context.Context, actorID, tournamentID int) (*JoinResult, error) {
	join, err := o.tournaments.Join(ctx, tournamentID, actorID)
	if err != nil {
		if errors.Is(err, ErrRegistrationClosed) || errors.Is(err, ErrAlreadyRegistered) {
			if details, ok := o.rejoinable(ctx, actorID, tournamentID); ok {
				o.notifier.JoinRoom(TournamentRoom(tournamentID), actorID)
				o.dispatcher.PlayerRejoined(ctx, actorID, details)
				return &JoinResult{Rejoined: true}, nil
			}
		}
		return nil, err
	}

	o.dispatcher.PlayerJoined(ctx, actorID, tournamentID, join)
	return join, nil
}

func (o *orchestrator) rejoinable(ctx context.Context, actorID, tournamentID int) (*models.TournamentDetails, bool) {
	details, err := o.tournaments.GetDetails(ctx, tournamentID)
	if err != nil {
		return nil, false
	}
	if details.Tournament.Status != models.StatusInProgress || !details.HasPlayer(actorID) {
		return nil, false
	}
	return details, true
}

func (o *orchestrator) LeaveTournament(ctx context.Context, actorID, tournamentID int) error {
	if err := o.tournaments.RemovePlayer(ctx, tournamentID, actorID); err != nil {
		return err
	}
	o.dispatcher.PlayerLeft(ctx, actorID, tournamentID)
	return nil
}

func (o *orchestrator) StartTournament(ctx context.Context, tournamentID int) ([]*models.Match, error) {
	matches, err := o.tournaments.Start(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	o.dispatcher.TournamentStarted(ctx, tournamentID, matches)
	return matches, nil
}

func (o *orchestrator) AcceptMatch(ctx context.Context, actorID, matchID int) (*AcceptOutcome, error) {
	outcome, err := o.acceptance.Accept(ctx, matchID, actorID)
	if err != nil {
		return nil, err
	}
	o.dispatcher.MatchAccepted(ctx, actorID, outcome)
	return outcome, nil
}

func (o *orchestrator) MatchReady(ctx context.Context, matchID int) (*models.Match, error) {
	m, err := o.tournaments.GetMatchWithPlayers(ctx, matchID)
	if err != nil {
		return nil, err
	}
	o.dispatcher.MatchReady(m)
	return m, nil
}

// SubmitResult records a result. Events go out whenever the result itself was stored,
// even if advancing the bracket failed afterwards. A repeated result announces only
// the progression it resumed.
func (o *orchestrator) SubmitResult(ctx context.Context, matchID, winnerID int, finalScore *Score) (*MatchResultProgress, error) {
	res, err := o.tournaments.OnMatchResult(ctx, matchID, winnerID, finalScore)
	switch {
	case res == nil:
	case res.Outcome != nil:
		o.dispatcher.MatchResult(ctx, res)
	case res.Progression != nil:
		o.dispatcher.BracketProgressed(ctx, res.Progression)
	}
	return res, err
}

func (o *orchestrator) TournamentDetails(ctx context.Context, tournamentID int) (*models.TournamentDetails, error) {
	return o.tournaments.GetDetails(ctx, tournamentID)
}

// WatchTournament returns the details and subscribes the actor to further refreshes.
func (o *orchestrator) WatchTournament(ctx context.Context, actorID, tournamentID int) (*models.TournamentDetails, error) {
	details, err := o.tournaments.GetDetails(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	o.notifier.JoinRoom(TournamentRoom(tournamentID), actorID)
	return details, nil
}

func (o *orchestrator) ListActive(ctx context.Context) ([]models.Tournament, error) {
	return o.tournaments.ListActive(ctx)
}

func (o *orchestrator) ListForUser(ctx context.Context, userID, limit, offset int) ([]models.Tournament, error) {
	return o.tournaments.ListForUser(ctx, userID, limit, offset)
}

func (o *orchestrator) ListTournaments(ctx context.Context, filter TournamentListFilter) ([]models.Tournament, error) {
	return o.tournaments.List(ctx, filter)
}

// Disconnect clears the acceptance state of a client whose last connection went away.
// Matches it was part of stay pending.
func (o *orchestrator) Disconnect(clientID int) {
	o.acceptance.CleanupClient(clientID)
	o.logger.Debug("client acceptance state cleared", slog.Int("client_id", clientID))
}
