package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/Dosada05/pong-tournaments/models"
	"github.com/Dosada05/pong-tournaments/storage"
)

// DefaultNextRoundNotifyDelay gives clients time to render the finished match before the next one is announced.
const DefaultNextRoundNotifyDelay = 2 * time.Second

// Notifier delivers events to connected clients. Delivery is best effort.
type Notifier interface {
	Send(clientID int, eventType string, payload any) bool
	SendToMany(clientIDs []int, eventType string, payload any)
	SendToRoom(roomID string, eventType string, payload any, exclude ...int)
	JoinRoom(roomID string, clientID int)
}

// BracketArchiver persists the final bracket of a completed tournament.
type BracketArchiver interface {
	Archive(ctx context.Context, details *models.TournamentDetails) (*storage.UploadResult, error)
}

type tournamentReader interface {
	GetDetails(ctx context.Context, tournamentID int) (*models.TournamentDetails, error)
	GetMatchWithPlayers(ctx context.Context, matchID int) (*models.Match, error)
}

// Dispatcher turns tournament transitions into events. It keeps no state: every fan-out reloads the roster.
type Dispatcher struct {
	notifier    Notifier
	tournaments tournamentReader
	scheduler   Scheduler
	archiver    BracketArchiver
	notifyDelay time.Duration
	logger      *slog.Logger
}

type DispatcherConfig struct {
	NotifyDelay time.Duration
	// Archiver is optional.
	Archiver BracketArchiver
}

func NewDispatcher(notifier Notifier, tournaments tournamentReader, scheduler Scheduler, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	delay := cfg.NotifyDelay
	if delay <= 0 {
		delay = DefaultNextRoundNotifyDelay
	}
	return &Dispatcher{
		notifier:    notifier,
		tournaments: tournaments,
		scheduler:   scheduler,
		archiver:    cfg.Archiver,
		notifyDelay: delay,
		logger:      logger,
	}
}

func (d *Dispatcher) loadDetails(ctx context.Context, tournamentID int) (*models.TournamentDetails, bool) {
	details, err := d.tournaments.GetDetails(ctx, tournamentID)
	if err != nil {
		d.logger.ErrorContext(ctx, "failed to load tournament for fan-out",
			slog.Int("tournament_id", tournamentID), slog.Any("error", err))
		return nil, false
	}
	return details, true
}

func (d *Dispatcher) refreshSpectators(details *models.TournamentDetails) {
	d.notifier.SendToRoom(TournamentRoom(details.Tournament.ID), EventTournamentDetails, details)
}

func (d *Dispatcher) TournamentCreated(ctx context.Context, actorID int, t *models.Tournament) {
	details, ok := d.loadDetails(ctx, t.ID)
	if !ok {
		return
	}
	d.notifier.Send(actorID, EventTournamentCreated, TournamentCreatedPayload{
		Tournament:        t,
		TournamentDetails: details,
	})
}

func (d *Dispatcher) PlayerJoined(ctx context.Context, actorID, tournamentID int, join *JoinResult) {
	details, ok := d.loadDetails(ctx, tournamentID)
	if !ok {
		return
	}

	d.notifier.Send(actorID, EventTournamentJoined, MembershipPayload{TournamentID: tournamentID, Success: true})
	d.notifier.Send(actorID, EventTournamentDetails, details)

	others := make([]int, 0, len(details.Players))
	for _, id := range details.PlayerIDs() {
		if id != actorID {
			others = append(others, id)
		}
	}
	d.notifier.SendToMany(others, EventTournamentPlayerJoined, PlayerJoinedPayload{
		TournamentID: tournamentID,
		Players:      details.Players,
	})

	if join != nil && join.Started {
		d.announceStart(ctx, details, join.Matches)
		return
	}
	d.refreshSpectators(details)
}

// PlayerRejoined re-syncs a participant who reconnected to a running tournament.
func (d *Dispatcher) PlayerRejoined(ctx context.Context, actorID int, details *models.TournamentDetails) {
	tournamentID := details.Tournament.ID
	d.notifier.Send(actorID, EventTournamentJoined, MembershipPayload{TournamentID: tournamentID, Success: true})
	d.notifier.Send(actorID, EventTournamentDetails, details)
	d.notifier.Send(actorID, EventTournamentStarted, TournamentStartedPayload{
		TournamentID: tournamentID,
		Tournament:   details.Tournament,
		Matches:      details.Matches,
	})
	for _, m := range details.Matches {
		if m.IsCompleted() {
			continue
		}
		if _, isPlayer := m.Player(actorID); isPlayer {
			d.notifyPlayer(actorID, m, "")
		}
	}
}

func (d *Dispatcher) PlayerLeft(ctx context.Context, actorID, tournamentID int) {
	d.notifier.Send(actorID, EventTournamentLeft, MembershipPayload{TournamentID: tournamentID, Success: true})

	details, ok := d.loadDetails(ctx, tournamentID)
	if !ok {
		return
	}
	d.notifier.SendToMany(details.PlayerIDs(), EventTournamentPlayerLeft, PlayerLeftPayload{
		TournamentID: tournamentID,
		PlayerID:     actorID,
		Players:      details.Players,
	})
	d.refreshSpectators(details)
}

func (d *Dispatcher) TournamentStarted(ctx context.Context, tournamentID int, matches []*models.Match) {
	details, ok := d.loadDetails(ctx, tournamentID)
	if !ok {
		return
	}
	d.announceStart(ctx, details, matches)
}

func (d *Dispatcher) announceStart(ctx context.Context, details *models.TournamentDetails, matches []*models.Match) {
	d.notifier.SendToMany(details.PlayerIDs(), EventTournamentStarted, TournamentStartedPayload{
		TournamentID: details.Tournament.ID,
		Tournament:   details.Tournament,
		Matches:      details.Matches,
	})
	for _, m := range matches {
		d.notifyPair(m, "")
	}
	d.refreshSpectators(details)
	d.logger.InfoContext(ctx, "tournament start announced",
		slog.Int("tournament_id", details.Tournament.ID), slog.Int("participants", len(details.Players)))
}

// notifyPair sends each player of the match a notification naming the other one.
func (d *Dispatcher) notifyPair(m *models.Match, message string) {
	for _, p := range m.Players {
		d.notifyPlayer(p.UserID, m, message)
	}
}

func (d *Dispatcher) notifyPlayer(userID int, m *models.Match, message string) {
	opponent, ok := m.Opponent(userID)
	if !ok || m.TournamentID == nil {
		return
	}
	d.notifier.Send(userID, EventMatchNotification, MatchNotificationPayload{
		TournamentID: *m.TournamentID,
		MatchID:      m.ID,
		Opponent:     publicProfile(opponent),
		Round:        m.Round,
		Message:      message,
	})
}

// MatchReady re-sends the match notification to both players.
func (d *Dispatcher) MatchReady(m *models.Match) {
	d.notifyPair(m, "")
}

func (d *Dispatcher) MatchAccepted(ctx context.Context, actorID int, outcome *AcceptOutcome) {
	m := outcome.Match
	tournamentID := 0
	if m.TournamentID != nil {
		tournamentID = *m.TournamentID
	}

	d.notifier.Send(actorID, EventMatchAccepted, MatchAcceptedPayload{
		TournamentID: tournamentID,
		MatchID:      m.ID,
		Message:      matchAcceptedMessage,
	})
	if opponent, ok := m.Opponent(actorID); ok {
		d.notifier.Send(opponent.UserID, EventOpponentAccepted, OpponentAcceptedPayload{
			TournamentID:    tournamentID,
			MatchID:         m.ID,
			AcceptingPlayer: actorID,
			Message:         opponentAcceptedMessage,
		})
	}

	if !outcome.Ready {
		return
	}
	for _, p := range m.Players {
		opponent, ok := m.Opponent(p.UserID)
		if !ok {
			continue
		}
		d.notifier.Send(p.UserID, EventMatchStarting, MatchStartingPayload{
			MatchID:      m.ID,
			TournamentID: tournamentID,
			Opponent:     publicProfile(opponent),
			IsPlayer1:    p.UserID == m.Players[0].UserID,
		})
	}
	d.logger.InfoContext(ctx, "match starting", slog.Int("match_id", m.ID), slog.Int("tournament_id", tournamentID))
}

// MatchResult announces a recorded result, then either the champion or the deferred next-round pairings.
func (d *Dispatcher) MatchResult(ctx context.Context, res *MatchResultProgress) {
	if res == nil || res.Outcome == nil {
		return
	}
	outcome := res.Outcome
	tournamentID := outcome.TournamentID

	details, ok := d.loadDetails(ctx, tournamentID)
	if !ok {
		return
	}
	participants := details.PlayerIDs()

	completed := MatchCompletedPayload{
		TournamentID:    tournamentID,
		MatchID:         outcome.MatchID,
		WinnerID:        outcome.WinnerID,
		WinnerEloChange: outcome.WinnerEloChange,
		LoserEloChange:  outcome.LoserEloChange,
		Tournament:      details.Tournament,
		Matches:         details.Matches,
	}
	if outcome.Score != nil {
		completed.WinnerGoals = &outcome.Score.WinnerGoals
		completed.LoserGoals = &outcome.Score.LoserGoals
	}
	d.notifier.SendToMany(participants, EventMatchCompleted, completed)
	d.refreshSpectators(details)

	d.announceProgression(ctx, details, res.Progression)
}

// BracketProgressed announces a progression that was not caused by a fresh result.
func (d *Dispatcher) BracketProgressed(ctx context.Context, progression *Progression) {
	if progression == nil {
		return
	}
	details, ok := d.loadDetails(ctx, progression.TournamentID)
	if !ok {
		return
	}
	d.refreshSpectators(details)
	d.announceProgression(ctx, details, progression)
}

func (d *Dispatcher) announceProgression(ctx context.Context, details *models.TournamentDetails, progression *Progression) {
	tournamentID := details.Tournament.ID
	switch {
	case progression == nil:
	case progression.Completed:
		d.scheduler.Cancel(tournamentTag(tournamentID))
		d.notifier.SendToMany(details.PlayerIDs(), EventTournamentCompleted, TournamentCompletedPayload{
			TournamentID: tournamentID,
			Champion:     progression.ChampionID,
			Tournament:   details.Tournament,
			Matches:      details.Matches,
			Players:      details.Players,
		})
		d.archive(ctx, details)
	case len(progression.NewMatches) > 0:
		matchIDs := make([]int, 0, len(progression.NewMatches))
		for _, m := range progression.NewMatches {
			matchIDs = append(matchIDs, m.ID)
		}
		err := d.scheduler.ScheduleOnce(tournamentTag(tournamentID), d.notifyDelay, func() {
			d.notifyNextRound(context.Background(), tournamentID, matchIDs)
		})
		if err != nil {
			d.logger.ErrorContext(ctx, "failed to schedule next round notification, sending now",
				slog.Int("tournament_id", tournamentID), slog.Any("error", err))
			d.notifyNextRound(ctx, tournamentID, matchIDs)
		}
	}
}

func (d *Dispatcher) notifyNextRound(ctx context.Context, tournamentID int, matchIDs []int) {
	for _, id := range matchIDs {
		m, err := d.tournaments.GetMatchWithPlayers(ctx, id)
		if err != nil {
			d.logger.ErrorContext(ctx, "failed to load match for notification",
				slog.Int("tournament_id", tournamentID), slog.Int("match_id", id), slog.Any("error", err))
			continue
		}
		if m.IsCompleted() {
			continue
		}
		d.notifyPair(m, nextMatchMessage)
	}
}

func (d *Dispatcher) archive(ctx context.Context, details *models.TournamentDetails) {
	if d.archiver == nil {
		return
	}
	res, err := d.archiver.Archive(ctx, details)
	if err != nil {
		d.logger.WarnContext(ctx, "failed to archive bracket",
			slog.Int("tournament_id", details.Tournament.ID), slog.Any("error", err))
		return
	}
	d.logger.InfoContext(ctx, "bracket archived",
		slog.Int("tournament_id", details.Tournament.ID), slog.String("location", res.Location))
}

// Error sends an error event to the acting client only.
func (d *Dispatcher) Error(clientID int, message string) {
	d.notifier.Send(clientID, EventError, MessagePayload{Message: message})
}
