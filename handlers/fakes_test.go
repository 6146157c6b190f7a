package handlers

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/Dosada05/pong-tournaments/models"
	"github.com/Dosada05/pong-tournaments/services"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubOrchestrator answers with whatever the test configured and records the arguments it got.
type stubOrchestrator struct {
	mu    sync.Mutex
	calls []string

	err          error
	tournament   *models.Tournament
	join         *services.JoinResult
	matches      []*models.Match
	accept       *services.AcceptOutcome
	result       *services.MatchResultProgress
	details      *models.TournamentDetails
	list         []models.Tournament
	lastActor    int
	lastID       int
	lastLimit    int
	lastOffset   int
	lastAuto     bool
	lastScore    *services.Score
	lastFilter   services.TournamentListFilter
	disconnected []int
}

func (s *stubOrchestrator) record(call string, actor, id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
	s.lastActor, s.lastID = actor, id
}

func (s *stubOrchestrator) called() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *stubOrchestrator) CreateTournament(_ context.Context, actorID int, name string, playerCount int, autoRegister bool) (*models.Tournament, error) {
	s.record("create", actorID, 0)
	s.lastAuto = autoRegister
	if s.err != nil {
		return nil, s.err
	}
	return &models.Tournament{ID: 1, Name: name, PlayerCount: playerCount, Status: models.StatusRegistering}, nil
}

func (s *stubOrchestrator) JoinTournament(_ context.Context, actorID, tournamentID int) (*services.JoinResult, error) {
	s.record("join", actorID, tournamentID)
	if s.err != nil {
		return nil, s.err
	}
	return s.join, nil
}

func (s *stubOrchestrator) LeaveTournament(_ context.Context, actorID, tournamentID int) error {
	s.record("leave", actorID, tournamentID)
	return s.err
}

func (s *stubOrchestrator) StartTournament(_ context.Context, tournamentID int) ([]*models.Match, error) {
	s.record("start", 0, tournamentID)
	if s.err != nil {
		return nil, s.err
	}
	return s.matches, nil
}

func (s *stubOrchestrator) AcceptMatch(_ context.Context, actorID, matchID int) (*services.AcceptOutcome, error) {
	s.record("accept", actorID, matchID)
	if s.err != nil {
		return nil, s.err
	}
	return s.accept, nil
}

func (s *stubOrchestrator) MatchReady(_ context.Context, matchID int) (*models.Match, error) {
	s.record("ready", 0, matchID)
	if s.err != nil {
		return nil, s.err
	}
	return &models.Match{ID: matchID}, nil
}

func (s *stubOrchestrator) SubmitResult(_ context.Context, matchID, winnerID int, finalScore *services.Score) (*services.MatchResultProgress, error) {
	s.record("result", winnerID, matchID)
	s.lastScore = finalScore
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubOrchestrator) TournamentDetails(_ context.Context, tournamentID int) (*models.TournamentDetails, error) {
	s.record("details", 0, tournamentID)
	if s.err != nil {
		return nil, s.err
	}
	return s.details, nil
}

func (s *stubOrchestrator) WatchTournament(_ context.Context, actorID, tournamentID int) (*models.TournamentDetails, error) {
	s.record("watch", actorID, tournamentID)
	if s.err != nil {
		return nil, s.err
	}
	return s.details, nil
}

func (s *stubOrchestrator) ListActive(context.Context) ([]models.Tournament, error) {
	s.record("list_active", 0, 0)
	if s.err != nil {
		return nil, s.err
	}
	return s.list, nil
}

func (s *stubOrchestrator) ListForUser(_ context.Context, userID, limit, offset int) ([]models.Tournament, error) {
	s.record("list_user", userID, 0)
	s.lastLimit, s.lastOffset = limit, offset
	if s.err != nil {
		return nil, s.err
	}
	return s.list, nil
}

func (s *stubOrchestrator) ListTournaments(_ context.Context, filter services.TournamentListFilter) ([]models.Tournament, error) {
	s.record("list", 0, 0)
	s.lastFilter = filter
	if s.err != nil {
		return nil, s.err
	}
	return s.list, nil
}

func (s *stubOrchestrator) Disconnect(clientID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnected = append(s.disconnected, clientID)
}

func (s *stubOrchestrator) disconnectedClients() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.disconnected...)
}

type sent struct {
	To      int
	Type    string
	Payload any
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []sent
}

func (n *recordingNotifier) Send(clientID int, eventType string, payload any) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, sent{To: clientID, Type: eventType, Payload: payload})
	return true
}

func (n *recordingNotifier) SendToMany(clientIDs []int, eventType string, payload any) {
	for _, id := range clientIDs {
		n.Send(id, eventType, payload)
	}
}

func (n *recordingNotifier) SendToRoom(string, string, any, ...int) {}

func (n *recordingNotifier) JoinRoom(string, int) {}

func (n *recordingNotifier) all() []sent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sent(nil), n.events...)
}
