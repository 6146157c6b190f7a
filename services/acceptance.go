package services

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/Dosada05/pong-tournaments/models"
)

// MatchLoader is the part of the tournament service the coordinator needs.
type MatchLoader interface {
	GetMatchWithPlayers(ctx context.Context, matchID int) (*models.Match, error)
}

// AcceptOutcome describes the acceptance set right after an Accept call.
// When Ready is true the set has been cleared and Participants holds both players in slot order.
type AcceptOutcome struct {
	Match        *models.Match
	Accepted     int
	Required     int
	Ready        bool
	Participants []int
}

// AcceptanceCoordinator tracks which participants signalled they are ready to play a match.
// The state is in-memory only and is lost on restart; clients simply accept again.
type AcceptanceCoordinator struct {
	mu      sync.Mutex
	pending map[int]map[int]struct{}
	matches MatchLoader
	logger  *slog.Logger
}

func NewAcceptanceCoordinator(matches MatchLoader, logger *slog.Logger) *AcceptanceCoordinator {
	return &AcceptanceCoordinator{
		pending: make(map[int]map[int]struct{}),
		matches: matches,
		logger:  logger,
	}
}

func (c *AcceptanceCoordinator) Accept(ctx context.Context, matchID, clientID int) (*AcceptOutcome, error) {
	match, err := c.matches.GetMatchWithPlayers(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if _, ok := match.Player(clientID); !ok {
		return nil, ErrNotMatchParticipant
	}
	if match.IsCompleted() {
		return nil, ErrAlreadyCompleted
	}

	required := len(match.Players)

	c.mu.Lock()
	defer c.mu.Unlock()

	set, ok := c.pending[matchID]
	if !ok {
		set = make(map[int]struct{}, required)
		c.pending[matchID] = set
	}
	set[clientID] = struct{}{}

	outcome := &AcceptOutcome{
		Match:    match,
		Accepted: len(set),
		Required: required,
	}
	if len(set) >= required {
		delete(c.pending, matchID)
		outcome.Ready = true
		outcome.Participants = match.PlayerIDs()
		c.logger.InfoContext(ctx, "match accepted by all players", slog.Int("match_id", matchID))
	}
	return outcome, nil
}

// CleanupClient drops a disconnected client from every acceptance set.
func (c *AcceptanceCoordinator) CleanupClient(clientID int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for matchID, set := range c.pending {
		if _, ok := set[clientID]; !ok {
			continue
		}
		delete(set, clientID)
		if len(set) == 0 {
			delete(c.pending, matchID)
		}
	}
}

// Pending returns the clients that accepted matchID so far, sorted.
func (c *AcceptanceCoordinator) Pending(matchID int) []int {
	c.mu.Lock()
	defer c.mu.Unlock()

	set := c.pending[matchID]
	ids := make([]int, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
