package models

import "time"

// TournamentStatus представляет статусы турнира, соответствующие значениям в БД.
type TournamentStatus string

const (
	StatusRegistering TournamentStatus = "registering"
	StatusInProgress  TournamentStatus = "in_progress"
	StatusCompleted   TournamentStatus = "completed"
)

// ChampionPlacement and RunnerUpPlacement are the only placements the bracket assigns.
const (
	ChampionPlacement = 1
	RunnerUpPlacement = 2
)

// IsValidPlayerCount reports whether a roster size is supported by the single-elimination bracket.
func IsValidPlayerCount(n int) bool {
	return n == 4 || n == 8
}

// CanTransitionTo enforces the monotonic lifecycle registering -> in_progress -> completed.
func (s TournamentStatus) CanTransitionTo(next TournamentStatus) bool {
	switch s {
	case StatusRegistering:
		return next == StatusInProgress
	case StatusInProgress:
		return next == StatusCompleted
	default:
		return false
	}
}

type Tournament struct {
	ID              int              `json:"id"`
	Name            string           `json:"name"`
	Status          TournamentStatus `json:"status"`
	PlayerCount     int              `json:"player_count"`
	RegisteredCount int              `json:"registered_count"`
	ChampionID      *int             `json:"champion_id,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	StartedAt       *time.Time       `json:"started_at,omitempty"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
}

// TournamentPlayer is a roster entry joined with the public part of the user profile.
type TournamentPlayer struct {
	TournamentID int       `json:"tournament_id"`
	UserID       int       `json:"player_id"`
	Placement    *int      `json:"placement,omitempty"`
	JoinedAt     time.Time `json:"joined_at"`
	Nickname     string    `json:"nickname"`
	Elo          int       `json:"elo"`
	AvatarKey    *string   `json:"-"`
	AvatarURL    *string   `json:"avatar_url,omitempty"`
}

// TournamentDetails - агрегат турнира: сам турнир, ростер и все матчи сетки.
type TournamentDetails struct {
	Tournament *Tournament         `json:"tournament"`
	Players    []*TournamentPlayer `json:"players"`
	Matches    []*Match            `json:"matches"`
}

// PlayerIDs returns the user ids of the roster in registration order.
func (d *TournamentDetails) PlayerIDs() []int {
	if d == nil {
		return nil
	}
	ids := make([]int, 0, len(d.Players))
	for _, p := range d.Players {
		ids = append(ids, p.UserID)
	}
	return ids
}

// HasPlayer reports whether the user is on the roster.
func (d *TournamentDetails) HasPlayer(userID int) bool {
	if d == nil {
		return false
	}
	for _, p := range d.Players {
		if p.UserID == userID {
			return true
		}
	}
	return false
}
