package models

import "time"

type MatchType string

const (
	MatchTypeTournament MatchType = "tournament"
	MatchTypeOther      MatchType = "other"
)

type MatchStatus string

const (
	MatchStatusPending   MatchStatus = "pending"
	MatchStatusCompleted MatchStatus = "completed"
)

// Score values stored in match_players.score.
const (
	ScoreWin  = 1
	ScoreLoss = 0
)

type Match struct {
	ID           int            `json:"id"`
	TournamentID *int           `json:"tournament_id,omitempty"`
	Round        int            `json:"round"`
	MatchType    MatchType      `json:"match_type"`
	Status       MatchStatus    `json:"status"`
	WinnerGoals  *int           `json:"winner_goals,omitempty"`
	LoserGoals   *int           `json:"loser_goals,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	Players      []*MatchPlayer `json:"players"`
}

// MatchPlayer - участник матча. Слот 1 клиент рисует как первого игрока.
type MatchPlayer struct {
	MatchID   int     `json:"match_id"`
	UserID    int     `json:"player_id"`
	Slot      int     `json:"slot"`
	EloBefore int     `json:"elo_before"`
	EloAfter  *int    `json:"elo_after,omitempty"`
	Score     *int    `json:"score,omitempty"`
	Nickname  string  `json:"nickname"`
	Rating    int     `json:"rating"`
	AvatarKey *string `json:"-"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

func (m *Match) IsCompleted() bool {
	return m != nil && m.Status == MatchStatusCompleted
}

// Winner returns the user id of the player holding the winning score.
func (m *Match) Winner() (int, bool) {
	if m == nil {
		return 0, false
	}
	for _, p := range m.Players {
		if p.Score != nil && *p.Score == ScoreWin {
			return p.UserID, true
		}
	}
	return 0, false
}

func (m *Match) Player(userID int) (*MatchPlayer, bool) {
	if m == nil {
		return nil, false
	}
	for _, p := range m.Players {
		if p.UserID == userID {
			return p, true
		}
	}
	return nil, false
}

// Opponent returns the other participant of a two-player match.
func (m *Match) Opponent(userID int) (*MatchPlayer, bool) {
	if m == nil {
		return nil, false
	}
	for _, p := range m.Players {
		if p.UserID != userID {
			return p, true
		}
	}
	return nil, false
}

func (m *Match) PlayerIDs() []int {
	if m == nil {
		return nil
	}
	ids := make([]int, 0, len(m.Players))
	for _, p := range m.Players {
		ids = append(ids, p.UserID)
	}
	return ids
}
