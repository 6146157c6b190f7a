package services

import (
	"fmt"

	"github.com/Dosada05/pong-tournaments/models"
)

// Outbound websocket event types.
const (
	EventTournamentCreated      = "tournament_created"
	EventTournamentJoined       = "tournament_joined"
	EventTournamentLeft         = "tournament_left"
	EventTournamentPlayerJoined = "tournament_player_joined"
	EventTournamentPlayerLeft   = "tournament_player_left"
	EventTournamentStarted      = "tournament_started"
	EventMatchNotification      = "tournament_match_notification"
	EventMatchAccepted          = "tournament_match_accepted"
	EventOpponentAccepted       = "tournament_opponent_accepted"
	EventMatchStarting          = "tournament_match_starting"
	EventMatchCompleted         = "tournament_match_completed"
	EventTournamentCompleted    = "tournament_completed"
	EventTournamentDetails      = "tournament_details"
	EventTournamentNotFound     = "tournament_not_found"
	EventTournamentList         = "tournament_list"
	EventUserTournamentList     = "user_tournament_list"
	EventError                  = "error"
)

const (
	nextMatchMessage        = "Your next tournament match is ready!"
	matchAcceptedMessage    = "Match accepted! Waiting for opponent..."
	opponentAcceptedMessage = "Your opponent is ready!"
)

// TournamentRoom is the room spectators of a tournament are joined to.
func TournamentRoom(tournamentID int) string {
	return fmt.Sprintf("tournament:%d", tournamentID)
}

type TournamentCreatedPayload struct {
	Tournament        *models.Tournament        `json:"tournament"`
	TournamentDetails *models.TournamentDetails `json:"tournamentDetails"`
}

type MembershipPayload struct {
	TournamentID int  `json:"tournamentId"`
	Success      bool `json:"success"`
}

type PlayerJoinedPayload struct {
	TournamentID int                        `json:"tournamentId"`
	Players      []*models.TournamentPlayer `json:"players"`
}

type PlayerLeftPayload struct {
	TournamentID int                        `json:"tournamentId"`
	PlayerID     int                        `json:"playerId"`
	Players      []*models.TournamentPlayer `json:"players"`
}

type TournamentStartedPayload struct {
	TournamentID int                `json:"tournamentId"`
	Tournament   *models.Tournament `json:"tournament"`
	Matches      []*models.Match    `json:"matches"`
}

type MatchNotificationPayload struct {
	TournamentID int                  `json:"tournamentId"`
	MatchID      int                  `json:"matchId"`
	Opponent     models.PublicProfile `json:"opponent"`
	Round        int                  `json:"round"`
	Message      string               `json:"message,omitempty"`
}

type MatchAcceptedPayload struct {
	TournamentID int    `json:"tournamentId"`
	MatchID      int    `json:"matchId"`
	Message      string `json:"message"`
}

type OpponentAcceptedPayload struct {
	TournamentID    int    `json:"tournamentId"`
	MatchID         int    `json:"matchId"`
	AcceptingPlayer int    `json:"acceptingPlayer"`
	Message         string `json:"message"`
}

type MatchStartingPayload struct {
	MatchID      int                  `json:"matchId"`
	TournamentID int                  `json:"tournamentId"`
	Opponent     models.PublicProfile `json:"opponent"`
	IsPlayer1    bool                 `json:"isPlayer1"`
}

type MatchCompletedPayload struct {
	TournamentID    int                `json:"tournamentId"`
	MatchID         int                `json:"matchId"`
	WinnerID        int                `json:"winnerId"`
	WinnerGoals     *int               `json:"winnerGoals,omitempty"`
	LoserGoals      *int               `json:"loserGoals,omitempty"`
	WinnerEloChange int                `json:"winnerEloChange"`
	LoserEloChange  int                `json:"loserEloChange"`
	Tournament      *models.Tournament `json:"tournament"`
	Matches         []*models.Match    `json:"matches"`
}

type TournamentCompletedPayload struct {
	TournamentID int                        `json:"tournamentId"`
	Champion     int                        `json:"champion"`
	Tournament   *models.Tournament         `json:"tournament"`
	Matches      []*models.Match            `json:"matches"`
	Players      []*models.TournamentPlayer `json:"players"`
}

type TournamentListPayload struct {
	Tournaments []models.Tournament `json:"tournaments"`
}

type MessagePayload struct {
	Message string `json:"message"`
}

type TournamentNotFoundPayload struct {
	TournamentID int `json:"tournamentId"`
}
