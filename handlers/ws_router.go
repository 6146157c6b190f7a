package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/pong-tournaments/models"
	"github.com/Dosada05/pong-tournaments/services"
)

// Inbound websocket message types.
const (
	MsgCreateTournament    = "create_tournament"
	MsgJoinTournament      = "join_tournament"
	MsgLeaveTournament     = "leave_tournament"
	MsgStartTournament     = "start_tournament"
	MsgMatchAccept         = "tournament_match_accept"
	MsgMatchResult         = "tournament_match_result"
	MsgMatchReady          = "tournament_match_ready"
	MsgGetDetails          = "get_tournament_details"
	MsgListTournaments     = "list_tournaments"
	MsgListUserTournaments = "list_user_tournaments"
)

const defaultUserTournamentsLimit = 10

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type tournamentRef struct {
	TournamentID int `json:"tournamentId"`
}

type matchRef struct {
	MatchID int `json:"matchId"`
}

type createPayload struct {
	Name        string `json:"name"`
	PlayerCount int    `json:"playerCount"`
}

type resultPayload struct {
	MatchID    int             `json:"matchId"`
	WinnerID   int             `json:"winnerId"`
	FinalScore *services.Score `json:"finalScore"`
}

type pagePayload struct {
	Limit  *int `json:"limit"`
	Offset *int `json:"offset"`
}

// MessageRouter decodes client messages and calls the orchestrator. Failures go back to the sender as an error event.
type MessageRouter struct {
	orchestrator services.Orchestrator
	notifier     services.Notifier
	logger       *slog.Logger
}

func NewMessageRouter(orchestrator services.Orchestrator, notifier services.Notifier, logger *slog.Logger) *MessageRouter {
	return &MessageRouter{
		orchestrator: orchestrator,
		notifier:     notifier,
		logger:       logger,
	}
}

func (m *MessageRouter) Handle(ctx context.Context, clientID int, data []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
		m.sendError(clientID, "Invalid message format")
		return
	}

	logger := m.logger.With(slog.Int("client_id", clientID), slog.String("type", msg.Type))
	logger.DebugContext(ctx, "websocket message received")

	var err error
	var action string
	switch msg.Type {
	case MsgCreateTournament:
		action = "creating tournament"
		var p createPayload
		if err = decodePayload(msg.Payload, &p); err == nil {
			_, err = m.orchestrator.CreateTournament(ctx, clientID, p.Name, p.PlayerCount, true)
		}
	case MsgJoinTournament:
		action = "joining tournament"
		var p tournamentRef
		if err = decodePayload(msg.Payload, &p); err == nil {
			_, err = m.orchestrator.JoinTournament(ctx, clientID, p.TournamentID)
		}
	case MsgLeaveTournament:
		action = "leaving tournament"
		var p tournamentRef
		if err = decodePayload(msg.Payload, &p); err == nil {
			err = m.orchestrator.LeaveTournament(ctx, clientID, p.TournamentID)
		}
	case MsgStartTournament:
		action = "starting tournament"
		var p tournamentRef
		if err = decodePayload(msg.Payload, &p); err == nil {
			_, err = m.orchestrator.StartTournament(ctx, p.TournamentID)
		}
	case MsgMatchAccept:
		action = "accepting match"
		var p matchRef
		if err = decodePayload(msg.Payload, &p); err == nil {
			_, err = m.orchestrator.AcceptMatch(ctx, clientID, p.MatchID)
		}
	case MsgMatchReady:
		action = "preparing match"
		var p matchRef
		if err = decodePayload(msg.Payload, &p); err == nil {
			_, err = m.orchestrator.MatchReady(ctx, p.MatchID)
		}
	case MsgMatchResult:
		action = "submitting match result"
		var p resultPayload
		if err = decodePayload(msg.Payload, &p); err == nil {
			_, err = m.orchestrator.SubmitResult(ctx, p.MatchID, p.WinnerID, p.FinalScore)
		}
		if errors.Is(err, services.ErrAlreadyCompleted) {
			logger.InfoContext(ctx, "duplicate match result ignored")
			return
		}
	case MsgGetDetails:
		m.handleDetails(ctx, clientID, msg.Payload)
		return
	case MsgListTournaments:
		action = "listing tournaments"
		var list []models.Tournament
		if list, err = m.orchestrator.ListActive(ctx); err == nil {
			m.notifier.Send(clientID, services.EventTournamentList, services.TournamentListPayload{Tournaments: list})
		}
	case MsgListUserTournaments:
		action = "listing user tournaments"
		var p pagePayload
		if err = decodePayload(msg.Payload, &p); err == nil {
			limit, offset := defaultUserTournamentsLimit, 0
			if p.Limit != nil {
				limit = *p.Limit
			}
			if p.Offset != nil {
				offset = *p.Offset
			}
			var list []models.Tournament
			if list, err = m.orchestrator.ListForUser(ctx, clientID, limit, offset); err == nil {
				m.notifier.Send(clientID, services.EventUserTournamentList, services.TournamentListPayload{Tournaments: list})
			}
		}
	default:
		m.sendError(clientID, fmt.Sprintf("Unknown message type: %s", msg.Type))
		return
	}

	if err != nil {
		if isServiceError(err) {
			logger.InfoContext(ctx, "websocket action rejected", slog.Any("error", err))
		} else {
			logger.ErrorContext(ctx, "websocket action failed", slog.Any("error", err))
		}
		m.sendError(clientID, fmt.Sprintf("Error %s: %v", action, err))
	}
}

func (m *MessageRouter) handleDetails(ctx context.Context, clientID int, raw json.RawMessage) {
	var p tournamentRef
	if err := decodePayload(raw, &p); err != nil {
		m.sendError(clientID, fmt.Sprintf("Error getting tournament details: %v", err))
		return
	}

	details, err := m.orchestrator.WatchTournament(ctx, clientID, p.TournamentID)
	switch {
	case err == nil:
		m.notifier.Send(clientID, services.EventTournamentDetails, details)
	case errors.Is(err, services.ErrNotFound):
		m.notifier.Send(clientID, services.EventTournamentNotFound, services.TournamentNotFoundPayload{TournamentID: p.TournamentID})
	default:
		m.logger.ErrorContext(ctx, "failed to load tournament details",
			slog.Int("client_id", clientID), slog.Int("tournament_id", p.TournamentID), slog.Any("error", err))
		m.sendError(clientID, fmt.Sprintf("Error getting tournament details: %v", err))
	}
}

func (m *MessageRouter) sendError(clientID int, message string) {
	m.notifier.Send(clientID, services.EventError, services.MessagePayload{Message: message})
}

func decodePayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: malformed payload", services.ErrInvalidArgument)
	}
	return nil
}

// isServiceError reports whether err is an expected rejection rather than a failure.
func isServiceError(err error) bool {
	for _, category := range []error{
		services.ErrNotFound, services.ErrInvalidState, services.ErrInvalidArgument,
		services.ErrConflict, services.ErrFull, services.ErrAlreadyCompleted,
	} {
		if errors.Is(err, category) {
			return true
		}
	}
	return false
}
