package handlers

import (
	"context"
	"testing"

	"github.com/Dosada05/pong-tournaments/models"
	"github.com/Dosada05/pong-tournaments/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(orch *stubOrchestrator) (*MessageRouter, *recordingNotifier) {
	notifier := &recordingNotifier{}
	return NewMessageRouter(orch, notifier, testLogger()), notifier
}

func TestMessageRouter_Dispatch(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		wantCall string
		wantID   int
	}{
		{name: "create", message: `{"type":"create_tournament","payload":{"name":"Cup","playerCount":4}}`, wantCall: "create"},
		{name: "join", message: `{"type":"join_tournament","payload":{"tournamentId":4}}`, wantCall: "join", wantID: 4},
		{name: "leave", message: `{"type":"leave_tournament","payload":{"tournamentId":4}}`, wantCall: "leave", wantID: 4},
		{name: "start", message: `{"type":"start_tournament","payload":{"tournamentId":4}}`, wantCall: "start", wantID: 4},
		{name: "accept", message: `{"type":"tournament_match_accept","payload":{"matchId":9}}`, wantCall: "accept", wantID: 9},
		{name: "ready", message: `{"type":"tournament_match_ready","payload":{"matchId":9}}`, wantCall: "ready", wantID: 9},
		{name: "result", message: `{"type":"tournament_match_result","payload":{"matchId":9,"winnerId":2}}`, wantCall: "result", wantID: 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orch := &stubOrchestrator{}
			router, notifier := newTestRouter(orch)

			router.Handle(context.Background(), 2, []byte(tt.message))

			assert.Equal(t, []string{tt.wantCall}, orch.called())
			assert.Equal(t, tt.wantID, orch.lastID)
			assert.Empty(t, notifier.all(), "success events are the dispatcher's job")
		})
	}
}

func TestMessageRouter_CreateAutoRegisters(t *testing.T) {
	orch := &stubOrchestrator{}
	router, _ := newTestRouter(orch)
	router.Handle(context.Background(), 3, []byte(`{"type":"create_tournament","payload":{"name":"Cup","playerCount":8}}`))
	assert.True(t, orch.lastAuto)
	assert.Equal(t, 3, orch.lastActor)
}

func TestMessageRouter_Errors(t *testing.T) {
	orch := &stubOrchestrator{err: services.ErrTournamentFull}
	router, notifier := newTestRouter(orch)

	router.Handle(context.Background(), 2, []byte(`{"type":"join_tournament","payload":{"tournamentId":4}}`))

	events := notifier.all()
	require.Len(t, events, 1)
	assert.Equal(t, 2, events[0].To)
	assert.Equal(t, services.EventError, events[0].Type)
	msg := events[0].Payload.(services.MessagePayload).Message
	assert.Equal(t, "Error joining tournament: "+services.ErrTournamentFull.Error(), msg)
}

func TestMessageRouter_DuplicateResultIsSilent(t *testing.T) {
	orch := &stubOrchestrator{err: services.ErrAlreadyCompleted}
	router, notifier := newTestRouter(orch)

	router.Handle(context.Background(), 2, []byte(`{"type":"tournament_match_result","payload":{"matchId":9,"winnerId":2}}`))
	assert.Empty(t, notifier.all())
}

func TestMessageRouter_MalformedInput(t *testing.T) {
	orch := &stubOrchestrator{}
	router, notifier := newTestRouter(orch)

	router.Handle(context.Background(), 2, []byte(`not json`))
	router.Handle(context.Background(), 2, []byte(`{"type":"dance"}`))
	router.Handle(context.Background(), 2, []byte(`{"type":"join_tournament","payload":"four"}`))

	events := notifier.all()
	require.Len(t, events, 3)
	assert.Equal(t, "Invalid message format", events[0].Payload.(services.MessagePayload).Message)
	assert.Equal(t, "Unknown message type: dance", events[1].Payload.(services.MessagePayload).Message)
	assert.Contains(t, events[2].Payload.(services.MessagePayload).Message, "Error joining tournament")
	assert.Empty(t, orch.called())
}

func TestMessageRouter_Details(t *testing.T) {
	details := &models.TournamentDetails{Tournament: &models.Tournament{ID: 4}}
	orch := &stubOrchestrator{details: details}
	router, notifier := newTestRouter(orch)

	router.Handle(context.Background(), 2, []byte(`{"type":"get_tournament_details","payload":{"tournamentId":4}}`))
	events := notifier.all()
	require.Len(t, events, 1)
	assert.Equal(t, services.EventTournamentDetails, events[0].Type)
	assert.Same(t, details, events[0].Payload)
	assert.Equal(t, []string{"watch"}, orch.called())

	orch.err = services.ErrTournamentNotFound
	router.Handle(context.Background(), 2, []byte(`{"type":"get_tournament_details","payload":{"tournamentId":77}}`))
	events = notifier.all()
	require.Len(t, events, 2)
	assert.Equal(t, services.EventTournamentNotFound, events[1].Type)
	assert.Equal(t, services.TournamentNotFoundPayload{TournamentID: 77}, events[1].Payload)
}

func TestMessageRouter_Lists(t *testing.T) {
	orch := &stubOrchestrator{list: []models.Tournament{{ID: 1}, {ID: 2}}}
	router, notifier := newTestRouter(orch)

	router.Handle(context.Background(), 2, []byte(`{"type":"list_tournaments"}`))
	router.Handle(context.Background(), 2, []byte(`{"type":"list_user_tournaments","payload":{}}`))
	assert.Equal(t, 10, orch.lastLimit)
	assert.Equal(t, 0, orch.lastOffset)

	router.Handle(context.Background(), 2, []byte(`{"type":"list_user_tournaments","payload":{"limit":3,"offset":6}}`))
	assert.Equal(t, 3, orch.lastLimit)
	assert.Equal(t, 6, orch.lastOffset)

	events := notifier.all()
	require.Len(t, events, 3)
	assert.Equal(t, services.EventTournamentList, events[0].Type)
	assert.Equal(t, services.EventUserTournamentList, events[1].Type)
	assert.Len(t, events[0].Payload.(services.TournamentListPayload).Tournaments, 2)
}
