package handlers

import (
	"errors"
	"net/http"

	"github.com/Dosada05/pong-tournaments/middleware"
	"github.com/Dosada05/pong-tournaments/models"
	"github.com/Dosada05/pong-tournaments/services"
)

type TournamentHandler struct {
	orchestrator services.Orchestrator
}

func NewTournamentHandler(orchestrator services.Orchestrator) *TournamentHandler {
	return &TournamentHandler{orchestrator: orchestrator}
}

type createTournamentInput struct {
	Name        string `json:"name"`
	PlayerCount int    `json:"playerCount"`
}

type registerPlayerInput struct {
	UserID int `json:"userId"`
}

type submitResultInput struct {
	WinnerID   int             `json:"winnerId"`
	FinalScore *services.Score `json:"finalScore"`
}

type registrationResponse struct {
	TournamentID int             `json:"tournamentId"`
	UserID       int             `json:"userId"`
	Registered   int             `json:"registered,omitempty"`
	PlayerCount  int             `json:"playerCount,omitempty"`
	Started      bool            `json:"started"`
	Rejoined     bool            `json:"rejoined,omitempty"`
	Matches      []*models.Match `json:"matches,omitempty"`
}

type resultResponse struct {
	MatchID         int             `json:"matchId"`
	TournamentID    int             `json:"tournamentId"`
	WinnerID        int             `json:"winnerId"`
	LoserID         int             `json:"loserId"`
	WinnerNewElo    int             `json:"winnerNewElo"`
	LoserNewElo     int             `json:"loserNewElo"`
	WinnerEloChange int             `json:"winnerEloChange"`
	LoserEloChange  int             `json:"loserEloChange"`
	Round           int             `json:"round,omitempty"`
	NewMatches      []*models.Match `json:"newMatches,omitempty"`
	Completed       bool            `json:"completed"`
	ChampionID      int             `json:"championId,omitempty"`
}

// CreateHandler обрабатывает POST /api/tournaments
// @Summary Создать турнир
// @Tags tournaments
// @Description Создает турнир на 4 или 8 игроков. Создатель не регистрируется автоматически.
// @Accept json
// @Produce json
// @Param body body createTournamentInput true "name и playerCount"
// @Success 201 {object} map[string]interface{} "Турнир создан"
// @Failure 400 {object} map[string]string "Ошибка валидации"
// @Failure 401 {object} map[string]string "Неавторизован"
// @Security BearerAuth
// @Router /api/tournaments [post]
func (h *TournamentHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required to create tournament")
		return
	}

	var input createTournamentInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.orchestrator.CreateTournament(r.Context(), currentUserID, input.Name, input.PlayerCount, false)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetByIDHandler обрабатывает GET /api/tournaments/{tournamentID}
// @Summary Получить турнир с ростером и сеткой
// @Tags tournaments
// @Produce json
// @Param tournamentID path int true "Tournament ID"
// @Success 200 {object} map[string]interface{} "Турнир найден"
// @Failure 400 {object} map[string]string "Некорректный ID"
// @Failure 404 {object} map[string]string "Турнир не найден"
// @Router /api/tournaments/{tournamentID} [get]
func (h *TournamentHandler) GetByIDHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	details, err := h.orchestrator.TournamentDetails(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": details}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListHandler обрабатывает GET /api/tournaments
// @Summary Список турниров
// @Tags tournaments
// @Produce json
// @Param status query string false "registering | in_progress | completed"
// @Param limit query int false "Limit (default 20, max 100)"
// @Param offset query int false "Offset"
// @Success 200 {object} map[string]interface{} "Список турниров"
// @Failure 400 {object} map[string]string "Некорректные параметры"
// @Router /api/tournaments [get]
func (h *TournamentHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	var filter services.TournamentListFilter
	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		status := models.TournamentStatus(statusStr)
		filter.Status = &status
	}

	var err error
	if filter.Limit, err = queryInt(r, "limit", 0); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if filter.Offset, err = queryInt(r, "offset", 0); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournaments, err := h.orchestrator.ListTournaments(r.Context(), filter)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournaments": tournaments}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// RegisterPlayerHandler обрабатывает POST /api/tournaments/{tournamentID}/players
// @Summary Зарегистрировать игрока
// @Tags tournaments
// @Description Регистрирует текущего пользователя. userId, если передан, должен совпадать с ним. Последняя регистрация запускает турнир.
// @Accept json
// @Produce json
// @Param tournamentID path int true "Tournament ID"
// @Param body body registerPlayerInput false "userId"
// @Success 200 {object} registrationResponse
// @Failure 403 {object} map[string]string "Чужой userId"
// @Failure 404 {object} map[string]string "Турнир или пользователь не найден"
// @Failure 409 {object} map[string]string "Уже зарегистрирован или мест нет"
// @Failure 422 {object} map[string]string "Регистрация закрыта"
// @Security BearerAuth
// @Router /api/tournaments/{tournamentID}/players [post]
func (h *TournamentHandler) RegisterPlayerHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	callerID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required to register")
		return
	}

	var input registerPlayerInput
	if r.ContentLength != 0 {
		if err := readJSON(w, r, &input); err != nil {
			badRequestResponse(w, r, err)
			return
		}
	}
	if input.UserID < 0 {
		badRequestResponse(w, r, errors.New("userId must be positive"))
		return
	}
	if input.UserID == 0 {
		input.UserID = callerID
	}
	// Зарегистрировать можно только себя.
	if input.UserID != callerID {
		forbiddenResponse(w, r, "players can only register themselves")
		return
	}

	join, err := h.orchestrator.JoinTournament(r.Context(), input.UserID, tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	resp := registrationResponse{
		TournamentID: tournamentID,
		UserID:       input.UserID,
		Started:      join.Started,
		Rejoined:     join.Rejoined,
		Matches:      join.Matches,
	}
	if join.Registration != nil {
		resp.Registered = join.Registration.Registered
		resp.PlayerCount = join.Registration.PlayerCount
	}
	if err := writeJSON(w, http.StatusOK, resp, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// RemovePlayerHandler обрабатывает DELETE /api/tournaments/{tournamentID}/players/{userID}
// @Summary Удалить игрока из турнира
// @Tags tournaments
// @Param tournamentID path int true "Tournament ID"
// @Param userID path int true "User ID"
// @Success 204 "Игрок удален"
// @Failure 403 {object} map[string]string "Удалить можно только себя"
// @Failure 404 {object} map[string]string "Игрок не зарегистрирован"
// @Failure 422 {object} map[string]string "Турнир уже начался"
// @Security BearerAuth
// @Router /api/tournaments/{tournamentID}/players/{userID} [delete]
func (h *TournamentHandler) RemovePlayerHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	userID, err := getIDFromURL(r, "userID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	callerID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	if userID != callerID {
		forbiddenResponse(w, r, "players can only remove themselves")
		return
	}

	if err := h.orchestrator.LeaveTournament(r.Context(), userID, tournamentID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StartHandler обрабатывает POST /api/tournaments/{tournamentID}/start
// @Summary Запустить турнир
// @Tags tournaments
// @Produce json
// @Param tournamentID path int true "Tournament ID"
// @Success 200 {object} map[string]interface{} "Матчи первого раунда"
// @Failure 404 {object} map[string]string "Турнир не найден"
// @Failure 422 {object} map[string]string "Ростер не заполнен или турнир уже идет"
// @Security BearerAuth
// @Router /api/tournaments/{tournamentID}/start [post]
func (h *TournamentHandler) StartHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	matches, err := h.orchestrator.StartTournament(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"matches": matches}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// SubmitResultHandler обрабатывает POST /api/tournaments/matches/{matchID}/result
// @Summary Зафиксировать результат матча
// @Tags matches
// @Accept json
// @Produce json
// @Param matchID path int true "Match ID"
// @Param body body submitResultInput true "winnerId и необязательный finalScore"
// @Success 200 {object} resultResponse
// @Failure 400 {object} map[string]string "Победитель не участвует в матче"
// @Failure 404 {object} map[string]string "Матч не найден"
// @Failure 409 {object} map[string]string "Матч уже завершен"
// @Security BearerAuth
// @Router /api/tournaments/matches/{matchID}/result [post]
func (h *TournamentHandler) SubmitResultHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input submitResultInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.WinnerID <= 0 {
		badRequestResponse(w, r, errors.New("winnerId is required"))
		return
	}

	res, err := h.orchestrator.SubmitResult(r.Context(), matchID, input.WinnerID, input.FinalScore)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	out := res.Outcome
	resp := resultResponse{
		MatchID:         out.MatchID,
		TournamentID:    out.TournamentID,
		WinnerID:        out.WinnerID,
		LoserID:         out.LoserID,
		WinnerNewElo:    out.WinnerNewElo,
		LoserNewElo:     out.LoserNewElo,
		WinnerEloChange: out.WinnerEloChange,
		LoserEloChange:  out.LoserEloChange,
	}
	if p := res.Progression; p != nil {
		resp.Round = p.Round
		resp.NewMatches = p.NewMatches
		resp.Completed = p.Completed
		resp.ChampionID = p.ChampionID
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"result": resp}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
