package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"gridlords/internal/auth"
	"gridlords/internal/service"
)

// GameHandler handles game lifecycle and gameplay endpoints.
type GameHandler struct {
	gameSvc *service.GameService
}

// NewGameHandler creates a GameHandler.
func NewGameHandler(gameSvc *service.GameService) *GameHandler {
	return &GameHandler{gameSvc: gameSvc}
}

// CreateGame handles POST /api/v1/games
func (h *GameHandler) CreateGame(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req struct {
		Name        string   `json:"name"`
		PlayerCount int      `json:"player_count"`
		BoardWidth  int      `json:"board_width"`
		BoardHeight int      `json:"board_height"`
		Bots        []string `json:"bots"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	game, err := h.gameSvc.CreateGame(r.Context(), userID, req.Name, req.PlayerCount, req.BoardWidth, req.BoardHeight, req.Bots)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidPlayers),
			errors.Is(err, service.ErrInvalidBoard),
			errors.Is(err, service.ErrInvalidDifficulty):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			log.Error().Err(err).Msg("Failed to create game")
			writeError(w, http.StatusInternalServerError, "failed to create game")
		}
		return
	}
	writeJSON(w, http.StatusCreated, game)
}

// ListGames handles GET /api/v1/games
// ?filter=my lists the caller's games, ?filter=finished lists completed
// games (optionally narrowed by ?search=), default lists waiting games.
func (h *GameHandler) ListGames(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	games, err := h.gameSvc.ListGames(r.Context(), userID, r.URL.Query().Get("filter"), r.URL.Query().Get("search"))
	if err != nil {
		log.Error().Err(err).Msg("Failed to list games")
		writeError(w, http.StatusInternalServerError, "failed to list games")
		return
	}
	if games == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, games)
}

// GetGame handles GET /api/v1/games/{id}
func (h *GameHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	game, err := h.gameSvc.GetGame(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, service.ErrGameNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Error().Err(err).Msg("Failed to get game")
		writeError(w, http.StatusInternalServerError, "failed to get game")
		return
	}
	writeJSON(w, http.StatusOK, game)
}

// StartGame handles POST /api/v1/games/{id}/start
func (h *GameHandler) StartGame(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	game, err := h.gameSvc.StartGame(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrGameNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrNotCreator):
			writeError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, service.ErrGameNotWaiting):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			log.Error().Err(err).Msg("Failed to start game")
			writeError(w, http.StatusInternalServerError, "failed to start game")
		}
		return
	}
	writeJSON(w, http.StatusOK, game)
}

// StopGame handles POST /api/v1/games/{id}/stop
func (h *GameHandler) StopGame(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	gameID := r.PathValue("id")

	if err := h.gameSvc.StopGame(r.Context(), gameID, userID); err != nil {
		switch {
		case errors.Is(err, service.ErrGameNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrNotCreator):
			writeError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, service.ErrGameNotActive):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			log.Error().Err(err).Msg("Failed to stop game")
			writeError(w, http.StatusInternalServerError, "failed to stop game")
		}
		return
	}

	game, err := h.gameSvc.GetGame(r.Context(), gameID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to reload stopped game")
		writeError(w, http.StatusInternalServerError, "failed to stop game")
		return
	}
	writeJSON(w, http.StatusOK, game)
}

// DeleteGame handles DELETE /api/v1/games/{id}
func (h *GameHandler) DeleteGame(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	if err := h.gameSvc.DeleteGame(r.Context(), r.PathValue("id"), userID); err != nil {
		switch {
		case errors.Is(err, service.ErrGameNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrNotCreator):
			writeError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, service.ErrGameActive):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			log.Error().Err(err).Msg("Failed to delete game")
			writeError(w, http.StatusInternalServerError, "failed to delete game")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// GetState handles GET /api/v1/games/{id}/state
func (h *GameHandler) GetState(w http.ResponseWriter, r *http.Request) {
	state, err := h.gameSvc.State(r.Context(), r.PathValue("id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrGameNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrGameNotActive):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			log.Error().Err(err).Msg("Failed to get game state")
			writeError(w, http.StatusInternalServerError, "failed to get game state")
		}
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// SubmitMove handles POST /api/v1/games/{id}/moves
func (h *GameHandler) SubmitMove(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req struct {
		FromX    int    `json:"from_x"`
		FromY    int    `json:"from_y"`
		ToX      int    `json:"to_x"`
		ToY      int    `json:"to_y"`
		MoveType string `json:"move_type"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	state, err := h.gameSvc.SubmitMove(r.Context(), r.PathValue("id"), userID, req.FromX, req.FromY, req.ToX, req.ToY, req.MoveType)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrGameNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrNotInGame):
			writeError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, service.ErrGameNotActive),
			errors.Is(err, service.ErrNotYourTurn),
			errors.Is(err, service.ErrInvalidMove):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			log.Error().Err(err).Msg("Failed to submit move")
			writeError(w, http.StatusInternalServerError, "failed to submit move")
		}
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// ListMoves handles GET /api/v1/games/{id}/moves
func (h *GameHandler) ListMoves(w http.ResponseWriter, r *http.Request) {
	moves, err := h.gameSvc.MoveLog(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, service.ErrGameNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Error().Err(err).Msg("Failed to list moves")
		writeError(w, http.StatusInternalServerError, "failed to list moves")
		return
	}
	if moves == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, moves)
}

// EndTurn handles POST /api/v1/games/{id}/end-turn
func (h *GameHandler) EndTurn(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	state, err := h.gameSvc.EndTurn(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrGameNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrNotInGame):
			writeError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, service.ErrGameNotActive),
			errors.Is(err, service.ErrNotYourTurn):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			log.Error().Err(err).Msg("Failed to end turn")
			writeError(w, http.StatusInternalServerError, "failed to end turn")
		}
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// GetDecision handles GET /api/v1/games/{id}/decision
// Returns the move a bot of ?difficulty= would play from the current
// position, without applying it. A null move means pass.
func (h *GameHandler) GetDecision(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	mv, err := h.gameSvc.Decision(r.Context(), r.PathValue("id"), userID, r.URL.Query().Get("difficulty"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrGameNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrNotInGame):
			writeError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, service.ErrGameNotActive),
			errors.Is(err, service.ErrInvalidDifficulty):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			log.Error().Err(err).Msg("Failed to compute decision")
			writeError(w, http.StatusInternalServerError, "failed to compute decision")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"move": mv})
}

// SetController handles PUT /api/v1/games/{id}/seats/{seat}/controller
func (h *GameHandler) SetController(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	seat, err := strconv.Atoi(r.PathValue("seat"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid seat")
		return
	}
	var req struct {
		Difficulty string `json:"difficulty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.gameSvc.SetSeatController(r.Context(), r.PathValue("id"), userID, seat, req.Difficulty); err != nil {
		switch {
		case errors.Is(err, service.ErrGameNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrNotCreator):
			writeError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, service.ErrInvalidSeat),
			errors.Is(err, service.ErrInvalidDifficulty),
			errors.Is(err, service.ErrGameNotActive):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			log.Error().Err(err).Msg("Failed to set controller")
			writeError(w, http.StatusInternalServerError, "failed to set controller")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "controller set"})
}

// RemoveController handles DELETE /api/v1/games/{id}/seats/{seat}/controller
// The human plays the seat's turns until a controller is set again.
func (h *GameHandler) RemoveController(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	seat, err := strconv.Atoi(r.PathValue("seat"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid seat")
		return
	}

	if err := h.gameSvc.RemoveSeatController(r.Context(), r.PathValue("id"), userID, seat); err != nil {
		switch {
		case errors.Is(err, service.ErrGameNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrNotCreator):
			writeError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, service.ErrInvalidSeat),
			errors.Is(err, service.ErrGameNotActive):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			log.Error().Err(err).Msg("Failed to remove controller")
			writeError(w, http.StatusInternalServerError, "failed to remove controller")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "controller removed"})
}

// Leaderboard handles GET /api/v1/leaderboard
func (h *GameHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.gameSvc.Leaderboard(r.Context(), parseLimit(r, 10))
	if err != nil {
		log.Error().Err(err).Msg("Failed to load leaderboard")
		writeError(w, http.StatusInternalServerError, "failed to load leaderboard")
		return
	}
	if entries == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// RecentResults handles GET /api/v1/results/recent
func (h *GameHandler) RecentResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.gameSvc.RecentResults(r.Context(), parseLimit(r, 10))
	if err != nil {
		log.Error().Err(err).Msg("Failed to load recent results")
		writeError(w, http.StatusInternalServerError, "failed to load recent results")
		return
	}
	if results == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// parseLimit reads ?limit= clamped to 1..100, or the default.
func parseLimit(r *http.Request, def int64) int64 {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 1 {
		return def
	}
	if n > 100 {
		return 100
	}
	return n
}
