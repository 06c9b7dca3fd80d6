package handler

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"gridlords/internal/auth"
	"gridlords/internal/bot"
	"gridlords/internal/service"
)

// MessageHandler handles in-game chat endpoints.
type MessageHandler struct {
	gameSvc *service.GameService
}

// NewMessageHandler creates a MessageHandler.
func NewMessageHandler(gameSvc *service.GameService) *MessageHandler {
	return &MessageHandler{gameSvc: gameSvc}
}

// SendMessage handles POST /api/v1/games/{id}/messages
// Empty recipient_id broadcasts to the table.
func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req struct {
		RecipientID string `json:"recipient_id"`
		Content     string `json:"content"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	msg, err := h.gameSvc.SendMessage(r.Context(), r.PathValue("id"), userID, req.RecipientID, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrGameNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrNotInGame):
			writeError(w, http.StatusForbidden, err.Error())
		default:
			log.Error().Err(err).Msg("Failed to send message")
			writeError(w, http.StatusInternalServerError, "failed to send message")
		}
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// MessageTemplates handles GET /api/v1/messages/templates
// Lists the canned chat lines bots understand, with their placeholders,
// for clients that surface a quick-chat picker.
func (h *MessageHandler) MessageTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"templates": bot.CannedMessageTemplates()})
}

// ListMessages handles GET /api/v1/games/{id}/messages
// Returns public messages plus private ones the caller sent or received.
func (h *MessageHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	messages, err := h.gameSvc.ListMessages(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrGameNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrNotInGame):
			writeError(w, http.StatusForbidden, err.Error())
		default:
			log.Error().Err(err).Msg("Failed to list messages")
			writeError(w, http.StatusInternalServerError, "failed to list messages")
		}
		return
	}
	if messages == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, messages)
}
