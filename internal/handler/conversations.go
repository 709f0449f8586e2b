package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/capitalize-ai/relay/internal/model"
	"github.com/capitalize-ai/relay/internal/service"
	"github.com/capitalize-ai/relay/pkg/logger"
)

// ConversationHandler handles conversation and message endpoints.
type ConversationHandler struct {
	relay  *service.RelayService
	logger *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(relay *service.RelayService, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		relay:  relay,
		logger: log,
	}
}

// Connect handles POST /api/v1/conversations
func (h *ConversationHandler) Connect(w http.ResponseWriter, r *http.Request) {
	var req model.ConnectRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	conv, err := h.relay.Connect(r.Context(), req.From, req.To)
	if err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

// Get handles GET /api/v1/conversations/{id}
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	conv, err := h.relay.Conversation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

// Send handles POST /api/v1/conversations/{id}/messages
func (h *ConversationHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req model.SendMessageRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	msg, err := h.relay.SendMessage(r.Context(), chi.URLParam(r, "id"), req.From, req.Text)
	if err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, &model.SendMessageResponse{Message: &msg})
}
