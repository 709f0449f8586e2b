// Package handler provides HTTP handlers for the relay API.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/capitalize-ai/relay/internal/model"
	"github.com/capitalize-ai/relay/internal/service"
	"github.com/capitalize-ai/relay/pkg/logger"
)

// IdentityHandler handles identity endpoints.
type IdentityHandler struct {
	relay  *service.RelayService
	logger *logger.Logger
}

// NewIdentityHandler creates a new identity handler.
func NewIdentityHandler(relay *service.RelayService, log *logger.Logger) *IdentityHandler {
	return &IdentityHandler{
		relay:  relay,
		logger: log,
	}
}

// Register handles POST /api/v1/identities
func (h *IdentityHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterIdentityRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	ident, err := h.relay.RegisterOrUpdateIdentity(r.Context(), req.ID, req.Name)
	if err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ident)
}

// Get handles GET /api/v1/identities/{id}
func (h *IdentityHandler) Get(w http.ResponseWriter, r *http.Request) {
	ident, err := h.relay.Identity(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ident)
}

// Rename handles PUT /api/v1/identities/{id}
func (h *IdentityHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req model.RenameIdentityRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	ident, err := h.relay.RenameIdentity(r.Context(), chi.URLParam(r, "id"), req.Name)
	if err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ident)
}

// Conversations handles GET /api/v1/identities/{id}/conversations
func (h *IdentityHandler) Conversations(w http.ResponseWriter, r *http.Request) {
	convs, err := h.relay.Conversations(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, &model.ListConversationsResponse{
		Conversations: convs,
		Total:         len(convs),
	})
}
