package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/relay/internal/middleware"
	"github.com/capitalize-ai/relay/internal/service"
	"github.com/capitalize-ai/relay/pkg/logger"
)

// StreamHandler serves live feeds over server-sent events.
type StreamHandler struct {
	relay     *service.RelayService
	logger    *logger.Logger
	heartbeat time.Duration
}

// NewStreamHandler creates a new stream handler that writes a keep-alive
// comment every heartbeat.
func NewStreamHandler(relay *service.RelayService, heartbeat time.Duration, log *logger.Logger) *StreamHandler {
	return &StreamHandler{
		relay:     relay,
		logger:    log,
		heartbeat: heartbeat,
	}
}

// Feed handles GET /api/v1/identities/{id}/feed
func (h *StreamHandler) Feed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identityID := chi.URLParam(r, "id")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	feed, err := h.relay.OpenLiveFeed(ctx, identityID)
	if err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}
	defer feed.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	log := h.logger.WithRequest(middleware.GetCorrelationID(ctx), identityID)
	log.Info("live feed connected")

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("live feed disconnected")
			return

		case event, ok := <-feed.Events():
			if !ok {
				// Server shutting down.
				return
			}
			if err := sendSSEEvent(w, flusher, string(event.Type), event); err != nil {
				log.Warn("live feed write failed", zap.Error(err))
				return
			}

		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	flusher.Flush()

	return nil
}
