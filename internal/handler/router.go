package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/relay/internal/middleware"
	"github.com/capitalize-ai/relay/internal/service"
	"github.com/capitalize-ai/relay/pkg/logger"
)

// RouterConfig carries the HTTP-level settings of the router.
type RouterConfig struct {
	AllowedOrigins    []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	FeedHeartbeat     time.Duration
}

// NewRouter builds the relay HTTP API. journal may be nil.
func NewRouter(cfg RouterConfig, relay *service.RelayService, journal ReadinessChecker, log *logger.Logger) http.Handler {
	healthHandler := NewHealthHandler(journal)
	identityHandler := NewIdentityHandler(relay, log)
	conversationHandler := NewConversationHandler(relay, log)
	streamHandler := NewStreamHandler(relay, cfg.FeedHeartbeat, log)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Route("/identities", func(r chi.Router) {
			r.Post("/", identityHandler.Register)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", identityHandler.Get)
				r.Put("/", identityHandler.Rename)
				r.Get("/conversations", identityHandler.Conversations)
				r.Get("/feed", streamHandler.Feed)
			})
		})

		r.Route("/conversations", func(r chi.Router) {
			r.Post("/", conversationHandler.Connect)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", conversationHandler.Get)
				r.Post("/messages", conversationHandler.Send)
			})
		})
	})

	return r
}
