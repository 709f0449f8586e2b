// Package main is the entry point for the relay server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/relay/internal/config"
	"github.com/capitalize-ai/relay/internal/handler"
	natsclient "github.com/capitalize-ai/relay/internal/nats"
	"github.com/capitalize-ai/relay/internal/service"
	"github.com/capitalize-ai/relay/pkg/logger"
	"github.com/capitalize-ai/relay/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	var log *logger.Logger
	if cfg.Env == "development" {
		log, err = logger.NewDevelopment()
	} else {
		log, err = logger.New(cfg.LogLevel)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	if err := run(cfg, log); err != nil {
		log.Error("relay exited", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting relay server")

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "relay", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(context.Background(), tp)
		}
	}

	// Optional NATS journal
	var (
		journal   service.EventJournal
		readiness handler.ReadinessChecker
	)
	if cfg.JournalEnabled() {
		natsClient, err := natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			return err
		}
		defer natsClient.Close(5 * time.Second)

		j := natsclient.NewJournal(natsClient)
		if err := j.EnsureStream(ctx); err != nil {
			return err
		}
		journal = j
		readiness = natsClient
		log.Info("event journal enabled", zap.String("stream", natsclient.StreamName))
	}

	// Core relay
	identities := service.NewIdentityRegistry(log)
	subscriptions := service.NewSubscriptionRegistry(cfg.FeedBufferSize, log)
	conversations := service.NewConversationStore(identities, subscriptions, log)
	relay := service.NewRelayService(identities, conversations, subscriptions, journal, log)

	router := handler.NewRouter(handler.RouterConfig{
		AllowedOrigins:    cfg.AllowedOrigins,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
		FeedHeartbeat:     cfg.FeedHeartbeatInterval,
	}, relay, readiness, log)

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.ServerReadTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("shutting down server")

	// Tell connected clients, then end every live feed so their handlers
	// return and Shutdown does not wait on open streams.
	relay.Announce(context.Background(), "server shutting down")
	subscriptions.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
	return nil
}
