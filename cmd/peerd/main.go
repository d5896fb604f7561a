// Command peerd is the collaborative-space daemon: it holds one user's
// Peer runtime (session, roster, event channel, materializer, live
// query registry) and exposes it to a local UI over a websocket RPC
// port, per spec.md §4.8/§9. Wiring mirrors the teacher's cmd/main.go —
// config, OpenTelemetry, logger, store, cache, component graph, HTTP
// server, signal-driven graceful shutdown — generalized from a chat
// backend's fixed component set to spacepeer's sync stack.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roomyhq/spacepeer/internal/cache"
	"github.com/roomyhq/spacepeer/internal/config"
	"github.com/roomyhq/spacepeer/internal/eventchannel"
	"github.com/roomyhq/spacepeer/internal/identity"
	"github.com/roomyhq/spacepeer/internal/identity/testidentity"
	"github.com/roomyhq/spacepeer/internal/livequery"
	"github.com/roomyhq/spacepeer/internal/logging"
	"github.com/roomyhq/spacepeer/internal/materializer"
	"github.com/roomyhq/spacepeer/internal/observability"
	"github.com/roomyhq/spacepeer/internal/peer"
	"github.com/roomyhq/spacepeer/internal/rpc"
	"github.com/roomyhq/spacepeer/internal/storage"
	"github.com/roomyhq/spacepeer/internal/storage/migrations"
)

const reapInterval = 30 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func main() {
	cfg := config.Load()

	otelCleanup, err := observability.InitOpenTelemetry("spacepeer-peerd", "1.0.0")
	if err != nil {
		log.Fatalf("failed to initialize OpenTelemetry: %v", err)
	}
	defer func() {
		if err := otelCleanup(context.Background()); err != nil {
			log.Printf("error shutting down OpenTelemetry: %v", err)
		}
	}()

	logger := logging.New(cfg.LogLevel)
	ctx := context.Background()

	if err := migrations.Up(cfg.DatabaseURL); err != nil {
		logger.Fatal(ctx, "failed to run migrations: %v", err)
	}

	store, err := storage.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize storage: %v", err)
	}

	redisCache, err := cache.New(cfg.RedisURL)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize cache: %v", err)
	}

	var idp identity.Provider
	if cfg.TestingHandle != "" {
		idp, err = testidentity.New(cfg.TestingHandle, cfg.TestingAppPassword)
		if err != nil {
			logger.Fatal(ctx, "failed to initialize testing identity provider: %v", err)
		}
	} else {
		logger.Fatal(ctx, "no identity provider configured: set TESTING_HANDLE for now (AT Protocol provider is not wired up here)")
	}

	ch := eventchannel.New()
	mat := materializer.New(store, redisCache, ch, logger, cfg.SharedWorker)
	go mat.Run(ctx)

	session := peer.NewSession(idp)
	p := peer.New(cfg, logger, session, ch, mat, store, idp, cfg.LeafURL, cfg.LeafURL)

	lq := livequery.New(logger, reapInterval)

	// In-process materializations always feed the Live Query Engine
	// directly, regardless of cfg.SharedWorker, so a single-process
	// deployment re-executes live queries without round-tripping
	// through Redis.
	go func() {
		for touched := range mat.Touched() {
			lq.OnTouchedTables(ctx, touched)
		}
	}()

	// The Redis subscription additionally fans touched tables out to
	// sibling peerd processes sharing one materializer worker
	// (cfg.SharedWorker), whose own commits never populate this
	// process's mat.Touched().
	touchedTables := redisCache.Subscribe(ctx, cache.TouchedTablesChannel)
	go func() {
		for msg := range touchedTables.Channel() {
			lq.OnTouchedTables(ctx, strings.Split(msg.Payload, ","))
		}
	}()

	dispatcher := rpc.NewDispatcher(p, lq, store, cfg.DatabaseURL, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn(r.Context(), "peerd: websocket upgrade failed: %v", err)
			return
		}
		port := rpc.NewWSPort(conn)
		dispatcher.Serve(r.Context(), port)
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info(ctx, "peerd: listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "peerd: server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	gracefulShutdown(context.Background(), logger, server, store, redisCache, lq, otelCleanup)
	logger.Info(ctx, "peerd: stopped")
}

func gracefulShutdown(ctx context.Context, logger *logging.Logger, server *http.Server, store *storage.Store, c *cache.Cache, lq *livequery.Registry, otelCleanup func(context.Context) error) {
	logger.Info(ctx, "peerd: shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "peerd: http server shutdown error: %v", err)
	}
	lq.Stop()
	store.Close()
	if err := c.Close(); err != nil {
		logger.Error(ctx, "peerd: cache close error: %v", err)
	}
	if otelCleanup != nil {
		if err := otelCleanup(shutdownCtx); err != nil {
			logger.Error(ctx, "peerd: otel shutdown error: %v", err)
		}
	}
}
