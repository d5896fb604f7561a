// Command bridged is the Discord sync bridge daemon: it runs a
// BridgeOrchestrator against the bot's gateway connection, ingesting
// Discord events into connected spaces and sweeping Roomy-origin
// messages out to Discord webhooks, per spec.md §4.7. It shares
// peerd's storage/cache/materializer stack so the bridge observes the
// exact same relational projections a UI peer would, but drives its
// own service-identity Peer (no human session) rather than a
// user-authenticated one.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roomyhq/spacepeer/internal/bridge"
	"github.com/roomyhq/spacepeer/internal/bridge/discordapi"
	"github.com/roomyhq/spacepeer/internal/cache"
	"github.com/roomyhq/spacepeer/internal/config"
	"github.com/roomyhq/spacepeer/internal/eventchannel"
	"github.com/roomyhq/spacepeer/internal/identity/testidentity"
	"github.com/roomyhq/spacepeer/internal/logging"
	"github.com/roomyhq/spacepeer/internal/materializer"
	"github.com/roomyhq/spacepeer/internal/observability"
	"github.com/roomyhq/spacepeer/internal/peer"
	"github.com/roomyhq/spacepeer/internal/schema"
	"github.com/roomyhq/spacepeer/internal/storage"
	"github.com/roomyhq/spacepeer/internal/storage/migrations"
)

// discordIntents is GUILDS | GUILD_MESSAGES | MESSAGE_CONTENT |
// GUILD_MESSAGE_REACTIONS, the minimum spec.md §4.7 needs.
const discordIntents = (1 << 0) | (1 << 9) | (1 << 15) | (1 << 10)

func main() {
	cfg := config.Load()
	if !cfg.DiscordBridge {
		log.Fatal("bridged: FEATURE_DISCORD_BRIDGE is disabled, refusing to start")
	}
	if cfg.DiscordBotToken == "" {
		log.Fatal("bridged: DISCORD_BOT_TOKEN is required")
	}

	otelCleanup, err := observability.InitOpenTelemetry("spacepeer-bridged", "1.0.0")
	if err != nil {
		log.Fatalf("failed to initialize OpenTelemetry: %v", err)
	}
	defer func() {
		if err := otelCleanup(context.Background()); err != nil {
			log.Printf("error shutting down OpenTelemetry: %v", err)
		}
	}()

	logger := logging.New(cfg.LogLevel)
	ctx, cancel := context.WithCancel(context.Background())

	if err := migrations.Up(cfg.DatabaseURL); err != nil {
		logger.Fatal(ctx, "bridged: failed to run migrations: %v", err)
	}

	store, err := storage.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal(ctx, "bridged: failed to initialize storage: %v", err)
	}

	redisCache, err := cache.New(cfg.RedisURL)
	if err != nil {
		logger.Fatal(ctx, "bridged: failed to initialize cache: %v", err)
	}

	idp, err := testidentity.New(cfg.TestingHandle, cfg.TestingAppPassword)
	if err != nil {
		logger.Fatal(ctx, "bridged: failed to initialize identity provider: %v", err)
	}

	ch := eventchannel.New()
	mat := materializer.New(store, redisCache, ch, logger, cfg.SharedWorker)
	go mat.Run(ctx)

	session := peer.NewSession(idp)
	p := peer.New(cfg, logger, session, ch, mat, store, idp, cfg.LeafURL, cfg.LeafURL)
	if err := session.RestoreOrUnauthenticated(ctx, schema.UserDID("did:roomy:discordbridge")); err != nil {
		logger.Warn(ctx, "bridged: session restore failed, continuing unauthenticated: %v", err)
	}

	repo := bridge.NewRepository(store, redisCache)
	limiter := bridge.NewRateLimiter(redisCache.GetClient(), cfg.DiscordBotToken, 5, 1.0)
	client := discordapi.New(cfg.DiscordBotToken).WithLimiter(limiter)
	gateway := discordapi.NewGateway(cfg.DiscordBotToken, discordIntents)
	orchestrator := bridge.NewOrchestrator(client, gateway, repo, p, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: ":" + cfg.Port, Handler: mux}

	go func() {
		logger.Info(ctx, "bridged: listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "bridged: server error: %v", err)
		}
	}()

	go func() {
		if err := orchestrator.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error(ctx, "bridged: orchestrator run loop exited: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Info(shutdownCtx, "bridged: shutting down")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "bridged: http server shutdown error: %v", err)
	}
	if err := gateway.Close(); err != nil {
		logger.Error(shutdownCtx, "bridged: gateway close error: %v", err)
	}
	store.Close()
	if err := redisCache.Close(); err != nil {
		logger.Error(shutdownCtx, "bridged: cache close error: %v", err)
	}
	if err := otelCleanup(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "bridged: otel shutdown error: %v", err)
	}
	logger.Info(shutdownCtx, "bridged: stopped")
}
