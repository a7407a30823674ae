package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/collabcode/hub-service/config"
	"github.com/collabcode/hub-service/internal/hub"
	"github.com/collabcode/hub-service/internal/postgres"
	"github.com/collabcode/hub-service/internal/security"
	httpx "github.com/collabcode/hub-service/internal/transport/http"
	"github.com/collabcode/hub-service/internal/transport/ws"
	"github.com/collabcode/hub-service/pkg/logger"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.Env(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting hub-service",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version)

	// --- auth ---
	pub, err := security.LoadRSAPublicKeyFromPEM(cfg.Auth.PublicKeyPath)
	if err != nil {
		log.Fatalf("load public key: %v", err)
	}
	verifier := security.NewVerifier(pub, cfg.Auth.Issuer, cfg.Auth.Audience,
		cfg.Auth.ClockSkewOr(30*time.Second))

	// --- postgres ---
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
		DSN:             cfg.Postgres.DSN,
		ApplicationName: cfg.Logging.Service,
	})
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	roomRepo := postgres.NewRoomRepository(pool)

	// --- hub ---
	registry := hub.NewRegistry(cfg.Hub.SequenceGraceOr(hub.DefaultSequenceGrace), slog.Default())
	go registry.Run(ctx)

	wsServer := ws.NewServer(verifier, registry, roomRepo, ws.Options{
		IdleTimeout:     cfg.Hub.IdleTimeoutOr(60 * time.Second),
		PingInterval:    cfg.Hub.PingIntervalOr(15 * time.Second),
		SendBuffer:      cfg.Hub.SendBuffer,
		MaxMessageBytes: cfg.Hub.MaxMessageBytes,
	}, slog.Default())

	// --- HTTP ---
	handler := httpx.NewHandler(roomRepo, registry)
	router := httpx.NewRouter(handler, verifier, wsServer)
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal", "sig", sig)
	case err := <-errCh:
		slog.Error("server error", "err", err)
	}

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	wsServer.Shutdown(ctxShutdown)
	_ = httpSrv.Shutdown(ctxShutdown)
	slog.Info("stopped")
}
