package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thenishantgiri/CampusCore/internal/audit"
	"github.com/thenishantgiri/CampusCore/internal/auth"
	"github.com/thenishantgiri/CampusCore/internal/config"
	"github.com/thenishantgiri/CampusCore/internal/httpapi"
	"github.com/thenishantgiri/CampusCore/internal/obs"
	"github.com/thenishantgiri/CampusCore/internal/store/pg"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	log := obs.NewLogger("campuscore-api")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	if cfg.PostgresDSN == "" {
		log.Fatal().Msg("CAMPUSCORE_PG_DSN is required to serve the identity API")
	}
	store, err := pg.Open(cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer store.Close()
	ready := httpapi.ReadyProbe{Check: store.Ping}

	tokens, err := auth.NewTokens(cfg.AuthSecret, cfg.TokenIssuer,
		auth.WithAccessTTL(cfg.AccessTokenTTL))
	if err != nil {
		log.Fatal().Err(err).Msg("configure token signer")
	}

	auditLog := audit.New(
		audit.ZerologSink{Log: log},
		audit.WithBuffer(cfg.AuditBuffer),
		audit.WithDiagnostics(log),
	)
	defer auditLog.Close()
	obs.RegisterAuditDropped(auditLog.Dropped)

	svc, err := auth.NewService(store, tokens,
		auth.WithHasher(auth.BcryptHasher{Cost: cfg.BcryptCost}),
		auth.WithAuditLog(auditLog),
		auth.WithLogger(log),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("assemble identity service")
	}

	api := httpapi.New(svc, ready, version,
		httpapi.WithLogger(log),
		httpapi.WithLimits(cfg.MaxBodyBytes, cfg.RateLimitPerSecond, cfg.RateLimitBurst),
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Info().Str("version", version).Str("addr", srv.Addr).Msg("starting campuscore-api")

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	log.Info().Msg("stopped")
}
