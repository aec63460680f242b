package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/plantlens/plantlens/server/internal/alerts"
	"github.com/plantlens/plantlens/server/internal/api"
	"github.com/plantlens/plantlens/server/internal/auth"
	"github.com/plantlens/plantlens/server/internal/config"
	"github.com/plantlens/plantlens/server/internal/store"
	"github.com/plantlens/plantlens/server/internal/ws"
)

// datasetBroadcastInterval is how often stream clients receive the dataset list.
const datasetBroadcastInterval = 5 * time.Second

func main() {
	// Secrets referenced by *_env keys may live in a local .env file.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	configPath := flag.String("config", os.Getenv("PLANTLENS_CONFIG"), "path to config file; empty runs with built-in defaults")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("plantlens-server starting", "config", *configPath)

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			slog.Error("failed to load config", "err", err)
			os.Exit(1)
		}
	}

	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"auth_mode", cfg.Server.Auth.Mode,
		"dataset_ttl", cfg.Server.Datasets.TTL,
		"sources", len(cfg.Sources),
		"alert_rules", len(cfg.Alerts.Rules),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Dataset store with background TTL eviction.
	st := store.New(cfg.Server.Datasets.TTL, cfg.Server.Datasets.MaxRows)
	go st.Run(ctx)

	// Alerts engine: evaluates rules on every dataset analysis.
	alertEngine := alerts.New(cfg.Alerts)

	// WebSocket hub: pushes reports as they are produced.
	hub := ws.New(st, datasetBroadcastInterval)
	go hub.Run(ctx)

	apiHandler := api.New(st, alertEngine, hub, cfg)

	// Analysis defaults, aliases, sources and alert rules reload in place.
	// Listener, auth and retention settings need a restart.
	if *configPath != "" {
		go func() {
			err := config.Watch(ctx, *configPath, func(next *config.Config) {
				apiHandler.Apply(next)
				alertEngine.SetConfig(next.Alerts)
			})
			if err != nil {
				slog.Error("config watch stopped", "err", err)
			}
		}()
	}

	router := mux.NewRouter()
	router.Use(auth.APIKey(
		cfg.Server.Auth.Mode,
		cfg.Server.Auth.EffectiveHeader(),
		cfg.Server.Auth.Key(),
	))
	router.PathPrefix("/api/").Handler(apiHandler)
	router.Handle("/ws/stream", hub)

	corsOpts := []handlers.CORSOption{
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", cfg.Server.Auth.EffectiveHeader()}),
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		corsOpts = append(corsOpts, handlers.AllowedOrigins(cfg.Server.CORSOrigins))
	}

	var handler http.Handler = router
	handler = handlers.CORS(corsOpts...)(handler)
	handler = handlers.RecoveryHandler(
		handlers.RecoveryLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError)),
		handlers.PrintRecoveryStack(true),
	)(handler)
	handler = handlers.CombinedLoggingHandler(os.Stdout, handler)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("plantlens-server shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
}
