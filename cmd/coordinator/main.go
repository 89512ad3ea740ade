package main

import (
	"context"
	"encoding/json"
	"errors"
	stdlog "log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/distnet/coordinator/internal/config"
	"github.com/distnet/coordinator/internal/database"
	"github.com/distnet/coordinator/internal/handlers"
	"github.com/distnet/coordinator/internal/middleware"
	"github.com/distnet/coordinator/internal/notify"
	"github.com/distnet/coordinator/internal/orchestrator"
	"github.com/distnet/coordinator/internal/probe"
	"github.com/distnet/coordinator/internal/registry"
	"github.com/distnet/coordinator/internal/repository"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		stdlog.Printf("Warning: .env file not found: %v", err)
	}

	cfg := config.Load()
	log := setupLogger(cfg.Environment)

	log.Info("starting coordinator", "environment", cfg.Environment, "port", cfg.Port)

	db, err := database.New(&cfg.Database)
	if err != nil {
		stdlog.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	migrator := database.NewMigrator(db, log)
	if err := migrator.Run("migrations"); err != nil {
		stdlog.Fatalf("Failed to run migrations: %v", err)
	}

	workerRepo := repository.NewWorkerRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	resultRepo := repository.NewResultRepository(db)
	probeRepo := repository.NewProbeRepository(db)

	reg := registry.New(workerRepo, cfg.HeartbeatTimeout, log)

	reaper, err := registry.NewReaper(reg, cfg.ReaperInterval, log)
	if err != nil {
		stdlog.Fatalf("Failed to create reaper: %v", err)
	}
	if err := reaper.Start(); err != nil {
		stdlog.Fatalf("Failed to start reaper: %v", err)
	}
	defer reaper.Stop()

	monitors := probe.NewManager(probeRepo, log)
	defer monitors.StopAll()

	var publisher orchestrator.Publisher
	if cfg.RedisAddr != "" {
		p, err := notify.NewPublisher(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, log)
		if err != nil {
			stdlog.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer p.Close()
		publisher = p

		log.Info("task event publishing enabled", "redis", cfg.RedisAddr)
	}

	policy := orchestrator.CompletionPolicy{FailOnWorkerFailure: cfg.FailOnWorkerFailure}
	orch := orchestrator.New(taskRepo, resultRepo, reg, monitors, publisher, policy, log)

	workerHandler := handlers.NewWorkerHandler(reg)
	taskHandler := handlers.NewTaskHandler(orch)
	probeHandler := handlers.NewProbeHandler(probeRepo, monitors)

	router := mux.NewRouter()
	router.Use(middleware.Logging(log))
	router.Use(middleware.RateLimit(cfg.RateLimitPerSecond, cfg.RateLimitBurst))

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/workers/connect", workerHandler.Connect).Methods("POST")
	api.HandleFunc("/workers/heartbeat", workerHandler.Heartbeat).Methods("POST")
	api.HandleFunc("/workers/disconnect", workerHandler.Disconnect).Methods("POST")
	api.HandleFunc("/workers", workerHandler.List).Methods("GET")

	api.HandleFunc("/tasks/create", taskHandler.Create).Methods("POST")
	api.HandleFunc("/tasks/pending/{worker_id}", taskHandler.Pending).Methods("GET")
	api.HandleFunc("/tasks/result", taskHandler.SubmitResult).Methods("POST")
	api.HandleFunc("/tasks/{task_id}/status", taskHandler.Status).Methods("GET")
	api.HandleFunc("/tasks/{task_id}/results", taskHandler.Results).Methods("GET")
	api.HandleFunc("/tasks/{task_id}/stop", taskHandler.Stop).Methods("POST")
	api.HandleFunc("/tasks/{task_id}/probes", probeHandler.History).Methods("GET")
	api.HandleFunc("/tasks/{task_id}/probes/recent", probeHandler.Recent).Methods("GET")
	api.HandleFunc("/tasks", taskHandler.List).Methods("GET")
	api.HandleFunc("/stats", taskHandler.Stats).Methods("GET")

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Health(); err != nil {
			http.Error(w, "Database unhealthy", http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	router.HandleFunc("/db/stats", func(w http.ResponseWriter, r *http.Request) {
		stats := db.Stats()
		json.NewEncoder(w).Encode(map[string]any{
			"open_connections":    stats.OpenConnections,
			"in_use":              stats.InUse,
			"idle":                stats.Idle,
			"wait_count":          stats.WaitCount,
			"wait_duration":       stats.WaitDuration,
			"max_idle_closed":     stats.MaxIdleClosed,
			"max_lifetime_closed": stats.MaxLifetimeClosed,
		})
	}).Methods("GET")

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("coordinator listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			stdlog.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down coordinator")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	log.Info("coordinator stopped")
}

func setupLogger(environment string) *slog.Logger {
	if environment == "production" {
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return slog.New(
		slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
}
