package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/picstream/picstream/pkg/picstream"
	"github.com/picstream/picstream/pkg/picstream/api"
	"github.com/picstream/picstream/pkg/picstream/config"
	"github.com/picstream/picstream/pkg/picstream/eventbus"
)

// ServerEnv holds process-level settings read directly from the
// environment; service-level settings go through config.WithEnv.
type ServerEnv struct {
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
}

func main() {
	var env ServerEnv
	if err := cleanenv.ReadEnv(&env); err != nil {
		slog.Error("Failed to read environment", "error", err)
		os.Exit(1)
	}

	serverConfig, err := config.Load(config.WithEnv(""))
	if err != nil {
		slog.Error("Failed to load server configuration", "error", err)
		os.Exit(1)
	}

	svc, bus, err := serverConfig.BuildService(context.Background())
	if err != nil {
		slog.Error("Failed to build service", "error", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", serverConfig.Port),
		Handler: routes(svc, bus, serverConfig),
	}

	go func() {
		slog.Info("Picstream server starting",
			"port", serverConfig.Port,
			"environment", serverConfig.Environment,
			"database", serverConfig.DatabaseType,
			"storage", serverConfig.Storage.Type)

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), env.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server exiting")
}

func routes(svc picstream.Service, bus *eventbus.Bus, cfg *config.ServerConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	if cfg.Environment == "development" {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type"},
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		count, err := svc.Count(req.Context())
		if err != nil {
			render.Status(req, http.StatusInternalServerError)
			render.JSON(w, req, map[string]string{"status": "degraded"})
			return
		}
		render.JSON(w, req, map[string]interface{}{
			"status":      "healthy",
			"images":      count,
			"subscribers": bus.SubscriberCount(),
		})
	})

	handler := api.NewImagesHandler(svc, bus)
	r.Mount("/api/v1", handler.Routes())

	return r
}
