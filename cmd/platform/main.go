package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/healthlog/platform/internal/admin"
	"github.com/healthlog/platform/internal/geocode"
	"github.com/healthlog/platform/internal/seed"
	"github.com/healthlog/platform/internal/seed/nhsdir"
	"github.com/healthlog/platform/internal/session"
	"github.com/healthlog/platform/internal/shared/auth"
	"github.com/healthlog/platform/internal/shared/config"
	"github.com/healthlog/platform/internal/shared/database"
	"github.com/healthlog/platform/internal/shared/events"
	"github.com/healthlog/platform/internal/shared/metrics"
	secmiddleware "github.com/healthlog/platform/internal/shared/middleware"
	"github.com/healthlog/platform/internal/store"
)

// App holds all application dependencies
type App struct {
	Config *config.Config
	DB     *database.DB
	Bus    *events.Bus
	Store  store.Store
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	app := &App{Config: cfg}

	// Initialize database (optional - fall back to in-memory store)
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		fmt.Printf("Warning: Database not available: %v\n", err)
		fmt.Println("Running with in-memory document store...")
		app.Store = store.NewMemoryStore()
	} else {
		app.DB = db
		defer db.Close()

		if err := database.Migrate(ctx, db.Pool); err != nil {
			fmt.Printf("Warning: Migration failed: %v\n", err)
		}
		app.Store = store.NewPostgresStore(db.Pool)
	}

	// Redis read cache (optional)
	if cfg.Redis.Enabled {
		redisClient, err := store.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			fmt.Printf("Warning: Redis not available: %v\n", err)
			fmt.Println("Running without document cache...")
		} else {
			defer redisClient.Close()
			app.Store = store.NewCachedStore(app.Store, redisClient, cfg.Redis.TTL)
			fmt.Println("Redis document cache initialized")
		}
	}

	// Event bus (optional)
	if cfg.EventBus.Enabled {
		bus, err := events.NewBus(ctx, cfg.EventBus)
		if err != nil {
			fmt.Printf("Warning: KurrentDB not available: %v\n", err)
			fmt.Println("Running without event streaming...")
		} else {
			app.Bus = bus
			defer bus.Close()
			fmt.Println("KurrentDB Event Bus initialized")
		}
	}

	// Seed sources
	var geocoder seed.Geocoder
	if cfg.Geocode.Enabled {
		geocoder = geocode.New(cfg.Geocode)
	}

	var directory seed.Directory
	if cfg.Seed.LegacyDirectory.Enabled {
		legacy, err := nhsdir.New(ctx, cfg.Seed.LegacyDirectory)
		if err != nil {
			fmt.Printf("Warning: Legacy NHS directory not available: %v\n", err)
		} else {
			defer legacy.Close()
			directory = legacy
			fmt.Println("Legacy NHS directory connected")
		}
	}
	seeder := seed.New(cfg.Seed, geocoder, directory)

	// Session registry
	var bus session.Publisher
	if app.Bus != nil {
		bus = app.Bus
	}
	registry := session.NewRegistry(app.Store, seeder, bus, cfg.Session)
	reaperCtx, stopReaper := context.WithCancel(ctx)
	defer stopReaper()
	registry.StartReaper(reaperCtx)

	sessionHandler := session.NewHandler(registry)

	var adminBus admin.Publisher
	if app.Bus != nil {
		adminBus = app.Bus
	}
	adminHandler := admin.NewHandler(app.Store, registry, admin.NewDirectoryClient(cfg.Directory), adminBus, cfg)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(secmiddleware.SecurityHeaders)
	r.Use(secmiddleware.MaxBodySize(1 << 20))
	r.Use(metrics.Middleware)
	r.Use(corsMiddleware)

	rateLimiter := secmiddleware.NewIPRateLimiter(10, 30)
	r.Use(rateLimiter.Middleware)

	// Ops endpoints (unauthenticated)
	r.Get("/health", healthHandler(app))
	r.Get("/ready", readyHandler(app))
	r.Handle("/metrics", metrics.Handler())
	r.Get("/", infoHandler)

	// Public client bootstrap config; no token required.
	r.Get("/api/v1/config", adminHandler.PublicConfig)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware(cfg.Auth))
		r.Mount("/", sessionHandler.Routes())

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireAdmin(cfg.Auth))
			r.Mount("/", adminHandler.Routes())
		})
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		fmt.Println("\nShutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Server shutdown error: %v\n", err)
		}

		// Flush every open session before the process exits.
		registry.CloseAll(shutdownCtx)
		close(done)
	}()

	fmt.Println("============================================")
	fmt.Println("HealthLog Visit Tracking Platform")
	fmt.Println("============================================")
	fmt.Printf("Environment:  %s\n", cfg.Server.Env)
	fmt.Printf("Server:       http://localhost:%d\n", cfg.Server.Port)
	fmt.Printf("API:          http://localhost:%d/api/v1\n", cfg.Server.Port)
	fmt.Printf("Health:       http://localhost:%d/health\n", cfg.Server.Port)
	fmt.Printf("Redis cache:  %v\n", cfg.Redis.Enabled)
	fmt.Printf("KurrentDB:    %s:%d\n", cfg.EventBus.Host, cfg.EventBus.Port)
	fmt.Println("============================================")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}

	<-done
	fmt.Println("Server stopped")
}

func infoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"name":    "HealthLog Visit Tracking Platform",
		"version": "1.0.0",
		"docs":    "/api/v1",
	})
}

func healthHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
		})
	}
}

func readyHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"server": "ready",
		}

		if app.DB != nil {
			if err := app.DB.Health(r.Context()); err != nil {
				checks["database"] = "not ready: " + err.Error()
			} else {
				checks["database"] = "ready"
			}
		} else {
			checks["database"] = "not configured"
		}

		if app.Bus != nil {
			if err := app.Bus.Health(); err != nil {
				checks["kurrentdb"] = "not ready: " + err.Error()
			} else {
				checks["kurrentdb"] = "ready"
			}
		} else {
			checks["kurrentdb"] = "not configured"
		}

		allReady := true
		for _, status := range checks {
			if status != "ready" && status != "not configured" {
				allReady = false
				break
			}
		}

		status := http.StatusOK
		if !allReady {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"status": map[bool]string{true: "ready", false: "not ready"}[allReady],
			"checks": checks,
		})
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
