package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	cfg "github.com/example/jdasdash/internal/config"
	"github.com/example/jdasdash/internal/dashboard"
	"github.com/example/jdasdash/internal/logger"
)

type App struct {
	Dashboard   *dashboard.Service
	Config      *cfg.Config
	rateLimiter *RateLimiter
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write json", "error", err)
	}
}

// Router builds the HTTP surface. Data endpoints live under /api/v1 behind the
// optional API key and the per-client rate limit.
func (a *App) Router() *mux.Router {
	r := mux.NewRouter()

	r.Use(SecurityHeaders)
	r.Use(a.Logging)
	r.Use(a.CORS)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")
	r.HandleFunc("/ready", a.HandleReady).Methods("GET")

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.Use(a.APIKeyAuth)
	v1.Use(a.RateLimit)

	v1.HandleFunc("/tables", a.HandleListTables).Methods("GET", "OPTIONS")
	v1.HandleFunc("/tables/{key}", a.HandleTable).Methods("GET", "OPTIONS")
	v1.HandleFunc("/tables/{key}/raw", a.HandleRawTable).Methods("GET", "OPTIONS")
	v1.HandleFunc("/summary/industry-updates", a.HandleIndustryUpdates).Methods("GET", "OPTIONS")
	v1.HandleFunc("/industries", a.HandleListIndustries).Methods("GET", "OPTIONS")
	v1.HandleFunc("/industries/{key}", a.HandleIndustry).Methods("GET", "OPTIONS")
	v1.HandleFunc("/describe/{logicalName}", a.HandleDescribe).Methods("GET", "OPTIONS")

	return r
}

func main() {
	c, err := cfg.New()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	if err := logger.Setup(c.LogLevel, c.LogFormat); err != nil {
		slog.Error("logger", "error", err)
		os.Exit(1)
	}

	svc, err := dashboard.FromConfig(c)
	if err != nil {
		slog.Error("registry", "error", err)
		os.Exit(1)
	}
	if missing := c.MissingDataverseSettings(); len(missing) > 0 {
		slog.Warn("dataverse not configured, data endpoints will report a configuration error", "missing", missing)
	}

	app := &App{Dashboard: svc, Config: c}
	srv := &http.Server{
		Handler:      app.Router(),
		Addr:         ":" + c.Port,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 2*c.PageTimeout + 10*time.Second,
	}

	go func() {
		slog.Info("starting server", "port", c.Port, "tables", len(svc.Registry().Tables), "industries", len(svc.Registry().Industries))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown failed", "error", err)
		os.Exit(1)
	}
	slog.Info("server exited properly")
}
