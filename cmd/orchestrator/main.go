// Command orchestrator serves the video pipeline over HTTP: submit requests,
// inspect tasks, artifacts and the message log, and cancel running work.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"vidsmith/internal/config"
	"vidsmith/internal/pipeline"
	"vidsmith/internal/store/sqlite"
	"vidsmith/internal/task"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to TOML config file")
		addr       = flag.String("addr", "", "listen address (overrides config)")
		dbPath     = flag.String("db", "", "sqlite database path (overrides config)")
		faultRate  = flag.Float64("fault-rate", -1, "build fault injection rate (overrides config)")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "orchestrator ", log.LstdFlags|log.Lmsgprefix)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	cfg.Addr = firstNonEmpty(*addr, cfg.Addr)
	cfg.DBPath = firstNonEmpty(*dbPath, cfg.DBPath)
	if *faultRate >= 0 {
		cfg.Pipeline.FaultRate = *faultRate
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatalf("%v", err)
	}
}

func run(cfg config.Config, logger *log.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create database directory: %w", err)
		}
	}
	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}

	manager := task.NewManager(store, logger)
	pipe, err := pipeline.New(manager, pipeline.Config{
		MaxHops:           cfg.Pipeline.MaxHops,
		StageTimeout:      cfg.Pipeline.StageTimeout(),
		MaxRepairAttempts: cfg.Pipeline.MaxRepairAttempts,
		FaultRate:         cfg.Pipeline.FaultRate,
		Seed:              cfg.Pipeline.Seed,
		Width:             cfg.Video.Width,
		Height:            cfg.Video.Height,
		FPS:               cfg.Video.FPS,
		OutputBaseURL:     cfg.Video.OutputBaseURL,
	}, logger)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           loggingMiddleware(logger, newRouter(manager, pipe)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("listening on http://%s", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Printf("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type submitRequest struct {
	ProjectID   string `json:"projectId"`
	Description string `json:"description"`
}

func newRouter(manager *task.Manager, pipe *pipeline.Pipeline) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /videos", func(w http.ResponseWriter, r *http.Request) {
		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.Description == "" {
			writeError(w, http.StatusBadRequest, "description is required")
			return
		}
		t, err := pipe.Submit(r.Context(), pipeline.SubmitInput{
			ProjectID:   req.ProjectID,
			Description: req.Description,
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusAccepted, t)
	})

	mux.HandleFunc("GET /tasks", func(w http.ResponseWriter, r *http.Request) {
		tasks, err := manager.ListTasks(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, tasks)
	})

	mux.HandleFunc("GET /tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
		t, err := manager.GetTask(r.Context(), r.PathValue("id"))
		if err != nil {
			writeTaskError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	})

	mux.HandleFunc("GET /tasks/{id}/artifacts", func(w http.ResponseWriter, r *http.Request) {
		arts, err := manager.GetArtifacts(r.Context(), r.PathValue("id"))
		if err != nil {
			writeTaskError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, arts)
	})

	mux.HandleFunc("GET /tasks/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		msgs, err := manager.GetMessages(r.Context(), r.PathValue("id"), 0)
		if err != nil {
			writeTaskError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, msgs)
	})

	mux.HandleFunc("POST /tasks/{id}/cancel", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Reason string `json:"reason"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if err := pipe.Cancel(r.Context(), r.PathValue("id"), body.Reason); err != nil {
			writeTaskError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "canceled"})
	})

	return mux
}

func writeTaskError(w http.ResponseWriter, err error) {
	if errors.Is(err, task.ErrTaskNotFound) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func loggingMiddleware(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Printf("%s %s (%s)", r.Method, r.URL.Path, time.Since(start).Round(time.Millisecond))
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
