package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	servePort      int
	serveNoRefresh bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server with the refresh scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		if !serveNoRefresh {
			go e.Scheduler.Start(ctx)
			defer e.Scheduler.Stop()
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(e),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveNoRefresh, "no-refresh", false, "serve the API without the background scheduler")
	rootCmd.AddCommand(serveCmd)
}

// newRouter builds the API surface.
func newRouter(e *env) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/metrics", handleMetrics(e))
		r.Get("/facilities", handleFacilities(e))
		r.Get("/laws", handleLaws(e))
		r.Get("/news", handleNews(e))
		r.Post("/facilities/generate", handleGenerate(e))
	})

	return r
}

func handleMetrics(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, e.Scheduler.Metrics().Collect())
	}
}

func handleFacilities(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, ok := stateParam(w, r)
		if !ok {
			return
		}
		facilities, err := e.Store.FacilitiesByState(r.Context(), state)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"state":      state,
			"count":      len(facilities),
			"facilities": facilities,
		})
	}
}

func handleLaws(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, ok := stateParam(w, r)
		if !ok {
			return
		}
		laws, err := e.Store.LawsByState(r.Context(), state)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"state": state,
			"count": len(laws),
			"laws":  laws,
		})
	}
}

func handleNews(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, ok := stateParam(w, r)
		if !ok {
			return
		}
		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				respondError(w, http.StatusBadRequest, eris.New("limit must be a positive integer"))
				return
			}
			limit = n
		}
		updates, err := e.Store.RecentNews(r.Context(), state, limit)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"state": state,
			"count": len(updates),
			"news":  updates,
		})
	}
}

func handleGenerate(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if e.Generator == nil {
			respondError(w, http.StatusServiceUnavailable, eris.New("no generative backend configured"))
			return
		}

		var req struct {
			State string `json:"state"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, eris.New("invalid request body"))
			return
		}
		if req.State == "" {
			respondError(w, http.StatusBadRequest, eris.New("state is required"))
			return
		}

		n, err := e.Generator.Generate(r.Context(), req.State)
		if err != nil {
			zap.L().Error("generate request failed", zap.String("state", req.State), zap.Error(err))
			respondError(w, http.StatusBadGateway, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"state": req.State,
			"count": n,
		})
	}
}

func stateParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	state := r.URL.Query().Get("state")
	if state == "" {
		respondError(w, http.StatusBadRequest, eris.New("state query parameter is required"))
		return "", false
	}
	return state, true
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Warn("encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, err error) {
	body := map[string]any{
		"error":   http.StatusText(status),
		"details": err.Error(),
	}
	if devMode() {
		body["stack"] = eris.ToString(err, true)
	}
	respondJSON(w, status, body)
}

// devMode reports whether error responses should carry stack traces.
// Console logging marks a development environment.
func devMode() bool {
	return cfg != nil && cfg.Log.Format == "console"
}
