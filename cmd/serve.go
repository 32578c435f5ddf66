package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/funil-digital/leadscore/internal/config"
	"github.com/funil-digital/leadscore/internal/ml"
	"github.com/funil-digital/leadscore/internal/model"
	"github.com/funil-digital/leadscore/internal/scoring"
	"github.com/funil-digital/leadscore/internal/training"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the lead scoring HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		eng, health := buildEngine(cfg.ML)
		zap.L().Info("scoring engine ready",
			zap.String("best_model", health.BestModel),
			zap.String("runner_up_model", health.RunnerUpModel),
			zap.Bool("ml_enabled", health.Enabled),
		)

		router := newRouter(eng, health, cfg.ML.ReportPath)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: router,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// mlHealth mirrors the artifact load outcomes on the health surface. The
// status strings are informational; scoring never gates on them.
type mlHealth struct {
	BestModel     string `json:"best_model"`
	RunnerUpModel string `json:"runner_up_model"`
	Enabled       bool   `json:"enabled"`
}

// buildEngine loads both artifacts and assembles the cascade. Load failures
// only reduce the cascade; they never abort startup.
func buildEngine(mlCfg config.MLConfig) (*scoring.Engine, mlHealth) {
	best, bestStatus := ml.Load(mlCfg.BestModelPath)
	runnerUp, runnerUpStatus := ml.Load(mlCfg.RunnerUpModelPath)

	var champion, challenger scoring.Predictor
	if best != nil {
		champion = best
	}
	if runnerUp != nil {
		challenger = runnerUp
	}

	eng := scoring.NewEngine(champion, challenger)
	return eng, mlHealth{
		BestModel:     bestStatus,
		RunnerUpModel: runnerUpStatus,
		Enabled:       eng.MLAvailable(),
	}
}

type scoreRequest struct {
	Lead   model.Lead    `json:"lead"`
	Events []model.Event `json:"events"`
}

func newRouter(eng *scoring.Engine, health mlHealth, reportPath string) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "UP",
			"ml":     health,
		})
	})

	r.Post("/score", func(w http.ResponseWriter, req *http.Request) {
		var sr scoreRequest
		if err := json.NewDecoder(req.Body).Decode(&sr); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if strings.TrimSpace(sr.Lead.Segment) == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "segment_of_interest is required"})
			return
		}

		result := eng.Score(sr.Lead, sr.Events)
		writeJSON(w, http.StatusOK, result)
	})

	r.Get("/model/info", func(w http.ResponseWriter, req *http.Request) {
		report, err := training.LoadReport(reportPath)
		if err != nil {
			if os.IsNotExist(eris.Cause(err)) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "model report not available"})
				return
			}
			zap.L().Error("model report read failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "model report unreadable"})
			return
		}
		writeJSON(w, http.StatusOK, report)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
