package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
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
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/marketarea-cli/internal/importer"
	"github.com/sells-group/marketarea-cli/internal/model"
	"github.com/sells-group/marketarea-cli/internal/monitoring"
	"github.com/sells-group/marketarea-cli/internal/sheet"
	"github.com/sells-group/marketarea-cli/internal/store"
	"github.com/sells-group/marketarea-cli/internal/workbook"
)

const maxUploadBytes = 10 << 20

var (
	servePort    int
	serveOrigins []string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the market-area import API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           buildRouter(env, serveOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})
		if cfg.Monitoring.Enabled {
			checker := monitoring.NewChecker(env.Collector, monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)
			g.Go(func() error {
				checker.Run(gctx)
				return nil
			})
		}
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		return g.Wait()
	},
}

type pinger interface {
	Ping(ctx context.Context) error
}

// buildRouter wires the HTTP API. env.Canvas and env.Collector may be nil.
func buildRouter(env *importEnv, origins []string) http.Handler {
	coord, st, canvas := env.Coordinator, env.Store, env.Canvas

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if p, ok := st.(pinger); ok {
			if err := p.Ping(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/projects/{project}", func(r chi.Router) {
		r.Post("/imports/preview", func(w http.ResponseWriter, r *http.Request) {
			p, ok := loadUpload(w, r, coord)
			if !ok {
				return
			}
			writeJSON(w, http.StatusOK, p)
		})

		r.Post("/imports", func(w http.ResponseWriter, r *http.Request) {
			p, ok := loadUpload(w, r, coord)
			if !ok {
				return
			}
			project := chi.URLParam(r, "project")
			res, err := coord.Process(r.Context(), project, p.Drafts)
			var batchErr *importer.BatchError
			switch {
			case errors.As(err, &batchErr):
				writeJSON(w, http.StatusUnprocessableEntity, batchErr.Result)
			case err != nil:
				writeError(w, http.StatusInternalServerError, err)
			default:
				zap.L().Info("upload imported",
					zap.String("project", project),
					zap.String("source", p.Source),
					zap.Int("imported", res.ImportedCount),
				)
				writeJSON(w, http.StatusCreated, res)
			}
		})

		r.Get("/market-areas", func(w http.ResponseWriter, r *http.Request) {
			areas, err := st.ListMarketAreas(r.Context(), chi.URLParam(r, "project"))
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			if areas == nil {
				areas = []model.SavedMarketArea{}
			}
			writeJSON(w, http.StatusOK, areas)
		})

		r.Get("/market-areas/{id}", func(w http.ResponseWriter, r *http.Request) {
			area, err := st.GetMarketArea(r.Context(), chi.URLParam(r, "project"), chi.URLParam(r, "id"))
			if err != nil {
				writeError(w, storeStatus(err), err)
				return
			}
			writeJSON(w, http.StatusOK, area)
		})

		r.Delete("/market-areas/{id}", func(w http.ResponseWriter, r *http.Request) {
			if err := st.DeleteMarketArea(r.Context(), chi.URLParam(r, "project"), chi.URLParam(r, "id")); err != nil {
				writeError(w, storeStatus(err), err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
	})

	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		if env.Collector == nil {
			writeError(w, http.StatusNotFound, eris.New("metrics disabled"))
			return
		}
		hours := 24
		if v := r.URL.Query().Get("hours"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, eris.Errorf("invalid hours %q", v))
				return
			}
			hours = n
		}
		snap, err := env.Collector.Collect(r.Context(), hours)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	})

	r.Get("/map.geojson", func(w http.ResponseWriter, r *http.Request) {
		if canvas == nil {
			writeError(w, http.StatusNotFound, eris.New("no map canvas"))
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		if err := canvas.WriteGeoJSON(w); err != nil {
			zap.L().Error("write geojson", zap.Error(err))
		}
	})

	return r
}

// loadUpload reads the "file" form part and normalizes it. On failure the
// response has been written and ok is false.
func loadUpload(w http.ResponseWriter, r *http.Request, coord *importer.Coordinator) (*importer.Preview, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "file is required"))
		return nil, false
	}
	defer file.Close() //nolint:errcheck

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "read upload"))
		return nil, false
	}

	p, err := coord.LoadBytes(r.Context(), header.Filename, data)
	if err != nil {
		writeError(w, uploadStatus(err), err)
		return nil, false
	}
	return p, true
}

func uploadStatus(err error) int {
	var parseErr *sheet.ParseError
	switch {
	case eris.Is(err, sheet.ErrNoData), eris.Is(err, workbook.ErrUnsupportedFormat), errors.As(err, &parseErr):
		return http.StatusUnprocessableEntity
	case eris.Is(err, importer.ErrCancelled):
		return http.StatusRequestTimeout
	default:
		return http.StatusBadRequest
	}
}

func storeStatus(err error) int {
	if eris.Is(err, store.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	msg := err.Error()
	if detail, ok := store.Detail(err); ok {
		msg = detail
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().StringSliceVar(&serveOrigins, "cors-origin", nil, "allowed CORS origins")
	rootCmd.AddCommand(serveCmd)
}
