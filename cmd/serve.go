package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/docintel/internal/model"
	"github.com/sells-group/docintel/internal/monitoring"
	"github.com/sells-group/docintel/internal/store"
)

// maxDocumentBytes caps the request body of POST /v1/analyze.
const maxDocumentBytes = 5 << 20

const shutdownTimeout = 30 * time.Second

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for analysis requests and run history",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.ValidateServe(); err != nil {
			return err
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		api := newAPIServer(ctx, env.Store, env.Orchestrator, env.Layers)

		if cfg.Monitoring.Enabled {
			checker := monitoring.NewChecker(
				monitoring.NewCollector(env.Store),
				monitoring.NewAlerter(cfg.Monitoring),
				cfg.Monitoring,
			)
			go checker.Run(ctx)
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           api.routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		ln, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			return eris.Wrap(err, "server listen")
		}

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := serveHTTP(ctx, srv, ln, shutdownTimeout); err != nil {
			return err
		}

		api.wait()
		return nil
	},
}

// serveHTTP serves on ln until ctx is done and then shuts srv down. It
// returns once in-flight requests have finished or timeout has elapsed.
func serveHTTP(ctx context.Context, srv *http.Server, ln net.Listener, timeout time.Duration) error {
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("server shutdown", zap.Error(err))
		}
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server serve")
	}
	// Serve returns as soon as Shutdown starts.
	<-shutdownDone
	return nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// apiServer serves analysis requests and run history.
type apiServer struct {
	ctx      context.Context
	store    store.Store
	analyzer analyzer
	layers   model.LayerSet
	inflight sync.WaitGroup
}

func newAPIServer(ctx context.Context, st store.Store, a analyzer, layers model.LayerSet) *apiServer {
	return &apiServer{ctx: ctx, store: st, analyzer: a, layers: layers}
}

func (s *apiServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/analyze", s.handleAnalyze)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Get("/runs/{id}/extractions", s.handleListExtractions)
	})
	return r
}

// wait blocks until background analyses have finished.
func (s *apiServer) wait() {
	s.inflight.Wait()
}

type analyzeRequest struct {
	DocumentID string `json:"document_id"`
	Text       string `json:"text"`
	Async      bool   `json:"async"`
}

// handleAnalyze runs the pipeline over the posted document. Synchronous
// requests get the run back; failed runs are returned with 502. Async
// requests are accepted immediately and recorded when they terminate.
func (s *apiServer) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxDocumentBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	if req.DocumentID == "" {
		req.DocumentID = uuid.NewString()
	}

	if req.Async {
		s.inflight.Add(1)
		go func() {
			defer s.inflight.Done()
			run, err := analyzeAndRecord(s.ctx, s.analyzer, s.store, req.DocumentID, req.Text, s.layers)
			if err != nil {
				zap.L().Error("async analysis failed", zap.String("document_id", req.DocumentID), zap.Error(err))
				return
			}
			zap.L().Info("async analysis complete",
				zap.String("document_id", req.DocumentID),
				zap.String("run_id", run.ID),
				zap.Int("composite_score", run.CompositeScore),
			)
		}()
		writeResponse(w, http.StatusAccepted, map[string]string{
			"status":      "accepted",
			"document_id": req.DocumentID,
		})
		return
	}

	run, err := analyzeAndRecord(r.Context(), s.analyzer, s.store, req.DocumentID, req.Text, s.layers)
	if err != nil {
		if run == nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeResponse(w, http.StatusBadGateway, map[string]any{"error": err.Error(), "run": run})
		return
	}
	writeResponse(w, http.StatusOK, run)
}

func (s *apiServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.RunFilter{
		Status:     model.RunStatus(q.Get("status")),
		DocumentID: q.Get("document_id"),
	}
	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("list runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list runs failed")
		return
	}
	writeResponse(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *apiServer) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, "get run", err)
		return
	}
	writeResponse(w, http.StatusOK, run)
}

func (s *apiServer) handleListExtractions(w http.ResponseWriter, r *http.Request) {
	ex, err := s.store.ListExtractions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, "list extractions", err)
		return
	}
	writeResponse(w, http.StatusOK, map[string]any{"extractions": ex})
}

func (s *apiServer) storeError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	zap.L().Error(op, zap.Error(err))
	writeError(w, http.StatusInternalServerError, op+" failed")
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, eris.Errorf("invalid integer %q", v)
	}
	return n, nil
}

func writeResponse(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeResponse(w, status, map[string]string{"error": msg})
}

// requestLogger logs each request through zap.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
