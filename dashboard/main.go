package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/DeafMist/daily-deaths-monitor/internal/config"
	"github.com/DeafMist/daily-deaths-monitor/internal/logger"
	"github.com/DeafMist/daily-deaths-monitor/internal/theme"
	"github.com/DeafMist/daily-deaths-monitor/internal/upstream"
	"github.com/DeafMist/daily-deaths-monitor/internal/web"
)

func main() {
	log := logger.New("dashboard")
	if err := config.LoadDotEnv(); err != nil {
		log.Error("load .env", slog.Any("err", err))
		os.Exit(1)
	}
	cfg, err := config.LoadDashboard()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	th, err := theme.Load(cfg.ThemeFile)
	if err != nil {
		log.Error("load theme", slog.Any("err", err))
		os.Exit(1)
	}

	client := upstream.New(upstream.Options{
		CasualtiesURL:     cfg.CasualtiesURL,
		KilledURL:         cfg.KilledURL,
		Timeout:           cfg.UpstreamTimeout,
		RequestsPerMinute: cfg.RequestsPerMinute,
	}, log)

	svc, err := web.NewService(client, th, cfg.AgeBucketWidth, log)
	if err != nil {
		log.Error("init templates", slog.Any("err", err))
		os.Exit(1)
	}

	srv := &server{log: log, svc: svc, defaultWindow: cfg.MovingAverageDays}

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	go func() {
		log.Info("dashboard server starting",
			slog.String("addr", cfg.BindAddr),
			slog.String("casualties_url", cfg.CasualtiesURL),
			slog.Bool("per_person", cfg.KilledURL != ""),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}

type server struct {
	log           *slog.Logger
	svc           *web.Service
	defaultWindow int
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(45 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Get("/", s.handlePage)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))
		r.Get("/dashboard", s.handleDashboard)
	})

	return r
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handlePage fetches, shapes and renders on every request. Upstream failures still
// produce a themed page, served with 502.
func (s *server) handlePage(w http.ResponseWriter, r *http.Request) {
	q := web.ParseQuery(r.URL.Query(), s.defaultWindow)

	status := http.StatusOK
	page, err := s.svc.Page(r.Context(), q)
	if err != nil {
		status = http.StatusBadGateway
	}

	var buf bytes.Buffer
	if err := s.svc.Render(&buf, page); err != nil {
		s.log.Error("render page",
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("render_id", page.RenderID),
			slog.Any("err", err),
		)
		http.Error(w, "failed to render dashboard", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func (s *server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	q := web.ParseQuery(r.URL.Query(), s.defaultWindow)

	d, err := s.svc.Dashboard(r.Context(), q)
	if err != nil {
		s.log.Warn("dashboard api fetch failed",
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.Any("err", err),
		)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, d)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
