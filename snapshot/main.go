package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/DeafMist/daily-deaths-monitor/internal/config"
	"github.com/DeafMist/daily-deaths-monitor/internal/logger"
	"github.com/DeafMist/daily-deaths-monitor/internal/theme"
	"github.com/DeafMist/daily-deaths-monitor/internal/upstream"
	"github.com/DeafMist/daily-deaths-monitor/internal/web"
)

func main() {
	log := logger.New("snapshot")
	if err := config.LoadDotEnv(); err != nil {
		log.Error("load .env", slog.Any("err", err))
		os.Exit(1)
	}
	cfg, err := config.LoadSnapshot()
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := runOnce(ctx, log, svc, cfg); err != nil {
		log.Error("snapshot failed", slog.Any("err", err))
		os.Exit(1)
	}
}

// runOnce renders the full history to cfg.OutputPath. A fetch failure still writes
// the error page before being reported.
func runOnce(ctx context.Context, log *slog.Logger, svc *web.Service, cfg *config.Snapshot) error {
	subCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	q := web.ParseQuery(url.Values{}, cfg.MovingAverageDays)
	page, fetchErr := svc.Page(subCtx, q)
	page.Static = true

	var buf bytes.Buffer
	if err := svc.Render(&buf, page); err != nil {
		return fmt.Errorf("render snapshot: %w", err)
	}
	if err := writeFile(cfg.OutputPath, buf.Bytes()); err != nil {
		return err
	}

	if fetchErr != nil {
		return fmt.Errorf("fetch dataset: %w", fetchErr)
	}

	log.Info("snapshot written",
		slog.String("path", cfg.OutputPath),
		slog.String("size", humanize.Bytes(uint64(buf.Len()))),
		slog.Int("rows", len(page.Dashboard.Rows)),
		slog.String("render_id", page.RenderID),
	)
	return nil
}

// writeFile replaces path atomically so a reader never sees a half written page.
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".snapshot-*.html")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("move snapshot: %w", err)
	}
	return nil
}
