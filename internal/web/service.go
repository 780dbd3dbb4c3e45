package web

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/DeafMist/daily-deaths-monitor/internal/charts"
	"github.com/DeafMist/daily-deaths-monitor/internal/logger"
	"github.com/DeafMist/daily-deaths-monitor/internal/models"
	"github.com/DeafMist/daily-deaths-monitor/internal/shaping"
	"github.com/DeafMist/daily-deaths-monitor/internal/theme"
	"github.com/DeafMist/daily-deaths-monitor/internal/upstream"
)

// Fetcher retrieves one dataset per call.
type Fetcher interface {
	Fetch(ctx context.Context) (*models.Dataset, error)
}

// Service runs fetch, shape and render for a single page load.
type Service struct {
	fetcher        Fetcher
	theme          *theme.Theme
	renderer       *charts.Renderer
	templates      *TemplateEngine
	log            *slog.Logger
	ageBucketWidth int
}

// NewService wires the pipeline. The theme is shared read-only by all renders.
func NewService(fetcher Fetcher, th *theme.Theme, ageBucketWidth int, log *slog.Logger) (*Service, error) {
	templates, err := NewTemplateEngine()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Service{
		fetcher:        fetcher,
		theme:          th,
		renderer:       charts.New(th),
		templates:      templates,
		log:            log,
		ageBucketWidth: ageBucketWidth,
	}, nil
}

// Dashboard fetches and shapes without drawing anything.
func (s *Service) Dashboard(ctx context.Context, q Query) (*shaping.Dashboard, error) {
	ds, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return shaping.Build(*ds, q.Options(s.ageBucketWidth)), nil
}

// Page performs one full render cycle. A fetch failure is returned together with a
// page that explains it to the visitor.
func (s *Service) Page(ctx context.Context, q Query) (*Page, error) {
	renderID := uuid.NewString()
	log := s.log.With(slog.String("render_id", renderID))
	start := time.Now()

	page := &Page{
		Theme:       s.theme,
		Query:       q,
		RenderID:    renderID,
		GeneratedAt: start.UTC(),
	}

	ds, err := s.fetcher.Fetch(ctx)
	if err != nil {
		page.Error = visitorMessage(err)
		page.Dashboard = shaping.Build(models.Dataset{}, q.Options(s.ageBucketWidth))
		log.Warn("fetch failed", slog.Any("err", err))
		return page, err
	}
	log.Debug("fetched dataset",
		slog.Int("daily_records", len(ds.Daily)),
		slog.Int("people", len(ds.Killed)),
	)

	page.Dashboard = shaping.Build(*ds, q.Options(s.ageBucketWidth))
	page.Cumulative = logFigure(log)(s.renderer.CumulativeLine(page.Dashboard.Cumulative))
	page.Categories = logFigure(log)(s.renderer.CategoryPie(page.Dashboard.Categories))
	page.Ages = logFigure(log)(s.renderer.AgeBars(page.Dashboard.AgeBuckets))

	log.Info("dashboard rendered",
		slog.Int("rows", len(page.Dashboard.Rows)),
		slog.Int("window", page.Dashboard.Window),
		slog.Duration("took", time.Since(start)),
	)
	return page, nil
}

// Render writes a page produced by Page.
func (s *Service) Render(w io.Writer, page *Page) error {
	return s.templates.Render(w, page)
}

// logFigure keeps a failed chart as an empty figure so the rest of the page still renders.
func logFigure(log *slog.Logger) func(charts.Figure, error) charts.Figure {
	return func(fig charts.Figure, err error) charts.Figure {
		if err != nil {
			log.Error("chart render failed", slog.String("chart", fig.Title), slog.Any("err", err))
		}
		return fig
	}
}

func visitorMessage(err error) string {
	var fetchErr *upstream.FetchError
	if errors.As(err, &fetchErr) {
		if fetchErr.StatusCode != 0 {
			return "The statistics service answered with an unexpected status (" +
				strconv.Itoa(fetchErr.StatusCode) + "). Please try again later."
		}
		return "Could not load data from the statistics service: " + fetchErr.Error()
	}
	return "Could not load data: " + err.Error()
}
