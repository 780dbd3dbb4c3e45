package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/daily-deaths-monitor/internal/logger"
	"github.com/DeafMist/daily-deaths-monitor/internal/models"
	"github.com/DeafMist/daily-deaths-monitor/internal/theme"
	"github.com/DeafMist/daily-deaths-monitor/internal/upstream"
	"github.com/DeafMist/daily-deaths-monitor/internal/web"
)

type stubFetcher struct {
	ds  *models.Dataset
	err error
}

func (s *stubFetcher) Fetch(context.Context) (*models.Dataset, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.ds, nil
}

func newTestServer(t *testing.T, f web.Fetcher) http.Handler {
	t.Helper()
	log := logger.Discard()
	svc, err := web.NewService(f, theme.Default(), 10, log)
	require.NoError(t, err)
	return (&server{log: log, svc: svc, defaultWindow: 7}).routes()
}

func fixture() *models.Dataset {
	start := time.Date(2023, 10, 7, 0, 0, 0, 0, time.UTC)
	age := func(n int) *int { return &n }
	return &models.Dataset{
		Daily: []models.DailyRecord{
			{Date: start, KilledCum: 10, InjuredCum: 40},
			{Date: start.AddDate(0, 0, 1), KilledCum: 15, InjuredCum: 55},
			{Date: start.AddDate(0, 0, 2), KilledCum: 19, InjuredCum: 70},
		},
		Killed: []models.Person{
			{Name: "a", Age: age(4), Sex: "m"},
			{Name: "b", Age: age(33), Sex: "f"},
			{Name: "c", Age: age(71), Sex: "m"},
		},
	}
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, &stubFetcher{ds: fixture()})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestPageRendersDashboard(t *testing.T) {
	h := newTestServer(t, &stubFetcher{ds: fixture()})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?ma=3&sort=deaths:asc", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	body := rec.Body.String()
	require.Equal(t, 3, strings.Count(body, `<tr class="row">`))
	require.Contains(t, body, "3-day average")
	require.Contains(t, body, "Casualties by Age")
}

func TestPageUpstreamFailure(t *testing.T) {
	h := newTestServer(t, &stubFetcher{err: &upstream.FetchError{URL: "https://example.test", StatusCode: 500}})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Contains(t, rec.Body.String(), `id="fetch-error"`)
}

func TestDashboardAPI(t *testing.T) {
	h := newTestServer(t, &stubFetcher{ds: fixture()})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard?from=2023-10-08", nil)
	req.Header.Set("Origin", "https://example.org")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	var got struct {
		Metrics struct {
			TotalDeaths int64 `json:"total_deaths"`
		} `json:"metrics"`
		Rows       []json.RawMessage `json:"rows"`
		Cumulative []json.RawMessage `json:"cumulative"`
		Window     int               `json:"window"`
		People     int               `json:"people"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, int64(19), got.Metrics.TotalDeaths)
	require.Len(t, got.Rows, 2)
	require.Len(t, got.Cumulative, 2)
	require.Equal(t, 7, got.Window)
	require.Equal(t, 3, got.People)
}

func TestDashboardAPIUpstreamFailure(t *testing.T) {
	h := newTestServer(t, &stubFetcher{err: &upstream.FetchError{URL: "https://example.test", StatusCode: 503}})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil))

	require.Equal(t, http.StatusBadGateway, rec.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Contains(t, resp.Error, "503")
}

func TestDashboardAPIEncodesEmptyCollectionsAsArrays(t *testing.T) {
	ds := fixture()
	ds.Killed = nil
	h := newTestServer(t, &stubFetcher{ds: ds})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `"age_buckets":[]`)
	require.NotContains(t, body, "null")
}
