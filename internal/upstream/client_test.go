package upstream_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/daily-deaths-monitor/internal/upstream"
)

const dailyFixture = `[
	{"report_date":"2023-10-09","killed_cum":19,"injured_cum":40},
	{"report_date":"2023-10-07","killed_cum":10,"killed_children_cum":2,"killed_women_cum":3,"injured_cum":20},
	{"report_date":"not-a-date","killed_cum":99},
	{"report_date":"2023-10-08","ext_killed_cum":15,"injured_cum":31}
]`

const killedFixture = `[
	{"name":"ignored","en_name":"Ahmad","age":7,"sex":"m"},
	{"name":"Layla","age":34.0,"sex":"F"},
	{"en_name":"Unknown","sex":"m"}
]`

func serve(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchDailySortsAndSkipsBadDates(t *testing.T) {
	srv := serve(t, map[string]string{"/daily.json": dailyFixture})
	client := upstream.New(upstream.Options{CasualtiesURL: srv.URL + "/daily.json"}, nil)

	records, err := client.FetchDaily(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)

	require.Equal(t, time.Date(2023, 10, 7, 0, 0, 0, 0, time.UTC), records[0].Date)
	require.Equal(t, int64(10), records[0].KilledCum)
	require.Equal(t, int64(2), records[0].KilledChildrenCum)
	require.Equal(t, int64(3), records[0].KilledWomenCum)
	require.Equal(t, int64(15), records[1].KilledCum, "ext_ field is used when the plain one is missing")
	require.Equal(t, int64(19), records[2].KilledCum)
	require.Equal(t, int64(40), records[2].InjuredCum)
}

func TestFetchKilledNormalizesPeople(t *testing.T) {
	srv := serve(t, map[string]string{"/killed.json": killedFixture})
	client := upstream.New(upstream.Options{KilledURL: srv.URL + "/killed.json"}, nil)

	people, err := client.FetchKilled(context.Background())
	require.NoError(t, err)
	require.Len(t, people, 3)

	require.Equal(t, "Ahmad", people[0].Name)
	require.NotNil(t, people[0].Age)
	require.Equal(t, 7, *people[0].Age)
	require.Equal(t, "f", people[1].Sex)
	require.Equal(t, 34, *people[1].Age)
	require.Nil(t, people[2].Age)
}

func TestFetchKilledDisabled(t *testing.T) {
	client := upstream.New(upstream.Options{CasualtiesURL: "http://unused"}, nil)

	people, err := client.FetchKilled(context.Background())
	require.NoError(t, err)
	require.Nil(t, people)
}

func TestFetchCombinesBothDatasets(t *testing.T) {
	srv := serve(t, map[string]string{"/daily.json": dailyFixture, "/killed.json": killedFixture})
	client := upstream.New(upstream.Options{
		CasualtiesURL: srv.URL + "/daily.json",
		KilledURL:     srv.URL + "/killed.json",
	}, nil)

	ds, err := client.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, ds.Daily, 3)
	require.Len(t, ds.Killed, 3)
}

func TestFetchFailures(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus int
	}{
		{
			name: "non-json body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("<html>maintenance</html>"))
			},
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			wantStatus: http.StatusBadGateway,
		},
		{
			name: "object instead of array",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"report_date":"2023-10-07"}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			client := upstream.New(upstream.Options{CasualtiesURL: srv.URL}, nil)
			ds, err := client.Fetch(context.Background())
			require.Nil(t, ds)

			var fetchErr *upstream.FetchError
			require.True(t, errors.As(err, &fetchErr))
			require.Equal(t, srv.URL, fetchErr.URL)
			require.Equal(t, tt.wantStatus, fetchErr.StatusCode)
			require.NotEmpty(t, fetchErr.Error())
		})
	}
}

func TestFetchUnreachableHost(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := upstream.New(upstream.Options{CasualtiesURL: url}, nil)
	_, err := client.FetchDaily(context.Background())

	var fetchErr *upstream.FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Zero(t, fetchErr.StatusCode)
	require.Error(t, errors.Unwrap(fetchErr))
}

func TestFetchSingleAttempt(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := upstream.New(upstream.Options{CasualtiesURL: srv.URL}, nil)
	_, err := client.Fetch(context.Background())
	require.Error(t, err)
	require.Equal(t, int32(1), calls.Load())
}

func TestRateLimitHonoursContext(t *testing.T) {
	srv := serve(t, map[string]string{"/daily.json": "[]"})
	client := upstream.New(upstream.Options{
		CasualtiesURL:     srv.URL + "/daily.json",
		RequestsPerMinute: 1,
	}, nil)

	_, err := client.FetchDaily(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = client.FetchDaily(ctx)
	var fetchErr *upstream.FetchError
	require.ErrorAs(t, err, &fetchErr)
}
