package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/DeafMist/daily-deaths-monitor/internal/logger"
	"github.com/DeafMist/daily-deaths-monitor/internal/models"
)

const reportDateLayout = "2006-01-02"

// Options configure the upstream client.
type Options struct {
	CasualtiesURL string
	// KilledURL is optional; when empty the per-person list is not fetched.
	KilledURL string
	// Timeout of zero keeps the http.Client default.
	Timeout time.Duration
	// RequestsPerMinute of zero disables rate limiting.
	RequestsPerMinute float64
	HTTPClient        *http.Client
}

// Client fetches the Palestine API datasets.
type Client struct {
	http          *http.Client
	casualtiesURL string
	killedURL     string
	limiter       *rate.Limiter
	log           *slog.Logger
}

// FetchError is the single failure kind of the fetcher: transport error, unexpected
// status or a body that does not decode.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

type dailyPayload struct {
	ReportDate           string   `json:"report_date"`
	Killed               *float64 `json:"killed"`
	KilledCum            *float64 `json:"killed_cum"`
	ExtKilledCum         *float64 `json:"ext_killed_cum"`
	KilledChildrenCum    *float64 `json:"killed_children_cum"`
	ExtKilledChildrenCum *float64 `json:"ext_killed_children_cum"`
	KilledWomenCum       *float64 `json:"killed_women_cum"`
	ExtKilledWomenCum    *float64 `json:"ext_killed_women_cum"`
	Injured              *float64 `json:"injured"`
	InjuredCum           *float64 `json:"injured_cum"`
	ExtInjuredCum        *float64 `json:"ext_injured_cum"`
	MassacresCum         *float64 `json:"massacres_cum"`
	MedKilledCum         *float64 `json:"med_killed_cum"`
	CivdefKilledCum      *float64 `json:"civdef_killed_cum"`
	PressKilledCum       *float64 `json:"press_killed_cum"`
}

type personPayload struct {
	Name   string   `json:"name"`
	EnName string   `json:"en_name"`
	Age    *float64 `json:"age"`
	Sex    string   `json:"sex"`
}

// New instantiates the client.
func New(opts Options, log *slog.Logger) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if opts.Timeout > 0 {
		clone := *httpClient
		clone.Timeout = opts.Timeout
		httpClient = &clone
	}

	if log == nil {
		log = logger.Discard()
	}

	c := &Client{
		http:          httpClient,
		casualtiesURL: opts.CasualtiesURL,
		killedURL:     opts.KilledURL,
		log:           log,
	}
	if opts.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerMinute/60), 1)
	}
	return c
}

// Fetch retrieves the daily series and, when configured, the per-person list.
// Each endpoint is requested exactly once.
func (c *Client) Fetch(ctx context.Context) (*models.Dataset, error) {
	daily, err := c.FetchDaily(ctx)
	if err != nil {
		return nil, err
	}

	killed, err := c.FetchKilled(ctx)
	if err != nil {
		return nil, err
	}

	return &models.Dataset{Daily: daily, Killed: killed}, nil
}

// FetchDaily returns the casualties_daily records ordered by date ascending.
// Records whose report_date does not parse are dropped.
func (c *Client) FetchDaily(ctx context.Context) ([]models.DailyRecord, error) {
	var payload []dailyPayload
	if err := c.getJSON(ctx, c.casualtiesURL, &payload); err != nil {
		return nil, err
	}

	records := make([]models.DailyRecord, 0, len(payload))
	skipped := 0
	for _, p := range payload {
		date, err := time.Parse(reportDateLayout, strings.TrimSpace(p.ReportDate))
		if err != nil {
			skipped++
			continue
		}
		records = append(records, models.DailyRecord{
			Date:              date,
			Killed:            toInt(p.Killed),
			KilledCum:         toInt(firstOf(p.KilledCum, p.ExtKilledCum)),
			KilledChildrenCum: toInt(firstOf(p.KilledChildrenCum, p.ExtKilledChildrenCum)),
			KilledWomenCum:    toInt(firstOf(p.KilledWomenCum, p.ExtKilledWomenCum)),
			Injured:           toInt(p.Injured),
			InjuredCum:        toInt(firstOf(p.InjuredCum, p.ExtInjuredCum)),
			MassacresCum:      toInt(p.MassacresCum),
			MedKilledCum:      toInt(p.MedKilledCum),
			CivdefKilledCum:   toInt(p.CivdefKilledCum),
			PressKilledCum:    toInt(p.PressKilledCum),
		})
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date.Before(records[j].Date)
	})

	if skipped > 0 {
		c.log.Warn("skipped daily records with invalid report_date", slog.Int("skipped", skipped))
	}
	c.log.Debug("fetched daily records", slog.Int("records", len(records)))
	return records, nil
}

// FetchKilled returns the killed-in-gaza list, or nil when no URL is configured.
func (c *Client) FetchKilled(ctx context.Context) ([]models.Person, error) {
	if c.killedURL == "" {
		return nil, nil
	}

	var payload []personPayload
	if err := c.getJSON(ctx, c.killedURL, &payload); err != nil {
		return nil, err
	}

	people := make([]models.Person, 0, len(payload))
	for _, p := range payload {
		name := strings.TrimSpace(p.EnName)
		if name == "" {
			name = strings.TrimSpace(p.Name)
		}
		person := models.Person{
			Name: name,
			Sex:  strings.ToLower(strings.TrimSpace(p.Sex)),
		}
		if p.Age != nil {
			age := int(*p.Age)
			person.Age = &age
		}
		people = append(people, person)
	}

	c.log.Debug("fetched killed list", slog.Int("people", len(people)))
	return people, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &FetchError{URL: url, Err: fmt.Errorf("rate limit: %w", err)}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &FetchError{URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		return &FetchError{URL: url, Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, res.Body)
		return &FetchError{URL: url, StatusCode: res.StatusCode}
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return &FetchError{URL: url, Err: fmt.Errorf("decode response: %w", err)}
	}

	c.log.Debug("upstream request done",
		slog.String("url", url),
		slog.Duration("took", time.Since(start)),
	)
	return nil
}

func firstOf(values ...*float64) *float64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func toInt(v *float64) int64 {
	if v == nil {
		return 0
	}
	return int64(*v)
}
