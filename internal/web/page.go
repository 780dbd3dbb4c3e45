package web

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/DeafMist/daily-deaths-monitor/internal/charts"
	"github.com/DeafMist/daily-deaths-monitor/internal/shaping"
	"github.com/DeafMist/daily-deaths-monitor/internal/theme"
)

const dateLayout = "2006-01-02"

// Query holds the page parameters a visitor can change.
type Query struct {
	From   *time.Time
	To     *time.Time
	Window int
	Sort   string
}

// ParseQuery reads from, to, ma and sort. Invalid values fall back to defaults.
func ParseQuery(values url.Values, defaultWindow int) Query {
	q := Query{
		From:   parseDate(values.Get("from")),
		To:     parseDate(values.Get("to")),
		Window: defaultWindow,
	}

	if raw := strings.TrimSpace(values.Get("ma")); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			q.Window = v
		}
	}
	q.Window = shaping.ClampWindow(q.Window)

	field, order := shaping.ParseSort(values.Get("sort"))
	q.Sort = field + ":" + order
	return q
}

// Options converts the query into shaping options.
func (q Query) Options(ageBucketWidth int) shaping.Options {
	return shaping.Options{
		From:           q.From,
		To:             q.To,
		Window:         q.Window,
		Sort:           q.Sort,
		AgeBucketWidth: ageBucketWidth,
	}
}

// Encode renders the query as URL parameters, omitting unset dates.
func (q Query) Encode() string {
	v := url.Values{}
	if q.From != nil {
		v.Set("from", q.From.Format(dateLayout))
	}
	if q.To != nil {
		v.Set("to", q.To.Format(dateLayout))
	}
	v.Set("ma", strconv.Itoa(q.Window))
	v.Set("sort", q.Sort)
	return v.Encode()
}

func parseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if ts, err := time.Parse(dateLayout, raw); err == nil {
		return &ts
	}
	return nil
}

// Page is everything the template needs for one render.
type Page struct {
	Theme       *theme.Theme
	Dashboard   *shaping.Dashboard
	Cumulative  charts.Figure
	Categories  charts.Figure
	Ages        charts.Figure
	Query       Query
	Error       string
	RenderID    string
	GeneratedAt time.Time
	// Static pages are written to disk and have no working links or forms.
	Static bool
}

// SortURL returns the link for a table header. Clicking the active column flips
// its order; other columns start descending.
func (p *Page) SortURL(field string) string {
	q := p.Query
	current, order := shaping.ParseSort(q.Sort)
	next := "desc"
	if current == field && order == "desc" {
		next = "asc"
	}
	q.Sort = field + ":" + next
	return "?" + q.Encode()
}

// SortIndicator marks the active sort column.
func (p *Page) SortIndicator(field string) string {
	current, order := shaping.ParseSort(p.Query.Sort)
	if current != field {
		return ""
	}
	if order == "asc" {
		return "▲"
	}
	return "▼"
}

// RefreshURL reloads the page with the same parameters.
func (p *Page) RefreshURL() string {
	return "?" + p.Query.Encode()
}

// HasData reports whether at least one daily record was fetched.
func (p *Page) HasData() bool {
	return p.Dashboard != nil && p.Dashboard.LastDate != nil
}
