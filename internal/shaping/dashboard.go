package shaping

import (
	"time"

	"github.com/DeafMist/daily-deaths-monitor/internal/models"
)

// Options select the slice of data a dashboard shows.
type Options struct {
	From           *time.Time
	To             *time.Time
	Window         int
	Sort           string
	AgeBucketWidth int
}

// Dashboard is the shaped view of one dataset.
type Dashboard struct {
	Metrics    models.Metrics     `json:"metrics"`
	Cumulative []models.Point     `json:"cumulative"`
	Rows       []models.DailyRow  `json:"rows"`
	Categories []models.Category  `json:"categories"`
	AgeBuckets []models.AgeBucket `json:"age_buckets"`
	Window     int                `json:"window"`
	Sort       string             `json:"sort"`
	From       *time.Time         `json:"from,omitempty"`
	To         *time.Time         `json:"to,omitempty"`
	FirstDate  *time.Time         `json:"first_date,omitempty"`
	LastDate   *time.Time         `json:"last_date,omitempty"`
	People     int                `json:"people"`
}

// Build shapes a dataset. Metrics and breakdowns always cover the full dataset;
// the curve and the table honour the requested date range.
func Build(ds models.Dataset, opts Options) *Dashboard {
	records := EnsureCumulative(ds.Daily)
	full := models.Dataset{Daily: records, Killed: ds.Killed}

	filtered := FilterRange(records, opts.From, opts.To)
	window := ClampWindow(opts.Window)
	field, order := ParseSort(opts.Sort)
	sortExpr := field + ":" + order

	width := opts.AgeBucketWidth
	if width <= 0 {
		width = 10
	}

	d := &Dashboard{
		Metrics:    Summarize(full),
		Cumulative: CumulativeSeries(filtered),
		Rows:       SortRows(DailyRows(filtered, window), sortExpr),
		Categories: Categories(full),
		AgeBuckets: AgeBuckets(ds.Killed, width),
		Window:     window,
		Sort:       sortExpr,
		From:       opts.From,
		To:         opts.To,
		People:     len(ds.Killed),
	}

	if len(records) > 0 {
		first := records[0].Date
		last := records[len(records)-1].Date
		d.FirstDate = &first
		d.LastDate = &last
	}
	return d
}
