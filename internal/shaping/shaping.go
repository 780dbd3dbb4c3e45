// Package shaping turns fetched casualty datasets into the series, tables and
// breakdowns shown on the dashboard. Every function is pure.
package shaping

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/DeafMist/daily-deaths-monitor/internal/models"
)

const (
	MinWindow     = 1
	MaxWindow     = 30
	DefaultWindow = 7

	// MaxAge is the upper edge of the age histogram; older ages are ignored.
	MaxAge = 110

	DefaultSort = "date:desc"
)

// Category names used by the demographic breakdown.
const (
	CategoryChildren = "Children"
	CategoryWomen    = "Women"
	CategorySeniors  = "Seniors"
	CategoryOthers   = "Others"
)

// EnsureCumulative returns a copy of records where missing cumulative killed and
// injured totals are filled with running sums of the daily values. Records that
// already carry cumulative totals are left as they are.
func EnsureCumulative(records []models.DailyRecord) []models.DailyRecord {
	if len(records) == 0 {
		return nil
	}

	out := make([]models.DailyRecord, len(records))
	copy(out, records)

	var killed, injured int64
	for i := range out {
		r := &out[i]
		if r.KilledCum == 0 && (r.Killed > 0 || killed > 0) {
			r.KilledCum = killed + r.Killed
		}
		if r.InjuredCum == 0 && (r.Injured > 0 || injured > 0) {
			r.InjuredCum = injured + r.Injured
		}
		killed = r.KilledCum
		injured = r.InjuredCum
	}
	return out
}

// FilterRange keeps records whose date falls inside [from, to]. Nil bounds are open.
func FilterRange(records []models.DailyRecord, from, to *time.Time) []models.DailyRecord {
	out := make([]models.DailyRecord, 0, len(records))
	for _, r := range records {
		if from != nil && r.Date.Before(*from) {
			continue
		}
		if to != nil && r.Date.After(*to) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// ClampWindow bounds a moving average window to [MinWindow, MaxWindow].
func ClampWindow(window int) int {
	if window < MinWindow {
		return MinWindow
	}
	if window > MaxWindow {
		return MaxWindow
	}
	return window
}

// DailyRows derives per-day deaths from the cumulative series. The first row's
// deaths equal its cumulative value. The moving average covers up to window
// trailing days, using however many are available at the start of the series.
func DailyRows(records []models.DailyRecord, window int) []models.DailyRow {
	window = ClampWindow(window)
	rows := make([]models.DailyRow, len(records))

	var sum int64
	for i, r := range records {
		deaths := r.KilledCum
		if i > 0 {
			deaths = r.KilledCum - records[i-1].KilledCum
		}

		sum += deaths
		if i >= window {
			sum -= rows[i-window].Deaths
		}
		n := i + 1
		if n > window {
			n = window
		}

		rows[i] = models.DailyRow{
			Date:          r.Date,
			Deaths:        deaths,
			MovingAverage: float64(sum) / float64(n),
			Cumulative:    r.KilledCum,
		}
	}
	return rows
}

// CumulativeSeries returns the cumulative deaths curve.
func CumulativeSeries(records []models.DailyRecord) []models.Point {
	points := make([]models.Point, len(records))
	for i, r := range records {
		points[i] = models.Point{Date: r.Date, Value: r.KilledCum}
	}
	return points
}

// ParseSort normalizes a "field:order" expression. Unknown fields or orders fall back
// to DefaultSort.
func ParseSort(raw string) (field, order string) {
	field, order, _ = strings.Cut(strings.ToLower(strings.TrimSpace(raw)), ":")
	switch field {
	case "date", "deaths", "cumulative":
	default:
		return "date", "desc"
	}
	if order != "asc" {
		order = "desc"
	}
	return field, order
}

// SortRows returns a sorted copy of rows according to a "field:order" expression.
// Ties are broken by date ascending.
func SortRows(rows []models.DailyRow, expr string) []models.DailyRow {
	field, order := ParseSort(expr)

	out := make([]models.DailyRow, len(rows))
	copy(out, rows)

	key := func(r models.DailyRow) float64 {
		switch field {
		case "deaths":
			return float64(r.Deaths)
		case "cumulative":
			return float64(r.Cumulative)
		default:
			return float64(r.Date.Unix())
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		ki, kj := key(out[i]), key(out[j])
		if ki == kj {
			return out[i].Date.Before(out[j].Date)
		}
		if order == "asc" {
			return ki < kj
		}
		return ki > kj
	})
	return out
}

// Categorize assigns a person to a demographic category. Age takes precedence:
// unknown age is Others, minors are Children, then women, then seniors.
func Categorize(p models.Person) string {
	if p.Age == nil {
		return CategoryOthers
	}
	switch {
	case *p.Age < 18:
		return CategoryChildren
	case p.Sex == "f":
		return CategoryWomen
	case *p.Age >= 60:
		return CategorySeniors
	default:
		return CategoryOthers
	}
}

// Categories returns the demographic breakdown ordered by count. With a person list
// every person is categorized; otherwise the latest daily totals are split into
// children, women and everyone else. Empty categories are omitted.
func Categories(ds models.Dataset) []models.Category {
	counts := make(map[string]int64, 4)

	if len(ds.Killed) > 0 {
		for _, p := range ds.Killed {
			counts[Categorize(p)]++
		}
	} else {
		total := maxOf(ds.Daily, func(r models.DailyRecord) int64 { return r.KilledCum })
		children := maxOf(ds.Daily, func(r models.DailyRecord) int64 { return r.KilledChildrenCum })
		women := maxOf(ds.Daily, func(r models.DailyRecord) int64 { return r.KilledWomenCum })
		others := total - children - women
		if others < 0 {
			others = 0
		}
		counts[CategoryChildren] = children
		counts[CategoryWomen] = women
		counts[CategoryOthers] = others
	}

	out := make([]models.Category, 0, len(counts))
	for name, count := range counts {
		if count <= 0 {
			continue
		}
		out = append(out, models.Category{Name: name, Count: count})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Name < out[j].Name
		}
		return out[i].Count > out[j].Count
	})
	return out
}

// AgeBuckets builds a histogram of known ages in [0, MaxAge] using buckets of the
// given width; the last bucket absorbs the remainder up to MaxAge. Without any usable
// age the result is an empty, non-nil slice.
func AgeBuckets(people []models.Person, width int) []models.AgeBucket {
	if width < 1 {
		width = 1
	}
	if width > MaxAge+1 {
		width = MaxAge + 1
	}

	n := (MaxAge + 1) / width
	counts := make([]int, n)
	seen := false
	for _, p := range people {
		if p.Age == nil || *p.Age < 0 || *p.Age > MaxAge {
			continue
		}
		idx := *p.Age / width
		if idx >= n {
			idx = n - 1
		}
		counts[idx]++
		seen = true
	}
	if !seen {
		return []models.AgeBucket{}
	}

	buckets := make([]models.AgeBucket, n)
	for i := range counts {
		lo := i * width
		hi := lo + width - 1
		if i == n-1 {
			hi = MaxAge
		}
		buckets[i] = models.AgeBucket{Range: bucketLabel(lo, hi), Count: counts[i]}
	}
	return buckets
}

func bucketLabel(lo, hi int) string {
	if lo == hi {
		return fmt.Sprintf("%d", lo)
	}
	return fmt.Sprintf("%d-%d", lo, hi)
}

// Summarize computes the headline metrics. Demographic counts come from the person
// list when present, otherwise from the daily cumulative totals.
func Summarize(ds models.Dataset) models.Metrics {
	m := models.Metrics{
		TotalDeaths: maxOf(ds.Daily, func(r models.DailyRecord) int64 { return r.KilledCum }),
		Injured:     maxOf(ds.Daily, func(r models.DailyRecord) int64 { return r.InjuredCum }),
	}

	if len(ds.Killed) == 0 {
		m.Children = maxOf(ds.Daily, func(r models.DailyRecord) int64 { return r.KilledChildrenCum })
		m.Women = maxOf(ds.Daily, func(r models.DailyRecord) int64 { return r.KilledWomenCum })
		return m
	}

	for _, p := range ds.Killed {
		if p.Age != nil && *p.Age < 18 {
			m.Children++
		}
		switch p.Sex {
		case "m":
			m.Men++
		case "f":
			m.Women++
		}
	}
	return m
}

func maxOf(records []models.DailyRecord, field func(models.DailyRecord) int64) int64 {
	var out int64
	for _, r := range records {
		if v := field(r); v > out {
			out = v
		}
	}
	return out
}
