// Package charts draws the dashboard figures as inline SVG.
package charts

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/DeafMist/daily-deaths-monitor/internal/models"
	"github.com/DeafMist/daily-deaths-monitor/internal/theme"
)

// Figure is a rendered chart. A figure without points carries no SVG.
type Figure struct {
	Title  string
	Points int
	// Last is the final y value drawn, zero for empty figures.
	Last float64
	SVG  template.HTML
}

// Empty reports whether there is nothing to draw.
func (f Figure) Empty() bool { return f.Points == 0 || f.SVG == "" }

// Renderer turns shaped data into figures styled by a theme.
type Renderer struct {
	theme *theme.Theme
}

// New creates a renderer for the given theme.
func New(th *theme.Theme) *Renderer {
	return &Renderer{theme: th}
}

// CumulativeLine draws the cumulative deaths curve.
func (r *Renderer) CumulativeLine(points []models.Point) (Figure, error) {
	fig := Figure{Title: "Cumulative Deaths Curve", Points: len(points)}
	if len(points) == 0 {
		return fig, nil
	}

	xs := make([]time.Time, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = p.Date
		ys[i] = float64(p.Value)
	}
	fig.Last = ys[len(ys)-1]

	minX, maxX := xs[0], xs[len(xs)-1]
	if !maxX.After(minX) {
		// a single day has no width; pad it so the axis range is valid
		minX = minX.Add(-24 * time.Hour)
		maxX = maxX.Add(24 * time.Hour)
	}

	accent := r.color(r.theme.Colors.Accent)
	graph := chart.Chart{
		Title:      fig.Title,
		TitleStyle: r.titleStyle(),
		Width:      r.theme.Charts.Width,
		Height:     r.theme.Charts.Height,
		Background: r.backgroundStyle(),
		Canvas:     chart.Style{FillColor: r.color(r.theme.Colors.Background)},
		XAxis: chart.XAxis{
			Name:           "Date",
			Style:          r.axisStyle(),
			ValueFormatter: chart.TimeDateValueFormatter,
			Range:          &chart.ContinuousRange{Min: chart.TimeToFloat64(minX), Max: chart.TimeToFloat64(maxX)},
		},
		YAxis: chart.YAxis{
			Name:           "Total Cumulative Deaths",
			Style:          r.axisStyle(),
			ValueFormatter: commaFormatter,
			Range:          &chart.ContinuousRange{Min: 0, Max: niceMax(maxFloat(ys))},
			GridMajorStyle: r.gridStyle(),
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Cumulative deaths",
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: accent,
					StrokeWidth: 3,
					FillColor:   accent.WithAlpha(64),
					DotColor:    accent,
					DotWidth:    dotWidth(len(points)),
				},
			},
		},
	}

	return r.render(fig, graph.Render)
}

// CategoryPie draws the demographic breakdown. Categories with no deaths are skipped.
func (r *Renderer) CategoryPie(categories []models.Category) (Figure, error) {
	fig := Figure{Title: "Death Distribution by Category"}

	var total int64
	for _, c := range categories {
		if c.Count > 0 {
			total += c.Count
		}
	}

	values := make([]chart.Value, 0, len(categories))
	palette := r.theme.Colors.Palette
	for _, c := range categories {
		if c.Count <= 0 {
			continue
		}
		pct := float64(c.Count) / float64(total) * 100
		values = append(values, chart.Value{
			Value: float64(c.Count),
			Label: fmt.Sprintf("%s %.1f%%", c.Name, pct),
			Style: chart.Style{
				FillColor:   r.color(palette[len(values)%len(palette)]),
				StrokeColor: r.color(r.theme.Colors.Background),
				StrokeWidth: 2,
				FontColor:   r.color(r.theme.Colors.Text),
				FontSize:    14,
			},
		})
	}
	fig.Points = len(values)
	if len(values) == 0 {
		return fig, nil
	}
	fig.Last = values[len(values)-1].Value

	pie := chart.PieChart{
		Title:      fig.Title,
		TitleStyle: r.titleStyle(),
		Width:      r.theme.Charts.PieSize,
		Height:     r.theme.Charts.PieSize,
		Background: r.backgroundStyle(),
		Canvas:     chart.Style{FillColor: r.color(r.theme.Colors.Background)},
		Values:     values,
	}

	return r.render(fig, pie.Render)
}

// AgeBars draws the age histogram.
func (r *Renderer) AgeBars(buckets []models.AgeBucket) (Figure, error) {
	fig := Figure{Title: "Casualties by Age", Points: len(buckets)}
	if len(buckets) == 0 {
		return fig, nil
	}
	if strings.Contains(buckets[0].Range, "-") {
		fig.Title = "Casualties by Age Range (years)"
	}

	bars := make([]chart.Value, len(buckets))
	var top float64
	for i, b := range buckets {
		v := float64(b.Count)
		if v > top {
			top = v
		}
		bars[i] = chart.Value{
			Value: v,
			Label: b.Range,
			Style: chart.Style{
				FillColor:   r.color(r.theme.Colors.Bar),
				StrokeColor: r.color(r.theme.Colors.Bar),
			},
		}
	}
	fig.Last = bars[len(bars)-1].Value

	barWidth, spacing := barGeometry(r.theme.Charts.Width, len(bars))
	bc := chart.BarChart{
		Title:      fig.Title,
		TitleStyle: r.titleStyle(),
		Width:      r.theme.Charts.Width,
		Height:     r.theme.Charts.Height,
		Background: r.backgroundStyle(),
		Canvas:     chart.Style{FillColor: r.color(r.theme.Colors.Background)},
		BarWidth:   barWidth,
		BarSpacing: spacing,
		XAxis:      r.axisStyle(),
		YAxis: chart.YAxis{
			Name:           "Number of Deaths",
			Style:          r.axisStyle(),
			ValueFormatter: commaFormatter,
			Range:          &chart.ContinuousRange{Min: 0, Max: niceMax(top)},
			GridMajorStyle: r.gridStyle(),
		},
		Bars: bars,
	}

	return r.render(fig, bc.Render)
}

func (r *Renderer) render(fig Figure, draw func(chart.RendererProvider, io.Writer) error) (Figure, error) {
	var buf bytes.Buffer
	if err := draw(chart.SVG, &buf); err != nil {
		return Figure{Title: fig.Title, Points: fig.Points, Last: fig.Last}, fmt.Errorf("render %s: %w", strings.ToLower(fig.Title), err)
	}
	svg := buf.String()
	// drop anything ahead of the root element so the markup can be inlined
	if i := strings.Index(svg, "<svg"); i > 0 {
		svg = svg[i:]
	}
	fig.SVG = template.HTML(svg)
	return fig, nil
}

func (r *Renderer) color(hex string) drawing.Color {
	return drawing.ColorFromHex(strings.TrimPrefix(hex, "#"))
}

func (r *Renderer) titleStyle() chart.Style {
	return chart.Style{
		FontColor: r.color(r.theme.Colors.Text),
		FontSize:  16,
	}
}

func (r *Renderer) backgroundStyle() chart.Style {
	return chart.Style{
		FillColor: r.color(r.theme.Colors.Background),
		Padding:   chart.Box{Top: 50, Left: 20, Right: 20, Bottom: 20},
	}
}

func (r *Renderer) axisStyle() chart.Style {
	return chart.Style{
		FontColor:   r.color(r.theme.Colors.Muted),
		StrokeColor: r.color(r.theme.Colors.Grid),
	}
}

func (r *Renderer) gridStyle() chart.Style {
	return chart.Style{
		StrokeColor: r.color(r.theme.Colors.Grid),
		StrokeWidth: 1,
	}
}

func commaFormatter(v any) string {
	if f, ok := v.(float64); ok {
		return humanize.Comma(int64(math.Round(f)))
	}
	return fmt.Sprintf("%v", v)
}

// niceMax leaves headroom above the largest value and never returns zero, which
// go-chart rejects as an empty range.
func niceMax(v float64) float64 {
	if v <= 0 {
		return 1
	}
	return math.Ceil(v * 1.05)
}

func maxFloat(values []float64) float64 {
	var out float64
	for _, v := range values {
		if v > out {
			out = v
		}
	}
	return out
}

func dotWidth(n int) float64 {
	if n == 1 {
		return 5
	}
	return 0
}

func barGeometry(width, bars int) (barWidth, spacing int) {
	usable := width - 120
	if usable < bars {
		usable = bars
	}
	slot := usable / bars
	spacing = slot / 5
	if spacing < 1 {
		spacing = 1
	}
	barWidth = slot - spacing
	if barWidth < 1 {
		barWidth = 1
	}
	return barWidth, spacing
}
