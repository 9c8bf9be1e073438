package http

import (
	"fmt"
	"html/template"
	"strings"

	"tutorkasse/internal/core"
	"tutorkasse/internal/ledger"
)

const (
	chartWidth   = 720
	chartHeight  = 240
	chartPadding = 32
)

// renderBalanceChart draws the running balance as an inline SVG line chart.
// points must already be in chart order (by date).
func renderBalanceChart(points []ledger.BalancePoint) template.HTML {
	var b strings.Builder
	fmt.Fprintf(&b, `<svg class="chart" viewBox="0 0 %d %d" role="img" aria-label="Kassenstand">`, chartWidth, chartHeight)
	if len(points) == 0 {
		fmt.Fprintf(&b, `<text x="%d" y="%d" text-anchor="middle" class="chart-empty">Noch keine Einträge</text></svg>`,
			chartWidth/2, chartHeight/2)
		return template.HTML(b.String())
	}

	lo, hi := int64(0), int64(0)
	for _, p := range points {
		lo = min(lo, p.Balance.Cents)
		hi = max(hi, p.Balance.Cents)
	}
	if lo == hi {
		hi = lo + 100
	}

	x := func(i int) float64 {
		if len(points) == 1 {
			return chartWidth / 2
		}
		span := float64(chartWidth - 2*chartPadding)
		return chartPadding + span*float64(i)/float64(len(points)-1)
	}
	y := func(cents int64) float64 {
		span := float64(chartHeight - 2*chartPadding)
		return chartPadding + span*float64(hi-cents)/float64(hi-lo)
	}

	fmt.Fprintf(&b, `<line class="chart-zero" x1="%d" x2="%d" y1="%.1f" y2="%.1f"/>`,
		chartPadding, chartWidth-chartPadding, y(0), y(0))

	coords := make([]string, len(points))
	for i, p := range points {
		coords[i] = fmt.Sprintf("%.1f,%.1f", x(i), y(p.Balance.Cents))
	}
	fmt.Fprintf(&b, `<polyline class="chart-line" fill="none" points="%s"/>`, strings.Join(coords, " "))

	for i, p := range points {
		fmt.Fprintf(&b, `<circle class="chart-point" cx="%.1f" cy="%.1f" r="3"><title>%s: %s</title></circle>`,
			x(i), y(p.Balance.Cents),
			template.HTMLEscapeString(p.Date.Display()),
			template.HTMLEscapeString(core.FormatEuro(p.Balance)))
	}

	fmt.Fprintf(&b, `<text class="chart-label" x="4" y="%.1f">%s</text>`, y(hi)+4, template.HTMLEscapeString(core.FormatEuro(core.Money{Cents: hi})))
	fmt.Fprintf(&b, `<text class="chart-label" x="4" y="%.1f">%s</text>`, y(lo)+4, template.HTMLEscapeString(core.FormatEuro(core.Money{Cents: lo})))
	b.WriteString(`</svg>`)
	return template.HTML(b.String())
}
