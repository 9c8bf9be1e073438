package http

import (
	"strings"
	"testing"

	"tutorkasse/internal/core"
	"tutorkasse/internal/ledger"
)

func TestRenderBalanceChart(t *testing.T) {
	t.Run("empty ledger", func(t *testing.T) {
		got := string(renderBalanceChart(nil))
		if !strings.Contains(got, "Noch keine Einträge") {
			t.Errorf("empty chart = %s", got)
		}
		if strings.Contains(got, "<polyline") {
			t.Error("empty chart must not draw a line")
		}
	})

	t.Run("series", func(t *testing.T) {
		points := []ledger.BalancePoint{
			{Date: core.NewDate(2024, 1, 1), Balance: core.Money{Cents: -2000}},
			{Date: core.NewDate(2024, 1, 2), Balance: core.Money{Cents: 3000}},
			{Date: core.NewDate(2024, 1, 3), Balance: core.Money{Cents: 3000}},
		}
		got := string(renderBalanceChart(points))
		if n := strings.Count(got, "<circle"); n != 3 {
			t.Errorf("points drawn = %d, want 3", n)
		}
		for _, want := range []string{"<polyline", "chart-zero", "02.01.2024", "30,00 €", "-20,00 €"} {
			if !strings.Contains(got, want) {
				t.Errorf("chart missing %q", want)
			}
		}
	})

	t.Run("single point", func(t *testing.T) {
		got := string(renderBalanceChart([]ledger.BalancePoint{{Balance: core.Money{Cents: 100}}}))
		if strings.Count(got, "<circle") != 1 {
			t.Errorf("single point chart = %s", got)
		}
	})
}
