// Package ledger derives balances and settlements from a snapshot of entries.
//
// Every function is pure: inputs are never mutated and results depend only on
// the entries passed in. Load order is the ledger order; sorting for display
// happens on derived values only.
package ledger

import (
	"cmp"
	"slices"

	"tutorkasse/internal/core"
)

// Counts reports whether an entry contributes to the cash position and to
// settlements. Running balance and settlement both go through this predicate.
func Counts(e core.Entry) bool {
	return e.Confirmed
}

// CountedNet is the entry's net if it counts, zero otherwise.
func CountedNet(e core.Entry) core.Money {
	if !Counts(e) {
		return core.Money{}
	}
	return e.Net()
}

// BalancePoint is the cash position after the entry at Position.
type BalancePoint struct {
	Position int
	EntryID  string
	Date     core.Date
	Balance  core.Money
}

// RunningBalance returns the cumulative counted net in input order, one point
// per entry. Unconfirmed entries repeat the previous balance.
func RunningBalance(entries []core.Entry) []BalancePoint {
	points := make([]BalancePoint, 0, len(entries))
	var balance core.Money
	for i, e := range entries {
		balance = balance.Add(CountedNet(e))
		points = append(points, BalancePoint{
			Position: i,
			EntryID:  e.ID,
			Date:     e.Date,
			Balance:  balance,
		})
	}
	return points
}

// ChartSeries returns a copy of points ordered by date for plotting. Points
// without a date go last. Balances are not recomputed.
func ChartSeries(points []BalancePoint) []BalancePoint {
	out := slices.Clone(points)
	slices.SortStableFunc(out, func(a, b BalancePoint) int {
		switch {
		case a.Date.IsZero() && b.Date.IsZero():
			return 0
		case a.Date.IsZero():
			return 1
		case b.Date.IsZero():
			return -1
		}
		return a.Date.Compare(b.Date.Time)
	})
	return out
}

// ApplyBulkSettlement returns a copy of entries with Reimbursed and
// SurplusHandedOver set on every entry. Confirmed is left as it is.
func ApplyBulkSettlement(entries []core.Entry) []core.Entry {
	out := slices.Clone(entries)
	for i := range out {
		out[i].Reimbursed = true
		out[i].SurplusHandedOver = true
	}
	return out
}

// CategoryTotal is the counted cost and income of one category.
type CategoryTotal struct {
	Category string
	Cost     core.Money
	Income   core.Money
}

// Totals summarises a snapshot.
type Totals struct {
	Entries     int
	Confirmed   int
	Unconfirmed int
	Cost        core.Money // confirmed only
	Income      core.Money // confirmed only
	Balance     core.Money
	ByCategory  []CategoryTotal
}

// Summarize computes the totals of a snapshot. Categories are sorted by name.
func Summarize(entries []core.Entry) Totals {
	t := Totals{Entries: len(entries)}
	byCat := map[string]*CategoryTotal{}
	for _, e := range entries {
		if !Counts(e) {
			t.Unconfirmed++
			continue
		}
		t.Confirmed++
		t.Cost = t.Cost.Add(e.Cost)
		t.Income = t.Income.Add(e.Income)
		ct, ok := byCat[e.Category]
		if !ok {
			ct = &CategoryTotal{Category: e.Category}
			byCat[e.Category] = ct
		}
		ct.Cost = ct.Cost.Add(e.Cost)
		ct.Income = ct.Income.Add(e.Income)
	}
	t.Balance = t.Income.Sub(t.Cost)
	for _, ct := range byCat {
		t.ByCategory = append(t.ByCategory, *ct)
	}
	slices.SortFunc(t.ByCategory, func(a, b CategoryTotal) int {
		return cmp.Compare(a.Category, b.Category)
	})
	return t
}
