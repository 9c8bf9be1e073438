package http

import (
	"html/template"
	"time"

	"tutorkasse/internal/core"
	"tutorkasse/internal/ledger"
	"tutorkasse/internal/services"
)

// rowView is one table row with its running balance and colour tone.
type rowView struct {
	core.Entry
	Position int
	Balance  core.Money
	Tone     core.Tone
	Counted  bool
}

type pageData struct {
	Today        string
	Roster       []string
	Categories   []string
	Rows         []rowView
	Settlements  []ledger.Settlement
	Totals       ledger.Totals
	Chart        template.HTML
	Degraded     bool
	LoadError    string
	AdminEnabled bool
	IsAdmin      bool
}

func (s *Server) buildPage(ov services.Overview, now time.Time, isAdmin bool) pageData {
	tax := s.svc.Taxonomy()
	rows := make([]rowView, len(ov.Entries))
	for i, e := range ov.Entries {
		rows[i] = rowView{
			Entry:    e,
			Position: i + 1,
			Balance:  ov.Balance[i].Balance,
			Tone:     tax.Tone(e),
			Counted:  ledger.Counts(e),
		}
	}
	return pageData{
		Today:        core.DateOf(now).String(),
		Roster:       tax.Roster(),
		Categories:   tax.Categories(),
		Rows:         rows,
		Settlements:  ov.Settlements,
		Totals:       ov.Totals,
		Chart:        renderBalanceChart(ov.Chart),
		Degraded:     ov.Degraded,
		LoadError:    ov.LoadError,
		AdminEnabled: s.auth != nil && s.auth.Enabled(),
		IsAdmin:      isAdmin,
	}
}

var templateFuncs = template.FuncMap{
	"euro": core.FormatEuro,
	"amount": func(m core.Money) string {
		if m.IsZero() {
			return ""
		}
		return core.FormatEuro(m)
	},
	"decimal": core.FormatDecimal,
	"abs":     func(m core.Money) core.Money { return m.Abs() },
	"check": func(b bool) string {
		if b {
			return "✓"
		}
		return "–"
	},
	"receipt": func(e core.Entry) string {
		if e.HasReceipt() {
			return e.Receipt
		}
		return ""
	},
	"noReceipt": func() string { return core.NoReceipt },
}
