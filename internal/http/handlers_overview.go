package http

import (
	"net/http"

	"tutorkasse/internal/ledger"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ov := s.svc.Overview(r.Context())
	s.render(w, r, http.StatusOK, "index.html", s.buildPage(ov, s.now(), s.isAdmin(r)))
}

// handleSettlementsPartial renders the open settlements fragment polled by
// the overview page.
func (s *Server) handleSettlementsPartial(w http.ResponseWriter, r *http.Request) {
	ov := s.svc.Overview(r.Context())
	s.render(w, r, http.StatusOK, "settlements.html", s.buildPage(ov, s.now(), false))
}

// handleBalanceJSON returns the chart series of the running balance.
func (s *Server) handleBalanceJSON(w http.ResponseWriter, r *http.Request) {
	ov := s.svc.Overview(r.Context())
	writeJSON(w, r, http.StatusOK, map[string]any{
		"balance":  toDecimal(ov.Totals.Balance),
		"points":   toBalanceJSON(ov.Chart),
		"degraded": ov.Degraded,
	})
}

// handleSettlementsJSON returns the open settlements, or every person's
// settlement with ?all=1.
func (s *Server) handleSettlementsJSON(w http.ResponseWriter, r *http.Request) {
	ov := s.svc.Overview(r.Context())
	settlements := ov.Settlements
	if r.URL.Query().Get("all") != "" {
		settlements = ledger.Settlements(ov.Entries)
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"settlements": toSettlementsJSON(settlements),
		"degraded":    ov.Degraded,
	})
}
