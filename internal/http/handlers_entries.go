package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"tutorkasse/internal/core"
)

// handleCreateEntry stores a participant submission. The entry is saved even
// when the receipt upload fails; the notification says so.
func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	sub, done, err := ParseSubmission(w, r, s.now())
	defer done()
	if err != nil {
		slog.WarnContext(r.Context(), "Invalid submission", "component", "http", "error", err)
		UnprocessableEntityError(userMessage(err)).Write(w)
		return
	}

	res, err := s.svc.Submit(r.Context(), sub)
	if err != nil {
		if isValidation(err) {
			UnprocessableEntityError(userMessage(err)).Write(w)
			return
		}
		slog.ErrorContext(r.Context(), "Submitting entry failed", "component", "http", "error", err)
		InternalServerError("Eintrag konnte nicht gespeichert werden").Write(w)
		return
	}

	msg := fmt.Sprintf("Eintrag gespeichert: %s, %s", res.Entry.Person, res.Entry.Category)
	resp := NewHTMXResponse().
		Status(http.StatusCreated).
		TriggerLedgerChanged(res.Entry.ID).
		TriggerFormReset().
		TriggerSettlementsRefresh()
	if res.ReceiptErr != nil {
		resp.TriggerWarningNotification(msg + " (ohne Beleg: " + core.NoReceipt + ")")
	} else {
		resp.TriggerSuccessNotification(msg)
	}
	resp.BodyHTML(`<div class="success">Danke! Der Eintrag wartet auf Bestätigung.</div>`).Write(w)
}
