package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"tutorkasse/internal/core"
	"tutorkasse/internal/receipts"
)

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(r.Context(), "JSON encoding failed", "component", "http", "error", err, "url", r.URL.Path)
	}
}

// userMessage maps validation and input errors to the German text shown in
// the form. Unknown errors get a generic message.
func userMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrMissingDate):
		return "Bitte ein gültiges Datum angeben"
	case errors.Is(err, core.ErrEmptyPerson), errors.Is(err, core.ErrUnknownPerson):
		return "Bitte einen Tutor aus der Liste wählen"
	case errors.Is(err, core.ErrUnknownCategory):
		return "Bitte ein Event aus der Liste wählen"
	case errors.Is(err, core.ErrNegativeAmount):
		return "Beträge dürfen nicht negativ sein"
	case errors.Is(err, core.ErrInvalidAmount):
		return "Ungültiger Betrag"
	case errors.Is(err, core.ErrNoteTooLong):
		return "Notiz ist zu lang"
	case errors.Is(err, core.ErrEntryNotFound):
		return "Eintrag nicht gefunden"
	case errors.Is(err, receipts.ErrUnsupportedType):
		return "Beleg muss ein Bild sein (png, jpg)"
	case errors.Is(err, receipts.ErrTooLarge):
		return "Beleg ist zu groß"
	case errors.Is(err, errMalformedInput):
		return "Ungültiges Anfrageformat"
	default:
		return "Unerwarteter Fehler, bitte erneut versuchen"
	}
}

// isValidation reports whether err is caused by the caller's input.
func isValidation(err error) bool {
	for _, target := range []error{
		core.ErrMissingDate, core.ErrEmptyPerson, core.ErrUnknownPerson,
		core.ErrUnknownCategory, core.ErrNegativeAmount, core.ErrInvalidAmount,
		core.ErrNoteTooLong, receipts.ErrUnsupportedType, receipts.ErrTooLarge,
		errMalformedInput,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
