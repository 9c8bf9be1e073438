package http

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tutorkasse/internal/auth"
	"tutorkasse/internal/core"
	"tutorkasse/internal/export"
)

type loginData struct {
	Error string
}

// requireAdminEnabled hides the admin area when no password is configured.
func (s *Server) requireAdminEnabled(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.auth == nil || !s.auth.Enabled() {
			NotFoundError("Admin-Bereich ist nicht aktiviert").Write(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAdmin rejects requests without a valid session cookie. Page loads
// are redirected to the login form.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.isAdmin(r) {
			next.ServeHTTP(w, r)
			return
		}
		if r.Method == http.MethodGet && r.Header.Get("HX-Request") == "" && (r.URL.Path == "/admin" || r.URL.Path == "/admin/") {
			http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
			return
		}
		UnauthorizedError("Anmeldung erforderlich").Write(w)
	})
}

func (s *Server) isAdmin(r *http.Request) bool {
	if s.auth == nil || !s.auth.Enabled() {
		return false
	}
	c, err := r.Cookie(auth.CookieName)
	if err != nil {
		return false
	}
	_, err = s.auth.ParseToken(c.Value)
	return err == nil
}

func secureRequest(r *http.Request) bool {
	return r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if s.isAdmin(r) {
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "login.html", loginData{})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	clientIP := s.detector.ExtractClientIP(r)
	if err := s.auth.CheckPassword(r.PostForm.Get("password")); err != nil {
		slog.WarnContext(r.Context(), "Admin login failed", "component", "auth", "client_ip", clientIP, "error", err)
		data := loginData{Error: "Falsches Passwort"}
		status := http.StatusUnauthorized
		if errors.Is(err, auth.ErrLocked) {
			data.Error = "Zu viele Fehlversuche, bitte später erneut versuchen"
			status = http.StatusTooManyRequests
		}
		s.render(w, r, status, "login.html", data)
		return
	}

	token, expires, err := s.auth.IssueToken()
	if err != nil {
		slog.ErrorContext(r.Context(), "Issuing session failed", "component", "auth", "error", err)
		InternalServerError("Anmeldung fehlgeschlagen").Write(w)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   secureRequest(r),
		SameSite: http.SameSiteStrictMode,
	})
	slog.InfoContext(r.Context(), "Admin logged in", "component", "auth", "client_ip", clientIP)
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secureRequest(r),
		SameSite: http.SameSiteStrictMode,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleAdmin renders the status editor.
func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	ov := s.svc.Overview(r.Context())
	s.render(w, r, http.StatusOK, "admin.html", s.buildPage(ov, s.now(), true))
}

// handleEntriesJSON returns the ledger for the bulk editor.
func (s *Server) handleEntriesJSON(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.Snapshot(r.Context(), true)
	if err != nil {
		slog.ErrorContext(r.Context(), "Reading ledger failed", "component", "http", "error", err)
		writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{"error": "ledger unavailable"})
		return
	}
	out := make([]entryJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryJSON(e))
	}
	writeJSON(w, r, http.StatusOK, out)
}

// handleReplaceEntries overwrites the ledger with the posted JSON array.
func (s *Server) handleReplaceEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := DecodeBulkEntries(r.Body)
	if err != nil {
		status := http.StatusBadRequest
		if isValidation(err) {
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, r, status, map[string]string{"error": err.Error()})
		return
	}
	if err := s.svc.ReplaceAll(r.Context(), entries); err != nil {
		if isValidation(err) {
			writeJSON(w, r, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
			return
		}
		slog.ErrorContext(r.Context(), "Bulk replace failed", "component", "http", "error", err)
		writeJSON(w, r, http.StatusInternalServerError, map[string]string{"error": "write failed"})
		return
	}
	w.Header().Set("HX-Trigger", `{"ledger:changed":{}}`)
	writeJSON(w, r, http.StatusOK, map[string]int{"entries": len(entries)})
}

// handleUpdateEntry applies an administrator edit to one entry.
func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	patch, err := ParsePatch(NewRequestBodyParser(r))
	if err != nil {
		UnprocessableEntityError(userMessage(err)).Write(w)
		return
	}

	updated, err := s.svc.UpdateEntry(r.Context(), id, patch)
	switch {
	case errors.Is(err, core.ErrEntryNotFound):
		NotFoundError(userMessage(err)).Write(w)
		return
	case err != nil && isValidation(err):
		UnprocessableEntityError(userMessage(err)).Write(w)
		return
	case err != nil:
		slog.ErrorContext(r.Context(), "Updating entry failed", "component", "http", "entry_id", id, "error", err)
		InternalServerError("Eintrag konnte nicht gespeichert werden").Write(w)
		return
	}

	NewHTMXResponse().
		TriggerLedgerChanged(updated.ID).
		TriggerSettlementsRefresh().
		TriggerSuccessNotification("Gespeichert").
		Write(w)
}

// handleSettleAll marks every entry reimbursed and handed over.
func (s *Server) handleSettleAll(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.SettleAll(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Settle all failed", "component", "http", "error", err)
		InternalServerError("Abrechnung fehlgeschlagen").Write(w)
		return
	}
	if r.Header.Get("HX-Request") == "" {
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}
	NewHTMXResponse().
		TriggerLedgerChanged("").
		TriggerSettlementsRefresh().
		TriggerSuccessNotification(fmt.Sprintf("%d Einträge abgerechnet", n)).
		Write(w)
}

// handleExport downloads the ledger with running balance.
func (s *Server) handleExport(format export.Format) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := s.svc.Snapshot(r.Context(), true)
		if err != nil {
			slog.ErrorContext(r.Context(), "Reading ledger for export failed", "component", "http", "error", err)
			InternalServerError("Kasse konnte nicht gelesen werden").Write(w)
			return
		}
		var buf bytes.Buffer
		if err := export.Write(&buf, format, entries); err != nil {
			slog.ErrorContext(r.Context(), "Export failed", "component", "http", "format", format, "error", err)
			InternalServerError("Export fehlgeschlagen").Write(w)
			return
		}
		w.Header().Set("Content-Type", format.ContentType())
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, format.Filename(s.now())))
		_, _ = w.Write(buf.Bytes())
	}
}
