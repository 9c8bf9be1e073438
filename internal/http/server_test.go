package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"tutorkasse/internal/auth"
	"tutorkasse/internal/core"
	"tutorkasse/internal/middleware/ratelimit"
	"tutorkasse/internal/services"
	"tutorkasse/internal/sheets/memory"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func seedEntries() []core.Entry {
	return []core.Entry{
		{ID: "e1", Date: core.NewDate(2024, 5, 2), Person: "Sami", Category: "Kochabend",
			Cost: core.Money{Cents: 2000}, Flags: core.Flags{Confirmed: true}},
		{ID: "e2", Date: core.NewDate(2024, 5, 3), Person: "Lucas", Category: "Getränkeverkauf",
			Income: core.Money{Cents: 5000}, Flags: core.Flags{Confirmed: true}},
		{ID: "e3", Date: core.NewDate(2024, 5, 4), Person: "Sami", Category: "Backtag",
			Cost: core.Money{Cents: 700}},
	}
}

type testServer struct {
	srv   *Server
	store *memory.Store
}

func newTestServer(t *testing.T, opts Options) testServer {
	t.Helper()
	store := memory.New(seedEntries()...)
	svc := services.NewLedgerService(store, core.NewTaxonomy(nil, nil, nil), services.Options{CacheTTL: 0})
	if opts.Now == nil {
		opts.Now = func() time.Time { return testNow }
	}
	srv := NewServer(":0", svc, opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return testServer{srv: srv, store: store}
}

func (ts testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	ts.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func (ts testServer) entries(t *testing.T) []core.Entry {
	t.Helper()
	entries, err := ts.store.ReadAll(context.Background())
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	return entries
}

func withAuth() Options {
	return Options{Auth: auth.New(auth.Config{Password: "geheim", Secret: "0123456789abcdef0123"})}
}

func login(t *testing.T, ts testServer) *http.Cookie {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader("password=geheim"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := ts.do(req)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("login status=%d body=%s", rr.Code, rr.Body.String())
	}
	for _, c := range rr.Result().Cookies() {
		if c.Name == auth.CookieName && c.Value != "" {
			return c
		}
	}
	t.Fatalf("login did not set session cookie")
	return nil
}

func TestIndexAndHealth(t *testing.T) {
	ts := newTestServer(t, Options{})

	rr := ts.do(httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d body=%s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	for _, want := range []string{"Neuer Eintrag", "Kochabend", "<svg", "Offene Abrechnungen", core.NoReceipt} {
		if !strings.Contains(body, want) {
			t.Errorf("index body missing %q", want)
		}
	}
	if rr.Header().Get("Content-Security-Policy") == "" {
		t.Error("security headers not applied")
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("request id header not set")
	}

	for _, path := range []string{"/healthz", "/readyz", "/static/style.css"} {
		rr := ts.do(httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestReadyzReportsStoreFailure(t *testing.T) {
	ts := newTestServer(t, Options{Ready: func(context.Context) error { return errors.New("sheet unreachable") }})

	rr := ts.do(httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status=%d, want 503", rr.Code)
	}
}

func TestCreateEntryValidationAndSuccess(t *testing.T) {
	ts := newTestServer(t, Options{})

	post := func(form url.Values) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/entries", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return ts.do(req)
	}

	rr := post(url.Values{"person": {"Niemand"}, "category": {"Kochabend"}, "cost": {"5"}})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unknown person status=%d, want 422", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Tutor") {
		t.Errorf("unexpected error body: %s", rr.Body.String())
	}

	rr = post(url.Values{"person": {"Sami"}, "category": {"Kochabend"}, "cost": {"abc"}})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid amount status=%d, want 422", rr.Code)
	}

	rr = post(url.Values{"date": {"2024-06-10"}, "person": {"Sun"}, "category": {"Backtag"}, "cost": {"3,20"}, "income": {"12,00"}})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	trigger := rr.Header().Get("HX-Trigger")
	for _, want := range []string{"ledger:changed", "form:reset", `"type":"success"`} {
		if !strings.Contains(trigger, want) {
			t.Errorf("HX-Trigger missing %q: %s", want, trigger)
		}
	}

	entries := ts.entries(t)
	if len(entries) != 4 {
		t.Fatalf("ledger size=%d, want 4", len(entries))
	}
	last := entries[3]
	if last.Person != "Sun" || last.Cost.Cents != 320 || last.Income.Cents != 1200 {
		t.Errorf("stored entry = %+v", last)
	}
	if last.Confirmed || last.Reimbursed || last.SurplusHandedOver {
		t.Errorf("new entry must start with all flags cleared: %+v", last.Flags)
	}
	if last.ID == "" {
		t.Error("new entry has no id")
	}
}

func TestSettlementsAndBalanceJSON(t *testing.T) {
	ts := newTestServer(t, Options{})

	rr := ts.do(httptest.NewRequest(http.MethodGet, "/api/settlements", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("settlements status=%d", rr.Code)
	}
	var got struct {
		Settlements []struct {
			Person string `json:"person"`
			Net    string `json:"net"`
			Status string `json:"status"`
		} `json:"settlements"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Settlements) != 2 {
		t.Fatalf("settlements=%+v, want 2", got.Settlements)
	}
	// sorted by person: Lucas owes the income, Sami gets the confirmed cost back
	if got.Settlements[0].Person != "Lucas" || got.Settlements[0].Net != "-50" || got.Settlements[0].Status != "pays" {
		t.Errorf("Lucas settlement = %+v", got.Settlements[0])
	}
	if got.Settlements[1].Person != "Sami" || got.Settlements[1].Net != "20" || got.Settlements[1].Status != "receives" {
		t.Errorf("Sami settlement = %+v", got.Settlements[1])
	}

	rr = ts.do(httptest.NewRequest(http.MethodGet, "/api/balance", nil))
	var bal struct {
		Balance string `json:"balance"`
		Points  []struct {
			Balance string `json:"balance"`
		} `json:"points"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &bal); err != nil {
		t.Fatalf("decode balance: %v", err)
	}
	if bal.Balance != "30" {
		t.Errorf("balance=%s, want 30", bal.Balance)
	}
	if len(bal.Points) != 3 || bal.Points[2].Balance != "30" {
		t.Errorf("points=%+v", bal.Points)
	}

	rr = ts.do(httptest.NewRequest(http.MethodGet, "/ui/settlements", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Lucas") {
		t.Errorf("settlements partial status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestAdminDisabledWithoutPassword(t *testing.T) {
	ts := newTestServer(t, Options{})

	rr := ts.do(httptest.NewRequest(http.MethodGet, "/admin/login", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("admin login status=%d, want 404", rr.Code)
	}
}

func TestAdminRequiresSession(t *testing.T) {
	ts := newTestServer(t, withAuth())

	rr := ts.do(httptest.NewRequest(http.MethodGet, "/admin", nil))
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/admin/login" {
		t.Fatalf("admin page status=%d location=%q", rr.Code, rr.Header().Get("Location"))
	}

	rr = ts.do(httptest.NewRequest(http.MethodPost, "/admin/settle-all", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("settle-all status=%d, want 401", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/export.csv", nil)
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: "forged"})
	if rr := ts.do(req); rr.Code != http.StatusUnauthorized {
		t.Fatalf("forged cookie status=%d, want 401", rr.Code)
	}
}

func TestAdminLoginWrongPassword(t *testing.T) {
	ts := newTestServer(t, withAuth())

	req := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader("password=falsch"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := ts.do(req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d, want 401", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Falsches Passwort") {
		t.Errorf("login page missing error: %s", rr.Body.String())
	}
	if len(rr.Result().Cookies()) != 0 {
		t.Error("failed login must not set a cookie")
	}
}

func TestAdminSettleAll(t *testing.T) {
	ts := newTestServer(t, withAuth())
	cookie := login(t, ts)

	rr := ts.do(func() *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/admin", nil)
		r.AddCookie(cookie)
		return r
	}())
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Alles abrechnen") {
		t.Fatalf("admin page status=%d", rr.Code)
	}
	if rr.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("admin page Cache-Control=%q", rr.Header().Get("Cache-Control"))
	}

	req := httptest.NewRequest(http.MethodPost, "/admin/settle-all", nil)
	req.Header.Set("HX-Request", "true")
	req.AddCookie(cookie)
	rr = ts.do(req)
	if rr.Code != http.StatusOK {
		t.Fatalf("settle-all status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "3 Einträge abgerechnet") {
		t.Errorf("HX-Trigger=%s", rr.Header().Get("HX-Trigger"))
	}

	for _, e := range ts.entries(t) {
		if !e.Reimbursed || !e.SurplusHandedOver {
			t.Errorf("entry %s not settled: %+v", e.ID, e.Flags)
		}
	}
	// confirmed stays as it was
	if ts.entries(t)[2].Confirmed {
		t.Error("settle-all must not confirm entries")
	}
}

func TestAdminUpdateEntry(t *testing.T) {
	ts := newTestServer(t, withAuth())
	cookie := login(t, ts)

	post := func(id, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/admin/entries/"+id, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.AddCookie(cookie)
		return ts.do(req)
	}

	rr := post("e3", "row_form=1&confirmed=true&reimbursed=true")
	if rr.Code != http.StatusOK {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body.String())
	}
	e3 := ts.entries(t)[2]
	if !e3.Confirmed || !e3.Reimbursed || e3.SurplusHandedOver {
		t.Errorf("flags after update = %+v", e3.Flags)
	}

	rr = post("missing", "confirmed=true")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown id status=%d, want 404", rr.Code)
	}

	rr = post("e1", "cost=-1")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("negative cost status=%d, want 422", rr.Code)
	}
}

func TestAdminReplaceEntries(t *testing.T) {
	ts := newTestServer(t, withAuth())
	cookie := login(t, ts)

	body := `[{"id": "e1", "date": "2024-05-02", "person": "Sami", "category": "Kochabend", "cost": "20", "confirmed": true},
		{"date": "2024-05-09", "person": "Gast", "category": "Sonstiges", "income": 4.5}]`
	req := httptest.NewRequest(http.MethodPut, "/admin/entries", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(cookie)
	rr := ts.do(req)
	if rr.Code != http.StatusOK {
		t.Fatalf("replace status=%d body=%s", rr.Code, rr.Body.String())
	}

	entries := ts.entries(t)
	if len(entries) != 2 {
		t.Fatalf("ledger size=%d, want 2", len(entries))
	}
	if entries[1].Person != "Gast" || entries[1].Income.Cents != 450 || entries[1].ID == "" {
		t.Errorf("inserted row = %+v", entries[1])
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/entries", nil)
	req.AddCookie(cookie)
	rr = ts.do(req)
	var rows []map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &rows); err != nil {
		t.Fatalf("decode entries: %v", err)
	}
	if len(rows) != 2 || rows[0]["id"] != "e1" {
		t.Errorf("entries json = %v", rows)
	}
}

func TestAdminExport(t *testing.T) {
	ts := newTestServer(t, withAuth())
	cookie := login(t, ts)

	tests := []struct {
		path        string
		contentType string
		filename    string
	}{
		{"/admin/export.csv", "text/csv; charset=utf-8", "tutorkasse_20240615.csv"},
		{"/admin/export.xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "tutorkasse_20240615.xlsx"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req.AddCookie(cookie)
			rr := ts.do(req)
			if rr.Code != http.StatusOK {
				t.Fatalf("status=%d", rr.Code)
			}
			if got := rr.Header().Get("Content-Type"); got != tt.contentType {
				t.Errorf("Content-Type=%q, want %q", got, tt.contentType)
			}
			if got := rr.Header().Get("Content-Disposition"); !strings.Contains(got, tt.filename) {
				t.Errorf("Content-Disposition=%q, want %q", got, tt.filename)
			}
			if rr.Body.Len() == 0 {
				t.Error("empty export")
			}
		})
	}
}

func TestRateLimitOnSubmissions(t *testing.T) {
	ts := newTestServer(t, Options{RateLimit: &ratelimit.Config{
		RequestsPerWindow: 1,
		Window:            time.Hour,
		Methods:           []string{http.MethodPost},
	}})

	post := func() *httptest.ResponseRecorder {
		form := url.Values{"person": {"Sami"}, "category": {"Backtag"}, "cost": {"1"}}
		req := httptest.NewRequest(http.MethodPost, "/entries", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return ts.do(req)
	}

	if rr := post(); rr.Code != http.StatusCreated {
		t.Fatalf("first post status=%d", rr.Code)
	}
	rr := post()
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second post status=%d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("Retry-After not set")
	}

	if rr := ts.do(httptest.NewRequest(http.MethodGet, "/", nil)); rr.Code != http.StatusOK {
		t.Errorf("GET must not be limited, status=%d", rr.Code)
	}
}
