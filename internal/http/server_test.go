package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"gastos/internal/services"
	"gastos/internal/storage"
)

func newTestServer(t *testing.T) (*Server, *storage.SQLiteRepository) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "gastos.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	svc := services.NewExpenseService(repo, nil)
	s := NewServer(":0", svc)
	t.Cleanup(func() { s.rateLimiter.stop() })
	return s, repo
}

func postForm(t *testing.T, s *Server, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func createViaForm(t *testing.T, s *Server, desc, amount, payment, category, date string) {
	t.Helper()
	rec := postForm(t, s, "/expenses", url.Values{
		"description":    {desc},
		"amount":         {amount},
		"payment_method": {payment},
		"category":       {category},
		"date":           {date},
	})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("create returned %d: %s", rec.Code, rec.Body.String())
	}
}

func TestDashboardRenders(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Total spent") {
		t.Fatalf("dashboard missing summary section: %s", body)
	}
	if !strings.Contains(body, "Avg daily expense") {
		t.Fatalf("dashboard missing avg daily expense card")
	}
	if !strings.Contains(body, "No expenses recorded yet") {
		t.Fatalf("empty dashboard should show placeholder")
	}
}

func TestDashboardUnknownPathIs404(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	for _, h := range []string{"X-Content-Type-Options", "X-Frame-Options", "Content-Security-Policy", "Referrer-Policy"} {
		if rec.Header().Get(h) == "" {
			t.Errorf("missing security header %s", h)
		}
	}
}

func TestCreateExpense(t *testing.T) {
	s, repo := newTestServer(t)

	rec := postForm(t, s, "/expenses", url.Values{
		"description":    {"Groceries"},
		"amount":         {"250.50"},
		"payment_method": {"Cash"},
		"category":       {"Food"},
		"date":           {"2025-06-10"},
	})
	// A successful plain-form submit lands back on the dashboard.
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d: %s", rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); loc != "/" {
		t.Fatalf("expected redirect to /, got %q", loc)
	}
	if !strings.Contains(rec.Header().Get("HX-Trigger"), "expense:created") {
		t.Fatalf("missing HX-Trigger header, got %q", rec.Header().Get("HX-Trigger"))
	}

	items, err := repo.ListAll(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || items[0].Description != "Groceries" || items[0].Amount != 250.50 {
		t.Fatalf("unexpected stored expense: %+v", items)
	}
}

func TestCreateExpenseRejectsInvalid(t *testing.T) {
	s, repo := newTestServer(t)

	cases := []struct {
		name string
		form url.Values
	}{
		{"empty description", url.Values{
			"description": {"   "}, "amount": {"10"}, "payment_method": {"Cash"}, "category": {"Food"},
		}},
		{"non-numeric amount", url.Values{
			"description": {"x"}, "amount": {"abc"}, "payment_method": {"Cash"}, "category": {"Food"},
		}},
		{"missing category", url.Values{
			"description": {"x"}, "amount": {"10"}, "payment_method": {"Cash"},
		}},
		{"missing date", url.Values{
			"description": {"x"}, "amount": {"10"}, "payment_method": {"Cash"}, "category": {"Food"},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postForm(t, s, "/expenses", tc.form)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("expected 422, got %d", rec.Code)
			}
			// The form page comes back with the error inline, not a
			// bare fragment.
			body := rec.Body.String()
			if !strings.Contains(body, "<form") || !strings.Contains(body, `class="error"`) {
				t.Fatalf("expected re-rendered form with inline error, got: %s", body)
			}
		})
	}

	items, err := repo.ListAll(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("rejected submissions must not be stored, got %d", len(items))
	}
}

func TestCreateExpenseRejectionKeepsInput(t *testing.T) {
	s, _ := newTestServer(t)

	rec := postForm(t, s, "/expenses", url.Values{
		"description":    {"Groceries"},
		"amount":         {"not a number"},
		"payment_method": {"Cash"},
		"category":       {"Food"},
		"date":           {"2025-06-10"},
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, v := range []string{`value="Groceries"`, `value="Cash"`, `value="Food"`, `value="2025-06-10"`} {
		if !strings.Contains(body, v) {
			t.Errorf("re-rendered form lost submitted value %s", v)
		}
	}
}

func TestCreateExpenseMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/expenses", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestDashboardCharts(t *testing.T) {
	s, _ := newTestServer(t)
	createViaForm(t, s, "Groceries", "100", "Cash", "Food", "2025-06-10")
	createViaForm(t, s, "Bus fare", "50", "Card", "Transport", "2025-06-11")

	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard/charts", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var data struct {
		CategoryLabels []string  `json:"category_labels"`
		CategoryValues []float64 `json:"category_values"`
		PaymentLabels  []string  `json:"payment_labels"`
		PaymentValues  []float64 `json:"payment_values"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &data); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(data.CategoryLabels) != 2 || len(data.PaymentLabels) != 2 {
		t.Fatalf("expected 2 categories and 2 payment methods, got %+v", data)
	}
}

func TestEditExpenseLenientUpdate(t *testing.T) {
	s, repo := newTestServer(t)
	createViaForm(t, s, "Groceries", "100", "Cash", "Food", "2025-06-10")

	items, _ := repo.ListAll(context.Background())
	id := items[0].ID

	// Invalid amount is skipped, the new description still applies.
	rec := postForm(t, s, "/edit/"+itoa(id), url.Values{
		"description": {"Weekly groceries"},
		"amount":      {"not a number"},
	})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d: %s", rec.Code, rec.Body.String())
	}

	got, err := repo.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Description != "Weekly groceries" {
		t.Errorf("description not updated: %q", got.Description)
	}
	if got.Amount != 100 {
		t.Errorf("invalid amount must be skipped, got %v", got.Amount)
	}
}

func TestEditExpenseForm(t *testing.T) {
	s, repo := newTestServer(t)
	createViaForm(t, s, "Groceries", "100", "Cash", "Food", "2025-06-10")

	items, _ := repo.ListAll(context.Background())
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/edit/"+itoa(items[0].ID), nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Groceries") {
		t.Fatalf("edit form missing current values")
	}
}

func TestEditExpenseNotFound(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/edit/9999", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	rec = postForm(t, s, "/edit/9999", url.Values{"description": {"x"}})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on update, got %d", rec.Code)
	}
}

func TestDeleteExpense(t *testing.T) {
	s, repo := newTestServer(t)
	createViaForm(t, s, "Groceries", "100", "Cash", "Food", "2025-06-10")

	items, _ := repo.ListAll(context.Background())
	id := items[0].ID

	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/delete/"+itoa(id), nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("HX-Trigger"), "expense:deleted") {
		t.Fatalf("missing HX-Trigger header")
	}

	if _, err := repo.GetByID(context.Background(), id); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestDeleteExpenseNotFound(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/delete/9999", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		s.Server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s returned %d", path, rec.Code)
		}
	}
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter()
	defer rl.stop()

	for i := 0; i < 60; i++ {
		if !rl.allow("1.2.3.4") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.allow("1.2.3.4") {
		t.Fatalf("request 61 should be rejected")
	}
	if !rl.allow("5.6.7.8") {
		t.Fatalf("other clients must not be affected")
	}
}

func TestSanitizeInput(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"  hello  ", "hello"},
		{"a\x00b\x07c", "abc"},
		{"tab\tok", "tab\tok"},
	}
	for _, tc := range cases {
		if got := sanitizeInput(tc.in); got != tc.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
