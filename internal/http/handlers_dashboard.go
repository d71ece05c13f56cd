package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"gastos/internal/core"
)

// handleDashboard renders the main dashboard page with the full
// expense summary computed over every stored record.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/dashboard" {
		http.NotFound(w, r)
		return
	}

	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded")
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	expenses, err := s.svc.ListExpenses(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to list expenses", "error", err)
		http.Error(w, "failed to load expenses", http.StatusInternalServerError)
		return
	}

	stats := core.Compute(expenses, time.Now())

	type expenseRow struct {
		ID            int64
		Date          string
		Description   string
		Amount        string
		PaymentMethod string
		Category      string
	}
	rows := make([]expenseRow, 0, len(stats.Expenses))
	for _, e := range stats.Expenses {
		rows = append(rows, expenseRow{
			ID:            e.ID,
			Date:          e.Date.Format(core.DateLayout),
			Description:   e.Description,
			Amount:        core.FormatAmount(e.Amount),
			PaymentMethod: e.PaymentMethod,
			Category:      e.Category,
		})
	}

	data := struct {
		Stats    core.Stats
		Expenses []expenseRow
	}{
		Stats:    stats,
		Expenses: rows,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "dashboard.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Dashboard template execution failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleDashboardCharts returns the category and payment-method
// breakdowns as JSON for Chart.js.
func (s *Server) handleDashboardCharts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	expenses, err := s.svc.ListExpenses(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to list expenses", "error", err)
		http.Error(w, "failed to load expenses", http.StatusInternalServerError)
		return
	}

	stats := core.Compute(expenses, time.Now())

	data := struct {
		CategoryLabels []string  `json:"category_labels"`
		CategoryValues []float64 `json:"category_values"`
		PaymentLabels  []string  `json:"payment_labels"`
		PaymentValues  []float64 `json:"payment_values"`
	}{
		CategoryLabels: stats.CategoryLabels,
		CategoryValues: stats.CategoryValues,
		PaymentLabels:  stats.PaymentLabels,
		PaymentValues:  stats.PaymentValues,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.ErrorContext(r.Context(), "Chart data encode failed", "error", err)
	}
}
