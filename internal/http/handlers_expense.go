package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gastos/internal/core"
	"gastos/internal/storage"
)

// expenseFormData backs the add-expense form, carrying the submitted
// values back to the user alongside the validation error.
type expenseFormData struct {
	Error         string
	Date          string
	Description   string
	Amount        string
	PaymentMethod string
	Category      string
}

// handleAddForm renders the empty expense form.
func (s *Server) handleAddForm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	s.renderAddForm(w, r, http.StatusOK, expenseFormData{
		Date: time.Now().Format(core.DateLayout),
	})
}

func (s *Server) renderAddForm(w http.ResponseWriter, r *http.Request, status int, data expenseFormData) {
	if s.templates == nil {
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, "expense_form.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Expense form template failed", "error", err)
	}
}

// handleCreateExpense validates the submitted form and saves a new
// expense, then sends the user back to the dashboard. A validation
// failure re-renders the form with the inline error and the submitted
// values intact.
func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		slog.ErrorContext(r.Context(), "Parse form error", "error", err, "method", r.Method, "url", r.URL.Path)
		s.renderAddForm(w, r, http.StatusBadRequest, expenseFormData{
			Error: "Invalid request format",
			Date:  time.Now().Format(core.DateLayout),
		})
		return
	}

	submitted := expenseFormData{
		Date:          strings.TrimSpace(r.Form.Get("date")),
		Description:   sanitizeInput(r.Form.Get("description")),
		Amount:        strings.TrimSpace(r.Form.Get("amount")),
		PaymentMethod: sanitizeInput(r.Form.Get("payment_method")),
		Category:      sanitizeInput(r.Form.Get("category")),
	}

	exp, err := core.New(submitted.Description, submitted.Amount, submitted.PaymentMethod, submitted.Category, submitted.Date)
	if err != nil {
		submitted.Error = err.Error()
		s.renderAddForm(w, r, http.StatusUnprocessableEntity, submitted)
		return
	}

	id, err := s.svc.CreateExpense(r.Context(), exp)
	if err != nil {
		slog.ErrorContext(r.Context(), "Expense create error", "error", err, "description", exp.Description)
		submitted.Error = "Failed to save expense"
		s.renderAddForm(w, r, http.StatusInternalServerError, submitted)
		return
	}

	w.Header().Set("HX-Trigger", `{"expense:created": {"id": `+strconv.FormatInt(id, 10)+`}}`)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleEditExpense renders the edit form on GET and applies a partial
// update on POST. Individually invalid fields are skipped while the
// remaining valid fields still apply.
func (s *Server) handleEditExpense(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.renderEditForm(w, r, id)
	case http.MethodPost:
		s.applyEdit(w, r, id)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) renderEditForm(w http.ResponseWriter, r *http.Request, id int64) {
	if s.templates == nil {
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	exp, err := s.svc.GetExpense(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		slog.ErrorContext(r.Context(), "Expense load error", "error", err, "id", id)
		http.Error(w, "failed to load expense", http.StatusInternalServerError)
		return
	}

	data := struct {
		ID            int64
		Date          string
		Description   string
		Amount        string
		PaymentMethod string
		Category      string
	}{
		ID:            exp.ID,
		Date:          exp.Date.Format(core.DateLayout),
		Description:   exp.Description,
		Amount:        strconv.FormatFloat(exp.Amount, 'f', -1, 64),
		PaymentMethod: exp.PaymentMethod,
		Category:      exp.Category,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "edit.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Edit template failed", "error", err, "id", id)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) applyEdit(w http.ResponseWriter, r *http.Request, id int64) {
	if err := r.ParseForm(); err != nil {
		slog.ErrorContext(r.Context(), "Parse form error", "error", err, "method", r.Method, "url", r.URL.Path)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`<div class="error">Invalid request format</div>`))
		return
	}

	update := core.Update{
		Description:   sanitizeInput(r.Form.Get("description")),
		Amount:        strings.TrimSpace(r.Form.Get("amount")),
		PaymentMethod: sanitizeInput(r.Form.Get("payment_method")),
		Category:      sanitizeInput(r.Form.Get("category")),
		Date:          strings.TrimSpace(r.Form.Get("date")),
	}

	if err := s.svc.UpdateExpense(r.Context(), id, update); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		slog.ErrorContext(r.Context(), "Expense update error", "error", err, "id", id)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`<div class="error">Failed to update expense</div>`))
		return
	}

	w.Header().Set("HX-Trigger", `{"expense:updated": {"id": `+strconv.FormatInt(id, 10)+`}}`)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleDeleteExpense removes an expense by ID.
func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodDelete {
		w.Header().Set("Allow", "POST, DELETE")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		http.NotFound(w, r)
		return
	}

	if err := s.svc.DeleteExpense(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		slog.ErrorContext(r.Context(), "Expense delete error", "error", err, "id", id)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`<div class="error">Failed to delete expense</div>`))
		return
	}

	w.Header().Set("HX-Trigger", `{"expense:deleted": {"id": `+strconv.FormatInt(id, 10)+`}}`)
	if r.Method == http.MethodDelete {
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// sanitizeInput removes potentially dangerous characters and trims whitespace
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	// Remove control characters except tab, newline, carriage return
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
