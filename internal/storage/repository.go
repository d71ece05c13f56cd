package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gastos/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no expense exists for a requested ID.
var ErrNotFound = errors.New("expense not found")

// SQLiteRepository is the expense record store. It is constructed once
// at startup and passed by handle to whoever needs it.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Create inserts a validated expense and returns its assigned ID. A
// zero date defaults to the creation time.
func (r *SQLiteRepository) Create(ctx context.Context, e core.Expense) (int64, error) {
	if e.Date.IsZero() {
		e.Date = time.Now()
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (date, description, amount, payment_method, category)
		 VALUES (?, ?, ?, ?, ?)`,
		e.Date.Format(time.RFC3339), e.Description, e.Amount, e.PaymentMethod, e.Category)
	if err != nil {
		return 0, fmt.Errorf("create expense: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", id,
		"description", e.Description,
		"amount", e.Amount,
		"category", e.Category)

	return id, nil
}

// ListAll returns every expense, newest first.
func (r *SQLiteRepository) ListAll(ctx context.Context) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, date, description, amount, payment_method, category
		 FROM expenses
		 ORDER BY date DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}

	return expenses, nil
}

// GetByID returns a single expense or ErrNotFound.
func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*core.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, date, description, amount, payment_method, category
		 FROM expenses
		 WHERE id = ?`, id)

	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Update replaces the stored record with e and flags it for re-export.
// Last write wins.
func (r *SQLiteRepository) Update(ctx context.Context, e core.Expense) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses
		 SET date = ?, description = ?, amount = ?, payment_method = ?, category = ?,
		     export_status = 'pending'
		 WHERE id = ?`,
		e.Date.Format(time.RFC3339), e.Description, e.Amount, e.PaymentMethod, e.Category, e.ID)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	slog.InfoContext(ctx, "Expense updated", "id", e.ID)
	return nil
}

// Delete removes the record. There is no soft delete.
func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	slog.InfoContext(ctx, "Expense deleted", "id", id)
	return nil
}

// ListPendingExport returns the IDs of records the export worker has
// not successfully backed up yet, oldest first.
func (r *SQLiteRepository) ListPendingExport(ctx context.Context, limit int) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM expenses WHERE export_status = 'pending' ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending export: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan pending id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending ids: %w", err)
	}

	return ids, nil
}

// MarkExported records a successful backup of the expense.
func (r *SQLiteRepository) MarkExported(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET export_status = 'done' WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}
	return nil
}

// MarkExportError flags an expense whose backup failed so the periodic
// pass does not retry it immediately.
func (r *SQLiteRepository) MarkExportError(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET export_status = 'error' WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark export error: %w", err)
	}
	slog.WarnContext(ctx, "Expense flagged with export error", "id", id)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (core.Expense, error) {
	var e core.Expense
	var dateStr string
	if err := row.Scan(&e.ID, &dateStr, &e.Description, &e.Amount, &e.PaymentMethod, &e.Category); err != nil {
		return core.Expense{}, fmt.Errorf("scan expense: %w", err)
	}

	// Dates are stored as RFC3339 text; an unparseable value is left
	// zero so the aggregator filters the record instead of us failing
	// the whole listing.
	if d, err := time.Parse(time.RFC3339, dateStr); err == nil {
		e.Date = d
	}

	return e, nil
}
