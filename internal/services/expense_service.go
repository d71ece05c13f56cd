package services

import (
	"context"
	"fmt"
	"log/slog"

	"gastos/internal/amqp"
	"gastos/internal/core"
	"gastos/internal/storage"
)

// EventPublisher publishes record-mutation events for the export
// worker. *amqp.Client implements it; nil disables publishing.
type EventPublisher interface {
	PublishExpenseEvent(ctx context.Context, id int64, kind string) error
	Close() error
}

// ExpenseService orchestrates expense mutations: persist to SQLite
// first, then publish a best-effort export event. Publish failures are
// logged and never surfaced to the caller — the record is already
// saved.
type ExpenseService struct {
	storage   *storage.SQLiteRepository
	publisher EventPublisher
}

func NewExpenseService(storage *storage.SQLiteRepository, publisher EventPublisher) *ExpenseService {
	return &ExpenseService{
		storage:   storage,
		publisher: publisher,
	}
}

// CreateExpense saves a new expense and publishes a created event.
func (s *ExpenseService) CreateExpense(ctx context.Context, e core.Expense) (int64, error) {
	id, err := s.storage.Create(ctx, e)
	if err != nil {
		return 0, fmt.Errorf("save expense: %w", err)
	}

	s.publish(ctx, id, amqp.KindCreated)
	return id, nil
}

// UpdateExpense applies a lenient partial update to a stored expense.
// Individually invalid fields in u are skipped; the rest apply.
func (s *ExpenseService) UpdateExpense(ctx context.Context, id int64, u core.Update) error {
	e, err := s.storage.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load expense: %w", err)
	}

	e.ApplyUpdate(u)
	if err := s.storage.Update(ctx, *e); err != nil {
		return fmt.Errorf("update expense: %w", err)
	}

	s.publish(ctx, id, amqp.KindUpdated)
	return nil
}

// DeleteExpense removes an expense and publishes a deleted event.
func (s *ExpenseService) DeleteExpense(ctx context.Context, id int64) error {
	if err := s.storage.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}

	s.publish(ctx, id, amqp.KindDeleted)
	return nil
}

// GetExpense returns a stored expense by ID.
func (s *ExpenseService) GetExpense(ctx context.Context, id int64) (*core.Expense, error) {
	return s.storage.GetByID(ctx, id)
}

// ListExpenses returns all expenses, newest first.
func (s *ExpenseService) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	return s.storage.ListAll(ctx)
}

func (s *ExpenseService) publish(ctx context.Context, id int64, kind string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishExpenseEvent(ctx, id, kind); err != nil {
		slog.ErrorContext(ctx, "Failed to publish expense event",
			"id", id, "kind", kind, "error", err)
	}
}

// Close closes the storage handle and the publisher.
func (s *ExpenseService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close expense service: %v", errs)
	}

	return nil
}
