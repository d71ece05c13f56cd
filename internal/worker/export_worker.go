// Package worker implements the asynchronous backup of expense records
// to a Google Sheet, driven by AMQP events with a periodic catch-up
// pass for anything missed while the worker was down.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"gastos/internal/amqp"
	"gastos/internal/core"
	"gastos/internal/storage"
)

// Appender is the backup destination. *sheets.Client implements it.
type Appender interface {
	AppendExpense(ctx context.Context, e core.Expense) error
	MarkDeleted(ctx context.Context, id int64) error
}

// EventSource delivers expense events. *amqp.Client implements it.
type EventSource interface {
	ConsumeExpenseEvents(ctx context.Context, handler func(*amqp.ExpenseEventMessage) error) error
}

type ExportWorker struct {
	storage   *storage.SQLiteRepository
	appender  Appender
	batchSize int
}

func NewExportWorker(storage *storage.SQLiteRepository, appender Appender, batchSize int) *ExportWorker {
	return &ExportWorker{
		storage:   storage,
		appender:  appender,
		batchSize: batchSize,
	}
}

// HandleEvent processes one expense event. Created and updated events
// re-read the current row and append it; a record that no longer
// exists was deleted in the meantime and is skipped without error so
// the delivery is acked.
func (w *ExportWorker) HandleEvent(msg *amqp.ExpenseEventMessage) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch msg.Kind {
	case amqp.KindDeleted:
		if err := w.appender.MarkDeleted(ctx, msg.ID); err != nil {
			return err
		}
		return nil
	case amqp.KindCreated, amqp.KindUpdated:
		return w.exportOne(ctx, msg.ID)
	default:
		// Validated on decode; an unknown kind here is a programming
		// error, not worth a requeue loop.
		slog.WarnContext(ctx, "Ignoring event with unknown kind", "kind", msg.Kind, "id", msg.ID)
		return nil
	}
}

func (w *ExportWorker) exportOne(ctx context.Context, id int64) error {
	e, err := w.storage.GetByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		slog.InfoContext(ctx, "Expense gone before export, skipping", "id", id)
		return nil
	}
	if err != nil {
		return err
	}

	if err := w.appender.AppendExpense(ctx, *e); err != nil {
		if markErr := w.storage.MarkExportError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to flag export error", "id", id, "error", markErr)
		}
		return err
	}

	return w.storage.MarkExported(ctx, id)
}

// ProcessPending exports records still flagged pending, up to the
// configured batch size. Used at startup and on the periodic ticker.
func (w *ExportWorker) ProcessPending(ctx context.Context) error {
	ids, err := w.storage.ListPendingExport(ctx, w.batchSize)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending exports", "count", len(ids))

	for _, id := range ids {
		if err := w.exportOne(ctx, id); err != nil {
			slog.ErrorContext(ctx, "Pending export failed", "id", id, "error", err)
			// Keep going; the record is flagged and will be retried.
		}
	}

	return nil
}

// Run drives the worker: a startup catch-up pass, then the AMQP
// consume loop and the periodic catch-up ticker under one errgroup
// lifetime. Returns when ctx is cancelled or either loop fails.
func (w *ExportWorker) Run(ctx context.Context, source EventSource, interval time.Duration) error {
	if err := w.ProcessPending(ctx); err != nil {
		slog.ErrorContext(ctx, "Startup export pass failed", "error", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return source.ConsumeExpenseEvents(ctx, w.HandleEvent)
	})

	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := w.ProcessPending(ctx); err != nil {
					slog.ErrorContext(ctx, "Periodic export pass failed", "error", err)
				}
			}
		}
	})

	return g.Wait()
}
