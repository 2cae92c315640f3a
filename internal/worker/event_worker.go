// Package worker consumes ledger change events and keeps the spreadsheet
// mirror in step with the store.
package worker

import (
	"context"
	"errors"
	"fmt"

	"carteira/internal/core"
	"carteira/internal/log"
	"carteira/internal/metrics"
	"carteira/internal/sheets"
	"carteira/internal/storage"
)

// EventWorker applies change events to a TransactionMirror. The event only
// names the row; the current state is always re-read from the store so
// redelivered or out-of-order events converge on the same result.
type EventWorker struct {
	store   storage.Reader
	mirror  sheets.TransactionMirror
	metrics *metrics.Metrics
	logger  *log.Logger
}

// NewEventWorker builds a worker. m may be nil.
func NewEventWorker(store storage.Reader, mirror sheets.TransactionMirror, m *metrics.Metrics) *EventWorker {
	return &EventWorker{
		store:   store,
		mirror:  mirror,
		metrics: m,
		logger:  log.ForComponent(log.ComponentWorker),
	}
}

// Handle processes one change event. Only transaction changes are mirrored;
// other tables are acknowledged and skipped. A returned error asks the
// broker to redeliver.
func (w *EventWorker) Handle(ctx context.Context, e core.ChangeEvent) error {
	if e.Table != core.TableTransactions {
		w.logger.DebugContext(ctx, "Skipping change event",
			log.FieldTable, e.Table,
			log.FieldOperation, string(e.Op))
		return nil
	}

	err := w.apply(ctx, e)
	w.metrics.RecordEvent(e.Table, err)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to mirror transaction",
			log.FieldTransactionID, e.RecordID,
			log.FieldOwnerID, e.OwnerID,
			log.FieldOperation, string(e.Op),
			log.FieldError, err)
		return err
	}
	return nil
}

func (w *EventWorker) apply(ctx context.Context, e core.ChangeEvent) error {
	if e.RecordID == "" || e.OwnerID == "" {
		return core.Validationf("change event missing owner or record id")
	}

	if e.Op == core.OpDelete {
		return w.remove(ctx, e.RecordID)
	}

	tx, err := w.store.GetTransaction(ctx, e.OwnerID, e.RecordID)
	if errors.Is(err, core.ErrTxNotFound) {
		// Deleted after the event was published.
		return w.remove(ctx, e.RecordID)
	}
	if err != nil {
		return fmt.Errorf("load transaction: %w", err)
	}
	return w.upsert(ctx, tx)
}

func (w *EventWorker) upsert(ctx context.Context, tx core.Transaction) error {
	ref, err := w.mirror.Upsert(ctx, tx)
	if err != nil {
		return fmt.Errorf("mirror upsert: %w", err)
	}
	w.logger.InfoContext(ctx, "Mirrored transaction",
		log.FieldTransactionID, tx.ID,
		log.FieldSheetsRef, ref)
	return nil
}

func (w *EventWorker) remove(ctx context.Context, id string) error {
	if err := w.mirror.Remove(ctx, id); err != nil {
		return fmt.Errorf("mirror remove: %w", err)
	}
	w.logger.InfoContext(ctx, "Removed mirrored transaction",
		log.FieldTransactionID, id)
	return nil
}

// Resync upserts every transaction of ownerID. It backfills the mirror after
// downtime, when events may have been lost. It stops at the first failure
// and reports how many rows were written before it.
func (w *EventWorker) Resync(ctx context.Context, ownerID string) (int, error) {
	txs, err := w.store.ListTransactions(ctx, ownerID, storage.TransactionFilter{})
	if err != nil {
		return 0, fmt.Errorf("list transactions: %w", err)
	}

	w.logger.InfoContext(ctx, "Starting mirror resync",
		log.FieldOwnerID, ownerID,
		"count", len(txs))

	for i, tx := range txs {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if _, err := w.mirror.Upsert(ctx, tx); err != nil {
			return i, fmt.Errorf("mirror upsert %s: %w", tx.ID, err)
		}
	}

	w.logger.InfoContext(ctx, "Mirror resync complete",
		log.FieldOwnerID, ownerID,
		"count", len(txs))
	return len(txs), nil
}
