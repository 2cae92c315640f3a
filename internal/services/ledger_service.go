package services

import (
	"context"
	"errors"
	"strings"

	"carteira/internal/core"
	"carteira/internal/log"
	"carteira/internal/storage"
)

type (
	// TransactionInput is a new ledger entry as submitted by the caller.
	TransactionInput struct {
		WalletID       string
		ToWalletID     string
		GoalID         string
		Amount         core.Money
		Category       string
		Type           core.TransactionType
		Description    string
		Date           core.Date
		IdempotencyKey string
	}

	// TransactionPatch lists the editable fields; nil leaves a field as is.
	TransactionPatch struct {
		Amount      *core.Money
		Category    *string
		Description *string
		Date        *core.Date
	}
)

// LedgerService applies, edits and deletes transactions together with their
// wallet and goal effects.
type LedgerService struct {
	base
}

func NewLedgerService(store storage.Store, opts ...Option) *LedgerService {
	return &LedgerService{base: newBase(store, log.ComponentLedger, opts)}
}

// ApplyTransaction records a transaction and applies its effects in one unit.
// A repeated idempotency key returns the stored transaction unchanged. A zero
// Date defaults to the service clock's current day.
func (s *LedgerService) ApplyTransaction(ctx context.Context, ownerID string, in TransactionInput) (core.Transaction, error) {
	if in.Date.IsZero() {
		in.Date = s.today()
	}
	tx := core.Transaction{
		ID:             s.newID(),
		OwnerID:        ownerID,
		WalletID:       strings.TrimSpace(in.WalletID),
		ToWalletID:     strings.TrimSpace(in.ToWalletID),
		GoalID:         strings.TrimSpace(in.GoalID),
		Amount:         in.Amount,
		Category:       strings.TrimSpace(in.Category),
		Type:           in.Type,
		Description:    strings.TrimSpace(in.Description),
		Date:           in.Date,
		IdempotencyKey: strings.TrimSpace(in.IdempotencyKey),
		CreatedAt:      s.now(),
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	var (
		result   = tx
		replayed bool
	)
	err := s.atomic(ctx, "apply transaction", func(stx storage.Tx) error {
		if tx.IdempotencyKey != "" {
			existing, err := stx.FindTransactionByIdempotencyKey(ctx, ownerID, tx.IdempotencyKey)
			if err == nil {
				result, replayed = existing, true
				return nil
			}
			if !errors.Is(err, core.ErrTxNotFound) {
				return err
			}
		}

		for _, id := range tx.WalletIDs() {
			if _, err := stx.GetWallet(ctx, ownerID, id); err != nil {
				return err
			}
		}
		if tx.GoalID != "" {
			g, err := stx.GetGoal(ctx, ownerID, tx.GoalID)
			if err != nil {
				return err
			}
			if !g.Active {
				return core.ErrGoalInactive
			}
		}

		if err := stx.InsertTransaction(ctx, tx); err != nil {
			return err
		}
		return applyEffects(ctx, stx, ownerID, tx.WalletEffects(), tx.GoalID, tx.GoalEffect())
	})
	if err != nil {
		return core.Transaction{}, err
	}
	if replayed {
		s.logger.InfoContext(ctx, "Idempotent replay of transaction",
			log.FieldOwnerID, ownerID,
			log.FieldTransactionID, result.ID)
		return result, nil
	}

	s.logger.InfoContext(ctx, "Transaction applied", log.NewFields().
		WithOwner(ownerID).
		WithOperation(log.OpApply).
		WithTransaction(tx.ID, string(tx.Type), tx.Category, tx.Amount.Cents, tx.WalletID, tx.GoalID).
		ToSlice()...)
	s.committed(ctx, ownerID, transactionEvents(core.OpInsert, tx)...)
	return result, nil
}

// EditTransaction changes amount, category, description or date and moves
// the linked wallets and goal by the difference between new and old effects.
func (s *LedgerService) EditTransaction(ctx context.Context, ownerID, id string, patch TransactionPatch) (core.Transaction, error) {
	if err := requireOwner(ownerID); err != nil {
		return core.Transaction{}, err
	}

	var updated core.Transaction
	err := s.atomic(ctx, "edit transaction", func(stx storage.Tx) error {
		old, err := stx.GetTransactionForUpdate(ctx, ownerID, id)
		if err != nil {
			return err
		}

		updated = old
		if patch.Amount != nil {
			updated.Amount = *patch.Amount
		}
		if patch.Category != nil {
			updated.Category = strings.TrimSpace(*patch.Category)
		}
		if patch.Description != nil {
			updated.Description = strings.TrimSpace(*patch.Description)
		}
		if patch.Date != nil {
			updated.Date = *patch.Date
		}
		if err := updated.ValidateDetails(); err != nil {
			return err
		}

		if err := stx.UpdateTransaction(ctx, updated); err != nil {
			return err
		}
		walletDelta := diffEffects(updated.WalletEffects(), old.WalletEffects())
		return applyEffects(ctx, stx, ownerID, walletDelta, old.GoalID, updated.GoalEffect()-old.GoalEffect())
	})
	if err != nil {
		return core.Transaction{}, err
	}

	s.logger.InfoContext(ctx, "Transaction edited", log.NewFields().
		WithOwner(ownerID).
		WithOperation(log.OpUpdate).
		WithTransaction(updated.ID, string(updated.Type), updated.Category, updated.Amount.Cents, updated.WalletID, updated.GoalID).
		ToSlice()...)
	s.committed(ctx, ownerID, transactionEvents(core.OpUpdate, updated)...)
	return updated, nil
}

// DeleteTransaction removes a transaction and reverses its effects.
func (s *LedgerService) DeleteTransaction(ctx context.Context, ownerID, id string) error {
	if err := requireOwner(ownerID); err != nil {
		return err
	}

	var old core.Transaction
	err := s.atomic(ctx, "delete transaction", func(stx storage.Tx) error {
		var err error
		old, err = stx.GetTransactionForUpdate(ctx, ownerID, id)
		if err != nil {
			return err
		}
		if err := stx.DeleteTransaction(ctx, ownerID, id); err != nil {
			return err
		}
		return applyEffects(ctx, stx, ownerID, negate(old.WalletEffects()), old.GoalID, -old.GoalEffect())
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Transaction deleted", log.NewFields().
		WithOwner(ownerID).
		WithOperation(log.OpDelete).
		WithTransaction(old.ID, string(old.Type), old.Category, old.Amount.Cents, old.WalletID, old.GoalID).
		ToSlice()...)
	s.committed(ctx, ownerID, transactionEvents(core.OpDelete, old)...)
	return nil
}

func (s *LedgerService) GetTransaction(ctx context.Context, ownerID, id string) (core.Transaction, error) {
	if err := requireOwner(ownerID); err != nil {
		return core.Transaction{}, err
	}
	return retryRead(ctx, s.retry, func() (core.Transaction, error) {
		return s.store.GetTransaction(ctx, ownerID, id)
	})
}

func (s *LedgerService) ListTransactions(ctx context.Context, ownerID string, f storage.TransactionFilter) ([]core.Transaction, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return nil, core.Validationf("range end is before range start")
	}
	return retryRead(ctx, s.retry, func() ([]core.Transaction, error) {
		return s.store.ListTransactions(ctx, ownerID, f)
	})
}

// RecentTransactions returns the newest entries, ten by default.
func (s *LedgerService) RecentTransactions(ctx context.Context, ownerID string, limit int) ([]core.Transaction, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.ListTransactions(ctx, ownerID, storage.TransactionFilter{Limit: limit})
}

// TransactionsByCategory totals income and expense per category in [from, to].
func (s *LedgerService) TransactionsByCategory(ctx context.Context, ownerID string, from, to core.Date) ([]core.CategoryAmount, error) {
	if err := validateRange(ownerID, from, to); err != nil {
		return nil, err
	}
	return retryRead(ctx, s.retry, func() ([]core.CategoryAmount, error) {
		return s.store.CategoryTotals(ctx, ownerID, from, to)
	})
}

// applyEffects moves wallet balances and goal progress by the given deltas.
// A goal change that would go below zero aborts the unit.
func applyEffects(ctx context.Context, stx storage.Tx, ownerID string, wallets map[string]int64, goalID string, goalDelta int64) error {
	for id, delta := range wallets {
		if delta == 0 {
			continue
		}
		if _, err := stx.AdjustWalletBalance(ctx, ownerID, id, delta); err != nil {
			return err
		}
	}
	if goalID == "" || goalDelta == 0 {
		return nil
	}
	_, applied, err := stx.AdjustGoalProgress(ctx, ownerID, goalID, goalDelta)
	if err != nil {
		return err
	}
	if !applied {
		return core.ErrNegativeProgress
	}
	return nil
}

func diffEffects(next, prev map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(next)+len(prev))
	for id, v := range next {
		out[id] += v
	}
	for id, v := range prev {
		out[id] -= v
	}
	return out
}

func negate(effects map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(effects))
	for id, v := range effects {
		out[id] = -v
	}
	return out
}

func transactionEvents(op core.ChangeOp, tx core.Transaction) []core.ChangeEvent {
	events := []core.ChangeEvent{core.NewChangeEvent(core.TableTransactions, op, tx.OwnerID, tx.ID)}
	for _, id := range tx.WalletIDs() {
		events = append(events, core.NewChangeEvent(core.TableWallets, core.OpUpdate, tx.OwnerID, id))
	}
	if tx.GoalEffect() != 0 {
		events = append(events, core.NewChangeEvent(core.TableGoals, core.OpUpdate, tx.OwnerID, tx.GoalID))
	}
	return events
}

func validateRange(ownerID string, from, to core.Date) error {
	if err := requireOwner(ownerID); err != nil {
		return err
	}
	if from.IsZero() || to.IsZero() {
		return core.ErrInvalidDate
	}
	if to.Before(from) {
		return core.Validationf("range end is before range start")
	}
	return nil
}
