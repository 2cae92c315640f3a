package services

import (
	"context"
	"errors"

	"carteira/internal/core"
	"carteira/internal/log"
	"carteira/internal/storage"
)

// BudgetResult is everything one questionnaire submission produced.
type BudgetResult struct {
	Snapshot      core.BudgetSnapshot
	Transactions  []core.Transaction
	PrimaryWallet core.Wallet
}

// BudgetService materializes questionnaire answers into the ledger.
type BudgetService struct {
	base
}

func NewBudgetService(store storage.Store, opts ...Option) *BudgetService {
	return &BudgetService{base: newBase(store, log.ComponentBudget, opts)}
}

// SubmitBudgetSnapshot stores the snapshot, records one unlinked transaction
// per non-zero category dated today, and sets the primary wallet balance to
// the computed savings. The primary wallet is created on first use; later
// submissions replace its balance rather than adding to it.
func (s *BudgetService) SubmitBudgetSnapshot(ctx context.Context, ownerID string, in core.BudgetInput) (BudgetResult, error) {
	snap, err := core.NewBudgetSnapshot(ownerID, in)
	if err != nil {
		return BudgetResult{}, err
	}
	snap.ID = s.newID()
	snap.CreatedAt = s.now()

	var (
		result        = BudgetResult{Snapshot: snap}
		walletCreated bool
		events        = []core.ChangeEvent{core.NewChangeEvent(core.TableQuestionnaires, core.OpInsert, ownerID, snap.ID)}
	)
	err = s.atomic(ctx, "submit budget snapshot", func(tx storage.Tx) error {
		if err := tx.InsertBudgetSnapshot(ctx, snap); err != nil {
			return err
		}

		result.Transactions = result.Transactions[:0]
		for _, t := range snap.Transactions(s.today()) {
			t.ID = s.newID()
			t.CreatedAt = snap.CreatedAt
			if err := tx.InsertTransaction(ctx, t); err != nil {
				return err
			}
			result.Transactions = append(result.Transactions, t)
		}

		primary, err := tx.FindPrimaryWallet(ctx, ownerID)
		switch {
		case err == nil:
			if err := tx.SetWalletBalance(ctx, ownerID, primary.ID, snap.Savings); err != nil {
				return err
			}
			result.PrimaryWallet, err = tx.GetWallet(ctx, ownerID, primary.ID)
			return err
		case errors.Is(err, core.ErrWalletNotFound):
			now := s.now()
			primary = core.Wallet{
				ID:             s.newID(),
				OwnerID:        ownerID,
				Name:           core.PrimaryWalletName,
				Type:           core.Cash,
				Balance:        snap.Savings,
				OpeningBalance: snap.Savings,
				Currency:       s.currency,
				IsPrimary:      true,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if err := tx.InsertWallet(ctx, primary); err != nil {
				return err
			}
			result.PrimaryWallet, walletCreated = primary, true
			return nil
		default:
			return err
		}
	})
	if err != nil {
		return BudgetResult{}, err
	}

	for _, t := range result.Transactions {
		events = append(events, core.NewChangeEvent(core.TableTransactions, core.OpInsert, ownerID, t.ID))
	}
	walletOp := core.OpUpdate
	if walletCreated {
		walletOp = core.OpInsert
	}
	events = append(events, core.NewChangeEvent(core.TableWallets, walletOp, ownerID, result.PrimaryWallet.ID))

	s.logger.InfoContext(ctx, "Budget snapshot submitted",
		log.FieldOwnerID, ownerID,
		log.FieldSnapshotID, snap.ID,
		log.FieldOperation, log.OpSubmit,
		"transactions", len(result.Transactions),
		"savings_cents", snap.Savings.Cents)
	s.committed(ctx, ownerID, events...)
	return result, nil
}

func (s *BudgetService) LatestSnapshot(ctx context.Context, ownerID string) (core.BudgetSnapshot, error) {
	if err := requireOwner(ownerID); err != nil {
		return core.BudgetSnapshot{}, err
	}
	return retryRead(ctx, s.retry, func() (core.BudgetSnapshot, error) {
		return s.store.LatestBudgetSnapshot(ctx, ownerID)
	})
}
