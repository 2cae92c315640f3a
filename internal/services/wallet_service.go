package services

import (
	"context"
	"strings"

	"carteira/internal/core"
	"carteira/internal/log"
	"carteira/internal/storage"
)

type WalletInput struct {
	Name           string
	Type           core.WalletType
	Currency       string
	OpeningBalance core.Money
}

// defaultWallets are created for every new owner.
var defaultWallets = []struct {
	name string
	typ  core.WalletType
}{
	{"Cash", core.Cash},
	{"Card", core.Card},
	{"Investments", core.Investment},
	{"Reserve", core.Reserve},
}

// WalletService manages wallets. Balances change only through ledger
// effects or an explicit override.
type WalletService struct {
	base
}

func NewWalletService(store storage.Store, opts ...Option) *WalletService {
	return &WalletService{base: newBase(store, log.ComponentWallets, opts)}
}

func (s *WalletService) newWallet(ownerID string, in WalletInput) core.Wallet {
	now := s.now()
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = s.currency
	}
	return core.Wallet{
		ID:             s.newID(),
		OwnerID:        ownerID,
		Name:           strings.TrimSpace(in.Name),
		Type:           in.Type,
		Balance:        in.OpeningBalance,
		OpeningBalance: in.OpeningBalance,
		Currency:       currency,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (s *WalletService) CreateWallet(ctx context.Context, ownerID string, in WalletInput) (core.Wallet, error) {
	w := s.newWallet(ownerID, in)
	if err := w.Validate(); err != nil {
		return core.Wallet{}, err
	}
	if err := s.atomic(ctx, "create wallet", func(tx storage.Tx) error {
		return tx.InsertWallet(ctx, w)
	}); err != nil {
		return core.Wallet{}, err
	}

	s.logger.InfoContext(ctx, "Wallet created",
		log.FieldOwnerID, ownerID,
		log.FieldWalletID, w.ID,
		log.FieldAmountCents, w.Balance.Cents)
	s.committed(ctx, ownerID, core.NewChangeEvent(core.TableWallets, core.OpInsert, ownerID, w.ID))
	return w, nil
}

// BootstrapDefaultWallets creates the starter wallets an owner is missing.
// Running it again creates nothing new.
func (s *WalletService) BootstrapDefaultWallets(ctx context.Context, ownerID string) ([]core.Wallet, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}

	var (
		wallets []core.Wallet
		created []core.ChangeEvent
	)
	err := s.atomic(ctx, "bootstrap wallets", func(tx storage.Tx) error {
		existing, err := tx.ListWallets(ctx, ownerID)
		if err != nil {
			return err
		}
		have := make(map[string]bool, len(existing))
		for _, w := range existing {
			have[strings.ToLower(w.Name)+"|"+string(w.Type)] = true
		}

		created = created[:0]
		for _, d := range defaultWallets {
			if have[strings.ToLower(d.name)+"|"+string(d.typ)] {
				continue
			}
			w := s.newWallet(ownerID, WalletInput{Name: d.name, Type: d.typ})
			if err := tx.InsertWallet(ctx, w); err != nil {
				return err
			}
			created = append(created, core.NewChangeEvent(core.TableWallets, core.OpInsert, ownerID, w.ID))
		}
		wallets, err = tx.ListWallets(ctx, ownerID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(created) > 0 {
		s.logger.InfoContext(ctx, "Default wallets created", log.FieldOwnerID, ownerID, "count", len(created))
		s.committed(ctx, ownerID, created...)
	}
	return wallets, nil
}

func (s *WalletService) GetWallet(ctx context.Context, ownerID, id string) (core.Wallet, error) {
	if err := requireOwner(ownerID); err != nil {
		return core.Wallet{}, err
	}
	return retryRead(ctx, s.retry, func() (core.Wallet, error) {
		return s.store.GetWallet(ctx, ownerID, id)
	})
}

func (s *WalletService) ListWallets(ctx context.Context, ownerID string) ([]core.Wallet, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	return retryRead(ctx, s.retry, func() ([]core.Wallet, error) {
		return s.store.ListWallets(ctx, ownerID)
	})
}

// TotalBalance sums the balances of every wallet the owner has.
func (s *WalletService) TotalBalance(ctx context.Context, ownerID string) (core.Money, error) {
	wallets, err := s.ListWallets(ctx, ownerID)
	if err != nil {
		return core.Money{}, err
	}
	var total core.Money
	for _, w := range wallets {
		total = total.Add(w.Balance)
	}
	return total, nil
}

// OverrideBalance sets a wallet balance directly. The difference is folded
// into the opening balance so the wallet still reconciles.
func (s *WalletService) OverrideBalance(ctx context.Context, ownerID, id string, balance core.Money) (core.Wallet, error) {
	if err := requireOwner(ownerID); err != nil {
		return core.Wallet{}, err
	}

	var w core.Wallet
	err := s.atomic(ctx, "override balance", func(tx storage.Tx) error {
		if err := tx.SetWalletBalance(ctx, ownerID, id, balance); err != nil {
			return err
		}
		var err error
		w, err = tx.GetWallet(ctx, ownerID, id)
		return err
	})
	if err != nil {
		return core.Wallet{}, err
	}

	s.logger.InfoContext(ctx, "Wallet balance overridden",
		log.FieldOwnerID, ownerID,
		log.FieldWalletID, id,
		log.FieldAmountCents, balance.Cents)
	s.committed(ctx, ownerID, core.NewChangeEvent(core.TableWallets, core.OpUpdate, ownerID, id))
	return w, nil
}

// DeleteWallet removes a wallet. Transactions that referenced it stay in the
// log without a wallet link.
func (s *WalletService) DeleteWallet(ctx context.Context, ownerID, id string) error {
	if err := requireOwner(ownerID); err != nil {
		return err
	}
	if err := s.atomic(ctx, "delete wallet", func(tx storage.Tx) error {
		return tx.DeleteWallet(ctx, ownerID, id)
	}); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Wallet deleted", log.FieldOwnerID, ownerID, log.FieldWalletID, id)
	s.committed(ctx, ownerID, core.NewChangeEvent(core.TableWallets, core.OpDelete, ownerID, id))
	return nil
}

// Reconcile compares the stored balance with opening balance plus postings.
// Both values are read in one unit so they describe the same state.
func (s *WalletService) Reconcile(ctx context.Context, ownerID, id string) (core.WalletReconciliation, error) {
	if err := requireOwner(ownerID); err != nil {
		return core.WalletReconciliation{}, err
	}

	var rec core.WalletReconciliation
	err := s.atomic(ctx, "reconcile wallet", func(tx storage.Tx) error {
		w, err := tx.GetWallet(ctx, ownerID, id)
		if err != nil {
			return err
		}
		postings, err := tx.SumWalletEffects(ctx, ownerID, id)
		if err != nil {
			return err
		}
		rec = core.WalletReconciliation{
			WalletID:       id,
			Stored:         w.Balance,
			OpeningBalance: w.OpeningBalance,
			Postings:       postings,
			Derived:        w.OpeningBalance.Add(postings),
		}
		return nil
	})
	if err != nil {
		return core.WalletReconciliation{}, err
	}

	if !rec.Consistent() {
		s.logger.ErrorContext(ctx, "Wallet balance does not match the ledger",
			log.FieldOwnerID, ownerID,
			log.FieldWalletID, id,
			"stored_cents", rec.Stored.Cents,
			"derived_cents", rec.Derived.Cents)
	}
	return rec, nil
}
