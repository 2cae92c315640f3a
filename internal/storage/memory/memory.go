// Package memory is an in-process ledger store. A single mutex serialises
// units of work; a failed unit restores the state captured when it began.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"carteira/internal/core"
	"carteira/internal/storage"
)

type state struct {
	wallets      map[string]core.Wallet
	goals        map[string]core.Goal
	transactions map[string]core.Transaction
	snapshots    []core.BudgetSnapshot
}

func (st *state) clone() *state {
	c := &state{
		wallets:      make(map[string]core.Wallet, len(st.wallets)),
		goals:        make(map[string]core.Goal, len(st.goals)),
		transactions: make(map[string]core.Transaction, len(st.transactions)),
		snapshots:    append([]core.BudgetSnapshot(nil), st.snapshots...),
	}
	for k, v := range st.wallets {
		c.wallets[k] = v
	}
	for k, v := range st.goals {
		c.goals[k] = v
	}
	for k, v := range st.transactions {
		c.transactions[k] = v
	}
	return c
}

type Store struct {
	mu sync.RWMutex
	st *state
}

var (
	_ storage.Store = (*Store)(nil)
	_ storage.Tx    = (*memTx)(nil)
)

func New() *Store {
	return &Store{st: &state{
		wallets:      map[string]core.Wallet{},
		goals:        map[string]core.Goal{},
		transactions: map[string]core.Transaction{},
	}}
}

func (s *Store) WithTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return core.Unavailable("begin transaction", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	backup := s.st.clone()
	if err := fn(&memTx{st: s.st}); err != nil {
		s.st = backup
		return err
	}
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) read() *memTx {
	return &memTx{st: s.st}
}

func (s *Store) GetWallet(ctx context.Context, ownerID, id string) (core.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetWallet(ctx, ownerID, id)
}

func (s *Store) ListWallets(ctx context.Context, ownerID string) ([]core.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListWallets(ctx, ownerID)
}

func (s *Store) GetGoal(ctx context.Context, ownerID, id string) (core.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetGoal(ctx, ownerID, id)
}

func (s *Store) ListGoals(ctx context.Context, ownerID string, activeOnly bool) ([]core.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListGoals(ctx, ownerID, activeOnly)
}

func (s *Store) GetTransaction(ctx context.Context, ownerID, id string) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetTransaction(ctx, ownerID, id)
}

func (s *Store) ListTransactions(ctx context.Context, ownerID string, f storage.TransactionFilter) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListTransactions(ctx, ownerID, f)
}

func (s *Store) SumByType(ctx context.Context, ownerID string, from, to core.Date) (core.Money, core.Money, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().SumByType(ctx, ownerID, from, to)
}

func (s *Store) CategoryTotals(ctx context.Context, ownerID string, from, to core.Date) ([]core.CategoryAmount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().CategoryTotals(ctx, ownerID, from, to)
}

func (s *Store) SumWalletEffects(ctx context.Context, ownerID, walletID string) (core.Money, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().SumWalletEffects(ctx, ownerID, walletID)
}

func (s *Store) LatestBudgetSnapshot(ctx context.Context, ownerID string) (core.BudgetSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().LatestBudgetSnapshot(ctx, ownerID)
}

func (s *Store) ListAutoContributionGoals(ctx context.Context) ([]core.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListAutoContributionGoals(ctx)
}

// memTx operates on the state directly; the caller holds the lock.
type memTx struct {
	st *state
}

func (t *memTx) GetWallet(_ context.Context, ownerID, id string) (core.Wallet, error) {
	w, ok := t.st.wallets[id]
	if !ok || w.OwnerID != ownerID {
		return core.Wallet{}, core.ErrWalletNotFound
	}
	return w, nil
}

func (t *memTx) ListWallets(_ context.Context, ownerID string) ([]core.Wallet, error) {
	var out []core.Wallet
	for _, w := range t.st.wallets {
		if w.OwnerID == ownerID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (t *memTx) FindPrimaryWallet(_ context.Context, ownerID string) (core.Wallet, error) {
	for _, w := range t.st.wallets {
		if w.OwnerID == ownerID && w.IsPrimary {
			return w, nil
		}
	}
	return core.Wallet{}, core.ErrWalletNotFound
}

func (t *memTx) InsertWallet(_ context.Context, w core.Wallet) error {
	if _, exists := t.st.wallets[w.ID]; exists {
		return core.Validationf("wallet %s already exists", w.ID)
	}
	if w.IsPrimary {
		for _, other := range t.st.wallets {
			if other.OwnerID == w.OwnerID && other.IsPrimary {
				return core.Validationf("owner already has a primary wallet")
			}
		}
	}
	t.st.wallets[w.ID] = w
	return nil
}

func (t *memTx) DeleteWallet(ctx context.Context, ownerID, id string) error {
	if _, err := t.GetWallet(ctx, ownerID, id); err != nil {
		return err
	}
	for txID, tx := range t.st.transactions {
		if tx.OwnerID != ownerID {
			continue
		}
		changed := false
		if tx.WalletID == id {
			tx.WalletID = ""
			changed = true
		}
		if tx.ToWalletID == id {
			tx.ToWalletID = ""
			changed = true
		}
		if changed {
			t.st.transactions[txID] = tx
		}
	}
	delete(t.st.wallets, id)
	return nil
}

func (t *memTx) AdjustWalletBalance(ctx context.Context, ownerID, id string, delta int64) (core.Money, error) {
	w, err := t.GetWallet(ctx, ownerID, id)
	if err != nil {
		return core.Money{}, err
	}
	w.Balance = core.Money{Cents: w.Balance.Cents + delta}
	w.UpdatedAt = time.Now().UTC()
	t.st.wallets[id] = w
	return w.Balance, nil
}

func (t *memTx) SetWalletBalance(ctx context.Context, ownerID, id string, balance core.Money) error {
	w, err := t.GetWallet(ctx, ownerID, id)
	if err != nil {
		return err
	}
	w.OpeningBalance = w.OpeningBalance.Add(balance.Sub(w.Balance))
	w.Balance = balance
	w.UpdatedAt = time.Now().UTC()
	t.st.wallets[id] = w
	return nil
}

func (t *memTx) SumWalletEffects(_ context.Context, ownerID, walletID string) (core.Money, error) {
	var total int64
	for _, tx := range t.st.transactions {
		if tx.OwnerID == ownerID {
			total += tx.WalletEffects()[walletID]
		}
	}
	return core.Money{Cents: total}, nil
}

func (t *memTx) GetGoal(_ context.Context, ownerID, id string) (core.Goal, error) {
	g, ok := t.st.goals[id]
	if !ok || g.OwnerID != ownerID {
		return core.Goal{}, core.ErrGoalNotFound
	}
	return g, nil
}

// GetGoalForUpdate is GetGoal; WithTx already runs units one at a time.
func (t *memTx) GetGoalForUpdate(ctx context.Context, ownerID, id string) (core.Goal, error) {
	return t.GetGoal(ctx, ownerID, id)
}

func (t *memTx) ListGoals(_ context.Context, ownerID string, activeOnly bool) ([]core.Goal, error) {
	var out []core.Goal
	for _, g := range t.st.goals {
		if g.OwnerID != ownerID || (activeOnly && !g.Active) {
			continue
		}
		out = append(out, g)
	}
	sortGoals(out)
	return out, nil
}

func (t *memTx) ListAutoContributionGoals(context.Context) ([]core.Goal, error) {
	var out []core.Goal
	for _, g := range t.st.goals {
		if g.Active && g.AutoContribution.IsPositive() && g.Frequency != "" {
			out = append(out, g)
		}
	}
	sortGoals(out)
	return out, nil
}

func sortGoals(goals []core.Goal) {
	sort.Slice(goals, func(i, j int) bool {
		if goals[i].OwnerID != goals[j].OwnerID {
			return goals[i].OwnerID < goals[j].OwnerID
		}
		if !goals[i].CreatedAt.Equal(goals[j].CreatedAt) {
			return goals[i].CreatedAt.Before(goals[j].CreatedAt)
		}
		return goals[i].Title < goals[j].Title
	})
}

func (t *memTx) InsertGoal(_ context.Context, g core.Goal) error {
	if _, exists := t.st.goals[g.ID]; exists {
		return core.Validationf("goal %s already exists", g.ID)
	}
	t.st.goals[g.ID] = g
	return nil
}

func (t *memTx) UpdateGoalDetails(ctx context.Context, g core.Goal) error {
	cur, err := t.GetGoal(ctx, g.OwnerID, g.ID)
	if err != nil {
		return err
	}
	cur.Title = g.Title
	cur.TargetAmount = g.TargetAmount
	cur.TargetDate = g.TargetDate
	cur.Frequency = g.Frequency
	cur.AutoContribution = g.AutoContribution
	cur.UpdatedAt = time.Now().UTC()
	t.st.goals[g.ID] = cur
	return nil
}

func (t *memTx) DeactivateGoal(ctx context.Context, ownerID, id string) error {
	g, err := t.GetGoal(ctx, ownerID, id)
	if err != nil {
		return err
	}
	g.Active = false
	g.UpdatedAt = time.Now().UTC()
	t.st.goals[id] = g
	return nil
}

func (t *memTx) AdjustGoalProgress(ctx context.Context, ownerID, id string, delta int64) (core.Goal, bool, error) {
	g, err := t.GetGoal(ctx, ownerID, id)
	if err != nil {
		return core.Goal{}, false, err
	}
	if g.CurrentAmount.Cents+delta < 0 {
		return g, false, nil
	}
	g.CurrentAmount = core.Money{Cents: g.CurrentAmount.Cents + delta}
	g.UpdatedAt = time.Now().UTC()
	t.st.goals[id] = g
	return g, true, nil
}

func (t *memTx) MarkAutoContribution(ctx context.Context, ownerID, id string, at time.Time) error {
	g, err := t.GetGoal(ctx, ownerID, id)
	if err != nil {
		return err
	}
	at = at.UTC()
	g.LastAutoContributionAt = &at
	g.UpdatedAt = time.Now().UTC()
	t.st.goals[id] = g
	return nil
}

func (t *memTx) GetTransaction(_ context.Context, ownerID, id string) (core.Transaction, error) {
	tx, ok := t.st.transactions[id]
	if !ok || tx.OwnerID != ownerID {
		return core.Transaction{}, core.ErrTxNotFound
	}
	return tx, nil
}

func (t *memTx) GetTransactionForUpdate(ctx context.Context, ownerID, id string) (core.Transaction, error) {
	return t.GetTransaction(ctx, ownerID, id)
}

func (t *memTx) FindTransactionByIdempotencyKey(_ context.Context, ownerID, key string) (core.Transaction, error) {
	for _, tx := range t.st.transactions {
		if tx.OwnerID == ownerID && key != "" && tx.IdempotencyKey == key {
			return tx, nil
		}
	}
	return core.Transaction{}, core.ErrTxNotFound
}

func (t *memTx) ListTransactions(_ context.Context, ownerID string, f storage.TransactionFilter) ([]core.Transaction, error) {
	var out []core.Transaction
	for _, tx := range t.st.transactions {
		if tx.OwnerID != ownerID || !matches(tx, f) {
			continue
		}
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.After(out[j].Date)
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func matches(tx core.Transaction, f storage.TransactionFilter) bool {
	switch {
	case !f.From.IsZero() && tx.Date.Before(f.From):
		return false
	case !f.To.IsZero() && tx.Date.After(f.To):
		return false
	case f.Category != "" && tx.Category != f.Category:
		return false
	case f.Type != "" && tx.Type != f.Type:
		return false
	case f.WalletID != "" && tx.WalletID != f.WalletID && tx.ToWalletID != f.WalletID:
		return false
	case f.GoalID != "" && tx.GoalID != f.GoalID:
		return false
	}
	return true
}

func (t *memTx) InsertTransaction(_ context.Context, tx core.Transaction) error {
	if _, exists := t.st.transactions[tx.ID]; exists {
		return core.Validationf("transaction %s already exists", tx.ID)
	}
	t.st.transactions[tx.ID] = tx
	return nil
}

func (t *memTx) UpdateTransaction(ctx context.Context, tx core.Transaction) error {
	cur, err := t.GetTransaction(ctx, tx.OwnerID, tx.ID)
	if err != nil {
		return err
	}
	cur.Amount = tx.Amount
	cur.Category = tx.Category
	cur.Description = tx.Description
	cur.Date = tx.Date
	t.st.transactions[tx.ID] = cur
	return nil
}

func (t *memTx) DeleteTransaction(ctx context.Context, ownerID, id string) error {
	if _, err := t.GetTransaction(ctx, ownerID, id); err != nil {
		return err
	}
	delete(t.st.transactions, id)
	return nil
}

func (t *memTx) SumByType(_ context.Context, ownerID string, from, to core.Date) (core.Money, core.Money, error) {
	var income, expense core.Money
	for _, tx := range t.st.transactions {
		if tx.OwnerID != ownerID || tx.Date.Before(from) || tx.Date.After(to) {
			continue
		}
		switch tx.Type {
		case core.Income:
			income = income.Add(tx.Amount)
		case core.Expense:
			expense = expense.Add(tx.Amount)
		}
	}
	return income, expense, nil
}

func (t *memTx) CategoryTotals(_ context.Context, ownerID string, from, to core.Date) ([]core.CategoryAmount, error) {
	type key struct {
		category string
		typ      core.TransactionType
	}
	totals := map[key]int64{}
	for _, tx := range t.st.transactions {
		if tx.OwnerID != ownerID || tx.Type == core.Transfer || tx.Date.Before(from) || tx.Date.After(to) {
			continue
		}
		totals[key{tx.Category, tx.Type}] += tx.Amount.Cents
	}

	out := make([]core.CategoryAmount, 0, len(totals))
	for k, v := range totals {
		out = append(out, core.CategoryAmount{Category: k.category, Type: k.typ, Amount: core.Money{Cents: v}})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount != out[j].Amount {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return strings.Compare(out[i].Category, out[j].Category) < 0
	})
	return out, nil
}

func (t *memTx) InsertBudgetSnapshot(_ context.Context, s core.BudgetSnapshot) error {
	t.st.snapshots = append(t.st.snapshots, s)
	return nil
}

func (t *memTx) LatestBudgetSnapshot(_ context.Context, ownerID string) (core.BudgetSnapshot, error) {
	for i := len(t.st.snapshots) - 1; i >= 0; i-- {
		if t.st.snapshots[i].OwnerID == ownerID {
			return t.st.snapshots[i], nil
		}
	}
	return core.BudgetSnapshot{}, core.ErrSnapshotNotFound
}
