package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"carteira/internal/core"
	"carteira/internal/storage"
	"carteira/internal/storage/memory"
)

const testOwner = "owner-1"

var testNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []core.ChangeEvent
	err    error
}

func (p *recordingPublisher) PublishChange(_ context.Context, e core.ChangeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Events() []core.ChangeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]core.ChangeEvent(nil), p.events...)
}

func (p *recordingPublisher) count(table string) int {
	n := 0
	for _, e := range p.Events() {
		if e.Table == table {
			n++
		}
	}
	return n
}

type testEnv struct {
	store     storage.Store
	publisher *recordingPublisher
	ledger    *LedgerService
	goals     *GoalService
	wallets   *WalletService
	budget    *BudgetService
	reports   *ReportService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithStore(t, memory.New())
}

func newTestEnvWithStore(t *testing.T, store storage.Store) *testEnv {
	t.Helper()
	clock := func() time.Time { return testNow }
	pub := &recordingPublisher{}
	fastRetry := RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	reports := NewReportService(store, time.Minute, WithClock(clock), WithRetryPolicy(fastRetry))
	opts := []Option{
		WithClock(clock),
		WithPublisher(pub),
		WithInvalidator(reports),
		WithRetryPolicy(fastRetry),
	}
	return &testEnv{
		store:     store,
		publisher: pub,
		ledger:    NewLedgerService(store, opts...),
		goals:     NewGoalService(store, opts...),
		wallets:   NewWalletService(store, opts...),
		budget:    NewBudgetService(store, opts...),
		reports:   reports,
	}
}

func (e *testEnv) wallet(t *testing.T, name string, opening int64) core.Wallet {
	t.Helper()
	w, err := e.wallets.CreateWallet(context.Background(), testOwner, WalletInput{
		Name:           name,
		Type:           core.Cash,
		OpeningBalance: core.Cents(opening),
	})
	if err != nil {
		t.Fatalf("CreateWallet(%q) error = %v", name, err)
	}
	return w
}

// goal creates a goal and, when current is positive, seeds its progress
// with a contribution.
func (e *testEnv) goal(t *testing.T, title string, target, current int64) core.Goal {
	t.Helper()
	ctx := context.Background()
	g, err := e.goals.CreateGoal(ctx, testOwner, GoalInput{
		Title:        title,
		TargetAmount: core.Cents(target),
	})
	if err != nil {
		t.Fatalf("CreateGoal(%q) error = %v", title, err)
	}
	if current > 0 {
		if g, err = e.goals.Contribute(ctx, testOwner, g.ID, core.Cents(current)); err != nil {
			t.Fatalf("Contribute(%q) error = %v", title, err)
		}
	}
	return g
}

func (e *testEnv) balance(t *testing.T, walletID string) int64 {
	t.Helper()
	w, err := e.store.GetWallet(context.Background(), testOwner, walletID)
	if err != nil {
		t.Fatalf("GetWallet(%s) error = %v", walletID, err)
	}
	return w.Balance.Cents
}

func (e *testEnv) progress(t *testing.T, goalID string) int64 {
	t.Helper()
	g, err := e.store.GetGoal(context.Background(), testOwner, goalID)
	if err != nil {
		t.Fatalf("GetGoal(%s) error = %v", goalID, err)
	}
	return g.CurrentAmount.Cents
}

func (e *testEnv) txCount(t *testing.T) int {
	t.Helper()
	txs, err := e.store.ListTransactions(context.Background(), testOwner, storage.TransactionFilter{})
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	return len(txs)
}

func expense(walletID string, cents int64) TransactionInput {
	return TransactionInput{
		WalletID: walletID,
		Amount:   core.Cents(cents),
		Category: "Food",
		Type:     core.Expense,
		Date:     core.NewDate(2024, 3, 10),
	}
}

func income(walletID, goalID string, cents int64) TransactionInput {
	return TransactionInput{
		WalletID: walletID,
		GoalID:   goalID,
		Amount:   core.Cents(cents),
		Category: "Salary",
		Type:     core.Income,
		Date:     core.NewDate(2024, 3, 1),
	}
}

func wantErrIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("error = %v, want %v", err, target)
	}
}

func wantKind(t *testing.T, err error, kind core.Kind) {
	t.Helper()
	if got := core.KindOf(err); got != kind {
		t.Fatalf("error kind = %q (%v), want %q", got, err, kind)
	}
}
