// Package storage defines the ledger's persistence ports and their SQL
// implementation. All multi-row effects run inside a single store
// transaction obtained from Store.WithTx.
package storage

import (
	"context"
	"time"

	"carteira/internal/core"
)

// TransactionFilter narrows ListTransactions. Zero values mean "no filter".
type TransactionFilter struct {
	From     core.Date
	To       core.Date
	Category string
	Type     core.TransactionType
	WalletID string
	GoalID   string
	Limit    int
}

// Reader is the read side shared by Store and Tx. Every lookup is scoped to
// an owner; rows owned by someone else are reported as not found.
type Reader interface {
	GetWallet(ctx context.Context, ownerID, id string) (core.Wallet, error)
	ListWallets(ctx context.Context, ownerID string) ([]core.Wallet, error)
	GetGoal(ctx context.Context, ownerID, id string) (core.Goal, error)
	ListGoals(ctx context.Context, ownerID string, activeOnly bool) ([]core.Goal, error)
	GetTransaction(ctx context.Context, ownerID, id string) (core.Transaction, error)
	ListTransactions(ctx context.Context, ownerID string, f TransactionFilter) ([]core.Transaction, error)
	// SumByType totals income and expense in [from, to]. Transfers are ignored.
	SumByType(ctx context.Context, ownerID string, from, to core.Date) (income, expense core.Money, err error)
	CategoryTotals(ctx context.Context, ownerID string, from, to core.Date) ([]core.CategoryAmount, error)
	// SumWalletEffects is the signed sum of every posting against the wallet.
	SumWalletEffects(ctx context.Context, ownerID, walletID string) (core.Money, error)
	LatestBudgetSnapshot(ctx context.Context, ownerID string) (core.BudgetSnapshot, error)
	// ListAutoContributionGoals returns active goals of every owner that carry
	// a positive auto contribution and a frequency.
	ListAutoContributionGoals(ctx context.Context) ([]core.Goal, error)
}

// Tx is one atomic unit of work. Nothing written through it is visible to
// other readers until the enclosing WithTx returns nil.
type Tx interface {
	Reader

	// GetTransactionForUpdate and GetGoalForUpdate read a row and hold a
	// write lock on it until the unit ends, so read-modify-write sequences
	// cannot interleave.
	GetTransactionForUpdate(ctx context.Context, ownerID, id string) (core.Transaction, error)
	GetGoalForUpdate(ctx context.Context, ownerID, id string) (core.Goal, error)

	InsertWallet(ctx context.Context, w core.Wallet) error
	// DeleteWallet clears the wallet from every transaction referencing it,
	// then removes the wallet row.
	DeleteWallet(ctx context.Context, ownerID, id string) error
	// AdjustWalletBalance adds delta to the stored balance and returns the new one.
	AdjustWalletBalance(ctx context.Context, ownerID, id string, delta int64) (core.Money, error)
	// SetWalletBalance overrides the balance; the difference moves into the
	// opening balance so the wallet still reconciles with the log.
	SetWalletBalance(ctx context.Context, ownerID, id string, balance core.Money) error
	FindPrimaryWallet(ctx context.Context, ownerID string) (core.Wallet, error)

	InsertGoal(ctx context.Context, g core.Goal) error
	UpdateGoalDetails(ctx context.Context, g core.Goal) error
	DeactivateGoal(ctx context.Context, ownerID, id string) error
	// AdjustGoalProgress atomically adds delta to current_amount unless the
	// result would be negative, in which case applied is false and nothing
	// changes.
	AdjustGoalProgress(ctx context.Context, ownerID, id string, delta int64) (g core.Goal, applied bool, err error)
	MarkAutoContribution(ctx context.Context, ownerID, id string, at time.Time) error

	InsertTransaction(ctx context.Context, t core.Transaction) error
	UpdateTransaction(ctx context.Context, t core.Transaction) error
	DeleteTransaction(ctx context.Context, ownerID, id string) error
	FindTransactionByIdempotencyKey(ctx context.Context, ownerID, key string) (core.Transaction, error)

	InsertBudgetSnapshot(ctx context.Context, s core.BudgetSnapshot) error
}

// Store is the ledger persistence boundary.
type Store interface {
	Reader
	// WithTx runs fn inside one transaction, committing when fn returns nil
	// and rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}
