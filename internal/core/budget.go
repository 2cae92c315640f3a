package core

import (
	"strings"
	"time"
)

// Categories used for the transactions materialized from a budget snapshot.
const (
	CategoryIncome   = "Salary/Income"
	CategoryHousing  = "Housing"
	CategoryShopping = "Shopping"
	CategoryOther    = "Other"
)

const (
	PrimaryWalletName = "Primary Wallet"
	DefaultCurrency   = "BRL"
)

type (
	// BudgetInput is one questionnaire submission.
	BudgetInput struct {
		Income   Money
		Rent     Money
		Shopping Money
		Other    Money
	}

	BudgetSnapshot struct {
		ID            string
		OwnerID       string
		Income        Money
		Rent          Money
		Shopping      Money
		Other         Money
		TotalExpenses Money
		Savings       Money // may be negative
		CreatedAt     time.Time
	}
)

func (in BudgetInput) Validate() error {
	fields := []struct {
		name string
		m    Money
	}{
		{"income", in.Income},
		{"rent", in.Rent},
		{"shopping", in.Shopping},
		{"other", in.Other},
	}
	for _, f := range fields {
		if f.m.IsNegative() {
			return Validationf("%s cannot be negative", f.name)
		}
	}
	return nil
}

// NewBudgetSnapshot computes totals for a submission.
func NewBudgetSnapshot(ownerID string, in BudgetInput) (BudgetSnapshot, error) {
	if strings.TrimSpace(ownerID) == "" {
		return BudgetSnapshot{}, ErrMissingOwner
	}
	if err := in.Validate(); err != nil {
		return BudgetSnapshot{}, err
	}
	total := in.Rent.Add(in.Shopping).Add(in.Other)
	return BudgetSnapshot{
		OwnerID:       ownerID,
		Income:        in.Income,
		Rent:          in.Rent,
		Shopping:      in.Shopping,
		Other:         in.Other,
		TotalExpenses: total,
		Savings:       in.Income.Sub(total),
	}, nil
}

// Transactions returns the ledger entries a snapshot materializes, dated on
// the given day. Zero-amount categories produce no entry. The entries are not
// linked to any wallet.
func (s BudgetSnapshot) Transactions(on Date) []Transaction {
	lines := []struct {
		amount   Money
		category string
		typ      TransactionType
		desc     string
	}{
		{s.Income, CategoryIncome, Income, "Monthly income"},
		{s.Rent, CategoryHousing, Expense, "Rent"},
		{s.Shopping, CategoryShopping, Expense, "Shopping"},
		{s.Other, CategoryOther, Expense, "Other expenses"},
	}

	var txs []Transaction
	for _, l := range lines {
		if !l.amount.IsPositive() {
			continue
		}
		txs = append(txs, Transaction{
			OwnerID:     s.OwnerID,
			Amount:      l.amount,
			Category:    l.category,
			Type:        l.typ,
			Description: l.desc,
			Date:        on,
		})
	}
	return txs
}
