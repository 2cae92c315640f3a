package core

import (
	"strings"
	"time"
)

const (
	Cash       WalletType = "cash"
	Card       WalletType = "card"
	Investment WalletType = "investment"
	Reserve    WalletType = "reserve"
)

const (
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	OneTime Frequency = "one-time"
)

const (
	Income   TransactionType = "income"
	Expense  TransactionType = "expense"
	Transfer TransactionType = "transfer"
)

const (
	maxNameLength        = 100
	maxCategoryLength    = 100
	maxDescriptionLength = 200
)

type (
	WalletType      string
	Frequency       string
	TransactionType string

	Wallet struct {
		ID             string
		OwnerID        string
		Name           string
		Type           WalletType
		Balance        Money
		OpeningBalance Money // Implicit zero-dated posting; absorbs balance overrides
		Currency       string
		IsPrimary      bool
		CreatedAt      time.Time
		UpdatedAt      time.Time
	}

	Goal struct {
		ID                     string
		OwnerID                string
		Title                  string
		TargetAmount           Money
		CurrentAmount          Money
		TargetDate             *Date
		Frequency              Frequency // empty when not set
		AutoContribution       Money
		Active                 bool
		LastAutoContributionAt *time.Time
		CreatedAt              time.Time
		UpdatedAt              time.Time
	}

	Transaction struct {
		ID             string
		OwnerID        string
		WalletID       string // source wallet for transfers; empty when unlinked
		ToWalletID     string // destination wallet, transfers only
		GoalID         string
		Amount         Money
		Category       string
		Type           TransactionType
		Description    string
		Date           Date
		IdempotencyKey string
		CreatedAt      time.Time
	}
)

// Valid reports whether the wallet type is one of the known kinds.
func (t WalletType) Valid() bool {
	switch t {
	case Cash, Card, Investment, Reserve:
		return true
	}
	return false
}

// Valid reports whether f is a known contribution frequency. Empty is valid.
func (f Frequency) Valid() bool {
	switch f {
	case "", Weekly, Monthly, OneTime:
		return true
	}
	return false
}

func (t TransactionType) Valid() bool {
	switch t {
	case Income, Expense, Transfer:
		return true
	}
	return false
}

func (w Wallet) Validate() error {
	if strings.TrimSpace(w.OwnerID) == "" {
		return ErrMissingOwner
	}
	if strings.TrimSpace(w.Name) == "" {
		return Validationf("wallet name is required")
	}
	if len(w.Name) > maxNameLength {
		return Validationf("wallet name too long (max %d characters)", maxNameLength)
	}
	if !w.Type.Valid() {
		return Validationf("invalid wallet type %q", w.Type)
	}
	if len(strings.TrimSpace(w.Currency)) != 3 {
		return Validationf("invalid currency %q", w.Currency)
	}
	return nil
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.OwnerID) == "" {
		return ErrMissingOwner
	}
	if strings.TrimSpace(g.Title) == "" {
		return Validationf("goal title is required")
	}
	if len(g.Title) > maxNameLength {
		return Validationf("goal title too long (max %d characters)", maxNameLength)
	}
	if !g.TargetAmount.IsPositive() {
		return Validationf("goal target amount must be positive")
	}
	if g.CurrentAmount.IsNegative() {
		return Validationf("goal current amount cannot be negative")
	}
	if !g.Frequency.Valid() {
		return Validationf("invalid contribution frequency %q", g.Frequency)
	}
	if g.AutoContribution.IsNegative() {
		return Validationf("auto contribution cannot be negative")
	}
	if g.TargetDate != nil {
		if err := g.TargetDate.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Completed is derived: a goal is done once current reaches target.
func (g Goal) Completed() bool {
	return g.CurrentAmount.Cents >= g.TargetAmount.Cents
}

// Validate checks the shape of a transaction. Ownership and the state of the
// referenced wallets and goal are checked by the ledger against the store.
func (t Transaction) Validate() error {
	if err := t.ValidateDetails(); err != nil {
		return err
	}
	if !t.Type.Valid() {
		return Validationf("invalid transaction type %q", t.Type)
	}

	switch t.Type {
	case Transfer:
		if t.WalletID == "" || t.ToWalletID == "" {
			return Validationf("transfer requires source and destination wallets")
		}
		if t.WalletID == t.ToWalletID {
			return Validationf("transfer source and destination must differ")
		}
	case Expense:
		if t.GoalID != "" {
			return Validationf("expense transactions cannot be linked to a goal")
		}
		fallthrough
	default:
		if t.ToWalletID != "" {
			return Validationf("destination wallet is only allowed on transfers")
		}
	}
	return nil
}

// ValidateDetails checks the editable fields only: amount, category,
// description and date.
func (t Transaction) ValidateDetails() error {
	if strings.TrimSpace(t.OwnerID) == "" {
		return ErrMissingOwner
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if len(t.Category) > maxCategoryLength {
		return Validationf("category too long (max %d characters)", maxCategoryLength)
	}
	if len(t.Description) > maxDescriptionLength {
		return Validationf("description too long (max %d characters)", maxDescriptionLength)
	}
	return t.Date.Validate()
}

// WalletEffects returns the signed balance change per wallet id.
func (t Transaction) WalletEffects() map[string]int64 {
	effects := make(map[string]int64, 2)
	switch t.Type {
	case Income:
		if t.WalletID != "" {
			effects[t.WalletID] += t.Amount.Cents
		}
	case Expense:
		if t.WalletID != "" {
			effects[t.WalletID] -= t.Amount.Cents
		}
	case Transfer:
		if t.WalletID != "" {
			effects[t.WalletID] -= t.Amount.Cents
		}
		if t.ToWalletID != "" {
			effects[t.ToWalletID] += t.Amount.Cents
		}
	}
	return effects
}

// GoalEffect returns the signed change on the linked goal. Expenses never
// move a goal.
func (t Transaction) GoalEffect() int64 {
	if t.GoalID == "" || t.Type == Expense {
		return 0
	}
	return t.Amount.Cents
}

// WalletIDs returns the distinct wallets referenced by the transaction.
func (t Transaction) WalletIDs() []string {
	var ids []string
	if t.WalletID != "" {
		ids = append(ids, t.WalletID)
	}
	if t.ToWalletID != "" && t.ToWalletID != t.WalletID {
		ids = append(ids, t.ToWalletID)
	}
	return ids
}
