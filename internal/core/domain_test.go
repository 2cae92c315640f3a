package core

import (
	"errors"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false},
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestDateMonthBounds(t *testing.T) {
	first, last := NewDate(2024, 2, 17).MonthBounds()
	if first.String() != "2024-02-01" || last.String() != "2024-02-29" {
		t.Errorf("MonthBounds() = %s..%s, want 2024-02-01..2024-02-29", first, last)
	}
}

func validTx() Transaction {
	return Transaction{
		OwnerID:  "u1",
		WalletID: "w1",
		Amount:   Cents(1000),
		Category: "Food",
		Type:     Expense,
		Date:     NewDate(2025, 3, 1),
	}
}

func TestTransactionValidate(t *testing.T) {
	if err := validTx().Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Transaction)
		kind   Kind
	}{
		{"missing owner", func(tx *Transaction) { tx.OwnerID = "" }, KindValidation},
		{"zero amount", func(tx *Transaction) { tx.Amount = Cents(0) }, KindValidation},
		{"negative amount", func(tx *Transaction) { tx.Amount = Cents(-5) }, KindValidation},
		{"empty category", func(tx *Transaction) { tx.Category = "  " }, KindValidation},
		{"bad type", func(tx *Transaction) { tx.Type = "refund" }, KindValidation},
		{"zero date", func(tx *Transaction) { tx.Date = Date{} }, KindValidation},
		{"expense with goal", func(tx *Transaction) { tx.GoalID = "g1" }, KindValidation},
		{"income with destination", func(tx *Transaction) {
			tx.Type = Income
			tx.ToWalletID = "w2"
		}, KindValidation},
		{"transfer without destination", func(tx *Transaction) { tx.Type = Transfer }, KindValidation},
		{"transfer to same wallet", func(tx *Transaction) {
			tx.Type = Transfer
			tx.ToWalletID = "w1"
		}, KindValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tx := validTx()
			tc.mutate(&tx)
			err := tx.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if got := KindOf(err); got != tc.kind {
				t.Errorf("KindOf() = %q, want %q", got, tc.kind)
			}
		})
	}
}

func TestTransactionEffects(t *testing.T) {
	cases := []struct {
		name    string
		tx      Transaction
		wallets map[string]int64
		goal    int64
	}{
		{
			name:    "income credits wallet and goal",
			tx:      Transaction{Type: Income, WalletID: "w1", GoalID: "g1", Amount: Cents(500)},
			wallets: map[string]int64{"w1": 500},
			goal:    500,
		},
		{
			name:    "expense debits wallet",
			tx:      Transaction{Type: Expense, WalletID: "w1", Amount: Cents(300)},
			wallets: map[string]int64{"w1": -300},
		},
		{
			name:    "transfer moves between wallets",
			tx:      Transaction{Type: Transfer, WalletID: "w1", ToWalletID: "w2", GoalID: "g1", Amount: Cents(200)},
			wallets: map[string]int64{"w1": -200, "w2": 200},
			goal:    200,
		},
		{
			name:    "unlinked income has no wallet effect",
			tx:      Transaction{Type: Income, Amount: Cents(100)},
			wallets: map[string]int64{},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.tx.WalletEffects()
			if len(got) != len(tc.wallets) {
				t.Fatalf("WalletEffects() = %v, want %v", got, tc.wallets)
			}
			for id, want := range tc.wallets {
				if got[id] != want {
					t.Errorf("WalletEffects()[%s] = %d, want %d", id, got[id], want)
				}
			}
			if g := tc.tx.GoalEffect(); g != tc.goal {
				t.Errorf("GoalEffect() = %d, want %d", g, tc.goal)
			}
		})
	}
}

func TestGoalValidate(t *testing.T) {
	good := Goal{OwnerID: "u1", Title: "Trip", TargetAmount: Cents(1000), Frequency: Monthly}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Goal{
		{OwnerID: "u1", Title: "", TargetAmount: Cents(1000)},
		{OwnerID: "u1", Title: "Trip", TargetAmount: Cents(0)},
		{OwnerID: "u1", Title: "Trip", TargetAmount: Cents(10), CurrentAmount: Cents(-1)},
		{OwnerID: "u1", Title: "Trip", TargetAmount: Cents(10), Frequency: "daily"},
		{OwnerID: "", Title: "Trip", TargetAmount: Cents(10)},
	}
	for i, g := range bads {
		if err := g.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestWalletValidate(t *testing.T) {
	good := Wallet{OwnerID: "u1", Name: "Cash", Type: Cash, Currency: "BRL"}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bad := good
	bad.Type = "crypto"
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for unknown wallet type")
	}
}

func TestErrorKinds(t *testing.T) {
	wrapped := errorsJoin("apply", ErrGoalNotFound)
	if !errors.Is(wrapped, ErrGoalNotFound) {
		t.Error("errors.Is should match the sentinel through wrapping")
	}
	if KindOf(wrapped) != KindNotFound {
		t.Errorf("KindOf() = %q, want %q", KindOf(wrapped), KindNotFound)
	}
	if KindOf(errors.New("plain")) != "" {
		t.Error("untagged errors have no kind")
	}
	if !IsKind(Unavailable("read", errors.New("conn refused")), KindStoreUnavailable) {
		t.Error("Unavailable should be store_unavailable")
	}
	if errors.Is(ErrGoalNotFound, ErrWalletNotFound) {
		t.Error("different sentinels must not match")
	}
}

func errorsJoin(op string, err error) error {
	return &Error{Kind: KindOf(err), Op: op, Message: Message(err), Err: err}
}
