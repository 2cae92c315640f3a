package storage

import (
	"database/sql"
	"fmt"
	"time"

	"carteira/internal/core"
)

// dbTime scans timestamps from drivers that return time.Time (pgx) as well as
// those that hand back text (sqlite).
type dbTime struct {
	Time  time.Time
	Valid bool
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (t *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*t = dbTime{}
		return nil
	case time.Time:
		*t = dbTime{Time: v.UTC(), Valid: true}
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	}
	return fmt.Errorf("unsupported time value %T", src)
}

func (t *dbTime) parse(s string) error {
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = dbTime{Time: parsed.UTC(), Valid: true}
			return nil
		}
	}
	return fmt.Errorf("unparseable time %q", s)
}

func (t dbTime) ptr() *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// dbDate scans calendar dates stored as 'YYYY-MM-DD' text.
type dbDate struct {
	Date  core.Date
	Valid bool
}

func (d *dbDate) Scan(src any) error {
	var t dbTime
	if err := t.Scan(src); err != nil {
		return err
	}
	if !t.Valid {
		*d = dbDate{}
		return nil
	}
	*d = dbDate{Date: core.DateOf(t.Time), Valid: true}
	return nil
}

func (d dbDate) ptr() *core.Date {
	if !d.Valid {
		return nil
	}
	v := d.Date
	return &v
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullDate(d *core.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

type rowScanner interface {
	Scan(dest ...any) error
}

const walletColumns = `id, owner_id, name, type, balance, opening_balance, currency, is_primary, created_at, updated_at`

func scanWallet(r rowScanner) (core.Wallet, error) {
	var (
		w                core.Wallet
		typ              string
		created, updated dbTime
		balance, opening int64
	)
	if err := r.Scan(&w.ID, &w.OwnerID, &w.Name, &typ, &balance, &opening, &w.Currency, &w.IsPrimary, &created, &updated); err != nil {
		return core.Wallet{}, err
	}
	w.Type = core.WalletType(typ)
	w.Balance = core.Money{Cents: balance}
	w.OpeningBalance = core.Money{Cents: opening}
	w.CreatedAt = created.Time
	w.UpdatedAt = updated.Time
	return w, nil
}

const goalColumns = `id, owner_id, title, target_amount, current_amount, target_date, frequency, auto_contribution, is_active, last_auto_contribution_at, created_at, updated_at`

func scanGoal(r rowScanner) (core.Goal, error) {
	var (
		g                          core.Goal
		target, current, auto      int64
		targetDate                 dbDate
		frequency                  sql.NullString
		lastAuto, created, updated dbTime
	)
	if err := r.Scan(&g.ID, &g.OwnerID, &g.Title, &target, &current, &targetDate, &frequency, &auto, &g.Active, &lastAuto, &created, &updated); err != nil {
		return core.Goal{}, err
	}
	g.TargetAmount = core.Money{Cents: target}
	g.CurrentAmount = core.Money{Cents: current}
	g.AutoContribution = core.Money{Cents: auto}
	g.TargetDate = targetDate.ptr()
	g.Frequency = core.Frequency(frequency.String)
	g.LastAutoContributionAt = lastAuto.ptr()
	g.CreatedAt = created.Time
	g.UpdatedAt = updated.Time
	return g, nil
}

const transactionColumns = `id, owner_id, wallet_id, to_wallet_id, goal_id, amount, category, type, description, date, idempotency_key, created_at`

func scanTransaction(r rowScanner) (core.Transaction, error) {
	var (
		t                            core.Transaction
		wallet, toWallet, goal, idem sql.NullString
		amount                       int64
		typ                          string
		date                         dbDate
		created                      dbTime
	)
	if err := r.Scan(&t.ID, &t.OwnerID, &wallet, &toWallet, &goal, &amount, &t.Category, &typ, &t.Description, &date, &idem, &created); err != nil {
		return core.Transaction{}, err
	}
	t.WalletID = wallet.String
	t.ToWalletID = toWallet.String
	t.GoalID = goal.String
	t.Amount = core.Money{Cents: amount}
	t.Type = core.TransactionType(typ)
	t.Date = date.Date
	t.IdempotencyKey = idem.String
	t.CreatedAt = created.Time
	return t, nil
}

const snapshotColumns = `id, owner_id, monthly_income, rent_expense, shopping_expense, other_expenses, total_expenses, savings, created_at`

func scanSnapshot(r rowScanner) (core.BudgetSnapshot, error) {
	var (
		s                                             core.BudgetSnapshot
		income, rent, shopping, other, total, savings int64
		created                                       dbTime
	)
	if err := r.Scan(&s.ID, &s.OwnerID, &income, &rent, &shopping, &other, &total, &savings, &created); err != nil {
		return core.BudgetSnapshot{}, err
	}
	s.Income = core.Money{Cents: income}
	s.Rent = core.Money{Cents: rent}
	s.Shopping = core.Money{Cents: shopping}
	s.Other = core.Money{Cents: other}
	s.TotalExpenses = core.Money{Cents: total}
	s.Savings = core.Money{Cents: savings}
	s.CreatedAt = created.Time
	return s, nil
}
