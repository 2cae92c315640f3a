package core

import (
	"math"

	"github.com/shopspring/decimal"
)

type (
	// MonthSummary aggregates income and expense over a date range.
	// Transfers are not counted.
	MonthSummary struct {
		From     Date
		To       Date
		Income   Money
		Expenses Money
		Balance  Money
	}

	GoalsStats struct {
		Total       int
		Active      int
		Completed   int
		TotalSaved  Money
		TotalTarget Money
	}

	GoalProgress struct {
		Goal           Goal
		Percent        float64
		MonthsToTarget int
		Reachable      bool
		Completed      bool
	}

	// CategoryAmount is an amount aggregated by category name.
	CategoryAmount struct {
		Category string
		Type     TransactionType
		Amount   Money
	}

	// WalletReconciliation compares a stored balance with the balance derived
	// from the opening balance and the transaction log.
	WalletReconciliation struct {
		WalletID       string
		Stored         Money
		OpeningBalance Money
		Postings       Money
		Derived        Money
	}

	Dashboard struct {
		TotalBalance       Money
		Month              MonthSummary
		ActiveGoals        []GoalProgress
		RecentTransactions []Transaction
		LatestSnapshot     *BudgetSnapshot
	}
)

func NewMonthSummary(from, to Date, income, expenses Money) MonthSummary {
	return MonthSummary{
		From:     from,
		To:       to,
		Income:   income,
		Expenses: expenses,
		Balance:  income.Sub(expenses),
	}
}

func (r WalletReconciliation) Consistent() bool {
	return r.Stored == r.Derived
}

// ProgressPercent returns current/target as a percentage capped at 100.
// A non-positive target yields 0.
func ProgressPercent(current, target Money) float64 {
	if target.Cents <= 0 {
		return 0
	}
	if current.Cents <= 0 {
		return 0
	}
	pct := decimal.NewFromInt(current.Cents).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(target.Cents))
	f, _ := pct.Float64()
	return math.Min(f, 100)
}

// MonthsToTarget returns how many whole months of contributions are needed to
// reach target. It reports false when the target is unreachable because the
// monthly contribution is not positive.
func MonthsToTarget(current, target, monthly Money) (int, bool) {
	remaining := target.Cents - current.Cents
	if remaining <= 0 {
		return 0, true
	}
	if monthly.Cents <= 0 {
		return 0, false
	}
	months := remaining / monthly.Cents
	if remaining%monthly.Cents != 0 {
		months++
	}
	return int(months), true
}

// MonthlyEquivalent converts an auto contribution into a per-month amount.
func MonthlyEquivalent(g Goal) Money {
	switch g.Frequency {
	case Weekly:
		// 52 weeks over 12 months, rounded down to the cent
		return Money{Cents: g.AutoContribution.Cents * 52 / 12}
	case Monthly:
		return g.AutoContribution
	}
	return Money{}
}

// NewGoalProgress derives progress figures for a goal.
func NewGoalProgress(g Goal) GoalProgress {
	months, ok := MonthsToTarget(g.CurrentAmount, g.TargetAmount, MonthlyEquivalent(g))
	return GoalProgress{
		Goal:           g,
		Percent:        ProgressPercent(g.CurrentAmount, g.TargetAmount),
		MonthsToTarget: months,
		Reachable:      ok,
		Completed:      g.Completed(),
	}
}

// NewGoalsStats aggregates over every goal passed in, active or not.
func NewGoalsStats(goals []Goal) GoalsStats {
	var s GoalsStats
	for _, g := range goals {
		s.Total++
		if g.Active {
			s.Active++
		}
		if g.Completed() {
			s.Completed++
		}
		s.TotalSaved = s.TotalSaved.Add(g.CurrentAmount)
		s.TotalTarget = s.TotalTarget.Add(g.TargetAmount)
	}
	return s
}
