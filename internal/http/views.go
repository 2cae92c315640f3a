package http

import (
	"time"

	"carteira/internal/core"
	"carteira/internal/services"
)

// Request bodies.

type (
	transactionRequest struct {
		WalletID       string               `json:"wallet_id"`
		ToWalletID     string               `json:"to_wallet_id"`
		GoalID         string               `json:"goal_id"`
		Amount         core.Money           `json:"amount"`
		Category       string               `json:"category"`
		Type           core.TransactionType `json:"type"`
		Description    string               `json:"description"`
		Date           *core.Date           `json:"date"`
		IdempotencyKey string               `json:"idempotency_key"`
	}

	transactionPatchRequest struct {
		Amount      *core.Money `json:"amount"`
		Category    *string     `json:"category"`
		Description *string     `json:"description"`
		Date        *core.Date  `json:"date"`
	}

	walletRequest struct {
		Name           string          `json:"name"`
		Type           core.WalletType `json:"type"`
		Currency       string          `json:"currency"`
		OpeningBalance core.Money      `json:"opening_balance"`
	}

	balanceRequest struct {
		Balance *core.Money `json:"balance"`
	}

	goalRequest struct {
		Title            string         `json:"title"`
		TargetAmount     core.Money     `json:"target_amount"`
		TargetDate       *core.Date     `json:"target_date"`
		Frequency        core.Frequency `json:"frequency"`
		AutoContribution core.Money     `json:"auto_contribution"`
	}

	goalPatchRequest struct {
		Title            *string         `json:"title"`
		TargetAmount     *core.Money     `json:"target_amount"`
		TargetDate       *core.Date      `json:"target_date"`
		ClearTargetDate  bool            `json:"clear_target_date"`
		Frequency        *core.Frequency `json:"frequency"`
		AutoContribution *core.Money     `json:"auto_contribution"`
	}

	contributionRequest struct {
		Amount core.Money `json:"amount"`
	}

	budgetRequest struct {
		Income   *core.Money `json:"income"`
		Rent     *core.Money `json:"rent"`
		Shopping *core.Money `json:"shopping"`
		Other    *core.Money `json:"other"`
	}
)

// input leaves Date zero when absent so the service applies its own clock.
func (r transactionRequest) input() services.TransactionInput {
	var date core.Date
	if r.Date != nil {
		date = *r.Date
	}
	return services.TransactionInput{
		WalletID:       sanitizeInput(r.WalletID),
		ToWalletID:     sanitizeInput(r.ToWalletID),
		GoalID:         sanitizeInput(r.GoalID),
		Amount:         r.Amount,
		Category:       sanitizeInput(r.Category),
		Type:           r.Type,
		Description:    sanitizeInput(r.Description),
		Date:           date,
		IdempotencyKey: sanitizeInput(r.IdempotencyKey),
	}
}

func (r transactionPatchRequest) patch() services.TransactionPatch {
	return services.TransactionPatch{
		Amount:      r.Amount,
		Category:    optionalString(r.Category),
		Description: optionalString(r.Description),
		Date:        r.Date,
	}
}

func (r walletRequest) input() services.WalletInput {
	return services.WalletInput{
		Name:           sanitizeInput(r.Name),
		Type:           r.Type,
		Currency:       sanitizeInput(r.Currency),
		OpeningBalance: r.OpeningBalance,
	}
}

func (r goalRequest) input() services.GoalInput {
	return services.GoalInput{
		Title:            sanitizeInput(r.Title),
		TargetAmount:     r.TargetAmount,
		TargetDate:       r.TargetDate,
		Frequency:        r.Frequency,
		AutoContribution: r.AutoContribution,
	}
}

func (r goalPatchRequest) patch() services.GoalPatch {
	return services.GoalPatch{
		Title:            optionalString(r.Title),
		TargetAmount:     r.TargetAmount,
		TargetDate:       r.TargetDate,
		ClearTargetDate:  r.ClearTargetDate,
		Frequency:        r.Frequency,
		AutoContribution: r.AutoContribution,
	}
}

// input requires income, rent and shopping; other defaults to zero.
func (r budgetRequest) input() (core.BudgetInput, error) {
	required := []struct {
		name string
		m    *core.Money
	}{
		{"income", r.Income},
		{"rent", r.Rent},
		{"shopping", r.Shopping},
	}
	for _, f := range required {
		if f.m == nil {
			return core.BudgetInput{}, core.Validationf("%s is required", f.name)
		}
	}

	in := core.BudgetInput{
		Income:   *r.Income,
		Rent:     *r.Rent,
		Shopping: *r.Shopping,
	}
	if r.Other != nil {
		in.Other = *r.Other
	}
	return in, nil
}

// Response views.

type (
	walletView struct {
		ID             string          `json:"id"`
		Name           string          `json:"name"`
		Type           core.WalletType `json:"type"`
		Balance        core.Money      `json:"balance"`
		OpeningBalance core.Money      `json:"opening_balance"`
		Currency       string          `json:"currency"`
		IsPrimary      bool            `json:"is_primary"`
		CreatedAt      time.Time       `json:"created_at"`
		UpdatedAt      time.Time       `json:"updated_at"`
	}

	goalView struct {
		ID                     string         `json:"id"`
		Title                  string         `json:"title"`
		TargetAmount           core.Money     `json:"target_amount"`
		CurrentAmount          core.Money     `json:"current_amount"`
		TargetDate             *core.Date     `json:"target_date,omitempty"`
		Frequency              core.Frequency `json:"frequency,omitempty"`
		AutoContribution       core.Money     `json:"auto_contribution"`
		Active                 bool           `json:"active"`
		Completed              bool           `json:"completed"`
		LastAutoContributionAt *time.Time     `json:"last_auto_contribution_at,omitempty"`
		CreatedAt              time.Time      `json:"created_at"`
		UpdatedAt              time.Time      `json:"updated_at"`
	}

	goalProgressView struct {
		Goal           goalView `json:"goal"`
		Percent        float64  `json:"percent"`
		MonthsToTarget int      `json:"months_to_target"`
		Reachable      bool     `json:"reachable"`
		Completed      bool     `json:"completed"`
	}

	transactionView struct {
		ID             string               `json:"id"`
		WalletID       string               `json:"wallet_id,omitempty"`
		ToWalletID     string               `json:"to_wallet_id,omitempty"`
		GoalID         string               `json:"goal_id,omitempty"`
		Amount         core.Money           `json:"amount"`
		Category       string               `json:"category"`
		Type           core.TransactionType `json:"type"`
		Description    string               `json:"description,omitempty"`
		Date           core.Date            `json:"date"`
		IdempotencyKey string               `json:"idempotency_key,omitempty"`
		CreatedAt      time.Time            `json:"created_at"`
	}

	snapshotView struct {
		ID            string     `json:"id"`
		Income        core.Money `json:"income"`
		Rent          core.Money `json:"rent"`
		Shopping      core.Money `json:"shopping"`
		Other         core.Money `json:"other"`
		TotalExpenses core.Money `json:"total_expenses"`
		Savings       core.Money `json:"savings"`
		CreatedAt     time.Time  `json:"created_at"`
	}

	budgetResultView struct {
		Snapshot      snapshotView      `json:"snapshot"`
		Transactions  []transactionView `json:"transactions"`
		PrimaryWallet walletView        `json:"primary_wallet"`
	}

	walletsView struct {
		Wallets      []walletView `json:"wallets"`
		TotalBalance core.Money   `json:"total_balance"`
	}

	reconciliationView struct {
		WalletID       string     `json:"wallet_id"`
		Stored         core.Money `json:"stored"`
		OpeningBalance core.Money `json:"opening_balance"`
		Postings       core.Money `json:"postings"`
		Derived        core.Money `json:"derived"`
		Consistent     bool       `json:"consistent"`
	}

	monthSummaryView struct {
		From     core.Date  `json:"from"`
		To       core.Date  `json:"to"`
		Income   core.Money `json:"income"`
		Expenses core.Money `json:"expenses"`
		Balance  core.Money `json:"balance"`
	}

	categoryAmountView struct {
		Category string               `json:"category"`
		Type     core.TransactionType `json:"type"`
		Amount   core.Money           `json:"amount"`
	}

	monthlyReportView struct {
		Summary    monthSummaryView     `json:"summary"`
		Categories []categoryAmountView `json:"categories"`
	}

	goalsStatsView struct {
		Total       int        `json:"total"`
		Active      int        `json:"active"`
		Completed   int        `json:"completed"`
		TotalSaved  core.Money `json:"total_saved"`
		TotalTarget core.Money `json:"total_target"`
	}

	dashboardView struct {
		TotalBalance       core.Money         `json:"total_balance"`
		Month              monthSummaryView   `json:"month"`
		ActiveGoals        []goalProgressView `json:"active_goals"`
		RecentTransactions []transactionView  `json:"recent_transactions"`
		LatestSnapshot     *snapshotView      `json:"latest_snapshot"`
	}

	deletedView struct {
		ID      string `json:"id"`
		Deleted bool   `json:"deleted"`
	}
)

func newWalletView(w core.Wallet) walletView {
	return walletView{
		ID:             w.ID,
		Name:           w.Name,
		Type:           w.Type,
		Balance:        w.Balance,
		OpeningBalance: w.OpeningBalance,
		Currency:       w.Currency,
		IsPrimary:      w.IsPrimary,
		CreatedAt:      w.CreatedAt,
		UpdatedAt:      w.UpdatedAt,
	}
}

func newWalletViews(ws []core.Wallet) []walletView {
	out := make([]walletView, 0, len(ws))
	for _, w := range ws {
		out = append(out, newWalletView(w))
	}
	return out
}

func newGoalView(g core.Goal) goalView {
	return goalView{
		ID:                     g.ID,
		Title:                  g.Title,
		TargetAmount:           g.TargetAmount,
		CurrentAmount:          g.CurrentAmount,
		TargetDate:             g.TargetDate,
		Frequency:              g.Frequency,
		AutoContribution:       g.AutoContribution,
		Active:                 g.Active,
		Completed:              g.Completed(),
		LastAutoContributionAt: g.LastAutoContributionAt,
		CreatedAt:              g.CreatedAt,
		UpdatedAt:              g.UpdatedAt,
	}
}

func newGoalViews(gs []core.Goal) []goalView {
	out := make([]goalView, 0, len(gs))
	for _, g := range gs {
		out = append(out, newGoalView(g))
	}
	return out
}

func newGoalProgressView(p core.GoalProgress) goalProgressView {
	return goalProgressView{
		Goal:           newGoalView(p.Goal),
		Percent:        p.Percent,
		MonthsToTarget: p.MonthsToTarget,
		Reachable:      p.Reachable,
		Completed:      p.Completed,
	}
}

func newGoalProgressViews(ps []core.GoalProgress) []goalProgressView {
	out := make([]goalProgressView, 0, len(ps))
	for _, p := range ps {
		out = append(out, newGoalProgressView(p))
	}
	return out
}

func newTransactionView(t core.Transaction) transactionView {
	return transactionView{
		ID:             t.ID,
		WalletID:       t.WalletID,
		ToWalletID:     t.ToWalletID,
		GoalID:         t.GoalID,
		Amount:         t.Amount,
		Category:       t.Category,
		Type:           t.Type,
		Description:    t.Description,
		Date:           t.Date,
		IdempotencyKey: t.IdempotencyKey,
		CreatedAt:      t.CreatedAt,
	}
}

func newTransactionViews(ts []core.Transaction) []transactionView {
	out := make([]transactionView, 0, len(ts))
	for _, t := range ts {
		out = append(out, newTransactionView(t))
	}
	return out
}

func newSnapshotView(s core.BudgetSnapshot) snapshotView {
	return snapshotView{
		ID:            s.ID,
		Income:        s.Income,
		Rent:          s.Rent,
		Shopping:      s.Shopping,
		Other:         s.Other,
		TotalExpenses: s.TotalExpenses,
		Savings:       s.Savings,
		CreatedAt:     s.CreatedAt,
	}
}

func newBudgetResultView(r services.BudgetResult) budgetResultView {
	return budgetResultView{
		Snapshot:      newSnapshotView(r.Snapshot),
		Transactions:  newTransactionViews(r.Transactions),
		PrimaryWallet: newWalletView(r.PrimaryWallet),
	}
}

func newReconciliationView(r core.WalletReconciliation) reconciliationView {
	return reconciliationView{
		WalletID:       r.WalletID,
		Stored:         r.Stored,
		OpeningBalance: r.OpeningBalance,
		Postings:       r.Postings,
		Derived:        r.Derived,
		Consistent:     r.Consistent(),
	}
}

func newMonthSummaryView(s core.MonthSummary) monthSummaryView {
	return monthSummaryView{
		From:     s.From,
		To:       s.To,
		Income:   s.Income,
		Expenses: s.Expenses,
		Balance:  s.Balance,
	}
}

func newCategoryAmountViews(cs []core.CategoryAmount) []categoryAmountView {
	out := make([]categoryAmountView, 0, len(cs))
	for _, c := range cs {
		out = append(out, categoryAmountView{Category: c.Category, Type: c.Type, Amount: c.Amount})
	}
	return out
}

func newGoalsStatsView(s core.GoalsStats) goalsStatsView {
	return goalsStatsView{
		Total:       s.Total,
		Active:      s.Active,
		Completed:   s.Completed,
		TotalSaved:  s.TotalSaved,
		TotalTarget: s.TotalTarget,
	}
}

func newDashboardView(d core.Dashboard) dashboardView {
	v := dashboardView{
		TotalBalance:       d.TotalBalance,
		Month:              newMonthSummaryView(d.Month),
		ActiveGoals:        newGoalProgressViews(d.ActiveGoals),
		RecentTransactions: newTransactionViews(d.RecentTransactions),
	}
	if d.LatestSnapshot != nil {
		s := newSnapshotView(*d.LatestSnapshot)
		v.LatestSnapshot = &s
	}
	return v
}
