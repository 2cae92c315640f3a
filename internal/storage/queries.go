package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"carteira/internal/core"
)

// queries runs the ledger statements against a *sql.DB or a *sql.Tx.
type queries struct {
	q       querier
	dialect Dialect
}

func (s *queries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.q.ExecContext(ctx, s.dialect.rebind(query), args...)
}

func (s *queries) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.q.QueryContext(ctx, s.dialect.rebind(query), args...)
}

func (s *queries) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.q.QueryRowContext(ctx, s.dialect.rebind(query), args...)
}

// mustAffect turns a zero-row update into the given not-found error.
func mustAffect(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// Wallets

func (s *queries) GetWallet(ctx context.Context, ownerID, id string) (core.Wallet, error) {
	w, err := scanWallet(s.queryRow(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE id = ? AND owner_id = ?`, id, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Wallet{}, core.ErrWalletNotFound
	}
	return w, storeErr("get wallet", err)
}

func (s *queries) ListWallets(ctx context.Context, ownerID string) ([]core.Wallet, error) {
	rows, err := s.query(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE owner_id = ? ORDER BY created_at, name`, ownerID)
	if err != nil {
		return nil, storeErr("list wallets", err)
	}
	defer rows.Close()

	var wallets []core.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, storeErr("scan wallet", err)
		}
		wallets = append(wallets, w)
	}
	return wallets, storeErr("list wallets", rows.Err())
}

func (s *queries) FindPrimaryWallet(ctx context.Context, ownerID string) (core.Wallet, error) {
	w, err := scanWallet(s.queryRow(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE owner_id = ? AND is_primary = ?`, ownerID, true))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Wallet{}, core.ErrWalletNotFound
	}
	return w, storeErr("find primary wallet", err)
}

func (s *queries) InsertWallet(ctx context.Context, w core.Wallet) error {
	_, err := s.exec(ctx,
		`INSERT INTO wallets (`+walletColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.OwnerID, w.Name, string(w.Type), w.Balance.Cents, w.OpeningBalance.Cents,
		w.Currency, w.IsPrimary, w.CreatedAt.UTC(), w.UpdatedAt.UTC())
	return storeErr("insert wallet", err)
}

func (s *queries) DeleteWallet(ctx context.Context, ownerID, id string) error {
	if _, err := s.exec(ctx,
		`UPDATE transactions SET wallet_id = NULL WHERE owner_id = ? AND wallet_id = ?`, ownerID, id); err != nil {
		return storeErr("detach wallet transactions", err)
	}
	if _, err := s.exec(ctx,
		`UPDATE transactions SET to_wallet_id = NULL WHERE owner_id = ? AND to_wallet_id = ?`, ownerID, id); err != nil {
		return storeErr("detach wallet transfers", err)
	}
	res, err := s.exec(ctx, `DELETE FROM wallets WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return storeErr("delete wallet", err)
	}
	return storeErr("delete wallet", mustAffect(res, core.ErrWalletNotFound))
}

func (s *queries) AdjustWalletBalance(ctx context.Context, ownerID, id string, delta int64) (core.Money, error) {
	var (
		balance sql.NullInt64
		err     error
	)
	if s.dialect == Postgres {
		err = s.queryRow(ctx,
			`SELECT update_wallet_balance(id, ?) FROM wallets WHERE id = ? AND owner_id = ?`,
			delta, id, ownerID).Scan(&balance)
	} else {
		err = s.queryRow(ctx,
			`UPDATE wallets SET balance = balance + ?, updated_at = ? WHERE id = ? AND owner_id = ? RETURNING balance`,
			delta, time.Now().UTC(), id, ownerID).Scan(&balance)
	}
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !balance.Valid) {
		return core.Money{}, core.ErrWalletNotFound
	}
	if err != nil {
		return core.Money{}, storeErr("adjust wallet balance", err)
	}
	return core.Money{Cents: balance.Int64}, nil
}

func (s *queries) SetWalletBalance(ctx context.Context, ownerID, id string, balance core.Money) error {
	res, err := s.exec(ctx,
		`UPDATE wallets SET opening_balance = opening_balance + (? - balance), balance = ?, updated_at = ?
		 WHERE id = ? AND owner_id = ?`,
		balance.Cents, balance.Cents, time.Now().UTC(), id, ownerID)
	if err != nil {
		return storeErr("set wallet balance", err)
	}
	return storeErr("set wallet balance", mustAffect(res, core.ErrWalletNotFound))
}

func (s *queries) SumWalletEffects(ctx context.Context, ownerID, walletID string) (core.Money, error) {
	var total int64
	err := s.queryRow(ctx, `
		SELECT CAST(COALESCE(SUM(
			CASE
				WHEN wallet_id = ? AND type = 'income' THEN amount
				WHEN wallet_id = ? AND type IN ('expense', 'transfer') THEN -amount
				ELSE 0
			END +
			CASE WHEN to_wallet_id = ? AND type = 'transfer' THEN amount ELSE 0 END
		), 0) AS BIGINT)
		FROM transactions
		WHERE owner_id = ? AND (wallet_id = ? OR to_wallet_id = ?)`,
		walletID, walletID, walletID, ownerID, walletID, walletID).Scan(&total)
	if err != nil {
		return core.Money{}, storeErr("sum wallet effects", err)
	}
	return core.Money{Cents: total}, nil
}

// Goals

func (s *queries) GetGoal(ctx context.Context, ownerID, id string) (core.Goal, error) {
	return s.getGoal(ctx, ownerID, id, "")
}

func (s *queries) GetGoalForUpdate(ctx context.Context, ownerID, id string) (core.Goal, error) {
	return s.getGoal(ctx, ownerID, id, s.dialect.lockClause())
}

func (s *queries) getGoal(ctx context.Context, ownerID, id, lock string) (core.Goal, error) {
	g, err := scanGoal(s.queryRow(ctx,
		`SELECT `+goalColumns+` FROM goals WHERE id = ? AND owner_id = ?`+lock, id, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Goal{}, core.ErrGoalNotFound
	}
	return g, storeErr("get goal", err)
}

func (s *queries) ListGoals(ctx context.Context, ownerID string, activeOnly bool) ([]core.Goal, error) {
	query := `SELECT ` + goalColumns + ` FROM goals WHERE owner_id = ?`
	args := []any{ownerID}
	if activeOnly {
		query += ` AND is_active = ?`
		args = append(args, true)
	}
	query += ` ORDER BY created_at, title`
	return s.listGoals(ctx, query, args...)
}

func (s *queries) ListAutoContributionGoals(ctx context.Context) ([]core.Goal, error) {
	return s.listGoals(ctx,
		`SELECT `+goalColumns+` FROM goals
		 WHERE is_active = ? AND auto_contribution > 0 AND frequency IN ('weekly', 'monthly', 'one-time')
		 ORDER BY owner_id, created_at`, true)
}

func (s *queries) listGoals(ctx context.Context, query string, args ...any) ([]core.Goal, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list goals", err)
	}
	defer rows.Close()

	var goals []core.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, storeErr("scan goal", err)
		}
		goals = append(goals, g)
	}
	return goals, storeErr("list goals", rows.Err())
}

func (s *queries) InsertGoal(ctx context.Context, g core.Goal) error {
	_, err := s.exec(ctx,
		`INSERT INTO goals (`+goalColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.OwnerID, g.Title, g.TargetAmount.Cents, g.CurrentAmount.Cents, nullDate(g.TargetDate),
		nullString(string(g.Frequency)), g.AutoContribution.Cents, g.Active,
		nullTime(g.LastAutoContributionAt), g.CreatedAt.UTC(), g.UpdatedAt.UTC())
	return storeErr("insert goal", err)
}

// UpdateGoalDetails rewrites the descriptive fields. Progress is only ever
// moved by AdjustGoalProgress.
func (s *queries) UpdateGoalDetails(ctx context.Context, g core.Goal) error {
	res, err := s.exec(ctx,
		`UPDATE goals SET title = ?, target_amount = ?, target_date = ?, frequency = ?,
		 auto_contribution = ?, updated_at = ?
		 WHERE id = ? AND owner_id = ?`,
		g.Title, g.TargetAmount.Cents, nullDate(g.TargetDate), nullString(string(g.Frequency)),
		g.AutoContribution.Cents, time.Now().UTC(), g.ID, g.OwnerID)
	if err != nil {
		return storeErr("update goal", err)
	}
	return storeErr("update goal", mustAffect(res, core.ErrGoalNotFound))
}

func (s *queries) DeactivateGoal(ctx context.Context, ownerID, id string) error {
	res, err := s.exec(ctx,
		`UPDATE goals SET is_active = ?, updated_at = ? WHERE id = ? AND owner_id = ?`,
		false, time.Now().UTC(), id, ownerID)
	if err != nil {
		return storeErr("deactivate goal", err)
	}
	return storeErr("deactivate goal", mustAffect(res, core.ErrGoalNotFound))
}

func (s *queries) AdjustGoalProgress(ctx context.Context, ownerID, id string, delta int64) (core.Goal, bool, error) {
	var (
		current sql.NullInt64
		err     error
	)
	if s.dialect == Postgres {
		// update_goal_progress returns NULL when the result would be negative.
		err = s.queryRow(ctx,
			`SELECT update_goal_progress(id, ?) FROM goals WHERE id = ? AND owner_id = ?`,
			delta, id, ownerID).Scan(&current)
	} else {
		err = s.queryRow(ctx,
			`UPDATE goals SET current_amount = current_amount + ?, updated_at = ?
			 WHERE id = ? AND owner_id = ? AND current_amount + ? >= 0
			 RETURNING current_amount`,
			delta, time.Now().UTC(), id, ownerID, delta).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			// Either the goal is missing or the guard rejected the delta.
			if _, getErr := s.GetGoal(ctx, ownerID, id); getErr != nil {
				return core.Goal{}, false, getErr
			}
			err = nil
		}
	}
	if errors.Is(err, sql.ErrNoRows) {
		return core.Goal{}, false, core.ErrGoalNotFound
	}
	if err != nil {
		return core.Goal{}, false, storeErr("adjust goal progress", err)
	}

	g, err := s.GetGoal(ctx, ownerID, id)
	if err != nil {
		return core.Goal{}, false, err
	}
	return g, current.Valid, nil
}

func (s *queries) MarkAutoContribution(ctx context.Context, ownerID, id string, at time.Time) error {
	res, err := s.exec(ctx,
		`UPDATE goals SET last_auto_contribution_at = ?, updated_at = ? WHERE id = ? AND owner_id = ?`,
		at.UTC(), time.Now().UTC(), id, ownerID)
	if err != nil {
		return storeErr("mark auto contribution", err)
	}
	return storeErr("mark auto contribution", mustAffect(res, core.ErrGoalNotFound))
}

// Transactions

func (s *queries) GetTransaction(ctx context.Context, ownerID, id string) (core.Transaction, error) {
	return s.getTransaction(ctx, ownerID, id, "")
}

func (s *queries) GetTransactionForUpdate(ctx context.Context, ownerID, id string) (core.Transaction, error) {
	return s.getTransaction(ctx, ownerID, id, s.dialect.lockClause())
}

func (s *queries) getTransaction(ctx context.Context, ownerID, id, lock string) (core.Transaction, error) {
	t, err := scanTransaction(s.queryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ? AND owner_id = ?`+lock, id, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrTxNotFound
	}
	return t, storeErr("get transaction", err)
}

func (s *queries) FindTransactionByIdempotencyKey(ctx context.Context, ownerID, key string) (core.Transaction, error) {
	t, err := scanTransaction(s.queryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE owner_id = ? AND idempotency_key = ?`, ownerID, key))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrTxNotFound
	}
	return t, storeErr("find transaction by idempotency key", err)
}

func (s *queries) ListTransactions(ctx context.Context, ownerID string, f TransactionFilter) ([]core.Transaction, error) {
	var (
		where = []string{"owner_id = ?"}
		args  = []any{ownerID}
	)
	if !f.From.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, f.To.String())
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(f.Type))
	}
	if f.WalletID != "" {
		where = append(where, "(wallet_id = ? OR to_wallet_id = ?)")
		args = append(args, f.WalletID, f.WalletID)
	}
	if f.GoalID != "" {
		where = append(where, "goal_id = ?")
		args = append(args, f.GoalID)
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY date DESC, created_at DESC, id`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list transactions", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, storeErr("scan transaction", err)
		}
		txs = append(txs, t)
	}
	return txs, storeErr("list transactions", rows.Err())
}

func (s *queries) InsertTransaction(ctx context.Context, t core.Transaction) error {
	_, err := s.exec(ctx,
		`INSERT INTO transactions (`+transactionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.OwnerID, nullString(t.WalletID), nullString(t.ToWalletID), nullString(t.GoalID),
		t.Amount.Cents, t.Category, string(t.Type), t.Description, t.Date.String(),
		nullString(t.IdempotencyKey), t.CreatedAt.UTC())
	return storeErr("insert transaction", err)
}

// UpdateTransaction rewrites the editable fields: amount, category,
// description and date. Links and type are fixed at creation.
func (s *queries) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	res, err := s.exec(ctx,
		`UPDATE transactions SET amount = ?, category = ?, description = ?, date = ?
		 WHERE id = ? AND owner_id = ?`,
		t.Amount.Cents, t.Category, t.Description, t.Date.String(), t.ID, t.OwnerID)
	if err != nil {
		return storeErr("update transaction", err)
	}
	return storeErr("update transaction", mustAffect(res, core.ErrTxNotFound))
}

func (s *queries) DeleteTransaction(ctx context.Context, ownerID, id string) error {
	res, err := s.exec(ctx, `DELETE FROM transactions WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return storeErr("delete transaction", err)
	}
	return storeErr("delete transaction", mustAffect(res, core.ErrTxNotFound))
}

func (s *queries) SumByType(ctx context.Context, ownerID string, from, to core.Date) (core.Money, core.Money, error) {
	rows, err := s.query(ctx,
		`SELECT type, CAST(COALESCE(SUM(amount), 0) AS BIGINT) FROM transactions
		 WHERE owner_id = ? AND date >= ? AND date <= ? AND type IN ('income', 'expense')
		 GROUP BY type`,
		ownerID, from.String(), to.String())
	if err != nil {
		return core.Money{}, core.Money{}, storeErr("sum by type", err)
	}
	defer rows.Close()

	var income, expense core.Money
	for rows.Next() {
		var (
			typ   string
			total int64
		)
		if err := rows.Scan(&typ, &total); err != nil {
			return core.Money{}, core.Money{}, storeErr("scan sum", err)
		}
		switch core.TransactionType(typ) {
		case core.Income:
			income = core.Money{Cents: total}
		case core.Expense:
			expense = core.Money{Cents: total}
		}
	}
	return income, expense, storeErr("sum by type", rows.Err())
}

func (s *queries) CategoryTotals(ctx context.Context, ownerID string, from, to core.Date) ([]core.CategoryAmount, error) {
	rows, err := s.query(ctx,
		`SELECT category, type, CAST(SUM(amount) AS BIGINT) AS total FROM transactions
		 WHERE owner_id = ? AND date >= ? AND date <= ? AND type IN ('income', 'expense')
		 GROUP BY category, type
		 ORDER BY total DESC, category`,
		ownerID, from.String(), to.String())
	if err != nil {
		return nil, storeErr("category totals", err)
	}
	defer rows.Close()

	var out []core.CategoryAmount
	for rows.Next() {
		var (
			ca    core.CategoryAmount
			typ   string
			total int64
		)
		if err := rows.Scan(&ca.Category, &typ, &total); err != nil {
			return nil, storeErr("scan category total", err)
		}
		ca.Type = core.TransactionType(typ)
		ca.Amount = core.Money{Cents: total}
		out = append(out, ca)
	}
	return out, storeErr("category totals", rows.Err())
}

// Budget snapshots

func (s *queries) InsertBudgetSnapshot(ctx context.Context, b core.BudgetSnapshot) error {
	_, err := s.exec(ctx,
		`INSERT INTO financial_questionnaires (`+snapshotColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.OwnerID, b.Income.Cents, b.Rent.Cents, b.Shopping.Cents, b.Other.Cents,
		b.TotalExpenses.Cents, b.Savings.Cents, b.CreatedAt.UTC())
	return storeErr("insert budget snapshot", err)
}

func (s *queries) LatestBudgetSnapshot(ctx context.Context, ownerID string) (core.BudgetSnapshot, error) {
	b, err := scanSnapshot(s.queryRow(ctx,
		`SELECT `+snapshotColumns+` FROM financial_questionnaires
		 WHERE owner_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.BudgetSnapshot{}, core.ErrSnapshotNotFound
	}
	return b, storeErr("latest budget snapshot", err)
}
