package google

import (
	"fmt"
	"strings"

	"carteira/internal/core"
)

// Mirror sheet layout, one column per entry, id first.
var header = []string{
	"ID", "Date", "Type", "Category", "Description",
	"Amount", "Wallet", "To Wallet", "Goal", "Owner",
}

// lastColumn is the A1 letter of the final header column.
var lastColumn = string(rune('A' + len(header) - 1))

func headerRow() []any {
	row := make([]any, len(header))
	for i, h := range header {
		row[i] = h
	}
	return row
}

// transactionRow renders tx in header order. Amounts are written as plain
// decimal strings so the sheet never reinterprets them.
func transactionRow(tx core.Transaction) []any {
	return []any{
		tx.ID,
		tx.Date.String(),
		string(tx.Type),
		tx.Category,
		tx.Description,
		tx.Amount.String(),
		tx.WalletID,
		tx.ToWalletID,
		tx.GoalID,
		tx.OwnerID,
	}
}

func rowRange(sheet string, row int) string {
	return fmt.Sprintf("%s!A%d:%s%d", sheet, row, lastColumn, row)
}

// indexRows maps transaction ids in column A to their 1-based row numbers.
// The header row and blank cells are skipped; a duplicated id keeps its
// first row.
func indexRows(values [][]any) map[string]int {
	rows := make(map[string]int, len(values))
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		id := strings.TrimSpace(fmt.Sprint(row[0]))
		if id == "" || (i == 0 && strings.EqualFold(id, header[0])) {
			continue
		}
		if _, seen := rows[id]; !seen {
			rows[id] = i + 1
		}
	}
	return rows
}
