// Package sheets defines the outbound port for mirroring ledger transactions
// into a spreadsheet. The ledger store stays the source of truth; the mirror
// is rebuilt from it whenever a row is missing or stale.
package sheets

import (
	"context"

	"carteira/internal/core"
)

// TransactionMirror keeps one spreadsheet row per transaction.
type TransactionMirror interface {
	// Upsert writes the transaction's row, replacing an existing row with
	// the same id.
	Upsert(ctx context.Context, tx core.Transaction) (rowRef string, err error)
	// Remove deletes the row for id. Removing an unknown id is not an error.
	Remove(ctx context.Context, id string) error
}
