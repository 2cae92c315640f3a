package core

import "time"

// Tables that emit change notifications.
const (
	TableWallets        = "wallets"
	TableGoals          = "goals"
	TableTransactions   = "transactions"
	TableQuestionnaires = "financial_questionnaires"
)

type ChangeOp string

const (
	OpInsert ChangeOp = "INSERT"
	OpUpdate ChangeOp = "UPDATE"
	OpDelete ChangeOp = "DELETE"
)

// ChangeEvent notifies subscribers that a row owned by OwnerID changed.
type ChangeEvent struct {
	Table    string    `json:"table"`
	Op       ChangeOp  `json:"op"`
	OwnerID  string    `json:"owner_id"`
	RecordID string    `json:"record_id"`
	At       time.Time `json:"at"`
}

func NewChangeEvent(table string, op ChangeOp, ownerID, recordID string) ChangeEvent {
	return ChangeEvent{
		Table:    table,
		Op:       op,
		OwnerID:  ownerID,
		RecordID: recordID,
		At:       time.Now().UTC(),
	}
}
