package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"carteira/internal/core"

	"github.com/google/uuid"
)

// ChangeMessage carries a ledger change notification. It holds only the
// identifiers; consumers re-read the record from the store.
type ChangeMessage struct {
	MessageID string           `json:"message_id"`
	Event     core.ChangeEvent `json:"event"`
	Timestamp time.Time        `json:"timestamp"`
}

func NewChangeMessage(e core.ChangeEvent) *ChangeMessage {
	return &ChangeMessage{
		MessageID: uuid.NewString(),
		Event:     e,
		Timestamp: time.Now().UTC(),
	}
}

func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON decodes a message and rejects payloads that do not
// name a table, an operation and an owner.
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch {
	case msg.Event.Table == "":
		return nil, fmt.Errorf("change message without table")
	case msg.Event.OwnerID == "":
		return nil, fmt.Errorf("change message without owner")
	}
	switch msg.Event.Op {
	case core.OpInsert, core.OpUpdate, core.OpDelete:
	default:
		return nil, fmt.Errorf("unknown change operation %q", msg.Event.Op)
	}
	return &msg, nil
}

// RoutingKey is "<table>.<owner>", so consumers can bind to one table
// ("transactions.#") or one owner ("*.<owner>").
func RoutingKey(e core.ChangeEvent) string {
	return e.Table + "." + e.OwnerID
}
