package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event kinds carried on the export queue.
const (
	KindCreated = "created"
	KindUpdated = "updated"
	KindDeleted = "deleted"
)

// ExpenseEventMessage is a lightweight record-mutation event. It carries
// only the ID and kind; the worker fetches the current row from the
// database, so a later update naturally supersedes an earlier one.
type ExpenseEventMessage struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
}

func NewExpenseEventMessage(id int64, kind string) *ExpenseEventMessage {
	return &ExpenseEventMessage{
		ID:        id,
		Kind:      kind,
		Timestamp: time.Now(),
	}
}

// Validate checks the message carries a known kind and a usable ID.
func (m *ExpenseEventMessage) Validate() error {
	if m.ID <= 0 {
		return fmt.Errorf("invalid expense id %d", m.ID)
	}
	switch m.Kind {
	case KindCreated, KindUpdated, KindDeleted:
		return nil
	default:
		return fmt.Errorf("unknown event kind %q", m.Kind)
	}
}

// ToJSON converts the message to JSON bytes.
func (m *ExpenseEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseEventMessageFromJSON parses a message from JSON bytes.
func ExpenseEventMessageFromJSON(data []byte) (*ExpenseEventMessage, error) {
	var msg ExpenseEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
