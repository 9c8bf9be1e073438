package amqp

import (
	"encoding/json"
	"time"
)

// Change reasons carried by LedgerChangedMessage.
const (
	ReasonAppend    = "append"
	ReasonUpdate    = "update"
	ReasonReplace   = "replace"
	ReasonSettleAll = "settle_all"
)

// LedgerChangedMessage announces a new ledger version. It carries no entry
// data: the consumer reads the current snapshot from the database.
type LedgerChangedMessage struct {
	Version   int64     `json:"version"`
	Reason    string    `json:"reason"`
	EntryID   string    `json:"entry_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerChangedMessage creates a change message stamped with the current time
func NewLedgerChangedMessage(version int64, reason, entryID string) *LedgerChangedMessage {
	return &LedgerChangedMessage{
		Version:   version,
		Reason:    reason,
		EntryID:   entryID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerChangedMessageFromJSON creates a message from JSON bytes
func LedgerChangedMessageFromJSON(data []byte) (*LedgerChangedMessage, error) {
	var msg LedgerChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
