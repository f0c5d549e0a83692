package amqp

import (
	"encoding/json"
	"time"
)

// TransactionSyncMessage asks the worker to export one ledger transaction.
// It only carries the ID; the worker reads the row from the ledger itself.
type TransactionSyncMessage struct {
	ID        int64     `json:"id"`
	OwnerID   int64     `json:"owner_id"`
	BatchID   string    `json:"batch_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTransactionSyncMessage(id, ownerID int64, batchID string) *TransactionSyncMessage {
	return &TransactionSyncMessage{
		ID:        id,
		OwnerID:   ownerID,
		BatchID:   batchID,
		Timestamp: time.Now(),
	}
}

func (m *TransactionSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionSyncMessageFromJSON decodes a message body.
func TransactionSyncMessageFromJSON(data []byte) (*TransactionSyncMessage, error) {
	var msg TransactionSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
