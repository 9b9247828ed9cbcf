package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidMessage = errors.New("invalid sync message")

// RecordSyncMessage asks the worker to mirror one record.
// It carries only the ID; the worker loads the record from the database.
type RecordSyncMessage struct {
	ID        int64     `json:"id"`
	MessageID string    `json:"message_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewRecordSyncMessage(id int64) *RecordSyncMessage {
	return &RecordSyncMessage{
		ID:        id,
		MessageID: uuid.NewString(),
		Timestamp: time.Now().UTC(),
	}
}

func (m *RecordSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordSyncMessageFromJSON decodes and validates a message body.
func RecordSyncMessageFromJSON(data []byte) (*RecordSyncMessage, error) {
	var msg RecordSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID <= 0 {
		return nil, ErrInvalidMessage
	}
	return &msg, nil
}
