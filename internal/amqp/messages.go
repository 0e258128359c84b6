package amqp

import (
	"encoding/json"
	"time"
)

// OverviewInvalidateMessage tells workers that a user's stored inputs changed
// and any cached overview derived from them is stale. It carries only the user
// id; consumers recompute from the database.
type OverviewInvalidateMessage struct {
	UserID    int64     `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewOverviewInvalidateMessage(userID int64) *OverviewInvalidateMessage {
	return &OverviewInvalidateMessage{
		UserID:    userID,
		Timestamp: time.Now(),
	}
}

func (m *OverviewInvalidateMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func OverviewInvalidateMessageFromJSON(data []byte) (*OverviewInvalidateMessage, error) {
	var msg OverviewInvalidateMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
