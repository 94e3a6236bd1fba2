package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// MonthChangedMessage announces that a user's data for one month changed.
// Consumers reload whatever they need; the message carries no row data.
type MonthChangedMessage struct {
	UserID    string    `json:"user_id"`
	Year      int       `json:"year"`
	Month     int       `json:"month"` // 0-11
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMonthChangedMessage creates a message stamped with the current time.
// source names the mutation that caused it, e.g. "toggle_completion".
func NewMonthChangedMessage(userID string, year, month int, source string) *MonthChangedMessage {
	return &MonthChangedMessage{
		UserID:    userID,
		Year:      year,
		Month:     month,
		Source:    source,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *MonthChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// MonthChangedMessageFromJSON decodes and sanity-checks a message body.
func MonthChangedMessageFromJSON(data []byte) (*MonthChangedMessage, error) {
	var msg MonthChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.UserID == "" {
		return nil, errors.New("missing user_id")
	}
	if msg.Month < 0 || msg.Month > 11 {
		return nil, errors.New("month out of range")
	}
	return &msg, nil
}
