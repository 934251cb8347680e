package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"svinn/internal/core"
)

// ClickMessage records one kiosk button press to be applied to daily_clicks.
// ID lets the worker log and trace a click end to end.
type ClickMessage struct {
	ID        string        `json:"id"`
	Day       string        `json:"day"`
	Category  core.Category `json:"category"`
	Delta     int           `json:"delta"`
	Timestamp time.Time     `json:"timestamp"`
}

// NewClickMessage creates a message adding delta to category on day.
func NewClickMessage(day string, c core.Category, delta int) *ClickMessage {
	return &ClickMessage{
		ID:        uuid.NewString(),
		Day:       day,
		Category:  c,
		Delta:     delta,
		Timestamp: time.Now(),
	}
}

// Validate checks the day key, category and delta.
func (m *ClickMessage) Validate() error {
	if _, err := core.ParseDay(m.Day); err != nil {
		return err
	}
	if !m.Category.Valid() {
		return fmt.Errorf("%w: %d", core.ErrInvalidCategory, int(m.Category))
	}
	if m.Delta <= 0 {
		return fmt.Errorf("delta must be positive, got %d", m.Delta)
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *ClickMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ClickMessageFromJSON decodes and validates a message.
func ClickMessageFromJSON(data []byte) (*ClickMessage, error) {
	var msg ClickMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
