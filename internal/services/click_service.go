package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"svinn/internal/amqp"
	"svinn/internal/core"
	"svinn/internal/gateway"
)

// Publisher hands click messages to the ingestion queue.
type Publisher interface {
	PublishClick(ctx context.Context, msg *amqp.ClickMessage) error
	Close() error
}

// ClickService records kiosk clicks. With a publisher configured the click
// is queued for the worker; otherwise it is applied to the store directly.
type ClickService struct {
	store     gateway.CounterWriter
	publisher Publisher
	loc       *time.Location
	now       func() time.Time
}

func NewClickService(store gateway.CounterWriter, publisher Publisher, loc *time.Location) *ClickService {
	if loc == nil {
		loc = time.UTC
	}
	return &ClickService{
		store:     store,
		publisher: publisher,
		loc:       loc,
		now:       time.Now,
	}
}

// Queued reports whether clicks go through the queue.
func (s *ClickService) Queued() bool {
	return s.publisher != nil
}

// Receipt describes where a recorded click went.
type Receipt struct {
	Day       string `json:"day"`
	MessageID string `json:"message_id,omitempty"`
	Queued    bool   `json:"queued"`
}

// RecordClick counts one click for c on the current local day. The receipt
// carries the message id when the click was queued.
func (s *ClickService) RecordClick(ctx context.Context, c core.Category) (Receipt, error) {
	if !c.Valid() {
		return Receipt{}, fmt.Errorf("%w: %d", core.ErrInvalidCategory, int(c))
	}
	msg := amqp.NewClickMessage(core.DayKey(s.now(), s.loc), c, 1)
	rc := Receipt{Day: msg.Day}

	if s.publisher != nil {
		if err := s.publisher.PublishClick(ctx, msg); err != nil {
			// The click must not be lost when the broker is down.
			slog.WarnContext(ctx, "Failed to publish click, applying directly",
				"message_id", msg.ID, "error", err)
			return rc, s.Apply(ctx, msg)
		}
		rc.MessageID = msg.ID
		rc.Queued = true
		return rc, nil
	}
	return rc, s.Apply(ctx, msg)
}

// Apply writes a click message to the counters table.
func (s *ClickService) Apply(ctx context.Context, msg *amqp.ClickMessage) error {
	if s.store == nil {
		return errors.New("click service has no store")
	}
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("invalid click message: %w", err)
	}
	if err := s.store.IncrementCounter(ctx, msg.Day, msg.Category, msg.Delta); err != nil {
		return fmt.Errorf("apply click %s: %w", msg.ID, err)
	}
	slog.InfoContext(ctx, "Click applied",
		"message_id", msg.ID,
		"day", msg.Day,
		"category", msg.Category.Key())
	return nil
}

// Close closes the publisher connection.
func (s *ClickService) Close() error {
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			return fmt.Errorf("close click service: amqp: %w", err)
		}
	}
	return nil
}
