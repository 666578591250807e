package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType names a ledger change carried on the queue.
type EventType string

const (
	EventInstallmentCreated EventType = "installment.created"
	EventInstallmentDeleted EventType = "installment.deleted"
	EventStatusToggled      EventType = "status.toggled"
	EventCardDue            EventType = "card.due"
)

// LedgerEvent is a lightweight notification. Consumers fetch full records
// from the database by ID when they need more than the event carries.
type LedgerEvent struct {
	MessageID     string    `json:"message_id"`
	Type          EventType `json:"type"`
	InstallmentID int64     `json:"installment_id,omitempty"`
	CardID        int64     `json:"card_id,omitempty"`
	Period        string    `json:"period,omitempty"`
	IsPaid        *bool     `json:"is_paid,omitempty"`
	AmountCents   int64     `json:"amount_cents,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func newEvent(t EventType) *LedgerEvent {
	return &LedgerEvent{
		MessageID: uuid.NewString(),
		Type:      t,
		Timestamp: time.Now(),
	}
}

// NewInstallmentEvent creates an installment.created or installment.deleted event.
func NewInstallmentEvent(t EventType, installmentID int64) *LedgerEvent {
	e := newEvent(t)
	e.InstallmentID = installmentID
	return e
}

// NewStatusToggledEvent records the paid flag a card ended up with for a month.
func NewStatusToggledEvent(cardID int64, period string, paid bool) *LedgerEvent {
	e := newEvent(EventStatusToggled)
	e.CardID = cardID
	e.Period = period
	e.IsPaid = &paid
	return e
}

// NewCardDueEvent announces that a card's payment is due today.
func NewCardDueEvent(cardID int64, period string, amountCents int64) *LedgerEvent {
	e := newEvent(EventCardDue)
	e.CardID = cardID
	e.Period = period
	e.AmountCents = amountCents
	return e
}

// Validate rejects events a consumer could not act on.
func (e *LedgerEvent) Validate() error {
	switch e.Type {
	case EventInstallmentCreated, EventInstallmentDeleted:
		if e.InstallmentID <= 0 {
			return fmt.Errorf("%s event without installment id", e.Type)
		}
	case EventStatusToggled, EventCardDue:
		if e.CardID <= 0 || e.Period == "" {
			return fmt.Errorf("%s event without card or period", e.Type)
		}
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes and validates an event.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}
