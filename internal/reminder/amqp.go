package reminder

import (
	"context"

	"installments/internal/core"
)

// CardDuePublisher is the part of the AMQP client the reminder needs.
type CardDuePublisher interface {
	PublishCardDue(ctx context.Context, card core.Card, p core.Period, amount core.Money) error
}

// AMQPNotifier announces reminders as card.due events.
type AMQPNotifier struct {
	pub CardDuePublisher
}

func NewAMQPNotifier(pub CardDuePublisher) *AMQPNotifier {
	return &AMQPNotifier{pub: pub}
}

func (n *AMQPNotifier) Notify(ctx context.Context, r Reminder) error {
	return n.pub.PublishCardDue(ctx, r.Card, r.Period, r.Amount)
}
