package services

import (
	"context"

	"installments/internal/core"
)

// EventPublisher announces ledger changes to other processes. Publishing is
// best effort: a failed publish is logged and never fails the request.
type EventPublisher interface {
	PublishInstallmentCreated(ctx context.Context, inst core.Installment) error
	PublishInstallmentDeleted(ctx context.Context, id int64) error
	PublishStatusToggled(ctx context.Context, st core.MonthlyStatus) error
}

type noopPublisher struct{}

func (noopPublisher) PublishInstallmentCreated(context.Context, core.Installment) error { return nil }
func (noopPublisher) PublishInstallmentDeleted(context.Context, int64) error            { return nil }
func (noopPublisher) PublishStatusToggled(context.Context, core.MonthlyStatus) error    { return nil }

func publisherOrNoop(p EventPublisher) EventPublisher {
	if p == nil {
		return noopPublisher{}
	}
	return p
}
