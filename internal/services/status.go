package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"installments/internal/core"
	"installments/internal/ledger"
)

// StatusResolver decides whether a card is PAID, PENDING or OVERDUE for a month
// and flips the paid flag on request.
type StatusResolver struct {
	store  ledger.StatusStore
	events EventPublisher
	now    func() time.Time
}

func NewStatusResolver(store ledger.StatusStore, events EventPublisher, now func() time.Time) *StatusResolver {
	if now == nil {
		now = time.Now
	}
	return &StatusResolver{store: store, events: publisherOrNoop(events), now: now}
}

// ResolveStatus applies the status rule to an already loaded paid flag.
// Months strictly before the current calendar month are overdue when unpaid.
func ResolveStatus(paid bool, p, current core.Period) core.CardStatus {
	switch {
	case paid:
		return core.StatusPaid
	case p.Before(current):
		return core.StatusOverdue
	default:
		return core.StatusPending
	}
}

// CardStatus reports the status of a card for year/month. A card with no
// recorded status, including one that does not exist, is unpaid.
func (r *StatusResolver) CardStatus(ctx context.Context, cardID int64, year, month int) (core.CardStatus, error) {
	p := core.NewPeriod(year, month)
	if err := p.Validate(); err != nil {
		return "", err
	}
	paid := false
	st, err := r.store.GetMonthlyStatus(ctx, cardID, p)
	switch {
	case err == nil:
		paid = st.IsPaid
	case errors.Is(err, core.ErrNotFound):
	default:
		return "", fmt.Errorf("load status card=%d period=%s: %w", cardID, p, err)
	}
	return ResolveStatus(paid, p, core.PeriodOf(r.now())), nil
}

// ToggleCardStatus flips the paid flag for the card-month, creating it as paid
// when absent, and returns the stored record.
func (r *StatusResolver) ToggleCardStatus(ctx context.Context, cardID int64, year, month int) (core.MonthlyStatus, error) {
	p := core.NewPeriod(year, month)
	if err := p.Validate(); err != nil {
		return core.MonthlyStatus{}, err
	}
	st, err := r.store.ToggleMonthlyStatus(ctx, cardID, p, r.now())
	if err != nil {
		return core.MonthlyStatus{}, err
	}

	slog.InfoContext(ctx, "Card status toggled",
		"card_id", cardID,
		"period", p.String(),
		"is_paid", st.IsPaid)

	if err := r.events.PublishStatusToggled(ctx, st); err != nil {
		slog.ErrorContext(ctx, "Failed to publish status event",
			"card_id", cardID, "period", p.String(), "error", err)
	}
	return st, nil
}
