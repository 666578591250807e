package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"installments/internal/core"
	"installments/internal/ledger"
	"installments/internal/services"
)

// Reminder is one card payment about to fall due.
type Reminder struct {
	Card    core.Card
	Period  core.Period
	DueDate core.Date
	Amount  core.Money
}

// Notifier delivers a reminder over one channel.
type Notifier interface {
	Notify(ctx context.Context, r Reminder) error
}

// Job scans the cards and notifies about those due and still unpaid.
type Job struct {
	cards     ledger.CatalogStore
	totals    *services.Aggregator
	checker   DueChecker
	notifiers []Notifier
	now       func() time.Time

	mu       sync.Mutex
	reminded map[int64]core.Period // card id -> period of the due date reminded
}

func NewJob(cards ledger.CatalogStore, totals *services.Aggregator, checker DueChecker, now func() time.Time, notifiers ...Notifier) *Job {
	if now == nil {
		now = time.Now
	}
	if checker == nil {
		checker = OnDueDay{}
	}
	return &Job{
		cards:     cards,
		totals:    totals,
		checker:   checker,
		notifiers: notifiers,
		now:       now,
		reminded:  map[int64]core.Period{},
	}
}

// Run sends the reminders due now and returns how many went out. Each card is
// judged against its next due date, which may fall in the following month; it
// is skipped when that month is already paid or has nothing active on it.
func (j *Job) Run(ctx context.Context) (int, error) {
	if len(j.notifiers) == 0 {
		return 0, errors.New("no notifier configured")
	}
	now := j.now()
	today := core.DateOf(now)

	cards, err := j.cards.ListCards(ctx)
	if err != nil {
		return 0, fmt.Errorf("list cards: %w", err)
	}

	// Pending amounts per card, loaded once for each month a due date falls in.
	pendingByPeriod := map[core.Period]map[int64]core.Money{}
	pendingFor := func(p core.Period) (map[int64]core.Money, error) {
		if pending, ok := pendingByPeriod[p]; ok {
			return pending, nil
		}
		totals, err := j.totals.CalculateMonthlyTotals(ctx, core.TotalsQuery{Period: &p})
		if err != nil {
			return nil, fmt.Errorf("monthly totals for %s: %w", p, err)
		}
		pending := make(map[int64]core.Money, len(totals.PendingCards))
		for _, b := range totals.PendingCards {
			if b.ID != 0 {
				pending[b.ID] = b.Total
			}
		}
		pendingByPeriod[p] = pending
		return pending, nil
	}

	sent := 0
	for _, card := range cards {
		j.mu.Lock()
		reminded := j.reminded[card.ID]
		j.mu.Unlock()
		if !j.checker.IsDue(card, reminded, now) {
			continue
		}

		due := NextDueDate(card, today)
		p := due.Period()
		pending, err := pendingFor(p)
		if err != nil {
			return sent, err
		}
		amount, ok := pending[card.ID]
		if !ok || amount.Cents == 0 {
			continue
		}

		r := Reminder{Card: card, Period: p, DueDate: due, Amount: amount}
		if err := j.notify(ctx, r); err != nil {
			slog.ErrorContext(ctx, "Failed to send reminder",
				"card_id", card.ID, "period", p.String(), "error", err)
			continue
		}
		j.mu.Lock()
		j.reminded[card.ID] = p
		j.mu.Unlock()
		sent++
		slog.InfoContext(ctx, "Reminder sent",
			"card_id", card.ID,
			"period", p.String(),
			"amount_cents", amount.Cents)
	}

	slog.InfoContext(ctx, "Reminder run complete", "checked", len(cards), "sent", sent)
	return sent, nil
}

// notify fans the reminder out to every notifier. It fails only when all of
// them fail.
func (j *Job) notify(ctx context.Context, r Reminder) error {
	errs := make([]error, len(j.notifiers))
	var g errgroup.Group
	for i, n := range j.notifiers {
		g.Go(func() error {
			errs[i] = n.Notify(ctx, r)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
			slog.WarnContext(ctx, "Notifier failed", "card_id", r.Card.ID, "error", err)
		}
	}
	if failed == len(errs) {
		return errors.Join(errs...)
	}
	return nil
}
