// Package worker mirrors the ledger into the spreadsheet. Events from the
// queue drive it; a poller over the installments sync column catches
// anything whose event was lost.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"installments/internal/amqp"
	"installments/internal/core"
	"installments/internal/ledger"
	"installments/internal/sheets"
)

// Source is the read side the worker needs from the ledger.
type Source interface {
	GetInstallment(ctx context.Context, id int64) (core.Installment, error)
	GetMonthlyStatus(ctx context.Context, cardID int64, p core.Period) (core.MonthlyStatus, error)
	GetCard(ctx context.Context, id int64) (core.Card, error)
}

// SyncQueue tracks which installments still need exporting. The SQLite
// repository implements it.
type SyncQueue interface {
	PendingSyncInstallments(ctx context.Context, limit int) ([]core.Installment, error)
	MarkSynced(ctx context.Context, id int64) error
	MarkSyncError(ctx context.Context, id int64) error
}

var _ Source = (ledger.Store)(nil)

// SyncWorker handles ledger events by writing the affected rows.
type SyncWorker struct {
	source   Source
	queue    SyncQueue
	exporter sheets.Exporter
}

// NewSyncWorker builds a worker. queue may be nil when the backend keeps no
// sync state.
func NewSyncWorker(source Source, queue SyncQueue, exporter sheets.Exporter) *SyncWorker {
	return &SyncWorker{source: source, queue: queue, exporter: exporter}
}

// HandleEvent is the AMQP consumer callback. Returning an error requeues the
// message once.
func (w *SyncWorker) HandleEvent(ctx context.Context, e *amqp.LedgerEvent) error {
	slog.InfoContext(ctx, "Processing ledger event",
		"type", e.Type,
		"message_id", e.MessageID)

	switch e.Type {
	case amqp.EventInstallmentCreated:
		return w.syncInstallment(ctx, e.InstallmentID)
	case amqp.EventInstallmentDeleted:
		if err := w.exporter.DeleteInstallment(ctx, e.InstallmentID); err != nil {
			return fmt.Errorf("delete installment row: %w", err)
		}
		slog.InfoContext(ctx, "Installment row cleared", "installment_id", e.InstallmentID)
		return nil
	case amqp.EventStatusToggled:
		return w.syncStatus(ctx, e)
	case amqp.EventCardDue:
		// Reminders are delivered by the reminder worker; nothing to mirror.
		slog.DebugContext(ctx, "Ignoring card due event", "card_id", e.CardID, "period", e.Period)
		return nil
	default:
		slog.WarnContext(ctx, "Unknown event type, dropping", "type", e.Type)
		return nil
	}
}

func (w *SyncWorker) syncInstallment(ctx context.Context, id int64) error {
	inst, err := w.source.GetInstallment(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		// Deleted before we got to it; the delete event clears any row.
		slog.InfoContext(ctx, "Installment gone before sync, skipping", "installment_id", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get installment %d: %w", id, err)
	}
	return w.export(ctx, inst)
}

func (w *SyncWorker) export(ctx context.Context, inst core.Installment) error {
	ref, err := w.exporter.UpsertInstallment(ctx, inst)
	if err != nil {
		if w.queue != nil {
			if markErr := w.queue.MarkSyncError(ctx, inst.ID); markErr != nil {
				slog.ErrorContext(ctx, "Failed to mark sync error", "id", inst.ID, "error", markErr)
			}
		}
		return fmt.Errorf("export installment %d: %w", inst.ID, err)
	}
	if w.queue != nil {
		if err := w.queue.MarkSynced(ctx, inst.ID); err != nil {
			// The row is written; the poller will rewrite it in place.
			slog.ErrorContext(ctx, "Failed to mark as synced", "id", inst.ID, "error", err)
		}
	}
	slog.InfoContext(ctx, "Installment synced",
		"id", inst.ID,
		"sheets_ref", ref,
		"monthly_cents", inst.MonthlyPayment.Cents)
	return nil
}

// syncStatus writes the stored state rather than the flag in the event, so
// events replayed out of order still converge.
func (w *SyncWorker) syncStatus(ctx context.Context, e *amqp.LedgerEvent) error {
	p, err := core.ParsePeriod(e.Period)
	if err != nil {
		slog.WarnContext(ctx, "Dropping status event with bad period", "period", e.Period, "error", err)
		return nil
	}

	st, err := w.source.GetMonthlyStatus(ctx, e.CardID, p)
	switch {
	case errors.Is(err, core.ErrNotFound):
		st = core.MonthlyStatus{CardID: e.CardID, Period: p}
	case err != nil:
		return fmt.Errorf("get status: %w", err)
	}

	name := core.UnknownCardName
	card, err := w.source.GetCard(ctx, e.CardID)
	switch {
	case err == nil:
		name = card.Name
	case !errors.Is(err, core.ErrNotFound):
		return fmt.Errorf("get card %d: %w", e.CardID, err)
	}

	ref, err := w.exporter.UpsertStatus(ctx, st, name)
	if err != nil {
		return fmt.Errorf("export status: %w", err)
	}
	slog.InfoContext(ctx, "Card status synced",
		"card_id", st.CardID,
		"period", p.String(),
		"is_paid", st.IsPaid,
		"sheets_ref", ref)
	return nil
}

// ProcessPending exports up to limit installments still marked pending and
// returns how many succeeded.
func (w *SyncWorker) ProcessPending(ctx context.Context, limit int) (int, error) {
	if w.queue == nil {
		return 0, nil
	}
	pending, err := w.queue.PendingSyncInstallments(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("get pending installments: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	slog.InfoContext(ctx, "Processing pending installments", "count", len(pending))
	synced := 0
	for _, inst := range pending {
		if ctx.Err() != nil {
			return synced, ctx.Err()
		}
		if err := w.export(ctx, inst); err != nil {
			slog.ErrorContext(ctx, "Failed to sync installment", "id", inst.ID, "error", err)
			continue
		}
		synced++
	}
	return synced, nil
}
