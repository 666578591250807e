// Package memory is an in-process sheets.Exporter used by tests and by the
// sheets worker when no spreadsheet is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"installments/internal/core"
	"installments/internal/sheets"
)

type statusKey struct {
	cardID int64
	period core.Period
}

// StatusRow is what the exporter recorded for a card-month.
type StatusRow struct {
	CardName string
	Status   core.MonthlyStatus
}

type Exporter struct {
	mu           sync.Mutex
	installments map[int64]core.Installment
	statuses     map[statusKey]StatusRow
	writes       int
}

var _ sheets.Exporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{
		installments: map[int64]core.Installment{},
		statuses:     map[statusKey]StatusRow{},
	}
}

func (e *Exporter) UpsertInstallment(_ context.Context, inst core.Installment) (string, error) {
	if inst.ID <= 0 {
		return "", fmt.Errorf("installment without id")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.installments[inst.ID] = inst
	e.writes++
	return fmt.Sprintf("mem:installment:%d", inst.ID), nil
}

func (e *Exporter) DeleteInstallment(_ context.Context, id int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.installments, id)
	return nil
}

func (e *Exporter) UpsertStatus(_ context.Context, st core.MonthlyStatus, cardName string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.statuses[statusKey{st.CardID, st.Period}] = StatusRow{CardName: cardName, Status: st}
	e.writes++
	return fmt.Sprintf("mem:status:%d:%s", st.CardID, st.Period), nil
}

// Installment returns the exported row for id.
func (e *Exporter) Installment(id int64) (core.Installment, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	inst, ok := e.installments[id]
	return inst, ok
}

// Status returns the exported row for a card-month.
func (e *Exporter) Status(cardID int64, p core.Period) (StatusRow, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	row, ok := e.statuses[statusKey{cardID, p}]
	return row, ok
}

// Len returns the number of installment rows.
func (e *Exporter) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.installments)
}

// Writes counts successful upserts.
func (e *Exporter) Writes() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.writes
}
