package memory

import (
	"context"
	"testing"

	"installments/internal/core"
)

func TestExporterInstallmentRows(t *testing.T) {
	e := New()
	ctx := context.Background()

	ref, err := e.UpsertInstallment(ctx, core.Installment{ID: 3, Description: "Laptop"})
	if err != nil || ref != "mem:installment:3" {
		t.Fatalf("UpsertInstallment() = %q, %v", ref, err)
	}
	if _, err := e.UpsertInstallment(ctx, core.Installment{ID: 3, Description: "Laptop Pro"}); err != nil {
		t.Fatal(err)
	}
	if e.Len() != 1 {
		t.Errorf("Len() = %d, want 1 after upserting the same id twice", e.Len())
	}
	if inst, _ := e.Installment(3); inst.Description != "Laptop Pro" {
		t.Errorf("row not replaced: %+v", inst)
	}

	if err := e.DeleteInstallment(ctx, 3); err != nil {
		t.Fatal(err)
	}
	if err := e.DeleteInstallment(ctx, 3); err != nil {
		t.Errorf("second delete should be a no-op, got %v", err)
	}
	if _, err := e.UpsertInstallment(ctx, core.Installment{}); err == nil {
		t.Error("expected error for installment without id")
	}
}

func TestExporterStatusRows(t *testing.T) {
	e := New()
	p := core.NewPeriod(2026, 3)
	if _, err := e.UpsertStatus(context.Background(), core.MonthlyStatus{CardID: 2, Period: p, IsPaid: true}, "BDO"); err != nil {
		t.Fatal(err)
	}
	row, ok := e.Status(2, p)
	if !ok || row.CardName != "BDO" || !row.Status.IsPaid {
		t.Errorf("Status() = %+v, %v", row, ok)
	}
	if e.Writes() != 1 {
		t.Errorf("Writes() = %d", e.Writes())
	}
}
