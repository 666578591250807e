// Package sheets defines the spreadsheet export ports. The sheets worker
// mirrors the ledger into a spreadsheet through them; nothing reads back.
package sheets

import (
	"context"

	"installments/internal/core"
)

// Ports for outbound adapters.
type (
	InstallmentExporter interface {
		// UpsertInstallment writes the installment's row, replacing an earlier
		// row for the same id.
		UpsertInstallment(ctx context.Context, inst core.Installment) (rowRef string, err error)
		// DeleteInstallment clears the installment's row. A missing row is not an error.
		DeleteInstallment(ctx context.Context, id int64) error
	}

	StatusExporter interface {
		// UpsertStatus writes one card-month paid flag.
		UpsertStatus(ctx context.Context, st core.MonthlyStatus, cardName string) (rowRef string, err error)
	}

	Exporter interface {
		InstallmentExporter
		StatusExporter
	}
)
