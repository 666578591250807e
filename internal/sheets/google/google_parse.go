package google

import (
	"fmt"
	"strconv"
	"strings"

	"installments/internal/core"
)

// installmentValues lays out one installment as columns A:J:
// ID, Description, Card, Payee, Category, Start, End, Months, Total, Monthly.
func installmentValues(inst core.Installment) []any {
	payee, category := "", ""
	if inst.Payee != nil {
		payee = inst.Payee.Name
	}
	if inst.Category != nil {
		category = inst.Category.Name
	}
	return []any{
		inst.ID,
		inst.Description,
		inst.CardName(),
		payee,
		category,
		inst.StartDate.Period().String(),
		inst.EndDate.Period().String(),
		inst.TotalMonths(),
		inst.TotalAmount.Decimal().StringFixed(2),
		inst.MonthlyPayment.Decimal().StringFixed(2),
	}
}

// statusValues lays out one card-month as columns A:E:
// Period, Card ID, Card, Paid, Paid At.
func statusValues(st core.MonthlyStatus, cardName string) []any {
	paidAt := ""
	if st.IsPaid && st.PaidAt != nil {
		paidAt = st.PaidAt.UTC().Format("2006-01-02 15:04:05")
	}
	paid := "FALSE"
	if st.IsPaid {
		paid = "TRUE"
	}
	return []any{st.Period.String(), st.CardID, cardName, paid, paidAt}
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func cell(cells []string, i int) string {
	if i < 0 || i >= len(cells) {
		return ""
	}
	return cells[i]
}

// matchRow scans a values response and returns the 1-based row number of the
// first match, or 0. Cleared rows come back empty and never match.
func matchRow(values [][]any, match func([]string) bool) int {
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		if match(toStrings(row)) {
			return i + 1
		}
	}
	return 0
}

// rowRange turns "A:J" and row 5 into "Sheet!A5:J5".
func rowRange(sheet, columns string, row int) string {
	from, to, _ := strings.Cut(columns, ":")
	return fmt.Sprintf("%s!%s%d:%s%d", sheet, from, row, to, row)
}

// rowFromRange extracts the first row number from an A1 range such as
// "'Card Status'!A7:E7".
func rowFromRange(rng string) (int, error) {
	if i := strings.LastIndex(rng, "!"); i >= 0 {
		rng = rng[i+1:]
	}
	start, _, _ := strings.Cut(rng, ":")
	digits := strings.TrimLeft(start, "ABCDEFGHIJKLMNOPQRSTUVWXYZ")
	row, err := strconv.Atoi(digits)
	if err != nil || row <= 0 || digits == start {
		return 0, fmt.Errorf("no row in range %q", rng)
	}
	return row, nil
}
