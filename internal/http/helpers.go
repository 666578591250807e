package http

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"sort"
	"strings"

	"installments/internal/core"
	applog "installments/internal/log"
	"installments/internal/services"
)

// formatPeso renders cents as "₱1,234.50", with a leading minus for debts.
func formatPeso(m core.Money) string {
	s := m.Abs().Decimal().StringFixed(2)
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := "₱" + b.String() + "." + frac
	if m.Cents < 0 {
		return "-" + out
	}
	return out
}

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

var validationErrors = []error{
	core.ErrInvalidAmount,
	core.ErrInvalidDuration,
	core.ErrInvalidPeriod,
	core.ErrInvalidDateRange,
	core.ErrEmptyDescription,
	core.ErrEmptyName,
	core.ErrInvalidDueDay,
	core.ErrInvalidColor,
	core.ErrMissingRelation,
	errBadID,
}

// errorStatus maps a service error to an HTTP status and a message safe to
// show. Unknown errors become a generic 500.
func errorStatus(err error) (int, string) {
	var ref *core.ReferencedError
	switch {
	case errors.As(err, &ref):
		return http.StatusConflict, ref.Error()
	case errors.Is(err, core.ErrDuplicateName):
		return http.StatusConflict, "That name is already taken"
	case errors.Is(err, core.ErrConflict):
		return http.StatusConflict, "The record changed, reload and try again"
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, core.ErrInvalidCredential):
		return http.StatusUnauthorized, "Invalid username or password"
	}
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return http.StatusUnprocessableEntity, validationMessage(err)
		}
	}
	return http.StatusInternalServerError, "Something went wrong, please try again"
}

func validationMessage(err error) string {
	msg := err.Error()
	if msg == "" {
		return "Invalid input"
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}

// writeError logs unexpected failures and answers with an error fragment.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, op string) {
	status, msg := errorStatus(err)
	logger := applog.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.LogError(r.Context(), "Request failed", err, applog.ErrorTypeInternal, op)
	} else {
		logger.WarnContext(r.Context(), "Request rejected",
			applog.FieldOperation, op,
			applog.FieldStatusCode, status,
			applog.FieldError, err.Error())
	}
	ErrorResponse(status, msg).TriggerErrorNotification(msg).Write(w)
}

// badgeView is one card's status pill on the dashboard.
type badgeView struct {
	CardID int64
	Name   string
	Color  string
	Total  core.Money
	Status core.CardStatus
	Period core.Period
}

func (b badgeView) Toggleable() bool { return b.CardID > 0 }

// badgesFor lists pending cards first, then paid ones, each group by name.
func badgesFor(totals core.MonthlyTotals, cards []core.Card, current core.Period) []badgeView {
	colors := make(map[int64]string, len(cards))
	for _, c := range cards {
		colors[c.ID] = c.Color
	}
	p := core.NewPeriod(totals.Year, totals.Month)

	build := func(buckets map[string]core.CardBucket, paid bool) []badgeView {
		out := make([]badgeView, 0, len(buckets))
		for name, b := range buckets {
			color := colors[b.ID]
			if color == "" {
				color = core.DefaultCardColor
			}
			out = append(out, badgeView{
				CardID: b.ID,
				Name:   name,
				Color:  color,
				Total:  b.Total,
				Status: services.ResolveStatus(paid, p, current),
				Period: p,
			})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		return out
	}
	return append(build(totals.PendingCards, false), build(totals.PaidCards, true)...)
}

// installmentView pairs an installment with its progress as of today.
type installmentView struct {
	core.Installment
	Progress  core.Progress
	Remaining core.Money
}

func installmentViews(items []core.Installment, today core.Date) []installmentView {
	out := make([]installmentView, len(items))
	for i, inst := range items {
		out[i] = installmentView{
			Installment: inst,
			Progress:    inst.Progress(today),
			Remaining:   inst.RemainingBalance(today),
		}
	}
	return out
}

// forecastBar is a forecast point scaled against the largest month.
type forecastBar struct {
	core.ForecastPoint
	Height int // percent of the tallest bar
}

func forecastBars(points []core.ForecastPoint) []forecastBar {
	var max int64
	for _, p := range points {
		if p.Total.Cents > max {
			max = p.Total.Cents
		}
	}
	out := make([]forecastBar, len(points))
	for i, p := range points {
		out[i] = forecastBar{ForecastPoint: p, Height: int(core.Percent(p.Total.Cents, max, 0))}
	}
	return out
}

func statusClass(s core.CardStatus) string {
	switch s {
	case core.StatusPaid:
		return "status-paid"
	case core.StatusOverdue:
		return "status-overdue"
	default:
		return "status-pending"
	}
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"money":       formatPeso,
		"statusClass": statusClass,
		"percent": func(f float64) string {
			return strings.TrimSuffix(strings.TrimSuffix(fmt.Sprintf("%.1f", f), "0"), ".")
		},
		"derefID": func(id *int64) int64 {
			if id == nil {
				return 0
			}
			return *id
		},
		"isNegative": func(m core.Money) bool { return m.Cents < 0 },
	}
}
