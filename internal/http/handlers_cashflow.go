package http

import (
	"net/http"

	"installments/internal/core"
	applog "installments/internal/log"
	"installments/internal/services"
)

type cashFlowPageView struct {
	pageView
	Categories []core.Category
	Summary    core.CashFlowSummary
	Prev, Next core.Period
}

func (s *Server) handleCashFlowPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := ParsePeriodParams(r.URL.Query(), s.now())

	categories, err := s.deps.Catalog.Categories(ctx)
	if err != nil {
		s.writeError(w, r, err, applog.OpRender)
		return
	}
	summary, err := s.deps.CashFlow.MonthlyCashFlow(ctx, p)
	if err != nil {
		s.writeError(w, r, err, applog.OpRender)
		return
	}

	view := cashFlowPageView{
		pageView:   s.page(r, "Cash flow", "cashflow"),
		Categories: categories,
		Summary:    summary,
		Prev:       p.AddMonths(-1),
		Next:       p.AddMonths(1),
	}
	view.Period = p
	NewHTMXResponse().BodyTemplate(s.templates, "cashflow.html", view).Write(w)
}

func (s *Server) handleCashFlowList(w http.ResponseWriter, r *http.Request) {
	p := ParsePeriodParams(r.URL.Query(), s.now())
	summary, err := s.deps.CashFlow.MonthlyCashFlow(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err, applog.OpList)
		return
	}
	NewHTMXResponse().BodyTemplate(s.templates, "cashflow_list", summary).Write(w)
}

// handleCreateCashFlow accepts description, amount, kind (income|expense),
// is_recurring, period (YYYY-MM, required unless recurring) and category_id.
func (s *Server) handleCreateCashFlow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}

	amount, err := parser.Money("amount")
	if err != nil {
		s.writeError(w, r, err, applog.OpCreate)
		return
	}
	categoryID, err := parser.OptionalID("category_id")
	if err != nil {
		s.writeError(w, r, err, applog.OpCreate)
		return
	}

	recurring := parser.Bool("is_recurring")
	view := core.PeriodOf(s.now())
	var period *core.Period
	if !recurring {
		p, err := parser.Period("period")
		if err != nil {
			s.writeError(w, r, err, applog.OpCreate)
			return
		}
		period, view = &p, p
	} else if p, err := parser.Period("period"); err == nil {
		view = p
	}

	cf, err := s.deps.Catalog.CreateCashFlow(ctx, services.CashFlowInput{
		Description: parser.Get("description"),
		Amount:      amount,
		IsIncome:    parser.Get("kind") == "income" || parser.Bool("is_income"),
		IsRecurring: recurring,
		Period:      period,
		CategoryID:  categoryID,
	})
	if err != nil {
		s.writeError(w, r, err, applog.OpCreate)
		return
	}
	s.appMetrics.cashFlowsCreated.Add(1)

	applog.FromContext(ctx).InfoContext(ctx, "Cash flow created",
		"cash_flow_id", cf.ID,
		applog.FieldAmountCents, cf.Amount.Cents,
		"recurring", cf.IsRecurring)

	s.writeCashFlowList(w, r, view, "Saved "+cf.Description)
}

func (s *Server) handleDeleteCashFlow(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		s.writeError(w, r, err, applog.OpDelete)
		return
	}
	if err := s.deps.Catalog.DeleteCashFlow(r.Context(), id); err != nil {
		s.writeError(w, r, err, applog.OpDelete)
		return
	}
	s.writeCashFlowList(w, r, ParsePeriodParams(r.URL.Query(), s.now()), "Entry removed")
}

func (s *Server) writeCashFlowList(w http.ResponseWriter, r *http.Request, p core.Period, message string) {
	summary, err := s.deps.CashFlow.MonthlyCashFlow(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err, applog.OpList)
		return
	}
	NewHTMXResponse().
		TriggerCashFlowChanged(p).
		TriggerFormReset().
		TriggerSuccessNotification(message).
		BodyTemplate(s.templates, "cashflow_list", summary).
		Write(w)
}
