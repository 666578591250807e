package http

import (
	"net/http"

	"installments/internal/core"
	"installments/internal/ledger"
	applog "installments/internal/log"
	"installments/internal/services"
)

type installmentsView struct {
	pageView
	Cards      []core.Card
	Payees     []core.Payee
	Categories []core.Category
	List       installmentListView
}

type installmentListView struct {
	Items     []installmentView
	TotalBurn core.Money
}

func (s *Server) installmentList(r *http.Request) (installmentListView, error) {
	ctx := r.Context()
	items, err := s.deps.Catalog.ListInstallments(ctx, ledger.InstallmentFilter{})
	if err != nil {
		return installmentListView{}, err
	}
	current := core.PeriodOf(s.now())
	totals, err := s.deps.Totals.CalculateMonthlyTotals(ctx, core.TotalsQuery{Period: &current})
	if err != nil {
		return installmentListView{}, err
	}
	return installmentListView{
		Items:     installmentViews(items, core.DateOf(s.now())),
		TotalBurn: totals.TotalBurn,
	}, nil
}

func (s *Server) handleInstallmentsPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	view := installmentsView{pageView: s.page(r, "Installments", "installments")}

	var err error
	if view.Cards, err = s.deps.Catalog.Cards(ctx); err != nil {
		s.writeError(w, r, err, applog.OpRender)
		return
	}
	if view.Payees, err = s.deps.Catalog.Payees(ctx); err != nil {
		s.writeError(w, r, err, applog.OpRender)
		return
	}
	if view.Categories, err = s.deps.Catalog.Categories(ctx); err != nil {
		s.writeError(w, r, err, applog.OpRender)
		return
	}
	if view.List, err = s.installmentList(r); err != nil {
		s.writeError(w, r, err, applog.OpRender)
		return
	}
	NewHTMXResponse().BodyTemplate(s.templates, "installments.html", view).Write(w)
}

func (s *Server) handleInstallmentList(w http.ResponseWriter, r *http.Request) {
	list, err := s.installmentList(r)
	if err != nil {
		s.writeError(w, r, err, applog.OpList)
		return
	}
	NewHTMXResponse().BodyTemplate(s.templates, "installment_list", list).Write(w)
}

// handleCreateInstallment accepts description, total_amount, total_months,
// card_id, payee_id, category_id (optional) and start_period (YYYY-MM).
func (s *Server) handleCreateInstallment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}

	total, err := parser.Money("total_amount")
	if err != nil {
		s.writeError(w, r, err, applog.OpCreate)
		return
	}
	months, err := parser.Int("total_months")
	if err != nil {
		s.writeError(w, r, core.ErrInvalidDuration, applog.OpCreate)
		return
	}
	start, err := parser.Period("start_period")
	if err != nil {
		s.writeError(w, r, err, applog.OpCreate)
		return
	}
	cardID, err := parser.ID("card_id")
	if err != nil {
		s.writeError(w, r, err, applog.OpCreate)
		return
	}
	payeeID, err := parser.ID("payee_id")
	if err != nil {
		s.writeError(w, r, err, applog.OpCreate)
		return
	}
	categoryID, err := parser.OptionalID("category_id")
	if err != nil {
		s.writeError(w, r, err, applog.OpCreate)
		return
	}

	inst, err := s.deps.Catalog.CreateInstallment(ctx, services.InstallmentInput{
		Description: parser.Get("description"),
		Total:       total,
		Months:      months,
		Start:       start,
		CardID:      cardID,
		PayeeID:     payeeID,
		CategoryID:  categoryID,
	})
	if err != nil {
		s.writeError(w, r, err, applog.OpCreate)
		return
	}
	s.appMetrics.installmentsCreated.Add(1)
	s.invalidateForecast()

	list, err := s.installmentList(r)
	if err != nil {
		s.writeError(w, r, err, applog.OpList)
		return
	}
	NewHTMXResponse().
		TriggerInstallmentChanged(inst.ID).
		TriggerFormReset().
		TriggerSuccessNotification("Added " + inst.Description).
		BodyTemplate(s.templates, "installment_list", list).
		Write(w)
}

func (s *Server) handleDeleteInstallment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := PathID(r, "id")
	if err != nil {
		s.writeError(w, r, err, applog.OpDelete)
		return
	}
	if err := s.deps.Catalog.DeleteInstallment(ctx, id); err != nil {
		s.writeError(w, r, err, applog.OpDelete)
		return
	}
	s.appMetrics.installmentsDeleted.Add(1)
	s.invalidateForecast()

	list, err := s.installmentList(r)
	if err != nil {
		s.writeError(w, r, err, applog.OpList)
		return
	}
	NewHTMXResponse().
		TriggerInstallmentChanged(id).
		TriggerSuccessNotification("Installment removed").
		BodyTemplate(s.templates, "installment_list", list).
		Write(w)
}
