package http

import (
	"context"
	"net/http"

	"golang.org/x/sync/errgroup"

	"installments/internal/auth"
	"installments/internal/core"
	applog "installments/internal/log"
	"installments/internal/services"
)

// forecastMonths is the length of the dashboard projection.
const forecastMonths = 12

// pageView is shared by every full page.
type pageView struct {
	Title    string
	Active   string
	LoggedIn bool
	Period   core.Period
}

func (s *Server) page(r *http.Request, title, active string) pageView {
	_, loggedIn := auth.ClaimsFrom(r.Context())
	return pageView{
		Title:    title,
		Active:   active,
		LoggedIn: loggedIn,
		Period:   core.PeriodOf(s.now()),
	}
}

type dashboardView struct {
	pageView
	Cards  []core.Card
	Payees []core.Payee
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cards, err := s.deps.Catalog.Cards(ctx)
	if err != nil {
		s.writeError(w, r, err, applog.OpRender)
		return
	}
	payees, err := s.deps.Catalog.Payees(ctx)
	if err != nil {
		s.writeError(w, r, err, applog.OpRender)
		return
	}
	data := dashboardView{
		pageView: s.page(r, "Dashboard", "dashboard"),
		Cards:    cards,
		Payees:   payees,
	}
	NewHTMXResponse().BodyTemplate(s.templates, "dashboard.html", data).Write(w)
}

type summaryView struct {
	Totals     core.MonthlyTotals
	Cash       core.CashFlowSummary
	Disposable core.Money
	Forecast   []forecastBar
	Freedom    core.FreedomDate
	Badges     []badgeView
}

// forecast returns the projection from the current month, cached until the
// next installment write.
func (s *Server) forecast(ctx context.Context) ([]core.ForecastPoint, error) {
	key := core.PeriodOf(s.now())
	if points, ok := s.forecastCache.Get(key); ok {
		s.appMetrics.forecastHits.Add(1)
		return points, nil
	}
	s.appMetrics.forecastMisses.Add(1)
	points, err := s.deps.Totals.Forecast(ctx, forecastMonths)
	if err != nil {
		return nil, err
	}
	s.forecastCache.Set(key, points)
	return points, nil
}

// handleSummary renders the current month: card totals, cash flow,
// disposable cash, the projection and the freedom date.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	current := core.PeriodOf(s.now())

	var (
		view   summaryView
		points []core.ForecastPoint
		cards  []core.Card
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		view.Totals, err = s.deps.Totals.CalculateMonthlyTotals(ctx, core.TotalsQuery{Period: &current})
		return err
	})
	g.Go(func() error {
		var err error
		view.Cash, err = s.deps.CashFlow.MonthlyCashFlow(ctx, current)
		return err
	})
	g.Go(func() error {
		var err error
		points, err = s.forecast(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		view.Freedom, err = s.deps.Totals.FreedomDate(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		cards, err = s.deps.Catalog.Cards(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		s.writeError(w, r, err, applog.OpRender)
		return
	}

	view.Disposable = core.DisposableCash(view.Cash.LiquidCash, view.Totals.TotalBurn)
	view.Forecast = forecastBars(points)
	view.Badges = badgesFor(view.Totals, cards, current)

	NewHTMXResponse().BodyTemplate(s.templates, "summary", view).Write(w)
}

type forecastView struct {
	Totals  core.MonthlyTotals
	Period  core.Period
	Badges  []badgeView
	Items   []installmentView
	CardID  int64
	PayeeID int64
}

// handleForecast renders the totals for a chosen month, optionally narrowed
// to one card or payee.
func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	p := ParsePeriodParams(q, s.now())

	cardID, err := ParseOptionalID(q, "card_id")
	if err != nil {
		s.writeError(w, r, err, applog.OpForecast)
		return
	}
	payeeID, err := ParseOptionalID(q, "payee_id")
	if err != nil {
		s.writeError(w, r, err, applog.OpForecast)
		return
	}

	totals, err := s.deps.Totals.CalculateMonthlyTotals(ctx, core.TotalsQuery{Period: &p, CardID: cardID, PayeeID: payeeID})
	if err != nil {
		s.writeError(w, r, err, applog.OpForecast)
		return
	}
	cards, err := s.deps.Catalog.Cards(ctx)
	if err != nil {
		s.writeError(w, r, err, applog.OpForecast)
		return
	}

	today := core.DateOf(s.now())
	view := forecastView{
		Totals: totals,
		Period: p,
		Badges: badgesFor(totals, cards, core.PeriodOf(s.now())),
		Items:  installmentViews(totals.Items, today),
	}
	if cardID != nil {
		view.CardID = *cardID
	}
	if payeeID != nil {
		view.PayeeID = *payeeID
	}
	NewHTMXResponse().BodyTemplate(s.templates, "forecast", view).Write(w)
}

// handleToggleStatus flips a card's paid flag for one month and returns the
// refreshed badge.
func (s *Server) handleToggleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cardID, err := PathID(r, "card_id")
	if err != nil {
		s.writeError(w, r, err, applog.OpToggle)
		return
	}
	year, yerr := PathInt(r, "year")
	month, merr := PathInt(r, "month")
	if yerr != nil || merr != nil {
		s.writeError(w, r, core.ErrInvalidPeriod, applog.OpToggle)
		return
	}

	st, err := s.deps.Status.ToggleCardStatus(ctx, cardID, year, month)
	if err != nil {
		s.writeError(w, r, err, applog.OpToggle)
		return
	}
	s.appMetrics.statusToggles.Add(1)

	badge, err := s.badgeFor(ctx, cardID, st)
	if err != nil {
		s.writeError(w, r, err, applog.OpToggle)
		return
	}

	NewHTMXResponse().
		TriggerStatusToggled(cardID, st.Period, st.IsPaid).
		TriggerSuccessNotification(badge.Name + " updated").
		BodyTemplate(s.templates, "status_badge", badge).
		Write(w)
}

// badgeFor rebuilds one card's badge after a toggle.
func (s *Server) badgeFor(ctx context.Context, cardID int64, st core.MonthlyStatus) (badgeView, error) {
	p := st.Period
	totals, err := s.deps.Totals.CalculateMonthlyTotals(ctx, core.TotalsQuery{Period: &p, CardID: &cardID})
	if err != nil {
		return badgeView{}, err
	}
	cards, err := s.deps.Catalog.Cards(ctx)
	if err != nil {
		return badgeView{}, err
	}

	badge := badgeView{
		CardID: cardID,
		Name:   core.UnknownCardName,
		Color:  core.DefaultCardColor,
		Status: services.ResolveStatus(st.IsPaid, p, core.PeriodOf(s.now())),
		Period: p,
	}
	for _, c := range cards {
		if c.ID == cardID {
			badge.Name, badge.Color = c.Name, c.Color
		}
	}
	for _, buckets := range []map[string]core.CardBucket{totals.PendingCards, totals.PaidCards} {
		for _, b := range buckets {
			if b.ID == cardID {
				badge.Total = b.Total
			}
		}
	}
	return badge, nil
}
