package http

import (
	"context"
	"net/http"
	"strconv"

	"installments/internal/core"
	applog "installments/internal/log"
)

type settingsView struct {
	pageView
	Cards      []core.Card
	Payees     []core.Payee
	Categories []core.Category
}

func (s *Server) handleSettingsPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	view := settingsView{pageView: s.page(r, "Settings", "settings")}

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
	NewHTMXResponse().BodyTemplate(s.templates, "settings.html", view).Write(w)
}

// catalogList renders one of the settings lists after a change.
type catalogList struct {
	kind     string
	template string
	load     func(ctx context.Context) (interface{}, error)
}

func (s *Server) catalogLists() map[string]catalogList {
	return map[string]catalogList{
		"cards": {"cards", "card_list", func(ctx context.Context) (interface{}, error) {
			return s.deps.Catalog.Cards(ctx)
		}},
		"payees": {"payees", "payee_list", func(ctx context.Context) (interface{}, error) {
			return s.deps.Catalog.Payees(ctx)
		}},
		"categories": {"categories", "category_list", func(ctx context.Context) (interface{}, error) {
			return s.deps.Catalog.Categories(ctx)
		}},
	}
}

func (s *Server) writeCatalogList(w http.ResponseWriter, r *http.Request, kind, message string) {
	list := s.catalogLists()[kind]
	items, err := list.load(r.Context())
	if err != nil {
		s.writeError(w, r, err, applog.OpList)
		return
	}
	// Forecast labels carry card names.
	s.invalidateForecast()
	NewHTMXResponse().
		TriggerCatalogChanged(list.kind).
		TriggerFormReset().
		TriggerSuccessNotification(message).
		BodyTemplate(s.templates, list.template, items).
		Write(w)
}

// handleCreateCard accepts name, color (#rrggbb, optional) and due_day
// (1-31, optional).
func (s *Server) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	dueDay := 0
	if v := parser.Get("due_day"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, r, core.ErrInvalidDueDay, applog.OpCreate)
			return
		}
		dueDay = n
	}
	card, err := s.deps.Catalog.CreateCard(r.Context(), parser.Get("name"), parser.Get("color"), dueDay)
	if err != nil {
		s.writeError(w, r, err, applog.OpCreate)
		return
	}
	s.writeCatalogList(w, r, "cards", "Added card "+card.Name)
}

func (s *Server) handleCreatePayee(w http.ResponseWriter, r *http.Request) {
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	payee, err := s.deps.Catalog.CreatePayee(r.Context(), parser.Get("name"))
	if err != nil {
		s.writeError(w, r, err, applog.OpCreate)
		return
	}
	s.writeCatalogList(w, r, "payees", "Added payee "+payee.Name)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	cat, err := s.deps.Catalog.CreateCategory(r.Context(), parser.Get("name"), parser.Get("color"))
	if err != nil {
		s.writeError(w, r, err, applog.OpCreate)
		return
	}
	s.writeCatalogList(w, r, "categories", "Added category "+cat.Name)
}

func (s *Server) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	s.deleteCatalogEntry(w, r, "cards", s.deps.Catalog.DeleteCard)
}

func (s *Server) handleDeletePayee(w http.ResponseWriter, r *http.Request) {
	s.deleteCatalogEntry(w, r, "payees", s.deps.Catalog.DeletePayee)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	s.deleteCatalogEntry(w, r, "categories", s.deps.Catalog.DeleteCategory)
}

// deleteCatalogEntry removes one entry; a still-referenced entry answers 409.
func (s *Server) deleteCatalogEntry(w http.ResponseWriter, r *http.Request, kind string, del func(context.Context, int64) error) {
	id, err := PathID(r, "id")
	if err != nil {
		s.writeError(w, r, err, applog.OpDelete)
		return
	}
	if err := del(r.Context(), id); err != nil {
		s.writeError(w, r, err, applog.OpDelete)
		return
	}
	s.writeCatalogList(w, r, kind, "Removed")
}
