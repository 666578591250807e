// Package memory is an in-process ledger.Store used by tests and the
// "memory" backend. Everything is lost on restart.
package memory

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"installments/internal/core"
	"installments/internal/ledger"
)

type Store struct {
	mu sync.Mutex

	nextID       int64
	cards        map[int64]core.Card
	payees       map[int64]core.Payee
	categories   map[int64]core.Category
	installments map[int64]core.Installment
	statuses     map[statusKey]core.MonthlyStatus
	cashFlows    map[int64]core.CashFlow
	users        map[string]core.User
}

type statusKey struct {
	cardID int64
	period core.Period
}

var _ ledger.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		cards:        map[int64]core.Card{},
		payees:       map[int64]core.Payee{},
		categories:   map[int64]core.Category{},
		installments: map[int64]core.Installment{},
		statuses:     map[statusKey]core.MonthlyStatus{},
		cashFlows:    map[int64]core.CashFlow{},
		users:        map[string]core.User{},
	}
}

// NewFromFiles builds a store pre-loaded with the cards and payees listed in
// seed_cards.txt and seed_payees.txt under base, one name per line. Missing
// files are ignored.
func NewFromFiles(base string) *Store {
	s := New()
	ctx := context.Background()
	for _, name := range readLines(filepath.Join(base, "seed_cards.txt")) {
		_, _ = s.CreateCard(ctx, core.Card{Name: name, Color: core.DefaultCardColor, DueDay: core.DefaultDueDay})
	}
	for _, name := range readLines(filepath.Join(base, "seed_payees.txt")) {
		_, _ = s.CreatePayee(ctx, core.Payee{Name: name})
	}
	return s
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// Installments

func (s *Store) ListInstallments(_ context.Context, f ledger.InstallmentFilter) ([]core.Installment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Installment, 0, len(s.installments))
	for _, inst := range s.installments {
		if !f.Matches(inst) {
			continue
		}
		out = append(out, s.resolve(inst))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate.Time) {
			return out[i].StartDate.After(out[j].StartDate.Time)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) GetInstallment(_ context.Context, id int64) (core.Installment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.installments[id]
	if !ok {
		return core.Installment{}, core.ErrNotFound
	}
	return s.resolve(inst), nil
}

func (s *Store) CreateInstallment(_ context.Context, inst core.Installment) (core.Installment, error) {
	if err := inst.Validate(); err != nil {
		return core.Installment{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	inst.ID = s.id()
	inst.Card, inst.Payee, inst.Category = nil, nil, nil
	s.installments[inst.ID] = inst
	return s.resolve(inst), nil
}

func (s *Store) DeleteInstallment(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.installments[id]; !ok {
		return core.ErrNotFound
	}
	delete(s.installments, id)
	return nil
}

// resolve fills the relation pointers. Callers hold s.mu.
func (s *Store) resolve(inst core.Installment) core.Installment {
	inst.Card, inst.Payee, inst.Category = nil, nil, nil
	if c, ok := s.cards[inst.CardID]; ok {
		inst.Card = &c
	}
	if p, ok := s.payees[inst.PayeeID]; ok {
		inst.Payee = &p
	}
	if inst.CategoryID != nil {
		if c, ok := s.categories[*inst.CategoryID]; ok {
			inst.Category = &c
		}
	}
	return inst
}

// Monthly statuses

func (s *Store) ListMonthlyStatuses(_ context.Context, p core.Period) ([]core.MonthlyStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.MonthlyStatus
	for k, st := range s.statuses {
		if k.period == p {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CardID < out[j].CardID })
	return out, nil
}

func (s *Store) GetMonthlyStatus(_ context.Context, cardID int64, p core.Period) (core.MonthlyStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.statuses[statusKey{cardID, p}]
	if !ok {
		return core.MonthlyStatus{}, core.ErrNotFound
	}
	return st, nil
}

func (s *Store) ToggleMonthlyStatus(_ context.Context, cardID int64, p core.Period, now time.Time) (core.MonthlyStatus, error) {
	if err := p.Validate(); err != nil {
		return core.MonthlyStatus{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cards[cardID]; !ok {
		return core.MonthlyStatus{}, core.ErrMissingRelation
	}
	key := statusKey{cardID, p}
	st, ok := s.statuses[key]
	if !ok {
		st = core.MonthlyStatus{ID: s.id(), CardID: cardID, Period: p}
	}
	st.IsPaid = !ok || !st.IsPaid
	if st.IsPaid {
		t := now
		st.PaidAt = &t
	} else {
		st.PaidAt = nil
	}
	s.statuses[key] = st
	return st, nil
}

// Cash flows

func (s *Store) ListCashFlows(_ context.Context, p core.Period) ([]core.CashFlow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.CashFlow
	for _, cf := range s.cashFlows {
		if !cf.IsRecurring && (cf.Period == nil || *cf.Period != p) {
			continue
		}
		cf.Category = nil
		if cf.CategoryID != nil {
			if c, ok := s.categories[*cf.CategoryID]; ok {
				cf.Category = &c
			}
		}
		out = append(out, cf)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CreateCashFlow(_ context.Context, cf core.CashFlow) (core.CashFlow, error) {
	if err := cf.Validate(); err != nil {
		return core.CashFlow{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cf.ID = s.id()
	cf.Category = nil
	if cf.IsRecurring {
		cf.Period = nil
	}
	s.cashFlows[cf.ID] = cf
	return cf, nil
}

func (s *Store) DeleteCashFlow(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cashFlows[id]; !ok {
		return core.ErrNotFound
	}
	delete(s.cashFlows, id)
	return nil
}

// Cards

func (s *Store) ListCards(_ context.Context) ([]core.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Card, 0, len(s.cards))
	for _, c := range s.cards {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out, nil
}

func (s *Store) GetCard(_ context.Context, id int64) (core.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cards[id]
	if !ok {
		return core.Card{}, core.ErrNotFound
	}
	return c, nil
}

func (s *Store) CreateCard(_ context.Context, c core.Card) (core.Card, error) {
	if err := c.Validate(); err != nil {
		return core.Card{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.cards {
		if existing.Name == c.Name {
			return core.Card{}, core.ErrDuplicateName
		}
	}
	c.ID = s.id()
	s.cards[c.ID] = c
	return c, nil
}

func (s *Store) DeleteCard(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cards[id]; !ok {
		return core.ErrNotFound
	}
	delete(s.cards, id)
	for k := range s.statuses {
		if k.cardID == id {
			delete(s.statuses, k)
		}
	}
	return nil
}

func (s *Store) CountCardReferences(_ context.Context, id int64) (ledger.References, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var refs ledger.References
	for _, inst := range s.installments {
		if inst.CardID == id {
			refs.Installments++
		}
	}
	return refs, nil
}

// Payees

func (s *Store) ListPayees(_ context.Context) ([]core.Payee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Payee, 0, len(s.payees))
	for _, p := range s.payees {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out, nil
}

func (s *Store) GetPayee(_ context.Context, id int64) (core.Payee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payees[id]
	if !ok {
		return core.Payee{}, core.ErrNotFound
	}
	return p, nil
}

func (s *Store) CreatePayee(_ context.Context, p core.Payee) (core.Payee, error) {
	if err := p.Validate(); err != nil {
		return core.Payee{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.payees {
		if existing.Name == p.Name {
			return core.Payee{}, core.ErrDuplicateName
		}
	}
	p.ID = s.id()
	s.payees[p.ID] = p
	return p, nil
}

func (s *Store) DeletePayee(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.payees[id]; !ok {
		return core.ErrNotFound
	}
	delete(s.payees, id)
	return nil
}

func (s *Store) CountPayeeReferences(_ context.Context, id int64) (ledger.References, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var refs ledger.References
	for _, inst := range s.installments {
		if inst.PayeeID == id {
			refs.Installments++
		}
	}
	return refs, nil
}

// Categories

func (s *Store) ListCategories(_ context.Context) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out, nil
}

func (s *Store) GetCategory(_ context.Context, id int64) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok {
		return core.Category{}, core.ErrNotFound
	}
	return c, nil
}

func (s *Store) CreateCategory(_ context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.categories {
		if existing.Name == c.Name {
			return core.Category{}, core.ErrDuplicateName
		}
	}
	c.ID = s.id()
	s.categories[c.ID] = c
	return c, nil
}

func (s *Store) DeleteCategory(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[id]; !ok {
		return core.ErrNotFound
	}
	delete(s.categories, id)
	return nil
}

func (s *Store) CountCategoryReferences(_ context.Context, id int64) (ledger.References, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var refs ledger.References
	for _, inst := range s.installments {
		if inst.CategoryID != nil && *inst.CategoryID == id {
			refs.Installments++
		}
	}
	for _, cf := range s.cashFlows {
		if cf.CategoryID != nil && *cf.CategoryID == id {
			refs.CashFlows++
		}
	}
	return refs, nil
}

// Users

func (s *Store) CreateUser(_ context.Context, username, passwordHash string) (core.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return core.User{}, core.ErrEmptyName
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[username]; ok {
		return core.User{}, core.ErrDuplicateName
	}
	u := core.User{ID: s.id(), Username: username, PasswordHash: passwordHash}
	s.users[username] = u
	return u, nil
}

func (s *Store) FindUserByUsername(_ context.Context, username string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return core.User{}, core.ErrNotFound
	}
	return u, nil
}

func (s *Store) CountUsers(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users), nil
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	seen := map[string]struct{}{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
