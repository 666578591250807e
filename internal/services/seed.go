package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"installments/internal/auth"
	"installments/internal/core"
	"installments/internal/ledger"
)

// DefaultCards is the card list created on an empty database.
var DefaultCards = []string{
	"Citi Simplicity",
	"Citi Cashback",
	"BDO",
	"Unionbank Gold",
	"HSBC Platinum",
	"RCBC",
	"JCB",
}

// Credential is a login to create at first start.
type Credential struct {
	Username string
	Password string
}

// Seed fills an empty database: the default cards when no card exists and the
// given users when no user exists. Running it again is a no-op.
func Seed(ctx context.Context, store ledger.Store, users []Credential) error {
	cards, err := store.ListCards(ctx)
	if err != nil {
		return fmt.Errorf("list cards: %w", err)
	}
	if len(cards) == 0 {
		for _, name := range DefaultCards {
			_, err := store.CreateCard(ctx, core.Card{Name: name, Color: core.DefaultCardColor, DueDay: core.DefaultDueDay})
			if err != nil && !errors.Is(err, core.ErrDuplicateName) {
				return fmt.Errorf("seed card %q: %w", name, err)
			}
		}
		slog.InfoContext(ctx, "Seeded default cards", "count", len(DefaultCards))
	}

	n, err := store.CountUsers(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if n > 0 || len(users) == 0 {
		return nil
	}
	for _, u := range users {
		hash, err := auth.HashPassword(u.Password)
		if err != nil {
			return fmt.Errorf("seed user %q: %w", u.Username, err)
		}
		if _, err := store.CreateUser(ctx, u.Username, hash); err != nil && !errors.Is(err, core.ErrDuplicateName) {
			return fmt.Errorf("seed user %q: %w", u.Username, err)
		}
	}
	slog.InfoContext(ctx, "Seeded users", "count", len(users))
	return nil
}
