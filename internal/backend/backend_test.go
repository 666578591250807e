package backend

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"installments/internal/amqp"
	"installments/internal/config"
	"installments/internal/core"
)

func TestFromAppConfig(t *testing.T) {
	cfg, err := FromAppConfig(&config.Config{DataBackend: "sqlite", SQLiteDBPath: "x.db", AMQPExchange: "installments"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Type != SQLiteBackend || cfg.SQLiteDBPath != "x.db" || cfg.AMQPExchange != "installments" {
		t.Errorf("cfg = %+v", cfg)
	}

	for _, bad := range []*config.Config{nil, {DataBackend: "sheets"}, {DataBackend: "sqlite"}} {
		if _, err := FromAppConfig(bad); err == nil {
			t.Errorf("FromAppConfig(%+v) should fail", bad)
		}
	}
}

func TestCreateMemoryBackend(t *testing.T) {
	res, err := NewFactory(nil).Create(context.Background(), Config{Type: MemoryBackend})
	if err != nil {
		t.Fatal(err)
	}
	defer res.Close()

	if res.Events != nil || res.SQLite != nil {
		t.Errorf("memory backend without AMQP should have no events or sqlite: %+v", res)
	}
	if err := res.Ping(context.Background()); err != nil {
		t.Error(err)
	}
	if _, err := res.Store.CreateCard(context.Background(), core.Card{Name: "BDO", Color: core.DefaultCardColor, DueDay: 10}); err != nil {
		t.Errorf("store not usable: %v", err)
	}
}

func TestCreateSQLiteBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	res, err := NewFactory(nil).Create(context.Background(), Config{Type: SQLiteBackend, SQLiteDBPath: path})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer res.Close()

	if res.SQLite == nil || res.Events != nil {
		t.Errorf("result = %+v", res)
	}
	if err := res.Ping(context.Background()); err != nil {
		t.Errorf("Ping() = %v", err)
	}
	cards, err := res.Store.ListCards(context.Background())
	if err != nil || len(cards) != 0 {
		t.Errorf("ListCards() = %v, %v", cards, err)
	}
}

func TestUnreachableAMQPIsNotFatal(t *testing.T) {
	f := NewFactory(nil)
	f.dial = func(string, string, string) (*amqp.Client, error) { return nil, errors.New("connection refused") }

	res, err := f.Create(context.Background(), Config{Type: MemoryBackend, AMQPURL: "amqp://localhost"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if res.Events != nil {
		t.Error("events should be disabled when AMQP is unreachable")
	}
	if err := res.Close(); err != nil {
		t.Error(err)
	}
}
