package cli

import (
	"errors"
	"strings"
	"testing"

	"installments/internal/config"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("DATA_BACKEND", "memory")
	t.Setenv("PORT", "9090")

	cfg, err := LoadConfig("installments")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Port != "9090" || cfg.DataBackend != "memory" {
		t.Errorf("cfg = %+v", cfg)
	}

	_, err = LoadConfig("sheets-worker", func(*config.Config) error { return errors.New("missing spreadsheet") })
	if err == nil || !strings.HasPrefix(err.Error(), "sheets-worker: ") {
		t.Errorf("validator error = %v", err)
	}

	t.Setenv("PORT", "not-a-port")
	if _, err := LoadConfig("installments"); err == nil {
		t.Error("expected validation error")
	}
}

func TestSetupLogger(t *testing.T) {
	l := SetupLogger(&config.Config{LogLevel: "debug", LogFormat: "json"}, "reminder")
	if l.Component() != "reminder" {
		t.Errorf("Component() = %q", l.Component())
	}
	if SetupLogger(nil, "app") == nil {
		t.Error("SetupLogger(nil) returned nil")
	}
}
