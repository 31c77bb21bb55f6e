package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(NewViper())
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if cfg.HTTPAddress != defaultHTTPAddress {
		t.Fatalf("expected default address %q, got %q", defaultHTTPAddress, cfg.HTTPAddress)
	}
	if cfg.HistoryLimit != 50 {
		t.Fatalf("expected history limit 50, got %d", cfg.HistoryLimit)
	}
	if cfg.UploadsMaxBytes != 16*1024*1024 {
		t.Fatalf("expected 16 MiB upload limit, got %d", cfg.UploadsMaxBytes)
	}
	if cfg.PersistenceTimeout != 5*time.Second {
		t.Fatalf("expected 5s persistence timeout, got %s", cfg.PersistenceTimeout)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("CHATROOM_HISTORY_LIMIT", "20")
	t.Setenv("CHATROOM_NAMES_PATH", "/tmp/names.txt")

	cfg, err := Load(NewViper())
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if cfg.HistoryLimit != 20 {
		t.Fatalf("expected history limit from env, got %d", cfg.HistoryLimit)
	}
	if cfg.NamesPath != "/tmp/names.txt" {
		t.Fatalf("expected names path from env, got %q", cfg.NamesPath)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	configViper := NewViper()
	configViper.Set("history.limit", 0)

	_, err := Load(configViper)
	if err == nil {
		t.Fatal("expected validation error for zero history limit")
	}
	if !strings.Contains(err.Error(), "history.limit") {
		t.Fatalf("expected history.limit in error, got %v", err)
	}

	configViper = NewViper()
	configViper.Set("database.path", "  ")
	if _, err := Load(configViper); err == nil {
		t.Fatal("expected validation error for blank database path")
	}
}
