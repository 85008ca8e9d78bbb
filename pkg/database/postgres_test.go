package database

import (
	"testing"
	"time"
)

func TestDefaultConfig_EnvOverrides(t *testing.T) {
	t.Setenv("DB_MAX_OPEN_CONNS", "")
	t.Setenv("DB_MAX_IDLE_CONNS", "")
	t.Setenv("DB_CONN_MAX_LIFETIME", "")

	cfg := DefaultConfig()
	if cfg.MaxOpenConns != 25 || cfg.MaxIdleConns != 5 || cfg.ConnMaxLifetime != 5*time.Minute {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}

	t.Setenv("DB_MAX_OPEN_CONNS", "50")
	t.Setenv("DB_CONN_MAX_LIFETIME", "10m")
	cfg = DefaultConfig()
	if cfg.MaxOpenConns != 50 {
		t.Fatalf("expected 50 open conns, got %d", cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime != 10*time.Minute {
		t.Fatalf("expected 10m lifetime, got %s", cfg.ConnMaxLifetime)
	}
}

func TestConnect_RequiresURL(t *testing.T) {
	if _, err := Connect(Config{}, nil); err == nil {
		t.Fatal("expected error for empty URL")
	}
}
