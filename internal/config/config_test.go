package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Port = %s, want 8080", cfg.Server.Port)
	}
	if cfg.Database.MaxOpenConns != 25 {
		t.Errorf("MaxOpenConns = %d, want 25", cfg.Database.MaxOpenConns)
	}
	if cfg.Reclaimer.Interval != 2*time.Minute {
		t.Errorf("Reclaimer interval = %s, want 2m", cfg.Reclaimer.Interval)
	}
	if cfg.Reclaimer.ReservationWindow != 15*time.Minute {
		t.Errorf("Reservation window = %s, want 15m", cfg.Reclaimer.ReservationWindow)
	}
	if cfg.Reclaimer.LockKey != 987654321 {
		t.Errorf("Lock key = %d", cfg.Reclaimer.LockKey)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %s, want info", cfg.LogLevel)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("RESERVATION_WINDOW", "30m")
	t.Setenv("RECLAIMER_LOCK_KEY", "42")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Port = %s", cfg.Server.Port)
	}
	if cfg.Reclaimer.ReservationWindow != 30*time.Minute {
		t.Errorf("Reservation window = %s", cfg.Reclaimer.ReservationWindow)
	}
	if cfg.Reclaimer.LockKey != 42 {
		t.Errorf("Lock key = %d", cfg.Reclaimer.LockKey)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("Brokers = %v", cfg.Kafka.Brokers)
	}
}

func TestInvalidDurationFallsBack(t *testing.T) {
	t.Setenv("RECLAIMER_INTERVAL", "not-a-duration")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Reclaimer.Interval != 2*time.Minute {
		t.Errorf("Interval = %s, want default 2m", cfg.Reclaimer.Interval)
	}
}
