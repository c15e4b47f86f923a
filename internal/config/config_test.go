package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("expected default addr, got %q", cfg.HTTPAddr)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Fatalf("unexpected shutdown timeout %s", cfg.ShutdownTimeout)
	}
	if cfg.Parcel.ServiceCode != "AUS_PARCEL_REGULAR" || cfg.Parcel.FromPostcode == "" {
		t.Fatalf("unexpected parcel defaults %+v", cfg.Parcel)
	}
	if cfg.Payment.Currency != "AUD" {
		t.Fatalf("unexpected currency %q", cfg.Payment.Currency)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092 ,")
	t.Setenv("CURRENCY", "inr")
	t.Setenv("PARCEL_WEIGHT_KG", "3.5")
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Fatalf("expected override addr, got %q", cfg.HTTPAddr)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("unexpected brokers %v", cfg.KafkaBrokers)
	}
	if cfg.Payment.Currency != "INR" {
		t.Fatalf("expected upper-cased currency, got %q", cfg.Payment.Currency)
	}
	if cfg.Parcel.WeightKG != 3.5 {
		t.Fatalf("unexpected weight %v", cfg.Parcel.WeightKG)
	}
}

func TestFromEnvConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("CURRENCY: inr\nRATE_LIMIT_BURST: 3\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Payment.Currency != "INR" || cfg.RateLimitBurst != 3 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
}

func TestFromEnvBadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("CURRENCY: [inr\n\tbroken"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected a parse error for a malformed file")
	}

	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected an error for a named file that does not exist")
	}
}
