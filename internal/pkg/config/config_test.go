package config

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
)

func required() map[string]string {
	return map[string]string{
		"JWT_SECRET":    "s3cret",
		"TELEMETRY_URL": "http://gps.local/api/positions",
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(context.Background(), envconfig.MapLookuper(required()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.Alerts.TickInterval != 10*time.Second || cfg.Telemetry.Interval != 10*time.Second {
		t.Errorf("unexpected intervals: tick=%s telemetry=%s", cfg.Alerts.TickInterval, cfg.Telemetry.Interval)
	}
	if cfg.Eta.Cooldown != 3*time.Hour || cfg.Eta.MinSpeed != 5 {
		t.Errorf("unexpected eta config %+v", cfg.Eta)
	}
	if cfg.AMQP.URL != "" {
		t.Errorf("AMQP should be disabled by default")
	}
	if loc, _ := cfg.Alerts.Location(); loc.String() != "Asia/Kolkata" {
		t.Errorf("unexpected timezone %s", loc)
	}
}

func TestParse_MissingSecret(t *testing.T) {
	env := required()
	delete(env, "JWT_SECRET")

	if _, err := Parse(context.Background(), envconfig.MapLookuper(env)); err == nil {
		t.Fatal("expected error for missing JWT_SECRET")
	}
}

func TestParse_BadTimezone(t *testing.T) {
	env := required()
	env["ATTENDANCE_TIMEZONE"] = "Mars/Olympus"

	_, err := Parse(context.Background(), envconfig.MapLookuper(env))
	if err == nil || !strings.Contains(err.Error(), "ATTENDANCE_TIMEZONE") {
		t.Fatalf("expected timezone error, got %v", err)
	}
}

func TestParse_NonPositiveInterval(t *testing.T) {
	env := required()
	env["ETA_INTERVAL"] = "0s"

	if _, err := Parse(context.Background(), envconfig.MapLookuper(env)); err == nil {
		t.Fatal("expected error for zero interval")
	}
}
