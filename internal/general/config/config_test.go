package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimalConfig = `
database:
  host: "localhost"
  port: 5432
  user: "bustrack"
  password: "secret"
  database: "bustrack"

rabbitmq:
  host: "localhost"
  port: 5672
  user: "guest"
  password: "guest"
`

func TestLoadFromFileDefaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	if cfg.HTTP.Port != 3000 {
		t.Errorf("http.port default = %d, want 3000", cfg.HTTP.Port)
	}
	if cfg.Throttle.MinIntervalMs != 2000 || cfg.Throttle.MinDistanceM != 20 {
		t.Errorf("throttle defaults = %d ms / %d m, want 2000/20", cfg.Throttle.MinIntervalMs, cfg.Throttle.MinDistanceM)
	}
	if cfg.Stale.WindowS != 60 || cfg.Stale.TickIntervalS != 60 {
		t.Errorf("stale defaults = %d/%d, want 60/60", cfg.Stale.WindowS, cfg.Stale.TickIntervalS)
	}
	if cfg.ETA.TickIntervalS != 10 || cfg.ETA.SmoothingAlpha != 0.3 {
		t.Errorf("eta defaults = %d/%v, want 10/0.3", cfg.ETA.TickIntervalS, cfg.ETA.SmoothingAlpha)
	}
	if cfg.Socket.OutboundQueue != 64 {
		t.Errorf("socket.outbound_queue default = %d, want 64", cfg.Socket.OutboundQueue)
	}
	if cfg.Near.RadiusMaxM != 50000 {
		t.Errorf("near.radius_max_m default = %d, want 50000", cfg.Near.RadiusMaxM)
	}
	if cfg.Workers.Enabled {
		t.Error("workers.enabled must default to false")
	}
	if cfg.JWT.SecretKey == "" {
		t.Error("jwt.secret_key must get a random fallback")
	}

	if cfg.ThrottleMinInterval() != 2*time.Second {
		t.Errorf("ThrottleMinInterval = %v, want 2s", cfg.ThrottleMinInterval())
	}
	if cfg.StaleWindow() != time.Minute {
		t.Errorf("StaleWindow = %v, want 1m", cfg.StaleWindow())
	}
}

func TestLoadFromFileOverrides(t *testing.T) {
	body := minimalConfig + `
http:
  port: 8080

throttle:
  min_interval_ms: 500
  min_distance_m: 5

workers:
  enabled: true
`
	cfg, err := LoadFromFile(writeConfig(t, body))
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.HTTP.Port != 8080 {
		t.Errorf("http.port = %d, want 8080", cfg.HTTP.Port)
	}
	if cfg.Throttle.MinIntervalMs != 500 || cfg.Throttle.MinDistanceM != 5 {
		t.Errorf("throttle overrides not applied: %+v", cfg.Throttle)
	}
	if !cfg.Workers.Enabled {
		t.Error("workers.enabled override not applied")
	}
}

func TestLoadFromFileRejectsBadInput(t *testing.T) {
	missingUser := strings.Replace(minimalConfig, `  user: "bustrack"`, "", 1)
	if _, err := LoadFromFile(writeConfig(t, missingUser)); err == nil {
		t.Error("config without database.user must fail validation")
	}

	unknownKey := minimalConfig + "\nflux:\n  capacitor: 1\n"
	if _, err := LoadFromFile(writeConfig(t, unknownKey)); err == nil {
		t.Error("unknown top-level section must fail parsing")
	}

	dupSection := minimalConfig + "\ndatabase:\n  host: other\n"
	if _, err := LoadFromFile(writeConfig(t, dupSection)); err == nil {
		t.Error("duplicate section must fail parsing")
	}
}
