package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadDefaults(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if c.Server.Port != "8080" || c.Analytics.WindowSize != 50 || c.Redis.Retention != time.Hour {
		t.Fatalf("defaults=%+v", c)
	}
	if c.Simulation.Bearing.BallCount != 8 || c.Simulation.Bearing.ShaftSpeedRPM != 25 {
		t.Fatalf("bearing=%+v", c.Simulation.Bearing)
	}
}

func TestLoadYAMLAndEnv(t *testing.T) {
	p := writeFile(t, `
logLevel: debug
server:
  port: "9090"
simulation:
  seed: 42
  bearing:
    shaftSpeedRPM: 30
    ballCount: 10
redis:
  retention: 2h
scheduler:
  enabled: true
  spec: "@every 1m"
  assets: [wheel-a, wheel-b]
`)
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("ANOMALY_THRESHOLD", "3.5")
	t.Setenv("SCHEDULER_ASSETS", "x, y ,")
	t.Setenv("WINDOW_SIZE", "not-a-number")

	c, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name      string
		got, want any
	}{
		{"log level", c.LogLevel, "debug"},
		{"port from env", c.Server.Port, "7070"},
		{"seed", c.Simulation.Seed, uint64(42)},
		{"rpm", c.Simulation.Bearing.ShaftSpeedRPM, 30.0},
		{"balls", c.Simulation.Bearing.BallCount, 10},
		// поле не задано в файле, остается значение по умолчанию
		{"pitch", c.Simulation.Bearing.PitchDiameterMM, 50.0},
		{"retention", c.Redis.Retention, 2 * time.Hour},
		{"threshold from env", c.Analytics.AnomalyThreshold, 3.5},
		{"bad env ignored", c.Analytics.WindowSize, 50},
		{"spec", c.Scheduler.Spec, "@every 1m"},
		{"assets", strings.Join(c.Scheduler.Assets, "|"), "x|y"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Fatalf("%s: got %v want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestLoadInvalid(t *testing.T) {
	p := writeFile(t, "analytics:\n  windowSize: 1\nsimulation:\n  bearing:\n    ballCount: 0\n")
	_, err := Load(p)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"windowSize", "ballCount"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected read error")
	}
	if _, err := Load(writeFile(t, "server: [")); err == nil {
		t.Fatal("expected yaml error")
	}
}
