package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bearing-fault-sim/internal/models"
	"bearing-fault-sim/internal/store"
	"bearing-fault-sim/internal/trace"
)

func writeBaseline(t *testing.T, n int) string {
	t.Helper()
	s := make([]models.VibrationSample, n)
	for i := range s {
		s[i] = models.VibrationSample{Timestamp: float64(i) / 100, AccelZ: 1}
	}
	p := filepath.Join(t.TempDir(), "baseline.csv")
	f, err := os.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := trace.WriteTrace(f, models.VibrationTrace{Samples: s}); err != nil {
		t.Fatal(err)
	}
	return p
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return len(strings.Split(strings.TrimSpace(string(b)), "\n"))
}

func TestSimulateCommand(t *testing.T) {
	t.Setenv("BASELINE_PATH", writeBaseline(t, 300))
	t.Setenv("SIM_SEED", "7")
	t.Setenv("LOG_LEVEL", "error")
	out := filepath.Join(t.TempDir(), "rides.csv")

	if _, err := run(t, "simulate", "--fault", "ball_fault", "--severity", "0.3", "--count", "2", "--out", out); err != nil {
		t.Fatal(err)
	}
	if n := countLines(t, out); n != 1+2*300 {
		t.Fatalf("lines=%d", n)
	}
	b, _ := os.ReadFile(out)
	if !strings.Contains(string(b), ",BALL_FAULT,2,0.3000") {
		t.Fatalf("second ride row missing")
	}

	if _, err := run(t, "simulate", "--fault", "wobble", "--out", out); err == nil {
		t.Fatal("expected unknown fault error")
	}
}

func TestGenerateCommandArchives(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("BASELINE_PATH", writeBaseline(t, 200))
	t.Setenv("STORE_PATH", filepath.Join(dir, "db", "rides.db"))
	t.Setenv("LOG_LEVEL", "error")
	out := filepath.Join(dir, "ds.csv")

	if _, err := run(t, "generate", "--per-class", "1", "--archive", "--out", out); err != nil {
		t.Fatal(err)
	}
	if n := countLines(t, out); n != 1+5*200 {
		t.Fatalf("lines=%d", n)
	}

	st, err := store.Open(filepath.Join(dir, "db", "rides.db"))
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := st.Count(); n != 5 {
		t.Fatalf("archived=%d want 5", n)
	}
	st.Close()

	// повторный запуск дописывает новые поездки
	if _, err := run(t, "generate", "--per-class", "1", "--archive", "--out", out); err != nil {
		t.Fatal(err)
	}
	st, err = store.Open(filepath.Join(dir, "db", "rides.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	if n, _ := st.Count(); n != 10 {
		t.Fatalf("archived after second run=%d want 10", n)
	}
}

func TestVersionAndMissingBaseline(t *testing.T) {
	out, err := run(t, "version")
	if err != nil || !strings.Contains(out, version) {
		t.Fatalf("out=%q err=%v", out, err)
	}

	t.Setenv("BASELINE_PATH", filepath.Join(t.TempDir(), "nope.csv"))
	if _, err := run(t, "simulate", "--out", filepath.Join(t.TempDir(), "x.csv")); err == nil {
		t.Fatal("expected error for missing baseline")
	}
}
