package trace

import (
	"bytes"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bearing-fault-sim/internal/models"
)

func TestLoadCSV(t *testing.T) {
	in := "accel_z,timestamp,accel_x,accel_y,extra\n" +
		"1.0,0.00,0.1,0.2,x\n" +
		"1.1,0.01,0.3,0.4,y\n"

	tr, err := LoadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if tr.Len() != 2 {
		t.Fatalf("len=%d want 2", tr.Len())
	}
	want := models.VibrationSample{Timestamp: 0.01, AccelX: 0.3, AccelY: 0.4, AccelZ: 1.1}
	if tr.Samples[1] != want {
		t.Fatalf("sample=%+v want %+v", tr.Samples[1], want)
	}
}

func TestLoadCSVErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"empty input", "", ErrEmptyTrace},
		{"header only", "timestamp,accel_x,accel_y,accel_z\n", ErrEmptyTrace},
		{"missing column", "timestamp,accel_x,accel_y\n0,1,2\n", ErrMissingColumn},
		{"short row", "timestamp,accel_x,accel_y,accel_z\n0,1\n", ErrMissingColumn},
	}
	for _, tt := range tests {
		_, err := LoadCSV(strings.NewReader(tt.in))
		if !errors.Is(err, tt.want) {
			t.Fatalf("%s: err=%v want %v", tt.name, err, tt.want)
		}
	}
}

func TestLoadCSVMissingColumnNames(t *testing.T) {
	_, err := LoadCSV(strings.NewReader("timestamp,accel_y\n0,1\n"))
	var mc *MissingColumnError
	if !errors.As(err, &mc) {
		t.Fatalf("err=%v, want *MissingColumnError", err)
	}
	if strings.Join(mc.Columns, ",") != "accel_x,accel_z" {
		t.Fatalf("columns=%v", mc.Columns)
	}
}

func TestLoadCSVBadNumber(t *testing.T) {
	_, err := LoadCSV(strings.NewReader("timestamp,accel_x,accel_y,accel_z\n0,abc,0,1\n"))
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("err=%v, want line number", err)
	}
}

func TestLoadFileRoundTrip(t *testing.T) {
	src := models.VibrationTrace{Samples: []models.VibrationSample{
		{Timestamp: 0, AccelX: 0.01, AccelY: -0.02, AccelZ: 0.98},
		{Timestamp: 0.01, AccelX: 0.02, AccelY: -0.01, AccelZ: 1.01},
	}}
	path := filepath.Join(t.TempDir(), "baseline.csv")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := WriteTrace(f, src); err != nil {
		t.Fatal(err)
	}
	f.Close()

	got, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if got.Len() != src.Len() || got.Samples[1] != src.Samples[1] {
		t.Fatalf("got %+v", got.Samples)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestDatasetWriter(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewDatasetWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	ride := models.RideSample{
		RideID:    7,
		FaultType: models.CageFault,
		Severity:  0.25,
		Trace: models.VibrationTrace{Samples: []models.VibrationSample{
			{Timestamp: 0, AccelZ: 1},
			{Timestamp: 0.01, AccelZ: 1},
		}},
	}
	if err := w.WriteRide(ride); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	if w.Rows() != 2 {
		t.Fatalf("rows=%d want 2", w.Rows())
	}

	recs, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 {
		t.Fatalf("records=%d want 3", len(recs))
	}
	if strings.Join(recs[0], ",") != strings.Join(DatasetHeader, ",") {
		t.Fatalf("header=%v", recs[0])
	}
	if recs[1][4] != "CAGE_FAULT" || recs[1][5] != "7" || recs[1][6] != "0.2500" {
		t.Fatalf("row=%v", recs[1])
	}
}
