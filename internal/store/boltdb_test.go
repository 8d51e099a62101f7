package store

import (
	"errors"
	"math/rand/v2"
	"path/filepath"
	"testing"

	"bearing-fault-sim/internal/models"
	"bearing-fault-sim/internal/simulator"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "rides.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func ride(id int64, label models.FaultLabel) models.RideSample {
	return models.RideSample{
		RideID:    id,
		FaultType: label,
		Severity:  0.3,
		Trace: models.VibrationTrace{Samples: []models.VibrationSample{
			{Timestamp: 0, AccelZ: 1},
			{Timestamp: 0.01, AccelX: 0.1, AccelZ: 0.98},
		}},
	}
}

func TestPutGetRide(t *testing.T) {
	s := openTemp(t)
	if err := s.PutRide(ride(3, models.BallFault)); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetRide(3)
	if err != nil {
		t.Fatal(err)
	}
	if got.FaultType != models.BallFault || got.Trace.Len() != 2 || got.Trace.Samples[1].AccelX != 0.1 {
		t.Fatalf("got=%+v", got)
	}
	if _, err := s.GetRide(99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v want ErrNotFound", err)
	}
}

func TestListOrderAndCount(t *testing.T) {
	s := openTemp(t)
	// порядок ключей big-endian совпадает с числовым, включая 255 -> 256
	ids := []int64{1, 256, 2, 255}
	var rides []models.RideSample
	for _, id := range ids {
		rides = append(rides, ride(id, models.Normal))
	}
	if err := s.PutRides(rides); err != nil {
		t.Fatal(err)
	}

	n, err := s.Count()
	if err != nil || n != 4 {
		t.Fatalf("count=%d err=%v", n, err)
	}

	latest, err := s.List(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(latest) != 2 || latest[0].RideID != 256 || latest[1].RideID != 255 {
		t.Fatalf("latest=%v", []int64{latest[0].RideID, latest[1].RideID})
	}

	var seen []int64
	if err := s.Iterate(func(r models.RideSample) error {
		seen = append(seen, r.RideID)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	want := []int64{1, 2, 255, 256}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("iterate order=%v want %v", seen, want)
		}
	}
}

func TestIterateStops(t *testing.T) {
	s := openTemp(t)
	_ = s.PutRides([]models.RideSample{ride(1, models.Normal), ride(2, models.CageFault)})
	stop := errors.New("stop")
	calls := 0
	err := s.Iterate(func(models.RideSample) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

func TestOverwrite(t *testing.T) {
	s := openTemp(t)
	_ = s.PutRide(ride(1, models.Normal))
	_ = s.PutRide(ride(1, models.InnerRaceFault))
	n, _ := s.Count()
	got, _ := s.GetRide(1)
	if n != 1 || got.FaultType != models.InnerRaceFault {
		t.Fatalf("n=%d fault=%s", n, got.FaultType)
	}
}

func TestMaxRideIDContinuesAcrossRuns(t *testing.T) {
	s := openTemp(t)
	if id, err := s.MaxRideID(); err != nil || id != 0 {
		t.Fatalf("empty archive max=%d err=%v", id, err)
	}

	base := models.VibrationTrace{Samples: []models.VibrationSample{
		{Timestamp: 0, AccelZ: 1}, {Timestamp: 0.01, AccelZ: 1}, {Timestamp: 0.02, AccelZ: 1},
	}}
	for run := uint64(1); run <= 2; run++ {
		g, err := simulator.NewGenerator(base, models.DefaultBearingParameters(), rand.New(rand.NewPCG(run, run)))
		if err != nil {
			t.Fatal(err)
		}
		last, err := s.MaxRideID()
		if err != nil {
			t.Fatal(err)
		}
		g.StartAfter(last)
		rides, err := g.GenerateFaultDataset(2)
		if err != nil {
			t.Fatal(err)
		}
		if err := s.PutRides(rides); err != nil {
			t.Fatal(err)
		}
	}

	if n, _ := s.Count(); n != 20 {
		t.Fatalf("count=%d want 20", n)
	}
	if id, _ := s.MaxRideID(); id != 20 {
		t.Fatalf("max=%d want 20", id)
	}
}
