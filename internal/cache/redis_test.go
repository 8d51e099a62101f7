package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"bearing-fault-sim/internal/models"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedisCache(context.Background(), mr.Addr(), "", 0, time.Hour)
	if err != nil {
		t.Fatalf("NewRedisCache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestStoreAndGetRides(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		s := models.RideSummary{RideID: i, AssetID: "coaster", FaultType: models.OuterRaceFault, RMSAcceleration: float64(i)}
		if err := c.StoreRide(ctx, s); err != nil {
			t.Fatalf("StoreRide: %v", err)
		}
	}

	rides, err := c.GetRecentRides(ctx, "coaster", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(rides) != 2 || rides[0].RideID != 3 || rides[1].RideID != 2 {
		t.Fatalf("rides=%+v", rides)
	}
	if rides[0].FaultType != models.OuterRaceFault {
		t.Fatalf("fault=%s", rides[0].FaultType)
	}

	total, err := c.GetCounter(ctx, CounterRidesTotal)
	if err != nil || total != 3 {
		t.Fatalf("total=%d err=%v", total, err)
	}
	byFault, _ := c.GetCounter(ctx, FaultCounterKey(models.OuterRaceFault))
	if byFault != 3 {
		t.Fatalf("by fault=%d", byFault)
	}

	if ttl := mr.TTL("ride:coaster:1"); ttl != time.Hour {
		t.Fatalf("ttl=%v", ttl)
	}
}

func TestStoreAnomalyLongerTTL(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	a := models.Alert{AssetID: "wheel", RideID: 9, FaultType: models.CageFault, AnomalyType: "RMS_SPIKE", AnomalyScore: 3.2}
	if err := c.StoreAnomaly(ctx, a); err != nil {
		t.Fatal(err)
	}
	if ttl := mr.TTL("anomaly:wheel:9"); ttl != 24*time.Hour {
		t.Fatalf("ttl=%v", ttl)
	}

	got, err := c.GetRecentAnomalies(ctx, "wheel", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].AnomalyType != "RMS_SPIKE" || got[0].FaultType != models.CageFault {
		t.Fatalf("anomalies=%+v", got)
	}

	// истекшая запись пропускается
	mr.FastForward(25 * time.Hour)
	got, err = c.GetRecentAnomalies(ctx, "wheel", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("expired anomalies returned: %+v", got)
	}
}

func TestCountersAndPing(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if v, err := c.GetCounter(ctx, "missing"); err != nil || v != 0 {
		t.Fatalf("missing counter=%d err=%v", v, err)
	}
	if err := c.IncrementCounter(ctx, "x"); err != nil {
		t.Fatal(err)
	}
	if v, _ := c.GetCounter(ctx, "x"); v != 1 {
		t.Fatalf("x=%d", v)
	}
	if err := c.Ping(ctx); err != nil {
		t.Fatal(err)
	}
	if hr := c.HitRate(); hr < 0 || hr > 1 {
		t.Fatalf("hit rate=%v", hr)
	}
	if _, ok := c.GetStats()["total_conns"]; !ok {
		t.Fatalf("stats missing total_conns")
	}
	if rides, err := c.GetRecentRides(ctx, "nobody", 5); err != nil || len(rides) != 0 {
		t.Fatalf("rides=%v err=%v", rides, err)
	}
}

func TestNewRedisCacheUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := NewRedisCache(ctx, "127.0.0.1:1", "", 0, time.Minute); err == nil {
		t.Fatalf("expected connection error")
	}
}
