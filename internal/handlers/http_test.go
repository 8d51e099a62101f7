package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bearing-fault-sim/internal/analytics"
	"bearing-fault-sim/internal/logger"
	"bearing-fault-sim/internal/models"
	"bearing-fault-sim/internal/monitor"
	"bearing-fault-sim/internal/simulator"
)

type fakeHealth struct{ err error }

func (f fakeHealth) Ping(context.Context) error { return f.err }
func (f fakeHealth) GetStats() map[string]interface{} {
	return map[string]interface{}{"total_conns": 1}
}

func newMonitor(t *testing.T) *monitor.Monitor {
	t.Helper()
	s := make([]models.VibrationSample, 500)
	for i := range s {
		s[i] = models.VibrationSample{Timestamp: float64(i) / 100, AccelZ: 1}
	}
	g, err := simulator.NewGenerator(models.VibrationTrace{Samples: s}, models.DefaultBearingParameters(), rand.New(rand.NewPCG(3, 4)))
	if err != nil {
		t.Fatal(err)
	}
	return monitor.New(simulator.NewRideSimulator(g), nil, monitor.Options{Log: logger.NewWithWriter(io.Discard, "error")})
}

func serveMonitor(t *testing.T, m *monitor.Monitor, cache CacheHealth) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewHandler(m, cache, logger.NewWithWriter(io.Discard, "error")).Router())
	t.Cleanup(srv.Close)
	return srv
}

func newServer(t *testing.T, cache CacheHealth) *httptest.Server {
	t.Helper()
	return serveMonitor(t, newMonitor(t), cache)
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) (int, map[string]interface{}) {
	t.Helper()
	req, _ := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestSimulateRide(t *testing.T) {
	srv := newServer(t, nil)
	tests := []struct {
		name   string
		body   string
		status int
		check  func(map[string]interface{}) bool
	}{
		{"empty body", "", http.StatusOK, func(m map[string]interface{}) bool {
			return m["success"] == true && m["asset_id"] == monitor.DefaultAssetID
		}},
		{"forced fault", `{"asset_id":"wheel","force_fault_type":"cage_fault"}`, http.StatusOK, func(m map[string]interface{}) bool {
			ff, _ := m["fault_frequencies"].([]interface{})
			return m["actual_fault_type"] == "CAGE_FAULT" && m["asset_id"] == "wheel" && len(ff) == 2
		}},
		{"unknown fault", `{"force_fault_type":"WOBBLE"}`, http.StatusBadRequest, func(m map[string]interface{}) bool {
			return m["success"] == false
		}},
		{"bad json", `{`, http.StatusBadRequest, nil},
	}
	for _, tt := range tests {
		status, body := do(t, srv, http.MethodPost, "/api/simulate-ride", tt.body)
		if status != tt.status {
			t.Fatalf("%s: status=%d want %d body=%v", tt.name, status, tt.status, body)
		}
		if tt.check != nil && !tt.check(body) {
			t.Fatalf("%s: body=%v", tt.name, body)
		}
	}

	if status, _ := do(t, srv, http.MethodGet, "/api/simulate-ride", ""); status != http.StatusMethodNotAllowed {
		t.Fatalf("GET status=%d want 405", status)
	}
}

func TestDatasets(t *testing.T) {
	srv := newServer(t, nil)

	status, body := do(t, srv, http.MethodPost, "/api/datasets", `{"samples_per_class":2}`)
	if status != http.StatusOK || body["rides"] != float64(10) || body["rows"] != float64(5000) {
		t.Fatalf("status=%d body=%v", status, body)
	}

	for _, bad := range []string{`{"samples_per_class":0}`, `{"samples_per_class":1000}`, `{"samples_per_class":1,"export_name":"x"}`} {
		if status, body := do(t, srv, http.MethodPost, "/api/datasets", bad); status != http.StatusBadRequest {
			t.Fatalf("%s: status=%d body=%v", bad, status, body)
		}
	}
}

func TestReadEndpoints(t *testing.T) {
	srv := newServer(t, nil)
	do(t, srv, http.MethodPost, "/api/simulate-ride", "")

	status, st := do(t, srv, http.MethodGet, "/api/status", "")
	if status != http.StatusOK || st["simulator_ready"] != true || st["total_rides"] != float64(1) {
		t.Fatalf("status=%d body=%v", status, st)
	}
	if types, _ := st["fault_types"].([]interface{}); len(types) != 5 || types[0] != "NORMAL" {
		t.Fatalf("fault_types=%v", st["fault_types"])
	}

	_, base := do(t, srv, http.MethodGet, "/api/baseline-data", "")
	if base["fault_type"] != "NORMAL" || base["frequency_data"] == nil {
		t.Fatalf("baseline=%v", base)
	}

	_, info := do(t, srv, http.MethodGet, "/api/fault-info", "")
	if _, ok := info["OUTER_RACE_FAULT"]; !ok || len(info) != 5 {
		t.Fatalf("fault-info keys=%v", info)
	}

	_, alerts := do(t, srv, http.MethodGet, "/api/alerts?asset_id=none", "")
	if list, ok := alerts["alerts"].([]interface{}); !ok || len(list) != 0 {
		t.Fatalf("alerts=%v", alerts)
	}

	status, stats := do(t, srv, http.MethodGet, "/stats", "")
	if status != http.StatusOK || stats["analyzer"] == nil {
		t.Fatalf("stats=%v", stats)
	}

	resp, err := http.Get(srv.URL + "/prometheus")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(b), "rides_simulated_total") {
		t.Fatalf("prometheus output lacks rides_simulated_total")
	}
}

func TestAcknowledgeAlert(t *testing.T) {
	m := newMonitor(t)
	m.HandleResult(context.Background(), analytics.AnalysisResult{
		AssetID: "wheel", RideID: 5, IsAnomaly: true, AnomalyType: analytics.AnomalyRMSSpike, AnomalyScore: 3.5,
	})
	srv := serveMonitor(t, m, nil)

	_, body := do(t, srv, http.MethodGet, "/api/alerts", "")
	list, _ := body["alerts"].([]interface{})
	if len(list) != 1 {
		t.Fatalf("alerts=%v", body)
	}
	alert := list[0].(map[string]interface{})
	if alert["id"] != float64(1) || alert["acknowledged"] != false {
		t.Fatalf("alert=%v", alert)
	}

	tests := []struct {
		path   string
		status int
	}{
		{"/api/alerts/1/acknowledge", http.StatusOK},
		{"/api/alerts/42/acknowledge", http.StatusNotFound},
		{"/api/alerts/abc/acknowledge", http.StatusBadRequest},
	}
	for _, tt := range tests {
		status, body := do(t, srv, http.MethodPost, tt.path, "")
		if status != tt.status {
			t.Fatalf("%s: status=%d want %d body=%v", tt.path, status, tt.status, body)
		}
		if tt.status == http.StatusOK && body["success"] != true {
			t.Fatalf("%s: body=%v", tt.path, body)
		}
	}

	_, body = do(t, srv, http.MethodGet, "/api/alerts", "")
	list, _ = body["alerts"].([]interface{})
	if len(list) != 1 || list[0].(map[string]interface{})["acknowledged"] != true {
		t.Fatalf("alert not acknowledged: %v", body)
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name   string
		cache  CacheHealth
		status int
		want   string
	}{
		{"no cache", nil, http.StatusOK, "healthy"},
		{"redis up", fakeHealth{}, http.StatusOK, "healthy"},
		{"redis down", fakeHealth{err: errors.New("down")}, http.StatusServiceUnavailable, "degraded"},
	}
	for _, tt := range tests {
		srv := newServer(t, tt.cache)
		status, body := do(t, srv, http.MethodGet, "/health", "")
		if status != tt.status || body["status"] != tt.want {
			t.Fatalf("%s: status=%d body=%v", tt.name, status, body)
		}
	}
}
