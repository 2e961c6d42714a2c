package sensorlog

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	neturl "net/url"
	"os"
	"path/filepath"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMux(t *testing.T, n int) *http.ServeMux {
	t.Helper()
	engine, _ := newTestEngine(t, n)
	cfg := DefaultConfig()
	cfg.HTTP.RateLimitPerSecond = -1
	return NewMux(engine, nil, cfg, discardLogger())
}

func get(t *testing.T, mux *http.ServeMux, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	mux := newTestMux(t, 5)

	rec := get(t, mux, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestSensorsEndpoint(t *testing.T) {
	mux := newTestMux(t, 5)

	rec := get(t, mux, "/api/sensors")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var sensors []Sensor
	if err := json.Unmarshal(rec.Body.Bytes(), &sensors); err != nil {
		t.Fatal(err)
	}
	if len(sensors) != 1 || sensors[0].ID != "SCD-30" {
		t.Errorf("sensors = %+v", sensors)
	}
}

func TestRangeDataEndpoint(t *testing.T) {
	mux := newTestMux(t, 100)

	url := "/range_data/SCD-30?start=" + neturl.QueryEscape(stampAt(10)[:19]) + "&end=" + neturl.QueryEscape(stampAt(19)[:19])
	rec := get(t, mux, url)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var recs []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &recs); err != nil {
		t.Fatal(err)
	}
	if len(recs) != 10 {
		t.Errorf("got %d records, want 10", len(recs))
	}
	if _, ok := recs[0]["timestamp"]; !ok {
		t.Error("record missing timestamp field")
	}
}

func TestRangeDataNoBoundsIsFullScan(t *testing.T) {
	mux := newTestMux(t, 30)

	rec := get(t, mux, "/range_data/SCD-30")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var recs []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &recs); err != nil {
		t.Fatal(err)
	}
	if len(recs) != 30 {
		t.Errorf("got %d records, want 30", len(recs))
	}
}

func TestRangeDataErrorStatuses(t *testing.T) {
	mux := newTestMux(t, 5)

	tests := []struct {
		name string
		url  string
		code int
	}{
		{"unknown sensor", "/range_data/BOGUS", http.StatusNotFound},
		{"one-sided bounds", "/range_data/SCD-30?start=2024-01-01%2000:00:00", http.StatusBadRequest},
		{"unparseable bound", "/range_data/SCD-30?start=yesterday&end=today", http.StatusBadRequest},
		{"inverted bounds", "/range_data/SCD-30?start=2024-01-02%2000:00:00&end=2024-01-01%2000:00:00", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, mux, tt.url)
			if rec.Code != tt.code {
				t.Errorf("status = %d, want %d", rec.Code, tt.code)
			}
			var body errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body.Error == "" {
				t.Error("empty error message")
			}
		})
	}
}

func TestEmptyRangeReturnsArray(t *testing.T) {
	mux := newTestMux(t, 5)

	rec := get(t, mux, "/range_data/SCD-30?start=2030-01-01%2000:00:00&end=2030-01-02%2000:00:00")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Body.String(); got != "[]\n" {
		t.Errorf("body = %q, want empty JSON array", got)
	}
}

func TestDecimatedDataEndpoint(t *testing.T) {
	mux := newTestMux(t, 300)

	rec := get(t, mux, "/decimated_data/SCD-30?points=25")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var recs []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &recs); err != nil {
		t.Fatal(err)
	}
	if len(recs) == 0 || len(recs) > 25 {
		t.Errorf("got %d records", len(recs))
	}

	rec = get(t, mux, "/decimated_data/SCD-30?points=junk")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad points status = %d", rec.Code)
	}
}

func TestLastDataEndpoint(t *testing.T) {
	mux := newTestMux(t, 20)

	rec := get(t, mux, "/last_data/SCD-30")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["timestamp"] != stampAt(19) {
		t.Errorf("timestamp = %v", body["timestamp"])
	}
}

func TestLastDataEmptyFile(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "A_B_SCD-30.jsonl", `{"timestamp": "`+stampAt(0)+`", "temp": 1}`)
	catalog, err := DiscoverSensors(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	engine := NewEngine(dir, catalog, DefaultQueryConfig(), nil)

	// Truncate after discovery so the catalog still lists the sensor.
	if err := os.Truncate(filepath.Join(dir, catalog["SCD-30"].File), 0); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	cfg.HTTP.RateLimitPerSecond = -1
	mux := NewMux(engine, nil, cfg, discardLogger())

	rec := get(t, mux, "/last_data/SCD-30")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Body.String(); got != "{}\n" {
		t.Errorf("body = %q, want empty object", got)
	}
}

func TestSummaryEndpoint(t *testing.T) {
	mux := newTestMux(t, 15)

	rec := get(t, mux, "/summary/SCD-30")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var s Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &s); err != nil {
		t.Fatal(err)
	}
	if s.Count != 15 || s.First != stampAt(0) || s.Last != stampAt(14) {
		t.Errorf("summary = %+v", s)
	}
}
