package sensorlog

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// errorResponse is the JSON body for non-200 responses.
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeQueryError maps the engine's error taxonomy onto HTTP statuses:
// unknown sensor is 404, a bad range is 400, and everything else is a
// server-side 500. Transient conditions never reach here; they are already
// empty results.
func writeQueryError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, ErrUnknownSensor):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, ErrInvalidRange):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		logger.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

// sensorFromPath extracts the trailing sensor id from paths like
// /last_data/<sensor>.
func sensorFromPath(path, prefix string) string {
	return strings.TrimPrefix(path, prefix)
}

// parseRangeBounds reads optional start/end query parameters in the coarse
// second-precision bound format. Both must be present or both absent.
func parseRangeBounds(r *http.Request) (start, end time.Time, err error) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")
	if startStr == "" && endStr == "" {
		return time.Time{}, time.Time{}, nil
	}
	if startStr == "" || endStr == "" {
		return time.Time{}, time.Time{}, ErrInvalidRange
	}
	start, perr := time.Parse(boundStampLayout, startStr)
	if perr != nil {
		return time.Time{}, time.Time{}, ErrInvalidRange
	}
	end, perr = time.Parse(boundStampLayout, endStr)
	if perr != nil {
		return time.Time{}, time.Time{}, ErrInvalidRange
	}
	return start, end, nil
}

// recordsJSON renders a record slice, keeping [] instead of null for empty
// results.
func recordsJSON(w http.ResponseWriter, recs []Record) {
	if recs == nil {
		recs = []Record{}
	}
	writeJSON(w, http.StatusOK, recs)
}

// setupCatalogRoutes configures catalog and health endpoints
func setupCatalogRoutes(mux *http.ServeMux, engine *Engine, wrap middlewareWrapper) {
	mux.HandleFunc("/healthz", wrap(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}))

	mux.HandleFunc("/api/sensors", wrap(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, engine.Catalog().Sensors())
	}))
}

// setupDataRoutes configures the query endpoints
func setupDataRoutes(mux *http.ServeMux, engine *Engine, logger *slog.Logger, wrap middlewareWrapper) {
	mux.HandleFunc("/range_data/", wrap(func(w http.ResponseWriter, r *http.Request) {
		sensor := sensorFromPath(r.URL.Path, "/range_data/")
		start, end, err := parseRangeBounds(r)
		if err != nil {
			writeQueryError(w, logger, err)
			return
		}
		recs, err := engine.RangeQuery(sensor, start, end)
		if err != nil {
			writeQueryError(w, logger, err)
			return
		}
		recordsJSON(w, recs)
	}))

	mux.HandleFunc("/decimated_data/", wrap(func(w http.ResponseWriter, r *http.Request) {
		sensor := sensorFromPath(r.URL.Path, "/decimated_data/")
		target := 0
		if s := r.URL.Query().Get("points"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid points"})
				return
			}
			target = n
		}
		recs, err := engine.DecimatedQuery(sensor, target)
		if err != nil {
			writeQueryError(w, logger, err)
			return
		}
		recordsJSON(w, recs)
	}))

	mux.HandleFunc("/last_2h_data/", wrap(func(w http.ResponseWriter, r *http.Request) {
		sensor := sensorFromPath(r.URL.Path, "/last_2h_data/")
		recs, err := engine.RecentQuery(sensor)
		if err != nil {
			writeQueryError(w, logger, err)
			return
		}
		recordsJSON(w, recs)
	}))

	mux.HandleFunc("/last_data/", wrap(func(w http.ResponseWriter, r *http.Request) {
		sensor := sensorFromPath(r.URL.Path, "/last_data/")
		rec, ok, err := engine.LastRecord(sensor)
		if err != nil {
			writeQueryError(w, logger, err)
			return
		}
		if !ok {
			writeJSON(w, http.StatusOK, map[string]any{})
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}))

	mux.HandleFunc("/summary/", wrap(func(w http.ResponseWriter, r *http.Request) {
		sensor := sensorFromPath(r.URL.Path, "/summary/")
		s, err := engine.RangeSummary(sensor)
		if err != nil {
			writeQueryError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}))
}
