package sensorlog

import (
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/golang/snappy"
	"github.com/prometheus/prometheus/prompb"
)

// promMetricPrefix namespaces exported sensor parameters in Prometheus.
const promMetricPrefix = "sensorlog_"

var promInvalidChars = regexp.MustCompile(`[^a-zA-Z0-9_:]`)

// promMetricName maps a sensor parameter to its Prometheus metric name.
// Characters Prometheus rejects are folded to underscores.
func promMetricName(param string) string {
	return promMetricPrefix + promInvalidChars.ReplaceAllString(param, "_")
}

// setupRemoteReadRoutes configures the Prometheus remote read endpoint.
// This is the read-only counterpart of a remote write receiver: Prometheus
// (or Grafana through it) POSTs a snappy-compressed ReadRequest and gets the
// matching numeric samples back, so sensor history can be graphed with
// standard tooling without any extra storage.
func setupRemoteReadRoutes(mux *http.ServeMux, engine *Engine, logger *slog.Logger, wrap middlewareWrapper) {
	mux.HandleFunc("/api/v1/read", wrap(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		decoded, err := snappy.Decode(nil, body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var req prompb.ReadRequest
		if err := req.Unmarshal(decoded); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		resp, err := answerRemoteRead(engine, &req)
		if err != nil {
			logger.Error("remote read failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		data, err := resp.Marshal()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/x-protobuf")
		w.Header().Set("Content-Encoding", "snappy")
		_, _ = w.Write(snappy.Encode(nil, data))
	}))
}

// answerRemoteRead resolves each query against the catalog. Equality
// matchers on __name__ and sensor select the series; other matcher types
// are ignored rather than rejected.
func answerRemoteRead(engine *Engine, req *prompb.ReadRequest) (*prompb.ReadResponse, error) {
	resp := &prompb.ReadResponse{}
	for _, q := range req.Queries {
		result := &prompb.QueryResult{}

		var wantName, wantSensor string
		for _, m := range q.Matchers {
			if m.Type != prompb.LabelMatcher_EQ {
				continue
			}
			switch m.Name {
			case "__name__":
				wantName = m.Value
			case "sensor":
				wantSensor = m.Value
			}
		}

		start := time.UnixMilli(q.StartTimestampMs).UTC()
		end := time.UnixMilli(q.EndTimestampMs).UTC()

		for _, id := range engine.Catalog().IDs() {
			if wantSensor != "" && wantSensor != id {
				continue
			}
			sensor := engine.Catalog()[id]

			matched := make([]string, 0, len(sensor.Params))
			for _, p := range sensor.Params {
				if wantName == "" || wantName == promMetricName(p) {
					matched = append(matched, p)
				}
			}
			if len(matched) == 0 {
				continue
			}

			records, err := engine.RangeQuery(id, start, end)
			if err != nil {
				return nil, err
			}

			for _, p := range matched {
				ts := &prompb.TimeSeries{
					Labels: []prompb.Label{
						{Name: "__name__", Value: promMetricName(p)},
						{Name: "sensor", Value: id},
					},
				}
				for _, rec := range records {
					v, ok := rec.Fields[p]
					if !ok || v.Kind != ValueNumber {
						continue
					}
					ts.Samples = append(ts.Samples, prompb.Sample{
						Value:     v.Num,
						Timestamp: rec.Timestamp.UnixMilli(),
					})
				}
				if len(ts.Samples) > 0 {
					result.Timeseries = append(result.Timeseries, ts)
				}
			}
		}
		resp.Results = append(resp.Results, result)
	}
	return resp, nil
}
