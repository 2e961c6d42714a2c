// Package sensorlog serves time-series sensor readings from append-only,
// newline-delimited JSON log files, without any secondary index.
//
// Sensor logs are written continuously by an external process, one JSON
// record per line, strictly non-decreasing in timestamp. The engine answers
// range, decimation, summary, and last-record queries directly against the
// file's current bytes: offsets for timestamp bounds are found by binary
// search over seek positions, so no query ever loads a file into memory and
// nothing is persisted between queries. Malformed lines are tolerated
// everywhere and silently skipped.
//
// # Basic Usage
//
// Discover the sensor catalog once at startup:
//
//	catalog, err := sensorlog.DiscoverSensors("/home/pi/logs", []string{"mock", "test", "dummy"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	engine := sensorlog.NewEngine("/home/pi/logs", catalog, sensorlog.DefaultQueryConfig(), nil)
//
// Query a time range:
//
//	start, _ := time.Parse("2006-01-02 15:04:05", "2024-01-01 00:00:00")
//	end, _ := time.Parse("2006-01-02 15:04:05", "2024-01-01 12:00:00")
//	records, err := engine.RangeQuery("SCD-30", start, end)
//
// Or sample the whole history for an overview plot:
//
//	records, err := engine.DecimatedQuery("SCD-30", 1000)
//
// # Features
//
// Query engine:
//   - Byte-offset binary search for timestamp bounds, O(log size) seeks
//   - Range extraction with inclusive bounds and full-scan fallback
//   - Byte-uniform decimated sampling at O(target) cost
//   - Last-record retrieval via chunked reverse scan
//   - Range summary (first/last timestamp plus exact line count)
//
// Catalog:
//   - Directory discovery with blocked-sensor filtering
//   - Schema inference from the first lines of each log
//   - Table-driven per-family parameter allow-lists
//   - Deterministic per-parameter display colors
//
// Integrations:
//   - HTTP API with rate limiting and optional API key auth
//   - WebSocket live feed of new records
//   - CSV, snappy NDJSON, and SQLite range exports
//   - Prometheus remote read endpoint
//   - Optional S3 archive mirror of the log directory
//
// # Configuration
//
// Use [Config] to customize behavior, or [DefaultConfig] for sensible
// defaults; [LoadConfig] reads a YAML file. The SENSORLOG_DIR environment
// variable overrides the configured log directory.
package sensorlog
