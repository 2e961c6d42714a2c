package sensorlog

import (
	"log/slog"
	"path/filepath"
	"time"
)

// QueryConfig groups query execution settings.
type QueryConfig struct {
	// DecimateTarget is the default sample size for decimated queries.
	// Default: 1000.
	DecimateTarget int `yaml:"decimate_target"`

	// RecentWindow is the span of the "recent data" query.
	// Default: 2 hours.
	RecentWindow Duration `yaml:"recent_window"`
}

// DefaultQueryConfig returns the default query settings.
func DefaultQueryConfig() QueryConfig {
	return QueryConfig{
		DecimateTarget: DefaultDecimateTarget,
		RecentWindow:   Duration(2 * time.Hour),
	}
}

// Engine answers queries against the cataloged log files. It holds no open
// files and no per-query state: each call opens, reads, and closes the
// sensor's file, re-deriving its answer from the file's current bytes, so
// an Engine is safe for concurrent use while an external writer appends.
type Engine struct {
	dir     string
	catalog Catalog
	config  QueryConfig
	logger  *slog.Logger
}

// NewEngine creates a query engine over a discovered catalog. The logger
// may be nil, in which case the default logger is used.
func NewEngine(dir string, catalog Catalog, cfg QueryConfig, logger *slog.Logger) *Engine {
	if cfg.DecimateTarget <= 0 {
		cfg.DecimateTarget = DefaultDecimateTarget
	}
	if cfg.RecentWindow <= 0 {
		cfg.RecentWindow = Duration(2 * time.Hour)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{dir: dir, catalog: catalog, config: cfg, logger: logger}
}

// Catalog returns the engine's sensor catalog. The catalog is read-only.
func (e *Engine) Catalog() Catalog {
	return e.catalog
}

// lookup resolves a sensor id to its descriptor and file path.
func (e *Engine) lookup(id string) (Sensor, string, error) {
	s, ok := e.catalog[id]
	if !ok {
		return Sensor{}, "", ErrUnknownSensor
	}
	return s, filepath.Join(e.dir, s.File), nil
}

// fail logs an I/O failure and wraps it for the transport layer.
func (e *Engine) fail(op, sensor, path string, err error) error {
	e.logger.Error("query failed", "op", op, "sensor", sensor, "path", path, "error", err)
	return newQueryError(op, sensor, path, err)
}

// RangeQuery returns the sensor's records with timestamps in [start, end]
// inclusive, in file order. Passing two zero times requests the explicit
// full-scan mode, which returns every decodable record in the file. Exactly
// one zero bound, or start after end, is ErrInvalidRange.
func (e *Engine) RangeQuery(id string, start, end time.Time) ([]Record, error) {
	_, path, err := e.lookup(id)
	if err != nil {
		return nil, err
	}

	if start.IsZero() != end.IsZero() {
		return nil, ErrInvalidRange
	}
	if start.IsZero() {
		recs, err := QueryAll(path)
		if err != nil {
			return nil, e.fail("range_query", id, path, err)
		}
		return recs, nil
	}
	if start.After(end) {
		return nil, ErrInvalidRange
	}

	recs, err := QueryRange(path, start, end)
	if err != nil {
		return nil, e.fail("range_query", id, path, err)
	}
	return recs, nil
}

// RecentQuery returns the last RecentWindow of records, ending now.
func (e *Engine) RecentQuery(id string) ([]Record, error) {
	end := time.Now()
	return e.RangeQuery(id, end.Add(-time.Duration(e.config.RecentWindow)), end)
}

// DecimatedQuery returns a byte-uniform sample of at most target records
// across the sensor's whole file. A non-positive target uses the configured
// default.
func (e *Engine) DecimatedQuery(id string, target int) ([]Record, error) {
	_, path, err := e.lookup(id)
	if err != nil {
		return nil, err
	}
	if target <= 0 {
		target = e.config.DecimateTarget
	}
	recs, err := Decimate(path, target)
	if err != nil {
		return nil, e.fail("decimated_query", id, path, err)
	}
	return recs, nil
}

// LastRecord returns the sensor's most recent well-formed record, or false
// if the file is missing, empty, or holds no decodable line.
func (e *Engine) LastRecord(id string) (Record, bool, error) {
	_, path, err := e.lookup(id)
	if err != nil {
		return Record{}, false, err
	}
	rec, ok, err := LastRecord(path)
	if err != nil {
		return Record{}, false, e.fail("last_record", id, path, err)
	}
	return rec, ok, nil
}

// RangeSummary reports the sensor file's first/last timestamps and its line
// count. The count is an exact full-file pass; see Summarize.
func (e *Engine) RangeSummary(id string) (Summary, error) {
	_, path, err := e.lookup(id)
	if err != nil {
		return Summary{}, err
	}
	s, err := Summarize(path)
	if err != nil {
		return Summary{}, e.fail("range_summary", id, path, err)
	}
	return s, nil
}
