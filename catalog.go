package sensorlog

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// sensorFilePattern matches log filenames like SRS_SRS_SCD-30.jsonl: two
// underscore-delimited prefix tokens, then the sensor identifier, extension
// .jsonl. Anything else in the directory is ignored.
var sensorFilePattern = regexp.MustCompile(`^[^_]+_[^_]+_(.+)\.jsonl$`)

// Sensor describes one cataloged log stream. Params and Colors have the
// same length and order; Params[i] renders in Colors[i].
type Sensor struct {
	ID     string   `json:"id"`
	File   string   `json:"file"`
	Params []string `json:"params"`
	Colors []string `json:"colors"`
}

// Catalog maps sensor identifiers to their descriptors. It is built once at
// startup and is immutable afterwards, so it may be shared across concurrent
// queries without synchronization.
type Catalog map[string]Sensor

// IDs returns the catalog's sensor identifiers in sorted order for
// deterministic presentation.
func (c Catalog) IDs() []string {
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Sensors returns the descriptors in id order.
func (c Catalog) Sensors() []Sensor {
	out := make([]Sensor, 0, len(c))
	for _, id := range c.IDs() {
		out = append(out, c[id])
	}
	return out
}

// DiscoverSensors enumerates log files in dir and builds the served catalog.
// For each filename matching the sensor pattern it derives the sensor id,
// drops ids that case-insensitively contain a blocked substring, infers the
// parameter schema, and keeps the sensor only if the schema is non-empty.
//
// Directory entries are visited in sorted filename order, so when two
// filenames derive the same sensor id the lexicographically last filename
// wins, deterministically. A missing directory logs a warning and yields an
// empty catalog rather than an error.
func DiscoverSensors(dir string, blocked []string) (Catalog, error) {
	catalog := make(Catalog)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Warn("log directory does not exist", "dir", dir)
			return catalog, nil
		}
		return nil, err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := sensorFilePattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		id := m[1]

		if blockedID(id, blocked) {
			slog.Info("blocked sensor", "sensor", id, "file", entry.Name())
			continue
		}

		path := filepath.Join(dir, entry.Name())
		params, err := InferParams(path)
		if err != nil {
			slog.Error("schema inference failed", "sensor", id, "file", entry.Name(), "error", err)
			continue
		}
		params = applyFamilyRules(id, params)
		if len(params) == 0 {
			continue
		}

		catalog[id] = Sensor{
			ID:     id,
			File:   entry.Name(),
			Params: params,
			Colors: assignColors(params),
		}
		slog.Info("discovered sensor", "sensor", id, "params", params)
	}

	return catalog, nil
}

func blockedID(id string, blocked []string) bool {
	lower := strings.ToLower(id)
	for _, b := range blocked {
		if b != "" && strings.Contains(lower, strings.ToLower(b)) {
			return true
		}
	}
	return false
}
