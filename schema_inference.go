package sensorlog

import (
	"bufio"
	"io"
	"os"
	"sort"
	"strings"
)

// schemaProbeLines is how many leading lines of a log file are examined
// when inferring its parameter set.
const schemaProbeLines = 30

// excludedParams are record keys that never become chartable parameters:
// the timestamp itself and the writer's per-line sequence counter.
var excludedParams = map[string]bool{
	"timestamp": true,
	"n":         true,
}

// familyRule restricts the inferred parameter set for a sensor family.
// Match is compared case-insensitively as a substring of the sensor id.
// Only parameters in Allow survive inference for a matching sensor.
type familyRule struct {
	Match string
	Allow []string
}

// familyRules is the declarative allow-list table consulted by schema
// inference. New sensor families get a row here, not new control flow.
var familyRules = []familyRule{
	// IMU breakouts report fused orientation, raw gyro, and more; only the
	// linear acceleration axes are meaningful on the dashboard.
	{Match: "BNO085", Allow: []string{"linear_accel_x", "linear_accel_y", "linear_accel_z"}},
	{Match: "MOCK_IMU", Allow: []string{"linear_accel_x", "linear_accel_y", "linear_accel_z"}},
}

// applyFamilyRules filters an inferred parameter list through the family
// allow-list table. Sensors matching no rule keep their full list.
func applyFamilyRules(sensorID string, params []string) []string {
	upper := strings.ToUpper(sensorID)
	for _, rule := range familyRules {
		if !strings.Contains(upper, strings.ToUpper(rule.Match)) {
			continue
		}
		allowed := make(map[string]bool, len(rule.Allow))
		for _, p := range rule.Allow {
			allowed[p] = true
		}
		kept := params[:0]
		for _, p := range params {
			if allowed[p] {
				kept = append(kept, p)
			}
		}
		return kept
	}
	return params
}

// InferParams determines the parameter set of a log file by probing its
// first lines. The first decodable record with a timestamp declares the
// schema: every non-excluded key becomes a parameter, sorted
// lexicographically for a stable ordering. An unreadable file or one with
// no decodable record in the probe window infers an empty set.
func InferParams(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	br := bufio.NewReaderSize(f, probeBufSize)
	for i := 0; i < schemaProbeLines; i++ {
		line, rerr := br.ReadBytes('\n')
		if rec, ok := decodeRecord(line); ok {
			params := make([]string, 0, len(rec.Fields))
			for k := range rec.Fields {
				if !excludedParams[k] {
					params = append(params, k)
				}
			}
			if len(params) > 0 {
				sort.Strings(params)
				return params, nil
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return nil, rerr
		}
	}
	return nil, nil
}

// basePalette is the cyclic chart palette for ordinary parameters.
var basePalette = []string{
	"#FF8C00", "#FF4444", "#4488FF", "#FF66AA", "#44AA44",
	"#FFFF44", "#AA44FF", "#44FFFF", "#FFAA44", "#88FF88",
}

// co2Color is reserved for CO2 readings so the gas everyone watches always
// renders the same bright green.
const co2Color = "#00FF00"

// assignColors pairs each parameter with a display color, positionally.
// A parameter named co2 (any case) takes the reserved color; everyone else
// draws the next palette entry in turn. Given the same parameter order the
// result is identical on every run.
func assignColors(params []string) []string {
	colors := make([]string, 0, len(params))
	next := 0
	for _, p := range params {
		if strings.EqualFold(p, "co2") {
			colors = append(colors, co2Color)
			continue
		}
		colors = append(colors, basePalette[next%len(basePalette)])
		next++
	}
	return colors
}
