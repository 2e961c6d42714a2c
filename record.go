package sensorlog

import (
	"bytes"
	"encoding/json"
	"time"
)

const (
	// recordStampLayout is the timestamp format carried inside log records,
	// with microsecond precision. Parsing accepts a missing or shorter
	// fractional part.
	recordStampLayout = "2006-01-02 15:04:05.999999"

	// recordStampOutputLayout always emits six fractional digits, matching
	// what the log writers produce.
	recordStampOutputLayout = "2006-01-02 15:04:05.000000"

	// boundStampLayout is the coarser, second-precision format accepted for
	// query range bounds.
	boundStampLayout = "2006-01-02 15:04:05"
)

// ValueKind identifies the type of a record field value.
type ValueKind int

const (
	// ValueNumber is a JSON numeric field.
	ValueNumber ValueKind = iota
	// ValueString is a JSON string field.
	ValueString
	// ValueBool is a JSON boolean field.
	ValueBool
)

// Value is a tagged scalar field value. Records are schema-less, so a field
// may carry a number, a string, or a bool depending on the writer.
type Value struct {
	Kind ValueKind
	Num  float64
	Str  string
	Bool bool
}

// NumberValue creates a numeric Value.
func NumberValue(f float64) Value {
	return Value{Kind: ValueNumber, Num: f}
}

// StringValue creates a string Value.
func StringValue(s string) Value {
	return Value{Kind: ValueString, Str: s}
}

// Float returns the numeric content of the value, or 0 for non-numbers.
func (v Value) Float() float64 {
	if v.Kind == ValueNumber {
		return v.Num
	}
	return 0
}

// MarshalJSON writes the value back in its original JSON form. Numeric
// values preserve the literal from the log line when one is available.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case ValueNumber:
		if v.Str != "" {
			return []byte(v.Str), nil
		}
		return json.Marshal(v.Num)
	case ValueBool:
		return json.Marshal(v.Bool)
	default:
		return json.Marshal(v.Str)
	}
}

// Record is one decoded log line: a timestamped observation carrying
// arbitrary named scalar parameters. Records are immutable once decoded and
// have no identity beyond their position in the file.
type Record struct {
	// Timestamp is the parsed observation time.
	Timestamp time.Time

	// Fields holds every key except "timestamp".
	Fields map[string]Value

	// rawStamp preserves the exact timestamp string from the log line so
	// re-serialization is byte-faithful.
	rawStamp string
}

// Stamp returns the record timestamp in the log wire format.
func (r Record) Stamp() string {
	if r.rawStamp != "" {
		return r.rawStamp
	}
	return r.Timestamp.Format(recordStampOutputLayout)
}

// MarshalJSON re-serializes the record as the flat JSON object it was
// decoded from.
func (r Record) MarshalJSON() ([]byte, error) {
	obj := make(map[string]any, len(r.Fields)+1)
	obj["timestamp"] = r.Stamp()
	for k, v := range r.Fields {
		obj[k] = v
	}
	return json.Marshal(obj)
}

// decodeRecord parses one log line. It reports false for anything that is
// not a JSON object with a parseable "timestamp" string: blank lines,
// truncated JSON, and missing or mangled timestamps are all treated as
// absent, never as errors. Non-scalar field values (arrays, objects, null)
// are dropped from the decoded record.
func decodeRecord(line []byte) (Record, bool) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Record{}, false
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return Record{}, false
	}
	// Decode stops at the end of the first value; a torn line holding a
	// second object, or an object followed by garbage, must not pass.
	if dec.InputOffset() != int64(len(trimmed)) {
		return Record{}, false
	}

	rawStamp, ok := obj["timestamp"].(string)
	if !ok {
		return Record{}, false
	}
	ts, err := time.Parse(recordStampLayout, rawStamp)
	if err != nil {
		return Record{}, false
	}

	fields := make(map[string]Value, len(obj)-1)
	for k, v := range obj {
		if k == "timestamp" {
			continue
		}
		switch x := v.(type) {
		case json.Number:
			f, err := x.Float64()
			if err != nil {
				continue
			}
			fields[k] = Value{Kind: ValueNumber, Num: f, Str: x.String()}
		case string:
			fields[k] = Value{Kind: ValueString, Str: x}
		case bool:
			fields[k] = Value{Kind: ValueBool, Bool: x}
		}
	}

	return Record{Timestamp: ts, Fields: fields, rawStamp: rawStamp}, true
}

// lineTimestamp extracts the timestamp of a log line for ordering
// comparisons. Undecodable lines yield the zero time, which sorts before
// every real timestamp; the offset search relies on this so corrupted lines
// never break its monotonicity assumption.
func lineTimestamp(line []byte) time.Time {
	rec, ok := decodeRecord(line)
	if !ok {
		return time.Time{}
	}
	return rec.Timestamp
}
