package sensorlog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLastRecord(t *testing.T) {
	dir := t.TempDir()
	path := seqLog(t, dir, "a_b_c.jsonl", 100)

	rec, ok, err := LastRecord(path)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected a record")
	}
	if !rec.Timestamp.Equal(timeAt(99)) {
		t.Errorf("last timestamp = %v, want %v", rec.Timestamp, timeAt(99))
	}
}

func TestLastRecordSkipsTrailingGarbage(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, "a_b_c.jsonl",
		recordLine(0, 1),
		recordLine(1, 2),
		"@@ torn write @@",
		"",
	)

	rec, ok, err := LastRecord(path)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected the last well-formed record")
	}
	if !rec.Timestamp.Equal(timeAt(1)) {
		t.Errorf("last timestamp = %v, want %v", rec.Timestamp, timeAt(1))
	}
}

func TestLastRecordNoTrailingNewline(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a_b_c.jsonl")
	content := recordLine(0, 1) + "\n" + recordLine(1, 2)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	rec, ok, err := LastRecord(path)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || !rec.Timestamp.Equal(timeAt(1)) {
		t.Errorf("ok=%v timestamp=%v", ok, rec.Timestamp)
	}
}

func TestLastRecordAbsent(t *testing.T) {
	dir := t.TempDir()

	if _, ok, err := LastRecord(filepath.Join(dir, "absent.jsonl")); err != nil || ok {
		t.Errorf("missing file: ok=%v err=%v", ok, err)
	}

	empty := writeLog(t, dir, "a_b_c.jsonl")
	if _, ok, err := LastRecord(empty); err != nil || ok {
		t.Errorf("empty file: ok=%v err=%v", ok, err)
	}

	junk := writeLog(t, dir, "a_b_junk.jsonl", "one", "two", "three")
	if _, ok, err := LastRecord(junk); err != nil || ok {
		t.Errorf("all-malformed file: ok=%v err=%v", ok, err)
	}
}

func TestLastRecordLongLine(t *testing.T) {
	dir := t.TempDir()
	// A line longer than the reverse-scan chunk still resolves.
	long := `{"timestamp":"` + stampAt(1) + `","blob":"` + padding(2*tailChunkSize) + `"}`
	path := writeLog(t, dir, "a_b_c.jsonl", recordLine(0, 1), long)

	rec, ok, err := LastRecord(path)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || !rec.Timestamp.Equal(timeAt(1)) {
		t.Errorf("ok=%v timestamp=%v", ok, rec.Timestamp)
	}
}

func padding(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = 'x'
	}
	return string(b)
}

func TestSummarize(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, "a_b_c.jsonl",
		`{"timestamp":"2024-01-01 00:00:00.000000","t":1}`,
		`{"timestamp":"2024-01-01 00:00:05.000000","t":2}`,
	)

	s, err := Summarize(path)
	if err != nil {
		t.Fatal(err)
	}
	if s.First != "2024-01-01 00:00:00.000000" {
		t.Errorf("First = %q", s.First)
	}
	if s.Last != "2024-01-01 00:00:05.000000" {
		t.Errorf("Last = %q", s.Last)
	}
	if s.Count != 2 {
		t.Errorf("Count = %d, want 2", s.Count)
	}
}

func TestSummarizeEmptyAndMissing(t *testing.T) {
	dir := t.TempDir()

	s, err := Summarize(filepath.Join(dir, "absent.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	if s.First != "" || s.Last != "" || s.Count != 0 {
		t.Errorf("missing file summary = %+v", s)
	}

	empty := writeLog(t, dir, "a_b_c.jsonl")
	s, err = Summarize(empty)
	if err != nil {
		t.Fatal(err)
	}
	if s.First != "" || s.Last != "" || s.Count != 0 {
		t.Errorf("empty file summary = %+v", s)
	}
}

func TestSummarizeTolerantFirstLine(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, "a_b_c.jsonl",
		"corrupted header",
		recordLine(5, 1),
		recordLine(6, 2),
	)

	s, err := Summarize(path)
	if err != nil {
		t.Fatal(err)
	}
	if s.First != stampAt(5) {
		t.Errorf("First = %q, want %q", s.First, stampAt(5))
	}
	if s.Last != stampAt(6) {
		t.Errorf("Last = %q, want %q", s.Last, stampAt(6))
	}
	if s.Count != 3 {
		t.Errorf("Count = %d, want 3 non-blank lines", s.Count)
	}
}
