package sensorlog

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// baseTime anchors generated fixtures.
var baseTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// stampAt formats a record timestamp i seconds after baseTime.
func stampAt(i int) string {
	return baseTime.Add(time.Duration(i) * time.Second).Format(recordStampOutputLayout)
}

// recordLine builds one well-formed log line i seconds after baseTime.
func recordLine(i int, value float64) string {
	return fmt.Sprintf(`{"timestamp":%q,"n":%d,"temp":%g}`, stampAt(i), i, value)
}

// writeLog writes lines joined by newlines into dir/name and returns the
// full path.
func writeLog(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	data := ""
	for _, l := range lines {
		data += l + "\n"
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// seqLog writes n sequential well-formed records, one per second.
func seqLog(t *testing.T, dir, name string, n int) string {
	t.Helper()
	lines := make([]string, n)
	for i := 0; i < n; i++ {
		lines[i] = recordLine(i, float64(i)/2)
	}
	return writeLog(t, dir, name, lines...)
}

func timeAt(i int) time.Time {
	return baseTime.Add(time.Duration(i) * time.Second)
}
