package sensorlog

import (
	"errors"
	"io/fs"
	"os"
)

// DefaultDecimateTarget is the sample size used when a caller does not ask
// for a specific point count.
const DefaultDecimateTarget = 1000

// Decimate returns an approximately evenly spaced sample of at most target
// records across the whole file, for overview rendering without reading the
// full file. Sampling is uniform in bytes, not in record count: it seeks
// ahead by size/target bytes per step and decodes the next complete line,
// so variable-length lines bias the sample. That is the intended tradeoff;
// cost is O(target) regardless of file size. Malformed lines at a sample
// position are skipped without substitution.
func Decimate(path string, target int) ([]Record, error) {
	if target <= 0 {
		target = DefaultDecimateTarget
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := fi.Size()
	if size == 0 {
		return nil, nil
	}

	step := size / int64(target)
	if step < 1 {
		step = 1
	}

	var out []Record
	pos := int64(0)
	for i := 0; i < target && pos < size; i++ {
		line, _, err := lineAfter(f, pos)
		if err != nil {
			return out, err
		}
		if rec, ok := decodeRecord(line); ok {
			out = append(out, rec)
		}
		pos += step
	}
	return out, nil
}
