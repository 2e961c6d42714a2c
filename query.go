package sensorlog

import (
	"bufio"
	"errors"
	"io"
	"io/fs"
	"os"
	"time"
)

// QueryRange returns every well-formed record in the file whose timestamp
// lies in the inclusive interval [start, end], in file order. The scan is
// bounded to the relevant byte window by two offset searches, so cost is
// O(log size) seeks plus the matching bytes, independent of file size.
//
// A missing or empty file yields an empty result, not an error. Each decoded
// timestamp is re-validated against the interval; records outside it are
// dropped even if the offset search admitted their bytes.
func QueryRange(path string, start, end time.Time) ([]Record, error) {
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

	lo, err := firstOffsetAtOrAfter(f, start, 0, size)
	if err != nil {
		return nil, err
	}
	hi, err := firstOffsetAfter(f, end, lo, size)
	if err != nil {
		return nil, err
	}

	if _, err := f.Seek(lo, io.SeekStart); err != nil {
		return nil, err
	}

	var out []Record
	br := bufio.NewReaderSize(f, probeBufSize)
	pos := lo
	for pos < hi {
		line, rerr := br.ReadBytes('\n')
		if rerr != nil && rerr != io.EOF {
			return out, rerr
		}
		if len(line) == 0 {
			break
		}
		pos += int64(len(line))
		if rec, ok := decodeRecord(line); ok &&
			!rec.Timestamp.Before(start) && !rec.Timestamp.After(end) {
			out = append(out, rec)
		}
		if rerr == io.EOF {
			break
		}
	}
	return out, nil
}

// QueryAll decodes every line of the file in order, silently skipping
// malformed lines. This is the explicit no-bounds mode of the range query
// and is a full linear scan.
func QueryAll(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []Record
	br := bufio.NewReaderSize(f, probeBufSize)
	for {
		line, rerr := br.ReadBytes('\n')
		if rerr != nil && rerr != io.EOF {
			return out, rerr
		}
		if rec, ok := decodeRecord(line); ok {
			out = append(out, rec)
		}
		if rerr == io.EOF {
			return out, nil
		}
	}
}
