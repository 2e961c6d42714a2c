package sensorlog

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
)

// tailChunkSize is the block size for the backwards newline scan.
const tailChunkSize = 4096

// lastLineBefore returns the line ending at byte offset end (exclusive,
// counting its terminator if present) and the offset at which that line
// starts. It scans backwards in fixed-size chunks rather than byte at a
// time, which matters for multi-gigabyte files.
func lastLineBefore(f *os.File, end int64) ([]byte, int64, error) {
	if end <= 0 {
		return nil, 0, nil
	}

	// The byte at end-1 is either this line's terminator or its last
	// content byte; either way the preceding newline is strictly before it.
	lineStart := int64(0)
	buf := make([]byte, tailChunkSize)
	for hi := end - 1; hi > 0; {
		lo := hi - tailChunkSize
		if lo < 0 {
			lo = 0
		}
		n := int(hi - lo)
		if _, err := f.ReadAt(buf[:n], lo); err != nil && err != io.EOF {
			return nil, 0, err
		}
		if i := bytes.LastIndexByte(buf[:n], '\n'); i >= 0 {
			lineStart = lo + int64(i) + 1
			break
		}
		hi = lo
	}

	line := make([]byte, end-lineStart)
	if _, err := f.ReadAt(line, lineStart); err != nil && err != io.EOF {
		return nil, 0, err
	}
	return line, lineStart, nil
}

// LastRecord returns the final well-formed record in the file, located by a
// bounded reverse scan from EOF instead of a forward read. It reports false
// for a missing, empty, or all-malformed file. Trailing blank or corrupted
// lines are stepped over until a decodable record is found.
func LastRecord(path string) (Record, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Record{}, false, nil
		}
		return Record{}, false, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return Record{}, false, err
	}

	end := fi.Size()
	for end > 0 {
		line, start, err := lastLineBefore(f, end)
		if err != nil {
			return Record{}, false, err
		}
		if rec, ok := decodeRecord(line); ok {
			return rec, true, nil
		}
		end = start
	}
	return Record{}, false, nil
}

// Summary describes the extent of one log file: the first and last record
// timestamps in wire format (empty when the file holds no decodable record)
// and the number of non-blank lines.
type Summary struct {
	First string `json:"first_timestamp"`
	Last  string `json:"last_timestamp"`
	Count int64  `json:"count"`
}

// Summarize reports the first timestamp, last timestamp, and line count of
// a log file. The first timestamp comes from a forward scan stopping at the
// first decodable record, the last from a reverse scan. The count is an
// exact full pass over the file, so callers should think twice before
// invoking it on very large files. A missing or empty file summarizes to
// two empty timestamps and count 0.
func Summarize(path string) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Summary{}, nil
		}
		return Summary{}, err
	}
	defer f.Close()

	var s Summary

	br := bufio.NewReaderSize(f, probeBufSize)
	firstFound := false
	for {
		line, rerr := br.ReadBytes('\n')
		if rerr != nil && rerr != io.EOF {
			return s, rerr
		}
		if len(bytes.TrimSpace(line)) > 0 {
			s.Count++
			if !firstFound {
				if rec, ok := decodeRecord(line); ok {
					s.First = rec.Stamp()
					firstFound = true
				}
			}
		}
		if rerr == io.EOF {
			break
		}
	}

	if last, ok, err := LastRecord(path); err != nil {
		return s, err
	} else if ok {
		s.Last = last.Stamp()
	}
	return s, nil
}
