package sensorlog

import (
	"bufio"
	"io"
	"os"
	"time"
)

// probeBufSize is the read buffer used for each binary-search probe.
const probeBufSize = 64 * 1024

// lineAfter seeks to pos, discards the (possibly partial) line fragment up
// to the next newline, and returns the following complete line together with
// the byte offset immediately past it. A nil line means no complete line
// starts at or after pos.
func lineAfter(f *os.File, pos int64) (line []byte, next int64, err error) {
	if _, err = f.Seek(pos, io.SeekStart); err != nil {
		return nil, 0, err
	}
	br := bufio.NewReaderSize(f, probeBufSize)

	frag, err := br.ReadBytes('\n')
	if err == io.EOF {
		return nil, pos + int64(len(frag)), nil
	}
	if err != nil {
		return nil, 0, err
	}

	line, err = br.ReadBytes('\n')
	if err != nil && err != io.EOF {
		return nil, 0, err
	}
	if len(line) == 0 {
		return nil, pos + int64(len(frag)), nil
	}
	return line, pos + int64(len(frag)) + int64(len(line)), nil
}

// firstOffsetAtOrAfter binary-searches byte positions in [lo, hi) for the
// offset of the first line whose timestamp is >= target, or hi if none.
// It never scans the file: each step costs one seek plus one line read.
// Lines that fail to decode compare as minimal and are stepped over.
func firstOffsetAtOrAfter(f *os.File, target time.Time, lo, hi int64) (int64, error) {
	for lo < hi {
		mid := lo + (hi-lo)/2
		line, next, err := lineAfter(f, mid)
		if err != nil {
			return 0, err
		}
		if line == nil {
			hi = mid
			continue
		}
		if lineTimestamp(line).Before(target) {
			lo = next
		} else {
			hi = mid
		}
	}
	return lo, nil
}

// firstOffsetAfter is firstOffsetAtOrAfter with a strict bound: it converges
// to the offset of the first line whose timestamp is > target.
func firstOffsetAfter(f *os.File, target time.Time, lo, hi int64) (int64, error) {
	for lo < hi {
		mid := lo + (hi-lo)/2
		line, next, err := lineAfter(f, mid)
		if err != nil {
			return 0, err
		}
		if line == nil {
			hi = mid
			continue
		}
		if !lineTimestamp(line).After(target) {
			lo = next
		} else {
			hi = mid
		}
	}
	return lo, nil
}
