// Package horosafe provides bounded I/O helpers for request handling: reads
// that stop one byte past a ceiling so oversized input is rejected without
// being buffered in full.
package horosafe

import (
	"errors"
	"fmt"
	"io"
)

// ErrTooLarge is returned when input exceeds the caller's ceiling.
var ErrTooLarge = errors.New("horosafe: input exceeds size limit")

// LimitedReadAll reads at most maxBytes from r. It returns an error wrapping
// ErrTooLarge if r holds more than maxBytes.
func LimitedReadAll(r io.Reader, maxBytes int64) ([]byte, error) {
	lr := io.LimitReader(r, maxBytes+1)
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, maxBytes)
	}
	return data, nil
}

// LimitedReadCloser wraps rc so that reading past maxBytes fails with
// ErrTooLarge instead of silently truncating.
func LimitedReadCloser(rc io.ReadCloser, maxBytes int64) io.ReadCloser {
	return &limitedReadCloser{rc: rc, left: maxBytes}
}

type limitedReadCloser struct {
	rc   io.ReadCloser
	left int64
}

func (l *limitedReadCloser) Read(p []byte) (int, error) {
	if l.left < 0 {
		return 0, ErrTooLarge
	}
	if int64(len(p)) > l.left+1 {
		p = p[:l.left+1]
	}
	n, err := l.rc.Read(p)
	l.left -= int64(n)
	if l.left < 0 {
		return n, ErrTooLarge
	}
	return n, err
}

func (l *limitedReadCloser) Close() error { return l.rc.Close() }
