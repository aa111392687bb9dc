// SPDX-License-Identifier: MIT
// Copyright (c) 2026 TaskMeta
// Source: github.com/taskmeta/kspblob

package kspblob

import (
	"fmt"
	"io"
)

// byteReader is a sequential bounds-checked cursor over a random-access
// container source. Reads past the declared size fail with ErrTruncatedInput.
type byteReader struct {
	// ra is the underlying random-access source.
	ra io.ReaderAt
	// size is total source size in bytes.
	size int64
	// off is the current cursor position.
	off int64
}

// newByteReader returns a cursor over ra bounded by size.
func newByteReader(ra io.ReaderAt, size int64) *byteReader {
	return &byteReader{ra: ra, size: size}
}

// remaining reports bytes left before the end of the container.
func (r *byteReader) remaining() int64 {
	if r.off >= r.size {
		return 0
	}

	return r.size - r.off
}

// offset reports the current cursor position.
func (r *byteReader) offset() int64 {
	return r.off
}

// read consumes and returns the next n bytes.
func (r *byteReader) read(n int) ([]byte, error) {
	buf, err := r.peek(n)
	if err != nil {
		return nil, err
	}

	r.off += int64(n)
	return buf, nil
}

// peek returns the next n bytes without consuming them.
func (r *byteReader) peek(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative read of %d bytes", ErrTruncatedInput, n)
	}
	if int64(n) > r.remaining() {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, %d remain",
			ErrTruncatedInput, n, r.off, r.remaining())
	}
	if n == 0 {
		return nil, nil
	}

	buf := make([]byte, n)
	if _, err := r.ra.ReadAt(buf, r.off); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("%w: short read at offset %d", ErrTruncatedInput, r.off)
		}

		return nil, fmt.Errorf("read container at offset %d: %w", r.off, err)
	}

	return buf, nil
}

// skip advances the cursor by n bytes without reading them.
func (r *byteReader) skip(n int64) error {
	if n < 0 || n > r.remaining() {
		return fmt.Errorf("%w: skip %d bytes at offset %d, %d remain",
			ErrTruncatedInput, n, r.off, r.remaining())
	}

	r.off += n
	return nil
}
