// SPDX-License-Identifier: MIT
// Copyright (c) 2026 TaskMeta
// Source: github.com/taskmeta/kspblob

package kspblob

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Reader provides read-only access to a parsed savegame container.
type Reader struct {
	// ra is the underlying random-access reader used for payload reads.
	ra io.ReaderAt
	// file is set when Reader owns an *os.File opened via Open.
	file *os.File
	// entries stores parsed immutable entry metadata in container order.
	entries []EntryInfo
	// filter is the raw LZMA filter chain applied to compressed payloads.
	filter FilterConfig
	// size is total source size in bytes.
	size int64
	// mu guards closed state and close operation.
	mu sync.Mutex
	// closed reports whether Close was already called.
	closed bool
}

// Open opens a container file by path and parses its entry structure.
func Open(path string) (*Reader, error) {
	return OpenWithOptions(path, ReaderOptions{})
}

// OpenWithOptions opens a container file by path using explicit reader options.
func OpenWithOptions(path string, opts ReaderOptions) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open container: %w", err)
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat: %w", err)
	}

	r, err := NewReaderFromReaderAtWithOptions(f, fi.Size(), opts)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	r.file = f
	return r, nil
}

// NewReaderFromReaderAt parses a container from an existing ReaderAt and known size.
func NewReaderFromReaderAt(ra io.ReaderAt, size int64) (*Reader, error) {
	return NewReaderFromReaderAtWithOptions(ra, size, ReaderOptions{})
}

// NewReaderFromReaderAtWithOptions parses a container from an existing ReaderAt
// and known size using explicit reader options.
func NewReaderFromReaderAtWithOptions(ra io.ReaderAt, size int64, opts ReaderOptions) (*Reader, error) {
	opts.applyDefaults()

	if ra == nil {
		return nil, ErrNilReader
	}

	r := &Reader{ra: ra, size: size, filter: opts.Filter}
	if err := r.parse(opts); err != nil {
		return nil, err
	}

	return r, nil
}

// parse walks the container once with a Scanner, building the entry index
// without loading payload bytes.
func (r *Reader) parse(opts ReaderOptions) error {
	s := NewScanner(r.ra, r.size)
	for {
		blob, err := s.next(false)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		r.entries = append(r.entries, blob.Info)
	}

	r.entries = filterEntriesBySize(r.entries, opts.MinEntrySize)
	r.entries = filterEntriesByPrefix(r.entries, opts.EntryPathPrefix)
	if opts.SanitizeNames {
		sanitized, err := sanitizeEntryInfoPaths(r.entries)
		if err != nil {
			return err
		}

		r.entries = sanitized
	}

	return nil
}

// Entries returns a copy of parsed entries in container order.
func (r *Reader) Entries() []EntryInfo {
	if r == nil {
		return nil
	}

	entries := make([]EntryInfo, len(r.entries))
	copy(entries, r.entries)
	return entries
}

// FilterConfig returns the filter chain this reader decompresses with.
func (r *Reader) FilterConfig() FilterConfig {
	if r == nil {
		return FilterConfig{}
	}

	return r.filter
}

// Close closes the underlying file if reader owns one.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}

	r.closed = true
	if r.file != nil {
		return r.file.Close()
	}

	return nil
}

// isClosed reports whether Close was already called.
func (r *Reader) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
