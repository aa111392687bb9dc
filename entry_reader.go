// SPDX-License-Identifier: MIT
// Copyright (c) 2026 TaskMeta
// Source: github.com/taskmeta/kspblob

package kspblob

import (
	"fmt"
	"io"
)

// nopCloser wraps a reader and provides a no-op close.
type nopCloser struct {
	io.Reader
}

// Close closes nopCloser (no-op).
func (nopCloser) Close() error {
	return nil
}

// findEntryByName resolves one file entry by normalized path.
func (r *Reader) findEntryByName(name string) *EntryInfo {
	lookupName := NormalizePath(name)
	for i := range r.entries {
		if r.entries[i].Kind != EntryKindFile {
			continue
		}
		if NormalizePath(r.entries[i].Path) == lookupName {
			return &r.entries[i]
		}
	}

	return nil
}

// openEntryByInfo opens the content stream for already resolved entry metadata.
func (r *Reader) openEntryByInfo(info *EntryInfo, name string) (io.ReadCloser, error) {
	if info == nil {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
	}
	if info.Kind != EntryKindFile {
		return nil, fmt.Errorf("%w: %s is a directory marker", ErrEntryNotFound, name)
	}

	sr := io.NewSectionReader(r.ra, info.DataOffset, int64(info.DataSize))
	if !info.Compressed {
		return nopCloser{Reader: sr}, nil
	}

	outLen, err := checkedUint32ToInt(info.OriginalSize)
	if err != nil {
		return nil, fmt.Errorf("resolve output size for %s: %w", name, err)
	}

	lr, err := newRawReader(sr, int64(outLen), r.filter)
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", name, err)
	}

	return nopCloser{Reader: io.LimitReader(lr, int64(outLen))}, nil
}

// OpenEntry opens the named file entry for reading.
// Returned stream yields decompressed content for compressed entries.
func (r *Reader) OpenEntry(name string) (io.ReadCloser, error) {
	if r == nil || r.ra == nil {
		return nil, ErrNilReader
	}
	if r.isClosed() {
		return nil, ErrClosed
	}

	return r.openEntryByInfo(r.findEntryByName(name), name)
}

// OpenEntryInfo opens an entry stream by already resolved metadata.
func (r *Reader) OpenEntryInfo(info EntryInfo) (io.ReadCloser, error) {
	if r == nil || r.ra == nil {
		return nil, ErrNilReader
	}
	if r.isClosed() {
		return nil, ErrClosed
	}

	name := info.Path
	if name == "" {
		name = "<unknown>"
	}

	return r.openEntryByInfo(&info, name)
}

// ReadEntry reads the full (decompressed) content of the named entry.
// The decompressed length is validated against the declared size.
func (r *Reader) ReadEntry(name string) ([]byte, error) {
	if r == nil || r.ra == nil {
		return nil, ErrNilReader
	}
	if r.isClosed() {
		return nil, ErrClosed
	}

	info := r.findEntryByName(name)
	if info == nil {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
	}

	return r.readEntryByInfo(info)
}

// readEntryByInfo loads one entry's full content and validates the declared size.
func (r *Reader) readEntryByInfo(info *EntryInfo) ([]byte, error) {
	rc, err := r.openEntryByInfo(info, info.Path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	outLen, err := checkedUint32ToInt(info.Size())
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", info.Path, err)
	}

	out := make([]byte, outLen)
	if _, err := io.ReadFull(rc, out); err != nil {
		if info.Compressed {
			return nil, fmt.Errorf("%w: entry %s at offset %d: %w",
				ErrDecompression, info.Path, info.Offset, err)
		}

		return nil, fmt.Errorf("entry %s at offset %d: %w", info.Path, info.Offset, err)
	}

	return out, nil
}
