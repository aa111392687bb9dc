// SPDX-License-Identifier: MIT
// Copyright (c) 2026 TaskMeta
// Source: github.com/taskmeta/kspblob

package kspblob

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Scanner walks a container once, yielding one Blob per stored entry.
// Iteration is forward-only: header boundaries depend on having consumed
// prior payload lengths, so a Scanner is never rewound or shared.
//
// The exact header recognition rule (a readable name field with fixed-layout
// length fields, no magic number) is reverse-engineered and deliberately
// confined to this file.
type Scanner struct {
	// br is the bounds-checked cursor over the container.
	br *byteReader
	// dirPrefix is the current directory prefix applied to relative file names.
	dirPrefix string
	// done is set after the terminator blob was consumed.
	done bool
	// err stores the first fatal scan error; scanning cannot resume past it.
	err error
}

// NewScanner returns a Scanner over a random-access container source.
func NewScanner(ra io.ReaderAt, size int64) *Scanner {
	return &Scanner{br: newByteReader(ra, size)}
}

// Next parses and returns the next blob with its raw payload loaded.
// It returns io.EOF after the terminator blob.
func (s *Scanner) Next() (*Blob, error) {
	return s.next(true)
}

// next parses the next blob; when loadPayload is false the payload bytes are
// skipped instead of read, leaving Blob.Data nil.
func (s *Scanner) next(loadPayload bool) (*Blob, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.done {
		return nil, io.EOF
	}

	blob, err := s.scanOne(loadPayload)
	if err != nil {
		if err != io.EOF {
			s.err = err
		} else {
			s.done = true
		}

		return nil, err
	}

	return blob, nil
}

// scanOne reads one header+payload pair at the current cursor position.
func (s *Scanner) scanOne(loadPayload bool) (*Blob, error) {
	headerOffset := s.br.offset()

	fixed, err := s.br.read(blobFixedSize)
	if err != nil {
		return nil, fmt.Errorf("entry header at offset %d: %w", headerOffset, err)
	}

	entryLen := binary.LittleEndian.Uint32(fixed[0:4])
	nameLen := int(fixed[5])
	lastMarker := fixed[7]

	if fixed[4] != 0 || fixed[6] != 0 {
		return nil, fmt.Errorf("%w: non-zero padding in header at offset %d",
			ErrCorruptContainer, headerOffset)
	}

	if lastMarker != 0 {
		if nameLen != 0 || entryLen != 0 {
			return nil, fmt.Errorf("%w: terminator with non-empty fields at offset %d",
				ErrCorruptContainer, headerOffset)
		}
		if s.br.remaining() != 0 {
			return nil, fmt.Errorf("%w: %d trailing bytes after terminator at offset %d",
				ErrCorruptContainer, s.br.remaining(), s.br.offset())
		}

		return nil, io.EOF
	}

	if nameLen == 0 {
		return nil, fmt.Errorf("%w: empty name field at offset %d", ErrCorruptContainer, headerOffset)
	}
	if entryLen > maxEntrySize {
		return nil, fmt.Errorf("%w: implausible payload length %d at offset %d",
			ErrCorruptContainer, entryLen, headerOffset)
	}

	nameBytes, err := s.br.read(nameLen)
	if err != nil {
		return nil, fmt.Errorf("entry name at offset %d: %w", headerOffset, err)
	}

	storedName, err := decodeStoredName(nameBytes, headerOffset)
	if err != nil {
		return nil, err
	}

	if int64(entryLen) > s.br.remaining() {
		return nil, fmt.Errorf("%w: entry %s declares %d payload bytes at offset %d, %d remain",
			ErrTruncatedInput, storedName, entryLen, headerOffset, s.br.remaining())
	}

	blob, err := s.buildBlob(storedName, entryLen, headerOffset, loadPayload)
	if err != nil {
		return nil, err
	}

	if err := s.validateNextHeader(); err != nil {
		return nil, err
	}

	return blob, nil
}

// buildBlob assembles entry metadata and payload for one decoded stored name.
func (s *Scanner) buildBlob(storedName string, entryLen uint32, headerOffset int64, loadPayload bool) (*Blob, error) {
	if entryLen == 0 && strings.HasSuffix(storedName, `\`) {
		dirPath := normalizeStoredPath(storedName)
		if dirPath == "" {
			return nil, fmt.Errorf("%w: empty directory name at offset %d", ErrCorruptContainer, headerOffset)
		}

		s.dirPrefix = dirPath
		return &Blob{Info: EntryInfo{
			Path:   dirPath,
			Kind:   EntryKindDirectory,
			Offset: headerOffset,
		}}, nil
	}

	entryPath := normalizeStoredPath(storedName)
	if entryPath == "" {
		return nil, fmt.Errorf("%w: empty entry name at offset %d", ErrCorruptContainer, headerOffset)
	}
	// Names without the container-root lead join the current directory prefix.
	if storedName[0] != storedNameRootSep && s.dirPrefix != "" {
		entryPath = s.dirPrefix + "/" + entryPath
	}

	info := EntryInfo{
		Path:       entryPath,
		Kind:       EntryKindFile,
		Offset:     headerOffset,
		DataOffset: s.br.offset(),
		DataSize:   entryLen,
	}

	if strings.HasSuffix(entryPath, compressedSuffix) {
		if entryLen < compressedPrefix {
			return nil, fmt.Errorf("%w: entry %s compressed payload of %d bytes is shorter than its prefix",
				ErrCorruptContainer, entryPath, entryLen)
		}

		prefix, err := s.br.peek(compressedPrefix)
		if err != nil {
			return nil, fmt.Errorf("entry %s compressed prefix: %w", entryPath, err)
		}

		info.Path = strings.TrimSuffix(entryPath, compressedSuffix)
		info.Compressed = true
		info.OriginalSize = binary.LittleEndian.Uint32(prefix[5:9])
		info.DataOffset += compressedPrefix
		info.DataSize = entryLen - compressedPrefix

		if err := s.br.skip(compressedPrefix); err != nil {
			return nil, fmt.Errorf("entry %s compressed prefix: %w", entryPath, err)
		}
	}

	blob := &Blob{Info: info}
	if loadPayload {
		data, err := s.br.read(int(info.DataSize))
		if err != nil {
			return nil, fmt.Errorf("entry %s payload: %w", info.Path, err)
		}

		blob.Data = data
	} else if err := s.br.skip(int64(info.DataSize)); err != nil {
		return nil, fmt.Errorf("entry %s payload: %w", info.Path, err)
	}

	return blob, nil
}

// validateNextHeader peeks the upcoming fixed header fields to detect a
// desynchronized cursor early, before the next entry is parsed.
func (s *Scanner) validateNextHeader() error {
	if s.br.remaining() == 0 {
		return fmt.Errorf("%w: missing terminator at offset %d", ErrCorruptContainer, s.br.offset())
	}

	fixed, err := s.br.peek(blobFixedSize)
	if err != nil {
		return fmt.Errorf("next entry header at offset %d: %w", s.br.offset(), err)
	}

	if fixed[4] != 0 || fixed[6] != 0 {
		return fmt.Errorf("%w: payload/header desync at offset %d", ErrCorruptContainer, s.br.offset())
	}

	return nil
}

// decodeStoredName decodes one raw name field: UTF-8, NUL-terminated,
// Windows-style separators, rooted with a backslash.
func decodeStoredName(raw []byte, headerOffset int64) (string, error) {
	if len(raw) == 0 || raw[len(raw)-1] != 0 {
		return "", fmt.Errorf("%w: unterminated name field at offset %d", ErrCorruptContainer, headerOffset)
	}

	name := strings.TrimSpace(string(raw[:len(raw)-1]))
	if name == "" {
		return "", fmt.Errorf("%w: blank name field at offset %d", ErrCorruptContainer, headerOffset)
	}
	if !utf8.ValidString(name) {
		return "", fmt.Errorf("%w: name field is not valid UTF-8 at offset %d", ErrCorruptContainer, headerOffset)
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return "", fmt.Errorf("%w: control byte in name field at offset %d", ErrCorruptContainer, headerOffset)
		}
	}

	return name, nil
}

// normalizeStoredPath converts a stored Windows-style name to normalized
// slash-separated form without the container-root lead.
func normalizeStoredPath(storedName string) string {
	return NormalizePath(storedName)
}
