// SPDX-License-Identifier: MIT
// Copyright (c) 2026 TaskMeta
// Source: github.com/taskmeta/kspblob

package kspblob

import "errors"

// Sentinel errors for container decode operations. Use errors.Is in callers.
var (
	// ErrTruncatedInput means the container ends before a declared length is satisfied.
	ErrTruncatedInput = errors.New("truncated container input")
	// ErrCorruptContainer means a blob header failed structural validation.
	ErrCorruptContainer = errors.New("corrupt container structure")
	// ErrDecompression means an entry payload does not decode under the supplied filter config.
	ErrDecompression = errors.New("entry payload decompression failed")
	// ErrOutputCollision means the destination path is already populated.
	ErrOutputCollision = errors.New("output path already exists")
	// ErrInvalidFilterConfig means the supplied LZMA filter configuration is out of range.
	ErrInvalidFilterConfig = errors.New("invalid LZMA filter configuration")
	// ErrNilReader means the reader is nil.
	ErrNilReader = errors.New("reader is nil")
	// ErrClosed means the reader or resource is already closed.
	ErrClosed = errors.New("reader or resource already closed")
	// ErrEntryNotFound means the entry is not found.
	ErrEntryNotFound = errors.New("entry not found")
	// ErrSizeOverflow means a declared size does not fit the platform int range.
	ErrSizeOverflow = errors.New("declared size exceeds platform limits")
	// ErrInvalidSelectPattern means one or more entry selection rules are invalid.
	ErrInvalidSelectPattern = errors.New("invalid entry selection rules")
	// ErrInvalidExtractPath means a decoded entry path is invalid for extraction destination.
	ErrInvalidExtractPath = errors.New("invalid extract path")
)
