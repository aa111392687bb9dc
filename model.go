// SPDX-License-Identifier: MIT
// Copyright (c) 2026 TaskMeta
// Source: github.com/taskmeta/kspblob

package kspblob

import (
	"time"

	"github.com/woozymasta/pathrules"
)

// Internal binary layout and format limits.
const (
	blobFixedSize     = 8       // fixed header portion preceding the name field
	compressedPrefix  = 9       // embedded LZMA properties (5) + uncompressed size (4)
	maxEntrySize      = 1 << 30 // sanity bound for one declared payload (1 GiB)
	compressedSuffix  = ".cmp"  // marks a raw-LZMA compressed file payload
	lzmaHeaderSize    = 13      // classic LZMA header synthesized for the decoder
	storedNameRootSep = '\\'    // stored names are Windows-style, rooted with a backslash
)

// EntryKind reports whether a decoded entry is a file or a directory marker.
type EntryKind string

// Decoded entry kinds.
const (
	// EntryKindFile is a regular file entry carrying payload bytes.
	EntryKindFile EntryKind = "file"
	// EntryKindDirectory is a zero-payload marker that updates the path prefix.
	EntryKindDirectory EntryKind = "directory"
)

// FilterConfig is the raw LZMA filter chain used for every compressed payload
// in one container family. The values are a discovered format constant, not a
// negotiated parameter; the decoder never derives them from payload bytes.
type FilterConfig struct {
	// LC is the number of literal context bits.
	LC int `json:"lc" yaml:"lc"`
	// LP is the number of literal position bits.
	LP int `json:"lp" yaml:"lp"`
	// PB is the number of position bits.
	PB int `json:"pb" yaml:"pb"`
	// DictCap is the dictionary capacity in bytes.
	DictCap int `json:"dict_cap" yaml:"dict_cap"`
}

// DefaultFilterConfig returns the filter chain determined empirically for the
// console save container family (lc=3 lp=0 pb=2, 8 MiB dictionary).
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{LC: 3, LP: 0, PB: 2, DictCap: 1 << 23}
}

// EntryInfo describes a single parsed container entry.
type EntryInfo struct {
	// Path is the decoded slash-separated entry path (without the .cmp suffix).
	Path string `json:"path" yaml:"path"`
	// Kind reports whether this entry is a file or a directory marker.
	Kind EntryKind `json:"kind" yaml:"kind"`
	// Offset is the byte offset of the entry header inside the container.
	Offset int64 `json:"offset" yaml:"offset"`
	// DataOffset is the byte offset of the raw payload stream.
	DataOffset int64 `json:"data_offset,omitempty" yaml:"data_offset,omitempty"`
	// DataSize is the stored payload stream size in bytes.
	DataSize uint32 `json:"data_size" yaml:"data_size"`
	// OriginalSize is the declared uncompressed size for compressed entries; zero otherwise.
	OriginalSize uint32 `json:"original_size,omitempty" yaml:"original_size,omitempty"`
	// Compressed reports whether the payload is a raw LZMA stream.
	Compressed bool `json:"compressed,omitempty" yaml:"compressed,omitempty"`
}

// Size returns the materialized size of the entry content in bytes.
func (e *EntryInfo) Size() uint32 {
	if e.Compressed {
		return e.OriginalSize
	}

	return e.DataSize
}

// Blob is one scanned header plus its raw (still-compressed for files)
// payload. It is produced by the Scanner and not retained after use.
type Blob struct {
	// Info is the parsed entry metadata.
	Info EntryInfo
	// Data is the raw payload slice; nil for directory markers.
	Data []byte
}

// EntryFault records one entry that failed to decode or materialize.
type EntryFault struct {
	// Path is the decoded entry path.
	Path string `json:"path" yaml:"path"`
	// Offset is the entry header offset inside the container.
	Offset int64 `json:"offset" yaml:"offset"`
	// Err is the underlying failure for this entry.
	Err error `json:"-" yaml:"-"`
}

// DecodeResult contains aggregate statistics for one container extraction.
type DecodeResult struct {
	// Directories is the number of directory entries materialized.
	Directories int `json:"directories" yaml:"directories"`
	// Files is the number of file entries written (or validated in dry-run).
	Files int `json:"files" yaml:"files"`
	// BytesWritten is total decompressed bytes written (or validated).
	BytesWritten int64 `json:"bytes_written" yaml:"bytes_written"`
	// Skipped is the number of entries excluded by selection rules.
	Skipped int `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	// Faults lists entries that failed individually without aborting the run.
	Faults []EntryFault `json:"faults,omitempty" yaml:"faults,omitempty"`
	// Duration is end-to-end extraction duration.
	Duration time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
}

// ReaderOptions configures container parse behavior.
type ReaderOptions struct {
	// Filter overrides the raw LZMA filter chain; zero value means DefaultFilterConfig.
	Filter FilterConfig `json:"filter,omitzero" yaml:"filter,omitzero"`
	// EntryPathPrefix limits visible entries to the given path prefix.
	EntryPathPrefix string `json:"entry_path_prefix,omitempty" yaml:"entry_path_prefix,omitempty"`
	// MinEntrySize drops file entries whose materialized size is below the threshold.
	MinEntrySize uint32 `json:"min_entry_size,omitempty" yaml:"min_entry_size,omitempty"`
	// SanitizeNames rewrites entry paths to filesystem-safe names for listing workflows.
	SanitizeNames bool `json:"sanitize_names,omitempty" yaml:"sanitize_names,omitempty"`
}

// ExtractOptions configures Extract behavior.
type ExtractOptions struct {
	// OnEntryDone is called after one entry is fully written (or validated in dry-run).
	OnEntryDone func(entry EntryInfo, written int64, outputPath string) `json:"-" yaml:"-"`
	// Entries limits extraction to selected metadata list; nil means all parsed entries.
	Entries []EntryInfo `json:"-" yaml:"-"`
	// Select defines ordered path rules choosing which file entries are materialized.
	Select []pathrules.Rule `json:"select,omitempty" yaml:"select,omitempty"`
	// SelectMatcherOptions control selection rule matching.
	SelectMatcherOptions pathrules.MatcherOptions `json:"select_matcher_options,omitzero" yaml:"select_matcher_options,omitzero"`
	// MaxWorkers is the number of decompression workers (zero means GOMAXPROCS).
	MaxWorkers int `json:"max_workers,omitempty" yaml:"max_workers,omitempty"`
	// DryRun validates and reports every entry without mutating the filesystem.
	DryRun bool `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`
	// Overwrite replaces existing output files instead of failing with ErrOutputCollision.
	Overwrite bool `json:"overwrite,omitempty" yaml:"overwrite,omitempty"`
	// RawNames disables default path sanitization during extract.
	RawNames bool `json:"raw_names,omitempty" yaml:"raw_names,omitempty"`
}

// RenameOptions configures the save-folder renaming pass.
type RenameOptions struct {
	// OnRename is called for each planned rename, including dry-run mode.
	OnRename func(oldPath, newPath string) `json:"-" yaml:"-"`
	// DryRun reports planned renames without touching the filesystem.
	DryRun bool `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`
}

// applyDefaults fills zero-valued reader options with defaults.
func (opts *ReaderOptions) applyDefaults() {
	if opts.Filter == (FilterConfig{}) {
		opts.Filter = DefaultFilterConfig()
	}
}

// applyDefaults fills zero-valued extract options with defaults.
func (opts *ExtractOptions) applyDefaults() {
	if opts.SelectMatcherOptions == (pathrules.MatcherOptions{}) {
		opts.SelectMatcherOptions = pathrules.MatcherOptions{
			CaseInsensitive: true,
			DefaultAction:   pathrules.ActionInclude,
		}
	}

	if opts.SelectMatcherOptions.DefaultAction == pathrules.ActionUnknown {
		opts.SelectMatcherOptions.DefaultAction = pathrules.ActionInclude
	}
}
