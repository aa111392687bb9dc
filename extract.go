// SPDX-License-Identifier: MIT
// Copyright (c) 2026 TaskMeta
// Source: github.com/taskmeta/kspblob

package kspblob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// extractWorkItem stores one selected file entry with prepared output relative paths.
type extractWorkItem struct {
	relPath string
	relDir  string
	entry   EntryInfo
}

// extractOutcome is one worker result for a single file entry.
type extractOutcome struct {
	fatal   error
	fault   error
	entry   EntryInfo
	written int64
}

// Extract materializes selected entries from the container under dstDir and
// returns aggregate statistics. File decompression is parallelized by
// MaxWorkers; directory creation stays on the sequential control path.
//
// An entry that fails to decompress is recorded in DecodeResult.Faults and
// does not abort the remaining entries. Output collisions, filesystem errors
// and cancellation abort the run; already-written output is left in place.
func (r *Reader) Extract(ctx context.Context, dstDir string, opts ExtractOptions) (DecodeResult, error) {
	started := time.Now()

	var result DecodeResult
	if r == nil || r.ra == nil {
		return result, ErrNilReader
	}
	if r.isClosed() {
		return result, ErrClosed
	}

	opts.applyDefaults()

	entries := r.entries
	if opts.Entries != nil {
		entries = opts.Entries
	}
	if len(entries) == 0 {
		result.Duration = time.Since(started)
		return result, nil
	}

	matcher, err := newSelectMatcher(opts.Select, opts.SelectMatcherOptions)
	if err != nil {
		return result, err
	}

	selected := make([]EntryInfo, 0, len(entries))
	for _, entry := range entries {
		if !matcher.Match(entry.Path, entry.Kind == EntryKindDirectory) {
			result.Skipped++
			continue
		}

		selected = append(selected, entry)
	}

	if !opts.RawNames {
		sanitizedEntries, sanitizeErr := sanitizeEntryInfoPaths(selected)
		if sanitizeErr != nil {
			return result, sanitizeErr
		}

		selected = sanitizedEntries
	}

	dirItems, workItems, err := prepareExtractWorkItems(selected)
	if err != nil {
		return result, err
	}
	result.Directories = len(dirItems)

	dstRootAbs := ""
	if !opts.DryRun {
		dstRootAbs, err = filepath.Abs(dstDir)
		if err != nil {
			return result, fmt.Errorf("resolve output dir: %w", err)
		}

		if err := os.MkdirAll(dstRootAbs, 0o750); err != nil {
			return result, fmt.Errorf("create output dir: %w", err)
		}

		if err := prepareExtractDirs(dstRootAbs, dirItems, workItems); err != nil {
			return result, err
		}
	}

	if len(workItems) == 0 {
		result.Duration = time.Since(started)
		return result, nil
	}

	outcomes, err := r.runExtractWorkers(ctx, dstRootAbs, workItems, opts)
	if err != nil {
		return result, err
	}

	var firstFatal error
	for _, outcome := range outcomes {
		switch {
		case outcome.fatal != nil:
			if firstFatal == nil {
				firstFatal = outcome.fatal
			}
		case outcome.fault != nil:
			result.Faults = append(result.Faults, EntryFault{
				Path:   outcome.entry.Path,
				Offset: outcome.entry.Offset,
				Err:    outcome.fault,
			})
		default:
			result.Files++
			result.BytesWritten += outcome.written
		}
	}

	result.Duration = time.Since(started)
	return result, firstFatal
}

// runExtractWorkers fans work items over the configured worker count and
// gathers per-entry outcomes.
func (r *Reader) runExtractWorkers(
	ctx context.Context,
	dstRootAbs string,
	workItems []extractWorkItem,
	opts ExtractOptions,
) ([]extractOutcome, error) {
	workers := opts.MaxWorkers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers < 1 {
		workers = 1
	}
	if workers > len(workItems) {
		workers = len(workItems)
	}

	// Both channels are sized for the full batch, so sends never block and
	// cancellation only short-circuits work that has not started yet.
	taskCh := make(chan extractWorkItem, len(workItems))
	outcomeCh := make(chan extractOutcome, len(workItems))
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Go(func() {
			for task := range taskCh {
				if ctx.Err() != nil {
					continue
				}

				outcome := r.extractPreparedEntry(dstRootAbs, task, opts)
				if outcome.fatal != nil {
					cancel()
				}

				outcomeCh <- outcome
			}
		})
	}

	for _, task := range workItems {
		taskCh <- task
	}

	close(taskCh)
	wg.Wait()
	close(outcomeCh)

	outcomes := make([]extractOutcome, 0, len(workItems))
	hasFatal := false
	for outcome := range outcomeCh {
		if outcome.fatal != nil {
			hasFatal = true
		}

		outcomes = append(outcomes, outcome)
	}

	if !hasFatal && ctx.Err() != nil {
		return outcomes, ctx.Err()
	}

	return outcomes, nil
}

// prepareExtractWorkItems validates selected entries and prepares relative fs paths.
func prepareExtractWorkItems(entries []EntryInfo) ([]extractWorkItem, []extractWorkItem, error) {
	dirItems := make([]extractWorkItem, 0, 4)
	workItems := make([]extractWorkItem, 0, len(entries))
	for _, entry := range entries {
		if strings.TrimSpace(entry.Path) == "" {
			continue
		}

		normalizedPath, err := normalizeExtractEntryPath(entry.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("normalize entry path %s: %w", entry.Path, err)
		}

		relPath := filepath.FromSlash(normalizedPath)
		relDir := filepath.Dir(relPath)
		if relDir == "." || relDir == "" {
			relDir = ""
		}

		item := extractWorkItem{
			entry:   entry,
			relPath: relPath,
			relDir:  relDir,
		}
		if entry.Kind == EntryKindDirectory {
			dirItems = append(dirItems, item)
			continue
		}

		workItems = append(workItems, item)
	}

	return dirItems, workItems, nil
}

// prepareExtractDirs creates directory entries and all unique file parent
// directories sequentially, before any worker writes.
func prepareExtractDirs(dstRootAbs string, dirItems, workItems []extractWorkItem) error {
	seen := make(map[string]struct{}, len(dirItems)+len(workItems))

	create := func(rel string) error {
		if rel == "" {
			return nil
		}

		dirPath := filepath.Join(dstRootAbs, rel)
		key := strings.ToLower(dirPath)
		if _, exists := seen[key]; exists {
			return nil
		}

		seen[key] = struct{}{}
		if err := os.MkdirAll(dirPath, 0o750); err != nil {
			return fmt.Errorf("create output directory %s: %w", dirPath, err)
		}

		return nil
	}

	for _, task := range dirItems {
		if err := create(task.relPath); err != nil {
			return err
		}
	}
	for _, task := range workItems {
		if err := create(task.relDir); err != nil {
			return err
		}
	}

	return nil
}

// extractPreparedEntry decodes one prepared work item and, unless in dry-run,
// writes it under the destination root. The content is decoded fully in
// memory before the output file is created, so a failing entry leaves no
// partial file behind.
func (r *Reader) extractPreparedEntry(dstRootAbs string, task extractWorkItem, opts ExtractOptions) extractOutcome {
	outcome := extractOutcome{entry: task.entry}

	content, err := r.readEntryByInfo(&task.entry)
	if err != nil {
		if errors.Is(err, ErrDecompression) {
			outcome.fault = err
			return outcome
		}

		outcome.fatal = err
		return outcome
	}

	outcome.written = int64(len(content))
	outPath := task.relPath
	if !opts.DryRun {
		outPath = filepath.Join(dstRootAbs, task.relPath)
		if err := writeExtractFile(outPath, content, opts.Overwrite); err != nil {
			outcome.fatal = fmt.Errorf("write %s: %w", task.entry.Path, err)
			return outcome
		}
	}

	if opts.OnEntryDone != nil {
		opts.OnEntryDone(task.entry, outcome.written, outPath)
	}

	return outcome
}

// writeExtractFile creates the output file according to the collision policy.
func writeExtractFile(path string, content []byte, overwrite bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}

	file, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%w: %s", ErrOutputCollision, path)
		}

		return err
	}

	_, writeErr := file.Write(content)
	closeErr := file.Close()
	if writeErr != nil {
		return writeErr
	}

	return closeErr
}
