// SPDX-License-Identifier: MIT
// Copyright (c) 2026 TaskMeta
// Source: github.com/taskmeta/kspblob

package kspblob

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// metadataFileName is the per-save file carrying the display name field.
const metadataFileName = "metadata.txt"

// displayNamePattern matches the first "displayName = <value>" line.
var displayNamePattern = regexp.MustCompile(`(?i)\bdisplayName\s*=\s*(.+)`)

// RenameResult contains aggregate statistics for one renaming pass.
type RenameResult struct {
	// Renamed is the number of folders renamed (or planned in dry-run).
	Renamed int `json:"renamed" yaml:"renamed"`
	// Skipped is the number of metadata files that produced no rename.
	Skipped int `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	// Failed lists folders whose rename failed with the underlying errors.
	Failed []EntryFault `json:"failed,omitempty" yaml:"failed,omitempty"`
}

// RenameSaveFolders walks root for metadata.txt files, reads each save's
// displayName field, and renames the containing folder to the sanitized
// value. Existing target names get a " (n)" suffix. Folders whose
// grandparent directory is named "common" hold shared (non-save) data and
// are skipped. Deepest folders rename first so ancestors never invalidate
// pending descendant paths.
func RenameSaveFolders(root string, opts RenameOptions) (RenameResult, error) {
	var result RenameResult

	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return result, fmt.Errorf("resolve root: %w", err)
	}

	metadataFiles, err := collectMetadataFiles(rootAbs)
	if err != nil {
		return result, err
	}

	sort.SliceStable(metadataFiles, func(i, j int) bool {
		return pathDepth(rootAbs, metadataFiles[i]) > pathDepth(rootAbs, metadataFiles[j])
	})

	for _, metaPath := range metadataFiles {
		renamed, renameErr := renameOneSaveFolder(metaPath, opts)
		switch {
		case renameErr != nil:
			result.Failed = append(result.Failed, EntryFault{
				Path: filepath.Dir(metaPath),
				Err:  renameErr,
			})
		case renamed:
			result.Renamed++
		default:
			result.Skipped++
		}
	}

	return result, nil
}

// renameOneSaveFolder processes one metadata.txt and reports whether its
// parent folder was renamed (or planned in dry-run).
func renameOneSaveFolder(metaPath string, opts RenameOptions) (bool, error) {
	saveDir := filepath.Dir(metaPath)
	grandparent := filepath.Base(filepath.Dir(saveDir))
	if strings.EqualFold(grandparent, "common") {
		return false, nil
	}

	rawValue, err := findDisplayName(metaPath)
	if err != nil {
		return false, err
	}
	if rawValue == "" {
		return false, nil
	}

	cleaned := SanitizeDisplayName(rawValue)
	if filepath.Base(saveDir) == cleaned {
		return false, nil
	}

	target := uniqueTargetPath(filepath.Dir(saveDir), cleaned)
	if opts.OnRename != nil {
		opts.OnRename(saveDir, target)
	}
	if opts.DryRun {
		return true, nil
	}

	if err := os.Rename(saveDir, target); err != nil {
		return false, fmt.Errorf("rename save folder: %w", err)
	}

	return true, nil
}

// collectMetadataFiles finds every metadata.txt under root.
func collectMetadataFiles(root string) ([]string, error) {
	var found []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if strings.EqualFold(d.Name(), metadataFileName) {
			found = append(found, path)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	return found, nil
}

// findDisplayName returns the first displayName value in the metadata file.
func findDisplayName(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open metadata: %w", err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		m := displayNamePattern.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}

		value := cutInlineComment(strings.TrimSpace(m[1]))
		return strings.TrimSpace(strings.TrimRight(value, ";")), nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read metadata: %w", err)
	}

	return "", nil
}

// uniqueTargetPath picks "<name>" or "<name> (n)" so the target does not exist yet.
func uniqueTargetPath(parent, desired string) string {
	candidate := filepath.Join(parent, desired)
	if _, err := os.Lstat(candidate); err != nil {
		return candidate
	}

	for n := 1; ; n++ {
		withSuffix := filepath.Join(parent, fmt.Sprintf("%s (%d)", desired, n))
		if _, err := os.Lstat(withSuffix); err != nil {
			return withSuffix
		}
	}
}

// pathDepth counts path separators between root and the file's directory.
func pathDepth(root, path string) int {
	rel, err := filepath.Rel(root, filepath.Dir(path))
	if err != nil {
		return 0
	}

	return strings.Count(rel, string(filepath.Separator))
}
