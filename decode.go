// SPDX-License-Identifier: MIT
// Copyright (c) 2026 TaskMeta
// Source: github.com/taskmeta/kspblob

package kspblob

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileResult pairs one decoded input container with its extraction outcome.
type FileResult struct {
	// Input is the container file path.
	Input string `json:"input" yaml:"input"`
	// Result holds aggregate statistics when decoding succeeded or partially succeeded.
	Result DecodeResult `json:"result" yaml:"result"`
	// Err is the fatal decode error for this container, nil on success.
	Err error `json:"-" yaml:"-"`
}

// DecodeFile decodes one container file into outputRoot/<input base name>/.
// Reader options control the filter chain; extract options control dry-run,
// collision policy and parallelism.
func DecodeFile(ctx context.Context, inputPath, outputRoot string, ropts ReaderOptions, eopts ExtractOptions) (DecodeResult, error) {
	r, err := OpenWithOptions(inputPath, ropts)
	if err != nil {
		return DecodeResult{}, err
	}
	defer func() { _ = r.Close() }()

	dstDir := filepath.Join(outputRoot, filepath.Base(inputPath))
	return r.Extract(ctx, dstDir, eopts)
}

// DecodeDir decodes every regular file under inputDir recursively, giving each
// container its own subtree under outputRoot. A failing container does not
// stop the batch; its error is recorded in the returned results.
func DecodeDir(ctx context.Context, inputDir, outputRoot string, ropts ReaderOptions, eopts ExtractOptions) ([]FileResult, error) {
	var results []FileResult
	walkErr := filepath.WalkDir(inputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !d.Type().IsRegular() {
			return nil
		}

		result, decodeErr := DecodeFile(ctx, path, outputRoot, ropts, eopts)
		results = append(results, FileResult{Input: path, Result: result, Err: decodeErr})
		return nil
	})
	if walkErr != nil {
		return results, fmt.Errorf("walk input dir %s: %w", inputDir, walkErr)
	}

	return results, nil
}

// DecodePath decodes a single container file or a directory of containers,
// mirroring the shape accepted by the download tooling.
func DecodePath(ctx context.Context, inputPath, outputRoot string, ropts ReaderOptions, eopts ExtractOptions) ([]FileResult, error) {
	fi, err := os.Stat(inputPath)
	if err != nil {
		return nil, fmt.Errorf("stat input: %w", err)
	}

	if fi.IsDir() {
		return DecodeDir(ctx, inputPath, outputRoot, ropts, eopts)
	}

	result, decodeErr := DecodeFile(ctx, inputPath, outputRoot, ropts, eopts)
	return []FileResult{{Input: inputPath, Result: result, Err: decodeErr}}, nil
}
