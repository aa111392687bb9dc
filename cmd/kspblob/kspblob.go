// SPDX-License-Identifier: MIT
// Copyright (c) 2026 TaskMeta
// Source: github.com/taskmeta/kspblob

// Command kspblob converts downloaded console savegame pseudo-folder
// containers into the PC save-folder layout.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/taskmeta/kspblob"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "validate and report entries without writing output")
	overwrite := flag.Bool("overwrite", false, "replace existing output files instead of failing")
	workers := flag.Int("workers", 0, "number of decompression workers (0 = all CPUs)")
	rename := flag.Bool("rename", false, "rename extracted save folders from their metadata displayName")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <input file|dir> <output dir>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	inputPath := flag.Arg(0)
	outputRoot := flag.Arg(1)

	eopts := kspblob.ExtractOptions{
		DryRun:     *dryRun,
		Overwrite:  *overwrite,
		MaxWorkers: *workers,
		OnEntryDone: func(entry kspblob.EntryInfo, written int64, outputPath string) {
			log.Printf("%s (%d bytes) -> %s", entry.Path, written, outputPath)
		},
	}

	results, err := kspblob.DecodePath(ctx, inputPath, outputRoot, kspblob.ReaderOptions{}, eopts)
	if err != nil {
		log.Fatalf("decode %s: %v", inputPath, err)
	}

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			log.Printf("FAILED %s: %v", res.Input, res.Err)
			continue
		}

		log.Printf("%s: %d directories, %d files, %d bytes, %d skipped in %s",
			res.Input, res.Result.Directories, res.Result.Files,
			res.Result.BytesWritten, res.Result.Skipped, res.Result.Duration)
		for _, fault := range res.Result.Faults {
			failed++
			log.Printf("FAILED entry %s at offset %d in %s: %v",
				fault.Path, fault.Offset, res.Input, fault.Err)
		}
	}

	if *rename && !*dryRun {
		renameRes, err := kspblob.RenameSaveFolders(outputRoot, kspblob.RenameOptions{
			OnRename: func(oldPath, newPath string) {
				log.Printf("rename %s -> %s", oldPath, newPath)
			},
		})
		if err != nil {
			log.Fatalf("rename save folders: %v", err)
		}

		log.Printf("renamed %d save folders, skipped %d", renameRes.Renamed, renameRes.Skipped)
		for _, fault := range renameRes.Failed {
			failed++
			log.Printf("FAILED rename %s: %v", fault.Path, fault.Err)
		}
	}

	if errors.Is(ctx.Err(), context.Canceled) {
		os.Exit(130)
	}
	if failed > 0 {
		os.Exit(1)
	}
}
