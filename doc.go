// SPDX-License-Identifier: MIT
// Copyright (c) 2026 TaskMeta
// Source: github.com/taskmeta/kspblob

/*
Package kspblob decodes the console cloud-save "pseudo-folder" container
used by the Xbox edition of Kerbal Space Program into the directory layout
expected by the PC edition. A container is an opaque byte blob holding a
sequence of blobs (header + payload), one per file or directory; file
payloads whose stored name carries a ".cmp" suffix are raw (headerless)
LZMA streams decoded with a fixed, empirically determined filter chain.

Decoding is one-way: the package never re-encodes containers.

# Reading

Open a container and list or read entries:

	r, err := kspblob.Open("savegame.blob")
	if err != nil {
	    return err
	}
	defer r.Close()
	for _, e := range r.Entries() {
	    data, _ := r.ReadEntry(e.Path)
	    // use data
	}

For metadata-only scans without creating a reader:

	entries, err := kspblob.ListEntries("savegame.blob")
	if err != nil {
	    return err
	}
	_ = entries

If a future save-format revision changes the compression parameters,
supply an alternate filter chain instead of the default:

	r, err := kspblob.OpenWithOptions("savegame.blob", kspblob.ReaderOptions{
	    Filter: kspblob.FilterConfig{LC: 3, LP: 0, PB: 2, DictCap: 1 << 24},
	})

# Extracting

Materialize the whole tree under an output root (parallel workers):

	res, err := r.Extract(ctx, "out/", kspblob.ExtractOptions{MaxWorkers: 4})
	if err != nil {
	    return err
	}
	_ = res.Files

Validate a container without touching the filesystem:

	res, err := r.Extract(ctx, "out/", kspblob.ExtractOptions{DryRun: true})

Entries that fail to decompress are reported in res.Faults while the rest
of the container still extracts. Existing output files fail with
ErrOutputCollision unless ExtractOptions.Overwrite is set.

Restrict extraction with selection rules
(github.com/woozymasta/pathrules):

	res, err := r.Extract(ctx, "out/", kspblob.ExtractOptions{
	    Select: []pathrules.Rule{
	        {Action: pathrules.ActionInclude, Pattern: "Ships/**"},
	        {Action: pathrules.ActionExclude, Pattern: "*.loadmeta"},
	    },
	})

# Batch decoding

Convert one downloaded container file, or a whole directory of them, each
into its own subtree named after the input file:

	results, err := kspblob.DecodePath(ctx, "downloads/", "saves/",
	    kspblob.ReaderOptions{}, kspblob.ExtractOptions{})

# Renaming save folders

After extraction, save folders carry opaque console identifiers. Rename
them from each save's metadata displayName field:

	res, err := kspblob.RenameSaveFolders("saves/", kspblob.RenameOptions{})

# Raw payload access

The scanner and decompressor are exposed for streaming workflows:

	s := kspblob.NewScanner(ra, size)
	for {
	    blob, err := s.Next()
	    if err == io.EOF {
	        break
	    }
	    if err != nil {
	        return err
	    }
	    if blob.Info.Compressed {
	        data, err := kspblob.DecompressRaw(blob.Data, blob.Info.OriginalSize, kspblob.DefaultFilterConfig())
	        _, _ = data, err
	    }
	}
*/
package kspblob
