// SPDX-License-Identifier: MIT
// Copyright (c) 2026 TaskMeta
// Source: github.com/taskmeta/kspblob

package kspblob

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/ulikunitz/xz/lzma"
)

// Raw payloads carry no codec parameters, so a classic 13-byte LZMA header
// is synthesized from the caller-supplied FilterConfig before handing the
// stream to the decoder. The embedded per-payload property bytes are never
// consulted; the format family uses one fixed filter chain.

// validate checks the filter configuration against LZMA parameter ranges.
func (cfg FilterConfig) validate() error {
	if cfg.LC < 0 || cfg.LC > 8 || cfg.LP < 0 || cfg.LP > 4 || cfg.PB < 0 || cfg.PB > 4 {
		return fmt.Errorf("%w: lc=%d lp=%d pb=%d", ErrInvalidFilterConfig, cfg.LC, cfg.LP, cfg.PB)
	}
	if cfg.LC+cfg.LP > 4 {
		return fmt.Errorf("%w: lc+lp=%d exceeds 4", ErrInvalidFilterConfig, cfg.LC+cfg.LP)
	}
	if cfg.DictCap < lzma.MinDictCap || int64(cfg.DictCap) > int64(math.MaxUint32) {
		return fmt.Errorf("%w: dictionary capacity %d", ErrInvalidFilterConfig, cfg.DictCap)
	}

	return nil
}

// propertyCode encodes lc/lp/pb into the single classic LZMA property byte.
func (cfg FilterConfig) propertyCode() byte {
	return byte((cfg.PB*5+cfg.LP)*9 + cfg.LC)
}

// classicHeader builds the classic LZMA stream header declaring size bytes
// of uncompressed output.
func (cfg FilterConfig) classicHeader(size int64) []byte {
	header := make([]byte, lzmaHeaderSize)
	header[0] = cfg.propertyCode()
	binary.LittleEndian.PutUint32(header[1:5], uint32(cfg.DictCap)) //nolint:gosec // bounded by validate
	binary.LittleEndian.PutUint64(header[5:13], uint64(size))       //nolint:gosec // size is non-negative
	return header
}

// newRawReader wraps a headerless LZMA stream with a decoder initialized
// from cfg and bounded to size uncompressed bytes.
func newRawReader(src io.Reader, size int64, cfg FilterConfig) (io.Reader, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if size < 0 {
		return nil, fmt.Errorf("%w: negative uncompressed size %d", ErrSizeOverflow, size)
	}

	rc := lzma.ReaderConfig{DictCap: cfg.DictCap}
	lr, err := rc.NewReader(io.MultiReader(bytes.NewReader(cfg.classicHeader(size)), src))
	if err != nil {
		return nil, fmt.Errorf("%w: init decoder: %w", ErrDecompression, err)
	}

	return lr, nil
}

// DecompressRaw decodes one headerless LZMA payload into exactly
// uncompressedSize bytes using the supplied filter chain. The payload bytes
// are never inspected for parameters; a wrong cfg yields ErrDecompression.
func DecompressRaw(src []byte, uncompressedSize uint32, cfg FilterConfig) ([]byte, error) {
	outLen, err := checkedUint32ToInt(uncompressedSize)
	if err != nil {
		return nil, err
	}

	lr, err := newRawReader(bytes.NewReader(src), int64(outLen), cfg)
	if err != nil {
		return nil, err
	}

	out := make([]byte, outLen)
	if _, err := io.ReadFull(lr, out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecompression, err)
	}

	return out, nil
}

// checkedUint32ToInt converts uint32 to int with platform-safe overflow check.
func checkedUint32ToInt(v uint32) (int, error) {
	if uint64(v) > uint64(math.MaxInt) {
		return 0, ErrSizeOverflow
	}

	return int(v), nil
}
