package kspblob

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/ulikunitz/xz/lzma"
)

// containerBuilder assembles synthetic containers in the reverse-engineered
// blob layout for tests.
type containerBuilder struct {
	buf bytes.Buffer
}

// writeBlob appends one header+payload pair with the given stored name.
func (b *containerBuilder) writeBlob(t *testing.T, storedName string, data []byte) {
	t.Helper()

	nameField := append([]byte(storedName), 0)
	if len(nameField) > 255 {
		t.Fatalf("stored name too long: %d bytes", len(nameField))
	}

	var fixed [8]byte
	binary.LittleEndian.PutUint32(fixed[0:4], uint32(len(data)))
	fixed[5] = byte(len(nameField))
	b.buf.Write(fixed[:])
	b.buf.Write(nameField)
	b.buf.Write(data)
}

// addDir appends a zero-payload directory marker for path (slash-separated).
func (b *containerBuilder) addDir(t *testing.T, path string) {
	t.Helper()
	stored := `\` + toStoredSeparators(path) + `\`
	b.writeBlob(t, stored, nil)
}

// addFile appends an uncompressed rooted file entry.
func (b *containerBuilder) addFile(t *testing.T, path string, content []byte) {
	t.Helper()
	b.writeBlob(t, `\`+toStoredSeparators(path), content)
}

// addRelativeFile appends a file entry without the container-root lead, so it
// joins the current directory prefix during scanning.
func (b *containerBuilder) addRelativeFile(t *testing.T, name string, content []byte) {
	t.Helper()
	b.writeBlob(t, toStoredSeparators(name), content)
}

// addCompressedFile appends a ".cmp" file entry: embedded property bytes,
// declared uncompressed size, then the raw LZMA stream for content.
func (b *containerBuilder) addCompressedFile(t *testing.T, path string, content []byte, cfg FilterConfig) {
	t.Helper()
	b.writeBlob(t, `\`+toStoredSeparators(path)+compressedSuffix, compressedPayload(t, content, cfg))
}

// addCorruptCompressedFile appends a ".cmp" entry whose raw stream is cut
// short, so scanning succeeds but decompression fails.
func (b *containerBuilder) addCorruptCompressedFile(t *testing.T, path string, content []byte, cfg FilterConfig) {
	t.Helper()
	payload := compressedPayload(t, content, cfg)
	cut := compressedPrefix + (len(payload)-compressedPrefix)/2
	b.writeBlob(t, `\`+toStoredSeparators(path)+compressedSuffix, payload[:cut])
}

// finish appends the terminator blob and returns the container bytes.
func (b *containerBuilder) finish() []byte {
	var fixed [8]byte
	fixed[7] = 1
	b.buf.Write(fixed[:])
	return b.buf.Bytes()
}

// writeToFile stores the finished container in a temp file and returns its path.
func (b *containerBuilder) writeToFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "savegame.blob")
	if err := os.WriteFile(path, b.finish(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// toStoredSeparators converts a slash-separated path to stored backslash form.
func toStoredSeparators(path string) string {
	out := make([]byte, len(path))
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			out[i] = '\\'
			continue
		}
		out[i] = path[i]
	}
	return string(out)
}

// compressedPayload builds the on-wire payload of one compressed entry.
func compressedPayload(t *testing.T, content []byte, cfg FilterConfig) []byte {
	t.Helper()

	payload := make([]byte, compressedPrefix, compressedPrefix+len(content))
	payload[0] = cfg.propertyCode()
	binary.LittleEndian.PutUint32(payload[1:5], uint32(cfg.DictCap))
	binary.LittleEndian.PutUint32(payload[5:9], uint32(len(content)))
	return append(payload, compressRaw(t, content, cfg)...)
}

// compressRaw produces a headerless LZMA stream for content under cfg.
func compressRaw(t *testing.T, content []byte, cfg FilterConfig) []byte {
	t.Helper()

	var buf bytes.Buffer
	wc := lzma.WriterConfig{
		Properties:   &lzma.Properties{LC: cfg.LC, LP: cfg.LP, PB: cfg.PB},
		DictCap:      cfg.DictCap,
		SizeInHeader: true,
		Size:         int64(len(content)),
	}
	w, err := wc.NewWriter(&buf)
	if err != nil {
		t.Fatalf("lzma writer: %v", err)
	}
	if _, err := w.Write(content); err != nil {
		t.Fatalf("lzma write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("lzma close: %v", err)
	}

	// Strip the classic header the test encoder emits; entries store only the
	// raw stream.
	return buf.Bytes()[lzmaHeaderSize:]
}
