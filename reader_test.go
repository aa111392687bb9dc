package kspblob

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestOpen_ParsedEntries(t *testing.T) {
	t.Parallel()

	content := []byte("GAME\n{\n version = 1.12.5\n}\n")
	var b containerBuilder
	b.addDir(t, "Ship1")
	b.addFile(t, "Ship1/persistent.sfs", content)
	b.addCompressedFile(t, "Ship1/quicksave.sfs", bytes.Repeat(content, 64), DefaultFilterConfig())
	path := b.writeToFile(t)

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = r.Close() }()

	entries := r.Entries()
	if len(entries) != 3 {
		t.Fatalf("entries=%d, want 3", len(entries))
	}
	if entries[0].Kind != EntryKindDirectory || entries[0].Path != "Ship1" {
		t.Errorf("entry 0: %+v", entries[0])
	}
	if entries[1].Size() != uint32(len(content)) {
		t.Errorf("entry 1 size=%d, want %d", entries[1].Size(), len(content))
	}
	if !entries[2].Compressed || entries[2].OriginalSize != uint32(len(content)*64) {
		t.Errorf("entry 2: %+v", entries[2])
	}

	got, err := r.ReadEntry("Ship1/persistent.sfs")
	if err != nil {
		t.Fatalf("ReadEntry plain: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("plain content=%q", got)
	}

	got, err = r.ReadEntry("Ship1/quicksave.sfs")
	if err != nil {
		t.Fatalf("ReadEntry compressed: %v", err)
	}
	if !bytes.Equal(got, bytes.Repeat(content, 64)) {
		t.Error("compressed content mismatch")
	}
}

func TestReader_OpenEntryStream(t *testing.T) {
	t.Parallel()

	content := bytes.Repeat([]byte("stream me\n"), 200)
	var b containerBuilder
	b.addCompressedFile(t, "data.sfs", content, DefaultFilterConfig())
	data := b.finish()

	r, err := NewReaderFromReaderAt(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("NewReaderFromReaderAt: %v", err)
	}

	rc, err := r.OpenEntry("data.sfs")
	if err != nil {
		t.Fatalf("OpenEntry: %v", err)
	}
	defer func() { _ = rc.Close() }()

	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Error("streamed content mismatch")
	}
}

func TestReader_EntryNotFound(t *testing.T) {
	t.Parallel()

	var b containerBuilder
	b.addFile(t, "a.sfs", []byte("x"))
	data := b.finish()

	r, err := NewReaderFromReaderAt(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := r.ReadEntry("missing.sfs"); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
}

func TestReader_ClosedReader(t *testing.T) {
	t.Parallel()

	var b containerBuilder
	b.addFile(t, "a.sfs", []byte("x"))
	path := b.writeToFile(t)

	r, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	// Repeated close stays a no-op.
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := r.ReadEntry("a.sfs"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestOpen_CorruptContainerFails(t *testing.T) {
	t.Parallel()

	var b containerBuilder
	b.addFile(t, "a.sfs", []byte("x"))
	data := b.buf.Bytes() // missing terminator

	if _, err := NewReaderFromReaderAt(bytes.NewReader(data), int64(len(data))); !errors.Is(err, ErrCorruptContainer) {
		t.Fatalf("expected ErrCorruptContainer, got %v", err)
	}
}

func TestListEntries_Filters(t *testing.T) {
	t.Parallel()

	var b containerBuilder
	b.addDir(t, "Ship1")
	b.addFile(t, "Ship1/persistent.sfs", bytes.Repeat([]byte("x"), 100))
	b.addFile(t, "Ship1/tiny.txt", []byte("y"))
	b.addFile(t, "Other/readme.txt", []byte("hello there"))
	path := b.writeToFile(t)

	all, err := ListEntries(path)
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("all entries=%d, want 4", len(all))
	}

	bySize, err := ListEntriesWithOptions(path, ReaderOptions{MinEntrySize: 50})
	if err != nil {
		t.Fatalf("ListEntriesWithOptions size: %v", err)
	}
	// Directory markers and the 100-byte file survive the size threshold.
	if len(bySize) != 2 {
		t.Fatalf("size-filtered entries=%d, want 2", len(bySize))
	}

	byPrefix, err := ListEntriesWithOptions(path, ReaderOptions{EntryPathPrefix: "Ship1"})
	if err != nil {
		t.Fatalf("ListEntriesWithOptions prefix: %v", err)
	}
	if len(byPrefix) != 3 {
		t.Fatalf("prefix-filtered entries=%d, want 3", len(byPrefix))
	}
	for _, entry := range byPrefix {
		if entry.Path != "Ship1" && !bytes.HasPrefix([]byte(entry.Path), []byte("Ship1/")) {
			t.Errorf("unexpected entry %q under prefix filter", entry.Path)
		}
	}
}

func TestListEntries_SanitizeNames(t *testing.T) {
	t.Parallel()

	var b containerBuilder
	b.addFile(t, "Ship1/aux.sfs", []byte("reserved device name"))
	path := b.writeToFile(t)

	entries, err := ListEntriesWithOptions(path, ReaderOptions{SanitizeNames: true})
	if err != nil {
		t.Fatalf("ListEntriesWithOptions: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries=%d, want 1", len(entries))
	}
	if entries[0].Path != "Ship1/_aux.sfs" {
		t.Errorf("sanitized path=%q, want Ship1/_aux.sfs", entries[0].Path)
	}
}

func TestReader_FilterConfigOverride(t *testing.T) {
	t.Parallel()

	cfg := FilterConfig{LC: 0, LP: 0, PB: 2, DictCap: 1 << 18}
	content := bytes.Repeat([]byte("alternate revision payload\n"), 128)

	var b containerBuilder
	b.addCompressedFile(t, "rev2.sfs", content, cfg)
	data := b.finish()

	r, err := NewReaderFromReaderAtWithOptions(bytes.NewReader(data), int64(len(data)), ReaderOptions{Filter: cfg})
	if err != nil {
		t.Fatalf("NewReaderFromReaderAtWithOptions: %v", err)
	}
	if r.FilterConfig() != cfg {
		t.Errorf("FilterConfig=%+v, want %+v", r.FilterConfig(), cfg)
	}

	got, err := r.ReadEntry("rev2.sfs")
	if err != nil {
		t.Fatalf("ReadEntry: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Error("content mismatch under overridden filter config")
	}
}
