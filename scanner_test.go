package kspblob

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
)

// scanAll drains a scanner and returns all yielded blobs.
func scanAll(t *testing.T, data []byte) []*Blob {
	t.Helper()

	s := NewScanner(bytes.NewReader(data), int64(len(data)))
	var blobs []*Blob
	for {
		blob, err := s.Next()
		if err == io.EOF {
			return blobs
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		blobs = append(blobs, blob)
	}
}

func TestScanner_DirectoryAndFileOrder(t *testing.T) {
	t.Parallel()

	var b containerBuilder
	b.addDir(t, "Ship1")
	b.addFile(t, "Ship1/persistent.sfs", []byte("GAME\n{\n}\n"))
	b.addFile(t, "Ship1/quicksave.sfs", []byte("QS"))
	data := b.finish()

	blobs := scanAll(t, data)
	if len(blobs) != 3 {
		t.Fatalf("blobs=%d, want 3", len(blobs))
	}

	if blobs[0].Info.Kind != EntryKindDirectory || blobs[0].Info.Path != "Ship1" {
		t.Errorf("dir entry: kind=%s path=%q", blobs[0].Info.Kind, blobs[0].Info.Path)
	}
	if blobs[0].Data != nil {
		t.Error("directory marker carries payload")
	}

	if blobs[1].Info.Kind != EntryKindFile || blobs[1].Info.Path != "Ship1/persistent.sfs" {
		t.Errorf("file entry: kind=%s path=%q", blobs[1].Info.Kind, blobs[1].Info.Path)
	}
	if !bytes.Equal(blobs[1].Data, []byte("GAME\n{\n}\n")) {
		t.Errorf("file payload=%q", blobs[1].Data)
	}
	if blobs[1].Info.Compressed {
		t.Error("plain file marked compressed")
	}
}

func TestScanner_RelativeNameJoinsDirectoryPrefix(t *testing.T) {
	t.Parallel()

	var b containerBuilder
	b.addDir(t, "Ships/VAB")
	b.addRelativeFile(t, "lander.craft", []byte("ship = lander"))
	data := b.finish()

	blobs := scanAll(t, data)
	if len(blobs) != 2 {
		t.Fatalf("blobs=%d, want 2", len(blobs))
	}
	if blobs[1].Info.Path != "Ships/VAB/lander.craft" {
		t.Errorf("joined path=%q", blobs[1].Info.Path)
	}
}

func TestScanner_CompressedEntryMetadata(t *testing.T) {
	t.Parallel()

	content := bytes.Repeat([]byte("orbit data "), 100)
	cfg := DefaultFilterConfig()

	var b containerBuilder
	b.addCompressedFile(t, "Ship1/persistent.sfs", content, cfg)
	data := b.finish()

	blobs := scanAll(t, data)
	if len(blobs) != 1 {
		t.Fatalf("blobs=%d, want 1", len(blobs))
	}

	info := blobs[0].Info
	if !info.Compressed {
		t.Fatal("entry not marked compressed")
	}
	if info.Path != "Ship1/persistent.sfs" {
		t.Errorf("path=%q, want suffix stripped", info.Path)
	}
	if info.OriginalSize != uint32(len(content)) {
		t.Errorf("OriginalSize=%d, want %d", info.OriginalSize, len(content))
	}
	if int(info.DataSize) != len(blobs[0].Data) {
		t.Errorf("DataSize=%d, payload=%d", info.DataSize, len(blobs[0].Data))
	}

	decoded, err := DecompressRaw(blobs[0].Data, info.OriginalSize, cfg)
	if err != nil {
		t.Fatalf("DecompressRaw: %v", err)
	}
	if !bytes.Equal(decoded, content) {
		t.Error("decoded content mismatch")
	}
}

func TestScanner_TruncatedPayload(t *testing.T) {
	t.Parallel()

	var b containerBuilder
	b.addFile(t, "a.sfs", []byte("hello"))
	data := b.finish()

	// Cut the container inside the last payload.
	cut := data[:len(data)-10]
	s := NewScanner(bytes.NewReader(cut), int64(len(cut)))
	_, err := s.Next()
	if !errors.Is(err, ErrTruncatedInput) {
		t.Fatalf("expected ErrTruncatedInput, got %v", err)
	}
}

func TestScanner_DeclaredLengthExceedsRemaining(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	nameField := []byte("\\big.bin\x00")
	var fixed [8]byte
	binary.LittleEndian.PutUint32(fixed[0:4], 1<<20)
	fixed[5] = byte(len(nameField))
	buf.Write(fixed[:])
	buf.Write(nameField)
	buf.Write([]byte("short"))

	s := NewScanner(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	_, err := s.Next()
	if !errors.Is(err, ErrTruncatedInput) {
		t.Fatalf("expected ErrTruncatedInput, got %v", err)
	}
}

func TestScanner_NonZeroPadding(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	nameField := []byte("\\a.sfs\x00")
	var fixed [8]byte
	fixed[4] = 0xAA
	fixed[5] = byte(len(nameField))
	buf.Write(fixed[:])
	buf.Write(nameField)

	s := NewScanner(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	_, err := s.Next()
	if !errors.Is(err, ErrCorruptContainer) {
		t.Fatalf("expected ErrCorruptContainer, got %v", err)
	}
}

func TestScanner_TrailingBytesAfterTerminator(t *testing.T) {
	t.Parallel()

	var b containerBuilder
	b.addFile(t, "a.sfs", []byte("x"))
	data := append(b.finish(), 0xDE, 0xAD)

	s := NewScanner(bytes.NewReader(data), int64(len(data)))
	if _, err := s.Next(); err != nil {
		t.Fatalf("first Next: %v", err)
	}
	_, err := s.Next()
	if !errors.Is(err, ErrCorruptContainer) {
		t.Fatalf("expected ErrCorruptContainer, got %v", err)
	}
}

func TestScanner_MissingTerminator(t *testing.T) {
	t.Parallel()

	var b containerBuilder
	b.addFile(t, "a.sfs", []byte("x"))
	data := b.buf.Bytes() // no terminator

	s := NewScanner(bytes.NewReader(data), int64(len(data)))
	_, err := s.Next()
	if !errors.Is(err, ErrCorruptContainer) {
		t.Fatalf("expected ErrCorruptContainer, got %v", err)
	}
}

func TestScanner_ControlBytesInName(t *testing.T) {
	t.Parallel()

	var b containerBuilder
	b.writeBlob(t, "\\bad\x01name.sfs", []byte("x"))
	data := b.finish()

	s := NewScanner(bytes.NewReader(data), int64(len(data)))
	_, err := s.Next()
	if !errors.Is(err, ErrCorruptContainer) {
		t.Fatalf("expected ErrCorruptContainer, got %v", err)
	}
}

func TestScanner_EmptyContainer(t *testing.T) {
	t.Parallel()

	var b containerBuilder
	data := b.finish()

	s := NewScanner(bytes.NewReader(data), int64(len(data)))
	if _, err := s.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF for terminator-only container, got %v", err)
	}
	// Iteration stays terminated.
	if _, err := s.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF on repeated Next, got %v", err)
	}
}

func TestByteReader_PeekDoesNotConsume(t *testing.T) {
	t.Parallel()

	src := []byte{1, 2, 3, 4, 5}
	br := newByteReader(bytes.NewReader(src), int64(len(src)))

	peeked, err := br.peek(3)
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if !bytes.Equal(peeked, []byte{1, 2, 3}) {
		t.Errorf("peek=%v", peeked)
	}
	if br.remaining() != 5 {
		t.Errorf("remaining after peek=%d, want 5", br.remaining())
	}

	read, err := br.read(4)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(read, []byte{1, 2, 3, 4}) {
		t.Errorf("read=%v", read)
	}
	if br.remaining() != 1 {
		t.Errorf("remaining after read=%d, want 1", br.remaining())
	}

	if _, err := br.read(2); !errors.Is(err, ErrTruncatedInput) {
		t.Fatalf("expected ErrTruncatedInput, got %v", err)
	}
}
