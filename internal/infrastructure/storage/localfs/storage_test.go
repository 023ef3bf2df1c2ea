package localfs

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/semester-scan/internal/core/domain"
)

func TestSaveAndOpenArchive(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	n, err := store.Save(ctx, "scan-1/chat.zip", strings.NewReader("zipbytes"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if n != 8 {
		t.Fatalf("expected 8 bytes, got %d", n)
	}

	file, err := store.OpenArchive(ctx, "scan-1/chat.zip")
	if err != nil {
		t.Fatalf("OpenArchive() error = %v", err)
	}
	defer file.Close()
	if file.Size() != 8 {
		t.Fatalf("expected size 8, got %d", file.Size())
	}
	buf := make([]byte, 3)
	if _, err := file.ReadAt(buf, 3); err != nil || string(buf) != "byt" {
		t.Fatalf("ReadAt() = %q, %v", buf, err)
	}
}

func TestCreateIsInvisibleUntilClosed(t *testing.T) {
	base := t.TempDir()
	store, err := New(base)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	w, err := store.Create(ctx, "scan-1/organized.zip")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	_, _ = w.Write([]byte("partial"))
	if _, err := store.Open(ctx, "scan-1/organized.zip"); err == nil {
		t.Fatalf("object must not exist before Close")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	rc, err := store.Open(ctx, "scan-1/organized.zip")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "partial" {
		t.Fatalf("unexpected content %q", data)
	}

	entries, _ := os.ReadDir(filepath.Join(base, "scan-1"))
	if len(entries) != 1 {
		t.Fatalf("expected only the committed file, got %d entries", len(entries))
	}
}

func TestRejectsEscapingKeys(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	for _, key := range []string{"../outside.zip", "/etc/passwd", ""} {
		if _, err := store.Save(context.Background(), key, strings.NewReader("x")); !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("Save(%q) error = %v, want invalid input", key, err)
		}
	}
}

func TestDirectorySinkWritesTree(t *testing.T) {
	root := filepath.Join(t.TempDir(), "out")
	sink, err := NewDirectorySink(root)
	if err != nil {
		t.Fatalf("NewDirectorySink() error = %v", err)
	}
	modified := time.Date(2025, 10, 3, 14, 0, 0, 0, time.UTC)
	ctx := context.Background()

	if err := sink.WriteEntry(ctx, domain.SinkEntry{Path: "College_Docs/Math/Notes/calc.pdf", Modified: modified}, bytes.NewReader([]byte("pdf"))); err != nil {
		t.Fatalf("WriteEntry() error = %v", err)
	}
	if err := sink.WriteEntry(ctx, domain.SinkEntry{Path: "../escape.txt"}, strings.NewReader("x")); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}

	path := filepath.Join(root, "College_Docs", "Math", "Notes", "calc.pdf")
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "pdf" {
		t.Fatalf("ReadFile() = %q, %v", data, err)
	}
	info, _ := os.Stat(path)
	if !info.ModTime().Equal(modified) {
		t.Fatalf("expected mtime %v, got %v", modified, info.ModTime())
	}
	if sink.Written() != 1 {
		t.Fatalf("expected 1 written, got %d", sink.Written())
	}
}
