package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kirillkom/semester-scan/internal/core/domain"
	"github.com/kirillkom/semester-scan/internal/core/ports"
)

type Storage struct {
	basePath string
}

func New(basePath string) (*Storage, error) {
	if basePath == "" {
		basePath = "./data/storage"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Storage{basePath: basePath}, nil
}

// resolve rejects keys that would escape the base directory.
func (s *Storage) resolve(key string) (string, error) {
	clean := filepath.FromSlash(key)
	if !filepath.IsLocal(clean) {
		return "", domain.WrapError(domain.ErrInvalidInput, "storage key", fmt.Errorf("not a local path: %q", key))
	}
	return filepath.Join(s.basePath, clean), nil
}

// Save writes data under key and returns the number of bytes stored. The
// object becomes visible only once fully written.
func (s *Storage) Save(_ context.Context, key string, data io.Reader) (int64, error) {
	path, err := s.resolve(key)
	if err != nil {
		return 0, err
	}
	w, err := createAtomic(path)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(w, data)
	if err != nil {
		w.abort()
		return 0, fmt.Errorf("write file: %w", err)
	}
	if err := w.Close(); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Storage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

func (s *Storage) OpenArchive(_ context.Context, key string) (ports.ArchiveFile, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	return OpenFile(path)
}

// Create returns a writer whose content replaces key on Close.
func (s *Storage) Create(_ context.Context, key string) (io.WriteCloser, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	return createAtomic(path)
}

// File is an archive on local disk.
type File struct {
	*os.File
	size int64
}

func OpenFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("open file: %s is a directory", path)
	}
	return &File{File: f, size: info.Size()}, nil
}

func (f *File) Size() int64 { return f.size }

type atomicFile struct {
	*os.File
	target string
	done   bool
}

func createAtomic(path string) (*atomicFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.part")
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}
	return &atomicFile{File: tmp, target: path}, nil
}

func (f *atomicFile) Close() error {
	if f.done {
		return nil
	}
	f.done = true
	if err := f.File.Close(); err != nil {
		_ = os.Remove(f.Name())
		return fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(f.Name(), f.target); err != nil {
		_ = os.Remove(f.Name())
		return fmt.Errorf("commit file: %w", err)
	}
	return nil
}

func (f *atomicFile) abort() {
	if f.done {
		return
	}
	f.done = true
	_ = f.File.Close()
	_ = os.Remove(f.Name())
}
