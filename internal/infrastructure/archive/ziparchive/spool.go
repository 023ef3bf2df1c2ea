package ziparchive

import (
	"bytes"
	"io"
	"os"
)

// spool stages one entry at a time. Small entries stay in memory; larger
// ones go to a single temp file that is truncated and reused.
type spool struct {
	threshold int64
	dir       string

	mem    bytes.Buffer
	file   *os.File
	onDisk bool
}

func newSpool(threshold int64, dir string) *spool {
	return &spool{threshold: threshold, dir: dir}
}

func (s *spool) reset(size uint64) error {
	s.mem.Reset()
	s.onDisk = size > uint64(s.threshold)
	if !s.onDisk {
		return nil
	}
	if s.file == nil {
		f, err := os.CreateTemp(s.dir, "semscan-spool-*")
		if err != nil {
			return err
		}
		s.file = f
	}
	if err := s.file.Truncate(0); err != nil {
		return err
	}
	_, err := s.file.Seek(0, io.SeekStart)
	return err
}

func (s *spool) Write(p []byte) (int, error) {
	if s.onDisk {
		return s.file.Write(p)
	}
	return s.mem.Write(p)
}

func (s *spool) reader() (io.Reader, error) {
	if !s.onDisk {
		return bytes.NewReader(s.mem.Bytes()), nil
	}
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return s.file, nil
}

func (s *spool) Close() error {
	if s.file == nil {
		return nil
	}
	name := s.file.Name()
	err := s.file.Close()
	if rmErr := os.Remove(name); err == nil {
		err = rmErr
	}
	s.file = nil
	return err
}
