package slide

import (
	"io"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/exp/mmap"
)

// Source is the byte-range accessor backing a slide. ReadAt must be safe
// for concurrent use; wrap an accessor that mutates shared state per read
// with SerializedSource.
type Source interface {
	io.ReaderAt
	Size() int64
}

// mmapSource maps the whole container file. mmap.ReaderAt supports
// concurrent positioned reads and keeps resident memory bounded by the
// page cache, which matters for multi-gigabyte slides.
type mmapSource struct {
	r *mmap.ReaderAt
}

func openMmap(path string) (*mmapSource, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not map slide file")
	}
	return &mmapSource{r: r}, nil
}

func (s *mmapSource) ReadAt(p []byte, off int64) (int, error) { return s.r.ReadAt(p, off) }
func (s *mmapSource) Size() int64                             { return int64(s.r.Len()) }
func (s *mmapSource) Close() error                            { return s.r.Close() }

// readerAtSource adapts a caller-supplied io.ReaderAt of known size.
type readerAtSource struct {
	r    io.ReaderAt
	size int64
}

func (s *readerAtSource) ReadAt(p []byte, off int64) (int, error) { return s.r.ReadAt(p, off) }
func (s *readerAtSource) Size() int64                             { return s.size }

// SerializedSource serializes positioned reads on a Source whose
// implementation is not safe for concurrent ReadAt calls. Decoding still
// proceeds in parallel; only the raw byte fetch is serialized.
type SerializedSource struct {
	mu  sync.Mutex
	src Source
}

// NewSerializedSource wraps src with a read lock.
func NewSerializedSource(src Source) *SerializedSource {
	return &SerializedSource{src: src}
}

func (s *SerializedSource) ReadAt(p []byte, off int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.ReadAt(p, off)
}

func (s *SerializedSource) Size() int64 { return s.src.Size() }

// readFull reads exactly len(p) bytes at off, mapping short reads at the
// end of the container to an error instead of partial data.
func readFull(src Source, p []byte, off int64) error {
	if off < 0 || off+int64(len(p)) > src.Size() {
		return FormatError("read beyond end of container")
	}
	n, err := src.ReadAt(p, off)
	if err != nil && !(err == io.EOF && n == len(p)) {
		return errors.Wrapf(err, "read %d bytes at offset %d", len(p), off)
	}
	if n != len(p) {
		return FormatError("short read inside container")
	}
	return nil
}
