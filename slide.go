package slide

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/pkg/errors"
)

// Slide is the handle over one open whole-slide container: the byte
// source, the parsed directory chain, the resolution pyramid and the tile
// cache. Everything except the cache is immutable once Open returns;
// re-open the file to observe changes.
type Slide struct {
	src    Source
	closer io.Closer

	c      *container
	levels []*Level
	assoc  map[string]AssociatedImage
	props  map[string]string
	vendor string

	codecs     registry
	cache      *tileCache
	background [3]byte

	scratch sync.Pool
}

type config struct {
	cacheTiles int
	cacheBytes int64
	background [3]byte
	decoders   map[uint16]Decoder
	serialized bool
}

// Option configures an Open call.
type Option func(*config)

// WithCacheCapacity bounds the tile cache to n decoded tiles.
func WithCacheCapacity(n int) Option {
	return func(c *config) { c.cacheTiles = n }
}

// WithCacheBytes bounds the tile cache to roughly n bytes of decoded
// pixels, on top of the tile-count bound.
func WithCacheBytes(n int64) Option {
	return func(c *config) { c.cacheBytes = n }
}

// WithBackground sets the fill color for pixels outside the image bounds
// and for sparse tiles. The default is white.
func WithBackground(r, g, b byte) Option {
	return func(c *config) { c.background = [3]byte{r, g, b} }
}

// WithDecoder registers or replaces the decoder for a compression code on
// this handle.
func WithDecoder(compression uint16, d Decoder) Option {
	return func(c *config) {
		if c.decoders == nil {
			c.decoders = make(map[uint16]Decoder)
		}
		c.decoders[compression] = d
	}
}

// WithSerializedReads serializes positioned reads on the source, for
// accessors that are not safe for concurrent ReadAt. Decoding still runs
// in parallel.
func WithSerializedReads() Option {
	return func(c *config) { c.serialized = true }
}

// Open parses a container from a random-access byte store of known size.
func Open(r io.ReaderAt, size int64, opts ...Option) (*Slide, error) {
	return open(&readerAtSource{r: r, size: size}, nil, opts)
}

// OpenFile memory-maps path and parses the container.
func OpenFile(path string, opts ...Option) (*Slide, error) {
	src, err := openMmap(path)
	if err != nil {
		return nil, err
	}
	s, err := open(src, src, opts)
	if err != nil {
		src.Close()
		return nil, err
	}
	return s, nil
}

func open(src Source, closer io.Closer, opts []Option) (*Slide, error) {
	cfg := &config{
		cacheTiles: 128,
		background: [3]byte{255, 255, 255},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.serialized {
		src = NewSerializedSource(src)
	}

	c, err := parseContainer(src)
	if err != nil {
		return nil, err
	}
	levels, assocDirs, err := buildPyramid(c)
	if err != nil {
		return nil, err
	}

	codecs := defaultRegistry()
	for code, d := range cfg.decoders {
		codecs[code] = d
	}
	cache, err := newTileCache(cfg.cacheTiles, cfg.cacheBytes)
	if err != nil {
		return nil, errors.Wrap(err, "tile cache")
	}

	s := &Slide{
		src:        src,
		closer:     closer,
		c:          c,
		levels:     levels,
		codecs:     codecs,
		cache:      cache,
		background: cfg.background,
	}
	s.assoc = locateAssociated(assocDirs)
	s.vendor, s.props = parseProperties(s.RawMetadata())
	return s, nil
}

// Close destroys the tile cache and releases the byte source. The handle
// must not be used afterwards.
func (s *Slide) Close() error {
	s.cache.purge()
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// Vendor returns the detected metadata dialect, such as "aperio", or
// "generic-tiff" when no vendor marker is present.
func (s *Slide) Vendor() string { return s.vendor }

// Properties returns the vendor key/value pairs parsed from the first
// directory's description, such as AppMag or MPP for Aperio slides.
func (s *Slide) Properties() map[string]string { return s.props }

// String returns a human-readable dump of the directory structure and the
// resolution pyramid, for debugging.
func (s *Slide) String() string {
	buf := bytes.NewBufferString(s.c.String())
	for _, l := range s.levels {
		fmt.Fprintf(buf, "%v\n", l)
	}
	return buf.String()
}

// ReadTile decodes (or fetches from cache) the tile at (row, col) of a
// level and returns its interleaved RGB pixels. Sparse tiles come back as
// background fill.
func (s *Slide) ReadTile(level, row, col int) ([]byte, error) {
	l, err := s.levelAt(level)
	if err != nil {
		return nil, err
	}
	if row < 0 || row >= l.tilesDown() || col < 0 || col >= l.tilesAcross() {
		return nil, errors.Errorf("tile (%d, %d) outside the %dx%d grid of level %d",
			row, col, l.tilesAcross(), l.tilesDown(), level)
	}
	t := s.tileAt(l, row, col)
	if t.sparse() {
		buf := make([]byte, t.Width*t.Height*3)
		fillBackground(buf, s.background)
		return buf, nil
	}
	return s.decodeThroughCache(t)
}

// decodeThroughCache funnels a tile through the cache's one-decode-per-key
// coordination.
func (s *Slide) decodeThroughCache(t *Tile) ([]byte, error) {
	key := tileKey{level: t.Level, row: t.Row, col: t.Col}
	return s.cache.getOrDecode(key, func() ([]byte, error) {
		return s.decodeTile(t)
	})
}

// decodeTile reads the tile's declared byte range and dispatches it to the
// registry. The compressed payload lives in per-handle pooled scratch, not
// a process-wide allocator, so handles stay independently closable.
func (s *Slide) decodeTile(t *Tile) ([]byte, error) {
	raw := s.scratchGet(int(t.Length))
	defer s.scratch.Put(raw)

	data := (*raw)[:t.Length]
	if err := readFull(s.src, data, t.Offset); err != nil {
		return nil, errors.Wrapf(err, "tile (%d, %d) of level %d", t.Row, t.Col, t.Level)
	}
	return s.codecs.decode(t, data)
}

func (s *Slide) scratchGet(n int) *[]byte {
	if v := s.scratch.Get(); v != nil {
		buf := v.(*[]byte)
		if cap(*buf) >= n {
			return buf
		}
	}
	buf := make([]byte, n)
	return &buf
}

func fillBackground(buf []byte, bg [3]byte) {
	for i := 0; i+2 < len(buf); i += 3 {
		buf[i], buf[i+1], buf[i+2] = bg[0], bg[1], bg[2]
	}
}
