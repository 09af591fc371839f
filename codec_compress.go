package slide

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"io"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/image/tiff/lzw"
)

// The zstd decoder is stateless for DecodeAll and safe for concurrent use;
// per-call scratch lives inside the call.
var zstdReader, _ = zstd.NewReader(nil)

// expanded returns the expected decompressed size of a tile's sample data.
func expanded(t *Tile) int {
	return t.Width * t.Height * t.SamplesPerPixel * t.BitsPerSample / 8
}

// readBounded drains r into a buffer capped at the tile's expected sample
// size, so a corrupt stream cannot balloon the allocation.
func readBounded(t *Tile, r io.Reader) ([]byte, error) {
	limit := int64(expanded(t))
	buf, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, CorruptError(err.Error())
	}
	if int64(len(buf)) > limit {
		return nil, CorruptError("decompressed tile larger than its geometry")
	}
	return buf, nil
}

func decodeLZW(t *Tile, data []byte) ([]byte, error) {
	r := lzw.NewReader(bytes.NewReader(data), lzw.MSB, 8)
	defer r.Close()
	buf, err := readBounded(t, r)
	if err != nil {
		return nil, err
	}
	if buf, err = unpredict(t, buf); err != nil {
		return nil, err
	}
	return canonicalize(t, buf)
}

func decodeDeflate(t *Tile, data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, CorruptError(err.Error())
	}
	defer r.Close()
	buf, err := readBounded(t, r)
	if err != nil {
		return nil, err
	}
	if buf, err = unpredict(t, buf); err != nil {
		return nil, err
	}
	return canonicalize(t, buf)
}

func decodeZstd(t *Tile, data []byte) ([]byte, error) {
	buf, err := zstdReader.DecodeAll(data, make([]byte, 0, expanded(t)))
	if err != nil {
		return nil, CorruptError(err.Error())
	}
	if len(buf) > expanded(t) {
		return nil, CorruptError("decompressed tile larger than its geometry")
	}
	if buf, err = unpredict(t, buf); err != nil {
		return nil, err
	}
	return canonicalize(t, buf)
}

// decodePackBits decodes the PackBits-compressed tile payload.
//
// The PackBits compression format is described in section 9 (p. 42)
// of the TIFF6 spec.
func decodePackBits(t *Tile, data []byte) ([]byte, error) {
	buf, err := unpackBits(bytes.NewReader(data), expanded(t))
	if err != nil {
		return nil, err
	}
	return canonicalize(t, buf)
}

type byteReader interface {
	io.Reader
	io.ByteReader
}

// unpackBits decompresses a PackBits stream, never growing dst beyond max.
func unpackBits(r io.Reader, max int) ([]byte, error) {
	var n int
	buf := make([]byte, 128)
	dst := make([]byte, 0, 1024)
	br, ok := r.(byteReader)
	if !ok {
		br = bufio.NewReader(r)
	}

	for {
		b, err := br.ReadByte()
		if err != nil {
			if err == io.EOF {
				return dst, nil
			}
			return nil, CorruptError(err.Error())
		}
		code := int(int8(b))
		switch {
		case code >= 0:
			n, err = io.ReadFull(br, buf[:code+1])
			if err != nil {
				return nil, CorruptError(err.Error())
			}
			dst = append(dst, buf[:n]...)
		case code == -128:
			// No-op.
		default:
			if b, err = br.ReadByte(); err != nil {
				return nil, CorruptError(err.Error())
			}
			for j := 0; j < 1-code; j++ {
				buf[j] = b
			}
			dst = append(dst, buf[:1-code]...)
		}
		if len(dst) > max {
			return nil, CorruptError("decompressed tile larger than its geometry")
		}
	}
}
