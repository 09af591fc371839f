package slide_test

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"sort"

	"github.com/klauspost/compress/zstd"
)

// Synthetic container builder used across the test suite. It writes
// little-endian classic TIFF or BigTIFF bytes from declarative IFD specs,
// so every test controls exactly the directory chain it parses.

const (
	tagNewSubFileType  = 254
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagPhotometric     = 262
	tagDescription     = 270
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279
	tagPredictor       = 317
	tagTileWidth       = 322
	tagTileLength      = 323
	tagTileOffsets     = 324
	tagTileByteCounts  = 325
	tagSubIFDs         = 330
	tagJPEGTables      = 347

	typeByte      = 1
	typeASCII     = 2
	typeShort     = 3
	typeLong      = 4
	typeUndefined = 7
)

type ifdSpec struct {
	width, height   int
	tileW, tileH    int
	rowsPerStrip    int
	compression     uint16
	photometric     uint16
	predictor       uint16
	bitsPerSample   int
	samplesPerPixel int
	subfileType     uint32
	description     string
	jpegTables      []byte
	tiles           [][]byte // row-major; an empty payload is a sparse tile
	strips          [][]byte
	subifds         []ifdSpec
}

type fixture struct {
	data       []byte
	ifdOffsets []int
	nextPtrPos []int // byte position of each chained IFD's next pointer
}

type ifdEntry struct {
	tag   uint16
	typ   uint16
	count uint64
	value []byte // full encoded payload, inlined when it fits
}

type builder struct {
	bo  binary.ByteOrder
	big bool
	out []byte
	fix *fixture
}

func buildContainer(big bool, ifds ...ifdSpec) *fixture {
	b := &builder{bo: binary.LittleEndian, big: big, fix: &fixture{}}
	if big {
		b.out = append(b.out, "II\x2B\x00"...)
		b.out = append(b.out, 8, 0, 0, 0)         // offset size, reserved
		b.out = append(b.out, make([]byte, 8)...) // first IFD offset
	} else {
		b.out = append(b.out, "II\x2A\x00"...)
		b.out = append(b.out, make([]byte, 4)...)
	}
	prevPtr := 4
	if big {
		prevPtr = 8
	}

	for i := range ifds {
		off, nextPos := b.writeIFD(&ifds[i])
		b.patchOffset(prevPtr, off)
		b.fix.ifdOffsets = append(b.fix.ifdOffsets, off)
		b.fix.nextPtrPos = append(b.fix.nextPtrPos, nextPos)
		prevPtr = nextPos
	}
	b.fix.data = b.out
	return b.fix
}

func (b *builder) patchOffset(pos, off int) {
	if b.big {
		b.bo.PutUint64(b.out[pos:], uint64(off))
	} else {
		b.bo.PutUint32(b.out[pos:], uint32(off))
	}
}

func (b *builder) align() {
	if len(b.out)%2 == 1 {
		b.out = append(b.out, 0)
	}
}

// writeIFD appends the spec's payloads, external values and entry table,
// returning the table's offset and the position of its next-IFD pointer.
func (b *builder) writeIFD(spec *ifdSpec) (ifdOff, nextPos int) {
	if spec.bitsPerSample == 0 {
		spec.bitsPerSample = 8
	}
	if spec.samplesPerPixel == 0 {
		spec.samplesPerPixel = 3
	}

	// SubIFD children are laid down first so their offsets are known.
	var subOffsets []uint64
	for i := range spec.subifds {
		off, _ := b.writeIFD(&spec.subifds[i])
		subOffsets = append(subOffsets, uint64(off))
	}

	payloads := spec.tiles
	if payloads == nil {
		payloads = spec.strips
	}
	var offs, cnts []uint64
	for _, p := range payloads {
		if len(p) == 0 {
			offs, cnts = append(offs, 0), append(cnts, 0)
			continue
		}
		b.align()
		offs = append(offs, uint64(len(b.out)))
		cnts = append(cnts, uint64(len(p)))
		b.out = append(b.out, p...)
	}

	var entries []ifdEntry
	short := func(tag uint16, vals ...uint16) {
		v := make([]byte, 2*len(vals))
		for i, s := range vals {
			b.bo.PutUint16(v[2*i:], s)
		}
		entries = append(entries, ifdEntry{tag, typeShort, uint64(len(vals)), v})
	}
	long := func(tag uint16, vals ...uint64) {
		v := make([]byte, 4*len(vals))
		for i, l := range vals {
			b.bo.PutUint32(v[4*i:], uint32(l))
		}
		entries = append(entries, ifdEntry{tag, typeLong, uint64(len(vals)), v})
	}

	if spec.subfileType != 0 {
		long(tagNewSubFileType, uint64(spec.subfileType))
	}
	long(tagImageWidth, uint64(spec.width))
	long(tagImageLength, uint64(spec.height))
	bps := make([]uint16, spec.samplesPerPixel)
	for i := range bps {
		bps[i] = uint16(spec.bitsPerSample)
	}
	short(tagBitsPerSample, bps...)
	short(tagCompression, spec.compression)
	short(tagPhotometric, spec.photometric)
	short(tagSamplesPerPixel, uint16(spec.samplesPerPixel))
	if spec.predictor != 0 {
		short(tagPredictor, spec.predictor)
	}
	if spec.description != "" {
		v := append([]byte(spec.description), 0)
		entries = append(entries, ifdEntry{tagDescription, typeASCII, uint64(len(v)), v})
	}
	if len(spec.jpegTables) > 0 {
		entries = append(entries, ifdEntry{tagJPEGTables, typeUndefined,
			uint64(len(spec.jpegTables)), spec.jpegTables})
	}
	if spec.tiles != nil {
		long(tagTileWidth, uint64(spec.tileW))
		long(tagTileLength, uint64(spec.tileH))
		long(tagTileOffsets, offs...)
		long(tagTileByteCounts, cnts...)
	} else if spec.strips != nil {
		long(tagRowsPerStrip, uint64(spec.rowsPerStrip))
		long(tagStripOffsets, offs...)
		long(tagStripByteCounts, cnts...)
	}
	if len(subOffsets) > 0 {
		long(tagSubIFDs, subOffsets...)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })

	inline := 4
	if b.big {
		inline = 8
	}
	extOffsets := make(map[int]int)
	for i, e := range entries {
		if len(e.value) > inline {
			b.align()
			extOffsets[i] = len(b.out)
			b.out = append(b.out, e.value...)
		}
	}

	b.align()
	ifdOff = len(b.out)
	if b.big {
		var c [8]byte
		b.bo.PutUint64(c[:], uint64(len(entries)))
		b.out = append(b.out, c[:]...)
	} else {
		var c [2]byte
		b.bo.PutUint16(c[:], uint16(len(entries)))
		b.out = append(b.out, c[:]...)
	}
	for i, e := range entries {
		var hdr [4]byte
		b.bo.PutUint16(hdr[0:], e.tag)
		b.bo.PutUint16(hdr[2:], e.typ)
		b.out = append(b.out, hdr[:]...)
		if b.big {
			var c [8]byte
			b.bo.PutUint64(c[:], e.count)
			b.out = append(b.out, c[:]...)
		} else {
			var c [4]byte
			b.bo.PutUint32(c[:], uint32(e.count))
			b.out = append(b.out, c[:]...)
		}
		field := make([]byte, inline)
		if off, ok := extOffsets[i]; ok {
			if b.big {
				b.bo.PutUint64(field, uint64(off))
			} else {
				b.bo.PutUint32(field, uint32(off))
			}
		} else {
			copy(field, e.value)
		}
		b.out = append(b.out, field...)
	}
	nextPos = len(b.out)
	b.out = append(b.out, make([]byte, inline)...)
	return ifdOff, nextPos
}

//------------------------//
// Pixel patterns         //
//------------------------//

// pixelAt is the deterministic test pattern for level pixels.
func pixelAt(level, x, y int) (r, g, b byte) {
	return byte(x), byte(y), byte((x ^ y) + level*29)
}

// rawTile renders the pattern for one full (padded) tile as raw RGB.
func rawTile(level, row, col, tw, th int) []byte {
	buf := make([]byte, tw*th*3)
	for j := 0; j < th; j++ {
		for i := 0; i < tw; i++ {
			r, g, b := pixelAt(level, col*tw+i, row*th+j)
			o := (j*tw + i) * 3
			buf[o], buf[o+1], buf[o+2] = r, g, b
		}
	}
	return buf
}

// levelTiles renders every tile of a w×h level, encoded per tile.
func levelTiles(level, w, h, tw, th int, encode func([]byte) []byte) [][]byte {
	across := (w + tw - 1) / tw
	down := (h + th - 1) / th
	tiles := make([][]byte, 0, across*down)
	for row := 0; row < down; row++ {
		for col := 0; col < across; col++ {
			raw := rawTile(level, row, col, tw, th)
			if encode != nil {
				raw = encode(raw)
			}
			tiles = append(tiles, raw)
		}
	}
	return tiles
}

// pyramidSpec builds the standard three-level fixture: downsamples 1, 4
// and 16, tile size 256×256.
func pyramidSpec(compression uint16, encode func([]byte) []byte) []ifdSpec {
	specs := make([]ifdSpec, 3)
	dims := []int{1024, 256, 64}
	for i, d := range dims {
		specs[i] = ifdSpec{
			width: d, height: d,
			tileW: 256, tileH: 256,
			compression: compression,
			photometric: 2,
			tiles:       levelTiles(i, d, d, 256, 256, encode),
		}
		if i > 0 {
			specs[i].subfileType = 1 // reduced-resolution image
		}
	}
	return specs
}

// expectedRegion renders what ReadRegion must return for a request at
// (x, y) of size w×h against an lw×lh level filled with the pattern.
func expectedRegion(level, x, y, w, h, lw, lh int, bg [3]byte) []byte {
	out := make([]byte, w*h*3)
	for j := 0; j < h; j++ {
		for i := 0; i < w; i++ {
			px, py := x+i, y+j
			o := (j*w + i) * 3
			if px >= 0 && px < lw && py >= 0 && py < lh {
				out[o], out[o+1], out[o+2] = pixelAt(level, px, py)
			} else {
				out[o], out[o+1], out[o+2] = bg[0], bg[1], bg[2]
			}
		}
	}
	return out
}

//------------------------//
// Payload encoders       //
//------------------------//

func zlibEncode(raw []byte) []byte {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	w.Write(raw)
	w.Close()
	return buf.Bytes()
}

func zstdEncode(raw []byte) []byte {
	enc, _ := zstd.NewWriter(nil)
	defer enc.Close()
	return enc.EncodeAll(raw, nil)
}

// lzwCompress emits a TIFF-flavor LZW stream of pure literals, with a
// clear code often enough that every code stays 9 bits wide.
func lzwCompress(raw []byte) []byte {
	var out []byte
	var acc uint32
	var nbits uint
	emit := func(code uint32) {
		acc = acc<<9 | code
		nbits += 9
		for nbits >= 8 {
			nbits -= 8
			out = append(out, byte(acc>>nbits))
		}
	}
	emit(256) // clear
	for i, v := range raw {
		if i > 0 && i%200 == 0 {
			emit(256)
		}
		emit(uint32(v))
	}
	emit(257) // end of information
	if nbits > 0 {
		out = append(out, byte(acc<<(8-nbits)))
	}
	return out
}

// packBitsEncode produces a literal-only PackBits stream.
func packBitsEncode(raw []byte) []byte {
	var out []byte
	for len(raw) > 0 {
		n := len(raw)
		if n > 128 {
			n = 128
		}
		out = append(out, byte(n-1))
		out = append(out, raw[:n]...)
		raw = raw[n:]
	}
	return out
}

// differenced applies the horizontal predictor to a raw sample buffer, so
// the decoder has something to reverse.
func differenced(raw []byte, w, h, spp int) []byte {
	out := append([]byte(nil), raw...)
	stride := w * spp
	for y := 0; y < h; y++ {
		row := out[y*stride : (y+1)*stride]
		for x := stride - 1; x >= spp; x-- {
			row[x] -= row[x-spp]
		}
	}
	return out
}
