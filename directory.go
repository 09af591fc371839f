package slide

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

//------------------------//
// Directory parser       //
//------------------------//

// directory is one parsed IFD: the subset of entries the engine cares
// about, plus any SubIFD children. Vendor tags that are not recognized are
// skipped rather than rejected.
type directory struct {
	offset   int64
	features map[uint16]tag
	subs     []*directory
}

// firstVal is a convenient accessor of tag#firstVal().
func (d *directory) firstVal(tid uint16) uint64 {
	return d.features[tid].firstVal()
}

func (d *directory) has(tid uint16) bool {
	_, ok := d.features[tid]
	return ok
}

// container holds the parsed directory chain of one file. Immutable once
// parseContainer returns.
type container struct {
	src       Source
	byteOrder binary.ByteOrder
	big       bool
	dirs      []*directory
}

// parseContainer walks the offset-chained IFD list and all SubIFD trees.
// No tile is decoded here; only tag tables are materialized.
func parseContainer(src Source) (*container, error) {
	c := &container{src: src}

	p := make([]byte, 16)
	if err := readFull(src, p[:8], 0); err != nil {
		return nil, err
	}
	switch string(p[0:4]) {
	case leHeader:
		c.byteOrder = binary.LittleEndian
	case beHeader:
		c.byteOrder = binary.BigEndian
	case leBig:
		c.byteOrder = binary.LittleEndian
		c.big = true
	case beBig:
		c.byteOrder = binary.BigEndian
		c.big = true
	default:
		return nil, FormatError("malformed header")
	}

	var next int64
	if c.big {
		// BigTIFF: offset size (must be 8), a reserved zero word, then the
		// first directory offset as 8 bytes.
		if err := readFull(src, p[:16], 0); err != nil {
			return nil, err
		}
		if c.byteOrder.Uint16(p[4:6]) != 8 || c.byteOrder.Uint16(p[6:8]) != 0 {
			return nil, FormatError("malformed BigTIFF header")
		}
		next = int64(c.byteOrder.Uint64(p[8:16]))
	} else {
		next = int64(c.byteOrder.Uint32(p[4:8]))
	}

	// The chain of malformed files can loop back on itself. An explicit
	// visited-offsets set bounds the walk and detects cycles.
	visited := make(map[int64]bool)
	for next != 0 {
		if visited[next] {
			return nil, FormatError(fmt.Sprintf("cyclic directory chain at offset %d", next))
		}
		if len(c.dirs) >= maxDirectories {
			return nil, FormatError("directory chain too long")
		}
		visited[next] = true

		dir, after, err := c.parseDirectory(next, visited)
		if err != nil {
			return nil, err
		}
		c.dirs = append(c.dirs, dir)
		next = after
	}

	if len(c.dirs) == 0 {
		return nil, FormatError("no directories")
	}
	for _, dir := range c.dirs {
		if err := c.validate(dir); err != nil {
			return nil, err
		}
		for _, sub := range dir.subs {
			if err := c.validate(sub); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

// parseDirectory reads the IFD at off and returns it together with the
// offset of the next IFD in the chain.
func (c *container) parseDirectory(off int64, visited map[int64]bool) (*directory, int64, error) {
	if off < 8 || off >= c.src.Size() {
		return nil, 0, FormatError(fmt.Sprintf("directory offset %d out of range", off))
	}

	dir := &directory{
		offset:   off,
		features: make(map[uint16]tag),
	}

	entryLen := ifdEntryLen
	countLen := 2
	if c.big {
		entryLen = bigIfdEntryLen
		countLen = 8
	}

	p := make([]byte, countLen)
	if err := readFull(c.src, p, off); err != nil {
		return nil, 0, err
	}
	var numItems int
	if c.big {
		n := c.byteOrder.Uint64(p)
		if n > uint64(c.src.Size())/uint64(entryLen) {
			return nil, 0, FormatError("directory entry count out of range")
		}
		numItems = int(n)
	} else {
		numItems = int(c.byteOrder.Uint16(p))
	}

	// All IFD entries are read in one chunk, then the next-IFD offset.
	p = make([]byte, entryLen*numItems+nextLen(c.big))
	if err := readFull(c.src, p, off+int64(countLen)); err != nil {
		return nil, 0, err
	}
	for i := 0; i < entryLen*numItems; i += entryLen {
		if err := c.parseEntry(dir, p[i:i+entryLen]); err != nil {
			return nil, 0, err
		}
	}

	var next int64
	if c.big {
		next = int64(c.byteOrder.Uint64(p[entryLen*numItems:]))
	} else {
		next = int64(c.byteOrder.Uint32(p[entryLen*numItems:]))
	}

	// SubIFD trees carry reduced-resolution levels in TIFF/EP style files.
	if subs, ok := dir.features[tSubIFDs]; ok {
		for _, so := range subs.val {
			soff := int64(so)
			if visited[soff] {
				return nil, 0, FormatError(fmt.Sprintf("cyclic directory chain at offset %d", soff))
			}
			visited[soff] = true
			sub, _, err := c.parseDirectory(soff, visited)
			if err != nil {
				return nil, 0, err
			}
			dir.subs = append(dir.subs, sub)
		}
	}

	return dir, next, nil
}

func nextLen(big bool) int {
	if big {
		return 8
	}
	return 4
}

// parseEntry decides whether the IFD entry in p is interesting and stows
// away the decoded value in the directory.
func (c *container) parseEntry(dir *directory, p []byte) error {
	tid := c.byteOrder.Uint16(p[0:2])
	switch tid {
	case tNewSubFileType,
		tImageWidth,
		tImageLength,
		tBitsPerSample,
		tCompression,
		tPhotometricInterpretation,
		tImageDescription,
		tStripOffsets,
		tSamplesPerPixel,
		tRowsPerStrip,
		tStripByteCounts,
		tPlanarConfiguration,
		tPredictor,
		tTileWidth,
		tTileLength,
		tTileOffsets,
		tTileByteCounts,
		tSubIFDs,
		tJPEGTables,
		tYCbCrSubSampling,
		tICCProfile:
		t, err := c.entryValue(tid, p)
		if err != nil {
			return err
		}
		dir.features[tid] = t
	case tSampleFormat:
		// Only unsigned integer samples are meaningful for slide pixel
		// data; anything else is a format this engine does not speak.
		t, err := c.entryValue(tid, p)
		if err != nil {
			return err
		}
		for _, v := range t.val {
			if v != 1 {
				return UnsupportedError("sample format")
			}
		}
	}
	return nil
}

// entryValue decodes the IFD entry in p into a tag, following the value
// pointer when the payload does not fit inline.
func (c *container) entryValue(tid uint16, p []byte) (tag, error) {
	datatype := c.byteOrder.Uint16(p[2:4])
	if int(datatype) >= len(lengths) || lengths[datatype] == 0 {
		return tag{}, UnsupportedError(fmt.Sprintf("data type %d for tag %s", datatype, tagname(tid)))
	}

	var count uint64
	var inline []byte
	if c.big {
		count = c.byteOrder.Uint64(p[4:12])
		inline = p[12:20]
	} else {
		count = uint64(c.byteOrder.Uint32(p[4:8]))
		inline = p[8:12]
	}

	datalen := uint64(lengths[datatype]) * count
	if datalen > uint64(c.src.Size()) {
		return tag{}, FormatError(fmt.Sprintf("tag %s value length out of range", tagname(tid)))
	}

	var raw []byte
	if datalen > uint64(len(inline)) {
		// The entry contains a pointer to the real value.
		var voff int64
		if c.big {
			voff = int64(c.byteOrder.Uint64(inline))
		} else {
			voff = int64(c.byteOrder.Uint32(inline))
		}
		raw = make([]byte, datalen)
		if err := readFull(c.src, raw, voff); err != nil {
			return tag{}, err
		}
	} else {
		raw = inline[:datalen]
	}

	t := tag{id: tid, datatype: datatype}
	switch datatype {
	case dtASCII, dtByte, dtUndefined, dtSByte:
		t.raw = append([]byte(nil), raw...)
		t.val = make([]uint64, count)
		for i := uint64(0); i < count; i++ {
			t.val[i] = uint64(raw[i])
		}
	case dtShort:
		t.val = make([]uint64, count)
		for i := uint64(0); i < count; i++ {
			t.val[i] = uint64(c.byteOrder.Uint16(raw[2*i : 2*(i+1)]))
		}
	case dtLong, dtSLong:
		t.val = make([]uint64, count)
		for i := uint64(0); i < count; i++ {
			t.val[i] = uint64(c.byteOrder.Uint32(raw[4*i : 4*(i+1)]))
		}
	case dtLong8, dtSLong8, dtIFD8:
		t.val = make([]uint64, count)
		for i := uint64(0); i < count; i++ {
			t.val[i] = c.byteOrder.Uint64(raw[8*i : 8*(i+1)])
		}
	case dtRational, dtSRational:
		t.val = make([]uint64, count)
		for i := uint64(0); i < count; i++ {
			num := uint64(c.byteOrder.Uint32(raw[8*i : 8*i+4]))
			denom := uint64(c.byteOrder.Uint32(raw[8*i+4 : 8*(i+1)]))
			t.val[i] = num | denom<<32
		}
	default:
		return tag{}, UnsupportedError(fmt.Sprintf("data type %d for tag %s", datatype, tagname(tid)))
	}
	return t, nil
}

// validate enforces the per-directory invariants that do not depend on the
// pyramid: dimensions present, tile tables consistent, segments in range.
func (c *container) validate(dir *directory) error {
	if dir.firstVal(tImageWidth) == 0 || dir.firstVal(tImageLength) == 0 {
		return FormatError("missing image dimensions")
	}

	offsets, counts := dir.segments()
	if len(offsets) != len(counts) {
		return FormatError("tile offset and byte-count tables disagree")
	}
	for i := range offsets {
		if counts[i] == 0 {
			// Sparse tile: logically present, filled with background.
			continue
		}
		end := offsets[i] + counts[i]
		if end < offsets[i] || end > uint64(c.src.Size()) {
			return FormatError(fmt.Sprintf("tile segment %d outside container", i))
		}
	}
	return nil
}

// segments returns the directory's tile (or strip) offset and byte-count
// tables, whichever layout the image uses.
func (d *directory) segments() (offsets, counts []uint64) {
	if d.has(tTileOffsets) {
		return d.features[tTileOffsets].val, d.features[tTileByteCounts].val
	}
	return d.features[tStripOffsets].val, d.features[tStripByteCounts].val
}

// tiled reports whether the directory stores its pixels as fixed-size
// tiles rather than strips.
func (d *directory) tiled() bool {
	return d.has(tTileWidth) && d.has(tTileLength) && d.has(tTileOffsets)
}

func (c *container) String() string {
	buf := bytes.NewBufferString("")
	if c.big {
		buf.WriteString("== BigTIFF ==\n")
	} else {
		buf.WriteString("== TIFF ==\n")
	}
	for i, dir := range c.dirs {
		fmt.Fprintf(buf, "-- directory %d (offset %d) --\n", i, dir.offset)
		for _, t := range dir.features {
			fmt.Fprintf(buf, "%v\n", t)
		}
	}
	fmt.Fprintf(buf, "ByteOrder: %v\n", c.byteOrder)
	return buf.String()
}
