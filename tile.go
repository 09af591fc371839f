package slide

// Tile addresses one independently compressed block of a level's pixel
// grid together with everything a codec needs to decode it.
type Tile struct {
	Level int
	Row   int
	Col   int

	Offset int64
	Length int64

	Width           int // Nominal tile width, including padding at edges.
	Height          int
	Compression     uint16
	Photometric     uint16
	Predictor       uint16
	BitsPerSample   int
	SamplesPerPixel int

	// Shared per-directory payloads referenced by some codecs.
	jpegTables []byte
	iccProfile []byte
}

// key identifies a tile inside the cache.
type tileKey struct {
	level, row, col int
}

// sparse reports whether the tile is logically present but has no payload.
// Its area renders as background and it never reaches a codec.
func (t *Tile) sparse() bool {
	return t.Length == 0
}

// tileAt builds the descriptor of the tile at (row, col) of a level. The
// caller guarantees the indices are inside the tile grid.
func (s *Slide) tileAt(l *Level, row, col int) *Tile {
	dir := l.dir
	offsets, counts := dir.segments()
	i := row*l.tilesAcross() + col

	spp := int(dir.firstVal(tSamplesPerPixel))
	if spp == 0 {
		spp = 1
	}
	bps := int(dir.firstVal(tBitsPerSample))
	if bps == 0 {
		bps = 8
	}
	predictor := uint16(dir.firstVal(tPredictor))
	if predictor == 0 {
		predictor = prNone
	}

	return &Tile{
		Level:           l.Index,
		Row:             row,
		Col:             col,
		Offset:          int64(offsets[i]),
		Length:          int64(counts[i]),
		Width:           l.TileWidth,
		Height:          l.TileHeight,
		Compression:     uint16(dir.firstVal(tCompression)),
		Photometric:     uint16(dir.firstVal(tPhotometricInterpretation)),
		Predictor:       predictor,
		BitsPerSample:   bps,
		SamplesPerPixel: spp,
		jpegTables:      dir.features[tJPEGTables].raw,
		iccProfile:      dir.features[tICCProfile].raw,
	}
}
