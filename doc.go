// Package slide reads tiled pyramid whole-slide images stored in
// TIFF-family containers (classic TIFF and BigTIFF), including the Aperio
// SVS dialect.
//
// A Slide exposes the resolution pyramid of an open container, decodes
// tiles on demand through a per-compression codec registry (raw, LZW,
// Deflate, PackBits, zstd, JPEG with shared tables, JPEG2000) and
// assembles arbitrary pixel regions that may span multiple tiles, with
// out-of-bounds areas filled by a configurable background color. Decoded
// tiles are kept in a bounded LRU cache; concurrent readers share one
// handle safely.
//
//	s, err := slide.OpenFile("specimen.svs")
//	if err != nil {
//	    ...
//	}
//	defer s.Close()
//	level := s.BestLevelFor(16)
//	rgb, err := s.ReadRegion(level, 0, 0, 1024, 1024)
package slide
