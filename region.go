package slide

import "github.com/pkg/errors"

//------------------------//
// Region assembler       //
//------------------------//

// ReadRegion extracts the w×h rectangle at origin (x, y) of a pyramid
// level and returns it as interleaved RGB, 3*w*h bytes.
//
// Coordinates are in the chosen level's own pixel space; no rescaling of
// pixel content happens here. The rectangle may lie partially or entirely
// outside the level, and may be larger than the level itself: pixels
// beyond the image bounds are filled with the configured background, never
// an error. Sparse tiles contribute background for their area without
// touching a codec. A codec failure fails the whole request; no partial
// pixels are returned.
func (s *Slide) ReadRegion(level, x, y, w, h int) ([]byte, error) {
	l, err := s.levelAt(level)
	if err != nil {
		return nil, err
	}
	if w < 0 || h < 0 {
		return nil, errors.Errorf("negative region dimensions %dx%d", w, h)
	}

	out := make([]byte, w*h*3)
	fillBackground(out, s.background)

	// Intersect the request with the level bounds; whatever remains is
	// covered by real tiles.
	x0 := maxInt(x, 0)
	y0 := maxInt(y, 0)
	x1 := minInt(x+w, l.Width)
	y1 := minInt(y+h, l.Height)
	if x0 >= x1 || y0 >= y1 {
		return out, nil
	}

	row0 := y0 / l.TileHeight
	row1 := (y1 - 1) / l.TileHeight
	col0 := x0 / l.TileWidth
	col1 := (x1 - 1) / l.TileWidth

	for row := row0; row <= row1; row++ {
		for col := col0; col <= col1; col++ {
			t := s.tileAt(l, row, col)
			if t.sparse() {
				continue
			}
			pixels, err := s.decodeThroughCache(t)
			if err != nil {
				return nil, err
			}
			s.composite(out, x, y, w, x0, y0, x1, y1, t, pixels)
		}
	}
	return out, nil
}

// composite copies the part of a decoded tile that overlaps both the
// request rectangle and the image bounds into the output buffer.
func (s *Slide) composite(out []byte, x, y, w, x0, y0, x1, y1 int, t *Tile, pixels []byte) {
	tx0 := t.Col * t.Width
	ty0 := t.Row * t.Height

	cx0 := maxInt(x0, tx0)
	cy0 := maxInt(y0, ty0)
	cx1 := minInt(x1, tx0+t.Width)
	cy1 := minInt(y1, ty0+t.Height)
	if cx0 >= cx1 || cy0 >= cy1 {
		return
	}

	rowLen := (cx1 - cx0) * 3
	for cy := cy0; cy < cy1; cy++ {
		src := ((cy-ty0)*t.Width + (cx0 - tx0)) * 3
		dst := ((cy-y)*w + (cx0 - x)) * 3
		copy(out[dst:dst+rowLen], pixels[src:src+rowLen])
	}
}
