package slide

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"io"

	"github.com/garyhouston/jpegsegs"
)

// jpegCodec decodes baseline/extended JPEG tiles. Slide containers store
// the quantization and Huffman tables once in the directory's JPEGTables
// tag and keep per-tile streams abbreviated; such streams are spliced back
// together before being handed to the JPEG library. YCbCr-to-RGB (with
// chroma subsampling) happens inside the library.
type jpegCodec struct{}

func (c *jpegCodec) Decode(t *Tile, data []byte) ([]byte, error) {
	stream := data
	if len(t.jpegTables) > 0 {
		merged, err := mergeJPEGTables(t.jpegTables, data)
		if err != nil {
			return nil, err
		}
		stream = merged
	}

	img, err := jpeg.Decode(bytes.NewReader(stream))
	if err != nil {
		return nil, CorruptError(err.Error())
	}
	return imageToRGB(t, img)
}

// mergeJPEGTables splices the shared tables stream (SOI, table segments,
// EOI) into an abbreviated tile stream ahead of its SOS marker.
func mergeJPEGTables(tables, data []byte) ([]byte, error) {
	shared, err := readTableSegments(bytes.NewReader(tables))
	if err != nil {
		return nil, CorruptError("JPEGTables: " + err.Error())
	}

	r := bytes.NewReader(data)
	scanner, err := jpegsegs.NewScanner(r)
	if err != nil {
		return nil, CorruptError(err.Error())
	}
	segs, err := jpegsegs.ReadSegments(scanner)
	if err != nil {
		return nil, CorruptError(err.Error())
	}

	// Shared tables go in front of everything the tile already declares;
	// a tile-local table of the same kind then simply redefines it.
	merged := make([]jpegsegs.Segment, 0, len(shared)+len(segs))
	merged = append(merged, shared...)
	merged = append(merged, segs...)

	var buf bytes.Buffer
	buf.Grow(len(tables) + len(data))
	dumper, err := jpegsegs.NewDumper(&buf)
	if err != nil {
		return nil, CorruptError(err.Error())
	}
	if err := jpegsegs.WriteSegments(dumper, merged); err != nil {
		return nil, CorruptError(err.Error())
	}
	// Everything after SOS (entropy-coded data and the EOI marker) is
	// copied through untouched.
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, CorruptError(err.Error())
	}
	return buf.Bytes(), nil
}

// readTableSegments scans a tables-only stream, which ends at EOI and has
// no SOS, so the segment reader cannot be used as-is.
func readTableSegments(r io.Reader) ([]jpegsegs.Segment, error) {
	buf := make([]byte, 1<<16)
	if err := jpegsegs.ReadHeader(r, buf); err != nil {
		return nil, err
	}
	var segs []jpegsegs.Segment
	for {
		marker, err := jpegsegs.ReadMarker(r, buf)
		if err != nil {
			if err == io.EOF {
				return segs, nil
			}
			return nil, err
		}
		if marker == jpegsegs.EOI {
			return segs, nil
		}
		data, err := jpegsegs.ReadData(r, buf)
		if err != nil {
			return nil, err
		}
		segs = append(segs, jpegsegs.Segment{Marker: marker, Data: append([]byte(nil), data...)})
	}
}

// imageToRGB flattens a decoded image into the canonical interleaved RGB
// layout of the nominal tile geometry.
func imageToRGB(t *Tile, img image.Image) ([]byte, error) {
	b := img.Bounds()
	w := minInt(b.Dx(), t.Width)
	h := minInt(b.Dy(), t.Height)
	out := make([]byte, t.Width*t.Height*3)

	switch m := img.(type) {
	case *image.YCbCr:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r, g, bb := color.YCbCrToRGB(
					m.Y[m.YOffset(b.Min.X+x, b.Min.Y+y)],
					m.Cb[m.COffset(b.Min.X+x, b.Min.Y+y)],
					m.Cr[m.COffset(b.Min.X+x, b.Min.Y+y)])
				o := (y*t.Width + x) * 3
				out[o], out[o+1], out[o+2] = r, g, bb
			}
		}
	case *image.Gray:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				v := m.GrayAt(b.Min.X+x, b.Min.Y+y).Y
				o := (y*t.Width + x) * 3
				out[o], out[o+1], out[o+2] = v, v, v
			}
		}
	case *image.RGBA:
		for y := 0; y < h; y++ {
			row := m.Pix[m.PixOffset(b.Min.X, b.Min.Y+y):]
			for x := 0; x < w; x++ {
				o := (y*t.Width + x) * 3
				out[o], out[o+1], out[o+2] = row[x*4], row[x*4+1], row[x*4+2]
			}
		}
	case *image.NRGBA:
		for y := 0; y < h; y++ {
			row := m.Pix[m.PixOffset(b.Min.X, b.Min.Y+y):]
			for x := 0; x < w; x++ {
				o := (y*t.Width + x) * 3
				out[o], out[o+1], out[o+2] = row[x*4], row[x*4+1], row[x*4+2]
			}
		}
	default:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r, g, bb, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
				o := (y*t.Width + x) * 3
				out[o], out[o+1], out[o+2] = byte(r>>8), byte(g>>8), byte(bb>>8)
			}
		}
	}
	return out, nil
}
