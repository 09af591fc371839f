package slide_test

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"testing"

	"github.com/garyhouston/jpegsegs"
	"github.com/slidekit/slide"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const compJPEG = 7

// jpegTileStream encodes one pattern tile as a self-contained JFIF stream.
func jpegTileStream(t *testing.T, level, row, col, tw, th int) []byte {
	t.Helper()
	raw := rawTile(level, row, col, tw, th)
	img := image.NewRGBA(image.Rect(0, 0, tw, th))
	for i := 0; i < tw*th; i++ {
		img.Pix[i*4], img.Pix[i*4+1], img.Pix[i*4+2] = raw[i*3], raw[i*3+1], raw[i*3+2]
		img.Pix[i*4+3] = 0xFF
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

// jpegExpected decodes a stream the reference way: the same library and the
// same YCbCr conversion the tile path uses, so lossy output still compares
// byte for byte.
func jpegExpected(t *testing.T, stream []byte, tw, th int) []byte {
	t.Helper()
	img, err := jpeg.Decode(bytes.NewReader(stream))
	require.NoError(t, err)
	out := make([]byte, tw*th*3)
	switch m := img.(type) {
	case *image.YCbCr:
		for y := 0; y < th; y++ {
			for x := 0; x < tw; x++ {
				r, g, b := color.YCbCrToRGB(
					m.Y[m.YOffset(x, y)], m.Cb[m.COffset(x, y)], m.Cr[m.COffset(x, y)])
				o := (y*tw + x) * 3
				out[o], out[o+1], out[o+2] = r, g, b
			}
		}
	case *image.Gray:
		for y := 0; y < th; y++ {
			for x := 0; x < tw; x++ {
				v := m.GrayAt(x, y).Y
				o := (y*tw + x) * 3
				out[o], out[o+1], out[o+2] = v, v, v
			}
		}
	default:
		t.Fatalf("unexpected decoded type %T", img)
	}
	return out
}

// splitJPEGTables separates a JFIF stream into a tables-only stream (SOI,
// DQT/DHT, EOI) and an abbreviated tile stream without them.
func splitJPEGTables(t *testing.T, full []byte) (tables, abbreviated []byte) {
	t.Helper()
	r := bytes.NewReader(full)
	scanner, err := jpegsegs.NewScanner(r)
	require.NoError(t, err)
	segs, err := jpegsegs.ReadSegments(scanner)
	require.NoError(t, err)
	entropy, err := io.ReadAll(r)
	require.NoError(t, err)

	var tabs, rest []jpegsegs.Segment
	for _, s := range segs {
		if s.Marker == jpegsegs.DQT || s.Marker == jpegsegs.DHT {
			tabs = append(tabs, s)
		} else {
			rest = append(rest, s)
		}
	}
	require.NotEmpty(t, tabs)

	var tb bytes.Buffer
	tbDumper, err := jpegsegs.NewDumper(&tb)
	require.NoError(t, err)
	require.NoError(t, jpegsegs.WriteSegments(tbDumper, tabs))
	tb.Write([]byte{0xFF, 0xD9})
	var ab bytes.Buffer
	abDumper, err := jpegsegs.NewDumper(&ab)
	require.NoError(t, err)
	require.NoError(t, jpegsegs.WriteSegments(abDumper, rest))
	ab.Write(entropy)
	return tb.Bytes(), ab.Bytes()
}

func TestDecodeJPEGSelfContainedStreams(t *testing.T) {
	tiles := [][]byte{
		jpegTileStream(t, 0, 0, 0, 64, 64),
		jpegTileStream(t, 0, 0, 1, 64, 64),
	}
	f := buildContainer(false, singleLevelSpec(128, 64, 64, 64, compJPEG, tiles))
	s := openFixture(t, f)

	for col := 0; col < 2; col++ {
		got, err := s.ReadTile(0, 0, col)
		require.NoError(t, err)
		assert.Equal(t, jpegExpected(t, tiles[col], 64, 64), got, "col %d", col)
	}
}

func TestDecodeJPEGWithSharedTables(t *testing.T) {
	full0 := jpegTileStream(t, 0, 0, 0, 64, 64)
	full1 := jpegTileStream(t, 0, 0, 1, 64, 64)
	tables, abbrev0 := splitJPEGTables(t, full0)
	_, abbrev1 := splitJPEGTables(t, full1)

	spec := singleLevelSpec(128, 64, 64, 64, compJPEG, [][]byte{abbrev0, abbrev1})
	spec.photometric = 6 // YCbCr
	spec.jpegTables = tables
	f := buildContainer(false, spec)
	s := openFixture(t, f)

	got0, err := s.ReadTile(0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, jpegExpected(t, full0, 64, 64), got0)

	got1, err := s.ReadTile(0, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, jpegExpected(t, full1, 64, 64), got1)
}

func TestDecodeJPEGGrayscale(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for j := 0; j < 64; j++ {
		for i := 0; i < 64; i++ {
			img.SetGray(i, j, color.Gray{Y: byte(i*5 + j)})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}))

	spec := singleLevelSpec(64, 64, 64, 64, compJPEG, [][]byte{buf.Bytes()})
	spec.photometric = 1
	spec.samplesPerPixel = 1
	f := buildContainer(false, spec)
	s := openFixture(t, f)

	got, err := s.ReadTile(0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, jpegExpected(t, buf.Bytes(), 64, 64), got)
}

func TestDecodeJPEGCorruptStream(t *testing.T) {
	f := buildContainer(false, singleLevelSpec(64, 64, 64, 64, compJPEG,
		[][]byte{{0xFF, 0xD8, 0x00, 0x01, 0x02}}))
	s := openFixture(t, f)

	_, err := s.ReadTile(0, 0, 0)
	var c slide.CorruptError
	assert.ErrorAs(t, err, &c)
}
