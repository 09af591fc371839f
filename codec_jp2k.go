package slide

import (
	"bytes"

	jpeg2000 "github.com/mrjoshuak/go-jpeg2000"
)

// jpeg2000Codec decodes JPEG2000 tiles: plain JP2/J2K codestreams and the
// Aperio variants, which are raw codestreams whose colorspace is declared
// by the compression code instead of the stream itself.
type jpeg2000Codec struct{}

func (c *jpeg2000Codec) Decode(t *Tile, data []byte) ([]byte, error) {
	img, err := jpeg2000.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, CorruptError(err.Error())
	}
	buf, err := imageToRGB(t, img)
	if err != nil {
		return nil, err
	}

	// Aperio 33003 codestreams carry unsignaled YCbCr components; the
	// decoder hands them back verbatim, so the transform happens here.
	if t.Compression == cAperioJ2KY {
		ycbcrToRGB(buf)
	}

	// An embedded ICC profile refines the colors best-effort. The declared
	// photometric interpretation stays authoritative: a profile whose
	// colorspace diverges from it is ignored rather than preferred.
	if len(t.iccProfile) > 0 {
		if m, ok := parseMatrixProfile(t.iccProfile); ok {
			applyColorMatrix(buf, m)
		}
	}
	return buf, nil
}

// ycbcrToRGB converts interleaved full-range ITU-R BT.601 YCbCr samples to
// RGB in place.
func ycbcrToRGB(buf []byte) {
	for i := 0; i+2 < len(buf); i += 3 {
		y := int32(buf[i])
		cb := int32(buf[i+1]) - 128
		cr := int32(buf[i+2]) - 128

		r := y + (91881*cr+32768)>>16
		g := y - (22554*cb+46802*cr+32768)>>16
		b := y + (116130*cb+32768)>>16

		buf[i] = clampByte(r)
		buf[i+1] = clampByte(g)
		buf[i+2] = clampByte(b)
	}
}

func clampByte(v int32) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}
