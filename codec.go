package slide

import "fmt"

//------------------------//
// Codec registry         //
//------------------------//

// A Decoder turns one tile's compressed payload into the canonical pixel
// layout: interleaved 8-bit RGB, top-left origin, Width*Height*3 bytes.
// Decoders are stateless across calls; data is exactly the declared byte
// length of the tile and every read must stay inside it.
type Decoder interface {
	Decode(t *Tile, data []byte) ([]byte, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(t *Tile, data []byte) ([]byte, error)

// Decode implements Decoder.
func (f DecoderFunc) Decode(t *Tile, data []byte) ([]byte, error) { return f(t, data) }

// registry maps a compression code to its decoder. It is populated at
// open time and immutable afterwards, so lookups need no locking.
type registry map[uint16]Decoder

// defaultRegistry returns the decoders every handle starts with. Adding a
// compression scheme is one entry here or one WithDecoder option.
func defaultRegistry() registry {
	jp := &jpegCodec{}
	j2k := &jpeg2000Codec{}
	return registry{
		cNone:       DecoderFunc(decodeRaw),
		cLZW:        DecoderFunc(decodeLZW),
		cDeflate:    DecoderFunc(decodeDeflate),
		cDeflateOld: DecoderFunc(decodeDeflate),
		cPackBits:   DecoderFunc(decodePackBits),
		cZstd:       DecoderFunc(decodeZstd),
		cJPEG:       jp,
		cAperioJ2KY: j2k,
		cAperioJ2K:  j2k,
		cJPEG2000:   j2k,
	}
}

// decode dispatches a tile to its codec.
func (r registry) decode(t *Tile, data []byte) ([]byte, error) {
	dec, ok := r[t.Compression]
	if !ok {
		return nil, UnsupportedError(fmt.Sprintf("compression %s", compressionName(t.Compression)))
	}
	return dec.Decode(t, data)
}

// decodeRaw handles uncompressed tiles: undo nothing, normalize the
// sample layout. data is copied because the caller reuses its buffer.
func decodeRaw(t *Tile, data []byte) ([]byte, error) {
	return canonicalize(t, append([]byte(nil), data...))
}

// unpredict reverses horizontal differencing in place. Each sample is the
// delta to the sample one pixel to the left (TIFF6 p. 64).
func unpredict(t *Tile, buf []byte) ([]byte, error) {
	if t.Predictor == prNone {
		return buf, nil
	}
	if t.Predictor != prHorizontal {
		return nil, UnsupportedError(fmt.Sprintf("predictor %d", t.Predictor))
	}
	if t.BitsPerSample != 8 {
		return nil, UnsupportedError("horizontal predictor on non 8-bit samples")
	}
	stride := t.Width * t.SamplesPerPixel
	if len(buf) < stride*t.Height {
		return nil, CorruptError("short payload for predictor reversal")
	}
	for y := 0; y < t.Height; y++ {
		row := buf[y*stride : (y+1)*stride]
		for x := t.SamplesPerPixel; x < stride; x++ {
			row[x] += row[x-t.SamplesPerPixel]
		}
	}
	return buf, nil
}

// canonicalize converts a decompressed sample buffer into interleaved
// 8-bit RGB. Gray photometrics are expanded, extra samples are dropped.
func canonicalize(t *Tile, buf []byte) ([]byte, error) {
	if t.BitsPerSample != 8 {
		return nil, UnsupportedError(fmt.Sprintf("%d bits per sample", t.BitsPerSample))
	}
	n := t.Width * t.Height
	if len(buf) < n*t.SamplesPerPixel {
		return nil, CorruptError("payload shorter than tile geometry")
	}

	switch {
	case t.Photometric == pRGB && t.SamplesPerPixel == 3:
		if len(buf) == n*3 {
			return buf, nil
		}
		return buf[:n*3], nil
	case t.Photometric == pRGB && t.SamplesPerPixel > 3:
		out := make([]byte, n*3)
		for i := 0; i < n; i++ {
			copy(out[i*3:i*3+3], buf[i*t.SamplesPerPixel:i*t.SamplesPerPixel+3])
		}
		return out, nil
	case (t.Photometric == pBlackIsZero || t.Photometric == pWhiteIsZero) && t.SamplesPerPixel == 1:
		out := make([]byte, n*3)
		for i := 0; i < n; i++ {
			v := buf[i]
			if t.Photometric == pWhiteIsZero {
				v = 255 - v
			}
			out[i*3], out[i*3+1], out[i*3+2] = v, v, v
		}
		return out, nil
	default:
		return nil, UnsupportedError(fmt.Sprintf("photometric %d with %d samples per pixel",
			t.Photometric, t.SamplesPerPixel))
	}
}
