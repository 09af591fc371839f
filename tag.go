package slide

import (
	"fmt"
	"math/big"
)

// tag is one decoded IFD entry. Integer-like values are widened to uint64
// so classic TIFF and BigTIFF entries share a representation; ASCII and
// UNDEFINED payloads keep their raw bytes.
type tag struct {
	id       uint16
	datatype uint16
	val      []uint64
	raw      []byte
}

// firstVal returns the first integer of the entry, or 0 when the entry is
// absent or empty.
func (t tag) firstVal() uint64 {
	if len(t.val) == 0 {
		return 0
	}
	return t.val[0]
}

// rational returns the unsigned rational at index, or 0/0 when out of range.
func (t tag) rational(index int) *big.Rat {
	if len(t.val) <= index {
		return new(big.Rat)
	}
	u64 := t.val[index]
	num := int64(u64 & 0xFFFFFFFF)
	denom := int64(u64 >> 32)
	if denom == 0 {
		return new(big.Rat)
	}
	return big.NewRat(num, denom)
}

// ascii returns the entry's payload as a string, without the trailing NUL.
func (t tag) ascii() string {
	b := t.raw
	for len(b) > 0 && b[len(b)-1] == 0 {
		b = b[:len(b)-1]
	}
	return string(b)
}

// Name returns the common name of the tag.
func (t tag) Name() string {
	return tagname(t.id)
}

// String implements Stringer.
func (t tag) String() string {
	return fmt.Sprintf("%s: %s", t.Name(), valuename(t))
}

func tagname(t uint16) string {
	switch t {
	case tNewSubFileType:
		return "NewSubFileType"
	case tImageWidth:
		return "ImageWidth"
	case tImageLength:
		return "ImageLength"
	case tBitsPerSample:
		return "BitsPerSample"
	case tCompression:
		return "Compression"
	case tPhotometricInterpretation:
		return "PhotometricInterpretation"
	case tImageDescription:
		return "ImageDescription"
	case tStripOffsets:
		return "StripOffsets"
	case tSamplesPerPixel:
		return "SamplesPerPixel"
	case tRowsPerStrip:
		return "RowsPerStrip"
	case tStripByteCounts:
		return "StripByteCounts"
	case tPlanarConfiguration:
		return "PlanarConfiguration"
	case tPredictor:
		return "Predictor"
	case tSampleFormat:
		return "SampleFormat"
	case tTileWidth:
		return "TileWidth"
	case tTileLength:
		return "TileLength"
	case tTileOffsets:
		return "TileOffsets"
	case tTileByteCounts:
		return "TileByteCounts"
	case tSubIFDs:
		return "SubIFDs"
	case tJPEGTables:
		return "JPEGTables"
	case tYCbCrSubSampling:
		return "YCbCrSubSampling"
	case tICCProfile:
		return "ICCProfile"
	default:
		return fmt.Sprintf("Unknown(%d)", t)
	}
}

func valuename(t tag) string {
	var v interface{}
	switch t.id {
	case tPhotometricInterpretation:
		switch t.firstVal() {
		case pWhiteIsZero:
			v = "WhiteIsZero"
		case pBlackIsZero:
			v = "BlackIsZero"
		case pRGB:
			v = "RGB"
		case pPaletted:
			v = "Paletted"
		case pTransMask:
			v = "TransMask"
		case pCMYK:
			v = "CMYK"
		case pYCbCr:
			v = "YCbCr"
		case pCIELab:
			v = "CIE-Lab"
		default:
			v = t.firstVal()
		}
	case tCompression:
		v = compressionName(uint16(t.firstVal()))
	case tStripOffsets, tTileOffsets:
		v = fmt.Sprintf("contains %d offset entries", len(t.val))
	case tStripByteCounts, tTileByteCounts:
		v = fmt.Sprintf("contains %d byte-count entries", len(t.val))
	case tImageDescription:
		v = t.ascii()
	case tJPEGTables, tICCProfile:
		v = fmt.Sprintf("%d bytes", len(t.raw))
	case tPlanarConfiguration:
		switch t.firstVal() {
		case 1:
			v = "Contiguous (aka RGBRGBRGBRGB)"
		case 2:
			v = "Separate (aka RRRRGGGGBBBB)"
		default:
			v = t.firstVal()
		}
	default:
		if t.datatype == dtRational || t.datatype == dtSRational {
			sl := make([]*big.Rat, 0, len(t.val))
			for i := range t.val {
				sl = append(sl, t.rational(i))
			}
			v = sl
		} else {
			v = t.val
		}
	}
	return fmt.Sprintf("%v", v)
}

// compressionName returns a human name for a compression code.
func compressionName(code uint16) string {
	switch code {
	case cNone:
		return "None"
	case cLZW:
		return "LZW"
	case cJPEGOld:
		return "Old JPEG"
	case cJPEG:
		return "JPEG"
	case cDeflate, cDeflateOld:
		return "Deflate (zlib compression)"
	case cPackBits:
		return "PackBits"
	case cAperioJ2KY:
		return "JPEG2000 (Aperio YCbCr)"
	case cAperioJ2K:
		return "JPEG2000 (Aperio RGB)"
	case cJPEG2000:
		return "JPEG2000"
	case cZstd:
		return "Zstd"
	default:
		return fmt.Sprintf("Unknown(%d)", code)
	}
}
