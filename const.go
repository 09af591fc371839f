package slide

// A whole-slide container is a TIFF-family file: one or more images, each
// described by an Image File Directory (IFD) of entries (12 bytes each in
// classic TIFF, 20 bytes in BigTIFF). An IFD entry consists of
//
//  - a tag, which describes the signification of the entry,
//  - the data type and count of the entry,
//  - the data itself or a pointer to it if it does not fit inline.
//
// Pyramid levels are either chained IFDs (Aperio SVS, generic pyramidal
// TIFF) or SubIFDs of the first directory (TIFF/EP style).

const (
	leHeader = "II\x2A\x00" // Little-endian classic TIFF.
	beHeader = "MM\x00\x2A" // Big-endian classic TIFF.
	leBig    = "II\x2B\x00" // Little-endian BigTIFF.
	beBig    = "MM\x00\x2B" // Big-endian BigTIFF.

	ifdEntryLen    = 12 // Classic IFD entry length in bytes.
	bigIfdEntryLen = 20 // BigTIFF IFD entry length in bytes.

	// Walking more directories than this means the offset chain is broken
	// even when it is not strictly cyclic.
	maxDirectories = 4096
)

// Data types (p. 14-16 of the TIFF6 spec, plus the BigTIFF additions).
const (
	dtByte      = 1
	dtASCII     = 2
	dtShort     = 3
	dtLong      = 4
	dtRational  = 5
	dtSByte     = 6
	dtUndefined = 7
	dtSShort    = 8
	dtSLong     = 9
	dtSRational = 10
	dtFloat     = 11
	dtDouble    = 12
	dtLong8     = 16
	dtSLong8    = 17
	dtIFD8      = 18
)

// The length of one instance of each data type in bytes.
var lengths = [...]uint32{0, 1, 1, 2, 4, 8, 1, 1, 2, 4, 8, 4, 8, 0, 0, 0, 8, 8, 8}

// Tags (TIFF6 p. 28-41, TIFF/EP and the Adobe TechNotes).
const (
	tNewSubFileType            = 254
	tImageWidth                = 256
	tImageLength               = 257
	tBitsPerSample             = 258
	tCompression               = 259
	tPhotometricInterpretation = 262
	tImageDescription          = 270

	tStripOffsets    = 273
	tSamplesPerPixel = 277
	tRowsPerStrip    = 278
	tStripByteCounts = 279

	tPlanarConfiguration = 284
	tPredictor           = 317
	tSampleFormat        = 339

	tTileWidth      = 322
	tTileLength     = 323
	tTileOffsets    = 324
	tTileByteCounts = 325

	tSubIFDs    = 330
	tJPEGTables = 347

	tYCbCrSubSampling = 530
	tICCProfile       = 34675
)

// Compression codes. The two Aperio codes are JPEG2000 codestreams with a
// vendor-declared colorspace.
const (
	cNone       = 1
	cLZW        = 5
	cJPEGOld    = 6 // Superseded by cJPEG.
	cJPEG       = 7
	cDeflate    = 8 // zlib compression.
	cPackBits   = 32773
	cDeflateOld = 32946 // Superseded by cDeflate.
	cAperioJ2KY = 33003 // JPEG2000 codestream, YCbCr colorspace.
	cAperioJ2K  = 33005 // JPEG2000 codestream, RGB colorspace.
	cJPEG2000   = 34712
	cZstd       = 50000
)

// Photometric interpretation values (TIFF6 p. 37).
const (
	pWhiteIsZero = 0
	pBlackIsZero = 1
	pRGB         = 2
	pPaletted    = 3
	pTransMask   = 4
	pCMYK        = 5
	pYCbCr       = 6
	pCIELab      = 8
)

// Values for the tPredictor tag (TIFF6 p. 64-65).
const (
	prNone       = 1
	prHorizontal = 2
)

// Bits of the tNewSubFileType field.
const (
	sftReduced = 0x1 // Reduced-resolution version of another image.
	sftPage    = 0x2
	sftMask    = 0x4
)
