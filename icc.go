package slide

import (
	"encoding/binary"

	"gonum.org/v1/gonum/mat"
)

// Best-effort handling of embedded ICC profiles. Only matrix/TRC RGB
// profiles are interpreted: the three colorant tags give a device-to-PCS
// matrix, which is chained with the inverse of the sRGB colorant matrix to
// produce a single RGB-to-RGB correction. Profiles of any other kind pass
// the samples through unmodified.

const iccHeaderLen = 128

// sRGB colorants relative to the D50 PCS, as published in the sRGB ICC
// profile.
var srgbColorants = []float64{
	0.4360747, 0.3850649, 0.1430804,
	0.2225045, 0.7168786, 0.0606169,
	0.0139322, 0.0971045, 0.7141733,
}

// parseMatrixProfile extracts the rXYZ/gXYZ/bXYZ colorants of an RGB
// matrix profile and returns the combined RGB correction matrix. ok is
// false for truncated data, non-RGB profiles, or a missing colorant.
func parseMatrixProfile(profile []byte) (*mat.Dense, bool) {
	if len(profile) < iccHeaderLen+4 {
		return nil, false
	}
	if int(binary.BigEndian.Uint32(profile[0:4])) > len(profile) {
		return nil, false
	}
	// The data colorspace signature lives at offset 16 of the header.
	if string(profile[16:20]) != "RGB " {
		return nil, false
	}

	count := int(binary.BigEndian.Uint32(profile[iccHeaderLen : iccHeaderLen+4]))
	if count <= 0 || count > 1024 {
		return nil, false
	}
	table := profile[iccHeaderLen+4:]
	if len(table) < count*12 {
		return nil, false
	}

	device := make([]float64, 9)
	found := 0
	for i := 0; i < count; i++ {
		entry := table[i*12 : i*12+12]
		sig := string(entry[0:4])
		var col int
		switch sig {
		case "rXYZ":
			col = 0
		case "gXYZ":
			col = 1
		case "bXYZ":
			col = 2
		default:
			continue
		}
		off := int(binary.BigEndian.Uint32(entry[4:8]))
		size := int(binary.BigEndian.Uint32(entry[8:12]))
		// XYZType: 4-byte signature, 4 reserved, then three s15Fixed16.
		if size < 20 || off+20 > len(profile) || string(profile[off:off+4]) != "XYZ " {
			return nil, false
		}
		for row := 0; row < 3; row++ {
			v := int32(binary.BigEndian.Uint32(profile[off+8+row*4 : off+12+row*4]))
			device[row*3+col] = float64(v) / 65536
		}
		found++
	}
	if found != 3 {
		return nil, false
	}

	toPCS := mat.NewDense(3, 3, device)
	srgb := mat.NewDense(3, 3, srgbColorants)
	var inv mat.Dense
	if err := inv.Inverse(srgb); err != nil {
		return nil, false
	}
	var combined mat.Dense
	combined.Mul(&inv, toPCS)
	return &combined, true
}

// applyColorMatrix multiplies every RGB triple by m in place. Samples are
// treated as gamma-encoded; the correction is an approximation applied
// directly, which is where best-effort ends for profiles without usable
// curves.
func applyColorMatrix(buf []byte, m *mat.Dense) {
	// Near-identity corrections are not worth a pass over the pixels.
	identity := true
	for r := 0; r < 3 && identity; r++ {
		for c := 0; c < 3; c++ {
			want := 0.0
			if r == c {
				want = 1.0
			}
			if d := m.At(r, c) - want; d > 0.004 || d < -0.004 {
				identity = false
				break
			}
		}
	}
	if identity {
		return
	}

	var c00, c01, c02 = m.At(0, 0), m.At(0, 1), m.At(0, 2)
	var c10, c11, c12 = m.At(1, 0), m.At(1, 1), m.At(1, 2)
	var c20, c21, c22 = m.At(2, 0), m.At(2, 1), m.At(2, 2)
	for i := 0; i+2 < len(buf); i += 3 {
		r := float64(buf[i])
		g := float64(buf[i+1])
		b := float64(buf[i+2])
		buf[i] = clampByte(int32(c00*r + c01*g + c02*b + 0.5))
		buf[i+1] = clampByte(int32(c10*r + c11*g + c12*b + 0.5))
		buf[i+2] = clampByte(int32(c20*r + c21*g + c22*b + 0.5))
	}
}
