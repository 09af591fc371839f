package slide

import (
	"fmt"
	"strings"
)

//------------------------------------//
// Metadata / associated image locator //
//------------------------------------//

// ByteRange addresses one compressed segment inside the container.
type ByteRange struct {
	Offset int64
	Length int64
}

// AssociatedImage locates auxiliary image data (label, macro, thumbnail)
// stored alongside the pyramid. Pixel data is not decoded here: the
// segments plus the compression code are enough for a caller to run them
// through a registered codec if desired.
type AssociatedImage struct {
	Name        string
	Width       int
	Height      int
	Compression uint16
	Segments    []ByteRange
}

// AssociatedImages returns the auxiliary images keyed by name. The map is
// empty, not nil, when the container carries none.
func (s *Slide) AssociatedImages() map[string]AssociatedImage {
	return s.assoc
}

// RawMetadata returns the first directory's free-form description field,
// opaque to the engine. Empty when the tag is absent.
func (s *Slide) RawMetadata() string {
	return s.c.dirs[0].features[tImageDescription].ascii()
}

// locateAssociated names the non-pyramid directories. Label and macro are
// recognized from the vendor description; the remaining reduced images
// become the thumbnail and, past that, fall back to positional names.
func locateAssociated(dirs []*directory) map[string]AssociatedImage {
	out := make(map[string]AssociatedImage, len(dirs))
	thumbnails := 0
	for i, dir := range dirs {
		name := ""
		desc := strings.ToLower(dir.features[tImageDescription].ascii())
		switch {
		case strings.Contains(desc, "label"):
			name = "label"
		case strings.Contains(desc, "macro"):
			name = "macro"
		default:
			if thumbnails == 0 {
				name = "thumbnail"
			} else {
				name = fmt.Sprintf("image-%d", i)
			}
			thumbnails++
		}
		if _, dup := out[name]; dup {
			name = fmt.Sprintf("%s-%d", name, i)
		}

		offsets, counts := dir.segments()
		segs := make([]ByteRange, len(offsets))
		for j := range offsets {
			segs[j] = ByteRange{Offset: int64(offsets[j]), Length: int64(counts[j])}
		}
		out[name] = AssociatedImage{
			Name:        name,
			Width:       int(dir.firstVal(tImageWidth)),
			Height:      int(dir.firstVal(tImageLength)),
			Compression: uint16(dir.firstVal(tCompression)),
			Segments:    segs,
		}
	}
	return out
}

// parseProperties interprets the vendor dialect of the baseline image
// description. Aperio SVS packs pipe-separated "Key = Value" pairs after a
// free-form preamble:
//
//	Aperio Image Library v12.0.15
//	46000x32914 [0,100 46000x32814] (256x256) JPEG/RGB Q=30|AppMag = 20|MPP = 0.4990
func parseProperties(desc string) (vendor string, props map[string]string) {
	props = make(map[string]string)
	if !strings.HasPrefix(desc, "Aperio") {
		return "generic-tiff", props
	}

	parts := strings.Split(desc, "|")
	if len(parts) > 0 {
		lines := strings.SplitN(parts[0], "\n", 2)
		props["aperio.Header"] = strings.TrimSpace(parts[0])
		if len(lines) > 0 {
			props["aperio.Library"] = strings.TrimSpace(lines[0])
		}
	}
	for _, part := range parts[1:] {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.TrimSpace(kv[0])
		if key == "" {
			continue
		}
		props["aperio."+key] = strings.TrimSpace(kv[1])
	}
	return "aperio", props
}
