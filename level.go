package slide

import (
	"fmt"
	"sort"
	"strings"
)

//------------------------//
// Resolution index       //
//------------------------//

// Level describes one pyramid level. Level 0 is always the full-resolution
// image; Downsample grows monotonically with the index.
type Level struct {
	Index      int
	Width      int
	Height     int
	TileWidth  int
	TileHeight int
	Downsample float64

	dir *directory
}

// tilesAcross returns the number of tile columns of the level.
func (l *Level) tilesAcross() int {
	return (l.Width + l.TileWidth - 1) / l.TileWidth
}

// tilesDown returns the number of tile rows of the level.
func (l *Level) tilesDown() int {
	return (l.Height + l.TileHeight - 1) / l.TileHeight
}

// buildPyramid classifies the parsed directories into pyramid levels and
// associated images. Level candidates are the tiled directories of the
// main chain plus the SubIFD children of the first one; everything else
// (label, macro, strip thumbnails) is associated content.
func buildPyramid(c *container) ([]*Level, []*directory, error) {
	base := c.dirs[0]
	if !base.tiled() {
		return nil, nil, FormatError("first directory is not tiled")
	}
	w0 := int(base.firstVal(tImageWidth))
	h0 := int(base.firstVal(tImageLength))

	candidates := []*directory{base}
	candidates = append(candidates, base.subs...)
	var assoc []*directory
	for _, dir := range c.dirs[1:] {
		if isLevel(dir, w0, h0) {
			candidates = append(candidates, dir)
		} else {
			assoc = append(assoc, dir)
		}
	}

	levels := make([]*Level, 0, len(candidates))
	for _, dir := range candidates {
		w := int(dir.firstVal(tImageWidth))
		h := int(dir.firstVal(tImageLength))
		l := &Level{
			Width:      w,
			Height:     h,
			TileWidth:  int(dir.firstVal(tTileWidth)),
			TileHeight: int(dir.firstVal(tTileLength)),
			Downsample: (float64(w0)/float64(w) + float64(h0)/float64(h)) / 2,
			dir:        dir,
		}
		if l.TileWidth <= 0 || l.TileHeight <= 0 {
			return nil, nil, FormatError("missing tile geometry")
		}
		offsets, _ := dir.segments()
		if n := l.tilesAcross() * l.tilesDown(); len(offsets) < n {
			return nil, nil, FormatError("inconsistent tile table")
		}
		levels = append(levels, l)
	}

	sort.SliceStable(levels, func(i, j int) bool {
		return levels[i].Downsample < levels[j].Downsample
	})
	for i, l := range levels {
		l.Index = i
	}
	if levels[0].Downsample != 1 {
		return nil, nil, InternalError("pyramid base downsample is not 1")
	}
	return levels, assoc, nil
}

// isLevel reports whether a non-first directory of the chain is a pyramid
// level of the w0×h0 baseline rather than an associated image. Labels and
// macros carry page or mask subfile bits or a vendor marker in their
// description; thumbnails are strip images.
func isLevel(dir *directory, w0, h0 int) bool {
	if !dir.tiled() {
		return false
	}
	if dir.firstVal(tNewSubFileType)&(sftPage|sftMask) != 0 {
		return false
	}
	desc := strings.ToLower(dir.features[tImageDescription].ascii())
	if strings.Contains(desc, "label") || strings.Contains(desc, "macro") {
		return false
	}
	w := int(dir.firstVal(tImageWidth))
	h := int(dir.firstVal(tImageLength))
	if w > w0 || h > h0 || w == 0 || h == 0 {
		return false
	}
	// Aspect ratio must match the baseline within one tile of slack.
	return absInt(w*h0-h*w0) <= maxInt(w0, h0)*2
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Levels returns the resolution pyramid, ordered from the finest level.
func (s *Slide) Levels() []Level {
	out := make([]Level, len(s.levels))
	for i, l := range s.levels {
		out[i] = *l
	}
	return out
}

// BestLevelFor returns the index of the level whose downsample factor is
// the largest one not exceeding desired: the result is never coarser than
// asked for. Ties between levels with an equal factor resolve toward the
// lower index. Factors below 1 clamp to level 0.
func (s *Slide) BestLevelFor(desired float64) int {
	best := 0
	for i := 1; i < len(s.levels); i++ {
		if s.levels[i].Downsample <= desired && s.levels[i].Downsample > s.levels[best].Downsample {
			best = i
		}
	}
	return best
}

// levelAt returns the level descriptor for index, or an InvalidLevelError.
func (s *Slide) levelAt(index int) (*Level, error) {
	if index < 0 || index >= len(s.levels) {
		return nil, InvalidLevelError(index)
	}
	return s.levels[index], nil
}

// String implements Stringer for debugging and error reports.
func (l *Level) String() string {
	return fmt.Sprintf("level %d: %dx%d tiles %dx%d downsample %.4g",
		l.Index, l.Width, l.Height, l.TileWidth, l.TileHeight, l.Downsample)
}
