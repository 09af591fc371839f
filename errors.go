package slide

import "fmt"

// A FormatError reports that the container structure is malformed. It is
// fatal to opening the file and is never produced after Open returns.
type FormatError string

func (e FormatError) Error() string {
	return fmt.Sprintf("slide: invalid format: %s", string(e))
}

// An UnsupportedError reports that the container or a tile uses a valid but
// unimplemented feature, such as an unregistered compression code.
type UnsupportedError string

func (e UnsupportedError) Error() string {
	return fmt.Sprintf("slide: unsupported feature: %s", string(e))
}

// A CorruptError reports that a tile payload could not be decoded. It is
// scoped to the region read that needed the tile; the handle stays valid.
type CorruptError string

func (e CorruptError) Error() string {
	return fmt.Sprintf("slide: corrupt tile data: %s", string(e))
}

// An InvalidLevelError reports a pyramid level index outside the range of
// the parsed resolution pyramid.
type InvalidLevelError int

func (e InvalidLevelError) Error() string {
	return fmt.Sprintf("slide: invalid pyramid level %d", int(e))
}

// An InternalError reports that an internal invariant was violated.
type InternalError string

func (e InternalError) Error() string {
	return fmt.Sprintf("slide: internal error: %s", string(e))
}

// minInt returns the smaller of x or y.
func minInt(a, b int) int {
	if a <= b {
		return a
	}
	return b
}

// maxInt returns the larger of x or y.
func maxInt(a, b int) int {
	if a >= b {
		return a
	}
	return b
}
