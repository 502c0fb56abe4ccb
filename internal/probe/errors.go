package probe

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedOutput means ffprobe's output did not have the expected
	// three-line shape or a dimension was not an integer.
	ErrMalformedOutput = errors.New("malformed ffprobe output")
	// ErrDegenerateResolution means width or height was zero or negative.
	ErrDegenerateResolution = errors.New("degenerate resolution")
)

// ProbeError is returned for every probe failure: the tool could not be
// launched, exited nonzero, or printed something unparseable. Output holds
// the combined stdout/stderr for diagnostics.
type ProbeError struct {
	Path   string
	Output string
	Err    error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("ffprobe %q: %v", e.Path, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }
