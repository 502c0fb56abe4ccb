package ffmpeg

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoOutput means ffmpeg exited zero but the output file is missing.
var ErrNoOutput = errors.New("ffmpeg produced no output file")

// RemuxError reports a failed aspect rewrite for Path.
type RemuxError struct {
	Path   string
	Stderr string
	Err    error
}

func (e *RemuxError) Error() string {
	msg := fmt.Sprintf("ffmpeg %q: %v", e.Path, e.Err)
	if hint := Diagnose(e.Stderr); hint != "" {
		msg += " (" + hint + ")"
	}
	return msg
}

func (e *RemuxError) Unwrap() error { return e.Err }

// Pre-compiled regexes for classifying ffmpeg stderr. Checked in order by
// Diagnose; the first match wins.
var (
	reMissingInput = regexp.MustCompile(`(?i)No such file or directory`)

	reInvalidInput = regexp.MustCompile(
		`(?i)Invalid data found when processing input|` +
			`moov atom not found|` +
			`could not find codec parameters`)

	reNoSpace = regexp.MustCompile(`(?i)No space left on device`)

	reTagIncompatible = regexp.MustCompile(
		`(?i)Could not find tag for codec|` +
			`codec not currently supported in container|` +
			`Could not write header`)
)

// Diagnose returns a short human description of a known ffmpeg failure in
// stderr, or "" when nothing recognizable is present.
func Diagnose(stderr string) string {
	if strings.TrimSpace(stderr) == "" {
		return ""
	}
	switch {
	case reMissingInput.MatchString(stderr):
		return "input file missing"
	case reInvalidInput.MatchString(stderr):
		return "input is not a readable video"
	case reNoSpace.MatchString(stderr):
		return "disk full"
	case reTagIncompatible.MatchString(stderr):
		return "stream codec not supported by the container"
	}
	return ""
}
