package probe

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Prober returns the primary video stream info for a file.
type Prober interface {
	Probe(ctx context.Context, path string) (*VideoInfo, error)
}

// FFprobe runs the ffprobe executable at Path. A zero Timeout means the
// call may block until ffprobe exits or ctx is cancelled.
type FFprobe struct {
	Path    string
	Timeout time.Duration
}

// New returns an FFprobe for the executable at path.
func New(path string, timeout time.Duration) *FFprobe {
	return &FFprobe{Path: path, Timeout: timeout}
}

// Args returns the ffprobe arguments for path: first video stream only,
// width/height/display_aspect_ratio, one bare value per line.
func Args(path string) []string {
	return []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,display_aspect_ratio",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}
}

// Probe runs ffprobe against path and parses its combined output.
func (f *FFprobe) Probe(ctx context.Context, path string) (*VideoInfo, error) {
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, f.Path, Args(path)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, &ProbeError{Path: path, Output: string(out), Err: err}
	}

	info, err := ParseOutput(out)
	if err != nil {
		return nil, &ProbeError{Path: path, Output: string(out), Err: err}
	}
	info.Path = path
	return info, nil
}

// ParseOutput converts ffprobe's three-line output (width, height, DAR)
// into a VideoInfo. CRLF line endings are accepted.
func ParseOutput(data []byte) (*VideoInfo, error) {
	text := strings.TrimSpace(strings.ReplaceAll(string(data), "\r\n", "\n"))
	lines := strings.Split(text, "\n")
	if len(lines) != 3 {
		return nil, fmt.Errorf("%w: want 3 lines (width, height, dar), got %d", ErrMalformedOutput, len(lines))
	}

	width, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil {
		return nil, fmt.Errorf("%w: width %q", ErrMalformedOutput, lines[0])
	}
	height, err := strconv.Atoi(strings.TrimSpace(lines[1]))
	if err != nil {
		return nil, fmt.Errorf("%w: height %q", ErrMalformedOutput, lines[1])
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrDegenerateResolution, width, height)
	}

	return &VideoInfo{
		Width:       width,
		Height:      height,
		DeclaredDAR: strings.TrimSpace(lines[2]),
	}, nil
}
