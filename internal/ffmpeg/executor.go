package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"
)

// ExecResult holds the outcome of a single ffmpeg invocation.
type ExecResult struct {
	Stderr string
	Err    error
}

// Remuxer runs the ffmpeg executable at Path.
type Remuxer struct {
	Path    string
	Verbose bool
	Timeout time.Duration

	// Tee receives a live copy of stderr in verbose mode. Nil means os.Stderr.
	Tee io.Writer
}

// NewRemuxer returns a Remuxer for the executable at path.
func NewRemuxer(path string, verbose bool, timeout time.Duration) *Remuxer {
	return &Remuxer{Path: path, Verbose: verbose, Timeout: timeout}
}

// Remux runs the aspect rewrite described by req. Any stale file at
// req.OutputPath is removed first since ffmpeg refuses to overwrite
// without -y. On success the output must exist; otherwise Err is a
// *RemuxError.
func (r *Remuxer) Remux(ctx context.Context, req RemuxRequest) ExecResult {
	if err := os.Remove(req.OutputPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return ExecResult{Err: &RemuxError{Path: req.InputPath, Err: fmt.Errorf("remove stale output: %w", err)}}
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	if r.Verbose && req.LogLevel == "" {
		req.LogLevel = LogLevelInfo
	}
	cmd := exec.CommandContext(ctx, r.Path, BuildRemux(req)...)

	var stderrBuf bytes.Buffer
	if r.Verbose {
		tee := r.Tee
		if tee == nil {
			tee = os.Stderr
		}
		cmd.Stderr = io.MultiWriter(&stderrBuf, tee)
	} else {
		cmd.Stderr = &stderrBuf
	}

	err := cmd.Run()
	stderr := stderrBuf.String()
	if err != nil {
		return ExecResult{Stderr: stderr, Err: &RemuxError{Path: req.InputPath, Stderr: stderr, Err: err}}
	}
	if _, statErr := os.Stat(req.OutputPath); statErr != nil {
		return ExecResult{Stderr: stderr, Err: &RemuxError{Path: req.InputPath, Stderr: stderr, Err: ErrNoOutput}}
	}
	return ExecResult{Stderr: stderr}
}
