// Package check provides tool diagnostics (--check mode) and the
// pre-run dependency validation (CheckDeps) for ffprobe and ffmpeg.
package check

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/backmassage/darfix/internal/config"
)

// Sentinel errors returned by CheckDeps when a required tool is missing.
var (
	ErrFfprobeNotFound = errors.New("ffprobe not found")
	ErrFfmpegNotFound  = errors.New("ffmpeg not found")
)

// Logger is the minimal logging interface needed by RunCheck.
// Defined here (rather than importing the logging package) so that check
// remains dependency-light and testable with a mock logger.
type Logger interface {
	Info(string, ...interface{})
	Success(string, ...interface{})
	Warn(string, ...interface{})
	Error(string, ...interface{})
	Debug(bool, string, ...interface{})
}

// RunCheck prints the resolved path and version line of each tool. It
// reports false if any tool is missing or fails to run.
func RunCheck(cfg *config.Config, log Logger) bool {
	log.Info("=== Tool Check ===")
	okProbe := checkTool(log, "ffprobe", cfg.FfprobePath)
	okMpeg := checkTool(log, "ffmpeg", cfg.FfmpegPath)
	return okProbe && okMpeg
}

func checkTool(log Logger, name, path string) bool {
	resolved, err := exec.LookPath(path)
	if err != nil {
		log.Error("%s not found at %s", name, path)
		return false
	}
	line, err := versionLine(resolved)
	if err != nil {
		log.Warn("%s found at %s but -version failed: %v", name, resolved, err)
		return false
	}
	log.Success("%s: %s", name, line)
	log.Info("  %s", resolved)
	return true
}

// CheckDeps is the pre-run validation. ffprobe is always required; ffmpeg
// only when the run may remux. Paths containing a separator are checked
// as-is, bare names are searched on PATH.
func CheckDeps(cfg *config.Config) error {
	if _, err := exec.LookPath(cfg.FfprobePath); err != nil {
		return fmt.Errorf("%w at %s", ErrFfprobeNotFound, cfg.FfprobePath)
	}
	if !cfg.NeedsRemuxer() {
		return nil
	}
	if _, err := exec.LookPath(cfg.FfmpegPath); err != nil {
		return fmt.Errorf("%w at %s", ErrFfmpegNotFound, cfg.FfmpegPath)
	}
	return nil
}

// versionLine runs "<tool> -version" and returns the first output line.
func versionLine(path string) (string, error) {
	out, err := exec.Command(path, "-version").Output()
	if err != nil {
		return "", err
	}
	first := strings.TrimSpace(string(out))
	if idx := strings.Index(first, "\n"); idx > 0 {
		first = strings.TrimSpace(first[:idx])
	}
	return first, nil
}
