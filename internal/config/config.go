// Package config holds runtime configuration: defaults, .env and environment
// overlays, CLI flag parsing, and validation. With zero configuration the
// search root and both tools live beside the executable.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"
)

// FixedDirName is the subtree that receives corrected copies. It is always
// pruned from discovery so a run never revisits its own output.
const FixedDirName = "fixed"

// --- Enum types for validated string fields ---

// OutputMode selects which artifacts remain under fixed/ after a correction.
type OutputMode string

const (
	// OutputPair keeps the plain copy and writes "<copy>_corrected<ext>" beside it (default).
	OutputPair OutputMode = "pair"
	// OutputReplace overwrites the plain copy with the corrected file.
	OutputReplace OutputMode = "replace"
)

// ColorMode controls ANSI color output.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"   // Enable colors when stdout is a TTY (default).
	ColorAlways ColorMode = "always" // Force colors on.
	ColorNever  ColorMode = "never"  // Disable colors entirely.
)

// Config holds all runtime settings. It is populated by [DefaultConfig],
// overlaid by [ApplyEnv] and [ParseFlags], completed by
// [Config.ApplyExecutableDir], and then passed by pointer to the packages
// that need it.
type Config struct {
	// Paths. Empty values are filled from the executable's directory.
	RootDir     string
	FfprobePath string
	FfmpegPath  string

	// Discovery.
	PruneDirs  []string // Default: fixed, marquee. Exact name match.
	Extensions []string // Default: .mp4, .avi. Lowercase with leading dot.

	// Correction.
	MaxDenominator int64         // Default: 1000000.
	OutputMode     OutputMode    // Default: "pair".
	Workers        int           // Default: 1 (sequential).
	ToolTimeout    time.Duration // Default: 0 (no timeout).
	DryRun         bool
	FailFast       bool // Abort the run on the first per-file failure.

	// Publishing (disabled when S3Bucket is empty).
	S3Bucket string
	S3Prefix string
	S3Region string

	// Display and logging.
	Verbose     bool
	ColorMode   ColorMode // Default: "auto".
	LogFile     string    // Optional log file path.
	ReportFile  string    // Optional JSON run report path.
	CheckOnly   bool      // Run --check diagnostics and exit.
	AnalyzeOnly bool      // Print the DAR table and exit without writing.
}

// DefaultConfig returns a Config with all defaults. Paths stay empty until
// [Config.ApplyExecutableDir].
func DefaultConfig() Config {
	return Config{
		PruneDirs:      []string{FixedDirName, "marquee"},
		Extensions:     []string{".mp4", ".avi"},
		MaxDenominator: 1_000_000,
		OutputMode:     OutputPair,
		Workers:        1,
		ColorMode:      ColorAuto,
	}
}

// ToolName returns the platform executable name for an ffmpeg suite tool.
func ToolName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}
	return base
}

// ApplyExecutableDir fills RootDir, FfprobePath, and FfmpegPath from dir
// when they were not set by env or flags.
func (c *Config) ApplyExecutableDir(dir string) {
	if c.RootDir == "" {
		c.RootDir = dir
	}
	if c.FfprobePath == "" {
		c.FfprobePath = filepath.Join(dir, ToolName("ffprobe"))
	}
	if c.FfmpegPath == "" {
		c.FfmpegPath = filepath.Join(dir, ToolName("ffmpeg"))
	}
}

// Validate checks enum and numeric fields and normalizes the discovery
// lists: extensions are lowercased with a leading dot, and FixedDirName is
// always present in PruneDirs.
func (c *Config) Validate() error {
	switch c.OutputMode {
	case OutputPair, OutputReplace:
		// valid
	default:
		return errors.New("invalid output mode (use 'pair' or 'replace')")
	}

	switch c.ColorMode {
	case ColorAuto, ColorAlways, ColorNever:
		// valid
	default:
		return errors.New("invalid color mode (use 'auto', 'always' or 'never')")
	}

	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1 (got %d)", c.Workers)
	}
	if c.MaxDenominator < 1 {
		return fmt.Errorf("max denominator must be at least 1 (got %d)", c.MaxDenominator)
	}
	if c.ToolTimeout < 0 {
		return errors.New("timeout must not be negative")
	}

	exts, err := normalizeExtensions(c.Extensions)
	if err != nil {
		return err
	}
	c.Extensions = exts

	if !slices.Contains(c.PruneDirs, FixedDirName) {
		c.PruneDirs = append(c.PruneDirs, FixedDirName)
	}

	if c.FfprobePath == "" {
		return errors.New("ffprobe path must not be empty")
	}
	if c.CheckOnly {
		return nil
	}
	if c.RootDir == "" {
		return errors.New("root directory must not be empty")
	}
	if c.FfmpegPath == "" && !c.DryRun && !c.AnalyzeOnly {
		return errors.New("ffmpeg path must not be empty")
	}
	return nil
}

// NeedsRemuxer reports whether this run may invoke ffmpeg.
func (c *Config) NeedsRemuxer() bool {
	return !c.DryRun && !c.AnalyzeOnly
}

// normalizeExtensions lowercases and dot-prefixes each entry, dropping
// duplicates. Accepted forms: "mp4", ".MP4".
func normalizeExtensions(raw []string) ([]string, error) {
	out := make([]string, 0, len(raw))
	for _, e := range raw {
		s := strings.ToLower(strings.TrimSpace(e))
		if s == "" || s == "." {
			return nil, fmt.Errorf("invalid extension %q", e)
		}
		if !strings.HasPrefix(s, ".") {
			s = "." + s
		}
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("at least one file extension is required")
	}
	return out, nil
}
