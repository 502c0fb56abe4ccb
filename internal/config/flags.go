package config

// This file implements CLI flag parsing and help text.
// Flags are grouped into tools, correction, publishing, display, and utility.
// Negated flags (e.g. --no-color) are applied after Parse so Config values hold unless set.

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

// Version is shown in --version and help; main overrides it with its build-time value.
var Version = "1.0.0-dev"

// ErrVersion is returned by ParseFlags after --version has been printed.
var ErrVersion = errors.New("version requested")

// ParseFlags parses args (without the program name) into cfg. On --help it
// prints usage and returns flag.ErrHelp; on --version it prints the version
// and returns ErrVersion. Other errors are unknown flags or bad values.
func ParseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("darfix", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() { printUsage(os.Stderr) }

	var negated negatedFlags

	defineToolFlags(fs, cfg)
	defineCorrectionFlags(fs, cfg)
	definePublishFlags(fs, cfg)
	defineDisplayFlags(fs, cfg, &negated)
	defineUtilityFlags(fs, &negated)

	if err := fs.Parse(args); err != nil {
		return err
	}

	applyNegatedFlags(cfg, &negated)

	if negated.showHelp {
		printUsage(os.Stderr)
		return flag.ErrHelp
	}
	if negated.showVersion {
		fmt.Fprintln(os.Stdout, "darfix v"+Version)
		return ErrVersion
	}

	return parsePositionalArgs(fs, cfg)
}

// negatedFlags holds boolean flags that are applied after Parse.
type negatedFlags struct {
	forceColor  bool
	noColor     bool
	showVersion bool
	showHelp    bool
}

// defineToolFlags registers --ffprobe and --ffmpeg.
func defineToolFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.FfprobePath, "ffprobe", cfg.FfprobePath, "Path to the ffprobe executable")
	fs.StringVar(&cfg.FfmpegPath, "ffmpeg", cfg.FfmpegPath, "Path to the ffmpeg executable")
}

// defineCorrectionFlags registers discovery and correction behavior.
func defineCorrectionFlags(fs *flag.FlagSet, cfg *Config) {
	fs.Var(&outputModeValue{&cfg.OutputMode}, "output-mode", "Output artifacts: pair | replace")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Files processed concurrently")
	fs.IntVar(&cfg.Workers, "j", cfg.Workers, "Same as --workers")
	fs.Int64Var(&cfg.MaxDenominator, "max-denominator", cfg.MaxDenominator, "Largest denominator of the computed ratio")
	fs.DurationVar(&cfg.ToolTimeout, "timeout", cfg.ToolTimeout, "Per-invocation limit for ffprobe/ffmpeg (0 = none)")
	fs.Var(&listValue{&cfg.PruneDirs}, "exclude", "Directory name to skip (repeatable)")
	fs.Var(&listValue{&cfg.Extensions}, "ext", "Extra file extension to scan (repeatable)")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "Probe and report only; do not copy or remux")
	fs.BoolVar(&cfg.DryRun, "d", false, "Same as --dry-run")
	fs.BoolVar(&cfg.FailFast, "fail-fast", false, "Stop at the first failed file")
	fs.BoolVar(&cfg.AnalyzeOnly, "analyze", false, "Print a DAR table and exit")
	fs.BoolVar(&cfg.AnalyzeOnly, "a", false, "Same as --analyze")
}

// definePublishFlags registers the S3 upload settings.
func definePublishFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.S3Bucket, "s3-bucket", cfg.S3Bucket, "Upload corrected files to this bucket")
	fs.StringVar(&cfg.S3Prefix, "s3-prefix", cfg.S3Prefix, "Key prefix for uploads")
	fs.StringVar(&cfg.S3Region, "s3-region", cfg.S3Region, "AWS region for uploads")
}

// defineDisplayFlags registers --color, --no-color, verbose, --check, --log, --report.
func defineDisplayFlags(fs *flag.FlagSet, cfg *Config, n *negatedFlags) {
	fs.BoolVar(&n.forceColor, "color", false, "Force colored logs")
	fs.BoolVar(&n.noColor, "no-color", false, "Disable colored logs")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "Verbose output")
	fs.BoolVar(&cfg.Verbose, "v", false, "Same as --verbose")
	fs.BoolVar(&cfg.CheckOnly, "check", false, "Run tool diagnostics and exit")
	fs.BoolVar(&cfg.CheckOnly, "c", false, "Same as --check")
	fs.StringVar(&cfg.LogFile, "log", cfg.LogFile, "Append logs to file")
	fs.StringVar(&cfg.LogFile, "l", cfg.LogFile, "Same as --log")
	fs.StringVar(&cfg.ReportFile, "report", cfg.ReportFile, "Write a JSON run report")
}

// defineUtilityFlags registers --version and --help.
func defineUtilityFlags(fs *flag.FlagSet, n *negatedFlags) {
	fs.BoolVar(&n.showVersion, "version", false, "Print version and exit")
	fs.BoolVar(&n.showVersion, "V", false, "Same as --version")
	fs.BoolVar(&n.showHelp, "help", false, "Show this help and exit")
	fs.BoolVar(&n.showHelp, "h", false, "Same as --help")
}

func applyNegatedFlags(cfg *Config, n *negatedFlags) {
	if n.noColor {
		cfg.ColorMode = ColorNever
	} else if n.forceColor {
		cfg.ColorMode = ColorAlways
	}
}

// parsePositionalArgs sets RootDir from the optional positional argument.
func parsePositionalArgs(fs *flag.FlagSet, cfg *Config) error {
	args := fs.Args()
	switch len(args) {
	case 0:
		return nil
	case 1:
		cfg.RootDir = NormalizeDirArg(args[0])
		return nil
	default:
		return fmt.Errorf("expected at most one root_dir (got %d arguments)", len(args))
	}
}

// NormalizeDirArg strips trailing slashes from a directory path.
// The filesystem root "/" is returned unchanged so we don't produce an empty string.
func NormalizeDirArg(path string) string {
	if path == "/" {
		return "/"
	}
	return strings.TrimRight(path, "/")
}

// printUsage writes the help text to w. Column-aligned for readability.
func printUsage(w io.Writer) {
	const col1 = 30
	lines := []struct {
		flags string
		desc  string
	}{
		{"", "darfix v" + Version + " - display aspect ratio fixer"},
		{"", ""},
		{"  darfix [OPTIONS] [root_dir]", ""},
		{"", ""},
		{"Without root_dir the directory containing darfix is scanned, and ffprobe/ffmpeg", ""},
		{"are taken from that same directory.", ""},
		{"", ""},
		{"Tools", ""},
		{"  --ffprobe <path>", "ffprobe executable (default: beside darfix)"},
		{"  --ffmpeg <path>", "ffmpeg executable (default: beside darfix)"},
		{"  --timeout <duration>", "Per-invocation limit, e.g. 5m (default: none)"},
		{"", ""},
		{"Correction", ""},
		{"  --output-mode <pair|replace>", "Keep copy + _corrected file, or replace copy (default: pair)"},
		{"  -j, --workers <n>", "Files processed concurrently (default: 1)"},
		{"  --max-denominator <n>", "Ratio denominator cap (default: 1000000)"},
		{"  --exclude <name>", "Skip directories with this name (repeatable)"},
		{"  --ext <ext>", "Also scan this extension (repeatable)"},
		{"  -d, --dry-run", "Probe and report only"},
		{"  --fail-fast", "Stop at the first failed file"},
		{"  -a, --analyze", "Print a DAR table and exit"},
		{"", ""},
		{"Publishing", ""},
		{"  --s3-bucket <name>", "Upload corrected files to S3"},
		{"  --s3-prefix <prefix>", "Key prefix for uploads"},
		{"  --s3-region <region>", "AWS region (default: from AWS config)"},
		{"", ""},
		{"Display", ""},
		{"  --color", "Force colored logs"},
		{"  --no-color", "Disable colored logs"},
		{"  -v, --verbose", "Verbose output"},
		{"", ""},
		{"Utility", ""},
		{"  -l, --log <path>", "Append logs to file"},
		{"  --report <path>", "Write a JSON run report"},
		{"  -c, --check", "Show ffprobe/ffmpeg versions and exit"},
		{"  -V, --version", "Print version and exit"},
		{"  -h, --help", "Show this help and exit"},
	}

	for _, l := range lines {
		if l.flags == "" && l.desc == "" {
			fmt.Fprintln(w)
			continue
		}
		if l.desc == "" {
			fmt.Fprintln(w, l.flags)
			continue
		}
		if l.flags == "" {
			fmt.Fprintln(w, l.desc)
			continue
		}
		padding := col1 - len(l.flags)
		if padding < 1 {
			padding = 1
		}
		fmt.Fprintf(w, "%s%*s%s\n", l.flags, padding, "", l.desc)
	}
}

// flag.Value adapters so enum and list fields can be used with flag.Var.

type outputModeValue struct{ p *OutputMode }

func (o *outputModeValue) String() string {
	if o.p == nil {
		return ""
	}
	return string(*o.p)
}

func (o *outputModeValue) Set(s string) error {
	switch strings.ToLower(s) {
	case "pair":
		*o.p = OutputPair
	case "replace":
		*o.p = OutputReplace
	default:
		return fmt.Errorf("invalid output mode %q (use 'pair' or 'replace')", s)
	}
	return nil
}

// listValue appends each occurrence to the slice it wraps.
type listValue struct{ p *[]string }

func (l *listValue) String() string {
	if l.p == nil {
		return ""
	}
	return strings.Join(*l.p, ",")
}

func (l *listValue) Set(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("value must not be empty")
	}
	*l.p = append(*l.p, s)
	return nil
}
