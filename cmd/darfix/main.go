// Command darfix finds MP4/AVI files whose declared display aspect ratio
// disagrees with their resolution and writes corrected stream copies under
// <root>/fixed/.
//
// With no arguments the directory holding the executable is scanned and
// ffprobe/ffmpeg are taken from that same directory.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/backmassage/darfix/internal/check"
	"github.com/backmassage/darfix/internal/config"
	"github.com/backmassage/darfix/internal/display"
	"github.com/backmassage/darfix/internal/ffmpeg"
	"github.com/backmassage/darfix/internal/logging"
	"github.com/backmassage/darfix/internal/pipeline"
	"github.com/backmassage/darfix/internal/probe"
	"github.com/backmassage/darfix/internal/publish"
)

// version and commit are injected at build time via -ldflags.
var (
	version = "1.0.0"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Phase 1: Bootstrap. The logger doesn't exist yet, so errors go
	// directly to stderr via fmt.
	config.Version = version

	exeDir, err := executableDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "darfix: cannot locate executable: %v\n", err)
		return 1
	}

	cfg := config.DefaultConfig()
	lookup, err := config.EnvLookup(filepath.Join(exeDir, ".env"), ".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "darfix: %v\n", err)
		return 1
	}
	if err := config.ApplyEnv(&cfg, lookup); err != nil {
		fmt.Fprintf(os.Stderr, "darfix: %v\n", err)
		return 1
	}
	if err := config.ParseFlags(&cfg, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) || errors.Is(err, config.ErrVersion) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "darfix: %v\nTry 'darfix --help' for usage.\n", err)
		return 1
	}
	cfg.ApplyExecutableDir(exeDir)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "darfix: %v\n", err)
		return 1
	}

	log, err := logging.NewLogger(&cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "darfix: %v\n", err)
		return 1
	}
	defer log.Close()

	// Phase 2: Logger available.
	display.PrintBanner(os.Stdout)

	if cfg.CheckOnly {
		if !check.RunCheck(&cfg, log) {
			return 1
		}
		return 0
	}

	rootAbs, err := absDir(cfg.RootDir)
	if err != nil {
		log.Error("Root directory not usable: %v", err)
		return 1
	}
	cfg.RootDir = rootAbs

	log.Info("=== darfix v%s (%s) ===", version, commit)
	if cfg.DryRun {
		log.Warn("DRY RUN: no files will be written")
	}

	if err := check.CheckDeps(&cfg); err != nil {
		log.Error("%v", err)
		log.Error("Place ffprobe/ffmpeg next to darfix or pass --ffprobe/--ffmpeg")
		return 1
	}

	// Phase 3: Signal handling. The context is cancelled on SIGINT/SIGTERM
	// so the run stops between files.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Warn("Received interrupt, stopping…")
		cancel()
	}()

	prober := probe.New(cfg.FfprobePath, cfg.ToolTimeout)

	if cfg.AnalyzeOnly {
		if _, err := pipeline.Analyze(ctx, &cfg, log, prober, os.Stdout); err != nil {
			log.Error("%v", err)
			return 1
		}
		return 0
	}

	// Phase 4: Run the batch.
	var remuxer pipeline.Remuxer
	if cfg.NeedsRemuxer() {
		remuxer = ffmpeg.NewRemuxer(cfg.FfmpegPath, cfg.Verbose, cfg.ToolTimeout)
	}

	var publisher pipeline.Publisher
	if cfg.S3Bucket != "" && !cfg.DryRun {
		p, err := publish.NewS3PublisherFromConfig(ctx, cfg.S3Bucket, cfg.S3Prefix, cfg.S3Region)
		if err != nil {
			log.Error("%v", err)
			return 1
		}
		publisher = p
	}

	report, err := pipeline.NewCorrector(&cfg, log, prober, remuxer, publisher).Run(ctx)
	if err != nil {
		log.Error("%v", err)
		return 1
	}

	if cfg.ReportFile != "" {
		if err := report.WriteFile(cfg.ReportFile); err != nil {
			log.Error("Cannot write report: %v", err)
			return 1
		}
		log.Info("Report written: %s", cfg.ReportFile)
	}

	if report.HasFailures() {
		return 1
	}
	return 0
}

// executableDir returns the symlink-resolved directory of the running binary.
func executableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}

// absDir returns the absolute, symlink-resolved path of an existing directory.
func absDir(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	abs, err = filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !fi.IsDir() {
		return "", fmt.Errorf("%s is not a directory", abs)
	}
	return abs, nil
}
