package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/backmassage/darfix/internal/config"
	"github.com/backmassage/darfix/internal/display"
	"github.com/backmassage/darfix/internal/ffmpeg"
	"github.com/backmassage/darfix/internal/fsx"
	"github.com/backmassage/darfix/internal/logging"
	"github.com/backmassage/darfix/internal/planner"
	"github.com/backmassage/darfix/internal/probe"
)

// Remuxer rewrites the DAR of one file. *ffmpeg.Remuxer implements it.
type Remuxer interface {
	Remux(ctx context.Context, req ffmpeg.RemuxRequest) ffmpeg.ExecResult
}

// Publisher uploads a corrected file and returns where it landed.
// *publish.S3Publisher implements it.
type Publisher interface {
	Publish(ctx context.Context, localPath, rel string) (string, error)
}

// Corrector runs the batch. Publisher may be nil.
type Corrector struct {
	cfg       *config.Config
	log       *logging.Logger
	prober    probe.Prober
	remuxer   Remuxer
	publisher Publisher
}

// NewCorrector wires the per-file collaborators. remuxer may be nil in
// dry-run mode, publisher whenever uploads are off.
func NewCorrector(cfg *config.Config, log *logging.Logger, prober probe.Prober, remuxer Remuxer, publisher Publisher) *Corrector {
	return &Corrector{
		cfg:       cfg,
		log:       log,
		prober:    prober,
		remuxer:   remuxer,
		publisher: publisher,
	}
}

// Run discovers candidate files under cfg.RootDir and processes each one.
// Only a discovery failure is returned as an error; per-file failures are
// recorded in the report.
func (c *Corrector) Run(ctx context.Context) (*Report, error) {
	report := NewReport(c.cfg)

	files, skipped, err := Discover(c.cfg.RootDir, c.cfg.PruneDirs, c.cfg.Extensions)
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", c.cfg.RootDir, err)
	}
	report.Summary.Total = len(files)
	report.Summary.SkippedDirs = len(skipped)
	warnSkipped(c.log, skipped)

	c.logBatchHeader(report)

	if c.cfg.Workers > 1 && len(files) > 1 {
		c.runPool(ctx, files, report)
	} else {
		c.runSequential(ctx, files, report)
	}
	if ctx.Err() != nil && !report.Interrupted {
		c.log.Warn("Interrupted")
		report.Interrupted = true
	}

	report.FinishedAt = time.Now()
	report.Finalize()
	c.logSummary(report)
	return report, nil
}

func (c *Corrector) runSequential(ctx context.Context, files []string, report *Report) {
	for i, path := range files {
		if ctx.Err() != nil {
			c.log.Warn("Interrupted")
			report.Interrupted = true
			return
		}

		c.log.Info("[%d/%d] %s", i+1, len(files), c.rel(path))
		res := c.ProcessFile(ctx, path)
		report.Record(res)

		if res.Failed() && c.cfg.FailFast {
			c.log.Error("Stopping after first failure (--fail-fast)")
			report.Aborted = true
			return
		}
	}
}

type job struct {
	idx  int
	path string
}

// runPool fans files out to cfg.Workers goroutines. Results are recorded
// on the calling goroutine, so the report needs no locking.
func (c *Corrector) runPool(parent context.Context, files []string, report *Report) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	workers := min(c.cfg.Workers, len(files))
	jobs := make(chan job)
	results := make(chan FileResult, len(files))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				if ctx.Err() != nil {
					continue
				}
				c.log.Info("[%d/%d] %s", j.idx+1, len(files), c.rel(j.path))
				results <- c.ProcessFile(ctx, j.path)
			}
		}()
	}

	go func() {
		defer func() {
			close(jobs)
			wg.Wait()
			close(results)
		}()
		for i, p := range files {
			select {
			case <-ctx.Done():
				return
			case jobs <- job{idx: i, path: p}:
			}
		}
	}()

	for res := range results {
		report.Record(res)
		if res.Failed() && c.cfg.FailFast && !report.Aborted {
			c.log.Error("Stopping after first failure (--fail-fast)")
			report.Aborted = true
			cancel()
		}
	}

	if parent.Err() != nil {
		c.log.Warn("Interrupted")
		report.Interrupted = true
	}
}

// ProcessFile handles one file: probe -> plan -> copy -> remux -> rename ->
// publish. It never panics on bad input; every failure comes back on the
// result with its class and stage. A failure seen after ctx was cancelled
// comes back as StatusInterrupted instead.
func (c *Corrector) ProcessFile(ctx context.Context, path string) FileResult {
	res := c.processFile(ctx, path)
	if res.Failed() && ctx.Err() != nil {
		return res.interrupt()
	}
	return res
}

func (c *Corrector) processFile(ctx context.Context, path string) FileResult {
	res := FileResult{Path: path, Rel: c.rel(path)}

	info, err := c.prober.Probe(ctx, path)
	if err != nil {
		c.log.Error("Cannot probe file: %v", err)
		return res.fail(FailureProbe, StageProbe, err)
	}

	plan, err := planner.BuildPlan(c.cfg, info)
	if err != nil {
		c.log.Error("Cannot plan correction: %v", err)
		return res.fail(FailureProbe, StagePlan, err)
	}
	res.Plan = plan

	if plan.Action == planner.ActionSkip {
		c.log.Debug(c.cfg.Verbose, "  DAR %s matches %s", plan.DeclaredDAR, info.Resolution())
		res.Status = StatusMatched
		return res
	}

	c.log.Info("  %s declares %s, expected %s", info.Resolution(), plan.DeclaredDAR, plan.ExpectedDAR)

	if c.cfg.DryRun {
		c.log.Success("[DRY] Would correct DAR for: %s to %s", filepath.Base(path), plan.ExpectedDAR)
		res.Status = StatusWouldCorrect
		return res
	}

	return c.correct(ctx, res)
}

func (c *Corrector) correct(ctx context.Context, res FileResult) FileResult {
	plan := res.Plan

	if err := os.MkdirAll(filepath.Dir(plan.CopyPath), 0o755); err != nil {
		c.log.Error("Cannot create output directory: %v", err)
		return res.fail(FailureFilesystem, StageMkdir, err)
	}

	c.log.Info("Copying to: %s", plan.CopyPath)
	n, err := fsx.CopyFile(plan.InputPath, plan.CopyPath)
	if err != nil {
		c.log.Error("Copy failed: %v", err)
		return res.fail(FailureFilesystem, StageCopy, err)
	}
	res.BytesCopied = n

	c.log.Info("Correcting DAR for: %s to %s", filepath.Base(plan.CopyPath), plan.ExpectedDAR)
	start := time.Now()
	out := c.remuxer.Remux(ctx, ffmpeg.RemuxRequest{
		InputPath:  plan.CopyPath,
		OutputPath: plan.TempPath,
		Aspect:     plan.ExpectedDAR,
	})
	if out.Err != nil {
		_ = os.Remove(plan.TempPath)
		c.log.Error("Remux failed: %v", out.Err)
		if !c.cfg.Verbose {
			logStderr(c.log, out.Stderr)
		}
		return res.fail(FailureRemux, StageRemux, out.Err)
	}

	if err := fsx.Rename(plan.TempPath, plan.OutputPath); err != nil {
		_ = os.Remove(plan.TempPath)
		c.log.Error("Cannot move corrected file into place: %v", err)
		return res.fail(FailureFilesystem, StageRename, err)
	}
	res.Status = StatusCorrected
	res.Output = plan.OutputPath
	c.log.Success("Finished processing: %s (%s)", plan.OutputPath, display.FormatElapsed(time.Since(start)))

	if c.publisher == nil {
		return res
	}
	url, err := c.publisher.Publish(ctx, plan.OutputPath, c.rel(plan.OutputPath))
	if err != nil {
		c.log.Error("Upload failed (local file kept): %v", err)
		return res.fail(FailurePublish, StagePublish, err)
	}
	res.PublishedURL = url
	c.log.Success("Published: %s", url)
	return res
}

func (c *Corrector) rel(path string) string {
	return relOrBase(c.cfg.RootDir, path)
}

// warnSkipped names the paths the walk could not read.
func warnSkipped(log *logging.Logger, skipped []string) {
	for _, p := range skipped {
		log.Warn("Skipping unreadable path: %s", p)
	}
}

// logStderr prints the tail of ffmpeg's stderr.
func logStderr(log *logging.Logger, stderr string) {
	if strings.TrimSpace(stderr) == "" {
		return
	}
	log.Error("Last ffmpeg output:")
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	start := 0
	if len(lines) > 20 {
		start = len(lines) - 20
	}
	for _, l := range lines[start:] {
		log.Error("  %s", l)
	}
}

// --- Logging helpers ---

func (c *Corrector) logBatchHeader(report *Report) {
	c.log.Info("Run %s", report.RunID)
	c.log.Info("Root: %s", c.cfg.RootDir)
	c.log.Info("Found %d files (%s)", report.Summary.Total, strings.Join(c.cfg.Extensions, ", "))
	c.log.Debug(c.cfg.Verbose, "Pruned directories: %s", strings.Join(c.cfg.PruneDirs, ", "))

	switch c.cfg.OutputMode {
	case config.OutputReplace:
		c.log.Info("Output: corrected file replaces the copy under %s/", config.FixedDirName)
	default:
		c.log.Info("Output: copy plus _corrected file under %s/", config.FixedDirName)
	}
	if c.cfg.Workers > 1 {
		c.log.Info("Workers: %d", c.cfg.Workers)
	}
	if c.cfg.DryRun {
		c.log.Info("Dry run: nothing will be written")
	}
	if c.publisher != nil && !c.cfg.DryRun {
		c.log.Info("Publishing to s3://%s/%s", c.cfg.S3Bucket, c.cfg.S3Prefix)
	}
	if c.cfg.FailFast {
		c.log.Info("Failure policy: stop at first failure")
	}
}

func (c *Corrector) logSummary(report *Report) {
	s := &report.Summary
	c.log.Info("==============================")
	if c.cfg.DryRun {
		c.log.Info("Done: %d would be corrected, %d matched, %d failed", s.WouldCorrect, s.Matched, s.Failed)
	} else {
		c.log.Info("Done: %d corrected, %d matched, %d failed", s.Corrected, s.Matched, s.Failed)
	}
	c.log.Info("Summary report:")
	c.log.Info("  Files processed: %d of %d", s.Current, s.Total)
	if !c.cfg.DryRun {
		c.log.Info("  Bytes copied: %s", display.FormatBytes(s.BytesCopied))
	}
	if s.SkippedDirs > 0 {
		c.log.Warn("  Unreadable paths skipped: %d", s.SkippedDirs)
	}
	if s.Interrupted > 0 {
		c.log.Warn("  Interrupted mid-file: %d", s.Interrupted)
	}
	if s.Published > 0 {
		c.log.Info("  Uploaded: %d", s.Published)
	}
	if s.Failed > 0 {
		c.log.Warn("  Failures: %d probe, %d remux, %d filesystem, %d publish",
			s.ProbeFailures, s.RemuxFailures, s.FSFailures, s.PublishFailures)
	}
	c.log.Info("  Elapsed: %s", display.FormatElapsed(report.FinishedAt.Sub(report.StartedAt)))
}
