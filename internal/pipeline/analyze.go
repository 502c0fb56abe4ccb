package pipeline

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/backmassage/darfix/internal/aspect"
	"github.com/backmassage/darfix/internal/config"
	"github.com/backmassage/darfix/internal/logging"
	"github.com/backmassage/darfix/internal/probe"
	"github.com/backmassage/darfix/internal/term"
)

const maxNameWidth = 50

// Row status labels in the analysis table.
const (
	rowOK       = "ok"
	rowMismatch = "mismatch"
	rowFailed   = "probe failed"
)

// fileRow holds the probed per-file data for the analysis table.
type fileRow struct {
	Name       string
	Resolution string
	Declared   string
	Expected   string
	Status     string
}

// AnalyzeResult counts what Analyze saw.
type AnalyzeResult struct {
	Files      int
	Mismatched int
	Failed     int
	Skipped    int // unreadable paths left out of the walk
}

// Analyze discovers candidate files, probes each one, and writes an aligned
// table of declared versus expected DAR to w. Nothing is written to disk.
func Analyze(ctx context.Context, cfg *config.Config, log *logging.Logger, prober probe.Prober, w io.Writer) (AnalyzeResult, error) {
	var result AnalyzeResult

	files, skipped, err := Discover(cfg.RootDir, cfg.PruneDirs, cfg.Extensions)
	if err != nil {
		return result, fmt.Errorf("discover %s: %w", cfg.RootDir, err)
	}
	result.Skipped = len(skipped)
	warnSkipped(log, skipped)
	if len(files) == 0 {
		log.Warn("No %s files found in %s", strings.Join(cfg.Extensions, "/"), cfg.RootDir)
		return result, nil
	}
	log.Info("Analyzing %d files in %s", len(files), cfg.RootDir)

	rows := make([]fileRow, 0, len(files))
	for _, path := range files {
		if ctx.Err() != nil {
			log.Warn("Interrupted")
			break
		}
		row := analyzeFile(ctx, cfg, prober, path)
		switch row.Status {
		case rowMismatch:
			result.Mismatched++
		case rowFailed:
			result.Failed++
		}
		rows = append(rows, row)
	}
	result.Files = len(rows)

	printAnalysisTable(w, rows)

	log.Info("Analyzed %d files", result.Files)
	if result.Failed > 0 {
		log.Warn("  %d file(s) could not be probed", result.Failed)
	}
	if result.Mismatched > 0 {
		log.Warn("  %d file(s) declare the wrong DAR", result.Mismatched)
	} else {
		log.Success("  No DAR mismatches")
	}
	return result, nil
}

func analyzeFile(ctx context.Context, cfg *config.Config, prober probe.Prober, path string) fileRow {
	row := fileRow{Name: relOrBase(cfg.RootDir, path), Resolution: "-", Declared: "-", Expected: "-"}

	info, err := prober.Probe(ctx, path)
	if err != nil {
		row.Status = rowFailed
		return row
	}
	row.Resolution = info.Resolution()
	row.Declared = info.DeclaredDAR

	expected, err := aspect.RatioLimit(info.Width, info.Height, cfg.MaxDenominator)
	if err != nil {
		row.Status = rowFailed
		return row
	}
	row.Expected = expected
	if info.DeclaredDAR == expected {
		row.Status = rowOK
	} else {
		row.Status = rowMismatch
	}
	return row
}

func printAnalysisTable(w io.Writer, rows []fileRow) {
	nameW := utf8.RuneCountInString("File")
	resW := len("Resolution")
	decW := len("Declared")
	expW := len("Expected")

	for _, r := range rows {
		nameW = max(nameW, utf8.RuneCountInString(r.Name))
		resW = max(resW, len(r.Resolution))
		decW = max(decW, len(r.Declared))
		expW = max(expW, len(r.Expected))
	}
	nameW = min(nameW, maxNameWidth)

	header := fmt.Sprintf("  %-*s  %-*s  %-*s  %-*s  %s",
		nameW, "File",
		resW, "Resolution",
		decW, "Declared",
		expW, "Expected",
		"Status",
	)
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, "  "+strings.Repeat("─", nameW+resW+decW+expW+8+len(rowFailed)))

	for _, r := range rows {
		fmt.Fprintf(w, "  %-*s  %-*s  %-*s  %-*s  %s\n",
			nameW, truncateLeft(r.Name, nameW),
			resW, r.Resolution,
			decW, r.Declared,
			expW, r.Expected,
			colorStatus(r.Status),
		)
	}
	fmt.Fprintln(w)
}

// truncateLeft keeps the last width-1 characters of s behind an ellipsis
// when s is wider than width. fmt pads %-*s by characters, so widths are
// counted the same way.
func truncateLeft(s string, width int) string {
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	r := []rune(s)
	return "…" + string(r[len(r)-width+1:])
}

// colorStatus is the last column, so no padding is needed around the
// escape sequences.
func colorStatus(status string) string {
	switch status {
	case rowMismatch:
		return term.Paint(term.Yellow, status)
	case rowFailed:
		return term.Paint(term.Red, status)
	default:
		return term.Paint(term.Green, status)
	}
}

func relOrBase(root, path string) string {
	r, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(r, "..") {
		return filepath.Base(path)
	}
	return r
}
