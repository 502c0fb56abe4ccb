package pipeline

import (
	"encoding/json"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/backmassage/darfix/internal/config"
	"github.com/backmassage/darfix/internal/fsx"
)

// Report is the stable JSON summary written by --report.
type Report struct {
	RunID      uuid.UUID `json:"run_id"`
	Root       string    `json:"root"`
	DryRun     bool      `json:"dry_run"`
	OutputMode string    `json:"output_mode"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Interrupted is set when the context was cancelled; Aborted when
	// fail-fast stopped the run.
	Interrupted bool `json:"interrupted"`
	Aborted     bool `json:"aborted"`

	Summary RunStats     `json:"summary"`
	Items   []ItemResult `json:"items"`
}

// ItemResult is one file's entry in the report.
type ItemResult struct {
	Path         string `json:"path"`
	Status       string `json:"status"`
	Resolution   string `json:"resolution,omitempty"`
	DeclaredDAR  string `json:"declared_dar,omitempty"`
	ExpectedDAR  string `json:"expected_dar,omitempty"`
	Output       string `json:"output,omitempty"`
	PublishedURL string `json:"published_url,omitempty"`
	BytesCopied  int64  `json:"bytes_copied,omitempty"`
	Failure      string `json:"failure,omitempty"`
	Stage        string `json:"stage,omitempty"`
	ErrorMsg     string `json:"error_msg,omitempty"`
}

// NewReport starts a report for one run with a fresh run ID.
func NewReport(cfg *config.Config) *Report {
	return &Report{
		RunID:      uuid.New(),
		Root:       cfg.RootDir,
		DryRun:     cfg.DryRun,
		OutputMode: string(cfg.OutputMode),
		StartedAt:  time.Now(),
		Items:      []ItemResult{},
	}
}

// Record adds one file's result to the items and counters.
func (r *Report) Record(res FileResult) {
	r.Summary.add(&res)

	it := ItemResult{
		Path:         res.Path,
		Status:       string(res.Status),
		Output:       res.Output,
		PublishedURL: res.PublishedURL,
		BytesCopied:  res.BytesCopied,
		Failure:      string(res.Failure),
		Stage:        string(res.Stage),
	}
	if p := res.Plan; p != nil {
		it.Resolution = p.Resolution
		it.DeclaredDAR = p.DeclaredDAR
		it.ExpectedDAR = p.ExpectedDAR
	}
	if res.Err != nil {
		it.ErrorMsg = res.Err.Error()
	}
	r.Items = append(r.Items, it)
}

// Finalize normalizes times to UTC and sorts items by path so reports from
// sequential and pooled runs compare equal.
func (r *Report) Finalize() {
	if r.FinishedAt.IsZero() {
		r.FinishedAt = time.Now()
	}
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()
	sort.SliceStable(r.Items, func(i, j int) bool {
		return r.Items[i].Path < r.Items[j].Path
	})
}

// HasFailures reports whether the run should exit nonzero.
func (r *Report) HasFailures() bool {
	return r.Summary.Failed > 0 || r.Interrupted
}

// WriteFile writes the report as indented JSON, atomically.
func (r *Report) WriteFile(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return fsx.WriteFileAtomic(filepath.Dir(path), filepath.Base(path), data)
}
