package pipeline

import "github.com/backmassage/darfix/internal/planner"

// Status is the outcome of processing one file.
type Status string

const (
	StatusMatched      Status = "matched"
	StatusCorrected    Status = "corrected"
	StatusWouldCorrect Status = "would-correct"
	StatusFailed       Status = "failed"
	StatusInterrupted  Status = "interrupted" // cut short by cancellation
)

// FailureClass groups per-file failures for the summary counters.
type FailureClass string

const (
	FailureNone       FailureClass = ""
	FailureProbe      FailureClass = "probe"
	FailureRemux      FailureClass = "remux"
	FailureFilesystem FailureClass = "filesystem"
	FailurePublish    FailureClass = "publish"
)

// Stage names the step a failure happened in.
type Stage string

const (
	StageProbe   Stage = "probe"
	StagePlan    Stage = "plan"
	StageMkdir   Stage = "mkdir"
	StageCopy    Stage = "copy"
	StageRemux   Stage = "remux"
	StageRename  Stage = "rename"
	StagePublish Stage = "publish"
)

// FileResult is the tagged result of ProcessFile: Err is nil unless
// Status is StatusFailed or StatusInterrupted. Plan is nil when probing
// failed.
type FileResult struct {
	Path   string
	Rel    string
	Status Status
	Plan   *planner.FilePlan

	Output       string // final corrected file, when written
	PublishedURL string
	BytesCopied  int64

	Failure FailureClass
	Stage   Stage
	Err     error
}

// Failed reports whether the file ended in StatusFailed.
func (r *FileResult) Failed() bool { return r.Status == StatusFailed }

func (r FileResult) fail(class FailureClass, stage Stage, err error) FileResult {
	r.Status = StatusFailed
	r.Failure = class
	r.Stage = stage
	r.Err = err
	return r
}

// interrupt reclassifies a failure caused by cancellation. Stage and Err
// are kept so the report shows where the file stopped.
func (r FileResult) interrupt() FileResult {
	r.Status = StatusInterrupted
	r.Failure = FailureNone
	return r
}
