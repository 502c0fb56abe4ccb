package pipeline

// RunStats tracks aggregate counters across a batch run.
type RunStats struct {
	Total        int `json:"total"`
	Current      int `json:"processed"`
	Matched      int `json:"matched"`
	Corrected    int `json:"corrected"`
	WouldCorrect int `json:"would_correct"`
	Published    int `json:"published"`
	Failed       int `json:"failed"`
	Interrupted  int `json:"interrupted"`
	SkippedDirs  int `json:"skipped_dirs"`

	ProbeFailures   int `json:"probe_failures"`
	RemuxFailures   int `json:"remux_failures"`
	FSFailures      int `json:"filesystem_failures"`
	PublishFailures int `json:"publish_failures"`

	BytesCopied int64 `json:"bytes_copied"`
}

// Mismatched is the number of files whose declared DAR was wrong,
// whether or not they were written.
func (s *RunStats) Mismatched() int {
	return s.Corrected + s.WouldCorrect + s.RemuxFailures + s.FSFailures + s.PublishFailures
}

func (s *RunStats) add(r *FileResult) {
	s.Current++
	s.BytesCopied += r.BytesCopied
	if r.PublishedURL != "" {
		s.Published++
	}
	switch r.Status {
	case StatusMatched:
		s.Matched++
	case StatusCorrected:
		s.Corrected++
	case StatusWouldCorrect:
		s.WouldCorrect++
	case StatusInterrupted:
		s.Interrupted++
	case StatusFailed:
		s.Failed++
		switch r.Failure {
		case FailureProbe:
			s.ProbeFailures++
		case FailureRemux:
			s.RemuxFailures++
		case FailureFilesystem:
			s.FSFailures++
		case FailurePublish:
			s.PublishFailures++
		}
	}
}
