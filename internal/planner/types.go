package planner

// Action describes the per-file processing decision.
type Action int

const (
	ActionSkip    Action = iota // Declared DAR matches the resolution.
	ActionCorrect               // Copy under fixed/ and rewrite the DAR.
)

func (a Action) String() string {
	switch a {
	case ActionSkip:
		return "skip"
	case ActionCorrect:
		return "correct"
	}
	return "unknown"
}

// FilePlan holds the decision for one file. Path fields are set only for
// ActionCorrect.
type FilePlan struct {
	Action Action

	InputPath  string
	CopyPath   string // fixed/<rel>: byte copy of the input
	TempPath   string // ffmpeg output
	OutputPath string // where the corrected file ends up

	Width       int
	Height      int
	Resolution  string // "WxH"
	DeclaredDAR string
	ExpectedDAR string
}
