package ffmpeg

// Log levels passed to ffmpeg -loglevel.
const (
	LogLevelError = "error"
	LogLevelInfo  = "info"
)

// RemuxRequest describes one aspect-ratio rewrite.
type RemuxRequest struct {
	InputPath  string
	OutputPath string
	Aspect     string // "W:H"
	LogLevel   string // Defaults to LogLevelError when empty.
}

// BuildRemux returns the ffmpeg arguments (without the program name):
//
//	-loglevel <level> -i <input> -c copy -aspect <W:H> <output>
func BuildRemux(req RemuxRequest) []string {
	level := req.LogLevel
	if level == "" {
		level = LogLevelError
	}
	return []string{
		"-loglevel", level,
		"-i", req.InputPath,
		"-c", "copy",
		"-aspect", req.Aspect,
		req.OutputPath,
	}
}
