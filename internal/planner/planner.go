package planner

import (
	"github.com/backmassage/darfix/internal/aspect"
	"github.com/backmassage/darfix/internal/config"
	"github.com/backmassage/darfix/internal/naming"
	"github.com/backmassage/darfix/internal/probe"
)

// BuildPlan compares the declared DAR with the ratio computed from the
// resolution. The comparison is exact string equality, so "N/A" or an
// unreduced declaration such as "32:18" counts as a mismatch.
func BuildPlan(cfg *config.Config, info *probe.VideoInfo) (*FilePlan, error) {
	expected, err := aspect.RatioLimit(info.Width, info.Height, cfg.MaxDenominator)
	if err != nil {
		return nil, err
	}

	plan := &FilePlan{
		Action:      ActionSkip,
		InputPath:   info.Path,
		Width:       info.Width,
		Height:      info.Height,
		Resolution:  info.Resolution(),
		DeclaredDAR: info.DeclaredDAR,
		ExpectedDAR: expected,
	}
	if info.DeclaredDAR == expected {
		return plan, nil
	}

	copyPath, err := naming.FixedPath(cfg.RootDir, config.FixedDirName, info.Path)
	if err != nil {
		return nil, err
	}
	plan.Action = ActionCorrect
	plan.CopyPath = copyPath
	plan.TempPath = naming.TempPath(copyPath)
	plan.OutputPath = naming.FinalPath(copyPath, cfg.OutputMode)
	return plan, nil
}
