package naming

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/backmassage/darfix/internal/config"
)

// Markers inserted between the copied file name and its repeated extension.
const (
	TempMarker      = "_temp"
	CorrectedMarker = "_corrected"
)

// FixedPath returns <root>/<fixedDir>/<rel> for src, where rel is src
// relative to root. src must lie inside root.
func FixedPath(root, fixedDir, src string) (string, error) {
	rel, err := filepath.Rel(root, src)
	if err != nil {
		return "", err
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%q is not inside %q", src, root)
	}
	return filepath.Join(root, fixedDir, rel), nil
}

// TempPath is the ffmpeg output name for dest: dest + "_temp" + ext.
func TempPath(dest string) string {
	return dest + TempMarker + filepath.Ext(dest)
}

// CorrectedPath is TempPath(dest) with the temp marker swapped for the
// corrected marker.
func CorrectedPath(dest string) string {
	return dest + CorrectedMarker + filepath.Ext(dest)
}

// FinalPath returns where the corrected artifact ends up for mode.
func FinalPath(dest string, mode config.OutputMode) string {
	if mode == config.OutputReplace {
		return dest
	}
	return CorrectedPath(dest)
}
