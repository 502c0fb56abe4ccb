package probe

import "strconv"

// VideoInfo holds the primary video stream geometry and the DAR string
// exactly as ffprobe reported it ("16:9", "N/A", ...).
type VideoInfo struct {
	Path        string
	Width       int
	Height      int
	DeclaredDAR string
}

// Resolution returns "WxH", or "unknown" for non-positive dimensions.
func (v *VideoInfo) Resolution() string {
	if v == nil || v.Width <= 0 || v.Height <= 0 {
		return "unknown"
	}
	return strconv.Itoa(v.Width) + "x" + strconv.Itoa(v.Height)
}
