// Package ffmpeg builds and runs the stream-copy remux that rewrites a
// file's display aspect ratio.
//
// Only container metadata changes: every stream is copied (-c copy) and
// -aspect sets the new DAR. Stderr is captured for failure diagnosis and
// tee'd to the terminal in verbose mode.
package ffmpeg
