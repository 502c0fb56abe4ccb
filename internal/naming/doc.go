// Package naming maps source files to their locations under the fixed/
// subtree and derives the temporary and final names used while remuxing.
//
// For a mismatched <root>/a/b/clip.mp4 with fixed dir "fixed":
//
//	copy:      <root>/fixed/a/b/clip.mp4
//	temp:      <root>/fixed/a/b/clip.mp4_temp.mp4
//	corrected: <root>/fixed/a/b/clip.mp4_corrected.mp4
//
// The temp and corrected names differ only in their marker, and the marker
// lives in the final path element, so directory names are never rewritten.
package naming
