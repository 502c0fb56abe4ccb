// Package probe reads the first video stream's width, height, and declared
// display aspect ratio with a single ffprobe call per file.
//
// The ffprobe output format is one bare value per line (no keys, no
// wrappers), so parsing is a fixed three-line read. ParseOutput is exported
// so the parse can be tested without an ffprobe binary, and the Prober
// interface lets the pipeline run against fakes.
package probe
