// Package pipeline orchestrates discovery, per-file DAR correction, the
// optional worker pool, analyze mode, and the run report.
//
// Flow per file: probe -> plan -> (matched: done) or copy to fixed/ ->
// remux into a temp file -> rename to the final name -> optional publish.
// A failure in any stage is recorded on the file's result and the run
// moves on unless fail-fast is set.
package pipeline
