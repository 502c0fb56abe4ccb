//go:build !unix

package fsx

// EXDEV is a unix errno; elsewhere cross-volume renames surface as plain errors.
func isEXDEV(error) bool { return false }
