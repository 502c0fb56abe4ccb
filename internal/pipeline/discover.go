package pipeline

import (
	"io/fs"
	"path/filepath"
	"slices"
	"sort"
	"strings"
)

// Discover walks root, prunes directories whose name exactly matches an
// entry of prune (the root itself is never pruned), collects regular files
// whose lowercase extension is in exts, and returns the paths sorted
// lexicographically for deterministic processing order.
//
// Entries below root that cannot be read are skipped and returned in
// skipped; only an error on root itself fails the walk.
func Discover(root string, prune, exts []string) (files, skipped []string, err error) {
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			skipped = append(skipped, path)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != root && slices.Contains(prune, d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if slices.Contains(exts, strings.ToLower(filepath.Ext(path))) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	sort.Strings(files)
	sort.Strings(skipped)
	return files, skipped, nil
}
