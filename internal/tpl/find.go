package tpl

import (
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoLibraries reports that a search found no library files at all.
// Callers treat this as non-fatal and fall back to empty results.
var ErrNoLibraries = errors.New("tpl: no libraries found")

func libraryExtensions(shared bool) []string {
	if shared {
		return []string{".so", ".dylib"}
	}
	return []string{".a"}
}

// FindLibraries searches root recursively for library files matching
// the given logical names ("lib<name>.a" or "lib<name>.so", plus
// versioned shared objects). Results are grouped in name order, with
// paths sorted within each name. Returns ErrNoLibraries when nothing
// matches.
func FindLibraries(names []string, root string, shared bool) ([]string, error) {
	exts := libraryExtensions(shared)

	matches := make(map[string][]string, len(names))
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// unreadable subtrees are skipped, not fatal
			return nil
		}
		if d.IsDir() {
			return nil
		}
		base := d.Name()
		for _, name := range names {
			for _, ext := range exts {
				want := "lib" + name + ext
				if base == want || strings.HasPrefix(base, want+".") {
					matches[name] = append(matches[name], path)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var libs []string
	for _, name := range names {
		found := matches[name]
		sort.Strings(found)
		libs = append(libs, found...)
	}
	if len(libs) == 0 {
		return nil, ErrNoLibraries
	}
	return libs, nil
}
