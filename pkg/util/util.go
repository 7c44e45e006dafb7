// Package util holds small path helpers shared by the batch runner.
package util

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// MatchesIgnore checks if a slash-relative path matches an ignore
// pattern. Patterns use filepath.Match syntax; a non-rooted pattern
// matches the path's basename and any trailing segment sequence, so
// "*.txt" skips text files anywhere in the tree.
func MatchesIgnore(pattern, relPath string) bool {
	pattern = filepath.ToSlash(pattern)
	relPath = filepath.ToSlash(relPath)
	if pattern == "" || relPath == "" || relPath == "." {
		return false
	}

	if match, _ := filepath.Match(pattern, relPath); match {
		return true
	}
	// Non-rooted patterns float: match against every suffix of the path.
	if !strings.HasPrefix(pattern, "/") {
		parts := strings.Split(relPath, "/")
		for i := range parts {
			if match, _ := filepath.Match(pattern, strings.Join(parts[i:], "/")); match {
				return true
			}
		}
		return false
	}
	match, _ := filepath.Match(strings.TrimPrefix(pattern, "/"), relPath)
	return match
}

// MatchesAnyIgnore reports whether relPath matches at least one pattern.
func MatchesAnyIgnore(patterns []string, relPath string) bool {
	for _, p := range patterns {
		if MatchesIgnore(p, relPath) {
			return true
		}
	}
	return false
}

// DiscoverSamples resolves a path argument into the list of sample files
// to analyze: a file argument yields itself, a directory argument yields
// its files (its whole subtree when recursive), minus ignore matches.
// Results are sorted for deterministic batch ordering.
func DiscoverSamples(root string, recursive bool, ignore []string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("cannot access input path %s: %w", root, err)
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	var samples []string
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = d.Name()
		}
		if MatchesAnyIgnore(ignore, rel) {
			return nil
		}
		samples = append(samples, path)
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("failed to walk input directory %s: %w", root, walkErr)
	}
	sort.Strings(samples)
	return samples, nil
}
