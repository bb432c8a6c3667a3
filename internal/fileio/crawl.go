// Package fileio owns everything that touches the filesystem: finding
// manifests, writing them back atomically and keeping rotated backups.
package fileio

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"github.com/yamlr/yamlr/internal/logging"
	"github.com/yamlr/yamlr/internal/models"
)

var logger = logging.GetLogger("fileio")

var yamlExtensions = map[string]bool{".yaml": true, ".yml": true}

// Crawl expands the given paths into a sorted, deduplicated list of
// manifest files. Directories are walked recursively; ignore patterns are
// globs matched against both the slash path and the base name.
func Crawl(paths []string, ignore []string) ([]string, error) {
	globs := make([]glob.Glob, 0, len(ignore))
	for _, pattern := range ignore {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, models.NewConfigError("invalid ignore pattern %q: %v", pattern, err)
		}
		globs = append(globs, g)
	}

	seen := map[string]bool{}
	var out []string
	add := func(path string) {
		if seen[path] || ignored(path, globs) {
			return
		}
		seen[path] = true
		out = append(out, path)
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, models.NewIOFailureError(path, "stat", err)
		}
		if !info.IsDir() {
			// explicitly named files are taken regardless of extension
			add(path)
			continue
		}
		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if ignored(p, globs) && p != path {
					return filepath.SkipDir
				}
				return nil
			}
			if yamlExtensions[strings.ToLower(filepath.Ext(p))] {
				add(p)
			}
			return nil
		})
		if err != nil {
			return nil, models.NewIOFailureError(path, "walk", err)
		}
	}

	sort.Strings(out)
	logger.Debug("crawl found %d files under %d paths", len(out), len(paths))
	return out, nil
}

func ignored(path string, globs []glob.Glob) bool {
	slashed := filepath.ToSlash(path)
	base := filepath.Base(path)
	for _, g := range globs {
		if g.Match(slashed) || g.Match(base) {
			return true
		}
	}
	return false
}
