// Package discover finds parseable source files in a repository.
package discover

import (
	"context"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/phobologic/routemap/internal/lang"
)

// FileEntry represents a discovered source file.
type FileEntry struct {
	Path     string // Relative to repo root, slash-separated
	Language string
	Size     int64
}

// Options narrows discovery. The zero value returns every supported file.
type Options struct {
	// Languages, when non-empty, keeps only files of the listed languages.
	Languages []string
	// Include, when non-empty, keeps only files matching one of the globs.
	Include []string
	// Exclude drops files matching any of the globs.
	Exclude []string
	// SkipTests drops files IsTestFile recognizes.
	SkipTests bool
}

var skipDirs = map[string]struct{}{
	"node_modules":     {},
	"bower_components": {},
	"jspm_packages":    {},
	".git":             {},
	".hg":              {},
	".svn":             {},
	"build":            {},
	"dist":             {},
	"out":              {},
	"coverage":         {},
	".next":            {},
	".nuxt":            {},
	".turbo":           {},
	".cache":           {},
	"vendor":           {},
}

var testDirs = map[string]struct{}{
	"__tests__": {},
	"__mocks__": {},
	"test":      {},
	"tests":     {},
	"spec":      {},
	"e2e":       {},
}

// IsTestFile reports whether a slash-separated repository path looks like a
// test file, either by living under a test directory or by its name.
func IsTestFile(p string) bool {
	dir, name := path.Split(p)
	for _, part := range strings.Split(strings.Trim(dir, "/"), "/") {
		if _, ok := testDirs[part]; ok {
			return true
		}
	}
	stem := strings.TrimSuffix(name, path.Ext(name))
	return strings.HasSuffix(stem, ".test") || strings.HasSuffix(stem, ".spec")
}

// Files discovers parseable source files under root.
func Files(root string, opts Options) ([]FileEntry, error) {
	langSet := make(map[string]struct{}, len(opts.Languages))
	for _, l := range opts.Languages {
		langSet[l] = struct{}{}
	}
	gitFiles := gitLsFiles(root)
	var gi *ignore.GitIgnore
	if gitFiles == nil {
		gi = loadGitignore(root)
	}

	var results []FileEntry

	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip errors
		}

		name := d.Name()

		if d.IsDir() {
			if p == root {
				return nil
			}
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") {
			return nil
		}

		// Skip symlinks
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if gitFiles != nil {
			if _, ok := gitFiles[rel]; !ok {
				return nil
			}
		} else if gi != nil && gi.MatchesPath(rel) {
			return nil
		}

		langName := lang.ForExtension(filepath.Ext(name))
		if langName == "" {
			return nil
		}

		if len(langSet) > 0 {
			if _, ok := langSet[langName]; !ok {
				return nil
			}
		}

		if !opts.matches(rel) {
			return nil
		}

		var size int64
		if info, err := d.Info(); err == nil {
			size = info.Size()
		}

		results = append(results, FileEntry{Path: rel, Language: langName, Size: size})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Path < results[j].Path
	})

	return results, nil
}

func (o Options) matches(rel string) bool {
	if o.SkipTests && IsTestFile(rel) {
		return false
	}
	if len(o.Include) > 0 && !matchAny(o.Include, rel) {
		return false
	}
	return !matchAny(o.Exclude, rel)
}

// matchAny ignores malformed patterns; config.Validate rejects them earlier.
func matchAny(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

func gitLsFiles(root string) map[string]struct{} {
	gitDir := filepath.Join(root, ".git")
	info, err := os.Stat(gitDir)
	if err != nil || !info.IsDir() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil
	}

	files := make(map[string]struct{})
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line != "" {
			files[line] = struct{}{}
		}
	}
	return files
}

func loadGitignore(root string) *ignore.GitIgnore {
	p := filepath.Join(root, ".gitignore")
	gi, err := ignore.CompileIgnoreFile(p)
	if err != nil {
		return nil
	}
	return gi
}
