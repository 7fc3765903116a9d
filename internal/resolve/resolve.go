// Package resolve emulates Node-style module resolution for import
// specifiers without touching a filesystem. It only generates candidate
// paths; checking them for existence is the caller's concern.
package resolve

import (
	"path"
	"strings"
)

// directoryStems are tried, in order, for a specifier with no extension.
// They approximate LOAD_INDEX and a package.json "main" we cannot read.
var directoryStems = []string{
	"/index",
	"/src/index",
	"/src/main",
	"/main",
}

// implicitExtensions are roughly sorted so the most common come first.
var implicitExtensions = []string{
	".js",
	".ts",
	".cjs",
	".mjs",
	".mts",
	".cts",
	".json",
}

// IsLocal reports whether spec refers to a file inside the same repository.
// Only relative specifiers count; a leading slash is not treated as local.
func IsLocal(spec string) bool {
	return strings.HasPrefix(spec, ".")
}

// SearchPaths expands spec into the ordered list of paths a module loader
// would try. The first entry is always spec itself.
func SearchPaths(spec string) []string {
	paths := []string{spec}

	switch extname(spec) {
	case ".js":
		// Typed sources are usually imported through their compiled .js name.
		paths = append(paths, ChangeExtension(spec, ".ts"))
	case "":
		for _, stem := range directoryStems {
			for _, e := range implicitExtensions {
				paths = append(paths, spec+stem+e)
			}
		}
	}

	return paths
}

// Candidates returns SearchPaths for local specifiers and nil for external
// packages, which are not resolved.
func Candidates(spec string) []string {
	if !IsLocal(spec) {
		return nil
	}
	return SearchPaths(spec)
}

// NormalizeLocalImportPath resolves a local specifier against the directory
// containing importerPath. It is purely textual. The second result is false
// when spec is not local.
func NormalizeLocalImportPath(importerPath, spec string) (string, bool) {
	if !IsLocal(spec) {
		return "", false
	}
	return path.Join(path.Dir(toSlash(importerPath)), spec), true
}

// ResolveCandidates normalizes spec against importerPath and expands the
// result into repository-relative search paths.
func ResolveCandidates(importerPath, spec string) []string {
	normalized, ok := NormalizeLocalImportPath(importerPath, spec)
	if !ok {
		return nil
	}
	return SearchPaths(normalized)
}

// ChangeExtension replaces the extension of p with ext. ext may be given
// with or without its leading dot.
func ChangeExtension(p, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return strings.TrimSuffix(p, extname(p)) + ext
}

// extname returns the extension of the last element of p the way Node's
// path.extname does: "" for "." and "..", and for names whose only dot
// is the leading one.
func extname(p string) string {
	base := path.Base(p)
	if base == "." || base == ".." {
		return ""
	}
	i := strings.LastIndexByte(base, '.')
	if i <= 0 {
		return ""
	}
	return base[i:]
}

// Index is a set of known repository-relative file paths used to pick the
// first existing candidate.
type Index map[string]struct{}

// NewIndex builds an Index from repository-relative paths.
func NewIndex(paths ...string) Index {
	ix := make(Index, len(paths))
	for _, p := range paths {
		ix[path.Clean(toSlash(p))] = struct{}{}
	}
	return ix
}

// Resolve returns the first candidate for spec, imported from importerPath,
// that is present in the index. An extensionless spec is also tried as a
// file with each implicit extension, before the directory candidates.
func (ix Index) Resolve(importerPath, spec string) (string, bool) {
	for _, c := range lookupOrder(importerPath, spec) {
		if _, ok := ix[c]; ok {
			return c, true
		}
	}
	return "", false
}

// lookupOrder lists the cleaned candidates for spec in the order Resolve
// tries them. A spec naming "." or ".." is only looked up as a directory.
func lookupOrder(importerPath, spec string) []string {
	candidates := ResolveCandidates(importerPath, spec)
	if len(candidates) == 0 {
		return nil
	}
	first := candidates[0]
	order := make([]string, 0, len(candidates)+len(implicitExtensions))
	order = append(order, path.Clean(first))
	if base := path.Base(first); extname(first) == "" && base != "." && base != ".." {
		for _, e := range implicitExtensions {
			order = append(order, path.Clean(first+e))
		}
	}
	for _, c := range candidates[1:] {
		order = append(order, path.Clean(c))
	}
	return order
}

func toSlash(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}
