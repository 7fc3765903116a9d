package config

import (
	"encoding/json"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// BuildOutputExcludes reads package.json and tsconfig.json in root and
// returns exclude globs for the compiled output directories they name, so
// transpiled copies of the sources are not analyzed twice.
func BuildOutputExcludes(root string) []string {
	var dirs []string

	var pkg struct {
		Scripts map[string]string `json:"scripts"`
		Build   struct {
			OutDir string `json:"outDir"`
		} `json:"build"`
	}
	if readJSON(filepath.Join(root, "package.json"), &pkg) {
		for _, script := range pkg.Scripts {
			dirs = append(dirs, outDirFlag(script)...)
		}
		dirs = append(dirs, pkg.Build.OutDir)
	}

	var tsconfig struct {
		CompilerOptions struct {
			OutDir string `json:"outDir"`
		} `json:"compilerOptions"`
	}
	if readJSON(filepath.Join(root, "tsconfig.json"), &tsconfig) {
		dirs = append(dirs, tsconfig.CompilerOptions.OutDir)
	}

	seen := make(map[string]struct{})
	var patterns []string
	for _, d := range dirs {
		d = strings.Trim(path.Clean(filepath.ToSlash(strings.Trim(d, `"'`))), "/")
		if d == "" || d == "." || strings.HasPrefix(d, "..") {
			continue
		}
		pattern := d + "/**"
		if _, dup := seen[pattern]; dup {
			continue
		}
		seen[pattern] = struct{}{}
		patterns = append(patterns, pattern)
	}
	return patterns
}

// outDirFlag extracts the value of --outDir/-outDir from a build script.
func outDirFlag(script string) []string {
	var dirs []string
	parts := strings.Fields(script)
	for i, part := range parts {
		if name, value, ok := strings.Cut(part, "="); ok && (name == "--outDir" || name == "-outDir") {
			dirs = append(dirs, value)
			continue
		}
		if (part == "--outDir" || part == "-outDir") && i+1 < len(parts) {
			dirs = append(dirs, parts[i+1])
		}
	}
	return dirs
}

// readJSON reports whether path exists and decodes into v. tsconfig.json
// files with comments fail to decode and are ignored.
func readJSON(path string, v any) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return json.Unmarshal(data, v) == nil
}
