// Package cache stores rendered reports keyed by a fingerprint of the
// analyzed files, so unchanged repositories are not re-parsed.
package cache

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const header = "# routemap-cache "

// Fingerprint hashes the path, size and modification time of every file,
// plus any settings that change the rendered output. paths are relative to
// root and must be given in a stable order.
func Fingerprint(root string, paths []string, settings ...string) (uint64, error) {
	d := xxhash.New()
	for _, s := range settings {
		_, _ = d.WriteString(s)
		_, _ = d.Write([]byte{0})
	}
	for _, p := range paths {
		info, err := os.Stat(filepath.Join(root, filepath.FromSlash(p)))
		if err != nil {
			return 0, fmt.Errorf("fingerprinting %s: %w", p, err)
		}
		_, _ = fmt.Fprintf(d, "%s\x00%d\x00%d\x00", p, info.Size(), info.ModTime().UnixNano())
	}
	return d.Sum64(), nil
}

// Load returns the cached output at path if it was stored under fp.
func Load(path string, fp uint64) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	line, rest, ok := bytes.Cut(data, []byte("\n"))
	if !ok {
		return "", false
	}
	stored, ok := strings.CutPrefix(string(line), header)
	if !ok {
		return "", false
	}
	got, err := strconv.ParseUint(stored, 16, 64)
	if err != nil || got != fp {
		return "", false
	}
	return string(rest), true
}

// Store writes output to path under fp, replacing any previous entry.
func Store(path string, fp uint64, output string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	w := bufio.NewWriter(f)
	_, _ = fmt.Fprintf(w, "%s%016x\n", header, fp)
	_, _ = w.WriteString(output)
	if err := w.Flush(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("writing cache: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("writing cache: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("writing cache: %w", err)
	}
	return nil
}
