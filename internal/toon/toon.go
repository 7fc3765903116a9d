// Package toon implements TOON (Token-Oriented Object Notation) encoding.
package toon

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/phobologic/routemap/internal/model"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Encode converts a Report into TOON format.
func Encode(r *model.Report) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("repo: %s", encodeValue(r.RepoName)))
	parts = append(parts, fmt.Sprintf("root: %s", encodeValue(r.Root)))

	var apiRows, endpointRows [][]string
	for i := range r.APIs {
		api := &r.APIs[i]
		apiRows = append(apiRows, []string{
			api.Name,
			api.RootDir,
			api.RootFile,
			fmt.Sprintf("%d", len(api.Endpoints)),
		})
		for _, e := range api.Endpoints {
			method, path, _ := strings.Cut(e, " ")
			endpointRows = append(endpointRows, []string{api.Name, method, path})
		}
	}
	parts = append(parts, formatTabular("apis", []string{"name", "root", "file", "endpoints"}, apiRows))
	parts = append(parts, formatTabular("endpoints", []string{"api", "method", "path"}, endpointRows))

	var fileRows [][]string
	for i := range r.Files {
		fi := &r.Files[i]
		fileRows = append(fileRows, []string{
			fi.Path,
			fi.Language,
			fmt.Sprintf("%.4f", fi.Rank),
		})
	}
	parts = append(parts, formatTabular("files", []string{"path", "language", "rank"}, fileRows))

	var symbolRows [][]string
	for i := range r.Files {
		fi := &r.Files[i]
		for j := range fi.Declarations {
			d := &fi.Declarations[j]
			symbolRows = append(symbolRows, []string{
				fi.Path,
				d.Name,
				string(d.Kind),
				fmt.Sprintf("%d", d.Line),
			})
		}
	}
	parts = append(parts, formatTabular("symbols", []string{"file", "name", "kind", "line"}, symbolRows))

	var routeRows [][]string
	for i := range r.Files {
		fi := &r.Files[i]
		for _, group := range [][]model.Route{fi.Mounts, fi.Routes} {
			for j := range group {
				rt := &group[j]
				routeRows = append(routeRows, []string{
					fi.Path,
					rt.Receiver,
					rt.Method,
					rt.Path,
					rt.Target,
					fmt.Sprintf("%d", rt.Line),
				})
			}
		}
	}
	parts = append(parts, formatTabular("routes", []string{"file", "receiver", "method", "path", "target", "line"}, routeRows))

	var depRows [][]string
	for i := range r.Dependencies {
		d := &r.Dependencies[i]
		depRows = append(depRows, []string{
			d.Source,
			d.Target,
			strings.Join(d.Symbols, " "),
		})
	}
	parts = append(parts, formatTabular("dependencies", []string{"source", "target", "symbols"}, depRows))

	if len(r.Usages) > 0 {
		var usageRows [][]string
		for i := range r.Usages {
			u := &r.Usages[i]
			usageRows = append(usageRows, []string{u.File, u.Declaration, u.Symbol, u.Target})
		}
		parts = append(parts, formatTabular("usages", []string{"file", "declaration", "symbol", "target"}, usageRows))
	}

	return strings.Join(parts, "\n")
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
