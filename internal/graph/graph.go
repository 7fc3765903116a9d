// Package graph builds the local import graph and computes PageRank over it.
package graph

import (
	"math"
	"sort"

	"github.com/phobologic/routemap/internal/model"
)

// BuildGraph creates dependency edges from resolved local imports.
// Returns a list of dependencies suitable for the Report.
func BuildGraph(fileInfos []model.FileInfo) []model.Dependency {
	known := make(map[string]struct{}, len(fileInfos))
	for i := range fileInfos {
		known[fileInfos[i].Path] = struct{}{}
	}

	// Build edges: source → target → list of imported names
	type edgeKey struct{ src, tgt string }
	edgeSymbols := make(map[edgeKey][]string)

	for i := range fileInfos {
		fi := &fileInfos[i]
		for j := range fi.Imports {
			imp := &fi.Imports[j]
			if imp.Resolved == "" || imp.Resolved == fi.Path {
				continue
			}
			if _, ok := known[imp.Resolved]; !ok {
				continue
			}
			key := edgeKey{fi.Path, imp.Resolved}
			if !contains(edgeSymbols[key], imp.Name) {
				edgeSymbols[key] = append(edgeSymbols[key], imp.Name)
			}
		}
	}

	var deps []model.Dependency
	for key, syms := range edgeSymbols {
		sort.Strings(syms)
		deps = append(deps, model.Dependency{
			Source:  key.src,
			Target:  key.tgt,
			Symbols: syms,
		})
	}

	// Sort for deterministic output
	sort.Slice(deps, func(i, j int) bool {
		if deps[i].Source != deps[j].Source {
			return deps[i].Source < deps[j].Source
		}
		return deps[i].Target < deps[j].Target
	})

	return deps
}

// BuildUsages links each declaration to the imported names it references,
// keeping only names whose import resolved to another scanned file. Edges are
// deduplicated and sorted.
func BuildUsages(fileInfos []model.FileInfo) []model.Usage {
	type usageKey struct{ file, decl, symbol string }
	seen := make(map[usageKey]struct{})

	var usages []model.Usage
	for i := range fileInfos {
		fi := &fileInfos[i]
		resolved := make(map[string]string, len(fi.Imports))
		for j := range fi.Imports {
			if imp := &fi.Imports[j]; imp.Resolved != "" && imp.Resolved != fi.Path {
				resolved[imp.Name] = imp.Resolved
			}
		}
		for j := range fi.Declarations {
			decl := &fi.Declarations[j]
			for _, sym := range decl.Uses {
				target, ok := resolved[sym]
				if !ok {
					continue
				}
				key := usageKey{fi.Path, decl.Name, sym}
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				usages = append(usages, model.Usage{
					File:        fi.Path,
					Declaration: decl.Name,
					Symbol:      sym,
					Target:      target,
				})
			}
		}
	}

	sort.Slice(usages, func(i, j int) bool {
		a, b := usages[i], usages[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Declaration != b.Declaration {
			return a.Declaration < b.Declaration
		}
		return a.Symbol < b.Symbol
	})

	return usages
}

// Rank applies PageRank to fileInfos and sorts them by rank descending,
// breaking ties by path.
func Rank(fileInfos []model.FileInfo, deps []model.Dependency) {
	if len(fileInfos) == 0 {
		return
	}

	if len(deps) == 0 {
		uniform := 1.0 / float64(len(fileInfos))
		for i := range fileInfos {
			fileInfos[i].Rank = uniform
		}
		sortByRank(fileInfos)
		return
	}

	// Edge from source to target means source imports target.
	// Each imported name is one edge, so heavier imports carry more weight.
	outEdges := make(map[string][]string)
	outDegree := make(map[string]int)
	nodes := make(map[string]struct{})

	for i := range fileInfos {
		nodes[fileInfos[i].Path] = struct{}{}
	}

	for _, d := range deps {
		for range d.Symbols {
			outEdges[d.Source] = append(outEdges[d.Source], d.Target)
			outDegree[d.Source]++
		}
	}

	ranks := pageRank(nodes, outEdges, outDegree, 0.85, 100, 1e-6)

	for i := range fileInfos {
		fileInfos[i].Rank = ranks[fileInfos[i].Path]
	}

	sortByRank(fileInfos)
}

func sortByRank(fileInfos []model.FileInfo) {
	sort.SliceStable(fileInfos, func(i, j int) bool {
		if fileInfos[i].Rank != fileInfos[j].Rank {
			return fileInfos[i].Rank > fileInfos[j].Rank
		}
		return fileInfos[i].Path < fileInfos[j].Path
	})
}

func pageRank(
	nodes map[string]struct{},
	outEdges map[string][]string,
	outDegree map[string]int,
	alpha float64,
	maxIter int,
	tol float64,
) map[string]float64 {
	n := len(nodes)
	if n == 0 {
		return nil
	}

	rank := make(map[string]float64, n)
	initial := 1.0 / float64(n)
	for node := range nodes {
		rank[node] = initial
	}

	teleport := (1.0 - alpha) / float64(n)

	for iter := 0; iter < maxIter; iter++ {
		newRank := make(map[string]float64, n)

		// Dangling node contribution (nodes with no outgoing edges)
		var danglingSum float64
		for node := range nodes {
			if outDegree[node] == 0 {
				danglingSum += rank[node]
			}
		}
		danglingContrib := alpha * danglingSum / float64(n)

		for node := range nodes {
			newRank[node] = teleport + danglingContrib
		}

		for src, targets := range outEdges {
			deg := float64(outDegree[src])
			contrib := alpha * rank[src] / deg
			for _, tgt := range targets {
				newRank[tgt] += contrib
			}
		}

		var diff float64
		for node := range nodes {
			diff += math.Abs(newRank[node] - rank[node])
		}

		rank = newRank

		if diff < tol {
			break
		}
	}

	return rank
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
