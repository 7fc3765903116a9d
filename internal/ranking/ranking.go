// Package ranking selects and filters the files shown in a report.
package ranking

import (
	"strings"

	"github.com/phobologic/routemap/internal/model"
)

// SelectFiles returns a new Report with only the top-ranked files.
// If maxFiles is <= 0 or >= len(files), the report is returned unchanged.
// APIs are never trimmed: they summarize the whole repository.
func SelectFiles(r *model.Report, maxFiles int) *model.Report {
	if maxFiles <= 0 || maxFiles >= len(r.Files) {
		return r
	}

	selected := r.Files[:maxFiles]
	selectedPaths := make(map[string]struct{}, maxFiles)
	for i := range selected {
		selectedPaths[selected[i].Path] = struct{}{}
	}

	return subset(r, selected, func(src, tgt bool) bool { return src && tgt }, selectedPaths)
}

// FilterByFile returns a new Report containing only files whose path
// contains substr (case-insensitive), with every dependency and usage edge
// touching those files, and the APIs rooted in them.
func FilterByFile(r *model.Report, substr string) *model.Report {
	lower := strings.ToLower(substr)

	matched := make(map[string]struct{})
	var files []model.FileInfo
	for i := range r.Files {
		if strings.Contains(strings.ToLower(r.Files[i].Path), lower) {
			matched[r.Files[i].Path] = struct{}{}
			files = append(files, r.Files[i])
		}
	}

	out := subset(r, files, func(src, tgt bool) bool { return src || tgt }, matched)

	var apis []model.API
	for i := range r.APIs {
		if _, ok := matched[r.APIs[i].RootFile]; ok {
			apis = append(apis, r.APIs[i])
		}
	}
	out.APIs = apis
	return out
}

// FilterByRoute returns a new Report containing only the APIs with an
// endpoint containing substr (case-insensitive), with their endpoint lists
// trimmed to the matches, and the files that define matching routes.
func FilterByRoute(r *model.Report, substr string) *model.Report {
	lower := strings.ToLower(substr)

	var apis []model.API
	for i := range r.APIs {
		api := r.APIs[i]
		var endpoints []string
		for _, e := range api.Endpoints {
			if strings.Contains(strings.ToLower(e), lower) {
				endpoints = append(endpoints, e)
			}
		}
		if len(endpoints) > 0 {
			api.Endpoints = endpoints
			apis = append(apis, api)
		}
	}

	matched := make(map[string]struct{})
	var files []model.FileInfo
	for i := range r.Files {
		fi := r.Files[i]
		var routes []model.Route
		for _, rt := range fi.Routes {
			endpoint := strings.ToUpper(rt.Method) + " " + rt.Path
			if strings.Contains(strings.ToLower(endpoint), lower) {
				routes = append(routes, rt)
			}
		}
		if len(routes) == 0 {
			continue
		}
		fi.Routes = routes
		matched[fi.Path] = struct{}{}
		files = append(files, fi)
	}

	out := subset(r, files, func(src, tgt bool) bool { return src || tgt }, matched)
	out.APIs = apis
	return out
}

// subset builds a Report over files, keeping edges for which keep returns
// true given whether each endpoint is in paths.
func subset(r *model.Report, files []model.FileInfo, keep func(src, tgt bool) bool, paths map[string]struct{}) *model.Report {
	var deps []model.Dependency
	for i := range r.Dependencies {
		d := &r.Dependencies[i]
		_, srcOK := paths[d.Source]
		_, tgtOK := paths[d.Target]
		if keep(srcOK, tgtOK) {
			deps = append(deps, *d)
		}
	}

	var usages []model.Usage
	for i := range r.Usages {
		u := &r.Usages[i]
		_, srcOK := paths[u.File]
		_, tgtOK := paths[u.Target]
		if keep(srcOK, tgtOK) {
			usages = append(usages, *u)
		}
	}

	return &model.Report{
		RepoName:     r.RepoName,
		Root:         r.Root,
		APIs:         r.APIs,
		Files:        files,
		Dependencies: deps,
		Usages:       usages,
	}
}
