// Package apisurface packages a detected Express application and the
// endpoints reachable from it into a single documentable record.
package apisurface

import (
	"encoding/json"
	"path"
	"regexp"
	"strings"

	"github.com/phobologic/routemap/internal/express"
	"github.com/phobologic/routemap/internal/model"
	"github.com/phobologic/routemap/internal/resolve"
)

// defaultName is used when there is no root directory to derive a name from.
const defaultName = "API"

var (
	nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9]`)
	trailingAPI     = regexp.MustCompile(`(?i) api ?$`)
)

// Options are the fields of a Surface. Name may be left empty to derive it
// from RootDir.
type Options struct {
	RepoID                string
	Name                  string
	RootDir               string
	RootFile              *express.File
	Endpoints             []string
	DocumentationFilePath string
	Documentation         string
}

// Surface is one Express application: its root file, its directory and the
// endpoints it serves.
type Surface struct {
	repoID                string
	name                  string
	rootDir               string
	rootFile              *express.File
	endpoints             []string
	documentationFilePath string
	documentation         string
}

// New returns a Surface populated from o. An empty o.Name is derived from
// o.RootDir here, so a Surface is never written to by its getters.
func New(o Options) *Surface {
	name := o.Name
	if name == "" {
		name = DeriveName(o.RootDir)
	}
	return &Surface{
		repoID:                o.RepoID,
		name:                  name,
		rootDir:               o.RootDir,
		rootFile:              o.RootFile,
		endpoints:             o.Endpoints,
		documentationFilePath: o.DocumentationFilePath,
		documentation:         o.Documentation,
	}
}

// Name returns the explicit name if one was set, otherwise a name guessed
// from the root directory, e.g. "Github API" for "apps/github-api".
func (s *Surface) Name() string {
	return s.name
}

// SetName overrides the derived name. An empty name restores it.
func (s *Surface) SetName(name string) {
	if name == "" {
		name = DeriveName(s.rootDir)
	}
	s.name = name
}

// RepoID returns the external repository identifier.
func (s *Surface) RepoID() string {
	return s.repoID
}

// RootDir returns the directory of the root file.
func (s *Surface) RootDir() string {
	return s.rootDir
}

func (s *Surface) RootFile() *express.File {
	return s.rootFile
}

func (s *Surface) Endpoints() []string {
	return s.endpoints
}

func (s *Surface) Documentation() string {
	return s.documentation
}

func (s *Surface) DocumentationFilePath() string {
	return s.documentationFilePath
}

// SetDocumentation attaches generated documentation and where it lives.
func (s *Surface) SetDocumentation(filePath, content string) {
	s.documentationFilePath = filePath
	s.documentation = content
}

// DeriveName guesses an API name from the last element of rootDir:
// non-alphanumerics become spaces, words are capitalized, a trailing "api"
// word is dropped, and " API" is appended.
func DeriveName(rootDir string) string {
	if rootDir == "" || rootDir == "." || rootDir == "/" {
		return defaultName
	}
	base := path.Base(strings.ReplaceAll(rootDir, `\`, "/"))
	words := strings.ToLower(nonAlphanumeric.ReplaceAllString(base, " "))
	name := trailingAPI.ReplaceAllString(titleize(words), "")
	if name == "" {
		return defaultName
	}
	return name + " " + defaultName
}

// titleize capitalizes the first letter of each space-separated word and
// collapses runs of spaces.
func titleize(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Build assembles the surface rooted at root. Endpoints are root's route
// definitions, followed by those of every router reachable through root's
// mounts: a mount's target is looked up in the importing file's import map
// and resolved against linked, and that file's routes are prefixed with the
// mount path. Endpoints are deduplicated in first-seen order.
func Build(repoID string, root *express.File, linked []*express.File) *Surface {
	byPath := make(map[string]*express.File, len(linked))
	paths := make([]string, 0, len(linked))
	for _, f := range linked {
		byPath[f.Path()] = f
		paths = append(paths, f.Path())
	}
	l := &linker{
		index:   resolve.NewIndex(paths...),
		byPath:  byPath,
		seen:    make(map[string]struct{}),
		visited: map[string]struct{}{root.Path(): {}},
	}
	l.collect(root, "")

	return New(Options{
		RepoID:    repoID,
		RootDir:   root.Dir(),
		RootFile:  root,
		Endpoints: l.endpoints,
	})
}

type linker struct {
	index     resolve.Index
	byPath    map[string]*express.File
	seen      map[string]struct{}
	visited   map[string]struct{}
	endpoints []string
}

func (l *linker) add(endpoint string) {
	if _, dup := l.seen[endpoint]; dup {
		return
	}
	l.seen[endpoint] = struct{}{}
	l.endpoints = append(l.endpoints, endpoint)
}

// collect adds f's endpoints under prefix, then follows f's mounts.
func (l *linker) collect(f *express.File, prefix string) {
	router, hasRouter := f.RouterIdentifier()
	app, hasApp := f.AppIdentifier()

	// A router declared and mounted in the same file.
	localPrefix := make(map[string]string)
	if hasRouter && hasApp {
		for _, m := range f.RouterMounts() {
			if m.Receiver == app && m.Target == router {
				localPrefix[router] = m.Path
				break
			}
		}
	}

	for _, r := range f.RouteDefinitions() {
		if r.Path == "" {
			continue
		}
		full := JoinRoute(prefix, JoinRoute(localPrefix[r.Receiver], r.Path))
		l.add(strings.ToUpper(r.Method) + " " + full)
	}

	imports := f.Imports()
	for _, m := range f.RouterMounts() {
		if m.Target == "" || (hasRouter && m.Target == router) {
			continue
		}
		spec, ok := imports[m.Target]
		if !ok {
			continue
		}
		target, ok := l.index.Resolve(f.Path(), spec)
		if !ok {
			continue
		}
		child, ok := l.byPath[target]
		if !ok {
			continue
		}
		if _, cycle := l.visited[target]; cycle {
			continue
		}
		l.visited[target] = struct{}{}
		l.collect(child, JoinRoute(prefix, m.Path))
		delete(l.visited, target)
	}
}

// JoinRoute joins a mount prefix and a route path with exactly one slash
// between them. A route of "/" under a prefix is the prefix itself.
func JoinRoute(prefix, route string) string {
	if prefix == "" {
		return route
	}
	if route == "" || route == "/" {
		return prefix
	}
	return strings.TrimRight(prefix, "/") + "/" + strings.TrimLeft(route, "/")
}

// Record converts the surface to its report form.
func (s *Surface) Record() model.API {
	api := model.API{
		Name:                  s.Name(),
		RepoID:                s.repoID,
		RootDir:               s.rootDir,
		Endpoints:             s.endpoints,
		DocumentationFilePath: s.documentationFilePath,
	}
	if s.rootFile != nil {
		api.RootFile = s.rootFile.Path()
	}
	if api.Endpoints == nil {
		api.Endpoints = []string{}
	}
	return api
}

type fileDoc struct {
	Path     string `json:"path" yaml:"path"`
	Language string `json:"language,omitempty" yaml:"language,omitempty"`
	Dirname  string `json:"dirname" yaml:"dirname"`
	Extname  string `json:"extname" yaml:"extname"`
}

type surfaceDoc struct {
	ExternalRepoID        string   `json:"externalRepoId" yaml:"externalRepoId"`
	Name                  string   `json:"name" yaml:"name"`
	RootDir               string   `json:"rootDir,omitempty" yaml:"rootDir,omitempty"`
	RootFile              *fileDoc `json:"rootFile,omitempty" yaml:"rootFile,omitempty"`
	Endpoints             []string `json:"endpoints,omitempty" yaml:"endpoints,omitempty"`
	DocumentationFilePath string   `json:"documentationFilePath,omitempty" yaml:"documentationFilePath,omitempty"`
}

func (s *Surface) doc() surfaceDoc {
	d := surfaceDoc{
		ExternalRepoID:        s.repoID,
		Name:                  s.Name(),
		RootDir:               s.rootDir,
		Endpoints:             s.endpoints,
		DocumentationFilePath: s.documentationFilePath,
	}
	if f := s.rootFile; f != nil {
		d.RootFile = &fileDoc{
			Path:     f.Path(),
			Language: f.Language(),
			Dirname:  f.Dir(),
			Extname:  f.Ext(),
		}
	}
	return d
}

// MarshalJSON encodes the surface's metadata. Documentation content is left
// out; only its path is recorded.
func (s *Surface) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.doc())
}

// MarshalYAML implements yaml.Marshaler with the same fields as MarshalJSON.
func (s *Surface) MarshalYAML() (any, error) {
	return s.doc(), nil
}
