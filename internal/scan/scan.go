// Package scan analyzes discovered files on a bounded worker pool and
// assembles the repository report.
package scan

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/phobologic/routemap/internal/apisurface"
	"github.com/phobologic/routemap/internal/discover"
	"github.com/phobologic/routemap/internal/esnode"
	"github.com/phobologic/routemap/internal/express"
	"github.com/phobologic/routemap/internal/graph"
	"github.com/phobologic/routemap/internal/model"
	"github.com/phobologic/routemap/internal/resolve"
	"github.com/phobologic/routemap/internal/source"
)

// Options configure a Run.
type Options struct {
	// Root is the repository directory the file paths are relative to.
	Root  string
	Files []discover.FileEntry
	// Workers bounds concurrent file analysis. Zero means GOMAXPROCS.
	Workers int
	Profile express.Profile
	RepoID  string
	Logger  *slog.Logger
}

// Result holds per-file facts in input order and the detected API surfaces
// ordered by root file path.
type Result struct {
	Files    []model.FileInfo
	Surfaces []*apisurface.Surface
}

var symbolKinds = map[string]model.SymbolKind{
	esnode.TypeClassDeclaration:      model.Class,
	esnode.TypeAbstractClassDecl:     model.Class,
	esnode.TypeFunctionDeclaration:   model.Function,
	esnode.TypeGeneratorFunctionDecl: model.Function,
	esnode.TypeLexicalDeclaration:    model.Variable,
	esnode.TypeVariableDeclaration:   model.Variable,
	esnode.TypeInterfaceDeclaration:  model.Interface,
	esnode.TypeTypeAliasDeclaration:  model.TypeAlias,
	esnode.TypeEnumDeclaration:       model.Enum,
}

// Run reads and analyzes every file in opts.Files. Unreadable or
// unparseable files are logged and skipped. Run returns early with the
// context's error when ctx is cancelled.
func Run(ctx context.Context, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	type analyzed struct {
		file *express.File
		info model.FileInfo
	}
	results := make([]*analyzed, len(opts.Files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, entry := range opts.Files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			f, info, err := analyze(gctx, opts.Root, entry, opts.Profile)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				logger.Warn("skipping file", "path", entry.Path, "err", err)
				return nil
			}
			logger.Debug("analyzed file", "path", entry.Path,
				"app", info.App, "router", info.Router, "routes", len(info.Routes))
			results[i] = &analyzed{file: f, info: info}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scanning: %w", err)
	}

	res := &Result{}
	var files []*express.File
	for _, r := range results {
		if r == nil {
			continue
		}
		files = append(files, r.file)
		res.Files = append(res.Files, r.info)
	}

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path()
	}
	index := resolve.NewIndex(paths...)
	for i := range res.Files {
		fi := &res.Files[i]
		for j := range fi.Imports {
			if target, ok := index.Resolve(fi.Path, fi.Imports[j].Specifier); ok {
				fi.Imports[j].Resolved = target
			}
		}
	}

	for _, f := range files {
		if !f.IsRootFile() {
			continue
		}
		s := apisurface.Build(opts.RepoID, f, files)
		logger.Debug("detected api", "name", s.Name(), "root", f.Path(), "endpoints", len(s.Endpoints()))
		res.Surfaces = append(res.Surfaces, s)
	}
	sort.Slice(res.Surfaces, func(i, j int) bool {
		return res.Surfaces[i].RootFile().Path() < res.Surfaces[j].RootFile().Path()
	})

	return res, nil
}

// analyze reads and parses one file and extracts its facts.
func analyze(ctx context.Context, root string, entry discover.FileEntry, p express.Profile) (*express.File, model.FileInfo, error) {
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(entry.Path)))
	if err != nil {
		return nil, model.FileInfo{}, err
	}

	sf := source.New(entry.Path, data)
	if _, err := sf.Parse(ctx); err != nil {
		return nil, model.FileInfo{}, err
	}
	rootNode, err := sf.Root()
	if err != nil {
		return nil, model.FileInfo{}, err
	}

	f := express.New(sf, p)
	info := model.FileInfo{
		Path:     entry.Path,
		Language: sf.Language(),
	}
	info.App, _ = f.AppIdentifier()
	info.Router, _ = f.RouterIdentifier()

	imports := rootNode.Imports()
	for name, spec := range imports {
		info.Imports = append(info.Imports, model.Import{Name: name, Specifier: spec})
	}
	sort.Slice(info.Imports, func(i, j int) bool {
		return info.Imports[i].Name < info.Imports[j].Name
	})

	for name, node := range rootNode.Declarations() {
		info.Declarations = append(info.Declarations, model.Declaration{
			Name: name,
			Kind: symbolKinds[node.Type()],
			Line: node.Line(),
			Uses: importedReferences(node, name, imports),
		})
	}
	sort.Slice(info.Declarations, func(i, j int) bool {
		a, b := info.Declarations[i], info.Declarations[j]
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Name < b.Name
	})

	info.Mounts = routes(f.RouterMounts())
	info.Routes = routes(f.RouteDefinitions())

	return f, info, nil
}

// importedReferences returns the sorted imported names that node refers to,
// not counting its own name.
func importedReferences(node *esnode.Node, name string, imports map[string]string) []string {
	var uses []string
	for ref := range node.UniqueIdentifierReferences(name) {
		if _, ok := imports[ref]; ok {
			uses = append(uses, ref)
		}
	}
	sort.Strings(uses)
	return uses
}

func routes(calls []express.RouteCall) []model.Route {
	if len(calls) == 0 {
		return nil
	}
	out := make([]model.Route, len(calls))
	for i, c := range calls {
		out[i] = model.Route{
			Method:   c.Method,
			Path:     c.Path,
			Receiver: c.Receiver,
			Target:   c.Target,
			Line:     c.Line,
		}
	}
	return out
}

// Report ranks the scanned files by import centrality and packages
// everything into a model.Report.
func (r *Result) Report(name string) *model.Report {
	files := make([]model.FileInfo, len(r.Files))
	copy(files, r.Files)

	deps := graph.BuildGraph(files)
	usages := graph.BuildUsages(files)
	graph.Rank(files, deps)

	apis := make([]model.API, 0, len(r.Surfaces))
	for _, s := range r.Surfaces {
		apis = append(apis, s.Record())
	}

	return &model.Report{
		RepoName:     name,
		Root:         name,
		APIs:         apis,
		Files:        files,
		Dependencies: deps,
		Usages:       usages,
	}
}
