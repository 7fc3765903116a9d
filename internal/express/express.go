// Package express detects Express applications and routers in JavaScript and
// TypeScript files and extracts their mount and route call sites.
package express

import (
	"slices"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/routemap/internal/esnode"
	"github.com/phobologic/routemap/internal/source"
)

// Query names under internal/lang/queries.
const (
	queryApp       = "express_app"
	queryRouter    = "express_router"
	queryRouteCall = "route_call"
)

// Profile describes how a routing framework creates applications and
// routers and which receiver methods mount or define routes.
type Profile struct {
	Name string
	// AppFactory is compared case-insensitively, so `Express()` counts.
	AppFactory string
	// Aliases are extra app factory names, e.g. a project's own wrapper.
	Aliases []string
	// RouterFactory is compared exactly.
	RouterFactory string
	MountMethods  []string
	RouteMethods  []string
}

// Express is the built-in profile for the express package.
var Express = Profile{
	Name:          "express",
	AppFactory:    "express",
	RouterFactory: "Router",
	MountMethods:  []string{"use"},
	RouteMethods:  []string{"get", "post", "put", "patch", "delete", "options", "head", "all"},
}

// WithAppFactories returns a copy of p that also accepts names as app
// factories.
func (p Profile) WithAppFactories(names ...string) Profile {
	p.Aliases = append(slices.Clone(p.Aliases), names...)
	return p
}

func (p Profile) isAppFactory(name string) bool {
	if strings.EqualFold(name, p.AppFactory) {
		return true
	}
	for _, a := range p.Aliases {
		if strings.EqualFold(name, a) {
			return true
		}
	}
	return false
}

// RouteCall is one `<receiver>.<method>(...)` call on an app or router.
type RouteCall struct {
	Receiver string `json:"receiver" yaml:"receiver"`
	Method   string `json:"method" yaml:"method"`
	// Path is the first argument's contents when it is a string literal.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
	// Target is the last argument when it is a bare identifier, such as the
	// router passed to `app.use("/users", users)`.
	Target string `json:"target,omitempty" yaml:"target,omitempty"`
	Line   int    `json:"line" yaml:"line"`
}

// Endpoint formats a route definition as "METHOD path".
func (c RouteCall) Endpoint() string {
	return strings.ToUpper(c.Method) + " " + c.Path
}

// File is a source file seen through a framework Profile. All derived
// attributes are computed from the syntax tree on first use and cached.
type File struct {
	*source.File
	profile Profile

	appOnce sync.Once
	app     string
	hasApp  bool

	routerOnce sync.Once
	router     string
	hasRouter  bool

	callsOnce sync.Once
	mounts    []RouteCall
	routes    []RouteCall
}

// New returns f viewed through p.
func New(f *source.File, p Profile) *File {
	return &File{File: f, profile: p}
}

// Profile returns the framework profile the file is analyzed with.
func (f *File) Profile() Profile {
	return f.profile
}

// AppIdentifier returns the name of the first variable initialized by a
// call to the app factory, e.g. "app" for `const app = express()`.
func (f *File) AppIdentifier() (string, bool) {
	f.appOnce.Do(func() {
		f.eachMatch(queryApp, func(m match) bool {
			if !f.profile.isAppFactory(m.text("function.id")) {
				return true
			}
			f.app, f.hasApp = m.mustText("var.id"), true
			return false
		})
	})
	return f.app, f.hasApp
}

// RouterIdentifier returns the name of the first variable initialized by
// `Router()` or `<x>.Router()`.
func (f *File) RouterIdentifier() (string, bool) {
	f.routerOnce.Do(func() {
		f.eachMatch(queryRouter, func(m match) bool {
			callee := m.text("function.id")
			if callee == "" {
				callee = m.text("property.id")
			}
			if callee != f.profile.RouterFactory {
				return true
			}
			f.router, f.hasRouter = m.mustText("var.id"), true
			return false
		})
	})
	return f.router, f.hasRouter
}

// IsRootFile reports whether the file creates an application, which makes it
// the root of an API surface.
func (f *File) IsRootFile() bool {
	_, ok := f.AppIdentifier()
	return ok
}

// RouterMounts returns the mount calls made on the file's app or router, in
// document order. The slice is shared; callers must not modify it.
func (f *File) RouterMounts() []RouteCall {
	f.collectCalls()
	return f.mounts
}

// RouteDefinitions returns the route definition calls made on the file's app
// or router, in document order. The slice is shared; callers must not modify
// it.
func (f *File) RouteDefinitions() []RouteCall {
	f.collectCalls()
	return f.routes
}

// Endpoints returns "METHOD path" for each route definition with a literal
// path.
func (f *File) Endpoints() []string {
	var out []string
	for _, r := range f.RouteDefinitions() {
		if r.Path == "" {
			continue
		}
		out = append(out, r.Endpoint())
	}
	return out
}

func (f *File) collectCalls() {
	f.callsOnce.Do(func() {
		receivers := make(map[string]struct{}, 2)
		if app, ok := f.AppIdentifier(); ok {
			receivers[app] = struct{}{}
		}
		if router, ok := f.RouterIdentifier(); ok {
			receivers[router] = struct{}{}
		}
		if len(receivers) == 0 {
			return
		}

		f.eachMatch(queryRouteCall, func(m match) bool {
			receiver := m.text("receiver.id")
			if _, ok := receivers[receiver]; !ok {
				return true
			}
			method := m.text("method.id")
			isMount := slices.Contains(f.profile.MountMethods, method)
			isRoute := slices.Contains(f.profile.RouteMethods, method)
			if !isMount && !isRoute {
				return true
			}

			call := RouteCall{
				Receiver: receiver,
				Method:   method,
				Line:     int(m.captures["call"].StartPoint().Row) + 1,
			}
			if args, ok := m.captures["args"]; ok {
				call.Path, call.Target = callArguments(esnode.Wrap(args, f.Contents()))
			}
			if isMount {
				f.mounts = append(f.mounts, call)
			} else {
				f.routes = append(f.routes, call)
			}
			return true
		})
	})
}

// callArguments returns the literal path of the first argument and the
// identifier name of the last one. Template literals count as paths only
// when they have no substitutions.
func callArguments(args *esnode.Node) (path, target string) {
	var list []*esnode.Node
	for _, a := range args.Children() {
		if a.Type() != esnode.TypeComment {
			list = append(list, a)
		}
	}
	if len(list) == 0 {
		return "", ""
	}
	if s, ok := esnode.StaticString(list[0]); ok {
		path = s
	}
	if last := list[len(list)-1]; last.Type() == esnode.TypeIdentifier {
		target = last.Text()
	}
	return path, target
}

type match struct {
	captures map[string]*sitter.Node
	src      []byte
}

func (m match) text(name string) string {
	n, ok := m.captures[name]
	if !ok {
		return ""
	}
	return string(m.src[n.StartByte():n.EndByte()])
}

// mustText panics when the capture is missing: every query declares it, so
// its absence means the query and the grammar disagree.
func (m match) mustText(name string) string {
	if _, ok := m.captures[name]; !ok {
		panic("express: query match without @" + name + " capture")
	}
	return m.text(name)
}

// eachMatch runs the named query over the file's tree and calls fn for each
// match in document order until fn returns false. Unsupported files yield
// no matches.
func (f *File) eachMatch(name string, fn func(match) bool) {
	l, ok := f.Grammar()
	if !ok {
		return
	}
	tree, err := f.Tree()
	if err != nil {
		return
	}
	q := l.MustQuery(name)

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q, tree.RootNode())

	for {
		m, ok := qc.NextMatch()
		if !ok {
			return
		}
		captures := make(map[string]*sitter.Node, len(m.Captures))
		for _, c := range m.Captures {
			captures[q.CaptureNameForId(c.Index)] = c.Node
		}
		if !fn(match{captures: captures, src: f.Contents()}) {
			return
		}
	}
}
