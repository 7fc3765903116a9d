// Package source models one repository file handed to the analyzer: its
// path, its contents, and the syntax tree parsed from them on demand.
package source

import (
	"context"
	"encoding/json"
	"path"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/routemap/internal/esnode"
	"github.com/phobologic/routemap/internal/lang"
	"github.com/phobologic/routemap/internal/resolve"
)

// File is a source file identified by its repository-relative path. The
// contents never change after construction; the tree is parsed at most once,
// not counting attempts cut short by a cancelled context.
type File struct {
	path     string
	contents []byte

	treeMu  sync.Mutex
	parsed  bool
	tree    *sitter.Tree
	treeErr error

	rootOnce sync.Once
	root     *esnode.Node
}

// New returns a File for path with the given contents.
func New(path string, contents []byte) *File {
	return &File{path: path, contents: contents}
}

// Path returns the repository-relative path.
func (f *File) Path() string { return f.path }

// Contents returns the raw source.
func (f *File) Contents() []byte { return f.contents }

// Dir returns the directory containing the file.
func (f *File) Dir() string { return path.Dir(f.path) }

// Ext returns the file extension, including the dot.
func (f *File) Ext() string { return path.Ext(f.path) }

// Grammar returns the registered grammar for the file's extension.
func (f *File) Grammar() (*lang.Language, bool) {
	return lang.ForPath(f.path)
}

// Language returns the language name derived from the path, or "" when the
// extension is not supported. Contents are never inspected.
func (f *File) Language() string {
	l, ok := f.Grammar()
	if !ok {
		return ""
	}
	return l.Name
}

// Tree returns the file's syntax tree, parsing it on the first call. It
// returns lang.ErrUnsupportedLanguage when no grammar matches the path.
func (f *File) Tree() (*sitter.Tree, error) {
	return f.Parse(context.Background())
}

// Parse is Tree with a context that can cancel the parsing call. A failure
// caused by ctx is returned but not cached, so a later call parses again.
// Once a tree or a definitive error is cached, ctx is ignored.
func (f *File) Parse(ctx context.Context) (*sitter.Tree, error) {
	f.treeMu.Lock()
	defer f.treeMu.Unlock()
	if f.parsed {
		return f.tree, f.treeErr
	}

	l, ok := f.Grammar()
	if !ok {
		f.parsed, f.treeErr = true, lang.ErrUnsupportedLanguage
		return nil, f.treeErr
	}
	tree, err := lang.Parse(ctx, l, f.contents)
	if err != nil && ctx.Err() != nil {
		return nil, err
	}
	f.parsed, f.tree, f.treeErr = true, tree, err
	return f.tree, f.treeErr
}

// Root returns the semantic node wrapping the tree root. It is created once
// so that its memoized views are shared by every caller.
func (f *File) Root() (*esnode.Node, error) {
	tree, err := f.Tree()
	if err != nil {
		return nil, err
	}
	f.rootOnce.Do(func() {
		f.root = esnode.Wrap(tree.RootNode(), f.contents)
	})
	return f.root, nil
}

// HasErrors reports whether the parsed tree contains error nodes. Analysis
// proceeds on such trees anyway; this is for callers that want strictness.
func (f *File) HasErrors() bool {
	tree, err := f.Tree()
	if err != nil {
		return false
	}
	return tree.RootNode().HasError()
}

// Imports returns the root node's shared import map, or nil for unsupported
// files. Callers must not modify it.
func (f *File) Imports() map[string]string {
	root, err := f.Root()
	if err != nil {
		return nil
	}
	return root.Imports()
}

// Declarations returns the root node's shared declaration map, or nil for
// unsupported files. Callers must not modify it.
func (f *File) Declarations() map[string]*esnode.Node {
	root, err := f.Root()
	if err != nil {
		return nil
	}
	return root.Declarations()
}

// NormalizeLocalImportPath resolves a relative import specifier written in
// this file to a repository-relative path. The second result is false for
// package imports.
func (f *File) NormalizeLocalImportPath(spec string) (string, bool) {
	return resolve.NormalizeLocalImportPath(f.path, spec)
}

type fileJSON struct {
	Path     string `json:"path"`
	Language string `json:"language,omitempty"`
	Dirname  string `json:"dirname"`
	Extname  string `json:"extname"`
}

// MarshalJSON encodes the file's identifying metadata, not its contents.
func (f *File) MarshalJSON() ([]byte, error) {
	return json.Marshal(fileJSON{
		Path:     f.path,
		Language: f.Language(),
		Dirname:  f.Dir(),
		Extname:  f.Ext(),
	})
}
