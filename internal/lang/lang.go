// Package lang provides the grammar registry mapping file paths to
// tree-sitter languages, the parse entry point, and the embedded structural
// queries shared by the ECMAScript grammars.
package lang

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

//go:embed queries/*.scm
var queryFS embed.FS

// ErrUnsupportedLanguage is returned when no grammar is registered for a
// file's extension. Callers should skip the file.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Language holds tree-sitter configuration for a supported language.
type Language struct {
	Name       string
	Extensions []string
	lang       *sitter.Language

	queryMu sync.Mutex
	queries map[string]*compiledQuery
}

type compiledQuery struct {
	once  sync.Once
	query *sitter.Query
	err   error
}

// GetLanguage returns the tree-sitter Language pointer.
func (l *Language) GetLanguage() *sitter.Language {
	return l.lang
}

// NewParser creates a fresh tree-sitter parser for this language.
// Each goroutine must use its own parser (not thread-safe).
func (l *Language) NewParser() *sitter.Parser {
	p := sitter.NewParser()
	p.SetLanguage(l.lang)
	return p
}

// Query returns the embedded query queries/<name>.scm compiled for this
// language. Compilation happens once per language; the result is safe to
// share across goroutines.
func (l *Language) Query(name string) (*sitter.Query, error) {
	l.queryMu.Lock()
	if l.queries == nil {
		l.queries = make(map[string]*compiledQuery)
	}
	cq, ok := l.queries[name]
	if !ok {
		cq = &compiledQuery{}
		l.queries[name] = cq
	}
	l.queryMu.Unlock()

	cq.once.Do(func() {
		data, err := queryFS.ReadFile(fmt.Sprintf("queries/%s.scm", name))
		if err != nil {
			cq.err = fmt.Errorf("reading query %s: %w", name, err)
			return
		}
		q, err := sitter.NewQuery(data, l.lang)
		if err != nil {
			cq.err = fmt.Errorf("compiling query %s for %s: %w", name, l.Name, err)
			return
		}
		cq.query = q
	})
	return cq.query, cq.err
}

// MustQuery is like Query but panics on failure. The queries are embedded
// program text, so a failure means the query and the grammar disagree.
func (l *Language) MustQuery(name string) *sitter.Query {
	q, err := l.Query(name)
	if err != nil {
		panic(err)
	}
	return q
}

// Languages maps language names to their configuration.
// Populated by init() functions in per-language files.
var Languages = map[string]*Language{}

// extensionMap is built lazily after all init() functions have run.
var extensionMap map[string]string
var extensionOnce sync.Once

func getExtensionMap() map[string]string {
	extensionOnce.Do(func() {
		extensionMap = make(map[string]string)
		for _, l := range Languages {
			for _, ext := range l.Extensions {
				extensionMap[ext] = l.Name
			}
		}
	})
	return extensionMap
}

// ForExtension returns the language name for a file extension, or "" if unsupported.
func ForExtension(ext string) string {
	return getExtensionMap()[strings.ToLower(ext)]
}

// ForPath returns the grammar for a file path or bare file name. The second
// result is false when the extension has no registered grammar.
func ForPath(pathOrName string) (*Language, bool) {
	name := ForExtension(path.Ext(pathOrName))
	if name == "" {
		return nil, false
	}
	l, ok := Languages[name]
	return l, ok
}

// Parse parses src with the given grammar. The result depends only on its
// inputs; a tree containing error nodes is still returned as a success.
func Parse(ctx context.Context, l *Language, src []byte) (*sitter.Tree, error) {
	if l == nil {
		return nil, ErrUnsupportedLanguage
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tree, err := l.NewParser().ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parsing %s source: %w", l.Name, err)
	}
	return tree, nil
}

// NodeText returns the source text of a tree-sitter node.
func NodeText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}
