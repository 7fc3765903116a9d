// Package esnode wraps tree-sitter nodes from the JavaScript and TypeScript
// grammars and derives memoized structural facts from them: the node's own
// identifier, call-initialized variables, import bindings, top-level
// declarations and referenced identifier names.
//
// Everything here is structural. No scopes are tracked, so the facts are a
// best-effort approximation and not name resolution.
package esnode

import (
	"strings"
	"sync"
	"sync/atomic"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/routemap/internal/lang"
)

// Node types from the tree-sitter-javascript and tree-sitter-typescript
// grammars.
const (
	TypeProgram               = "program"
	TypeIdentifier            = "identifier"
	TypeTypeIdentifier        = "type_identifier"
	TypePropertyIdentifier    = "property_identifier"
	TypeVariableDeclarator    = "variable_declarator"
	TypeCallExpression        = "call_expression"
	TypeMemberExpression      = "member_expression"
	TypeArguments             = "arguments"
	TypeImportStatement       = "import_statement"
	TypeImportClause          = "import_clause"
	TypeExportStatement       = "export_statement"
	TypeString                = "string"
	TypeTemplateString        = "template_string"
	TypeTemplateSubstitution  = "template_substitution"
	TypeComment               = "comment"
	TypeClassDeclaration      = "class_declaration"
	TypeAbstractClassDecl     = "abstract_class_declaration"
	TypeFunctionDeclaration   = "function_declaration"
	TypeGeneratorFunctionDecl = "generator_function_declaration"
	TypeLexicalDeclaration    = "lexical_declaration"
	TypeVariableDeclaration   = "variable_declaration"
	TypeInterfaceDeclaration  = "interface_declaration"
	TypeTypeAliasDeclaration  = "type_alias_declaration"
	TypeEnumDeclaration       = "enum_declaration"
)

// identifierTypes are the node types that name a declaration. TypeScript
// names classes, interfaces and type aliases with type_identifier.
var identifierTypes = []string{TypeIdentifier, TypeTypeIdentifier}

var declarationTypes = []string{
	TypeClassDeclaration,
	TypeAbstractClassDecl,
	TypeFunctionDeclaration,
	TypeGeneratorFunctionDecl,
	TypeLexicalDeclaration,
	TypeVariableDeclaration,
	TypeInterfaceDeclaration,
	TypeTypeAliasDeclaration,
	TypeEnumDeclaration,
}

// Node is a tree-sitter node plus the source it was parsed from. Derived
// views are computed on first access and cached for the life of the Node.
// A Node never modifies the tree it wraps.
type Node struct {
	inner *sitter.Node
	src   []byte

	identOnce sync.Once
	ident     string
	hasIdent  bool

	varsOnce sync.Once
	vars     map[string]*Node

	importsOnce sync.Once
	imports     map[string]string

	declsOnce sync.Once
	decls     map[string]*Node

	// derivations counts memoized computations; tests use it to check that
	// each view is built once.
	derivations atomic.Int32
}

// Wrap returns a Node for n. src must be the exact source n was parsed from.
func Wrap(n *sitter.Node, src []byte) *Node {
	return &Node{inner: n, src: src}
}

// Inner returns the wrapped tree-sitter node.
func (n *Node) Inner() *sitter.Node {
	return n.inner
}

// Source returns the source bytes the node was parsed from.
func (n *Node) Source() []byte {
	return n.src
}

// Type returns the grammar type of the node, e.g. "call_expression".
func (n *Node) Type() string {
	return n.inner.Type()
}

// Text returns the node's source text.
func (n *Node) Text() string {
	return lang.NodeText(n.inner, n.src)
}

// Line returns the 1-based line the node starts on.
func (n *Node) Line() int {
	return int(n.inner.StartPoint().Row) + 1
}

// Field returns the child stored under a grammar field name such as
// "name" or "value".
func (n *Node) Field(name string) (*Node, bool) {
	c := n.inner.ChildByFieldName(name)
	if c == nil {
		return nil, false
	}
	return Wrap(c, n.src), true
}

// Children returns all direct named children.
func (n *Node) Children() []*Node {
	out := make([]*Node, 0, n.inner.NamedChildCount())
	for i := 0; i < int(n.inner.NamedChildCount()); i++ {
		out = append(out, Wrap(n.inner.NamedChild(i), n.src))
	}
	return out
}

// ChildrenOfType returns the direct named children whose type is one of types.
func (n *Node) ChildrenOfType(types ...string) []*Node {
	var out []*Node
	for i := 0; i < int(n.inner.NamedChildCount()); i++ {
		c := n.inner.NamedChild(i)
		if hasType(c, types) {
			out = append(out, Wrap(c, n.src))
		}
	}
	return out
}

// FirstChildOfType returns the first direct named child whose type is one of types.
func (n *Node) FirstChildOfType(types ...string) (*Node, bool) {
	for i := 0; i < int(n.inner.NamedChildCount()); i++ {
		c := n.inner.NamedChild(i)
		if hasType(c, types) {
			return Wrap(c, n.src), true
		}
	}
	return nil, false
}

// Identifier returns the text of the node's first direct identifier child.
// The program root and anonymous expressions have none.
func (n *Node) Identifier() (string, bool) {
	n.identOnce.Do(func() {
		if c, ok := n.FirstChildOfType(identifierTypes...); ok {
			n.ident, n.hasIdent = c.Text(), true
		}
	})
	return n.ident, n.hasIdent
}

// Variables maps each declared variable name to its initializer, for
// declarators anywhere under n whose initializer is a call expression.
// Other initializers (literals, objects, functions) are left out. When a name
// is declared more than once the first declarator in document order wins.
// The map is computed once and shared; callers must not modify it.
func (n *Node) Variables() map[string]*Node {
	n.varsOnce.Do(func() {
		n.derivations.Add(1)
		vars := make(map[string]*Node)
		walk(n.inner, func(c *sitter.Node) {
			if c.Type() != TypeVariableDeclarator {
				return
			}
			decl := Wrap(c, n.src)
			name, ok := decl.Identifier()
			if !ok {
				return
			}
			value, ok := decl.Field("value")
			if !ok || value.Type() != TypeCallExpression {
				return
			}
			if _, seen := vars[name]; !seen {
				vars[name] = value
			}
		})
		n.vars = vars
	})
	return n.vars
}

// Imports maps locally bound names to module specifiers. ES module imports
// directly under n are read first; CommonJS bindings of the form
// `const x = require("y")` are added after, never replacing an ES binding.
//
// ES import names come from the import clause text with braces and
// whitespace removed, so `import { a as b }` binds "aasb", not "b".
// The map is computed once and shared; callers must not modify it.
func (n *Node) Imports() map[string]string {
	n.importsOnce.Do(func() {
		n.derivations.Add(1)
		imports := make(map[string]string)

		for _, stmt := range n.ChildrenOfType(TypeImportStatement) {
			clause, ok := stmt.FirstChildOfType(TypeImportClause)
			if !ok {
				continue
			}
			source, ok := stmt.Field("source")
			if !ok {
				if source, ok = stmt.FirstChildOfType(TypeString); !ok {
					continue
				}
			}
			spec := LiteralText(source)
			for _, name := range splitImportClause(clause.Text()) {
				imports[name] = spec
			}
		}

		for name, call := range n.Variables() {
			if _, taken := imports[name]; taken {
				continue
			}
			fn, ok := call.Field("function")
			if !ok || fn.Type() != TypeIdentifier || fn.Text() != "require" {
				continue
			}
			arg, ok := firstArgument(call)
			if !ok {
				continue
			}
			imports[name] = LiteralText(arg)
		}

		n.imports = imports
	})
	return n.imports
}

// Declarations maps the names of top-level declarations directly under n
// to their declaring nodes. Declarations wrapped in `export` are included.
// A var/let/const declaration contributes one entry per declarator, each
// pointing at the whole declaration. Anonymous declarations are skipped.
// The map is computed once and shared; callers must not modify it.
func (n *Node) Declarations() map[string]*Node {
	n.declsOnce.Do(func() {
		n.derivations.Add(1)
		decls := make(map[string]*Node)
		add := func(name string, d *Node) {
			if _, seen := decls[name]; !seen {
				decls[name] = d
			}
		}

		for _, d := range n.topLevelDeclarations() {
			if name, ok := d.Identifier(); ok {
				add(name, d)
				continue
			}
			if d.Type() != TypeLexicalDeclaration && d.Type() != TypeVariableDeclaration {
				continue
			}
			for _, declarator := range d.ChildrenOfType(TypeVariableDeclarator) {
				if name, ok := declarator.Identifier(); ok {
					add(name, d)
				}
			}
		}

		n.decls = decls
	})
	return n.decls
}

func (n *Node) topLevelDeclarations() []*Node {
	var out []*Node
	for i := 0; i < int(n.inner.NamedChildCount()); i++ {
		c := n.inner.NamedChild(i)
		if c.Type() == TypeExportStatement {
			c = c.ChildByFieldName("declaration")
			if c == nil {
				continue
			}
		}
		if hasType(c, declarationTypes) {
			out = append(out, Wrap(c, n.src))
		}
	}
	return out
}

// UniqueIdentifierReferences returns the set of identifier names appearing
// anywhere in n, n itself included, minus exclusions.
//
// This over-approximates the names n references: declared names, parameters
// and shadowed locals are all counted, because no scopes are tracked.
func (n *Node) UniqueIdentifierReferences(exclusions ...string) map[string]struct{} {
	excluded := make(map[string]struct{}, len(exclusions))
	for _, e := range exclusions {
		excluded[e] = struct{}{}
	}

	refs := make(map[string]struct{})
	walk(n.inner, func(c *sitter.Node) {
		if c.Type() != TypeIdentifier {
			return
		}
		name := lang.NodeText(c, n.src)
		if _, skip := excluded[name]; !skip {
			refs[name] = struct{}{}
		}
	})
	return refs
}

// walk calls fn for node and every named descendant, in document order.
func walk(node *sitter.Node, fn func(*sitter.Node)) {
	fn(node)
	for i := 0; i < int(node.NamedChildCount()); i++ {
		walk(node.NamedChild(i), fn)
	}
}

func hasType(node *sitter.Node, types []string) bool {
	t := node.Type()
	for _, want := range types {
		if t == want {
			return true
		}
	}
	return false
}

// firstArgument returns the first non-comment argument of a call expression.
func firstArgument(call *Node) (*Node, bool) {
	args, ok := call.Field("arguments")
	if !ok {
		return nil, false
	}
	for i := 0; i < int(args.inner.NamedChildCount()); i++ {
		c := args.inner.NamedChild(i)
		if c.Type() != TypeComment {
			return Wrap(c, args.src), true
		}
	}
	return nil, false
}

// LiteralText returns the contents of a string literal without its quotes,
// or the raw text of any other node.
func LiteralText(n *Node) string {
	text := n.Text()
	if n.Type() == TypeString && len(text) >= 2 {
		return text[1 : len(text)-1]
	}
	return text
}

// StaticString returns the value of a string literal, or of a template
// literal without substitutions, minus its delimiters.
func StaticString(n *Node) (string, bool) {
	switch n.Type() {
	case TypeString:
		return LiteralText(n), true
	case TypeTemplateString:
		if _, ok := n.FirstChildOfType(TypeTemplateSubstitution); ok {
			return "", false
		}
		if text := n.Text(); len(text) >= 2 {
			return text[1 : len(text)-1], true
		}
	}
	return "", false
}

func splitImportClause(clause string) []string {
	stripped := strings.Map(func(r rune) rune {
		if r == '{' || r == '}' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, clause)

	var names []string
	for _, name := range strings.Split(stripped, ",") {
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}
