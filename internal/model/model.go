// Package model defines the report data structures for routemap.
package model

// SymbolKind indicates the syntactic kind of a top-level declaration.
type SymbolKind string

const (
	Class     SymbolKind = "class"
	Function  SymbolKind = "function"
	Variable  SymbolKind = "variable"
	Interface SymbolKind = "interface"
	TypeAlias SymbolKind = "type"
	Enum      SymbolKind = "enum"
)

// Declaration is a named top-level declaration in a file.
type Declaration struct {
	Name string     `json:"name" yaml:"name"`
	Kind SymbolKind `json:"kind" yaml:"kind"`
	Line int        `json:"line" yaml:"line"`
	// Uses lists the imported names the declaration references.
	Uses []string `json:"uses,omitempty" yaml:"uses,omitempty"`
}

// Import is one locally bound name and the module specifier it came from.
// Resolved is the repository path of the imported file, when it is local
// and present in the scan.
type Import struct {
	Name      string `json:"name" yaml:"name"`
	Specifier string `json:"specifier" yaml:"specifier"`
	Resolved  string `json:"resolved,omitempty" yaml:"resolved,omitempty"`
}

// Route is a mount or route definition call on an app or router.
type Route struct {
	Method   string `json:"method" yaml:"method"`
	Path     string `json:"path,omitempty" yaml:"path,omitempty"`
	Receiver string `json:"receiver" yaml:"receiver"`
	Target   string `json:"target,omitempty" yaml:"target,omitempty"`
	Line     int    `json:"line" yaml:"line"`
}

// FileInfo holds metadata and extracted facts for a single source file.
type FileInfo struct {
	Path         string        `json:"path" yaml:"path"`
	Language     string        `json:"language" yaml:"language"`
	App          string        `json:"app,omitempty" yaml:"app,omitempty"`
	Router       string        `json:"router,omitempty" yaml:"router,omitempty"`
	Declarations []Declaration `json:"declarations,omitempty" yaml:"declarations,omitempty"`
	Imports      []Import      `json:"imports,omitempty" yaml:"imports,omitempty"`
	Mounts       []Route       `json:"mounts,omitempty" yaml:"mounts,omitempty"`
	Routes       []Route       `json:"routes,omitempty" yaml:"routes,omitempty"`
	Rank         float64       `json:"rank" yaml:"rank"`
}

// Dependency represents an edge in the import graph: Source imports the
// names in Symbols from Target.
type Dependency struct {
	Source  string   `json:"source" yaml:"source"`
	Target  string   `json:"target" yaml:"target"`
	Symbols []string `json:"symbols" yaml:"symbols"`
}

// Usage is an edge from a declaration to an imported name it references
// in another file of the scan.
type Usage struct {
	File        string `json:"file" yaml:"file"`
	Declaration string `json:"declaration" yaml:"declaration"`
	Symbol      string `json:"symbol" yaml:"symbol"`
	Target      string `json:"target" yaml:"target"`
}

// API is one detected application and the endpoints reachable from it.
type API struct {
	Name                  string   `json:"name" yaml:"name"`
	RepoID                string   `json:"externalRepoId,omitempty" yaml:"externalRepoId,omitempty"`
	RootDir               string   `json:"rootDir" yaml:"rootDir"`
	RootFile              string   `json:"rootFile" yaml:"rootFile"`
	Endpoints             []string `json:"endpoints" yaml:"endpoints"`
	DocumentationFilePath string   `json:"documentationFilePath,omitempty" yaml:"documentationFilePath,omitempty"`
}

// Report is the complete analyzed repository, ready for serialization.
type Report struct {
	RepoName     string       `json:"repo" yaml:"repo"`
	Root         string       `json:"root" yaml:"root"`
	APIs         []API        `json:"apis" yaml:"apis"`
	Files        []FileInfo   `json:"files" yaml:"files"`
	Dependencies []Dependency `json:"dependencies" yaml:"dependencies"`
	Usages       []Usage      `json:"usages,omitempty" yaml:"usages,omitempty"`
}
