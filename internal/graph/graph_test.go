package graph

import (
	"math"
	"testing"

	"github.com/phobologic/routemap/internal/model"
)

func TestBuildGraphResolvedImport(t *testing.T) {
	t.Parallel()

	fileInfos := []model.FileInfo{
		{
			Path:     "app.js",
			Language: "javascript",
			Imports: []model.Import{
				{Name: "users", Specifier: "./routes/users", Resolved: "routes/users.js"},
				{Name: "express", Specifier: "express"},
			},
		},
		{Path: "routes/users.js", Language: "javascript"},
	}

	deps := BuildGraph(fileInfos)
	if len(deps) != 1 {
		t.Fatalf("expected 1 dep, got %d", len(deps))
	}
	if deps[0].Source != "app.js" || deps[0].Target != "routes/users.js" {
		t.Errorf("dep: %+v", deps[0])
	}
	if len(deps[0].Symbols) != 1 || deps[0].Symbols[0] != "users" {
		t.Errorf("symbols: %v", deps[0].Symbols)
	}
}

func TestBuildGraphMergesNames(t *testing.T) {
	t.Parallel()

	fileInfos := []model.FileInfo{
		{
			Path: "a.ts",
			Imports: []model.Import{
				{Name: "z", Specifier: "./b", Resolved: "b.ts"},
				{Name: "y", Specifier: "./b", Resolved: "b.ts"},
				{Name: "y", Specifier: "./b", Resolved: "b.ts"},
			},
		},
		{Path: "b.ts"},
	}

	deps := BuildGraph(fileInfos)
	if len(deps) != 1 {
		t.Fatalf("expected 1 dep, got %d", len(deps))
	}
	if got := deps[0].Symbols; len(got) != 2 || got[0] != "y" || got[1] != "z" {
		t.Errorf("symbols: %v", got)
	}
}

func TestBuildGraphNoSelfEdge(t *testing.T) {
	t.Parallel()

	fileInfos := []model.FileInfo{
		{
			Path:    "a.js",
			Imports: []model.Import{{Name: "a", Specifier: "./a.js", Resolved: "a.js"}},
		},
	}

	deps := BuildGraph(fileInfos)
	if len(deps) != 0 {
		t.Errorf("expected 0 deps (no self-edges), got %d", len(deps))
	}
}

func TestBuildGraphUnknownTarget(t *testing.T) {
	t.Parallel()

	fileInfos := []model.FileInfo{
		{
			Path:    "a.js",
			Imports: []model.Import{{Name: "x", Specifier: "./gone", Resolved: "gone.js"}},
		},
	}

	deps := BuildGraph(fileInfos)
	if len(deps) != 0 {
		t.Errorf("expected 0 deps (target not scanned), got %d", len(deps))
	}
}

func TestRankUniform(t *testing.T) {
	t.Parallel()

	fileInfos := []model.FileInfo{
		{Path: "c.js"},
		{Path: "a.js"},
		{Path: "b.js"},
	}

	Rank(fileInfos, nil)

	expected := 1.0 / 3.0
	for _, fi := range fileInfos {
		if math.Abs(fi.Rank-expected) > 1e-9 {
			t.Errorf("%s rank = %f, want %f", fi.Path, fi.Rank, expected)
		}
	}
	// equal ranks fall back to path order
	if fileInfos[0].Path != "a.js" || fileInfos[2].Path != "c.js" {
		t.Errorf("unexpected order: %s, %s, %s", fileInfos[0].Path, fileInfos[1].Path, fileInfos[2].Path)
	}
}

func TestRankWithEdges(t *testing.T) {
	t.Parallel()

	fileInfos := []model.FileInfo{
		{Path: "a.js"},
		{Path: "b.js"},
		{Path: "c.js"},
	}

	deps := []model.Dependency{
		{Source: "a.js", Target: "b.js", Symbols: []string{"x"}},
		{Source: "c.js", Target: "b.js", Symbols: []string{"y"}},
	}

	Rank(fileInfos, deps)

	// b.js should have highest rank (imported by both a and c)
	if fileInfos[0].Path != "b.js" {
		t.Errorf("expected b.js first, got %s", fileInfos[0].Path)
	}

	var sum float64
	for _, fi := range fileInfos {
		sum += fi.Rank
	}
	if math.Abs(sum-1.0) > 0.01 {
		t.Errorf("ranks sum to %f, expected ~1.0", sum)
	}

	if fileInfos[0].Rank <= fileInfos[1].Rank {
		t.Errorf("b.js rank (%f) should be > second file rank (%f)",
			fileInfos[0].Rank, fileInfos[1].Rank)
	}
}

func TestRankEmpty(t *testing.T) {
	t.Parallel()
	Rank(nil, nil) // should not panic
}

func TestBuildUsages(t *testing.T) {
	t.Parallel()

	fileInfos := []model.FileInfo{
		{
			Path: "app.js",
			Imports: []model.Import{
				{Name: "users", Specifier: "./users", Resolved: "users.js"},
				{Name: "db", Specifier: "./db", Resolved: "db.js"},
				{Name: "express", Specifier: "express"},
			},
			Declarations: []model.Declaration{
				{Name: "start", Kind: model.Function, Uses: []string{"users", "express", "db"}},
				{Name: "stop", Kind: model.Function, Uses: []string{"db", "db"}},
				{Name: "port", Kind: model.Variable},
			},
		},
	}

	usages := BuildUsages(fileInfos)
	if len(usages) != 3 {
		t.Fatalf("expected 3 usages, got %d: %+v", len(usages), usages)
	}
	want := []model.Usage{
		{File: "app.js", Declaration: "start", Symbol: "db", Target: "db.js"},
		{File: "app.js", Declaration: "start", Symbol: "users", Target: "users.js"},
		{File: "app.js", Declaration: "stop", Symbol: "db", Target: "db.js"},
	}
	for i := range want {
		if usages[i] != want[i] {
			t.Errorf("usages[%d] = %+v, want %+v", i, usages[i], want[i])
		}
	}
}

func TestBuildUsagesEmpty(t *testing.T) {
	t.Parallel()
	usages := BuildUsages(nil)
	if usages != nil {
		t.Errorf("expected nil, got %v", usages)
	}
}
