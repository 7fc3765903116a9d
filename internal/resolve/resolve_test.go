package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsLocal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		spec string
		want bool
	}{
		{"./util", true},
		{"../server.js", true},
		{".", true},
		{"express", false},
		{"@scope/pkg", false},
		{"/abs/path", false},
		{"node:path", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsLocal(tt.spec))
		})
	}
}

func TestSearchPathsNoExtension(t *testing.T) {
	t.Parallel()

	got := SearchPaths("./lib")
	require.Len(t, got, 1+4*7)

	assert.Equal(t, []string{
		"./lib",
		"./lib/index.js",
		"./lib/index.ts",
		"./lib/index.cjs",
		"./lib/index.mjs",
		"./lib/index.mts",
		"./lib/index.cts",
		"./lib/index.json",
		"./lib/src/index.js",
	}, got[:9])
	assert.Equal(t, "./lib/main.json", got[len(got)-1])

	// stem-major: every /index candidate precedes every /src candidate
	firstSrc := -1
	for i, p := range got {
		if p == "./lib/src/index.js" {
			firstSrc = i
			break
		}
	}
	assert.Equal(t, 8, firstSrc)
}

func TestSearchPathsDotSpecifiers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		spec   string
		second string
	}{
		{".", "./index.js"},
		{"..", "../index.js"},
		{"../..", "../../index.js"},
		{"./.config", "./.config/index.js"},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			t.Parallel()
			got := SearchPaths(tt.spec)
			require.Len(t, got, 1+4*7)
			assert.Equal(t, tt.spec, got[0])
			assert.Equal(t, tt.second, got[1])
		})
	}

	assert.Equal(t, "./index.js", Candidates(".")[1])
}

func TestSearchPathsJSExtension(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"./m.js", "./m.ts"}, SearchPaths("./m.js"))
}

func TestSearchPathsOtherExtension(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"./data.json"}, SearchPaths("./data.json"))
	assert.Equal(t, []string{"./m.mjs"}, SearchPaths("./m.mjs"))
}

func TestCandidatesExternal(t *testing.T) {
	t.Parallel()

	assert.Nil(t, Candidates("express"))
	assert.NotEmpty(t, Candidates("./routes"))
}

func TestNormalizeLocalImportPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		importer string
		spec     string
		want     string
		ok       bool
	}{
		{"sibling", "apps/github/app.js", "./server.js", "apps/github/server.js", true},
		{"parent", "apps/github/app.js", "../server.js", "apps/server.js", true},
		{"nested", "apps/github/app.js", "./routes/users", "apps/github/routes/users", true},
		{"root file", "app.js", "./server.js", "server.js", true},
		{"dot segments", "a/b/c.ts", "./x/../y/./z.ts", "a/b/y/z.ts", true},
		{"external", "apps/github/app.js", "express", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := NormalizeLocalImportPath(tt.importer, tt.spec)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChangeExtension(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "src/app.ts", ChangeExtension("src/app.js", ".ts"))
	assert.Equal(t, "src/app.ts", ChangeExtension("src/app.js", "ts"))
	assert.Equal(t, "src/app.ts", ChangeExtension("src/app", ".ts"))
	assert.Equal(t, ".eslintrc.js", ChangeExtension(".eslintrc", ".js"))
	assert.Equal(t, "cfg/.env.ts", ChangeExtension("cfg/.env", "ts"))
}

func TestIndexResolve(t *testing.T) {
	t.Parallel()

	ix := NewIndex(
		"apps/api/app.js",
		"apps/api/routes/users.ts",
		"apps/api/lib/index.js",
	)

	got, ok := ix.Resolve("apps/api/app.js", "./routes/users.js")
	require.True(t, ok)
	assert.Equal(t, "apps/api/routes/users.ts", got)

	got, ok = ix.Resolve("apps/api/app.js", "./lib")
	require.True(t, ok)
	assert.Equal(t, "apps/api/lib/index.js", got)

	_, ok = ix.Resolve("apps/api/app.js", "./missing")
	assert.False(t, ok)

	_, ok = ix.Resolve("apps/api/app.js", "express")
	assert.False(t, ok)
}

func TestIndexResolveFileBeforeDirectory(t *testing.T) {
	t.Parallel()

	ix := NewIndex(
		"src/routes/users.ts",
		"src/routes/users/index.js",
		"src/db/index.ts",
	)

	got, ok := ix.Resolve("src/app.js", "./routes/users")
	require.True(t, ok)
	assert.Equal(t, "src/routes/users.ts", got)

	got, ok = ix.Resolve("src/app.js", "./db")
	require.True(t, ok)
	assert.Equal(t, "src/db/index.ts", got)

	_, ok = ix.Resolve("src/app.js", "./missing")
	assert.False(t, ok)

	_, ok = ix.Resolve("apps/api/app.js", "express")
	assert.False(t, ok)
}

func TestIndexResolveDotSpecifiers(t *testing.T) {
	t.Parallel()

	ix := NewIndex(
		"index.js",
		"src/index.ts",
		"src/routes/users.js",
		".js",
	)

	got, ok := ix.Resolve("server.js", ".")
	require.True(t, ok)
	assert.Equal(t, "index.js", got)

	got, ok = ix.Resolve("src/routes/users.js", "..")
	require.True(t, ok)
	assert.Equal(t, "src/index.ts", got)
}
