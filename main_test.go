package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/phobologic/routemap/internal/model"
)

func writeTestFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func createSampleRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeTestFile(t, dir, "server/app.js", `const express = require("express");
const users = require("./users");
const app = express();

app.use("/users", users);
app.get("/health", (req, res) => res.send("ok"));
app.listen(3000);
`)
	writeTestFile(t, dir, "server/users.ts", `import { Router } from "express";
import { load } from "./store";

const router = Router();

export function list(req, res) {
  res.json(load());
}

router.get("/", list);
router.post("/", list);
export default router;
`)
	writeTestFile(t, dir, "server/store.js", `const data = require("./data.json");
function load() { return data; }
module.exports = { load };
`)
	return dir
}

func TestRunBasic(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	var stdout, stderr bytes.Buffer
	err := run([]string{dir}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, stderr.String())
	}

	out := stdout.String()
	if !strings.HasPrefix(out, "repo: ") {
		t.Errorf("output should start with repo:, got:\n%s", out)
	}
	for _, want := range []string{
		"apis[1]{name,root,file,endpoints}:",
		"  Server API,server,server/app.js,3",
		"  Server API,GET,/health",
		"  Server API,POST,/users",
		"files[3]",
		"server/users.ts,server/store.js,load",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestRunJSON(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	var stdout, stderr bytes.Buffer
	if err := run([]string{"--format", "json", dir}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, stderr.String())
	}

	var r model.Report
	if err := json.Unmarshal(stdout.Bytes(), &r); err != nil {
		t.Fatalf("decoding output: %v\n%s", err, stdout.String())
	}
	if len(r.APIs) != 1 {
		t.Fatalf("expected 1 api, got %d", len(r.APIs))
	}
	want := []string{"GET /health", "GET /users", "POST /users"}
	if got := r.APIs[0].Endpoints; strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("endpoints = %v, want %v", got, want)
	}
	if len(r.Files) != 3 {
		t.Errorf("expected 3 files, got %d", len(r.Files))
	}
}

func TestRunYAML(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	var stdout, stderr bytes.Buffer
	if err := run([]string{"--format=yaml", "--repo-id", "acme/server", dir}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, stderr.String())
	}

	var r model.Report
	if err := yaml.Unmarshal(stdout.Bytes(), &r); err != nil {
		t.Fatalf("decoding output: %v\n%s", err, stdout.String())
	}
	if len(r.APIs) != 1 || r.APIs[0].RepoID != "acme/server" {
		t.Errorf("unexpected apis: %+v", r.APIs)
	}
}

func TestRunMaxFiles(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	var stdout, stderr bytes.Buffer
	err := run([]string{"-n", "1", dir}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	out := stdout.String()
	if !strings.Contains(out, "files[1]") {
		t.Errorf("expected 1 file, got:\n%s", out)
	}
	if !strings.Contains(out, "dependencies[0]") {
		t.Errorf("one file has no edges, got:\n%s", out)
	}
}

func TestRunRouteFilter(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	var stdout, stderr bytes.Buffer
	if err := run([]string{"--route", "health", dir}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}

	out := stdout.String()
	if !strings.Contains(out, "Server API,GET,/health") {
		t.Errorf("missing health endpoint:\n%s", out)
	}
	if strings.Contains(out, "GET,/users") || strings.Contains(out, "POST,/users") {
		t.Errorf("users endpoints should be filtered out:\n%s", out)
	}
}

func TestRunFileFilter(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	var stdout, stderr bytes.Buffer
	if err := run([]string{"--file", "STORE", dir}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}

	out := stdout.String()
	if !strings.Contains(out, "files[1]") || !strings.Contains(out, "server/store.js") {
		t.Errorf("expected only store.js, got:\n%s", out)
	}
	if !strings.Contains(out, "apis[0]") {
		t.Errorf("the api root was filtered out, got:\n%s", out)
	}
}

func TestRunVersion(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	err := run([]string{"-V"}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := stdout.String(); got != "routemap dev\n" {
		t.Errorf("version output: %q", got)
	}
}

func TestRunNoFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTestFile(t, dir, "readme.txt", "nothing here")

	var stdout, stderr bytes.Buffer
	err := run([]string{dir}, &stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), "no parseable files") {
		t.Errorf("expected no parseable files error, got %v", err)
	}
}

func TestRunNotADirectory(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTestFile(t, dir, "app.js", "")

	var stdout, stderr bytes.Buffer
	err := run([]string{filepath.Join(dir, "app.js")}, &stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), "not a directory") {
		t.Errorf("expected not a directory error, got %v", err)
	}
}

func TestRunUnsupportedLanguage(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	var stdout, stderr bytes.Buffer
	err := run([]string{"-l", "cobol", dir}, &stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), `unsupported language "cobol"`) {
		t.Errorf("expected unsupported language error, got %v", err)
	}
}

func TestRunLanguageSuggestion(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	var stdout, stderr bytes.Buffer
	err := run([]string{"-l", "typescirpt", dir}, &stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), `did you mean "typescript"?`) {
		t.Errorf("expected a suggestion, got %v", err)
	}
}

func TestRunLanguageFilter(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	var stdout, stderr bytes.Buffer
	if err := run([]string{"--langs", "typescript", dir}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	out := stdout.String()
	if !strings.Contains(out, "files[1]") || !strings.Contains(out, "server/users.ts") {
		t.Errorf("expected only users.ts, got:\n%s", out)
	}
}

func TestRunMaxFileSize(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)
	writeTestFile(t, dir, "server/big.js", strings.Repeat("// padding\n", 200))

	var stdout, stderr bytes.Buffer
	if err := run([]string{"--max-file-size", "1000", dir}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.Contains(stdout.String(), "big.js") {
		t.Error("big.js should be skipped")
	}
	if !strings.Contains(stderr.String(), "file skipped") || !strings.Contains(stderr.String(), "server/big.js") {
		t.Errorf("expected a skip warning, got stderr:\n%s", stderr.String())
	}
}

func TestRunConfigFile(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)
	writeTestFile(t, dir, ".routemap.yaml", "format: json\nexclude:\n  - \"**/store.js\"\n")

	var stdout, stderr bytes.Buffer
	if err := run([]string{dir}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, stderr.String())
	}
	var r model.Report
	if err := json.Unmarshal(stdout.Bytes(), &r); err != nil {
		t.Fatalf("config format should apply: %v\n%s", err, stdout.String())
	}
	if len(r.Files) != 2 {
		t.Errorf("store.js should be excluded, got %d files", len(r.Files))
	}

	// flags win over the file
	stdout.Reset()
	if err := run([]string{"--format", "toon", dir}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.HasPrefix(stdout.String(), "repo: ") {
		t.Errorf("--format should override the config file, got:\n%s", stdout.String())
	}
}

func TestRunExplicitConfig(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)
	cfgPath := filepath.Join(t.TempDir(), "routemap.toml")
	writeTestFile(t, filepath.Dir(cfgPath), "routemap.toml", "format = \"xml\"\n")

	var stdout, stderr bytes.Buffer
	err := run([]string{"--config", cfgPath, dir}, &stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), "format must be one of") {
		t.Errorf("expected a validation error, got %v", err)
	}
}

func TestRunAppFactory(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTestFile(t, dir, "index.js", `const app = createServer();
app.get("/ping", ping);
`)

	var stdout, stderr bytes.Buffer
	if err := run([]string{dir}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(stdout.String(), "apis[0]") {
		t.Errorf("createServer is not a known factory, got:\n%s", stdout.String())
	}

	stdout.Reset()
	if err := run([]string{"--app-factory", "createServer", dir}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(stdout.String(), "API,GET,/ping") {
		t.Errorf("expected the ping endpoint, got:\n%s", stdout.String())
	}
}

func TestRunCache(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)
	cachePath := filepath.Join(t.TempDir(), "routemap.cache")

	var first, stderr bytes.Buffer
	if err := run([]string{"--cache", cachePath, dir}, &first, &stderr); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := os.Stat(cachePath); err != nil {
		t.Fatalf("cache file not created: %v", err)
	}

	var second bytes.Buffer
	if err := run([]string{"--cache", cachePath, "-v", dir}, &second, &stderr); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if first.String() != second.String() {
		t.Errorf("cached output differs:\nfirst:\n%s\nsecond:\n%s", first.String(), second.String())
	}
	if !strings.Contains(stderr.String(), "cache hit") {
		t.Errorf("second run should hit the cache, stderr:\n%s", stderr.String())
	}

	// a different format is a different key
	var third bytes.Buffer
	if err := run([]string{"--cache", cachePath, "--format", "json", dir}, &third, &stderr); err != nil {
		t.Fatalf("third run: %v", err)
	}
	if !strings.HasPrefix(third.String(), "{") {
		t.Errorf("expected fresh json output, got:\n%s", third.String())
	}
}

func TestRunVerbose(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	var stdout, stderr bytes.Buffer
	if err := run([]string{"--verbose", dir}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, want := range []string{"level=DEBUG", "discovered files", "detected api"} {
		if !strings.Contains(stderr.String(), want) {
			t.Errorf("missing %q in stderr:\n%s", want, stderr.String())
		}
	}
}
