// routemap maps the Express HTTP APIs of a JavaScript or TypeScript
// repository: their endpoints, the files behind them, and how those files
// import each other.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/hbollon/go-edlib"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/phobologic/routemap/internal/cache"
	"github.com/phobologic/routemap/internal/config"
	"github.com/phobologic/routemap/internal/discover"
	"github.com/phobologic/routemap/internal/express"
	"github.com/phobologic/routemap/internal/lang"
	"github.com/phobologic/routemap/internal/model"
	"github.com/phobologic/routemap/internal/ranking"
	"github.com/phobologic/routemap/internal/scan"
	"github.com/phobologic/routemap/internal/toon"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

// flags holds the values of the settings shared by every command.
type flags struct {
	configPath   string
	langs        []string
	include      []string
	exclude      []string
	maxFileSize  int64
	workers      int
	repoID       string
	appFactories []string
	skipTests    bool
	verbose      bool

	// report-only settings, registered by the root command
	maxFiles int
	format   string
}

func (f *flags) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "config file (default: .routemap.yaml or .routemap.toml in the repo root)")
	pf.StringSliceVarP(&f.langs, "langs", "l", nil, "comma-separated languages to include")
	pf.StringSliceVar(&f.include, "include", nil, "only analyze files matching these globs")
	pf.StringSliceVar(&f.exclude, "exclude", nil, "skip files matching these globs")
	pf.Int64Var(&f.maxFileSize, "max-file-size", config.DefaultMaxFileSize, "skip files larger than this many bytes")
	pf.IntVar(&f.workers, "workers", 0, "files analyzed concurrently (default: number of CPUs)")
	pf.StringVar(&f.repoID, "repo-id", "", "external repository id recorded on each API")
	pf.StringSliceVar(&f.appFactories, "app-factory", nil, "extra function names that create an Express app")
	pf.BoolVar(&f.skipTests, "skip-tests", false, "skip test files and directories")
	pf.BoolVarP(&f.verbose, "verbose", "v", false, "log progress to stderr")
}

// settings layers flags over the config file over defaults.
func (f *flags) settings(cmd *cobra.Command, root string) (config.Config, error) {
	cfg := config.Default()
	path := f.configPath
	if path == "" {
		path, _ = config.Find(root)
	}
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	changed := cmd.Flags().Changed
	if changed("langs") {
		cfg.Languages = f.langs
	}
	if changed("include") {
		cfg.Include = f.include
	}
	if changed("exclude") {
		cfg.Exclude = f.exclude
	}
	if changed("max-file-size") {
		cfg.MaxFileSize = f.maxFileSize
	}
	if changed("workers") {
		cfg.Workers = f.workers
	}
	if changed("repo-id") {
		cfg.RepoID = f.repoID
	}
	if changed("app-factory") {
		cfg.AppFactories = append(cfg.AppFactories, f.appFactories...)
	}
	if changed("skip-tests") {
		cfg.SkipTests = f.skipTests
	}
	if changed("max-files") {
		cfg.MaxFiles = f.maxFiles
	}
	if changed("format") {
		cfg.Format = f.format
	}

	for i, name := range cfg.Languages {
		name = strings.TrimSpace(name)
		if _, ok := lang.Languages[name]; !ok {
			if guess, ok := closestLanguage(name); ok {
				return cfg, fmt.Errorf("unsupported language %q (did you mean %q?)", name, guess)
			}
			return cfg, fmt.Errorf("unsupported language %q", name)
		}
		cfg.Languages[i] = name
	}
	return cfg, cfg.Validate()
}

// closestLanguage suggests a registered language within two edits of name.
func closestLanguage(name string) (string, bool) {
	names := make([]string, 0, len(lang.Languages))
	for n := range lang.Languages {
		names = append(names, n)
	}
	sort.Strings(names)

	best, bestDistance := "", 3
	for _, n := range names {
		if d := edlib.LevenshteinDistance(strings.ToLower(name), n); d < bestDistance {
			best, bestDistance = n, d
		}
	}
	return best, best != ""
}

func (f *flags) logger(stderr io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if f.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var (
		common      flags
		cachePath   string
		fileFilter  string
		routeFilter string
		showVersion bool
	)

	cmd := &cobra.Command{
		Use:   "routemap [flags] [repo-dir]",
		Short: "Map the Express HTTP APIs of a JavaScript or TypeScript repository",
		Long: `routemap finds every Express application in a repository, follows its
router mounts to list the endpoints it serves, and ranks the analyzed files
by how central they are in the import graph.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				_, _ = fmt.Fprintf(stdout, "routemap %s\n", version)
				return nil
			}

			root, err := repoRoot(args)
			if err != nil {
				return err
			}
			cfg, err := common.settings(cmd, root)
			if err != nil {
				return err
			}
			logger := common.logger(stderr)

			files, err := discoverFiles(root, cfg, logger)
			if err != nil {
				return err
			}

			var fp uint64
			if cachePath != "" {
				fp, err = cache.Fingerprint(root, entryPaths(files), version, cfg.Format,
					strconv.Itoa(cfg.MaxFiles), fileFilter, routeFilter, cfg.RepoID,
					strings.Join(cfg.AppFactories, ","))
				if err != nil {
					return err
				}
				if output, ok := cache.Load(cachePath, fp); ok {
					logger.Debug("cache hit", "path", cachePath)
					_, _ = fmt.Fprintln(stdout, output)
					return nil
				}
			}

			res, err := analyzeFiles(cmd.Context(), root, files, cfg, logger)
			if err != nil {
				return err
			}

			r := res.Report(filepath.Base(root))
			if fileFilter != "" {
				r = ranking.FilterByFile(r, fileFilter)
			}
			if routeFilter != "" {
				r = ranking.FilterByRoute(r, routeFilter)
			}
			if cfg.MaxFiles > 0 {
				r = ranking.SelectFiles(r, cfg.MaxFiles)
			}

			output, err := render(r, cfg.Format)
			if err != nil {
				return err
			}

			if cachePath != "" {
				if err := cache.Store(cachePath, fp, output); err != nil {
					logger.Warn("cache not written", "path", cachePath, "err", err)
				}
			}

			_, _ = fmt.Fprintln(stdout, output)
			return nil
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	common.register(cmd)
	fl := cmd.Flags()
	fl.IntVarP(&common.maxFiles, "max-files", "n", 0, "maximum number of files to include")
	fl.StringVar(&common.format, "format", "toon", "output format: "+strings.Join(config.Formats, ", "))
	fl.StringVar(&cachePath, "cache", "", "cache file path")
	fl.StringVar(&fileFilter, "file", "", "only report files whose path contains this text")
	fl.StringVar(&routeFilter, "route", "", "only report endpoints containing this text")
	fl.BoolVarP(&showVersion, "version", "V", false, "show version and exit")

	cmd.AddCommand(newDocsCmd(stdout, stderr, &common))
	return cmd
}

// repoRoot resolves the optional repo-dir argument to an absolute directory.
func repoRoot(args []string) (string, error) {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}

	root, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving root: %w", err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return "", fmt.Errorf("root path: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s: not a directory", root)
	}
	return root, nil
}

// discoverFiles lists the files to analyze. Build output directories named
// by package.json or tsconfig.json are excluded along with cfg.Exclude.
func discoverFiles(root string, cfg config.Config, logger *slog.Logger) ([]discover.FileEntry, error) {
	exclude := append(append([]string{}, cfg.Exclude...), config.BuildOutputExcludes(root)...)
	files, err := discover.Files(root, discover.Options{
		Languages: cfg.Languages,
		Include:   cfg.Include,
		Exclude:   exclude,
		SkipTests: cfg.SkipTests,
	})
	if err != nil {
		return nil, fmt.Errorf("discovering files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no parseable files found")
	}
	logger.Debug("discovered files", "count", len(files), "exclude", exclude)

	files = filterBySize(files, cfg.MaxFileSize, logger)
	if len(files) == 0 {
		return nil, fmt.Errorf("no parseable files found (all exceeded size limit)")
	}
	return files, nil
}

// filterBySize drops files larger than maxSize. Zero means no limit.
func filterBySize(files []discover.FileEntry, maxSize int64, logger *slog.Logger) []discover.FileEntry {
	if maxSize <= 0 {
		return files
	}
	var kept []discover.FileEntry
	for _, f := range files {
		if f.Size > maxSize {
			logger.Warn("file skipped", "path", f.Path, "size", f.Size, "limit", maxSize)
			continue
		}
		kept = append(kept, f)
	}
	return kept
}

func analyzeFiles(ctx context.Context, root string, files []discover.FileEntry, cfg config.Config, logger *slog.Logger) (*scan.Result, error) {
	res, err := scan.Run(ctx, scan.Options{
		Root:    root,
		Files:   files,
		Workers: cfg.Workers,
		Profile: express.Express.WithAppFactories(cfg.AppFactories...),
		RepoID:  cfg.RepoID,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	if len(res.Files) == 0 {
		return nil, fmt.Errorf("no files could be parsed")
	}
	return res, nil
}

func entryPaths(files []discover.FileEntry) []string {
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	return paths
}

// render encodes r without a trailing newline.
func render(r *model.Report, format string) (string, error) {
	switch format {
	case "", "toon":
		return toon.Encode(r), nil
	case "json":
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encoding json: %w", err)
		}
		return string(data), nil
	case "yaml":
		data, err := yaml.Marshal(r)
		if err != nil {
			return "", fmt.Errorf("encoding yaml: %w", err)
		}
		return strings.TrimRight(string(data), "\n"), nil
	default:
		return "", fmt.Errorf("unknown format %q", format)
	}
}
