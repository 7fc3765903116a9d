package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phobologic/routemap/internal/apisurface"
)

const (
	sentinelStart = "<!-- routemap:start -->"
	sentinelEnd   = "<!-- routemap:end -->"
)

// newDocsCmd builds `routemap docs`, which writes (or updates) a section
// listing every detected API in a Markdown file.
func newDocsCmd(stdout, stderr io.Writer, common *flags) *cobra.Command {
	var (
		output string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "docs [flags] [repo-dir]",
		Short: "Write an API section to a Markdown file",
		Long: `Write a section listing each detected API and its endpoints to a Markdown
file. The section is wrapped in sentinel comments so it can be updated in place
on later runs without touching surrounding content. Creates the file if it does
not exist.

The file defaults to docs_file from the config, or API.md in the repo root.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := repoRoot(args)
			if err != nil {
				return err
			}
			cfg, err := common.settings(cmd, root)
			if err != nil {
				return err
			}
			logger := common.logger(stderr)

			path := output
			if path == "" {
				path = filepath.Join(root, filepath.FromSlash(cfg.DocsFile))
			}
			rel, err := filepath.Rel(root, path)
			if err != nil || strings.HasPrefix(rel, "..") {
				rel = path
			}

			files, err := discoverFiles(root, cfg, logger)
			if err != nil {
				return err
			}
			res, err := analyzeFiles(cmd.Context(), root, files, cfg, logger)
			if err != nil {
				return err
			}

			for _, s := range res.Surfaces {
				s.SetDocumentation(filepath.ToSlash(rel), surfaceSection(s))
			}
			section := generateSection(res.Surfaces)

			existing, _ := os.ReadFile(path)
			updated := applySection(string(existing), section)

			if dryRun {
				_, _ = fmt.Fprint(stdout, updated)
				return nil
			}

			if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}

			_, _ = fmt.Fprintf(stderr, "wrote %d APIs to %s\n", len(res.Surfaces), path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Markdown file to update")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print what would be written without modifying the file")
	return cmd
}

// surfaceSection renders one API as a Markdown subsection.
func surfaceSection(s *apisurface.Surface) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### %s\n\n", s.Name())
	if f := s.RootFile(); f != nil {
		fmt.Fprintf(&b, "Entry point: `%s`\n", f.Path())
	}
	if id := s.RepoID(); id != "" {
		fmt.Fprintf(&b, "Repository: `%s`\n", id)
	}
	b.WriteString("\n")

	if len(s.Endpoints()) == 0 {
		b.WriteString("No endpoints found.\n")
		return b.String()
	}
	b.WriteString("| Method | Path |\n|---|---|\n")
	for _, e := range s.Endpoints() {
		method, path, _ := strings.Cut(e, " ")
		fmt.Fprintf(&b, "| %s | `%s` |\n", method, path)
	}
	return b.String()
}

// generateSection returns the full sentinel-wrapped API block.
func generateSection(surfaces []*apisurface.Surface) string {
	var b strings.Builder
	b.WriteString(sentinelStart + "\n## HTTP APIs\n\n")
	if len(surfaces) == 0 {
		b.WriteString("No Express applications found.\n")
	}
	for i, s := range surfaces {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(s.Documentation())
	}
	b.WriteString(sentinelEnd)
	return b.String()
}

// applySection inserts section into content, replacing an existing sentinel
// block if present or appending if not.
func applySection(content, section string) string {
	start := strings.Index(content, sentinelStart)
	end := strings.Index(content, sentinelEnd)

	if start >= 0 && end > start {
		return content[:start] + section + content[end+len(sentinelEnd):]
	}

	if len(content) > 0 && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	if len(content) > 0 {
		content += "\n"
	}
	return content + section + "\n"
}
