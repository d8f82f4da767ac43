package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/phobologic/genmatrix/internal/config"
)

const (
	sentinelStart = "# gen-matrix:start"
	sentinelEnd   = "# gen-matrix:end"
)

// newInitCmd implements `gen-matrix init`, which writes (or updates) the
// default settings block in a .gen-matrix.yaml file.
func newInitCmd(opts *options, stdout, stderr io.Writer) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default settings to a config file",
		Long: `Write gen-matrix's default settings to a config file. The block is wrapped in
sentinel comments so it can be updated in place on subsequent runs without
touching surrounding content. Creates the file if it does not exist.

path defaults to <root>/` + config.FileName + `.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			section, err := generateSection()
			if err != nil {
				return err
			}

			// --dry-run with no path: just print the section itself.
			if dryRun && len(args) == 0 {
				_, _ = fmt.Fprintln(stdout, section)
				return nil
			}

			path := filepath.Join(opts.root, config.FileName)
			if len(args) > 0 {
				path = args[0]
			}

			existing, _ := os.ReadFile(path)
			updated := applySection(string(existing), section)

			if dryRun {
				_, _ = fmt.Fprint(stdout, updated)
				return nil
			}

			if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}

			_, _ = fmt.Fprintf(stderr, "wrote gen-matrix settings to %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print what would be written without modifying the file")
	return cmd
}

// generateSection returns the sentinel-wrapped default settings.
func generateSection() (string, error) {
	body, err := yaml.Marshal(config.Default())
	if err != nil {
		return "", fmt.Errorf("encoding defaults: %w", err)
	}
	return sentinelStart + "\n" + strings.TrimRight(string(body), "\n") + "\n" + sentinelEnd, nil
}

// applySection inserts section into content, replacing an existing sentinel
// block if present or appending if not.
func applySection(content, section string) string {
	start := strings.Index(content, sentinelStart)
	end := strings.Index(content, sentinelEnd)

	if start >= 0 && end > start {
		return content[:start] + section + content[end+len(sentinelEnd):]
	}

	if content == "" {
		return section + "\n"
	}
	// Append, ensuring a blank line separator.
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + "\n" + section + "\n"
}
