package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phobologic/genmatrix/internal/config"
	"github.com/phobologic/genmatrix/internal/graph"
	"github.com/phobologic/genmatrix/internal/model"
	"github.com/phobologic/genmatrix/internal/toon"
)

func newDepsCmd(opts *options, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "deps <file>...",
		Short: "Print the direct and transitive dependencies of files",
		Long: `Print each file's direct and transitive dependencies, relative to the
repository root. Sources under a base directory are resolved with the same
search roots the matrix uses.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd, stderr)
			if err != nil {
				return err
			}
			e := graph.NewExtractor(cfg.Root, nil, logger)

			for i, arg := range args {
				path := resolve(cfg.Root, arg)
				if err := model.ValidatePath(cfg.Root, path); err != nil {
					return err
				}
				roots := searchRootsFor(cfg, path)

				direct, err := e.Dependencies(path, roots...)
				if err != nil {
					return err
				}
				transitive, err := e.TransitiveDependencies(path, roots...)
				if err != nil {
					return err
				}

				if i > 0 {
					_, _ = fmt.Fprintln(stdout)
				}
				_, _ = fmt.Fprintln(stdout, toon.EncodeDeps(relPath(cfg.Root, path), relPaths(cfg.Root, direct), relPaths(cfg.Root, transitive)))
			}
			return nil
		},
	}
}

// searchRootsFor returns the matrix search roots when path lies in a base
// directory, and none otherwise.
func searchRootsFor(cfg *config.Config, path string) []string {
	rel, err := filepath.Rel(cfg.Root, path)
	if err != nil {
		return nil
	}
	first, _, found := strings.Cut(filepath.ToSlash(rel), "/")
	if !found {
		return nil
	}
	baseDir := filepath.Join(cfg.Root, first)
	if info, err := os.Stat(cfg.Layout().BuildFilePath(baseDir)); err != nil || info.IsDir() {
		return nil
	}
	return cfg.SearchRoots(baseDir)
}

func relPath(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return path
}

func relPaths(root string, paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, relPath(root, p))
	}
	return out
}
