package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/phobologic/genmatrix/internal/changes"
)

func newDiffCmd(opts *options, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "diff <patch-file> <output-file> <mode>",
		Short: "Compute the matrix from a unified diff instead of a JSON file list",
		Long: `Read changed files from a unified diff (git diff output) and compute the matrix
as the root command does. Both sides of a rename count as changed. Use - to read
the patch from stdin.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := readPatch(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			files, err := changes.FromDiff(patch)
			if err != nil {
				return err
			}
			return opts.generate(cmd, files, args[1], args[2], stdout, stderr)
		},
	}
}

func readPatch(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading patch from stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading patch: %w", err)
	}
	return data, nil
}
