// gen-matrix computes the CI build/test matrix affected by a set of changed files.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/phobologic/genmatrix/internal/changes"
	"github.com/phobologic/genmatrix/internal/config"
	"github.com/phobologic/genmatrix/internal/matrix"
	"github.com/phobologic/genmatrix/internal/model"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	return cmd.Execute()
}

// options holds the flags shared by every subcommand.
type options struct {
	root       string
	configFile string
	maxTargets int
	verbose    bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "gen-matrix [flags] <changed-files-json> <output-file> <mode>",
		Short: "Compute the CI matrix affected by a set of changed files",
		Long: `gen-matrix maps changed files to the build and test targets that depend on
them and appends the result as matrix-targets= and matrix-build-configs= lines
to an output file (typically $GITHUB_OUTPUT).

<changed-files-json> is a JSON array of paths relative to the repository root.
<mode> is one of build, answer or unit.`,
		Version:       version,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := changes.ParseJSON(args[0])
			if err != nil {
				return err
			}
			return opts.generate(cmd, files, args[1], args[2], stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetVersionTemplate("gen-matrix {{.Version}}\n")
	cmd.CompletionOptions.DisableDefaultCmd = true

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.root, "root", ".", "repository root")
	pf.StringVar(&opts.configFile, "config", "", "config file (default <root>/"+config.FileName+")")
	pf.IntVar(&opts.maxTargets, "max-targets", 0, "maximum number of targets to emit (0 = unlimited)")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "log debug output to stderr")

	cmd.AddCommand(
		newDiffCmd(opts, stdout, stderr),
		newDepsCmd(opts, stdout, stderr),
		newInitCmd(opts, stdout, stderr),
	)
	return cmd
}

// load reads the configuration and builds the logger for one invocation.
func (o *options) load(cmd *cobra.Command, stderr io.Writer) (*config.Config, *slog.Logger, error) {
	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(o.root, o.configFile, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// generate answers one query for files (root-relative) and appends the
// matrix lines to outputPath. The summary goes to stdout.
func (o *options) generate(cmd *cobra.Command, files []string, outputPath, modeArg string, stdout, stderr io.Writer) error {
	mode, err := model.ParseMode(modeArg)
	if err != nil {
		return err
	}
	cfg, logger, err := o.load(cmd, stderr)
	if err != nil {
		return err
	}

	m, err := matrix.New(cfg, mode, nil, logger)
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := m.ProcessChangedFile(resolve(cfg.Root, f)); err != nil {
			return err
		}
	}

	out, err := os.OpenFile(outputPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening output: %w", err)
	}
	if err := m.WriteCombinations(out, stdout); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing output: %w", err)
	}
	return nil
}

// resolve joins a root-relative path onto root. Absolute paths are kept so
// that validation can reject them if they lie outside the root.
func resolve(root, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(root, filepath.FromSlash(path))
}
