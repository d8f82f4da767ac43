// Package config loads gen-matrix settings from defaults, an optional
// .gen-matrix.yaml at the repository root, .env, GEN_MATRIX_* environment
// variables and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/phobologic/genmatrix/internal/discover"
	"github.com/phobologic/genmatrix/internal/model"
)

// FileName is the config file looked up at the repository root.
const FileName = ".gen-matrix.yaml"

const envPrefix = "GEN_MATRIX"

var validate = validator.New()

// Config holds repository conventions and output settings.
type Config struct {
	// Root is the absolute, symlink-resolved repository root. It comes from
	// the command line, never from the config file.
	Root string `yaml:"-" mapstructure:"-" validate:"required"`

	EntryPoint       string              `yaml:"entry_point" mapstructure:"entry_point" validate:"required"`
	WorkflowsDir     string              `yaml:"workflows_dir" mapstructure:"workflows_dir" validate:"required"`
	Workflows        map[string]string   `yaml:"workflows" mapstructure:"workflows"`
	BuildFile        string              `yaml:"build_file" mapstructure:"build_file" validate:"required"`
	SourceExt        string              `yaml:"source_ext" mapstructure:"source_ext" validate:"required,startswith=."`
	ScaffoldStems    []string            `yaml:"scaffold_stems" mapstructure:"scaffold_stems"`
	SharedLibraries  []string            `yaml:"shared_libraries" mapstructure:"shared_libraries"`
	LibraryOverrides map[string][]string `yaml:"library_overrides" mapstructure:"library_overrides"`
	RunnerScript     string              `yaml:"runner_script" mapstructure:"runner_script" validate:"required"`
	AnswerTestsDir   string              `yaml:"answer_tests_dir" mapstructure:"answer_tests_dir" validate:"required"`
	InputDir         string              `yaml:"input_dir" mapstructure:"input_dir" validate:"required"`
	HelperSuffix     string              `yaml:"helper_suffix" mapstructure:"helper_suffix"`
	BuildConfigs     []model.BuildConfig `yaml:"build_configs" mapstructure:"build_configs" validate:"dive"`
	MaxTargets       int                 `yaml:"max_targets" mapstructure:"max_targets" validate:"gte=0"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		EntryPoint:       ".github/workflows/gen_matrix.py",
		WorkflowsDir:     ".github/workflows",
		Workflows:        map[string]string{},
		BuildFile:        "Makefile",
		SourceExt:        ".cpp",
		ScaffoldStems:    []string{"template"},
		SharedLibraries:  []string{"aoc_lib/src"},
		LibraryOverrides: map[string][]string{},
		RunnerScript:     "run_answer_tests.sh",
		AnswerTestsDir:   "answer_tests",
		InputDir:         "input",
		HelperSuffix:     "_helper",
		BuildConfigs: []model.BuildConfig{
			{Compiler: "clang++", Stdlib: "libstdc++"},
			{Compiler: "g++", Stdlib: "libstdc++"},
			{Compiler: "clang++-17", Stdlib: "libc++"},
		},
	}
}

// Load reads configuration for the repository at root. configFile may be
// empty, in which case <root>/.gen-matrix.yaml is used if it exists. flags may
// be nil; a "max-targets" flag that was set explicitly wins over every other
// source.
func Load(root, configFile string, flags *pflag.FlagSet) (*Config, error) {
	resolved, err := resolveRoot(root)
	if err != nil {
		return nil, err
	}

	// Existing environment variables win over .env.
	if err := godotenv.Load(filepath.Join(resolved, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	setDefaults(v, Default())

	if configFile == "" {
		if candidate := filepath.Join(resolved, FileName); fileExists(candidate) {
			configFile = candidate
		}
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", configFile, err)
		}
	}

	if flags != nil {
		if f := flags.Lookup("max-targets"); f != nil && f.Changed {
			if err := v.BindPFlag("max_targets", f); err != nil {
				return nil, fmt.Errorf("binding max-targets: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.Root = resolved

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and that workflow overrides name real modes.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return &model.PreconditionError{Op: "validate config", Reason: err.Error()}
	}
	for mode := range c.Workflows {
		if _, err := model.ParseMode(mode); err != nil {
			return &model.PreconditionError{Op: "validate config", Path: "workflows." + mode, Reason: "unknown mode"}
		}
	}
	return nil
}

// Layout returns the target layout described by c.
func (c *Config) Layout() *discover.Layout {
	return &discover.Layout{
		Root:          c.Root,
		BuildFile:     c.BuildFile,
		SourceExt:     c.SourceExt,
		ScaffoldStems: c.ScaffoldStems,
	}
}

// SearchRoots returns the include search roots for sources under baseDir:
// its own source directory, then the shared libraries.
func (c *Config) SearchRoots(baseDir string) []string {
	return append([]string{c.Layout().SourceDir(baseDir)}, c.LibraryDirs(baseDir)...)
}

// Abs turns a root-relative, slash-separated config path into an absolute path.
func (c *Config) Abs(rel string) string {
	return filepath.Join(c.Root, filepath.FromSlash(rel))
}

// LibraryDirs returns the existing shared library directories searched for
// includes of baseDir's sources. Libraries inside baseDir are skipped.
func (c *Config) LibraryDirs(baseDir string) []string {
	libs := c.SharedLibraries
	if rel, err := filepath.Rel(c.Root, baseDir); err == nil {
		if override, ok := c.LibraryOverrides[filepath.ToSlash(rel)]; ok {
			libs = override
		}
	}

	var dirs []string
	for _, lib := range libs {
		dir := c.Abs(lib)
		if inside(baseDir, dir) {
			continue
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		dirs = append(dirs, dir)
	}
	return dirs
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("entry_point", d.EntryPoint)
	v.SetDefault("workflows_dir", d.WorkflowsDir)
	v.SetDefault("workflows", d.Workflows)
	v.SetDefault("build_file", d.BuildFile)
	v.SetDefault("source_ext", d.SourceExt)
	v.SetDefault("scaffold_stems", d.ScaffoldStems)
	v.SetDefault("shared_libraries", d.SharedLibraries)
	v.SetDefault("library_overrides", d.LibraryOverrides)
	v.SetDefault("runner_script", d.RunnerScript)
	v.SetDefault("answer_tests_dir", d.AnswerTestsDir)
	v.SetDefault("input_dir", d.InputDir)
	v.SetDefault("helper_suffix", d.HelperSuffix)
	v.SetDefault("max_targets", d.MaxTargets)

	configs := make([]map[string]any, 0, len(d.BuildConfigs))
	for _, bc := range d.BuildConfigs {
		configs = append(configs, map[string]any{"compiler": bc.Compiler, "stdlib": bc.Stdlib})
	}
	v.SetDefault("build_configs", configs)
}

func resolveRoot(root string) (string, error) {
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("root path: %w", err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("root path: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s: not a directory", resolved)
	}
	return resolved, nil
}

func inside(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
