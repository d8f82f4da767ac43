package matrix

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/phobologic/genmatrix/internal/model"
)

// Deps returns the dependency footprint of t for the matrix's mode, sorted:
// the source file, its transitive includes and the base dir's build file.
// Answer mode adds the target's answer fixtures, the matching inputs and the
// symlink-resolved runner script. Unit mode adds helper files next to the source.
func (m *Matrix) Deps(t model.Target) ([]string, error) {
	src := m.layout.SourceFile(t)
	closure, err := m.extractor.TransitiveDependencies(src, m.cfg.SearchRoots(t.BaseDir)...)
	if err != nil {
		return nil, err
	}

	deps := make(map[string]struct{}, len(closure)+2)
	deps[src] = struct{}{}
	for _, dep := range closure {
		deps[dep] = struct{}{}
	}
	deps[m.layout.BuildFilePath(t.BaseDir)] = struct{}{}

	switch m.mode {
	case model.Answer:
		if err := m.answerDeps(t, deps); err != nil {
			return nil, err
		}
	case model.Unit:
		if err := m.helperDeps(t, deps); err != nil {
			return nil, err
		}
	}

	out := make([]string, 0, len(deps))
	for dep := range deps {
		out = append(out, dep)
	}
	slices.Sort(out)
	return out, nil
}

func (m *Matrix) answerDeps(t model.Target, deps map[string]struct{}) error {
	name := t.String()
	fixtures, err := filepath.Glob(filepath.Join(t.BaseDir, m.cfg.AnswerTestsDir, name, "*"))
	if err != nil {
		return fmt.Errorf("globbing answer tests: %w", err)
	}
	for _, fixture := range fixtures {
		deps[fixture] = struct{}{}
		deps[filepath.Join(t.BaseDir, m.cfg.InputDir, name, filepath.Base(fixture))] = struct{}{}
	}

	runner := m.runnerPath(t.BaseDir)
	if _, err := os.Stat(runner); err != nil {
		return &model.PreconditionError{Op: "answer runner", Path: runner, Reason: "missing"}
	}
	resolved, err := filepath.EvalSymlinks(runner)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", runner, err)
	}
	deps[resolved] = struct{}{}
	return nil
}

func (m *Matrix) helperDeps(t model.Target, deps map[string]struct{}) error {
	if m.cfg.HelperSuffix == "" {
		return nil
	}
	pattern := filepath.Join(m.layout.SourceDir(t.BaseDir), t.String()+m.cfg.HelperSuffix+".*")
	helpers, err := filepath.Glob(pattern)
	if err != nil {
		return fmt.Errorf("globbing helpers: %w", err)
	}
	for _, helper := range helpers {
		deps[helper] = struct{}{}
	}
	return nil
}

func (m *Matrix) runnerPath(baseDir string) string {
	return filepath.Join(baseDir, m.cfg.RunnerScript)
}
