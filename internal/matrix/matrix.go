// Package matrix answers change-impact queries: which targets, under which
// build configurations, are affected by a set of changed files.
//
// A Matrix is built for one mode. It enumerates the mode's targets, computes
// each target's dependency footprint and inverts the footprints into a
// reverse index from file to targets. Changed files are then looked up one by
// one and the union of their targets is written as CI matrix output.
package matrix

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/phobologic/genmatrix/internal/config"
	"github.com/phobologic/genmatrix/internal/discover"
	"github.com/phobologic/genmatrix/internal/graph"
	"github.com/phobologic/genmatrix/internal/model"
)

// Matrix holds the reverse index for one mode and the targets accumulated
// from processed changes.
type Matrix struct {
	cfg       *config.Config
	mode      model.Mode
	layout    *discover.Layout
	extractor *graph.Extractor
	logger    *slog.Logger

	targets   []model.Target
	workflows []string
	index     map[string][]model.Target

	changed  []string
	affected map[model.Target]struct{}
}

// New enumerates and indexes every target of mode under cfg.Root.
// A nil extractor gets a fresh one rooted at cfg.Root; a nil logger discards output.
func New(cfg *config.Config, mode model.Mode, extractor *graph.Extractor, logger *slog.Logger) (*Matrix, error) {
	if _, err := model.ParseMode(string(mode)); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if extractor == nil {
		extractor = graph.NewExtractor(cfg.Root, nil, logger)
	}

	m := &Matrix{
		cfg:       cfg,
		mode:      mode,
		layout:    cfg.Layout(),
		extractor: extractor,
		logger:    logger,
		index:     make(map[string][]model.Target),
		affected:  make(map[model.Target]struct{}),
	}

	if err := m.enumerate(); err != nil {
		return nil, err
	}
	if err := m.buildIndex(); err != nil {
		return nil, err
	}

	m.logger.Debug("built reverse index",
		"mode", mode,
		"targets", len(m.targets),
		"files", len(m.index),
		"workflows", len(m.workflows),
	)
	return m, nil
}

// Mode returns the mode the matrix was built for.
func (m *Matrix) Mode() model.Mode {
	return m.mode
}

// Targets returns every enumerated target, sorted.
func (m *Matrix) Targets() []model.Target {
	return slices.Clone(m.targets)
}

// Workflows returns the pipeline definitions that invalidate every target.
func (m *Matrix) Workflows() []string {
	return slices.Clone(m.workflows)
}

// Lookup returns the targets whose footprint contains path.
func (m *Matrix) Lookup(path string) []model.Target {
	return slices.Clone(m.index[path])
}

func (m *Matrix) enumerate() error {
	baseDirs, err := m.layout.BaseDirs()
	if err != nil {
		return err
	}

	for _, baseDir := range baseDirs {
		if m.mode == model.Answer {
			if _, err := os.Stat(m.runnerPath(baseDir)); err != nil {
				m.logger.Debug("skipping base dir without answer runner", "dir", m.rel(baseDir))
				continue
			}
		}
		targets, err := m.layout.Targets(baseDir)
		if err != nil {
			return err
		}
		for _, t := range targets {
			if m.mode.Includes(t.Prefix) {
				m.targets = append(m.targets, t)
			}
		}
	}

	model.SortTargets(m.targets)
	return nil
}

func (m *Matrix) buildIndex() error {
	for _, t := range m.targets {
		deps, err := m.Deps(t)
		if err != nil {
			return fmt.Errorf("footprint of %s/%s: %w", m.rel(t.BaseDir), t, err)
		}
		for _, dep := range deps {
			m.index[dep] = append(m.index[dep], t)
		}
	}

	global, err := m.globalFiles()
	if err != nil {
		return err
	}
	for _, path := range global {
		m.index[path] = slices.Clone(m.targets)
	}

	for path := range m.index {
		if err := model.ValidatePath(m.cfg.Root, path); err != nil {
			return err
		}
	}
	return nil
}

// globalFiles returns the entry point, the mode's workflows and everything
// those workflows reach.
func (m *Matrix) globalFiles() ([]string, error) {
	workflows, err := m.modeWorkflows()
	if err != nil {
		return nil, err
	}
	m.workflows = workflows

	files := []string{m.cfg.Abs(m.cfg.EntryPoint)}
	for _, wf := range workflows {
		closure, err := m.extractor.TransitiveDependencies(wf)
		if err != nil {
			return nil, fmt.Errorf("workflow %s: %w", m.rel(wf), err)
		}
		files = append(files, wf)
		files = append(files, closure...)
	}
	return files, nil
}

// modeWorkflows returns the configured workflow for the mode or, when none is
// configured, every workflow whose name contains the mode and whose closure
// reaches the entry point.
func (m *Matrix) modeWorkflows() ([]string, error) {
	if wf, ok := m.cfg.Workflows[string(m.mode)]; ok {
		return []string{m.cfg.Abs(wf)}, nil
	}

	dir := m.cfg.Abs(m.cfg.WorkflowsDir)
	var candidates []string
	for _, pattern := range []string{"*.yml", "*.yaml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("globbing workflows: %w", err)
		}
		candidates = append(candidates, matches...)
	}
	slices.Sort(candidates)

	entry := m.cfg.Abs(m.cfg.EntryPoint)
	var workflows []string
	for _, wf := range candidates {
		if !strings.Contains(filepath.Base(wf), string(m.mode)) {
			continue
		}
		closure, err := m.extractor.TransitiveDependencies(wf)
		if err != nil {
			return nil, fmt.Errorf("workflow %s: %w", m.rel(wf), err)
		}
		if _, found := slices.BinarySearch(closure, entry); !found {
			continue
		}
		workflows = append(workflows, wf)
	}
	return workflows, nil
}

// ProcessChangedFile adds the targets affected by path, which must be
// absolute and inside the root. Files no target depends on are ignored.
func (m *Matrix) ProcessChangedFile(path string) error {
	if err := model.ValidatePath(m.cfg.Root, path); err != nil {
		return err
	}
	m.changed = append(m.changed, m.rel(path))

	hits := m.index[path]
	for _, t := range hits {
		m.affected[t] = struct{}{}
	}
	m.logger.Debug("processed changed file", "file", m.rel(path), "targets", len(hits))
	return nil
}

// Affected returns the targets accumulated so far, sorted.
func (m *Matrix) Affected() []model.Target {
	targets := make([]model.Target, 0, len(m.affected))
	for t := range m.affected {
		targets = append(targets, t)
	}
	model.SortTargets(targets)
	return targets
}

// Result returns the affected targets, capped at cfg.MaxTargets, and the build
// configurations. Configurations are present only when a target is.
func (m *Matrix) Result() *model.Result {
	affected := m.Affected()
	selected := SelectTargets(affected, m.cfg.MaxTargets)
	if len(selected) < len(affected) {
		m.logger.Warn("truncated target list",
			"affected", len(affected),
			"max_targets", m.cfg.MaxTargets,
		)
	}

	res := &model.Result{
		Targets:      make([]model.TargetEntry, 0, len(selected)),
		BuildConfigs: []model.BuildConfig{},
	}
	for _, t := range selected {
		res.Targets = append(res.Targets, t.Entry(m.cfg.Root))
	}
	if len(res.Targets) > 0 {
		res.BuildConfigs = append(res.BuildConfigs, m.cfg.BuildConfigs...)
	}
	return res
}

// WriteCombinations writes the matrix-targets and matrix-build-configs lines
// to output and, when summary is non-nil, a human-readable summary to it.
func (m *Matrix) WriteCombinations(output, summary io.Writer) error {
	res := m.Result()
	if summary != nil {
		if err := writeSummary(summary, m.mode, m.changed, res); err != nil {
			return fmt.Errorf("writing summary: %w", err)
		}
	}
	if err := writeOutput(output, res); err != nil {
		return fmt.Errorf("writing matrix output: %w", err)
	}
	return nil
}

// SelectTargets returns the first maxTargets targets.
// If maxTargets is <= 0 or >= len(targets), all targets are returned.
func SelectTargets(targets []model.Target, maxTargets int) []model.Target {
	if maxTargets <= 0 || maxTargets >= len(targets) {
		return targets
	}
	return targets[:maxTargets]
}

func (m *Matrix) rel(path string) string {
	if rel, err := filepath.Rel(m.cfg.Root, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return path
}
