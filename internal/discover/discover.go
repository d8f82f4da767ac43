// Package discover finds base directories and the buildable targets in them.
package discover

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/phobologic/genmatrix/internal/model"
)

// Layout describes the repository conventions:
// <root>/<base>/<BuildFile> marks a base directory, and targets live in
// <root>/<base>/src/<kind><NN><suffix><SourceExt>.
type Layout struct {
	Root          string // absolute
	BuildFile     string
	SourceExt     string
	ScaffoldStems []string
}

// SourceDir returns the directory holding a base directory's target sources.
func (l *Layout) SourceDir(baseDir string) string {
	return filepath.Join(baseDir, "src")
}

// SourceFile returns the source file for a target.
func (l *Layout) SourceFile(t model.Target) string {
	return filepath.Join(l.SourceDir(t.BaseDir), t.String()+l.SourceExt)
}

// BuildFilePath returns the build configuration file of a base directory.
func (l *Layout) BuildFilePath(baseDir string) string {
	return filepath.Join(baseDir, l.BuildFile)
}

// BaseDirs returns every direct subdirectory of the root that contains a
// build file, sorted. Hidden directories and directories ignored by the
// root .gitignore are skipped.
func (l *Layout) BaseDirs() ([]string, error) {
	entries, err := os.ReadDir(l.Root)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", l.Root, err)
	}
	gi := loadGitignore(l.Root)

	var dirs []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if gi != nil && (gi.MatchesPath(name) || gi.MatchesPath(name+"/")) {
			continue
		}
		dir := filepath.Join(l.Root, name)
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		if info, err := os.Stat(l.BuildFilePath(dir)); err != nil || info.IsDir() {
			continue
		}
		dirs = append(dirs, dir)
	}

	slices.Sort(dirs)
	return dirs, nil
}

// Targets returns the targets under baseDir/src, sorted. Scaffold files are
// skipped; any other source whose name does not follow the naming convention
// is a precondition error.
func (l *Layout) Targets(baseDir string) ([]model.Target, error) {
	files, err := filepath.Glob(filepath.Join(l.SourceDir(baseDir), "*"+l.SourceExt))
	if err != nil {
		return nil, fmt.Errorf("globbing sources in %s: %w", baseDir, err)
	}

	var targets []model.Target
	for _, file := range files {
		stem := strings.TrimSuffix(filepath.Base(file), l.SourceExt)
		if slices.Contains(l.ScaffoldStems, stem) {
			continue
		}
		t, err := model.TargetFromFile(baseDir, file)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}

	model.SortTargets(targets)
	return targets, nil
}

func loadGitignore(root string) *ignore.GitIgnore {
	path := filepath.Join(root, ".gitignore")
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil
	}
	return gi
}
