// Package graph extracts file-level dependency edges and computes their
// transitive closure.
//
// An Extractor is not safe for concurrent use. Its Cache lives as long as the
// Extractor and is never invalidated: one process answers one query over a
// static tree.
package graph

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/genmatrix/internal/lang"
	"github.com/phobologic/genmatrix/internal/parse"
)

// actionManifests are tried in order when a uses: reference names a directory.
var actionManifests = []string{"action.yml", "action.yaml"}

// Cache memoizes direct and transitive dependencies per (path, search roots).
type Cache struct {
	direct  map[string][]string
	closure map[string][]string
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{
		direct:  make(map[string][]string),
		closure: make(map[string][]string),
	}
}

// Len reports how many direct and transitive results are memoized.
func (c *Cache) Len() (direct, closure int) {
	return len(c.direct), len(c.closure)
}

func cacheKey(path string, roots []string) string {
	return path + "\x00" + strings.Join(roots, "\x00")
}

// Extractor returns the files a file references, resolved on disk.
type Extractor struct {
	root    string
	cache   *Cache
	logger  *slog.Logger
	parsers map[string]*parserPair
}

type parserPair struct {
	parser *sitter.Parser
	query  *sitter.Query
}

// NewExtractor creates an Extractor for the repository at root (absolute).
// A nil cache gets a fresh one; a nil logger discards output.
func NewExtractor(root string, cache *Cache, logger *slog.Logger) *Extractor {
	if cache == nil {
		cache = NewCache()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Extractor{
		root:    root,
		cache:   cache,
		logger:  logger,
		parsers: make(map[string]*parserPair),
	}
}

// Root returns the repository root the extractor resolves pipeline references against.
func (e *Extractor) Root() string {
	return e.root
}

// Cache returns the memo cache.
func (e *Extractor) Cache() *Cache {
	return e.cache
}

// Dependencies returns the files path directly references, sorted.
// Includes are resolved against path's own directory first, then roots in
// order; references that resolve nowhere are dropped. Reading a source or
// pipeline file that does not exist is an error.
func (e *Extractor) Dependencies(path string, roots ...string) ([]string, error) {
	key := cacheKey(path, roots)
	if deps, ok := e.cache.direct[key]; ok {
		return deps, nil
	}

	var (
		deps []string
		err  error
	)
	switch lang.Classify(e.root, path) {
	case lang.Source:
		deps, err = e.sourceDependencies(path, roots)
	case lang.Pipeline:
		deps, err = e.pipelineDependencies(path)
	}
	if err != nil {
		return nil, err
	}

	sort.Strings(deps)
	e.cache.direct[key] = deps
	return deps, nil
}

// TransitiveDependencies returns every file reachable from path, sorted.
// path itself is included only when it sits on a cycle.
//
// Closures are memoized for every file the walk reaches, so a header shared
// by many sources is expanded once. Members of one include cycle share a
// single closure.
func (e *Extractor) TransitiveDependencies(path string, roots ...string) ([]string, error) {
	if deps, ok := e.cache.closure[cacheKey(path, roots)]; ok {
		return deps, nil
	}

	w := &closureWalk{
		e:       e,
		roots:   roots,
		index:   make(map[string]int),
		low:     make(map[string]int),
		onStack: make(map[string]bool),
	}
	if err := w.visit(path); err != nil {
		return nil, err
	}
	return e.cache.closure[cacheKey(path, roots)], nil
}

// closureWalk is one Tarjan strongly-connected-components pass over the
// include graph. Each component is closed as soon as it completes, at which
// point every file it depends on outside the component is already memoized.
type closureWalk struct {
	e       *Extractor
	roots   []string
	index   map[string]int
	low     map[string]int
	onStack map[string]bool
	stack   []string
	next    int
}

func (w *closureWalk) memoized(path string) ([]string, bool) {
	deps, ok := w.e.cache.closure[cacheKey(path, w.roots)]
	return deps, ok
}

func (w *closureWalk) visit(node string) error {
	w.index[node] = w.next
	w.low[node] = w.next
	w.next++
	w.stack = append(w.stack, node)
	w.onStack[node] = true

	deps, err := w.e.Dependencies(node, w.roots...)
	if err != nil {
		return fmt.Errorf("dependencies of %s: %w", node, err)
	}
	for _, dep := range deps {
		if _, ok := w.memoized(dep); ok {
			continue
		}
		if _, seen := w.index[dep]; !seen {
			if err := w.visit(dep); err != nil {
				return err
			}
			w.low[node] = min(w.low[node], w.low[dep])
		} else if w.onStack[dep] {
			w.low[node] = min(w.low[node], w.index[dep])
		}
	}

	if w.low[node] != w.index[node] {
		return nil
	}

	component := make(map[string]struct{})
	for {
		top := w.stack[len(w.stack)-1]
		w.stack = w.stack[:len(w.stack)-1]
		w.onStack[top] = false
		component[top] = struct{}{}
		if top == node {
			break
		}
	}
	return w.close(component)
}

// close memoizes the shared closure of a completed component.
func (w *closureWalk) close(component map[string]struct{}) error {
	reach := make(map[string]struct{})
	cyclic := len(component) > 1
	for member := range component {
		deps, err := w.e.Dependencies(member, w.roots...)
		if err != nil {
			return fmt.Errorf("dependencies of %s: %w", member, err)
		}
		for _, dep := range deps {
			if _, inside := component[dep]; inside {
				cyclic = true
				continue
			}
			reach[dep] = struct{}{}
			closure, ok := w.memoized(dep)
			if !ok {
				return fmt.Errorf("closure of %s not resolved before %s", dep, member)
			}
			for _, p := range closure {
				reach[p] = struct{}{}
			}
		}
	}
	if cyclic {
		for member := range component {
			reach[member] = struct{}{}
		}
	}

	closure := sortedKeys(reach)
	for member := range component {
		w.e.cache.closure[cacheKey(member, w.roots)] = closure
	}
	return nil
}

func (e *Extractor) sourceDependencies(path string, roots []string) ([]string, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	pp, err := e.parserFor(filepath.Ext(path))
	if err != nil {
		return nil, err
	}

	includes, err := parse.Includes(pp.parser, pp.query, source)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	dirs := append([]string{filepath.Dir(path)}, roots...)
	var deps []string
	for _, inc := range includes {
		resolved, ok := firstFile(dirs, filepath.FromSlash(inc))
		if !ok {
			e.logger.Debug("dropped unresolved include", "file", e.rel(path), "include", inc)
			continue
		}
		deps = append(deps, resolved)
	}
	return dedupe(deps), nil
}

func (e *Extractor) pipelineDependencies(path string) ([]string, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	refs, err := parse.Pipeline(source)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var deps []string
	for _, ref := range refs.Uses {
		target := filepath.Join(e.root, filepath.FromSlash(ref))
		if isFile(target) {
			deps = append(deps, target)
			continue
		}
		manifest, ok := firstFile([]string{target}, actionManifests...)
		if !ok {
			e.logger.Debug("dropped unresolved uses", "file", e.rel(path), "uses", ref)
			continue
		}
		deps = append(deps, manifest)
	}
	for _, ref := range refs.Scripts {
		target := filepath.Join(e.root, filepath.FromSlash(ref))
		if !isFile(target) {
			e.logger.Debug("dropped unresolved script", "file", e.rel(path), "script", ref)
			continue
		}
		deps = append(deps, target)
	}
	return dedupe(deps), nil
}

func (e *Extractor) parserFor(ext string) (*parserPair, error) {
	name := lang.ForExtension(ext)
	if pp, ok := e.parsers[name]; ok {
		return pp, nil
	}
	l := lang.Languages[name]
	if l == nil {
		return nil, fmt.Errorf("no language registered for %q", ext)
	}
	q, err := l.GetIncludeQuery()
	if err != nil {
		return nil, fmt.Errorf("include query for %s: %w", name, err)
	}
	pp := &parserPair{parser: l.NewParser(), query: q}
	e.parsers[name] = pp
	return pp, nil
}

func (e *Extractor) rel(path string) string {
	if rel, err := filepath.Rel(e.root, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return path
}

// firstFile returns the first dir/name (for each dir, each name) that is a regular file.
func firstFile(dirs []string, names ...string) (string, bool) {
	for _, dir := range dirs {
		for _, name := range names {
			candidate := filepath.Join(dir, name)
			if isFile(candidate) {
				return candidate, true
			}
		}
	}
	return "", false
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

func dedupe(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := paths[:0]
	for _, p := range paths {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
