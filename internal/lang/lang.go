// Package lang classifies files into the categories gen-matrix knows how to
// parse, and provides the tree-sitter grammar and embedded query for sources.
package lang

import (
	"embed"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

//go:embed queries/*.scm
var queryFS embed.FS

// Category is the parsing strategy selected for a file.
type Category int

const (
	// Other files have no dependencies.
	Other Category = iota
	// Source files are C/C++ sources and headers with local include directives.
	Source
	// Pipeline files are CI workflow and action definitions.
	Pipeline
)

func (c Category) String() string {
	switch c {
	case Source:
		return "source"
	case Pipeline:
		return "pipeline"
	}
	return "other"
}

// PipelineDir is the root-relative directory that holds pipeline definitions.
const PipelineDir = ".github"

// Language holds tree-sitter configuration for a supported source language.
type Language struct {
	Name       string
	Extensions []string
	lang       *sitter.Language
	queryOnce  sync.Once
	query      *sitter.Query
	queryErr   error
}

// GetLanguage returns the tree-sitter Language pointer.
func (l *Language) GetLanguage() *sitter.Language {
	return l.lang
}

// NewParser creates a fresh tree-sitter parser for this language.
func (l *Language) NewParser() *sitter.Parser {
	p := sitter.NewParser()
	p.SetLanguage(l.lang)
	return p
}

// GetIncludeQuery returns the compiled include query (safe to share).
func (l *Language) GetIncludeQuery() (*sitter.Query, error) {
	l.queryOnce.Do(func() {
		data, err := queryFS.ReadFile(fmt.Sprintf("queries/%s.scm", l.Name))
		if err != nil {
			l.queryErr = fmt.Errorf("reading query file: %w", err)
			return
		}
		q, err := sitter.NewQuery(data, l.lang)
		if err != nil {
			l.queryErr = fmt.Errorf("compiling query: %w", err)
			return
		}
		l.query = q
	})
	return l.query, l.queryErr
}

// Languages maps language names to their configuration.
// Populated by init() functions in per-language files.
var Languages = map[string]*Language{}

var pipelineExtensions = map[string]struct{}{
	".yml":  {},
	".yaml": {},
}

// extensionMap is built lazily after all init() functions have run.
var extensionMap map[string]string
var extensionOnce sync.Once

func getExtensionMap() map[string]string {
	extensionOnce.Do(func() {
		extensionMap = make(map[string]string)
		for _, l := range Languages {
			for _, ext := range l.Extensions {
				extensionMap[ext] = l.Name
			}
		}
	})
	return extensionMap
}

// ForExtension returns the language name for a file extension, or "" if unsupported.
func ForExtension(ext string) string {
	return getExtensionMap()[ext]
}

// Classify picks the parsing strategy for an absolute path inside root.
// YAML only counts as a pipeline definition when it lives under root/.github.
func Classify(root, path string) Category {
	ext := filepath.Ext(path)
	if ForExtension(ext) != "" {
		return Source
	}
	if _, ok := pipelineExtensions[ext]; ok {
		rel, err := filepath.Rel(root, path)
		if err == nil && strings.HasPrefix(filepath.ToSlash(rel), PipelineDir+"/") {
			return Pipeline
		}
	}
	return Other
}
