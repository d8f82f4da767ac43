// Package model defines core data structures for gen-matrix.
package model

import (
	"cmp"
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Kind is the category of a buildable unit, taken from its filename prefix.
type Kind string

const (
	Solution Kind = "day"
	Test     Kind = "test"
)

// Mode selects which targets a matrix covers and what goes into their footprints.
type Mode string

const (
	Build  Mode = "build"
	Answer Mode = "answer"
	Unit   Mode = "unit"
)

// Modes lists every valid mode in a fixed order.
var Modes = []Mode{Build, Answer, Unit}

// ParseMode converts a CLI argument to a Mode.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", &PreconditionError{Op: "parse mode", Path: s, Reason: "mode must be one of build, answer, unit"}
}

// Includes reports whether targets of kind k take part in mode m.
func (m Mode) Includes(k Kind) bool {
	switch m {
	case Unit:
		return k == Test
	case Answer:
		return k == Solution
	case Build:
		return k == Solution || k == Test
	}
	return false
}

var targetRe = regexp.MustCompile(`^(?P<prefix>day|test)(?P<day>\d+)(?P<extra>.*)$`)

// Target is one buildable/testable unit, e.g. 2023/src/day05.cpp.
// Targets are compared structurally and never mutated.
type Target struct {
	BaseDir string // absolute
	Day     int
	Prefix  Kind
	Extra   string
}

// TargetFromFile builds a Target from a source file under baseDir/src.
func TargetFromFile(baseDir, sourceFile string) (Target, error) {
	stem := strings.TrimSuffix(filepath.Base(sourceFile), filepath.Ext(sourceFile))
	m := targetRe.FindStringSubmatch(stem)
	if m == nil {
		return Target{}, &PreconditionError{Op: "parse target", Path: sourceFile, Reason: "file name does not match (day|test)<digits><suffix>"}
	}
	day, err := strconv.Atoi(m[targetRe.SubexpIndex("day")])
	if err != nil {
		return Target{}, &PreconditionError{Op: "parse target", Path: sourceFile, Reason: err.Error()}
	}
	return Target{
		BaseDir: baseDir,
		Day:     day,
		Prefix:  Kind(m[targetRe.SubexpIndex("prefix")]),
		Extra:   m[targetRe.SubexpIndex("extra")],
	}, nil
}

// String returns the display name, which doubles as the fixture directory name.
func (t Target) String() string {
	return fmt.Sprintf("%s%02d%s", t.Prefix, t.Day, t.Extra)
}

// Compare orders targets by base dir, day, prefix, then suffix.
func (t Target) Compare(o Target) int {
	if c := cmp.Compare(t.BaseDir, o.BaseDir); c != 0 {
		return c
	}
	if c := cmp.Compare(t.Day, o.Day); c != 0 {
		return c
	}
	if c := cmp.Compare(t.Prefix, o.Prefix); c != 0 {
		return c
	}
	return cmp.Compare(t.Extra, o.Extra)
}

// SortTargets sorts in place by Target.Compare.
func SortTargets(targets []Target) {
	slices.SortFunc(targets, Target.Compare)
}

// TargetEntry is the serialized form of a Target.
type TargetEntry struct {
	Directory string `json:"directory"`
	Name      string `json:"name"`
}

// Entry returns the serialized form of t, with the directory relative to root.
func (t Target) Entry(root string) TargetEntry {
	dir, err := filepath.Rel(root, t.BaseDir)
	if err != nil {
		dir = t.BaseDir
	}
	return TargetEntry{Directory: filepath.ToSlash(dir), Name: t.String()}
}

// BuildConfig is one compiler/standard library combination.
type BuildConfig struct {
	Compiler string `json:"compiler" yaml:"compiler" mapstructure:"compiler" validate:"required"`
	Stdlib   string `json:"stdlib" yaml:"stdlib" mapstructure:"stdlib" validate:"required"`
}

// Result is the answer to one change-impact query.
type Result struct {
	Targets      []TargetEntry
	BuildConfigs []BuildConfig
}
