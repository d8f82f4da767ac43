package model

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrPrecondition marks a misconfigured repository or a caller bug.
// These are fatal: the CLI exits non-zero instead of producing a partial matrix.
var ErrPrecondition = errors.New("precondition violated")

// PreconditionError describes a single precondition violation.
type PreconditionError struct {
	Op     string
	Path   string
	Reason string
}

func (e *PreconditionError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.Reason)
}

func (e *PreconditionError) Unwrap() error { return ErrPrecondition }

// ValidatePath checks that path is absolute and lies inside root.
func ValidatePath(root, path string) error {
	if !filepath.IsAbs(path) {
		return &PreconditionError{Op: "validate path", Path: path, Reason: "not absolute"}
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return &PreconditionError{Op: "validate path", Path: path, Reason: "not inside " + root}
	}
	return nil
}
