// Package changes reads the set of changed files a query starts from.
package changes

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/sourcegraph/go-diff/diff"

	"github.com/phobologic/genmatrix/internal/model"
)

const devNull = "/dev/null"

// ParseJSON decodes a JSON array of root-relative paths.
func ParseJSON(arg string) ([]string, error) {
	var files []string
	if err := json.Unmarshal([]byte(arg), &files); err != nil {
		return nil, &model.PreconditionError{Op: "parse changed files", Reason: err.Error()}
	}
	return files, nil
}

// FromDiff returns the root-relative paths touched by a unified diff, sorted.
// Both sides of a rename count; created and deleted files count once.
func FromDiff(patch []byte) ([]string, error) {
	fileDiffs, err := diff.ParseMultiFileDiff(patch)
	if err != nil {
		return nil, fmt.Errorf("parsing diff: %w", err)
	}

	var files []string
	for _, fd := range fileDiffs {
		for _, name := range []string{fd.OrigName, fd.NewName} {
			if name == "" || name == devNull {
				continue
			}
			files = append(files, stripPrefix(name))
		}
	}

	slices.Sort(files)
	return slices.Compact(files), nil
}

// stripPrefix removes the a/ or b/ prefix git puts on diff paths.
func stripPrefix(name string) string {
	if rest, ok := strings.CutPrefix(name, "a/"); ok {
		return rest
	}
	if rest, ok := strings.CutPrefix(name, "b/"); ok {
		return rest
	}
	return name
}
