// Package parse extracts declared references from source and pipeline files.
// It reports what a file names; resolving those names against the file system
// is left to the caller.
package parse

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Includes returns the quoted paths of local #include directives in source
// order, without duplicates. The query must capture string_literal paths of
// preproc_include nodes. A source the parser rejects is an error, never an
// empty include list.
func Includes(parser *sitter.Parser, query *sitter.Query, source []byte) ([]string, error) {
	if len(source) == 0 {
		return nil, nil
	}

	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, fmt.Errorf("parsing source: %w", err)
	}
	defer tree.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(query, tree.RootNode())

	var includes []string
	seen := make(map[string]struct{})

	for {
		match, ok := qc.NextMatch()
		if !ok {
			break
		}
		match = qc.FilterPredicates(match, source)

		for _, c := range match.Captures {
			if query.CaptureNameForId(c.Index) != "include.path" {
				continue
			}
			path := strings.Trim(nodeText(c.Node, source), `"`)
			if path == "" {
				continue
			}
			if _, dup := seen[path]; dup {
				continue
			}
			seen[path] = struct{}{}
			includes = append(includes, path)
		}
	}

	return includes, nil
}

func nodeText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}
