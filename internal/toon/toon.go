// Package toon implements TOON (Token-Oriented Object Notation) encoding.
package toon

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/phobologic/genmatrix/internal/model"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Encode converts the answer to one change-impact query into TOON format.
func Encode(mode model.Mode, changed []string, res *model.Result) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("mode: %s", encodeValue(string(mode))))
	parts = append(parts, formatList("changed", "path", changed))

	var targetRows [][]string
	for i := range res.Targets {
		te := &res.Targets[i]
		targetRows = append(targetRows, []string{te.Directory, te.Name})
	}
	parts = append(parts, formatTabular("targets", []string{"directory", "name"}, targetRows))

	var configRows [][]string
	for i := range res.BuildConfigs {
		bc := &res.BuildConfigs[i]
		configRows = append(configRows, []string{bc.Compiler, bc.Stdlib})
	}
	parts = append(parts, formatTabular("build_configs", []string{"compiler", "stdlib"}, configRows))

	return strings.Join(parts, "\n")
}

// EncodeDeps converts one file's direct and transitive dependencies into TOON format.
func EncodeDeps(file string, direct, transitive []string) string {
	return strings.Join([]string{
		fmt.Sprintf("file: %s", encodeValue(file)),
		formatList("direct", "path", direct),
		formatList("transitive", "path", transitive),
	}, "\n")
}

func formatList(name, column string, values []string) string {
	rows := make([][]string, 0, len(values))
	for _, v := range values {
		rows = append(rows, []string{v})
	}
	return formatTabular(name, []string{column}, rows)
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
