package matrix

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/phobologic/genmatrix/internal/model"
	"github.com/phobologic/genmatrix/internal/toon"
)

// Output keys read by the CI workflow.
const (
	TargetsKey      = "matrix-targets"
	BuildConfigsKey = "matrix-build-configs"
)

func writeOutput(w io.Writer, res *model.Result) error {
	var buf bytes.Buffer
	if err := writeLine(&buf, TargetsKey, res.Targets); err != nil {
		return err
	}
	if err := writeLine(&buf, BuildConfigsKey, res.BuildConfigs); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// writeLine writes key=<compact JSON>. Paths are written unescaped.
func writeLine(buf *bytes.Buffer, key string, v any) error {
	buf.WriteString(key)
	buf.WriteByte('=')
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return nil
}

func writeSummary(w io.Writer, mode model.Mode, changed []string, res *model.Result) error {
	r := lipgloss.NewRenderer(w)
	title := r.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#00FF99"))

	_, err := fmt.Fprintf(w, "%s\n%s\n", title.Render("gen-matrix"), toon.Encode(mode, changed, res))
	return err
}
