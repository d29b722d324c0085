package manifest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// Render reads a manifest file and executes it as a Go template with
// sprig functions against data. A manifest without template actions
// passes through byte for byte, so plain YAML needs no opt-out.
func Render(path string, data map[string]any) ([]byte, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return RenderBytes(filepath.Base(path), content, data)
}

// RenderBytes renders in-memory manifest text.
func RenderBytes(name string, content []byte, data map[string]any) ([]byte, error) {
	tmpl, err := template.New(name).Funcs(sprig.FuncMap()).Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("parsing manifest template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("executing manifest template: %w", err)
	}
	return buf.Bytes(), nil
}
