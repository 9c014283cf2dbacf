package notebook

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// =============================================================================
// 📤 导出
// =============================================================================

// 导出格式
const (
	FormatNotebook = "ipynb"
	FormatScript   = "script"
)

type nbDocument struct {
	Cells         []nbCell       `json:"cells"`
	Metadata      map[string]any `json:"metadata"`
	NBFormat      int            `json:"nbformat"`
	NBFormatMinor int            `json:"nbformat_minor"`
}

type nbCell struct {
	ID             string         `json:"id"`
	CellType       string         `json:"cell_type"`
	ExecutionCount int            `json:"execution_count"`
	Metadata       map[string]any `json:"metadata"`
	Source         []string       `json:"source"`
	Outputs        []nbOutput     `json:"outputs"`
}

type nbOutput struct {
	OutputType string         `json:"output_type"`
	Name       string         `json:"name,omitempty"`
	Text       []string       `json:"text,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

var invalidCellID = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// ExportNotebook renders the cells as an nbformat 4.5 document. Images are
// inlined as base64 PNG when the file is still on disk.
func (s *Store) ExportNotebook() ([]byte, error) {
	cells := s.Cells()
	doc := nbDocument{
		Cells: make([]nbCell, 0, len(cells)),
		Metadata: map[string]any{
			"kernelspec": map[string]any{
				"name":         "javascript",
				"display_name": "JavaScript",
				"language":     "javascript",
			},
			"language_info": map[string]any{
				"name":           "javascript",
				"file_extension": ".js",
			},
		},
		NBFormat:      4,
		NBFormatMinor: 5,
	}

	for i, c := range cells {
		cell := nbCell{
			ID:             exportCellID(c.ID, i),
			CellType:       "code",
			ExecutionCount: i + 1,
			Metadata:       map[string]any{},
			Source:         splitLines(c.Code),
			Outputs:        []nbOutput{},
		}
		if c.Stdout != "" {
			cell.Outputs = append(cell.Outputs, nbOutput{OutputType: "stream", Name: "stdout", Text: splitLines(c.Stdout)})
		}
		if c.Stderr != "" {
			cell.Outputs = append(cell.Outputs, nbOutput{OutputType: "stream", Name: "stderr", Text: splitLines(c.Stderr)})
		}
		for _, a := range c.Artifacts {
			cell.Outputs = append(cell.Outputs, artifactOutput(a))
		}
		doc.Cells = append(doc.Cells, cell)
	}
	return json.MarshalIndent(doc, "", " ")
}

func artifactOutput(a Artifact) nbOutput {
	data := map[string]any{"text/plain": []string{a.Path}}
	if a.Type == ArtifactImage {
		if raw, err := os.ReadFile(a.Path); err == nil {
			data["image/png"] = base64.StdEncoding.EncodeToString(raw)
		}
	}
	return nbOutput{OutputType: "display_data", Data: data, Metadata: map[string]any{}}
}

// ExportScript concatenates every cell's code under a "# Cell <id>" header.
func (s *Store) ExportScript() string {
	var b strings.Builder
	for _, c := range s.Cells() {
		fmt.Fprintf(&b, "# Cell %s\n%s\n\n", c.ID, c.Code)
	}
	return b.String()
}

// SaveExport writes the export to notebook_<timestamp>.ipynb or .js under
// the notebook directory and returns its path.
func (s *Store) SaveExport(ctx context.Context, format string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var (
		data []byte
		ext  string
	)
	switch format {
	case FormatNotebook, "":
		doc, err := s.ExportNotebook()
		if err != nil {
			return "", fmt.Errorf("render notebook: %w", err)
		}
		data, ext = doc, ".ipynb"
	case FormatScript:
		data, ext = []byte(s.ExportScript()), ".js"
	default:
		return "", fmt.Errorf("unsupported export format: %s", format)
	}

	if err := os.MkdirAll(s.notebookDir, 0o755); err != nil {
		return "", fmt.Errorf("create notebook dir: %w", err)
	}
	name := fmt.Sprintf("notebook_%s%s", s.now().Format("20060102_150405"), ext)
	path := filepath.Join(s.notebookDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return path, nil
}

// splitLines splits text keeping line terminators, as nbformat expects.
func splitLines(text string) []string {
	if text == "" {
		return []string{}
	}
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func exportCellID(id string, idx int) string {
	clean := invalidCellID.ReplaceAllString(id, "-")
	if clean == "" {
		clean = fmt.Sprintf("cell-%d", idx+1)
	}
	if len(clean) > 64 {
		clean = clean[:64]
	}
	return clean
}
