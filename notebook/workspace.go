package notebook

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// 默认提示文本
const (
	NoOutputMessage = "No output available for this cell."
	NoFilesMessage  = "No files in the workspace."
)

// Workspace 单元格产物与输入输出文件所在目录
type Workspace struct {
	dir string
}

// NewWorkspace 创建工作区并确保目录存在
func NewWorkspace(dir string) (*Workspace, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{dir: abs}, nil
}

// Dir 工作区绝对路径
func (w *Workspace) Dir() string { return w.dir }

// Resolve 相对路径按工作区解析，绝对路径原样返回
func (w *Workspace) Resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(w.dir, path)
}

// CellName renders a cell id for file names; an empty id becomes "None".
func CellName(cellID string) string {
	if cellID == "" {
		return "None"
	}
	return filepath.Base(filepath.Clean("/" + cellID))
}

// FigurePath 单元格图像产物路径
func (w *Workspace) FigurePath(cellID string) string {
	return filepath.Join(w.dir, fmt.Sprintf("cell_%s_figure.png", CellName(cellID)))
}

// CSVPath 单元格 CSV 产物默认路径
func (w *Workspace) CSVPath(cellID string) string {
	return filepath.Join(w.dir, fmt.Sprintf("cell_%s_output.csv", CellName(cellID)))
}

func (w *Workspace) inputPath(cellID string) string {
	return filepath.Join(w.dir, fmt.Sprintf("cell_%s.js", CellName(cellID)))
}

func (w *Workspace) outputPath(cellID string) string {
	return filepath.Join(w.dir, fmt.Sprintf("cell_%s_output.txt", CellName(cellID)))
}

// SaveCellInput 保存单元格源码
func (w *Workspace) SaveCellInput(cellID, code string) (string, error) {
	path := w.inputPath(cellID)
	if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
		return "", fmt.Errorf("save cell %s: %w", CellName(cellID), err)
	}
	return path, nil
}

// SaveCellOutput 保存单元格输出文本
func (w *Workspace) SaveCellOutput(cellID, output string) (string, error) {
	path := w.outputPath(cellID)
	if err := os.WriteFile(path, []byte(output), 0o644); err != nil {
		return "", fmt.Errorf("save cell %s output: %w", CellName(cellID), err)
	}
	return path, nil
}

// ReadCellOutput returns the saved output, or NoOutputMessage when the cell
// has none.
func (w *Workspace) ReadCellOutput(cellID string) (string, error) {
	data, err := os.ReadFile(w.outputPath(cellID))
	if errors.Is(err, os.ErrNotExist) {
		return NoOutputMessage, nil
	}
	if err != nil {
		return "", fmt.Errorf("read cell %s output: %w", CellName(cellID), err)
	}
	return string(data), nil
}

// ListFiles 返回工作区文件名（有序），为空时 ok 为 false
func (w *Workspace) ListFiles() (files []string, ok bool, err error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, false, fmt.Errorf("list files: %w", err)
	}
	for _, e := range entries {
		files = append(files, e.Name())
	}
	sort.Strings(files)
	return files, len(files) > 0, nil
}
