package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/Kirito034/DataVita/internal/store"
	"github.com/Kirito034/DataVita/notebook"
	"github.com/Kirito034/DataVita/types"
)

// =============================================================================
// 📓 Notebook 状态 Handler
// =============================================================================

// DefaultNotebookID 未指定 notebook_id 时使用
const DefaultNotebookID = "default"

// NotebookHandler 命名空间、导出与版本接口
type NotebookHandler struct {
	store    *notebook.Store
	versions store.MetadataStore
	logger   *zap.Logger
}

// NotebookState 当前命名空间中可序列化的变量与单元格记录
type NotebookState struct {
	Variables map[string]any  `json:"variables"`
	Cells     []notebook.Cell `json:"cells"`
}

// ExportResponse 导出结果
type ExportResponse struct {
	NotebookID string `json:"notebook_id"`
	Format     string `json:"format"`
	Content    string `json:"content"`
	Version    int    `json:"version,omitempty"`
	Path       string `json:"path,omitempty"`
}

// NewNotebookHandler 创建处理器；versions 为 nil 时导出不留版本
func NewNotebookHandler(st *notebook.Store, versions store.MetadataStore, logger *zap.Logger) *NotebookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotebookHandler{
		store:    st,
		versions: versions,
		logger:   logger.With(zap.String("handler", "notebook")),
	}
}

// Register 挂载 /api/notebook 路由
func (h *NotebookHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/notebook/state", h.HandleState)
	mux.HandleFunc("POST /api/notebook/reset", h.HandleReset)
	mux.HandleFunc("GET /api/notebook/export", h.HandleExport)
	mux.HandleFunc("GET /api/notebook/versions", h.HandleListVersions)
	mux.HandleFunc("GET /api/notebook/versions/{version}", h.HandleGetVersion)
	mux.HandleFunc("DELETE /api/notebook/versions/{version}", h.HandleDeleteVersion)
}

// State 当前状态快照
func (h *NotebookHandler) State() NotebookState {
	return NotebookState{
		Variables: h.store.Serializable(),
		Cells:     h.store.Cells(),
	}
}

// HandleState 返回命名空间与单元格
// @Router /api/notebook/state [get]
func (h *NotebookHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, h.State())
}

// HandleReset 清空命名空间
// @Router /api/notebook/reset [post]
func (h *NotebookHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	h.store.Reset(r.Context())
	WriteSuccess(w, r, map[string]string{"message": "Notebook state reset"})
}

// HandleExport renders the notebook as ipynb or script. Each export is
// recorded as a new version when a metadata store is configured, and
// save=true also writes it under the notebook directory.
// @Router /api/notebook/export [get]
func (h *NotebookHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format := q.Get("format")
	if format == "" {
		format = notebook.FormatNotebook
	}
	notebookID := q.Get("notebook_id")
	if notebookID == "" {
		notebookID = DefaultNotebookID
	}

	var content string
	switch format {
	case notebook.FormatNotebook:
		doc, err := h.store.ExportNotebook()
		if err != nil {
			WriteInternalError(w, r, err, h.logger)
			return
		}
		content = string(doc)
	case notebook.FormatScript:
		content = h.store.ExportScript()
	default:
		WriteError(w, r, types.NewInvalidRequestError("unsupported export format: "+format), h.logger)
		return
	}

	resp := ExportResponse{NotebookID: notebookID, Format: format, Content: content}

	if h.versions != nil {
		author, _ := types.UserID(r.Context())
		v := &store.NotebookVersion{
			NotebookID: notebookID,
			Content:    content,
			Format:     format,
			Author:     author,
		}
		if err := h.versions.Save(r.Context(), v); err != nil {
			WriteInternalError(w, r, err, h.logger)
			return
		}
		resp.Version = v.Version
	}

	if save, _ := strconv.ParseBool(q.Get("save")); save {
		path, err := h.store.SaveExport(r.Context(), format)
		if err != nil {
			WriteInternalError(w, r, err, h.logger)
			return
		}
		resp.Path = path
	}

	h.logger.Info("notebook exported",
		zap.String("notebook_id", notebookID),
		zap.String("format", format),
		zap.Int("version", resp.Version),
	)
	WriteSuccess(w, r, resp)
}

func (h *NotebookHandler) requireVersions(w http.ResponseWriter, r *http.Request) bool {
	if h.versions == nil {
		WriteError(w, r, types.NewError(types.ErrServiceUnavailable, "notebook versions are not configured"), h.logger)
		return false
	}
	return true
}

func notebookID(r *http.Request) string {
	if id := r.URL.Query().Get("notebook_id"); id != "" {
		return id
	}
	return DefaultNotebookID
}

// HandleListVersions 列出导出版本，最新在前
func (h *NotebookHandler) HandleListVersions(w http.ResponseWriter, r *http.Request) {
	if !h.requireVersions(w, r) {
		return
	}
	list, err := h.versions.List(r.Context(), store.VersionFilter{
		NotebookID: notebookID(r),
		Format:     r.URL.Query().Get("format"),
		Limit:      QueryInt(r, "limit", 0),
		Offset:     QueryInt(r, "offset", 0),
	})
	if err != nil {
		WriteInternalError(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, list)
}

func versionParam(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (int, bool) {
	raw := r.PathValue("version")
	if raw == "latest" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		WriteError(w, r, types.NewInvalidRequestError("invalid version: "+raw), logger)
		return 0, false
	}
	return v, true
}

// HandleGetVersion 读取单个版本；latest 表示最新版本
func (h *NotebookHandler) HandleGetVersion(w http.ResponseWriter, r *http.Request) {
	if !h.requireVersions(w, r) {
		return
	}
	version, ok := versionParam(w, r, h.logger)
	if !ok {
		return
	}
	v, err := h.versions.Get(r.Context(), notebookID(r), version)
	if err != nil {
		WriteInternalError(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, v)
}

// HandleDeleteVersion 删除单个版本
func (h *NotebookHandler) HandleDeleteVersion(w http.ResponseWriter, r *http.Request) {
	if !h.requireVersions(w, r) {
		return
	}
	version, ok := versionParam(w, r, h.logger)
	if !ok {
		return
	}
	if version == 0 {
		WriteError(w, r, types.NewInvalidRequestError("a concrete version is required"), h.logger)
		return
	}
	if err := h.versions.Delete(r.Context(), notebookID(r), version); err != nil {
		WriteInternalError(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, map[string]int{"deleted": version})
}
