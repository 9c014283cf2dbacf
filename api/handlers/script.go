package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/Kirito034/DataVita/kernel"
	"github.com/Kirito034/DataVita/notebook"
	"github.com/Kirito034/DataVita/types"
)

// =============================================================================
// 📜 脚本单元格 Handler
// =============================================================================

// ScriptHandler 脚本方言单元格接口
type ScriptHandler struct {
	executor  *kernel.ScriptExecutor
	workspace *notebook.Workspace
	logger    *zap.Logger
}

// CodeRequest 校验与执行请求
type CodeRequest struct {
	Code   string `json:"code"`
	CellID string `json:"cell_id,omitempty"`
}

// ValidateResponse 校验结果
type ValidateResponse struct {
	Safe    bool     `json:"safe"`
	Details []string `json:"details"`
}

// CellOutputRequest 保存单元格输出
type CellOutputRequest struct {
	Output string `json:"output"`
}

// NewScriptHandler 创建脚本单元格处理器
func NewScriptHandler(executor *kernel.ScriptExecutor, ws *notebook.Workspace, logger *zap.Logger) *ScriptHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScriptHandler{
		executor:  executor,
		workspace: ws,
		logger:    logger.With(zap.String("handler", "script")),
	}
}

// Register 挂载 /api/python 路由
func (h *ScriptHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/python/validate", h.HandleValidate)
	mux.HandleFunc("POST /api/python/execute", h.HandleExecute)
	mux.HandleFunc("POST /api/python/cells/{id}/input", h.HandleSaveInput)
	mux.HandleFunc("POST /api/python/cells/{id}/output", h.HandleSaveOutput)
	mux.HandleFunc("GET /api/python/cells/{id}/output", h.HandleGetOutput)
	mux.HandleFunc("GET /api/python/files", h.HandleListFiles)
}

// HandleValidate 静态检查代码
// @Router /api/python/validate [post]
func (h *ScriptHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	var req CodeRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	safe, details := h.executor.Validate(req.Code)
	WriteSuccess(w, r, ValidateResponse{Safe: safe, Details: details})
}

// HandleExecute 执行单元格；执行失败也以 200 返回，错误文本在 stderr
// @Router /api/python/execute [post]
func (h *ScriptHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	var req CodeRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	ctx := types.WithCellID(r.Context(), req.CellID)
	out := h.executor.Execute(ctx, req.CellID, req.Code)
	WriteSuccess(w, r, out)
}

// HandleSaveInput 保存单元格源码
func (h *ScriptHandler) HandleSaveInput(w http.ResponseWriter, r *http.Request) {
	var req CodeRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	path, err := h.workspace.SaveCellInput(r.PathValue("id"), req.Code)
	if err != nil {
		WriteInternalError(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, map[string]string{"path": path})
}

// HandleSaveOutput 保存单元格输出
func (h *ScriptHandler) HandleSaveOutput(w http.ResponseWriter, r *http.Request) {
	var req CellOutputRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	path, err := h.workspace.SaveCellOutput(r.PathValue("id"), req.Output)
	if err != nil {
		WriteInternalError(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, map[string]string{"path": path})
}

// HandleGetOutput 读取单元格输出
func (h *ScriptHandler) HandleGetOutput(w http.ResponseWriter, r *http.Request) {
	output, err := h.workspace.ReadCellOutput(r.PathValue("id"))
	if err != nil {
		WriteInternalError(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, map[string]string{"output": output})
}

// HandleListFiles 列出工作区文件
func (h *ScriptHandler) HandleListFiles(w http.ResponseWriter, r *http.Request) {
	files, ok, err := h.workspace.ListFiles()
	if err != nil {
		WriteInternalError(w, r, err, h.logger)
		return
	}
	if !ok {
		WriteSuccess(w, r, map[string]any{"files": []string{}, "message": notebook.NoFilesMessage})
		return
	}
	WriteSuccess(w, r, map[string]any{"files": files})
}
