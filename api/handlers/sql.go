package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/Kirito034/DataVita/result"
	"github.com/Kirito034/DataVita/sqlexec"
	"github.com/Kirito034/DataVita/types"
)

// =============================================================================
// 🗃️ SQL Handler
// =============================================================================

// SQLHandler SQL 执行、脚本与元数据接口
type SQLHandler struct {
	executor *sqlexec.Executor
	scripts  *sqlexec.ScriptStore
	logger   *zap.Logger
}

// SQLExecuteRequest 执行请求
type SQLExecuteRequest struct {
	Query    string `json:"query"`
	Engine   string `json:"engine,omitempty"`
	Page     int    `json:"page,omitempty"`
	PageSize int    `json:"page_size,omitempty"`
}

// SQLExecuteResponse 执行结果
type SQLExecuteResponse struct {
	Result        any     `json:"result"`
	ExecutionTime float64 `json:"execution_time"`
}

// ScriptRequest 保存或更新脚本
type ScriptRequest struct {
	Filename string `json:"filename,omitempty"`
	SQLCode  string `json:"sql_code"`
}

// NewSQLHandler 创建 SQL 处理器
func NewSQLHandler(executor *sqlexec.Executor, scripts *sqlexec.ScriptStore, logger *zap.Logger) *SQLHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLHandler{
		executor: executor,
		scripts:  scripts,
		logger:   logger.With(zap.String("handler", "sql")),
	}
}

// Register 挂载 /api/sql 路由
func (h *SQLHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sql/execute", h.HandleExecute)
	mux.HandleFunc("GET /api/sql/scripts", h.HandleListScripts)
	mux.HandleFunc("POST /api/sql/scripts", h.HandleSaveScript)
	mux.HandleFunc("GET /api/sql/scripts/{name}", h.HandleGetScript)
	mux.HandleFunc("PUT /api/sql/scripts/{name}", h.HandleUpdateScript)
	mux.HandleFunc("DELETE /api/sql/scripts/{name}", h.HandleDeleteScript)
	mux.HandleFunc("GET /api/sql/metadata", h.HandleMetadata)
}

// HandleExecute 执行一条语句
// @Router /api/sql/execute [post]
func (h *SQLHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	var req SQLExecuteRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	res := h.executor.Execute(r.Context(), req.Query, req.Engine)
	if res.Error != "" {
		code := types.ErrExecution
		if strings.TrimSpace(req.Query) == "" {
			code = types.ErrInvalidRequest
		}
		WriteError(w, r, types.NewError(code, res.Error), h.logger)
		return
	}

	records, ok := res.Result.([]map[string]any)
	if !ok {
		WriteSuccess(w, r, SQLExecuteResponse{Result: res.Result, ExecutionTime: res.ExecutionTime})
		return
	}
	if req.Page <= 0 && result.NeedsStream(len(records)) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if err := result.StreamJSON(w, records); err != nil {
			h.logger.Warn("streaming sql result", zap.Error(err))
		}
		return
	}
	WriteSuccess(w, r, SQLExecuteResponse{
		Result:        result.Paginate(records, req.Page, req.PageSize),
		ExecutionTime: res.ExecutionTime,
	})
}

// HandleListScripts 列出已保存脚本
func (h *SQLHandler) HandleListScripts(w http.ResponseWriter, r *http.Request) {
	scripts, err := h.scripts.List(r.Context())
	if err != nil {
		WriteInternalError(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, scripts)
}

// HandleSaveScript 保存新脚本，重名返回 409
func (h *SQLHandler) HandleSaveScript(w http.ResponseWriter, r *http.Request) {
	var req ScriptRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.Filename == "" || req.SQLCode == "" {
		WriteError(w, r, types.NewInvalidRequestError("filename and sql_code are required"), h.logger)
		return
	}
	if err := h.scripts.Save(r.Context(), req.Filename, req.SQLCode); err != nil {
		WriteInternalError(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, map[string]string{"message": "SQL file saved successfully"})
}

// HandleGetScript 读取脚本
func (h *SQLHandler) HandleGetScript(w http.ResponseWriter, r *http.Request) {
	sc, err := h.scripts.Get(r.Context(), r.PathValue("name"))
	if err != nil {
		WriteInternalError(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, sc)
}

// HandleUpdateScript 替换脚本内容
func (h *SQLHandler) HandleUpdateScript(w http.ResponseWriter, r *http.Request) {
	var req ScriptRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if err := h.scripts.Update(r.Context(), r.PathValue("name"), req.SQLCode); err != nil {
		WriteInternalError(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, map[string]string{"message": "SQL file updated successfully"})
}

// HandleDeleteScript 删除脚本
func (h *SQLHandler) HandleDeleteScript(w http.ResponseWriter, r *http.Request) {
	if err := h.scripts.Delete(r.Context(), r.PathValue("name")); err != nil {
		WriteInternalError(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, map[string]string{"message": "SQL file deleted successfully"})
}

// HandleMetadata 列出全部表的列信息
// @Router /api/sql/metadata [get]
func (h *SQLHandler) HandleMetadata(w http.ResponseWriter, r *http.Request) {
	cols, err := h.executor.Metadata(r.Context())
	if err != nil {
		WriteInternalError(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, cols)
}
