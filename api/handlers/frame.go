package handlers

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/Kirito034/DataVita/engine"
	"github.com/Kirito034/DataVita/kernel"
	"github.com/Kirito034/DataVita/result"
	"github.com/Kirito034/DataVita/sandbox"
	"github.com/Kirito034/DataVita/types"
)

// =============================================================================
// ⚡ 数据帧单元格 Handler
// =============================================================================

// FrameHandler 数据帧方言与引擎目录接口
type FrameHandler struct {
	executor *kernel.FrameExecutor
	manager  *engine.Manager
	persist  bool
	logger   *zap.Logger
}

// FrameExecuteRequest 执行请求；persist_session 缺省取配置值
type FrameExecuteRequest struct {
	Code           string `json:"code,omitempty"`
	FileName       string `json:"file_name,omitempty"`
	PersistSession *bool  `json:"persist_session,omitempty"`
}

// FrameExecuteResponse 执行成功时的结果文本
type FrameExecuteResponse struct {
	Result string `json:"result"`
}

// NewFrameHandler 创建数据帧处理器
func NewFrameHandler(executor *kernel.FrameExecutor, manager *engine.Manager, logger *zap.Logger) *FrameHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FrameHandler{
		executor: executor,
		manager:  manager,
		persist:  manager.Config().PersistSession,
		logger:   logger.With(zap.String("handler", "frame")),
	}
}

// Register 挂载 /api/pyspark 路由
func (h *FrameHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/pyspark/execute", h.HandleExecute)
	mux.HandleFunc("POST /api/pyspark/execute-file", h.HandleExecuteFile)
	mux.HandleFunc("POST /api/pyspark/stop", h.HandleStop)
	mux.HandleFunc("GET /api/pyspark/tables", h.HandleListTables)
	mux.HandleFunc("GET /api/pyspark/tables/{name}/schema", h.HandleTableSchema)
	mux.HandleFunc("GET /api/pyspark/tables/{name}/data", h.HandleTableData)
}

func (h *FrameHandler) persistSession(req FrameExecuteRequest) bool {
	if req.PersistSession == nil {
		return h.persist
	}
	return *req.PersistSession
}

// HandleExecute 执行一段数据帧代码
// @Router /api/pyspark/execute [post]
func (h *FrameHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	var req FrameExecuteRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		WriteError(w, r, types.NewInvalidRequestError("code is required"), h.logger)
		return
	}
	res, errText := h.executor.Execute(r.Context(), req.Code, h.persistSession(req))
	h.writeOutcome(w, r, res, errText)
}

// HandleExecuteFile 执行代码目录中的文件
// @Router /api/pyspark/execute-file [post]
func (h *FrameHandler) HandleExecuteFile(w http.ResponseWriter, r *http.Request) {
	var req FrameExecuteRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.FileName == "" {
		WriteError(w, r, types.NewInvalidRequestError("file_name is required"), h.logger)
		return
	}
	res, errText := h.executor.ExecuteFromFile(r.Context(), req.FileName, h.persistSession(req))
	h.writeOutcome(w, r, res, errText)
}

func (h *FrameHandler) writeOutcome(w http.ResponseWriter, r *http.Request, res, errText *string) {
	if errText != nil {
		WriteError(w, r, classifyFrameError(*errText), h.logger)
		return
	}
	WriteSuccess(w, r, FrameExecuteResponse{Result: *res})
}

// classifyFrameError 把执行器的错误文本映射为错误码，消息原样保留
func classifyFrameError(text string) *types.Error {
	switch {
	case text == kernel.SessionUnavailableMessage:
		return types.NewEngineUnavailableError(text)
	case strings.HasPrefix(text, "AnalysisException: "):
		return types.NewError(types.ErrAnalysis, text)
	case strings.HasPrefix(text, "FileNotFoundError: "):
		return types.NewNotFoundError(text)
	case strings.Contains(text, sandbox.TimeoutMessage):
		return types.NewError(types.ErrTimeout, text)
	default:
		return types.NewError(types.ErrExecution, text)
	}
}

// HandleStop 等待运行中的作业结束后停止引擎会话
// @Router /api/pyspark/stop [post]
func (h *FrameHandler) HandleStop(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.StopContext(r.Context()); err != nil {
		WriteError(w, r, types.NewError(types.ErrTimeout, "engine stop cancelled while jobs were running").WithCause(err), h.logger)
		return
	}
	WriteSuccess(w, r, map[string]bool{"stopped": true})
}

func (h *FrameHandler) session(w http.ResponseWriter, r *http.Request) (*engine.Session, bool) {
	s := h.manager.Session(r.Context())
	if s == nil {
		WriteError(w, r, types.NewEngineUnavailableError(kernel.SessionUnavailableMessage), h.logger)
		return nil, false
	}
	return s, true
}

// HandleListTables 列出表与临时视图
func (h *FrameHandler) HandleListTables(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	tables, err := s.ListTables(r.Context())
	if err != nil {
		WriteInternalError(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, map[string]any{"tables": tables})
}

// HandleTableSchema 返回表结构
func (h *FrameHandler) HandleTableSchema(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	name := r.PathValue("name")
	cols, err := s.TableSchema(r.Context(), name)
	if err != nil {
		h.writeCatalogError(w, r, name, err)
		return
	}
	WriteSuccess(w, r, map[string]any{"table": name, "columns": cols})
}

// HandleTableData 返回表的前 limit 行，支持 page/page_size 分页
func (h *FrameHandler) HandleTableData(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	name := r.PathValue("name")
	f, err := s.TableData(r.Context(), name, QueryInt(r, "limit", result.DefaultPageSize))
	if err != nil {
		h.writeCatalogError(w, r, name, err)
		return
	}

	page := QueryInt(r, "page", 0)
	if page <= 0 && result.NeedsStream(f.Len()) {
		records, err := f.Records()
		if err != nil {
			WriteInternalError(w, r, err, h.logger)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if err := result.StreamJSON(w, records); err != nil {
			h.logger.Warn("streaming table data", zap.String("table", name), zap.Error(err))
		}
		return
	}

	data, err := result.Format(f, page, QueryInt(r, "page_size", result.DefaultPageSize))
	if err != nil {
		WriteInternalError(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, data)
}

func (h *FrameHandler) writeCatalogError(w http.ResponseWriter, r *http.Request, name string, err error) {
	if errors.Is(err, engine.ErrTableNotFound) {
		WriteError(w, r, types.NewNotFoundError("table not found: "+name).WithCause(err), h.logger)
		return
	}
	WriteInternalError(w, r, err, h.logger)
}
