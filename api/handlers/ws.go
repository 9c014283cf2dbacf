package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/Kirito034/DataVita/kernel"
	"github.com/Kirito034/DataVita/types"
)

// =============================================================================
// 🔌 Notebook WebSocket
// =============================================================================

// 消息类型
const (
	SocketExecute    = "execute"
	SocketValidate   = "validate"
	SocketState      = "state"
	SocketReset      = "reset"
	SocketResult     = "result"
	SocketValidation = "validation"
	SocketError      = "error"
)

// ConnObserver 接收连接数变化
type ConnObserver interface {
	WebSocketOpened()
	WebSocketClosed()
}

// SocketMessage 客户端请求
type SocketMessage struct {
	Type   string `json:"type"`
	CellID string `json:"cell_id,omitempty"`
	Code   string `json:"code,omitempty"`
}

// SocketReply 服务端回复
type SocketReply struct {
	Type       string             `json:"type"`
	CellID     string             `json:"cell_id,omitempty"`
	Output     *kernel.CellOutput `json:"output,omitempty"`
	Validation *ValidateResponse  `json:"validation,omitempty"`
	State      *NotebookState     `json:"state,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// NotebookSocket 交互式单元格执行通道；每个连接内的消息按序处理
type NotebookSocket struct {
	executor *kernel.ScriptExecutor
	notebook *NotebookHandler
	origins  []string
	observer ConnObserver
	logger   *zap.Logger
}

// NewNotebookSocket 创建 WebSocket 处理器；origins 为允许的跨域来源模式
func NewNotebookSocket(executor *kernel.ScriptExecutor, nb *NotebookHandler, origins []string, observer ConnObserver, logger *zap.Logger) *NotebookSocket {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotebookSocket{
		executor: executor,
		notebook: nb,
		origins:  origins,
		observer: observer,
		logger:   logger.With(zap.String("handler", "notebook_ws")),
	}
}

// Register 挂载 /ws/notebook
func (s *NotebookSocket) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/notebook", s.ServeHTTP)
}

// ServeHTTP 升级连接并处理消息直到客户端关闭
func (s *NotebookSocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.origins})
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	if s.observer != nil {
		s.observer.WebSocketOpened()
		defer s.observer.WebSocketClosed()
	}

	ctx := r.Context()
	reqID, _ := types.RequestID(ctx)
	logger := s.logger.With(zap.String("request_id", reqID))
	logger.Debug("notebook socket opened")

	for {
		var msg SocketMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				logger.Debug("notebook socket closed")
			default:
				if !errors.Is(err, context.Canceled) {
					logger.Warn("notebook socket read failed", zap.Error(err))
				}
			}
			return
		}

		reply := s.handle(ctx, msg)
		if err := wsjson.Write(ctx, conn, reply); err != nil {
			logger.Warn("notebook socket write failed", zap.Error(err))
			return
		}
	}
}

func (s *NotebookSocket) handle(ctx context.Context, msg SocketMessage) SocketReply {
	switch msg.Type {
	case SocketExecute:
		out := s.executor.Execute(types.WithCellID(ctx, msg.CellID), msg.CellID, msg.Code)
		return SocketReply{Type: SocketResult, CellID: msg.CellID, Output: &out}
	case SocketValidate:
		safe, details := s.executor.Validate(msg.Code)
		return SocketReply{Type: SocketValidation, CellID: msg.CellID, Validation: &ValidateResponse{Safe: safe, Details: details}}
	case SocketState:
		state := s.notebook.State()
		return SocketReply{Type: SocketState, State: &state}
	case SocketReset:
		s.notebook.store.Reset(ctx)
		return SocketReply{Type: SocketReset}
	default:
		return SocketReply{Type: SocketError, Error: "unknown message type: " + msg.Type}
	}
}
