package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// event 引擎事件日志中的一行
type event struct {
	Event      string            `json:"Event"`
	AppID      string            `json:"App ID"`
	Timestamp  int64             `json:"Timestamp"`
	Query      string            `json:"Query,omitempty"`
	DurationMs int64             `json:"Duration,omitempty"`
	Error      string            `json:"Error,omitempty"`
	Properties map[string]string `json:"Properties,omitempty"`
}

// eventLog appends JSON lines to <dir>/<app-id>.jsonl.
type eventLog struct {
	mu    sync.Mutex
	appID string
	file  *os.File
	enc   *json.Encoder
}

func openEventLog(dir, appID string) (*eventLog, error) {
	path := filepath.Join(dir, appID+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	return &eventLog{appID: appID, file: f, enc: json.NewEncoder(f)}, nil
}

func (l *eventLog) write(e event) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return
	}
	e.AppID = l.appID
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().UnixMilli()
	}
	_ = l.enc.Encode(e)
}

func (l *eventLog) close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
