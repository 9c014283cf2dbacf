// =============================================================================
// 📊 指标与执行模拟实现
// =============================================================================
package mocks

import (
	"context"
	"sync"
	"time"
)

// Execution 一次被记录的执行
type Execution struct {
	Dialect  string
	Status   string
	Duration time.Duration
}

// MockRecorder 记录 RecordExecution 调用
type MockRecorder struct {
	mu    sync.Mutex
	calls []Execution
}

// NewMockRecorder 创建记录器
func NewMockRecorder() *MockRecorder { return &MockRecorder{} }

// RecordExecution 实现 kernel.Recorder
func (m *MockRecorder) RecordExecution(dialect, status string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Execution{Dialect: dialect, Status: status, Duration: d})
}

// Calls 返回调用记录副本
func (m *MockRecorder) Calls() []Execution {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Execution(nil), m.calls...)
}

// Statuses 按顺序返回状态
func (m *MockRecorder) Statuses() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	for i, c := range m.calls {
		out[i] = c.Status
	}
	return out
}

// MockFileRunner 记录按文件执行的请求
type MockFileRunner struct {
	mu     sync.Mutex
	files  []string
	result string
	err    string
}

// NewMockFileRunner 创建文件执行器；errText 非空时每次返回该错误
func NewMockFileRunner(result, errText string) *MockFileRunner {
	return &MockFileRunner{result: result, err: errText}
}

// ExecuteFromFile 实现 kernel.FileRunner
func (m *MockFileRunner) ExecuteFromFile(ctx context.Context, fileName string, persistSession bool) (*string, *string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files = append(m.files, fileName)
	if m.err != "" {
		e := m.err
		return nil, &e
	}
	r := m.result
	return &r, nil
}

// Files 返回被执行的文件名
func (m *MockFileRunner) Files() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.files...)
}
