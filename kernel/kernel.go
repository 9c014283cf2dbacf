package kernel

import (
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/Kirito034/DataVita/notebook"
)

// 方言名称
const (
	DialectScript = "script"
	DialectFrame  = "frame"
)

// 执行状态
const (
	StatusSuccess  = "success"
	StatusRejected = "rejected"
	StatusFailed   = "failed"
	StatusTimeout  = "timeout"
)

// ExecutionFaultMessage is reported when a cell crashes its worker.
const ExecutionFaultMessage = "Execution fault: the cell crashed its worker and was aborted."

// CellOutput 脚本单元格的执行结果
type CellOutput struct {
	Stdout    string              `json:"stdout"`
	Stderr    string              `json:"stderr"`
	Artifacts []notebook.Artifact `json:"artifacts"`
}

func failedOutput(msg string) CellOutput {
	return CellOutput{Stderr: msg, Artifacts: []notebook.Artifact{}}
}

// Recorder 接收执行指标
type Recorder interface {
	RecordExecution(dialect, status string, duration time.Duration)
}

// Recorders 把一次执行分发给多个接收者
type Recorders []Recorder

// RecordExecution 实现 Recorder
func (rs Recorders) RecordExecution(dialect, status string, d time.Duration) {
	for _, r := range rs {
		if r != nil {
			r.RecordExecution(dialect, status, d)
		}
	}
}

// Stats 执行计数
type Stats struct {
	TotalExecutions   int64         `json:"total_executions"`
	SuccessExecutions int64         `json:"success_executions"`
	FailedExecutions  int64         `json:"failed_executions"`
	TimeoutExecutions int64         `json:"timeout_executions"`
	TotalDuration     time.Duration `json:"total_duration"`
}

func (s *Stats) add(status string, d time.Duration) {
	s.TotalExecutions++
	s.TotalDuration += d
	switch status {
	case StatusSuccess:
		s.SuccessExecutions++
	case StatusTimeout:
		s.TimeoutExecutions++
		s.FailedExecutions++
	default:
		s.FailedExecutions++
	}
}

type options struct {
	recorder Recorder
	tracer   trace.Tracer
}

// Option 配置执行器
type Option func(*options)

// WithRecorder 注册指标接收者
func WithRecorder(r Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithTracer 替换默认 tracer
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

func buildOptions(opts []Option) options {
	o := options{tracer: otel.Tracer("github.com/Kirito034/DataVita/kernel")}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) record(dialect, status string, d time.Duration) {
	if o.recorder != nil {
		o.recorder.RecordExecution(dialect, status, d)
	}
}
