package kernel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/Kirito034/DataVita/config"
	"github.com/Kirito034/DataVita/engine"
	"github.com/Kirito034/DataVita/frame"
	"github.com/Kirito034/DataVita/internal/pool"
	"github.com/Kirito034/DataVita/internal/store"
	"github.com/Kirito034/DataVita/sandbox"
)

// =============================================================================
// ⚡ 数据帧方言执行器
// =============================================================================

// 固定消息
const (
	SessionUnavailableMessage = "Failed to initialize engine session."
	NoResultMessage           = "Execution successful, no result to display."
)

// ResultVariable 约定的结果变量名
const ResultVariable = "result"

// ResultSaver 追加保存执行结果
type ResultSaver interface {
	Save(ctx context.Context, rec *store.ResultRecord) error
}

// FrameExecutor runs dataframe cells against the engine session.
type FrameExecutor struct {
	manager     *engine.Manager
	results     ResultSaver
	scriptDir   string
	runtime     sandbox.Options
	timeout     time.Duration
	fileTimeout time.Duration
	opts        options
	logger      *zap.Logger

	mu    sync.Mutex
	stats Stats
}

// NewFrameExecutor 创建执行器；scriptDir 存放待执行的代码文件与相对数据路径
func NewFrameExecutor(
	manager *engine.Manager,
	cfg config.ExecutionConfig,
	scriptDir string,
	results ResultSaver,
	logger *zap.Logger,
	opts ...Option,
) *FrameExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FrameExecutor{
		manager:   manager,
		results:   results,
		scriptDir: scriptDir,
		runtime: sandbox.Options{
			MaxCallStackSize: cfg.MaxCallStackSize,
			MaxOutputBytes:   cfg.MaxOutputBytes,
		},
		timeout:     cfg.JobTimeLimit(),
		fileTimeout: cfg.FileOperationTimeout(),
		opts:        buildOptions(opts),
		logger:      logger.With(zap.String("component", "frame_executor")),
	}
}

// ScriptDir 代码文件目录
func (e *FrameExecutor) ScriptDir() string { return e.scriptDir }

// Execute runs code and returns exactly one of result and error text. When
// persistSession is false the engine session is torn down afterwards,
// whatever the outcome.
func (e *FrameExecutor) Execute(ctx context.Context, code string, persistSession bool) (*string, *string) {
	start := time.Now()
	res, errText := e.execute(ctx, code, persistSession)
	e.save(ctx, code, res, errText, time.Since(start))
	return res, errText
}

// ExecuteFromFile reads fileName from the script directory and executes it.
func (e *FrameExecutor) ExecuteFromFile(ctx context.Context, fileName string, persistSession bool) (*string, *string) {
	path := filepath.Join(e.scriptDir, filepath.Base(filepath.Clean("/"+fileName)))
	code, err := e.readFile(ctx, path)
	if err != nil {
		var msg string
		if errors.Is(err, os.ErrNotExist) {
			msg = fmt.Sprintf("FileNotFoundError: File '%s' not found in %s.", fileName, e.scriptDir)
		} else {
			msg = "Error: " + err.Error()
		}
		e.logger.Error("reading frame script", zap.String("file", fileName), zap.Error(err))
		if !persistSession {
			e.manager.Stop()
		}
		return nil, &msg
	}

	e.logger.Info("executing frame script from file", zap.String("path", path))
	start := time.Now()
	res, errText := e.execute(ctx, code, persistSession)
	e.save(ctx, fileName, res, errText, time.Since(start))
	return res, errText
}

// readFile honours the file operation timeout.
func (e *FrameExecutor) readFile(ctx context.Context, path string) (string, error) {
	if e.fileTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.fileTimeout)
		defer cancel()
	}
	type read struct {
		data []byte
		err  error
	}
	ch := make(chan read, 1)
	go func() {
		data, err := os.ReadFile(path)
		ch <- read{data, err}
	}()
	select {
	case r := <-ch:
		return string(r.data), r.err
	case <-ctx.Done():
		return "", fmt.Errorf("reading %s: %w", filepath.Base(path), ctx.Err())
	}
}

func (e *FrameExecutor) execute(ctx context.Context, code string, persistSession bool) (res *string, errText *string) {
	start := time.Now()
	ctx, span := e.opts.tracer.Start(ctx, "kernel.frame.execute")
	defer span.End()

	status := StatusFailed
	defer func() {
		e.finish(status, start)
		if errText != nil {
			span.SetStatus(codes.Error, *errText)
		}
	}()

	// Stop 会等待全部作业槽，必须在释放本作业槽之后执行
	if !persistSession {
		defer func() {
			e.logger.Info("terminating engine session as requested")
			e.manager.Stop()
		}()
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	release, err := e.manager.Acquire(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			status = StatusTimeout
		}
		return nil, e.fail("Error: waiting for an engine slot: " + err.Error())
	}
	defer release()

	session := e.manager.Session(ctx)
	if session == nil {
		return nil, e.fail(SessionUnavailableMessage)
	}
	span.SetAttributes(attribute.String("engine.app_id", session.AppID))

	e.logger.Info("executing frame code dynamically", zap.Int("code_length", len(code)))
	rt := sandbox.New(e.runtime)
	spark := newSparkBinding(ctx, rt, session, e.manager.Analytics, e.scriptDir)
	if err := rt.Bind("spark", spark.object()); err != nil {
		return nil, e.fail("Error: " + err.Error())
	}
	if err := rt.Bind("analytics", spark.analyticsObject()); err != nil {
		return nil, e.fail("Error: " + err.Error())
	}

	if _, err := rt.Run(ctx, "frame.js", code); err != nil {
		if re := new(sandbox.RunError); errors.As(err, &re) && re.Timeout {
			status = StatusTimeout
		}
		span.RecordError(err)
		return nil, e.fail(errorText(err))
	}

	out, err := e.formatResult(rt, spark, code)
	if err != nil {
		span.RecordError(err)
		return nil, e.fail(errorText(err))
	}
	status = StatusSuccess
	e.logger.Info("frame execution completed", zap.Duration("duration", time.Since(start)))
	return &out, nil
}

func (e *FrameExecutor) fail(msg string) *string {
	e.logger.Error("frame execution failed", zap.String("error", msg))
	return &msg
}

// errorText splits failures into analysis and generic categories.
func errorText(err error) string {
	if engine.IsAnalysisError(err) {
		var ae *engine.AnalysisError
		errors.As(err, &ae)
		return "AnalysisException: " + ae.Error()
	}
	var re *sandbox.RunError
	if errors.As(err, &re) {
		var exc *goja.Exception
		if re.Cause != nil && !errors.As(re.Cause, &exc) && !re.Interrupted {
			return "Error: " + re.Cause.Error()
		}
		return "Error: " + strings.TrimPrefix(re.Message, "Error: ")
	}
	return "Error: " + err.Error()
}

// formatResult renders the result variable: a DataFrame becomes one JSON
// object per row, an array one JSON value per element.
func (e *FrameExecutor) formatResult(rt *sandbox.Runtime, spark *sparkBinding, code string) (string, error) {
	prog, err := sandbox.Parse(code)
	if err != nil {
		return "", err
	}
	v, ok := rt.Globals(sandbox.DeclaredNames(prog))[ResultVariable]
	if !ok || isAbsent(v) {
		e.logger.Info("execution completed, no result variable")
		return NoResultMessage, nil
	}

	if df, ok := spark.unwrap(v); ok {
		f, err := df.Collect(spark.ctx)
		if err != nil {
			return "", err
		}
		return rowLines(f)
	}
	if items, ok := arrayItems(v); ok {
		lines := make([]string, len(items))
		for i, item := range items {
			if df, ok := spark.unwrap(item); ok {
				lines[i] = df.SQL()
				continue
			}
			lines[i] = stringify(rt.VM(), item)
		}
		return strings.Join(lines, "\n"), nil
	}
	return rt.Format(v), nil
}

// rowLines renders each row as a JSON object with keys in column order.
func rowLines(f *frame.Frame) (string, error) {
	lines := make([]string, len(f.Rows))
	buf := pool.ByteBufferPool.Get()
	defer pool.ByteBufferPool.Put(buf)
	for i, row := range f.Rows {
		buf.Reset()
		buf.WriteByte('{')
		for j, c := range f.Columns {
			if j > 0 {
				buf.WriteString(", ")
			}
			k, err := json.Marshal(c)
			if err != nil {
				return "", err
			}
			v, err := json.Marshal(row[j])
			if err != nil {
				return "", err
			}
			buf.Write(k)
			buf.WriteString(": ")
			buf.Write(v)
		}
		buf.WriteByte('}')
		lines[i] = buf.String()
	}
	return strings.Join(lines, "\n"), nil
}

// save appends the execution record; failures are logged only.
func (e *FrameExecutor) save(ctx context.Context, source string, res, errText *string, d time.Duration) {
	if e.results == nil {
		return
	}
	rec := &store.ResultRecord{Source: source, Dialect: DialectFrame, DurationMs: d.Milliseconds()}
	if res != nil {
		rec.Result = *res
	}
	if errText != nil {
		rec.Error = *errText
	}
	if err := e.results.Save(context.WithoutCancel(ctx), rec); err != nil {
		e.logger.Warn("persisting execution result", zap.Error(err))
	}
}

func (e *FrameExecutor) finish(status string, start time.Time) {
	d := time.Since(start)
	e.mu.Lock()
	e.stats.add(status, d)
	e.mu.Unlock()
	e.opts.record(DialectFrame, status, d)
}

// Stats 返回执行计数快照
func (e *FrameExecutor) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}
