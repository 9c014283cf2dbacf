package kernel

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Kirito034/DataVita/config"
	"github.com/Kirito034/DataVita/frame"
	"github.com/Kirito034/DataVita/internal/pool"
	"github.com/Kirito034/DataVita/notebook"
	"github.com/Kirito034/DataVita/sandbox"
)

// =============================================================================
// 📜 脚本方言执行器
// =============================================================================

// ScriptExecutor runs scripting cells against the shared notebook namespace.
// Each call gets a fresh runtime seeded from a copy of the namespace; the
// namespace is only touched again, atomically, when the cell succeeds.
type ScriptExecutor struct {
	validator *sandbox.Validator
	store     *notebook.Store
	workspace *notebook.Workspace
	workers   *pool.WorkerPool
	runtime   sandbox.Options
	timeout   time.Duration
	opts      options
	logger    *zap.Logger

	mu    sync.Mutex
	stats Stats
}

// NewScriptExecutor 创建脚本执行器
func NewScriptExecutor(
	cfg config.ExecutionConfig,
	store *notebook.Store,
	ws *notebook.Workspace,
	workers *pool.WorkerPool,
	logger *zap.Logger,
	opts ...Option,
) *ScriptExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScriptExecutor{
		validator: sandbox.NewValidator(),
		store:     store,
		workspace: ws,
		workers:   workers,
		runtime: sandbox.Options{
			MaxCallStackSize: cfg.MaxCallStackSize,
			MaxOutputBytes:   cfg.MaxOutputBytes,
		},
		timeout: cfg.JobTimeLimit(),
		opts:    buildOptions(opts),
		logger:  logger.With(zap.String("component", "script_executor")),
	}
}

// Validate 只做静态检查
func (e *ScriptExecutor) Validate(code string) (bool, []string) {
	return e.validator.Validate(code)
}

type scriptRun struct {
	out      CellOutput
	bindings map[string]any
}

// Execute validates and runs one cell. It never returns an error: every
// failure is reported through CellOutput.Stderr.
func (e *ScriptExecutor) Execute(ctx context.Context, cellID, code string) CellOutput {
	start := time.Now()
	ctx, span := e.opts.tracer.Start(ctx, "kernel.script.execute",
		trace.WithAttributes(attribute.String("cell.id", notebook.CellName(cellID))))
	defer span.End()

	if ok, details := e.validator.Validate(code); !ok {
		e.finish(StatusRejected, start)
		span.SetStatus(codes.Error, "rejected")
		e.logger.Info("cell rejected by validator",
			zap.String("cell_id", cellID),
			zap.Int("violations", len(details)),
		)
		return failedOutput(strings.Join(details, "\n"))
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	e.logger.Debug("executing cell",
		zap.String("cell_id", cellID),
		zap.Int("code_length", len(code)),
	)

	done := make(chan scriptRun, 1)
	err := e.workers.Run(ctx, func(ctx context.Context) error {
		r, err := e.run(ctx, cellID, code)
		if err != nil {
			return err
		}
		done <- r
		return nil
	})
	if err != nil {
		status, msg := e.describe(err)
		e.finish(status, start)
		span.RecordError(err)
		span.SetStatus(codes.Error, msg)
		e.logger.Warn("cell execution failed",
			zap.String("cell_id", cellID),
			zap.String("status", status),
			zap.Error(err),
		)
		return failedOutput(msg)
	}

	r := <-done
	e.store.Merge(ctx, notebook.Cell{
		ID:        cellID,
		Code:      code,
		Stdout:    r.out.Stdout,
		Stderr:    r.out.Stderr,
		Artifacts: r.out.Artifacts,
	}, r.bindings)

	e.finish(StatusSuccess, start)
	span.SetAttributes(
		attribute.Int("cell.artifacts", len(r.out.Artifacts)),
		attribute.Int("cell.bindings", len(r.bindings)),
	)
	return r.out
}

func (e *ScriptExecutor) describe(err error) (status, msg string) {
	var pe *pool.PanicError
	if errors.As(err, &pe) {
		e.logger.Error("cell crashed its worker", zap.Any("panic", pe.Value))
		return StatusFailed, ExecutionFaultMessage
	}
	var re *sandbox.RunError
	if errors.As(err, &re) {
		if re.Timeout {
			return StatusTimeout, re.Message
		}
		return StatusFailed, re.Message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return StatusTimeout, sandbox.TimeoutMessage
	}
	return StatusFailed, err.Error()
}

// run executes on a worker goroutine.
func (e *ScriptExecutor) run(ctx context.Context, cellID, code string) (scriptRun, error) {
	rt := sandbox.New(e.runtime)
	artifacts := []notebook.Artifact{}

	plt := newPlotBinding(rt, e.workspace, cellID, &artifacts).object()
	frames := newFrameBinding(rt, e.workspace, cellID, &artifacts)
	pd := frames.object()
	if err := rt.Bind("plt", plt); err != nil {
		return scriptRun{}, err
	}
	if err := rt.Bind("pd", pd); err != nil {
		return scriptRun{}, err
	}
	rt.AddModule("plot", plt)
	rt.AddModule("dataframe", pd)

	e.seed(rt, frames)

	if _, err := rt.Run(ctx, "cell_"+notebook.CellName(cellID)+".js", code); err != nil {
		return scriptRun{}, err
	}

	prog, err := sandbox.Parse(code)
	if err != nil {
		return scriptRun{}, err
	}
	return scriptRun{
		out: CellOutput{
			Stdout:    rt.Stdout(),
			Stderr:    rt.Stderr(),
			Artifacts: artifacts,
		},
		bindings: harvest(rt.Globals(sandbox.DeclaredNames(prog)), frames),
	}, nil
}

// seed defines a copy of the notebook namespace in rt.
func (e *ScriptExecutor) seed(rt *sandbox.Runtime, frames *frameBinding) {
	for name, v := range e.store.Snapshot() {
		var err error
		switch x := v.(type) {
		case *frame.Frame:
			err = rt.Define(name, frames.wrap(x))
		default:
			if notebook.IsJSONCompatible(v) {
				var doc []byte
				if doc, err = json.Marshal(v); err == nil {
					err = rt.DefineJSON(name, doc)
				}
			} else {
				err = rt.Define(name, v)
			}
		}
		if err != nil {
			e.logger.Warn("skipping notebook binding", zap.String("name", name), zap.Error(err))
		}
	}
}

// harvest exports user bindings; functions do not survive the runtime.
func harvest(globals map[string]goja.Value, frames *frameBinding) map[string]any {
	out := make(map[string]any, len(globals))
	for name, v := range globals {
		if f, ok := frames.unwrap(v); ok {
			out[name] = f
			continue
		}
		if _, isFn := goja.AssertFunction(v); isFn {
			continue
		}
		if v == nil {
			out[name] = nil
			continue
		}
		if exported, ok := exportable(v.Export(), 0); ok {
			out[name] = exported
		}
	}
	return out
}

func (e *ScriptExecutor) finish(status string, start time.Time) {
	d := time.Since(start)
	e.mu.Lock()
	e.stats.add(status, d)
	e.mu.Unlock()
	e.opts.record(DialectScript, status, d)
}

// Stats 返回执行计数快照
func (e *ScriptExecutor) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}
