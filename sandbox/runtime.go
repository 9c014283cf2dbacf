package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dop251/goja"
)

// =============================================================================
// 🎯 隔离运行时
// =============================================================================

// Options 运行时选项
type Options struct {
	// JS 调用栈上限，<= 0 时使用默认值
	MaxCallStackSize int
	// 单个输出流的捕获上限（字节），<= 0 表示不限制
	MaxOutputBytes int
}

const defaultMaxCallStackSize = 1024

// 中断消息
const (
	InterruptedMessage = "execution interrupted"
	TimeoutMessage     = "execution exceeded the job time limit"
)

// RunError 描述一次失败的脚本执行
type RunError struct {
	Message     string
	Cause       error
	Interrupted bool
	Timeout     bool
}

func (e *RunError) Error() string { return e.Message }

func (e *RunError) Unwrap() error { return e.Cause }

// Runtime wraps one goja VM for a single execution. print and console write
// into the runtime's own sinks; nothing global is redirected.
type Runtime struct {
	vm       *goja.Runtime
	stdout   *Sink
	stderr   *Sink
	modules  map[string]goja.Value
	reserved map[string]struct{}

	mu     sync.Mutex
	thrown []error
}

// New 创建运行时并绑定 print / console / require
func New(opts Options) *Runtime {
	if opts.MaxCallStackSize <= 0 {
		opts.MaxCallStackSize = defaultMaxCallStackSize
	}

	r := &Runtime{
		vm:       goja.New(),
		stdout:   NewSink(opts.MaxOutputBytes),
		stderr:   NewSink(opts.MaxOutputBytes),
		modules:  make(map[string]goja.Value),
		reserved: make(map[string]struct{}),
	}
	r.vm.SetMaxCallStackSize(opts.MaxCallStackSize)
	r.bindConsole()
	return r
}

// VM exposes the underlying goja runtime for capability bindings.
func (r *Runtime) VM() *goja.Runtime { return r.vm }

// Stdout returns captured standard output.
func (r *Runtime) Stdout() string { return r.stdout.String() }

// Stderr returns captured error output.
func (r *Runtime) Stderr() string { return r.stderr.String() }

// Bind 注册能力对象；这些名字不会被当作用户变量收集
func (r *Runtime) Bind(name string, value any) error {
	r.reserved[name] = struct{}{}
	return r.vm.Set(name, value)
}

// Define 定义普通全局变量（用于从 Notebook 状态恢复）
func (r *Runtime) Define(name string, value any) error {
	return r.vm.Set(name, value)
}

// DefineJSON defines name from a JSON document so the value is a native JS
// object rather than a wrapped Go map.
func (r *Runtime) DefineJSON(name string, doc []byte) error {
	parse, ok := goja.AssertFunction(r.vm.Get("JSON").ToObject(r.vm).Get("parse"))
	if !ok {
		return errors.New("JSON.parse unavailable")
	}
	v, err := parse(goja.Undefined(), r.vm.ToValue(string(doc)))
	if err != nil {
		return err
	}
	return r.vm.Set(name, v)
}

// AddModule 使 require(name) 返回 value
func (r *Runtime) AddModule(name string, value any) {
	r.modules[name] = r.vm.ToValue(value)
}

// Throw raises err inside JS as an Error and remembers it so the Go error
// can be recovered after the script unwinds. Must be called from a binding.
func (r *Runtime) Throw(err error) {
	r.mu.Lock()
	r.thrown = append(r.thrown, err)
	r.mu.Unlock()

	obj, nerr := r.vm.New(r.vm.Get("Error"), r.vm.ToValue(err.Error()))
	if nerr != nil {
		panic(r.vm.NewGoError(err))
	}
	panic(obj)
}

// Run executes src. The VM is interrupted when ctx is done.
func (r *Runtime) Run(ctx context.Context, name, src string) (goja.Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, interruptError(err)
	}

	stop := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-ctx.Done():
			r.vm.Interrupt(ctx.Err())
		case <-stop:
		}
	}()

	v, err := r.vm.RunScript(name, src)
	close(stop)
	<-exited
	r.vm.ClearInterrupt()

	if err != nil {
		return nil, r.classify(ctx, err)
	}
	return v, nil
}

func (r *Runtime) classify(ctx context.Context, err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		cause := ctx.Err()
		if cause == nil {
			cause = err
		}
		return interruptError(cause)
	}

	var exc *goja.Exception
	if errors.As(err, &exc) {
		return &RunError{Message: r.exceptionMessage(exc), Cause: r.causeOf(exc)}
	}
	return &RunError{Message: err.Error(), Cause: err}
}

func interruptError(cause error) *RunError {
	timeout := errors.Is(cause, context.DeadlineExceeded)
	msg := InterruptedMessage
	if timeout {
		msg = TimeoutMessage
	}
	return &RunError{Message: msg, Cause: cause, Interrupted: true, Timeout: timeout}
}

func (r *Runtime) exceptionMessage(exc *goja.Exception) string {
	v := exc.Value()
	if v == nil {
		return exc.Error()
	}
	if obj, ok := v.(*goja.Object); ok && obj.ClassName() == "Error" {
		return obj.String()
	}
	return r.Format(v)
}

func (r *Runtime) causeOf(exc *goja.Exception) error {
	obj, ok := exc.Value().(*goja.Object)
	if !ok {
		return exc
	}
	msg := obj.Get("message")
	if msg == nil {
		return exc
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.thrown) - 1; i >= 0; i-- {
		if r.thrown[i].Error() == msg.String() {
			return r.thrown[i]
		}
	}
	return exc
}

// Globals returns user bindings: enumerable globals that are not
// capabilities, plus the given top-level lexical declarations.
func (r *Runtime) Globals(declared []string) map[string]goja.Value {
	out := make(map[string]goja.Value)
	global := r.vm.GlobalObject()
	for _, k := range global.Keys() {
		if _, skip := r.reserved[k]; skip {
			continue
		}
		out[k] = global.Get(k)
	}
	for _, name := range declared {
		if _, ok := out[name]; ok {
			continue
		}
		if _, skip := r.reserved[name]; skip {
			continue
		}
		v, err := r.vm.RunString(name)
		if err != nil {
			continue
		}
		out[name] = v
	}
	return out
}

// Format renders a value the way print shows it.
func (r *Runtime) Format(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) {
		return "undefined"
	}
	if goja.IsNull(v) {
		return "null"
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return v.String()
	}
	if repr, ok := goja.AssertFunction(obj.Get("__repr__")); ok {
		if out, err := repr(obj); err == nil {
			return out.String()
		}
	}
	switch obj.ClassName() {
	case "Function":
		return "[Function]"
	case "Error", "Date", "RegExp":
		return obj.String()
	}
	stringify, ok := goja.AssertFunction(r.vm.Get("JSON").ToObject(r.vm).Get("stringify"))
	if !ok {
		return obj.String()
	}
	out, err := stringify(goja.Undefined(), obj)
	if err != nil || goja.IsUndefined(out) {
		return obj.String()
	}
	return out.String()
}

// =============================================================================
// 🖨️ 输出绑定
// =============================================================================

func (r *Runtime) bindConsole() {
	printTo := func(sink *Sink) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = r.Format(arg)
			}
			sink.WriteLine(strings.Join(parts, " "))
			return goja.Undefined()
		}
	}

	console := r.vm.NewObject()
	_ = console.Set("log", printTo(r.stdout))
	_ = console.Set("info", printTo(r.stdout))
	_ = console.Set("debug", printTo(r.stdout))
	_ = console.Set("warn", printTo(r.stderr))
	_ = console.Set("error", printTo(r.stderr))

	_ = r.Bind("console", console)
	_ = r.Bind("print", printTo(r.stdout))
	_ = r.Bind("require", func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		if mod, ok := r.modules[name]; ok {
			return mod
		}
		r.Throw(fmt.Errorf("Cannot find module '%s'", name))
		return nil
	})
}
