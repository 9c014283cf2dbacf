package kernel

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// --- 代码目录监听 ---

// FileRunner 按文件名执行代码文件
type FileRunner interface {
	ExecuteFromFile(ctx context.Context, fileName string, persistSession bool) (*string, *string)
}

// ScriptWatcher polls the script directory and executes every file that is
// new or whose modification time changed since the last pass.
type ScriptWatcher struct {
	dir      string
	interval time.Duration
	runner   FileRunner
	logger   *zap.Logger

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	done     chan struct{}
	modTimes map[string]time.Time
}

// NewScriptWatcher 创建监听器；interval <= 0 时为 1 秒
func NewScriptWatcher(dir string, interval time.Duration, runner FileRunner, logger *zap.Logger) *ScriptWatcher {
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScriptWatcher{
		dir:      dir,
		interval: interval,
		runner:   runner,
		logger:   logger.With(zap.String("component", "script_watcher")),
		modTimes: make(map[string]time.Time),
	}
}

// Start 启动轮询
func (w *ScriptWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("watcher already running")
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create script dir: %w", err)
	}
	w.running = true
	w.stopChan = make(chan struct{})
	w.done = make(chan struct{})
	go w.pollLoop(ctx, w.stopChan, w.done)

	w.logger.Info("script watcher started",
		zap.String("dir", w.dir),
		zap.Duration("interval", w.interval))
	return nil
}

// Stop stops polling and waits for an in-flight pass to finish.
func (w *ScriptWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopChan)
	done := w.done
	w.mu.Unlock()

	<-done
	w.logger.Info("script watcher stopped")
}

func (w *ScriptWatcher) pollLoop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			w.Poll(ctx)
		}
	}
}

// Poll runs one pass and returns the files that were executed.
func (w *ScriptWatcher) Poll(ctx context.Context) []string {
	changed, err := w.changed()
	if err != nil {
		w.logger.Error("scanning script directory", zap.Error(err))
		return nil
	}
	for _, name := range changed {
		w.logger.Info("script file changed", zap.String("file", name))
		res, errText := w.runner.ExecuteFromFile(ctx, name, true)
		if errText != nil {
			w.logger.Error("script execution failed", zap.String("file", name), zap.String("error", *errText))
			continue
		}
		w.logger.Info("script execution result", zap.String("file", name), zap.Stringp("result", res))
	}
	return changed
}

func (w *ScriptWatcher) changed() ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		name := e.Name()
		if last, seen := w.modTimes[name]; seen && last.Equal(info.ModTime()) {
			continue
		}
		w.modTimes[name] = info.ModTime()
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// Dir 监听目录
func (w *ScriptWatcher) Dir() string { return filepath.Clean(w.dir) }
