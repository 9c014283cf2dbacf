// =============================================================================
// 🧪 测试辅助函数
// =============================================================================
// 提供通用的测试辅助函数和断言
//
// 使用方法:
//
//	cfg := testutil.EngineConfig(t)
//	testutil.AssertEventuallyTrue(t, func() bool { return condition }, 5*time.Second)
// =============================================================================
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Kirito034/DataVita/config"
)

// =============================================================================
// 🎯 上下文辅助
// =============================================================================

// TestContext 返回带超时的测试上下文
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestContextWithTimeout 返回带自定义超时的测试上下文
func TestContextWithTimeout(t *testing.T, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// =============================================================================
// ⚙️ 配置辅助
// =============================================================================

// EngineConfig returns an engine configuration rooted in a per-test temp
// directory, sized small enough for unit tests.
func EngineConfig(t *testing.T) config.EngineConfig {
	t.Helper()
	root := t.TempDir()
	cfg := config.DefaultEngineConfig()
	cfg.WarehouseDir = filepath.Join(root, "warehouse")
	cfg.EventLogDir = filepath.Join(root, "events")
	cfg.ConfDir = filepath.Join(root, "conf")
	cfg.TempDir = filepath.Join(root, "temp")
	cfg.Master = "local[2]"
	cfg.DriverMemory = "64m"
	cfg.ExecutorMemory = "64m"
	cfg.CleanupRetryDelay = 0
	return cfg
}

// ExecutionConfig 返回测试用执行限制
func ExecutionConfig() config.ExecutionConfig {
	cfg := config.DefaultExecutionConfig()
	cfg.JobTimeLimitSeconds = 10
	cfg.FileOperationTimeoutSeconds = 5
	cfg.Workers = 2
	cfg.QueueSize = 8
	return cfg
}

// WriteFile 在 dir 下写入文件并返回路径
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// =============================================================================
// 🔍 断言辅助
// =============================================================================

// AssertEventuallyTrue 在 timeout 内轮询 condition，超时则标记失败
func AssertEventuallyTrue(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()
	if !WaitFor(condition, timeout) {
		t.Errorf("condition did not become true within %v", timeout)
	}
}

// =============================================================================
// ⏱️ 等待辅助
// =============================================================================

// WaitFor 轮询等待条件成立
func WaitFor(condition func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

// WaitForChannel 等待通道产出一个值
func WaitForChannel[T any](ch <-chan T, timeout time.Duration) (T, bool) {
	select {
	case v := <-ch:
		return v, true
	case <-time.After(timeout):
		var zero T
		return zero, false
	}
}
