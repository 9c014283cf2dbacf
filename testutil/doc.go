// 版权所有 2024 DataVita Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package testutil 提供 DataVita 测试的共享工具和辅助函数。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout
  - 配置辅助: EngineConfig 把引擎目录放进 t.TempDir()，ExecutionConfig
    返回缩小后的执行限制
  - 等待工具: AssertEventuallyTrue / WaitFor / WaitForChannel
  - 文件工具: WriteFile

# 子包

  - testutil/mocks: 内存版结果库、版本库、身份库，以及执行指标记录器
    与按文件执行的 FileRunner
  - testutil/fixtures: 样例 CSV / JSON 数据与单元格代码

# 使用示例

	ctx := testutil.TestContext(t)
	results := mocks.NewMockResultStore()
	exec := kernel.NewFrameExecutor(manager, testutil.ExecutionConfig(), dir, results, nil)
*/
package testutil
