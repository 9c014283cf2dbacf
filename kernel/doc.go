// 版权所有 2024 DataVita Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 kernel 提供 Notebook 单元格的两种执行方言。

# 概述

ScriptExecutor 执行脚本单元格：先做静态检查，再在 worker 池中用一个全新的
隔离运行时执行，运行时从 Notebook 命名空间的副本初始化。只有成功的单元格
才会把顶层绑定与输出一次性合并回 Notebook 状态。plt 与 pd 句柄分别产出
图像与 CSV 产物，路径由单元格 id 决定。

FrameExecutor 执行数据帧单元格：单元格通过 spark 句柄访问进程内唯一的引擎
会话，约定的 result 变量决定输出格式。每次执行都会追加保存到结果库。

# 核心类型

  - ScriptExecutor：Execute(ctx, cellID, code) 永不返回 error，
    所有失败都写入 CellOutput.Stderr
  - FrameExecutor：Execute / ExecuteFromFile 返回结果文本与错误文本之一
  - ScriptWatcher：轮询代码目录，对新增或修改的文件调用 FileRunner
  - Recorder / Recorders：执行指标的接收者及其扇出

# 执行状态

每次执行以 success、rejected、failed、timeout 之一结束，并按方言上报给
Recorder。
*/
package kernel
