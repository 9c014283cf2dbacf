// Copyright (c) DataVita Authors.
// Licensed under the MIT License.

/*
Package types 提供 DataVita 执行核心的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 sandbox、engine、kernel、
sqlexec、notebook 与 api 等上层模块提供统一的错误码与 Context 契约。

# 核心类型

  - Error / ErrorCode — 结构化错误体系，含 HTTP 状态码与 Retryable 标记
  - WithTraceID / WithUserID / WithRequestID / WithCellID — Context 传播

# 错误分类

  - VALIDATION_ERROR   — 代码在执行前被静态检查拒绝
  - ENGINE_UNAVAILABLE — 引擎会话无法创建，下次调用可重试
  - ANALYSIS_ERROR     — SQL 层语义错误（表、列不存在等）
  - EXECUTION_ERROR    — 其余执行期错误
  - TIMEOUT            — 超过作业时间上限
*/
package types
