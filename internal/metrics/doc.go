// 版权所有 2024 DataVita Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的指标采集，覆盖 HTTP、单元执行、
引擎会话、SQL、缓存、元数据库连接与 WebSocket 连接。

# 概述

Collector 通过 promauto.With 注册到调用方传入的 Registry（nil 时为
默认 Registry），测试中可为每个用例创建独立 Registry。Collector
同时实现 kernel.Recorder、engine.Observer 与 sqlexec.Metrics，
由 cmd/datavita 注入到各组件。

# 主要能力

  - HTTP：请求总数、耗时、响应大小，状态码归类为 2xx/3xx/4xx/5xx。
  - 执行：按 dialect/status 计数，按 dialect 统计耗时。
  - 引擎会话：init/reuse/failure/stop 事件计数与耗时，活跃会话 Gauge。
  - SQL 与缓存：按读写类型计数，缓存命中与未命中。
  - 元数据库：RecordDBConnections 由连接池健康检查回调上报连接数。
*/
package metrics
