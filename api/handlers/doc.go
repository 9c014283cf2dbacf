// 版权所有 2024 DataVita Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package handlers 提供 DataVita HTTP API 的请求处理器实现。

# 核心类型

  - ScriptHandler    — 脚本单元格的校验、执行与单元格文件
  - FrameHandler     — 数据帧单元格执行、引擎会话停止与表目录
  - SQLHandler       — SQL 执行、已保存脚本 CRUD 与列元数据
  - NotebookHandler  — 命名空间快照、重置、导出与导出版本
  - NotebookSocket   — /ws/notebook 交互式执行通道
  - HealthHandler    — /health、/healthz、/ready、/version
  - Response         — 统一 JSON 响应结构（success + data + error + timestamp + request_id）

每个 Handler 通过 Register 把路由挂到 http.ServeMux，路径参数使用
Go 1.22 的模式语法读取。执行失败的单元格按错误码映射为 4xx/5xx，
脚本单元格的执行错误则作为 stderr 随 200 响应返回。
*/
package handlers
