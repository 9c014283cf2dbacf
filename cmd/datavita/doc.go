// 版权所有 2024 DataVita Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package main 提供 DataVita 服务端程序入口。

# 子命令

  - serve    启动 HTTP/WebSocket 服务与独立的 Prometheus 指标端口
  - migrate  元数据库迁移: up, down --steps N, status, version, force <v>
  - version  输出构建注入的版本信息

全局参数 --config 指定 YAML 配置文件，文件不存在时写入默认配置。
环境变量 DATAVITA_* 覆盖文件中的同名字段。

# 中间件链

Recovery → RequestID → OTelTracing → SecurityHeaders → RequestLogger →
MetricsMiddleware → CORS → RateLimiter → JWTAuth

JWTAuth 仅在 auth.enabled 时生效；探针路径与 /metrics 不要求认证，
WebSocket 握手可通过 token 查询参数携带令牌。

# 降级

元数据库不可用时执行结果与导出版本不落库，/api/notebook/versions 返回 503；
notebook.state_storage 为 redis 时 Redis 不可用会导致启动失败。
*/
package main
