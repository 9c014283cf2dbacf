// 版权所有 2024 DataVita Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

// Package tlsutil 提供加固的 TLS 配置（TLS 1.2+，仅 AEAD 密码套件），
// 供 HTTPS 服务端与 Redis 客户端连接共用。
package tlsutil
