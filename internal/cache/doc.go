// 版权所有 2024 DataVita Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 提供基于 Redis 的共享缓存，服务于 Notebook 状态持久化与
SQL 读结果缓存。

# 核心类型

  - Manager：持有 go-redis 客户端，所有键自动加上 KeyPrefix；
    WithPrefix 在同一连接上派生子命名空间。
  - Config：地址、连接池、默认 TTL 与健康检查间隔。
  - Stats：从 INFO 解析出的命中、未命中、内存与连接数。

# 主要能力

  - 字符串与 JSON 读写，ttl 为 0 使用默认值，NoExpiry 永不过期。
  - Incr / Counter 计数器，用于缓存代际失效。
  - 后台探活，Close 后停止。
*/
package cache
