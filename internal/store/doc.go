// 版权所有 2024 DataVita Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 store 提供元数据库上的持久化仓库：执行结果、笔记本版本与用户身份。

# 概述

三个仓库都基于 GORM，表结构由 internal/migration 维护。写操作经
database.PoolManager 的 WithTransactionRetry 执行，遇到死锁或
"database is locked" 等瞬时错误时按指数退避重试。

# 核心类型

  - ResultRepository：数据帧方言执行结果的追加写日志（无删除）。
  - MetadataStore：笔记本导出版本，Save 在事务中分配下一个版本号。
  - IdentityStore：按用户 ID 查询显示名与角色，供鉴权中间件使用。

查询不到记录时返回 types.ErrNotFound 错误码。
*/
package store
