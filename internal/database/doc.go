// 版权所有 2024 DataVita Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 database 打开并托管元数据库连接。元数据库保存框架执行结果、
笔记本导出版本与用户身份，驱动可选 postgres、mysql 或 sqlite。

# 打开连接

Dialector 按 config.DatabaseConfig.Driver 选择 GORM 方言，未知驱动
直接报错；服务端据此决定以无元数据库模式降级启动。Open 在此基础上
返回 *gorm.DB。

# PoolManager

NewPoolManager 把 PoolConfig 应用到底层 sql.DB 并立即 Ping 一次。
之后后台协程按 HealthCheckInterval 探活，并把打开/空闲连接数交给
WithStatsObserver 注册的回调，服务端用它驱动 Prometheus 指标。
Ping 同时作为 /ready 的 metadata_db 检查。

# 事务

WithTransaction 在单个事务中运行回调。WithTransactionRetry 对
死锁、序列化失败与 SQLITE_BUSY 按指数退避重试，版本号分配依赖它
在并发导出时仍保持单调。
*/
package database
