// 版权所有 2024 DataVita Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 migration 管理元数据库（执行结果、笔记本版本、用户）的 Schema
迁移，基于 golang-migrate，支持 PostgreSQL、MySQL 与 SQLite。

# 概述

迁移文件以 embed.FS 内嵌在 migrations/<方言>/ 下，命名为
<版本>_<名称>.up.sql / .down.sql。迁移器启动时按配置中的驱动名
选择目录与 golang-migrate 数据库驱动，日志转接到 zap。

# 核心类型

  - Migrator：Up/Down/Force/Version/Status/Close。
  - DefaultMigrator：golang-migrate 实现。
  - CLI：把迁移结果格式化输出，供 datavita migrate 子命令使用。
  - NewMigratorFromConfig：由 config.DatabaseConfig 构造迁移器。
*/
package migration
