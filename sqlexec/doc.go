// 版权所有 2024 DataVita Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 sqlexec 在工作区嵌入式数据库上执行 SQL，并管理已保存的 SQL 脚本。

Executor 每次调用打开新连接并在返回前关闭。以 SELECT、SHOW、WITH、
PRAGMA、EXPLAIN 开头的语句返回按列名组织的记录，DECIMAL/NUMERIC 值
转换为 float64；其余语句在事务中执行并提交，返回固定的成功文本。
失败不会以 Go 错误返回，而是写入 Result.Error。

启用缓存时，读结果按写代际缓存在 Redis 中，任何写语句提交后代际递增。
*/
package sqlexec
