// 版权所有 2024 DataVita Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 notebook 维护所有单元格共享的变量命名空间与单元格记录。

# 核心类型

  - Store：单一读写锁保护命名空间与单元格记录。Merge 在一次加锁内
    完成绑定合并与记录更新；Snapshot 返回执行种子；Serializable 只
    返回 JSON 兼容的值，其余绑定保留在内存中但不对外暴露。
  - Persister / RedisPersister：可选的持久化后端，每次合并后写入。
  - Workspace：工作区文件，包括单元格输入、输出与产物路径。

# 导出

ExportNotebook 生成 nbformat 4.5 文档，ExportScript 生成以
"# Cell <id>" 分隔的脚本，SaveExport 按时间戳写入导出目录。
导出只在调用时生成。
*/
package notebook
