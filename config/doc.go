// Package config 提供 DataVita 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量（DATAVITA_ 前缀）的顺序叠加。
// 首次运行时 EnsureFile 会把默认配置写入磁盘，之后由用户自行修改。
package config
